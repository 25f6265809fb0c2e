package usecases

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/pkg/cache"
)

func newTestGuard(t *testing.T) (*IdempotencyGuard, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.New(testLogger(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return NewIdempotencyGuard(testLogger(), client, time.Minute, false), mr
}

func newTestOrderService(t *testing.T, repo *fakeOrdersRepo, catalog *fakeCatalog, gateway *fakeGateway) *OrderService {
	t.Helper()
	guard, _ := newTestGuard(t)
	return NewOrderService(testLogger(), repo, catalog, gateway, guard)
}

func testMenu() (*fakeCatalog, []entities.MenuItem) {
	items := []entities.MenuItem{
		{ID: uuid.New(), Name: "Butter Chicken", Price: 5000, IsAvailable: true},
		{ID: uuid.New(), Name: "Garlic Naan", Price: 3000, IsAvailable: true},
		{ID: uuid.New(), Name: "Seasonal Special", Price: 9000, IsAvailable: false},
	}
	return newFakeCatalog(items...), items
}

func TestCheckoutComputesTotalFromCatalog(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	gateway := &fakeGateway{}
	svc := newTestOrderService(t, repo, catalog, gateway)

	result, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: 2},
		{MenuItemID: items[1].ID, Quantity: 1},
	}, "")
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.Equal(t, int64(13000), result.Amount)
	require.Equal(t, "INR", result.Currency)
	require.NotEmpty(t, result.RazorpayOrderID)

	stored := repo.get(result.OrderID)
	require.Equal(t, entities.OrderStatusAwaitingPayment, stored.Status)
	require.Equal(t, int64(13000), stored.TotalAmount)
	require.Equal(t, result.RazorpayOrderID, stored.RazorpayOrderID)
	require.Len(t, stored.Items, 2)
	// Line snapshots carry the catalog price at order time.
	require.Equal(t, int64(5000), stored.Items[0].Price)
}

func TestCheckoutRejectsUnavailableItem(t *testing.T) {
	catalog, items := testMenu()
	svc := newTestOrderService(t, newFakeOrdersRepo(), catalog, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[2].ID, Quantity: 1},
	}, "")
	require.ErrorIs(t, err, entities.ErrItemUnavailable)
}

func TestCheckoutRejectsUnknownItemAndBadQuantity(t *testing.T) {
	catalog, items := testMenu()
	svc := newTestOrderService(t, newFakeOrdersRepo(), catalog, &fakeGateway{})

	_, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: uuid.New(), Quantity: 1},
	}, "")
	require.ErrorIs(t, err, entities.ErrItemUnavailable)

	_, err = svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: 0},
	}, "")
	require.ErrorIs(t, err, entities.ErrItemUnavailable)

	_, err = svc.Checkout(context.Background(), uuid.New(), nil, "")
	require.ErrorIs(t, err, entities.ErrItemUnavailable)
}

func TestCheckoutRejectsExcessiveQuantity(t *testing.T) {
	catalog, items := testMenu()
	gateway := &fakeGateway{}
	svc := newTestOrderService(t, newFakeOrdersRepo(), catalog, gateway)

	_, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: maxLineQuantity + 1},
	}, "")
	require.ErrorIs(t, err, entities.ErrItemUnavailable)
	require.Equal(t, 0, gateway.calls, "an invalid cart must never reach the gateway")

	result, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: maxLineQuantity},
	}, "")
	require.NoError(t, err)
	require.Equal(t, int64(maxLineQuantity)*items[0].Price, result.Amount)
}

func TestCheckoutSurfacesStaleVersionConflict(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	svc := newTestOrderService(t, repo, catalog, &fakeGateway{})

	// A concurrent writer bumps the version between the insert and the
	// attempt to attach the gateway order reference.
	repo.afterInsert = func() {
		for id := range repo.orders {
			require.NoError(t, repo.UpdateStatus(context.Background(), id, entities.OrderStatusPaymentFailed, 1))
		}
	}

	_, err := svc.Checkout(context.Background(), uuid.New(), []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: 1},
	}, "")
	require.ErrorIs(t, err, entities.ErrVersionConflict)
}

func TestSetGatewayOrderIDRejectsStaleVersion(t *testing.T) {
	repo := newFakeOrdersRepo()
	order := &entities.Order{ID: uuid.New(), Status: entities.OrderStatusPending, Version: 2}
	repo.put(order)

	// Version one behind the current row must not write.
	err := repo.SetRazorpayOrderID(context.Background(), order.ID, "order_gw_1", 1)
	require.ErrorIs(t, err, entities.ErrVersionConflict)
	require.Empty(t, repo.get(order.ID).RazorpayOrderID)

	require.NoError(t, repo.SetRazorpayOrderID(context.Background(), order.ID, "order_gw_1", 2))
	require.Equal(t, entities.OrderStatusAwaitingPayment, repo.get(order.ID).Status)
	require.Equal(t, 3, repo.get(order.ID).Version)
}

func TestCheckoutReplayReturnsSameOrder(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	gateway := &fakeGateway{}
	svc := newTestOrderService(t, repo, catalog, gateway)

	userID := uuid.New()
	cart := []entities.CartLine{{MenuItemID: items[0].ID, Quantity: 1}}

	first, err := svc.Checkout(context.Background(), userID, cart, "")
	require.NoError(t, err)

	second, err := svc.Checkout(context.Background(), userID, cart, "")
	require.NoError(t, err)
	require.True(t, second.Replayed)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, first.RazorpayOrderID, second.RazorpayOrderID)
	require.Equal(t, 1, gateway.calls, "gateway must see exactly one order")
}

func TestCheckoutReorderedCartIsSameFingerprint(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	gateway := &fakeGateway{}
	svc := newTestOrderService(t, repo, catalog, gateway)

	userID := uuid.New()

	first, err := svc.Checkout(context.Background(), userID, []entities.CartLine{
		{MenuItemID: items[0].ID, Quantity: 2},
		{MenuItemID: items[1].ID, Quantity: 1},
	}, "")
	require.NoError(t, err)

	second, err := svc.Checkout(context.Background(), userID, []entities.CartLine{
		{MenuItemID: items[1].ID, Quantity: 1},
		{MenuItemID: items[0].ID, Quantity: 2},
	}, "")
	require.NoError(t, err)
	require.Equal(t, first.OrderID, second.OrderID)
	require.Equal(t, 1, gateway.calls)
}

func TestCheckoutRetriesAfterGatewayFailure(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	gateway := &fakeGateway{failNext: true}
	svc := newTestOrderService(t, repo, catalog, gateway)

	userID := uuid.New()
	cart := []entities.CartLine{{MenuItemID: items[0].ID, Quantity: 1}}

	_, err := svc.Checkout(context.Background(), userID, cart, "")
	require.Error(t, err)

	// The failed attempt must release its reservation so a retry is not
	// reported as a duplicate.
	result, err := svc.Checkout(context.Background(), userID, cart, "")
	require.NoError(t, err)
	require.False(t, result.Replayed)
	require.NotEmpty(t, result.RazorpayOrderID)
}

func TestCheckoutDuplicateInFlight(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	guard, _ := newTestGuard(t)
	svc := NewOrderService(testLogger(), repo, catalog, &fakeGateway{}, guard)

	userID := uuid.New()
	cart := []entities.CartLine{{MenuItemID: items[0].ID, Quantity: 1}}

	// Claim the fingerprint as another request still in flight would.
	first, _, err := guard.Reserve(context.Background(), guard.Fingerprint(userID, cart, ""))
	require.NoError(t, err)
	require.True(t, first)

	_, err = svc.Checkout(context.Background(), userID, cart, "")
	require.ErrorIs(t, err, entities.ErrDuplicateRequest)
}

func TestUpdateOrderStatusValidatesTransition(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := NewOrderService(testLogger(), repo, newFakeCatalog(), &fakeGateway{}, nil)

	order := &entities.Order{
		ID:      uuid.New(),
		Status:  entities.OrderStatusPaid,
		Version: 3,
	}
	repo.put(order)

	err := svc.UpdateOrderStatus(context.Background(), order.ID, entities.OrderStatusDelivered)
	require.ErrorIs(t, err, entities.ErrInvalidTransition)

	err = svc.UpdateOrderStatus(context.Background(), order.ID, entities.OrderStatusAccepted)
	require.NoError(t, err)

	stored := repo.get(order.ID)
	require.Equal(t, entities.OrderStatusAccepted, stored.Status)
	require.Equal(t, 4, stored.Version)

	err = svc.UpdateOrderStatus(context.Background(), order.ID, entities.OrderStatusDelivered)
	require.NoError(t, err)
	require.Equal(t, entities.OrderStatusDelivered, repo.get(order.ID).Status)
}

func TestUpdateOrderStatusUnknownOrder(t *testing.T) {
	svc := NewOrderService(testLogger(), newFakeOrdersRepo(), newFakeCatalog(), &fakeGateway{}, nil)

	err := svc.UpdateOrderStatus(context.Background(), uuid.New(), entities.OrderStatusAccepted)
	require.ErrorIs(t, err, entities.ErrNotFound)
}

func TestExpireStalePaymentsSkipsConcurrentlyPaidOrders(t *testing.T) {
	repo := newFakeOrdersRepo()
	svc := NewOrderService(testLogger(), repo, newFakeCatalog(), &fakeGateway{}, nil)

	abandoned := &entities.Order{ID: uuid.New(), Status: entities.OrderStatusAwaitingPayment, Version: 2}
	repo.put(abandoned)

	// Snapshot taken by the sweep query, before a payment raced in.
	racedSnapshot := entities.Order{ID: uuid.New(), Status: entities.OrderStatusAwaitingPayment, Version: 2}
	raced := racedSnapshot
	raced.Status = entities.OrderStatusPaid
	raced.Version = 3
	repo.put(&raced)

	repo.stale = []entities.Order{*abandoned, racedSnapshot}

	expired, err := svc.ExpireStalePayments(context.Background(), 30*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	require.Equal(t, entities.OrderStatusPaymentFailed, repo.get(abandoned.ID).Status)
	require.Equal(t, entities.OrderStatusPaid, repo.get(raced.ID).Status, "late payment must survive the sweep")
}

func TestConcurrentCheckoutsCreateOneOrder(t *testing.T) {
	catalog, items := testMenu()
	repo := newFakeOrdersRepo()
	gateway := &fakeGateway{}
	svc := newTestOrderService(t, repo, catalog, gateway)

	userID := uuid.New()
	cart := []entities.CartLine{{MenuItemID: items[0].ID, Quantity: 1}}

	const attempts = 8
	var wg sync.WaitGroup
	results := make([]*entities.CheckoutResult, attempts)
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = svc.Checkout(context.Background(), userID, cart, "")
		}(i)
	}
	wg.Wait()

	created := 0
	for i := range results {
		if errs[i] != nil {
			// Losers of the in-flight window report a duplicate.
			require.ErrorIs(t, errs[i], entities.ErrDuplicateRequest)
			continue
		}
		created++
	}
	require.GreaterOrEqual(t, created, 1)
	require.Equal(t, 1, gateway.calls, "duplicate taps must not reach the gateway twice")
}
