package usecases

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeOrdersRepo mirrors the conditional-update semantics of the real
// repository: mutations state the version they observed, a mismatch is
// ErrVersionConflict, and the payment commit short-circuits on orders that
// are already paid.
type fakeOrdersRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*entities.Order
	stale  []entities.Order

	paymentWrites int

	// One-shot hooks fired after a read or insert returns its snapshot,
	// outside the lock. Used to interleave a concurrent writer between a
	// service's read and its conditional update.
	afterFind   func()
	afterInsert func()
}

func (f *fakeOrdersRepo) fireAfterFind() {
	f.mu.Lock()
	fn := f.afterFind
	f.afterFind = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func newFakeOrdersRepo() *fakeOrdersRepo {
	return &fakeOrdersRepo{orders: map[uuid.UUID]*entities.Order{}}
}

func (f *fakeOrdersRepo) put(order *entities.Order) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *order
	f.orders[order.ID] = &cp
}

func (f *fakeOrdersRepo) get(id uuid.UUID) entities.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.orders[id]
}

func (f *fakeOrdersRepo) InsertOrder(_ context.Context, order *entities.Order) error {
	f.mu.Lock()

	order.ID = uuid.New()
	order.Status = entities.OrderStatusPending
	order.Version = 1
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt

	cp := *order
	f.orders[order.ID] = &cp

	fn := f.afterInsert
	f.afterInsert = nil
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
	return nil
}

func (f *fakeOrdersRepo) FindByID(_ context.Context, id uuid.UUID) (*entities.Order, error) {
	f.mu.Lock()

	order, ok := f.orders[id]
	if !ok {
		f.mu.Unlock()
		return nil, entities.ErrNotFound
	}
	cp := *order
	f.mu.Unlock()

	f.fireAfterFind()
	return &cp, nil
}

func (f *fakeOrdersRepo) FindByRazorpayOrderID(_ context.Context, razorpayOrderID string) (*entities.Order, error) {
	f.mu.Lock()

	for _, order := range f.orders {
		if order.RazorpayOrderID == razorpayOrderID {
			cp := *order
			f.mu.Unlock()

			f.fireAfterFind()
			return &cp, nil
		}
	}
	f.mu.Unlock()
	return nil, entities.ErrNotFound
}

func (f *fakeOrdersRepo) FindUserOrders(_ context.Context, userID uuid.UUID) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var orders []entities.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			orders = append(orders, *order)
		}
	}
	return orders, nil
}

func (f *fakeOrdersRepo) ListOrders(_ context.Context, status entities.OrderStatus, limit, _ int) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var orders []entities.Order
	for _, order := range f.orders {
		if status != "" && order.Status != status {
			continue
		}
		orders = append(orders, *order)
		if len(orders) == limit {
			break
		}
	}
	return orders, nil
}

func (f *fakeOrdersRepo) SetRazorpayOrderID(_ context.Context, orderID uuid.UUID, razorpayOrderID string, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return entities.ErrNotFound
	}
	if order.Version != expectedVersion {
		return entities.ErrVersionConflict
	}

	order.RazorpayOrderID = razorpayOrderID
	order.Status = entities.OrderStatusAwaitingPayment
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeOrdersRepo) CommitPayment(_ context.Context, orderID uuid.UUID, razorpayPaymentID string, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return entities.ErrNotFound
	}
	if order.Status.AtLeastPaid() {
		return nil
	}
	if order.Version != expectedVersion {
		return entities.ErrVersionConflict
	}

	order.Status = entities.OrderStatusPaid
	order.RazorpayPaymentID = razorpayPaymentID
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	f.paymentWrites++
	return nil
}

func (f *fakeOrdersRepo) UpdateStatus(_ context.Context, orderID uuid.UUID, next entities.OrderStatus, expectedVersion int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	order, ok := f.orders[orderID]
	if !ok {
		return entities.ErrNotFound
	}
	if order.Version != expectedVersion {
		return entities.ErrVersionConflict
	}

	order.Status = next
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	return nil
}

func (f *fakeOrdersRepo) FindStaleUnpaid(_ context.Context, _ time.Duration, _ int) ([]entities.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stale, nil
}

type fakeCatalog struct {
	items     map[uuid.UUID]entities.MenuItem
	listCalls int
}

func newFakeCatalog(items ...entities.MenuItem) *fakeCatalog {
	c := &fakeCatalog{items: map[uuid.UUID]entities.MenuItem{}}
	for _, item := range items {
		c.items[item.ID] = item
	}
	return c
}

func (f *fakeCatalog) ListAvailable(context.Context) ([]entities.MenuItem, error) {
	f.listCalls++
	var items []entities.MenuItem
	for _, item := range f.items {
		if item.IsAvailable {
			items = append(items, item)
		}
	}
	return items, nil
}

func (f *fakeCatalog) FindByIDs(_ context.Context, ids []uuid.UUID) ([]entities.MenuItem, error) {
	var items []entities.MenuItem
	for _, id := range ids {
		if item, ok := f.items[id]; ok {
			items = append(items, item)
		}
	}
	return items, nil
}

type fakeGateway struct {
	mu       sync.Mutex
	calls    int
	failNext bool
}

func (f *fakeGateway) CreateOrder(_ context.Context, _ int64, receipt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return "", errors.New("gateway unavailable")
	}
	f.calls++
	return "order_gw_" + receipt, nil
}

func (f *fakeGateway) Currency() string { return "INR" }

// fakeTransactor runs the unit of work directly; the fake repositories
// mutate in place, so there is nothing to roll back.
type fakeTransactor struct{}

func (fakeTransactor) WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	return txFunc(ctx)
}

type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []entities.WebhookAuditEntry
}

func (f *fakeAuditRepo) Insert(_ context.Context, entry *entities.WebhookAuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeAuditRepo) FindByOrderID(_ context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var entries []entities.WebhookAuditEntry
	for _, e := range f.entries {
		if e.OrderID != nil && *e.OrderID == orderID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}
