package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

const (
	defaultListLimit = 50
	maxListLimit     = 100
	expireBatchSize  = 100

	// maxLineQuantity bounds a single cart line, matching the CHECK
	// constraint on order_items.quantity.
	maxLineQuantity = 50
)

type OrdersRepository interface {
	InsertOrder(ctx context.Context, order *entities.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Order, error)
	FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*entities.Order, error)
	FindUserOrders(ctx context.Context, userID uuid.UUID) ([]entities.Order, error)
	ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset int) ([]entities.Order, error)
	SetRazorpayOrderID(ctx context.Context, orderID uuid.UUID, razorpayOrderID string, expectedVersion int) error
	CommitPayment(ctx context.Context, orderID uuid.UUID, razorpayPaymentID string, expectedVersion int) error
	UpdateStatus(ctx context.Context, orderID uuid.UUID, next entities.OrderStatus, expectedVersion int) error
	FindStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]entities.Order, error)
}

type CatalogRepository interface {
	ListAvailable(ctx context.Context) ([]entities.MenuItem, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entities.MenuItem, error)
}

// PaymentGateway creates the remote payment intent for an order.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, receipt string) (string, error)
	Currency() string
}

// OrderService drives the order lifecycle: checkout, queries and the
// administrative progression to ACCEPTED/DELIVERED.
type OrderService struct {
	logger  *slog.Logger
	repo    OrdersRepository
	catalog CatalogRepository
	gateway PaymentGateway
	guard   *IdempotencyGuard
}

func NewOrderService(logger *slog.Logger, repo OrdersRepository, catalog CatalogRepository, gateway PaymentGateway, guard *IdempotencyGuard) *OrderService {
	return &OrderService{
		logger:  logger,
		repo:    repo,
		catalog: catalog,
		gateway: gateway,
		guard:   guard,
	}
}

// Checkout creates an order for the cart and registers it with the payment
// gateway. Duplicate requests inside the idempotency window get the
// previously created identity back instead of a second financial intent.
func (s *OrderService) Checkout(ctx context.Context, userID uuid.UUID, lines []entities.CartLine, idempotencyKey string) (*entities.CheckoutResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: empty cart", entities.ErrItemUnavailable)
	}

	fingerprint := s.guard.Fingerprint(userID, lines, idempotencyKey)

	first, prior, err := s.guard.Reserve(ctx, fingerprint)
	if err != nil {
		return nil, err
	}
	if !first {
		if prior == nil || prior.Pending() {
			return nil, entities.ErrDuplicateRequest
		}
		s.logger.Info("Replaying checkout from idempotency reservation",
			"user_id", userID, "order_id", prior.OrderID)
		return &entities.CheckoutResult{
			OrderID:         prior.OrderID,
			RazorpayOrderID: prior.RazorpayOrderID,
			Amount:          prior.Amount,
			Currency:        prior.Currency,
			Replayed:        true,
		}, nil
	}

	order, err := s.buildOrder(ctx, userID, lines)
	if err != nil {
		s.guard.Release(ctx, fingerprint)
		return nil, err
	}

	if err = s.repo.InsertOrder(ctx, order); err != nil {
		s.guard.Release(ctx, fingerprint)
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	gatewayOrderID, err := s.gateway.CreateOrder(ctx, order.TotalAmount, order.ID.String())
	if err != nil {
		// The order stays PENDING; the expirer fails it if the client does
		// not retry within the payment window. Releasing the reservation
		// lets that retry happen right away.
		s.guard.Release(ctx, fingerprint)
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	if err = s.repo.SetRazorpayOrderID(ctx, order.ID, gatewayOrderID, order.Version); err != nil {
		s.guard.Release(ctx, fingerprint)
		return nil, fmt.Errorf("failed to attach gateway order: %w", err)
	}

	result := CheckoutReservation{
		OrderID:         order.ID,
		RazorpayOrderID: gatewayOrderID,
		Amount:          order.TotalAmount,
		Currency:        s.gateway.Currency(),
	}
	// Best effort: the order already exists, a lost reservation only
	// weakens dedup for the rest of the window.
	_ = s.guard.Complete(ctx, fingerprint, result)

	s.logger.Info("Order created",
		"order_id", order.ID, "user_id", userID,
		"amount", order.TotalAmount, "gateway_order_id", gatewayOrderID)

	return &entities.CheckoutResult{
		OrderID:         result.OrderID,
		RazorpayOrderID: result.RazorpayOrderID,
		Amount:          result.Amount,
		Currency:        result.Currency,
	}, nil
}

// buildOrder recomputes every line from the current catalog. Client-side
// prices or totals are never trusted.
func (s *OrderService) buildOrder(ctx context.Context, userID uuid.UUID, lines []entities.CartLine) (*entities.Order, error) {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: non-positive quantity for item %s", entities.ErrItemUnavailable, line.MenuItemID)
		}
		if line.Quantity > maxLineQuantity {
			return nil, fmt.Errorf("%w: quantity %d for item %s exceeds limit %d",
				entities.ErrItemUnavailable, line.Quantity, line.MenuItemID, maxLineQuantity)
		}
		ids = append(ids, line.MenuItemID)
	}

	menuItems, err := s.catalog.FindByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu items: %w", err)
	}

	byID := make(map[uuid.UUID]entities.MenuItem, len(menuItems))
	for _, item := range menuItems {
		byID[item.ID] = item
	}

	order := &entities.Order{UserID: userID}
	for _, line := range lines {
		item, ok := byID[line.MenuItemID]
		if !ok || !item.IsAvailable {
			return nil, fmt.Errorf("%w: %s", entities.ErrItemUnavailable, line.MenuItemID)
		}

		order.Items = append(order.Items, entities.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			Price:      item.Price,
			Quantity:   line.Quantity,
		})
		order.TotalAmount += item.Price * int64(line.Quantity)
	}

	return order, nil
}

// GetOrder retrieves an order with its items.
func (s *OrderService) GetOrder(ctx context.Context, orderID uuid.UUID) (*entities.Order, error) {
	return s.repo.FindByID(ctx, orderID)
}

// GetUserOrders retrieves all orders for a user.
func (s *OrderService) GetUserOrders(ctx context.Context, userID uuid.UUID) ([]entities.Order, error) {
	return s.repo.FindUserOrders(ctx, userID)
}

// ListOrders is the admin view, optionally filtered by status.
func (s *OrderService) ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset int) ([]entities.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListOrders(ctx, status, limit, offset)
}

// UpdateOrderStatus performs the administrative progression (ACCEPTED,
// DELIVERED). The transition is validated against the lifecycle table
// before the store is touched.
func (s *OrderService) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next entities.OrderStatus) error {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return err
	}

	if !order.Status.CanTransitionTo(next) {
		return fmt.Errorf("%w: %s -> %s", entities.ErrInvalidTransition, order.Status, next)
	}

	if err = s.repo.UpdateStatus(ctx, orderID, next, order.Version); err != nil {
		return err
	}

	s.logger.Info("Order status updated",
		"order_id", orderID, "old_status", order.Status, "new_status", next)

	return nil
}

// ExpireStalePayments fails orders that sat unpaid longer than the payment
// window. Each order goes through the optimistic path with the version
// observed at read time, so a payment landing concurrently wins and the
// conflicting expiry is simply skipped.
func (s *OrderService) ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error) {
	stale, err := s.repo.FindStaleUnpaid(ctx, olderThan, expireBatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale orders: %w", err)
	}

	expired := 0
	for _, order := range stale {
		if !order.Status.CanTransitionTo(entities.OrderStatusPaymentFailed) {
			continue
		}

		err = s.repo.UpdateStatus(ctx, order.ID, entities.OrderStatusPaymentFailed, order.Version)
		if errors.Is(err, entities.ErrVersionConflict) {
			// Someone mutated the order since our read, most likely a late
			// payment. Leave it alone; the next sweep re-evaluates.
			s.logger.Debug("Skipping expiry after concurrent update", "order_id", order.ID)
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("failed to expire order %s: %w", order.ID, err)
		}

		expired++
		s.logger.Info("Expired unpaid order", "order_id", order.ID, "was_status", order.Status)
	}

	return expired, nil
}
