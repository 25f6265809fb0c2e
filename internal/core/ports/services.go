package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

// OrderService defines the interface for order lifecycle operations.
type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, lines []entities.CartLine, idempotencyKey string) (*entities.CheckoutResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*entities.Order, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]entities.Order, error)
	ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset int) ([]entities.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next entities.OrderStatus) error
	ExpireStalePayments(ctx context.Context, olderThan time.Duration) (int, error)
}

// PaymentService defines the interface for the client payment callback.
type PaymentService interface {
	VerifyAndCommit(ctx context.Context, orderID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) error
}

// WebhookService defines the interface for gateway webhook reconciliation.
type WebhookService interface {
	Ingest(ctx context.Context, body []byte, signature string) error
	History(ctx context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error)
}

// MenuService defines the interface for the public menu.
type MenuService interface {
	ListItems(ctx context.Context) ([]entities.MenuItem, error)
	InvalidateCache(ctx context.Context) error
}
