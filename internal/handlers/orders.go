package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

type OrderService interface {
	Checkout(ctx context.Context, userID uuid.UUID, lines []entities.CartLine, idempotencyKey string) (*entities.CheckoutResult, error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*entities.Order, error)
	GetUserOrders(ctx context.Context, userID uuid.UUID) ([]entities.Order, error)
	ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset int) ([]entities.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, next entities.OrderStatus) error
}
