package entities

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus is the lifecycle state of an order.
// PENDING -> AWAITING_PAYMENT -> PAID/PAYMENT_FAILED -> ACCEPTED -> DELIVERED
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusAwaitingPayment OrderStatus = "AWAITING_PAYMENT"
	OrderStatusPaid            OrderStatus = "PAID"
	OrderStatusPaymentFailed   OrderStatus = "PAYMENT_FAILED"
	OrderStatusAccepted        OrderStatus = "ACCEPTED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
)

// validTransitions is the full transition table. DELIVERED is terminal,
// PAYMENT_FAILED -> AWAITING_PAYMENT allows payment retry.
var validTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:         {OrderStatusAwaitingPayment, OrderStatusPaymentFailed},
	OrderStatusAwaitingPayment: {OrderStatusPaid, OrderStatusPaymentFailed},
	OrderStatusPaymentFailed:   {OrderStatusAwaitingPayment},
	OrderStatusPaid:            {OrderStatusAccepted},
	OrderStatusAccepted:        {OrderStatusDelivered},
}

// CanTransitionTo reports whether next is a legal transition from s.
// Pure table lookup, no I/O; callers must check before touching the store.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// AtLeastPaid reports whether s is PAID or later in the lifecycle. The
// payment paths use it to decide that a commit is already reflected.
func (s OrderStatus) AtLeastPaid() bool {
	switch s {
	case OrderStatusPaid, OrderStatusAccepted, OrderStatusDelivered:
		return true
	}
	return false
}

// Order represents a customer order with payment tracking. Version enables
// optimistic locking: every mutation states the version it observed and a
// successful mutation increments it by exactly one.
type Order struct {
	ID                uuid.UUID   `json:"id"`
	UserID            uuid.UUID   `json:"user_id"`
	Status            OrderStatus `json:"status"`
	TotalAmount       int64       `json:"total_amount"` // minor currency units
	RazorpayOrderID   string      `json:"razorpay_order_id,omitempty"`
	RazorpayPaymentID string      `json:"razorpay_payment_id,omitempty"`
	Version           int         `json:"version"`
	Items             []OrderItem `json:"items,omitempty"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// OrderItem is an immutable snapshot of a menu item at order creation.
// Never mutated afterwards, even if the catalog price changes.
type OrderItem struct {
	ID         uuid.UUID `json:"id"`
	OrderID    uuid.UUID `json:"order_id"`
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Price      int64     `json:"price"` // unit price at order time, minor units
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// Subtotal returns the line subtotal in minor units.
func (i *OrderItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// CartLine is a client-submitted order line. Only the item reference and
// quantity are taken from the client; prices always come from the catalog.
type CartLine struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Quantity   int       `json:"quantity"`
}

// CheckoutResult is what a checkout hands back to the client: enough to
// start the gateway payment flow. Replayed marks an idempotent replay that
// returned a previously created order.
type CheckoutResult struct {
	OrderID         uuid.UUID `json:"order_id"`
	RazorpayOrderID string    `json:"razorpay_order_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
	Replayed        bool      `json:"replayed,omitempty"`
}
