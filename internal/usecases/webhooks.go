package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

const (
	webhookSource        = "razorpay"
	eventPaymentCaptured = "payment.captured"
	eventPaymentFailed   = "payment.failed"
)

type WebhookAuditRepository interface {
	Insert(ctx context.Context, entry *entities.WebhookAuditEntry) error
	FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error)
}

// razorpayEvent mirrors the gateway's webhook envelope down to the fields
// the reconciler needs.
type razorpayEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Transactor composes repository calls into one database transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, txFunc func(ctx context.Context) error) error
}

// WebhookService reconciles gateway deliveries against the order store.
// Every delivery leaves one audit row regardless of outcome, and replays
// of already-applied events are harmless.
type WebhookService struct {
	logger        *slog.Logger
	orders        OrdersRepository
	audit         WebhookAuditRepository
	transactor    Transactor
	webhookSecret string
}

func NewWebhookService(logger *slog.Logger, orders OrdersRepository, audit WebhookAuditRepository, transactor Transactor, webhookSecret string) *WebhookService {
	return &WebhookService{
		logger:        logger,
		orders:        orders,
		audit:         audit,
		transactor:    transactor,
		webhookSecret: webhookSecret,
	}
}

// Ingest authenticates, applies and journals one webhook delivery.
// ErrSignatureInvalid is the only error the transport should turn into a
// rejection; processing failures are journaled and swallowed so the
// gateway does not redeliver forever on our internal problems.
func (s *WebhookService) Ingest(ctx context.Context, body []byte, signature string) error {
	entry := &entities.WebhookAuditEntry{
		Source:  webhookSource,
		Payload: body,
	}

	if !VerifyWebhookSignature(s.webhookSecret, body, signature) {
		s.logger.Warn("Rejected webhook with invalid signature", "bytes", len(body))
		s.journal(ctx, entry)
		return entities.ErrSignatureInvalid
	}
	entry.SignatureValid = true

	var event razorpayEvent
	if err := json.Unmarshal(body, &event); err != nil {
		entry.ProcessingError = fmt.Sprintf("malformed payload: %v", err)
		s.journal(ctx, entry)
		return nil
	}
	entry.EventType = event.Event

	switch event.Event {
	case eventPaymentCaptured, eventPaymentFailed:
		// State change and audit row commit as one transaction, so a crash
		// can never leave an applied event without its journal entry.
		txErr := s.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
			orderID, err := s.apply(ctx, event)
			if orderID != uuid.Nil {
				entry.OrderID = &orderID
			}
			if err != nil {
				entry.ProcessingError = err.Error()
				s.logger.Error("Webhook processing failed", "event", event.Event, "error", err)
			} else {
				entry.Processed = true
			}
			return s.audit.Insert(ctx, entry)
		})
		if txErr != nil {
			s.logger.Error("Failed to journal webhook delivery", "event", entry.EventType, "error", txErr)
		}
		return nil
	default:
		// Unhandled event types are journaled and acknowledged.
		s.logger.Debug("Ignoring webhook event", "event", event.Event)
		entry.Processed = true
	}

	s.journal(ctx, entry)
	return nil
}

func (s *WebhookService) apply(ctx context.Context, event razorpayEvent) (uuid.UUID, error) {
	gatewayOrderID := event.Payload.Payment.Entity.OrderID
	if gatewayOrderID == "" {
		return uuid.Nil, errors.New("event without gateway order id")
	}

	order, err := s.orders.FindByRazorpayOrderID(ctx, gatewayOrderID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve order for %s: %w", gatewayOrderID, err)
	}

	switch event.Event {
	case eventPaymentCaptured:
		return order.ID, s.applyCaptured(ctx, order, event.Payload.Payment.Entity.ID)
	case eventPaymentFailed:
		return order.ID, s.applyFailed(ctx, order)
	}
	return order.ID, nil
}

func (s *WebhookService) applyCaptured(ctx context.Context, order *entities.Order, paymentID string) error {
	err := s.orders.CommitPayment(ctx, order.ID, paymentID, order.Version)
	if errors.Is(err, entities.ErrVersionConflict) {
		fresh, ferr := s.orders.FindByID(ctx, order.ID)
		if ferr != nil {
			return ferr
		}
		if fresh.Status.AtLeastPaid() {
			return nil
		}
		err = s.orders.CommitPayment(ctx, order.ID, paymentID, fresh.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to commit payment: %w", err)
	}

	s.logger.Info("Payment captured via webhook", "order_id", order.ID, "payment_id", paymentID)
	return nil
}

func (s *WebhookService) applyFailed(ctx context.Context, order *entities.Order) error {
	// A failure event must never undo a successful payment that raced in
	// through the other path.
	if order.Status.AtLeastPaid() {
		s.logger.Info("Ignoring failure event for paid order", "order_id", order.ID)
		return nil
	}
	if !order.Status.CanTransitionTo(entities.OrderStatusPaymentFailed) {
		return nil
	}

	err := s.orders.UpdateStatus(ctx, order.ID, entities.OrderStatusPaymentFailed, order.Version)
	if errors.Is(err, entities.ErrVersionConflict) {
		fresh, ferr := s.orders.FindByID(ctx, order.ID)
		if ferr != nil {
			return ferr
		}
		if fresh.Status.AtLeastPaid() || !fresh.Status.CanTransitionTo(entities.OrderStatusPaymentFailed) {
			return nil
		}
		err = s.orders.UpdateStatus(ctx, order.ID, entities.OrderStatusPaymentFailed, fresh.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to mark payment failed: %w", err)
	}

	s.logger.Info("Payment failed via webhook", "order_id", order.ID)
	return nil
}

// History returns the audit trail recorded for an order.
func (s *WebhookService) History(ctx context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error) {
	return s.audit.FindByOrderID(ctx, orderID)
}

func (s *WebhookService) journal(ctx context.Context, entry *entities.WebhookAuditEntry) {
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.logger.Error("Failed to journal webhook delivery", "event", entry.EventType, "error", err)
	}
}
