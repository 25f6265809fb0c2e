package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

type PaymentService interface {
	VerifyAndCommit(ctx context.Context, orderID uuid.UUID, gatewayOrderID, gatewayPaymentID, signature string) error
}

type WebhookService interface {
	Ingest(ctx context.Context, body []byte, signature string) error
	History(ctx context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error)
}
