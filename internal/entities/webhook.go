package entities

import (
	"time"

	"github.com/google/uuid"
)

// WebhookAuditEntry is the append-only record of an inbound gateway
// notification. One row per delivery, including invalid or unprocessable
// ones; rows are never updated or deleted. This is the forensic trail for
// payment disputes.
type WebhookAuditEntry struct {
	ID              uuid.UUID  `json:"id"`
	Source          string     `json:"source"`
	EventType       string     `json:"event_type"`
	Payload         []byte     `json:"payload"`
	SignatureValid  bool       `json:"signature_valid"`
	Processed       bool       `json:"processed"`
	ProcessingError string     `json:"processing_error,omitempty"`
	OrderID         *uuid.UUID `json:"order_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}
