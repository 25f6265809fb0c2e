package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/pkg/database"
)

// WebhookAuditRepository journals every inbound gateway notification.
// Insert-only: rows are never updated or deleted.
type WebhookAuditRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewWebhookAuditRepository(logger *slog.Logger, pg *database.Postgres) *WebhookAuditRepository {
	return &WebhookAuditRepository{logger: logger, db: pg.DBGetter}
}

// Insert appends one audit entry for a webhook delivery.
func (r *WebhookAuditRepository) Insert(ctx context.Context, entry *entities.WebhookAuditEntry) error {
	entry.ID = uuid.New()
	entry.CreatedAt = time.Now().UTC()

	_, err := r.db(ctx).Exec(ctx,
		`INSERT INTO webhook_logs (id, source, event_type, payload, signature_valid, processed, processing_error, order_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID,
		entry.Source,
		entry.EventType,
		entry.Payload,
		entry.SignatureValid,
		entry.Processed,
		entry.ProcessingError,
		entry.OrderID,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert webhook audit entry: %w", err)
	}

	return nil
}

// FindByOrderID returns the audit trail for an order, oldest first. Used
// when investigating payment disputes.
func (r *WebhookAuditRepository) FindByOrderID(ctx context.Context, orderID uuid.UUID) ([]entities.WebhookAuditEntry, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, source, event_type, payload, signature_valid, processed, processing_error, order_id, created_at
		   FROM webhook_logs
		  WHERE order_id = $1
		  ORDER BY created_at`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook audit entries: %w", err)
	}
	defer rows.Close()

	var entries []entities.WebhookAuditEntry
	for rows.Next() {
		var e entities.WebhookAuditEntry
		if err := rows.Scan(
			&e.ID, &e.Source, &e.EventType, &e.Payload,
			&e.SignatureValid, &e.Processed, &e.ProcessingError,
			&e.OrderID, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read webhook audit rows: %w", err)
	}

	return entries, nil
}
