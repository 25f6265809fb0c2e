package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/pkg/database"
)

const orderColumns = `id, user_id, status, total_amount, razorpay_order_id, razorpay_payment_id, version, created_at, updated_at`

// OrdersRepository owns all mutating access to order rows. Conditional
// version updates and the locked payment commit live here; callers never
// touch order state through any other path.
type OrdersRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

func NewOrdersRepository(logger *slog.Logger, pg *database.Postgres) *OrdersRepository {
	return &OrdersRepository{logger: logger, db: pg.DBGetter, transactor: pg.Transactor}
}

// InsertOrder persists a new order and its line snapshots as one atomic
// unit. The order starts at version 1 in PENDING.
func (r *OrdersRepository) InsertOrder(ctx context.Context, order *entities.Order) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		order.ID = uuid.New()
		order.Status = entities.OrderStatusPending
		order.Version = 1
		now := time.Now().UTC()
		order.CreatedAt = now
		order.UpdatedAt = now

		_, err := r.db(ctx).Exec(ctx,
			`INSERT INTO orders (id, user_id, status, total_amount, version, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, order.UserID, order.Status, order.TotalAmount, order.Version, order.CreatedAt, order.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert order: %w", err)
		}

		for i := range order.Items {
			order.Items[i].ID = uuid.New()
			order.Items[i].OrderID = order.ID
			order.Items[i].CreatedAt = now

			_, err = r.db(ctx).Exec(ctx,
				`INSERT INTO order_items (id, order_id, menu_item_id, name, price, quantity, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				order.Items[i].ID, order.ID, order.Items[i].MenuItemID,
				order.Items[i].Name, order.Items[i].Price, order.Items[i].Quantity, now)
			if err != nil {
				return fmt.Errorf("failed to insert order item: %w", err)
			}
		}

		return nil
	})
}

// FindByID retrieves an order together with its line snapshots.
func (r *OrdersRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Order, error) {
	order, err := r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return nil, err
	}

	items, err := r.findOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// FindByRazorpayOrderID resolves an order by its gateway order reference.
// Used by the webhook path and the client payment callback.
func (r *OrdersRepository) FindByRazorpayOrderID(ctx context.Context, razorpayOrderID string) (*entities.Order, error) {
	return r.scanOrder(r.db(ctx).QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE razorpay_order_id = $1`, razorpayOrderID))
}

// FindUserOrders returns all orders for a user, newest first.
func (r *OrdersRepository) FindUserOrders(ctx context.Context, userID uuid.UUID) ([]entities.Order, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query user orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

// ListOrders returns orders for the admin view, optionally filtered by
// status, newest first.
func (r *OrdersRepository) ListOrders(ctx context.Context, status entities.OrderStatus, limit, offset int) ([]entities.Order, error) {
	builder := sq.Select(
		"id", "user_id", "status", "total_amount",
		"razorpay_order_id", "razorpay_payment_id",
		"version", "created_at", "updated_at").
		From("orders").
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		PlaceholderFormat(sq.Dollar)

	if status != "" {
		builder = builder.Where(sq.Eq{"status": status})
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build orders query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

// SetRazorpayOrderID records the gateway order reference and moves the
// order to AWAITING_PAYMENT. Conditional on the caller's observed version;
// a concurrent mutation surfaces as ErrVersionConflict and the caller must
// re-read.
func (r *OrdersRepository) SetRazorpayOrderID(ctx context.Context, orderID uuid.UUID, razorpayOrderID string, expectedVersion int) error {
	res, err := r.db(ctx).Exec(ctx,
		`UPDATE orders
		    SET razorpay_order_id = $2, status = $3, version = version + 1, updated_at = NOW()
		  WHERE id = $1 AND version = $4`,
		orderID, razorpayOrderID, entities.OrderStatusAwaitingPayment, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to set razorpay order id: %w", err)
	}

	if res.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, orderID)
	}

	return nil
}

// CommitPayment is the exactly-once payment commit. It locks the single
// order row, re-reads the status under the lock and only then writes:
//
//   - already PAID or later: no mutation, nil error (idempotent
//     short-circuit, which is what makes concurrent redundant commits safe);
//   - version moved and not yet paid: ErrVersionConflict;
//   - otherwise: set PAID, store the payment reference, bump version.
//
// Both racing payment paths (client callback and webhook) funnel through
// this method; the second writer to reach the lock observes a terminal
// state and performs a no-op.
func (r *OrdersRepository) CommitPayment(ctx context.Context, orderID uuid.UUID, razorpayPaymentID string, expectedVersion int) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		var currentStatus entities.OrderStatus
		var currentVersion int

		err := r.db(ctx).QueryRow(ctx,
			`SELECT status, version FROM orders WHERE id = $1 FOR UPDATE`, orderID).
			Scan(&currentStatus, &currentVersion)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return entities.ErrNotFound
			}
			return fmt.Errorf("failed to lock order row: %w", err)
		}

		if currentStatus.AtLeastPaid() {
			r.logger.Info("Payment already committed, skipping",
				"order_id", orderID, "status", currentStatus)
			return nil
		}

		if currentVersion != expectedVersion {
			return entities.ErrVersionConflict
		}

		_, err = r.db(ctx).Exec(ctx,
			`UPDATE orders
			    SET status = $2, razorpay_payment_id = $3, version = version + 1, updated_at = NOW()
			  WHERE id = $1`,
			orderID, entities.OrderStatusPaid, razorpayPaymentID)
		if err != nil {
			return fmt.Errorf("failed to commit payment: %w", err)
		}

		r.logger.Info("Payment committed", "order_id", orderID, "payment_id", razorpayPaymentID)
		return nil
	})
}

// UpdateStatus performs a generic conditional status update. Transition
// validity is the caller's responsibility (checked against the lifecycle
// table before any store access).
func (r *OrdersRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, next entities.OrderStatus, expectedVersion int) error {
	res, err := r.db(ctx).Exec(ctx,
		`UPDATE orders
		    SET status = $2, version = version + 1, updated_at = NOW()
		  WHERE id = $1 AND version = $3`,
		orderID, next, expectedVersion)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}

	if res.RowsAffected() == 0 {
		return r.conflictOrNotFound(ctx, orderID)
	}

	return nil
}

// FindStaleUnpaid returns orders stuck in PENDING or AWAITING_PAYMENT for
// longer than olderThan, oldest first. The expirer worker fails each one
// through the optimistic path so a concurrently arriving payment wins.
func (r *OrdersRepository) FindStaleUnpaid(ctx context.Context, olderThan time.Duration, limit int) ([]entities.Order, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+orderColumns+`
		   FROM orders
		  WHERE status = ANY($1) AND updated_at < NOW() - make_interval(secs => $2)
		  ORDER BY updated_at
		  LIMIT $3`,
		[]string{string(entities.OrderStatusPending), string(entities.OrderStatusAwaitingPayment)},
		olderThan.Seconds(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale orders: %w", err)
	}
	defer rows.Close()

	return r.collectOrders(rows)
}

func (r *OrdersRepository) conflictOrNotFound(ctx context.Context, orderID uuid.UUID) error {
	var exists bool
	if err := r.db(ctx).QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, orderID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check order existence: %w", err)
	}
	if !exists {
		return entities.ErrNotFound
	}
	return entities.ErrVersionConflict
}

func (r *OrdersRepository) findOrderItems(ctx context.Context, orderID uuid.UUID) ([]entities.OrderItem, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT id, order_id, menu_item_id, name, price, quantity, created_at
		   FROM order_items
		  WHERE order_id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to query order items: %w", err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.OrderItem])
	if err != nil {
		return nil, fmt.Errorf("failed to collect order items: %w", err)
	}

	return items, nil
}

func (r *OrdersRepository) scanOrder(row pgx.Row) (*entities.Order, error) {
	order := &entities.Order{}
	var razorpayOrderID, razorpayPaymentID *string

	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Status,
		&order.TotalAmount,
		&razorpayOrderID,
		&razorpayPaymentID,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entities.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan order: %w", err)
	}

	if razorpayOrderID != nil {
		order.RazorpayOrderID = *razorpayOrderID
	}
	if razorpayPaymentID != nil {
		order.RazorpayPaymentID = *razorpayPaymentID
	}

	return order, nil
}

func (r *OrdersRepository) collectOrders(rows pgx.Rows) ([]entities.Order, error) {
	var orders []entities.Order
	for rows.Next() {
		order, err := r.scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read order rows: %w", err)
	}
	return orders, nil
}
