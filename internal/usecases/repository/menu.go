package repository

import (
	"context"
	"fmt"
	"log/slog"

	tx "github.com/Thiht/transactor/pgx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/pkg/database"
)

const menuColumns = `id, name, description, price, category, is_available, created_at, updated_at`

// MenuRepository is the read-only catalog lookup. Catalog administration
// is owned by a separate surface and is not part of this engine.
type MenuRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

func NewMenuRepository(logger *slog.Logger, pg *database.Postgres) *MenuRepository {
	return &MenuRepository{logger: logger, db: pg.DBGetter}
}

// ListAvailable returns all currently orderable items.
func (r *MenuRepository) ListAvailable(ctx context.Context) ([]entities.MenuItem, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE is_available = true ORDER BY category, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items: %w", err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.MenuItem])
	if err != nil {
		return nil, fmt.Errorf("failed to collect menu items: %w", err)
	}

	return items, nil
}

// FindByIDs returns the current catalog rows for the given item ids,
// available or not. Pricing decisions stay with the caller.
func (r *MenuRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]entities.MenuItem, error) {
	rows, err := r.db(ctx).Query(ctx,
		`SELECT `+menuColumns+` FROM menu_items WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query menu items by ids: %w", err)
	}
	defer rows.Close()

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.MenuItem])
	if err != nil {
		return nil, fmt.Errorf("failed to collect menu items: %w", err)
	}

	return items, nil
}
