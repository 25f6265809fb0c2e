package handlers

import (
	"context"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

type MenuService interface {
	ListItems(ctx context.Context) ([]entities.MenuItem, error)
}
