package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

const (
	menuCacheKey = "app:menu:all"
	menuCacheTTL = time.Hour
)

// MenuCache is the read-through cache in front of the catalog.
type MenuCache interface {
	GetJSON(ctx context.Context, key string, target any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// MenuService serves the public menu. Reads go through Redis; a cache
// outage degrades to direct catalog reads instead of failing the request.
type MenuService struct {
	logger  *slog.Logger
	catalog CatalogRepository
	cache   MenuCache
}

func NewMenuService(logger *slog.Logger, catalog CatalogRepository, cache MenuCache) *MenuService {
	return &MenuService{
		logger:  logger,
		catalog: catalog,
		cache:   cache,
	}
}

// ListItems returns all available menu items.
func (s *MenuService) ListItems(ctx context.Context) ([]entities.MenuItem, error) {
	var items []entities.MenuItem

	found, err := s.cache.GetJSON(ctx, menuCacheKey, &items)
	if err != nil {
		s.logger.Warn("Menu cache read failed, falling back to store", "error", err)
	}
	if found {
		return items, nil
	}

	items, err = s.catalog.ListAvailable(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load menu: %w", err)
	}

	if err = s.cache.SetJSON(ctx, menuCacheKey, items, menuCacheTTL); err != nil {
		s.logger.Warn("Menu cache write failed", "error", err)
	}

	return items, nil
}

// InvalidateCache drops the cached menu after catalog changes.
func (s *MenuService) InvalidateCache(ctx context.Context) error {
	return s.cache.Delete(ctx, menuCacheKey)
}
