package usecases

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/pkg/cache"
)

func newMenuFixture(t *testing.T) (*MenuService, *fakeCatalog, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := cache.New(testLogger(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	catalog := newFakeCatalog(
		entities.MenuItem{ID: uuid.New(), Name: "Masala Dosa", Price: 4500, IsAvailable: true},
		entities.MenuItem{ID: uuid.New(), Name: "Off Menu", Price: 9000, IsAvailable: false},
	)

	return NewMenuService(testLogger(), catalog, client), catalog, mr
}

func TestListItemsServesFromCacheAfterFirstRead(t *testing.T) {
	svc, catalog, _ := newMenuFixture(t)
	ctx := context.Background()

	items, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1, "only available items are served")
	require.Equal(t, 1, catalog.listCalls)

	items, err = svc.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, 1, catalog.listCalls, "second read must come from the cache")
}

func TestListItemsFallsBackWhenCacheDown(t *testing.T) {
	svc, catalog, mr := newMenuFixture(t)
	mr.Close()

	items, err := svc.ListItems(context.Background())
	require.NoError(t, err, "a cache outage must not take the menu down")
	require.Len(t, items, 1)
	require.Equal(t, 1, catalog.listCalls)
}

func TestInvalidateCacheForcesReload(t *testing.T) {
	svc, catalog, _ := newMenuFixture(t)
	ctx := context.Background()

	_, err := svc.ListItems(ctx)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateCache(ctx))

	_, err = svc.ListItems(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, catalog.listCalls)
}
