package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerspace/makeradmin/internal/config"
	"github.com/makerspace/makeradmin/internal/models"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	c, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestCache_CatalogRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	catalog := []models.Category{{
		ID:   1,
		Name: "Membership",
		Items: []models.Product{
			{ID: 10, CategoryID: 1, Name: "Lab access 30 days", Unit: "month", Price: models.Money(30000), SmallestMultiple: 1},
		},
	}}
	require.NoError(t, c.Set(ctx, "shop:product_data", catalog, time.Minute))

	var got []models.Category
	found, err := c.Get(ctx, "shop:product_data", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, catalog, got)
}

func TestCache_Miss(t *testing.T) {
	c, _ := newTestCache(t)

	var out []models.Category
	found, err := c.Get(context.Background(), "shop:product_data", &out)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, out)
}

func TestCache_InvalidateSeveralKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "shop:product_data", []int{1}, 0))
	require.NoError(t, c.Set(ctx, "shop:membership_products", []int{2}, 0))
	require.NoError(t, c.Invalidate(ctx, "shop:product_data", "shop:membership_products", "missing"))

	assert.False(t, mr.Exists("shop:product_data"))
	assert.False(t, mr.Exists("shop:membership_products"))
}

func TestCache_CorruptValue(t *testing.T) {
	c, mr := newTestCache(t)
	require.NoError(t, mr.Set("shop:product_data", "not-json"))

	var out []models.Category
	found, err := c.Get(context.Background(), "shop:product_data", &out)
	assert.False(t, found)
	assert.ErrorContains(t, err, "cache.Get")
}

func TestCache_Expires(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "shop:product_data", []int{1}, time.Minute))
	mr.FastForward(2 * time.Minute)

	var out []int
	found, err := c.Get(ctx, "shop:product_data", &out)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInitServer_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	c, err := InitServer(context.Background(), config.RedisConnection{AddressRedis: addr, DialTimeout: time.Second})
	assert.Nil(t, c)
	assert.ErrorContains(t, err, "cache.InitServer")
}
