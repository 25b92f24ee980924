package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderbuddy/orderbuddy/internal/domain"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })

	return NewRedisCache(client), mr
}

func testItems(customerID string) []domain.CartItem {
	return []domain.CartItem{
		{ID: "i1", CustomerID: customerID, ProductID: "p1", Quantity: 2, CreatedAt: time.Now().UTC()},
		{ID: "i2", CustomerID: customerID, ProductID: "p2", Quantity: 1, CreatedAt: time.Now().UTC()},
	}
}

func TestGet_Success(t *testing.T) {
	c, mr := setupTestRedis(t)
	items := testItems("cust-1")

	data, _ := json.Marshal(items)
	mr.Set(cacheKey("cust-1"), string(data))

	got, err := c.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "p1", got[0].ProductID)
	assert.Equal(t, 2, got[0].Quantity)
}

func TestGet_CacheMiss(t *testing.T) {
	c, _ := setupTestRedis(t)

	_, err := c.Get(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestGet_InvalidJSON(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Set(cacheKey("cust-1"), "{not json")

	_, err := c.Get(context.Background(), "cust-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_AppliesTTLWithJitter(t *testing.T) {
	c, mr := setupTestRedis(t)

	require.NoError(t, c.Set(context.Background(), "cust-1", testItems("cust-1")))

	assert.True(t, mr.Exists(cacheKey("cust-1")))
	ttl := mr.TTL(cacheKey("cust-1"))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.Less(t, ttl, 20*time.Minute)

	mr.FastForward(21 * time.Minute)
	_, err := c.Get(context.Background(), "cust-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestSet_EmptyCart(t *testing.T) {
	c, _ := setupTestRedis(t)

	require.NoError(t, c.Set(context.Background(), "cust-1", []domain.CartItem{}))
	got, err := c.Get(context.Background(), "cust-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDelete(t *testing.T) {
	c, mr := setupTestRedis(t)
	require.NoError(t, c.Set(context.Background(), "cust-1", testItems("cust-1")))

	require.NoError(t, c.Delete(context.Background(), "cust-1"))
	assert.False(t, mr.Exists(cacheKey("cust-1")))

	// deleting a missing key is not an error
	require.NoError(t, c.Delete(context.Background(), "cust-1"))
}

func TestRedisErrors(t *testing.T) {
	c, mr := setupTestRedis(t)
	mr.Close()

	_, err := c.Get(context.Background(), "cust-1")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
	assert.Error(t, c.Set(context.Background(), "cust-1", nil))
	assert.Error(t, c.Delete(context.Background(), "cust-1"))
}

func TestNopCache(t *testing.T) {
	var c CartCache = NopCache{}

	require.NoError(t, c.Set(context.Background(), "cust-1", testItems("cust-1")))
	_, err := c.Get(context.Background(), "cust-1")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.NoError(t, c.Delete(context.Background(), "cust-1"))
}
