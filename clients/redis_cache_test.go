package clients

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewRedisCache(client, "")
}

func TestRedisCache_KeyLayout(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:0"})
	defer client.Close()

	c := NewRedisCache(client, "")
	assert.Equal(t, "storefront:cache:entry:abc", c.entryKey("abc"))
	assert.Equal(t, "storefront:cache:tag:carts-browser-1", c.tagKey(CacheTag("carts", "browser-1")))

	c = NewRedisCache(client, "storefront:")
	assert.Equal(t, "storefront:entry:abc", c.entryKey("abc"))
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err, "a missing key is a miss, not an error")
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "k1", []byte(`{"n":1}`), []string{"carts-b1"}, time.Minute))

	val, ok, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"n":1}`, string(val))

	members, err := mr.Members(c.tagKey("carts-b1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"k1"}, members)
	assert.Equal(t, time.Minute, mr.TTL(c.entryKey("k1")))
	assert.Equal(t, time.Minute, mr.TTL(c.tagKey("carts-b1")))

	mr.FastForward(time.Minute + time.Second)
	_, ok, err = c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists(c.tagKey("carts-b1")))
}

func TestRedisCache_SetWithoutTTLKeepsTags(t *testing.T) {
	mr, c := setupRedis(t)

	require.NoError(t, c.Set(context.Background(), "k1", []byte("v"), []string{"carts-b1"}, 0))

	assert.True(t, mr.Exists(c.entryKey("k1")))
	assert.True(t, mr.Exists(c.tagKey("carts-b1")))
	assert.Zero(t, mr.TTL(c.tagKey("carts-b1")))
}

func TestRedisCache_InvalidateTag(t *testing.T) {
	mr, c := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "cart", []byte("a"), []string{"carts-b1"}, time.Minute))
	require.NoError(t, c.Set(ctx, "options", []byte("b"), []string{"carts-b1", "fulfillment-b1"}, time.Minute))
	require.NoError(t, c.Set(ctx, "other", []byte("c"), []string{"carts-b2"}, time.Minute))

	require.NoError(t, c.InvalidateTag(ctx, "carts-b1"))

	for _, key := range []string{"cart", "options"} {
		_, ok, err := c.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
	_, ok, err := c.Get(ctx, "other")
	require.NoError(t, err)
	assert.True(t, ok, "another browser's entry survives")
	assert.False(t, mr.Exists(c.tagKey("carts-b1")))

	require.NoError(t, c.InvalidateTag(ctx, "never-used"))
}

func TestRedisCache_ServerDown(t *testing.T) {
	mr, c := setupRedis(t)
	mr.Close()

	_, ok, err := c.Get(context.Background(), "k1")
	assert.Error(t, err)
	assert.False(t, ok)
	assert.Error(t, c.Set(context.Background(), "k1", []byte("v"), nil, time.Minute))
}

func TestCommerceClient_RedisRevalidation(t *testing.T) {
	_, cache := setupRedis(t)

	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewCommerceClient(srv.URL, "", time.Second, cache, time.Minute, nil)
	auth := RequestAuth{CacheID: "b1"}
	opts := FetchOptions{Cache: CacheForce, Tags: []string{"carts"}, Auth: auth}
	ctx := context.Background()

	require.NoError(t, c.Fetch(ctx, http.MethodGet, "/store/carts/cart_1", opts, nil))
	require.NoError(t, c.Fetch(ctx, http.MethodGet, "/store/carts/cart_1", opts, nil))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))

	c.Revalidate(ctx, auth, "carts")
	require.NoError(t, c.Fetch(ctx, http.MethodGet, "/store/carts/cart_1", opts, nil))
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}
