package clients

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache shares cached commerce responses between BFF instances. Each tag
// is a set of the keys stored under it.
type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client, prefix string) *RedisCache {
	if prefix == "" {
		prefix = "storefront:cache:"
	}
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) entryKey(key string) string { return r.prefix + "entry:" + key }
func (r *RedisCache) tagKey(tag string) string   { return r.prefix + "tag:" + tag }

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.entryKey(key), value, ttl)
	for _, tag := range tags {
		pipe.SAdd(ctx, r.tagKey(tag), key)
		// EXPIRE 0 would delete the set; entries without ttl keep their tags forever
		if ttl > 0 {
			pipe.Expire(ctx, r.tagKey(tag), ttl)
		}
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisCache) InvalidateTag(ctx context.Context, tag string) error {
	keys, err := r.client.SMembers(ctx, r.tagKey(tag)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	toDelete := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		toDelete = append(toDelete, r.entryKey(k))
	}
	toDelete = append(toDelete, r.tagKey(tag))
	return r.client.Del(ctx, toDelete...).Err()
}
