package buyerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/juliakaiko/orderservice/internal/domain/buyer"
)

// Cache stores serialized profiles. Get reports a miss with ok == false.
type Cache interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache is a Cache on a Redis client.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

// NewRedisCache wraps client.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrapf(err, "redis get %s", key)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// CachedDirectory memoizes successful lookups of another Directory. Cache
// failures are logged and fall through to the directory. Misses are not
// cached.
type CachedDirectory struct {
	next  buyer.Directory
	cache Cache
	ttl   time.Duration
}

var _ buyer.Directory = (*CachedDirectory)(nil)

// NewCachedDirectory returns next wrapped with cache. A non-positive ttl
// defaults to one minute.
func NewCachedDirectory(next buyer.Directory, cache Cache, ttl time.Duration) *CachedDirectory {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &CachedDirectory{next: next, cache: cache, ttl: ttl}
}

func idKey(id int64) string { return fmt.Sprintf("orders:buyer:id:%d", id) }

func emailKey(email string) string {
	return "orders:buyer:email:" + strings.ToLower(strings.TrimSpace(email))
}

func (d *CachedDirectory) ByID(ctx context.Context, id int64) (*buyer.Profile, error) {
	return d.lookup(ctx, idKey(id), func() (*buyer.Profile, error) {
		return d.next.ByID(ctx, id)
	})
}

func (d *CachedDirectory) ByEmail(ctx context.Context, email string) (*buyer.Profile, error) {
	return d.lookup(ctx, emailKey(email), func() (*buyer.Profile, error) {
		return d.next.ByEmail(ctx, email)
	})
}

func (d *CachedDirectory) lookup(ctx context.Context, key string, load func() (*buyer.Profile, error)) (*buyer.Profile, error) {
	lg := zctx.From(ctx)

	raw, ok, err := d.cache.Get(ctx, key)
	switch {
	case err != nil:
		lg.Warn("Buyer cache read failed", zap.String("key", key), zap.Error(err))
	case ok:
		var p buyer.Profile
		if err := json.Unmarshal(raw, &p); err == nil {
			return &p, nil
		}
		lg.Warn("Dropping corrupt buyer cache entry", zap.String("key", key))
	}

	p, err := load()
	if err != nil {
		return nil, err
	}

	raw, err = json.Marshal(p)
	if err != nil {
		return p, nil
	}
	// Fill both keys so lookups by either one hit afterwards.
	keys := []string{idKey(p.ID)}
	if p.Email != "" {
		keys = append(keys, emailKey(p.Email))
	}
	for _, k := range keys {
		if err := d.cache.Set(ctx, k, raw, d.ttl); err != nil {
			lg.Warn("Buyer cache write failed", zap.String("key", k), zap.Error(err))
		}
	}
	return p, nil
}
