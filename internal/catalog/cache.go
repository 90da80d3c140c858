package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// Cache is a read-through cache-aside layer over product reads. Misses
// for the same key are collapsed with singleflight so a cold key costs
// one store round trip, not one per concurrent reader. Redis failures
// degrade to direct reads.
type Cache struct {
	rdb   *redis.Client
	ttl   time.Duration
	group singleflight.Group
	log   *logrus.Entry
}

func NewCache(rdb *redis.Client, ttl time.Duration, log *logrus.Entry) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// GetJSON loads key into dest, falling back to load on a miss and
// storing the result for ttl.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any, load func(context.Context) (any, error)) error {
	if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		if err := json.Unmarshal(data, dest); err == nil {
			return nil
		}
		// Corrupt entry: fall through and rebuild.
	} else if err != redis.Nil {
		c.log.WithError(err).Warn("cache read failed, loading from store")
	}

	raw, err, _ := c.group.Do(key, func() (any, error) {
		if data, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
			return data, nil
		}
		fresh, err := load(ctx)
		if err != nil {
			return nil, err
		}
		data, err := json.Marshal(fresh)
		if err != nil {
			return nil, err
		}
		if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.WithError(err).Warn("cache write failed")
		}
		return data, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(raw.([]byte), dest)
}

// Invalidate drops the given keys. Errors are logged, not surfaced:
// a stale entry expires on its own TTL.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) {
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.WithError(err).WithField("keys", keys).Warn("cache invalidation failed")
	}
}
