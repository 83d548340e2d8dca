package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/citysafe/planning-backend/internal/platform/logger"
)

// SummaryCache fronts the dashboard summary counts. A nil *SummaryCache is
// valid and behaves as a permanent miss, so the service layer never branches
// on whether Redis is configured.
type SummaryCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewSummaryCache(log *logger.Logger, addr string, ttl time.Duration) (*SummaryCache, error) {
	if addr == "" {
		return nil, nil
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SummaryCache{
		log: log.With("cache", "SummaryCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *SummaryCache) Get(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("summary cache get failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.log.Warn("summary cache payload corrupt", "key", key, "error", err)
		return false
	}
	return true
}

func (c *SummaryCache) Set(ctx context.Context, key string, val any) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.log.Warn("summary cache set failed", "key", key, "error", err)
	}
}

// Invalidate drops the given keys. Prioritization and entity writes call this
// so summaries never serve stale counts past a mutation.
func (c *SummaryCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("summary cache invalidate failed", "error", err)
	}
}

func (c *SummaryCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
