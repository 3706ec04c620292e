package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	catalogKeyPrefix = "tools:available"
	fillTimeout      = 5 * time.Second
)

// CatalogCache keeps each tenant's available-tools list in Redis under a
// versioned key. Invalidate bumps the tenant version so fills that started
// before a grant can never be read afterwards.
type CatalogCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	notify func(outcome string)
}

// NewCatalogCache instantiates the cache helper. A nil client or non-positive
// ttl yields a pass-through cache.
func NewCatalogCache(client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{client: client, ttl: ttl}
}

// WithObserver registers fn to receive "hit", "miss" or "error" per lookup.
func (c *CatalogCache) WithObserver(fn func(outcome string)) *CatalogCache {
	if c != nil {
		c.notify = fn
	}
	return c
}

func (c *CatalogCache) observe(outcome string) {
	if c.notify != nil {
		c.notify(outcome)
	}
}

func (c *CatalogCache) enabled() bool {
	return c != nil && c.client != nil && c.ttl > 0
}

func versionKey(companyID int64) string {
	return fmt.Sprintf("%s:%d:version", catalogKeyPrefix, companyID)
}

// Version returns the tenant's cache version, 0 when never bumped.
func (c *CatalogCache) Version(ctx context.Context, companyID int64) (int64, error) {
	if !c.enabled() {
		return 0, nil
	}
	ver, err := c.client.Get(ctx, versionKey(companyID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return ver, err
}

// BuildKey composes the data key for the tenant's current version.
func (c *CatalogCache) BuildKey(ctx context.Context, companyID int64) (string, error) {
	ver, err := c.Version(ctx, companyID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:%d:v%d", catalogKeyPrefix, companyID, ver), nil
}

// Fetch returns the cached list or populates it using loader. Concurrent
// misses for the same key share one loader call.
func (c *CatalogCache) Fetch(ctx context.Context, companyID int64, loader func(context.Context) ([]Tool, error)) ([]Tool, error) {
	if loader == nil {
		return nil, errors.New("tools: catalog loader required")
	}
	if !c.enabled() {
		return loader(ctx)
	}
	key, err := c.BuildKey(ctx, companyID)
	if err != nil {
		c.observe("error")
		return nil, err
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached []Tool
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.observe("hit")
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.observe("error")
		return nil, err
	}
	c.observe("miss")

	ch := c.group.DoChan(key, func() (any, error) {
		// Shared by every waiter on key, so it must outlive the caller that started it.
		fillCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), fillTimeout)
		defer cancel()
		list, err := loader(fillCtx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(list)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fillCtx, key, raw, c.ttl).Err(); err != nil {
			return list, err
		}
		return list, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		list, _ := res.Val.([]Tool)
		if res.Err != nil && list == nil {
			return nil, res.Err
		}
		return list, nil
	}
}

// Invalidate bumps the tenant's version.
func (c *CatalogCache) Invalidate(ctx context.Context, companyID int64) error {
	if !c.enabled() {
		return nil
	}
	return c.client.Incr(ctx, versionKey(companyID)).Err()
}
