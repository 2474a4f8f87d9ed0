package aicache

import (
	"context"

	"github.com/optischema/optischema/logger"
	"golang.org/x/sync/singleflight"
)

/*
FetchFn produces the value for a key on a cache miss.
*/
type FetchFn func(ctx context.Context) ([]byte, error)

/*
Client fronts a Cache with request coalescing: concurrent misses for the
same key trigger exactly one upstream fetch, and everyone shares its result.
*/
type Client struct {
	cache Cache
	group singleflight.Group
}

/*
NewClient creates a coalescing client over the given cache.
*/
func NewClient(cache Cache) *Client {
	return &Client{cache: cache}
}

/*
Fetch returns the cached value for key, or invokes fetch exactly once for
all concurrent callers and caches the result. Fetch errors are returned to
every caller and never cached.
*/
func (c *Client) Fetch(ctx context.Context, key string, fetch FetchFn) ([]byte, error) {
	if value, ok := c.cache.Get(key); ok {
		logger.Debug("Cache hit", "key", key)
		return value, nil
	}

	value, err, shared := c.group.Do(key, func() (any, error) {
		// Re-check under the flight: a concurrent caller may have filled it.
		if value, ok := c.cache.Get(key); ok {
			return value, nil
		}

		value, err := fetch(ctx)
		if err != nil {
			return nil, err
		}

		c.cache.Set(key, value)
		return value, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		logger.Debug("Coalesced concurrent fetch", "key", key)
	}
	return value.([]byte), nil
}

/*
Invalidate drops the cached value for key.
*/
func (c *Client) Invalidate(key string) {
	c.cache.Invalidate(key)
}
