// Package cache memoizes expensive rendered output behind a pluggable
// key-value backend. Lookups are read-through: a hit returns the stored
// value, a miss computes fresh and writes the result back. Backend failures
// are treated as misses and never fail the request.
package cache

import (
	"context"
	"errors"

	"golang.org/x/sync/singleflight"

	"github.com/mkustermann/pub-dartlang-dart/pkg/log"
)

// ComputeFunc produces the value for a key on a cache miss.
type ComputeFunc func(ctx context.Context) (string, error)

// RenderCache is a get-or-compute cache for rendered pages, keyed by the
// canonical request URL. Concurrent misses on the same key share a single
// in-flight computation.
//
// The backend may be nil, in which case every call computes fresh: the cache
// degrades to a no-op transparently, changing only latency.
type RenderCache struct {
	backend Backend
	group   singleflight.Group
	logger  *log.Logger
}

// New creates a RenderCache over the given backend. A nil backend is valid
// and yields an uncached instance.
func New(backend Backend) *RenderCache {
	return &RenderCache{
		backend: backend,
		logger:  log.ForComponent("cache"),
	}
}

// Enabled reports whether a backend is configured.
func (c *RenderCache) Enabled() bool {
	return c.backend != nil
}

// GetOrCompute returns the cached value for key, computing and storing it on
// a miss. Only compute errors are surfaced; backend errors downgrade to a
// miss on read and are logged and swallowed on write.
func (c *RenderCache) GetOrCompute(ctx context.Context, key string, compute ComputeFunc) (string, error) {
	if c.backend == nil {
		return compute(ctx)
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		cached, err := c.backend.Get(ctx, key)
		if err == nil {
			c.logger.Debugf("hit: %s", key)
			return cached, nil
		}
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warnf("backend read failed for %s, computing fresh: %v", key, err)
		}

		value, err := compute(ctx)
		if err != nil {
			return "", err
		}
		if err := c.backend.Set(ctx, key, value); err != nil {
			c.logger.Warnf("backend write failed for %s: %v", key, err)
		}
		return value, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}
