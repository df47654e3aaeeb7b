// Package catalog caches the backend's model list.
package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stupiduntilnot/docchat/internal/model"
)

// DefaultRetryBackoff is the minimum spacing of refresh attempts after a
// failed one.
const DefaultRetryBackoff = 30 * time.Second

// Cache serves a snapshot of the model catalog and refreshes it lazily once
// it is older than TTL. A failed refresh keeps the previous snapshot and
// suppresses further attempts for RetryBackoff.
type Cache struct {
	source model.Catalog
	ttl    time.Duration
	logger logrus.FieldLogger
	now    func() time.Time

	mu        sync.RWMutex
	models    []model.Descriptor
	loaded    bool
	fetchedAt time.Time
	lastErr   error
	retryAt   time.Time

	RetryBackoff time.Duration

	// OnRefresh, when set, observes every refresh attempt.
	OnRefresh func(err error)
}

func NewCache(source model.Catalog, ttl time.Duration, logger logrus.FieldLogger) *Cache {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Cache{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,

		RetryBackoff: DefaultRetryBackoff,
	}
}

// Load fetches the catalog unconditionally. The previous snapshot is kept
// on error.
func (c *Cache) Load(ctx context.Context) error {
	models, err := c.source.List(ctx)
	if c.OnRefresh != nil {
		c.OnRefresh(err)
	}
	if err != nil {
		err = fmt.Errorf("list models: %w", err)
		c.mu.Lock()
		c.lastErr = err
		c.retryAt = c.now().Add(c.RetryBackoff)
		c.mu.Unlock()
		c.logger.WithError(err).Warn("model catalog refresh failed")
		return err
	}
	c.mu.Lock()
	c.models = models
	c.loaded = true
	c.fetchedAt = c.now()
	c.lastErr = nil
	c.retryAt = time.Time{}
	c.mu.Unlock()
	c.logger.WithField("count", len(models)).Info("model catalog loaded")
	return nil
}

// Models returns the current snapshot, refreshing it first when stale. An
// error is returned only when no snapshot has ever been loaded.
func (c *Cache) Models(ctx context.Context) ([]model.Descriptor, error) {
	c.mu.RLock()
	now := c.now()
	stale := !c.loaded || (c.ttl > 0 && now.Sub(c.fetchedAt) >= c.ttl)
	backingOff := now.Before(c.retryAt)
	lastErr := c.lastErr
	c.mu.RUnlock()

	if stale && backingOff && !c.isLoaded() {
		return nil, lastErr
	}
	if stale && !backingOff {
		if err := c.Load(ctx); err != nil && !c.isLoaded() {
			return nil, err
		}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]model.Descriptor, len(c.models))
	copy(out, c.models)
	return out, nil
}

func (c *Cache) isLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Contains reports whether id is an exact match for a catalog entry.
func (c *Cache) Contains(ctx context.Context, id string) (bool, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return false, err
	}
	return model.ContainsID(models, id), nil
}
