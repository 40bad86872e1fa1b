package persistence

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// CompositeBackend reads from a fast cache backend with fallback to a
// durable backend, and fans writes out to both.
//
// Policy: availability over consistency. A cache miss or cache failure
// falls through to the durable backend, so short-lived divergence between
// the two copies heals on the next read.
type CompositeBackend struct {
	cache   Backend
	durable Backend
	logger  *slog.Logger
}

var _ Backend = (*CompositeBackend)(nil)

// NewCompositeBackend combines a cache backend (typically Redis) with a
// durable backend (typically files). If logger is nil, slog.Default() is
// used.
func NewCompositeBackend(cache, durable Backend, logger *slog.Logger) *CompositeBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &CompositeBackend{cache: cache, durable: durable, logger: logger}
}

// LoadUserRecord prefers the cache; a cache failure or an empty cached
// record falls back to the durable backend.
func (c *CompositeBackend) LoadUserRecord(ctx context.Context, userID string) (map[string]any, error) {
	record, err := c.cache.LoadUserRecord(ctx, userID)
	if err == nil && len(record) > 0 {
		return record, nil
	}
	if err != nil {
		c.logger.DebugContext(ctx, "cache read failed, falling back",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
	return c.durable.LoadUserRecord(ctx, userID)
}

// SaveUserRecord writes to both backends concurrently and fails only when
// both writes fail.
func (c *CompositeBackend) SaveUserRecord(ctx context.Context, userID string, record map[string]any) error {
	var wg sync.WaitGroup
	var cacheErr, durableErr error

	wg.Add(2)
	go func() {
		defer wg.Done()
		cacheErr = c.cache.SaveUserRecord(ctx, userID, record)
	}()
	go func() {
		defer wg.Done()
		durableErr = c.durable.SaveUserRecord(ctx, userID, record)
	}()
	wg.Wait()

	if cacheErr != nil && durableErr != nil {
		return fmt.Errorf("%w: cache: %v; durable: %v", ErrAllBackendsFailed, cacheErr, durableErr)
	}
	if cacheErr != nil {
		c.logger.WarnContext(ctx, "cache write failed",
			slog.String("user_id", userID),
			slog.Any("error", cacheErr),
		)
	}
	if durableErr != nil {
		c.logger.WarnContext(ctx, "durable write failed",
			slog.String("user_id", userID),
			slog.Any("error", durableErr),
		)
	}
	return nil
}

// RemoveUserRecord deletes from both backends concurrently, succeeding if
// either deletion succeeded.
func (c *CompositeBackend) RemoveUserRecord(ctx context.Context, userID string) (bool, error) {
	var wg sync.WaitGroup
	var cacheRemoved, durableRemoved bool

	wg.Add(2)
	go func() {
		defer wg.Done()
		cacheRemoved, _ = c.cache.RemoveUserRecord(ctx, userID)
	}()
	go func() {
		defer wg.Done()
		durableRemoved, _ = c.durable.RemoveUserRecord(ctx, userID)
	}()
	wg.Wait()

	return cacheRemoved || durableRemoved, nil
}

// HealthCheck reports healthy when at least one backend is usable.
func (c *CompositeBackend) HealthCheck(ctx context.Context) bool {
	return c.cache.HealthCheck(ctx) || c.durable.HealthCheck(ctx)
}

// ListUserIDs returns the union of both backends' users.
func (c *CompositeBackend) ListUserIDs(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	durableIDs, err := c.durable.ListUserIDs(ctx)
	if err != nil {
		return nil, err
	}
	for _, id := range durableIDs {
		seen[id] = struct{}{}
	}

	cacheIDs, err := c.cache.ListUserIDs(ctx)
	if err != nil {
		c.logger.DebugContext(ctx, "cache list failed", slog.Any("error", err))
	} else {
		for _, id := range cacheIDs {
			seen[id] = struct{}{}
		}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
