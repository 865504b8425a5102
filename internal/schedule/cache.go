package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"likhtar/internal/queue"
	logx "likhtar/pkg/logx"
)

// Provider hands out the current timeline for a queue.
// Implemented by Source; the notify engine depends only on this.
type Provider interface {
	Timeline(ctx context.Context, code queue.Code) (Timeline, error)
}

// Cache holds the most recent parse of the whole schedule page.
// It is refreshed by its own cron job so notify cycles can read every
// queue's timeline from a single page fetch.
type Cache struct {
	mu        sync.RWMutex
	byQueue   map[queue.Code]Timeline
	fetchedAt time.Time
}

func NewCache() *Cache {
	return &Cache{byQueue: map[queue.Code]Timeline{}}
}

// Refresh replaces the cache with a fresh parse of the page.
func (c *Cache) Refresh(ctx context.Context, f *Fetcher) error {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.byQueue = all
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Get returns the cached timeline for a queue, if any.
func (c *Cache) Get(code queue.Code) (Timeline, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.byQueue[code]
	return t, ok
}

// FetchedAt returns when the cache last refreshed (zero if never).
func (c *Cache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

// Source resolves timelines either straight from the page or via the cache.
type Source struct {
	fetcher  *Fetcher
	cache    *Cache
	useCache bool
	log      logx.Logger
}

func NewSource(f *Fetcher, cache *Cache, useCache bool, log logx.Logger) *Source {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Source{fetcher: f, cache: cache, useCache: useCache, log: log}
}

// Timeline returns the current timeline for one queue.
// With caching enabled, a cold cache is filled on first use.
func (s *Source) Timeline(ctx context.Context, code queue.Code) (Timeline, error) {
	if s.useCache && s.cache != nil {
		if t, ok := s.cache.Get(code); ok {
			return t, nil
		}
		if err := s.cache.Refresh(ctx, s.fetcher); err != nil {
			return nil, err
		}
		if t, ok := s.cache.Get(code); ok {
			return t, nil
		}
		return nil, fmt.Errorf("queue %s: no row on schedule page", code.Label())
	}
	return s.fetcher.Fetch(ctx, code)
}
