package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/fares/internal/search/types"
)

// Store holds cached results. Implementations must be safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (*Entry, bool, error)
	Set(ctx context.Context, key string, entry *Entry) error
	Close() error
}

// Entry is a cached result and its expiry.
type Entry struct {
	Result    *types.Result `json:"result"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Cache collapses concurrent identical searches and keeps results for a
// fixed TTL in a Store.
type Cache struct {
	mu       sync.Mutex
	store    Store
	ttl      time.Duration
	inflight map[string]*inflightRequest
	logger   *slog.Logger
}

type inflightRequest struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// NewCache creates a new Cache over store with the specified TTL.
func NewCache(store Store, ttl time.Duration, logger *slog.Logger) *Cache {
	return &Cache{
		store:    store,
		ttl:      ttl,
		inflight: make(map[string]*inflightRequest),
		logger:   logger,
	}
}

// Close releases the underlying store.
func (c *Cache) Close() error {
	return c.store.Close()
}

// Key generates a cache key from a normalized query.
func (c *Cache) Key(q types.Query) string {
	return strings.Join([]string{
		q.Origin,
		q.Destination,
		q.DepartureDate,
		q.ReturnDate,
		fmt.Sprintf("%d", q.Passengers),
		string(q.CabinClass),
	}, ":")
}

// GetOrFetch retrieves from cache or executes the fetch function.
// Concurrent requests for the same key are collapsed (singleflight pattern).
// Returns the entry and a boolean indicating if it was a cache hit. Store
// errors are logged and treated as a miss.
func (c *Cache) GetOrFetch(ctx context.Context, key string, fetch func() (*types.Result, error)) (*Entry, bool, error) {
	entry, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("cache read failed", "key", key, "error", err)
	}
	if ok && time.Now().Before(entry.ExpiresAt) {
		return entry, true, nil
	}

	c.mu.Lock()

	// Check for existing in-flight request
	if inflight, ok := c.inflight[key]; ok {
		c.mu.Unlock()
		select {
		case <-inflight.done:
			return inflight.entry, false, inflight.err
		case <-ctx.Done():
			return nil, false, context.Cause(ctx)
		}
	}

	// Create new in-flight request
	inflight := &inflightRequest{
		done: make(chan struct{}),
	}
	c.inflight[key] = inflight
	c.mu.Unlock()

	// Execute fetch (outside of lock)
	result, err := fetch()

	if err == nil && result != nil {
		inflight.entry = &Entry{Result: result, ExpiresAt: time.Now().Add(c.ttl)}
		// The result is shared, so keep it even if this caller has left.
		if serr := c.store.Set(context.WithoutCancel(ctx), key, inflight.entry); serr != nil {
			c.logger.Warn("cache write failed", "key", key, "error", serr)
		}
	}
	inflight.err = err

	c.mu.Lock()
	delete(c.inflight, key)
	c.mu.Unlock()

	// Notify all waiters
	close(inflight.done)

	return inflight.entry, false, err
}
