// Package geocache caches large geospatial JSON documents fetched over HTTP,
// minimizing transfer with conditional-request metadata.
//
// The cache has two tiers. The volatile tier lives in process memory; once
// populated for a key it is authoritative for the process lifetime and
// short-circuits all other lookups. The durable tier is an injected key-value
// store that survives restarts; its entries are revalidated against the
// origin with a metadata probe before reuse, falling back to age-based
// expiry when the origin cannot be reached.
package geocache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nexus-geo/nexus-gateway/internal/metrics"
)

// ErrFetchFailed indicates all network and fallback paths were exhausted.
// Callers render an empty state instead of crashing; this error never wraps
// a partial payload.
var ErrFetchFailed = errors.New("geocache: fetch failed and no usable cached data")

// Meta is the conditional-request metadata for a fetched resource.
type Meta struct {
	ETag         string
	LastModified string
}

// matches reports whether stored metadata identifies the same entity as the
// origin's current metadata. Either a matching entity tag or a matching
// last-modified stamp counts.
func (m Meta) matches(other Meta) bool {
	if m.ETag != "" && m.ETag == other.ETag {
		return true
	}
	return m.LastModified != "" && m.LastModified == other.LastModified
}

// Fetcher is the HTTP capability the cache consumes.
type Fetcher interface {
	// Head performs a metadata-only probe of the resource.
	Head(ctx context.Context, url string) (Meta, error)
	// Get fetches the full resource.
	Get(ctx context.Context, url string) ([]byte, Meta, error)
}

// KV is the durable-tier string key-value store. A nil KV degrades the cache
// to volatile-only operation.
type KV interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// entry is a cached payload with its revalidation metadata.
type entry struct {
	Payload      json.RawMessage `json:"payload"`
	ETag         string          `json:"etag,omitempty"`
	LastModified string          `json:"last_modified,omitempty"`
	SavedAt      time.Time       `json:"saved_at"`
}

func (e *entry) meta() Meta {
	return Meta{ETag: e.ETag, LastModified: e.LastModified}
}

// Result is the outcome of a cache fetch.
type Result struct {
	Data      json.RawMessage
	FromCache bool
}

// Cache is a two-tier revalidating cache. Construct it once per process and
// pass it by reference to consumers.
type Cache struct {
	fetcher Fetcher
	durable KV
	logger  *slog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	volatile map[string]*entry

	group singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a Cache over the given fetcher and durable tier.
// durable may be nil; logger nil means slog.Default().
func New(fetcher Fetcher, durable KV, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		fetcher:  fetcher,
		durable:  durable,
		logger:   logger,
		now:      time.Now,
		volatile: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch returns the document at url, keyed by key. maxAge bounds how stale a
// durable entry may be served when the origin cannot be reached; it never
// limits a volatile hit. Concurrent calls for the same key share one origin
// round trip; the shared round trip is detached from any single caller's
// context, so one caller cancelling does not fail the others. At most one
// full fetch is performed per call.
func (c *Cache) Fetch(ctx context.Context, url, key string, maxAge time.Duration) (*Result, error) {
	if e := c.volatileGet(key); e != nil {
		metrics.RecordCacheResult("hit_volatile")
		return &Result{Data: e.Payload, FromCache: true}, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		return c.fetchSlow(context.WithoutCancel(ctx), url, key, maxAge)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

// fetchSlow is the non-volatile path: durable read, metadata probe,
// conditional full fetch, age-based fallback.
func (c *Cache) fetchSlow(ctx context.Context, url, key string, maxAge time.Duration) (*Result, error) {
	stored := c.durableGet(ctx, key)
	var age time.Duration
	if stored != nil {
		age = c.now().Sub(stored.SavedAt)
	}

	origin, err := c.fetcher.Head(ctx, url)
	if err != nil {
		// Probe unreachable: prefer a young durable entry over a blind
		// full fetch, then try the network anyway.
		// The volatile tier is left unpopulated here so a later call
		// retries the probe once the origin recovers.
		if stored != nil && age <= maxAge {
			metrics.RecordCacheResult("hit_durable")
			return &Result{Data: stored.Payload, FromCache: true}, nil
		}
		return c.fullFetch(ctx, url, key, nil, 0, 0)
	}

	if stored != nil && stored.meta().matches(origin) {
		metrics.RecordCacheResult("revalidated")
		c.volatilePut(key, stored)
		return &Result{Data: stored.Payload, FromCache: true}, nil
	}

	return c.fullFetch(ctx, url, key, stored, age, maxAge)
}

// fullFetch performs the single full GET, updating both tiers on success.
// On failure it serves the stale entry if it is within maxAge, else fails.
func (c *Cache) fullFetch(ctx context.Context, url, key string, stale *entry, age, maxAge time.Duration) (*Result, error) {
	payload, meta, err := c.fetcher.Get(ctx, url)
	if err != nil {
		if stale != nil && age <= maxAge {
			metrics.RecordCacheResult("stale")
			c.logger.Warn("serving stale dataset after fetch failure",
				"key", key, "age", age, "error", err)
			return &Result{Data: stale.Payload, FromCache: true}, nil
		}
		metrics.RecordCacheResult("miss")
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	e := &entry{
		Payload:      payload,
		ETag:         meta.ETag,
		LastModified: meta.LastModified,
		SavedAt:      c.now(),
	}
	c.volatilePut(key, e)
	c.durablePut(ctx, key, e)
	metrics.RecordCacheResult("fetched")
	return &Result{Data: e.Payload, FromCache: false}, nil
}

// Invalidate removes the key from both tiers. Idempotent; absent keys are
// not an error.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.volatile, key)
	c.mu.Unlock()

	if c.durable == nil {
		return nil
	}
	return c.durable.Delete(ctx, key)
}

func (c *Cache) volatileGet(key string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volatile[key]
}

func (c *Cache) volatilePut(key string, e *entry) {
	c.mu.Lock()
	c.volatile[key] = e
	c.mu.Unlock()
}

// durableGet reads and decodes the durable entry for key.
// Read errors and corrupt entries behave like a miss.
func (c *Cache) durableGet(ctx context.Context, key string) *entry {
	if c.durable == nil {
		return nil
	}
	raw, ok, err := c.durable.Get(ctx, key)
	if err != nil {
		c.logger.Warn("durable cache read failed", "key", key, "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	var e entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		c.logger.Warn("durable cache entry corrupt", "key", key, "error", err)
		return nil
	}
	return &e
}

// durablePut persists an entry. Write failures are swallowed: they skip
// persistence for next time but must not fail the fetch.
func (c *Cache) durablePut(ctx context.Context, key string, e *entry) {
	if c.durable == nil {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn("durable cache encode failed", "key", key, "error", err)
		return
	}
	if err := c.durable.Set(ctx, key, string(raw)); err != nil {
		c.logger.Warn("durable cache write failed", "key", key, "error", err)
	}
}
