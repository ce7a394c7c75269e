package weather

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// DefaultTTL is how long a successful fetch is served without refetching.
const DefaultTTL = 900 * time.Second

// Observer is told the outcome of every remote fetch.
type Observer interface {
	ObserveFetch(err error)
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = int64(ttl / time.Second) }
}

// WithTimeout bounds each remote fetch.
func WithTimeout(d time.Duration) Option {
	return func(c *Cache) { c.timeout = d }
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) { c.observer = o }
}

// Cache holds the last successful observation. A single mutex covers the
// whole check-fetch-store sequence, so concurrent misses cause one fetch.
type Cache struct {
	provider Provider
	ttl      int64 // seconds
	timeout  time.Duration
	observer Observer

	mu         sync.Mutex
	location   Location
	cached     *Conditions
	capturedAt int64 // epoch seconds of the last successful fetch
}

// NewCache creates a cache for loc backed by provider.
func NewCache(provider Provider, loc Location, opts ...Option) *Cache {
	c := &Cache{
		provider: provider,
		ttl:      int64(DefaultTTL / time.Second),
		timeout:  15 * time.Second,
		location: loc,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetLocation changes the query location and drops the cached value.
func (c *Cache) SetLocation(loc Location) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = loc
	c.cached = nil
	c.capturedAt = 0
}

// Get returns conditions as of now (epoch seconds). The cached value is
// served when it is younger than the TTL. Otherwise a fetch is made; if it
// fails, the previous value (of any age) is returned with the error.
func (c *Cache) Get(ctx context.Context, now int64) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	elapsed := now - c.capturedAt
	if elapsed < 0 {
		// Clock went backwards; the cached value cannot be trusted as fresh.
		elapsed = c.ttl
	}

	if c.cached != nil && elapsed < c.ttl {
		return Result{Conditions: c.copyCached(), AgeSeconds: elapsed}
	}

	conditions, err := c.fetch(ctx)
	if c.observer != nil {
		c.observer.ObserveFetch(err)
	}
	if err != nil {
		log.Printf("weather: %v", err)
		res := Result{Err: err, Fetched: true}
		if c.cached != nil {
			res.Conditions = c.copyCached()
			res.AgeSeconds = elapsed
		}
		return res
	}

	c.cached = &conditions
	c.capturedAt = now
	return Result{Conditions: c.copyCached(), AgeSeconds: 0, Fetched: true}
}

func (c *Cache) fetch(ctx context.Context) (Conditions, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	raw, err := c.provider.Fetch(ctx, c.location.Query())
	if err != nil {
		return Conditions{}, &FetchError{Err: err}
	}

	conditions, err := Parse(raw)
	if err != nil {
		return Conditions{}, err
	}
	return conditions, nil
}

func (c *Cache) copyCached() *Conditions {
	cp := *c.cached
	return &cp
}

// Outcome classifies the result of a fetch for logging and metrics:
// "ok", "transport", "parse", "remote" or "error".
func Outcome(err error) string {
	var (
		fe *FetchError
		pe *ParseError
		re *RemoteError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &fe):
		return "transport"
	case errors.As(err, &pe):
		return "parse"
	case errors.As(err, &re):
		return "remote"
	default:
		return "error"
	}
}
