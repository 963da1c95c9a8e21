// Package jwks fetches and caches issuer signing key sets.
package jwks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-jose/go-jose/v4"
	"golang.org/x/sync/singleflight"

	"github.com/jamesprial/mcp-tool-gateway/internal/auth/autherr"
)

// Defaults applied when the corresponding option is not set.
const (
	DefaultTTL                = 5 * time.Minute
	DefaultFetchTimeout       = 5 * time.Second
	DefaultMinRefreshInterval = 30 * time.Second
)

// Source fetches the current key set of an issuer.
type Source interface {
	Fetch(ctx context.Context, issuer string) (*jose.JSONWebKeySet, error)
}

// entry is an immutable snapshot of an issuer's key set.
type entry struct {
	keys      *jose.JSONWebKeySet
	fetchedAt time.Time
	expiresAt time.Time
}

// Cache holds one key set per issuer for a bounded TTL.
//
// Concurrent misses for the same issuer share a single fetch. When a refresh
// fails and an expired copy is still held, the expired copy keeps serving
// until the next successful refresh.
type Cache struct {
	source             Source
	ttl                time.Duration
	fetchTimeout       time.Duration
	minRefreshInterval time.Duration
	now                func() time.Time
	logger             *slog.Logger

	mu      sync.RWMutex
	entries map[string]*entry
	group   singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithFetchTimeout bounds each key set fetch.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.fetchTimeout = d
		}
	}
}

// WithMinRefreshInterval limits how often an unknown kid may force a refresh.
func WithMinRefreshInterval(d time.Duration) Option {
	return func(c *Cache) { c.minRefreshInterval = d }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger used for stale-serve warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCache creates a key set cache backed by source.
func NewCache(source Source, ttl time.Duration, opts ...Option) *Cache {
	if source == nil {
		panic("source cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{
		source:             source,
		ttl:                ttl,
		fetchTimeout:       DefaultFetchTimeout,
		minRefreshInterval: DefaultMinRefreshInterval,
		now:                time.Now,
		logger:             slog.Default(),
		entries:            make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Key returns the public key identified by kid in issuer's key set.
// An empty kid resolves only when the set holds exactly one key.
func (c *Cache) Key(ctx context.Context, issuer, kid string) (any, error) {
	const op = "Key"

	cached := c.get(issuer)
	now := c.now()

	if cached != nil && now.Before(cached.expiresAt) {
		if key, ok := lookup(cached.keys, kid); ok {
			return key, nil
		}
		// Fresh set without the kid: only refetch if the set is old enough,
		// so a stream of forged kids cannot hammer the issuer.
		if now.Sub(cached.fetchedAt) < c.minRefreshInterval {
			return nil, autherr.NewKeyNotFoundError(op, issuer, kid)
		}
	}

	fresh, err := c.refresh(ctx, issuer)
	if err != nil {
		if cached != nil {
			if key, ok := lookup(cached.keys, kid); ok {
				c.logger.Warn("serving stale signing keys after refresh failure",
					"issuer", issuer,
					"fetched_at", cached.fetchedAt,
					"error", err,
				)
				return key, nil
			}
		}
		return nil, autherr.NewKeySetUnavailableError(op, issuer, err)
	}

	if key, ok := lookup(fresh.keys, kid); ok {
		return key, nil
	}
	return nil, autherr.NewKeyNotFoundError(op, issuer, kid)
}

// Refresh fetches issuer's key set now, replacing any cached copy.
func (c *Cache) Refresh(ctx context.Context, issuer string) error {
	if _, err := c.refresh(ctx, issuer); err != nil {
		return autherr.NewKeySetUnavailableError("Refresh", issuer, err)
	}
	return nil
}

// Size returns the number of issuers with a cached key set.
func (c *Cache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(issuer string) *entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[issuer]
}

// refresh runs at most one fetch per issuer at a time. The fetch is detached
// from the caller's cancellation and bounded by fetchTimeout, so one
// disconnecting caller does not fail the others waiting on it.
func (c *Cache) refresh(ctx context.Context, issuer string) (*entry, error) {
	ch := c.group.DoChan(issuer, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()

		keys, err := c.source.Fetch(fetchCtx, issuer)
		if err != nil {
			return nil, err
		}

		now := c.now()
		e := &entry{keys: keys, fetchedAt: now, expiresAt: now.Add(c.ttl)}

		c.mu.Lock()
		c.entries[issuer] = e
		c.mu.Unlock()
		return e, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*entry), nil
	}
}

func lookup(set *jose.JSONWebKeySet, kid string) (any, bool) {
	if set == nil {
		return nil, false
	}
	if kid == "" {
		if len(set.Keys) == 1 {
			return set.Keys[0].Key, true
		}
		return nil, false
	}
	matches := set.Key(kid)
	if len(matches) == 0 {
		return nil, false
	}
	return matches[0].Key, true
}
