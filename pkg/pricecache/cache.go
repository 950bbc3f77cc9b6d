// Package pricecache resolves a price through an ordered provider chain and
// remembers short-lived results, shielding callers from upstream instability
// and rate limits.
package pricecache

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ikggod/stock-dashboard/pkg/provider"
)

// ErrNotFound is returned when every provider in the chain missed.
var ErrNotFound = errors.New("price not found")

// Mode selects which provider chain serves the resolution.
type Mode string

const (
	// ModeAuto tries the broker first, then the public web source.
	ModeAuto   Mode = "auto"
	ModeBroker Mode = "broker"
	ModeWeb    Mode = "web"
	ModeChart  Mode = "chart"
)

const (
	DefaultTTL             = 30 * time.Second
	DefaultProviderTimeout = 5 * time.Second
)

type entry struct {
	price    float64
	storedAt time.Time
}

type cacheKey struct {
	symbol string
	mode   Mode
}

// Cache is safe for concurrent use. Concurrent resolutions of the same
// (symbol, mode) are collapsed into a single provider pass.
type Cache struct {
	broker provider.Provider
	web    provider.Provider
	chart  provider.Provider

	ttl             time.Duration
	providerTimeout time.Duration
	logger          *zap.Logger
	now             func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	entries map[cacheKey]entry
}

type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

func WithProviderTimeout(d time.Duration) Option {
	return func(c *Cache) { c.providerTimeout = d }
}

// WithNow overrides the time source.
func WithNow(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New builds a cache over the three provider tiers. Any tier may be nil; its
// modes then resolve to ErrNotFound.
func New(broker, web, chart provider.Provider, logger *zap.Logger, opts ...Option) *Cache {
	c := &Cache{
		broker:          broker,
		web:             web,
		chart:           chart,
		ttl:             DefaultTTL,
		providerTimeout: DefaultProviderTimeout,
		logger:          logger,
		now:             time.Now,
		entries:         make(map[cacheKey]entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Resolve returns the price for symbol via the chain selected by mode. A live
// cache entry is served without any provider call; otherwise providers are
// tried in order, each fault-isolated and timeout-bounded, and the first hit
// is cached and returned.
func (c *Cache) Resolve(ctx context.Context, symbol string, mode Mode) (float64, error) {
	key := cacheKey{symbol: symbol, mode: mode}

	if price, ok := c.lookup(key); ok {
		return price, nil
	}

	v, err, _ := c.group.Do(symbol+"|"+string(mode), func() (interface{}, error) {
		// A concurrent caller may have populated the entry while this
		// one waited on the flight.
		if price, ok := c.lookup(key); ok {
			return price, nil
		}

		price, err := c.resolveChain(ctx, symbol, mode)
		if err != nil {
			return 0.0, err
		}

		c.mu.Lock()
		c.entries[key] = entry{price: price, storedAt: c.now()}
		c.mu.Unlock()
		return price, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Clear drops every entry so the next read resolves fresh.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[cacheKey]entry)
	c.mu.Unlock()
}

func (c *Cache) lookup(key cacheKey) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	if !ok || c.now().Sub(e.storedAt) >= c.ttl {
		return 0, false
	}
	return e.price, true
}

func (c *Cache) chain(mode Mode) []provider.Provider {
	var chain []provider.Provider
	appendIf := func(p provider.Provider) {
		if p != nil {
			chain = append(chain, p)
		}
	}
	switch mode {
	case ModeAuto:
		appendIf(c.broker)
		appendIf(c.web)
	case ModeBroker:
		appendIf(c.broker)
	case ModeWeb:
		appendIf(c.web)
	case ModeChart:
		appendIf(c.chart)
	}
	return chain
}

func (c *Cache) resolveChain(ctx context.Context, symbol string, mode Mode) (float64, error) {
	for _, p := range c.chain(mode) {
		price, err := c.fetchOne(ctx, p, symbol)
		if err != nil {
			c.logger.Debug("provider miss",
				zap.String("provider", p.Name()),
				zap.String("symbol", symbol),
				zap.Error(err))
			continue
		}
		return price, nil
	}
	return 0, ErrNotFound
}

func (c *Cache) fetchOne(ctx context.Context, p provider.Provider, symbol string) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, c.providerTimeout)
	defer cancel()
	return p.FetchPrice(ctx, symbol)
}
