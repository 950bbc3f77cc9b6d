package pricecache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ikggod/stock-dashboard/pkg/provider"
)

type fakeProvider struct {
	name  string
	price float64
	err   error
	calls atomic.Int64
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	f.calls.Add(1)
	if f.err != nil {
		return 0, f.err
	}
	return f.price, nil
}

// fakeClock steps time manually.
type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time          { return f.t }
func (f *fakeClock) advance(d time.Duration) { f.t = f.t.Add(d) }

func newTestCache(broker, web provider.Provider, clk *fakeClock) *Cache {
	return New(broker, web, nil, zap.NewNop(), WithNow(clk.now))
}

func TestResolve_CacheHitWithinTTL(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	p := &fakeProvider{name: "broker", price: 70000}
	c := newTestCache(p, nil, clk)

	first, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 70000.0, first)
	require.EqualValues(t, 1, p.calls.Load())

	clk.advance(29 * time.Second)
	second, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.EqualValues(t, 1, p.calls.Load(), "cache hit must make zero provider calls")
}

func TestResolve_ExpiryTriggersRefetch(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	p := &fakeProvider{name: "broker", price: 70000}
	c := newTestCache(p, nil, clk)

	_, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)

	clk.advance(30 * time.Second)
	_, err = c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.EqualValues(t, 2, p.calls.Load(), "entry at TTL age must not be served")
}

func TestResolve_FallbackOrder(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	broken := &fakeProvider{name: "broker", err: errors.New("auth failed")}
	web := &fakeProvider{name: "webquote", price: 70500}
	c := newTestCache(broken, web, clk)

	price, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 70500.0, price, "second provider's value must win")

	// The fallback value, not a placeholder, must be what got cached.
	cached, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 70500.0, cached)
	require.EqualValues(t, 1, web.calls.Load())
}

// stuckProvider never answers; only ctx expiry releases it.
type stuckProvider struct{ name string }

func (s *stuckProvider) Name() string { return s.name }

func (s *stuckProvider) FetchPrice(ctx context.Context, symbol string) (float64, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestResolve_SlowProviderFallsThrough(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	web := &fakeProvider{name: "webquote", price: 70500}
	c := New(&stuckProvider{name: "broker"}, web, nil, zap.NewNop(),
		WithNow(clk.now), WithProviderTimeout(20*time.Millisecond))

	price, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 70500.0, price, "a hung tier must time out and yield to the next")
	require.EqualValues(t, 1, web.calls.Load())
}

func TestResolve_AllMiss(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := newTestCache(
		&fakeProvider{name: "broker", err: errors.New("down")},
		&fakeProvider{name: "webquote", err: provider.ErrNoPrice},
		clk,
	)

	_, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.ErrorIs(t, err, ErrNotFound)

	// A miss is not cached; the next call tries again.
	_, err = c.Resolve(context.Background(), "005930", ModeAuto)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_ModesAreIndependentKeys(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	broker := &fakeProvider{name: "broker", price: 70000}
	web := &fakeProvider{name: "webquote", price: 70500}
	c := newTestCache(broker, web, clk)

	auto, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.Equal(t, 70000.0, auto)

	webPrice, err := c.Resolve(context.Background(), "005930", ModeWeb)
	require.NoError(t, err)
	require.Equal(t, 70500.0, webPrice)
}

func TestClear(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	p := &fakeProvider{name: "broker", price: 70000}
	c := newTestCache(p, nil, clk)

	_, err := c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)

	c.Clear()

	_, err = c.Resolve(context.Background(), "005930", ModeAuto)
	require.NoError(t, err)
	require.EqualValues(t, 2, p.calls.Load(), "clear must force a fresh resolution")
}

func TestResolve_MissingTierReturnsNotFound(t *testing.T) {
	clk := &fakeClock{t: time.Now()}
	c := newTestCache(nil, nil, clk)

	_, err := c.Resolve(context.Background(), "005930", ModeChart)
	require.ErrorIs(t, err, ErrNotFound)
}
