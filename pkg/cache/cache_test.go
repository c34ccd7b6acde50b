package cache

import (
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

func newTestCache(t *testing.T, ttl time.Duration) (*Cache, *fakeClock) {
	t.Helper()
	clk := &fakeClock{now: time.Date(2025, 3, 3, 9, 30, 0, 0, time.UTC)}
	return New(ttl, WithClock(clk.Now)), clk
}

func TestSetAndGet(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set("market_indices", []string{"SPY"})

	v, ok := c.Get("market_indices")
	require.True(t, ok)
	assert.Equal(t, []string{"SPY"}, v)

	_, ok = c.Get("market_summary")
	assert.False(t, ok)
}

func TestExpiryPurgesEntry(t *testing.T) {
	c, clk := newTestCache(t, time.Minute)
	c.Set("k", 1)

	clk.Advance(time.Minute)
	_, ok := c.Get("k")
	assert.True(t, ok, "entry at exactly the TTL is still fresh")

	clk.Advance(time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Empty(t, c.Keys())
}

func TestSetReplacesAndRestartsWindow(t *testing.T) {
	c, clk := newTestCache(t, time.Minute)
	c.Set("k", "old")
	clk.Advance(50 * time.Second)
	c.Set("k", "new")
	clk.Advance(50 * time.Second)

	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "new", v)
}

func TestInvalidate(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set("scan_market_default", 1)
	c.Set(`scan_market_{"enableRoss":true}`, 2)
	c.Set("scan_movers_default", 3)
	c.Set("news_all", 4)

	assert.Equal(t, 2, c.Invalidate("scan_market"))
	keys := c.Keys()
	sort.Strings(keys)
	assert.Equal(t, []string{"news_all", "scan_movers_default"}, keys)

	assert.Equal(t, 2, c.Invalidate(""))
	assert.Empty(t, c.Keys())
}

func TestDelete(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set("analysis_AA", 1)
	c.Set("analysis_AAPL", 2)

	assert.True(t, c.Delete("analysis_AA"))
	assert.False(t, c.Delete("analysis_AA"))
	assert.Equal(t, []string{"analysis_AAPL"}, c.Keys())
}

func TestPeekLeavesStats(t *testing.T) {
	c, clk := newTestCache(t, time.Minute)
	c.Set("k", 1)

	v, ok := c.Peek("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)
	_, ok = c.Peek("missing")
	assert.False(t, ok)

	clk.Advance(2 * time.Minute)
	_, ok = c.Peek("k")
	assert.False(t, ok)

	st := c.Stats()
	assert.Zero(t, st.Hits)
	assert.Zero(t, st.Misses)
	assert.Equal(t, int64(1), st.Entries, "peek does not purge")
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set("a", 1)
	c.Get("a")
	c.Get("b")

	s := c.Stats()
	assert.Equal(t, int64(1), s.Entries)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
	assert.Equal(t, time.Minute, s.TTL)
}

func TestLookup(t *testing.T) {
	c, _ := newTestCache(t, time.Minute)
	c.Set("n", 42)

	n, ok := Lookup[int](c, "n")
	require.True(t, ok)
	assert.Equal(t, 42, n)

	_, ok = Lookup[string](c, "n")
	assert.False(t, ok)
}

func TestDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTTL, New(0).TTL())
}

func TestConcurrentAccess(t *testing.T) {
	c := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Set("k", j)
				c.Get("k")
				c.Invalidate("x")
			}
		}()
	}
	wg.Wait()
	_, ok := c.Get("k")
	assert.True(t, ok)
}
