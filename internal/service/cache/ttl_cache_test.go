package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) Now() time.Time          { return f.t }
func (f *fakeClock) Advance(d time.Duration) { f.t = f.t.Add(d) }

func TestTTLCacheExpiry(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	c := NewTTLCache[string](3*time.Second, WithClock[string](clk.Now))

	c.Set("BTCUSDT|1h", "a")
	clk.Advance(2999 * time.Millisecond)
	v, ok := c.Get("BTCUSDT|1h")
	assert.True(t, ok)
	assert.Equal(t, "a", v)

	clk.Advance(time.Millisecond)
	_, ok = c.Get("BTCUSDT|1h")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheReplaceResetsAge(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTLCache[int](5*time.Second, WithClock[int](clk.Now))
	c.Set("k", 1)
	clk.Advance(4 * time.Second)
	c.Set("k", 2)
	clk.Advance(4 * time.Second)
	e, ok := c.GetEntry("k")
	assert.True(t, ok)
	assert.Equal(t, 2, e.Value)
	assert.Equal(t, time.Unix(4, 0), e.InsertedAt)
}

func TestTTLCacheLiveness(t *testing.T) {
	attached := map[string]bool{"a": true}
	c := NewTTLCache[string](time.Minute, WithLiveness(func(v string) bool { return attached[v] }))
	c.Set("symbol", "a")
	_, ok := c.Get("symbol")
	assert.True(t, ok)

	attached["a"] = false
	_, ok = c.Get("symbol")
	assert.False(t, ok)
}

func TestTTLCacheInvalidateAndClear(t *testing.T) {
	c := NewTTLCache[int](time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Invalidate("a")
	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Len())
	c.Clear()
	assert.Equal(t, 0, c.Len())
}

func TestTTLCacheSetTTLOverridesDefault(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTLCache[string](10*time.Second, WithClock[string](clk.Now))

	c.SetTTL("short", "s", 2*time.Second)
	c.SetTTL("long", "l", 30*time.Second)
	c.Set("default", "d")

	e, ok := c.GetEntry("short")
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, e.TTL)

	clk.Advance(2 * time.Second)
	_, ok = c.Get("short")
	assert.False(t, ok)
	_, ok = c.Get("default")
	assert.True(t, ok)

	clk.Advance(8 * time.Second)
	_, ok = c.Get("default")
	assert.False(t, ok)
	v, ok := c.Get("long")
	assert.True(t, ok)
	assert.Equal(t, "l", v)

	clk.Advance(20 * time.Second)
	_, ok = c.Get("long")
	assert.False(t, ok)
}

func TestTTLCacheSetTTLNonPositiveUsesDefault(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	c := NewTTLCache[int](3*time.Second, WithClock[int](clk.Now))
	c.SetTTL("zero", 1, 0)
	c.SetTTL("neg", 2, -time.Second)

	for _, k := range []string{"zero", "neg"} {
		e, ok := c.GetEntry(k)
		assert.True(t, ok, k)
		assert.Equal(t, c.TTL(), e.TTL, k)
	}
	clk.Advance(3 * time.Second)
	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("zero")
	assert.False(t, ok)
}
