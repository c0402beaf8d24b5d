package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, enabled bool) *Cache {
	t.Helper()
	return New(NewMemoryStore(), time.Hour, enabled, zap.NewNop())
}

func TestBuildKeyDeterministic(t *testing.T) {
	a := BuildKey("attribution_summary:logistic", Params{
		"features":  []string{"income", "age", "debt"},
		"n_samples": 500,
	})
	b := BuildKey("attribution_summary:logistic", Params{
		"n_samples": 500,
		"features":  []string{"debt", "income", "age"},
	})
	assert.Equal(t, a, b, "feature ordering must not change the key")

	c := BuildKey("attribution_summary:logistic", Params{
		"features":  []string{"income", "age"},
		"n_samples": 500,
	})
	assert.NotEqual(t, a, c, "different feature sets must produce different keys")
}

func TestBuildKeyEmbedsNamespace(t *testing.T) {
	key := BuildKey("dependence:random_forest", Params{"feature": "income"})
	assert.Contains(t, key, "dependence:random_forest:")
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(t, true)

	_, ok := c.Get("ns", Params{"a": 1})
	assert.False(t, ok, "empty cache must miss")

	c.Set("ns", Params{"a": 1}, []byte(`{"x":1}`))
	payload, ok := c.Get("ns", Params{"a": 1})
	require.True(t, ok)
	assert.Equal(t, []byte(`{"x":1}`), payload)

	_, ok = c.Get("ns", Params{"a": 2})
	assert.False(t, ok, "different params must miss")
}

func TestCacheTTLExpiry(t *testing.T) {
	c := newTestCache(t, true)

	base := time.Now()
	c.now = func() time.Time { return base }
	c.Set("ns", Params{"a": 1}, []byte("v"))

	_, ok := c.Get("ns", Params{"a": 1})
	assert.True(t, ok, "fresh entry must hit")

	c.now = func() time.Time { return base.Add(2 * time.Hour) }
	_, ok = c.Get("ns", Params{"a": 1})
	assert.False(t, ok, "expired entry must miss")

	// The expired row is deleted on the miss, so a re-set works cleanly.
	c.Set("ns", Params{"a": 1}, []byte("v2"))
	payload, ok := c.Get("ns", Params{"a": 1})
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), payload)
}

func TestCacheDisabled(t *testing.T) {
	c := newTestCache(t, false)

	c.Set("ns", Params{"a": 1}, []byte("v"))
	_, ok := c.Get("ns", Params{"a": 1})
	assert.False(t, ok, "disabled cache never hits")
}

func TestInvalidatePrefix(t *testing.T) {
	c := newTestCache(t, true)

	c.Set("attribution_summary:logistic", Params{"n": 1}, []byte("a"))
	c.Set("attribution_summary:logistic", Params{"n": 2}, []byte("b"))
	c.Set("attribution_summary:random_forest", Params{"n": 1}, []byte("c"))
	c.Set("dependence:logistic", Params{"n": 1}, []byte("d"))

	removed := c.InvalidatePrefix("attribution_summary:logistic")
	assert.Equal(t, 2, removed)

	_, ok := c.Get("attribution_summary:logistic", Params{"n": 1})
	assert.False(t, ok)
	_, ok = c.Get("attribution_summary:random_forest", Params{"n": 1})
	assert.True(t, ok, "other namespaces must survive")
	_, ok = c.Get("dependence:logistic", Params{"n": 1})
	assert.True(t, ok)

	removed = c.InvalidatePrefix("attribution_summary:logistic")
	assert.Equal(t, 0, removed, "second invalidation finds nothing")
}

func TestClear(t *testing.T) {
	c := newTestCache(t, true)

	c.Set("a", Params{"n": 1}, []byte("1"))
	c.Set("b", Params{"n": 1}, []byte("2"))

	assert.Equal(t, 2, c.Clear())
	assert.Equal(t, 0, c.Clear())
}

func TestGetSetJSON(t *testing.T) {
	c := newTestCache(t, true)

	type result struct {
		Score float64 `json:"score"`
	}

	c.SetJSON("ns", Params{"a": 1}, result{Score: 0.75})

	var out result
	require.True(t, c.GetJSON("ns", Params{"a": 1}, &out))
	assert.Equal(t, 0.75, out.Score)
}

func TestGetJSONCorruptPayloadIsMiss(t *testing.T) {
	c := newTestCache(t, true)

	c.Set("ns", Params{"a": 1}, []byte("{not json"))

	var out map[string]float64
	assert.False(t, c.GetJSON("ns", Params{"a": 1}, &out))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	c := New(store, time.Hour, true, zap.NewNop())

	c.Set("attribution_summary:logistic", Params{"n": 1}, []byte("a"))
	c.Set("attribution_summary:logistic", Params{"n": 2}, []byte("b"))
	c.Set("dependence:logistic", Params{"n": 1}, []byte("c"))

	payload, ok := c.Get("attribution_summary:logistic", Params{"n": 1})
	require.True(t, ok)
	assert.Equal(t, []byte("a"), payload)

	removed := c.InvalidatePrefix("attribution_summary:")
	assert.Equal(t, 2, removed)

	_, ok = c.Get("dependence:logistic", Params{"n": 1})
	assert.True(t, ok)

	assert.Equal(t, 1, c.Clear())
}

func TestSQLiteStorePrefixEscaping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Set("a_b:1", []byte("x"), time.Now().Add(time.Hour)))
	require.NoError(t, store.Set("axb:1", []byte("y"), time.Now().Add(time.Hour)))

	// The underscore must match literally, not as a LIKE wildcard.
	removed, err := store.DeletePrefix("a_b")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, _, ok, err := store.Get("axb:1")
	require.NoError(t, err)
	assert.True(t, ok)
}
