package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyIsStableRegardlessOfParamOrder(t *testing.T) {
	a := Key("profile", map[string]string{"ticker": "AAPL", "limit": "8"})
	b := Key("profile", map[string]string{"limit": "8", "ticker": "AAPL"})
	assert.Equal(t, a, b)
}

func TestKeyDiffersByEndpointOrParams(t *testing.T) {
	base := Key("profile", map[string]string{"ticker": "AAPL"})
	assert.NotEqual(t, base, Key("transcript", map[string]string{"ticker": "AAPL"}))
	assert.NotEqual(t, base, Key("profile", map[string]string{"ticker": "MSFT"}))
}

func TestCachePutThenGetRoundTrips(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	key := Key("profile", map[string]string{"ticker": "AAPL"})
	require.NoError(t, c.Put(key, []byte(`{"name":"Apple Inc."}`)))

	data, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Apple Inc."}`, string(data))
}

func TestCacheGetMissingKeyIsNotFound(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	_, ok, err := c.Get("does-not-exist")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCachePutOverwritesExistingKeyIdempotently(t *testing.T) {
	c, err := New(t.TempDir())
	require.NoError(t, err)

	key := Key("profile", map[string]string{"ticker": "AAPL"})
	require.NoError(t, c.Put(key, []byte(`{"name":"Apple Inc."}`)))
	require.NoError(t, c.Put(key, []byte(`{"name":"Apple Inc."}`)))

	data, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `{"name":"Apple Inc."}`, string(data))
}
