package market

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pricesPayload = `{
	"success": true,
	"items": [
		{"market_hash_name": "AK-47 | Redline", "price": "584.75"},
		{"market_hash_name": "Glock-18 | Fade", "price": 1200.5},
		{"market_hash_name": "", "price": "10"},
		{"market_hash_name": "Broken Item", "price": "n/a"}
	]
}`

func TestRefresh(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(pricesPayload))
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, filepath.Join(t.TempDir(), "prices.csv"))
	require.NoError(t, l.Refresh(context.Background()))

	// string and numeric prices both decode
	price, ok := l.Lookup("AK-47 | Redline")
	require.True(t, ok)
	assert.Equal(t, 584.75, price)

	price, ok = l.Lookup("Glock-18 | Fade")
	require.True(t, ok)
	assert.Equal(t, 1200.5, price)

	// nameless and unparsable entries are dropped
	assert.Equal(t, 2, l.Table().Len())
	_, ok = l.Lookup("Broken Item")
	assert.False(t, ok)
}

func TestRefreshBadStatusKeepsTable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Write([]byte(pricesPayload))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	l := NewLoader(srv.URL, filepath.Join(t.TempDir(), "prices.csv"))
	require.NoError(t, l.Refresh(context.Background()))
	require.Error(t, l.Refresh(context.Background()))

	_, ok := l.Lookup("AK-47 | Redline")
	assert.True(t, ok, "a failed refresh keeps the previous table")
}

func TestSnapshotRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(pricesPayload))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "prices.csv")
	l := NewLoader(srv.URL, path)
	require.NoError(t, l.Refresh(context.Background()))

	fresh := NewLoader(srv.URL, path)
	require.NoError(t, fresh.LoadSnapshot())

	price, ok := fresh.Lookup("AK-47 | Redline")
	require.True(t, ok)
	assert.Equal(t, 584.75, price)
	assert.Equal(t, l.Table().Len(), fresh.Table().Len())
}

func TestLoadSnapshotMissingFile(t *testing.T) {
	l := NewLoader("http://unused.test", filepath.Join(t.TempDir(), "absent.csv"))
	assert.Error(t, l.LoadSnapshot())
}
