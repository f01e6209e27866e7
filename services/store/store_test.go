package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maxfraid/cs2crap/internal/steam"
)

func tempStore(t *testing.T) (*CSVStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "items.csv")
	s, err := Open(path)
	require.NoError(t, err)
	return s, path
}

func TestOpenCreatesEmptyDatabase(t *testing.T) {
	_, path := tempStore(t)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "id,item_name,price_buy,price_sell,volume,item_href,image_src", strings.TrimSpace(string(raw)))
}

func TestRoundTrip(t *testing.T) {
	s, path := tempStore(t)

	full := Item{
		ID:        176321160,
		Name:      "AK-47 | Redline",
		PriceBuy:  steam.PriceOf(584.75),
		PriceSell: steam.PriceOf(520),
		Volume:    31,
		Href:      "https://steamcommunity.com/market/listings/730/AK-47",
		ImageSrc:  "https://cdn.example/ak.png",
	}
	// unresolved item: no id, no prices, never measured
	bare := Item{Name: "Unknown Case", Volume: -1}

	s.Upsert(full)
	s.Upsert(bare)
	require.NoError(t, s.Flush())

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Len())

	got, ok := reloaded.Get("AK-47 | Redline")
	require.True(t, ok)
	assert.Equal(t, full, got)

	got, ok = reloaded.Get("Unknown Case")
	require.True(t, ok)
	assert.False(t, got.PriceBuy.Valid)
	assert.False(t, got.PriceSell.Valid)
	assert.Equal(t, int64(0), got.ID)
	assert.Equal(t, -1, got.Volume)
}

func TestUpsertReplacesByName(t *testing.T) {
	s, _ := tempStore(t)

	s.Upsert(Item{Name: "AK-47 | Redline", Volume: 10})
	s.Upsert(Item{Name: "AK-47 | Redline", Volume: 42, PriceBuy: steam.PriceOf(600)})

	assert.Equal(t, 1, s.Len())
	got, _ := s.Get("AK-47 | Redline")
	assert.Equal(t, 42, got.Volume)
	assert.Equal(t, 600.0, got.PriceBuy.Value)
}

func TestMergeListingsKeepsQuoteData(t *testing.T) {
	s, _ := tempStore(t)

	s.Upsert(Item{
		Name:     "AK-47 | Redline",
		PriceBuy: steam.PriceOf(584.75),
		Volume:   31,
		Href:     "https://old.example/ak",
	})

	added := s.MergeListings([]steam.Listing{
		{Name: "AK-47 | Redline", Href: "https://new.example/ak", ImageSrc: "https://cdn.example/ak.png"},
		{Name: "Glock-18 | Fade", Href: "https://new.example/glock", ImageSrc: "https://cdn.example/glock.png"},
	})

	assert.Equal(t, 1, added)
	assert.Equal(t, 2, s.Len())

	ak, _ := s.Get("AK-47 | Redline")
	assert.Equal(t, "https://new.example/ak", ak.Href, "href is refreshed")
	assert.Equal(t, 584.75, ak.PriceBuy.Value, "quote data survives the merge")
	assert.Equal(t, 31, ak.Volume)

	glock, _ := s.Get("Glock-18 | Fade")
	assert.Equal(t, -1, glock.Volume, "new rows start unmeasured")
}

func TestItemsReturnsCopy(t *testing.T) {
	s, _ := tempStore(t)
	s.Upsert(Item{Name: "AK-47 | Redline"})

	items := s.Items()
	items[0].Name = "mutated"

	got, ok := s.Get("AK-47 | Redline")
	assert.True(t, ok)
	assert.Equal(t, "AK-47 | Redline", got.Name)
}
