// Package market loads the external marketplace price list used as the
// reference side of cross-market comparisons.
package market

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/pkg/errors"
)

// PriceTable is a read-only name -> reference price lookup
type PriceTable struct {
	mu     sync.RWMutex
	prices map[string]float64
}

// Lookup returns the reference price for an item name. A miss means the
// item is absent from the external market dataset, which callers report as
// "no data", not an error.
func (t *PriceTable) Lookup(name string) (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	price, ok := t.prices[name]
	return price, ok
}

// Len returns the number of priced items
func (t *PriceTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.prices)
}

// replace swaps the whole table in one step
func (t *PriceTable) replace(prices map[string]float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.prices = prices
}

// flexPrice decodes the price field, which the API serves either as a
// bare number or as a quoted string
type flexPrice float64

func (p *flexPrice) UnmarshalJSON(data []byte) error {
	v, err := strconv.ParseFloat(strings.Trim(string(data), `"`), 64)
	if err != nil {
		// a malformed entry must not fail the whole payload
		*p = 0
		return nil
	}
	*p = flexPrice(v)
	return nil
}

// priceList mirrors the external prices API payload
type priceList struct {
	Success bool `json:"success"`
	Items   []struct {
		MarketHashName string    `json:"market_hash_name"`
		Price          flexPrice `json:"price"`
	} `json:"items"`
}

// Loader downloads the price list and persists it as a two-column CSV
// {market_hash_name, price} so a scan can start from the last snapshot
// when the API is down.
type Loader struct {
	url    string
	path   string
	client *http.Client
	table  *PriceTable
	log    *logger.Logger
}

// NewLoader creates a loader writing its snapshot to path
func NewLoader(url, path string) *Loader {
	return &Loader{
		url:    url,
		path:   path,
		client: &http.Client{Timeout: 30 * time.Second},
		table:  &PriceTable{prices: make(map[string]float64)},
		log:    logger.ForMarket(),
	}
}

// Table returns the current in-memory table
func (l *Loader) Table() *PriceTable {
	return l.table
}

// Lookup proxies to the current table
func (l *Loader) Lookup(name string) (float64, bool) {
	return l.table.Lookup(name)
}

// Refresh downloads the price list, updates the in-memory table and
// rewrites the CSV snapshot. The previous table is kept on any failure.
func (l *Loader) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", l.url, nil)
	if err != nil {
		return errors.NewConfiguration("invalid reference prices url", err)
	}

	resp, err := l.client.Do(req)
	if err != nil {
		return errors.NewNetwork("market", "failed to fetch reference prices", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.NewNetwork("market", fmt.Sprintf("reference prices request returned %d", resp.StatusCode), nil)
	}

	var payload priceList
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return errors.NewParsing("market", "failed to decode reference prices", err)
	}

	prices := make(map[string]float64, len(payload.Items))
	for _, item := range payload.Items {
		if item.MarketHashName == "" || item.Price <= 0 {
			continue
		}
		prices[item.MarketHashName] = float64(item.Price)
	}

	l.table.replace(prices)
	l.log.Info().Int("items", len(prices)).Msg("Reference prices updated")

	if err := l.persist(prices); err != nil {
		l.log.Warn().Err(err).Msg("Failed to persist reference prices snapshot")
	}
	return nil
}

// LoadSnapshot fills the table from the persisted CSV
func (l *Loader) LoadSnapshot() error {
	f, err := os.Open(l.path)
	if err != nil {
		return errors.NewStore("market", "cannot open reference prices snapshot", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return errors.NewStore("market", "cannot read reference prices snapshot", err)
	}

	prices := make(map[string]float64, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) < 2 {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		if err != nil {
			continue
		}
		prices[rec[0]] = price
	}

	l.table.replace(prices)
	l.log.Info().Int("items", len(prices)).Msg("Reference prices loaded from snapshot")
	return nil
}

func (l *Loader) persist(prices map[string]float64) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	tmp := l.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	w := csv.NewWriter(f)
	if err := w.Write([]string{"market_hash_name", "price"}); err != nil {
		f.Close()
		return err
	}
	for name, price := range prices {
		if err := w.Write([]string{name, strconv.FormatFloat(price, 'f', -1, 64)}); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}
