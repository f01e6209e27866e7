package store

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/maxfraid/cs2crap/internal/steam"
	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/pkg/errors"
)

// columns of the item database, in file order
var columns = []string{"id", "item_name", "price_buy", "price_sell", "volume", "item_href", "image_src"}

// Item is one row of the item database
type Item struct {
	// ID is the marketplace item id; 0 means not yet resolved
	ID   int64
	Name string
	// PriceBuy / PriceSell round-trip as empty cells when invalid
	PriceBuy  steam.Price
	PriceSell steam.Price
	// Volume is the last measured 24h sales count; -1 means never measured
	Volume   int
	Href     string
	ImageSrc string
}

// CSVStore is a flat tabular item store keyed by item name with
// upsert-or-append semantics. It keeps the table in memory and rewrites
// the whole file on Flush, so a cancelled scan still leaves the rows
// written so far on disk.
//
// It is safe for one writer at a time; concurrent scans must be
// serialized by the caller.
type CSVStore struct {
	path string
	log  *logger.Logger

	mu    sync.Mutex
	items []Item
	index map[string]int
}

// Open loads the item database at path, creating an empty one with the
// expected header when the file does not exist.
func Open(path string) (*CSVStore, error) {
	s := &CSVStore{
		path:  path,
		log:   logger.ForStore(),
		index: make(map[string]int),
	}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.NewStore("store", "cannot create data directory", err)
		}
		if err := s.Flush(); err != nil {
			return nil, err
		}
		return s, nil
	}
	if err != nil {
		return nil, errors.NewStore("store", fmt.Sprintf("cannot open %s", path), err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.NewStore("store", fmt.Sprintf("cannot read %s", path), err)
	}

	for i, rec := range records {
		if i == 0 {
			continue // header
		}
		item, ok := decodeRow(rec)
		if !ok {
			s.log.Warn().Int("line", i+1).Msg("Skipping malformed row")
			continue
		}
		s.index[item.Name] = len(s.items)
		s.items = append(s.items, item)
	}

	return s, nil
}

// Len returns the number of rows
func (s *CSVStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Items returns a copy of all rows in file order
func (s *CSVStore) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Item, len(s.items))
	copy(out, s.items)
	return out
}

// Get looks up a row by item name
func (s *CSVStore) Get(name string) (Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[name]
	if !ok {
		return Item{}, false
	}
	return s.items[i], true
}

// Upsert replaces the row matching the item name, or appends a new one
func (s *CSVStore) Upsert(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i, ok := s.index[item.Name]; ok {
		s.items[i] = item
		return
	}
	s.index[item.Name] = len(s.items)
	s.items = append(s.items, item)
}

// MergeListings upserts catalogue rows, keeping any quote data already on
// file and only refreshing the name/href/image columns. Returns the number
// of rows that were new.
func (s *CSVStore) MergeListings(listings []steam.Listing) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	added := 0
	for _, l := range listings {
		if i, ok := s.index[l.Name]; ok {
			s.items[i].Href = l.Href
			s.items[i].ImageSrc = l.ImageSrc
			continue
		}
		s.index[l.Name] = len(s.items)
		s.items = append(s.items, Item{Name: l.Name, Href: l.Href, ImageSrc: l.ImageSrc, Volume: -1})
		added++
	}
	return added
}

// Flush writes the whole table back to disk via a temp-file rename
func (s *CSVStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.NewStore("store", "cannot create temp file", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(columns); err != nil {
		f.Close()
		return errors.NewStore("store", "cannot write header", err)
	}
	for _, item := range s.items {
		if err := w.Write(encodeRow(item)); err != nil {
			f.Close()
			return errors.NewStore("store", "cannot write row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return errors.NewStore("store", "cannot flush rows", err)
	}
	if err := f.Close(); err != nil {
		return errors.NewStore("store", "cannot close temp file", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		return errors.NewStore("store", "cannot replace database file", err)
	}
	return nil
}

func encodeRow(item Item) []string {
	return []string{
		encodeID(item.ID),
		item.Name,
		encodePrice(item.PriceBuy),
		encodePrice(item.PriceSell),
		encodeVolume(item.Volume),
		item.Href,
		item.ImageSrc,
	}
}

func decodeRow(rec []string) (Item, bool) {
	if len(rec) != len(columns) {
		return Item{}, false
	}
	name := strings.ReplaceAll(rec[1], "&amp;", "&")
	if name == "" {
		return Item{}, false
	}
	return Item{
		ID:        decodeID(rec[0]),
		Name:      name,
		PriceBuy:  decodePrice(rec[2]),
		PriceSell: decodePrice(rec[3]),
		Volume:    decodeVolume(rec[4]),
		Href:      rec[5],
		ImageSrc:  rec[6],
	}, true
}

func encodeID(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func decodeID(cell string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(cell), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

func encodePrice(p steam.Price) string {
	if !p.Valid {
		return ""
	}
	return strconv.FormatFloat(p.Value, 'f', -1, 64)
}

func decodePrice(cell string) steam.Price {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return steam.Price{}
	}
	return steam.PriceOf(v)
}

func encodeVolume(v int) string {
	if v < 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func decodeVolume(cell string) int {
	v, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || v < 0 {
		return -1
	}
	return v
}
