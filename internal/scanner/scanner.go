// Package scanner drives a full pass over the item database: one quote per
// item, persisted as it goes, with every enabled route evaluated against the
// fresh quote.
package scanner

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/maxfraid/cs2crap/internal/compare"
	"github.com/maxfraid/cs2crap/internal/notify"
	"github.com/maxfraid/cs2crap/internal/steam"
	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/services/store"
)

// refRefreshEvery is how many items a scan processes between reference
// price refreshes; external market prices drift during long scans
const refRefreshEvery = 80

// Catalogue enumeration order. Popularity-descending puts the traded items
// in the first pages, so a bounded refresh still covers what matters.
const (
	catalogSortColumn = "popular"
	catalogSortDir    = "desc"
)

// ErrScanActive reports that another pass already holds the scanner
var ErrScanActive = errors.New("another scan pass is already running")

// RouteSet selects which trading directions a scan evaluates
type RouteSet struct {
	SteamToSteam  bool
	MarketToSteam bool
	SteamToMarket bool
}

// DefaultRoutes enables every direction
func DefaultRoutes() RouteSet {
	return RouteSet{SteamToSteam: true, MarketToSteam: true, SteamToMarket: true}
}

// Any reports whether at least one route is enabled
func (r RouteSet) Any() bool {
	return r.SteamToSteam || r.MarketToSteam || r.SteamToMarket
}

// CrossMarket reports whether any enabled route needs reference prices
func (r RouteSet) CrossMarket() bool {
	return r.MarketToSteam || r.SteamToMarket
}

// Options configure one scan run
type Options struct {
	// All scans every item regardless of price; otherwise the listed
	// sell price must fall inside [PriceMin, PriceMax]
	All      bool
	PriceMin float64
	PriceMax float64
	Routes   RouteSet
}

// excludedPrefixes name the item families every scan skips: souvenir
// variants, graffiti and stickers trade too thin to arbitrage
var excludedPrefixes = []string{"Souvenir ", "Sealed Graffiti", "Sticker |"}

func excludedCategory(name string) bool {
	for _, prefix := range excludedPrefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Session summarizes a finished (or cancelled) scan
type Session struct {
	Total     int
	Processed int
	Found     int
	Cancelled bool
	// Refused means another pass held the scanner and nothing ran
	Refused bool
	Started time.Time
	Elapsed time.Duration
}

// Quoter produces a market quote for one item
type Quoter interface {
	Snapshot(ctx context.Context, itemID int64, href string, now time.Time) steam.Quote
}

// RefSource resolves external market reference prices
type RefSource interface {
	Refresh(ctx context.Context) error
	Lookup(name string) (float64, bool)
}

// Lister enumerates the market catalogue
type Lister interface {
	FetchListings(ctx context.Context, start, count int, sortColumn, sortDir string, progress func(pct int)) ([]steam.Listing, error)
}

// Sink receives findings and status lines
type Sink interface {
	Dispatch(ctx context.Context, o notify.Opportunity)
	Status(ctx context.Context, format string, args ...interface{})
}

// Scanner walks the item database and reports profitable routes. A pass
// over the store (Run or RefreshCatalog) holds an internal gate, so two
// triggers sharing one Scanner never interleave writes or alerts.
type Scanner struct {
	store     *store.CSVStore
	quoter    Quoter
	refs      RefSource
	catalog   Lister
	sink      Sink
	minVolume int
	now       func() time.Time
	gate      chan struct{}
	log       *logger.Logger
}

// New creates a scanner. minVolume gates route evaluation: items trading
// less than that in 24h are persisted but never alerted on.
func New(st *store.CSVStore, quoter Quoter, refs RefSource, catalog Lister, sink Sink, minVolume int) *Scanner {
	return &Scanner{
		store:     st,
		quoter:    quoter,
		refs:      refs,
		catalog:   catalog,
		sink:      sink,
		minVolume: minVolume,
		now:       time.Now,
		gate:      make(chan struct{}, 1),
		log:       logger.ForScanner(),
	}
}

// Run executes one scan pass. Cancellation is honored at item boundaries,
// so every processed item is already persisted when Run returns.
func (s *Scanner) Run(ctx context.Context, opts Options) (session Session) {
	session.Started = s.now()
	defer func() {
		session.Elapsed = time.Since(session.Started)
	}()

	if !s.tryAcquire() {
		session.Refused = true
		s.log.Warn().Msg("Scan refused, another pass is active")
		return session
	}
	defer s.release()

	if opts.Routes.CrossMarket() {
		if err := s.refs.Refresh(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Reference price refresh failed, using last known table")
		}
	}

	items := s.selectItems(opts)
	session.Total = len(items)
	s.log.Info().Int("items", session.Total).Msg("Scan started")

	lastBucket := 0
	for i, item := range items {
		if err := ctx.Err(); err != nil {
			session.Cancelled = true
			s.log.Info().Int("processed", session.Processed).Msg("Scan cancelled")
			return session
		}

		if opts.Routes.CrossMarket() && i > 0 && i%refRefreshEvery == 0 {
			if err := s.refs.Refresh(ctx); err != nil {
				s.log.Warn().Err(err).Msg("Mid-scan reference refresh failed")
			}
		}

		quote := s.quoter.Snapshot(ctx, item.ID, item.Href, s.now())
		if quote.ItemID != 0 {
			item.ID = quote.ItemID
		}
		item.PriceBuy = quote.Buy
		item.PriceSell = quote.Sell
		item.Volume = quote.Volume24h

		s.store.Upsert(item)
		if err := s.store.Flush(); err != nil {
			s.log.Error().Err(err).Msg("Failed to persist item row")
		}
		session.Processed++

		if bucket := session.Processed * 100 / session.Total / 10; bucket > lastBucket {
			lastBucket = bucket
			s.sink.Status(ctx, "Scan progress: %d%% (%d/%d)", bucket*10, session.Processed, session.Total)
		}

		session.Found += s.evaluate(ctx, item, quote, opts.Routes)
	}

	s.sink.Status(ctx, "Scan finished: %d items, %d opportunities", session.Processed, session.Found)
	return session
}

// selectItems applies the category exclusions and the price window over
// the stored sell prices
func (s *Scanner) selectItems(opts Options) []store.Item {
	var picked []store.Item
	for _, item := range s.store.Items() {
		if excludedCategory(item.Name) {
			continue
		}
		if opts.All {
			picked = append(picked, item)
			continue
		}
		if !item.PriceSell.Valid {
			continue
		}
		if item.PriceSell.Value < opts.PriceMin || item.PriceSell.Value > opts.PriceMax {
			continue
		}
		picked = append(picked, item)
	}
	return picked
}

// evaluate runs every enabled route over one fresh quote and dispatches
// the profitable ones. Items below the volume gate or with an incomplete
// spread are skipped outright; a half-quoted spread says nothing about
// profit.
func (s *Scanner) evaluate(ctx context.Context, item store.Item, quote steam.Quote, routes RouteSet) int {
	if quote.Volume24h < s.minVolume {
		return 0
	}
	if !quote.Buy.Valid || !quote.Sell.Valid {
		return 0
	}

	ref, hasRef := 0.0, false
	if routes.CrossMarket() {
		ref, hasRef = s.refs.Lookup(item.Name)
	}

	found := 0
	for _, route := range enabledRoutes(routes) {
		res := compare.Evaluate(route, quote.Buy.Value, quote.Sell.Value, ref, hasRef)
		if !res.Profitable {
			continue
		}
		found++
		s.sink.Dispatch(ctx, notify.Opportunity{
			ItemName: item.Name,
			Href:     item.Href,
			Volume:   quote.Volume24h,
			Buy:      quote.Buy,
			Sell:     quote.Sell,
			Result:   res,
		})
	}
	return found
}

func enabledRoutes(r RouteSet) []compare.Route {
	var routes []compare.Route
	if r.SteamToSteam {
		routes = append(routes, compare.SteamToSteam)
	}
	if r.MarketToSteam {
		routes = append(routes, compare.MarketToSteam)
	}
	if r.SteamToMarket {
		routes = append(routes, compare.SteamToMarket)
	}
	return routes
}

// tryAcquire takes the pass gate without blocking
func (s *Scanner) tryAcquire() bool {
	select {
	case s.gate <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Scanner) release() {
	<-s.gate
}

// RefreshCatalog pages the market search endpoint and merges the listings
// into the item database
func (s *Scanner) RefreshCatalog(ctx context.Context, start, count int) (int, error) {
	if !s.tryAcquire() {
		return 0, ErrScanActive
	}
	defer s.release()

	listings, err := s.catalog.FetchListings(ctx, start, count, catalogSortColumn, catalogSortDir, func(pct int) {
		s.sink.Status(ctx, "Catalogue refresh: %d%%", pct)
	})
	if err != nil {
		return 0, err
	}

	added := s.store.MergeListings(listings)
	if err := s.store.Flush(); err != nil {
		return added, err
	}

	s.log.Info().Int("listings", len(listings)).Int("added", added).Msg("Catalogue merged")
	return added, nil
}
