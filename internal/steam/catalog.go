package steam

import (
	"context"
	"fmt"

	"github.com/maxfraid/cs2crap/internal/fetcher"
	"github.com/maxfraid/cs2crap/logger"
)

// catalogPageSize is the maximum page size the search endpoint serves
const catalogPageSize = 100

// Catalog pages the market search endpoint to enumerate the item universe
type Catalog struct {
	fetcher         PageFetcher
	searchRenderURL string
	timeouts        fetcher.Range
	log             *logger.Logger
}

// NewCatalog creates a catalogue loader
func NewCatalog(pf PageFetcher, searchRenderURL string, timeouts fetcher.Range) *Catalog {
	return &Catalog{
		fetcher:         pf,
		searchRenderURL: searchRenderURL,
		timeouts:        timeouts,
		log:             logger.ForSteam(),
	}
}

// FetchListings retrieves count listings starting at start, 100 per request.
// A failed page is skipped, not fatal. progress, when non-nil, receives each
// crossed 10% bucket exactly once.
func (c *Catalog) FetchListings(ctx context.Context, start, count int, sortColumn, sortDir string, progress func(pct int)) ([]Listing, error) {
	var listings []Listing
	lastBucket := 0

	for offset := start; offset < start+count; offset += catalogPageSize {
		if err := ctx.Err(); err != nil {
			return listings, err
		}

		url := fmt.Sprintf("%s?query=&start=%d&count=%d&search_descriptions=0&sort_column=%s&sort_dir=%s&appid=730",
			c.searchRenderURL, offset, catalogPageSize, sortColumn, sortDir)

		page, err := c.fetcher.Fetch(ctx, url, c.timeouts, true)
		if err != nil {
			c.log.Warn().Int("offset", offset).Err(err).Msg("Catalogue page fetch failed")
			continue
		}

		rows := ParseListings(page)
		listings = append(listings, rows...)
		c.log.Debug().Int("offset", offset).Int("rows", len(rows)).Msg("Catalogue page parsed")

		done := offset + catalogPageSize - start
		if bucket := done * 100 / count / 10; bucket > lastBucket {
			lastBucket = bucket
			if progress != nil {
				progress(bucket * 10)
			}
		}
	}

	return listings, nil
}
