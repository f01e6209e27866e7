package steam

import (
	"context"
	"fmt"
	"time"

	"github.com/maxfraid/cs2crap/internal/fetcher"
	"github.com/maxfraid/cs2crap/logger"
)

// PageFetcher retrieves raw page text; satisfied by *fetcher.Fetcher
type PageFetcher interface {
	Fetch(ctx context.Context, url string, tr fetcher.Range, postDelay bool) (string, error)
}

// priceFetchAttempts bounds the histogram retries when the expected
// two-token pattern is not found
const priceFetchAttempts = 3

// Client talks to the Steam Community Market through the resilient fetcher
type Client struct {
	fetcher      PageFetcher
	histogramURL string
	timeouts     fetcher.Range
	country      string
	language     string
	currency     int
	log          *logger.Logger
}

// NewClient creates a market client. The currency/locale parameters match
// the RUB-denominated pages the extraction patterns were written against.
func NewClient(pf PageFetcher, histogramURL string, timeouts fetcher.Range) *Client {
	return &Client{
		fetcher:      pf,
		histogramURL: histogramURL,
		timeouts:     timeouts,
		country:      "RU",
		language:     "russian",
		currency:     5,
		log:          logger.ForSteam(),
	}
}

// FetchItemPage retrieves a single item listing page
func (c *Client) FetchItemPage(ctx context.Context, href string) (string, error) {
	return c.fetcher.Fetch(ctx, href, c.timeouts, false)
}

// ResolveItem fetches the listing page for href and extracts the item id.
// A missing id is a soft failure: 0 is returned together with the page so
// the caller can still extract the volume without a second request.
func (c *Client) ResolveItem(ctx context.Context, href string) (int64, string) {
	page, err := c.FetchItemPage(ctx, href)
	if err != nil {
		c.log.Warn().Str("href", href).Err(err).Msg("Failed to fetch item page")
		return 0, ""
	}

	id, ok := ExtractItemID(page)
	if !ok {
		c.log.Warn().Str("href", href).Msg("Item id not found on page")
		return 0, page
	}

	c.log.Debug().Int64("item_id", id).Msg("Resolved item id")
	return id, page
}

// FetchPrices returns the instant-buy and instant-sell prices for an item.
// Exhausting all attempts yields two invalid prices meaning "no liquidity",
// never an error.
func (c *Client) FetchPrices(ctx context.Context, itemID int64) (buy, sell Price) {
	url := fmt.Sprintf("%s?country=%s&language=%s&currency=%d&item_nameid=%d&two_factor=0",
		c.histogramURL, c.country, c.language, c.currency, itemID)

	for attempt := 1; attempt <= priceFetchAttempts; attempt++ {
		page, err := c.fetcher.Fetch(ctx, url, c.timeouts, false)
		if err != nil {
			c.log.Warn().Int64("item_id", itemID).Int("attempt", attempt).Err(err).Msg("Histogram fetch failed")
			continue
		}

		if b, s, ok := ParsePriceTokens(page); ok {
			return PriceOf(b), PriceOf(s)
		}
		c.log.Debug().Int64("item_id", itemID).Int("attempt", attempt).Msg("Price tokens not found")
	}

	c.log.Warn().Int64("item_id", itemID).Msg("No orders found for item")
	return Price{}, Price{}
}

// Snapshot assembles a full quote for an item: id (resolved from href when
// missing), trailing 24h volume and the current order-spread prices.
func (c *Client) Snapshot(ctx context.Context, itemID int64, href string, now time.Time) Quote {
	var page string
	if itemID == 0 {
		itemID, page = c.ResolveItem(ctx, href)
	}

	volume := 0
	if page == "" {
		var err error
		page, err = c.FetchItemPage(ctx, href)
		if err != nil {
			c.log.Warn().Str("href", href).Err(err).Msg("Failed to fetch page for volume")
		}
	}
	if page != "" {
		volume = ExtractVolume(page, now)
	}

	quote := Quote{
		ItemID:    itemID,
		Volume24h: volume,
		FetchedAt: now,
	}
	if itemID != 0 {
		quote.Buy, quote.Sell = c.FetchPrices(ctx, itemID)
	}
	return quote
}
