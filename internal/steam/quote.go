package steam

import "time"

// Price is an optional price. Valid is false when the market has no orders
// on the relevant side, which is distinct from a real zero.
type Price struct {
	Value float64
	Valid bool
}

// PriceOf wraps a known price value
func PriceOf(v float64) Price {
	return Price{Value: v, Valid: true}
}

// Quote is a snapshot of market state for one item.
//
// Naming note: Buy is the lowest current sell listing, the price a taker
// pays to buy instantly. Sell is the highest current buy order, the price
// a taker receives to sell instantly. The mapping is inverted from naive
// expectation and must stay consistent with the comparator.
type Quote struct {
	ItemID    int64
	Buy       Price
	Sell      Price
	Volume24h int
	FetchedAt time.Time
}

// Listing is one catalogue row from the market search results
type Listing struct {
	Name     string
	Href     string
	ImageSrc string
}
