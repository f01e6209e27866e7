// Package compare holds the pure profit-decision logic. No I/O, no state:
// every function maps prices to booleans and margins.
//
// Naming contract: buy is the lowest current sell listing (what a taker pays
// to buy instantly), sell is the highest current buy order (what a taker
// receives to sell instantly). Swapping the two silently inverts profits.
package compare

import "math"

// Route is one of the three trading directions
type Route int

const (
	// SteamToSteam resells inside the Steam market
	SteamToSteam Route = iota
	// MarketToSteam buys on the external market and sells on Steam
	MarketToSteam
	// SteamToMarket buys on Steam and sells on the external market
	SteamToMarket
)

func (r Route) String() string {
	switch r {
	case SteamToSteam:
		return "steam_to_steam"
	case MarketToSteam:
		return "market_to_steam"
	case SteamToMarket:
		return "steam_to_market"
	}
	return "unknown"
}

// Tunable constants. MarginThreshold is the configured profitability bar;
// the commissions feed only the reported margin figures. The threshold is
// not derived from the commissions, the two are independently tunable.
const (
	// MarginThreshold is the gross spread required to flag a route
	MarginThreshold = 0.20
	// SteamCommission is the sale fee on the Steam market
	SteamCommission = 0.13
	// MarketCommission is the sale fee on the external market
	MarketCommission = 0.05
)

// Result is the outcome of evaluating one route for one item
type Result struct {
	Route      Route
	Profitable bool
	// ByBuy / BySell report which side of the spread crossed the threshold
	// on cross-market routes; on SteamToSteam only Profitable is meaningful
	ByBuy  bool
	BySell bool
	// ReferencePrice is the external market price for cross-market routes
	ReferencePrice float64
	HasReference   bool
	// MarginPct is the estimated net margin after commission, percent
	MarginPct float64
}

// SameMarket reports whether reselling inside one market is profitable:
// the gross spread must strictly exceed the threshold share of the
// instant-buy price.
func SameMarket(buy, sell float64) bool {
	return buy-sell > MarginThreshold*buy
}

// MarketToSteamSpread compares an external reference price against both
// Steam prices for the external-to-Steam route. The two flags are
// independent: byBuy only looks at the instant-buy price, bySell only at
// the instant-sell price.
func MarketToSteamSpread(ref, buy, sell float64) (byBuy, bySell bool) {
	byBuy = buy-ref > MarginThreshold*buy
	bySell = sell-ref > MarginThreshold*sell
	return byBuy, bySell
}

// SteamToMarketSpread compares both Steam prices against an external
// reference price for the Steam-to-external route; the inequality direction
// is reversed relative to MarketToSteamSpread.
func SteamToMarketSpread(ref, buy, sell float64) (byBuy, bySell bool) {
	byBuy = ref-buy > MarginThreshold*ref
	bySell = ref-sell > MarginThreshold*ref
	return byBuy, bySell
}

// Evaluate runs one route over a quote. ref and hasRef carry the external
// market price for cross-market routes; a missing reference yields a
// non-profitable "no data" result, not an error.
func Evaluate(route Route, buy, sell, ref float64, hasRef bool) Result {
	res := Result{Route: route, ReferencePrice: ref, HasReference: hasRef}

	switch route {
	case SteamToSteam:
		res.Profitable = SameMarket(buy, sell)
		if res.Profitable {
			res.MarginPct = netMarginPct(buy*(1-SteamCommission), sell)
		}

	case MarketToSteam:
		if !hasRef {
			return res
		}
		res.ByBuy, res.BySell = MarketToSteamSpread(ref, buy, sell)
		res.Profitable = res.ByBuy || res.BySell
		if res.BySell {
			res.MarginPct = netMarginPct(sell*(1-SteamCommission), ref)
		} else if res.ByBuy {
			res.MarginPct = netMarginPct(buy*(1-SteamCommission), ref)
		}

	case SteamToMarket:
		if !hasRef {
			return res
		}
		res.ByBuy, res.BySell = SteamToMarketSpread(ref, buy, sell)
		res.Profitable = res.ByBuy || res.BySell
		if res.ByBuy {
			res.MarginPct = netMarginPct(ref*(1-MarketCommission), buy)
		} else if res.BySell {
			res.MarginPct = netMarginPct(ref*(1-MarketCommission), sell)
		}
	}

	return res
}

// netMarginPct is the rounded percentage gain of proceeds over cost
func netMarginPct(proceeds, cost float64) float64 {
	if cost == 0 {
		return 0
	}
	return math.Round((proceeds - cost) / cost * 100)
}
