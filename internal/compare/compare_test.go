package compare

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSameMarketStrictThreshold(t *testing.T) {
	assert.True(t, SameMarket(100, 79.9))
	assert.False(t, SameMarket(100, 80.0), "spread exactly at the threshold must not fire")
	assert.False(t, SameMarket(100, 80.1))
}

func TestSameMarketInvertedSpread(t *testing.T) {
	// buy is the lowest listing, sell the highest order; a negative spread
	// must never fire no matter how large it looks in absolute terms
	assert.False(t, SameMarket(584.75, 779.92))
}

func TestCrossMarketFlagIndependence(t *testing.T) {
	byBuyLow, _ := MarketToSteamSpread(100, 200, 50)
	byBuyHigh, _ := MarketToSteamSpread(100, 200, 5000)
	assert.Equal(t, byBuyLow, byBuyHigh, "byBuy must not depend on sell")

	_, bySellLow := MarketToSteamSpread(100, 10, 200)
	_, bySellHigh := MarketToSteamSpread(100, 9000, 200)
	assert.Equal(t, bySellLow, bySellHigh, "bySell must not depend on buy")
}

func TestMarketToSteamSpread(t *testing.T) {
	byBuy, bySell := MarketToSteamSpread(100, 130, 120)
	assert.True(t, byBuy, "130 - 100 > 0.2*130")
	assert.False(t, bySell, "120 - 100 <= 0.2*120")
}

func TestSteamToMarketSpread(t *testing.T) {
	byBuy, bySell := SteamToMarketSpread(100, 75, 85)
	assert.True(t, byBuy, "100 - 75 > 0.2*100")
	assert.False(t, bySell, "100 - 85 <= 0.2*100")
}

func TestEvaluateWithoutReference(t *testing.T) {
	for _, route := range []Route{MarketToSteam, SteamToMarket} {
		res := Evaluate(route, 130, 120, 0, false)
		assert.False(t, res.Profitable, "route %s must not fire without a reference price", route)
		assert.False(t, res.HasReference)
	}
}

func TestEvaluateSameMarketMargin(t *testing.T) {
	res := Evaluate(SteamToSteam, 100, 70, 0, false)
	assert.True(t, res.Profitable)
	// (100*0.87 - 70) / 70 * 100 rounds to 24
	assert.Equal(t, 24.0, res.MarginPct)
}

func TestEvaluateSteamToMarketMargin(t *testing.T) {
	res := Evaluate(SteamToMarket, 70, 85, 100, true)
	assert.True(t, res.Profitable)
	assert.True(t, res.ByBuy)
	assert.False(t, res.BySell)
	// (100*0.95 - 70) / 70 * 100 rounds to 36
	assert.Equal(t, 36.0, res.MarginPct)
}

func TestEvaluateMarketToSteamMargin(t *testing.T) {
	res := Evaluate(MarketToSteam, 130, 140, 100, true)
	assert.True(t, res.Profitable)
	assert.True(t, res.ByBuy)
	assert.True(t, res.BySell)
	// bySell wins the margin figure: (140*0.87 - 100) / 100 * 100 rounds to 22
	assert.Equal(t, 22.0, res.MarginPct)
}

func TestRouteString(t *testing.T) {
	assert.Equal(t, "steam_to_steam", SteamToSteam.String())
	assert.Equal(t, "market_to_steam", MarketToSteam.String())
	assert.Equal(t, "steam_to_market", SteamToMarket.String())
}
