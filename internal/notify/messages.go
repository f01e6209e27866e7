package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/maxfraid/cs2crap/internal/compare"
	"github.com/maxfraid/cs2crap/internal/steam"
)

// Opportunity is one profitable route finding for one item
type Opportunity struct {
	ItemName string
	Href     string
	Volume   int
	Buy      steam.Price
	Sell     steam.Price
	Result   compare.Result
}

// routeTitles are the human headings per route
var routeTitles = map[compare.Route]string{
	compare.SteamToSteam:  "Steam resell",
	compare.MarketToSteam: "Market -> Steam",
	compare.SteamToMarket: "Steam -> Market",
}

// FormatOpportunity renders an alert as Telegram Markdown
func FormatOpportunity(o Opportunity) string {
	var b strings.Builder

	fmt.Fprintf(&b, "*%s*\n", routeTitles[o.Result.Route])
	fmt.Fprintf(&b, "[%s](%s)\n", o.ItemName, o.Href)
	if o.Buy.Valid {
		fmt.Fprintf(&b, "Steam buy: %.2f\n", o.Buy.Value)
	}
	if o.Sell.Valid {
		fmt.Fprintf(&b, "Steam sell: %.2f\n", o.Sell.Value)
	}
	if o.Result.HasReference {
		fmt.Fprintf(&b, "Market price: %.2f\n", o.Result.ReferencePrice)
	}
	fmt.Fprintf(&b, "Volume 24h: %d\n", o.Volume)
	fmt.Fprintf(&b, "Est. margin: %.0f%%", o.Result.MarginPct)

	return b.String()
}

// opportunityEvent is the JSON shape published to the stream
type opportunityEvent struct {
	ItemName       string  `json:"item_name"`
	Route          string  `json:"route"`
	Buy            float64 `json:"buy,omitempty"`
	Sell           float64 `json:"sell,omitempty"`
	ReferencePrice float64 `json:"reference_price,omitempty"`
	Volume         int     `json:"volume"`
	MarginPct      float64 `json:"margin_pct"`
	Href           string  `json:"href"`
	DetectedAt     string  `json:"detected_at"`
}

func newOpportunityEvent(o Opportunity, at time.Time) opportunityEvent {
	ev := opportunityEvent{
		ItemName:   o.ItemName,
		Route:      o.Result.Route.String(),
		Volume:     o.Volume,
		MarginPct:  o.Result.MarginPct,
		Href:       o.Href,
		DetectedAt: at.UTC().Format(time.RFC3339),
	}
	if o.Buy.Valid {
		ev.Buy = o.Buy.Value
	}
	if o.Sell.Valid {
		ev.Sell = o.Sell.Value
	}
	if o.Result.HasReference {
		ev.ReferencePrice = o.Result.ReferencePrice
	}
	return ev
}
