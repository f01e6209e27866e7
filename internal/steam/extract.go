package steam

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Extraction patterns for the market pages. The page format drifts upstream
// from time to time; keeping every pattern here makes that a one-place fix.
var (
	// itemIDPattern locates the order-spread bootstrap call on a listing page
	itemIDPattern = regexp.MustCompile(`Market_LoadOrderSpread\(\s*(\d+)\s*\)`)

	// priceTokenPattern captures the two highlighted order-summary prices in
	// the escaped HTML of the order histogram response
	priceTokenPattern = regexp.MustCompile(`_promote\\">([^<>]+) `)

	// Catalogue patterns for the search/render JSON payload
	hashNamePattern    = regexp.MustCompile(`data-hash-name=\\"([^"]+)\\"`)
	listingHrefPattern = regexp.MustCompile(`href=\\"(https:[^"]+)"`)
	imageSrcPattern    = regexp.MustCompile(` src=\\.(https:[^"]+)`)

	// dayFormat is the sales-history date format embedded in page scripts
	dayFormat = "Jan 02 2006"
)

// ExtractItemID pulls the numeric item id out of a listing page. The second
// return value is false when the pattern is absent; callers treat that as a
// soft failure, not an error.
func ExtractItemID(page string) (int64, bool) {
	m := itemIDPattern.FindStringSubmatch(page)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// ExtractVolume sums the completed trades of the trailing 24 hours from the
// sales-history script embedded in a listing page. Current-day entries count
// unconditionally; previous-day entries count only when their hour-of-day is
// within the window, using the hour of now-24h minus a two hour slack as the
// cutoff. Zero is a valid result meaning no trades.
func ExtractVolume(page string, now time.Time) int {
	script, ok := lastScriptBlock(page)
	if !ok {
		return 0
	}

	currentDate := now.Format(dayFormat)
	back := now.Add(-24 * time.Hour)
	backDate := back.Format(dayFormat)
	cutoffHour := back.Hour()

	volume := 0

	currentDay := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(currentDate) + `.*?"(\d+)`)
	for _, m := range currentDay.FindAllStringSubmatch(script, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		volume += n
	}

	previousDay := regexp.MustCompile(`(?s)` + regexp.QuoteMeta(backDate) + ` (\d\d): .*?"(\d+)`)
	for _, m := range previousDay.FindAllStringSubmatch(script, -1) {
		hour, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if hour >= cutoffHour-2 {
			n, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			volume += n
		}
	}

	return volume
}

// lastScriptBlock returns the text of the last inline script on the page
func lastScriptBlock(page string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return "", false
	}
	scripts := doc.Find("script")
	if scripts.Length() == 0 {
		return "", false
	}
	return scripts.Last().Text(), true
}

// ParsePriceTokens extracts the instant-buy and instant-sell prices from an
// order histogram response. Exactly two tokens must be present; anything
// else reports !ok so the caller can retry.
func ParsePriceTokens(page string) (buy, sell float64, ok bool) {
	matches := priceTokenPattern.FindAllStringSubmatch(page, -1)
	if len(matches) != 2 {
		return 0, 0, false
	}

	buy, err := parseLocalizedPrice(matches[0][1])
	if err != nil {
		return 0, 0, false
	}
	sell, err = parseLocalizedPrice(matches[1][1])
	if err != nil {
		return 0, 0, false
	}
	return buy, sell, true
}

// parseLocalizedPrice handles the comma decimal separator of RU-localized pages
func parseLocalizedPrice(token string) (float64, error) {
	token = strings.TrimSpace(strings.ReplaceAll(token, ",", "."))
	return strconv.ParseFloat(token, 64)
}

// ParseListings extracts catalogue rows from a search/render payload. The
// three patterns must line up row-wise; rows beyond the shortest match list
// are dropped rather than misaligned.
func ParseListings(page string) []Listing {
	names := hashNamePattern.FindAllStringSubmatch(page, -1)
	hrefs := listingHrefPattern.FindAllStringSubmatch(page, -1)
	srcs := imageSrcPattern.FindAllStringSubmatch(page, -1)

	n := len(names)
	if len(hrefs) < n {
		n = len(hrefs)
	}
	if len(srcs) < n {
		n = len(srcs)
	}

	listings := make([]Listing, 0, n)
	for i := 0; i < n; i++ {
		listings = append(listings, Listing{
			Name:     strings.ReplaceAll(names[i][1], "&amp;", "&"),
			Href:     cleanEscapedURL(hrefs[i][1]),
			ImageSrc: cleanEscapedURL(srcs[i][1]),
		})
	}
	return listings
}

// cleanEscapedURL strips the JSON escaping artifacts from embedded URLs
func cleanEscapedURL(raw string) string {
	raw = strings.ReplaceAll(raw, `\`, "")
	return strings.ReplaceAll(raw, " ", "")
}
