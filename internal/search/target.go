package search

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/alex-user-go/fares/internal/search/types"
)

const flightsBaseURL = "https://www.google.com/travel/flights"

// TargetURL builds the results page URL for q. Language, region and
// currency are pinned so every vantage point renders comparable prices.
func TargetURL(q types.Query) string {
	var phrase strings.Builder
	fmt.Fprintf(&phrase, "flights from %s to %s on %s", q.Origin, q.Destination, q.DepartureDate)
	if q.ReturnDate != "" {
		fmt.Fprintf(&phrase, " returning %s", q.ReturnDate)
	}
	if q.CabinClass != "" && q.CabinClass != types.CabinEconomy {
		fmt.Fprintf(&phrase, " %s class", strings.ReplaceAll(string(q.CabinClass), "_", " "))
	}
	if q.Passengers > 1 {
		fmt.Fprintf(&phrase, " for %d passengers", q.Passengers)
	}

	v := url.Values{}
	v.Set("hl", "en")
	v.Set("gl", "us")
	v.Set("curr", "USD")
	v.Set("q", phrase.String())
	return flightsBaseURL + "?" + v.Encode()
}
