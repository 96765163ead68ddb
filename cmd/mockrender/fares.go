package main

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"net/url"
	"strings"
)

// offer is one fare rendered into a results page.
type offer struct {
	Airline    string
	Departure  string
	Arrival    string
	Duration   string
	Stops      string
	StopCities []string
	Price      string
}

// countryFactor scales the route fare per vantage point; unlisted
// countries pay the home-market price.
var countryFactor = map[string]float64{
	"us": 1.00,
	"in": 0.72,
	"mx": 0.86,
	"br": 0.91,
	"th": 0.78,
	"tr": 0.82,
}

var airlines = []string{"ANA", "Japan Airlines", "United", "Delta", "Korean Air", "Singapore Airlines", "Cathay Pacific"}

var hubs = []string{"ICN", "HND", "SFO", "SEA", "TPE", "HKG"}

// routeFare derives a stable base fare from the search phrase so every
// country prices the same itinerary.
func routeFare(target string) float64 {
	phrase := target
	if u, err := url.Parse(target); err == nil {
		if q := u.Query().Get("q"); q != "" {
			phrase = q
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(phrase)))
	return 350 + float64(h.Sum32()%650)
}

// generateOffers builds n offers for country around the route's base fare.
func generateOffers(rng *rand.Rand, target, country string, n int) []offer {
	factor, ok := countryFactor[country]
	if !ok {
		factor = 1
	}
	base := routeFare(target) * factor

	offers := make([]offer, 0, n)
	for i := range n {
		depHour := 6 + rng.Intn(14)
		flightMins := 600 + rng.Intn(240)
		stops := rng.Intn(3)

		o := offer{
			Airline:   airlines[rng.Intn(len(airlines))],
			Departure: clock(depHour, 5*rng.Intn(12)),
			Arrival:   clock(depHour+flightMins/60, flightMins%60),
			Duration:  fmt.Sprintf("%d hr %d min", flightMins/60, flightMins%60),
			Price:     formatPrice(base * (1 + 0.04*float64(i)) * (0.97 + 0.06*rng.Float64())),
		}
		switch stops {
		case 0:
			o.Stops = "Nonstop"
		case 1:
			o.Stops = "1 stop"
			o.StopCities = []string{hubs[rng.Intn(len(hubs))]}
		default:
			o.Stops = fmt.Sprintf("%d stops", stops)
			o.StopCities = []string{hubs[rng.Intn(len(hubs))], hubs[rng.Intn(len(hubs))]}
		}
		offers = append(offers, o)
	}
	return offers
}

func clock(hour, minute int) string {
	hour %= 24
	suffix := "AM"
	if hour >= 12 {
		suffix = "PM"
	}
	h := hour % 12
	if h == 0 {
		h = 12
	}
	return fmt.Sprintf("%d:%02d %s", h, minute, suffix)
}

// formatPrice renders a USD amount with thousands separators.
func formatPrice(v float64) string {
	cents := int64(v*100 + 0.5)
	whole := fmt.Sprintf("%d", cents/100)
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("$%s.%02d", b.String(), cents%100)
}
