package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Field selectors. Each group lists the class fragments seen for that
// field across markup variants.
const (
	priceSelector    = `[class*="price"], [class*="YMlIz"]`
	airlineSelector  = `[class*="airline"], [class*="sSHqwe"], [class*="Ir0Voe"]`
	timeSelector     = `[class*="mv1WYe"], [class*="zxVSec"]`
	durationSelector = `[class*="Ak5kof"], [class*="gvkrdb"]`
	stopsSelector    = `[class*="EfT7Ae"], [class*="BbR8Ec"]`
	stopCitySelector = `[class*="stop-city"]`
)

// Defaults for optional fields.
const (
	unknownAirline = "Unknown Airline"
	defaultStops   = "Nonstop"
)

// field is the outcome of one best-effort extractor.
type field[T any] struct {
	value T
	ok    bool
}

func found[T any](v T) field[T] {
	return field[T]{value: v, ok: true}
}

// or returns the value, or def when the field was not found.
func (f field[T]) or(def T) T {
	if f.ok {
		return f.value
	}
	return def
}

// text returns the trimmed text of the first element matching selector.
func text(el *goquery.Selection, selector string) field[string] {
	s := strings.TrimSpace(el.Find(selector).First().Text())
	if s == "" {
		return field[string]{}
	}
	return found(s)
}

// times returns the departure and arrival text. Both are required for
// either to count.
func times(el *goquery.Selection) (field[string], field[string]) {
	nodes := el.Find(timeSelector)
	if nodes.Length() < 2 {
		return field[string]{}, field[string]{}
	}
	dep := strings.TrimSpace(nodes.Eq(0).Text())
	arr := strings.TrimSpace(nodes.Eq(1).Text())
	return found(dep), found(arr)
}

// stopCities returns the layover airports, if the page lists them.
func stopCities(el *goquery.Selection) field[[]string] {
	var cities []string
	el.Find(stopCitySelector).Each(func(_ int, s *goquery.Selection) {
		if c := strings.TrimSpace(s.Text()); c != "" {
			cities = append(cities, c)
		}
	})
	if len(cities) == 0 {
		return field[[]string]{}
	}
	return found(cities)
}
