package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidQuery is returned when a query fails validation.
var ErrInvalidQuery = errors.New("invalid query")

// CabinClass is the requested cabin.
type CabinClass string

// Supported cabin classes.
const (
	CabinEconomy        CabinClass = "economy"
	CabinPremiumEconomy CabinClass = "premium_economy"
	CabinBusiness       CabinClass = "business"
	CabinFirst          CabinClass = "first"
)

// Valid reports whether c is one of the supported cabin classes.
func (c CabinClass) Valid() bool {
	switch c {
	case CabinEconomy, CabinPremiumEconomy, CabinBusiness, CabinFirst:
		return true
	}
	return false
}

const (
	dateLayout    = "2006-01-02"
	minPassengers = 1
	maxPassengers = 9
)

// Query is a single logical flight search.
type Query struct {
	Origin        string     `json:"origin"`
	Destination   string     `json:"destination"`
	DepartureDate string     `json:"departureDate"`
	ReturnDate    string     `json:"returnDate,omitempty"`
	Passengers    int        `json:"passengers"`
	CabinClass    CabinClass `json:"cabinClass"`
}

// UnmarshalJSON decodes a query, defaulting passengers to one only when
// the field is absent or null. An explicit zero is kept for Validate.
func (q *Query) UnmarshalJSON(data []byte) error {
	type plain Query
	wire := struct {
		*plain
		Passengers *int `json:"passengers"`
	}{plain: (*plain)(q)}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	q.Passengers = minPassengers
	if wire.Passengers != nil {
		q.Passengers = *wire.Passengers
	}
	return nil
}

// Normalize returns a copy with codes uppercased and the default cabin
// applied.
func (q Query) Normalize() Query {
	q.Origin = strings.ToUpper(strings.TrimSpace(q.Origin))
	q.Destination = strings.ToUpper(strings.TrimSpace(q.Destination))
	q.DepartureDate = strings.TrimSpace(q.DepartureDate)
	q.ReturnDate = strings.TrimSpace(q.ReturnDate)
	if q.CabinClass == "" {
		q.CabinClass = CabinEconomy
	}
	return q
}

// Validate checks the query. Origin equal to destination is allowed.
func (q Query) Validate() error {
	if len(q.Origin) != 3 {
		return fmt.Errorf("%w: origin must be a 3-letter airport code", ErrInvalidQuery)
	}
	if len(q.Destination) != 3 {
		return fmt.Errorf("%w: destination must be a 3-letter airport code", ErrInvalidQuery)
	}
	if q.DepartureDate == "" {
		return fmt.Errorf("%w: departureDate is required", ErrInvalidQuery)
	}
	if _, err := time.Parse(dateLayout, q.DepartureDate); err != nil {
		return fmt.Errorf("%w: departureDate must be in YYYY-MM-DD format", ErrInvalidQuery)
	}
	if q.ReturnDate != "" {
		if _, err := time.Parse(dateLayout, q.ReturnDate); err != nil {
			return fmt.Errorf("%w: returnDate must be in YYYY-MM-DD format", ErrInvalidQuery)
		}
	}
	if q.Passengers < minPassengers || q.Passengers > maxPassengers {
		return fmt.Errorf("%w: passengers must be between %d and %d", ErrInvalidQuery, minPassengers, maxPassengers)
	}
	if !q.CabinClass.Valid() {
		return fmt.Errorf("%w: unknown cabin class %q", ErrInvalidQuery, q.CabinClass)
	}
	return nil
}

// Savings holds the baseline-relative fields of a flight. The three
// values are always set together.
type Savings struct {
	OriginalPrice float64 `json:"original_price"`
	Amount        float64 `json:"savings_amount"`
	Percent       float64 `json:"savings_percent"`
}

// Flight is one offer extracted from a single source.
type Flight struct {
	ID            string   `json:"id"`
	Airline       string   `json:"airline"`
	Price         float64  `json:"price"`
	Currency      string   `json:"currency"`
	DepartureTime string   `json:"departure_time"`
	ArrivalTime   string   `json:"arrival_time"`
	Duration      string   `json:"duration"`
	Stops         int      `json:"stops"`
	StopCities    []string `json:"stop_cities,omitempty"`
	Source        string   `json:"searched_from_country"`

	*Savings
}

// Result represents one aggregated search.
type Result struct {
	Flights            []Flight `json:"flights"`
	Sources            []string `json:"countries_searched"`
	BestPrice          *float64 `json:"best_price"`
	BaselinePrice      *float64 `json:"baseline_price"`
	BaselineAvailable  bool     `json:"baseline_available"`
	BestSavingsPercent *float64 `json:"best_savings_percent"`
	ElapsedSeconds     float64  `json:"search_time_seconds"`
	Total              int      `json:"total_results"`
}
