// Package extract pulls flight offers out of a rendered result page.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/alex-user-go/fares/internal/normalize"
	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/render"
	"github.com/alex-user-go/fares/internal/search/types"
)

// ErrMissingPrice is returned when a candidate has no price element.
var ErrMissingPrice = errors.New("missing price")

// Discard reasons reported to metrics.
const (
	reasonMissingPrice    = "missing_price"
	reasonBadPrice        = "unparseable_price"
	reasonForeignCurrency = "foreign_currency"
	reasonFault           = "fault"
)

// Config configures a Pipeline. Zero values select the defaults.
type Config struct {
	ReadyMarker  string
	ReadyTimeout time.Duration
	Strategies   []Strategy
}

// Pipeline extracts flights from surfaces.
type Pipeline struct {
	readyMarker  string
	readyTimeout time.Duration
	strategies   []Strategy
	metrics      *obs.Metrics
	logger       *slog.Logger
}

// New creates a new Pipeline.
func New(cfg Config, metrics *obs.Metrics, logger *slog.Logger) *Pipeline {
	if cfg.ReadyMarker == "" {
		cfg.ReadyMarker = DefaultReadyMarker
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 15 * time.Second
	}
	if len(cfg.Strategies) == 0 {
		cfg.Strategies = DefaultStrategies
	}
	return &Pipeline{
		readyMarker:  cfg.ReadyMarker,
		readyTimeout: cfg.ReadyTimeout,
		strategies:   cfg.Strategies,
		metrics:      metrics,
		logger:       logger,
	}
}

// Extract returns at most max flights found on surface; max <= 0 means no
// limit. A page whose results never render yields no flights rather than
// an error.
func (p *Pipeline) Extract(ctx context.Context, surface render.Surface, source string, max int) []types.Flight {
	waitCtx, cancel := context.WithTimeout(ctx, p.readyTimeout)
	err := surface.WaitReady(waitCtx, p.readyMarker)
	cancel()
	if err != nil {
		p.logger.Warn("results never rendered", "source", source, "error", err)
		return nil
	}

	doc, err := surface.Document(ctx)
	if err != nil {
		p.logger.Warn("failed to snapshot results", "source", source, "error", err)
		return nil
	}

	strategy, candidates := firstMatch(doc, p.strategies)
	if strategy == nil {
		p.logger.Info("no result candidates matched", "source", source)
		return nil
	}
	p.logger.Debug("matched result candidates",
		"source", source,
		"strategy", strategy.Name(),
		"count", candidates.Length(),
	)

	if max <= 0 || max > candidates.Length() {
		max = candidates.Length()
	}

	flights := make([]types.Flight, 0, max)
	candidates.EachWithBreak(func(i int, el *goquery.Selection) bool {
		if i >= max {
			return false
		}
		flight, err := p.extractOne(el, source)
		if err != nil {
			p.logger.Debug("discarded candidate", "source", source, "index", i, "error", err)
			p.metrics.IncDiscarded(source, discardReason(err))
			return true
		}
		flights = append(flights, flight)
		return true
	})

	p.metrics.AddExtracted(source, len(flights))
	return flights
}

// extractOne builds a flight from one candidate element. Only the price
// is mandatory.
func (p *Pipeline) extractOne(el *goquery.Selection, source string) (flight types.Flight, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractor fault: %v", r)
		}
	}()

	priceText := text(el, priceSelector)
	if !priceText.ok {
		return types.Flight{}, ErrMissingPrice
	}
	price, err := normalize.ParsePrice(priceText.value)
	if err != nil {
		return types.Flight{}, err
	}

	airline := text(el, airlineSelector).or(unknownAirline)
	departure, arrival := times(el)
	dep, arr := departure.or(""), arrival.or("")
	duration := text(el, durationSelector).or("")
	stops := normalize.ParseStops(text(el, stopsSelector).or(defaultStops))

	return types.Flight{
		ID:            normalize.Fingerprint(airline, dep, arr, price, source),
		Airline:       airline,
		Price:         price,
		Currency:      normalize.Currency,
		DepartureTime: dep,
		ArrivalTime:   arr,
		Duration:      duration,
		Stops:         stops,
		StopCities:    stopCities(el).or(nil),
		Source:        source,
	}, nil
}

func discardReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingPrice):
		return reasonMissingPrice
	case errors.Is(err, normalize.ErrForeignCurrency):
		return reasonForeignCurrency
	case errors.Is(err, normalize.ErrUnparseablePrice):
		return reasonBadPrice
	default:
		return reasonFault
	}
}
