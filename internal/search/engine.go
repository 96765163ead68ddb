package search

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/search/types"
)

// Engine answers a query with a ranked, baseline-annotated result.
type Engine struct {
	orchestrator *Orchestrator
	metrics      *obs.Metrics
	logger       *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(orchestrator *Orchestrator, metrics *obs.Metrics, logger *slog.Logger) *Engine {
	return &Engine{
		orchestrator: orchestrator,
		metrics:      metrics,
		logger:       logger,
	}
}

// Search runs q against every source. Source failures only shrink the
// result. If ctx ends before the run settles, the partial outcome is
// dropped and the context's cause is returned.
func (e *Engine) Search(ctx context.Context, q types.Query) (*types.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	start := time.Now()
	outcome := e.orchestrator.Run(ctx, q)
	if ctx.Err() != nil {
		e.logger.Warn("search abandoned",
			"origin", q.Origin,
			"destination", q.Destination,
			"sources", len(outcome.Sources),
		)
		return nil, context.Cause(ctx)
	}
	summary := Aggregate(outcome.Flights, outcome.BaselinePrice)
	elapsed := time.Since(start)

	e.metrics.ObserveSearch(elapsed)
	if outcome.BaselinePrice == nil {
		e.metrics.IncBaselineMissing()
		e.logger.Warn("baseline unavailable, savings omitted",
			"origin", q.Origin,
			"destination", q.Destination,
		)
	}

	flights := summary.Flights
	if flights == nil {
		flights = []types.Flight{}
	}
	sources := outcome.Sources
	if sources == nil {
		sources = []string{}
	}

	return &types.Result{
		Flights:            flights,
		Sources:            sources,
		BestPrice:          summary.BestPrice,
		BaselinePrice:      outcome.BaselinePrice,
		BaselineAvailable:  outcome.BaselinePrice != nil,
		BestSavingsPercent: summary.BestSavingsPercent,
		ElapsedSeconds:     math.Round(elapsed.Seconds()*100) / 100,
		Total:              len(flights),
	}, nil
}
