package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/fares/internal/geo"
	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/render"
	"github.com/alex-user-go/fares/internal/search/types"
)

// Resolver maps a source code to its access parameters.
type Resolver interface {
	Resolve(code string) geo.AccessParams
}

// Extractor pulls flights out of a rendered surface.
type Extractor interface {
	Extract(ctx context.Context, surface render.Surface, source string, max int) []types.Flight
}

// Options configures an Orchestrator.
type Options struct {
	Sources       []string
	Baseline      string
	MaxResults    int
	SourceTimeout time.Duration
}

// Outcome is the merged output of one run.
type Outcome struct {
	// Flights holds every non-baseline record in source order.
	Flights []types.Flight
	// Sources lists display names of sources that yielded records.
	Sources []string
	// BaselinePrice is nil when the baseline yielded nothing.
	BaselinePrice *float64
}

const defaultSourceTimeout = 30 * time.Second

type taskStatus int

const (
	taskFailed taskStatus = iota
	taskEmpty
	taskSucceeded
)

func (s taskStatus) String() string {
	switch s {
	case taskSucceeded:
		return obs.OutcomeSucceeded
	case taskEmpty:
		return obs.OutcomeEmpty
	default:
		return obs.OutcomeFailed
	}
}

type taskResult struct {
	source   geo.AccessParams
	baseline bool
	status   taskStatus
	flights  []types.Flight
	err      error
}

// Orchestrator fans one query out to every source concurrently.
type Orchestrator struct {
	resolver  Resolver
	renderer  render.Renderer
	extractor Extractor
	opts      Options
	metrics   *obs.Metrics
	logger    *slog.Logger
}

// NewOrchestrator creates a new Orchestrator.
func NewOrchestrator(resolver Resolver, renderer render.Renderer, extractor Extractor, opts Options, metrics *obs.Metrics, logger *slog.Logger) *Orchestrator {
	if opts.SourceTimeout <= 0 {
		opts.SourceTimeout = defaultSourceTimeout
	}
	return &Orchestrator{
		resolver:  resolver,
		renderer:  renderer,
		extractor: extractor,
		opts:      opts,
		metrics:   metrics,
		logger:    logger,
	}
}

// Run searches every source plus the baseline and waits for all of them
// to settle. A failing source contributes nothing; Run itself never fails.
func (o *Orchestrator) Run(ctx context.Context, q types.Query) Outcome {
	codes := o.taskCodes()
	target := TargetURL(q)

	// Each task writes only its own slot.
	results := make([]taskResult, len(codes))

	var wg sync.WaitGroup
	for i, code := range codes {
		baseline := i == len(codes)-1
		wg.Go(func() {
			results[i] = o.runTask(ctx, target, code, baseline)
		})
	}
	wg.Wait()

	return o.merge(results)
}

// taskCodes returns the configured sources followed by the baseline.
func (o *Orchestrator) taskCodes() []string {
	baseline := strings.ToLower(o.opts.Baseline)
	codes := make([]string, 0, len(o.opts.Sources)+1)
	for _, code := range o.opts.Sources {
		if strings.ToLower(code) == baseline {
			o.logger.Warn("skipping source that is also the baseline", "source", code)
			continue
		}
		codes = append(codes, code)
	}
	return append(codes, baseline)
}

func (o *Orchestrator) runTask(ctx context.Context, target, code string, baseline bool) (res taskResult) {
	params := o.resolver.Resolve(code)
	res = taskResult{source: params, baseline: baseline}
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res.status = taskFailed
			res.flights = nil
			res.err = fmt.Errorf("source task panicked: %v", r)
		}
		o.metrics.ObserveSource(params.Name, res.status.String(), time.Since(start))
		if res.err != nil {
			o.logger.Warn("source unavailable", "source", params.Name, "error", res.err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.opts.SourceTimeout)
	defer cancel()

	o.logger.Debug("searching source", "source", params.Name, "baseline", baseline)

	surface, err := o.renderer.Open(ctx, target, params)
	if err != nil {
		res.status = taskFailed
		res.err = err
		return res
	}
	defer func() {
		if err := surface.Close(); err != nil {
			o.logger.Warn("failed to close surface", "source", params.Name, "error", err)
		}
	}()

	res.flights = o.extractor.Extract(ctx, surface, params.Name, o.opts.MaxResults)
	if len(res.flights) == 0 {
		res.status = taskEmpty
		return res
	}

	o.logger.Info("source searched", "source", params.Name, "flights", len(res.flights))
	res.status = taskSucceeded
	return res
}

func (o *Orchestrator) merge(results []taskResult) Outcome {
	var out Outcome
	for _, r := range results {
		if r.status != taskSucceeded {
			continue
		}
		out.Sources = append(out.Sources, r.source.Name)

		if r.baseline {
			low := r.flights[0].Price
			for _, f := range r.flights[1:] {
				low = min(low, f.Price)
			}
			out.BaselinePrice = &low
			continue
		}
		out.Flights = append(out.Flights, r.flights...)
	}
	return out
}
