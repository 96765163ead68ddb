package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/alex-user-go/fares/internal/geo"
	"github.com/alex-user-go/fares/internal/render"
)

var errRenderUnavailable = errors.New("render unavailable")

const offersPerPage = 8

// renderServer imitates a remote browser service: it accepts a content
// request and answers with the rendered results page.
type renderServer struct {
	layout layout

	mu  sync.Mutex
	rng *rand.Rand

	logger *slog.Logger
}

func newRenderServer(l layout, seed int64, logger *slog.Logger) *renderServer {
	return &renderServer{
		layout: l,
		rng:    rand.New(rand.NewSource(seed)),
		logger: logger,
	}
}

// countryOf identifies the vantage point from the proxy username, falling
// back to the browser locale.
func countryOf(req render.ContentRequest) string {
	if req.Proxy != nil {
		if code := geo.CountryFromUsername(req.Proxy.Username); code != "" {
			return strings.ToLower(code)
		}
	}
	for code, c := range geo.DefaultCountries {
		if strings.EqualFold(c.Locale, req.Locale) {
			return code
		}
	}
	return "us"
}

// content simulates rendering with random latency and potential failures.
func (s *renderServer) content(ctx context.Context, req render.ContentRequest) ([]offer, error) {
	s.mu.Lock()
	span := int64(s.layout.maxLatency - s.layout.minLatency)
	latency := s.layout.minLatency
	if span > 0 {
		latency += time.Duration(s.rng.Int63n(span))
	}
	fail := s.rng.Float64() < s.layout.failureRate
	s.mu.Unlock()

	select {
	case <-time.After(latency):
	case <-ctx.Done():
		return nil, context.Cause(ctx)
	}

	if fail {
		return nil, errRenderUnavailable
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return generateOffers(s.rng, req.URL, countryOf(req), offersPerPage), nil
}

// ServeHTTP handles POST /content.
func (s *renderServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req render.ContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid content request", http.StatusBadRequest)
		return
	}
	if req.URL == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}

	offers, err := s.content(r.Context(), req)
	if err != nil {
		s.logger.Warn("render failed", "country", countryOf(req), "error", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if err := s.layout.render(w, offers); err != nil {
		s.logger.Error("failed to render page", "error", err)
	}
}
