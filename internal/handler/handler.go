package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/alex-user-go/fares/internal/middleware"
	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/search/cache"
	"github.com/alex-user-go/fares/internal/search/ratelimit"
	"github.com/alex-user-go/fares/internal/search/types"
)

const maxBodyBytes = 1 << 16

// Searcher answers a validated query.
type Searcher interface {
	Search(ctx context.Context, q types.Query) (*types.Result, error)
}

// Handler handles HTTP requests.
type Handler struct {
	searcher      Searcher
	cache         *cache.Cache
	rateLimiter   *ratelimit.Limiter
	searchTimeout time.Duration
	metrics       *obs.Metrics
	logger        *slog.Logger
}

// New creates a new Handler. searchTimeout bounds each search run; the
// run outlives the request that started it so its result can be shared.
func New(
	searcher Searcher,
	searchCache *cache.Cache,
	rateLimiter *ratelimit.Limiter,
	searchTimeout time.Duration,
	metrics *obs.Metrics,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		searcher:      searcher,
		cache:         searchCache,
		rateLimiter:   rateLimiter,
		searchTimeout: searchTimeout,
		metrics:       metrics,
		logger:        logger,
	}
}

// SearchResponse represents the complete API response.
type SearchResponse struct {
	Success bool `json:"success"`
	*types.Result
	Cached         bool       `json:"cached"`
	CacheExpiresAt *time.Time `json:"cache_expires_at"`
}

// SearchHandler handles POST /api/search requests.
func (h *Handler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	h.metrics.IncRequests()
	requestID := middleware.RequestID(r.Context())

	// Check rate limit
	ip := ExtractIP(r)
	if !h.rateLimiter.Allow(ip) {
		h.logger.Warn("rate limit exceeded", "request_id", requestID, "ip", ip)
		writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	q, err := DecodeQuery(r.Body)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, types.ErrInvalidQuery) {
			status = http.StatusUnprocessableEntity
		}
		h.logger.Debug("invalid request body", "request_id", requestID, "error", err, "ip", ip)
		writeError(w, status, err.Error())
		return
	}

	h.logger.Info("flight search",
		"request_id", requestID,
		"origin", q.Origin,
		"destination", q.Destination,
		"departure_date", q.DepartureDate,
	)

	key := h.cache.Key(q)
	entry, cacheHit, err := h.cache.GetOrFetch(r.Context(), key, func() (*types.Result, error) {
		// Waiters share this run, so it must not die with the first client.
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), h.searchTimeout)
		defer cancel()
		return h.searcher.Search(ctx, q)
	})
	if err != nil || entry == nil {
		h.logger.Error("search failed",
			"request_id", requestID,
			"error", err,
			"origin", q.Origin,
			"destination", q.Destination,
			"ip", ip,
		)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	if cacheHit {
		h.metrics.IncCacheHits()
	}

	expires := entry.ExpiresAt
	response := SearchResponse{
		Success:        true,
		Result:         entry.Result,
		Cached:         cacheHit,
		CacheExpiresAt: &expires,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Can't change status after WriteHeader, just log
		h.logger.Error("failed to encode response", "request_id", requestID, "error", err)
	}
}

// DecodeQuery reads a JSON query from body, normalizes and validates it.
// Validation failures wrap types.ErrInvalidQuery; anything else is a
// malformed body.
func DecodeQuery(body io.Reader) (types.Query, error) {
	var q types.Query
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	if err := dec.Decode(&q); err != nil {
		return types.Query{}, errors.New("malformed JSON body")
	}

	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return types.Query{}, err
	}
	return q, nil
}

// ExtractIP extracts the client IP from the request.
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr.
func ExtractIP(r *http.Request) string {
	// Check X-Forwarded-For (first IP in the list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr (strip port)
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": message})
}
