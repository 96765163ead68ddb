package app_test

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/fares/internal/app"
	"github.com/alex-user-go/fares/internal/config"
	"github.com/alex-user-go/fares/internal/render"
)

// renderService serves a results page whose price depends on the
// requested locale: the en-US baseline is the most expensive.
func renderService(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req render.ContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		price := 400.0
		if req.Locale == "en-US" {
			price = 700
		}
		fmt.Fprintf(w, `<html><body><div data-ved="1"><ul>`+
			`<li class="pIav2d"><div class="sSHqwe">ANA</div>`+
			`<span class="mv1WYe">9:00 AM</span><span class="mv1WYe">1:30 PM</span>`+
			`<div class="gvkrdb">11h 30m</div><div class="EfT7Ae">Nonstop</div>`+
			`<div class="YMlIz">$%.2f</div></li></ul></div></body></html>`, price)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newService(t *testing.T, renderURL string) http.Handler {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Server.APIKey = "secret"
	cfg.Renderer.Kind = config.RendererHTTP
	cfg.Renderer.URL = renderURL
	cfg.Cache.RedisURL = ""
	cfg.Proxy.Username = ""
	cfg.Search.Countries = []string{"in", "mx"}
	cfg.Search.SourceTimeout = config.Duration(5 * time.Second)

	svc, err := app.New(cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc.Routes()
}

func TestRoutes_Health(t *testing.T) {
	routes := newService(t, "http://127.0.0.1:1")

	for _, path := range []string{"/", "/health"} {
		t.Run(path, func(t *testing.T) {
			w := httptest.NewRecorder()
			routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))

			require.Equal(t, http.StatusOK, w.Code)
			var body map[string]any
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, "healthy", body["status"])
			assert.Equal(t, app.ServiceName, body["service"])
			assert.Equal(t, "test", body["version"])
			assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
		})
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	routes := newService(t, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_SearchRequiresAuth(t *testing.T) {
	routes := newService(t, "http://127.0.0.1:1")

	req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(`{}`))
	w := httptest.NewRecorder()
	routes.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutes_Search(t *testing.T) {
	routes := newService(t, renderService(t).URL)

	body := `{"origin":"LAX","destination":"NRT","departureDate":"2025-12-15"}`
	search := func() map[string]any {
		req := httptest.NewRequest(http.MethodPost, "/api/search", strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer secret")
		w := httptest.NewRecorder()
		routes.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		var resp map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		return resp
	}

	resp := search()
	assert.Equal(t, true, resp["success"])
	assert.Equal(t, false, resp["cached"])
	assert.EqualValues(t, 2, resp["total_results"])
	assert.EqualValues(t, 400, resp["best_price"])
	assert.EqualValues(t, 700, resp["baseline_price"])
	assert.EqualValues(t, 42.9, resp["best_savings_percent"])
	assert.Equal(t, true, resp["baseline_available"])
	assert.ElementsMatch(t, []any{"India", "Mexico", "United States"}, resp["countries_searched"])

	flights, ok := resp["flights"].([]any)
	require.True(t, ok)
	for _, f := range flights {
		flight := f.(map[string]any)
		assert.EqualValues(t, 300, flight["savings_amount"])
		assert.Equal(t, "USD", flight["currency"])
		assert.Equal(t, "ANA", flight["airline"])
	}

	again := search()
	assert.Equal(t, true, again["cached"])
	assert.Equal(t, resp["cache_expires_at"], again["cache_expires_at"])
}

func TestRoutes_Metrics(t *testing.T) {
	routes := newService(t, "http://127.0.0.1:1")

	w := httptest.NewRecorder()
	routes.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}

func TestNew_RendererKinds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.RedisURL = ""

	cfg.Renderer.Kind = config.RendererChrome
	svc, err := app.New(cfg, "test", logger)
	require.NoError(t, err, "chrome is launched per search, not at startup")
	_ = svc.Close()

	cfg.Renderer.Kind = "playwright"
	_, err = app.New(cfg, "test", logger)
	assert.ErrorIs(t, err, config.ErrInvalid)
}

func TestNew_BadRedisURL(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Cache.RedisURL = "memcached://localhost"

	_, err = app.New(cfg, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
