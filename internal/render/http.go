package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alex-user-go/fares/internal/geo"
)

// maxPageBytes bounds the size of a rendered page read from the service.
const maxPageBytes = 10 << 20

// ContentRequest is the body sent to a render service's /content endpoint.
type ContentRequest struct {
	URL       string        `json:"url"`
	Locale    string        `json:"locale,omitempty"`
	Timezone  string        `json:"timezone,omitempty"`
	UserAgent string        `json:"user_agent"`
	Viewport  Viewport      `json:"viewport"`
	Proxy     *ContentProxy `json:"proxy,omitempty"`
	WaitUntil string        `json:"wait_until"`
}

// Viewport is the page size requested from the render service.
type Viewport struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ContentProxy carries routing credentials to the render service.
type ContentProxy struct {
	Server   string `json:"server"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// HTTPRenderer delegates rendering to a remote browser service that
// returns the final HTML of a page.
type HTTPRenderer struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRenderer creates a new HTTPRenderer.
func NewHTTPRenderer(baseURL string, timeout time.Duration) *HTTPRenderer {
	return &HTTPRenderer{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Open asks the service to render target from the given vantage point.
func (r *HTTPRenderer) Open(ctx context.Context, target string, params geo.AccessParams) (Surface, error) {
	body := ContentRequest{
		URL:       target,
		Locale:    params.Locale,
		Timezone:  params.Timezone,
		UserAgent: UserAgent,
		Viewport:  Viewport{Width: ViewportWidth, Height: ViewportHeight},
		WaitUntil: "networkidle",
	}
	if params.Proxy.Enabled() {
		body.Proxy = &ContentProxy{
			Server:   params.Proxy.Server,
			Username: params.Proxy.Username,
			Password: params.Proxy.Password,
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode render request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/content", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, params.Code, err)
	}
	defer func() {
		_ = resp.Body.Close() // Explicitly ignore close error
	}()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s: render service returned status %d: %s", ErrNavigation, params.Code, resp.StatusCode, string(msg))
	}

	html, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: reading page: %v", ErrNavigation, params.Code, err)
	}

	surface, err := NewStaticSurface(string(html))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, params.Code, err)
	}
	return surface, nil
}
