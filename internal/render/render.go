// Package render produces result surfaces for a search target as seen from
// one geographic vantage point.
package render

import (
	"context"
	"errors"

	"github.com/PuerkitoBio/goquery"

	"github.com/alex-user-go/fares/internal/geo"
)

var (
	// ErrNavigation is returned when a target could not be loaded.
	ErrNavigation = errors.New("navigation failed")
	// ErrNotReady is returned when an expected element never appeared.
	ErrNotReady = errors.New("surface not ready")
)

// UserAgent is the desktop browser identity presented to result pages.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// Viewport dimensions used for every render.
const (
	ViewportWidth  = 1920
	ViewportHeight = 1080
)

// Surface is a rendered result page. Callers must Close it.
type Surface interface {
	// WaitReady blocks until selector matches or ctx is done.
	WaitReady(ctx context.Context, selector string) error
	// Document returns a snapshot of the current page.
	Document(ctx context.Context) (*goquery.Document, error)
	Close() error
}

// Renderer opens surfaces.
type Renderer interface {
	Open(ctx context.Context, target string, params geo.AccessParams) (Surface, error)
}
