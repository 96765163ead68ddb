package render

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/PuerkitoBio/goquery"
)

// StaticSurface is an already-rendered HTML snapshot. Readiness is decided
// immediately since the page can no longer change.
type StaticSurface struct {
	doc    *goquery.Document
	closed atomic.Bool
}

// NewStaticSurface parses html into a surface.
func NewStaticSurface(html string) (*StaticSurface, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return &StaticSurface{doc: doc}, nil
}

// WaitReady reports ErrNotReady if selector has no match.
func (s *StaticSurface) WaitReady(ctx context.Context, selector string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrNotReady, context.Cause(ctx))
	}
	if s.doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: no match for %q", ErrNotReady, selector)
	}
	return nil
}

// Document returns the parsed snapshot.
func (s *StaticSurface) Document(context.Context) (*goquery.Document, error) {
	return s.doc, nil
}

// Close marks the surface closed.
func (s *StaticSurface) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close was called.
func (s *StaticSurface) Closed() bool {
	return s.closed.Load()
}
