package extract

import "github.com/PuerkitoBio/goquery"

// Strategy locates result candidates on a page.
type Strategy interface {
	Name() string
	Candidates(doc *goquery.Document) *goquery.Selection
}

// Selector is a Strategy backed by a single CSS selector.
type Selector string

// Name returns the selector text.
func (s Selector) Name() string {
	return string(s)
}

// Candidates returns every element matching the selector.
func (s Selector) Candidates(doc *goquery.Document) *goquery.Selection {
	return doc.Find(string(s))
}

// DefaultStrategies are tried in order. Result markup drifts between
// renders, so several known shapes are kept.
var DefaultStrategies = []Strategy{
	Selector(`[class*="pIav2d"]`),
	Selector(`[class*="yR1fYc"]`),
	Selector(`li[data-ved]`),
}

// DefaultReadyMarker appears once the result list has rendered.
const DefaultReadyMarker = `div[data-ved]`

// firstMatch returns the candidates of the first strategy with at least
// one match, or nil when none match.
func firstMatch(doc *goquery.Document, strategies []Strategy) (Strategy, *goquery.Selection) {
	for _, s := range strategies {
		if sel := s.Candidates(doc); sel.Length() > 0 {
			return s, sel
		}
	}
	return nil, nil
}
