package extract_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alex-user-go/fares/internal/extract"
	"github.com/alex-user-go/fares/internal/normalize"
	"github.com/alex-user-go/fares/internal/obs"
	"github.com/alex-user-go/fares/internal/render"
)

const primaryPage = `<html><body><div data-ved="1">
<ul>
  <li class="pIav2d">
    <div class="sSHqwe">ANA</div>
    <span class="mv1WYe">10:30 AM</span><span class="mv1WYe">3:45 PM +1</span>
    <div class="gvkrdb">11h 15m</div>
    <div class="EfT7Ae">Nonstop</div>
    <div class="YMlIz">$487</div>
  </li>
  <li class="pIav2d">
    <div class="sSHqwe">Qatar Airways</div>
    <span class="mv1WYe">8:05 PM</span><span class="mv1WYe">6:10 AM +2</span>
    <div class="gvkrdb">22h 5m</div>
    <div class="EfT7Ae">1 stop</div>
    <span class="stop-city">DOH</span>
    <div class="YMlIz">$1,234.50</div>
  </li>
  <li class="pIav2d">
    <div class="sSHqwe">No Price Air</div>
  </li>
  <li class="pIav2d">
    <div class="sSHqwe">Garbage Air</div>
    <div class="YMlIz">Price unavailable</div>
  </li>
  <li class="pIav2d">
    <div class="YMlIz">USD 99</div>
  </li>
</ul>
</div></body></html>`

const alternatePage = `<html><body><div data-ved="1">
  <div class="yR1fYc"><span class="Ir0Voe">LATAM</span><span class="price">usd 8,000</span><span class="BbR8Ec">2 stops</span></div>
  <div class="yR1fYc"><span class="Ir0Voe">Volaris</span><span class="price">MXN 12,500</span></div>
  <div class="yR1fYc"><span class="Ir0Voe">Aeromexico</span><span class="price">$650</span></div>
</div></body></html>`

const listFallbackPage = `<html><body><div data-ved="1"><ul>
  <li data-ved="a"><span class="airline">United</span><span class="price">$700</span></li>
</ul></div></body></html>`

func newPipeline(t *testing.T) *extract.Pipeline {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return extract.New(extract.Config{ReadyTimeout: 100 * time.Millisecond}, obs.NewMetrics(logger), logger)
}

func staticSurface(t *testing.T, html string) *render.StaticSurface {
	t.Helper()
	s, err := render.NewStaticSurface(html)
	require.NoError(t, err)
	return s
}

func TestPipeline_Extract_PrimaryMarkup(t *testing.T) {
	p := newPipeline(t)

	flights := p.Extract(context.Background(), staticSurface(t, primaryPage), "India", 10)

	require.Len(t, flights, 3)

	assert.Equal(t, "ANA", flights[0].Airline)
	assert.Equal(t, 487.0, flights[0].Price)
	assert.Equal(t, "USD", flights[0].Currency)
	assert.Equal(t, "10:30 AM", flights[0].DepartureTime)
	assert.Equal(t, "3:45 PM +1", flights[0].ArrivalTime)
	assert.Equal(t, "11h 15m", flights[0].Duration)
	assert.Equal(t, 0, flights[0].Stops)
	assert.Equal(t, "India", flights[0].Source)
	assert.Equal(t, normalize.Fingerprint("ANA", "10:30 AM", "3:45 PM +1", 487, "India"), flights[0].ID)
	assert.Nil(t, flights[0].Savings)

	assert.Equal(t, 1234.50, flights[1].Price)
	assert.Equal(t, 1, flights[1].Stops)
	assert.Equal(t, []string{"DOH"}, flights[1].StopCities)

	// Every optional field missing degrades to defaults.
	assert.Equal(t, "Unknown Airline", flights[2].Airline)
	assert.Equal(t, 99.0, flights[2].Price)
	assert.Empty(t, flights[2].DepartureTime)
	assert.Empty(t, flights[2].ArrivalTime)
	assert.Empty(t, flights[2].Duration)
	assert.Equal(t, 0, flights[2].Stops)
	assert.Nil(t, flights[2].StopCities)
}

func TestPipeline_Extract_FallbackStrategies(t *testing.T) {
	p := newPipeline(t)

	alt := p.Extract(context.Background(), staticSurface(t, alternatePage), "Mexico", 10)
	require.Len(t, alt, 2)
	assert.Equal(t, "LATAM", alt[0].Airline)
	assert.Equal(t, 8000.0, alt[0].Price)
	assert.Equal(t, 2, alt[0].Stops)
	assert.Equal(t, "Aeromexico", alt[1].Airline, "a peso quote cannot be compared against the baseline")
	assert.Equal(t, "USD", alt[1].Currency)

	list := p.Extract(context.Background(), staticSurface(t, listFallbackPage), "United States", 10)
	require.Len(t, list, 1)
	assert.Equal(t, "United", list[0].Airline)
	assert.Equal(t, 700.0, list[0].Price)
}

func TestPipeline_Extract_DiscardReasons(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := obs.NewMetrics(logger)
	p := extract.New(extract.Config{ReadyTimeout: 100 * time.Millisecond}, metrics, logger)

	p.Extract(context.Background(), staticSurface(t, primaryPage), "India", 10)
	p.Extract(context.Background(), staticSurface(t, alternatePage), "Mexico", 10)

	discarded := func(source, reason string) float64 {
		return testutil.ToFloat64(metrics.RecordsDiscarded.WithLabelValues(source, reason))
	}
	assert.Equal(t, 1.0, discarded("India", "missing_price"))
	assert.Equal(t, 1.0, discarded("India", "unparseable_price"))
	assert.Equal(t, 1.0, discarded("Mexico", "foreign_currency"))
	assert.Equal(t, 0.0, discarded("Mexico", "unparseable_price"))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.RecordsExtracted.WithLabelValues("India")))
}

func TestPipeline_Extract_MaxResults(t *testing.T) {
	p := newPipeline(t)

	// The limit applies to candidates, so discarded ones still count.
	flights := p.Extract(context.Background(), staticSurface(t, primaryPage), "India", 3)

	require.Len(t, flights, 2)
	assert.Equal(t, "ANA", flights[0].Airline)
	assert.Equal(t, "Qatar Airways", flights[1].Airline)
}

func TestPipeline_Extract_NeverReady(t *testing.T) {
	p := newPipeline(t)

	flights := p.Extract(context.Background(), staticSurface(t, `<html><body><p>loading</p></body></html>`), "Brazil", 10)

	assert.Empty(t, flights)
}

func TestPipeline_Extract_NoCandidates(t *testing.T) {
	p := newPipeline(t)

	flights := p.Extract(context.Background(), staticSurface(t, `<html><body><div data-ved="1">no flights</div></body></html>`), "Brazil", 10)

	assert.Empty(t, flights)
}

// slowSurface never becomes ready until ctx is done.
type slowSurface struct {
	render.Surface
	waited bool
}

func (s *slowSurface) WaitReady(ctx context.Context, _ string) error {
	s.waited = true
	<-ctx.Done()
	return render.ErrNotReady
}

func (s *slowSurface) Document(context.Context) (*goquery.Document, error) {
	return nil, errors.New("should not be called")
}

func TestPipeline_Extract_ReadyWaitIsBounded(t *testing.T) {
	p := newPipeline(t)
	s := &slowSurface{}

	start := time.Now()
	flights := p.Extract(context.Background(), s, "Thailand", 10)

	assert.Empty(t, flights)
	assert.True(t, s.waited)
	assert.Less(t, time.Since(start), 2*time.Second)
}
