package render

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/alex-user-go/fares/internal/geo"
)

// consentSelector matches cookie banners shown to first-time visitors.
const consentSelector = `button[aria-label*="Accept"]`

// hideAutomation masks the most common headless fingerprints.
const hideAutomation = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['en-US', 'en'] });
`

// ChromeRenderer launches one headless Chrome per surface.
type ChromeRenderer struct {
	headless   bool
	navTimeout time.Duration
	logger     *slog.Logger
}

// NewChromeRenderer creates a new ChromeRenderer.
func NewChromeRenderer(headless bool, navTimeout time.Duration, logger *slog.Logger) *ChromeRenderer {
	return &ChromeRenderer{
		headless:   headless,
		navTimeout: navTimeout,
		logger:     logger,
	}
}

// Open starts a browser configured for params and navigates to target.
// The browser is torn down if navigation fails.
func (r *ChromeRenderer) Open(ctx context.Context, target string, params geo.AccessParams) (Surface, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", r.headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.NoSandbox,
		chromedp.WindowSize(ViewportWidth, ViewportHeight),
		chromedp.UserAgent(UserAgent),
	)
	if params.Proxy.Enabled() {
		opts = append(opts, chromedp.ProxyServer(params.Proxy.Server))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	s := &chromeSurface{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
	}

	actions := []chromedp.Action{}
	if params.Proxy.Enabled() {
		listenForAuth(tabCtx, params.Proxy)
		actions = append(actions, fetch.Enable().WithHandleAuthRequests(true))
	}
	if params.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(params.Locale))
	}
	if params.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(params.Timezone))
	}
	actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
		_, err := page.AddScriptToEvaluateOnNewDocument(hideAutomation).Do(ctx)
		return err
	}))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s: browser setup: %v", ErrNavigation, params.Code, err)
	}

	navCtx, cancelNav := context.WithTimeout(tabCtx, r.navTimeout)
	defer cancelNav()
	if err := chromedp.Run(navCtx, chromedp.Navigate(target)); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrNavigation, params.Code, err)
	}

	r.dismissConsent(tabCtx, params.Code)

	return s, nil
}

// dismissConsent clicks the cookie banner if there is one. Failures are
// ignored since most pages have no banner.
func (r *ChromeRenderer) dismissConsent(ctx context.Context, code string) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var nodes []*cdp.Node
	if err := chromedp.Run(ctx, chromedp.Nodes(consentSelector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0))); err != nil || len(nodes) == 0 {
		return
	}
	if err := chromedp.Run(ctx, chromedp.MouseClickNode(nodes[0]), chromedp.Sleep(time.Second)); err != nil {
		r.logger.Debug("consent click failed", "source", code, "error", err)
	}
}

// listenForAuth answers proxy authentication challenges and resumes
// requests paused by the fetch domain.
func listenForAuth(ctx context.Context, proxy geo.Proxy) {
	chromedp.ListenTarget(ctx, func(ev any) {
		switch ev := ev.(type) {
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueRequest(ev.RequestID))
			}()
		case *fetch.EventAuthRequired:
			go func() {
				_ = chromedp.Run(ctx, fetch.ContinueWithAuth(ev.RequestID, &fetch.AuthChallengeResponse{
					Response: fetch.AuthChallengeResponseResponseProvideCredentials,
					Username: proxy.Username,
					Password: proxy.Password,
				}))
			}()
		}
	})
}

type chromeSurface struct {
	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
}

func (s *chromeSurface) WaitReady(ctx context.Context, selector string) error {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, chromedp.WaitReady(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrNotReady, selector, err)
	}
	return nil
}

func (s *chromeSurface) Document(ctx context.Context) (*goquery.Document, error) {
	runCtx, cancel := s.bind(ctx)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("failed to snapshot page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}
	return doc, nil
}

func (s *chromeSurface) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// bind returns a tab context that is also cancelled when ctx is done.
func (s *chromeSurface) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	runCtx, cancel := context.WithCancel(s.ctx)
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}
