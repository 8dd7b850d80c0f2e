package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

const (
	defaultNavTimeout    = 30 * time.Second
	defaultActionTimeout = 10 * time.Second
	findRetryBaseDelay   = 250 * time.Millisecond

	viewportWidth  = 1920
	viewportHeight = 1080

	// Desktop Chrome UA so search engines serve the full result markup.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// ErrElementNotReady is returned by Find when the selector never became
// attached, visible, and enabled within the allowed retries.
var ErrElementNotReady = errors.New("element not ready")

// Element is a ready-to-interact element on a page.
type Element interface {
	// Fill focuses the element, clears any existing value, and sets text.
	Fill(text string) error
	// Type focuses and clears the element, then types text key by key.
	Type(text string, delay time.Duration) error
	Press(key string) error
	Click() error
	Text() (string, error)
}

// Page is one browser tab.
type Page interface {
	// Goto navigates and waits for the DOM to be parsed, then for the
	// network to go quiet; the second wait is non-fatal on expiry.
	Goto(url string, timeout time.Duration) error
	Title() (string, error)
	URL() string
	Content() (string, error)
	// Eval runs a side-effect-free script in the page and returns its JSON
	// value.
	Eval(script string) (any, error)
	// Find returns the first element matching selector once it is attached,
	// visible, and enabled, retrying with exponential backoff.
	Find(selector string, timeout time.Duration, retries int) (Element, error)
	// WaitQuiet waits for the network-idle state; expiry is logged, not
	// returned.
	WaitQuiet(timeout time.Duration)
	Close() error
}

// Surface owns the browser lifecycle for one agent session. Launch is lazy
// and idempotent: the first call to Page starts the engine.
type Surface interface {
	Page(ctx context.Context) (Page, error)
	NewTab(ctx context.Context) (Page, error)
	CloseTab(p Page) error
	Alive() bool
	Close() error
}

type surface struct {
	mu       sync.Mutex
	pw       *playwright.Playwright
	browser  playwright.Browser
	context  playwright.BrowserContext
	page     *page
	headless bool
	logger   zerolog.Logger
	closed   bool
}

// NewSurface builds an unlaunched surface. Headless should stay false in
// production: the user must be able to complete CAPTCHAs in the window.
func NewSurface(headless bool, logger zerolog.Logger) Surface {
	return &surface{headless: headless, logger: logger}
}

func (s *surface) ensure(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return errors.New("surface closed")
	}
	if s.pw != nil {
		return nil
	}
	pw, err := playwright.Run()
	if err != nil {
		return fmt.Errorf("start playwright: %w", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(s.headless),
		Args: []string{
			"--disable-dev-shm-usage",
			"--no-sandbox",
		},
	})
	if err != nil {
		_ = pw.Stop()
		return fmt.Errorf("launch chromium: %w", err)
	}
	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport:  &playwright.Size{Width: viewportWidth, Height: viewportHeight},
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("new context: %w", err)
	}
	pg, err := bctx.NewPage()
	if err != nil {
		_ = bctx.Close()
		_ = browser.Close()
		_ = pw.Stop()
		return fmt.Errorf("new page: %w", err)
	}
	pg.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))

	s.pw = pw
	s.browser = browser
	s.context = bctx
	s.page = &page{pw: pg, logger: s.logger}
	s.logger.Info().Bool("headless", s.headless).Msg("browser launched")
	return nil
}

func (s *surface) Page(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	return s.page, nil
}

func (s *surface) NewTab(ctx context.Context) (Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensure(ctx); err != nil {
		return nil, err
	}
	pg, err := s.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("new tab: %w", err)
	}
	pg.SetDefaultTimeout(float64(defaultNavTimeout.Milliseconds()))
	s.logger.Debug().Msg("opened new tab")
	return &page{pw: pg, logger: s.logger}, nil
}

func (s *surface) CloseTab(p Page) error {
	if p == nil {
		return nil
	}
	return p.Close()
}

func (s *surface) Alive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pw != nil && !s.closed
}

func (s *surface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.pw == nil {
		return nil
	}
	if s.page != nil {
		_ = s.page.Close()
	}
	if s.context != nil {
		_ = s.context.Close()
	}
	if s.browser != nil {
		_ = s.browser.Close()
	}
	err := s.pw.Stop()
	s.pw = nil
	s.logger.Info().Msg("browser closed")
	return wrap(err)
}

type page struct {
	pw     playwright.Page
	logger zerolog.Logger
}

func (p *page) Goto(url string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	_, err := p.pw.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return wrap(err)
	}
	p.WaitQuiet(timeout)
	return nil
}

func (p *page) WaitQuiet(timeout time.Duration) {
	if timeout <= 0 {
		timeout = defaultNavTimeout
	}
	err := p.pw.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		// Busy pages never go network-idle; that is not a failure.
		p.logger.Debug().Err(err).Msg("network-idle wait expired")
	}
}

func (p *page) Title() (string, error) {
	title, err := p.pw.Title()
	return title, wrap(err)
}

func (p *page) URL() string {
	return p.pw.URL()
}

func (p *page) Content() (string, error) {
	content, err := p.pw.Content()
	return content, wrap(err)
}

func (p *page) Eval(script string) (any, error) {
	val, err := p.pw.Evaluate(script)
	return val, wrap(err)
}

func (p *page) Find(selector string, timeout time.Duration, retries int) (Element, error) {
	if timeout <= 0 {
		timeout = defaultActionTimeout
	}
	if retries < 1 {
		retries = 1
	}
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(findRetryBaseDelay * time.Duration(1<<uint(attempt-1)))
		}
		loc := p.pw.Locator(selector).First()
		err := loc.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(float64(timeout.Milliseconds())),
		})
		if err != nil {
			lastErr = err
			continue
		}
		enabled, err := loc.IsEnabled()
		if err != nil {
			lastErr = err
			continue
		}
		if !enabled {
			lastErr = fmt.Errorf("selector %q: element disabled", selector)
			continue
		}
		return &element{loc: loc}, nil
	}
	return nil, fmt.Errorf("%w: %q after %d attempts: %v", ErrElementNotReady, selector, retries, lastErr)
}

func (p *page) Close() error {
	return wrap(p.pw.Close())
}

type element struct {
	loc playwright.Locator
}

func (e *element) Fill(text string) error {
	if err := e.loc.Click(); err != nil {
		return wrap(err)
	}
	if err := e.loc.Fill(""); err != nil {
		return wrap(err)
	}
	return wrap(e.loc.Fill(text))
}

func (e *element) Type(text string, delay time.Duration) error {
	if err := e.loc.Click(); err != nil {
		return wrap(err)
	}
	if err := e.loc.Fill(""); err != nil {
		return wrap(err)
	}
	return wrap(e.loc.Type(text, playwright.LocatorTypeOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	}))
}

func (e *element) Press(key string) error {
	return wrap(e.loc.Press(key))
}

func (e *element) Click() error {
	return wrap(e.loc.Click())
}

func (e *element) Text() (string, error) {
	text, err := e.loc.InnerText()
	return strings.TrimSpace(text), wrap(err)
}

func wrap(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("playwright: %w", err)
}
