package agent

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// Session owns everything one task touches: the browser surface, the active
// page, the step trace, and the CAPTCHA flags. Sessions are single-threaded;
// execution along the plan is strictly sequential.
type Session struct {
	Query   string
	AgentID string
	UserID  string

	surface browser.Surface
	page    browser.Page

	steps []StepRecord

	// captchaDetected is written only by the CAPTCHA controller and the
	// primitives that raise the sentinel; everyone else reads.
	captchaDetected bool
	captchaURL      string
	captchaURLs     []string

	logger zerolog.Logger
}

func NewSession(query, agentID, userID string, surface browser.Surface, logger zerolog.Logger) *Session {
	return &Session{
		Query:   query,
		AgentID: agentID,
		UserID:  userID,
		surface: surface,
		logger:  logger,
	}
}

// Page returns the session's active page, launching the browser on first
// use.
func (s *Session) Page(ctx context.Context) (browser.Page, error) {
	if s.page != nil {
		return s.page, nil
	}
	page, err := s.surface.Page(ctx)
	if err != nil {
		return nil, err
	}
	s.page = page
	return page, nil
}

// NewTab opens a tab in the session's browser context.
func (s *Session) NewTab(ctx context.Context) (browser.Page, error) {
	return s.surface.NewTab(ctx)
}

// SwapPage makes p the active page and returns the previous one so the
// caller can restore it. The restore must happen even when the work on the
// new tab fails.
func (s *Session) SwapPage(p browser.Page) browser.Page {
	old := s.page
	s.page = p
	return old
}

// RestorePage closes the active tab and reinstates old as the active page.
func (s *Session) RestorePage(old browser.Page) {
	if s.page != nil && s.page != old {
		_ = s.surface.CloseTab(s.page)
	}
	s.page = old
}

// Record appends one step to the trace and returns it. The trace is
// append-only; retries produce new entries.
func (s *Session) Record(step string, result TaskResult) StepRecord {
	record := StepRecord{Step: step, Success: result.Success, Result: result}
	s.steps = append(s.steps, record)
	s.logger.Info().
		Str("step", step).
		Bool("success", result.Success).
		Str("error", result.ErrorString()).
		Msg("recorded step")
	return record
}

// Steps returns the trace recorded so far, in order.
func (s *Session) Steps() []StepRecord {
	return s.steps
}

// CaptchaDetected reports whether an unresolved challenge has been seen.
func (s *Session) CaptchaDetected() bool {
	return s.captchaDetected
}

// CaptchaURLs returns the deduplicated list of challenge URLs seen.
func (s *Session) CaptchaURLs() []string {
	seen := map[string]bool{}
	var urls []string
	for _, u := range append([]string{s.captchaURL}, s.captchaURLs...) {
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}

func (s *Session) markCaptcha(url string) {
	s.captchaDetected = true
	if s.captchaURL == "" {
		s.captchaURL = url
	}
	s.captchaURLs = append(s.captchaURLs, url)
}

func (s *Session) clearCaptcha() {
	s.captchaDetected = false
}

// BrowserAlive reports whether the browser process is still up.
func (s *Session) BrowserAlive() bool {
	return s.surface.Alive()
}

// Cleanup releases the browser. When a challenge is unresolved and force is
// false it does nothing: the window must stay open for the user to complete
// the CAPTCHA.
func (s *Session) Cleanup(force bool) {
	if s.captchaDetected && !force {
		s.logger.Info().
			Str("url", s.captchaURL).
			Msg("challenge unresolved, keeping browser open for manual completion")
		return
	}
	if err := s.surface.Close(); err != nil {
		s.logger.Error().Err(err).Msg("browser cleanup")
	}
}
