package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/challenge"
)

// captchaState tracks the pause/poll/resume machine. A run enters paused
// when any primitive returns the CAPTCHA sentinel, and leaves it either
// resolved (the user completed the challenge) or timed out.
type captchaState int

const (
	captchaClear captchaState = iota
	captchaPaused
	captchaResolved
	captchaTimedOut
)

const (
	defaultCaptchaMaxWait       = 300 * time.Second
	defaultCaptchaCheckInterval = 3 * time.Second
	captchaConfirmDelay         = 2 * time.Second
)

// captchaURLIndicators mark URLs that belong to a challenge interstitial.
var captchaURLIndicators = []string{"/sorry/", "captcha", "challenge", "verify"}

// captchaController polls the live page while the user completes the
// challenge. It is the single writer of the session's captcha flag.
type captchaController struct {
	sess          *Session
	checkInterval time.Duration
	maxWait       time.Duration
	confirmDelay  time.Duration
	logger        zerolog.Logger
	state         captchaState
}

func newCaptchaController(sess *Session, checkInterval, maxWait time.Duration, logger zerolog.Logger) *captchaController {
	if checkInterval <= 0 {
		checkInterval = defaultCaptchaCheckInterval
	}
	if maxWait <= 0 {
		maxWait = defaultCaptchaMaxWait
	}
	// The confirmation settle never exceeds the poll cadence.
	confirmDelay := captchaConfirmDelay
	if checkInterval < confirmDelay {
		confirmDelay = checkInterval
	}
	return &captchaController{
		sess:          sess,
		checkInterval: checkInterval,
		maxWait:       maxWait,
		confirmDelay:  confirmDelay,
		logger:        logger,
		state:         captchaClear,
	}
}

// pause records the challenge and enters the paused state. The browser is
// deliberately left running.
func (c *captchaController) pause(url string) {
	c.state = captchaPaused
	c.sess.markCaptcha(url)
	c.logger.Warn().Str("url", url).Msg("challenge detected, automation paused; browser stays open")
}

// awaitResolution polls until the challenge clears or the maximum wait is
// exhausted. Poll errors are logged and polling continues. Returns true only
// after two consecutive clear votes.
func (c *captchaController) awaitResolution(ctx context.Context) bool {
	page, err := c.sess.Page(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("no page available to poll for challenge resolution")
		c.state = captchaTimedOut
		return false
	}

	c.logger.Info().
		Dur("max_wait", c.maxWait).
		Dur("check_interval", c.checkInterval).
		Msg("waiting for user to complete challenge")

	start := time.Now()
	checks := 0
	for {
		if time.Since(start) >= c.maxWait {
			c.logger.Warn().Dur("elapsed", time.Since(start)).Msg("challenge wait timed out")
			c.state = captchaTimedOut
			return false
		}
		select {
		case <-ctx.Done():
			c.state = captchaTimedOut
			return false
		case <-time.After(c.checkInterval):
		}
		checks++

		stillChallenged := challenge.Present(page)
		onChallengeURL := isChallengeURL(page.URL())
		if stillChallenged || onChallengeURL {
			if checks%10 == 0 {
				c.logger.Info().Dur("elapsed", time.Since(start)).Msg("still waiting for challenge completion")
			}
			continue
		}

		// First clear vote: confirm after a settle delay before resuming.
		time.Sleep(c.confirmDelay)
		title, err := page.Title()
		if err != nil {
			c.logger.Warn().Err(err).Msg("error verifying page after challenge; continuing to poll")
			continue
		}
		if challenge.Present(page) {
			continue
		}
		c.logger.Info().
			Str("title", title).
			Dur("elapsed", time.Since(start)).
			Int("checks", checks).
			Msg("challenge resolved, resuming")
		c.resolve()
		return true
	}
}

func (c *captchaController) resolve() {
	c.state = captchaResolved
	c.sess.clearCaptcha()
}

func isChallengeURL(url string) bool {
	lower := strings.ToLower(url)
	for _, indicator := range captchaURLIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

// captchaNotice is the user-facing notification shown when automation is
// blocked by challenges.
func captchaNotice(urls, pageTitle string) string {
	message := `Automated searches are blocked by CAPTCHAs across primary and fallback sources.

CAPTCHA Detected At:
` + urls + `

The automation has tried multiple alternative search engines and sources, but all were blocked by CAPTCHA verification.

To proceed, you have the following options:

Option 1: Complete CAPTCHA Manually
- Open the URL(s) listed above in your browser
- Complete the CAPTCHA manually
- Once completed, reply with "CAPTCHA_COMPLETED" and the automation will resume

Option 2: Provide Alternative Source
- Provide an alternative URL or API endpoint that authorizes access
- Or suggest a permitted data source (RSS/API/allowed site)

Option 3: Use Authorized Access
- If you have API keys or OAuth credentials for authorized access, provide them
- Only short-lived session confirmations or OAuth via official flows are acceptable

IMPORTANT SECURITY NOTES:
- Do NOT share passwords, session tokens, or secret API keys
- Do NOT provide screenshots that contain sensitive information
- Only share the CAPTCHA challenge area if a screenshot is helpful (not login forms or sensitive data)
- This is a security measure to protect websites from automated abuse

The browser window(s) may remain open for you to complete CAPTCHAs manually if needed.`

	if pageTitle != "" {
		message = "Page: " + pageTitle + "\n\n" + message
	}
	return message
}
