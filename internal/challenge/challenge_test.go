package challenge

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

type probePage struct {
	selectorHit string
	bodyText    string
	html        string
	evalErr     error
	contentErr  error
}

func (p *probePage) Goto(string, time.Duration) error { return nil }
func (p *probePage) Title() (string, error)           { return "", nil }
func (p *probePage) URL() string                      { return "https://example.com" }
func (p *probePage) WaitQuiet(time.Duration)          {}
func (p *probePage) Close() error                     { return nil }
func (p *probePage) Find(string, time.Duration, int) (browser.Element, error) {
	return nil, browser.ErrElementNotReady
}

func (p *probePage) Content() (string, error) {
	if p.contentErr != nil {
		return "", p.contentErr
	}
	return p.html, nil
}

func (p *probePage) Eval(script string) (any, error) {
	if p.evalErr != nil {
		return nil, p.evalErr
	}
	if strings.Contains(script, "const sels =") {
		if p.selectorHit != "" {
			return p.selectorHit, nil
		}
		return nil, nil
	}
	return p.bodyText, nil
}

func TestSelectorProbe(t *testing.T) {
	page := &probePage{selectorHit: `iframe[src*="recaptcha"]`}
	assert.True(t, Present(page))
}

func TestPhraseProbe(t *testing.T) {
	page := &probePage{bodyText: "Please verify you are human to continue"}
	assert.True(t, Present(page))
}

func TestKeywordNeedsStructuralAttribute(t *testing.T) {
	// A structural occurrence counts.
	page := &probePage{html: `<div class="captcha-box">solve this</div>`}
	assert.True(t, Present(page))

	// A mere mention in prose does not.
	page = &probePage{
		bodyText: "an article about captcha farms",
		html:     `<p>an article about captcha farms</p>`,
	}
	assert.False(t, Present(page))
}

func TestCleanPage(t *testing.T) {
	page := &probePage{bodyText: "Welcome to the site", html: "<h1>Welcome</h1>"}
	assert.False(t, Present(page))
}

func TestDetectorNeverFailsOnErrors(t *testing.T) {
	page := &probePage{evalErr: errors.New("page gone"), contentErr: errors.New("page gone")}
	assert.False(t, Present(page))
	assert.False(t, Present(nil))
}
