package agent

import (
	"context"
	"strings"
	"time"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// fakeElement records interactions with a located element.
type fakeElement struct {
	fills []string
	typed []string
	keys  []string
}

func (e *fakeElement) Fill(text string) error { e.fills = append(e.fills, text); return nil }
func (e *fakeElement) Type(text string, _ time.Duration) error {
	e.typed = append(e.typed, text)
	return nil
}
func (e *fakeElement) Press(key string) error { e.keys = append(e.keys, key); return nil }
func (e *fakeElement) Click() error           { return nil }
func (e *fakeElement) Text() (string, error)  { return "", nil }

// fakePage is a scripted page. Challenge behaviour is driven by counters on
// the selector probe so the pause/poll/resume machine can be exercised
// without a browser.
type fakePage struct {
	url   string
	title string
	body  string
	html  string

	// The first challengedProbes selector probes report a challenge; an
	// alwaysChallenged page never clears.
	challengedProbes int
	alwaysChallenged bool
	probes           int

	searchBox *fakeElement
	results   []map[string]any

	visited []string
	closed  bool
}

func (p *fakePage) Goto(url string, _ time.Duration) error {
	p.url = url
	p.visited = append(p.visited, url)
	return nil
}
func (p *fakePage) Title() (string, error)   { return p.title, nil }
func (p *fakePage) URL() string              { return p.url }
func (p *fakePage) Content() (string, error) { return p.html, nil }
func (p *fakePage) WaitQuiet(time.Duration)  {}
func (p *fakePage) Close() error             { p.closed = true; return nil }

func (p *fakePage) Find(selector string, _ time.Duration, _ int) (browser.Element, error) {
	if p.searchBox == nil {
		return nil, browser.ErrElementNotReady
	}
	return p.searchBox, nil
}

func (p *fakePage) Eval(script string) (any, error) {
	switch {
	case strings.Contains(script, "const sels ="):
		p.probes++
		if p.alwaysChallenged || p.probes <= p.challengedProbes {
			return `iframe[src*="recaptcha"]`, nil
		}
		return nil, nil
	case strings.Contains(script, "const selectors ="):
		out := make([]any, 0, len(p.results))
		for _, r := range p.results {
			out = append(out, r)
		}
		return out, nil
	case strings.Contains(script, "document.body ? document.body.innerText"):
		return p.body, nil
	}
	return "", nil
}

// fakeSurface hands out the scripted page and tracks tab lifecycle.
type fakeSurface struct {
	page    *fakePage
	makeTab func() *fakePage
	tabs    []*fakePage
	closed  bool
}

func (s *fakeSurface) Page(context.Context) (browser.Page, error) { return s.page, nil }

func (s *fakeSurface) NewTab(context.Context) (browser.Page, error) {
	tab := &fakePage{}
	if s.makeTab != nil {
		tab = s.makeTab()
	}
	s.tabs = append(s.tabs, tab)
	return tab, nil
}

func (s *fakeSurface) CloseTab(p browser.Page) error { return p.Close() }
func (s *fakeSurface) Alive() bool                   { return !s.closed }
func (s *fakeSurface) Close() error                  { s.closed = true; return nil }

// stubLLM is the canned reasoning service.
type stubLLM struct {
	structured func(system, query string, out any) error
	text       func(prompt string) (string, error)
}

func (s *stubLLM) GenerateStructured(_ context.Context, system, query string, _ map[string]any, out any) error {
	return s.structured(system, query, out)
}

func (s *stubLLM) GenerateText(_ context.Context, prompt string) (string, error) {
	if s.text == nil {
		return "", nil
	}
	return s.text(prompt)
}

func (s *stubLLM) Name() string { return "stub" }
