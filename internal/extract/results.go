package extract

import (
	"net/url"
	"strings"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// DefaultResultLimit is how many entries a results page read returns unless
// the caller asks otherwise.
const DefaultResultLimit = 5

const (
	minTitleLength   = 3
	minSweepTitleLen = 10
	snippetMaxLength = 200
)

// Entry is one normalised row of a search engine results page.
type Entry struct {
	Rank    int    `json:"rank"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// resultSelectors are tried in a fixed order across the supported engines;
// the first selector that matches any elements is used exclusively.
var resultSelectors = []string{
	// Google
	`div[data-header-feature="0"] h3`,
	`div.g h3`,
	`div[data-sokoban-container] h3`,
	`.yuRUbf h3`,
	`h3.LC20lb`,
	// Bing
	`h2 a`,
	`.b_title a`,
	`.b_algo h2 a`,
	`li.b_algo h2 a`,
	// DuckDuckGo
	`h2 a.result__a`,
	`.result__title a`,
	`a.result__a`,
	`.web-result h2 a`,
	`article[data-testid="result"] h2 a`,
}

// sweepDenylist filters engine-UI links out of the last-resort sweep.
var sweepDenylist = []string{"/search", "/images", "/maps", "/settings", "/preferences", "/html"}

type rawEntry struct {
	Title   string `json:"title"`
	Href    string `json:"href"`
	Snippet string `json:"snippet"`
}

// Results reads up to limit entries from the currently loaded results page.
func (x *Extractor) Results(p browser.Page, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultResultLimit
	}
	raw := x.readBySelectors(p)
	if len(raw) == 0 {
		x.logger.Warn().Str("url", p.URL()).Msg("standard result selectors failed, sweeping links")
		raw = x.sweepLinks(p, limit*3)
	}

	pageURL := p.URL()
	entries := make([]Entry, 0, limit)
	seen := make(map[string]bool)
	for _, r := range raw {
		title := strings.TrimSpace(r.Title)
		if len(title) < minTitleLength {
			continue
		}
		link := normaliseResultURL(r.Href, pageURL)
		if link == "" || seen[link] {
			continue
		}
		seen[link] = true
		entries = append(entries, Entry{
			Rank:    len(entries) + 1,
			Title:   title,
			URL:     link,
			Snippet: clip(strings.TrimSpace(r.Snippet), snippetMaxLength),
		})
		if len(entries) >= limit {
			break
		}
	}
	x.logger.Info().Int("count", len(entries)).Str("url", pageURL).Msg("read search results")
	return entries, nil
}

func (x *Extractor) readBySelectors(p browser.Page) []rawEntry {
	script := `() => {
		const selectors = ` + jsStringArray(resultSelectors) + `;
		for (const sel of selectors) {
			let elems;
			try { elems = Array.from(document.querySelectorAll(sel)); } catch (e) { continue; }
			if (elems.length === 0) continue;
			return elems.map(el => {
				let href = null;
				if (el.tagName === 'A') href = el.href;
				if (!href) {
					const child = el.querySelector('a[href]');
					if (child) href = child.href;
				}
				if (!href) {
					const up = el.closest('a');
					if (up) href = up.href;
				}
				if (!href) {
					const box = el.closest('div, li, article');
					const any = box ? box.querySelector('a[href]') : null;
					if (any) href = any.href;
				}
				let snippet = '';
				const box = el.closest('div, li, article');
				if (box) {
					const sn = box.querySelector('.VwiC3b, .b_caption p, .result__snippet, .s');
					if (sn) snippet = sn.innerText;
				}
				return {title: el.innerText, href: href || '', snippet: snippet};
			});
		}
		return [];
	}`
	val, err := p.Eval(script)
	if err != nil {
		x.logger.Debug().Err(err).Msg("read results by selectors")
		return nil
	}
	var out []rawEntry
	if remarshal(val, &out) != nil {
		return nil
	}
	return out
}

// sweepLinks is the last resort: every anchor with substantial text whose
// href is not an engine-UI path.
func (x *Extractor) sweepLinks(p browser.Page, max int) []rawEntry {
	script := `() => Array.from(document.querySelectorAll('a[href]'))
		.map(a => ({title: a.innerText, href: a.href, snippet: ''}))`
	val, err := p.Eval(script)
	if err != nil {
		return nil
	}
	var all []rawEntry
	if remarshal(val, &all) != nil {
		return nil
	}
	out := make([]rawEntry, 0, max)
	for _, r := range all {
		if len(strings.TrimSpace(r.Title)) < minSweepTitleLen {
			continue
		}
		href := strings.ToLower(r.Href)
		denied := false
		for _, path := range sweepDenylist {
			if strings.Contains(href, path) {
				denied = true
				break
			}
		}
		if denied {
			continue
		}
		out = append(out, r)
		if len(out) >= max {
			break
		}
	}
	return out
}

// normaliseResultURL resolves engine redirect wrappers and relative hrefs.
// Anything that does not come out absolute http(s) is discarded.
func normaliseResultURL(link, pageURL string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	page, _ := url.Parse(pageURL)

	// DuckDuckGo wraps result targets in a redirect with the real URL in
	// the uddg query parameter.
	if page != nil && strings.Contains(page.Hostname(), "duckduckgo.com") && strings.Contains(link, "uddg=") {
		if parsed, err := url.Parse(link); err == nil {
			if target := parsed.Query().Get("uddg"); target != "" {
				link = target
			}
		}
	}

	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	} else if strings.HasPrefix(link, "/") && page != nil && page.Scheme != "" {
		link = page.Scheme + "://" + page.Host + link
	}
	if !strings.HasPrefix(link, "http") {
		return ""
	}
	return link
}

func jsStringArray(items []string) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('\'')
		b.WriteString(strings.ReplaceAll(item, `'`, `\'`))
		b.WriteByte('\'')
	}
	b.WriteByte(']')
	return b.String()
}
