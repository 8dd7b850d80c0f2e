package extract

import (
	"net/url"
	"strings"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// isReferenceSite reports whether the URL belongs to a reference site that
// warrants infobox and table-of-contents extraction.
func isReferenceSite(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return host == "wikipedia.org" || strings.HasSuffix(host, ".wikipedia.org")
}

// enrichReference adds the infobox rows, table of contents, and key content
// paragraphs that encyclopedia articles carry.
func (x *Extractor) enrichReference(p browser.Page, report *Report) {
	val, err := p.Eval(`() => {
		const rows = Array.from(document.querySelectorAll('.infobox tr'))
			.map(tr => {
				const th = tr.querySelector('th');
				const td = tr.querySelector('td');
				if (!th || !td) return null;
				return {label: th.innerText.trim(), value: td.innerText.trim()};
			})
			.filter(r => r && r.label && r.value);
		return rows;
	}`)
	if err == nil {
		var rows []InfoboxRow
		if remarshal(val, &rows) == nil && len(rows) > 0 {
			report.Infobox = rows
		}
	} else {
		x.logger.Debug().Err(err).Msg("extract infobox")
	}

	toc := evalStrings(p, `() => Array.from(document.querySelectorAll('#toc a'))
		.map(a => a.innerText.trim())
		.filter(t => t)`)
	if len(toc) > 0 {
		report.TableOfContents = toc
	}

	paragraphs := evalStrings(p, `() => {
		const content = document.querySelector('#mw-content-text') || document.body;
		return Array.from(content.querySelectorAll('p'))
			.map(el => el.innerText.trim())
			.filter(t => t.length >= 50 && t.length <= 500)
			.slice(0, 5);
	}`)
	if len(paragraphs) > 0 {
		report.KeyParagraphs = paragraphs
	}
}

// ArticleLinks returns the first n article links from a Wikipedia search
// results or article page, absolute and deduplicated.
func ArticleLinks(p browser.Page, n int) []string {
	links := evalStrings(p, `() => {
		const anchors = document.querySelectorAll('.mw-search-result-heading a, #mw-content-text a[href^="/wiki/"]');
		const seen = new Set();
		const out = [];
		for (const a of anchors) {
			const href = a.getAttribute('href') || '';
			if (!href.startsWith('/wiki/')) continue;
			if (href.includes(':')) continue;
			if (seen.has(href)) continue;
			seen.add(href);
			out.push(a.href);
		}
		return out;
	}`)
	if len(links) > n {
		links = links[:n]
	}
	return links
}
