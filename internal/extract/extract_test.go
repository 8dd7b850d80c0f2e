package extract

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/web-research-agent/internal/browser"
)

// scriptPage answers Eval calls by matching markers against the script text.
type scriptPage struct {
	url       string
	title     string
	responses map[string]any
}

func (p *scriptPage) Goto(url string, _ time.Duration) error { p.url = url; return nil }
func (p *scriptPage) Title() (string, error)                 { return p.title, nil }
func (p *scriptPage) URL() string                            { return p.url }
func (p *scriptPage) Content() (string, error)               { return "", nil }
func (p *scriptPage) WaitQuiet(time.Duration)                {}
func (p *scriptPage) Close() error                           { return nil }
func (p *scriptPage) Find(string, time.Duration, int) (browser.Element, error) {
	return nil, browser.ErrElementNotReady
}

func (p *scriptPage) Eval(script string) (any, error) {
	for marker, value := range p.responses {
		if strings.Contains(script, marker) {
			return value, nil
		}
	}
	return "", nil
}

func TestPageReport(t *testing.T) {
	page := &scriptPage{
		url:   "https://news.example.com/story",
		title: "Example Story",
		responses: map[string]any{
			`[role="main"]`:            "Full body text of the story, long enough to preview.",
			"og:description":           "A story about examples",
			`grab("h1", 5)`:            map[string]any{"h1": []any{"Example Story"}, "h2": []any{"Background"}, "h3": []any{}},
			`[class*="article"]`:       []any{"First paragraph with sufficient length to pass the filter.", "Second paragraph, also long enough to be kept around."},
			"article:published_time":   "2024-05-01",
			`itemprop="author"`:        "A. Writer",
			"'p, li'":                  []any{"First paragraph with sufficient length to pass the filter."},
		},
	}
	x := NewExtractor(nil, zerolog.Nop())

	report, err := x.Page(context.Background(), page)
	require.NoError(t, err)

	assert.Equal(t, "Example Story", report.Title)
	assert.Equal(t, "https://news.example.com/story", report.URL)
	assert.Equal(t, "A story about examples", report.MetaDescription)
	assert.Equal(t, []string{"Example Story"}, report.Headings.H1)
	assert.Contains(t, report.ArticleContent, "First paragraph")
	assert.Equal(t, "2024-05-01", report.PublicationDate)
	assert.Equal(t, "A. Writer", report.Author)
	require.Len(t, report.KeyPoints, 1)
	assert.Equal(t, len("Full body text of the story, long enough to preview."), report.ContentLength)
	assert.Empty(t, report.Issues)
	// No oracle configured, so no summary.
	assert.Empty(t, report.Summary)
	// Not a reference site: no enrichment fields.
	assert.Nil(t, report.Infobox)
	assert.Nil(t, report.TableOfContents)
}

func TestPageReportFlagsErrorPages(t *testing.T) {
	page := &scriptPage{
		url:   "https://example.com/missing",
		title: "404",
		responses: map[string]any{
			`[role="main"]`: "Error 404: page not found",
		},
	}
	x := NewExtractor(nil, zerolog.Nop())

	report, err := x.Page(context.Background(), page)
	require.NoError(t, err)
	assert.Equal(t, []string{"Possible error detected on page"}, report.Issues)
}

func TestWikipediaEnrichment(t *testing.T) {
	page := &scriptPage{
		url:   "https://en.wikipedia.org/wiki/Alan_Turing",
		title: "Alan Turing - Wikipedia",
		responses: map[string]any{
			".infobox tr": []any{
				map[string]any{"label": "Born", "value": "23 June 1912"},
				map[string]any{"label": "Died", "value": "7 June 1954"},
			},
			"#toc a":           []any{"Early life", "Cryptanalysis"},
			"#mw-content-text": []any{"Alan Mathison Turing was an English mathematician and computer scientist widely considered a founder of the field."},
		},
	}
	x := NewExtractor(nil, zerolog.Nop())

	report, err := x.Page(context.Background(), page)
	require.NoError(t, err)

	require.Len(t, report.Infobox, 2)
	assert.Equal(t, "Born", report.Infobox[0].Label)
	assert.Equal(t, []string{"Early life", "Cryptanalysis"}, report.TableOfContents)
	require.Len(t, report.KeyParagraphs, 1)
}

func TestIsReferenceSite(t *testing.T) {
	assert.True(t, isReferenceSite("https://en.wikipedia.org/wiki/Go"))
	assert.True(t, isReferenceSite("https://wikipedia.org"))
	assert.False(t, isReferenceSite("https://notwikipedia.org.evil.com"))
	assert.False(t, isReferenceSite("https://example.com"))
}

func TestArticleLinks(t *testing.T) {
	page := &scriptPage{
		responses: map[string]any{
			"mw-search-result-heading": []any{
				"https://en.wikipedia.org/wiki/Alan_Turing",
				"https://en.wikipedia.org/wiki/Enigma_machine",
				"https://en.wikipedia.org/wiki/Bletchley_Park",
				"https://en.wikipedia.org/wiki/Computer",
			},
		},
	}
	links := ArticleLinks(page, 3)
	assert.Len(t, links, 3)
}
