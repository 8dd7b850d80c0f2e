// Package extract reads loaded pages into typed reports: full page content
// for article-style pages and ranked entries for search result pages.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/browser"
	"github.com/polzovatel/web-research-agent/internal/llm"
)

const (
	previewLength     = 1000
	articleMaxLength  = 2000
	summaryMaxLength  = 300
	summaryInputChars = 1000
)

// errorIndicators flag a page that loaded but shows an error state.
var errorIndicators = []string{"error", "404", "not found", "page not found", "access denied"}

// Headings are the first prominent headings of a page.
type Headings struct {
	H1 []string `json:"h1"`
	H2 []string `json:"h2"`
	H3 []string `json:"h3"`
}

// InfoboxRow is one label/value pair from a reference-site infobox.
type InfoboxRow struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Report is the typed summary of a loaded page.
type Report struct {
	Title           string       `json:"title"`
	URL             string       `json:"url"`
	ContentPreview  string       `json:"content_preview"`
	ArticleContent  string       `json:"article_content"`
	MetaDescription string       `json:"meta_description"`
	Headings        Headings     `json:"headings"`
	PublicationDate string       `json:"publication_date"`
	Author          string       `json:"author"`
	KeyPoints       []string     `json:"key_points"`
	Summary         string       `json:"summary,omitempty"`
	Infobox         []InfoboxRow `json:"infobox,omitempty"`
	TableOfContents []string     `json:"table_of_contents,omitempty"`
	KeyParagraphs   []string     `json:"key_paragraphs,omitempty"`
	Issues          []string     `json:"issues"`
	ContentLength   int          `json:"content_length"`
}

// Extractor reads pages. The reasoning client is optional; without it the
// report simply carries no summary.
type Extractor struct {
	llm    llm.Client
	logger zerolog.Logger
}

func NewExtractor(client llm.Client, logger zerolog.Logger) *Extractor {
	return &Extractor{llm: client, logger: logger}
}

// Page reads the currently loaded page into a Report. Field-level extraction
// failures degrade to empty values; only a page-level failure is an error.
func (x *Extractor) Page(ctx context.Context, p browser.Page) (Report, error) {
	title, err := p.Title()
	if err != nil {
		return Report{}, fmt.Errorf("read title: %w", err)
	}
	report := Report{
		Title:     title,
		URL:       p.URL(),
		Issues:    []string{},
		KeyPoints: []string{},
	}

	body := evalString(p, `() => {
		const main = document.querySelector('main, article, .content, .post, .article, [role="main"]');
		return main ? main.innerText : (document.body ? document.body.innerText : "");
	}`)
	report.ContentLength = len(body)
	report.ContentPreview = clip(body, previewLength)

	report.MetaDescription = evalString(p, `() => {
		const meta = document.querySelector('meta[name="description"], meta[property="og:description"]');
		return meta ? meta.content : "";
	}`)

	report.Headings = x.headings(p)
	report.ArticleContent = clip(x.articleContent(p), articleMaxLength)

	report.PublicationDate = evalString(p, `() => {
		const time = document.querySelector('time[datetime], [class*="date"], [class*="published"]');
		if (time) {
			return time.getAttribute('datetime') || time.innerText || "";
		}
		const meta = document.querySelector('meta[property="article:published_time"], meta[name="pubdate"]');
		return meta ? meta.content : "";
	}`)

	report.Author = evalString(p, `() => {
		const author = document.querySelector('[rel="author"], .author, [class*="author"], [itemprop="author"]');
		if (author) {
			return author.innerText || author.getAttribute('content') || "";
		}
		const meta = document.querySelector('meta[name="author"], meta[property="article:author"]');
		return meta ? meta.content : "";
	}`)

	report.KeyPoints = evalStrings(p, `() => {
		const article = document.querySelector('article, .article-body, .post-content, .entry-content');
		if (!article) return [];
		return Array.from(article.querySelectorAll('p, li'))
			.map(el => el.innerText)
			.filter(t => t.trim() && t.length > 20 && t.length < 500)
			.slice(0, 5);
	}`)

	lower := strings.ToLower(body)
	for _, indicator := range errorIndicators {
		if strings.Contains(lower, indicator) {
			report.Issues = append(report.Issues, "Possible error detected on page")
			break
		}
	}

	if isReferenceSite(report.URL) {
		x.enrichReference(p, &report)
	}

	report.Summary = x.summarize(ctx, report.Title, body)
	return report, nil
}

func (x *Extractor) headings(p browser.Page) Headings {
	val, err := p.Eval(`() => {
		const grab = (tag, n) => Array.from(document.querySelectorAll(tag))
			.map(h => h.innerText).filter(t => t.trim()).slice(0, n);
		return {h1: grab("h1", 5), h2: grab("h2", 10), h3: grab("h3", 10)};
	}`)
	if err != nil {
		x.logger.Debug().Err(err).Msg("extract headings")
		return Headings{H1: []string{}, H2: []string{}, H3: []string{}}
	}
	var h Headings
	if err := remarshal(val, &h); err != nil {
		return Headings{H1: []string{}, H2: []string{}, H3: []string{}}
	}
	if h.H1 == nil {
		h.H1 = []string{}
	}
	if h.H2 == nil {
		h.H2 = []string{}
	}
	if h.H3 == nil {
		h.H3 = []string{}
	}
	return h
}

func (x *Extractor) articleContent(p browser.Page) string {
	paragraphs := evalStrings(p, `() => {
		const article = document.querySelector('article, .article-body, .post-content, .entry-content, [class*="article"], [class*="content"]');
		if (!article) return [];
		return Array.from(article.querySelectorAll('p'))
			.map(el => el.innerText)
			.filter(t => t.trim() && t.length > 20 && t.length < 500)
			.slice(0, 10);
	}`)
	return strings.Join(paragraphs, "\n\n")
}

func (x *Extractor) summarize(ctx context.Context, title, body string) string {
	if x.llm == nil || strings.TrimSpace(body) == "" {
		return ""
	}
	prompt := fmt.Sprintf(`Summarize the key information from this page content in 2-3 sentences:

Title: %s
Content: %s

Provide a concise summary of the main points.`, title, clip(body, summaryInputChars))
	summary, err := x.llm.GenerateText(ctx, prompt)
	if err != nil {
		x.logger.Debug().Err(err).Msg("page summary unavailable")
		return ""
	}
	return clip(strings.TrimSpace(summary), summaryMaxLength)
}

func evalString(p browser.Page, script string) string {
	val, err := p.Eval(script)
	if err != nil {
		return ""
	}
	s, _ := val.(string)
	return strings.TrimSpace(s)
}

func evalStrings(p browser.Page, script string) []string {
	val, err := p.Eval(script)
	if err != nil {
		return []string{}
	}
	var out []string
	if err := remarshal(val, &out); err != nil || out == nil {
		return []string{}
	}
	return out
}

// remarshal converts a loosely typed eval result into a typed value via its
// JSON form.
func remarshal(in, out any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
