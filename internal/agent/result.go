package agent

import (
	"encoding/json"

	"github.com/polzovatel/web-research-agent/internal/extract"
)

// Reserved error sentinels. ErrCaptchaDetected is the only signal that
// routes execution into the CAPTCHA controller; ErrAllFallbacksBlocked is
// terminal after fallback exhaustion.
const (
	ErrCaptchaDetected     = "CAPTCHA_DETECTED"
	ErrAllFallbacksBlocked = "ALL_FALLBACKS_BLOCKED"
)

// TaskResult is the unit every primitive returns. Primitives never raise;
// failures are carried in Error and routed on by the orchestrator.
type TaskResult struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data"`
	Error   *string        `json:"error"`
}

func succeeded(message string, data map[string]any) TaskResult {
	if data == nil {
		data = map[string]any{}
	}
	return TaskResult{Success: true, Message: message, Data: data}
}

func failed(message, errText string, data map[string]any) TaskResult {
	if data == nil {
		data = map[string]any{}
	}
	return TaskResult{Success: false, Message: message, Data: data, Error: &errText}
}

// InternalFailure builds the failing result used when execution dies before
// producing one; its data still satisfies the outcome shape.
func InternalFailure(message, errText string) TaskResult {
	return failed(message, errText, map[string]any{"title": "", "url": ""})
}

// ErrorString returns the error text (a sentinel or any other message), or ""
// when the result carries none.
func (r TaskResult) ErrorString() string {
	if r.Error == nil {
		return ""
	}
	return *r.Error
}

// IsCaptcha reports whether the result carries the CAPTCHA sentinel.
func (r TaskResult) IsCaptcha() bool {
	return r.ErrorString() == ErrCaptchaDetected
}

// StepRecord is one append-only entry of a task's audit trace. Retries are
// recorded as new entries, never overwritten.
type StepRecord struct {
	Step    string     `json:"step"`
	Success bool       `json:"success"`
	Result  TaskResult `json:"result"`
}

// The result payloads below are the typed forms of the data each action kind
// produces. Serialising through Map keeps the externally observable shape
// ("data always carries title and url") in one place; Extras holds
// engine-specific fields without proliferating variants.

// NavigationData is the payload of a plain navigation.
type NavigationData struct {
	Title  string
	URL    string
	Extras map[string]any
}

func (d NavigationData) Map() map[string]any {
	m := map[string]any{
		"title": d.Title,
		"url":   d.URL,
	}
	mergeExtras(m, d.Extras)
	return m
}

// DetailedResult is one enriched search result: the entry plus what the
// content extractor found on the target page.
type DetailedResult struct {
	Title             string   `json:"title"`
	URL               string   `json:"url"`
	Snippet           string   `json:"snippet"`
	MetaDescription   string   `json:"meta_description,omitempty"`
	ContentPreview    string   `json:"content_preview,omitempty"`
	ArticleParagraphs []string `json:"article_paragraphs,omitempty"`
	PublicationDate   string   `json:"publication_date,omitempty"`
	Author            string   `json:"author,omitempty"`
	Summary           string   `json:"summary,omitempty"`
	Extracted         bool     `json:"extracted"`
	Error             string   `json:"error,omitempty"`
}

// SearchData is the payload of a search action.
type SearchData struct {
	Title                string
	URL                  string
	Query                string
	Engine               string
	Results              []extract.Entry
	DetailedResults      []DetailedResult
	ComprehensiveSummary string
	Extras               map[string]any
}

func (d SearchData) Map() map[string]any {
	m := map[string]any{
		"title":         d.Title,
		"url":           d.URL,
		"query":         d.Query,
		"search_engine": d.Engine,
		"results":       toJSONValue(d.Results),
		"results_count": len(d.Results),
	}
	if d.DetailedResults != nil {
		m["detailed_results"] = toJSONValue(d.DetailedResults)
	}
	if d.ComprehensiveSummary != "" {
		m["comprehensive_summary"] = d.ComprehensiveSummary
	}
	mergeExtras(m, d.Extras)
	return m
}

// PageData is the payload of a page read.
type PageData struct {
	Report extract.Report
	Extras map[string]any
}

func (d PageData) Map() map[string]any {
	m, ok := toJSONValue(d.Report).(map[string]any)
	if !ok {
		m = map[string]any{}
	}
	if _, present := m["title"]; !present {
		m["title"] = d.Report.Title
	}
	if _, present := m["url"]; !present {
		m["url"] = d.Report.URL
	}
	mergeExtras(m, d.Extras)
	return m
}

// FixIssueData is the payload of a remediation attempt.
type FixIssueData struct {
	Issue    string
	Solution string
	URL      string
}

func (d FixIssueData) Map() map[string]any {
	return map[string]any{
		"title":    "",
		"url":      d.URL,
		"issue":    d.Issue,
		"solution": d.Solution,
	}
}

func mergeExtras(m map[string]any, extras map[string]any) {
	for k, v := range extras {
		m[k] = v
	}
}

// toJSONValue converts a typed value into the generic form the wire shape
// uses, going through its JSON encoding.
func toJSONValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
