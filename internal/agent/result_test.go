package agent

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/web-research-agent/internal/extract"
)

func TestDataVariantsAlwaysCarryTitleAndURL(t *testing.T) {
	maps := []map[string]any{
		NavigationData{Title: "t", URL: "u"}.Map(),
		NavigationData{}.Map(),
		SearchData{Query: "q", Engine: DefaultEngine}.Map(),
		PageData{Report: extract.Report{Title: "t", URL: "u"}}.Map(),
		PageData{}.Map(),
		FixIssueData{Issue: "i"}.Map(),
	}
	for _, m := range maps {
		_, hasTitle := m["title"].(string)
		_, hasURL := m["url"].(string)
		assert.True(t, hasTitle, "missing title in %v", m)
		assert.True(t, hasURL, "missing url in %v", m)
	}
}

func TestSearchDataMap(t *testing.T) {
	data := SearchData{
		Title:   "Results",
		URL:     "https://www.duckduckgo.com/?q=x",
		Query:   "x",
		Engine:  DefaultEngine,
		Results: []extract.Entry{{Rank: 1, Title: "a", URL: "https://a.example"}},
		DetailedResults: []DetailedResult{
			{Title: "a", URL: "https://a.example", Extracted: true},
		},
		ComprehensiveSummary: "summary",
	}.Map()

	assert.Equal(t, 1, data["results_count"])
	assert.Equal(t, "summary", data["comprehensive_summary"])
	require.Contains(t, data, "detailed_results")
}

func TestTaskResultErrorSerialisesNull(t *testing.T) {
	ok := succeeded("done", map[string]any{"title": "", "url": ""})
	raw, err := json.Marshal(ok)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error":null`)

	blocked := failed("blocked", ErrCaptchaDetected, nil)
	raw, err = json.Marshal(blocked)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"error":"CAPTCHA_DETECTED"`)
}

func TestSentinelRouting(t *testing.T) {
	assert.True(t, failed("m", ErrCaptchaDetected, nil).IsCaptcha())
	assert.False(t, failed("m", "boom", nil).IsCaptcha())
	assert.False(t, succeeded("m", nil).IsCaptcha())
	assert.Equal(t, ErrAllFallbacksBlocked, failed("m", ErrAllFallbacksBlocked, nil).ErrorString())
}

func TestInternalFailureShape(t *testing.T) {
	result := InternalFailure("broke", "panic: x")
	assert.False(t, result.Success)
	assert.Equal(t, "", result.Data["title"])
	assert.Equal(t, "", result.Data["url"])
	assert.Equal(t, "panic: x", result.ErrorString())
}
