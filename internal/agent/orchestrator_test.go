package agent

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polzovatel/web-research-agent/internal/extract"
)

func testConfig() Config {
	return Config{
		NavigationTimeout:    time.Second,
		CaptchaMaxWait:       50 * time.Millisecond,
		CaptchaCheckInterval: 5 * time.Millisecond,
		SearchSettle:         time.Millisecond,
		DetailSettle:         time.Millisecond,
		DetailPause:          time.Millisecond,
	}
}

func newTestOrchestrator(t *testing.T, query string, surface *fakeSurface) (*Orchestrator, *Session) {
	t.Helper()
	logger := zerolog.Nop()
	sess := NewSession(query, "agent_test", "default_user", surface, logger)
	orch := NewOrchestrator(
		sess,
		NewPlanner(nil, logger),
		NewChooser(nil, logger),
		extract.NewExtractor(nil, logger),
		nil,
		testConfig(),
		logger,
	)
	return orch, sess
}

func ddgResults(n int) []map[string]any {
	results := make([]map[string]any, 0, n)
	hosts := []string{"https://example.com/a", "https://example.org/b", "https://news.example.net/c", "https://blog.example.io/d"}
	titles := []string{"First result title", "Second result title", "Third result title", "Fourth result title"}
	for i := 0; i < n && i < len(hosts); i++ {
		results = append(results, map[string]any{
			"title":   titles[i],
			"href":    hosts[i],
			"snippet": "snippet " + titles[i],
		})
	}
	return results
}

func TestOpenURLKnownSite(t *testing.T) {
	surface := &fakeSurface{page: &fakePage{title: "LinkedIn"}}
	orch, sess := newTestOrchestrator(t, "Go to LinkedIn", surface)

	result := orch.Run(context.Background())

	require.True(t, result.Success)
	assert.Contains(t, surface.page.visited, "https://www.linkedin.com")

	steps := sess.Steps()
	require.GreaterOrEqual(t, len(steps), 2)
	assert.Contains(t, steps[0].Step, "Planned action")
	assert.Contains(t, steps[1].Step, "Opened URL: https://www.linkedin.com")
	assert.False(t, sess.CaptchaDetected())
}

func TestSearchDefaultEnrichesTopResults(t *testing.T) {
	page := &fakePage{title: "DuckDuckGo", searchBox: &fakeElement{}, results: ddgResults(4)}
	surface := &fakeSurface{
		page: page,
		makeTab: func() *fakePage {
			return &fakePage{title: "Result page"}
		},
	}
	orch, sess := newTestOrchestrator(t, "latest AI news", surface)

	result := orch.Run(context.Background())

	require.True(t, result.Success)
	assert.Contains(t, page.visited, "https://www.duckduckgo.com")
	assert.Equal(t, []string{"latest AI news"}, page.searchBox.typed)
	assert.Equal(t, []string{"Enter"}, page.searchBox.keys)

	// Top three results enriched in their own tabs, all closed afterwards.
	require.Len(t, surface.tabs, 3)
	for _, tab := range surface.tabs {
		assert.True(t, tab.closed)
	}
	detailed, ok := result.Data["detailed_results"].([]any)
	require.True(t, ok)
	assert.Len(t, detailed, 3)
	// No oracle configured, so no cross-result summary.
	assert.NotContains(t, result.Data, "comprehensive_summary")

	var recorded []string
	for _, step := range sess.Steps() {
		recorded = append(recorded, step.Step)
	}
	assert.Contains(t, recorded, "Extracted detailed information from top results")
}

func TestSearchChallengeResolvedThenRetried(t *testing.T) {
	// The first challenge probe, right after navigating to the engine, fires;
	// every later probe is clear, simulating the user completing the CAPTCHA.
	page := &fakePage{
		title:            "DuckDuckGo",
		searchBox:        &fakeElement{},
		results:          ddgResults(1),
		challengedProbes: 1,
	}
	surface := &fakeSurface{page: page, makeTab: func() *fakePage { return &fakePage{} }}
	orch, sess := newTestOrchestrator(t, "latest AI news", surface)

	result := orch.Run(context.Background())

	require.True(t, result.Success)
	assert.False(t, result.IsCaptcha())
	assert.False(t, sess.CaptchaDetected(), "resolved challenge must clear the flag")

	var sawCaptchaStep, sawRetryStep bool
	for _, step := range sess.Steps() {
		if step.Result.IsCaptcha() {
			sawCaptchaStep = true
		}
		if step.Step == "Retried duckduckgo search after challenge resolution" {
			sawRetryStep = true
		}
	}
	assert.True(t, sawCaptchaStep, "the challenge must be visible in the trace")
	assert.True(t, sawRetryStep, "resolution must be followed by a recorded retry")
}

func TestAllFallbacksBlocked(t *testing.T) {
	page := &fakePage{title: "Blocked", alwaysChallenged: true, url: "https://www.duckduckgo.com"}
	surface := &fakeSurface{
		page: page,
		makeTab: func() *fakePage {
			return &fakePage{alwaysChallenged: true}
		},
	}
	orch, sess := newTestOrchestrator(t, "latest AI news", surface)

	result := orch.Run(context.Background())

	require.False(t, result.Success)
	assert.Equal(t, ErrAllFallbacksBlocked, result.ErrorString())
	urls, ok := result.Data["captcha_urls"].([]string)
	require.True(t, ok)
	assert.NotEmpty(t, urls)
	seen := map[string]bool{}
	for _, u := range urls {
		assert.False(t, seen[u], "captcha url list must be deduplicated")
		seen[u] = true
	}
	assert.True(t, sess.CaptchaDetected())

	// Fallback tabs were opened, and the original page was restored.
	require.NotEmpty(t, surface.tabs)
	for _, tab := range surface.tabs {
		assert.True(t, tab.closed)
	}
	got, err := sess.Page(context.Background())
	require.NoError(t, err)
	assert.Same(t, page, got.(*fakePage))
}

func TestStepTraceIsAppendOnly(t *testing.T) {
	surface := &fakeSurface{page: &fakePage{title: "Example"}}
	orch, sess := newTestOrchestrator(t, "open example.com", surface)

	orch.Run(context.Background())

	steps := sess.Steps()
	require.NotEmpty(t, steps)
	// A prefix read earlier must match the final trace.
	prefix := make([]StepRecord, len(steps))
	copy(prefix, steps)
	sess.Record("extra", succeeded("extra", nil))
	assert.Equal(t, prefix, sess.Steps()[:len(prefix)])
}

func TestResidualTerms(t *testing.T) {
	assert.Equal(t, "Alan Turing", residualTerms("visit wikipedia and find about Alan Turing"))
	assert.Equal(t, "Alan Turing", residualTerms(CorrectTypos("vist wikipida and find about Alan Turing")))
	assert.Equal(t, "", residualTerms("open wikipedia"))
}

func TestInSiteSearchRunsResidualTerms(t *testing.T) {
	box := &fakeElement{}
	page := &fakePage{title: "Wikipedia", searchBox: box}
	surface := &fakeSurface{page: page, makeTab: func() *fakePage { return &fakePage{} }}
	orch, sess := newTestOrchestrator(t, "vist wikipida and find about Alan Turing", surface)

	result := orch.Run(context.Background())

	require.True(t, result.Success)
	assert.Contains(t, page.visited, "https://www.wikipedia.org")
	assert.Equal(t, []string{"Alan Turing"}, box.fills)
	assert.Equal(t, []string{"Enter"}, box.keys)

	var sawInSite bool
	for _, step := range sess.Steps() {
		if step.Step == "In-site search for: Alan Turing" {
			sawInSite = true
		}
	}
	assert.True(t, sawInSite)
}

func TestFixIssueWithoutOracle(t *testing.T) {
	surface := &fakeSurface{page: &fakePage{}}
	logger := zerolog.Nop()
	sess := NewSession("fix it", "agent_test", "default_user", surface, logger)
	orch := NewOrchestrator(sess, NewPlanner(nil, logger), NewChooser(nil, logger),
		extract.NewExtractor(nil, logger), nil, testConfig(), logger)

	result := orch.runFixIssue(context.Background(), Plan{Action: ActionFixIssue, Target: "broken page"})

	require.True(t, result.Success)
	assert.Equal(t, "broken page", result.Data["issue"])
	assert.Contains(t, result.Data["solution"], "Review the issue")
}
