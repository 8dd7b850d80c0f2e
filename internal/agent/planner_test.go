package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectTypos(t *testing.T) {
	assert.Equal(t, "visit wikipedia and find about Alan Turing",
		CorrectTypos("vist wikipida and find about Alan Turing"))
	assert.Equal(t, "open linkedin", CorrectTypos("open linkdin"))
	// Unaffected tokens keep their casing.
	assert.Equal(t, "Go To linkedin Now", CorrectTypos("Go To Linkdin Now"))
	assert.Equal(t, "no typos here", CorrectTypos("no typos here"))
}

func TestDeterministicPlanKnownSite(t *testing.T) {
	planner := NewPlanner(nil, zerolog.Nop())

	plan := planner.Plan(context.Background(), "Go to LinkedIn")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://www.linkedin.com", plan.Target)

	// Navigation keyword adjacency.
	plan = planner.Plan(context.Background(), "please visit wikipedia today")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://www.wikipedia.org", plan.Target)

	// Standalone site token with a TLD suffix.
	plan = planner.Plan(context.Background(), "github.com issues")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://www.github.com", plan.Target)
}

func TestDeterministicPlanURL(t *testing.T) {
	planner := NewPlanner(nil, zerolog.Nop())

	plan := planner.Plan(context.Background(), "check https://golang.org/doc please")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://golang.org/doc", plan.Target)

	plan = planner.Plan(context.Background(), "open example.com")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://example.com", plan.Target)
}

func TestDeterministicPlanDefaultsToSearch(t *testing.T) {
	planner := NewPlanner(nil, zerolog.Nop())

	plan := planner.Plan(context.Background(), "latest AI news")
	assert.Equal(t, ActionSearchDefault, plan.Action)
	assert.Equal(t, "latest AI news", plan.Target)
	assert.NotEmpty(t, plan.Reason)
	assert.NotEmpty(t, plan.ExpectedOutcome)
}

func TestOracleActionCoercion(t *testing.T) {
	oracle := &stubLLM{structured: func(_, _ string, out any) error {
		return json.Unmarshal([]byte(`{"action":"SEARCH_GOOGLE","target":"","reason":"","expected_outcome":""}`), out)
	}}
	planner := NewPlanner(oracle, zerolog.Nop())

	plan := planner.Plan(context.Background(), "anything at all")
	// A disallowed engine is coerced onto the default search, and the empty
	// target falls back to the query.
	assert.Equal(t, ActionSearchDefault, plan.Action)
	assert.Equal(t, "anything at all", plan.Target)
}

func TestOracleOpenURLGetsScheme(t *testing.T) {
	oracle := &stubLLM{structured: func(_, _ string, out any) error {
		return json.Unmarshal([]byte(`{"action":"OpenUrl","target":"wikipedia.org","reason":"r","expected_outcome":"e"}`), out)
	}}
	planner := NewPlanner(oracle, zerolog.Nop())

	plan := planner.Plan(context.Background(), "wikipedia please")
	require.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://wikipedia.org", plan.Target)
}

func TestOracleFailureFallsBackToDeterministic(t *testing.T) {
	oracle := &stubLLM{structured: func(_, _ string, _ any) error {
		return errors.New("service unavailable")
	}}
	planner := NewPlanner(oracle, zerolog.Nop())

	plan := planner.Plan(context.Background(), "Go to LinkedIn")
	assert.Equal(t, ActionOpenURL, plan.Action)
	assert.Equal(t, "https://www.linkedin.com", plan.Target)
}

func TestMentionsSite(t *testing.T) {
	site, ok := MentionsSite("vist wikipida and find about Alan Turing")
	require.True(t, ok)
	assert.Equal(t, "wikipedia", site)

	_, ok = MentionsSite("latest AI news")
	assert.False(t, ok)
}

func TestHasSearchIntent(t *testing.T) {
	assert.True(t, HasSearchIntent("find about Alan Turing"))
	assert.True(t, HasSearchIntent("look for recipes"))
	assert.False(t, HasSearchIntent("go to linkedin"))
}
