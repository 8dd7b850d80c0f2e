// Package usecase wires a request to one agent session: it runs the
// orchestrator, shapes the externally observable task outcome, applies the
// cleanup policy, and persists workstream records best-effort.
package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/polzovatel/web-research-agent/internal/agent"
	"github.com/polzovatel/web-research-agent/internal/browser"
	"github.com/polzovatel/web-research-agent/internal/extract"
	"github.com/polzovatel/web-research-agent/internal/llm"
	"github.com/polzovatel/web-research-agent/internal/metrics"
	"github.com/polzovatel/web-research-agent/internal/store"
)

const defaultUserID = "default_user"

// Outcome is the full externally observable response object. Every step's
// result.data carries at least title and url as strings, and error is
// always present (possibly null).
type Outcome struct {
	AgentID        string             `json:"agent_id"`
	OverallSuccess bool               `json:"overall_success"`
	Query          string             `json:"query"`
	Steps          []agent.StepRecord `json:"steps"`
}

// SurfaceFactory builds the browser surface for one session. Each request
// gets its own browser instance.
type SurfaceFactory func() browser.Surface

// Browser executes browser research tasks.
type Browser struct {
	llm         llm.Client         // nil when no reasoning key is configured
	workstreams *store.Workstreams // nil when persistence is not configured
	newSurface  SurfaceFactory
	cfg         agent.Config
	planner     *agent.Planner
	chooser     *agent.Chooser
	extractor   *extract.Extractor
	logger      zerolog.Logger
}

func NewBrowser(client llm.Client, workstreams *store.Workstreams, newSurface SurfaceFactory, cfg agent.Config, logger zerolog.Logger) *Browser {
	return &Browser{
		llm:         client,
		workstreams: workstreams,
		newSurface:  newSurface,
		cfg:         cfg,
		planner:     agent.NewPlanner(client, logger.With().Str("comp", "planner").Logger()),
		chooser:     agent.NewChooser(client, logger.With().Str("comp", "fallback").Logger()),
		extractor:   extract.NewExtractor(client, logger.With().Str("comp", "extract").Logger()),
		logger:      logger,
	}
}

// Execute runs one task end to end and returns the shaped outcome.
func (b *Browser) Execute(ctx context.Context, query, agentID, userID string) Outcome {
	if strings.TrimSpace(agentID) == "" {
		agentID = "agent_" + uuid.NewString()[:8]
	}
	if strings.TrimSpace(userID) == "" {
		userID = defaultUserID
	}
	metrics.TasksStarted.Inc()
	b.logger.Info().Str("query", query).Str("agent_id", agentID).Msg("executing browser task")

	sess := agent.NewSession(query, agentID, userID, b.newSurface(), b.logger.With().Str("comp", "session").Logger())
	orch := agent.NewOrchestrator(sess, b.planner, b.chooser, b.extractor, b.llm, b.cfg, b.logger.With().Str("comp", "orch").Logger())

	final := b.safeRun(ctx, orch, query)

	// The last step must always reflect the final result; a run that died
	// before recording one gets a synthetic closing step.
	steps := sess.Steps()
	if n := len(steps); n == 0 ||
		steps[n-1].Success != final.Success ||
		steps[n-1].Result.ErrorString() != final.ErrorString() {
		steps = append(steps, agent.StepRecord{
			Step:    "Execute task: " + query,
			Success: final.Success,
			Result:  final,
		})
	}
	steps = shapeSteps(steps)

	overall := final.Success && !final.IsCaptcha()
	if overall {
		metrics.TasksSucceeded.Inc()
	}

	// The browser stays open only for an unresolved challenge; any
	// definitive completion closes it.
	force := final.Success || !sess.CaptchaDetected()
	sess.Cleanup(force)

	if overall {
		b.persistWorkstream(ctx, agentID, query)
	}

	return Outcome{
		AgentID:        agentID,
		OverallSuccess: overall,
		Query:          query,
		Steps:          steps,
	}
}

// safeRun converts a panicking run into a failing result so the response
// shape holds.
func (b *Browser) safeRun(ctx context.Context, orch *agent.Orchestrator, query string) (result agent.TaskResult) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().Interface("panic", r).Msg("task execution panicked")
			result = agent.InternalFailure("Failed to execute task: "+query, fmt.Sprint(r))
		}
	}()
	return orch.Run(ctx)
}

// shapeSteps enforces the outcome shape invariants on every recorded step
// and makes challenge steps identifiable by description.
func shapeSteps(steps []agent.StepRecord) []agent.StepRecord {
	shaped := make([]agent.StepRecord, 0, len(steps))
	for _, step := range steps {
		if step.Result.IsCaptcha() && !strings.Contains(strings.ToUpper(step.Step), "CAPTCHA") {
			step.Step = "Detect CAPTCHA and pause: " + step.Step
		}
		shaped = append(shaped, shapeStep(step))
	}
	return shaped
}

func shapeStep(step agent.StepRecord) agent.StepRecord {
	if step.Result.Data == nil {
		step.Result.Data = map[string]any{}
	}
	if _, ok := step.Result.Data["title"].(string); !ok {
		step.Result.Data["title"] = ""
	}
	if _, ok := step.Result.Data["url"].(string); !ok {
		step.Result.Data["url"] = ""
	}
	return step
}

// persistWorkstream records the completed task. Failures are logged and
// swallowed; persistence never affects the response.
func (b *Browser) persistWorkstream(ctx context.Context, agentID, query string) {
	if b.workstreams == nil {
		return
	}
	modules := make([]store.Module, 0, 4)
	for _, name := range b.subFunctions(ctx, query) {
		modules = append(modules, store.Module{
			Module:    name,
			KPIs:      []store.KPI{},
			Frequency: store.FrequencyNotRequired,
			APIs:      []string{},
		})
	}
	ws := store.Workstream{
		WorkStreamID: "ws_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		SubGoalID:    "sg_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		GoalID:       "g_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		AgentID:      agentID,
		Workstream:   "Execute browser task for " + query,
		Modules:      modules,
		Frequency:    store.FrequencyOnce,
		KPIs:         []store.KPI{{KPI: "Task completed", ExpectedValue: "100%"}},
	}
	if _, err := b.workstreams.Create(ctx, ws); err != nil {
		b.logger.Warn().Err(err).Msg("failed to persist workstream")
	}
}

var subFunctionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"functions": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []string{"functions"},
}

// subFunctions asks the reasoning service to break the task into named
// sub-functions; without it a single generic module is recorded.
func (b *Browser) subFunctions(ctx context.Context, query string) []string {
	if b.llm != nil {
		var raw struct {
			Functions []string `json:"functions"`
		}
		instruction := "You are an AI assistant that breaks browser tasks into short sub-function names."
		prompt := fmt.Sprintf(`Given the browser task %q, list the sub-function names needed to accomplish it (for example: open_browser, type_query, click_search). Return JSON with a "functions" array of strings.`, query)
		if err := b.llm.GenerateStructured(ctx, instruction, prompt, subFunctionSchema, &raw); err == nil && len(raw.Functions) > 0 {
			return raw.Functions
		}
	}
	return []string{"browser_task"}
}
