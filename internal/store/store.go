// Package store persists workstream records for completed tasks. Writes are
// best-effort: a store failure never affects the task response.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Frequency values a module or workstream can carry.
const (
	FrequencyDaily       = "daily"
	FrequencyWeekly      = "weekly"
	FrequencyMonthly     = "monthly"
	FrequencyNotRequired = "not_required"
	FrequencyOnce        = "once"
)

// KPI is one measurable expectation attached to a workstream.
type KPI struct {
	KPI           string `json:"kpi"`
	ExpectedValue string `json:"expected_value"`
}

// Module is one sub-function of a workstream.
type Module struct {
	Module    string   `json:"module"`
	KPIs      []KPI    `json:"kpis"`
	Frequency string   `json:"frequency"`
	APIs      []string `json:"apis"`
}

// Workstream records one completed browser task for an agent.
type Workstream struct {
	WorkStreamID string   `json:"work_stream_id"`
	SubGoalID    string   `json:"sub_goal_id"`
	GoalID       string   `json:"goal_id"`
	AgentID      string   `json:"agent_id"`
	Workstream   string   `json:"workstream"`
	Modules      []Module `json:"modules"`
	Frequency    string   `json:"frequency"`
	KPIs         []KPI    `json:"kpis"`
}

const opTimeout = 5 * time.Second

// Workstreams is a Redis-backed workstream repository.
type Workstreams struct {
	rdb    *redis.Client
	logger zerolog.Logger
}

func NewWorkstreams(addr string, logger zerolog.Logger) *Workstreams {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return &Workstreams{rdb: rdb, logger: logger}
}

func workstreamKey(id string) string { return "workstream:" + id }
func agentIndexKey(id string) string { return "agent:" + id + ":workstreams" }

// Create stores the workstream and indexes it under its agent.
func (w *Workstreams) Create(ctx context.Context, ws Workstream) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(ws)
	if err != nil {
		return "", fmt.Errorf("marshal workstream: %w", err)
	}
	if err := w.rdb.Set(ctx, workstreamKey(ws.WorkStreamID), data, 0).Err(); err != nil {
		return "", fmt.Errorf("store workstream: %w", err)
	}
	if err := w.rdb.SAdd(ctx, agentIndexKey(ws.AgentID), ws.WorkStreamID).Err(); err != nil {
		return "", fmt.Errorf("index workstream: %w", err)
	}
	w.logger.Info().Str("workstream_id", ws.WorkStreamID).Str("agent_id", ws.AgentID).Msg("created workstream")
	return ws.WorkStreamID, nil
}

// Get returns one workstream, or nil when absent.
func (w *Workstreams) Get(ctx context.Context, id string) (*Workstream, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := w.rdb.Get(ctx, workstreamKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load workstream: %w", err)
	}
	var ws Workstream
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("decode workstream: %w", err)
	}
	return &ws, nil
}

// ByAgent lists every workstream recorded for an agent.
func (w *Workstreams) ByAgent(ctx context.Context, agentID string) ([]Workstream, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	ids, err := w.rdb.SMembers(ctx, agentIndexKey(agentID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list workstreams: %w", err)
	}
	out := make([]Workstream, 0, len(ids))
	for _, id := range ids {
		ws, err := w.Get(ctx, id)
		if err != nil {
			w.logger.Warn().Err(err).Str("workstream_id", id).Msg("skipping unreadable workstream")
			continue
		}
		if ws != nil {
			out = append(out, *ws)
		}
	}
	return out, nil
}

// Ping checks connectivity.
func (w *Workstreams) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return w.rdb.Ping(ctx).Err()
}
