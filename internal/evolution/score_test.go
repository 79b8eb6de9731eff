package evolution

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execline/internal/config"
)

func TestEvaluateRuleTable(t *testing.T) {
	cases := []struct {
		name         string
		rule         config.Rule
		current      float64
		status       string
		contribution int
	}{
		{"gte passed", config.Rule{Operator: "gte", Target: 75, Weight: 22}, 80, StatusOK, 22},
		{"gte warning", config.Rule{Operator: "gte", Target: 75, Weight: 22}, 60, StatusWarning, 18},
		{"gte critical", config.Rule{Operator: "gte", Target: 75, Weight: 22}, 30, StatusCritical, 9},
		{"gte zero target", config.Rule{Operator: "gte", Target: 0, Weight: 10}, 0, StatusOK, 10},
		{"lte passed", config.Rule{Operator: "lte", Target: 12, Weight: 14}, 12, StatusOK, 14},
		{"lte warning", config.Rule{Operator: "lte", Target: 12, Weight: 14}, 15, StatusWarning, 11},
		{"lte critical", config.Rule{Operator: "lte", Target: 12, Weight: 14}, 40, StatusCritical, 4},
		{"lte zero target failing", config.Rule{Operator: "lte", Target: 0, Weight: 6}, 2, StatusCritical, 0},
		{"lte zero target passing", config.Rule{Operator: "lte", Target: 0, Weight: 6}, 0, StatusOK, 6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := EvaluateRule(tc.rule, tc.current)
			assert.Equal(t, tc.status, r.Status)
			assert.Equal(t, tc.contribution, r.Contribution)
			assert.Equal(t, r.Weight, r.Contribution+r.Impact)
		})
	}
}

func TestEvaluateRulesInvariants(t *testing.T) {
	cfg := config.Default()
	samples := []WindowMetrics{
		{},
		{ACompletionRate: 100, DeepWorkHoursPerWeek: 20, ProjectConnectionRate: 100, ConstructionPercent: 100, ConsistencyPercent: 100},
		{ACompletionRate: 40, DeepWorkHoursPerWeek: 3, RescheduleRate: 60, ProjectConnectionRate: 20, DisconnectedPercent: 90, GhostProjects: 4, ConsistencyPercent: 10},
	}
	for _, m := range samples {
		ev := EvaluateRules(cfg.Rules, m)
		sum := 0
		for _, r := range ev.Rules {
			assert.Equal(t, r.Weight, r.Contribution+r.Impact, r.ID)
			assert.GreaterOrEqual(t, r.Contribution, 0)
			assert.LessOrEqual(t, r.Contribution, r.Weight)
			sum += r.Contribution
		}
		assert.GreaterOrEqual(t, ev.Index, 0)
		assert.LessOrEqual(t, ev.Index, 100)
		assert.Equal(t, sum, ev.Index)
	}
}

func TestEvaluateRulesEmptyWindow(t *testing.T) {
	ev := EvaluateRules(config.Default().Rules, WindowMetrics{})
	// only the lte rules pass on an empty window
	assert.Equal(t, 14+8+6, ev.Index)
	assert.Equal(t, 5, ev.CriticalCount)
}

func TestTopLeaks(t *testing.T) {
	ev := EvaluateRules(config.Default().Rules, WindowMetrics{})
	leaks := ev.TopLeaks(2)
	require.Len(t, leaks, 2)
	assert.Equal(t, "a_completion", leaks[0].ID)
	assert.Equal(t, "deep_work", leaks[1].ID)
}

func strategistMetrics() WindowMetrics {
	return WindowMetrics{
		ACompletionRate:       80,
		DeepWorkHoursPerWeek:  8,
		RescheduleRate:        5,
		ProjectConnectionRate: 80,
		ConstructionPercent:   55,
		DisconnectedPercent:   10,
		GhostProjects:         0,
		ConsistencyPercent:    75,
	}
}

func TestClassifyStageStrategist(t *testing.T) {
	cfg := config.Default()
	m := strategistMetrics()
	ev := EvaluateRules(cfg.Rules, m)
	require.GreaterOrEqual(t, ev.Index, 84)
	assert.Equal(t, "estrategista", ClassifyStage(cfg.Stages, m, float64(ev.Index)).ID)
	assert.Equal(t, "estrategista", ClassifyStage(cfg.Stages, m, 84).ID)
}

func TestClassifyStageMonotonicInIndex(t *testing.T) {
	cfg := config.Default()
	m := strategistMetrics()
	rank := map[string]int{}
	for i, s := range cfg.Stages {
		rank[s.ID] = i
	}
	prev := -1
	for idx := 50; idx <= 90; idx++ {
		got := rank[ClassifyStage(cfg.Stages, m, float64(idx)).ID]
		assert.GreaterOrEqual(t, got, prev, "index %d", idx)
		prev = got
	}
	assert.Equal(t, "reativo", ClassifyStage(cfg.Stages, m, 50).ID)
	assert.Equal(t, "executor", ClassifyStage(cfg.Stages, m, 60).ID)
	assert.Equal(t, "construtor", ClassifyStage(cfg.Stages, m, 75).ID)
}

func TestClassifyStageFailsThresholds(t *testing.T) {
	cfg := config.Default()
	m := strategistMetrics()
	m.GhostProjects = 1
	assert.Equal(t, "construtor", ClassifyStage(cfg.Stages, m, 90).ID)
	assert.Equal(t, "reativo", ClassifyStage(cfg.Stages, WindowMetrics{}, 100).ID)
}

func TestNextStage(t *testing.T) {
	cfg := config.Default()
	next := NextStage(cfg.Stages, "executor")
	require.NotNil(t, next)
	assert.Equal(t, "construtor", next.ID)
	assert.Nil(t, NextStage(cfg.Stages, "estrategista"))
}
