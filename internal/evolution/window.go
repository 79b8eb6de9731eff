package evolution

import (
	"math"
	"sort"
	"time"

	"execline/internal/config"
	"execline/internal/domain"
)

// WindowMetrics is the fixed metric vector of a window. Percentages are
// 0–100, clamped and rounded.
type WindowMetrics struct {
	ACompletionRate       float64      `json:"aCompletionRate"`
	DeepWorkHoursPerWeek  float64      `json:"deepWorkHoursPerWeek"`
	RescheduleRate        float64      `json:"rescheduleRate"`
	ProjectConnectionRate float64      `json:"projectConnectionRate"`
	ConstructionPercent   float64      `json:"constructionPercent"`
	DisconnectedPercent   float64      `json:"disconnectedPercent"`
	GhostProjects         int          `json:"ghostProjects"`
	ConsistencyPercent    float64      `json:"consistencyPercent"`
	DailyScores           []int        `json:"dailyScores"`
	Counts                WindowCounts `json:"counts"`
}

// WindowCounts keeps the raw numerators and denominators behind the rates.
type WindowCounts struct {
	Actionable           int     `json:"actionable"`
	Completed            int     `json:"completed"`
	Delayed              int     `json:"delayed"`
	Failed               int     `json:"failed"`
	ActionableA          int     `json:"actionableA"`
	CompletedA           int     `json:"completedA"`
	CompletedWithProject int     `json:"completedWithProject"`
	DeepMinutes          float64 `json:"deepMinutes"`
	PlannedMinutes       float64 `json:"plannedMinutes"`
	ConstructionMinutes  float64 `json:"constructionMinutes"`
	OperationMinutes     float64 `json:"operationMinutes"`
	DisconnectedMinutes  float64 `json:"disconnectedMinutes"`
}

// Value returns the metric named by one of the config.Metric* constants.
func (m WindowMetrics) Value(metric string) float64 {
	switch metric {
	case config.MetricACompletionRate:
		return m.ACompletionRate
	case config.MetricDeepWorkHoursPerWeek:
		return m.DeepWorkHoursPerWeek
	case config.MetricRescheduleRate:
		return m.RescheduleRate
	case config.MetricProjectConnectionRate:
		return m.ProjectConnectionRate
	case config.MetricConstructionPercent:
		return m.ConstructionPercent
	case config.MetricDisconnectedPercent:
		return m.DisconnectedPercent
	case config.MetricGhostProjects:
		return float64(m.GhostProjects)
	case config.MetricConsistencyPercent:
		return m.ConsistencyPercent
	}
	return 0
}

// WindowInput carries the raw facts fetched for [Start, End).
type WindowInput struct {
	Start             time.Time
	End               time.Time
	Now               time.Time
	WindowDays        int
	DeepMinutesTarget float64
	Events            []domain.ExecutionFact
	Sessions          []domain.FocusSession
	Blocks            []domain.PlanBlockFact
	GhostProjects     int
}

type dayTally struct {
	actionable, completed   int
	actionableA, completedA int
	completedWithProject    int
	deepMinutes             float64
}

// Collect aggregates raw facts into WindowMetrics. It never fails: empty
// inputs produce zero rates.
func Collect(in WindowInput) WindowMetrics {
	days := in.WindowDays
	if days <= 0 {
		days = 1
	}
	target := in.DeepMinutesTarget
	if target <= 0 {
		target = 45
	}
	bounds := make([]time.Time, days+1)
	for i := range bounds {
		bounds[i] = in.Start.AddDate(0, 0, i)
	}
	tallies := make([]dayTally, days)
	dayOf := func(ts time.Time) int {
		if ts.Before(in.Start) || !ts.Before(in.End) {
			return -1
		}
		i := sort.Search(len(bounds), func(i int) bool { return bounds[i].After(ts) }) - 1
		if i < 0 || i >= days {
			return -1
		}
		return i
	}

	var c WindowCounts
	for _, ev := range in.Events {
		d := dayOf(ev.Timestamp)
		if d < 0 {
			continue
		}
		isA := ev.TaskType == domain.TaskTypeA
		switch ev.EventType {
		case domain.EventCompleted, domain.EventDelayed, domain.EventFailed:
		default:
			continue
		}
		c.Actionable++
		tallies[d].actionable++
		if isA {
			c.ActionableA++
			tallies[d].actionableA++
		}
		switch ev.EventType {
		case domain.EventCompleted:
			c.Completed++
			tallies[d].completed++
			if isA {
				c.CompletedA++
				tallies[d].completedA++
			}
			if ev.ProjectID != nil && *ev.ProjectID != "" {
				c.CompletedWithProject++
				tallies[d].completedWithProject++
			}
		case domain.EventDelayed:
			c.Delayed++
		case domain.EventFailed:
			c.Failed++
		}
	}

	for _, s := range in.Sessions {
		d := dayOf(s.StartedAt)
		if d < 0 {
			continue
		}
		m := SessionMinutes(s, in.End, in.Now)
		c.DeepMinutes += m
		tallies[d].deepMinutes += m
	}

	for _, b := range in.Blocks {
		if dayOf(b.StartTime) < 0 || b.BlockType != domain.BlockTask {
			continue
		}
		m := b.Minutes()
		c.PlannedMinutes += m
		connected := b.TaskID != nil && b.TaskProjectID != nil && *b.TaskProjectID != ""
		switch {
		case !connected:
			c.DisconnectedMinutes += m
		case b.TaskType == domain.TaskTypeA:
			c.ConstructionMinutes += m
		default:
			c.OperationMinutes += m
		}
	}

	m := WindowMetrics{
		ACompletionRate:       percent(c.CompletedA, c.ActionableA),
		RescheduleRate:        percent(c.Delayed, c.Actionable),
		ProjectConnectionRate: percent(c.CompletedWithProject, c.Completed),
		DeepWorkHoursPerWeek:  round1(c.DeepMinutes / float64(days) * 7 / 60),
		ConstructionPercent:   clampRound(c.ConstructionMinutes / math.Max(1, c.PlannedMinutes) * 100),
		DisconnectedPercent:   clampRound(c.DisconnectedMinutes / math.Max(1, c.PlannedMinutes) * 100),
		GhostProjects:         in.GhostProjects,
		DailyScores:           make([]int, days),
		Counts:                c,
	}
	sum := 0
	for i, t := range tallies {
		m.DailyScores[i] = dailyScore(t, target)
		sum += m.DailyScores[i]
	}
	m.ConsistencyPercent = clampRound(float64(sum) / float64(days))
	return m
}

// SessionMinutes is the deep-focus time a session contributes. Active
// sessions count elapsed time up to min(end, now).
func SessionMinutes(s domain.FocusSession, end, now time.Time) float64 {
	if s.State != domain.SessionActive {
		return math.Max(0, float64(s.ActualMinutes))
	}
	upTo := end
	if now.Before(upTo) {
		upTo = now
	}
	return math.Max(0, upTo.Sub(s.StartedAt).Minutes())
}

func dailyScore(t dayTally, deepTarget float64) int {
	if t.actionable == 0 && t.deepMinutes <= 0 {
		return 0
	}
	completion := ratio(t.completed, t.actionable)
	aRate := ratio(t.completedA, t.actionableA)
	projectRate := ratio(t.completedWithProject, t.completed)
	deep := math.Min(1, t.deepMinutes/deepTarget)
	score := 100 * (0.5*completion + 0.2*aRate + 0.2*deep + 0.1*projectRate)
	return int(clampRound(score))
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

func percent(num, den int) float64 {
	return clampRound(ratio(num, den) * 100)
}

func clampRound(v float64) float64 {
	return math.Round(clamp(v, 0, 100))
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
