// Package journal merges runtime decision events and review entries into a
// single classified decision journal.
package journal

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"time"

	"execline/internal/domain"
	"execline/internal/textsignal"
)

const (
	SourceRuntime = "runtime"
	SourceReview  = "review"
)

type Entry struct {
	ID          string        `json:"id"`
	Source      string        `json:"source" enum:"runtime,review"`
	EventCode   string        `json:"eventCode,omitempty"`
	Title       string        `json:"title"`
	Text        string        `json:"text,omitempty"`
	Signal      domain.Signal `json:"signal" enum:"executiva,risco,neutra"`
	ImpactScore int           `json:"impactScore"`
	WorkspaceID *string       `json:"workspaceId,omitempty"`
	ProjectID   *string       `json:"projectId,omitempty"`
	TaskID      *string       `json:"taskId,omitempty"`
	PeriodType  string        `json:"periodType,omitempty"`
	PeriodStart string        `json:"periodStart,omitempty"`
	FocusHits   int           `json:"focusHits,omitempty"`
	RiskHits    int           `json:"riskHits,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type Journal struct {
	Entries              []Entry `json:"entries"`
	ExecutiveCount       int     `json:"executiveCount"`
	RiskCount            int     `json:"riskCount"`
	NeutralCount         int     `json:"neutralCount"`
	DecisionQualityScore int     `json:"decisionQualityScore"`
}

type Input struct {
	Events      []domain.DecisionEvent
	Reviews     []domain.Review
	FocusTokens []string
	RiskTokens  []string
	Limit       int
}

// Build merges both sources, newest first, capped at Limit entries.
func Build(in Input) Journal {
	entries := make([]Entry, 0, len(in.Events)+len(in.Reviews))
	for _, e := range in.Events {
		entries = append(entries, fromEvent(e))
	}
	for _, r := range in.Reviews {
		if strings.TrimSpace(r.StrategicDecision) == "" && strings.TrimSpace(r.NextPriority) == "" {
			continue
		}
		entries = append(entries, fromReview(r, in.FocusTokens, in.RiskTokens))
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].UpdatedAt.Equal(entries[j].UpdatedAt) {
			return entries[i].UpdatedAt.After(entries[j].UpdatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	if in.Limit > 0 && len(entries) > in.Limit {
		entries = entries[:in.Limit]
	}

	j := Journal{Entries: entries}
	for _, e := range entries {
		switch e.Signal {
		case domain.SignalExecutiva:
			j.ExecutiveCount++
		case domain.SignalRisco:
			j.RiskCount++
		default:
			j.NeutralCount++
		}
	}
	j.DecisionQualityScore = QualityScore(j.ExecutiveCount, j.RiskCount, j.NeutralCount)
	return j
}

// QualityScore rewards executive decisions and penalizes risky ones, on 0..100.
func QualityScore(executive, risk, neutral int) int {
	total := executive + risk + neutral
	weighted := 1.2*float64(executive) - 1.4*float64(risk) + 0.2*float64(neutral)
	score := 50 + 40*weighted/math.Max(1, float64(total))
	return int(math.Round(math.Min(100, math.Max(0, score))))
}

func fromEvent(e domain.DecisionEvent) Entry {
	var payload struct {
		Note string `json:"note"`
	}
	if e.Payload != "" {
		_ = json.Unmarshal([]byte(e.Payload), &payload)
	}
	return Entry{
		ID:          e.ID,
		Source:      SourceRuntime,
		EventCode:   e.EventCode,
		Title:       e.EventCode,
		Text:        payload.Note,
		Signal:      e.Signal,
		ImpactScore: e.ImpactScore,
		WorkspaceID: e.WorkspaceID,
		ProjectID:   e.ProjectID,
		TaskID:      e.TaskID,
		UpdatedAt:   e.CreatedAt,
	}
}

func fromReview(r domain.Review, focus, risk []string) Entry {
	counts := textsignal.Classify(focus, risk, r.StrategicDecision, r.Reflection)
	signal, impact := domain.SignalNeutra, 0
	switch {
	case counts.Left > counts.Right:
		signal, impact = domain.SignalExecutiva, 2
	case counts.Right > counts.Left:
		signal, impact = domain.SignalRisco, -2
	}
	title := r.StrategicDecision
	if strings.TrimSpace(title) == "" {
		title = r.NextPriority
	}
	return Entry{
		ID:          r.ID,
		Source:      SourceReview,
		Title:       title,
		Text:        strings.TrimSpace(r.StrategicDecision + " " + r.Reflection),
		Signal:      signal,
		ImpactScore: impact,
		PeriodType:  r.PeriodType,
		PeriodStart: r.PeriodStart,
		FocusHits:   counts.Left,
		RiskHits:    counts.Right,
		UpdatedAt:   r.UpdatedAt,
	}
}
