package engine

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"execline/internal/domain"
	"execline/internal/evolution"
	"execline/internal/focus"
	"execline/internal/journal"
	"execline/internal/repo"
)

// ExecutionScore is the rule table of the short scoring window.
type ExecutionScore struct {
	Date          string                  `json:"date"`
	WorkspaceID   string                  `json:"workspaceId,omitempty"`
	WindowStart   time.Time               `json:"windowStart"`
	WindowEnd     time.Time               `json:"windowEnd"`
	WindowDays    int                     `json:"windowDays"`
	Index         int                     `json:"index"`
	Stage         evolution.Stage         `json:"stage"`
	NextStage     *evolution.Stage        `json:"nextStage,omitempty"`
	CriticalCount int                     `json:"criticalCount"`
	WarningCount  int                     `json:"warningCount"`
	Metrics       evolution.WindowMetrics `json:"metrics"`
	Rules         []evolution.Rule        `json:"rules"`
	TopLeaks      []evolution.Rule        `json:"topLeaks"`
}

func (e Engine) GetExecutionScore(ctx context.Context, date, workspaceID string) (res ExecutionScore, err error) {
	defer e.observe("execution_score", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	days := e.Config.Windows.ScoreDays
	start, end := window(day, days)
	f, err := e.loadFacts(ctx, start, end, workspaceID)
	if err != nil {
		return res, err
	}
	s := e.score(f, start, end, days)
	return e.executionScore(day, workspaceID, s), nil
}

func (e Engine) executionScore(day time.Time, workspaceID string, s scored) ExecutionScore {
	stage := evolution.ClassifyStage(e.Config.Stages, s.Metrics, float64(s.Eval.Index))
	return ExecutionScore{
		Date:          day.Format(DateLayout),
		WorkspaceID:   workspaceID,
		WindowStart:   s.Start,
		WindowEnd:     s.End,
		WindowDays:    s.Days,
		Index:         s.Eval.Index,
		Stage:         stage,
		NextStage:     evolution.NextStage(e.Config.Stages, stage.ID),
		CriticalCount: s.Eval.CriticalCount,
		WarningCount:  s.Eval.WarningCount,
		Metrics:       s.Metrics,
		Rules:         s.Eval.Rules,
		TopLeaks:      s.Eval.TopLeaks(3),
	}
}

// EvolutionReport compares the evolution window with the one before it.
type EvolutionReport struct {
	Date          string                  `json:"date"`
	WorkspaceID   string                  `json:"workspaceId,omitempty"`
	WindowDays    int                     `json:"windowDays"`
	WindowStart   time.Time               `json:"windowStart"`
	WindowEnd     time.Time               `json:"windowEnd"`
	PreviousStart time.Time               `json:"previousStart"`
	Current       evolution.WindowMetrics `json:"current"`
	Previous      evolution.WindowMetrics `json:"previous"`
	Rules         []evolution.Rule        `json:"rules"`
	Analysis      evolution.Analysis      `json:"analysis"`
	ReviewPeriod  string                  `json:"reviewPeriod,omitempty"`
	Journal       journal.Journal         `json:"journal"`
}

func (e Engine) GetEvolutionEngine(ctx context.Context, date, workspaceID string) (res EvolutionReport, err error) {
	defer e.observe("evolution", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	days := e.Config.Windows.EvolutionDays
	cur, prev, err := e.scorePair(ctx, day, days, workspaceID)
	if err != nil {
		return res, err
	}
	scope := focus.Scope(workspaceID)
	review, err := e.Repo.LatestReview(ctx, domain.PeriodMonthly, scope, cur.End)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return res, err
	}
	j, err := e.journal(ctx, cur.Start, cur.End, workspaceID)
	if err != nil {
		return res, err
	}

	a := evolution.Analyze(e.Config, evolution.AnalysisInput{
		WindowDays:   days,
		Current:      cur.Metrics,
		Previous:     prev.Metrics,
		CurrentEval:  cur.Eval,
		PreviousEval: prev.Eval,
		ReviewText:   reviewText(review),
	})
	e.Metrics.SetEvolutionIndex(scope, a.Index)
	e.Logger.Debug().
		Str("scope", scope).
		Int("index", a.Index).
		Str("stage", a.Stage.ID).
		Str("trend", a.Trend).
		Msg("evolution analyzed")

	return EvolutionReport{
		Date:          day.Format(DateLayout),
		WorkspaceID:   workspaceID,
		WindowDays:    days,
		WindowStart:   cur.Start,
		WindowEnd:     cur.End,
		PreviousStart: prev.Start,
		Current:       cur.Metrics,
		Previous:      prev.Metrics,
		Rules:         cur.Eval.Rules,
		Analysis:      a,
		ReviewPeriod:  review.PeriodStart,
		Journal:       j,
	}, nil
}

// reviewText is the free text a review contributes to the self-assessment.
func reviewText(r domain.Review) string {
	parts := make([]string, 0, 3)
	for _, s := range []string{r.Reflection, r.StrategicDecision, r.NextPriority} {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, " ")
}

// WeeklyPulse is the short window against the previous one of equal length.
type WeeklyPulse struct {
	Date                string           `json:"date"`
	WorkspaceID         string           `json:"workspaceId,omitempty"`
	WindowStart         time.Time        `json:"windowStart"`
	WindowEnd           time.Time        `json:"windowEnd"`
	Index               int              `json:"index"`
	PreviousIndex       int              `json:"previousIndex"`
	DeltaIndex          int              `json:"deltaIndex"`
	Trend               string           `json:"trend" enum:"subindo,caindo,estavel"`
	Stage               evolution.Stage  `json:"stage"`
	ConsistencyPercent  float64          `json:"consistencyPercent"`
	DailyScores         []int            `json:"dailyScores"`
	PreviousDailyScores []int            `json:"previousDailyScores"`
	TopLeaks            []evolution.Rule `json:"topLeaks"`
	Completed           int              `json:"completed"`
	Delayed             int              `json:"delayed"`
	DeepWorkHours       float64          `json:"deepWorkHours"`
}

func (e Engine) GetWeeklyPulse(ctx context.Context, date, workspaceID string) (res WeeklyPulse, err error) {
	defer e.observe("weekly_pulse", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	cur, prev, err := e.scorePair(ctx, day, e.Config.Windows.PulseDays, workspaceID)
	if err != nil {
		return res, err
	}
	delta := cur.Eval.Index - prev.Eval.Index
	return WeeklyPulse{
		Date:                day.Format(DateLayout),
		WorkspaceID:         workspaceID,
		WindowStart:         cur.Start,
		WindowEnd:           cur.End,
		Index:               cur.Eval.Index,
		PreviousIndex:       prev.Eval.Index,
		DeltaIndex:          delta,
		Trend:               evolution.TrendOf(delta, e.Config.Trend.Delta),
		Stage:               evolution.ClassifyStage(e.Config.Stages, cur.Metrics, float64(cur.Eval.Index)),
		ConsistencyPercent:  cur.Metrics.ConsistencyPercent,
		DailyScores:         cur.Metrics.DailyScores,
		PreviousDailyScores: prev.Metrics.DailyScores,
		TopLeaks:            cur.Eval.TopLeaks(3),
		Completed:           cur.Metrics.Counts.Completed,
		Delayed:             cur.Metrics.Counts.Delayed,
		DeepWorkHours:       math.Round(cur.Metrics.Counts.DeepMinutes/6) / 10,
	}, nil
}

// DecisionJournal is the journal of the evolution window on its own.
type DecisionJournal struct {
	Date        string    `json:"date"`
	WorkspaceID string    `json:"workspaceId,omitempty"`
	WindowStart time.Time `json:"windowStart"`
	WindowEnd   time.Time `json:"windowEnd"`
	journal.Journal
}

func (e Engine) GetDecisionJournal(ctx context.Context, date, workspaceID string) (res DecisionJournal, err error) {
	defer e.observe("decision_journal", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	start, end := window(day, e.Config.Windows.EvolutionDays)
	j, err := e.journal(ctx, start, end, workspaceID)
	if err != nil {
		return res, err
	}
	return DecisionJournal{
		Date:        day.Format(DateLayout),
		WorkspaceID: workspaceID,
		WindowStart: start,
		WindowEnd:   end,
		Journal:     j,
	}, nil
}

func (e Engine) journal(ctx context.Context, start, end time.Time, workspaceID string) (journal.Journal, error) {
	evts, err := e.Repo.ListDecisionEvents(ctx, repo.Range{Start: start, End: end, WorkspaceID: workspaceID})
	if err != nil {
		return journal.Journal{}, wrap("list decision events", err)
	}
	reviews, err := e.Repo.ListReviews(ctx, focus.Scope(workspaceID), start, end)
	if err != nil {
		return journal.Journal{}, wrap("list reviews", err)
	}
	return journal.Build(journal.Input{
		Events:      evts,
		Reviews:     reviews,
		FocusTokens: e.Config.Journal.FocusTokens,
		RiskTokens:  e.Config.Journal.RiskTokens,
		Limit:       e.Config.Journal.Limit,
	}), nil
}
