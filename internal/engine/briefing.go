package engine

import (
	"context"
	"time"

	"execline/internal/briefing"
	"execline/internal/domain"
	"execline/internal/evolution"
	"execline/internal/focus"
)

// CompactScore is the short-window index shown on the briefing.
type CompactScore struct {
	WindowDays int             `json:"windowDays"`
	Index      int             `json:"index"`
	Stage      evolution.Stage `json:"stage"`
}

// Briefing is the daily execution view.
type Briefing struct {
	Date        string            `json:"date"`
	WorkspaceID string            `json:"workspaceId,omitempty"`
	StrictMode  bool              `json:"strictMode"`
	GeneratedAt time.Time         `json:"generatedAt"`
	OpenTasks   int               `json:"openTasks"`
	Capacity    briefing.Capacity `json:"capacity"`
	Top3        focus.Commitment  `json:"top3"`
	Score       CompactScore      `json:"score"`
	Alerts      []briefing.Alert  `json:"alerts"`
	Lists       briefing.Lists    `json:"lists"`
}

// GetBriefing assembles the daily view. It refreshes the stored ghost flags
// of the scope as a side effect.
func (e Engine) GetBriefing(ctx context.Context, date, workspaceID string, strict bool) (res Briefing, err error) {
	defer e.observe("briefing", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	w := e.Config.Windows
	span := max(w.AlertDays, w.TractionDays, w.ScoreDays)
	spanStart, end := window(day, span)
	f, err := e.loadFacts(ctx, spanStart, end, workspaceID)
	if err != nil {
		return res, err
	}
	if err := e.refreshGhosts(ctx, &f, workspaceID, day); err != nil {
		return res, err
	}
	delays, err := e.Repo.DelayCounts(ctx, workspaceID)
	if err != nil {
		return res, wrap("count delays", err)
	}
	top3, err := e.resolveCommitment(ctx, day, workspaceID, strict)
	if err != nil {
		return res, err
	}

	alertStart, _ := window(day, w.AlertDays)
	loc := e.Config.Location()
	alerts, lists := briefing.Assemble(e.Config, briefing.Input{
		Today:      day,
		Now:        e.now(),
		Location:   loc,
		Workspaces: f.workspaces,
		Projects:   f.projects,
		Tasks:      f.tasks,
		Events:     eventsSince(f.events, alertStart),
		Sessions:   sessionsSince(f.sessions, alertStart),
		Delays:     delays,
	})

	scoreStart, _ := window(day, w.ScoreDays)
	s := e.score(f, scoreStart, end, w.ScoreDays)
	open := 0
	for _, t := range f.tasks {
		if t.IsOpen() {
			open++
		}
	}
	active := 0
	for _, a := range alerts {
		if a.Active {
			active++
		}
	}
	e.Logger.Debug().
		Str("date", day.Format(DateLayout)).
		Str("workspace", workspaceID).
		Int("active_alerts", active).
		Bool("locked", top3.Locked).
		Msg("briefing assembled")

	return Briefing{
		Date:        day.Format(DateLayout),
		WorkspaceID: workspaceID,
		StrictMode:  strict,
		GeneratedAt: e.now().UTC(),
		OpenTasks:   open,
		Capacity:    briefing.DayCapacity(e.Config.Capacity.BaseDayMinutes, blocksOn(f.blocks, day, end)),
		Top3:        top3,
		Score: CompactScore{
			WindowDays: w.ScoreDays,
			Index:      s.Eval.Index,
			Stage:      evolution.ClassifyStage(e.Config.Stages, s.Metrics, float64(s.Eval.Index)),
		},
		Alerts: alerts,
		Lists:  lists,
	}, nil
}

// refreshGhosts recomputes ghost projects as of the end of day, persists the
// flags and mirrors them on the loaded projects.
func (e Engine) refreshGhosts(ctx context.Context, f *facts, workspaceID string, day time.Time) error {
	start, end := window(day, e.Config.Windows.TractionDays)
	ghosts := e.ghosts(*f, start, end)
	ids := make([]string, 0, len(ghosts))
	set := make(map[string]bool, len(ghosts))
	for _, p := range ghosts {
		ids = append(ids, p.ID)
		set[p.ID] = true
	}
	if err := e.Repo.SetGhostFlags(ctx, workspaceID, ids); err != nil {
		return wrap("set ghost flags", err)
	}
	for i := range f.projects {
		f.projects[i].IsGhost = set[f.projects[i].ID]
	}
	return nil
}

func eventsSince(evts []domain.ExecutionFact, start time.Time) []domain.ExecutionFact {
	out := make([]domain.ExecutionFact, 0, len(evts))
	for _, ev := range evts {
		if !ev.Timestamp.Before(start) {
			out = append(out, ev)
		}
	}
	return out
}

func sessionsSince(sessions []domain.FocusSession, start time.Time) []domain.FocusSession {
	out := make([]domain.FocusSession, 0, len(sessions))
	for _, s := range sessions {
		if !s.StartedAt.Before(start) {
			out = append(out, s)
		}
	}
	return out
}

func blocksOn(blocks []domain.PlanBlockFact, start, end time.Time) []domain.PlanBlockFact {
	out := make([]domain.PlanBlockFact, 0, len(blocks))
	for _, b := range blocks {
		if !b.StartTime.Before(start) && b.StartTime.Before(end) {
			out = append(out, b)
		}
	}
	return out
}
