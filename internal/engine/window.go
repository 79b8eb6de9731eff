package engine

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"execline/internal/domain"
	"execline/internal/evolution"
	"execline/internal/repo"
)

// facts is one read of the store covering a span of time for a scope.
type facts struct {
	start, end time.Time
	workspaces []domain.Workspace
	projects   []domain.Project
	tasks      []domain.Task
	events     []domain.ExecutionFact
	sessions   []domain.FocusSession
	blocks     []domain.PlanBlockFact
}

// loadFacts fetches every independent source for [start, end) concurrently
// and joins before returning.
func (e Engine) loadFacts(ctx context.Context, start, end time.Time, workspaceID string) (facts, error) {
	f := facts{start: start, end: end}
	rg := repo.Range{Start: start, End: end, WorkspaceID: workspaceID}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		f.workspaces, err = e.Repo.ListWorkspaces(gctx, workspaceID)
		return wrap("list workspaces", err)
	})
	g.Go(func() error {
		var err error
		f.projects, err = e.Repo.ListProjects(gctx, workspaceID)
		return wrap("list projects", err)
	})
	g.Go(func() error {
		var err error
		f.tasks, err = e.Repo.ListTasks(gctx, repo.TaskFilters{WorkspaceID: workspaceID})
		return wrap("list tasks", err)
	})
	g.Go(func() error {
		var err error
		f.events, err = e.Repo.ListExecutionFacts(gctx, rg)
		return wrap("list execution events", err)
	})
	g.Go(func() error {
		var err error
		f.sessions, err = e.Repo.ListSessions(gctx, rg)
		return wrap("list focus sessions", err)
	})
	g.Go(func() error {
		var err error
		f.blocks, err = e.Repo.ListPlanBlockFacts(gctx, rg)
		return wrap("list plan blocks", err)
	})
	if err := g.Wait(); err != nil {
		return facts{}, err
	}
	return f, nil
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

// ghosts returns the ghost projects as of the end of [start, end).
func (e Engine) ghosts(f facts, start, end time.Time) []domain.Project {
	return evolution.GhostProjects(evolution.GhostInput{
		Projects:     f.projects,
		Workspaces:   f.workspaces,
		Tasks:        f.tasks,
		Events:       f.events,
		WindowStart:  start,
		WindowEnd:    end,
		TractionDays: e.Config.Windows.TractionDays,
	})
}

// collect computes the metric vector of [start, end) from already loaded
// facts. The facts may span more than the window.
func (e Engine) collect(f facts, start, end time.Time, days int) evolution.WindowMetrics {
	m := evolution.Collect(evolution.WindowInput{
		Start:             start,
		End:               end,
		Now:               e.now(),
		WindowDays:        days,
		DeepMinutesTarget: e.Config.Daily.DeepMinutesTarget,
		Events:            f.events,
		Sessions:          f.sessions,
		Blocks:            f.blocks,
		GhostProjects:     len(e.ghosts(f, start, end)),
	})
	e.Logger.Debug().
		Time("start", start).
		Time("end", end).
		Int("actionable", m.Counts.Actionable).
		Float64("consistency", m.ConsistencyPercent).
		Msg("window collected")
	return m
}

// scored is a collected window with its rule evaluation.
type scored struct {
	Start   time.Time
	End     time.Time
	Days    int
	Metrics evolution.WindowMetrics
	Eval    evolution.Evaluation
}

// scorePair loads facts once for the window ending on day and the one right
// before it, then scores both.
func (e Engine) scorePair(ctx context.Context, day time.Time, days int, workspaceID string) (cur, prev scored, err error) {
	start, end := window(day, days)
	prevStart := start.AddDate(0, 0, -days)
	f, err := e.loadFacts(ctx, prevStart, end, workspaceID)
	if err != nil {
		return cur, prev, err
	}
	cur = e.score(f, start, end, days)
	prev = e.score(f, prevStart, start, days)
	return cur, prev, nil
}

func (e Engine) score(f facts, start, end time.Time, days int) scored {
	m := e.collect(f, start, end, days)
	return scored{
		Start:   start,
		End:     end,
		Days:    days,
		Metrics: m,
		Eval:    evolution.EvaluateRules(e.Config.Rules, m),
	}
}
