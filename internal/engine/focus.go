package engine

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"execline/internal/briefing"
	"execline/internal/domain"
	"execline/internal/events"
	"execline/internal/focus"
	"execline/internal/repo"
)

// candidates loads every task of the scope with the context its eligibility
// depends on.
func (e Engine) candidates(ctx context.Context, workspaceID string) (focus.Pool, error) {
	var (
		workspaces []domain.Workspace
		projects   []domain.Project
		tasks      []domain.Task
		restricted map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		workspaces, err = e.Repo.ListWorkspaces(gctx, workspaceID)
		return wrap("list workspaces", err)
	})
	g.Go(func() (err error) {
		projects, err = e.Repo.ListProjects(gctx, workspaceID)
		return wrap("list projects", err)
	})
	g.Go(func() (err error) {
		tasks, err = e.Repo.ListTasks(gctx, repo.TaskFilters{WorkspaceID: workspaceID})
		return wrap("list tasks", err)
	})
	g.Go(func() (err error) {
		restricted, err = e.Repo.OpenRestrictionTaskIDs(gctx, workspaceID)
		return wrap("list restrictions", err)
	})
	if err := g.Wait(); err != nil {
		return focus.Pool{}, err
	}

	wsByID := make(map[string]domain.Workspace, len(workspaces))
	for _, w := range workspaces {
		wsByID[w.ID] = w
	}
	projByID := make(map[string]domain.Project, len(projects))
	for _, p := range projects {
		projByID[p.ID] = p
	}
	cands := make([]focus.Candidate, 0, len(tasks))
	for _, t := range tasks {
		c := focus.Candidate{Task: t, Workspace: wsByID[t.WorkspaceID], OpenRestriction: restricted[t.ID]}
		if t.ProjectID != nil {
			if p, ok := projByID[*t.ProjectID]; ok {
				c.Project = &p
			}
		}
		cands = append(cands, c)
	}
	return focus.NewPool(cands), nil
}

func (e Engine) resolveCommitment(ctx context.Context, day time.Time, workspaceID string, strict bool) (focus.Commitment, error) {
	date := day.Format(DateLayout)
	scope := focus.Scope(workspaceID)
	pool, err := e.candidates(ctx, workspaceID)
	if err != nil {
		return focus.Commitment{}, err
	}
	evts, err := e.Repo.ListCommitmentEvents(ctx, []string{focus.EventCommitted, focus.EventUnlocked}, date, scope)
	if err != nil {
		return focus.Commitment{}, wrap("list commitment events", err)
	}
	opts := focus.Options{MaxSize: e.Config.Focus.MaxSize}
	if strict {
		verbs := e.Config.Alerts.ActionVerbs
		opts.Suggest = func(t domain.Task) bool { return !briefing.IsVague(t, verbs) }
	}
	c := focus.Resolve(evts, date, scope, pool, opts)
	for _, d := range c.Dropped {
		e.Metrics.RecordDropped(d.Reason)
	}
	return c, nil
}

// GetTop3Commitment resolves the top focus of the day: the live commitment
// when one is locked, ranked suggestions otherwise.
func (e Engine) GetTop3Commitment(ctx context.Context, date, workspaceID string) (res focus.Commitment, err error) {
	defer e.observe("top3", time.Now(), &err)
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	return e.resolveCommitment(ctx, day, workspaceID, false)
}

// CommitTop3 locks up to the configured number of eligible tasks as the top
// focus of the day. Every rejection names the offending task.
func (e Engine) CommitTop3(ctx context.Context, date, workspaceID string, taskIDs []string, note, actorID string) (res focus.Commitment, err error) {
	defer e.observe("commit_top3", time.Now(), &err)
	if actorID == "" {
		return res, ValidationError{Field: "actor", Reason: "actor required"}
	}
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	pool, err := e.candidates(ctx, workspaceID)
	if err != nil {
		return res, err
	}
	ids, v := focus.ValidateCommit(taskIDs, pool, e.Config.Focus.MaxSize)
	if v != nil {
		return res, commitError(v, e.Config.Focus.MaxSize)
	}

	scope := focus.Scope(workspaceID)
	dateStr := day.Format(DateLayout)
	var evt domain.DecisionEvent
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		evt, err = e.writer().Append(ctx, tx, events.Record{
			Code:        focus.EventCommitted,
			Signal:      domain.SignalExecutiva,
			ImpactScore: 1,
			WorkspaceID: workspaceID,
			ActorID:     actorID,
			Payload: focus.Payload{
				TaskIDs:        ids,
				Note:           note,
				WorkspaceScope: scope,
				Date:           dateStr,
				RequestedSize:  len(ids),
			},
		})
		if err != nil {
			return err
		}
		for _, id := range ids {
			c, _ := pool.Lookup(id)
			if c.Project == nil {
				continue
			}
			if err := e.Repo.TouchProjectTx(ctx, tx, c.Project.ID, evt.CreatedAt); err != nil {
				return fmt.Errorf("touch project %s: %w", c.Project.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	e.Metrics.RecordCommitment("commit")
	e.Logger.Info().
		Str("event_id", evt.ID).
		Str("date", dateStr).
		Str("scope", scope).
		Strs("task_ids", ids).
		Str("actor", actorID).
		Msg("top focus committed")
	return e.resolveCommitment(ctx, day, workspaceID, false)
}

func commitError(v *focus.Violation, maxSize int) ValidationError {
	err := ValidationError{Field: "taskIds", TaskID: v.TaskID, TaskTitle: v.TaskTitle}
	switch v.Reason {
	case focus.ReasonEmpty:
		err.Reason = "at least one task required"
	case focus.ReasonTooMany:
		err.Reason = fmt.Sprintf("at most %d tasks allowed", maxSize)
	case focus.ReasonNotFound:
		err.Reason = "task not found in scope"
	case focus.ReasonNotTypeA:
		err.Reason = "only type a tasks can be committed"
	case focus.ReasonWorkspaceStandby:
		err.Reason = "workspace is in standby"
	case focus.ReasonProjectInactive:
		err.Reason = "project is not active"
	case focus.ReasonOpenRestriction:
		err.Reason = "task has an open restriction"
	case focus.ReasonWaitingOnSomebody:
		err.Reason = "task is waiting on someone else"
	case focus.ReasonClosed:
		err.Reason = "task is not open"
	default:
		err.Reason = v.Reason
	}
	return err
}

// ClearTop3Commitment unlocks the day so the top focus goes back to
// suggestions.
func (e Engine) ClearTop3Commitment(ctx context.Context, date, workspaceID, actorID string) (res focus.Commitment, err error) {
	defer e.observe("clear_top3", time.Now(), &err)
	if actorID == "" {
		return res, ValidationError{Field: "actor", Reason: "actor required"}
	}
	day, err := e.day(date)
	if err != nil {
		return res, err
	}
	if err := e.checkWorkspace(ctx, workspaceID); err != nil {
		return res, err
	}
	scope := focus.Scope(workspaceID)
	dateStr := day.Format(DateLayout)
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := e.writer().Append(ctx, tx, events.Record{
			Code:        focus.EventUnlocked,
			Signal:      domain.SignalNeutra,
			WorkspaceID: workspaceID,
			ActorID:     actorID,
			Payload:     focus.Payload{WorkspaceScope: scope, Date: dateStr},
		})
		return err
	})
	if err != nil {
		return res, err
	}
	e.Metrics.RecordCommitment("unlock")
	e.Logger.Info().Str("date", dateStr).Str("scope", scope).Str("actor", actorID).Msg("top focus unlocked")
	return e.resolveCommitment(ctx, day, workspaceID, false)
}
