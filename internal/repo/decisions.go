package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"execline/internal/domain"
)

// InsertDecisionEventTx appends to the strategic event log. seq keeps the
// append order stable for events created in the same millisecond.
func (r Repo) InsertDecisionEventTx(ctx context.Context, tx *sql.Tx, e domain.DecisionEvent, actorID string) error {
	payload := e.Payload
	if payload == "" {
		payload = "{}"
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO strategic_events(id,seq,workspace_id,project_id,task_id,event_code,signal,impact_score,actor_id,payload_json,created_at)
VALUES (?,(SELECT COALESCE(MAX(seq),0)+1 FROM strategic_events),?,?,?,?,?,?,?,?,?)`,
		e.ID, nullableStringPtr(e.WorkspaceID), nullableStringPtr(e.ProjectID), nullableStringPtr(e.TaskID),
		e.EventCode, string(e.Signal), e.ImpactScore, actorID, payload, FormatTime(e.CreatedAt))
	return err
}

const decisionColumns = `id,workspace_id,project_id,task_id,event_code,signal,impact_score,payload_json,created_at`

func scanDecisionEvents(rows *sql.Rows) ([]domain.DecisionEvent, error) {
	defer rows.Close()
	var res []domain.DecisionEvent
	for rows.Next() {
		var e domain.DecisionEvent
		var ws, project, task sql.NullString
		var signal, created string
		if err := rows.Scan(&e.ID, &ws, &project, &task, &e.EventCode, &signal, &e.ImpactScore, &e.Payload, &created); err != nil {
			return nil, err
		}
		e.WorkspaceID = nullString(ws)
		e.ProjectID = nullString(project)
		e.TaskID = nullString(task)
		e.Signal = domain.Signal(signal)
		t, err := parseTime(created)
		if err != nil {
			return nil, err
		}
		e.CreatedAt = t
		res = append(res, e)
	}
	return res, rows.Err()
}

// ListDecisionEvents returns the log inside the range in append order. With a
// workspace scope, events without a workspace are left out.
func (r Repo) ListDecisionEvents(ctx context.Context, rg Range) ([]domain.DecisionEvent, error) {
	query := `SELECT ` + decisionColumns + ` FROM strategic_events WHERE created_at >= ? AND created_at < ?`
	args := []any{FormatTime(rg.Start), FormatTime(rg.End)}
	if rg.WorkspaceID != "" {
		query += ` AND workspace_id=?`
		args = append(args, rg.WorkspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	return scanDecisionEvents(rows)
}

// ListCommitmentEvents returns the commit and unlock events whose payload
// targets date and scope, in append order.
func (r Repo) ListCommitmentEvents(ctx context.Context, codes []string, date, scope string) ([]domain.DecisionEvent, error) {
	args := make([]any, 0, len(codes)+2)
	for _, c := range codes {
		args = append(args, c)
	}
	args = append(args, date, scope)
	rows, err := r.DB.QueryContext(ctx, `SELECT `+decisionColumns+` FROM strategic_events
WHERE event_code IN (`+placeholders(len(codes))+`)
AND json_extract(payload_json,'$.date')=? AND json_extract(payload_json,'$.workspaceScope')=?
ORDER BY seq`, args...)
	if err != nil {
		return nil, err
	}
	return scanDecisionEvents(rows)
}

// UpsertReview writes the review keyed by (period type, period start, scope).
// The stored id and created_at survive later upserts.
func (r Repo) UpsertReview(ctx context.Context, rv domain.Review) (domain.Review, error) {
	items := rv.ActionItems
	if items == nil {
		items = []string{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return rv, err
	}
	_, err = r.DB.ExecContext(ctx, `INSERT INTO strategic_reviews(id,period_type,period_start,scope,next_priority,strategic_decision,commitment_level,reflection,action_items_json,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT(period_type,period_start,scope) DO UPDATE SET
  next_priority=excluded.next_priority,
  strategic_decision=excluded.strategic_decision,
  commitment_level=excluded.commitment_level,
  reflection=excluded.reflection,
  action_items_json=excluded.action_items_json,
  updated_at=excluded.updated_at`,
		rv.ID, rv.PeriodType, rv.PeriodStart, rv.Scope, rv.NextPriority, rv.StrategicDecision, rv.CommitmentLevel,
		rv.Reflection, string(data), FormatTime(rv.CreatedAt), FormatTime(rv.UpdatedAt))
	if err != nil {
		return rv, err
	}
	return r.GetReview(ctx, rv.PeriodType, rv.PeriodStart, rv.Scope)
}

const reviewColumns = `id,period_type,period_start,scope,next_priority,strategic_decision,commitment_level,reflection,action_items_json,created_at,updated_at`

func scanReview(scan func(...any) error) (domain.Review, error) {
	var rv domain.Review
	var items, created, updated string
	if err := scan(&rv.ID, &rv.PeriodType, &rv.PeriodStart, &rv.Scope, &rv.NextPriority, &rv.StrategicDecision,
		&rv.CommitmentLevel, &rv.Reflection, &items, &created, &updated); err != nil {
		return rv, err
	}
	if err := json.Unmarshal([]byte(items), &rv.ActionItems); err != nil {
		return rv, err
	}
	var err error
	if rv.CreatedAt, err = parseTime(created); err != nil {
		return rv, err
	}
	rv.UpdatedAt, err = parseTime(updated)
	return rv, err
}

func (r Repo) GetReview(ctx context.Context, periodType, periodStart, scope string) (domain.Review, error) {
	rv, err := scanReview(r.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM strategic_reviews WHERE period_type=? AND period_start=? AND scope=?`,
		periodType, periodStart, scope).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return rv, ErrNotFound
	}
	return rv, err
}

// ListReviews returns reviews of the scope updated inside the range, newest
// first.
func (r Repo) ListReviews(ctx context.Context, scope string, start, end time.Time) ([]domain.Review, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+reviewColumns+` FROM strategic_reviews
WHERE scope=? AND updated_at >= ? AND updated_at < ? ORDER BY updated_at DESC, id`, scope, FormatTime(start), FormatTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, rv)
	}
	return res, rows.Err()
}

// LatestReview returns the most recent review of a period type for the scope
// whose period started before end.
func (r Repo) LatestReview(ctx context.Context, periodType, scope string, end time.Time) (domain.Review, error) {
	rv, err := scanReview(r.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM strategic_reviews
WHERE period_type=? AND scope=? AND period_start < ? ORDER BY period_start DESC, updated_at DESC LIMIT 1`,
		periodType, scope, end.Format("2006-01-02")).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return rv, ErrNotFound
	}
	return rv, err
}
