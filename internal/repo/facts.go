package repo

import (
	"context"
	"database/sql"
	"errors"

	"execline/internal/domain"
)

func (r Repo) InsertExecutionEventTx(ctx context.Context, tx *sql.Tx, e domain.ExecutionEvent) error {
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO execution_events(id,task_id,event_type,ts,failure_reason) VALUES (?,?,?,?,?)`,
		e.ID, e.TaskID, string(e.EventType), FormatTime(e.Timestamp), nullable(e.FailureReason))
	return err
}

// ListExecutionFacts returns execution events in the range joined with their
// task, oldest first.
func (r Repo) ListExecutionFacts(ctx context.Context, rg Range) ([]domain.ExecutionFact, error) {
	query := `SELECT e.id,e.task_id,e.event_type,e.ts,COALESCE(e.failure_reason,''),t.type,t.project_id,t.workspace_id
FROM execution_events e JOIN tasks t ON t.id=e.task_id
WHERE e.ts >= ? AND e.ts < ?`
	args := []any{FormatTime(rg.Start), FormatTime(rg.End)}
	if rg.WorkspaceID != "" {
		query += ` AND t.workspace_id=?`
		args = append(args, rg.WorkspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY e.ts, e.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ExecutionFact
	for rows.Next() {
		var f domain.ExecutionFact
		var evt, ts string
		var project sql.NullString
		if err := rows.Scan(&f.ID, &f.TaskID, &evt, &ts, &f.FailureReason, &f.TaskType, &project, &f.WorkspaceID); err != nil {
			return nil, err
		}
		f.EventType = domain.ExecutionEventType(evt)
		f.ProjectID = nullString(project)
		if f.Timestamp, err = parseTime(ts); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}

// DelayCounts counts delayed events per open task over their whole history.
func (r Repo) DelayCounts(ctx context.Context, workspaceID string) (map[string]int, error) {
	query := `SELECT e.task_id, COUNT(*) FROM execution_events e JOIN tasks t ON t.id=e.task_id
WHERE e.event_type='delayed' AND t.status='aberta'`
	var args []any
	if workspaceID != "" {
		query += ` AND t.workspace_id=?`
		args = append(args, workspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` GROUP BY e.task_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		res[id] = n
	}
	return res, rows.Err()
}

const sessionColumns = `id,task_id,workspace_id,project_id,started_at,ended_at,state,target_minutes,actual_minutes`

func (r Repo) InsertSession(ctx context.Context, s domain.FocusSession) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO focus_sessions(`+sessionColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		s.ID, s.TaskID, s.WorkspaceID, nullableStringPtr(s.ProjectID), FormatTime(s.StartedAt), nullableTimePtr(s.EndedAt),
		string(s.State), s.TargetMinutes, s.ActualMinutes)
	return err
}

func scanSession(scan func(...any) error) (domain.FocusSession, error) {
	var s domain.FocusSession
	var project, ended sql.NullString
	var started, state string
	if err := scan(&s.ID, &s.TaskID, &s.WorkspaceID, &project, &started, &ended, &state, &s.TargetMinutes, &s.ActualMinutes); err != nil {
		return s, err
	}
	s.ProjectID = nullString(project)
	s.State = domain.SessionState(state)
	var err error
	if s.EndedAt, err = parseNullTime(ended); err != nil {
		return s, err
	}
	s.StartedAt, err = parseTime(started)
	return s, err
}

func (r Repo) GetSession(ctx context.Context, id string) (domain.FocusSession, error) {
	s, err := scanSession(r.DB.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM focus_sessions WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return s, ErrNotFound
	}
	return s, err
}

// FinishSession moves an active session to a terminal state.
func (r Repo) FinishSession(ctx context.Context, s domain.FocusSession) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE focus_sessions SET state=?, ended_at=?, actual_minutes=? WHERE id=? AND state='active'`,
		string(s.State), nullableTimePtr(s.EndedAt), s.ActualMinutes, s.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSessions returns sessions that started inside the range.
func (r Repo) ListSessions(ctx context.Context, rg Range) ([]domain.FocusSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM focus_sessions WHERE started_at >= ? AND started_at < ?`
	args := []any{FormatTime(rg.Start), FormatTime(rg.End)}
	if rg.WorkspaceID != "" {
		query += ` AND workspace_id=?`
		args = append(args, rg.WorkspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY started_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.FocusSession
	for rows.Next() {
		s, err := scanSession(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, s)
	}
	return res, rows.Err()
}

// InsertPlanBlock stores a block; workspaceID scopes fixed blocks that have
// no task.
func (r Repo) InsertPlanBlock(ctx context.Context, b domain.PlanBlock, workspaceID string) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO day_plan_blocks(id,workspace_id,task_id,start_time,end_time,block_type) VALUES (?,?,?,?,?,?)`,
		b.ID, nullable(workspaceID), nullableStringPtr(b.TaskID), FormatTime(b.StartTime), FormatTime(b.EndTime), b.BlockType)
	return err
}

// ListPlanBlockFacts returns blocks starting inside the range joined with
// their task when they have one.
func (r Repo) ListPlanBlockFacts(ctx context.Context, rg Range) ([]domain.PlanBlockFact, error) {
	query := `SELECT b.id,b.task_id,b.start_time,b.end_time,b.block_type,COALESCE(t.type,''),t.project_id,COALESCE(t.workspace_id,b.workspace_id,'')
FROM day_plan_blocks b LEFT JOIN tasks t ON t.id=b.task_id
WHERE b.start_time >= ? AND b.start_time < ?`
	args := []any{FormatTime(rg.Start), FormatTime(rg.End)}
	if rg.WorkspaceID != "" {
		query += ` AND COALESCE(t.workspace_id,b.workspace_id)=?`
		args = append(args, rg.WorkspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY b.start_time, b.id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.PlanBlockFact
	for rows.Next() {
		var f domain.PlanBlockFact
		var task, project sql.NullString
		var start, end string
		if err := rows.Scan(&f.ID, &task, &start, &end, &f.BlockType, &f.TaskType, &project, &f.WorkspaceID); err != nil {
			return nil, err
		}
		f.TaskID = nullString(task)
		f.TaskProjectID = nullString(project)
		if f.StartTime, err = parseTime(start); err != nil {
			return nil, err
		}
		if f.EndTime, err = parseTime(end); err != nil {
			return nil, err
		}
		res = append(res, f)
	}
	return res, rows.Err()
}
