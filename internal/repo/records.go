package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"execline/internal/domain"
)

func (r Repo) InsertWorkspace(ctx context.Context, w domain.Workspace) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workspaces(id,name,mode,created_at) VALUES (?,?,?,?)`,
		w.ID, w.Name, string(w.Mode), FormatTime(w.CreatedAt))
	return err
}

func (r Repo) UpdateWorkspaceModeTx(ctx context.Context, tx *sql.Tx, id string, mode domain.WorkspaceMode) error {
	res, err := r.q(tx).ExecContext(ctx, `UPDATE workspaces SET mode=? WHERE id=?`, string(mode), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanWorkspace(scan func(...any) error) (domain.Workspace, error) {
	var w domain.Workspace
	var mode, created string
	if err := scan(&w.ID, &w.Name, &mode, &created); err != nil {
		return w, err
	}
	w.Mode = domain.WorkspaceMode(mode)
	t, err := parseTime(created)
	w.CreatedAt = t
	return w, err
}

func (r Repo) GetWorkspace(ctx context.Context, id string) (domain.Workspace, error) {
	w, err := scanWorkspace(r.DB.QueryRowContext(ctx, `SELECT id,name,mode,created_at FROM workspaces WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	return w, err
}

// ListWorkspaces returns every workspace, or only id when it is set.
func (r Repo) ListWorkspaces(ctx context.Context, id string) ([]domain.Workspace, error) {
	query := `SELECT id,name,mode,created_at FROM workspaces`
	var args []any
	if id != "" {
		query += ` WHERE id=?`
		args = append(args, id)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, w)
	}
	return res, rows.Err()
}

const projectColumns = `id,workspace_id,title,status,strategic_active,last_strategic_at,is_ghost,created_at`

func (r Repo) InsertProject(ctx context.Context, p domain.Project) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO projects(`+projectColumns+`) VALUES (?,?,?,?,?,?,?,?)`,
		p.ID, p.WorkspaceID, p.Title, p.Status, boolInt(p.StrategicActive), nullableTimePtr(p.LastStrategicAt),
		boolInt(p.IsGhost), FormatTime(p.CreatedAt))
	return err
}

func scanProject(scan func(...any) error) (domain.Project, error) {
	var p domain.Project
	var last sql.NullString
	var created string
	var strategic, ghost int
	if err := scan(&p.ID, &p.WorkspaceID, &p.Title, &p.Status, &strategic, &last, &ghost, &created); err != nil {
		return p, err
	}
	p.StrategicActive = strategic != 0
	p.IsGhost = ghost != 0
	var err error
	if p.LastStrategicAt, err = parseNullTime(last); err != nil {
		return p, err
	}
	p.CreatedAt, err = parseTime(created)
	return p, err
}

func (r Repo) GetProject(ctx context.Context, id string) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (r Repo) ListProjects(ctx context.Context, workspaceID string) ([]domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects`
	var args []any
	if workspaceID != "" {
		query += ` WHERE workspace_id=?`
		args = append(args, workspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// UpdateProjectTx changes status and strategic flag; a nil field is kept.
func (r Repo) UpdateProjectTx(ctx context.Context, tx *sql.Tx, id, status string, strategicActive *bool) error {
	var (
		fields []string
		args   []any
	)
	if status != "" {
		fields = append(fields, "status=?")
		args = append(args, status)
	}
	if strategicActive != nil {
		fields = append(fields, "strategic_active=?")
		args = append(args, boolInt(*strategicActive))
	}
	if len(fields) == 0 {
		return nil
	}
	args = append(args, id)
	res, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchProjectTx records a strategic traction signal on the project.
func (r Repo) TouchProjectTx(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	_, err := r.q(tx).ExecContext(ctx, `UPDATE projects SET last_strategic_at=? WHERE id=?`, FormatTime(at), id)
	return err
}

// SetGhostFlags marks exactly ghostIDs as ghosts among the projects of the
// scope and clears the flag on the rest.
func (r Repo) SetGhostFlags(ctx context.Context, workspaceID string, ghostIDs []string) error {
	return r.WithTx(ctx, func(tx *sql.Tx) error {
		reset := `UPDATE projects SET is_ghost=0`
		var args []any
		if workspaceID != "" {
			reset += ` WHERE workspace_id=?`
			args = append(args, workspaceID)
		}
		if _, err := tx.ExecContext(ctx, reset, args...); err != nil {
			return err
		}
		if len(ghostIDs) == 0 {
			return nil
		}
		ids := make([]any, len(ghostIDs))
		for i, id := range ghostIDs {
			ids[i] = id
		}
		_, err := tx.ExecContext(ctx, `UPDATE projects SET is_ghost=1 WHERE id IN (`+placeholders(len(ids))+`)`, ids...)
		return err
	})
}

const taskColumns = `id,workspace_id,project_id,title,type,status,priority,due_date,estimated_minutes,done_criterion,waiting_on,followup_at,created_at,updated_at,completed_at`

func (r Repo) InsertTask(ctx context.Context, t domain.Task) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.WorkspaceID, nullableStringPtr(t.ProjectID), t.Title, t.Type, t.Status, t.Priority,
		nullableTimePtr(t.DueDate), nullableIntPtr(t.EstimatedMinutes), t.DoneCriterion, t.WaitingOn,
		nullableTimePtr(t.FollowupAt), FormatTime(t.CreatedAt), FormatTime(t.UpdatedAt), nullableTimePtr(t.CompletedAt))
	return err
}

func scanTask(scan func(...any) error) (domain.Task, error) {
	var t domain.Task
	var project, due, followup, completed sql.NullString
	var estimate sql.NullInt64
	var created, updated string
	if err := scan(&t.ID, &t.WorkspaceID, &project, &t.Title, &t.Type, &t.Status, &t.Priority, &due, &estimate,
		&t.DoneCriterion, &t.WaitingOn, &followup, &created, &updated, &completed); err != nil {
		return t, err
	}
	t.ProjectID = nullString(project)
	if estimate.Valid {
		m := int(estimate.Int64)
		t.EstimatedMinutes = &m
	}
	var err error
	if t.DueDate, err = parseNullTime(due); err != nil {
		return t, err
	}
	if t.FollowupAt, err = parseNullTime(followup); err != nil {
		return t, err
	}
	if t.CompletedAt, err = parseNullTime(completed); err != nil {
		return t, err
	}
	if t.CreatedAt, err = parseTime(created); err != nil {
		return t, err
	}
	t.UpdatedAt, err = parseTime(updated)
	return t, err
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return r.GetTaskTx(ctx, nil, id)
}

func (r Repo) GetTaskTx(ctx context.Context, tx *sql.Tx, id string) (domain.Task, error) {
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=?`, id).Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

type TaskFilters struct {
	WorkspaceID string
	ProjectID   string
	Status      string
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.WorkspaceID != "" {
		clauses = append(clauses, "workspace_id=?")
		args = append(args, f.WorkspaceID)
	}
	if f.ProjectID != "" {
		clauses = append(clauses, "project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, f.Status)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskUpdate holds the mutable task fields; nil means unchanged.
type TaskUpdate struct {
	Status           *string
	Priority         *int
	ProjectID        *string
	DueDate          *time.Time
	EstimatedMinutes *int
	DoneCriterion    *string
	WaitingOn        *string
	FollowupAt       *time.Time
	CompletedAt      *time.Time
}

func (r Repo) UpdateTaskTx(ctx context.Context, tx *sql.Tx, id string, u TaskUpdate, now time.Time) error {
	fields := []string{"updated_at=?"}
	args := []any{FormatTime(now)}
	add := func(col string, v any) {
		fields = append(fields, col+"=?")
		args = append(args, v)
	}
	if u.Status != nil {
		add("status", *u.Status)
	}
	if u.Priority != nil {
		add("priority", *u.Priority)
	}
	if u.ProjectID != nil {
		add("project_id", nullable(*u.ProjectID))
	}
	if u.DueDate != nil {
		add("due_date", FormatTime(*u.DueDate))
	}
	if u.EstimatedMinutes != nil {
		add("estimated_minutes", *u.EstimatedMinutes)
	}
	if u.DoneCriterion != nil {
		add("done_criterion", *u.DoneCriterion)
	}
	if u.WaitingOn != nil {
		add("waiting_on", *u.WaitingOn)
	}
	if u.FollowupAt != nil {
		add("followup_at", FormatTime(*u.FollowupAt))
	}
	if u.CompletedAt != nil {
		add("completed_at", FormatTime(*u.CompletedAt))
	}
	args = append(args, id)
	res, err := r.q(tx).ExecContext(ctx, `UPDATE tasks SET `+strings.Join(fields, ",")+` WHERE id=?`, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) InsertRestriction(ctx context.Context, rs domain.Restriction) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO task_restrictions(id,task_id,description,status,created_at) VALUES (?,?,?,?,?)`,
		rs.ID, rs.TaskID, rs.Description, rs.Status, FormatTime(rs.CreatedAt))
	return err
}

func (r Repo) ResolveRestriction(ctx context.Context, id string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE task_restrictions SET status='resolvida' WHERE id=?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// OpenRestrictionTaskIDs returns the set of tasks with at least one open
// restriction.
func (r Repo) OpenRestrictionTaskIDs(ctx context.Context, workspaceID string) (map[string]bool, error) {
	query := `SELECT DISTINCT r.task_id FROM task_restrictions r JOIN tasks t ON t.id=r.task_id WHERE r.status='aberta'`
	var args []any
	if workspaceID != "" {
		query += ` AND t.workspace_id=?`
		args = append(args, workspaceID)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]bool{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		res[id] = true
	}
	return res, rows.Err()
}
