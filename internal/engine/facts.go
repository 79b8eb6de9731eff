package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"execline/internal/domain"
	"execline/internal/events"
	"execline/internal/focus"
	"execline/internal/repo"
)

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

type WorkspaceOptions struct {
	ID   string
	Name string
	Mode domain.WorkspaceMode
}

func validMode(m domain.WorkspaceMode) bool {
	switch m {
	case domain.ModeExpansao, domain.ModeManutencao, domain.ModeStandby:
		return true
	}
	return false
}

func (e Engine) CreateWorkspace(ctx context.Context, opts WorkspaceOptions) (domain.Workspace, error) {
	if strings.TrimSpace(opts.Name) == "" {
		return domain.Workspace{}, ValidationError{Field: "name", Reason: "name is required"}
	}
	if opts.Mode == "" {
		opts.Mode = domain.ModeExpansao
	}
	if !validMode(opts.Mode) {
		return domain.Workspace{}, ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", opts.Mode)}
	}
	w := domain.Workspace{ID: newID(opts.ID), Name: opts.Name, Mode: opts.Mode, CreatedAt: e.now().UTC()}
	if err := e.Repo.InsertWorkspace(ctx, w); err != nil {
		return domain.Workspace{}, fmt.Errorf("insert workspace: %w", err)
	}
	return e.Repo.GetWorkspace(ctx, w.ID)
}

// SetWorkspaceMode changes the operating mode and records the decision.
func (e Engine) SetWorkspaceMode(ctx context.Context, id string, mode domain.WorkspaceMode, actorID string) (domain.Workspace, error) {
	if !validMode(mode) {
		return domain.Workspace{}, ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", mode)}
	}
	prev, err := e.Repo.GetWorkspace(ctx, id)
	if err != nil {
		return domain.Workspace{}, err
	}
	if prev.Mode == mode {
		return prev, nil
	}
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateWorkspaceModeTx(ctx, tx, id, mode); err != nil {
			return err
		}
		signal := domain.SignalNeutra
		if mode == domain.ModeStandby {
			signal = domain.SignalExecutiva
		}
		_, err := e.writer().Append(ctx, tx, events.Record{
			Code:        "workspace_mode_changed",
			Signal:      signal,
			ImpactScore: 1,
			WorkspaceID: id,
			ActorID:     actorID,
			Payload:     events.EventPayload{"from": prev.Mode, "to": mode},
		})
		return err
	})
	if err != nil {
		return domain.Workspace{}, err
	}
	return e.Repo.GetWorkspace(ctx, id)
}

type ProjectOptions struct {
	ID              string
	WorkspaceID     string
	Title           string
	Status          string
	StrategicActive bool
}

func validProjectStatus(s string) bool {
	switch s {
	case domain.ProjectAtivo, domain.ProjectPausado, domain.ProjectConcluido:
		return true
	}
	return false
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectOptions) (domain.Project, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Project{}, ValidationError{Field: "title", Reason: "title is required"}
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectAtivo
	}
	if !validProjectStatus(opts.Status) {
		return domain.Project{}, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown project status %q", opts.Status)}
	}
	if _, err := e.Repo.GetWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Project{}, fmt.Errorf("workspace %s: %w", opts.WorkspaceID, err)
	}
	p := domain.Project{
		ID:              newID(opts.ID),
		WorkspaceID:     opts.WorkspaceID,
		Title:           opts.Title,
		Status:          opts.Status,
		StrategicActive: opts.StrategicActive,
		CreatedAt:       e.now().UTC(),
	}
	if err := e.Repo.InsertProject(ctx, p); err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	return e.Repo.GetProject(ctx, p.ID)
}

// UpdateProject changes status and strategic flag. Pausing or closing a
// project is an executive cut and lands in the decision log.
func (e Engine) UpdateProject(ctx context.Context, id, status string, strategicActive *bool, actorID string) (domain.Project, error) {
	if status != "" && !validProjectStatus(status) {
		return domain.Project{}, ValidationError{Field: "status", Reason: fmt.Sprintf("unknown project status %q", status)}
	}
	prev, err := e.Repo.GetProject(ctx, id)
	if err != nil {
		return domain.Project{}, err
	}
	err = e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.UpdateProjectTx(ctx, tx, id, status, strategicActive); err != nil {
			return err
		}
		if status == "" || status == prev.Status {
			return nil
		}
		signal := domain.SignalNeutra
		if status != domain.ProjectAtivo {
			signal = domain.SignalExecutiva
		}
		_, err := e.writer().Append(ctx, tx, events.Record{
			Code:        "project_status_changed",
			Signal:      signal,
			ImpactScore: 1,
			WorkspaceID: prev.WorkspaceID,
			ProjectID:   id,
			ActorID:     actorID,
			Payload:     events.EventPayload{"from": prev.Status, "to": status, "note": prev.Title},
		})
		return err
	})
	if err != nil {
		return domain.Project{}, err
	}
	return e.Repo.GetProject(ctx, id)
}

// TaskCreateOptions are parameters for creating a task.
type TaskCreateOptions struct {
	ID               string
	WorkspaceID      string
	ProjectID        string
	Title            string
	Type             string
	Priority         int
	DueDate          *time.Time
	EstimatedMinutes *int
	DoneCriterion    string
	WaitingOn        string
	FollowupAt       *time.Time
}

func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if strings.TrimSpace(opts.Title) == "" {
		return domain.Task{}, ValidationError{Field: "title", Reason: "title is required"}
	}
	if opts.Type == "" {
		opts.Type = domain.TaskTypeB
	}
	switch opts.Type {
	case domain.TaskTypeA, domain.TaskTypeB, domain.TaskTypeC:
	default:
		return domain.Task{}, ValidationError{Field: "type", Reason: fmt.Sprintf("unknown task type %q", opts.Type)}
	}
	if opts.EstimatedMinutes != nil && *opts.EstimatedMinutes < 0 {
		return domain.Task{}, ValidationError{Field: "estimated_minutes", Reason: "must not be negative"}
	}
	if opts.ProjectID != "" {
		p, err := e.Repo.GetProject(ctx, opts.ProjectID)
		if err != nil {
			return domain.Task{}, fmt.Errorf("project %s: %w", opts.ProjectID, err)
		}
		if opts.WorkspaceID == "" {
			opts.WorkspaceID = p.WorkspaceID
		}
		if p.WorkspaceID != opts.WorkspaceID {
			return domain.Task{}, ValidationError{Field: "project_id", Reason: "project belongs to another workspace"}
		}
	}
	if _, err := e.Repo.GetWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Task{}, fmt.Errorf("workspace %s: %w", opts.WorkspaceID, err)
	}
	now := e.now().UTC()
	t := domain.Task{
		ID:               newID(opts.ID),
		WorkspaceID:      opts.WorkspaceID,
		Title:            opts.Title,
		Type:             opts.Type,
		Status:           domain.TaskAberta,
		Priority:         opts.Priority,
		DueDate:          opts.DueDate,
		EstimatedMinutes: opts.EstimatedMinutes,
		DoneCriterion:    opts.DoneCriterion,
		WaitingOn:        opts.WaitingOn,
		FollowupAt:       opts.FollowupAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if opts.ProjectID != "" {
		t.ProjectID = &opts.ProjectID
	}
	if err := e.Repo.InsertTask(ctx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	return e.Repo.GetTask(ctx, t.ID)
}

func (e Engine) UpdateTask(ctx context.Context, id string, u repo.TaskUpdate) (domain.Task, error) {
	if u.Status != nil {
		switch *u.Status {
		case domain.TaskAberta, domain.TaskConcluida, domain.TaskCancelada:
		default:
			return domain.Task{}, ValidationError{Field: "status", TaskID: id, Reason: fmt.Sprintf("unknown task status %q", *u.Status)}
		}
	}
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		return e.Repo.UpdateTaskTx(ctx, tx, id, u, e.now().UTC())
	})
	if err != nil {
		return domain.Task{}, err
	}
	return e.Repo.GetTask(ctx, id)
}

func (e Engine) AddRestriction(ctx context.Context, taskID, description string) (domain.Restriction, error) {
	if strings.TrimSpace(description) == "" {
		return domain.Restriction{}, ValidationError{Field: "description", TaskID: taskID, Reason: "description is required"}
	}
	if _, err := e.Repo.GetTask(ctx, taskID); err != nil {
		return domain.Restriction{}, fmt.Errorf("task %s: %w", taskID, err)
	}
	rs := domain.Restriction{ID: uuid.NewString(), TaskID: taskID, Description: description, Status: "aberta", CreatedAt: e.now().UTC()}
	if err := e.Repo.InsertRestriction(ctx, rs); err != nil {
		return domain.Restriction{}, fmt.Errorf("insert restriction: %w", err)
	}
	return rs, nil
}

func (e Engine) ResolveRestriction(ctx context.Context, id string) error {
	return e.Repo.ResolveRestriction(ctx, id)
}

type ExecutionOptions struct {
	TaskID        string
	EventType     domain.ExecutionEventType
	At            *time.Time
	FailureReason string
}

// RecordExecutionEvent appends a lifecycle event. A completion closes the
// task, and completing a type a task counts as traction for its project.
func (e Engine) RecordExecutionEvent(ctx context.Context, opts ExecutionOptions) (domain.ExecutionEvent, error) {
	switch opts.EventType {
	case domain.EventCompleted, domain.EventDelayed, domain.EventFailed, domain.EventConfirmed:
	default:
		return domain.ExecutionEvent{}, ValidationError{Field: "event_type", TaskID: opts.TaskID, Reason: fmt.Sprintf("unknown event type %q", opts.EventType)}
	}
	at := e.now().UTC()
	if opts.At != nil {
		at = opts.At.UTC()
	}
	ev := domain.ExecutionEvent{
		ID:            uuid.NewString(),
		TaskID:        opts.TaskID,
		EventType:     opts.EventType,
		Timestamp:     at.Truncate(time.Millisecond),
		FailureReason: opts.FailureReason,
	}
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		t, err := e.Repo.GetTaskTx(ctx, tx, opts.TaskID)
		if err != nil {
			return fmt.Errorf("task %s: %w", opts.TaskID, err)
		}
		if err := e.Repo.InsertExecutionEventTx(ctx, tx, ev); err != nil {
			return fmt.Errorf("insert execution event: %w", err)
		}
		if opts.EventType != domain.EventCompleted {
			return nil
		}
		status := domain.TaskConcluida
		if err := e.Repo.UpdateTaskTx(ctx, tx, t.ID, repo.TaskUpdate{Status: &status, CompletedAt: &ev.Timestamp}, e.now().UTC()); err != nil {
			return err
		}
		if t.Type == domain.TaskTypeA && t.ProjectID != nil {
			return e.Repo.TouchProjectTx(ctx, tx, *t.ProjectID, ev.Timestamp)
		}
		return nil
	})
	if err != nil {
		return domain.ExecutionEvent{}, err
	}
	return ev, nil
}

func (e Engine) StartFocusSession(ctx context.Context, taskID string, targetMinutes int) (domain.FocusSession, error) {
	if targetMinutes <= 0 {
		targetMinutes = int(e.Config.Daily.DeepMinutesTarget)
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return domain.FocusSession{}, fmt.Errorf("task %s: %w", taskID, err)
	}
	s := domain.FocusSession{
		ID:            uuid.NewString(),
		TaskID:        t.ID,
		WorkspaceID:   t.WorkspaceID,
		ProjectID:     t.ProjectID,
		StartedAt:     e.now().UTC().Truncate(time.Millisecond),
		State:         domain.SessionActive,
		TargetMinutes: targetMinutes,
	}
	if err := e.Repo.InsertSession(ctx, s); err != nil {
		return domain.FocusSession{}, fmt.Errorf("insert focus session: %w", err)
	}
	return s, nil
}

// FinishFocusSession ends an active session as completed, or broken when it
// was interrupted.
func (e Engine) FinishFocusSession(ctx context.Context, id string, broken bool) (domain.FocusSession, error) {
	s, err := e.Repo.GetSession(ctx, id)
	if err != nil {
		return domain.FocusSession{}, err
	}
	if s.State != domain.SessionActive {
		return domain.FocusSession{}, ValidationError{Field: "session", Reason: fmt.Sprintf("session %s is already %s", id, s.State)}
	}
	end := e.now().UTC().Truncate(time.Millisecond)
	s.EndedAt = &end
	s.ActualMinutes = int(math.Max(0, math.Floor(end.Sub(s.StartedAt).Minutes())))
	s.State = domain.SessionCompleted
	if broken {
		s.State = domain.SessionBroken
	}
	if err := e.Repo.FinishSession(ctx, s); err != nil {
		return domain.FocusSession{}, err
	}
	return s, nil
}

type PlanBlockOptions struct {
	WorkspaceID string
	TaskID      string
	Start       time.Time
	End         time.Time
	BlockType   string
}

func (e Engine) AddPlanBlock(ctx context.Context, opts PlanBlockOptions) (domain.PlanBlock, error) {
	if opts.BlockType == "" {
		opts.BlockType = domain.BlockTask
		if opts.TaskID == "" {
			opts.BlockType = domain.BlockFixed
		}
	}
	if opts.BlockType != domain.BlockTask && opts.BlockType != domain.BlockFixed {
		return domain.PlanBlock{}, ValidationError{Field: "block_type", Reason: fmt.Sprintf("unknown block type %q", opts.BlockType)}
	}
	if !opts.End.After(opts.Start) {
		return domain.PlanBlock{}, ValidationError{Field: "end", Reason: "block must end after it starts"}
	}
	b := domain.PlanBlock{
		ID:        uuid.NewString(),
		StartTime: opts.Start.UTC(),
		EndTime:   opts.End.UTC(),
		BlockType: opts.BlockType,
	}
	if opts.TaskID != "" {
		t, err := e.Repo.GetTask(ctx, opts.TaskID)
		if err != nil {
			return domain.PlanBlock{}, fmt.Errorf("task %s: %w", opts.TaskID, err)
		}
		b.TaskID = &t.ID
		opts.WorkspaceID = t.WorkspaceID
	}
	if err := e.Repo.InsertPlanBlock(ctx, b, opts.WorkspaceID); err != nil {
		return domain.PlanBlock{}, fmt.Errorf("insert plan block: %w", err)
	}
	return b, nil
}

type ReviewOptions struct {
	PeriodType        string
	PeriodStart       string
	WorkspaceID       string
	NextPriority      string
	StrategicDecision string
	CommitmentLevel   string
	Reflection        string
	ActionItems       []string
}

// UpsertReview writes the single review of (period, start, scope).
func (e Engine) UpsertReview(ctx context.Context, opts ReviewOptions) (domain.Review, error) {
	switch opts.PeriodType {
	case domain.PeriodWeekly, domain.PeriodMonthly:
	default:
		return domain.Review{}, ValidationError{Field: "period_type", Reason: fmt.Sprintf("unknown period %q", opts.PeriodType)}
	}
	if _, err := time.Parse(DateLayout, opts.PeriodStart); err != nil {
		return domain.Review{}, ValidationError{Field: "period_start", Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", opts.PeriodStart)}
	}
	if opts.CommitmentLevel == "" {
		opts.CommitmentLevel = "medio"
	}
	switch opts.CommitmentLevel {
	case "baixo", "medio", "alto":
	default:
		return domain.Review{}, ValidationError{Field: "commitment_level", Reason: fmt.Sprintf("unknown level %q", opts.CommitmentLevel)}
	}
	if err := e.checkWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.Review{}, err
	}
	now := e.now().UTC()
	rv := domain.Review{
		ID:                uuid.NewString(),
		PeriodType:        opts.PeriodType,
		PeriodStart:       opts.PeriodStart,
		Scope:             focus.Scope(opts.WorkspaceID),
		NextPriority:      opts.NextPriority,
		StrategicDecision: opts.StrategicDecision,
		CommitmentLevel:   opts.CommitmentLevel,
		Reflection:        opts.Reflection,
		ActionItems:       opts.ActionItems,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return e.Repo.UpsertReview(ctx, rv)
}

type DecisionOptions struct {
	Code        string
	Signal      domain.Signal
	ImpactScore int
	WorkspaceID string
	ProjectID   string
	TaskID      string
	Note        string
}

// RecordDecision appends a free strategic decision to the log.
func (e Engine) RecordDecision(ctx context.Context, opts DecisionOptions, actorID string) (domain.DecisionEvent, error) {
	if strings.TrimSpace(opts.Code) == "" {
		return domain.DecisionEvent{}, ValidationError{Field: "code", Reason: "event code is required"}
	}
	switch opts.Signal {
	case "", domain.SignalExecutiva, domain.SignalRisco, domain.SignalNeutra:
	default:
		return domain.DecisionEvent{}, ValidationError{Field: "signal", Reason: fmt.Sprintf("unknown signal %q", opts.Signal)}
	}
	if err := e.checkWorkspace(ctx, opts.WorkspaceID); err != nil {
		return domain.DecisionEvent{}, err
	}
	var evt domain.DecisionEvent
	err := e.Repo.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		evt, err = e.writer().Append(ctx, tx, events.Record{
			Code:        opts.Code,
			Signal:      opts.Signal,
			ImpactScore: opts.ImpactScore,
			WorkspaceID: opts.WorkspaceID,
			ProjectID:   opts.ProjectID,
			TaskID:      opts.TaskID,
			ActorID:     actorID,
			Payload:     events.EventPayload{"note": opts.Note},
		})
		return err
	})
	return evt, err
}

// CreateAPIKey issues a key for actorID. The plain key is returned once and
// only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, actorID, name string) (domain.APIKey, string, error) {
	if actorID == "" {
		return domain.APIKey{}, "", ValidationError{Field: "actor", Reason: "actor required"}
	}
	plain := "xl_" + strings.ReplaceAll(uuid.NewString()+uuid.NewString(), "-", "")
	key := domain.APIKey{
		ID:        uuid.NewString(),
		ActorID:   actorID,
		Name:      name,
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now().UTC(),
	}
	if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
		return domain.APIKey{}, "", fmt.Errorf("insert api key: %w", err)
	}
	return key, plain, nil
}

func (e Engine) RevokeAPIKey(ctx context.Context, id string) error {
	if err := e.Repo.DeleteAPIKey(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("api key %s: %w", id, err)
		}
		return err
	}
	return nil
}
