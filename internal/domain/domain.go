package domain

import "time"

type WorkspaceMode string

const (
	ModeExpansao   WorkspaceMode = "expansao"
	ModeManutencao WorkspaceMode = "manutencao"
	ModeStandby    WorkspaceMode = "standby"
)

type Workspace struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Mode      WorkspaceMode `json:"mode" enum:"expansao,manutencao,standby"`
	CreatedAt time.Time     `json:"created_at"`
}

const (
	ProjectAtivo     = "ativo"
	ProjectPausado   = "pausado"
	ProjectConcluido = "concluido"
)

type Project struct {
	ID              string     `json:"id"`
	WorkspaceID     string     `json:"workspace_id"`
	Title           string     `json:"title"`
	Status          string     `json:"status" enum:"ativo,pausado,concluido"`
	StrategicActive bool       `json:"strategic_active"`
	LastStrategicAt *time.Time `json:"last_strategic_at,omitempty"`
	IsGhost         bool       `json:"is_ghost"`
	CreatedAt       time.Time  `json:"created_at"`
}

const (
	TaskTypeA = "a"
	TaskTypeB = "b"
	TaskTypeC = "c"

	TaskAberta    = "aberta"
	TaskConcluida = "concluida"
	TaskCancelada = "cancelada"
)

type Task struct {
	ID               string     `json:"id"`
	WorkspaceID      string     `json:"workspace_id"`
	ProjectID        *string    `json:"project_id,omitempty"`
	Title            string     `json:"title"`
	Type             string     `json:"type" enum:"a,b,c"`
	Status           string     `json:"status" enum:"aberta,concluida,cancelada"`
	Priority         int        `json:"priority"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	DoneCriterion    string     `json:"done_criterion,omitempty"`
	WaitingOn        string     `json:"waiting_on,omitempty"`
	FollowupAt       *time.Time `json:"followup_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// IsOpen reports whether the task still counts as pending work.
func (t Task) IsOpen() bool {
	return t.Status == TaskAberta
}

type Restriction struct {
	ID          string    `json:"id"`
	TaskID      string    `json:"task_id"`
	Description string    `json:"description"`
	Status      string    `json:"status" enum:"aberta,resolvida"`
	CreatedAt   time.Time `json:"created_at"`
}

type ExecutionEventType string

const (
	EventCompleted ExecutionEventType = "completed"
	EventDelayed   ExecutionEventType = "delayed"
	EventFailed    ExecutionEventType = "failed"
	EventConfirmed ExecutionEventType = "confirmed"
)

type ExecutionEvent struct {
	ID            string             `json:"id"`
	TaskID        string             `json:"task_id"`
	EventType     ExecutionEventType `json:"event_type" enum:"completed,delayed,failed,confirmed"`
	Timestamp     time.Time          `json:"timestamp"`
	FailureReason string             `json:"failure_reason,omitempty"`
}

// ExecutionFact is an execution event joined with the task it belongs to.
type ExecutionFact struct {
	ExecutionEvent
	TaskType    string  `json:"task_type"`
	ProjectID   *string `json:"project_id,omitempty"`
	WorkspaceID string  `json:"workspace_id"`
}

type SessionState string

const (
	SessionActive    SessionState = "active"
	SessionCompleted SessionState = "completed"
	SessionBroken    SessionState = "broken"
)

type FocusSession struct {
	ID            string       `json:"id"`
	TaskID        string       `json:"task_id"`
	WorkspaceID   string       `json:"workspace_id"`
	ProjectID     *string      `json:"project_id,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	EndedAt       *time.Time   `json:"ended_at,omitempty"`
	State         SessionState `json:"state" enum:"active,completed,broken"`
	TargetMinutes int          `json:"target_minutes"`
	ActualMinutes int          `json:"actual_minutes"`
}

const (
	BlockTask  = "task"
	BlockFixed = "fixed"
)

type PlanBlock struct {
	ID        string    `json:"id"`
	TaskID    *string   `json:"task_id,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	BlockType string    `json:"block_type" enum:"task,fixed"`
}

// Minutes is the block duration, never negative.
func (b PlanBlock) Minutes() float64 {
	m := b.EndTime.Sub(b.StartTime).Minutes()
	if m < 0 {
		return 0
	}
	return m
}

// PlanBlockFact is a plan block joined with its task, when it has one.
type PlanBlockFact struct {
	PlanBlock
	TaskType      string  `json:"task_type,omitempty"`
	TaskProjectID *string `json:"task_project_id,omitempty"`
	WorkspaceID   string  `json:"workspace_id,omitempty"`
}

type Signal string

const (
	SignalExecutiva Signal = "executiva"
	SignalRisco     Signal = "risco"
	SignalNeutra    Signal = "neutra"
)

type DecisionEvent struct {
	ID          string    `json:"id"`
	WorkspaceID *string   `json:"workspace_id,omitempty"`
	ProjectID   *string   `json:"project_id,omitempty"`
	TaskID      *string   `json:"task_id,omitempty"`
	EventCode   string    `json:"event_code"`
	Signal      Signal    `json:"signal" enum:"executiva,risco,neutra"`
	ImpactScore int       `json:"impact_score"`
	Payload     string    `json:"payload_json"`
	CreatedAt   time.Time `json:"created_at"`
}

const (
	PeriodWeekly  = "weekly"
	PeriodMonthly = "monthly"
)

type Review struct {
	ID                string    `json:"id"`
	PeriodType        string    `json:"period_type" enum:"weekly,monthly"`
	PeriodStart       string    `json:"period_start"`
	Scope             string    `json:"scope"`
	NextPriority      string    `json:"next_priority"`
	StrategicDecision string    `json:"strategic_decision"`
	CommitmentLevel   string    `json:"commitment_level" enum:"baixo,medio,alto"`
	Reflection        string    `json:"reflection"`
	ActionItems       []string  `json:"action_items"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// APIKey authenticates an actor against the HTTP API. Only the hash is stored.
type APIKey struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actor_id"`
	Name      string    `json:"name,omitempty"`
	KeyHash   string    `json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
