package briefing

import (
	"fmt"
	"sort"
	"time"

	"execline/internal/config"
	"execline/internal/domain"
	"execline/internal/focus"
)

const (
	AlertFragmentation = "fragmentacao"
	AlertFocusOverload = "sobrecarga_foco"
	AlertReschedule    = "reagendamento_excessivo"
	AlertVagueTasks    = "tarefas_vagas"
	AlertWorkspaceMode = "violacao_modo_workspace"
)

type Alert struct {
	Code    string `json:"code"`
	Active  bool   `json:"active"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

type ProjectTouch struct {
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	WorkspaceID string `json:"workspaceId"`
	Touches     int    `json:"touches"`
}

type TaskRef struct {
	TaskID      string  `json:"taskId"`
	Title       string  `json:"title"`
	WorkspaceID string  `json:"workspaceId"`
	ProjectID   *string `json:"projectId,omitempty"`
	Priority    int     `json:"priority"`
	Delays      int     `json:"delays,omitempty"`
}

type GhostProject struct {
	ProjectID   string `json:"projectId"`
	Title       string `json:"title"`
	WorkspaceID string `json:"workspaceId"`
	IdleDays    int    `json:"idleDays"`
}

type WaitingFollowup struct {
	TaskID      string     `json:"taskId"`
	Title       string     `json:"title"`
	WaitingOn   string     `json:"waitingOn"`
	FollowupAt  *time.Time `json:"followupAt,omitempty"`
	OverdueDays int        `json:"overdueDays"`
	DueToday    bool       `json:"dueToday"`
	Score       int        `json:"score"`
}

type VagueTask struct {
	TaskID  string   `json:"taskId"`
	Title   string   `json:"title"`
	Missing []string `json:"missing"`
}

type Lists struct {
	FragmentedProjects  []ProjectTouch    `json:"fragmentedProjects"`
	DisconnectedTasks   []TaskRef         `json:"disconnectedTasks"`
	RescheduleRiskTasks []TaskRef         `json:"rescheduleRiskTasks"`
	GhostProjects       []GhostProject    `json:"ghostProjects"`
	WaitingFollowups    []WaitingFollowup `json:"waitingFollowups"`
	VagueTasks          []VagueTask       `json:"vagueTasks"`
}

// Input is everything the alerts and lists are computed from. Events and
// Sessions cover the alert window; Tasks are every task in scope.
type Input struct {
	Today      time.Time
	Now        time.Time
	Location   *time.Location
	Workspaces []domain.Workspace
	Projects   []domain.Project
	Tasks      []domain.Task
	Events     []domain.ExecutionFact
	Sessions   []domain.FocusSession
	// Delays counts delayed events per task over the task's whole history.
	Delays map[string]int
}

// Assemble computes the alert flags and the six ranked lists.
func Assemble(cfg *config.Config, in Input) ([]Alert, Lists) {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	a := cfg.Alerts
	lists := Lists{
		FragmentedProjects:  fragmented(in),
		DisconnectedTasks:   disconnected(in),
		RescheduleRiskTasks: rescheduleRisk(in),
		GhostProjects:       ghosts(in, loc),
		WaitingFollowups:    WaitingFollowups(in.Tasks, in.Today, loc),
		VagueTasks:          vague(in, a.ActionVerbs),
	}

	overloaded := overloadedProjects(in)
	riskyA := 0
	for _, t := range lists.RescheduleRiskTasks {
		if in.Delays[t.TaskID] >= a.RescheduleDelays && isTypeA(in.Tasks, t.TaskID) {
			riskyA++
		}
	}
	violations := modeViolations(in, a.MaintenanceMaxATasks)

	alerts := []Alert{
		{
			Code:    AlertFragmentation,
			Active:  len(lists.FragmentedProjects) > a.FragmentationProjects,
			Count:   len(lists.FragmentedProjects),
			Message: fmt.Sprintf("%d projetos estratégicos tocados nos últimos dias (limite %d)", len(lists.FragmentedProjects), a.FragmentationProjects),
		},
		{
			Code:    AlertFocusOverload,
			Active:  overloaded > a.FocusOverloadProjects,
			Count:   overloaded,
			Message: fmt.Sprintf("Foco profundo espalhado em %d projetos (limite %d)", overloaded, a.FocusOverloadProjects),
		},
		{
			Code:    AlertReschedule,
			Active:  riskyA > 0,
			Count:   riskyA,
			Message: fmt.Sprintf("%d tarefas A abertas com %d ou mais adiamentos", riskyA, a.RescheduleDelays),
		},
		{
			Code:    AlertVagueTasks,
			Active:  len(lists.VagueTasks) > 0,
			Count:   len(lists.VagueTasks),
			Message: fmt.Sprintf("%d tarefas A sem verbo e objeto, critério de pronto ou estimativa", len(lists.VagueTasks)),
		},
		{
			Code:    AlertWorkspaceMode,
			Active:  violations > 0,
			Count:   violations,
			Message: fmt.Sprintf("%d workspaces com execução incompatível com o modo", violations),
		},
	}
	return alerts, lists
}

func projectIndex(projects []domain.Project) map[string]domain.Project {
	m := make(map[string]domain.Project, len(projects))
	for _, p := range projects {
		m[p.ID] = p
	}
	return m
}

func isTypeA(tasks []domain.Task, id string) bool {
	for _, t := range tasks {
		if t.ID == id {
			return t.Type == domain.TaskTypeA
		}
	}
	return false
}

func fragmented(in Input) []ProjectTouch {
	projects := projectIndex(in.Projects)
	touches := map[string]int{}
	touch := func(id *string) {
		if id == nil {
			return
		}
		p, ok := projects[*id]
		if !ok || !p.StrategicActive || p.Status != domain.ProjectAtivo {
			return
		}
		touches[p.ID]++
	}
	for _, e := range in.Events {
		if e.EventType == domain.EventCompleted {
			touch(e.ProjectID)
		}
	}
	for _, s := range in.Sessions {
		touch(s.ProjectID)
	}
	out := make([]ProjectTouch, 0, len(touches))
	for id, n := range touches {
		p := projects[id]
		out = append(out, ProjectTouch{ProjectID: id, Title: p.Title, WorkspaceID: p.WorkspaceID, Touches: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Touches != out[j].Touches {
			return out[i].Touches > out[j].Touches
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out
}

func overloadedProjects(in Input) int {
	seen := map[string]bool{}
	for _, s := range in.Sessions {
		if s.ProjectID != nil {
			seen[*s.ProjectID] = true
		}
	}
	return len(seen)
}

func openRanked(tasks []domain.Task, keep func(domain.Task) bool) []domain.Task {
	var out []domain.Task
	for _, t := range tasks {
		if t.IsOpen() && keep(t) {
			out = append(out, t)
		}
	}
	focus.Rank(out)
	return out
}

func ref(t domain.Task, delays int) TaskRef {
	return TaskRef{TaskID: t.ID, Title: t.Title, WorkspaceID: t.WorkspaceID, ProjectID: t.ProjectID, Priority: t.Priority, Delays: delays}
}

func disconnected(in Input) []TaskRef {
	out := []TaskRef{}
	for _, t := range openRanked(in.Tasks, func(t domain.Task) bool { return t.ProjectID == nil }) {
		out = append(out, ref(t, 0))
	}
	return out
}

func rescheduleRisk(in Input) []TaskRef {
	out := []TaskRef{}
	for _, t := range openRanked(in.Tasks, func(t domain.Task) bool { return in.Delays[t.ID] > 0 }) {
		out = append(out, ref(t, in.Delays[t.ID]))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Delays > out[j].Delays })
	return out
}

func vague(in Input, verbs []string) []VagueTask {
	out := []VagueTask{}
	for _, t := range openRanked(in.Tasks, func(t domain.Task) bool { return t.Type == domain.TaskTypeA }) {
		if missing := Vagueness(t, verbs); len(missing) > 0 {
			out = append(out, VagueTask{TaskID: t.ID, Title: t.Title, Missing: missing})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return len(out[i].Missing) > len(out[j].Missing) })
	return out
}

func ghosts(in Input, loc *time.Location) []GhostProject {
	out := []GhostProject{}
	for _, p := range in.Projects {
		if !p.IsGhost {
			continue
		}
		last := p.CreatedAt
		if p.LastStrategicAt != nil && p.LastStrategicAt.After(last) {
			last = *p.LastStrategicAt
		}
		out = append(out, GhostProject{
			ProjectID:   p.ID,
			Title:       p.Title,
			WorkspaceID: p.WorkspaceID,
			IdleDays:    max(0, DaysBetween(last, in.Now, loc)),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IdleDays != out[j].IdleDays {
			return out[i].IdleDays > out[j].IdleDays
		}
		return out[i].ProjectID < out[j].ProjectID
	})
	return out
}

// WaitingFollowups ranks open tasks blocked on a third party by
// overdueDays*100 + dueToday*50 + priorityWeight. The follow-up date falls
// back to the due date.
func WaitingFollowups(tasks []domain.Task, today time.Time, loc *time.Location) []WaitingFollowup {
	out := []WaitingFollowup{}
	for _, t := range tasks {
		if !t.IsOpen() || t.WaitingOn == "" {
			continue
		}
		w := WaitingFollowup{TaskID: t.ID, Title: t.Title, WaitingOn: t.WaitingOn, FollowupAt: t.FollowupAt}
		due := t.FollowupAt
		if due == nil {
			due = t.DueDate
		}
		if due != nil {
			d := DaysBetween(*due, today, loc)
			w.OverdueDays = max(0, d)
			w.DueToday = d == 0
		}
		w.Score = w.OverdueDays*100 + priorityWeight(t.Priority)
		if w.DueToday {
			w.Score += 50
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// priorityWeight maps a task priority to its follow-up score term: the
// priority itself, with negative priorities counting as zero.
func priorityWeight(priority int) int {
	return max(0, priority)
}

func modeViolations(in Input, maintenanceMaxA int) int {
	modes := map[string]domain.WorkspaceMode{}
	for _, w := range in.Workspaces {
		modes[w.ID] = w.Mode
	}
	standbyHits := map[string]bool{}
	maintenanceA := map[string]int{}
	for _, e := range in.Events {
		if e.EventType != domain.EventCompleted {
			continue
		}
		switch modes[e.WorkspaceID] {
		case domain.ModeStandby:
			standbyHits[e.WorkspaceID] = true
		case domain.ModeManutencao:
			if e.TaskType == domain.TaskTypeA {
				maintenanceA[e.WorkspaceID]++
			}
		}
	}
	for _, s := range in.Sessions {
		if modes[s.WorkspaceID] == domain.ModeStandby {
			standbyHits[s.WorkspaceID] = true
		}
	}
	n := len(standbyHits)
	for _, count := range maintenanceA {
		if count > maintenanceMaxA {
			n++
		}
	}
	return n
}

// DaysBetween counts calendar days from a to b in loc; negative when b is
// before a.
func DaysBetween(a, b time.Time, loc *time.Location) int {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}
