package briefing

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execline/internal/config"
	"execline/internal/domain"
)

var today = time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestDayCapacity(t *testing.T) {
	at := func(h, mins int, kind string) domain.PlanBlockFact {
		start := today.Add(time.Duration(h) * time.Hour)
		return domain.PlanBlockFact{PlanBlock: domain.PlanBlock{StartTime: start, EndTime: start.Add(time.Duration(mins) * time.Minute), BlockType: kind}}
	}
	c := DayCapacity(1020, []domain.PlanBlockFact{at(8, 600, domain.BlockFixed), at(19, 300, domain.BlockTask), at(1, 200, domain.BlockTask)})
	assert.Equal(t, 600, c.FixedMinutes)
	assert.Equal(t, 420, c.Capacity)
	assert.Equal(t, 500, c.PlannedTaskMinutes)
	assert.Equal(t, 80, c.Overload)
	assert.True(t, c.IsUnrealistic)

	empty := DayCapacity(1020, nil)
	assert.Equal(t, 1020, empty.Capacity)
	assert.Zero(t, empty.Overload)
	assert.False(t, empty.IsUnrealistic)
}

func TestIsVerbObject(t *testing.T) {
	verbs := config.Default().Alerts.ActionVerbs
	assert.True(t, IsVerbObject("Escrever capítulo 3", verbs))
	assert.True(t, IsVerbObject("Definir escopo", verbs))
	assert.True(t, IsVerbObject("Ligar para o contador", verbs))
	assert.True(t, IsVerbObject("Revisar proposta", verbs))
	assert.False(t, IsVerbObject("Escrever", verbs))
	assert.False(t, IsVerbObject("Proposta do cliente", verbs))
	assert.False(t, IsVerbObject("", verbs))
}

func TestVagueness(t *testing.T) {
	verbs := config.Default().Alerts.ActionVerbs
	crisp := domain.Task{Title: "Publicar artigo", DoneCriterion: "no ar", EstimatedMinutes: ptr(60)}
	assert.Empty(t, Vagueness(crisp, verbs))
	fuzzy := domain.Task{Title: "Artigo"}
	assert.Equal(t, []string{MissingVerbObject, MissingDoneCriterion, MissingEstimate}, Vagueness(fuzzy, verbs))
}

func TestWaitingFollowupsScore(t *testing.T) {
	tasks := []domain.Task{
		{ID: "overdue", Status: domain.TaskAberta, WaitingOn: "banco", FollowupAt: ptr(today.AddDate(0, 0, -2)), Priority: 1},
		{ID: "today", Status: domain.TaskAberta, WaitingOn: "cliente", FollowupAt: ptr(today.Add(15 * time.Hour)), Priority: 5},
		{ID: "future", Status: domain.TaskAberta, WaitingOn: "fornecedor", FollowupAt: ptr(today.AddDate(0, 0, 3)), Priority: 9},
		{ID: "due", Status: domain.TaskAberta, WaitingOn: "jurídico", DueDate: ptr(today.AddDate(0, 0, -1)), Priority: 0},
		{ID: "done", Status: domain.TaskConcluida, WaitingOn: "x", FollowupAt: ptr(today.AddDate(0, 0, -9))},
		{ID: "not-waiting", Status: domain.TaskAberta, FollowupAt: ptr(today.AddDate(0, 0, -9))},
	}
	got := WaitingFollowups(tasks, today, time.UTC)
	require.Len(t, got, 4)
	assert.Equal(t, "overdue", got[0].TaskID)
	assert.Equal(t, 201, got[0].Score)
	assert.Equal(t, "due", got[1].TaskID)
	assert.Equal(t, 100, got[1].Score)
	assert.Equal(t, "today", got[2].TaskID)
	assert.Equal(t, 55, got[2].Score)
	assert.True(t, got[2].DueToday)
	assert.Equal(t, "future", got[3].TaskID)
	assert.Equal(t, 9, got[3].Score)
}

func TestWaitingFollowupsNegativePriorityWeighsZero(t *testing.T) {
	tasks := []domain.Task{
		{ID: "low", Status: domain.TaskAberta, WaitingOn: "banco", FollowupAt: ptr(today.AddDate(0, 0, -1)), Priority: -4},
	}
	got := WaitingFollowups(tasks, today, time.UTC)
	require.Len(t, got, 1)
	assert.Equal(t, 100, got[0].Score)
	assert.Equal(t, 0, priorityWeight(-4))
	assert.Equal(t, 7, priorityWeight(7))
}

func TestAssembleAlerts(t *testing.T) {
	cfg := config.Default()
	var projects []domain.Project
	var events []domain.ExecutionFact
	var sessions []domain.FocusSession
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("p%d", i)
		projects = append(projects, domain.Project{ID: id, WorkspaceID: "w1", Title: id, Status: domain.ProjectAtivo, StrategicActive: true})
		events = append(events, domain.ExecutionFact{
			ExecutionEvent: domain.ExecutionEvent{TaskID: "t-" + id, EventType: domain.EventCompleted, Timestamp: today.AddDate(0, 0, -1)},
			TaskType:       domain.TaskTypeA, ProjectID: ptr(id), WorkspaceID: "w1",
		})
		if i < 4 {
			sessions = append(sessions, domain.FocusSession{TaskID: "t-" + id, WorkspaceID: "w1", ProjectID: ptr(id), StartedAt: today.AddDate(0, 0, -2)})
		}
	}
	projects = append(projects, domain.Project{ID: "ghost", WorkspaceID: "w1", Title: "Antigo", Status: domain.ProjectAtivo, IsGhost: true, CreatedAt: today.AddDate(0, 0, -40)})
	sessions = append(sessions, domain.FocusSession{TaskID: "x", WorkspaceID: "w2", StartedAt: today.AddDate(0, 0, -1)})

	tasks := []domain.Task{
		{ID: "late", WorkspaceID: "w1", ProjectID: ptr("p0"), Title: "Enviar relatório", Type: domain.TaskTypeA, Status: domain.TaskAberta, DoneCriterion: "enviado", EstimatedMinutes: ptr(30)},
		{ID: "loose", WorkspaceID: "w1", Title: "Coisas soltas", Type: domain.TaskTypeA, Status: domain.TaskAberta, Priority: 2},
		{ID: "loose-b", WorkspaceID: "w1", Title: "Pagar conta", Type: domain.TaskTypeB, Status: domain.TaskAberta, Priority: 7},
	}
	in := Input{
		Today: today, Now: today.Add(10 * time.Hour), Location: time.UTC,
		Workspaces: []domain.Workspace{{ID: "w1", Mode: domain.ModeExpansao}, {ID: "w2", Mode: domain.ModeStandby}},
		Projects:   projects,
		Tasks:      tasks,
		Events:     events,
		Sessions:   sessions,
		Delays:     map[string]int{"late": 3, "loose-b": 1},
	}
	alerts, lists := Assemble(cfg, in)
	byCode := map[string]Alert{}
	for _, a := range alerts {
		byCode[a.Code] = a
	}
	require.Len(t, byCode, 5)
	assert.True(t, byCode[AlertFragmentation].Active)
	assert.Equal(t, 6, byCode[AlertFragmentation].Count)
	assert.True(t, byCode[AlertFocusOverload].Active)
	assert.Equal(t, 4, byCode[AlertFocusOverload].Count)
	assert.True(t, byCode[AlertReschedule].Active)
	assert.Equal(t, 1, byCode[AlertReschedule].Count)
	assert.True(t, byCode[AlertVagueTasks].Active)
	assert.Equal(t, 1, byCode[AlertVagueTasks].Count)
	assert.True(t, byCode[AlertWorkspaceMode].Active)

	require.Len(t, lists.FragmentedProjects, 6)
	assert.Equal(t, 2, lists.FragmentedProjects[0].Touches)

	require.Len(t, lists.DisconnectedTasks, 2)
	assert.Equal(t, "loose-b", lists.DisconnectedTasks[0].TaskID)

	require.Len(t, lists.RescheduleRiskTasks, 2)
	assert.Equal(t, "late", lists.RescheduleRiskTasks[0].TaskID)

	require.Len(t, lists.GhostProjects, 1)
	assert.Equal(t, 40, lists.GhostProjects[0].IdleDays)

	require.Len(t, lists.VagueTasks, 1)
	assert.Equal(t, "loose", lists.VagueTasks[0].TaskID)
}

func TestAssembleQuietDay(t *testing.T) {
	alerts, lists := Assemble(config.Default(), Input{Today: today, Now: today})
	for _, a := range alerts {
		assert.False(t, a.Active, a.Code)
	}
	assert.Empty(t, lists.FragmentedProjects)
	assert.NotNil(t, lists.WaitingFollowups)
}

func TestMaintenanceWorkspaceViolation(t *testing.T) {
	var events []domain.ExecutionFact
	for i := 0; i < 4; i++ {
		events = append(events, domain.ExecutionFact{
			ExecutionEvent: domain.ExecutionEvent{EventType: domain.EventCompleted, Timestamp: today},
			TaskType:       domain.TaskTypeA, WorkspaceID: "m",
		})
	}
	in := Input{Workspaces: []domain.Workspace{{ID: "m", Mode: domain.ModeManutencao}}, Events: events}
	assert.Equal(t, 1, modeViolations(in, 3))
	assert.Equal(t, 0, modeViolations(in, 4))
}
