package focus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execline/internal/domain"
)

var base = time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func task(id string, priority int, created time.Duration) domain.Task {
	return domain.Task{
		ID: id, WorkspaceID: "w1", Title: "Tarefa " + id, Type: domain.TaskTypeA,
		Status: domain.TaskAberta, Priority: priority, CreatedAt: base.Add(created),
	}
}

func candidates(tasks ...domain.Task) []Candidate {
	ws := domain.Workspace{ID: "w1", Mode: domain.ModeExpansao}
	out := make([]Candidate, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Candidate{Task: t, Workspace: ws})
	}
	return out
}

func commitEvent(id string, at time.Time, p Payload) domain.DecisionEvent {
	raw, _ := json.Marshal(p)
	code := EventCommitted
	if len(p.TaskIDs) == 0 {
		code = EventUnlocked
	}
	return domain.DecisionEvent{ID: id, EventCode: code, Payload: string(raw), CreatedAt: at}
}

func TestEligibilityReasons(t *testing.T) {
	ws := domain.Workspace{Mode: domain.ModeExpansao}
	active := &domain.Project{Status: domain.ProjectAtivo}
	paused := &domain.Project{Status: domain.ProjectPausado}
	open := task("t", 1, 0)

	cases := []struct {
		name   string
		task   domain.Task
		ws     domain.Workspace
		proj   *domain.Project
		restr  bool
		reason string
	}{
		{"eligible without project", open, ws, nil, false, ""},
		{"eligible with active project", open, ws, active, false, ""},
		{"type b", func() domain.Task { x := open; x.Type = domain.TaskTypeB; return x }(), ws, nil, false, ReasonNotTypeA},
		{"standby", open, domain.Workspace{Mode: domain.ModeStandby}, nil, false, ReasonWorkspaceStandby},
		{"paused project", open, ws, paused, false, ReasonProjectInactive},
		{"restriction", open, ws, nil, true, ReasonOpenRestriction},
		{"waiting", func() domain.Task { x := open; x.WaitingOn = "fornecedor"; return x }(), ws, nil, false, ReasonWaitingOnSomebody},
		{"done", func() domain.Task { x := open; x.Status = domain.TaskConcluida; return x }(), ws, nil, false, ReasonClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ok, reason := Eligibility(tc.task, tc.ws, tc.proj, tc.restr)
			assert.Equal(t, tc.reason == "", ok)
			assert.Equal(t, tc.reason, reason)
		})
	}
}

func TestRankOrder(t *testing.T) {
	early := base.AddDate(0, 0, 1)
	late := base.AddDate(0, 0, 5)
	a := task("a", 1, 0)
	b := task("b", 5, time.Hour)
	c := task("c", 5, 0)
	c.DueDate = &late
	d := task("d", 5, 2*time.Hour)
	d.DueDate = &early
	e := task("e", 5, time.Hour)

	tasks := []domain.Task{a, b, c, d, e}
	Rank(tasks)
	var ids []string
	for _, x := range tasks {
		ids = append(ids, x.ID)
	}
	assert.Equal(t, []string{"d", "c", "b", "e", "a"}, ids)
}

func TestValidateCommit(t *testing.T) {
	t2 := task("t2", 3, 0)
	t2.Type = domain.TaskTypeB
	t2.Title = "Responder e-mails"
	pool := NewPool(candidates(task("t1", 5, 0), t2, task("t3", 1, 0), task("t4", 1, 0)))

	ids, v := ValidateCommit([]string{"t1", "t1", "t3"}, pool, 3)
	require.Nil(t, v)
	assert.Equal(t, []string{"t1", "t3"}, ids)

	_, v = ValidateCommit([]string{"t1", "t2", "t3"}, pool, 3)
	require.NotNil(t, v)
	assert.Equal(t, "t2", v.TaskID)
	assert.Equal(t, "Responder e-mails", v.TaskTitle)
	assert.Equal(t, ReasonNotTypeA, v.Reason)

	_, v = ValidateCommit([]string{"", ""}, pool, 3)
	require.NotNil(t, v)
	assert.Equal(t, ReasonEmpty, v.Reason)

	_, v = ValidateCommit([]string{"t1", "t3", "t4", "t5"}, pool, 3)
	require.NotNil(t, v)
	assert.Equal(t, ReasonTooMany, v.Reason)

	_, v = ValidateCommit([]string{"nope"}, pool, 3)
	require.NotNil(t, v)
	assert.Equal(t, ReasonNotFound, v.Reason)
}

func TestResolveWithoutEventsSuggests(t *testing.T) {
	pool := NewPool(candidates(task("t1", 1, 0), task("t2", 9, 0), task("t3", 5, 0), task("t4", 3, 0)))
	c := Resolve(nil, "2024-05-10", ScopeAll, pool, Options{MaxSize: 3})
	assert.False(t, c.Locked)
	assert.Equal(t, ModeSuggested, c.Mode)
	require.Len(t, c.Tasks, 3)
	assert.Equal(t, "t2", c.Tasks[0].ID)
	assert.Equal(t, "t3", c.Tasks[1].ID)
	assert.Equal(t, "t4", c.Tasks[2].ID)
	assert.False(t, c.GuidedSwapNeeded)
}

func TestResolveSuggestFilter(t *testing.T) {
	pool := NewPool(candidates(task("t1", 1, 0), task("t2", 9, 0)))
	c := Resolve(nil, "2024-05-10", ScopeAll, pool, Options{
		MaxSize: 3,
		Suggest: func(t domain.Task) bool { return t.ID != "t2" },
	})
	require.Len(t, c.Tasks, 1)
	assert.Equal(t, "t1", c.Tasks[0].ID)
}

func TestResolveLatestEventWins(t *testing.T) {
	pool := NewPool(candidates(task("t1", 1, 0), task("t2", 2, 0), task("t3", 3, 0)))
	date := "2024-05-10"
	events := []domain.DecisionEvent{
		commitEvent("e1", base, Payload{TaskIDs: []string{"t1"}, WorkspaceScope: ScopeAll, Date: date, RequestedSize: 1}),
		commitEvent("e2", base.Add(time.Minute), Payload{WorkspaceScope: ScopeAll, Date: date}),
	}
	c := Resolve(events, date, ScopeAll, pool, Options{MaxSize: 3})
	assert.False(t, c.Locked)

	events = append(events, commitEvent("e3", base.Add(2*time.Minute), Payload{TaskIDs: []string{"t2", "t1"}, Note: "foco", WorkspaceScope: ScopeAll, Date: date, RequestedSize: 2}))
	c = Resolve(events, date, ScopeAll, pool, Options{MaxSize: 3})
	require.True(t, c.Locked)
	assert.Equal(t, "e3", c.CommitEventID)
	assert.Equal(t, "foco", c.Note)
	require.Len(t, c.Tasks, 2)
	assert.Equal(t, "t2", c.Tasks[0].ID)
	assert.Equal(t, "t1", c.Tasks[1].ID)
	assert.False(t, c.GuidedSwapNeeded)
}

func TestResolveIgnoresOtherScopesAndDays(t *testing.T) {
	pool := NewPool(candidates(task("t1", 1, 0)))
	events := []domain.DecisionEvent{
		commitEvent("e1", base, Payload{TaskIDs: []string{"t1"}, WorkspaceScope: "w1", Date: "2024-05-10", RequestedSize: 1}),
		commitEvent("e2", base, Payload{TaskIDs: []string{"t1"}, WorkspaceScope: ScopeAll, Date: "2024-05-09", RequestedSize: 1}),
	}
	c := Resolve(events, "2024-05-10", ScopeAll, pool, Options{MaxSize: 3})
	assert.False(t, c.Locked)

	c = Resolve(events, "2024-05-10", "w1", pool, Options{MaxSize: 3})
	assert.True(t, c.Locked)
}

func TestResolveDropsIneligibleAndProposesSwap(t *testing.T) {
	date := "2024-05-10"
	ws := domain.Workspace{ID: "w1", Mode: domain.ModeExpansao}
	t1 := task("t1", 9, 0)
	t1.ProjectID = ptr("p1")
	paused := &domain.Project{ID: "p1", Status: domain.ProjectPausado}
	pool := NewPool([]Candidate{
		{Task: t1, Workspace: ws, Project: paused},
		{Task: task("t2", 5, 0), Workspace: ws},
		{Task: task("t3", 4, 0), Workspace: ws},
		{Task: task("t4", 7, 0), Workspace: ws},
	})
	events := []domain.DecisionEvent{
		commitEvent("e1", base, Payload{TaskIDs: []string{"t1", "t2", "t3"}, WorkspaceScope: ScopeAll, Date: date, RequestedSize: 3}),
	}
	c := Resolve(events, date, ScopeAll, pool, Options{MaxSize: 3})
	require.True(t, c.Locked)
	assert.Equal(t, []string{"t1"}, c.DroppedTaskIDs)
	assert.Equal(t, ReasonProjectInactive, c.Dropped[0].Reason)
	assert.True(t, c.GuidedSwapNeeded)

	var proposal []string
	for _, x := range c.SwapProposal {
		proposal = append(proposal, x.ID)
	}
	assert.Equal(t, []string{"t2", "t3", "t4"}, proposal)
}

func TestResolveIsIdempotent(t *testing.T) {
	date := "2024-05-10"
	pool := NewPool(candidates(task("t1", 1, 0), task("t2", 2, 0)))
	events := []domain.DecisionEvent{
		commitEvent("e1", base, Payload{TaskIDs: []string{"t1", "missing"}, WorkspaceScope: ScopeAll, Date: date, RequestedSize: 2}),
	}
	first := Resolve(events, date, ScopeAll, pool, Options{MaxSize: 3})
	second := Resolve(events, date, ScopeAll, pool, Options{MaxSize: 3})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("resolve not idempotent (-first +second):\n%s", diff)
	}
	assert.Equal(t, []string{"missing"}, first.DroppedTaskIDs)
	assert.Equal(t, ReasonOutOfScope, first.Dropped[0].Reason)
}
