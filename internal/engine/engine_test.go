package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"execline/internal/briefing"
	"execline/internal/config"
	"execline/internal/db"
	"execline/internal/domain"
	"execline/internal/engine"
	"execline/internal/focus"
	"execline/internal/journal"
	"execline/internal/migrate"
	"execline/internal/repo"
)

var base = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

const today = "2025-03-10"

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
	now    *time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	ctx := context.Background()
	if _, err := migrate.Migrate(ctx, conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	env := &testEnv{Ctx: ctx}
	now := base
	env.now = &now
	env.Engine = engine.New(conn, config.Default())
	env.Engine.Now = func() time.Time { return *env.now }
	return env
}

func (env *testEnv) advance(d time.Duration) {
	*env.now = env.now.Add(d)
}

func (env *testEnv) workspace(t *testing.T, id string, mode domain.WorkspaceMode) {
	t.Helper()
	if _, err := env.Engine.CreateWorkspace(env.Ctx, engine.WorkspaceOptions{ID: id, Name: id, Mode: mode}); err != nil {
		t.Fatalf("create workspace %s: %v", id, err)
	}
}

func (env *testEnv) project(t *testing.T, id, ws string) {
	t.Helper()
	if _, err := env.Engine.CreateProject(env.Ctx, engine.ProjectOptions{ID: id, WorkspaceID: ws, Title: "Projeto " + id, StrategicActive: true}); err != nil {
		t.Fatalf("create project %s: %v", id, err)
	}
}

func (env *testEnv) task(t *testing.T, opts engine.TaskCreateOptions) domain.Task {
	t.Helper()
	if opts.EstimatedMinutes == nil {
		est := 60
		opts.EstimatedMinutes = &est
	}
	if opts.DoneCriterion == "" {
		opts.DoneCriterion = "revisado"
	}
	task, err := env.Engine.CreateTask(env.Ctx, opts)
	if err != nil {
		t.Fatalf("create task %s: %v", opts.ID, err)
	}
	return task
}

// seedFocus builds w1 with projects p1 and p2 and a mix of tasks.
func seedFocus(t *testing.T, env *testEnv) {
	t.Helper()
	env.workspace(t, "w1", domain.ModeExpansao)
	env.workspace(t, "w2", domain.ModeStandby)
	env.project(t, "p1", "w1")
	env.project(t, "p2", "w1")
	env.task(t, engine.TaskCreateOptions{ID: "t1", ProjectID: "p1", Title: "Escrever proposta comercial", Type: "a", Priority: 5})
	env.task(t, engine.TaskCreateOptions{ID: "t2", ProjectID: "p1", Title: "Responder e-mails", Type: "b", Priority: 9})
	env.task(t, engine.TaskCreateOptions{ID: "t3", ProjectID: "p2", Title: "Revisar contrato", Type: "a", Priority: 4})
	env.task(t, engine.TaskCreateOptions{ID: "t4", ProjectID: "p2", Title: "Publicar artigo", Type: "a", Priority: 3})
	env.task(t, engine.TaskCreateOptions{ID: "t5", ProjectID: "p2", Title: "Definir roadmap", Type: "a", Priority: 2})
	env.task(t, engine.TaskCreateOptions{ID: "t6", WorkspaceID: "w2", Title: "Montar deck", Type: "a", Priority: 8})
}

func taskIDs(tasks []domain.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestCommitTop3RejectsTaskOfWrongTypeByTitle(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)

	_, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1", "t2", "t3"}, "", "tester")
	if err == nil {
		t.Fatalf("expected validation error")
	}
	var v engine.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected ValidationError, got %T %v", err, err)
	}
	if v.TaskID != "t2" || !strings.Contains(err.Error(), "Responder e-mails") {
		t.Fatalf("error should name t2 by title: %v", err)
	}
	c, err := env.Engine.GetTop3Commitment(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("get top3: %v", err)
	}
	if c.Locked {
		t.Fatalf("failed commit must not lock the day")
	}
}

func TestCommitTop3Validation(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)
	env.task(t, engine.TaskCreateOptions{ID: "t7", ProjectID: "p2", Title: "Ligar para fornecedor", Type: "a", WaitingOn: "fornecedor"})
	env.task(t, engine.TaskCreateOptions{ID: "t8", ProjectID: "p2", Title: "Fechar orçamento", Type: "a"})
	if _, err := env.Engine.AddRestriction(env.Ctx, "t8", "aguardando aprovação"); err != nil {
		t.Fatalf("restriction: %v", err)
	}

	cases := []struct {
		name   string
		ws     string
		ids    []string
		taskID string
	}{
		{name: "empty", ws: "w1", ids: []string{"", ""}},
		{name: "too many", ws: "w1", ids: []string{"t1", "t3", "t4", "t5"}, taskID: "t5"},
		{name: "unknown", ws: "w1", ids: []string{"t1", "nope"}, taskID: "nope"},
		{name: "other workspace", ws: "w1", ids: []string{"t6"}, taskID: "t6"},
		{name: "standby", ws: "", ids: []string{"t6"}, taskID: "t6"},
		{name: "waiting", ws: "w1", ids: []string{"t7"}, taskID: "t7"},
		{name: "restriction", ws: "w1", ids: []string{"t8"}, taskID: "t8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CommitTop3(env.Ctx, today, tc.ws, tc.ids, "", "tester")
			var v engine.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if v.TaskID != tc.taskID {
				t.Fatalf("task id = %q, want %q (%v)", v.TaskID, tc.taskID, err)
			}
		})
	}

	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1"}, "", ""); !engine.IsValidation(err) {
		t.Fatalf("missing actor should be a validation error, got %v", err)
	}
	if _, err := env.Engine.CommitTop3(env.Ctx, "10/03/2025", "w1", []string{"t1"}, "", "tester"); !engine.IsValidation(err) {
		t.Fatalf("bad date should be a validation error, got %v", err)
	}
	if _, err := env.Engine.CommitTop3(env.Ctx, today, "ghost", []string{"t1"}, "", "tester"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown workspace should be not found, got %v", err)
	}
}

func TestCommitTop3DedupsAndLocks(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)

	c, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t3", "t1", "t3"}, "semana do contrato", "tester")
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !c.Locked || c.Mode != focus.ModeLocked {
		t.Fatalf("expected locked commitment, got %+v", c)
	}
	if diff := cmp.Diff([]string{"t3", "t1"}, taskIDs(c.Tasks)); diff != "" {
		t.Fatalf("locked tasks (-want +got):\n%s", diff)
	}
	if c.RequestedSize != 2 || c.GuidedSwapNeeded || c.Note != "semana do contrato" {
		t.Fatalf("unexpected commitment %+v", c)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "p2")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.LastStrategicAt == nil || !p.LastStrategicAt.Equal(base) {
		t.Fatalf("commit should touch the project, got %v", p.LastStrategicAt)
	}
}

func TestLockedCommitmentDropsIneligibleTask(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)

	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1", "t3", "t4"}, "", "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	env.advance(time.Hour)
	if _, err := env.Engine.UpdateProject(env.Ctx, "p1", domain.ProjectPausado, nil, "tester"); err != nil {
		t.Fatalf("pause project: %v", err)
	}

	c, err := env.Engine.GetTop3Commitment(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("get top3: %v", err)
	}
	if !c.Locked {
		t.Fatalf("commitment should stay locked")
	}
	if diff := cmp.Diff([]string{"t1"}, c.DroppedTaskIDs); diff != "" {
		t.Fatalf("dropped (-want +got):\n%s", diff)
	}
	if c.Dropped[0].Reason != focus.ReasonProjectInactive {
		t.Fatalf("drop reason = %s", c.Dropped[0].Reason)
	}
	if !c.GuidedSwapNeeded {
		t.Fatalf("expected guided swap")
	}
	if diff := cmp.Diff([]string{"t3", "t4", "t5"}, taskIDs(c.SwapProposal)); diff != "" {
		t.Fatalf("swap proposal (-want +got):\n%s", diff)
	}
}

func TestClearTop3AndLatestWins(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)

	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t4"}, "", "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	c, err := env.Engine.ClearTop3Commitment(env.Ctx, today, "w1", "tester")
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if c.Locked || c.Mode != focus.ModeSuggested {
		t.Fatalf("expected suggestions after clear, got %+v", c)
	}
	if diff := cmp.Diff([]string{"t1", "t3", "t4"}, taskIDs(c.Tasks)); diff != "" {
		t.Fatalf("suggestions (-want +got):\n%s", diff)
	}

	// same timestamp: append order decides
	c, err = env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t5"}, "", "tester")
	if err != nil {
		t.Fatalf("recommit: %v", err)
	}
	if !c.Locked || len(c.Tasks) != 1 || c.Tasks[0].ID != "t5" {
		t.Fatalf("latest commit should win, got %+v", c)
	}
}

func TestCommitmentIsScopedByWorkspaceAndDay(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)

	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1"}, "", "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	all, err := env.Engine.GetTop3Commitment(env.Ctx, today, "")
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if all.Locked || all.WorkspaceScope != focus.ScopeAll {
		t.Fatalf("all scope should be unlocked, got %+v", all)
	}
	next, err := env.Engine.GetTop3Commitment(env.Ctx, "2025-03-11", "w1")
	if err != nil {
		t.Fatalf("get next day: %v", err)
	}
	if next.Locked {
		t.Fatalf("next day should be unlocked")
	}
}

func TestGetTop3CommitmentIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)
	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1", "t3"}, "", "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	first, err := env.Engine.GetTop3Commitment(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	second, err := env.Engine.GetTop3Commitment(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("reads differ (-first +second):\n%s", diff)
	}
}

func TestExecutionScoreOnEmptyWindow(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)

	s, err := env.Engine.GetExecutionScore(env.Ctx, today, "")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	m := s.Metrics
	if m.ACompletionRate != 0 || m.RescheduleRate != 0 || m.ProjectConnectionRate != 0 || m.DeepWorkHoursPerWeek != 0 || m.ConsistencyPercent != 0 {
		t.Fatalf("expected zero rates, got %+v", m)
	}
	if diff := cmp.Diff(make([]int, 7), m.DailyScores); diff != "" {
		t.Fatalf("daily scores (-want +got):\n%s", diff)
	}
	if s.Stage.ID != "reativo" {
		t.Fatalf("stage = %s", s.Stage.ID)
	}
	// only the lte rules pass on an empty window
	if s.Index != 28 {
		t.Fatalf("index = %d, want 28", s.Index)
	}
	if !s.WindowStart.Equal(time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)) || !s.WindowEnd.Equal(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("window = [%s, %s)", s.WindowStart, s.WindowEnd)
	}
}

func TestExecutionScoreCountsWindowFacts(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	env.project(t, "p1", "w1")
	env.task(t, engine.TaskCreateOptions{ID: "a1", ProjectID: "p1", Title: "Escrever capítulo", Type: "a"})
	env.task(t, engine.TaskCreateOptions{ID: "a2", ProjectID: "p1", Title: "Revisar capítulo", Type: "a"})
	env.task(t, engine.TaskCreateOptions{ID: "b1", WorkspaceID: "w1", Title: "Pagar contas", Type: "b"})

	record := func(id string, typ domain.ExecutionEventType, at time.Time) {
		t.Helper()
		if _, err := env.Engine.RecordExecutionEvent(env.Ctx, engine.ExecutionOptions{TaskID: id, EventType: typ, At: &at}); err != nil {
			t.Fatalf("record %s %s: %v", id, typ, err)
		}
	}
	record("a2", domain.EventDelayed, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC))
	record("a1", domain.EventCompleted, time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC))
	record("a2", domain.EventDelayed, time.Date(2025, 3, 9, 11, 0, 0, 0, time.UTC))
	record("b1", domain.EventCompleted, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))

	s, err := env.Engine.GetExecutionScore(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	c := s.Metrics.Counts
	if c.Actionable != 3 || c.Completed != 2 || c.Delayed != 1 || c.ActionableA != 2 || c.CompletedA != 1 {
		t.Fatalf("unexpected counts %+v", c)
	}
	if s.Metrics.ACompletionRate != 50 || s.Metrics.RescheduleRate != 33 || s.Metrics.ProjectConnectionRate != 50 {
		t.Fatalf("unexpected rates %+v", s.Metrics)
	}
	for _, r := range s.Rules {
		if r.Contribution+r.Impact != r.Weight {
			t.Fatalf("rule %s breaks contribution+impact=weight: %+v", r.ID, r)
		}
	}
}

func TestRecordExecutionEventCompletesTask(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	env.project(t, "p1", "w1")
	env.task(t, engine.TaskCreateOptions{ID: "a1", ProjectID: "p1", Title: "Escrever capítulo", Type: "a"})

	if _, err := env.Engine.RecordExecutionEvent(env.Ctx, engine.ExecutionOptions{TaskID: "a1", EventType: domain.EventCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	task, err := env.Engine.Repo.GetTask(env.Ctx, "a1")
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Status != domain.TaskConcluida || task.CompletedAt == nil {
		t.Fatalf("task not closed: %+v", task)
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.LastStrategicAt == nil {
		t.Fatalf("completing an a task should touch the project")
	}
	if _, err := env.Engine.RecordExecutionEvent(env.Ctx, engine.ExecutionOptions{TaskID: "a1", EventType: "skipped"}); !engine.IsValidation(err) {
		t.Fatalf("unknown event type should fail validation, got %v", err)
	}
	if _, err := env.Engine.RecordExecutionEvent(env.Ctx, engine.ExecutionOptions{TaskID: "zz", EventType: domain.EventFailed}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("unknown task should be not found, got %v", err)
	}
}

func TestFocusSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	env.project(t, "p1", "w1")
	env.task(t, engine.TaskCreateOptions{ID: "a1", ProjectID: "p1", Title: "Escrever capítulo", Type: "a"})

	s, err := env.Engine.StartFocusSession(env.Ctx, "a1", 0)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if s.TargetMinutes != 45 || s.ProjectID == nil || *s.ProjectID != "p1" {
		t.Fatalf("unexpected session %+v", s)
	}
	env.advance(50 * time.Minute)
	done, err := env.Engine.FinishFocusSession(env.Ctx, s.ID, false)
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if done.State != domain.SessionCompleted || done.ActualMinutes != 50 {
		t.Fatalf("unexpected finished session %+v", done)
	}
	if _, err := env.Engine.FinishFocusSession(env.Ctx, s.ID, true); !engine.IsValidation(err) {
		t.Fatalf("finishing twice should fail validation, got %v", err)
	}

	score, err := env.Engine.GetExecutionScore(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if score.Metrics.Counts.DeepMinutes != 50 {
		t.Fatalf("deep minutes = %v", score.Metrics.Counts.DeepMinutes)
	}
}

func TestEvolutionEngineCrossChecksMonthlyReview(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	_, err := env.Engine.UpsertReview(env.Ctx, engine.ReviewOptions{
		PeriodType:        domain.PeriodMonthly,
		PeriodStart:       "2025-03-01",
		StrategicDecision: "Cortar frentes, eliminar reuniões, delegar suporte e priorizar o livro",
		Reflection:        "Mês disperso, procrastinei muito e fiquei travado.",
		CommitmentLevel:   "alto",
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	rep, err := env.Engine.GetEvolutionEngine(env.Ctx, today, "")
	if err != nil {
		t.Fatalf("evolution: %v", err)
	}
	if rep.WindowDays != 28 || len(rep.Current.DailyScores) != 28 || len(rep.Previous.DailyScores) != 28 {
		t.Fatalf("unexpected windows: %d %d %d", rep.WindowDays, len(rep.Current.DailyScores), len(rep.Previous.DailyScores))
	}
	if !rep.PreviousStart.Equal(rep.WindowStart.AddDate(0, 0, -28)) {
		t.Fatalf("previous window should end where the current starts")
	}
	if rep.ReviewPeriod != "2025-03-01" {
		t.Fatalf("review period = %q", rep.ReviewPeriod)
	}
	p := rep.Analysis.Perception
	if p.PerceivedLevel != "baixo" || p.LowHits != 3 {
		t.Fatalf("unexpected perception %+v", p)
	}
	if rep.Analysis.PromotionRecommended {
		t.Fatalf("promotion cannot be recommended on an empty window")
	}
	if rep.Analysis.Stage.ID != "reativo" || rep.Analysis.Trend != "estavel" {
		t.Fatalf("unexpected analysis %+v", rep.Analysis)
	}
	if len(rep.Journal.Entries) != 1 {
		t.Fatalf("journal entries = %d", len(rep.Journal.Entries))
	}
	entry := rep.Journal.Entries[0]
	if entry.Source != journal.SourceReview || entry.Signal != domain.SignalExecutiva || entry.ImpactScore != 2 {
		t.Fatalf("unexpected journal entry %+v", entry)
	}
}

func TestDecisionJournalMergesRuntimeEvents(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)
	if _, err := env.Engine.CommitTop3(env.Ctx, today, "w1", []string{"t1"}, "", "tester"); err != nil {
		t.Fatalf("commit: %v", err)
	}
	env.advance(time.Minute)
	if _, err := env.Engine.RecordDecision(env.Ctx, engine.DecisionOptions{
		Code:        "adiar_lancamento",
		Signal:      domain.SignalRisco,
		ImpactScore: -1,
		WorkspaceID: "w1",
		Note:        "Lançamento fica para abril",
	}, "tester"); err != nil {
		t.Fatalf("record decision: %v", err)
	}

	j, err := env.Engine.GetDecisionJournal(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	if len(j.Entries) != 2 {
		t.Fatalf("entries = %d", len(j.Entries))
	}
	if j.Entries[0].EventCode != "adiar_lancamento" || j.Entries[0].Text != "Lançamento fica para abril" {
		t.Fatalf("newest entry first, got %+v", j.Entries[0])
	}
	if j.Entries[1].EventCode != focus.EventCommitted || j.Entries[1].Signal != domain.SignalExecutiva {
		t.Fatalf("commit event should be executive, got %+v", j.Entries[1])
	}
	if j.ExecutiveCount != 1 || j.RiskCount != 1 || j.DecisionQualityScore != journal.QualityScore(1, 1, 0) {
		t.Fatalf("unexpected counts %+v", j.Journal)
	}
}

func TestWeeklyPulseComparesWeeks(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	env.project(t, "p1", "w1")
	for i, day := range []int{5, 6, 7, 8, 9, 10} {
		task := env.task(t, engine.TaskCreateOptions{ProjectID: "p1", Title: "Escrever seção", Type: "a", Priority: i})
		at := time.Date(2025, 3, day, 10, 0, 0, 0, time.UTC)
		if _, err := env.Engine.RecordExecutionEvent(env.Ctx, engine.ExecutionOptions{TaskID: task.ID, EventType: domain.EventCompleted, At: &at}); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	p, err := env.Engine.GetWeeklyPulse(env.Ctx, today, "w1")
	if err != nil {
		t.Fatalf("pulse: %v", err)
	}
	if p.Completed != 6 || len(p.DailyScores) != 7 || len(p.PreviousDailyScores) != 7 {
		t.Fatalf("unexpected pulse %+v", p)
	}
	if p.DailyScores[0] != 0 || p.DailyScores[1] == 0 {
		t.Fatalf("daily scores = %v", p.DailyScores)
	}
	if p.DeltaIndex != p.Index-p.PreviousIndex || p.Trend != "subindo" {
		t.Fatalf("delta %d trend %s", p.DeltaIndex, p.Trend)
	}
}

func TestGetBriefingAssemblesDay(t *testing.T) {
	env := newTestEnv(t)
	seedFocus(t, env)
	env.project(t, "p3", "w1")
	est := 30
	env.task(t, engine.TaskCreateOptions{ID: "v1", ProjectID: "p2", Title: "Coisas", Type: "a", Priority: 10, EstimatedMinutes: &est})
	env.task(t, engine.TaskCreateOptions{ID: "loose", WorkspaceID: "w1", Title: "Comprar café", Type: "c"})

	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	if _, err := env.Engine.AddPlanBlock(env.Ctx, engine.PlanBlockOptions{WorkspaceID: "w1", Start: day.Add(8 * time.Hour), End: day.Add(18 * time.Hour)}); err != nil {
		t.Fatalf("fixed block: %v", err)
	}
	if _, err := env.Engine.AddPlanBlock(env.Ctx, engine.PlanBlockOptions{TaskID: "t1", Start: day.Add(18 * time.Hour), End: day.Add(26 * time.Hour)}); err != nil {
		t.Fatalf("task block: %v", err)
	}

	b, err := env.Engine.GetBriefing(env.Ctx, today, "w1", false)
	if err != nil {
		t.Fatalf("briefing: %v", err)
	}
	want := briefing.Capacity{BaseDayMinutes: 1020, FixedMinutes: 600, Capacity: 420, PlannedTaskMinutes: 480, Overload: 60, IsUnrealistic: true}
	if diff := cmp.Diff(want, b.Capacity); diff != "" {
		t.Fatalf("capacity (-want +got):\n%s", diff)
	}
	if len(b.Alerts) != 5 {
		t.Fatalf("alerts = %d", len(b.Alerts))
	}
	if b.Top3.Locked || b.Top3.Tasks[0].ID != "v1" {
		t.Fatalf("vague task leads suggestions outside strict mode: %v", taskIDs(b.Top3.Tasks))
	}
	if len(b.Lists.GhostProjects) != 1 || b.Lists.GhostProjects[0].ProjectID != "p3" {
		t.Fatalf("ghost projects = %+v", b.Lists.GhostProjects)
	}
	p3, err := env.Engine.Repo.GetProject(env.Ctx, "p3")
	if err != nil {
		t.Fatalf("get p3: %v", err)
	}
	if !p3.IsGhost {
		t.Fatalf("briefing should persist the ghost flag")
	}
	if len(b.Lists.DisconnectedTasks) != 1 || b.Lists.DisconnectedTasks[0].TaskID != "loose" {
		t.Fatalf("disconnected = %+v", b.Lists.DisconnectedTasks)
	}
	if len(b.Lists.VagueTasks) != 1 || b.Lists.VagueTasks[0].TaskID != "v1" {
		t.Fatalf("vague = %+v", b.Lists.VagueTasks)
	}

	strict, err := env.Engine.GetBriefing(env.Ctx, today, "w1", true)
	if err != nil {
		t.Fatalf("strict briefing: %v", err)
	}
	for _, task := range strict.Top3.Tasks {
		if task.ID == "v1" {
			t.Fatalf("strict mode must drop vague suggestions: %v", taskIDs(strict.Top3.Tasks))
		}
	}
	if diff := cmp.Diff([]string{"t1", "t3", "t4"}, taskIDs(strict.Top3.Tasks)); diff != "" {
		t.Fatalf("strict suggestions (-want +got):\n%s", diff)
	}
}

func TestCreateAPIKeyStoresHashOnly(t *testing.T) {
	env := newTestEnv(t)
	key, plain, err := env.Engine.CreateAPIKey(env.Ctx, "ana", "laptop")
	if err != nil {
		t.Fatalf("create key: %v", err)
	}
	if !strings.HasPrefix(plain, "xl_") || key.KeyHash == plain {
		t.Fatalf("unexpected key %q", plain)
	}
	got, err := env.Engine.Repo.GetAPIKeyByHash(env.Ctx, repo.HashAPIKey(plain))
	if err != nil || got.ActorID != "ana" {
		t.Fatalf("lookup by hash: %v %+v", err, got)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := env.Engine.RevokeAPIKey(env.Ctx, key.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("second revoke should be not found, got %v", err)
	}
}

func TestModeAndStatusChangesRollBackWithoutDecisionEvent(t *testing.T) {
	env := newTestEnv(t)
	env.workspace(t, "w1", domain.ModeExpansao)
	env.project(t, "p1", "w1")

	if _, err := env.Engine.DB.ExecContext(env.Ctx, `DROP TABLE strategic_events`); err != nil {
		t.Fatalf("drop strategic_events: %v", err)
	}

	if _, err := env.Engine.SetWorkspaceMode(env.Ctx, "w1", domain.ModeStandby, "tester"); err == nil {
		t.Fatalf("expected mode change to fail without the decision log")
	}
	w, err := env.Engine.Repo.GetWorkspace(env.Ctx, "w1")
	if err != nil {
		t.Fatalf("get workspace: %v", err)
	}
	if w.Mode != domain.ModeExpansao {
		t.Fatalf("workspace mode = %s, want %s", w.Mode, domain.ModeExpansao)
	}

	if _, err := env.Engine.UpdateProject(env.Ctx, "p1", domain.ProjectPausado, nil, "tester"); err == nil {
		t.Fatalf("expected status change to fail without the decision log")
	}
	p, err := env.Engine.Repo.GetProject(env.Ctx, "p1")
	if err != nil {
		t.Fatalf("get project: %v", err)
	}
	if p.Status != domain.ProjectAtivo {
		t.Fatalf("project status = %s, want %s", p.Status, domain.ProjectAtivo)
	}
}
