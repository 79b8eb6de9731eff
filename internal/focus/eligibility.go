package focus

import (
	"sort"

	"execline/internal/domain"
)

// Reasons a task cannot be part of the day's top focus.
const (
	ReasonNotTypeA          = "tipo_nao_a"
	ReasonWorkspaceStandby  = "workspace_standby"
	ReasonProjectInactive   = "projeto_inativo"
	ReasonOpenRestriction   = "restricao_aberta"
	ReasonWaitingOnSomebody = "aguardando_terceiro"
	ReasonClosed            = "concluida"
	ReasonOutOfScope        = "fora_do_escopo"
)

// Candidate is a task with the context its eligibility depends on.
type Candidate struct {
	Task            domain.Task
	Workspace       domain.Workspace
	Project         *domain.Project
	OpenRestriction bool
}

// Eligibility reports whether a task may be locked into the top focus.
// The first failing condition is returned as the reason.
func Eligibility(task domain.Task, ws domain.Workspace, project *domain.Project, hasOpenRestriction bool) (bool, string) {
	switch {
	case task.Type != domain.TaskTypeA:
		return false, ReasonNotTypeA
	case ws.Mode == domain.ModeStandby:
		return false, ReasonWorkspaceStandby
	case project != nil && project.Status != domain.ProjectAtivo:
		return false, ReasonProjectInactive
	case hasOpenRestriction:
		return false, ReasonOpenRestriction
	case task.WaitingOn != "":
		return false, ReasonWaitingOnSomebody
	case !task.IsOpen():
		return false, ReasonClosed
	}
	return true, ""
}

func (c Candidate) Eligible() (bool, string) {
	return Eligibility(c.Task, c.Workspace, c.Project, c.OpenRestriction)
}

// Rank sorts tasks by priority desc, due date asc with missing dates last,
// then creation time and id.
func Rank(tasks []domain.Task) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i], tasks[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		switch {
		case a.DueDate != nil && b.DueDate == nil:
			return true
		case a.DueDate == nil && b.DueDate != nil:
			return false
		case a.DueDate != nil && !a.DueDate.Equal(*b.DueDate):
			return a.DueDate.Before(*b.DueDate)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Pool is the set of tasks visible in a scope, indexed by id, with the
// eligible ones kept in rank order.
type Pool struct {
	byID   map[string]Candidate
	ranked []domain.Task
}

func NewPool(candidates []Candidate) Pool {
	p := Pool{byID: make(map[string]Candidate, len(candidates))}
	for _, c := range candidates {
		p.byID[c.Task.ID] = c
		if ok, _ := c.Eligible(); ok {
			p.ranked = append(p.ranked, c.Task)
		}
	}
	Rank(p.ranked)
	return p
}

func (p Pool) Lookup(id string) (Candidate, bool) {
	c, ok := p.byID[id]
	return c, ok
}

// Ranked returns the eligible tasks in rank order, skipping ids in exclude
// and tasks rejected by keep (when keep is non-nil).
func (p Pool) Ranked(exclude map[string]bool, keep func(domain.Task) bool) []domain.Task {
	out := make([]domain.Task, 0, len(p.ranked))
	for _, t := range p.ranked {
		if exclude[t.ID] {
			continue
		}
		if keep != nil && !keep(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Violation names the task that made a commit invalid.
type Violation struct {
	TaskID    string
	TaskTitle string
	Reason    string
}

// Commit validation reasons that are not eligibility reasons.
const (
	ReasonEmpty    = "lista_vazia"
	ReasonTooMany  = "excede_limite"
	ReasonNotFound = "tarefa_nao_encontrada"
)

// ValidateCommit dedups ids preserving order and checks every id against
// the pool. It returns the deduped list or the first violation.
func ValidateCommit(ids []string, pool Pool, maxSize int) ([]string, *Violation) {
	seen := map[string]bool{}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, &Violation{Reason: ReasonEmpty}
	}
	if len(out) > maxSize {
		return nil, &Violation{TaskID: out[maxSize], Reason: ReasonTooMany}
	}
	for _, id := range out {
		c, ok := pool.Lookup(id)
		if !ok {
			return nil, &Violation{TaskID: id, Reason: ReasonNotFound}
		}
		if ok, reason := c.Eligible(); !ok {
			return nil, &Violation{TaskID: id, TaskTitle: c.Task.Title, Reason: reason}
		}
	}
	return out, nil
}
