package focus

import (
	"encoding/json"
	"time"

	"execline/internal/domain"
)

const (
	EventCommitted = "top3_committed"
	EventUnlocked  = "top3_unlocked"

	// ScopeAll is the scope of a commitment made without a workspace.
	ScopeAll = "all"

	ModeLocked    = "locked"
	ModeSuggested = "suggested"
)

// Scope maps an optional workspace id to a commitment scope.
func Scope(workspaceID string) string {
	if workspaceID == "" {
		return ScopeAll
	}
	return workspaceID
}

// Payload is the JSON body of top3_committed and top3_unlocked events.
type Payload struct {
	TaskIDs        []string `json:"taskIds,omitempty"`
	Note           string   `json:"note,omitempty"`
	WorkspaceScope string   `json:"workspaceScope"`
	Date           string   `json:"date"`
	RequestedSize  int      `json:"requestedSize,omitempty"`
}

func ParsePayload(raw string) (Payload, bool) {
	var p Payload
	if raw == "" {
		return p, false
	}
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return p, false
	}
	return p, true
}

type DroppedTask struct {
	TaskID string `json:"taskId"`
	Title  string `json:"title,omitempty"`
	Reason string `json:"reason"`
}

// Commitment is the resolved top focus of a day and scope.
type Commitment struct {
	Date             string        `json:"date"`
	WorkspaceScope   string        `json:"workspaceScope"`
	Mode             string        `json:"mode" enum:"locked,suggested"`
	Locked           bool          `json:"locked"`
	CommittedAt      *time.Time    `json:"committedAt,omitempty"`
	CommitEventID    string        `json:"commitEventId,omitempty"`
	Note             string        `json:"note,omitempty"`
	RequestedSize    int           `json:"requestedSize"`
	Tasks            []domain.Task `json:"tasks"`
	DroppedTaskIDs   []string      `json:"droppedTaskIds"`
	Dropped          []DroppedTask `json:"dropped"`
	GuidedSwapNeeded bool          `json:"guidedSwapNeeded"`
	SwapProposal     []domain.Task `json:"swapProposal"`
}

// Options tunes a resolution. Suggest filters the unlocked suggestions only.
type Options struct {
	MaxSize int
	Suggest func(domain.Task) bool
}

// Latest returns the last commit or unlock event for date and scope. Events
// are expected in append order; on equal timestamps the later one wins.
func Latest(events []domain.DecisionEvent, date, scope string) (domain.DecisionEvent, Payload, bool) {
	var (
		latest  domain.DecisionEvent
		payload Payload
		found   bool
	)
	for _, e := range events {
		if e.EventCode != EventCommitted && e.EventCode != EventUnlocked {
			continue
		}
		p, ok := ParsePayload(e.Payload)
		if !ok || p.Date != date || p.WorkspaceScope != scope {
			continue
		}
		if !found || !e.CreatedAt.Before(latest.CreatedAt) {
			latest, payload, found = e, p, true
		}
	}
	return latest, payload, found
}

// Resolve folds the decision log into the commitment for date and scope.
// Without a live commit it falls back to ranked suggestions from the pool.
func Resolve(events []domain.DecisionEvent, date, scope string, pool Pool, opts Options) Commitment {
	if opts.MaxSize <= 0 {
		opts.MaxSize = 3
	}
	c := Commitment{
		Date:           date,
		WorkspaceScope: scope,
		Tasks:          []domain.Task{},
		DroppedTaskIDs: []string{},
		Dropped:        []DroppedTask{},
		SwapProposal:   []domain.Task{},
	}

	e, p, ok := Latest(events, date, scope)
	if !ok || e.EventCode == EventUnlocked || len(p.TaskIDs) == 0 {
		c.Mode = ModeSuggested
		c.RequestedSize = opts.MaxSize
		c.Tasks = capTasks(pool.Ranked(nil, opts.Suggest), opts.MaxSize)
		return c
	}

	c.Mode = ModeLocked
	c.Locked = true
	committedAt := e.CreatedAt
	c.CommittedAt = &committedAt
	c.CommitEventID = e.ID
	c.Note = p.Note
	c.RequestedSize = p.RequestedSize
	if c.RequestedSize <= 0 {
		c.RequestedSize = len(p.TaskIDs)
	}
	c.RequestedSize = min(c.RequestedSize, opts.MaxSize)

	kept := map[string]bool{}
	for _, id := range p.TaskIDs {
		cand, found := pool.Lookup(id)
		if !found {
			c.Dropped = append(c.Dropped, DroppedTask{TaskID: id, Reason: ReasonOutOfScope})
			c.DroppedTaskIDs = append(c.DroppedTaskIDs, id)
			continue
		}
		if eligible, reason := cand.Eligible(); !eligible {
			c.Dropped = append(c.Dropped, DroppedTask{TaskID: id, Title: cand.Task.Title, Reason: reason})
			c.DroppedTaskIDs = append(c.DroppedTaskIDs, id)
			continue
		}
		kept[id] = true
		c.Tasks = append(c.Tasks, cand.Task)
	}

	c.GuidedSwapNeeded = len(c.DroppedTaskIDs) > 0 || len(c.Tasks) < c.RequestedSize
	if c.GuidedSwapNeeded {
		proposal := append([]domain.Task{}, c.Tasks...)
		proposal = append(proposal, pool.Ranked(kept, nil)...)
		c.SwapProposal = capTasks(proposal, c.RequestedSize)
	}
	return c
}

func capTasks(tasks []domain.Task, n int) []domain.Task {
	if len(tasks) > n {
		return tasks[:n]
	}
	return tasks
}
