package evolution

import (
	"sort"
	"time"

	"execline/internal/domain"
)

// GhostInput is everything needed to decide which projects are ghosts at the
// end of a window.
type GhostInput struct {
	Projects     []domain.Project
	Workspaces   []domain.Workspace
	Tasks        []domain.Task
	Events       []domain.ExecutionFact
	WindowStart  time.Time
	WindowEnd    time.Time
	TractionDays int
}

// GhostProjects returns active projects, in non-standby workspaces, that show
// no traction as of the window end: no strategic touch in
// [WindowEnd-TractionDays, WindowEnd), no type "a" task completed in the
// window and no type "a" task open at WindowEnd. Projects created at or after
// WindowEnd did not exist yet and are never ghosts of that window.
func GhostProjects(in GhostInput) []domain.Project {
	standby := map[string]bool{}
	for _, w := range in.Workspaces {
		if w.Mode == domain.ModeStandby {
			standby[w.ID] = true
		}
	}
	completedA := map[string]bool{}
	for _, ev := range in.Events {
		if ev.EventType != domain.EventCompleted || ev.TaskType != domain.TaskTypeA || ev.ProjectID == nil {
			continue
		}
		if ev.Timestamp.Before(in.WindowStart) || !ev.Timestamp.Before(in.WindowEnd) {
			continue
		}
		completedA[*ev.ProjectID] = true
	}
	openA := map[string]bool{}
	for _, t := range in.Tasks {
		if t.Type != domain.TaskTypeA || t.ProjectID == nil || !t.CreatedAt.Before(in.WindowEnd) {
			continue
		}
		if openAt(t, in.WindowEnd) {
			openA[*t.ProjectID] = true
		}
	}
	cutoff := in.WindowEnd.AddDate(0, 0, -in.TractionDays)

	var ghosts []domain.Project
	for _, p := range in.Projects {
		if p.Status != domain.ProjectAtivo || standby[p.WorkspaceID] {
			continue
		}
		if !p.CreatedAt.Before(in.WindowEnd) {
			continue
		}
		if t := p.LastStrategicAt; t != nil && !t.Before(cutoff) && t.Before(in.WindowEnd) {
			continue
		}
		if completedA[p.ID] || openA[p.ID] {
			continue
		}
		ghosts = append(ghosts, p)
	}
	sort.Slice(ghosts, func(i, j int) bool { return ghosts[i].ID < ghosts[j].ID })
	return ghosts
}

// openAt reports whether t was still pending at instant end. A task completed
// after end was open then; cancellations carry no timestamp and count from now.
func openAt(t domain.Task, end time.Time) bool {
	if t.IsOpen() {
		return true
	}
	return t.Status == domain.TaskConcluida && t.CompletedAt != nil && !t.CompletedAt.Before(end)
}
