// Package briefing computes the daily view helpers: capacity, alert flags and
// the ranked action lists.
package briefing

import (
	"strings"

	"execline/internal/domain"
	"execline/internal/textsignal"
)

type Capacity struct {
	BaseDayMinutes     int  `json:"baseDayMinutes"`
	FixedMinutes       int  `json:"fixedMinutes"`
	Capacity           int  `json:"capacity"`
	PlannedTaskMinutes int  `json:"plannedTaskMinutes"`
	Overload           int  `json:"overload"`
	IsUnrealistic      bool `json:"isUnrealistic"`
}

// DayCapacity subtracts fixed blocks from the base day and compares the
// remainder with the minutes planned on task blocks.
func DayCapacity(baseDayMinutes int, blocks []domain.PlanBlockFact) Capacity {
	var fixed, planned float64
	for _, b := range blocks {
		switch b.BlockType {
		case domain.BlockFixed:
			fixed += b.Minutes()
		case domain.BlockTask:
			planned += b.Minutes()
		}
	}
	c := Capacity{
		BaseDayMinutes:     baseDayMinutes,
		FixedMinutes:       int(fixed),
		PlannedTaskMinutes: int(planned),
	}
	c.Capacity = baseDayMinutes - c.FixedMinutes
	c.Overload = max(0, c.PlannedTaskMinutes-c.Capacity)
	c.IsUnrealistic = c.Overload > 0
	return c
}

// Missing attributes that make a task vague.
const (
	MissingVerbObject    = "titulo_sem_verbo_objeto"
	MissingDoneCriterion = "sem_criterio_de_pronto"
	MissingEstimate      = "sem_estimativa"
)

// IsVerbObject reports whether a title reads as an action: at least two words
// and a first word that is an infinitive or a known action verb.
func IsVerbObject(title string, verbs []string) bool {
	words := strings.Fields(textsignal.Normalize(title))
	if len(words) < 2 {
		return false
	}
	first := strings.Trim(words[0], ".,;:!?-\"'()")
	if first == "" {
		return false
	}
	for _, v := range verbs {
		if first == textsignal.Normalize(v) {
			return true
		}
	}
	return len(first) > 2 && (strings.HasSuffix(first, "ar") ||
		strings.HasSuffix(first, "er") ||
		strings.HasSuffix(first, "ir"))
}

// Vagueness lists what a task is missing to be actionable.
func Vagueness(t domain.Task, verbs []string) []string {
	var missing []string
	if !IsVerbObject(t.Title, verbs) {
		missing = append(missing, MissingVerbObject)
	}
	if strings.TrimSpace(t.DoneCriterion) == "" {
		missing = append(missing, MissingDoneCriterion)
	}
	if t.EstimatedMinutes == nil || *t.EstimatedMinutes <= 0 {
		missing = append(missing, MissingEstimate)
	}
	return missing
}

// IsVague reports whether an open type "a" task is missing any attribute.
func IsVague(t domain.Task, verbs []string) bool {
	return t.Type == domain.TaskTypeA && len(Vagueness(t, verbs)) > 0
}
