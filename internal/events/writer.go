package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"execline/internal/domain"
	"execline/internal/repo"
)

// Writer appends strategic decision events. It never updates or deletes.
type Writer struct {
	Repo repo.Repo
	Now  func() time.Time
}

type EventPayload map[string]any

// Record describes one decision to append. Empty ids are stored as NULL.
type Record struct {
	Code        string
	Signal      domain.Signal
	ImpactScore int
	WorkspaceID string
	ProjectID   string
	TaskID      string
	ActorID     string
	Payload     any
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, rec Record) (domain.DecisionEvent, error) {
	if w.Now == nil {
		w.Now = time.Now
	}
	if rec.Signal == "" {
		rec.Signal = domain.SignalNeutra
	}
	payload := rec.Payload
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.DecisionEvent{}, fmt.Errorf("marshal event payload: %w", err)
	}
	evt := domain.DecisionEvent{
		ID:          uuid.NewString(),
		WorkspaceID: optional(rec.WorkspaceID),
		ProjectID:   optional(rec.ProjectID),
		TaskID:      optional(rec.TaskID),
		EventCode:   rec.Code,
		Signal:      rec.Signal,
		ImpactScore: rec.ImpactScore,
		Payload:     string(data),
		CreatedAt:   w.Now().UTC().Truncate(time.Millisecond),
	}
	if err := w.Repo.InsertDecisionEventTx(ctx, tx, evt, rec.ActorID); err != nil {
		return domain.DecisionEvent{}, fmt.Errorf("append %s: %w", rec.Code, err)
	}
	return evt, nil
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
