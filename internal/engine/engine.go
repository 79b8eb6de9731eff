package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"execline/internal/config"
	"execline/internal/events"
	"execline/internal/metrics"
	"execline/internal/repo"
)

// DateLayout is the calendar date format accepted by every read.
const DateLayout = "2006-01-02"

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Config  *config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
	Now     func() time.Time
}

func New(db *sql.DB, cfg *config.Config) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Events: events.Writer{Repo: r},
		Config: cfg,
		Logger: zerolog.Nop(),
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) writer() events.Writer {
	w := e.Events
	w.Now = e.now
	return w
}

// ValidationError rejects a command. TaskTitle is set whenever the failure
// is about a specific task.
type ValidationError struct {
	Field     string
	TaskID    string
	TaskTitle string
	Reason    string
}

func (v ValidationError) Error() string {
	switch {
	case v.TaskTitle != "":
		return fmt.Sprintf("%s: task %q (%s): %s", v.Field, v.TaskTitle, v.TaskID, v.Reason)
	case v.TaskID != "":
		return fmt.Sprintf("%s: task %s: %s", v.Field, v.TaskID, v.Reason)
	default:
		return fmt.Sprintf("%s: %s", v.Field, v.Reason)
	}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

// day resolves a YYYY-MM-DD date in the configured timezone. An empty date
// means today.
func (e Engine) day(date string) (time.Time, error) {
	loc := e.Config.Location()
	if date == "" {
		n := e.now().In(loc)
		return time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc), nil
	}
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, ValidationError{Field: "date", Reason: fmt.Sprintf("expected YYYY-MM-DD, got %q", date)}
	}
	return d, nil
}

// window returns [start, end) covering days calendar days ending with day.
func window(day time.Time, days int) (time.Time, time.Time) {
	end := day.AddDate(0, 0, 1)
	return end.AddDate(0, 0, -days), end
}

// checkWorkspace fails with repo.ErrNotFound for an unknown workspace id.
func (e Engine) checkWorkspace(ctx context.Context, workspaceID string) error {
	if workspaceID == "" {
		return nil
	}
	if _, err := e.Repo.GetWorkspace(ctx, workspaceID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("workspace %s: %w", workspaceID, err)
		}
		return err
	}
	return nil
}

// observe records one operation in metrics; use with defer.
func (e Engine) observe(op string, started time.Time, err *error) {
	e.Metrics.RecordOperation(op, started, *err)
	if *err != nil {
		e.Logger.Debug().Err(*err).Str("operation", op).Msg("operation failed")
	}
}
