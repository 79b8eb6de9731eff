package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"execline/internal/config"
	"execline/internal/db"
	"execline/internal/engine"
	"execline/internal/metrics"
	"execline/internal/migrate"
)

// Options are the process settings needed to open a workspace.
type Options struct {
	Workspace string
	LogLevel  string
	// JSONLogs writes raw JSON lines instead of the console format.
	JSONLogs bool
	LogOut   io.Writer
}

// App is an opened workspace: store, configuration and engine.
type App struct {
	DB      *sql.DB
	Config  *config.Config
	Engine  engine.Engine
	Logger  zerolog.Logger
	Metrics *metrics.Metrics
}

// Open prepares the workspace database, applies migrations and loads the
// engine configuration, falling back to defaults when no file exists.
func Open(ctx context.Context, opts Options) (*App, error) {
	logger, err := NewLogger(opts.LogLevel, opts.LogOut, !opts.JSONLogs)
	if err != nil {
		return nil, err
	}
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	conn, err := db.Open(db.Config{Workspace: opts.Workspace})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	applied, err := migrate.Migrate(ctx, conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if applied > 0 {
		logger.Debug().Int("applied", applied).Str("db", db.Path(opts.Workspace)).Msg("migrations applied")
	}
	m := metrics.New()
	e := engine.New(conn, cfg)
	e.Logger = logger
	e.Metrics = m
	return &App{DB: conn, Config: cfg, Engine: e, Logger: logger, Metrics: m}, nil
}

func (a *App) Close() error {
	if a == nil || a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// NewLogger builds the process logger. An empty level means info.
func NewLogger(level string, out io.Writer, console bool) (zerolog.Logger, error) {
	if out == nil {
		out = os.Stderr
	}
	lvl := zerolog.InfoLevel
	if s := strings.TrimSpace(level); s != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(s))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q", level)
		}
		lvl = parsed
	}
	if console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger(), nil
}
