package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"execline/internal/app"
	"execline/internal/db"
	"execline/internal/engine"
)

var rootCmd = &cobra.Command{
	Use:   "xl",
	Short: "Execline CLI",
	Long: `Execline turns the facts of your working days into execution insights.
Core concepts:
- Workspace directory: the .execline folder holding the SQLite database; engine settings live in execline.yml next to it.
- Workspaces, projects and tasks: type a tasks are strategic, b and c are operational. Workspace mode (expansao, manutencao, standby) limits what deserves focus.
- Facts: execution events, focus sessions, plan blocks and reviews. Everything else is derived on read.
- Execution score: weighted rules over the last 7 days; stages gate on index and metric thresholds.
- Evolution: 28 days against the 28 before, with promotion, regression and a self-assessment cross-check.
- Top 3: commit up to three type a tasks as the focus of the day; 'xl top3 clear' unlocks it.
- Decision journal: strategic decisions and reviews, scored by signal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("EXECLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("workspace", "w", ".", "workspace directory")
	flags.String("workspace-id", "", "workspace scope (empty means all workspaces)")
	flags.Bool("json", false, "output JSON")
	flags.String("actor-id", "local-user", "actor identifier")
	flags.String("log-level", "warn", "log level (debug, info, warn, error)")
	flags.Bool("log-json", false, "write logs as JSON lines")
	for _, name := range []string{"workspace", "workspace-id", "json", "actor-id", "log-level", "log-json"} {
		_ = viper.BindPFlag(name, flags.Lookup(name))
	}
}

func registerCommands() {
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(restrictionCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(sessionCmd())
	rootCmd.AddCommand(blockCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(decisionCmd())
	rootCmd.AddCommand(briefingCmd())
	rootCmd.AddCommand(top3Cmd())
	rootCmd.AddCommand(scoreCmd())
	rootCmd.AddCommand(evolutionCmd())
	rootCmd.AddCommand(pulseCmd())
	rootCmd.AddCommand(journalCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(apiKeyCmd())
	rootCmd.AddCommand(tokenCmd())
	rootCmd.AddCommand(serveCmd())
}

func openApp(ctx context.Context) (*app.App, error) {
	return app.Open(ctx, app.Options{
		Workspace: viper.GetString("workspace"),
		LogLevel:  viper.GetString("log-level"),
		JSONLogs:  viper.GetBool("log-json"),
	})
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Engine)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseDay reads a YYYY-MM-DD flag in the engine timezone. Empty stays nil.
func parseDay(e engine.Engine, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	d, err := time.ParseInLocation(engine.DateLayout, s, e.Config.Location())
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return &d, nil
}

// parseInstant accepts RFC3339 or "YYYY-MM-DD HH:MM" in the engine timezone.
func parseInstant(e engine.Engine, s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", s, e.Config.Location())
	if err != nil {
		return nil, fmt.Errorf("invalid time %q, expected RFC3339 or YYYY-MM-DD HH:MM", s)
	}
	return &t, nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
