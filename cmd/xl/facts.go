package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"execline/internal/domain"
	"execline/internal/engine"
	"execline/internal/repo"
)

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	ws.AddCommand(workspaceCreateCmd())
	ws.AddCommand(workspaceListCmd())
	ws.AddCommand(workspaceModeCmd())
	return ws
}

func workspaceCreateCmd() *cobra.Command {
	var opts engine.WorkspaceOptions
	var mode string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Mode = domain.WorkspaceMode(mode)
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.CreateWorkspace(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "workspace id (generated if omitted)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "name")
	cmd.Flags().StringVar(&mode, "mode", string(domain.ModeExpansao), "mode: expansao, manutencao or standby")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func workspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListWorkspaces(ctx, "")
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Mode"})
				for _, w := range items {
					tw.AppendRow(table.Row{w.ID, w.Name, w.Mode})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func workspaceModeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mode <id> <mode>",
		Short: "Change workspace mode",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				w, err := e.SetWorkspaceMode(ctx, args[0], domain.WorkspaceMode(args[1]), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(w)
			})
		},
	}
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectUpdateCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.WorkspaceID == "" {
				opts.WorkspaceID = viper.GetString("workspace-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id (generated if omitted)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Status, "status", domain.ProjectAtivo, "status: ativo, pausado or concluido")
	cmd.Flags().BoolVar(&opts.StrategicActive, "strategic", false, "mark as strategic")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.ListProjects(ctx, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Workspace", "Title", "Status", "Strategic", "Ghost"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.WorkspaceID, p.Title, p.Status, p.StrategicActive, p.IsGhost})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func projectUpdateCmd() *cobra.Command {
	var status string
	var strategic bool
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var strategicPtr *bool
			if cmd.Flags().Changed("strategic") {
				strategicPtr = &strategic
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProject(ctx, args[0], status, strategicPtr, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "new status")
	cmd.Flags().BoolVar(&strategic, "strategic", false, "strategic flag")
	return cmd
}

func taskCmd() *cobra.Command {
	t := &cobra.Command{Use: "task", Short: "Manage tasks"}
	t.AddCommand(taskCreateCmd())
	t.AddCommand(taskListCmd())
	t.AddCommand(taskUpdateCmd())
	return t
}

func taskCreateCmd() *cobra.Command {
	var opts engine.TaskCreateOptions
	var due, followup string
	var estimate int
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a task",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.WorkspaceID == "" {
				opts.WorkspaceID = viper.GetString("workspace-id")
			}
			if cmd.Flags().Changed("estimate") {
				opts.EstimatedMinutes = &estimate
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var err error
				if opts.DueDate, err = parseDay(e, due); err != nil {
					return err
				}
				if opts.FollowupAt, err = parseInstant(e, followup); err != nil {
					return err
				}
				t, err := e.CreateTask(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "task id (generated if omitted)")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title, ideally verb + object")
	cmd.Flags().StringVar(&opts.Type, "type", domain.TaskTypeB, "task type: a, b or c")
	cmd.Flags().IntVar(&opts.Priority, "priority", 0, "priority (higher is more important)")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "estimated minutes")
	cmd.Flags().StringVar(&opts.DoneCriterion, "done", "", "done criterion")
	cmd.Flags().StringVar(&opts.WaitingOn, "waiting-on", "", "who the task is waiting on")
	cmd.Flags().StringVar(&followup, "followup", "", "follow-up time")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func taskListCmd() *cobra.Command {
	var f repo.TaskFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			f.WorkspaceID = viper.GetString("workspace-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				tasks, err := e.Repo.ListTasks(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Type", "Status", "Priority", "Project", "Waiting on"})
				for _, t := range tasks {
					tw.AppendRow(table.Row{t.ID, t.Title, t.Type, t.Status, t.Priority, deref(t.ProjectID), t.WaitingOn})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	return cmd
}

func taskUpdateCmd() *cobra.Command {
	var status, project, due, done, waiting, followup string
	var priority, estimate int
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed := cmd.Flags().Changed
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var u repo.TaskUpdate
				if changed("status") {
					u.Status = &status
				}
				if changed("project") {
					u.ProjectID = &project
				}
				if changed("priority") {
					u.Priority = &priority
				}
				if changed("estimate") {
					u.EstimatedMinutes = &estimate
				}
				if changed("done") {
					u.DoneCriterion = &done
				}
				if changed("waiting-on") {
					u.WaitingOn = &waiting
				}
				var err error
				if u.DueDate, err = parseDay(e, due); err != nil {
					return err
				}
				if u.FollowupAt, err = parseInstant(e, followup); err != nil {
					return err
				}
				t, err := e.UpdateTask(ctx, args[0], u)
				if err != nil {
					return err
				}
				return printJSONOrTable(t)
			})
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "status: aberta, concluida or cancelada")
	cmd.Flags().StringVar(&project, "project", "", "project id")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority")
	cmd.Flags().IntVar(&estimate, "estimate", 0, "estimated minutes")
	cmd.Flags().StringVar(&due, "due", "", "due date YYYY-MM-DD")
	cmd.Flags().StringVar(&done, "done", "", "done criterion")
	cmd.Flags().StringVar(&waiting, "waiting-on", "", "who the task is waiting on (empty clears)")
	cmd.Flags().StringVar(&followup, "followup", "", "follow-up time")
	return cmd
}

func restrictionCmd() *cobra.Command {
	r := &cobra.Command{Use: "restriction", Short: "Manage task restrictions"}
	r.AddCommand(&cobra.Command{
		Use:   "add <task-id> <description>",
		Short: "Block a task on a restriction",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.AddRestriction(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return printJSONOrTable(res)
			})
		},
	})
	r.AddCommand(&cobra.Command{
		Use:   "resolve <id>",
		Short: "Resolve a restriction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.ResolveRestriction(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("restriction %s resolved\n", args[0])
				return nil
			})
		},
	})
	return r
}

func eventCmd() *cobra.Command {
	var at, reason string
	cmd := &cobra.Command{
		Use:   "event <task-id> <completed|delayed|failed|confirmed>",
		Short: "Record an execution event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ts, err := parseInstant(e, at)
				if err != nil {
					return err
				}
				ev, err := e.RecordExecutionEvent(ctx, engine.ExecutionOptions{
					TaskID:        args[0],
					EventType:     domain.ExecutionEventType(args[1]),
					At:            ts,
					FailureReason: reason,
				})
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "event time (defaults to now)")
	cmd.Flags().StringVar(&reason, "reason", "", "failure reason")
	return cmd
}

func sessionCmd() *cobra.Command {
	s := &cobra.Command{Use: "session", Short: "Focus sessions"}
	var target int
	start := &cobra.Command{
		Use:   "start <task-id>",
		Short: "Start a focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fs, err := e.StartFocusSession(ctx, args[0], target)
				if err != nil {
					return err
				}
				return printJSONOrTable(fs)
			})
		},
	}
	start.Flags().IntVar(&target, "target", 0, "target minutes (defaults to the daily deep work target)")
	var broken bool
	finish := &cobra.Command{
		Use:   "finish <session-id>",
		Short: "Finish a focus session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				fs, err := e.FinishFocusSession(ctx, args[0], broken)
				if err != nil {
					return err
				}
				return printJSONOrTable(fs)
			})
		},
	}
	finish.Flags().BoolVar(&broken, "broken", false, "mark the session as broken")
	s.AddCommand(start, finish)
	return s
}

func blockCmd() *cobra.Command {
	var opts engine.PlanBlockOptions
	var from, to string
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Add a plan block",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.WorkspaceID == "" {
				opts.WorkspaceID = viper.GetString("workspace-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				start, err := parseInstant(e, from)
				if err != nil {
					return err
				}
				end, err := parseInstant(e, to)
				if err != nil {
					return err
				}
				if start == nil || end == nil {
					return fmt.Errorf("--from and --to required")
				}
				opts.Start, opts.End = *start, *end
				b, err := e.AddPlanBlock(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(b)
			})
		},
	}
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id (task block)")
	cmd.Flags().StringVar(&opts.BlockType, "type", "", "block type: task or fixed")
	cmd.Flags().StringVar(&from, "from", "", "start time")
	cmd.Flags().StringVar(&to, "to", "", "end time")
	return cmd
}

func reviewCmd() *cobra.Command {
	var opts engine.ReviewOptions
	cmd := &cobra.Command{
		Use:   "review <weekly|monthly> <period-start>",
		Short: "Write or replace a periodic review",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.PeriodType, opts.PeriodStart = args[0], args[1]
			opts.WorkspaceID = viper.GetString("workspace-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.UpsertReview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(r)
			})
		},
	}
	cmd.Flags().StringVar(&opts.Reflection, "reflection", "", "reflection")
	cmd.Flags().StringVar(&opts.StrategicDecision, "decision", "", "strategic decision")
	cmd.Flags().StringVar(&opts.NextPriority, "next-priority", "", "next priority")
	cmd.Flags().StringVar(&opts.CommitmentLevel, "commitment", "", "commitment level: baixo, medio or alto")
	cmd.Flags().StringArrayVar(&opts.ActionItems, "action", nil, "action item (repeatable)")
	return cmd
}

func decisionCmd() *cobra.Command {
	var opts engine.DecisionOptions
	var signal string
	cmd := &cobra.Command{
		Use:   "decision <code>",
		Short: "Record a strategic decision",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Code = args[0]
			opts.Signal = domain.Signal(signal)
			if opts.WorkspaceID == "" {
				opts.WorkspaceID = viper.GetString("workspace-id")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.RecordDecision(ctx, opts, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(ev)
			})
		},
	}
	cmd.Flags().StringVar(&signal, "signal", string(domain.SignalNeutra), "signal: executiva, risco or neutra")
	cmd.Flags().IntVar(&opts.ImpactScore, "impact", 1, "impact score")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.TaskID, "task", "", "task id")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note")
	return cmd
}
