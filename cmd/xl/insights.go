package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"execline/internal/engine"
	"execline/internal/evolution"
	"execline/internal/focus"
	"execline/internal/journal"
)

func addDateFlag(cmd *cobra.Command, date *string) {
	cmd.Flags().StringVar(date, "date", "", "calendar date YYYY-MM-DD (defaults to today)")
}

func briefingCmd() *cobra.Command {
	var date string
	var strict bool
	cmd := &cobra.Command{
		Use:   "briefing",
		Short: "Daily briefing: capacity, top 3, alerts and lists",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				b, err := e.GetBriefing(ctx, date, viper.GetString("workspace-id"), strict)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(b)
				}
				c := b.Capacity
				fmt.Printf("Briefing %s  open tasks: %d  score: %d (%s)\n", b.Date, b.OpenTasks, b.Score.Index, b.Score.Stage.Label)
				fmt.Printf("Capacity: %d min free of %d, planned %d", c.Capacity, c.BaseDayMinutes, c.PlannedTaskMinutes)
				if c.IsUnrealistic {
					fmt.Printf("  OVERLOAD +%d min", c.Overload)
				}
				fmt.Println()
				renderCommitment(b.Top3)

				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("Alerts")
				tw.AppendHeader(table.Row{"Alert", "Count", "Message"})
				for _, a := range b.Alerts {
					if a.Active {
						tw.AppendRow(table.Row{a.Code, a.Count, a.Message})
					}
				}
				if tw.Length() == 0 {
					fmt.Println("No active alerts.")
				} else {
					tw.Render()
				}
				renderLists(b)
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	cmd.Flags().BoolVar(&strict, "strict", false, "only suggest well-defined tasks")
	return cmd
}

func renderLists(b engine.Briefing) {
	l := b.Lists
	if len(l.GhostProjects) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Ghost projects")
		tw.AppendHeader(table.Row{"Project", "Title", "Idle days"})
		for _, g := range l.GhostProjects {
			tw.AppendRow(table.Row{g.ProjectID, g.Title, g.IdleDays})
		}
		tw.Render()
	}
	if len(l.WaitingFollowups) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Waiting follow-ups")
		tw.AppendHeader(table.Row{"Task", "Title", "Waiting on", "Overdue", "Score"})
		for _, w := range l.WaitingFollowups {
			tw.AppendRow(table.Row{w.TaskID, w.Title, w.WaitingOn, w.OverdueDays, w.Score})
		}
		tw.Render()
	}
	if len(l.VagueTasks) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Vague tasks")
		tw.AppendHeader(table.Row{"Task", "Title", "Missing"})
		for _, v := range l.VagueTasks {
			tw.AppendRow(table.Row{v.TaskID, v.Title, strings.Join(v.Missing, ", ")})
		}
		tw.Render()
	}
	if len(l.RescheduleRiskTasks) > 0 {
		tw := table.NewWriter()
		tw.SetOutputMirror(os.Stdout)
		tw.SetTitle("Reschedule risk")
		tw.AppendHeader(table.Row{"Task", "Title", "Delays"})
		for _, t := range l.RescheduleRiskTasks {
			tw.AppendRow(table.Row{t.TaskID, t.Title, t.Delays})
		}
		tw.Render()
	}
}

func renderCommitment(c focus.Commitment) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	title := "Top 3 (suggested)"
	if c.Locked {
		title = "Top 3 (locked)"
	}
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"#", "Task", "Title", "Priority", "Project"})
	for i, t := range c.Tasks {
		tw.AppendRow(table.Row{i + 1, t.ID, t.Title, t.Priority, deref(t.ProjectID)})
	}
	tw.Render()
	if c.Note != "" {
		fmt.Println("Note:", c.Note)
	}
	for _, d := range c.Dropped {
		fmt.Printf("Dropped %s (%s): %s\n", d.TaskID, d.Title, d.Reason)
	}
	if c.GuidedSwapNeeded && len(c.SwapProposal) > 0 {
		ids := make([]string, 0, len(c.SwapProposal))
		for _, t := range c.SwapProposal {
			ids = append(ids, t.ID)
		}
		fmt.Println("Swap proposal:", strings.Join(ids, ", "))
	}
}

func top3Cmd() *cobra.Command {
	top := &cobra.Command{Use: "top3", Short: "Top focus of the day"}
	var date string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the top focus of the day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.GetTop3Commitment(ctx, date, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				return printCommitment(c)
			})
		},
	}
	addDateFlag(show, &date)

	var note string
	commit := &cobra.Command{
		Use:   "commit <task-id>...",
		Short: "Lock up to three type a tasks for the day",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.CommitTop3(ctx, date, viper.GetString("workspace-id"), args, note, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printCommitment(c)
			})
		},
	}
	addDateFlag(commit, &date)
	commit.Flags().StringVar(&note, "note", "", "why these tasks")

	unlock := &cobra.Command{
		Use:   "clear",
		Short: "Unlock the day",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.ClearTop3Commitment(ctx, date, viper.GetString("workspace-id"), viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printCommitment(c)
			})
		},
	}
	addDateFlag(unlock, &date)

	top.AddCommand(show, commit, unlock)
	return top
}

func printCommitment(c focus.Commitment) error {
	if viper.GetBool("json") {
		return printJSON(c)
	}
	renderCommitment(c)
	return nil
}

func renderRules(title string, rules []evolution.Rule) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetTitle(title)
	tw.AppendHeader(table.Row{"Rule", "Current", "Target", "Status", "Points", "Impact"})
	for _, r := range rules {
		op := ">="
		if r.Operator == "lte" {
			op = "<="
		}
		tw.AppendRow(table.Row{r.Label, fmt.Sprintf("%.1f", r.Current), fmt.Sprintf("%s %.1f", op, r.Target), r.Status, fmt.Sprintf("%d/%d", r.Contribution, r.Weight), r.Impact})
	}
	tw.Render()
}

func scoreCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Execution score of the last days",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GetExecutionScore(ctx, date, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("Index %d  stage %s  (%d critical, %d warning) over %d days\n", s.Index, s.Stage.Label, s.CriticalCount, s.WarningCount, s.WindowDays)
				if s.NextStage != nil {
					fmt.Printf("Next stage: %s at %.0f\n", s.NextStage.Label, s.NextStage.MinIndex)
				}
				renderRules("Rules", s.Rules)
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func evolutionCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "evolution",
		Short: "Evolution against the previous window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				r, err := e.GetEvolutionEngine(ctx, date, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(r)
				}
				a := r.Analysis
				fmt.Printf("Index %d (previous %d, %+d, %s)  stage %s  confidence %d%%\n", a.Index, a.PreviousIndex, a.DeltaIndex, a.Trend, a.Stage.Label, a.Confidence)
				fmt.Printf("Better days %d/%d  promotion recommended: %t  regression risk: %t\n", a.BetterDays, a.RequiredBetterDays, a.PromotionRecommended, a.RegressionRisk)
				fmt.Printf("Self-assessment: perceived %s, objective %s, %s\n", a.Perception.PerceivedLevel, a.Perception.ObjectiveLevel, a.Perception.Alignment)
				for _, line := range a.Narrative {
					fmt.Println("-", line)
				}
				renderRules("Rules", r.Rules)
				renderJournal(r.Journal)
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func pulseCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "pulse",
		Short: "Weekly pulse",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.GetWeeklyPulse(ctx, date, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(p)
				}
				fmt.Printf("Index %d (previous %d, %+d, %s)  stage %s\n", p.Index, p.PreviousIndex, p.DeltaIndex, p.Trend, p.Stage.Label)
				fmt.Printf("Completed %d  delayed %d  deep work %.1fh  consistency %.0f%%\n", p.Completed, p.Delayed, p.DeepWorkHours, p.ConsistencyPercent)
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.SetTitle("Daily scores")
				header := table.Row{"Week"}
				for i := range p.DailyScores {
					header = append(header, fmt.Sprintf("D%d", i+1))
				}
				tw.AppendHeader(header)
				tw.AppendRow(scoreRow("current", p.DailyScores))
				tw.AppendRow(scoreRow("previous", p.PreviousDailyScores))
				tw.Render()
				if len(p.TopLeaks) > 0 {
					renderRules("Top leaks", p.TopLeaks)
				}
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func scoreRow(label string, scores []int) table.Row {
	row := table.Row{label}
	for _, s := range scores {
		row = append(row, s)
	}
	return row
}

func journalCmd() *cobra.Command {
	var date string
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Decision journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				j, err := e.GetDecisionJournal(ctx, date, viper.GetString("workspace-id"))
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(j)
				}
				renderJournal(j.Journal)
				return nil
			})
		},
	}
	addDateFlag(cmd, &date)
	return cmd
}

func renderJournal(j journal.Journal) {
	fmt.Printf("Decision quality %d  (executiva %d, risco %d, neutra %d)\n", j.DecisionQualityScore, j.ExecutiveCount, j.RiskCount, j.NeutralCount)
	if len(j.Entries) == 0 {
		return
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"When", "Source", "Title", "Signal", "Impact"})
	for _, en := range j.Entries {
		tw.AppendRow(table.Row{en.UpdatedAt.Format("2006-01-02 15:04"), en.Source, en.Title, en.Signal, en.ImpactScore})
	}
	tw.Render()
}
