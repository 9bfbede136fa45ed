package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/notexe/habit-alarm/internal/alarm"
	"github.com/notexe/habit-alarm/internal/app"
	"github.com/notexe/habit-alarm/internal/completion"
	"github.com/notexe/habit-alarm/internal/engine"
	"github.com/notexe/habit-alarm/internal/model"
	"github.com/notexe/habit-alarm/internal/ui"
)

// withApp opens the app for the duration of fn.
func withApp(fn func(cmd *cobra.Command, a *app.App, f *ui.Formatter, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, f, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, f, args)
	}
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alarms",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, _ []string) error {
			return runList(cmd, a, f, cmd.OutOrStdout())
		}),
	}
}

func runList(cmd *cobra.Command, a *app.App, f *ui.Formatter, w io.Writer) error {
	ctx := cmd.Context()
	alarms, err := a.Service.List(ctx)
	if err != nil {
		return err
	}
	pending, err := a.Engine.Pending(ctx, "")
	if err != nil {
		return err
	}
	counts := make(map[string]int)
	for _, t := range pending {
		counts[t.Payload.AlarmID]++
	}
	fmt.Fprintln(w, f.RenderMarkdown(ui.AlarmsMarkdown(alarms, counts)))
	return nil
}

func newPendingCmd() *cobra.Command {
	var alarmID string
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List pending notifications, soonest first",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, _ []string) error {
			pending, err := a.Engine.Pending(cmd.Context(), alarmID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.RenderMarkdown(ui.PendingMarkdown(pending, a.Location)))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&alarmID, "alarm", "a", "", "Only show notifications of this alarm")
	return cmd
}

func newAddCmd() *cobra.Command {
	var title, at, days, delay string
	var disabled bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create an alarm",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, _ []string) error {
			tod, err := model.ParseTimeOfDay(at)
			if err != nil {
				return fmt.Errorf("invalid --time: %w", err)
			}
			weekdays, err := model.ParseWeekdays(days)
			if err != nil {
				return fmt.Errorf("invalid --days: %w", err)
			}

			created, err := a.Service.Create(cmd.Context(), model.Alarm{
				Title:             title,
				Time:              tod,
				Weekdays:          weekdays,
				VerificationDelay: delay,
				Active:            !disabled,
			})
			if err != nil {
				if created == nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), f.Warning(schedulingHint(err)))
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Success(fmt.Sprintf("Alarm %s created: %s at %s, %s",
				created.ID, created.Title, created.Time, created.Weekdays.Describe())))
			return nil
		}),
	}
	cmd.Flags().StringVarP(&title, "title", "t", "", "Alarm title (required)")
	cmd.Flags().StringVar(&at, "time", "", "Time of day, HH:MM (required)")
	cmd.Flags().StringVarP(&days, "days", "d", "every_day", "every_day, weekdays, weekends or a list like mon,wed,fri")
	cmd.Flags().StringVar(&delay, "delay", model.DefaultVerificationDelay, "Verification delay, e.g. \"10 minutes\"")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the alarm switched off")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("time")
	return cmd
}

func newToggleCmd() *cobra.Command {
	var on, off bool
	cmd := &cobra.Command{
		Use:   "toggle <alarm-id>",
		Short: "Enable or disable an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, args []string) error {
			var (
				updated *model.Alarm
				err     error
			)
			switch {
			case on && off:
				return errors.New("--on and --off are mutually exclusive")
			case on || off:
				updated, err = a.Service.SetActive(cmd.Context(), args[0], on)
			default:
				updated, err = a.Service.Toggle(cmd.Context(), args[0])
			}
			if err != nil {
				if updated == nil {
					return err
				}
				fmt.Fprintln(cmd.ErrOrStderr(), f.Warning(schedulingHint(err)))
			}

			state := "disabled"
			if updated.Active {
				state = "enabled"
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Success(fmt.Sprintf("Alarm %s %s", updated.Title, state)))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&on, "on", false, "Enable")
	cmd.Flags().BoolVar(&off, "off", false, "Disable")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <alarm-id>",
		Short: "Delete an alarm and cancel its notifications",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, args []string) error {
			existing, err := a.Service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := ui.Confirm(fmt.Sprintf("Delete %q?", existing.Title))
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
					return nil
				}
			}
			if err := a.Service.Delete(cmd.Context(), existing.ID); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Success("Deleted "+existing.Title))
			return nil
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func newDoneCmd() *cobra.Command {
	var date string
	var missed bool
	cmd := &cobra.Command{
		Use:   "done <alarm-id>",
		Short: "Record today's (or --date's) completion",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, args []string) error {
			if _, err := a.Service.Get(cmd.Context(), args[0]); err != nil {
				return err
			}
			if date == "" {
				date = a.Now().Format(model.DateLayout)
			} else if _, err := time.Parse(model.DateLayout, date); err != nil {
				return fmt.Errorf("invalid --date, use YYYY-MM-DD: %w", err)
			}
			if err := a.Completions.RecordCompletion(cmd.Context(), args[0], date, !missed); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), f.Success("Recorded "+date))
			return nil
		}),
	}
	cmd.Flags().StringVar(&date, "date", "", "Date, YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVar(&missed, "missed", false, "Record the day as not completed")
	return cmd
}

func newGraphCmd() *cobra.Command {
	var weeks int
	cmd := &cobra.Command{
		Use:   "graph <alarm-id>",
		Short: "Show the completion graph of an alarm",
		Args:  cobra.ExactArgs(1),
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, args []string) error {
			existing, err := a.Service.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if weeks <= 0 {
				weeks = a.Config.Graph.Weeks
			}

			today := a.Now()
			from := completion.StartOfGrid(today, weeks).Format(model.DateLayout)
			records, err := a.Completions.History(cmd.Context(), existing.ID, from, today.Format(model.DateLayout))
			if err != nil {
				return err
			}

			grid := completion.Contributions(records, today, weeks)
			fmt.Fprintln(cmd.OutOrStdout(), f.Graph(existing.Title, grid, today))
			return nil
		}),
	}
	cmd.Flags().IntVarP(&weeks, "weeks", "w", 0, "Weeks to show (default: graph.weeks from config)")
	return cmd
}

func newReconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Repair pending notifications for every alarm",
		RunE: withApp(func(cmd *cobra.Command, a *app.App, f *ui.Formatter, _ []string) error {
			report, err := a.Service.ReconcileAll(cmd.Context())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rescheduled: %d, cancelled: %d, orphaned: %d, failed: %d\n",
				len(report.Rescheduled), len(report.Cancelled), len(report.Orphaned), len(report.Failed))
			if err != nil {
				return err
			}
			fmt.Fprintln(out, f.Success("All alarms in sync"))
			return nil
		}),
	}
}

func schedulingHint(err error) string {
	if errors.Is(err, engine.ErrPermissionDenied) {
		return "Saved, but notifications are not permitted. Configure notify.telegram or switch notify.provider to log, then run alarmctl reconcile."
	}
	if errors.Is(err, alarm.ErrNotScheduled) {
		return "Saved, but scheduling failed: " + err.Error() + ". Run alarmctl reconcile to retry."
	}
	return err.Error()
}
