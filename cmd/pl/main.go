package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"planline/internal/config"
	"planline/internal/db"
	"planline/internal/domain"
	"planline/internal/engine"
	"planline/internal/migrate"
	"planline/internal/notify"
	"planline/internal/repo"
	"planline/internal/scheduler"
	"planline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "pl",
	Short: "Planline CLI",
	Long: `Planline keeps one person's calendar, deadline tasks, memos and alarms
in a local workspace, and finds the free time between them.
- Workspace: the .planline directory holding the database and config.
- Events: calendar entries, created directly or compiled from a painted grid.
- Tasks: deadline work with checklists; daily/weekly templates materialize
  automatically. Find gaps with 'pl free' and share them from the clipboard.`,
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
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("PLANLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("user", "", "user id (defaults to config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("user", rootCmd.PersistentFlags().Lookup("user"))
}

func registerCommands() {
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(memoCmd())
	rootCmd.AddCommand(alarmCmd())
	rootCmd.AddCommand(eventCmd())
	rootCmd.AddCommand(freeCmd())
	rootCmd.AddCommand(regularCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage workspace config"}
	cfg.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(viper.GetString("workspace"))
			if err != nil {
				return err
			}
			return printJSONOrIndent(c)
		},
	})
	cfg.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			path := config.Path(workspace)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	})
	return cfg
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Workspace counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				uid := userID(e)
				open := false
				tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{UserID: uid, Completed: &open})
				if err != nil {
					return err
				}
				alarms, err := e.Repo.ListEnabledAlarmsByUser(ctx, uid)
				if err != nil {
					return err
				}
				return printJSONOrIndent(map[string]any{
					"user":           uid,
					"open_tasks":     len(tasks),
					"enabled_alarms": len(alarms),
				})
			})
		},
	}
}

func taskCmd() *cobra.Command {
	task := &cobra.Command{Use: "task", Short: "Manage deadline tasks"}
	task.AddCommand(taskAddCmd())
	task.AddCommand(taskListCmd())
	task.AddCommand(taskShowCmd())
	task.AddCommand(taskDoneCmd())
	task.AddCommand(taskToggleCmd())
	task.AddCommand(taskRemoveCmd())
	return task
}

func taskAddCmd() *cobra.Command {
	var memo, deadline, startAt, endAt string
	var checklist []string
	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items := make([]domain.ChecklistItem, 0, len(checklist))
				for _, text := range checklist {
					items = append(items, domain.ChecklistItem{Text: text})
				}
				t, err := e.CreateTask(ctx, engine.TaskCreateOptions{
					UserID:    viper.GetString("user"),
					Title:     args[0],
					Memo:      memo,
					Deadline:  deadline,
					StartAt:   startAt,
					EndAt:     endAt,
					Checklist: items,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "free-form note")
	cmd.Flags().StringVar(&deadline, "deadline", "", "deadline (RFC3339)")
	cmd.Flags().StringVar(&startAt, "start", "", "fixed start (RFC3339)")
	cmd.Flags().StringVar(&endAt, "end", "", "fixed end (RFC3339)")
	cmd.Flags().StringArrayVar(&checklist, "item", nil, "checklist item (repeatable)")
	return cmd
}

func taskListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				var completed *bool
				if !all {
					open := false
					completed = &open
				}
				tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{UserID: userID(e), Completed: completed})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(tasks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Deadline", "Checklist", "Done"})
				for _, t := range tasks {
					deadline := ""
					if t.Deadline != nil {
						deadline = *t.Deadline
					}
					checked := 0
					for _, it := range t.Checklist {
						if it.Checked {
							checked++
						}
					}
					progress := ""
					if len(t.Checklist) > 0 {
						progress = fmt.Sprintf("%d/%d", checked, len(t.Checklist))
					}
					tw.AppendRow(table.Row{t.ID, t.Title, deadline, progress, t.Completed})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include completed tasks")
	return cmd
}

func taskShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.Repo.GetTask(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
}

func taskDoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "done <id>",
		Short: "Mark task completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				done := true
				t, err := e.UpdateTask(ctx, engine.TaskUpdateOptions{ID: args[0], Completed: &done})
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
}

func taskToggleCmd() *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "toggle <id>",
		Short: "Toggle a checklist item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				t, err := e.ToggleChecklistItem(ctx, args[0], index)
				if err != nil {
					return err
				}
				return printJSONOrIndent(t)
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "checklist index")
	return cmd
}

func taskRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteTask(ctx, args[0])
			})
		},
	}
}

func memoCmd() *cobra.Command {
	memo := &cobra.Command{Use: "memo", Short: "Manage memos"}
	memo.AddCommand(memoAddCmd())
	memo.AddCommand(memoListCmd())
	memo.AddCommand(memoPinCmd())
	memo.AddCommand(memoRemoveCmd())
	memo.AddCommand(memoAttachCmd())
	return memo
}

func memoAddCmd() *cobra.Command {
	var pinned bool
	cmd := &cobra.Command{
		Use:   "add <body>",
		Short: "Create memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMemo(ctx, engine.MemoCreateOptions{
					UserID: viper.GetString("user"),
					Body:   args[0],
					Pinned: pinned,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(m)
			})
		},
	}
	cmd.Flags().BoolVar(&pinned, "pin", false, "pin the memo")
	return cmd
}

func memoListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List memos, pinned first",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				memos, err := e.Repo.ListMemos(ctx, repo.MemoFilters{UserID: userID(e)})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(memos)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Pinned", "Body"})
				for _, m := range memos {
					body := m.Body
					if len(body) > 60 {
						body = body[:57] + "..."
					}
					tw.AppendRow(table.Row{m.ID, m.Pinned, body})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func memoPinCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "pin <id>",
		Short: "Pin or unpin a memo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				pinned := !off
				m, err := e.UpdateMemo(ctx, engine.MemoUpdateOptions{ID: args[0], Pinned: &pinned})
				if err != nil {
					return err
				}
				return printJSONOrIndent(m)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "unpin instead")
	return cmd
}

func memoRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete memo and its attachments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteMemo(ctx, args[0])
			})
		},
	}
}

func memoAttachCmd() *cobra.Command {
	var contentType string
	cmd := &cobra.Command{
		Use:   "attach <memo-id> <file>",
		Short: "Record a file as attachment metadata",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := os.Stat(args[1])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.AddAttachment(ctx, engine.AttachmentOptions{
					MemoID:      args[0],
					Filename:    info.Name(),
					ContentType: contentType,
					Size:        info.Size(),
					Path:        args[1],
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "MIME type")
	return cmd
}

func alarmCmd() *cobra.Command {
	alarm := &cobra.Command{Use: "alarm", Short: "Manage alarms"}
	alarm.AddCommand(alarmAddCmd())
	alarm.AddCommand(alarmListCmd())
	alarm.AddCommand(alarmSetEnabledCmd("enable", "Enable an alarm", true))
	alarm.AddCommand(alarmSetEnabledCmd("disable", "Disable an alarm", false))
	alarm.AddCommand(alarmRemoveCmd())
	return alarm
}

func alarmAddCmd() *cobra.Command {
	var label string
	var repeat []int
	cmd := &cobra.Command{
		Use:   "add <at>",
		Short: "Create alarm at an RFC3339 time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mask := 0
			for _, d := range repeat {
				if d < 0 || d > 6 {
					return fmt.Errorf("invalid weekday %d", d)
				}
				mask |= 1 << d
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				a, err := e.CreateAlarm(ctx, engine.AlarmCreateOptions{
					UserID:     viper.GetString("user"),
					Label:      label,
					At:         args[0],
					RepeatMask: mask,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "alarm label")
	cmd.Flags().IntSliceVar(&repeat, "repeat", nil, "repeat weekdays, 0=Sun .. 6=Sat")
	return cmd
}

func alarmListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alarms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				alarms, err := e.Repo.ListAlarms(ctx, repo.AlarmFilters{UserID: userID(e)})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(alarms)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Label", "At", "Repeat", "Enabled"})
				for _, a := range alarms {
					tw.AppendRow(table.Row{a.ID, a.Label, a.At, repeatDays(a.RepeatMask), a.Enabled})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func alarmSetEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v := enabled
				a, err := e.UpdateAlarm(ctx, engine.AlarmUpdateOptions{ID: args[0], Enabled: &v})
				if err != nil {
					return err
				}
				return printJSONOrIndent(a)
			})
		},
	}
}

func alarmRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete alarm",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteAlarm(ctx, args[0])
			})
		},
	}
}

func eventCmd() *cobra.Command {
	event := &cobra.Command{Use: "event", Short: "Manage calendar events"}
	event.AddCommand(eventAddCmd())
	event.AddCommand(eventListCmd())
	event.AddCommand(eventRemoveCmd())
	return event
}

func eventAddCmd() *cobra.Command {
	var memo, color string
	cmd := &cobra.Command{
		Use:   "add <title> <start> <end>",
		Short: "Create event with RFC3339 times",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				ev, err := e.CreateEvent(ctx, engine.EventCreateOptions{
					UserID:  viper.GetString("user"),
					Title:   args[0],
					Memo:    memo,
					Color:   color,
					StartAt: args[1],
					EndAt:   args[2],
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(ev)
			})
		},
	}
	cmd.Flags().StringVar(&memo, "memo", "", "free-form note")
	cmd.Flags().StringVar(&color, "color", "", "palette color")
	return cmd
}

func eventListCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List events overlapping a range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.ListEvents(ctx, repo.EventFilters{
					UserID:     userID(e),
					RangeStart: from,
					RangeEnd:   to,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(events)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Start", "End", "Source"})
				for _, ev := range events {
					tw.AppendRow(table.Row{ev.ID, ev.Title, ev.StartAt, ev.EndAt, ev.Source})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "range start (RFC3339)")
	cmd.Flags().StringVar(&to, "to", "", "range end (RFC3339)")
	return cmd
}

func eventRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.DeleteEvent(ctx, args[0])
			})
		},
	}
}

func freeCmd() *cobra.Command {
	var from, to, windowStart, windowEnd string
	var margin, minDuration int
	var weekdays []int
	var copyToClipboard bool
	cmd := &cobra.Command{
		Use:   "free",
		Short: "Find free time slots",
		Long:  "Sweeps events, fixed-time tasks, alarms and ICS subscriptions for gaps, and prints them ready to paste into a scheduling message.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" || to == "" {
				return fmt.Errorf("--from and --to are required (yyyy-mm-dd)")
			}
			opts := engine.FreeSlotOptions{
				UserID:      viper.GetString("user"),
				RangeStart:  from,
				RangeEnd:    to,
				Weekdays:    weekdays,
				WindowStart: windowStart,
				WindowEnd:   windowEnd,
			}
			// --margin 0 and --min 0 are meaningful; only an omitted flag
			// falls back to the config default.
			if cmd.Flags().Changed("margin") {
				opts.MarginMinutes = &margin
			}
			if cmd.Flags().Changed("min") {
				opts.MinDurationMinutes = &minDuration
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.FindFreeSlots(ctx, opts)
				if err != nil {
					return err
				}
				for _, w := range res.Warnings {
					fmt.Fprintf(os.Stderr, "warning: %s unavailable: %s\n", w.Source, w.Error)
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Println(res.Text)
				if copyToClipboard {
					if err := clipboard.WriteAll(res.Text); err != nil {
						return fmt.Errorf("copy to clipboard: %w", err)
					}
					fmt.Fprintln(os.Stderr, "copied to clipboard")
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day (yyyy-mm-dd)")
	cmd.Flags().StringVar(&to, "to", "", "last day, inclusive (yyyy-mm-dd)")
	cmd.Flags().StringVar(&windowStart, "window-start", "", "daily window start HH:mm")
	cmd.Flags().StringVar(&windowEnd, "window-end", "", "daily window end HH:mm")
	cmd.Flags().IntVar(&margin, "margin", 0, "buffer minutes around busy intervals")
	cmd.Flags().IntVar(&minDuration, "min", 0, "minimum slot minutes")
	cmd.Flags().IntSliceVar(&weekdays, "weekday", nil, "allowed weekdays, 0=Sun .. 6=Sat")
	cmd.Flags().BoolVar(&copyToClipboard, "copy", false, "copy the text block to the clipboard")
	return cmd
}

func regularCmd() *cobra.Command {
	reg := &cobra.Command{Use: "regular", Short: "Manage daily/weekly task templates"}
	reg.AddCommand(regularSetCmd())
	reg.AddCommand(regularShowCmd())
	reg.AddCommand(regularRemoveCmd())
	reg.AddCommand(regularGenerateCmd())
	return reg
}

func regularType(s string) (domain.RegularTaskType, error) {
	switch strings.ToUpper(s) {
	case "DAILY":
		return domain.RegularDaily, nil
	case "WEEKLY":
		return domain.RegularWeekly, nil
	}
	return "", fmt.Errorf("type must be daily or weekly, got %q", s)
}

func regularSetCmd() *cobra.Command {
	var items []string
	cmd := &cobra.Command{
		Use:   "set <daily|weekly>",
		Short: "Set a checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := regularType(args[0])
			if err != nil {
				return err
			}
			if len(items) == 0 {
				return fmt.Errorf("at least one --item required")
			}
			checklist := make([]domain.ChecklistItem, 0, len(items))
			for _, text := range items {
				checklist = append(checklist, domain.ChecklistItem{Text: text})
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.UpsertRegularTaskConfig(ctx, viper.GetString("user"), typ, checklist)
				if err != nil {
					return err
				}
				return printJSONOrIndent(c)
			})
		},
	}
	cmd.Flags().StringArrayVar(&items, "item", nil, "checklist item (repeatable)")
	return cmd
}

func regularShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <daily|weekly>",
		Short: "Show a checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := regularType(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				c, err := e.Repo.GetRegularTaskConfig(ctx, userID(e), typ)
				if err != nil {
					return err
				}
				return printJSONOrIndent(c)
			})
		},
	}
}

func regularRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <daily|weekly>",
		Short: "Delete a checklist template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			typ, err := regularType(args[0])
			if err != nil {
				return err
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Repo.DeleteRegularTaskConfig(ctx, userID(e), typ)
			})
		},
	}
}

func regularGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Materialize templates for today",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				created, err := e.GenerateRegularTasks(ctx, time.Now())
				if err != nil {
					return err
				}
				return printJSONOrIndent(created)
			})
		},
	}
}

func logCmd() *cobra.Command {
	logc := &cobra.Command{Use: "log", Short: "Activity log"}
	logc.AddCommand(logTailCmd())
	return logc
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail the activity log",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.Repo.LatestActivity(ctx, n, 0, userID(e), evtType)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"TS", "Type", "Entity", "Payload"})
				for _, it := range items {
					tw.AppendRow(table.Row{it.TS, it.Type, it.EntityKind + "/" + it.EntityID, it.Payload})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of entries")
	cmd.Flags().StringVar(&evtType, "type", "", "type filter")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	var noScheduler bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := config.Load(workspace)
			if err != nil {
				return err
			}
			conn, err := db.Open(workspace)
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := engine.New(conn, cfg)

			if !noScheduler {
				notifier := notify.Fanout{notify.LogNotifier{}}
				if cfg.Webhook.URL != "" {
					notifier = append(notifier, notify.NewWebhookNotifier(
						cfg.Webhook.URL, time.Duration(cfg.Webhook.TimeoutSeconds)*time.Second))
				}
				sched := scheduler.New(e, notifier)
				if err := sched.Start(); err != nil {
					return err
				}
				defer sched.Stop()
			}

			handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Listen
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Planline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "disable background jobs")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	conn, err := db.Open(workspace)
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func userID(e engine.Engine) string {
	if u := viper.GetString("user"); u != "" {
		return u
	}
	return e.Config.DefaultUser
}

func printJSONOrIndent(v any) error {
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

func repeatDays(mask int) string {
	if mask == 0 {
		return ""
	}
	names := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	var out []string
	for d := 0; d < 7; d++ {
		if mask&(1<<d) != 0 {
			out = append(out, names[d])
		}
	}
	return strings.Join(out, ",")
}
