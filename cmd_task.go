package main

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/model"
	"github.com/harrisonrobin/effitime/pkg/store"
)

var (
	taskDescription string
	taskTags        []string
	taskCategory    string
	taskDeadline    string
	taskEstimate    string
	taskActor       string
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Create and inspect tasks",
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task in the New status",
	Args:  cobra.MinimumNArgs(1),
	RunE:  addTask,
}

var taskShowCmd = &cobra.Command{
	Use:   "show [task-id]",
	Short: "Show one task with its history",
	Args:  cobra.ExactArgs(1),
	RunE:  showTask,
}

var taskStatusCmd = &cobra.Command{
	Use:   "status [task-id] [status]",
	Short: "Move a task to another status",
	Long: `Moves a task to another status and records the change in its history.

Statuses: New, In work, Waiting for details, Info received, Paused,
Completed, Cancelled, Deferred (case-insensitive).`,
	Args: cobra.MinimumNArgs(2),
	RunE: setTaskStatus,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the user's tasks",
	RunE:  listTasks,
}

func init() {
	taskAddCmd.Flags().StringVarP(&taskDescription, "description", "d", "", "Description (plain text or HTML)")
	taskAddCmd.Flags().StringSliceVarP(&taskTags, "tag", "t", nil, "Tag (repeatable)")
	taskAddCmd.Flags().StringVar(&taskCategory, "category", "", "Category used by the productivity report")
	taskAddCmd.Flags().StringVar(&taskDeadline, "deadline", "", "Deadline (RFC3339 or YYYY-MM-DD HH:MM)")
	taskAddCmd.Flags().StringVar(&taskEstimate, "estimate", "", "Estimate, ISO 8601 (PT1H30M) or free text")
	taskStatusCmd.Flags().StringVar(&taskActor, "actor", "", "Who made the change (default: the user)")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskShowCmd)
	taskCmd.AddCommand(taskStatusCmd)
	taskCmd.AddCommand(taskListCmd)
}

func addTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	nt := store.NewTask{
		UserID:      cfg.User,
		Title:       strings.Join(args, " "),
		Description: taskDescription,
		Tags:        taskTags,
		Category:    taskCategory,
		Estimate:    taskEstimate,
	}
	if taskDeadline != "" {
		d, err := parseWhen(taskDeadline)
		if err != nil {
			return fmt.Errorf("deadline: %w", err)
		}
		nt.Deadline = &d
	}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	task, err := st.CreateTask(ctx, nt)
	if err != nil {
		return err
	}
	return printJSON(cmd, task)
}

func showTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	task, err := st.GetTask(ctx, args[0])
	if err != nil {
		return err
	}
	history, err := st.ListHistory(ctx, task.ID)
	if err != nil {
		return err
	}
	return printJSON(cmd, struct {
		model.Task
		History []model.HistoryEvent `json:"history"`
	}{task, history})
}

func setTaskStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	actor := cfg.User
	if taskActor != "" {
		actor = taskActor
	}
	task, err := st.UpdateStatus(ctx, args[0], strings.Join(args[1:], " "), &actor)
	if err != nil {
		return err
	}

	if task.Status.Type == model.StatusCancelled && cfg.Calendar.Enabled {
		if err := unpublish(cmd, task.ID); err != nil {
			logger.Warn("could not remove calendar event", zap.String("task", task.ID), zap.Error(err))
		}
	}
	return printJSON(cmd, task)
}

// unpublish removes the calendar event of a cancelled task, if any.
func unpublish(cmd *cobra.Command, taskID string) error {
	ctx := cmd.Context()
	cal, idx, err := calendarClient(ctx)
	if err != nil {
		return err
	}
	defer saveIndex(idx)

	eventID := ""
	if idx != nil {
		eventID = idx.Get(taskID)
	}
	if eventID == "" {
		ev, err := cal.GetEventByTaskID(ctx, taskID)
		if err != nil || ev == nil {
			return err
		}
		eventID = ev.Id
	}
	return cal.DeleteEvent(ctx, taskID, eventID)
}

func listTasks(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tasks, err := st.ListTasks(ctx, cfg.User)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTITLE\tDEADLINE\tSCHEDULED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", t.ID, t.Status.Name, t.Title, formatOptional(t.Deadline), formatSlot(t))
	}
	return w.Flush()
}

func formatOptional(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatSlot(t model.Task) string {
	if t.ScheduledStart == nil || t.ScheduledEnd == nil {
		return "-"
	}
	return t.ScheduledStart.Local().Format("2006-01-02 15:04") + " - " + t.ScheduledEnd.Local().Format("15:04")
}
