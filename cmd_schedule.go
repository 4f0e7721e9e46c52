package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/index"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/model"
	"github.com/harrisonrobin/effitime/pkg/oracle"
	"github.com/harrisonrobin/effitime/pkg/overdue"
	"github.com/harrisonrobin/effitime/pkg/scheduler"
	"github.com/harrisonrobin/effitime/pkg/store"
)

var (
	scheduleCalendar        bool
	schedulePublish         bool
	scheduleFallbackOnError bool
	scheduleHeuristic       bool
	scheduleDryRun          bool
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule [task-id]",
	Short: "Place a task into free time",
	Long: `Auto scheduling: asks the oracle for a cognitive profile and a slot, checks
the slot against the free windows, the deadline and the user's other tasks,
and falls back to the biorhythm heuristic when the slot is refused.

When every oracle attempt fails the command exits with an error unless
--fallback-on-error is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runSchedule,
}

func init() {
	scheduleCmd.Flags().BoolVar(&scheduleCalendar, "calendar", false, "Treat Google Calendar busy time as commitments")
	scheduleCmd.Flags().BoolVar(&schedulePublish, "publish", false, "Publish the committed slot as a calendar event")
	scheduleCmd.Flags().BoolVar(&scheduleFallbackOnError, "fallback-on-error", false, "Use the heuristic when the oracle fails")
	scheduleCmd.Flags().BoolVar(&scheduleHeuristic, "heuristic", false, "Skip the oracle and use the heuristic only")
	scheduleCmd.Flags().BoolVar(&scheduleDryRun, "dry-run", false, "Print the outcome without committing it")
}

func runSchedule(cmd *cobra.Command, args []string) error {
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
	if task.IsFinished() {
		return fmt.Errorf("task %s is %s", task.ID, task.Status.Name)
	}
	wake, bed, err := sleepClocks(ctx, st)
	if err != nil {
		return err
	}

	busy, err := commitments(ctx, st, task, time.Now())
	if err != nil {
		return err
	}

	sch := newScheduler()
	req := scheduler.RequestFor(task, wake, bed, busy)
	out, err := planTask(ctx, sch, req)
	if err != nil {
		return err
	}

	if out.IsScheduled && !scheduleDryRun {
		if err := commit(cmd, st, task, out); err != nil {
			var ce *store.ConflictError
			if errors.As(err, &ce) {
				_ = printJSON(cmd, ce.Result)
			}
			return err
		}
	}
	return printJSON(cmd, out)
}

// commitments are the user's other committed slots, plus calendar busy
// time when asked, over the scheduling window.
func commitments(ctx context.Context, st *store.Store, task model.Task, now time.Time) ([]interval.Interval, error) {
	end := now.Add(cfg.Scheduling.Horizon.Std())
	if task.Deadline != nil {
		end = *task.Deadline
	}
	if !now.Before(end) {
		return nil, nil
	}
	window := interval.Interval{Start: now, End: end}

	busy, err := st.ListOtherScheduledIntervals(ctx, task.UserID, task.ID, window)
	if err != nil {
		return nil, err
	}
	if scheduleCalendar {
		cal, idx, err := calendarClient(ctx)
		if err != nil {
			return nil, err
		}
		saveIndex(idx)
		ext, err := cal.BusyIntervals(ctx, window)
		if err != nil {
			return nil, err
		}
		if own, ok := ownSlot(task, idx); ok {
			ext = excludeSlot(ext, own)
		}
		logger.Debug("calendar busy time", zap.Int("intervals", len(ext)))
		busy = append(busy, ext...)
	}
	return busy, nil
}

// ownSlot is the time the task's own calendar event occupies: the slot it
// was last published with, else its committed slot.
func ownSlot(task model.Task, idx *index.EventIndex) (interval.Interval, bool) {
	if idx != nil {
		if e, ok := idx.Lookup(task.ID); ok {
			return interval.Interval{Start: e.Start, End: e.End}, true
		}
	}
	if task.ScheduledStart != nil && task.ScheduledEnd != nil {
		return interval.Interval{Start: *task.ScheduledStart, End: *task.ScheduledEnd}, true
	}
	return interval.Interval{}, false
}

// excludeSlot cuts own out of calendar busy periods. Freebusy merges
// adjacent events, so a period may extend past own on either side.
func excludeSlot(busy []interval.Interval, own interval.Interval) []interval.Interval {
	if own.Validate() != nil {
		return busy
	}
	out := make([]interval.Interval, 0, len(busy))
	for _, b := range busy {
		if !b.Overlaps(own) {
			out = append(out, b)
			continue
		}
		rest, err := interval.FreeGaps(interval.BusySet{own}, b)
		if err != nil {
			out = append(out, b)
			continue
		}
		out = append(out, rest...)
	}
	return out
}

func planTask(ctx context.Context, sch *scheduler.Client, req scheduler.Request) (scheduler.Outcome, error) {
	if scheduleHeuristic {
		return sch.Fallback(req, nil)
	}
	out, err := sch.Schedule(ctx, req)
	if err == nil {
		return out, nil
	}
	if !scheduleFallbackOnError || ctx.Err() != nil {
		return scheduler.Outcome{}, err
	}
	logger.Warn("oracle failed, using heuristic",
		zap.String("task", req.TaskID),
		zap.String("kind", oracle.KindOf(err)),
		zap.Error(err),
	)
	return sch.Fallback(req, nil)
}

func commit(cmd *cobra.Command, st *store.Store, task model.Task, out scheduler.Outcome) error {
	ctx := cmd.Context()
	if err := st.CommitTiming(ctx, task.ID, *out.Slot, &cfg.User); err != nil {
		return err
	}
	task, err := st.GetTask(ctx, task.ID)
	if err != nil {
		return err
	}

	eventID := ""
	if schedulePublish {
		cal, idx, err := calendarClient(ctx)
		if err != nil {
			return err
		}
		ev, err := cal.PublishSlot(ctx, task)
		saveIndex(idx)
		if err != nil {
			return err
		}
		eventID = ev.Id
	}

	tbl, err := overdue.Open(configDir)
	if err != nil {
		logger.Warn("could not load overdue table", zap.Error(err))
		return nil
	}
	if eventID == "" {
		if e, ok := tbl.Entries[task.ID]; ok {
			eventID = e.EventID
		}
	}
	tbl.Update(task, eventID)
	if err := tbl.Save(); err != nil {
		logger.Warn("could not save overdue table", zap.Error(err))
	}
	return nil
}
