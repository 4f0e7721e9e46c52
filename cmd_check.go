package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrisonrobin/effitime/pkg/conflict"
	"github.com/harrisonrobin/effitime/pkg/interval"
	"github.com/harrisonrobin/effitime/pkg/store"
)

// checkContext is how far around the proposed slot neighbors are loaded to
// report the surrounding availability.
const checkContext = 24 * time.Hour

var (
	checkStart    string
	checkEnd      string
	checkCommit   bool
	checkCalendar bool
)

var checkCmd = &cobra.Command{
	Use:   "check [task-id]",
	Short: "Check a hand-picked slot against the user's other tasks",
	Long: `Manual scheduling: verifies that [start, end) does not overlap any other
committed task of the user. With --commit the slot is stored; the check is
repeated inside the store transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkStart, "start", "", "Slot start (RFC3339 or YYYY-MM-DD HH:MM)")
	checkCmd.Flags().StringVar(&checkEnd, "end", "", "Slot end (RFC3339 or YYYY-MM-DD HH:MM)")
	checkCmd.Flags().BoolVar(&checkCommit, "commit", false, "Store the slot when it fits")
	checkCmd.Flags().BoolVar(&checkCalendar, "calendar", false, "Also check against Google Calendar busy time")
	_ = checkCmd.MarkFlagRequired("start")
	_ = checkCmd.MarkFlagRequired("end")
}

func runCheck(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start, err := parseWhen(checkStart)
	if err != nil {
		return fmt.Errorf("start: %w", err)
	}
	end, err := parseWhen(checkEnd)
	if err != nil {
		return fmt.Errorf("end: %w", err)
	}
	slot := interval.Interval{Start: start, End: end}

	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	task, err := st.GetTask(ctx, args[0])
	if err != nil {
		return err
	}

	var existing []interval.Interval
	if slot.Validate() == nil {
		around := interval.Interval{Start: slot.Start.Add(-checkContext), End: slot.End.Add(checkContext)}
		existing, err = st.ListOtherScheduledIntervals(ctx, task.UserID, task.ID, around)
		if err != nil {
			return err
		}
		if checkCalendar {
			cal, idx, err := calendarClient(ctx)
			if err != nil {
				return err
			}
			saveIndex(idx)
			busy, err := cal.BusyIntervals(ctx, around)
			if err != nil {
				return err
			}
			if own, ok := ownSlot(task, idx); ok {
				busy = excludeSlot(busy, own)
			}
			existing = append(existing, busy...)
		}
	}

	res := conflict.CheckFit(slot, existing)
	if res.OK() && checkCommit {
		err := st.CommitTiming(ctx, task.ID, slot, &cfg.User)
		var ce *store.ConflictError
		if errors.As(err, &ce) {
			res = ce.Result
		} else if err != nil {
			return err
		}
	}
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("slot does not fit: %s", res.Message)
	}
	return nil
}
