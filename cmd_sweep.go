package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/google"
	"github.com/harrisonrobin/effitime/pkg/index"
	"github.com/harrisonrobin/effitime/pkg/overdue"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Report committed slots that ended while the task stayed open",
	Long: `Refreshes the overdue table from the store and reports every open task
whose committed slot has already ended. With calendar publishing enabled the
matching events are marked with "!".`,
	RunE: runSweep,
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	tbl, err := overdue.Open(configDir)
	if err != nil {
		return err
	}
	tasks, err := st.ListTasks(ctx, cfg.User)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		eventID := ""
		if e, ok := tbl.Entries[t.ID]; ok {
			eventID = e.EventID
		}
		tbl.Update(t, eventID)
	}

	swept := tbl.Sweep(time.Now())
	if err := tbl.Save(); err != nil {
		logger.Warn("could not save overdue table", zap.Error(err))
	}

	var (
		cal *google.CalendarClient
		idx *index.EventIndex
	)
	if cfg.Calendar.Enabled && len(swept) > 0 {
		if cal, idx, err = calendarClient(ctx); err != nil {
			logger.Warn("calendar unavailable, events not marked", zap.Error(err))
			cal = nil
		}
		defer saveIndex(idx)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tSLOT ENDED")
	for _, e := range swept {
		fmt.Fprintf(w, "%s\t%s\t%s\n", e.TaskID, e.Title, e.End.Local().Format("2006-01-02 15:04"))
		if cal == nil {
			continue
		}
		eventID := e.EventID
		if eventID == "" && idx != nil {
			eventID = idx.Get(e.TaskID)
		}
		if eventID == "" {
			continue
		}
		if err := cal.MarkOverdue(ctx, e.TaskID, eventID, e.Title); err != nil {
			logger.Warn("could not mark event overdue", zap.String("event", eventID), zap.Error(err))
		}
	}
	return w.Flush()
}
