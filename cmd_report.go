package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/harrisonrobin/effitime/pkg/analyst"
	"github.com/harrisonrobin/effitime/pkg/model"
	"github.com/harrisonrobin/effitime/pkg/oracle"
)

const historyLoaders = 4

var (
	reportDays  int
	reportInput bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Productivity report for the recent period",
	Long: `Aggregates the user's tasks created in the last --days days (totals,
completion, cycle time, time per status, tasks per category) and asks the
oracle for a score and recommendations. When the oracle cannot answer, a
zero-score report explains that the analysis is unavailable.`,
	RunE: runReport,
}

func init() {
	reportCmd.Flags().IntVar(&reportDays, "days", 7, "Period length in days")
	reportCmd.Flags().BoolVar(&reportInput, "input-only", false, "Print the aggregated input without calling the oracle")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDays < 1 {
		return fmt.Errorf("--days must be at least 1")
	}
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

	var (
		mu        sync.Mutex
		histories = make(map[string][]model.HistoryEvent, len(tasks))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyLoaders)
	for _, t := range tasks {
		g.Go(func() error {
			events, err := st.ListHistory(gctx, t.ID)
			if err != nil {
				return fmt.Errorf("history of %s: %w", t.ID, err)
			}
			mu.Lock()
			histories[t.ID] = events
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := time.Now()
	in := analyst.BuildInput(tasks, histories, now.AddDate(0, 0, -reportDays), now)
	if reportInput {
		return printJSON(cmd, in)
	}

	a := analyst.New(newOracle(), logger, oracle.Retry{
		MaxAttempts:    cfg.Oracle.MaxRetries,
		AttemptTimeout: cfg.Oracle.AttemptTimeout.Std(),
	})
	return printJSON(cmd, a.Analyze(ctx, in))
}
