package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/harrisonrobin/effitime/pkg/colors"
	"github.com/harrisonrobin/effitime/pkg/lifecycle"
	"github.com/harrisonrobin/effitime/pkg/store"
)

var lifecycleCmd = &cobra.Command{
	Use:   "lifecycle [task-id]",
	Short: "Show how long a task spent in each status",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
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
		events, err := st.ListHistory(ctx, task.ID)
		if err != nil {
			return err
		}
		palette, err := statusColors(ctx, st)
		if err != nil {
			return err
		}
		defer func() {
			if err := palette.Save(); err != nil {
				logger.Warn("could not save status colors", zap.Error(err))
			}
		}()

		segments := lifecycle.Reconstruct(lifecycle.FromTask(task, events, time.Now(), palette))
		return printJSON(cmd, segments)
	},
}

// statusColors pins the catalogue's colors over the cached palette.
func statusColors(ctx context.Context, st *store.Store) (*colors.StatusColors, error) {
	palette, err := colors.Open(configDir, logger)
	if err != nil {
		logger.Warn("could not load status colors", zap.Error(err))
		palette = colors.New("", logger)
	}
	statuses, err := st.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range statuses {
		palette.Pin(s.Name, s.Color)
	}
	return palette, nil
}
