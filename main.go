package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/harrisonrobin/effitime/pkg/auth"
	"github.com/harrisonrobin/effitime/pkg/biorhythm"
	"github.com/harrisonrobin/effitime/pkg/config"
	"github.com/harrisonrobin/effitime/pkg/google"
	"github.com/harrisonrobin/effitime/pkg/index"
	"github.com/harrisonrobin/effitime/pkg/oracle"
	"github.com/harrisonrobin/effitime/pkg/scheduler"
	"github.com/harrisonrobin/effitime/pkg/store"
)

var (
	// Global flags
	verbose   bool
	configDir string
	userID    string

	logger *zap.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "effitime",
	Short: "Biorhythm-aware task scheduling",
	Long: `effitime keeps personal tasks and places them into free time.

Manual mode checks a hand-picked slot against your other commitments.
Auto mode asks the oracle for a cognitive profile and a slot, re-checks the
answer locally and falls back to a biorhythm heuristic when it does not hold.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configDir == "" {
			dir, err := config.Dir()
			if err != nil {
				return fmt.Errorf("locate config directory: %w", err)
			}
			configDir = dir
		}
		var err error
		cfg, err = config.Load(configDir, config.Path(configDir))
		if err != nil {
			return err
		}
		if userID != "" {
			cfg.User = userID
		}

		zc := zap.NewProductionConfig()
		if verbose || cfg.Oracle.Debug {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: ~/.config/effitime)")
	rootCmd.PersistentFlags().StringVarP(&userID, "user", "u", "", "User owning the tasks (default: config user)")

	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(sleepCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(lifecycleCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(sweepCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func openStore(ctx context.Context) (*store.Store, error) {
	return store.Open(ctx, cfg.Store.Path, logger)
}

// sleepClocks returns the user's wake and bed times, falling back to the
// configured defaults.
func sleepClocks(ctx context.Context, st *store.Store) (biorhythm.Clock, biorhythm.Clock, error) {
	s, err := st.SleepSettings(ctx, cfg.User, defaultSleep())
	if err != nil {
		return biorhythm.Clock{}, biorhythm.Clock{}, err
	}
	wake, err := biorhythm.ParseClock(s.WakeUp)
	if err != nil {
		return biorhythm.Clock{}, biorhythm.Clock{}, fmt.Errorf("wake up time: %w", err)
	}
	bed, err := biorhythm.ParseClock(s.BedTime)
	if err != nil {
		return biorhythm.Clock{}, biorhythm.Clock{}, fmt.Errorf("bed time: %w", err)
	}
	return wake, bed, nil
}

func newOracle() *oracle.OpenRouterClient {
	return oracle.NewOpenRouterClient(cfg.OracleConfig(), logger)
}

func newScheduler() *scheduler.Client {
	return scheduler.New(newOracle(), logger,
		scheduler.WithMaxAttempts(cfg.Oracle.MaxRetries),
		scheduler.WithAttemptTimeout(cfg.Oracle.AttemptTimeout.Std()),
		scheduler.WithHorizon(cfg.Scheduling.Horizon.Std()),
		scheduler.WithLeadTime(cfg.Scheduling.LeadTime.Std()),
	)
}

// calendarClient connects to the configured Google calendar. Callers save
// the returned index when they are done.
func calendarClient(ctx context.Context) (*google.CalendarClient, *index.EventIndex, error) {
	flow := &auth.Flow{Dir: configDir, Log: logger}
	httpClient, err := flow.Client(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("calendar auth: %w", err)
	}
	idx, err := index.Open(configDir)
	if err != nil {
		logger.Warn("could not load event index", zap.Error(err))
		idx = nil
	}
	c, err := google.NewClient(ctx, httpClient, cfg.Calendar.Name, idx, logger)
	if err != nil {
		return nil, nil, err
	}
	return c, idx, nil
}

func saveIndex(idx *index.EventIndex) {
	if idx == nil {
		return
	}
	if err := idx.Save(); err != nil {
		logger.Warn("could not save event index", zap.Error(err))
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// whenLayouts are accepted for times given on the command line, local time
// unless the value carries an offset.
var whenLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

func parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range whenLayouts {
		if layout == time.RFC3339 {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
			continue
		}
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want RFC3339 or YYYY-MM-DD HH:MM)", s)
}
