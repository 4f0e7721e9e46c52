package main

import (
	"github.com/spf13/cobra"

	"github.com/harrisonrobin/effitime/pkg/model"
)

var sleepCmd = &cobra.Command{
	Use:   "sleep",
	Short: "Manage the wake-up and bed times the biorhythm periods are anchored to",
}

var sleepSetCmd = &cobra.Command{
	Use:   "set [wake HH:MM] [bed HH:MM]",
	Short: "Save the user's sleep schedule",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.SetSleepSettings(ctx, model.SleepSettings{UserID: cfg.User, WakeUp: args[0], BedTime: args[1]}); err != nil {
			return err
		}
		s, err := st.SleepSettings(ctx, cfg.User, defaultSleep())
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

var sleepShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the user's sleep schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		s, err := st.SleepSettings(ctx, cfg.User, defaultSleep())
		if err != nil {
			return err
		}
		return printJSON(cmd, s)
	},
}

func init() {
	sleepCmd.AddCommand(sleepSetCmd)
	sleepCmd.AddCommand(sleepShowCmd)
}

func defaultSleep() model.SleepSettings {
	return model.SleepSettings{WakeUp: cfg.Scheduling.WakeUp, BedTime: cfg.Scheduling.BedTime}
}
