package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/harrisonrobin/effitime/pkg/auth"
	"github.com/harrisonrobin/effitime/pkg/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect or create the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.Path(configDir)
		if _, err := os.Stat(path); err == nil && !configForce {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
		if err := config.Save(path, config.Default(configDir)); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		shown := *cfg
		if shown.Oracle.APIKey != "" {
			shown.Oracle.APIKey = "********"
		}
		return yaml.NewEncoder(cmd.OutOrStdout()).Encode(&shown)
	},
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Authorize access to Google Calendar",
	Long: fmt.Sprintf(`Runs the OAuth desktop flow and caches the token.

Download the OAuth client credentials of a Desktop app from the Google Cloud
console and save them as %s in the configuration directory first.`, auth.ClientSecretsFile),
	RunE: func(cmd *cobra.Command, args []string) error {
		tokenFile := filepath.Join(configDir, auth.TokenFile)
		if err := os.Remove(tokenFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove old token %s: %w", tokenFile, err)
		}
		flow := &auth.Flow{
			Dir: configDir,
			Log: logger,
			Prompt: func(authURL string) {
				fmt.Fprintf(cmd.OutOrStdout(), "Open the following URL in your browser to authorize effitime:\n%s\n", authURL)
			},
		}
		if err := flow.Authorize(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Authentication successful, token saved to %s\n", tokenFile)
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
