// Package cmd implements the autorun CLI.
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/azminug/autorun/internal/config"
	"github.com/azminug/autorun/internal/ui"
)

var configPath string

// cfg is the loaded configuration, available to every command after
// PersistentPreRunE.
var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "autorun",
	Short: "Keep a fleet of game accounts online",
	Long: `autorun watches a shared status store for account heartbeats, flags
accounts that fall offline, and dispatches restart runs one at a time.

The daemon does the watching; the other commands inspect and adjust the
same state from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		ui.InitTheme("")
		ui.ApplyThemeMode()
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(),
		"Path to the config file")
}

// defaultConfigPath puts the config next to the state dir under the user's
// home, falling back to the working directory.
func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "autorun.toml"
	}
	return filepath.Join(home, ".autorun", "config.toml")
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
