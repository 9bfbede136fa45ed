// Command alarmctl manages habit alarms from the terminal. It works on the
// same database as alarmd.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/notexe/habit-alarm/internal/app"
	"github.com/notexe/habit-alarm/internal/config"
	"github.com/notexe/habit-alarm/internal/logger"
	"github.com/notexe/habit-alarm/internal/ui"
)

var (
	configFlag  string
	noColorFlag bool
	verboseFlag bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.NewFormatter(!noColorFlag).Error(err.Error()))
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "alarmctl",
		Short:         "Manage recurring habit alarms",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", config.GetDefaultConfigPath(), "Path to configuration file")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Log at the configured level instead of warn")

	rootCmd.AddCommand(
		newListCmd(),
		newPendingCmd(),
		newAddCmd(),
		newToggleCmd(),
		newDeleteCmd(),
		newDoneCmd(),
		newGraphCmd(),
		newReconcileCmd(),
	)
	return rootCmd
}

// openApp loads config and opens the database. The caller closes the app.
func openApp() (*app.App, *ui.Formatter, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	level := "warn"
	if verboseFlag {
		level = cfg.Log.Level
	}

	a, err := app.New(cfg, logger.New("alarmctl", level))
	if err != nil {
		return nil, nil, err
	}
	return a, ui.NewFormatter(!noColorFlag), nil
}
