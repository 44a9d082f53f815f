// Package cli wires the logship commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nightjar-systems/logship/internal/config"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "logship",
	Short: "Lifecycle-event log shipping sink",
	Long: `logship consumes application lifecycle events (requests, log
statements, server errors, ops snapshots) and ships them as normalized
structured log entries to a remote backend.`,
	Version: "0.1.0",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
}
