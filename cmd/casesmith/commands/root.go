// Package commands provides the CLI commands for casesmith.
package commands

import (
	"errors"
	"fmt"

	"github.com/l3aro/casesmith/internal/config"
	"github.com/l3aro/casesmith/internal/log"
	"github.com/spf13/cobra"
)

// ErrNotDirectory is returned when the output path exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// configPath holds the --config flag shared by all subcommands.
var configPath string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "casesmith",
	Short: "casesmith - security flow analysis for TypeScript code",
	Long: `casesmith builds a simplified control flow graph for every function in a
TypeScript or JavaScript code base, tags network, database, auth, crypto,
secret and logging operations, and writes a repository-wide security flow.

Commands:
  run         Parse a demo snippet and print its root node kind
  generate    Analyze a directory and write results to <dir>/.casesmithresults
  cfg         Print the control flow graphs of one file
  init        Create a configuration file interactively
  doctor      Check grammars, results directory, cache and database
  runs        List or show runs exported to SQLite

Use "casesmith [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig reads --config when given, otherwise the layered config files.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the command logger from config; verbose forces debug.
func newLogger(cfg *config.Config, verbose bool) log.Logger {
	level := log.ParseLevel(cfg.LogLevel)
	if verbose {
		level = log.DebugLevel
	}
	return log.New(log.LoggerConfig{
		Level:      level,
		JSONOutput: cfg.JSONLogs,
	})
}

// printConfig echoes the raw configuration text, as read.
func printConfig(cmd *cobra.Command, name string, cfg *config.Config) {
	fmt.Fprintf(cmd.OutOrStdout(), "[%s] Using config:\n%s\n", name, cfg.Raw)
}

func init() {
	RootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: layered .casesmith/config.yaml)")

	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(generateCmd)
	RootCmd.AddCommand(cfgCmd)
}
