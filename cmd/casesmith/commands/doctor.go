package commands

import (
	"fmt"

	"github.com/l3aro/casesmith/internal/healthcheck"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [dir]",
	Short: "Run health checks on configuration, grammars and outputs",
	Long: `Checks that every configured extension has a working grammar, that the
results directory under dir (default ".") is writable, and that the
extraction cache and SQLite database can be opened.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		root := "."
		if len(args) == 1 {
			root = args[0]
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		result, err := healthcheck.Check(cfg, root, "", cfg.Source)
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}

		displayDoctorResult(result)

		if result.HasError() {
			return fmt.Errorf("health check failed: one or more checks did not pass")
		}
		return nil
	},
}

func displayDoctorResult(result *healthcheck.HealthCheckResult) {
	if result.EffectivePath != "" {
		fmt.Printf("Using config: %s (%s)\n\n", result.EffectivePath, result.EffectiveScope)
	} else {
		fmt.Print("Using config: defaults\n\n")
	}

	fmt.Println("Grammars:")
	for _, g := range result.Grammars {
		printStatus(g)
	}

	fmt.Println("\nOutputs:")
	printStatus(result.ResultsDir)
	printStatus(result.Cache)
	printStatus(result.SQLite)
}

func printStatus(s healthcheck.ComponentStatus) {
	fmt.Printf("  %s %-8s %s\n", formatStatusIcon(s.Status), s.Name, s.Detail)
	if s.Error != "" && s.Status == healthcheck.StatusError {
		fmt.Printf("    Error: %s\n", s.Error)
	}
}

func formatStatusIcon(status string) string {
	switch status {
	case healthcheck.StatusReady:
		return "✓"
	case healthcheck.StatusDisabled:
		return "-"
	case healthcheck.StatusError:
		return "✗"
	default:
		return "?"
	}
}

func init() {
	RootCmd.AddCommand(doctorCmd)
}
