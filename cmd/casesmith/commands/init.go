package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/l3aro/casesmith/internal/config"
	"github.com/l3aro/casesmith/internal/healthcheck"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize casesmith configuration interactively",
	Long: `Guides you through setting up casesmith configuration step by step and
writes a project or global config file.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInit()
	},
}

func runInit() error {
	cfg := config.DefaultConfig()

	// === SECTION 1: Sources ===
	var languages []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Source files").
				Description("Which file extensions should be analyzed?").
				Options(
					huh.NewOption(".ts", ".ts").Selected(true),
					huh.NewOption(".tsx", ".tsx").Selected(true),
					huh.NewOption(".js", ".js"),
					huh.NewOption(".jsx", ".jsx"),
					huh.NewOption(".mjs", ".mjs"),
				).
				Value(&languages),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	if len(languages) > 0 {
		cfg.Extensions = languages
	}

	excludeDirs := strings.Join(cfg.ExcludeDirs, ",")
	workers := strconv.Itoa(runtime.NumCPU())
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Directories to skip (comma separated)").
				Value(&excludeDirs),
			huh.NewInput().
				Title("Parallel workers").
				Placeholder(workers).
				Validate(func(s string) error {
					if n, err := strconv.Atoi(s); err != nil || n <= 0 {
						return fmt.Errorf("enter a positive number")
					}
					return nil
				}).
				Value(&workers),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	cfg.ExcludeDirs = nil
	for _, d := range strings.Split(excludeDirs, ",") {
		if d = strings.TrimSpace(d); d != "" {
			cfg.ExcludeDirs = append(cfg.ExcludeDirs, d)
		}
	}
	cfg.Workers, _ = strconv.Atoi(workers)

	// === SECTION 2: Outputs ===
	var exportSQLite bool
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Write SARIF report?").
				Description("security-flow.sarif for code scanning dashboards").
				Value(&cfg.SARIF),
			huh.NewConfirm().
				Title("Use the incremental extraction cache?").
				Value(&cfg.Cache),
			huh.NewConfirm().
				Title("Export each run to a SQLite database?").
				Value(&exportSQLite),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}
	if exportSQLite {
		cfg.SQLitePath = defaultSQLitePath(cfg.ResultsDir)
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("SQLite database path").
					Description("Relative paths are resolved from the directory casesmith is run in, not the analyzed directory.").
					Placeholder(cfg.SQLitePath).
					Value(&cfg.SQLitePath),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
	}

	// === SECTION 3: Config Location ===
	var saveLocationChoice string
	form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Save Configuration").
				Description("Where to save the configuration file?").
				Options(
					huh.NewOption("Project (./.casesmith/config.yaml)", "project"),
					huh.NewOption("Global (~/.casesmith/config.yaml)", "global"),
				).
				Value(&saveLocationChoice),
		),
	)
	if err := form.Run(); err != nil {
		return fmt.Errorf("interactive prompt failed: %w", err)
	}

	savePath := config.ProjectConfigFilePath()
	if saveLocationChoice == "global" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("getting home directory: %w", err)
		}
		savePath = filepath.Join(home, ".casesmith", "config.yaml")
	}

	if _, err := os.Stat(savePath); err == nil {
		var overwrite bool
		form = huh.NewForm(
			huh.NewGroup(
				huh.NewConfirm().
					Title("Config file exists").
					Description(fmt.Sprintf("Overwrite existing config at %s?", savePath)).
					Affirmative("Overwrite").
					Negative("Cancel").
					Value(&overwrite),
			),
		)
		if err := form.Run(); err != nil {
			return fmt.Errorf("interactive prompt failed: %w", err)
		}
		if !overwrite {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	fmt.Println("\n=== Configuration Preview ===")
	fmt.Printf("Config path: %s\n", savePath)
	fmt.Printf("Extensions: %s\n", strings.Join(cfg.Extensions, ", "))
	fmt.Printf("Skipped dirs: %s\n", strings.Join(cfg.ExcludeDirs, ", "))
	fmt.Printf("Workers: %d\n", cfg.Workers)
	fmt.Printf("SARIF: %t  Cache: %t\n", cfg.SARIF, cfg.Cache)
	if cfg.SQLitePath != "" {
		fmt.Printf("SQLite: %s\n", cfg.SQLitePath)
	}
	fmt.Println("================================")

	if err := cfg.Save(savePath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Printf("Configuration saved to: %s\n", savePath)

	// === SECTION 4: Health Check ===
	fmt.Println("\n=== Running Health Check ===")
	loadedCfg, err := config.LoadFromFile(savePath)
	if err != nil {
		return fmt.Errorf("loading saved config: %w", err)
	}
	result, err := healthcheck.Check(loadedCfg, ".", savePath, savePath)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	displayDoctorResult(result)
	return nil
}

// defaultSQLitePath suggests a database inside the results folder of the
// current directory, made absolute so generate --output finds the same file.
func defaultSQLitePath(resultsDir string) string {
	path := filepath.Join(resultsDir, "flow.db")
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func init() {
	RootCmd.AddCommand(initCmd)
}
