package commands

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/l3aro/casesmith/pkg/store"
	"github.com/spf13/cobra"
)

// runsCmd lists or shows runs exported to SQLite.
var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List runs stored in the SQLite export, or show one",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		dbPath, _ := cmd.Flags().GetString("sqlite")
		if dbPath == "" {
			dbPath = cfg.SQLitePath
		}
		if dbPath == "" {
			return fmt.Errorf("no database configured (set sqlite_path or use --sqlite)")
		}

		db, err := store.OpenPath(dbPath)
		if err != nil {
			return err
		}
		defer db.Close()

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			runs, err := db.ListRuns()
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %s  functions=%d edges=%d boundary_crossings=%d pii_edges=%d  %s\n",
					r.ID, r.CreatedAt.Format(time.RFC3339),
					r.Index.Functions, r.Index.Edges, r.Index.BoundaryCrossings, r.Index.PIIEdges, r.Root)
			}
			return nil
		}

		if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
			report, err := db.LoadFlow(args[0])
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(report, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		counts, err := db.CountByKind(args[0])
		if err != nil {
			return err
		}
		kinds := make([]string, 0, len(counts))
		byName := make(map[string]int, len(counts))
		for k, n := range counts {
			kinds = append(kinds, k.String())
			byName[k.String()] = n
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(out, "%-8s %d\n", k, byName[k])
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().String("sqlite", "", "SQLite database path (default: sqlite_path from config)")
	runsCmd.Flags().BoolP("json", "j", false, "Print the stored security flow as JSON")
	RootCmd.AddCommand(runsCmd)
}
