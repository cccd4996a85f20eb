package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/l3aro/casesmith/pkg/cfg"
	"github.com/l3aro/casesmith/pkg/extractor"
	"github.com/l3aro/casesmith/pkg/flow"
	"github.com/spf13/cobra"
)

// cfgCmd represents the cfg command
var cfgCmd = &cobra.Command{
	Use:   "cfg <file> [function]",
	Short: "Print the control flow graphs of one file",
	Long: `Extracts the control flow graph of every function-like entity in a
TypeScript or JavaScript file. With a function name, only that entity is
printed. Outputs JSON with --json.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		filePath := args[0]

		info, err := os.Stat(filePath)
		if err != nil {
			return fmt.Errorf("stat file: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("path is a directory, expected a file: %s", filePath)
		}

		cfgs, err := extractor.New(nil).ExtractFile(cmd.Context(), filePath)
		if err != nil {
			return fmt.Errorf("extracting CFG: %w", err)
		}

		if len(args) == 2 {
			g, ok := cfgs[args[1]]
			if !ok {
				return fmt.Errorf("function %q not found in %s", args[1], filePath)
			}
			cfgs = cfg.FileCFGs{args[1]: g}
		}

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			data, err := json.MarshalIndent(cfgs, "", "  ")
			if err != nil {
				return fmt.Errorf("marshaling JSON: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		}

		printCFGs(cmd.OutOrStdout(), cfgs)
		return nil
	},
}

// printCFGs prints graphs in human-readable format, sorted by name.
func printCFGs(w io.Writer, cfgs cfg.FileCFGs) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		fmt.Fprintln(w, "No functions found.")
		return
	}
	for _, name := range names {
		g := cfgs[name]
		fmt.Fprintf(w, "=== CFG for function: %s ===\n", name)
		fmt.Fprintf(w, "Nodes (%d):\n", len(g.Nodes))
		for i, label := range g.Nodes {
			fmt.Fprintf(w, "  [%d] %s\n", i, label)
		}
		fmt.Fprintf(w, "Edges (%d):\n", len(g.Edges))
		for _, e := range g.Edges {
			kind := flow.DeriveKind(g.Nodes[e[0]], g.Nodes[e[1]])
			fmt.Fprintf(w, "  %d --%s--> %d\n", e[0], kind, e[1])
		}
		fmt.Fprintln(w)
	}
}

func init() {
	cfgCmd.Flags().BoolP("json", "j", false, "Output as JSON")
}
