package commands

import (
	"fmt"

	"github.com/l3aro/casesmith/pkg/extractor"
	"github.com/spf13/cobra"
)

// demoSource is parsed by the run command to confirm the grammar loads.
const demoSource = "function helloWorld(param:string):void {\n    console.log('Hello, world!');\n}"

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Parse a demo snippet and print its root node kind",
	Long: `Parses a small TypeScript function count times and prints the kind of the
syntax tree's root node. Useful to check that the parser works.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		verbose, _ := cmd.Flags().GetBool("verbose")
		count, _ := cmd.Flags().GetUint8("count")

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger := newLogger(cfg, verbose).With("command", "run", "name", name)
		printConfig(cmd, "run", cfg)

		ext := extractor.New(nil)
		out := cmd.OutOrStdout()
		for i := 0; i < int(count); i++ {
			if verbose {
				fmt.Fprintln(out, "Verbose mode is enabled.")
			}
			tree, err := ext.Parse(cmd.Context(), []byte(demoSource), extractor.TypeScript)
			if err != nil {
				return fmt.Errorf("parsing demo source: %w", err)
			}
			fmt.Fprintf(out, "Root node: %s\n", tree.RootNode().Type())
			tree.Close()
			logger.Debug("parsed demo source", "iteration", i+1)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringP("name", "n", "", "Name of this run")
	runCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	runCmd.Flags().Uint8P("count", "c", 1, "Number of times to parse")
	_ = runCmd.MarkFlagRequired("name")
}
