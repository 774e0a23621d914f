package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var checkVerbose bool

// checkCmd validates a script without executing anything.
var checkCmd = &cobra.Command{
	Use:   "check FILE",
	Short: "Validate the syntax of a hacker-lang script.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		prog, err := newParser(cfg, checkVerbose).ParseFile(args[0])
		if err != nil {
			return err
		}

		appLogger(cfg).ForSource(args[0]).RecordParse(parseEvent(prog))

		if prog.HasErrors() {
			printErrors(cmd, prog)
			return fmt.Errorf("%d parse errors", len(prog.Errors))
		}
		printWarnings(cmd, prog)
		color.New(color.FgGreen).Fprintln(cmd.OutOrStdout(), "Syntax validation passed!")
		return nil
	},
}

func init() {
	checkCmd.Flags().BoolVarP(&checkVerbose, "verbose", "v", false, "surface silent resolution failures")
	rootCmd.AddCommand(checkCmd)
}
