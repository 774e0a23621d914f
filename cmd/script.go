package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var scriptVerbose bool

// scriptCmd prints the generated shell script without running it.
var scriptCmd = &cobra.Command{
	Use:   "script FILE",
	Short: "Print the shell script a hacker-lang file translates to.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		prog, err := newParser(cfg, scriptVerbose).ParseFile(args[0])
		if err != nil {
			return err
		}
		if prog.HasErrors() {
			printErrors(cmd, prog)
			return fmt.Errorf("%d parse errors", len(prog.Errors))
		}

		script, err := newMaterializer(cfg).Render(prog, scriptVerbose)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), script)
		return nil
	},
}

func init() {
	scriptCmd.Flags().BoolVarP(&scriptVerbose, "verbose", "v", false, "include command trace lines")
	rootCmd.AddCommand(scriptCmd)
}
