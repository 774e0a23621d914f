package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/hackeros/hl/core/harness"
	"github.com/hackeros/hl/core/lang"
	"github.com/hackeros/hl/core/logger"
)

var runVerbose bool

// runCmd translates a script and executes it under the harness.
var runCmd = &cobra.Command{
	Use:   "run FILE",
	Short: "Translate a hacker-lang script to shell and execute it.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		prog, err := newParser(cfg, runVerbose).ParseFile(args[0])
		if err != nil {
			return err
		}

		events := appLogger(cfg).ForSource(args[0])
		events.RecordParse(parseEvent(prog))

		if prog.HasErrors() {
			printErrors(cmd, prog)
			return fmt.Errorf("%d parse errors", len(prog.Errors))
		}
		printWarnings(cmd, prog)

		runner := &harness.Local{
			Materializer: newMaterializer(cfg),
			Shell:        cfg.Shell,
			Timeout:      cfg.Timeout(),
			Verbose:      runVerbose,
		}

		start := time.Now()
		res, err := runner.Run(cmd.Context(), prog)
		if err != nil {
			return err
		}
		events.RecordExec(&logger.ExecEvent{
			ExitCode:       res.ExitCode,
			TimedOut:       res.ExitCode == harness.TimeoutExitCode,
			DurationMicros: time.Since(start).Microseconds(),
		})

		if res.Stdout != "" {
			fmt.Fprintln(cmd.OutOrStdout(), res.Stdout)
		}
		if res.Stderr != "" {
			fmt.Fprintln(cmd.ErrOrStderr(), res.Stderr)
		}
		if res.ExitCode != 0 {
			os.Exit(res.ExitCode)
		}
		return nil
	},
}

func parseEvent(prog *lang.Program) *logger.ParseEvent {
	return &logger.ParseEvent{
		Lines:            len(prog.Commands()),
		Errors:           prog.Errors,
		MissingLibraries: prog.MissingLibraries,
		Plugins:          prog.Plugins,
	}
}

func printErrors(cmd *cobra.Command, prog *lang.Program) {
	red := color.New(color.FgRed)
	for _, e := range prog.Errors {
		red.Fprintf(cmd.ErrOrStderr(), "✖ %s\n", e)
	}
}

func printWarnings(cmd *cobra.Command, prog *lang.Program) {
	yellow := color.New(color.FgYellow)
	if len(prog.MissingLibraries) > 0 {
		yellow.Fprintf(cmd.ErrOrStderr(), "missing libraries: %s\n",
			strings.Join(prog.MissingLibraries, ", "))
	}
	if len(prog.Plugins) > 0 {
		yellow.Fprintf(cmd.ErrOrStderr(), "unresolved plugins: %s\n",
			strings.Join(prog.Plugins, ", "))
	}
	for _, d := range prog.Diagnostics {
		yellow.Fprintf(cmd.ErrOrStderr(), "note: %s\n", d)
	}
}

func init() {
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "echo each command before execution")
	rootCmd.AddCommand(runCmd)
}
