// Package harness executes materialized scripts as bounded subprocesses.
package harness

import (
	"context"
	"errors"

	"github.com/hackeros/hl/core/lang"
)

// TimeoutExitCode is reported when the wall-clock limit fires. The
// translated script itself never produces it under normal shell semantics.
const TimeoutExitCode = 124

// ErrParseErrors is returned when a Program carrying parse errors is handed
// to a Runner; such Programs must never be executed.
var ErrParseErrors = errors.New("program has parse errors")

// Result is the outcome of one script execution.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner materializes and executes a Program. Implementations guarantee
// that any on-disk artifacts are removed before Run returns, on every path.
type Runner interface {
	Run(ctx context.Context, prog *lang.Program) (Result, error)
}
