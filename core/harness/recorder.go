package harness

import (
	"context"

	"github.com/hackeros/hl/core/emit"
	"github.com/hackeros/hl/core/lang"
)

// Recorder is a Runner for tests and dry runs: it materializes scripts but
// executes nothing, recording each script it would have run.
type Recorder struct {
	Materializer *emit.Materializer
	Verbose      bool

	// Result is returned from every Run call.
	Result Result
	// Scripts collects the materialized script of each accepted Run.
	Scripts []string
}

func (r *Recorder) Run(ctx context.Context, prog *lang.Program) (Result, error) {
	if prog.HasErrors() {
		return Result{}, ErrParseErrors
	}
	script, err := r.Materializer.Render(prog, r.Verbose)
	if err != nil {
		return Result{}, err
	}
	r.Scripts = append(r.Scripts, script)
	return r.Result, nil
}
