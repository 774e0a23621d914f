package harness

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	shlex "github.com/anmitsu/go-shlex"
	"github.com/hackeros/hl/core/emit"
	"github.com/hackeros/hl/core/lang"
)

// DefaultTimeout bounds a script run when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Local runs Programs as real subprocesses on the host: the script is
// written to a uniquely-named temporary file, marked executable, run under
// the configured shell with the Program's variables merged into the
// environment, and removed again no matter how the run ends.
type Local struct {
	Materializer *emit.Materializer
	// Shell is the interpreter command line, e.g. "/bin/bash". It is split
	// shell-style, so flags are allowed: "/bin/bash -x".
	Shell   string
	Timeout time.Duration
	Verbose bool
}

func (l *Local) Run(ctx context.Context, prog *lang.Program) (Result, error) {
	if prog.HasErrors() {
		return Result{}, ErrParseErrors
	}
	script, err := l.Materializer.Render(prog, l.Verbose)
	if err != nil {
		return Result{}, err
	}

	shell := l.Shell
	if shell == "" {
		shell = "/bin/bash"
	}
	argv, err := shlex.Split(shell, true)
	if err != nil || len(argv) == 0 {
		return Result{}, fmt.Errorf("invalid shell command %q", shell)
	}

	tmp, err := os.CreateTemp("", "hl_*.sh")
	if err != nil {
		return Result{}, err
	}
	path := tmp.Name()
	// Removal failures are swallowed; cleanup is best effort on every path.
	defer os.Remove(path)

	if _, err := tmp.WriteString(script); err != nil {
		tmp.Close()
		return Result{}, err
	}
	if err := tmp.Close(); err != nil {
		return Result{}, err
	}
	if err := os.Chmod(path, 0755); err != nil {
		return Result{}, err
	}

	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], append(argv[1:], path)...)
	cmd.Env = mergedEnv(prog)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runCtx.Err() == context.DeadlineExceeded {
		return Result{
			ExitCode: TimeoutExitCode,
			Stderr:   fmt.Sprintf("timeout: script exceeded %s", timeout),
		}, nil
	}

	res := Result{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return Result{}, runErr
		}
		res.ExitCode = exitErr.ExitCode()
	}
	return res, nil
}

// mergedEnv layers the Program's env vars and constants over the process
// environment; constants win on collision, matching export order in the
// script itself.
func mergedEnv(prog *lang.Program) []string {
	env := os.Environ()
	for _, v := range prog.EnvVars.All() {
		env = append(env, v.Name+"="+v.Value)
	}
	for _, c := range prog.Constants.All() {
		env = append(env, c.Name+"="+c.Value)
	}
	return env
}
