// Package emit renders parsed Programs into executable shell script text.
package emit

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
	"github.com/hackeros/hl/core/lang"
)

// Materializer turns a Program into one shell script string. It needs
// filesystem access only to splice included library sources.
type Materializer struct {
	fs          afero.Fs
	libraryRoot string
	installCmd  string
}

// Option configures a Materializer.
type Option func(*Materializer)

// WithFs sets the filesystem used to read included libraries.
func WithFs(fs afero.Fs) Option {
	return func(m *Materializer) { m.fs = fs }
}

// WithLibraryRoot sets the directory included libraries are read from.
func WithLibraryRoot(dir string) Option {
	return func(m *Materializer) { m.libraryRoot = dir }
}

// WithInstallCommand sets the command prefix used in dependency guards,
// e.g. "sudo apt-get install -y".
func WithInstallCommand(cmd string) Option {
	return func(m *Materializer) { m.installCmd = cmd }
}

func New(opts ...Option) *Materializer {
	m := &Materializer{
		fs:         afero.NewOsFs(),
		installCmd: "sudo apt-get install -y",
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Render produces the final script: shebang and strict-mode prologue,
// dependency guards, inlined includes, exports, then every fragment in
// emission order. When verbose is set each fragment is preceded by an
// echoed trace line. The Program must already have passed include
// resolution; a read failure here is an I/O error, not a parse problem.
func (m *Materializer) Render(prog *lang.Program, verbose bool) (string, error) {
	var b strings.Builder
	b.WriteString("#!/bin/bash\n")
	b.WriteString("set -euo pipefail\n\n")

	deps := make([]string, 0, len(prog.Dependencies))
	for dep := range prog.Dependencies {
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	for _, dep := range deps {
		if dep == "sudo" {
			continue
		}
		fmt.Fprintf(&b, "command -v %s >/dev/null 2>&1 || (echo \"Installing %s...\" && %s %s)\n",
			dep, dep, m.installCmd, dep)
	}

	for _, inc := range prog.IncludedLibraries {
		data, err := afero.ReadFile(m.fs, filepath.Join(m.libraryRoot, inc, lang.LibraryEntryName))
		if err != nil {
			return "", fmt.Errorf("inlining library %s: %w", inc, err)
		}
		fmt.Fprintf(&b, "# === include: %s ===\n", inc)
		b.Write(data)
		b.WriteString("\n")
	}

	for _, v := range prog.EnvVars.All() {
		fmt.Fprintf(&b, "export %s=%s\n", v.Name, lang.Quote(v.Value))
	}
	for _, c := range prog.Constants.All() {
		fmt.Fprintf(&b, "export %s=%s\n", c.Name, lang.Quote(c.Value))
	}

	for _, cmd := range prog.Commands() {
		if verbose {
			fmt.Fprintf(&b, "echo \"[hl] %s\"\n", strings.ReplaceAll(cmd, "'", `'\''`))
		}
		b.WriteString(cmd)
		b.WriteString("\n")
	}
	return b.String(), nil
}
