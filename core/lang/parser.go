package lang

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// Parser translates DSL line sequences into Programs. A Parser holds only
// resolution settings and is safe for concurrent use; all mutable state
// lives in a per-Parse value.
type Parser struct {
	fs          afero.Fs
	libraryRoot string
	pluginRoot  string
	runtimeBin  string
	verbose     bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithFs sets the filesystem used for library, plugin and import resolution.
func WithFs(fs afero.Fs) Option {
	return func(p *Parser) { p.fs = fs }
}

// WithLibraryRoot sets the directory searched for #library references.
func WithLibraryRoot(dir string) Option {
	return func(p *Parser) { p.libraryRoot = dir }
}

// WithPluginRoot sets the directory searched for \plugin references.
func WithPluginRoot(dir string) Option {
	return func(p *Parser) { p.pluginRoot = dir }
}

// WithRuntime sets the binary that DSL-source plugins are routed through.
func WithRuntime(bin string) Option {
	return func(p *Parser) { p.runtimeBin = bin }
}

// Verbose surfaces import-resolution failures that are otherwise silent.
func Verbose(v bool) Option {
	return func(p *Parser) { p.verbose = v }
}

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		fs:         afero.NewOsFs(),
		runtimeBin: "hl-runtime",
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// funcCapture buffers the body of an open fn block.
type funcCapture struct {
	name string
	raw  []string
	body []string
}

type matchArm struct {
	value string
	cmd   string
}

// matchFrame is one open match block.
type matchFrame struct {
	cond string
	arms []matchArm
}

// parseState is the mutable state threaded through one Parse call.
type parseState struct {
	inConfig   bool
	fn         *funcCapture
	matchStack []matchFrame
}

// ParseFile reads and parses a single source file. A missing file yields a
// Program carrying the error rather than a failed call, matching the
// non-fatal error policy for everything else.
func (p *Parser) ParseFile(path string) (*Program, error) {
	data, err := afero.ReadFile(p.fs, path)
	if os.IsNotExist(err) {
		prog := newProgram()
		prog.errorf("file %s not found", path)
		return prog, nil
	}
	if err != nil {
		return nil, err
	}
	return p.Parse(strings.Split(string(data), "\n")), nil
}

// Parse classifies each line in order and assembles a fresh Program.
// Classification is total: malformed known constructs append to
// Program.Errors, and anything unrecognized falls through as a literal
// shell command, so parsing never rejects input outright.
func (p *Parser) Parse(lines []string) *Program {
	prog := newProgram()
	st := &parseState{}

	for i, raw := range lines {
		p.parseLine(st, prog, raw, i+1)
	}

	// Auto-close anything still open at end of input.
	for len(st.matchStack) > 0 {
		cond := st.matchStack[len(st.matchStack)-1].cond
		prog.diagf("unterminated match block for %s auto-closed at end of input", cond)
		p.flushMatch(st, prog)
	}
	if st.inConfig {
		prog.errorf("unclosed config section")
	}
	if st.fn != nil {
		prog.errorf("unclosed function block %s", st.fn.name)
	}
	return prog
}

func (p *Parser) parseLine(st *parseState, prog *Program, raw string, num int) {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "!") {
		return
	}

	// An open fn block redirects everything except its terminator into the
	// body buffer; nested block constructs are not supported inside.
	if st.fn != nil {
		if line == "endfn" {
			p.closeFunction(st, prog)
			return
		}
		st.fn.raw = append(st.fn.raw, line)
		st.fn.body = append(st.fn.body, TranslateInline(line))
		return
	}

	// Config sections toggle on bare brackets.
	if line == "[" {
		if st.inConfig {
			prog.errorf("line %d: nested config section", num)
		}
		st.inConfig = true
		return
	}
	if line == "]" {
		if !st.inConfig {
			prog.errorf("line %d: closing ] without [", num)
		}
		st.inConfig = false
		return
	}
	if st.inConfig {
		if key, value, ok := splitAssign(line); ok {
			prog.Config[key] = value
		} else {
			prog.errorf("line %d: invalid config entry: %s", num, line)
		}
		return
	}

	if strings.HasPrefix(line, "fn ") {
		name := strings.TrimLeft(strings.TrimSpace(line[3:]), ".")
		if name == "" {
			prog.errorf("line %d: empty function name", num)
			return
		}
		st.fn = &funcCapture{name: name}
		return
	}

	// A non-arm line closes the innermost open match block and is then
	// re-dispatched from the top of the rule chain.
	for {
		stmt := classify(line, len(st.matchStack) > 0)
		if stmt.kind != KindMatchClose {
			p.apply(st, prog, stmt, num)
			return
		}
		p.flushMatch(st, prog)
	}
}

// apply performs the side effects of one classified statement.
func (p *Parser) apply(st *parseState, prog *Program, stmt statement, num int) {
	switch stmt.kind {
	case KindDep:
		for _, dep := range strings.Fields(stmt.value) {
			prog.Dependencies[dep] = struct{}{}
		}

	case KindLib:
		if stmt.name == "" {
			return
		}
		entry := filepath.Join(p.libraryRoot, stmt.name, LibraryEntryName)
		if ok, _ := afero.Exists(p.fs, entry); ok {
			prog.IncludedLibraries = append(prog.IncludedLibraries, stmt.name)
		} else {
			prog.MissingLibraries = append(prog.MissingLibraries, stmt.name)
		}

	case KindMeta, KindLock:
		// Metadata forms emit no shell.

	case KindImport:
		data, err := afero.ReadFile(p.fs, stmt.value)
		if err != nil {
			if p.verbose {
				prog.errorf("line %d: import path does not exist: %s", num, stmt.value)
			}
			return
		}
		prog.emitRaw("# import %s", stmt.value)
		for _, imported := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
			prog.emit(Raw(imported))
		}

	case KindConst:
		prog.Constants.Set(stmt.name, stmt.value)
		prog.emitRaw("export %s=%s", stmt.name, Quote(stmt.value))
	case KindBadConst:
		prog.errorf("line %d: invalid constant: %s", num, stmt.value)

	case KindEnvVar:
		prog.EnvVars.Set(stmt.name, stmt.value)
		prog.emitRaw("export %s=%s", stmt.name, Quote(stmt.value))
	case KindBadEnvVar:
		prog.errorf("line %d: invalid variable: %s", num, stmt.value)

	case KindSpawnAssign:
		prog.emitRaw("export %s=$( %s & echo $! )", stmt.name, stmt.cmd)

	case KindAwaitAssign:
		switch {
		case strings.HasPrefix(stmt.value, "$"):
			prog.emitRaw("wait %s; export %s=$?", stmt.value, stmt.name)
		case strings.HasPrefix(stmt.value, "."):
			prog.emitRaw("%s; export %s=$_HL_OUT", strings.TrimLeft(stmt.value, "."), stmt.name)
		default:
			prog.emitRaw("export %s=$( %s )", stmt.name, stmt.value)
		}

	case KindLocalVar:
		prog.EnvVars.Set(stmt.name, stmt.value)
		prog.emitRaw("export %s=%s", stmt.name, Quote(stmt.value))
	case KindBadLocalVar:
		prog.errorf("line %d: invalid variable: %s", num, stmt.value)

	case KindSpawn:
		prog.emitRaw("%s &", stmt.cmd)

	case KindAwait:
		if strings.HasPrefix(stmt.value, ".") {
			prog.emit(Raw(strings.TrimLeft(stmt.value, ".")))
		} else {
			prog.emitRaw("wait %s", stmt.value)
		}

	case KindAssert:
		prog.emitRaw("if ! ( %s ) 2>/dev/null; then echo 'assert: %s' >&2; exit 1; fi",
			stmt.value, stmt.cmd)

	case KindMatchOpen:
		st.matchStack = append(st.matchStack, matchFrame{cond: stmt.value})

	case KindMatchArm:
		top := &st.matchStack[len(st.matchStack)-1]
		top.arms = append(top.arms, matchArm{value: stmt.value, cmd: stmt.cmd})

	case KindPipeChain:
		p.applyPipeChain(prog, stmt.value)

	case KindLoop:
		n, err := strconv.Atoi(stmt.value)
		if err != nil {
			prog.errorf("line %d: invalid loop count: %s", num, stmt.value)
			return
		}
		prog.emitRaw("for _hl_i in $(seq 1 %d); do %s; done", n, TranslateInline(stmt.cmd))

	case KindWhile:
		prog.emitRaw("while %s; do %s; done", stmt.value, TranslateInline(stmt.cmd))

	case KindFor:
		prog.emitRaw("for %s in %s; do %s; done", stmt.name, stmt.value, TranslateInline(stmt.cmd))

	case KindTryCatch:
		prog.emitRaw("( %s ) || ( %s )", TranslateInline(stmt.value), TranslateInline(stmt.cmd))

	case KindIf:
		prog.emit(&IfChain{Cond: stmt.value, Then: TranslateInline(stmt.cmd)})

	case KindElif:
		if chain := openChain(prog); chain != nil {
			chain.addElif(stmt.value, TranslateInline(stmt.cmd))
		} else {
			prog.errorf("line %d: ?? without a preceding open if chain", num)
		}

	case KindElse:
		if chain := openChain(prog); chain != nil {
			chain.close(TranslateInline(stmt.cmd))
		} else {
			prog.errorf("line %d: ?: without a preceding open if chain", num)
		}

	case KindBackground:
		prog.emitRaw("%s &", stmt.cmd)

	case KindPlugin:
		p.applyPlugin(prog, stmt.name, stmt.cmd)
	case KindBadPlugin:
		prog.errorf("line %d: empty plugin name", num)

	case KindLog:
		prog.emitRaw("echo %s", stmt.cmd)
	case KindOut:
		prog.emitRaw("export _HL_OUT=%s", stmt.cmd)
	case KindEnd:
		prog.emitRaw("exit %s", stmt.value)

	case KindSubshell:
		prog.emitRaw("( %s )", stmt.cmd)

	case KindCall:
		if stmt.cmd != "" {
			prog.emitRaw("export _HL_ARGS=%s; %s", Quote(stmt.cmd), stmt.name)
		} else {
			prog.emit(Raw(stmt.name))
		}

	case KindRawNoSub, KindRawSub:
		prog.emit(Raw(stmt.cmd))

	case KindSudo:
		prog.emitRaw("sudo %s", stmt.cmd)

	case KindLiteral:
		prog.emit(Raw(stmt.cmd))
	}
}

// applyPipeChain emits a dotted pipe chain: all-dotted chains become a
// sequence of calls, mixed chains one piped command.
func (p *Parser) applyPipeChain(prog *Program, line string) {
	segs := strings.Split(line, "|>")
	allDotted := true
	for i, s := range segs {
		segs[i] = strings.TrimSpace(s)
		if !strings.HasPrefix(segs[i], ".") {
			allDotted = false
		}
	}
	if allDotted {
		for _, s := range segs {
			prog.emit(Raw(strings.TrimLeft(s, ".")))
		}
		return
	}
	for i, s := range segs {
		segs[i] = strings.TrimLeft(s, ".")
	}
	prog.emit(Raw(strings.Join(segs, " | ")))
}

// applyPlugin resolves a \name reference against the plugin root: native
// executables are invoked directly, DSL-source plugins go through the
// runtime binary, and everything else is recorded as unresolved.
func (p *Parser) applyPlugin(prog *Program, name, args string) {
	binPath := filepath.Join(p.pluginRoot, name)
	if ok, _ := afero.Exists(p.fs, binPath); ok {
		prog.emit(Raw(strings.TrimSpace(binPath + " " + args)))
		return
	}
	dslPath := binPath + ".hacker"
	if ok, _ := afero.Exists(p.fs, dslPath); ok {
		prog.emit(Raw(strings.TrimSpace(p.runtimeBin + " " + dslPath + " " + args)))
		return
	}
	ref := strings.TrimSpace(name + " " + args)
	prog.Plugins = append(prog.Plugins, ref)
	prog.emitRaw("# plugin: %s", ref)
}

// flushMatch turns the innermost open match frame into a single
// case...esac fragment. Frames with no arms emit nothing.
func (p *Parser) flushMatch(st *parseState, prog *Program) {
	top := st.matchStack[len(st.matchStack)-1]
	st.matchStack = st.matchStack[:len(st.matchStack)-1]
	if len(top.arms) == 0 {
		return
	}
	var b strings.Builder
	b.WriteString("case " + top.cond + " in")
	for _, arm := range top.arms {
		v := arm.value
		if v == "_" {
			v = "*"
		} else {
			v = strings.Trim(v, `"'`)
		}
		b.WriteString(" " + v + ") " + arm.cmd + ";;")
	}
	b.WriteString(" esac")
	prog.emit(Raw(b.String()))
}

// closeFunction hoists the captured body into the preamble as a POSIX shell
// function definition. Empty bodies emit the no-op colon.
func (p *Parser) closeFunction(st *parseState, prog *Program) {
	fn := st.fn
	st.fn = nil
	prog.Functions[fn.name] = fn.raw

	body := "  :"
	if len(fn.body) > 0 {
		body = "  " + strings.Join(fn.body, "\n  ")
	}
	prog.Preamble = append(prog.Preamble, fn.name+"() {\n"+body+"\n}")
}

// openChain returns the most recently emitted fragment if it is an if chain
// that can still accept branches.
func openChain(prog *Program) *IfChain {
	if len(prog.Body) == 0 {
		return nil
	}
	chain, ok := prog.Body[len(prog.Body)-1].(*IfChain)
	if !ok || !chain.open() {
		return nil
	}
	return chain
}
