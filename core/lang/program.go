package lang

import (
	"fmt"
	"strings"
)

// LibraryEntryName is the file checked for under <library root>/<name>/ when
// resolving a #library reference.
const LibraryEntryName = "main.hacker"

// Fragment is one generated shell statement held in a Program body.
type Fragment interface {
	Shell() string
}

// Raw is a fragment emitted verbatim.
type Raw string

func (r Raw) Shell() string { return string(r) }

// ElifArm is one `?? cond > cmd` branch spliced into an if chain.
type ElifArm struct {
	Cond string
	Body string
}

// IfChain is a structured if/elif/else fragment. It is built up by the
// parser as `??` and `?:` lines arrive and serialized to shell text exactly
// once, at emission time.
type IfChain struct {
	Cond  string
	Then  string
	Elifs []ElifArm
	Else  string

	sealed bool
}

// open reports whether the chain can still accept elif/else branches.
func (c *IfChain) open() bool { return !c.sealed }

func (c *IfChain) addElif(cond, body string) {
	c.Elifs = append(c.Elifs, ElifArm{Cond: cond, Body: body})
}

func (c *IfChain) close(elseBody string) {
	c.Else = elseBody
	c.sealed = true
}

func (c *IfChain) Shell() string {
	var b strings.Builder
	fmt.Fprintf(&b, "if %s; then %s;", c.Cond, c.Then)
	for _, e := range c.Elifs {
		fmt.Fprintf(&b, " elif %s; then %s;", e.Cond, e.Body)
	}
	if c.sealed {
		fmt.Fprintf(&b, " else %s;", c.Else)
	}
	b.WriteString(" fi")
	return b.String()
}

// Binding is one name=value declaration.
type Binding struct {
	Name  string
	Value string
}

// BindingList is a name→value mapping that preserves declaration order.
// Redeclaring a name overwrites its value in place, keeping the original
// position.
type BindingList struct {
	order  []string
	values map[string]string
}

func (l *BindingList) Set(name, value string) {
	if l.values == nil {
		l.values = make(map[string]string)
	}
	if _, ok := l.values[name]; !ok {
		l.order = append(l.order, name)
	}
	l.values[name] = value
}

func (l *BindingList) Get(name string) (string, bool) {
	v, ok := l.values[name]
	return v, ok
}

func (l *BindingList) Len() int { return len(l.order) }

// All returns the bindings in declaration order.
func (l *BindingList) All() []Binding {
	out := make([]Binding, 0, len(l.order))
	for _, name := range l.order {
		out = append(out, Binding{Name: name, Value: l.values[name]})
	}
	return out
}

// Program is the parser's structured output for one translation unit. It is
// built once per parse and never mutated after Parse returns.
type Program struct {
	// Dependencies are system command names required before execution.
	Dependencies map[string]struct{}

	IncludedLibraries []string
	MissingLibraries  []string

	EnvVars   BindingList
	Constants BindingList

	// Preamble holds hoisted shell function definitions in declaration
	// order. Body holds the top-level fragments. Final emission order is
	// Preamble followed by Body.
	Preamble []string
	Body     []Fragment

	// Plugins are unresolved plugin references.
	Plugins []string

	// Errors are parse errors. A Program carrying any must not be executed.
	Errors []string

	// Diagnostics are non-fatal notes, such as a match block auto-closed at
	// end of input.
	Diagnostics []string

	// Config is the flat key=value data from [ ... ] sections. Informational
	// only; it never affects the emitted shell.
	Config map[string]string

	// Functions maps function name to its captured raw body lines.
	Functions map[string][]string
}

func newProgram() *Program {
	return &Program{
		Dependencies: make(map[string]struct{}),
		Config:       make(map[string]string),
		Functions:    make(map[string][]string),
	}
}

func (p *Program) HasErrors() bool { return len(p.Errors) > 0 }

// Commands returns every fragment in emission order: hoisted function
// definitions first, then the top-level body.
func (p *Program) Commands() []string {
	out := make([]string, 0, len(p.Preamble)+len(p.Body))
	out = append(out, p.Preamble...)
	for _, f := range p.Body {
		out = append(out, f.Shell())
	}
	return out
}

func (p *Program) errorf(format string, args ...interface{}) {
	p.Errors = append(p.Errors, fmt.Sprintf(format, args...))
}

func (p *Program) diagf(format string, args ...interface{}) {
	p.Diagnostics = append(p.Diagnostics, fmt.Sprintf(format, args...))
}

func (p *Program) emit(f Fragment) {
	p.Body = append(p.Body, f)
}

func (p *Program) emitRaw(format string, args ...interface{}) {
	p.emit(Raw(fmt.Sprintf(format, args...)))
}
