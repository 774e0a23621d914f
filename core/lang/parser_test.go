package lang

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testParser(t *testing.T, opts ...Option) (*Parser, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	base := []Option{
		WithFs(fs),
		WithLibraryRoot("/hacker/libs"),
		WithPluginRoot("/hacker/plugins"),
	}
	return NewParser(append(base, opts...)...), fs
}

func parseOne(t *testing.T, line string) *Program {
	t.Helper()
	p, _ := testParser(t)
	return p.Parse([]string{line})
}

// TestDispatchTable covers one representative line per construct and the
// exact fragment it emits.
func TestDispatchTable(t *testing.T) {
	cases := map[string]struct {
		lines []string
		want  []string
	}{
		"envVar":      {[]string{"@KEY=value"}, []string{"export KEY=value"}},
		"envVarQuote": {[]string{"@MSG=hello world"}, []string{"export MSG='hello world'"}},
		"constant":    {[]string{"%RETRIES=3"}, []string{"export RETRIES=3"}},
		"localVar":    {[]string{"$count=5"}, []string{"export count=5"}},
		"spawnAssign": {[]string{"$job=spawn .work"}, []string{"export job=$( work & echo $! )"}},
		"awaitJob":    {[]string{"$rc=await $job"}, []string{"wait $job; export rc=$?"}},
		"awaitCall":   {[]string{"$res=await .calc"}, []string{"calc; export res=$_HL_OUT"}},
		"awaitSubst":  {[]string{"$now=await date"}, []string{"export now=$( date )"}},
		"spawn":       {[]string{"spawn sleep 5"}, []string{"sleep 5 &"}},
		"spawnDotted": {[]string{"spawn .task"}, []string{"task &"}},
		"awaitWait":   {[]string{"await $job"}, []string{"wait $job"}},
		"awaitDotted": {[]string{"await .task"}, []string{"task"}},
		"assertMsg": {
			[]string{`assert [ -d /tmp ] "tmp is gone"`},
			[]string{"if ! ( [ -d /tmp ] ) 2>/dev/null; then echo 'assert: tmp is gone' >&2; exit 1; fi"},
		},
		"assertDefault": {
			[]string{"assert true"},
			[]string{"if ! ( true ) 2>/dev/null; then echo 'assert: Assertion failed: true' >&2; exit 1; fi"},
		},
		"pipeChainDotted": {[]string{".fetch |> .parse |> .store"}, []string{"fetch", "parse", "store"}},
		"pipeChainMixed":  {[]string{".fetch |> grep ok"}, []string{"fetch | grep ok"}},
		"loop":            {[]string{"=3 > echo x"}, []string{"for _hl_i in $(seq 1 3); do echo x; done"}},
		"loopInline":      {[]string{"=2 > log hi"}, []string{"for _hl_i in $(seq 1 2); do echo hi; done"}},
		"while":           {[]string{"while [ -f lock ] > sleep 1"}, []string{"while [ -f lock ]; do sleep 1; done"}},
		"whilePipe":       {[]string{"while true |> log tick"}, []string{"while true; do echo tick; done"}},
		"for":             {[]string{"for f in *.txt > cat $f"}, []string{"for f in *.txt; do cat $f; done"}},
		"forPipe":         {[]string{"for n in 1 2 3 |> log $n"}, []string{"for n in 1 2 3; do echo $n; done"}},
		"tryCatch":        {[]string{"try .risky catch log failed"}, []string{"( risky ) || ( echo failed )"}},
		"ifOnly":          {[]string{"? true > echo yes"}, []string{"if true; then echo yes; fi"}},
		"background":      {[]string{"& ping -c 1 host"}, []string{"ping -c 1 host &"}},
		"log":             {[]string{"log hi there"}, []string{"echo hi there"}},
		"out":             {[]string{"out 42"}, []string{"export _HL_OUT=42"}},
		"end":             {[]string{"end"}, []string{"exit 0"}},
		"endCode":         {[]string{"end 7"}, []string{"exit 7"}},
		"subshell":        {[]string{"(ls -la)"}, []string{"( ls -la )"}},
		"call":            {[]string{".deploy"}, []string{"deploy"}},
		"callArgs":        {[]string{".deploy prod fast"}, []string{"export _HL_ARGS='prod fast'; deploy"}},
		"rawNoSub":        {[]string{">>date +%s"}, []string{"date +%s"}},
		"rawSub":          {[]string{"> df -h"}, []string{"df -h"}},
		"sudo":            {[]string{"^apt update"}, []string{"sudo apt update"}},
		"fallback":        {[]string{"echo plain shell"}, []string{"echo plain shell"}},
		"lockIgnored":     {[]string{"lock $buf = 16", "unlock $buf"}, nil},
		"metaIgnored":     {[]string{"--extern static foo", "== Color [Red, Green]", "struct Point [x:int]"}, nil},
		"commentSkipped":  {[]string{"! a comment", "", "   "}, nil},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			p, _ := testParser(t)
			prog := p.Parse(tc.lines)
			assert.Empty(t, prog.Errors)
			if diff := cmp.Diff(tc.want, prog.Commands(), cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("commands mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEnvVarsOrderedLastWriteWins(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{"@A=1", "@B=2", "@A=3"})

	want := []Binding{{Name: "A", Value: "3"}, {Name: "B", Value: "2"}}
	if diff := cmp.Diff(want, prog.EnvVars.All()); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
}

func TestDependenciesDeduplicated(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{"//curl wget", "//curl jq"})

	assert.Len(t, prog.Dependencies, 3)
	for _, dep := range []string{"curl", "wget", "jq"} {
		_, ok := prog.Dependencies[dep]
		assert.True(t, ok, "missing dependency %q", dep)
	}
}

func TestLibraryResolution(t *testing.T) {
	p, fs := testParser(t)
	require.NoError(t, afero.WriteFile(fs,
		"/hacker/libs/netutil/main.hacker", []byte("ping -c 1 example.com"), 0644))

	prog := p.Parse([]string{"#netutil", "#ghost", "#"})

	assert.Equal(t, []string{"netutil"}, prog.IncludedLibraries)
	assert.Equal(t, []string{"ghost"}, prog.MissingLibraries)
	assert.Empty(t, prog.Errors)
}

func TestImportSplicesFileContents(t *testing.T) {
	p, fs := testParser(t)
	require.NoError(t, afero.WriteFile(fs,
		"/inc/setup.sh", []byte("mkdir -p /tmp/work\ncd /tmp/work\n"), 0644))

	prog := p.Parse([]string{`<<"/inc/setup.sh"`})

	assert.Equal(t, []string{
		"# import /inc/setup.sh",
		"mkdir -p /tmp/work",
		"cd /tmp/work",
	}, prog.Commands())
}

func TestImportMissing(t *testing.T) {
	t.Run("silent by default", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{`<<"/nope.sh"`})
		assert.Empty(t, prog.Errors)
		assert.Empty(t, prog.Commands())
	})

	t.Run("surfaced in verbose mode", func(t *testing.T) {
		p, _ := testParser(t, Verbose(true))
		prog := p.Parse([]string{`<<"/nope.sh"`})
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "import path does not exist")
	})
}

func TestPluginResolution(t *testing.T) {
	p, fs := testParser(t)
	require.NoError(t, afero.WriteFile(fs, "/hacker/plugins/scan", []byte("#!/bin/sh"), 0755))
	require.NoError(t, afero.WriteFile(fs, "/hacker/plugins/probe.hacker", []byte("log probing"), 0644))

	prog := p.Parse([]string{`\scan --fast`, `\probe`, `\ghost arg`})

	assert.Equal(t, []string{
		"/hacker/plugins/scan --fast",
		"hl-runtime /hacker/plugins/probe.hacker",
		"# plugin: ghost arg",
	}, prog.Commands())
	assert.Equal(t, []string{"ghost arg"}, prog.Plugins)
}

func TestFunctionHoisting(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{
		"log first",
		"fn .greet",
		"log hi",
		".helper",
		"endfn",
		"log bye",
	})

	require.Empty(t, prog.Errors)
	want := []string{
		"greet() {\n  echo hi\n  helper\n}",
		"echo first",
		"echo bye",
	}
	assert.Equal(t, want, prog.Commands())
	assert.Equal(t, []string{"log hi", ".helper"}, prog.Functions["greet"])
}

func TestFunctionsHoistInDeclarationOrder(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{
		"fn .first",
		"log one",
		"endfn",
		"fn .second",
		"log two",
		"endfn",
	})

	require.Len(t, prog.Preamble, 2)
	assert.True(t, strings.HasPrefix(prog.Preamble[0], "first() {"))
	assert.True(t, strings.HasPrefix(prog.Preamble[1], "second() {"))
}

func TestEmptyFunctionBody(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{"fn .noop", "endfn"})

	assert.Equal(t, []string{"noop() {\n  :\n}"}, prog.Commands())
}

func TestFunctionErrors(t *testing.T) {
	t.Run("empty name", func(t *testing.T) {
		prog := parseOne(t, "fn ")
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "empty function name")
	})

	t.Run("unclosed at EOF", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"fn .broken", "log hi"})
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "unclosed function block")
	})

	t.Run("endfn outside function is a literal", func(t *testing.T) {
		prog := parseOne(t, "endfn")
		assert.Empty(t, prog.Errors)
		assert.Equal(t, []string{"endfn"}, prog.Commands())
	})
}

func TestConfigSection(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{
		"[",
		"Author=Advanced User",
		"Version = 1.0",
		"]",
	})

	assert.Empty(t, prog.Errors)
	assert.Empty(t, prog.Commands())
	assert.Equal(t, map[string]string{
		"Author":  "Advanced User",
		"Version": "1.0",
	}, prog.Config)
}

func TestConfigErrors(t *testing.T) {
	t.Run("bad entry", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"[", "not an entry", "]"})
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "invalid config entry")
	})

	t.Run("unclosed", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"[", "k=v"})
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "unclosed config section")
	})

	// Two opens followed by two closes: exactly one nested-section error,
	// and the parser is back outside config at the end (no unclosed error).
	t.Run("nested", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"[", "[", "]", "]"})

		var nested, unclosed int
		for _, e := range prog.Errors {
			if strings.Contains(e, "nested config section") {
				nested++
			}
			if strings.Contains(e, "unclosed config section") {
				unclosed++
			}
		}
		assert.Equal(t, 1, nested)
		assert.Zero(t, unclosed)
	})

	t.Run("stray close", func(t *testing.T) {
		prog := parseOne(t, "]")
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "closing ] without [")
	})
}

func TestMatchBlock(t *testing.T) {
	t.Run("flushed at end of input", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"match $v |>",
			`"a" > echo A`,
			"_ > echo B",
		})

		assert.Equal(t, []string{"case $v in a) echo A;; *) echo B;; esac"}, prog.Commands())
		require.Len(t, prog.Diagnostics, 1)
		assert.Contains(t, prog.Diagnostics[0], "auto-closed at end of input")
	})

	t.Run("closed by non-arm line", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"match $mode |>",
			"fast > make quick",
			"log done",
		})

		assert.Equal(t, []string{
			"case $mode in fast) make quick;; esac",
			"echo done",
		}, prog.Commands())
		assert.Empty(t, prog.Diagnostics)
	})

	t.Run("empty block emits nothing", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"match $v |>", "log after"})
		assert.Equal(t, []string{"echo after"}, prog.Commands())
	})

	t.Run("nested blocks flush innermost first", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"match $outer |>",
			"x > echo X",
			"match $inner |>",
			"y > echo Y",
		})

		assert.Equal(t, []string{
			"case $inner in y) echo Y;; esac",
			"case $outer in x) echo X;; esac",
		}, prog.Commands())
		assert.Len(t, prog.Diagnostics, 2)
	})

	// Higher-priority constructs inside an open block do not close it.
	t.Run("env var inside block", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"match $v |>",
			"@K=1",
			"a > echo A",
		})

		assert.Equal(t, []string{
			"export K=1",
			"case $v in a) echo A;; esac",
		}, prog.Commands())
	})
}

func TestIfChainSplicing(t *testing.T) {
	t.Run("if elif else", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"? [ $x = 1 ] > log one",
			"?? [ $x = 2 ] > log two",
			"?: > log many",
		})

		require.Empty(t, prog.Errors)
		assert.Equal(t, []string{
			"if [ $x = 1 ]; then echo one; elif [ $x = 2 ]; then echo two; else echo many; fi",
		}, prog.Commands())
	})

	t.Run("if then else", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{"? true > echo yes", "?: > echo no"})
		assert.Equal(t, []string{"if true; then echo yes; else echo no; fi"}, prog.Commands())
	})

	t.Run("dangling elif is an error", func(t *testing.T) {
		prog := parseOne(t, "?? true > echo hi")
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "?? without a preceding open if chain")
		assert.Empty(t, prog.Commands())
	})

	t.Run("dangling else is an error", func(t *testing.T) {
		prog := parseOne(t, "?: > echo hi")
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "?: without a preceding open if chain")
	})

	t.Run("elif after else is an error", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"? true > echo yes",
			"?: > echo no",
			"?? false > echo maybe",
		})
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "?? without a preceding open if chain")
	})

	t.Run("unrelated fragment between breaks the chain", func(t *testing.T) {
		p, _ := testParser(t)
		prog := p.Parse([]string{
			"? true > echo yes",
			"log between",
			"?: > echo no",
		})
		require.Len(t, prog.Errors, 1)
	})
}

func TestMalformedStatements(t *testing.T) {
	cases := map[string]struct {
		line string
		want string
	}{
		"constant":  {"%NOEQ", "invalid constant"},
		"envVar":    {"@NOEQ", "invalid variable"},
		"localVar":  {"$NOEQ", "invalid variable"},
		"loopCount": {"=99999999999999999999 > echo x", "invalid loop count"},
		"plugin":    {`\`, "empty plugin name"},
	}

	for tn, tc := range cases {
		t.Run(tn, func(t *testing.T) {
			prog := parseOne(t, tc.line)
			require.Len(t, prog.Errors, 1)
			assert.Contains(t, prog.Errors[0], tc.want)
			assert.Empty(t, prog.Commands())
		})
	}
}

func TestErrorsAreLineNumbered(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{"log fine", "", "%broken"})

	require.Len(t, prog.Errors, 1)
	assert.Contains(t, prog.Errors[0], "line 3:")
}

func TestParsingNeverFailsFast(t *testing.T) {
	p, _ := testParser(t)
	prog := p.Parse([]string{"%bad", "@worse", "log still here"})

	assert.Len(t, prog.Errors, 2)
	assert.Equal(t, []string{"echo still here"}, prog.Commands())
	assert.True(t, prog.HasErrors())
}

func TestParseFile(t *testing.T) {
	t.Run("reads through the filesystem", func(t *testing.T) {
		p, fs := testParser(t)
		require.NoError(t, afero.WriteFile(fs,
			"/src/main.hacker", []byte("log hi\nend\n"), 0644))

		prog, err := p.ParseFile("/src/main.hacker")
		require.NoError(t, err)
		assert.Equal(t, []string{"echo hi", "exit 0"}, prog.Commands())
	})

	t.Run("missing file is a recorded error", func(t *testing.T) {
		p, _ := testParser(t)
		prog, err := p.ParseFile("/src/gone.hacker")
		require.NoError(t, err)
		require.Len(t, prog.Errors, 1)
		assert.Contains(t, prog.Errors[0], "not found")
	})
}

// Parsers hold no per-parse state, so concurrent parses must not interfere.
func TestParserIsReusable(t *testing.T) {
	p, _ := testParser(t)

	first := p.Parse([]string{"fn .a", "log one"})
	second := p.Parse([]string{"log two"})

	assert.Len(t, first.Errors, 1) // unclosed function
	assert.Empty(t, second.Errors)
	assert.Equal(t, []string{"echo two"}, second.Commands())
}
