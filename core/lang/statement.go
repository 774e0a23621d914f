package lang

import (
	"regexp"
	"strings"
)

// StatementKind is the closed set of DSL statement shapes. Dispatch priority
// is the order of the checks in classify; the first shape that matches wins.
type StatementKind int

const (
	KindLiteral StatementKind = iota
	KindDep
	KindLib
	KindMeta
	KindImport
	KindConst
	KindBadConst
	KindEnvVar
	KindBadEnvVar
	KindSpawnAssign
	KindAwaitAssign
	KindLocalVar
	KindBadLocalVar
	KindLock
	KindSpawn
	KindAwait
	KindAssert
	KindMatchOpen
	KindMatchArm
	KindMatchClose
	KindPipeChain
	KindLoop
	KindWhile
	KindFor
	KindTryCatch
	KindIf
	KindElif
	KindElse
	KindBackground
	KindPlugin
	KindBadPlugin
	KindLog
	KindOut
	KindEnd
	KindSubshell
	KindCall
	KindRawNoSub
	KindRawSub
	KindSudo
)

// statement is one classified line. The meaning of the captured fields
// depends on the kind: name holds a key, variable, function or plugin name;
// value holds a value, condition, count or expression; cmd holds a command
// or argument tail.
type statement struct {
	kind  StatementKind
	name  string
	value string
	cmd   string
}

var (
	spawnAssignRe = regexp.MustCompile(`^(\w+)\s*=\s*spawn\s+(.*)$`)
	awaitAssignRe = regexp.MustCompile(`^(\w+)\s*=\s*await\s+(.*)$`)
	spawnRe       = regexp.MustCompile(`^spawn\s+`)
	awaitRe       = regexp.MustCompile(`^await\s+`)
	assertRe      = regexp.MustCompile(`^assert\s+`)
	assertMsgRe   = regexp.MustCompile(`^(.*?)\s+"(.*?)"\s*$`)
	matchOpenRe   = regexp.MustCompile(`^match\s+`)
	matchArmRe    = regexp.MustCompile(`^(["']?[\w*]+["']?)\s*>\s+(.+)$`)
	loopRe        = regexp.MustCompile(`^=\s*(\d+)\s*>\s+(.+)$`)
	whilePipeRe   = regexp.MustCompile(`^while\s+(.+?)\s+[|>]>\s+(.+)$`)
	whileRe       = regexp.MustCompile(`^while\s+(.+?)\s+>\s+(.+)$`)
	forPipeRe     = regexp.MustCompile(`^for\s+(\w+)\s+in\s+(.+?)\s+[|>]>\s+(.+)$`)
	forRe         = regexp.MustCompile(`^for\s+(\w+)\s+in\s+(.+?)\s+>\s+(.+)$`)
	tryRe         = regexp.MustCompile(`^try\s+(.+?)\s+catch\s+(.+)$`)
	logRe         = regexp.MustCompile(`^log\s+`)
	outRe         = regexp.MustCompile(`^out\s+`)
	endRe         = regexp.MustCompile(`^end\s+(\d+)$`)
	callRe        = regexp.MustCompile(`^(\.+[A-Za-z_*][\w.]*)(.*)$`)
)

// classify maps one trimmed, non-empty line to its statement shape. inMatch
// reports whether a match block is currently open; when it is, lines that do
// not hit an earlier rule are tried as match arms, and anything that fails
// the arm shape becomes KindMatchClose so the caller can flush the block and
// re-dispatch the line.
func classify(line string, inMatch bool) statement {
	switch {
	case strings.HasPrefix(line, "//"):
		return statement{kind: KindDep, value: strings.TrimSpace(line[2:])}
	case strings.HasPrefix(line, "#"):
		return statement{kind: KindLib, name: strings.TrimSpace(line[1:])}
	case strings.HasPrefix(line, "--"), strings.HasPrefix(line, "=="),
		strings.HasPrefix(line, "struct "):
		return statement{kind: KindMeta}
	case strings.HasPrefix(line, "<<"):
		rest := strings.Trim(strings.TrimSpace(line[2:]), `"`)
		path := rest
		if fields := strings.Fields(rest); len(fields) > 0 {
			path = fields[0]
		}
		return statement{kind: KindImport, value: path}
	case strings.HasPrefix(line, "%"):
		if name, value, ok := splitAssign(line[1:]); ok {
			return statement{kind: KindConst, name: name, value: value}
		}
		return statement{kind: KindBadConst, value: line}
	case strings.HasPrefix(line, "@"):
		if name, value, ok := splitAssign(line[1:]); ok {
			return statement{kind: KindEnvVar, name: name, value: value}
		}
		return statement{kind: KindBadEnvVar, value: line}
	case strings.HasPrefix(line, "$"):
		rest := line[1:]
		if m := spawnAssignRe.FindStringSubmatch(rest); m != nil {
			return statement{kind: KindSpawnAssign, name: m[1], cmd: strings.TrimLeft(strings.TrimSpace(m[2]), ".")}
		}
		if m := awaitAssignRe.FindStringSubmatch(rest); m != nil {
			return statement{kind: KindAwaitAssign, name: m[1], value: strings.TrimSpace(m[2])}
		}
		if name, value, ok := splitAssign(rest); ok {
			return statement{kind: KindLocalVar, name: name, value: value}
		}
		return statement{kind: KindBadLocalVar, value: line}
	case strings.HasPrefix(line, "lock "), strings.HasPrefix(line, "unlock "):
		return statement{kind: KindLock}
	case spawnRe.MatchString(line):
		return statement{kind: KindSpawn, cmd: strings.TrimLeft(strings.TrimSpace(line[6:]), ".")}
	case awaitRe.MatchString(line):
		return statement{kind: KindAwait, value: strings.TrimSpace(line[6:])}
	case assertRe.MatchString(line):
		rest := strings.TrimSpace(line[7:])
		if m := assertMsgRe.FindStringSubmatch(rest); m != nil {
			return statement{kind: KindAssert, value: strings.TrimSpace(m[1]), cmd: m[2]}
		}
		return statement{kind: KindAssert, value: rest, cmd: "Assertion failed: " + rest}
	case matchOpenRe.MatchString(line) && strings.HasSuffix(line, "|>"):
		cond := strings.TrimSpace(strings.TrimRight(line[6:], "|>"))
		return statement{kind: KindMatchOpen, value: cond}
	}

	if inMatch {
		if m := matchArmRe.FindStringSubmatch(line); m != nil {
			return statement{kind: KindMatchArm, value: m[1], cmd: m[2]}
		}
		return statement{kind: KindMatchClose}
	}

	switch {
	case strings.Contains(line, "|>") && strings.HasPrefix(line, "."):
		return statement{kind: KindPipeChain, value: line}
	}
	if m := loopRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindLoop, value: m[1], cmd: strings.TrimSpace(m[2])}
	}
	if m := whilePipeRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindWhile, value: strings.TrimSpace(m[1]), cmd: strings.TrimSpace(m[2])}
	}
	if m := whileRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindWhile, value: strings.TrimSpace(m[1]), cmd: strings.TrimSpace(m[2])}
	}
	if m := forPipeRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindFor, name: m[1], value: strings.TrimSpace(m[2]), cmd: strings.TrimSpace(m[3])}
	}
	if m := forRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindFor, name: m[1], value: strings.TrimSpace(m[2]), cmd: strings.TrimSpace(m[3])}
	}
	if m := tryRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindTryCatch, value: strings.TrimSpace(m[1]), cmd: strings.TrimSpace(m[2])}
	}

	switch {
	case strings.HasPrefix(line, "? ") && strings.Contains(line, ">"):
		cond, cmd := splitArrow(line[2:])
		return statement{kind: KindIf, value: cond, cmd: cmd}
	case strings.HasPrefix(line, "?? ") && strings.Contains(line, ">"):
		cond, cmd := splitArrow(line[3:])
		return statement{kind: KindElif, value: cond, cmd: cmd}
	case strings.HasPrefix(line, "?: ") && strings.Contains(line, ">"):
		_, cmd := splitArrow(line[3:])
		return statement{kind: KindElse, cmd: cmd}
	case strings.HasPrefix(line, "& "):
		return statement{kind: KindBackground, cmd: strings.TrimSpace(line[2:])}
	case strings.HasPrefix(line, `\`):
		rest := strings.TrimSpace(line[1:])
		if rest == "" {
			return statement{kind: KindBadPlugin, value: line}
		}
		name, args := splitCommand(rest)
		return statement{kind: KindPlugin, name: name, cmd: args}
	case logRe.MatchString(line):
		return statement{kind: KindLog, cmd: strings.TrimSpace(line[4:])}
	case outRe.MatchString(line):
		return statement{kind: KindOut, cmd: strings.TrimSpace(line[4:])}
	case line == "end":
		return statement{kind: KindEnd, value: "0"}
	}
	if m := endRe.FindStringSubmatch(line); m != nil {
		return statement{kind: KindEnd, value: m[1]}
	}

	switch {
	case strings.HasPrefix(line, "(") && strings.HasSuffix(line, ")"):
		return statement{kind: KindSubshell, cmd: strings.TrimSpace(line[1 : len(line)-1])}
	}
	if strings.HasPrefix(line, ".") {
		if m := callRe.FindStringSubmatch(line); m != nil {
			return statement{
				kind: KindCall,
				name: strings.TrimLeft(m[1], "."),
				cmd:  strings.TrimSpace(m[2]),
			}
		}
	}

	switch {
	case strings.HasPrefix(line, ">>"):
		return statement{kind: KindRawNoSub, cmd: strings.TrimSpace(line[2:])}
	case strings.HasPrefix(line, ">"):
		return statement{kind: KindRawSub, cmd: strings.TrimSpace(line[1:])}
	case strings.HasPrefix(line, "^"):
		return statement{kind: KindSudo, cmd: strings.TrimSpace(line[1:])}
	}
	return statement{kind: KindLiteral, cmd: line}
}

// splitAssign splits "key = value" on the first equals sign.
func splitAssign(s string) (name, value string, ok bool) {
	s = strings.TrimSpace(s)
	i := strings.Index(s, "=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[:i]), strings.TrimSpace(s[i+1:]), true
}

// splitArrow splits "cond > cmd" on the first arrow.
func splitArrow(s string) (cond, cmd string) {
	parts := strings.SplitN(strings.TrimSpace(s), ">", 2)
	cond = strings.TrimSpace(parts[0])
	if len(parts) > 1 {
		cmd = strings.TrimSpace(parts[1])
	}
	return cond, cmd
}

// splitCommand splits a name from its argument tail on the first run of
// whitespace.
func splitCommand(s string) (name, args string) {
	i := strings.IndexAny(s, " \t")
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimSpace(s[i+1:])
}
