package lang

import (
	"regexp"
	"strings"
)

var inlineEnd = regexp.MustCompile(`^end\s+(\d+)$`)

// TranslateInline maps a single already-classified DSL statement to its
// shell fragment. It is used for the bodies of loops, conditionals and
// try/catch, and for every line inside a fn block. Statements it does not
// recognize pass through as shell text.
func TranslateInline(stmt string) string {
	stmt = strings.TrimSpace(stmt)
	switch {
	case strings.HasPrefix(stmt, "."):
		return strings.TrimLeft(stmt, ".")
	case strings.HasPrefix(stmt, "log "):
		return "echo " + strings.TrimSpace(stmt[4:])
	case strings.HasPrefix(stmt, "out "):
		return "export _HL_OUT=" + strings.TrimSpace(stmt[4:])
	case stmt == "end":
		return "exit 0"
	}
	if m := inlineEnd.FindStringSubmatch(stmt); m != nil {
		return "exit " + m[1]
	}
	return stmt
}
