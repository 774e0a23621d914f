package lang

import "strings"

// shellSpecial lists the characters that force single-quoting of a value.
const shellSpecial = " \t\n$`'\"|;&<>(){}"

// Quote escapes a raw value for safe inclusion as a shell word. Values
// without shell metacharacters pass through unchanged; everything else is
// wrapped in single quotes with each embedded quote rewritten to the
// close-escape-reopen sequence.
func Quote(val string) string {
	if !strings.ContainsAny(val, shellSpecial) {
		return val
	}
	return "'" + strings.ReplaceAll(val, "'", `'\''`) + "'"
}
