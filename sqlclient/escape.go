// SPDX-License-Identifier: GPL-3.0-or-later

package sqlclient

import "strings"

// EscapeString escapes s for embedding inside a single-quoted MySQL
// string literal, following the same byte-level rules as MySQL's own
// mysql_real_escape_string / the native-password driver's text protocol.
//
// [Client.Query] and [Client.Exec] already bind args as placeholders,
// which is the safe default; this exists only for call sites that must
// assemble SQL as text (stored procedures taking literal DDL fragments,
// logging the literal statement that would run, and the like) and
// accept the injection-surface risk of doing so.
func EscapeString(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case 0:
			b.WriteString(`\0`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '"':
			b.WriteString(`\"`)
		case '\x1a':
			b.WriteString(`\Z`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
