// SPDX-License-Identifier: GPL-3.0-or-later

package sqlclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeStringEscapesSpecialBytes(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"quote", `O'Brien`, `O\'Brien`},
		{"backslash", `a\b`, `a\\b`},
		{"newline", "a\nb", `a\nb`},
		{"carriage-return", "a\rb", `a\rb`},
		{"double-quote", `say "hi"`, `say \"hi\"`},
		{"nul", "a\x00b", `a\0b`},
		{"sub", "a\x1ab", `a\Zb`},
		{"plain", "hello", "hello"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EscapeString(tc.in))
		})
	}
}
