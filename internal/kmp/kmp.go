// SPDX-License-Identifier: GPL-3.0-or-later

// Package kmp implements a resumable Knuth-Morris-Pratt delimiter search.
//
// [bytes.Index] cannot serve afd's read-until-delimiter command: a network
// read may deliver the delimiter split across two or more arrivals (see
// scenario S2 in the top-level spec), so the search must be able to save
// its partial-match state after scanning a window and resume it, byte for
// byte, when more data arrives. No library in this module's dependency
// graph exposes a resumable streaming matcher, so this is implemented
// directly against the textbook algorithm.
package kmp

// FailureTable returns the KMP failure function (partial match table) for
// pattern.
func FailureTable(pattern []byte) []int {
	table := make([]int, len(pattern))
	if len(pattern) == 0 {
		return table
	}
	table[0] = 0
	k := 0
	for i := 1; i < len(pattern); i++ {
		for k > 0 && pattern[k] != pattern[i] {
			k = table[k-1]
		}
		if pattern[k] == pattern[i] {
			k++
		}
		table[i] = k
	}
	return table
}

// Matcher holds the search cursor for one read-until-delimiter command so
// that a delimiter straddling two or more network reads is still found.
type Matcher struct {
	pattern []byte
	table   []int
	matched int
}

// NewMatcher returns a [*Matcher] for the given delimiter.
func NewMatcher(pattern []byte) *Matcher {
	return &Matcher{
		pattern: pattern,
		table:   FailureTable(pattern),
	}
}

// Feed scans window starting from the matcher's saved partial-match state
// and returns the offset of the byte immediately following the first
// complete match of the delimiter, and true, if one is found within
// window. If no match completes, Feed saves its partial-match state for
// the next call and returns (0, false).
//
// window must be the only data fed to this matcher since the delimiter
// was last found (or since the matcher was constructed); afd's read
// buffer is append-only between drive passes so this holds naturally.
func (m *Matcher) Feed(window []byte) (end int, found bool) {
	if len(m.pattern) == 0 {
		return 0, true
	}
	k := m.matched
	for i, b := range window {
		for k > 0 && m.pattern[k] != b {
			k = m.table[k-1]
		}
		if m.pattern[k] == b {
			k++
		}
		if k == len(m.pattern) {
			m.matched = 0
			return i + 1, true
		}
	}
	m.matched = k
	return 0, false
}

// Reset clears the matcher's partial-match state, for reuse across a new
// read-until-delimiter command on the same connection.
func (m *Matcher) Reset() {
	m.matched = 0
}
