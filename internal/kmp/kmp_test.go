// SPDX-License-Identifier: GPL-3.0-or-later

package kmp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeedSingleWindow(t *testing.T) {
	m := NewMatcher([]byte("\r\n\r\n"))
	end, found := m.Feed([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\nbody"))
	require.True(t, found)
	assert.Equal(t, len("GET / HTTP/1.1\r\nHost: x\r\n\r\n"), end)
}

func TestFeedSplitAcrossWindows(t *testing.T) {
	// Scenario S2: delimiter straddles three arrivals.
	m := NewMatcher([]byte("\r\n\r\n"))

	_, found := m.Feed([]byte("abc\r\n"))
	assert.False(t, found)

	_, found = m.Feed([]byte("\r"))
	assert.False(t, found)

	end, found := m.Feed([]byte("\n"))
	require.True(t, found)
	assert.Equal(t, 1, end)
}

func TestFeedNoMatch(t *testing.T) {
	m := NewMatcher([]byte("XYZ"))
	_, found := m.Feed([]byte("abcdef"))
	assert.False(t, found)
}

func TestFeedResumeAfterMatchThenReuse(t *testing.T) {
	m := NewMatcher([]byte("\n"))

	end, found := m.Feed([]byte("line1\n"))
	require.True(t, found)
	assert.Equal(t, 6, end)

	m.Reset()
	end, found = m.Feed([]byte("line2\n"))
	require.True(t, found)
	assert.Equal(t, 6, end)
}

func TestFailureTable(t *testing.T) {
	// Classic KMP textbook example: ABABCABAB -> table values below.
	table := FailureTable([]byte("ABABCABAB"))
	assert.Equal(t, []int{0, 0, 1, 2, 0, 1, 2, 3, 4}, table)
}
