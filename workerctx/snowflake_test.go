// SPDX-License-Identifier: GPL-3.0-or-later

package workerctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// Testable Property 7: within one worker, successive snowflake ids are
// strictly increasing.
func TestNextSnowflakeMonotonic(t *testing.T) {
	c := newTestContext(&fakeDialer{})

	var prev uint64
	now := snowflakeEpoch + 1000
	for i := 0; i < 5000; i++ {
		id := c.NextSnowflake(now)
		if i > 0 {
			assert.Greater(t, id, prev)
		}
		prev = id
	}
}

func TestNextSnowflakeMonotonicAcrossSecondRollover(t *testing.T) {
	c := newTestContext(&fakeDialer{})

	first := c.NextSnowflake(snowflakeEpoch + 10)
	second := c.NextSnowflake(snowflakeEpoch + 5) // clock appears to go backwards
	assert.Greater(t, second, first)
}

func TestParseSnowflakeRoundTrip(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	c.cfg.Port, c.cfg.WorkerID = 9000, 3

	id := c.NextSnowflake(snowflakeEpoch + 123)
	decoded := ParseSnowflake(id)

	assert.Equal(t, int64(snowflakeEpoch+123), decoded.Seconds)
	assert.Equal(t, machineID(9000, 3), decoded.Machine)
	assert.Equal(t, uint32(0), decoded.Counter)
}

func TestMachineIDWraps(t *testing.T) {
	assert.Equal(t, uint16((9000+3)%1024), machineID(9000, 3))
}
