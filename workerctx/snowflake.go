//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the top-level spec's Snowflake ID section: 64 bits laid
// out as [32 bits seconds-since-epoch-offset][10 bits machine][22 bits
// counter]. github.com/bassosimone/nop has no id-generator analogue;
// the bit-packing style follows spanid.go's use of fixed-width encoding
// for correlation ids.
//

package workerctx

import "sync"

// snowflakeEpoch is the offset subtracted from unix seconds before
// packing, giving the 32-bit field headroom (valid through year ~2106
// from 1970, or correspondingly later from a custom epoch).
const snowflakeEpoch int64 = 1_700_000_000

type snowflakeState struct {
	mu        sync.Mutex
	lastSec   int64
	counter   uint32
}

// Snowflake is the decoded form of a 64-bit snowflake id.
type Snowflake struct {
	Seconds int64
	Machine uint16
	Counter uint32
}

func machineID(port, worker int) uint16 {
	return uint16((port + worker) % 1024)
}

// NextSnowflake returns the next monotonically increasing snowflake id
// for this worker, using nowUnixSeconds as the current time.
//
// Within one worker, successive ids are strictly increasing: the
// 22-bit counter increments within a second and the clock only ever
// moves forward, so a later call never returns a smaller value than an
// earlier one even under second-boundary ties.
func (c *Context) NextSnowflake(nowUnixSeconds int64) uint64 {
	machine := machineID(c.cfg.Port, c.cfg.WorkerID)

	c.snow.mu.Lock()
	defer c.snow.mu.Unlock()

	sec := nowUnixSeconds - snowflakeEpoch
	if sec < c.snow.lastSec {
		sec = c.snow.lastSec
	}
	if sec == c.snow.lastSec {
		c.snow.counter++
		if c.snow.counter >= 1<<22 {
			sec++
			c.snow.counter = 0
		}
	} else {
		c.snow.counter = 0
	}
	c.snow.lastSec = sec

	return uint64(sec)<<32 | uint64(machine)<<22 | uint64(c.snow.counter)
}

// ParseSnowflake decodes a snowflake id produced by [*Context.NextSnowflake].
func ParseSnowflake(id uint64) Snowflake {
	return Snowflake{
		Seconds: int64(id>>32) + snowflakeEpoch,
		Machine: uint16((id >> 22) & 0x3FF),
		Counter: uint32(id & 0x3FFFFF),
	}
}
