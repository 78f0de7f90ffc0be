//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the top-level spec's task-offload and tick sections;
// github.com/bassosimone/nop has no worker-pool analogue. The bounded
// pool shape (fixed goroutines draining a channel) follows the same
// idiom github.com/bassosimone/sud uses for its dispatcher workers.
//

package workerctx

import (
	"time"

	"github.com/90s-run/reactor/promise"
)

// TaskResult carries the outcome of one offloaded task back to its
// original worker, mirroring the TASK mailbox message's result_ptr field.
type TaskResult struct {
	Ptr   uint64
	Value any
	Err   error
}

type taskItem struct {
	id  uint64
	fn  func() (any, error)
	out *promise.Promise[TaskResult]
}

// taskWorker drains the bounded offload pool, matching the spec's "bounded
// worker pool takes (task_id, fn, arg) tuples... runs fn(arg)... sends a
// mailbox message back to the original worker" description. Because this
// implementation keeps the promise local (no real cross-process memory
// pointer to marshal), it resolves the promise directly instead of
// round-tripping through the wire TASK message; no TASK mailbox message
// is posted for an offloaded task.
func (c *Context) taskWorker() {
	for item := range c.taskQueue {
		value, err := item.fn()
		item.out.Resolve(TaskResult{Ptr: item.id, Value: value, Err: err})
	}
}

// Offload submits fn to the bounded task pool and returns a promise that
// resolves with its result once a pool worker completes it.
func (c *Context) Offload(fn func() (any, error)) *promise.Promise[TaskResult] {
	c.tasksMu.Lock()
	c.nextTaskID++
	id := c.nextTaskID
	c.tasksMu.Unlock()

	out := promise.New[TaskResult]()
	c.taskQueue <- taskItem{id: id, fn: fn, out: out}
	return out
}

// tickListener is a periodic callback fired when its next run time has
// passed.
type tickListener struct {
	next time.Time
	every time.Duration
	fn    func(now time.Time)
}

// sleeper is a pending Sleep promise, resolved once Deadline has passed.
type sleeper struct {
	deadline time.Time
	out      *promise.Promise[struct{}]
}

// AddPeriodic registers fn to run every interval, starting at the next
// tick on/after now+interval.
func (c *Context) AddPeriodic(interval time.Duration, fn func(now time.Time)) {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	c.tickListeners = append(c.tickListeners, &tickListener{
		next: c.clockNow.Add(interval), every: interval, fn: fn,
	})
}

// Sleep returns a promise that resolves once the worker's internal clock
// (advanced only by onTick) reaches d from now.
func (c *Context) Sleep(d time.Duration) *promise.Promise[struct{}] {
	c.tickMu.Lock()
	defer c.tickMu.Unlock()
	p := promise.New[struct{}]()
	c.sleepers = append(c.sleepers, &sleeper{deadline: c.clockNow.Add(d), out: p})
	return p
}

// onTick sets the worker's internal clock to the current time from
// cfg.TimeNow, fires periodic listeners whose next run has passed, and
// resolves all sleep promises whose deadline has passed.
func (c *Context) onTick() {
	now := c.cfg.TimeNow()

	c.tickMu.Lock()
	c.clockNow = now

	var due []*tickListener
	for _, l := range c.tickListeners {
		if !now.Before(l.next) {
			due = append(due, l)
			l.next = now.Add(l.every)
		}
	}

	var stillAsleep []*sleeper
	var woken []*sleeper
	for _, s := range c.sleepers {
		if now.Before(s.deadline) {
			stillAsleep = append(stillAsleep, s)
		} else {
			woken = append(woken, s)
		}
	}
	c.sleepers = stillAsleep
	c.tickMu.Unlock()

	for _, l := range due {
		l.fn(now)
	}
	for _, s := range woken {
		s.out.Resolve(struct{}{})
	}
}

// TickPeriod is the interval at which worker 0 posts TICK mailbox
// messages to every worker, per the spec's tick section.
const TickPeriod = time.Minute

// NextTickDelay returns the delay from now until the top of the next
// minute, matching "worker 0 sleeps to the top of the minute".
func NextTickDelay(now time.Time) time.Duration {
	return now.Truncate(TickPeriod).Add(TickPeriod).Sub(now)
}
