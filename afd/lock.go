// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"context"
	"sync"
)

// fairLock is a FIFO-fair mutex: of N concurrent waiters, they acquire
// the lock in the order they called Lock (Testable Property: an FD's
// lock() is strictly FIFO over waiters).
type fairLock struct {
	mu      sync.Mutex
	held    bool
	waiters []chan struct{}
}

func newFairLock() *fairLock {
	return &fairLock{}
}

func (l *fairLock) Lock(ctx context.Context) error {
	l.mu.Lock()
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	l.waiters = append(l.waiters, ch)
	l.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		l.removeWaiter(ch)
		return ctx.Err()
	}
}

func (l *fairLock) removeWaiter(ch chan struct{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.waiters {
		if w == ch {
			l.waiters = append(l.waiters[:i], l.waiters[i+1:]...)
			return
		}
	}
	// Already handed off to us concurrently with cancellation; consume it
	// so we don't leak a granted-but-unused lock.
	select {
	case <-ch:
		l.Unlock()
	default:
	}
}

func (l *fairLock) Unlock() {
	l.mu.Lock()
	if len(l.waiters) > 0 {
		next := l.waiters[0]
		l.waiters = l.waiters[1:]
		l.mu.Unlock()
		close(next)
		return
	}
	l.held = false
	l.mu.Unlock()
}
