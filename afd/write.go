// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"log/slog"

	"github.com/90s-run/reactor/promise"
)

// Write enqueues data for sending and returns a promise resolving true
// once every byte has been acknowledged by the connection, or false on
// failure. If the write queue was empty, the write is issued immediately.
func (fd *FD) Write(data []byte) *promise.Promise[bool] {
	p := promise.New[bool]()
	cmd := &writeCmd{data: data, promise: p}

	fd.mu.Lock()
	if fd.closeState != Open {
		fd.mu.Unlock()
		p.Resolve(false)
		return p
	}
	wasEmpty := len(fd.writeQueue) == 0
	fd.writeQueue = append(fd.writeQueue, cmd)
	shouldPump := wasEmpty && !fd.writing
	if shouldPump {
		fd.writing = true
	}
	fd.mu.Unlock()

	if shouldPump {
		go fd.pumpWrites()
	}
	return p
}

// pumpWrites drains the write queue in enqueue order, issuing blocking
// writes on the current connection and resolving each completion as its
// bytes are fully acknowledged (Testable Property 4).
func (fd *FD) pumpWrites() {
	for {
		fd.mu.Lock()
		if len(fd.writeQueue) == 0 {
			fd.writing = false
			fd.mu.Unlock()
			return
		}
		cmd := fd.writeQueue[0]
		conn := fd.conn
		fd.mu.Unlock()

		remaining := cmd.data[cmd.sent:]
		n, err := conn.Write(remaining)

		fd.mu.Lock()
		cmd.sent += n
		if err != nil {
			fd.writing = false
			fd.failAllWritesLocked(err)
			fd.mu.Unlock()
			fd.onIOError(err)
			return
		}
		if cmd.sent >= len(cmd.data) {
			fd.writeQueue = fd.writeQueue[1:]
			fd.mu.Unlock()
			cmd.promise.Resolve(true)
			continue
		}
		// partial write: loop again, issuing another write for the remainder.
		fd.mu.Unlock()
	}
}

// failAllWritesLocked resolves every queued write false. Caller holds fd.mu.
func (fd *FD) failAllWritesLocked(err error) {
	queue := fd.writeQueue
	fd.writeQueue = nil
	for _, cmd := range queue {
		cmd.promise.Resolve(false)
	}
	fd.logWriteError(err)
}

func (fd *FD) logWriteError(err error) {
	fd.cfg.Logger.Debug("afdWriteError",
		slog.Any("err", err),
		slog.String("errClass", fd.cfg.ErrClassifier.Classify(err)),
	)
}
