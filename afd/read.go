// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"log/slog"

	"github.com/90s-run/reactor/internal/kmp"
	"github.com/90s-run/reactor/promise"
)

// ReadAny resolves with whatever bytes are currently buffered, waiting
// for at least one byte to arrive if the buffer is empty.
func (fd *FD) ReadAny() *promise.Promise[ReadResult] {
	return fd.enqueueRead(&readCmd{kind: readAny, promise: promise.New[ReadResult]()})
}

// ReadN resolves once exactly n bytes have been buffered.
func (fd *FD) ReadN(n int) *promise.Promise[ReadResult] {
	return fd.enqueueRead(&readCmd{kind: readExactlyN, n: n, promise: promise.New[ReadResult]()})
}

// ReadUntil resolves with the bytes preceding the first occurrence of
// delim after the command's cursor; delim is consumed but not returned.
// The search survives a delimiter split across multiple network reads
// (scenario S2 in the top-level spec).
func (fd *FD) ReadUntil(delim []byte) *promise.Promise[ReadResult] {
	return fd.enqueueRead(&readCmd{
		kind:          readUntil,
		matcher:       kmp.NewMatcher(delim),
		delimLenValue: len(delim),
		promise:       promise.New[ReadResult](),
	})
}

func (fd *FD) enqueueRead(cmd *readCmd) *promise.Promise[ReadResult] {
	fd.mu.Lock()
	if fd.closeState != Open {
		err := fd.closeErr
		fd.mu.Unlock()
		cmd.promise.Resolve(ReadResult{Err: nonNilErr(err)})
		return cmd.promise
	}
	fd.readQueue = append(fd.readQueue, cmd)
	fd.driveReadsLocked()
	fd.mu.Unlock()
	return cmd.promise
}

// onReceive is the drive pass entry point: the ambient read pump (or, in
// tests, a caller simulating one) invokes this with newly-arrived bytes.
func (fd *FD) onReceive(b []byte) {
	fd.mu.Lock()
	defer fd.mu.Unlock()

	if fd.closeState == Closed {
		return
	}

	if len(fd.readQueue) == 0 {
		cb := fd.onEmpty
		if cb != nil {
			fd.mu.Unlock()
			cb()
			fd.mu.Lock()
		}
	}

	if len(b) > 0 {
		fd.readBuf = append(fd.readBuf, b...)
	}
	fd.driveReadsLocked()
}

// driveReadsLocked runs one drive pass over the read queue. Caller holds fd.mu.
func (fd *FD) driveReadsLocked() {
	for len(fd.readQueue) > 0 {
		cmd := fd.readQueue[0]
		window := fd.readBuf

		switch cmd.kind {
		case readAny:
			if len(window) == 0 {
				return
			}
			data := window
			fd.readBuf = nil
			fd.popReadLocked()
			cmd.promise.Resolve(ReadResult{Data: data})

		case readExactlyN:
			if len(window) < cmd.n {
				return
			}
			data := cloneBytes(window[:cmd.n])
			fd.readBuf = dropFront(window, cmd.n)
			fd.popReadLocked()
			cmd.promise.Resolve(ReadResult{Data: data})

		case readUntil:
			unscanned := window[cmd.scanned:]
			end, found := cmd.matcher.Feed(unscanned)
			if !found {
				cmd.scanned = len(window)
				return
			}
			absoluteEnd := cmd.scanned + end
			data := cloneBytes(window[:absoluteEnd-cmd.delimLen()])
			fd.readBuf = dropFront(window, absoluteEnd)
			fd.popReadLocked()
			cmd.promise.Resolve(ReadResult{Data: data})

		default:
			return
		}
	}

	if len(fd.readBuf) == 0 {
		fd.readBuf = nil
	}
}

func (cmd *readCmd) delimLen() int {
	// the matcher only exposes Feed/Reset; the caller constructed it from
	// a delimiter of known length, tracked here for slicing purposes.
	return cmd.delimLenValue
}

func (fd *FD) popReadLocked() {
	fd.readQueue = fd.readQueue[1:]
}

func cloneBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func dropFront(b []byte, n int) []byte {
	if n >= len(b) {
		return nil
	}
	return cloneBytes(b[n:])
}

// failAllReadsLocked resolves every queued read with err. Caller holds fd.mu.
func (fd *FD) failAllReadsLocked(err error) {
	queue := fd.readQueue
	fd.readQueue = nil
	fd.readBuf = nil
	for _, cmd := range queue {
		cmd.promise.Resolve(ReadResult{Err: nonNilErr(err)})
	}
}

func nonNilErr(err error) error {
	if err != nil {
		return err
	}
	return errClosed
}

func (fd *FD) logReadError(err error) {
	fd.cfg.Logger.Debug("afdReadError",
		slog.Any("err", err),
		slog.String("errClass", fd.cfg.ErrClassifier.Classify(err)),
	)
}
