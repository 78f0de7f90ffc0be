// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"errors"
	"log/slog"
)

// errClosed is the error delivered to pending operations when the FD is
// closed without a more specific underlying I/O error.
var errClosed = errors.New("afd: descriptor closed")

// Close transitions the FD to closing and fails every pending read with
// an error and every pending write with false (Testable Property 5:
// closing twice is benign).
//
// The immediate flag does not change behaviour: in both cases pending
// operations are failed synchronously, under fd.mu, before the
// underlying connection is closed.
func (fd *FD) Close(immediate bool) error {
	var err error
	fd.closeOnce.Do(func() {
		fd.mu.Lock()
		fd.closeState = Closing
		fd.failAllReadsLocked(errClosed)
		fd.failAllWritesLocked(errClosed)
		conn := fd.conn
		fd.mu.Unlock()

		if conn != nil {
			err = conn.Close()
		}

		fd.mu.Lock()
		fd.closeState = Closed
		fd.closeErr = err
		fd.mu.Unlock()

		fd.cfg.Logger.Info("afdCloseDone", slog.Any("err", err))
	})
	return err
}

// onIOError transitions the FD to closing and fails all outstanding
// operations, without closing the caller's connection reference twice.
func (fd *FD) onIOError(err error) {
	fd.mu.Lock()
	if fd.closeState == Closed {
		fd.mu.Unlock()
		return
	}
	fd.closeState = Closing
	fd.closeErr = err
	fd.failAllReadsLocked(err)
	fd.mu.Unlock()
	fd.Close(true)
}
