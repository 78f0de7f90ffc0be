// SPDX-License-Identifier: GPL-3.0-or-later

package afd

// startPump launches the single goroutine that ever reads the raw
// connection. Before a TLS upgrade its bytes feed the drive pass
// directly; after a TLS upgrade they feed the cipher pipe instead, so
// there is never more than one reader of the raw socket (see tls.go).
func (fd *FD) startPump() {
	fd.mu.Lock()
	conn := fd.rawConn
	fd.mu.Unlock()
	if conn == nil {
		return
	}

	go func() {
		buf := make([]byte, 32*1024)
		for {
			n, err := conn.Read(buf)

			if n > 0 {
				data := append([]byte(nil), buf[:n]...)
				fd.mu.Lock()
				cipher := fd.cipher
				fd.mu.Unlock()
				if cipher != nil {
					if _, werr := cipher.remote.Write(data); werr != nil {
						fd.onRawIOError(werr)
						return
					}
				} else {
					fd.onReceive(data)
				}
			}
			if err != nil {
				fd.onRawIOError(err)
				return
			}
		}
	}()
}

func (fd *FD) onRawIOError(err error) {
	fd.mu.Lock()
	if fd.closeState == Closed {
		fd.mu.Unlock()
		return
	}
	fd.closeState = Closing
	fd.closeErr = err
	fd.failAllReadsLocked(err)
	fd.mu.Unlock()
}
