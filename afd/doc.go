// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop observeconn.go, tls.go (I/O
// observation, TLS handshake plumbing) and cancelwatch.go (context-bound
// close) — generalized from one-shot net.Conn wrapping into the
// partial-read/partial-write command-queue engine this package's spec
// calls the "buffered file descriptor".
//

// Package afd provides the buffered file descriptor: the
// partial-read/partial-write engine every protocol state machine in this
// module (HTTP server/client, SMTP server/client, DNS transports) is
// built on.
//
// # Read commands
//
// [*FD.ReadAny], [*FD.ReadN] and [*FD.ReadUntil] enqueue a read command
// and return a [*promise.Promise] that resolves once enough bytes have
// arrived. Commands resolve strictly in enqueue order (Testable Property
// 2). [*FD.ReadUntil] uses a resumable Knuth-Morris-Pratt matcher
// (package internal/kmp) so a delimiter split across two network reads
// still matches (Testable Property 3, scenario S2).
//
// # Write commands
//
// [*FD.Write] enqueues bytes and returns a [*promise.Promise] that
// resolves true once every byte has been acknowledged by the underlying
// connection, or false on failure (Testable Property 4).
//
// # TLS
//
// [*FD.EnableClientSSL] and [*FD.EnableServerSSL] perform a TLS handshake
// over the raw connection (the raw read/write path is used verbatim
// during the handshake, matching the spec) and, on success, transparently
// replace the underlying connection with the negotiated [*tls.Conn] so
// that all subsequent reads/writes are encrypted without any change to
// the caller-visible API.
//
// # Locking
//
// [*FD.Lock] / [*FD.Unlock] provide a FIFO-fair cooperative lock used by
// callers (the HTTP client) that must serialize multi-command
// request/response cycles on a single connection.
package afd
