// SPDX-License-Identifier: GPL-3.0-or-later

// Package reactor is the root of an asynchronous network-service
// framework: a promise/continuation primitive ([github.com/90s-run/reactor/promise]),
// a buffered file descriptor ([github.com/90s-run/reactor/afd]), a
// per-worker context with pooled connections and a bounded task-offload
// pool ([github.com/90s-run/reactor/workerctx]), an HTTP/1.1 server and
// client, an SMTP server and delivery pipeline, a DNS resolver, a MySQL
// client, and a MIME parser — each in its own subpackage.
//
// See cmd/reactord for an example composition root wiring these pieces
// into a running process.
package reactor
