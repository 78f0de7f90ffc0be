//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop connect.go, tls.go,
// observeconn.go, cancelwatch.go (the Connect/TLS-handshake/observe/
// cancel-watch Func pipeline) — generalized from a one-shot dial into a
// named, deduplicated, cross-worker-aware connection manager.
//

// Package workerctx implements the per-worker context: the runtime-facing
// owner of every live buffered file descriptor on one worker, its
// outbound connection manager, its cross-worker mailbox, and its
// snowflake id generator.
//
// # Connections
//
// [*Context.Connect] dials TCP or UDP, optionally performs a TLS
// handshake, and optionally deduplicates concurrent dials under a shared
// name: of N callers requesting the same name concurrently, exactly one
// dials and the rest observe the same result in enqueue order (Testable
// Property 6). The dial -> TLS handshake -> I/O observation steps follow
// the same order github.com/bassosimone/nop's one-shot dial pipeline
// uses, inlined here as plain sequential calls rather than a composed
// pipeline, since Connect only ever assembles one fixed sequence.
//
// # Mailbox
//
// [*Context.PostMailbox] and [*Context.HandleMailbox] implement the three
// mailbox message kinds from the wire spec: task completion, actor
// delivery, and tick. Actor messages are HMAC-SHA256 signed using a
// configured secret (never the hard-coded string the original design
// note flags as a bug).
//
// # Snowflake
//
// [*Context.NextSnowflake] generates the 64-bit roughly-time-ordered id
// described in the top-level spec's GLOSSARY; [ParseSnowflake] recovers
// its fields for tests and diagnostics.
package workerctx
