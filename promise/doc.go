// SPDX-License-Identifier: GPL-3.0-or-later

// Package promise provides the single-value future that every other
// package in this module composes on top of.
//
// # Core abstraction
//
// A [Promise] is a single-assignment cell plus at most one continuation.
// It has three states: pending, ready, consumed. [Promise.Resolve] may be
// called at most once with effect; a resolve on an already-resolved or
// already-consumed promise is a silent no-op. [Promise.Then] registers a
// continuation invoked once, either immediately (if a value is already
// stored) or later, when [Promise.Resolve] runs.
//
// This gives a uniform primitive for both "resume a blocked goroutine"
// (via [Promise.Await]) and "call a callback" (via [Promise.Then]),
// avoiding two code paths for the same resolve/consume semantics.
//
// # Weak handles
//
// [Promise.Weak] hands out a [Weak] handle. If the awaiter drops its last
// strong reference to the [Promise] before a producer resolves it through
// that handle, [Weak.Resolve] becomes a no-op instead of writing into
// freed state. The producers in this module (the buffered file
// descriptor's read and write commands, the worker context's offload and
// sleep promises) hold strong [*Promise] references, not Weak handles.
package promise
