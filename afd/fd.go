// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/90s-run/reactor/errclass"
	"github.com/90s-run/reactor/internal/kmp"
	"github.com/90s-run/reactor/promise"
)

// Kind tags the underlying descriptor type.
type Kind int

const (
	KindSocket Kind = iota
	KindDatagram
	KindPipe
	KindOther
)

// CloseState is the lifecycle state of an [*FD].
type CloseState int

const (
	Open CloseState = iota
	Closing
	Closed
)

// ErrClassifier classifies errors for structured logging.
//
// Satisfied by [github.com/90s-run/reactor/errclass.Classify] wrapped in
// an adapter, or by any caller-supplied implementation.
type ErrClassifier interface {
	Classify(err error) string
}

// ErrClassifierFunc adapts a function to [ErrClassifier].
type ErrClassifierFunc func(error) string

// Classify implements [ErrClassifier].
func (f ErrClassifierFunc) Classify(err error) string { return f(err) }

// DefaultErrClassifier wraps [errclass.Classify].
var DefaultErrClassifier = ErrClassifierFunc(errclass.Classify)

// SLogger abstracts *slog.Logger, following the same two-level convention
// (Info for lifecycle/protocol events, Debug for per-I/O events) used
// throughout this module.
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
}

type discardSLogger struct{}

func (discardSLogger) Debug(string, ...any) {}
func (discardSLogger) Info(string, ...any)  {}

// DefaultSLogger returns a no-op [SLogger].
func DefaultSLogger() SLogger { return discardSLogger{} }

// ReadResult is the value carried by a read command's promise: either an
// error (with Err set, non-nil) or the bytes the command asked for.
type ReadResult struct {
	Err  error
	Data []byte
}

// Config configures an [*FD].
type Config struct {
	// ErrClassifier classifies errors for structured logging.
	ErrClassifier ErrClassifier

	// Logger is the SLogger to use.
	Logger SLogger

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time

	// Name is a human-readable name for this FD, used only in logs.
	Name string
}

// NewConfig returns a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		ErrClassifier: DefaultErrClassifier,
		Logger:        DefaultSLogger(),
		TimeNow:       time.Now,
	}
}

type readKind int

const (
	readAny readKind = iota
	readExactlyN
	readUntil
)

type readCmd struct {
	kind          readKind
	n             int
	matcher       *kmp.Matcher
	scanned       int
	delimLenValue int
	promise       *promise.Promise[ReadResult]
}

type writeCmd struct {
	data    []byte
	sent    int
	promise *promise.Promise[bool]
}

// FD is a buffered file descriptor: one socket or pipe plus a queue of
// read commands, a queue of write completions, an optional TLS layer, a
// per-FD key/value bag and a FIFO-fair cooperative lock.
//
// Construct with [New]. Safe for concurrent use.
type FD struct {
	cfg *Config

	mu         sync.Mutex
	conn       net.Conn
	rawConn    net.Conn
	cipher     *cipherPipe
	kind       Kind
	closeState CloseState
	closeErr   error

	readBuf   []byte
	readQueue []*readCmd

	writeQueue []*writeCmd
	writing    bool

	remoteAddr string
	kv         map[string]any
	lock       *fairLock
	onEmpty    func()

	closeOnce sync.Once
}

// New wraps conn as an [*FD] and starts its background read pump.
func New(cfg *Config, conn net.Conn, kind Kind) *FD {
	fd := &FD{
		cfg:     cfg,
		conn:    conn,
		rawConn: conn,
		kind:    kind,
		lock:    newFairLock(),
	}
	if conn != nil {
		fd.remoteAddr = safeAddrString(conn.RemoteAddr())
	}
	fd.startPump()
	return fd
}

func safeAddrString(a net.Addr) string {
	if a == nil {
		return ""
	}
	return a.String()
}

// RemoteAddr returns the memoized remote address of the connection.
func (fd *FD) RemoteAddr() string {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.remoteAddr
}

// Conn returns the current underlying [net.Conn] (the raw connection, or
// the TLS connection after a successful upgrade). Exposed for logging and
// for protocol layers (HTTP client transport) that need the raw conn.
func (fd *FD) Conn() net.Conn {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	return fd.conn
}

// Set stores a value in the per-FD key/value bag.
func (fd *FD) Set(key string, value any) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	if fd.kv == nil {
		fd.kv = make(map[string]any)
	}
	fd.kv[key] = value
}

// Get retrieves a value from the per-FD key/value bag.
func (fd *FD) Get(key string) (any, bool) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	v, ok := fd.kv[key]
	return v, ok
}

// OnEmpty registers a callback invoked when bytes arrive while the
// read-command queue is empty, before those bytes are buffered (step 3 of
// the drive-pass algorithm).
func (fd *FD) OnEmpty(cb func()) {
	fd.mu.Lock()
	defer fd.mu.Unlock()
	fd.onEmpty = cb
}

// Lock acquires the FD's FIFO-fair cooperative lock.
func (fd *FD) Lock(ctx context.Context) error {
	return fd.lock.Lock(ctx)
}

// Unlock releases the FD's cooperative lock.
func (fd *FD) Unlock() {
	fd.lock.Unlock()
}
