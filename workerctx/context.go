// SPDX-License-Identifier: GPL-3.0-or-later

package workerctx

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/90s-run/reactor/afd"
	"github.com/90s-run/reactor/errclass"
)

// Dialer abstracts *net.Dialer, mirroring github.com/bassosimone/nop's
// Dialer interface so tests can substitute a fake.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Config configures a [*Context].
type Config struct {
	// Dialer is used for outbound TCP/UDP connections.
	Dialer Dialer

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier afd.ErrClassifier

	// Logger is the SLogger to use.
	Logger afd.SLogger

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time

	// WorkerID identifies this worker within its process, used by the
	// snowflake generator and by actor pids.
	WorkerID int

	// Port is this process's listening port, used by actor pids.
	Port int

	// Host is this process's externally reachable host, used by actor pids.
	Host string

	// ActorSecret is the HMAC-SHA256 key used to sign/verify actor
	// messages. The original design used a hard-coded "ACTOR_KEY"
	// string; this field exists precisely so that bug cannot recur.
	ActorSecret []byte

	// TaskWorkers is the size of the bounded pool used for task offload.
	TaskWorkers int
}

// NewConfig returns a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Dialer:        &net.Dialer{},
		ErrClassifier: afd.ErrClassifierFunc(errclass.Classify),
		Logger:        afd.DefaultSLogger(),
		TimeNow:       time.Now,
		TaskWorkers:   4,
	}
}

// Context is the per-worker owner of every live buffered file descriptor,
// the outbound connection manager, the mailbox, and the snowflake
// generator. Construct with [New].
type Context struct {
	cfg *Config

	mu         sync.Mutex
	fds        map[uint64]*afd.FD
	nextHandle uint64
	named      map[string]*namedSlot

	snow snowflakeState

	mailbox  chan MailboxMessage
	actors   map[string]ActorHandler
	actorsMu sync.RWMutex

	tasksMu    sync.Mutex
	tasks      map[uint64]func(TaskResult)
	nextTaskID uint64
	taskQueue  chan taskItem

	tickMu        sync.Mutex
	tickListeners []*tickListener
	sleepers      []*sleeper
	clockNow      time.Time
}

// New constructs a [*Context] and starts its bounded task-offload pool.
func New(cfg *Config) *Context {
	c := &Context{
		cfg:       cfg,
		fds:       make(map[uint64]*afd.FD),
		named:     make(map[string]*namedSlot),
		mailbox:   make(chan MailboxMessage, 256),
		actors:    make(map[string]ActorHandler),
		tasks:     make(map[uint64]func(TaskResult)),
		taskQueue: make(chan taskItem, 256),
		clockNow:  cfg.TimeNow(),
	}
	for i := 0; i < max(1, cfg.TaskWorkers); i++ {
		go c.taskWorker()
	}
	return c
}

// Register adopts conn as a buffered FD under this context's ownership
// and returns both the handle and the FD. The runtime's on_accept/connect
// completion is the intended caller.
func (c *Context) Register(conn net.Conn, kind afd.Kind) (uint64, *afd.FD) {
	fdCfg := &afd.Config{
		ErrClassifier: c.cfg.ErrClassifier,
		Logger:        c.cfg.Logger,
		TimeNow:       c.cfg.TimeNow,
	}
	fd := afd.New(fdCfg, conn, kind)

	c.mu.Lock()
	c.nextHandle++
	handle := c.nextHandle
	c.fds[handle] = fd
	c.mu.Unlock()

	fd.OnEmpty(func() {
		// nothing by default; protocol layers may override via FD.OnEmpty.
	})
	return handle, fd
}

// Lookup returns the buffered FD registered under handle, if live.
func (c *Context) Lookup(handle uint64) (*afd.FD, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fd, ok := c.fds[handle]
	return fd, ok
}

// Forget removes handle from the live map. The runtime's on_close is the
// intended caller, once the handler side has also dropped its last
// strong reference.
func (c *Context) Forget(handle uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.fds, handle)
}

// Store is a dictionary of arbitrary per-worker side tables keyed by
// name, matching the spec's "dictionary of storables keyed by name".
type Store struct {
	mu   sync.Mutex
	data map[string]any
}

// NewStore returns an empty [*Store].
func NewStore() *Store { return &Store{data: make(map[string]any)} }

// Get returns the stored value for key, if any.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// Set stores value under key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
