//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop connect.go (ConnectFunc dial +
// structured logging) and tls.go (client TLS handshake) — generalized
// from a one-shot dial Func into Context.Connect's named/deduplicated
// outbound connection manager.
//

package workerctx

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"strconv"
	"strings"

	"github.com/bassosimone/safeconn"

	"github.com/90s-run/reactor/afd"
)

// ErrInvalidAddress is returned by [*Context.Connect] when disable_local
// rejects the target address without dialing.
var ErrInvalidAddress = errors.New("workerctx: address disabled by disable_local")

// Protocol selects the transport [*Context.Connect] uses.
type Protocol int

const (
	ProtocolTCP Protocol = iota
	ProtocolUDP
	ProtocolTLS
)

// ConnectOptions parameterizes [*Context.Connect].
type ConnectOptions struct {
	// Addr is either a bare IP/host, or "host@ip" to carry a TLS SNI host
	// while dialing a specific address (the result of a prior DNS lookup).
	Addr string

	// Port is the destination port.
	Port int

	// Protocol selects TCP, UDP, or TCP+TLS.
	Protocol Protocol

	// Name, if non-empty, deduplicates concurrent connects: of the N
	// callers requesting the same name concurrently, exactly one dials
	// and the rest observe the same result in enqueue order.
	Name string

	// DisableLocal rejects RFC-1918, loopback, link-local, and 0/8
	// targets before dialing.
	DisableLocal bool

	// TLSConfig is used when Protocol is ProtocolTLS.
	TLSConfig *tls.Config
}

// ConnectResult mirrors the spec's {error, fd, message} triple.
type ConnectResult struct {
	FD      *afd.FD
	Handle  uint64
	Err     error
	Message string
}

// namedSlot tracks the in-flight or completed state of one named
// connection so concurrent callers can coalesce onto it.
type namedSlot struct {
	done   chan struct{}
	result ConnectResult
}

func splitSNI(addr string) (host, dial string) {
	if idx := strings.IndexByte(addr, '@'); idx >= 0 {
		return addr[:idx], addr[idx+1:]
	}
	return addr, addr
}

func isDisabledAddress(host string) bool {
	ip, err := netip.ParseAddr(host)
	if err != nil {
		// Not a literal IP (a hostname survived this far); let the
		// dialer's own resolution proceed, the check only applies to
		// resolved literals per the spec.
		return false
	}
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsPrivate() {
		return true
	}
	if ip.Is4() && ip.As4()[0] == 0 {
		return true
	}
	return false
}

// Connect dials according to opts, deduplicating on opts.Name when set.
//
// Returns either a valid FD/handle or an error, never a meaningful
// combination of both; Message always carries a short operator-facing
// summary, matching the spec's connect_result triple.
func (c *Context) Connect(ctx context.Context, opts ConnectOptions) ConnectResult {
	if opts.Name != "" {
		return c.connectNamed(ctx, opts)
	}
	return c.dial(ctx, opts)
}

func (c *Context) connectNamed(ctx context.Context, opts ConnectOptions) ConnectResult {
	c.mu.Lock()
	if slot, ok := c.named[opts.Name]; ok {
		c.mu.Unlock()
		<-slot.done
		return slot.result
	}
	slot := &namedSlot{done: make(chan struct{})}
	c.named[opts.Name] = slot
	c.mu.Unlock()

	result := c.dial(ctx, opts)

	c.mu.Lock()
	if result.Err != nil {
		// Dialing under this name failed: let a future caller retry
		// rather than pinning the name to a permanent failure.
		delete(c.named, opts.Name)
	}
	slot.result = result
	c.mu.Unlock()
	close(slot.done)
	return result
}

func (c *Context) dial(ctx context.Context, opts ConnectOptions) ConnectResult {
	host, dialAddr := splitSNI(opts.Addr)
	if opts.DisableLocal && isDisabledAddress(dialAddr) {
		return ConnectResult{Err: ErrInvalidAddress, Message: "INVALID_ADDRESS"}
	}

	network := "tcp"
	if opts.Protocol == ProtocolUDP {
		network = "udp"
	}
	address := net.JoinHostPort(dialAddr, strconv.Itoa(opts.Port))

	t0 := c.cfg.TimeNow()
	deadline, _ := ctx.Deadline()
	c.cfg.Logger.Info("connectStart",
		slog.Time("deadline", deadline),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t", t0))

	conn, err := c.cfg.Dialer.DialContext(ctx, network, address)

	c.cfg.Logger.Info("connectDone",
		slog.Time("deadline", deadline),
		slog.Any("err", err),
		slog.String("errClass", c.cfg.ErrClassifier.Classify(err)),
		slog.String("localAddr", safeconn.LocalAddr(conn)),
		slog.String("protocol", network),
		slog.String("remoteAddr", address),
		slog.Time("t0", t0),
		slog.Time("t", c.cfg.TimeNow()))

	if err != nil {
		return ConnectResult{Err: err, Message: err.Error()}
	}

	kind := afd.KindSocket
	if opts.Protocol == ProtocolUDP {
		kind = afd.KindDatagram
	}
	handle, fd := c.Register(conn, kind)

	if opts.Protocol == ProtocolTLS {
		cfg := opts.TLSConfig
		if cfg == nil {
			cfg = &tls.Config{}
		}
		if err := fd.EnableClientSSL(ctx, cfg, host); err != nil {
			fd.Close(true)
			c.Forget(handle)
			return ConnectResult{Err: err, Message: err.Error()}
		}
	}

	return ConnectResult{FD: fd, Handle: handle, Message: "ok"}
}

