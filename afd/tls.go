//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop tls.go (TLSEngine/TLSConn
// abstraction, handshake logging) — generalized from a one-shot dial-time
// handshake into the bidirectional cipher pipe the buffered FD must
// install in place on a live connection (STARTTLS), per the spec.
//

package afd

import (
	"context"
	"crypto/tls"
	"errors"
	"log/slog"
	"net"

	"github.com/90s-run/reactor/promise"
)

// TLSEngine builds a [TLSConn] from a transport connection, mirroring
// github.com/bassosimone/nop's TLSEngine so alternative TLS stacks can be
// substituted without touching the FD.
type TLSEngine interface {
	Client(conn net.Conn, config *tls.Config) TLSConn
	Server(conn net.Conn, config *tls.Config) TLSConn
	Name() string
}

// TLSConn abstracts over *tls.Conn.
type TLSConn interface {
	ConnectionState() tls.ConnectionState
	HandshakeContext(ctx context.Context) error
	net.Conn
}

// TLSEngineStdlib implements [TLSEngine] using crypto/tls.
type TLSEngineStdlib struct{}

func (TLSEngineStdlib) Client(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Client(conn, config)
}
func (TLSEngineStdlib) Server(conn net.Conn, config *tls.Config) TLSConn {
	return tls.Server(conn, config)
}
func (TLSEngineStdlib) Name() string { return "stdlib" }

// cipherPipe is the TLS bidirectional cipher pipe: an in-memory net.Pipe
// stands between the TLS engine (which sees plaintext on one end and
// emits/consumes ciphertext on `local`) and the raw network connection.
// The FD's single raw-read goroutine shuttles incoming ciphertext into
// `remote`; a dedicated goroutine shuttles outgoing ciphertext from
// `remote` back onto the wire, and another drains decrypted plaintext
// from the TLS engine into the drive pass.
type cipherPipe struct {
	local, remote net.Conn
	tlsConn       TLSConn
}

func newCipherPipe(engine TLSEngine, rawIsClient bool, config *tls.Config) *cipherPipe {
	local, remote := net.Pipe()
	var tlsConn TLSConn
	if rawIsClient {
		tlsConn = engine.Client(local, config)
	} else {
		tlsConn = engine.Server(local, config)
	}
	return &cipherPipe{local: local, remote: remote, tlsConn: tlsConn}
}

// enableSSL installs the cipher pipe, drives the handshake (using the raw
// read/write path verbatim, exactly as the spec requires), and on success
// swaps fd.conn to the TLS connection so every subsequent Write call is
// transparently encrypted.
func (fd *FD) enableSSL(ctx context.Context, engine TLSEngine, rawIsClient bool, config *tls.Config) (err error) {
	fd.mu.Lock()
	if fd.cipher != nil {
		fd.mu.Unlock()
		return errors.New("afd: TLS already enabled on this descriptor")
	}
	pipe := newCipherPipe(engine, rawIsClient, config)
	fd.cipher = pipe
	fd.mu.Unlock()

	// Bridge outgoing ciphertext (TLS engine -> remote -> raw wire).
	go fd.bridgeRemoteToRaw(pipe)

	fd.cfg.Logger.Info("tlsHandshakeStart", slog.String("tlsEngineName", engine.Name()))
	err = pipe.tlsConn.HandshakeContext(ctx)
	fd.cfg.Logger.Info("tlsHandshakeDone", slog.Any("err", err),
		slog.String("errClass", fd.cfg.ErrClassifier.Classify(err)))
	if err != nil {
		fd.mu.Lock()
		fd.cipher = nil
		fd.mu.Unlock()
		pipe.local.Close()
		pipe.remote.Close()
		return err
	}

	fd.mu.Lock()
	fd.conn = pipe.tlsConn
	fd.mu.Unlock()

	go fd.pumpPlaintext(pipe)
	return nil
}

// bridgeRemoteToRaw forwards ciphertext the TLS engine wrote into the
// pipe's remote end out onto the real connection.
func (fd *FD) bridgeRemoteToRaw(pipe *cipherPipe) {
	buf := make([]byte, 32*1024)
	for {
		n, err := pipe.remote.Read(buf)
		if n > 0 {
			fd.mu.Lock()
			raw := fd.rawConn
			fd.mu.Unlock()
			if _, werr := raw.Write(buf[:n]); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// pumpPlaintext reads decrypted application data out of the TLS engine
// and feeds it to the ordinary drive pass, so ReadAny/ReadN/ReadUntil see
// exactly the same plaintext byte stream they would over an unencrypted
// connection.
func (fd *FD) pumpPlaintext(pipe *cipherPipe) {
	buf := make([]byte, 32*1024)
	for {
		n, err := pipe.tlsConn.Read(buf)
		if n > 0 {
			fd.onReceive(append([]byte(nil), buf[:n]...))
		}
		if err != nil {
			fd.onRawIOError(err)
			return
		}
	}
}

// EnableClientSSL performs a TLS client handshake over the connection
// using host for SNI, then transparently encrypts all subsequent I/O.
func (fd *FD) EnableClientSSL(ctx context.Context, config *tls.Config, host string) error {
	cfg := config.Clone()
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	return fd.enableSSL(ctx, TLSEngineStdlib{}, true, cfg)
}

// EnableServerSSL performs a TLS server handshake over the connection,
// then transparently encrypts all subsequent I/O.
func (fd *FD) EnableServerSSL(ctx context.Context, config *tls.Config) error {
	return fd.enableSSL(ctx, TLSEngineStdlib{}, false, config)
}

// EnableSSLResult mirrors the spec's (error, message) pair for STARTTLS.
type EnableSSLResult struct {
	Err     error
	Message string
}

// EnableServerSSLAsync runs [FD.EnableServerSSL] and resolves a promise
// with an (error, message) pair, matching the SMTP server's STARTTLS flow
// which must reply before looping back into command reading.
func (fd *FD) EnableServerSSLAsync(ctx context.Context, config *tls.Config) *promise.Promise[EnableSSLResult] {
	p := promise.New[EnableSSLResult]()
	go func() {
		err := fd.EnableServerSSL(ctx, config)
		msg := "ok"
		if err != nil {
			msg = err.Error()
		}
		p.Resolve(EnableSSLResult{Err: err, Message: msg})
	}()
	return p
}
