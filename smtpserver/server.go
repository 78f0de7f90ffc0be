// SPDX-License-Identifier: GPL-3.0-or-later

package smtpserver

import (
	"context"
	"crypto/tls"
	"fmt"
	"strings"
	"time"

	"github.com/90s-run/reactor/afd"
)

// DefaultMaxRecipients is the RCPT TO cap (§4.7: "cap at 50").
const DefaultMaxRecipients = 50

// Server drives the HELO/EHLO → STARTTLS → MAIL FROM → RCPT TO → DATA
// session state machine for each accepted connection (§4.7).
type Server struct {
	// Host is used in the greeting line "220 <host> ESMTP".
	Host string

	// LocalDomains is the configured set of domains this server accepts
	// mail for; a RCPT TO host in this set is routed via
	// [RouteLocalDelivery] instead of relayed.
	LocalDomains map[string]bool

	// TLSConfig enables STARTTLS when non-nil.
	TLSConfig *tls.Config

	// MaxRecipients caps RCPT TO commands per envelope; 0 uses
	// [DefaultMaxRecipients].
	MaxRecipients int

	// Store is the mail storage collaborator.
	Store Mailstore

	// Logger is the SLogger to use.
	Logger afd.SLogger

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier afd.ErrClassifier

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time
}

// NewServer returns a [*Server] with sensible defaults; Host and Store
// must still be set by the caller.
func NewServer() *Server {
	return &Server{
		LocalDomains:  make(map[string]bool),
		MaxRecipients: DefaultMaxRecipients,
		Logger:        afd.DefaultSLogger(),
		ErrClassifier: afd.DefaultErrClassifier,
		TimeNow:       time.Now,
	}
}

// session is the per-connection mutable state the command loop updates.
type session struct {
	hello string
	tls   bool
	from  *Address
	size  int64
	to    []Recipient
	auth  bool
}

func (s *session) reset() {
	s.from = nil
	s.size = 0
	s.to = nil
}

// ServeConn runs the session loop for one accepted connection until QUIT
// or a fatal framing error.
func (srv *Server) ServeConn(ctx context.Context, fd *afd.FD) {
	if !srv.greet(ctx, fd) {
		return
	}

	sess := &session{}
	for {
		line, ok := srv.readLine(ctx, fd)
		if !ok {
			return
		}

		cmd, arg := splitCommand(line)
		switch strings.ToUpper(cmd) {
		case "HELO":
			srv.handleHELO(ctx, fd, sess, arg)
		case "EHLO":
			srv.handleEHLO(ctx, fd, sess, arg)
		case "STARTTLS":
			if !srv.handleSTARTTLS(ctx, fd, sess) {
				return
			}
		case "MAIL":
			srv.handleMAIL(ctx, fd, sess, arg)
		case "RCPT":
			srv.handleRCPT(ctx, fd, sess, arg)
		case "DATA":
			if !srv.handleDATA(ctx, fd, sess) {
				return
			}
		case "RSET":
			sess.reset()
			srv.reply(ctx, fd, 250, "OK")
		case "QUIT":
			srv.reply(ctx, fd, 221, "Bye")
			return
		default:
			srv.reply(ctx, fd, 502, "Command not recognized")
		}
	}
}

func (srv *Server) greet(ctx context.Context, fd *afd.FD) bool {
	return srv.reply(ctx, fd, 220, srv.Host+" ESMTP")
}

func (srv *Server) readLine(ctx context.Context, fd *afd.FD) (string, bool) {
	res, err := fd.ReadUntil([]byte("\r\n")).Await(ctx)
	if err != nil || res.Err != nil {
		return "", false
	}
	return string(res.Data), true
}

func splitCommand(line string) (cmd, arg string) {
	idx := strings.IndexAny(line, " :")
	if idx < 0 {
		return line, ""
	}
	return line[:idx], strings.TrimSpace(line[idx+1:])
}

func (srv *Server) handleHELO(ctx context.Context, fd *afd.FD, sess *session, arg string) {
	sess.hello = arg
	srv.reply(ctx, fd, 250, "HELO "+arg)
}

func (srv *Server) handleEHLO(ctx context.Context, fd *afd.FD, sess *session, arg string) {
	sess.hello = arg
	lines := []string{"PIPELINING", "8BITMIME"}
	if srv.TLSConfig != nil && !sess.tls {
		lines = append(lines, "STARTTLS")
	}
	lines = append(lines, "SIZE 35882577")
	srv.replyMulti(ctx, fd, 250, lines)
}

func (srv *Server) handleSTARTTLS(ctx context.Context, fd *afd.FD, sess *session) bool {
	if sess.hello == "" || sess.tls || srv.TLSConfig == nil {
		return srv.reply(ctx, fd, 501, "STARTTLS not available")
	}
	if !srv.reply(ctx, fd, 220, "Go ahead") {
		return false
	}
	res, err := fd.EnableServerSSLAsync(ctx, srv.TLSConfig).Await(ctx)
	if err != nil || res.Err != nil {
		return false
	}
	hello := sess.hello
	*sess = session{hello: hello, tls: true}
	return true
}

func (srv *Server) handleMAIL(ctx context.Context, fd *afd.FD, sess *session, arg string) {
	if sess.hello == "" {
		srv.reply(ctx, fd, 503, "Send HELO/EHLO first")
		return
	}
	if sess.from != nil {
		srv.reply(ctx, fd, 503, "Sender already specified")
		return
	}
	rest, ok := strings.CutPrefix(strings.ToUpper(arg), "FROM:")
	if !ok {
		srv.reply(ctx, fd, 501, "Syntax: MAIL FROM:<address>")
		return
	}
	rawArg := arg[len(arg)-len(rest):]
	addr, size, err := ParseAddress(rawArg)
	if err != nil {
		srv.reply(ctx, fd, 501, err.Error())
		return
	}
	sess.from = &addr
	sess.size = size
	srv.reply(ctx, fd, 250, "OK")
}

func (srv *Server) handleRCPT(ctx context.Context, fd *afd.FD, sess *session, arg string) {
	if sess.from == nil {
		srv.reply(ctx, fd, 503, "Send MAIL FROM first")
		return
	}
	max := srv.MaxRecipients
	if max <= 0 {
		max = DefaultMaxRecipients
	}
	if len(sess.to) >= max {
		srv.reply(ctx, fd, 522, "Too many recipients")
		return
	}

	rest, ok := strings.CutPrefix(strings.ToUpper(arg), "TO:")
	if !ok {
		srv.reply(ctx, fd, 501, "Syntax: RCPT TO:<address>")
		return
	}
	rawArg := arg[len(arg)-len(rest):]
	addr, _, err := ParseAddress(rawArg)
	if err != nil {
		srv.reply(ctx, fd, 501, err.Error())
		return
	}

	rcpt := Recipient{Address: addr}
	local, folder, mailbox := RouteLocalDelivery(addr, srv.LocalDomains)
	if local {
		rcpt.Local = true
		rcpt.Folder = folder
		rcpt.Mailbox = mailbox

		if srv.Store != nil {
			if !srv.Store.LookupUser(ctx, mailbox) && !sess.auth {
				srv.reply(ctx, fd, 511, "Mailbox unavailable")
				return
			}
			if srv.Store.QuotaExceeded(ctx, mailbox, sess.size) {
				srv.reply(ctx, fd, 522, "Quota exceeded")
				return
			}
		}
	}

	sess.to = append(sess.to, rcpt)
	srv.reply(ctx, fd, 250, "OK")
}

func (srv *Server) handleDATA(ctx context.Context, fd *afd.FD, sess *session) bool {
	if sess.hello == "" || sess.from == nil || len(sess.to) == 0 {
		return srv.reply(ctx, fd, 503, "Bad sequence of commands")
	}
	if !srv.reply(ctx, fd, 354, "Start mail input; end with <CRLF>.<CRLF>") {
		return false
	}

	res, err := fd.ReadUntil([]byte("\r\n.\r\n")).Await(ctx)
	if err != nil || res.Err != nil {
		return false
	}

	env := &Envelope{Hello: sess.hello, From: *sess.from, To: sess.to, TLS: sess.tls, Authenticated: sess.auth}
	id, err := srv.Store.StoreMail(ctx, env, res.Data)
	if err != nil {
		sess.reset()
		return srv.reply(ctx, fd, 451, err.Error())
	}
	sess.reset()
	return srv.reply(ctx, fd, 250, fmt.Sprintf("OK: Queued as %s", id))
}

func (srv *Server) reply(ctx context.Context, fd *afd.FD, code int, text string) bool {
	line := fmt.Sprintf("%d %s\r\n", code, text)
	ok, err := fd.Write([]byte(line)).Await(ctx)
	return err == nil && ok
}

func (srv *Server) replyMulti(ctx context.Context, fd *afd.FD, code int, lines []string) bool {
	var b strings.Builder
	for i, line := range lines {
		sep := "-"
		if i == len(lines)-1 {
			sep = " "
		}
		fmt.Fprintf(&b, "%d%s%s\r\n", code, sep, line)
	}
	ok, err := fd.Write([]byte(b.String())).Await(ctx)
	return err == nil && ok
}
