//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Grounded on the top-level spec's actor-messaging and forwarding-wire
// sections; github.com/bassosimone/nop has no actor-messaging analogue.
// HMAC-SHA256 signing pattern follows Go's crypto/hmac idiom used
// throughout the broader example pack's messaging code.
//

package workerctx

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"
)

// PID identifies an actor as a 4-tuple (host, port, worker, local id),
// rendered on the wire as "<host port worker id>".
type PID struct {
	Host   string
	Port   int
	Worker int
	ID     string
}

// String renders p in the wire format "<host port worker id>".
func (p PID) String() string {
	return fmt.Sprintf("%s %d %d %s", p.Host, p.Port, p.Worker, p.ID)
}

// ParsePID parses the wire format produced by [PID.String].
func ParsePID(s string) (PID, error) {
	fields := strings.Fields(s)
	if len(fields) != 4 {
		return PID{}, fmt.Errorf("workerctx: malformed pid %q", s)
	}
	port, err := strconv.Atoi(fields[1])
	if err != nil {
		return PID{}, fmt.Errorf("workerctx: malformed pid port %q: %w", fields[1], err)
	}
	worker, err := strconv.Atoi(fields[2])
	if err != nil {
		return PID{}, fmt.Errorf("workerctx: malformed pid worker %q: %w", fields[2], err)
	}
	return PID{Host: fields[0], Port: port, Worker: worker, ID: fields[3]}, nil
}

// Self returns this worker's own pid with the given local id.
func (c *Context) Self(id string) PID {
	return PID{Host: c.cfg.Host, Port: c.cfg.Port, Worker: c.cfg.WorkerID, ID: id}
}

// ActorHandler receives locally-delivered actor messages.
type ActorHandler func(from PID, msgType string, body []byte)

// RegisterActor installs handler under id, making it reachable as
// [*Context.Self] with that id.
func (c *Context) RegisterActor(id string, handler ActorHandler) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()
	c.actors[id] = handler
}

// UnregisterActor removes the handler installed under id.
func (c *Context) UnregisterActor(id string) {
	c.actorsMu.Lock()
	defer c.actorsMu.Unlock()
	delete(c.actors, id)
}

// signActorMessage computes the HMAC-SHA256 signature over
// to,from,type,body keyed by the configured actor secret. The secret is
// always config-supplied: there is no hard-coded fallback key.
func (c *Context) signActorMessage(to, from, typ string, body []byte) [32]byte {
	mac := hmac.New(sha256.New, c.cfg.ActorSecret)
	mac.Write([]byte(to))
	mac.Write([]byte(from))
	mac.Write([]byte(typ))
	mac.Write(body)
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// VerifyActorSignature reports whether sig is the correct signature for
// the given fields under the configured actor secret.
func (c *Context) VerifyActorSignature(sig [32]byte, to, from, typ string, body []byte) bool {
	want := c.signActorMessage(to, from, typ, body)
	return hmac.Equal(sig[:], want[:])
}

// ForwardDialer dials the POST /90s/internal/forward request used to
// deliver an actor message to a remote host+port. It is supplied by the
// httpclient package to avoid an import cycle; workerctx only needs the
// narrow capability of "deliver these bytes to that pid's forwarding
// endpoint".
type ForwardDialer func(ctx context.Context, to PID, signature [32]byte, from PID, msgType string, body []byte) error

// SendMessage routes an actor message to, computing its signature and
// dispatching by pid:
//   - same host+port, same worker: deliver locally to the registered actor;
//   - same host+port, other worker: post a MailboxActor message;
//   - different host+port: forward is the caller's responsibility via fwd,
//     matching the spec's "bespoke HTTP request" cross-process delivery.
func (c *Context) SendMessage(ctx context.Context, to PID, msgType string, body []byte, fwd ForwardDialer) error {
	from := c.Self("")
	sig := c.signActorMessage(to.String(), from.String(), msgType, body)

	switch {
	case to.Host == c.cfg.Host && to.Port == c.cfg.Port && to.Worker == c.cfg.WorkerID:
		c.deliverActorLocally(MailboxMessage{
			Tag: MailboxActor, Signature: sig,
			To: to.String(), From: from.String(), Type: msgType, Body: body,
		})
		return nil
	case to.Host == c.cfg.Host && to.Port == c.cfg.Port:
		c.PostMailbox(MailboxMessage{
			Tag: MailboxActor, Signature: sig,
			To: to.String(), From: from.String(), Type: msgType, Body: body,
		})
		return nil
	default:
		if fwd == nil {
			return fmt.Errorf("workerctx: no forward dialer configured for remote pid %s", to)
		}
		return fwd(ctx, to, sig, from, msgType, body)
	}
}

// ReceiveForward is the inbound half of the cross-host forwarding wire:
// the HTTP handler behind POST /90s/internal/forward calls this once it
// has parsed the Signature/From/To/Type headers and body, after this
// host+port has already been confirmed as the request's destination.
//
// It re-verifies the signature (a forwarded message must not be trusted
// merely for having arrived on the forwarding endpoint) and then either
// delivers locally or re-posts to the mailbox of the addressed worker.
func (c *Context) ReceiveForward(sig [32]byte, from, to PID, msgType string, body []byte) error {
	if !c.VerifyActorSignature(sig, to.String(), from.String(), msgType, body) {
		return fmt.Errorf("workerctx: forwarded message failed signature verification")
	}
	m := MailboxMessage{
		Tag: MailboxActor, Signature: sig,
		To: to.String(), From: from.String(), Type: msgType, Body: body,
	}
	if to.Worker == c.cfg.WorkerID {
		c.deliverActorLocally(m)
		return nil
	}
	c.PostMailbox(m)
	return nil
}

func (c *Context) deliverActorLocally(m MailboxMessage) {
	from, err := ParsePID(m.From)
	if err != nil {
		return
	}
	toPID, err := ParsePID(m.To)
	if err != nil {
		return
	}
	c.actorsMu.RLock()
	handler, ok := c.actors[toPID.ID]
	c.actorsMu.RUnlock()
	if ok {
		handler(from, m.Type, m.Body)
	}
}
