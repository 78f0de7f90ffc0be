//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: github.com/bassosimone/nop slogger.go (structured event
// naming conventions) — the wire encode/decode below has no teacher
// analogue since nop is a one-shot client library with no cross-worker
// messaging; it is grounded instead directly on the top-level spec's
// "Mailbox message payload formats" section.
//

package workerctx

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// MailboxTag identifies the kind of one mailbox message.
type MailboxTag uint8

const (
	MailboxTask  MailboxTag = 1
	MailboxActor MailboxTag = 2
	MailboxTick  MailboxTag = 3
)

// MailboxMessage is one message delivered across the ambient runtime's
// single-producer-consumer cross-worker queue. Exactly one of the typed
// fields is meaningful, selected by Tag.
type MailboxMessage struct {
	Tag MailboxTag

	// Task fields (Tag == MailboxTask).
	TaskID    uint64
	ResultPtr uint64

	// Actor fields (Tag == MailboxActor).
	Signature [32]byte
	To        string
	From      string
	Type      string
	Body      []byte
}

// EncodeMailboxMessage serializes m into the little-endian wire layout
// from the spec's "Mailbox message payload formats" section.
func EncodeMailboxMessage(m MailboxMessage) ([]byte, error) {
	switch m.Tag {
	case MailboxTask:
		buf := make([]byte, 1+8+8)
		buf[0] = byte(MailboxTask)
		binary.LittleEndian.PutUint64(buf[1:9], m.TaskID)
		binary.LittleEndian.PutUint64(buf[9:17], m.ResultPtr)
		return buf, nil
	case MailboxActor:
		to, from, typ, body := []byte(m.To), []byte(m.From), []byte(m.Type), m.Body
		size := 1 + 64 + 8*4 + len(to) + len(from) + len(typ) + len(body)
		buf := make([]byte, size)
		i := 0
		buf[i] = byte(MailboxActor)
		i++
		i += copy(buf[i:], hex.EncodeToString(m.Signature[:]))
		putLen := func(n int) {
			binary.LittleEndian.PutUint64(buf[i:i+8], uint64(n))
			i += 8
		}
		putLen(len(to))
		putLen(len(from))
		putLen(len(typ))
		putLen(len(body))
		i += copy(buf[i:], to)
		i += copy(buf[i:], from)
		i += copy(buf[i:], typ)
		i += copy(buf[i:], body)
		return buf[:i], nil
	case MailboxTick:
		return []byte{byte(MailboxTick)}, nil
	default:
		return nil, fmt.Errorf("workerctx: unknown mailbox tag %d", m.Tag)
	}
}

// DecodeMailboxMessage parses the wire layout produced by
// [EncodeMailboxMessage].
func DecodeMailboxMessage(b []byte) (MailboxMessage, error) {
	if len(b) < 1 {
		return MailboxMessage{}, errors.New("workerctx: empty mailbox message")
	}
	switch MailboxTag(b[0]) {
	case MailboxTask:
		if len(b) < 1+16 {
			return MailboxMessage{}, errors.New("workerctx: short TASK message")
		}
		return MailboxMessage{
			Tag:       MailboxTask,
			TaskID:    binary.LittleEndian.Uint64(b[1:9]),
			ResultPtr: binary.LittleEndian.Uint64(b[9:17]),
		}, nil
	case MailboxActor:
		const hexSigLen = 64
		if len(b) < 1+hexSigLen+8*4 {
			return MailboxMessage{}, errors.New("workerctx: short ACTOR message")
		}
		i := 1
		sigHex := b[i : i+hexSigLen]
		i += hexSigLen
		var sig [32]byte
		if _, err := hex.Decode(sig[:], sigHex); err != nil {
			return MailboxMessage{}, fmt.Errorf("workerctx: bad ACTOR signature: %w", err)
		}
		readLen := func() int {
			n := binary.LittleEndian.Uint64(b[i : i+8])
			i += 8
			return int(n)
		}
		toLen, fromLen, typeLen, msgLen := readLen(), readLen(), readLen(), readLen()
		need := i + toLen + fromLen + typeLen + msgLen
		if len(b) < need {
			return MailboxMessage{}, errors.New("workerctx: truncated ACTOR message")
		}
		to := string(b[i : i+toLen])
		i += toLen
		from := string(b[i : i+fromLen])
		i += fromLen
		typ := string(b[i : i+typeLen])
		i += typeLen
		body := append([]byte(nil), b[i:i+msgLen]...)
		return MailboxMessage{
			Tag:       MailboxActor,
			Signature: sig,
			To:        to,
			From:      from,
			Type:      typ,
			Body:      body,
		}, nil
	case MailboxTick:
		return MailboxMessage{Tag: MailboxTick}, nil
	default:
		return MailboxMessage{}, fmt.Errorf("workerctx: unknown mailbox tag %d", b[0])
	}
}

// PostMailbox enqueues m on this context's inbound mailbox channel. The
// ambient runtime's single-producer-consumer queue is modeled here by a
// buffered Go channel; order per sender is preserved because each
// sender's posts serialize through this one call.
func (c *Context) PostMailbox(m MailboxMessage) {
	c.mailbox <- m
}

// HandleMailbox drains and dispatches every mailbox message currently
// queued, without blocking for more. The worker's event loop calls this
// on its own on_message dispatch.
func (c *Context) HandleMailbox() {
	for {
		select {
		case m := <-c.mailbox:
			c.dispatchMailbox(m)
		default:
			return
		}
	}
}

func (c *Context) dispatchMailbox(m MailboxMessage) {
	switch m.Tag {
	case MailboxTask:
		c.tasksMu.Lock()
		resolve, ok := c.tasks[m.TaskID]
		delete(c.tasks, m.TaskID)
		c.tasksMu.Unlock()
		if ok {
			resolve(TaskResult{Ptr: m.ResultPtr})
		}
	case MailboxActor:
		c.deliverActorLocally(m)
	case MailboxTick:
		c.onTick()
	}
}
