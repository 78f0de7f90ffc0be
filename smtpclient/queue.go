// SPDX-License-Identifier: GPL-3.0-or-later

package smtpclient

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MessageLoader loads a previously stored message's raw bytes and its
// envelope sender, for redelivery by [Queue.Deliver].
type MessageLoader interface {
	LoadMessage(ctx context.Context, owner, messageID string) (data []byte, from string, err error)
}

// Deliverer is the subset of [*Client] [Queue] depends on; [*Client]
// satisfies it directly.
type Deliverer interface {
	Deliver(ctx context.Context, msg *Message, policy TLSPolicy) map[string]error
}

// Entry is one outgoing-queue row (§4.9): one recipient of one stored
// message, tracked independently so a failure for one recipient never
// blocks retrying the others.
type Entry struct {
	User          string
	MessageID     string
	TargetEmail   string
	TargetServer  string
	Status        string
	Retries       int
	Reason        string
	LastRetriedAt time.Time
}

// Queue is the delivery-queue integration described in §4.9: every
// successfully stored message with non-local recipients gets one Entry
// per recipient via [Queue.Enqueue]; [Queue.Deliver] retries delivery
// and updates each entry's retry accounting.
type Queue struct {
	Loader  MessageLoader
	Client  Deliverer
	TimeNow func() time.Time

	mu      sync.Mutex
	entries []*Entry
}

// NewQueue returns a [*Queue] with sensible defaults.
func NewQueue(loader MessageLoader, client Deliverer) *Queue {
	return &Queue{Loader: loader, Client: client, TimeNow: time.Now}
}

// Enqueue records a new outgoing-queue row for one recipient of one
// stored message, with status "sent" and zero retries.
func (q *Queue) Enqueue(user, messageID, targetEmail, targetServer string) *Entry {
	e := &Entry{
		User: user, MessageID: messageID,
		TargetEmail: targetEmail, TargetServer: targetServer,
		Status: "sent",
	}
	q.mu.Lock()
	q.entries = append(q.entries, e)
	q.mu.Unlock()
	return e
}

// Entries returns every queue row queued for (owner, messageID).
func (q *Queue) Entries(owner, messageID string) []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []*Entry
	for _, e := range q.entries {
		if e.User == owner && e.MessageID == messageID {
			out = append(out, e)
		}
	}
	return out
}

// Deliver loads the stored message and attempts delivery to every
// queued recipient with best-effort TLS (§4.9); each failure increments
// Retries, stamps LastRetriedAt, records Reason, and sets Status to
// "failed" on that recipient's entry, while each success sets Status to
// "delivered".
func (q *Queue) Deliver(ctx context.Context, owner, messageID string) error {
	targets := q.Entries(owner, messageID)
	if len(targets) == 0 {
		return nil
	}

	data, from, err := q.Loader.LoadMessage(ctx, owner, messageID)
	if err != nil {
		return fmt.Errorf("smtpclient: queue: load message %s/%s: %w", owner, messageID, err)
	}

	recipients := make([]string, len(targets))
	for i, e := range targets {
		recipients[i] = e.TargetEmail
	}

	failures := q.Client.Deliver(ctx, &Message{From: from, To: recipients, Data: data}, TLSBestEffort)

	now := q.TimeNow()
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, e := range targets {
		if err, failed := failures[e.TargetEmail]; failed {
			e.Retries++
			e.LastRetriedAt = now
			e.Reason = err.Error()
			e.Status = "failed"
			continue
		}
		e.Status = "delivered"
	}
	return nil
}
