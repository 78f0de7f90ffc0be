// SPDX-License-Identifier: GPL-3.0-or-later

package smtpclient

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	data []byte
	from string
}

func (f *fakeLoader) LoadMessage(ctx context.Context, owner, messageID string) ([]byte, string, error) {
	return f.data, f.from, nil
}

type fakeDeliverer struct {
	failures map[string]error
}

func (f *fakeDeliverer) Deliver(ctx context.Context, msg *Message, policy TLSPolicy) map[string]error {
	return f.failures
}

func TestQueueEnqueueTracksOneRowPerRecipient(t *testing.T) {
	q := NewQueue(&fakeLoader{}, nil)
	q.Enqueue("owner", "msg1", "a@remote.example", "mx.remote.example")
	q.Enqueue("owner", "msg1", "b@remote.example", "mx.remote.example")
	q.Enqueue("owner", "msg2", "c@other.example", "mx.other.example")

	entries := q.Entries("owner", "msg1")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, "sent", e.Status)
		assert.Equal(t, 0, e.Retries)
	}
}

func TestQueueDeliverUpdatesRetryAccountingOnFailure(t *testing.T) {
	now := time.Date(2026, 7, 31, 12, 0, 0, 0, time.UTC)
	deliverer := &fakeDeliverer{failures: map[string]error{"a@remote.example": errors.New("connection refused")}}
	q := NewQueue(&fakeLoader{data: []byte("hello"), from: "owner@local"}, deliverer)
	q.TimeNow = func() time.Time { return now }

	e1 := q.Enqueue("owner", "msg1", "a@remote.example", "mx.remote.example")
	e2 := q.Enqueue("owner", "msg1", "b@remote.example", "mx.remote.example")

	err := q.Deliver(context.Background(), "owner", "msg1")
	require.NoError(t, err)

	assert.Equal(t, "failed", e1.Status)
	assert.Equal(t, 1, e1.Retries)
	assert.Equal(t, "connection refused", e1.Reason)
	assert.Equal(t, now, e1.LastRetriedAt)

	assert.Equal(t, "delivered", e2.Status)
	assert.Equal(t, 0, e2.Retries)
}

func TestQueueDeliverWithNoEntriesIsNoop(t *testing.T) {
	q := NewQueue(&fakeLoader{}, nil)
	err := q.Deliver(context.Background(), "owner", "absent")
	assert.NoError(t, err)
}
