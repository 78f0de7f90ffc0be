// SPDX-License-Identifier: GPL-3.0-or-later

package workerctx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeTaskMessage(t *testing.T) {
	m := MailboxMessage{Tag: MailboxTask, TaskID: 42, ResultPtr: 0xdeadbeef}
	b, err := EncodeMailboxMessage(m)
	require.NoError(t, err)

	got, err := DecodeMailboxMessage(b)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeActorMessage(t *testing.T) {
	var sig [32]byte
	for i := range sig {
		sig[i] = byte(i)
	}
	m := MailboxMessage{
		Tag: MailboxActor, Signature: sig,
		To: "h 1 0 a", From: "h 1 1 b", Type: "greet", Body: []byte("hello"),
	}
	b, err := EncodeMailboxMessage(m)
	require.NoError(t, err)
	require.Equal(t, byte(MailboxActor), b[0])

	got, err := DecodeMailboxMessage(b)
	require.NoError(t, err)
	assert.Equal(t, m, got)
}

func TestEncodeDecodeTickMessage(t *testing.T) {
	b, err := EncodeMailboxMessage(MailboxMessage{Tag: MailboxTick})
	require.NoError(t, err)
	assert.Equal(t, []byte{byte(MailboxTick)}, b)

	got, err := DecodeMailboxMessage(b)
	require.NoError(t, err)
	assert.Equal(t, MailboxTick, got.Tag)
}

func TestDecodeMailboxMessageRejectsTruncated(t *testing.T) {
	_, err := DecodeMailboxMessage([]byte{byte(MailboxTask), 1, 2})
	assert.Error(t, err)
}

func TestPostAndHandleMailboxDispatchesTask(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	done := make(chan TaskResult, 1)

	c.tasksMu.Lock()
	c.nextTaskID = 7
	c.tasks[7] = func(r TaskResult) { done <- r }
	c.tasksMu.Unlock()

	c.PostMailbox(MailboxMessage{Tag: MailboxTask, TaskID: 7, ResultPtr: 99})
	c.HandleMailbox()

	select {
	case r := <-done:
		assert.Equal(t, uint64(99), r.Ptr)
	default:
		t.Fatal("task callback was not invoked")
	}
}
