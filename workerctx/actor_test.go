// SPDX-License-Identifier: GPL-3.0-or-later

package workerctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPIDRoundTrip(t *testing.T) {
	p := PID{Host: "10.0.0.1", Port: 9000, Worker: 2, ID: "actor-7"}
	s := p.String()
	assert.Equal(t, "10.0.0.1 9000 2 actor-7", s)

	got, err := ParsePID(s)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestParsePIDRejectsMalformed(t *testing.T) {
	_, err := ParsePID("not-a-pid")
	assert.Error(t, err)
}

func TestSendMessageLocalDelivery(t *testing.T) {
	c := newTestContext(&fakeDialer{})

	received := make(chan string, 1)
	c.RegisterActor("dest", func(from PID, msgType string, body []byte) {
		received <- msgType + ":" + string(body)
	})

	err := c.SendMessage(context.Background(), c.Self("dest"), "greet", []byte("hi"), nil)
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "greet:hi", got)
	default:
		t.Fatal("actor handler was not invoked")
	}
}

func TestSendMessageSameWorkerUsesActorSecret(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	c.cfg.ActorSecret = []byte("secret-a")

	to := c.Self("dest")
	from := c.Self("src")
	sig := c.signActorMessage(to.String(), from.String(), "t", []byte("body"))

	assert.True(t, c.VerifyActorSignature(sig, to.String(), from.String(), "t", []byte("body")))
	assert.False(t, c.VerifyActorSignature(sig, to.String(), from.String(), "t", []byte("tampered")))

	c2 := newTestContext(&fakeDialer{})
	c2.cfg.ActorSecret = []byte("secret-b")
	sig2 := c2.signActorMessage(to.String(), from.String(), "t", []byte("body"))
	assert.NotEqual(t, sig, sig2)
}

func TestSendMessageOtherWorkerPostsMailbox(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	to := PID{Host: c.cfg.Host, Port: c.cfg.Port, Worker: c.cfg.WorkerID + 1, ID: "dest"}

	err := c.SendMessage(context.Background(), to, "greet", []byte("hi"), nil)
	require.NoError(t, err)

	select {
	case m := <-c.mailbox:
		assert.Equal(t, MailboxActor, m.Tag)
		assert.Equal(t, to.String(), m.To)
	default:
		t.Fatal("expected a posted mailbox message")
	}
}

func TestSendMessageRemoteRequiresForwardDialer(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	to := PID{Host: "remote.example", Port: 9001, Worker: 0, ID: "dest"}

	err := c.SendMessage(context.Background(), to, "greet", []byte("hi"), nil)
	assert.Error(t, err)

	called := false
	fwd := func(ctx context.Context, to PID, sig [32]byte, from PID, msgType string, body []byte) error {
		called = true
		return nil
	}
	err = c.SendMessage(context.Background(), to, "greet", []byte("hi"), fwd)
	require.NoError(t, err)
	assert.True(t, called)
}

func TestReceiveForwardDeliversLocallyToThisWorker(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	c.cfg.ActorSecret = []byte("secret")

	received := make(chan string, 1)
	c.RegisterActor("dest", func(from PID, msgType string, body []byte) {
		received <- msgType + ":" + string(body)
	})

	from := PID{Host: "remote.example", Port: 9001, Worker: 0, ID: "src"}
	to := c.Self("dest")
	sig := c.signActorMessage(to.String(), from.String(), "greet", []byte("hi"))

	err := c.ReceiveForward(sig, from, to, "greet", []byte("hi"))
	require.NoError(t, err)

	select {
	case got := <-received:
		assert.Equal(t, "greet:hi", got)
	default:
		t.Fatal("actor handler was not invoked")
	}
}

func TestReceiveForwardRejectsBadSignature(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	c.cfg.ActorSecret = []byte("secret")

	from := PID{Host: "remote.example", Port: 9001, Worker: 0, ID: "src"}
	to := c.Self("dest")

	err := c.ReceiveForward([32]byte{}, from, to, "greet", []byte("hi"))
	assert.Error(t, err)
}

func TestReceiveForwardPostsMailboxForOtherWorker(t *testing.T) {
	c := newTestContext(&fakeDialer{})
	c.cfg.ActorSecret = []byte("secret")

	from := PID{Host: "remote.example", Port: 9001, Worker: 0, ID: "src"}
	to := PID{Host: c.cfg.Host, Port: c.cfg.Port, Worker: c.cfg.WorkerID + 1, ID: "dest"}
	sig := c.signActorMessage(to.String(), from.String(), "greet", []byte("hi"))

	err := c.ReceiveForward(sig, from, to, "greet", []byte("hi"))
	require.NoError(t, err)

	select {
	case m := <-c.mailbox:
		assert.Equal(t, MailboxActor, m.Tag)
		assert.Equal(t, to.String(), m.To)
	default:
		t.Fatal("expected a posted mailbox message")
	}
}
