// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/90s-run/reactor/workerctx"
)

const testActorSecret = "forward-secret"

func newTestWorker() *workerctx.Context {
	cfg := workerctx.NewConfig()
	cfg.ActorSecret = []byte(testActorSecret)
	cfg.Host = "127.0.0.1"
	cfg.Port = 9000
	cfg.WorkerID = 0
	return workerctx.New(cfg)
}

func TestForwardPageDeliversValidMessage(t *testing.T) {
	worker := newTestWorker()
	received := make(chan string, 1)
	worker.RegisterActor("dest", func(from workerctx.PID, msgType string, body []byte) {
		received <- msgType + ":" + string(body)
	})

	to := worker.Self("dest")
	from := workerctx.PID{Host: "10.0.0.9", Port: 9001, Worker: 0, ID: "src"}

	page := NewForwardPage(worker)
	env := &Environment{
		Header: map[string]string{
			"signature": hex.EncodeToString(sigFor(worker, to, from, "greet", []byte("hi"))),
			"from":      from.String(),
			"to":        to.String(),
			"type":      "greet",
		},
		Body: []byte("hi"),
	}

	out, err := page.Render(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, "OK", out.String())

	select {
	case got := <-received:
		assert.Equal(t, "greet:hi", got)
	default:
		t.Fatal("actor handler was not invoked")
	}
}

func TestForwardPageRejectsBadSignature(t *testing.T) {
	worker := newTestWorker()
	to := worker.Self("dest")
	from := workerctx.PID{Host: "10.0.0.9", Port: 9001, Worker: 0, ID: "src"}

	page := NewForwardPage(worker)
	env := &Environment{
		Header: map[string]string{
			"signature": hex.EncodeToString(make([]byte, 32)),
			"from":      from.String(),
			"to":        to.String(),
			"type":      "greet",
		},
		Body: []byte("hi"),
	}

	_, err := page.Render(context.Background(), env)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 401, statusErr.Status)
}

func TestForwardPageRejectsMalformedHeaders(t *testing.T) {
	worker := newTestWorker()
	page := NewForwardPage(worker)
	env := &Environment{Header: map[string]string{"signature": "not-hex"}}

	_, err := page.Render(context.Background(), env)
	require.Error(t, err)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, 400, statusErr.Status)
}

// sigFor independently computes the HMAC-SHA256 signature workerctx's
// (unexported) signer produces, using the same secret, so this test does
// not need to reach into workerctx internals.
func sigFor(worker *workerctx.Context, to, from workerctx.PID, msgType string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(testActorSecret))
	mac.Write([]byte(to.String()))
	mac.Write([]byte(from.String()))
	mac.Write([]byte(msgType))
	mac.Write(body)
	return mac.Sum(nil)
}
