// SPDX-License-Identifier: GPL-3.0-or-later

package workerctx

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDialer struct {
	dials int32
	conn  func() net.Conn
	delay time.Duration
}

func (d *fakeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	atomic.AddInt32(&d.dials, 1)
	if d.delay > 0 {
		time.Sleep(d.delay)
	}
	return d.conn(), nil
}

func newTestContext(d Dialer) *Context {
	cfg := NewConfig()
	cfg.Dialer = d
	cfg.Host = "127.0.0.1"
	cfg.Port = 9000
	cfg.WorkerID = 0
	cfg.ActorSecret = []byte("test-secret")
	return New(cfg)
}

// Testable Property 6: of N callers requesting the same name
// concurrently, exactly one dials and the rest observe the same result.
func TestConnectNamedDedup(t *testing.T) {
	server, client := net.Pipe()
	_ = server
	dialer := &fakeDialer{conn: func() net.Conn { return client }, delay: 20 * time.Millisecond}
	c := newTestContext(dialer)

	var wg sync.WaitGroup
	results := make([]ConnectResult, 5)
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = c.Connect(context.Background(), ConnectOptions{
				Addr: "10.0.0.1", Port: 80, Name: "shared",
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&dialer.dials))
	for _, r := range results {
		assert.Equal(t, results[0].Handle, r.Handle)
		require.NoError(t, r.Err)
	}
}

func TestConnectDisableLocalRejectsPrivateAddress(t *testing.T) {
	dialer := &fakeDialer{conn: func() net.Conn { a, _ := net.Pipe(); return a }}
	c := newTestContext(dialer)

	r := c.Connect(context.Background(), ConnectOptions{
		Addr: "192.168.1.5", Port: 80, DisableLocal: true,
	})
	require.ErrorIs(t, r.Err, ErrInvalidAddress)
	assert.Equal(t, int32(0), atomic.LoadInt32(&dialer.dials))
}

func TestConnectSplitsSNIHost(t *testing.T) {
	host, dial := splitSNI("example.com@93.184.216.34")
	assert.Equal(t, "example.com", host)
	assert.Equal(t, "93.184.216.34", dial)
}

func TestConnectDialFailureIsNotCachedUnderName(t *testing.T) {
	calls := int32(0)
	dialer := &fakeDialerErrOnce{calls: &calls}
	c := newTestContext(dialer)

	r1 := c.Connect(context.Background(), ConnectOptions{Addr: "10.0.0.1", Port: 80, Name: "retryable"})
	require.Error(t, r1.Err)

	server, client := net.Pipe()
	_ = server
	dialer.succeedConn = client
	r2 := c.Connect(context.Background(), ConnectOptions{Addr: "10.0.0.1", Port: 80, Name: "retryable"})
	require.NoError(t, r2.Err)
}

type fakeDialerErrOnce struct {
	calls       *int32
	succeedConn net.Conn
}

func (d *fakeDialerErrOnce) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	n := atomic.AddInt32(d.calls, 1)
	if n == 1 {
		return nil, assertErr{}
	}
	return d.succeedConn, nil
}

type assertErr struct{}

func (assertErr) Error() string { return "dial failed" }
