// SPDX-License-Identifier: GPL-3.0-or-later

package afd

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPair(t *testing.T) (fd *FD, peer net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	fd = New(NewConfig(), a, KindSocket)
	t.Cleanup(func() { fd.Close(true) })
	return fd, b
}

// Scenario S1: exact-N reads over packet splits.
func TestReadNOverPacketSplits(t *testing.T) {
	fd, peer := newTestPair(t)

	p1 := fd.ReadN(10)
	p2 := fd.ReadN(5)

	go func() {
		peer.Write([]byte{1, 2, 3})
		peer.Write([]byte{4, 5, 6, 7})
		peer.Write([]byte("0123456789012345678901234567890123456789")[:20])
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r1, err := p1.Await(ctx)
	require.NoError(t, err)
	require.NoError(t, r1.Err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, '0', '1', '2'}, r1.Data)

	r2, err := p2.Await(ctx)
	require.NoError(t, err)
	require.NoError(t, r2.Err)
	assert.Equal(t, []byte("34567"), r2.Data)
}

// Scenario S2: delimiter split across reads.
func TestReadUntilSplitDelimiter(t *testing.T) {
	fd, peer := newTestPair(t)

	p := fd.ReadUntil([]byte("\r\n\r\n"))

	go func() {
		peer.Write([]byte("abc\r\n"))
		peer.Write([]byte("\r"))
		peer.Write([]byte("\n"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r, err := p.Await(ctx)
	require.NoError(t, err)
	require.NoError(t, r.Err)
	assert.Equal(t, "abc", string(r.Data))
}

func TestReadAnyResolvesWithWhateverArrived(t *testing.T) {
	fd, peer := newTestPair(t)

	p := fd.ReadAny()
	go peer.Write([]byte("hello"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r, err := p.Await(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(r.Data))
}

func TestWriteResolvesTrueOnSuccess(t *testing.T) {
	fd, peer := newTestPair(t)

	done := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 64)
		n, _ := peer.Read(buf)
		done <- buf[:n]
	}()

	p := fd.Write([]byte("ping"))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ok, err := p.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ping", string(<-done))
}

func TestCloseIsIdempotent(t *testing.T) {
	fd, _ := newTestPair(t)
	err1 := fd.Close(true)
	err2 := fd.Close(true)
	assert.NoError(t, err1)
	assert.NoError(t, err2)
}

func TestCloseFailsPendingReadsAndWrites(t *testing.T) {
	fd, _ := newTestPair(t)

	readP := fd.ReadN(100)
	writeP := fd.Write(make([]byte, 100))

	fd.Close(true)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r, err := readP.Await(ctx)
	require.NoError(t, err)
	assert.Error(t, r.Err)

	ok, err := writeP.Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFairLockFIFO(t *testing.T) {
	l := newFairLock()
	ctx := context.Background()

	require.NoError(t, l.Lock(ctx))

	order := make(chan int, 3)
	for i := 0; i < 3; i++ {
		i := i
		go func() {
			require.NoError(t, l.Lock(ctx))
			order <- i
			l.Unlock()
		}()
		time.Sleep(10 * time.Millisecond) // ensure waiters enqueue in order
	}

	l.Unlock()

	assert.Equal(t, 0, <-order)
	assert.Equal(t, 1, <-order)
	assert.Equal(t, 2, <-order)
}
