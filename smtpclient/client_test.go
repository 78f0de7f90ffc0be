// SPDX-License-Identifier: GPL-3.0-or-later

package smtpclient

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/90s-run/reactor/afd"
)

func TestGroupByDomainGroupsCaseInsensitively(t *testing.T) {
	groups := groupByDomain([]string{"a@Example.com", "b@example.COM", "c@other.example"})
	assert.ElementsMatch(t, []string{"a@Example.com", "b@example.COM"}, groups["example.com"])
	assert.ElementsMatch(t, []string{"c@other.example"}, groups["other.example"])
}

func TestDotStuffDoublesLeadingDot(t *testing.T) {
	in := []byte("hello\r\n.leading\r\nnormal\r\n..double\r\n")
	out := dotStuff(in)
	assert.Equal(t, "hello\r\n..leading\r\nnormal\r\n...double\r\n", string(out))
}

func newTestClientPair(t *testing.T) (*Client, *afd.FD, net.Conn) {
	t.Helper()
	a, b := net.Pipe()
	fd := afd.New(afd.NewConfig(), a, afd.KindSocket)
	t.Cleanup(func() { fd.Close(true) })
	return NewClient(nil, nil), fd, b
}

func TestReadReplySingleLine(t *testing.T) {
	c, fd, peer := newTestClientPair(t)
	go peer.Write([]byte("250 OK\r\n"))

	code, lines, err := c.readReply(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Equal(t, []string{"250 OK"}, lines)
}

func TestReadReplyMultiline(t *testing.T) {
	c, fd, peer := newTestClientPair(t)
	go peer.Write([]byte("250-PIPELINING\r\n250-8BITMIME\r\n250 SIZE 1000\r\n"))

	code, lines, err := c.readReply(context.Background(), fd)
	require.NoError(t, err)
	assert.Equal(t, 250, code)
	assert.Equal(t, []string{"250-PIPELINING", "250-8BITMIME", "250 SIZE 1000"}, lines)
}

func TestCommandWritesLineAndChecksReplyCode(t *testing.T) {
	c, fd, peer := newTestClientPair(t)
	var got []byte
	done := make(chan struct{})
	go func() {
		buf := make([]byte, 256)
		n, _ := peer.Read(buf)
		got = buf[:n]
		peer.Write([]byte("250 OK\r\n"))
		close(done)
	}()

	err := c.command(context.Background(), fd, "RSET", 250)
	require.NoError(t, err)
	<-done
	assert.Equal(t, "RSET\r\n", string(got))
}

func TestCommandReturnsErrorOnUnexpectedCode(t *testing.T) {
	c, fd, peer := newTestClientPair(t)
	go func() {
		buf := make([]byte, 256)
		peer.Read(buf)
		peer.Write([]byte("550 No such user\r\n"))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := c.command(ctx, fd, "RCPT TO:<ghost@example.com>", 250)
	assert.Error(t, err)
}
