// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func aMsg(name string, ttl uint32, ip string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeA)
	m.Answer = append(m.Answer, &dns.A{
		Hdr: dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: ttl},
		A:   net.ParseIP(ip),
	})
	return m
}

func mxMsg(name string, ttl uint32, priority uint16, target string) *dns.Msg {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeMX)
	m.Answer = append(m.Answer, &dns.MX{
		Hdr:        dns.RR_Header{Name: dns.Fqdn(name), Rrtype: dns.TypeMX, Class: dns.ClassINET, Ttl: ttl},
		Preference: priority,
		Mx:         dns.Fqdn(target),
	})
	return m
}

// stubResolver builds a VariantResolv [*Resolver] whose Offloader returns
// queued *dns.Msg responses in order, one per call, bypassing any real
// network exchange.
func stubResolver(t *testing.T, now *time.Time, msgs ...*dns.Msg) *Resolver {
	t.Helper()
	i := 0
	offload := func(fn func() (any, error)) (any, error) {
		require.Less(t, i, len(msgs), "unexpected extra upstream query")
		msg := msgs[i]
		i++
		return msg, nil
	}
	opts := Options{
		Variant:    VariantResolv,
		Nameserver: "127.0.0.1:53",
		Offload:    offload,
		TimeNow:    func() time.Time { return *now },
	}
	return New(opts, nil)
}

func TestQueryLiteralPassthrough(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := stubResolver(t, &now)

	recs, err := r.Query(context.Background(), "203.0.113.9", dns.TypeA, false, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "203.0.113.9", recs[0].Value)
}

func TestQueryPinOverridesUpstream(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pins, err := LoadPins([]byte("192.0.2.77 pinned.example\n"))
	require.NoError(t, err)

	r := New(Options{Variant: VariantResolv, TimeNow: func() time.Time { return now }}, pins)

	recs, err := r.Query(context.Background(), "pinned.example", dns.TypeA, false, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "192.0.2.77", recs[0].Value)
}

func TestQueryCachesUntilTTLExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := stubResolver(t, &now, aMsg("cached.example", 30, "198.51.100.1"))

	recs, err := r.Query(context.Background(), "cached.example", dns.TypeA, false, false)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", recs[0].Value)

	// Second call within the TTL window must hit the cache: no second
	// message is queued, so a cache miss would fail stubResolver's
	// "unexpected extra upstream query" assertion.
	now = now.Add(10 * time.Second)
	recs, err = r.Query(context.Background(), "cached.example", dns.TypeA, false, false)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", recs[0].Value)
}

func TestQueryReQueriesAfterTTLExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := stubResolver(t, &now,
		aMsg("rotating.example", 5, "198.51.100.1"),
		aMsg("rotating.example", 5, "198.51.100.2"),
	)

	_, err := r.Query(context.Background(), "rotating.example", dns.TypeA, false, false)
	require.NoError(t, err)

	now = now.Add(time.Minute)
	recs, err := r.Query(context.Background(), "rotating.example", dns.TypeA, false, false)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.2", recs[0].Value)
}

// TestQueryMXRecursion covers scenario S6: example.com MX returns
// 10 mail.example.com, mail.example.com A returns 192.0.2.1.
func TestQueryMXRecursion(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := stubResolver(t, &now,
		mxMsg("example.com", 300, 10, "mail.example.com"),
		aMsg("mail.example.com", 300, "192.0.2.1"),
	)

	recs, err := r.Query(context.Background(), "example.com", dns.TypeMX, false, true)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "192.0.2.1", recs[0].Value)
}

func TestQueryMXWithoutTreatmentReturnsRawAnswers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := stubResolver(t, &now, mxMsg("example.com", 300, 10, "mail.example.com"))

	recs, err := r.Query(context.Background(), "example.com", dns.TypeMX, false, false)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "mail.example.com", recs[0].Target)
	assert.Equal(t, uint16(10), recs[0].Priority)
}

func TestQueryNotFoundWhenAnswerSectionEmpty(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	empty := new(dns.Msg)
	empty.SetQuestion(dns.Fqdn("nowhere.example"), dns.TypeA)
	r := stubResolver(t, &now, empty)

	_, err := r.Query(context.Background(), "nowhere.example", dns.TypeA, false, false)
	require.Error(t, err)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, ErrDNSNotFound, qerr.Kind)
}

func TestQueryResolvWithoutOffloaderFails(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := New(Options{Variant: VariantResolv, Nameserver: "127.0.0.1:53", TimeNow: func() time.Time { return now }}, nil)

	_, err := r.Query(context.Background(), "example.com", dns.TypeA, false, false)
	require.Error(t, err)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, ErrDNSQuery, qerr.Kind)
}
