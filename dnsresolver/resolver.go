// SPDX-License-Identifier: GPL-3.0-or-later

package dnsresolver

import (
	"context"
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bassosimone/dnscodec"
	"github.com/miekg/dns"

	"github.com/90s-run/reactor/afd"
)

// ErrorKind distinguishes the DNS failure modes the resolver can report.
//
// Callers must not conflate these: a transport failure (ErrDNSRead), an
// empty answer section (ErrDNSNotFound), a malformed message (ErrDNSParse),
// and a rejected query (ErrDNSQuery) carry different retry semantics.
type ErrorKind string

const (
	ErrDNSRead     ErrorKind = "DNS_READ"
	ErrDNSNotFound ErrorKind = "DNS_NOT_FOUND"
	ErrDNSParse    ErrorKind = "DNS_PARSE"
	ErrDNSQuery    ErrorKind = "DNS_QUERY"
)

// QueryError wraps an underlying error with its [ErrorKind].
type QueryError struct {
	Kind ErrorKind
	Err  error
}

func (e *QueryError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error {
	return e.Err
}

// Record is one resolved DNS answer, shared across the A, AAAA, and MX
// record types this resolver understands.
type Record struct {
	// Type is the record's RR type (dns.TypeA, dns.TypeAAAA, dns.TypeMX).
	Type uint16

	// Value is the IP address literal for A/AAAA records.
	Value string

	// Priority is the MX preference (lower wins); unused for A/AAAA.
	Priority uint16

	// Target is the MX exchange hostname; unused for A/AAAA.
	Target string

	// TTL is the record's time-to-live as reported by the answer section.
	TTL time.Duration
}

// Variant selects the exchange strategy a [Resolver] uses once a query
// misses the pin map and the cache.
type Variant int

const (
	// VariantResolv issues queries through a system-resolver-style exchange,
	// offloaded onto the worker pool because it blocks.
	VariantResolv Variant = iota

	// VariantDoH issues queries over DNS-over-HTTPS using a pooled
	// [*DNSOverHTTPSConn].
	VariantDoH
)

// Offloader runs fn on a blocking worker pool and returns its result.
//
// This abstracts workerctx.Context.Offload without creating an import
// dependency from dnsresolver on workerctx; the caller wires the two
// together (see cmd/reactord).
type Offloader func(fn func() (any, error)) (any, error)

// Options configures a [Resolver].
type Options struct {
	// Variant selects the upstream exchange strategy.
	Variant Variant

	// Nameserver is the "host:port" system resolver to query. Required
	// for VariantResolv.
	Nameserver string

	// DoHConn is the pooled DNS-over-HTTPS connection to exchange over.
	// Required for VariantDoH.
	DoHConn *DNSOverHTTPSConn

	// Offload runs the blocking system-resolver exchange off the event
	// loop. Required for VariantResolv.
	Offload Offloader

	// MinTTL floors every cached answer's TTL, guarding against upstream
	// answers with a TTL of zero causing a cache stampede.
	MinTTL time.Duration

	// ErrClassifier classifies errors for structured logging.
	ErrClassifier afd.ErrClassifier

	// Logger is the SLogger to use.
	Logger afd.SLogger

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time
}

// Resolver implements the pin-map/cache/upstream query algorithm shared by
// both DNS variants. Construct via [New].
type Resolver struct {
	opts Options

	// pins holds /etc/hosts-style overrides keyed by lowercased hostname,
	// parsed once at construction.
	pins map[string][]Record

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	records []Record
	expires time.Time
}

// New constructs a [*Resolver] with the given options and pin table.
//
// pins is typically the result of [LoadPins]; a nil map is treated as empty.
func New(opts Options, pins map[string][]Record) *Resolver {
	if opts.TimeNow == nil {
		opts.TimeNow = time.Now
	}
	if opts.ErrClassifier == nil {
		opts.ErrClassifier = afd.DefaultErrClassifier
	}
	if opts.Logger == nil {
		opts.Logger = afd.DefaultSLogger()
	}
	if pins == nil {
		pins = make(map[string][]Record)
	}
	return &Resolver{
		opts:  opts,
		pins:  pins,
		cache: make(map[string]cacheEntry),
	}
}

// LoadPins parses an /etc/hosts-style pin file ("<ip> <hostname...>" per
// line, '#' comments, blank lines ignored) into a host → records map.
func LoadPins(data []byte) (map[string][]Record, error) {
	pins := make(map[string][]Record)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		ip := net.ParseIP(fields[0])
		if ip == nil {
			continue
		}
		qtype := uint16(dns.TypeA)
		if ip.To4() == nil {
			qtype = dns.TypeAAAA
		}
		rec := Record{Type: qtype, Value: ip.String()}
		for _, host := range fields[1:] {
			host = strings.ToLower(strings.TrimSuffix(host, "."))
			pins[host] = append(pins[host], rec)
		}
	}
	return pins, nil
}

// Query resolves name for the given record type, honoring pins, cache, and
// (for MX queries with mxTreatment) recursion into the lowest-priority
// exchange's own A/AAAA records.
func (r *Resolver) Query(ctx context.Context, name string, qtype uint16, preferIPv6, mxTreatment bool) ([]Record, error) {
	name = strings.ToLower(strings.TrimSuffix(name, "."))

	// 1. IPv4/IPv6 literal passthrough.
	if ip := net.ParseIP(name); ip != nil {
		return []Record{{Type: qtype, Value: ip.String()}}, nil
	}

	// 2. Pin map, exact host + type keyed.
	if recs := r.lookupPins(name, qtype); recs != nil {
		return r.maybeRecurseMX(ctx, recs, qtype, mxTreatment, preferIPv6)
	}

	// 3. TTL-respecting cache.
	if recs, ok := r.lookupCache(name, qtype); ok {
		return r.maybeRecurseMX(ctx, recs, qtype, mxTreatment, preferIPv6)
	}

	// 4. Upstream exchange.
	var (
		recs   []Record
		minTTL time.Duration
		err    error
	)
	switch r.opts.Variant {
	case VariantResolv:
		recs, minTTL, err = r.queryResolv(ctx, name, qtype)
	case VariantDoH:
		recs, minTTL, err = r.queryDoH(ctx, name, qtype)
	default:
		return nil, &QueryError{Kind: ErrDNSQuery, Err: errors.New("dnsresolver: unknown variant")}
	}
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, &QueryError{Kind: ErrDNSNotFound, Err: errors.New("dnsresolver: no answer records for " + name)}
	}

	// 5. Cache with the minimum observed answer TTL.
	r.storeCache(name, qtype, recs, minTTL)

	// 6. MX recursion.
	return r.maybeRecurseMX(ctx, recs, qtype, mxTreatment, preferIPv6)
}

func (r *Resolver) lookupPins(name string, qtype uint16) []Record {
	var out []Record
	for _, rec := range r.pins[name] {
		if rec.Type == qtype {
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (r *Resolver) lookupCache(name string, qtype uint16) ([]Record, bool) {
	key := cacheKey(name, qtype)
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.cache[key]
	if !ok || !r.opts.TimeNow().Before(entry.expires) {
		return nil, false
	}
	return entry.records, true
}

func (r *Resolver) storeCache(name string, qtype uint16, recs []Record, ttl time.Duration) {
	if ttl < r.opts.MinTTL {
		ttl = r.opts.MinTTL
	}
	key := cacheKey(name, qtype)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[key] = cacheEntry{records: recs, expires: r.opts.TimeNow().Add(ttl)}
}

func cacheKey(name string, qtype uint16) string {
	return strconv.Itoa(int(qtype)) + "_" + name
}

func (r *Resolver) maybeRecurseMX(ctx context.Context, recs []Record, qtype uint16, mxTreatment, preferIPv6 bool) ([]Record, error) {
	if qtype != dns.TypeMX || !mxTreatment {
		return recs, nil
	}
	sorted := append([]Record(nil), recs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })
	lowest := sorted[0]

	if ip := net.ParseIP(lowest.Target); ip != nil {
		return []Record{{Type: qtype, Value: ip.String(), Priority: lowest.Priority, Target: lowest.Target}}, nil
	}

	followType := uint16(dns.TypeA)
	if preferIPv6 {
		followType = dns.TypeAAAA
	}
	return r.Query(ctx, lowest.Target, followType, preferIPv6, false)
}

// queryResolv issues a system-resolver-style exchange offloaded onto the
// worker pool, since a blocking exchange must never run on the event loop.
func (r *Resolver) queryResolv(ctx context.Context, name string, qtype uint16) ([]Record, time.Duration, error) {
	if r.opts.Offload == nil {
		return nil, 0, &QueryError{Kind: ErrDNSQuery, Err: errors.New("dnsresolver: resolv variant requires an Offloader")}
	}
	if r.opts.Nameserver == "" {
		return nil, 0, &QueryError{Kind: ErrDNSQuery, Err: errors.New("dnsresolver: resolv variant requires a Nameserver")}
	}

	raw, err := r.opts.Offload(func() (any, error) {
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(name), qtype)
		m.RecursionDesired = true

		client := &dns.Client{Timeout: 5 * time.Second}
		resp, _, exchangeErr := client.ExchangeContext(ctx, m, r.opts.Nameserver)
		if exchangeErr != nil {
			return nil, &QueryError{Kind: ErrDNSRead, Err: exchangeErr}
		}
		if resp.Rcode != dns.RcodeSuccess {
			return nil, &QueryError{Kind: ErrDNSQuery, Err: errors.New("dnsresolver: rcode " + dns.RcodeToString[resp.Rcode])}
		}
		return resp, nil
	})
	if err != nil {
		return nil, 0, err
	}
	msg, ok := raw.(*dns.Msg)
	if !ok {
		return nil, 0, &QueryError{Kind: ErrDNSParse, Err: errors.New("dnsresolver: offloaded result is not a *dns.Msg")}
	}
	return recordsFromMsg(msg, qtype)
}

// queryDoH issues a DNS-over-HTTPS exchange over the pooled connection.
func (r *Resolver) queryDoH(ctx context.Context, name string, qtype uint16) ([]Record, time.Duration, error) {
	if r.opts.DoHConn == nil {
		return nil, 0, &QueryError{Kind: ErrDNSQuery, Err: errors.New("dnsresolver: DoH variant requires a pooled DoH connection")}
	}

	query := dnscodec.NewQuery(name, qtype)
	resp, err := r.opts.DoHConn.Exchange(ctx, query)
	if err != nil {
		return nil, 0, &QueryError{Kind: ErrDNSRead, Err: err}
	}
	msg := responseMsg(resp)
	if msg == nil {
		return nil, 0, &QueryError{Kind: ErrDNSParse, Err: errors.New("dnsresolver: DoH response carried no message")}
	}
	return recordsFromMsg(msg, qtype)
}

// responseMsg extracts the validated *dns.Msg carried by a dnscodec.Response.
//
// dnscodec.ParseResponse(queryMsg, respMsg) validates respMsg against
// queryMsg and returns it wrapped; this accessor assumes that wrapping
// exposes the validated message as a Msg field, matching the shape of the
// sibling rbmk-project/dnscore package this library was adapted from.
func responseMsg(resp *dnscodec.Response) *dns.Msg {
	return resp.Msg
}

func recordsFromMsg(msg *dns.Msg, qtype uint16) ([]Record, time.Duration, error) {
	var recs []Record
	var minTTL time.Duration
	for _, rr := range msg.Answer {
		ttl := time.Duration(rr.Header().Ttl) * time.Second
		if minTTL == 0 || ttl < minTTL {
			minTTL = ttl
		}
		switch v := rr.(type) {
		case *dns.A:
			if qtype == dns.TypeA {
				recs = append(recs, Record{Type: dns.TypeA, Value: v.A.String(), TTL: ttl})
			}
		case *dns.AAAA:
			if qtype == dns.TypeAAAA {
				recs = append(recs, Record{Type: dns.TypeAAAA, Value: v.AAAA.String(), TTL: ttl})
			}
		case *dns.MX:
			if qtype == dns.TypeMX {
				recs = append(recs, Record{
					Type:     dns.TypeMX,
					Priority: v.Preference,
					Target:   strings.TrimSuffix(v.Mx, "."),
					TTL:      ttl,
				})
			}
		}
	}
	return recs, minTTL, nil
}
