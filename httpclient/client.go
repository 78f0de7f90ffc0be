// SPDX-License-Identifier: GPL-3.0-or-later

package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/90s-run/reactor/afd"
	"github.com/90s-run/reactor/dnsresolver"
	"github.com/90s-run/reactor/workerctx"
)

// Request is one HTTP/1.1 request, framed and sent over a pooled FD.
type Request struct {
	// Method is the HTTP method (GET, POST, …).
	Method string

	// URL is "http(s)://[user:pass@]host[:port]/path".
	URL string

	// Header holds additional request headers; keys are sent verbatim.
	Header map[string]string

	// Body is the request body, if any.
	Body []byte
}

// Response mirrors the spec's error/error_message response fields: a
// protocol-layer failure is reported here rather than as a Go error,
// since the underlying FD is not closed and remains reusable.
type Response struct {
	StatusCode int
	Reason     string
	Header     map[string]string
	Body       []byte

	Err          bool
	ErrorMessage string
}

// Client issues single-request, full-response HTTP/1.1 exchanges over
// connections pooled by name under a [*workerctx.Context].
type Client struct {
	// Worker supplies pooled connections (§4.3's named-connection dedup).
	Worker *workerctx.Context

	// Resolver resolves request hosts to addresses (§4.4).
	Resolver *dnsresolver.Resolver

	// DisableLocal rejects loopback/private/link-local targets.
	DisableLocal bool

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time
}

// Do performs req and returns its response. Only transport-level failures
// (resolution, connect, lock acquisition) are returned as a Go error;
// protocol-level failures surface through Response.Err/ErrorMessage.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	t, err := parseTarget(req.URL)
	if err != nil {
		return nil, err
	}

	recs, err := c.Resolver.Query(ctx, t.Host, dns.TypeA, false, false)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("httpclient: no address for %s", t.Host)
	}

	opts := workerctx.ConnectOptions{
		Addr:         t.Host + "@" + recs[0].Value,
		Port:         t.Port,
		Name:         t.PoolName,
		DisableLocal: c.DisableLocal,
	}
	if t.TLS {
		opts.Protocol = workerctx.ProtocolTLS
		opts.TLSConfig = &tls.Config{ServerName: t.Host}
	} else {
		opts.Protocol = workerctx.ProtocolTCP
	}

	result := c.Worker.Connect(ctx, opts)
	if result.Err != nil {
		return nil, result.Err
	}
	fd := result.FD

	if err := fd.Lock(ctx); err != nil {
		return nil, err
	}
	defer fd.Unlock()

	if err := c.writeRequest(ctx, fd, t, req); err != nil {
		return &Response{Err: true, ErrorMessage: err.Error()}, nil
	}

	resp, err := c.readResponse(ctx, fd)
	if err != nil {
		return &Response{Err: true, ErrorMessage: err.Error()}, nil
	}
	return resp, nil
}

func (c *Client) writeRequest(ctx context.Context, fd *afd.FD, t *target, req *Request) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\n", req.Method, t.Path)
	fmt.Fprintf(&b, "host: %s\r\n", t.Host)
	fmt.Fprintf(&b, "content-length: %d\r\n", len(req.Body))
	if t.AuthHdr != "" {
		fmt.Fprintf(&b, "authorization: %s\r\n", t.AuthHdr)
	}
	for k, v := range req.Header {
		fmt.Fprintf(&b, "%s: %s\r\n", strings.ToLower(k), v)
	}
	b.WriteString("\r\n")
	b.Write(req.Body)

	ok, err := fd.Write(b.Bytes()).Await(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("httpclient: write failed")
	}
	return nil
}

func (c *Client) readResponse(ctx context.Context, fd *afd.FD) (*Response, error) {
	head, err := fd.ReadUntil([]byte("\r\n\r\n")).Await(ctx)
	if err != nil {
		return nil, err
	}
	if head.Err != nil {
		return nil, head.Err
	}

	statusCode, reason, header, err := parseHead(head.Data)
	if err != nil {
		return nil, err
	}

	resp := &Response{StatusCode: statusCode, Reason: reason, Header: header}

	if strings.EqualFold(header["transfer-encoding"], "chunked") {
		body, err := readChunkedBody(ctx, fd)
		if err != nil {
			return nil, err
		}
		resp.Body = body
		return resp, nil
	}

	if cl, ok := header["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err != nil {
			return nil, fmt.Errorf("httpclient: invalid content-length %q", cl)
		}
		if n > 0 {
			body, err := fd.ReadN(n).Await(ctx)
			if err != nil {
				return nil, err
			}
			if body.Err != nil {
				return nil, body.Err
			}
			resp.Body = body.Data
		}
	}
	return resp, nil
}

// parseHead parses "HTTP/1.1 sss reason\r\nkey: value\r\n..." (the
// trailing "\r\n\r\n" already stripped by ReadUntil) into a status code,
// reason phrase, and lower-cased header map.
func parseHead(data []byte) (int, string, map[string]string, error) {
	lines := strings.Split(string(data), "\r\n")
	if len(lines) == 0 {
		return 0, "", nil, fmt.Errorf("httpclient: empty response head")
	}

	statusParts := strings.SplitN(lines[0], " ", 3)
	if len(statusParts) < 2 {
		return 0, "", nil, fmt.Errorf("httpclient: malformed status line %q", lines[0])
	}
	statusCode, err := strconv.Atoi(statusParts[1])
	if err != nil {
		return 0, "", nil, fmt.Errorf("httpclient: malformed status code %q", statusParts[1])
	}
	reason := ""
	if len(statusParts) == 3 {
		reason = statusParts[2]
	}

	header := make(map[string]string)
	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(line[:idx]))
		value := strings.TrimSpace(line[idx+1:])
		header[key] = value
	}
	return statusCode, reason, header, nil
}

// readChunkedBody implements the loop from §4.5: read a hex chunk-length
// line, read length+2 bytes (data plus trailing CRLF) if non-zero, stop
// once a zero-length chunk is read and its trailing CRLF consumed.
func readChunkedBody(ctx context.Context, fd *afd.FD) ([]byte, error) {
	var body []byte
	for {
		sizeLine, err := fd.ReadUntil([]byte("\r\n")).Await(ctx)
		if err != nil {
			return nil, err
		}
		if sizeLine.Err != nil {
			return nil, sizeLine.Err
		}

		sizeField := string(bytes.TrimSpace(bytes.SplitN(sizeLine.Data, []byte(";"), 2)[0]))
		length, err := strconv.ParseInt(sizeField, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("httpclient: malformed chunk size %q", sizeField)
		}
		if length == 0 {
			if _, err := fd.ReadUntil([]byte("\r\n")).Await(ctx); err != nil {
				return nil, err
			}
			return body, nil
		}

		chunk, err := fd.ReadN(int(length) + 2).Await(ctx)
		if err != nil {
			return nil, err
		}
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		body = append(body, chunk.Data[:length]...)
	}
}
