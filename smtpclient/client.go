// SPDX-License-Identifier: GPL-3.0-or-later

package smtpclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"

	"github.com/90s-run/reactor/afd"
	"github.com/90s-run/reactor/dnsresolver"
	"github.com/90s-run/reactor/workerctx"
)

// TLSPolicy governs whether [Client.Deliver] attempts STARTTLS.
type TLSPolicy int

const (
	TLSNever TLSPolicy = iota
	TLSBestEffort
	TLSAlways
)

// Message is one outbound delivery attempt: envelope sender, the
// recipient list, and the raw (already DKIM-signed, if applicable)
// message bytes.
type Message struct {
	From string
	To   []string
	Data []byte
}

// Client delivers messages per §4.8: group recipients by MX domain,
// open a pooled connection per group, opportunistically upgrade to
// TLS, then RSET/MAIL FROM/RCPT TO/DATA.
type Client struct {
	Worker    *workerctx.Context
	Resolver  *dnsresolver.Resolver
	TLSConfig *tls.Config
	Logger    afd.SLogger
	ErrClassifier afd.ErrClassifier
	TimeNow   func() time.Time

	mu        sync.Mutex
	ehloSeen  map[string]bool
}

// NewClient returns a [*Client] with sensible defaults.
func NewClient(worker *workerctx.Context, resolver *dnsresolver.Resolver) *Client {
	return &Client{
		Worker:        worker,
		Resolver:      resolver,
		Logger:        afd.DefaultSLogger(),
		ErrClassifier: afd.DefaultErrClassifier,
		TimeNow:       time.Now,
		ehloSeen:      make(map[string]bool),
	}
}

// Deliver sends msg, grouped by recipient MX domain, returning a
// per-recipient failure map; an empty map means every recipient was
// accepted.
func (c *Client) Deliver(ctx context.Context, msg *Message, policy TLSPolicy) map[string]error {
	failures := make(map[string]error)
	for domain, recipients := range groupByDomain(msg.To) {
		mxHost, err := c.resolveMX(ctx, domain)
		if err != nil {
			for _, r := range recipients {
				failures[r] = err
			}
			continue
		}
		c.deliverToHost(ctx, mxHost, msg.From, recipients, msg.Data, policy, failures)
	}
	return failures
}

func groupByDomain(recipients []string) map[string][]string {
	groups := make(map[string][]string)
	for _, r := range recipients {
		at := strings.LastIndexByte(r, '@')
		if at < 0 {
			continue
		}
		domain := strings.ToLower(r[at+1:])
		groups[domain] = append(groups[domain], r)
	}
	return groups
}

// resolveMX resolves domain's lowest-priority mail exchanger to a
// connectable address through [dnsresolver.Resolver.Query]'s MX
// recursion. There is no fallback to domain's own address records: a
// domain without MX records yields an error.
func (c *Client) resolveMX(ctx context.Context, domain string) (string, error) {
	recs, err := c.Resolver.Query(ctx, domain, dns.TypeMX, false, true)
	if err != nil {
		return "", err
	}
	if len(recs) == 0 {
		return "", fmt.Errorf("smtpclient: no MX records for %s", domain)
	}
	return recs[0].Value, nil
}

func (c *Client) deliverToHost(ctx context.Context, mxAddr, from string, recipients []string, data []byte, policy TLSPolicy, failures map[string]error) {
	name := "smtp:" + mxAddr
	res := c.Worker.Connect(ctx, workerctx.ConnectOptions{
		Addr: mxAddr, Port: 25, Protocol: workerctx.ProtocolTCP, Name: name,
	})
	if res.Err != nil {
		for _, r := range recipients {
			failures[r] = res.Err
		}
		return
	}
	fd := res.FD
	if err := fd.Lock(ctx); err != nil {
		for _, r := range recipients {
			failures[r] = err
		}
		return
	}
	defer fd.Unlock()

	if err := c.greetIfFresh(ctx, fd, name, mxAddr, policy); err != nil {
		for _, r := range recipients {
			failures[r] = err
		}
		return
	}

	if err := c.command(ctx, fd, "RSET", 250); err != nil {
		for _, r := range recipients {
			failures[r] = err
		}
		return
	}
	if err := c.command(ctx, fd, "MAIL FROM:<"+from+">", 250); err != nil {
		for _, r := range recipients {
			failures[r] = err
		}
		return
	}

	var accepted []string
	for _, r := range recipients {
		if err := c.command(ctx, fd, "RCPT TO:<"+r+">", 250); err != nil {
			failures[r] = err
			continue
		}
		accepted = append(accepted, r)
	}
	if len(accepted) == 0 {
		return
	}

	if err := c.sendData(ctx, fd, data); err != nil {
		for _, r := range accepted {
			failures[r] = err
		}
	}
}

// greetIfFresh sends EHLO once per pooled connection, optionally
// upgrading to TLS when offered and policy permits, then re-checking
// capabilities with a second EHLO (§4.8 step 2).
func (c *Client) greetIfFresh(ctx context.Context, fd *afd.FD, name, mxHost string, policy TLSPolicy) error {
	c.mu.Lock()
	fresh := !c.ehloSeen[name]
	c.mu.Unlock()
	if !fresh {
		return nil
	}

	caps, err := c.ehlo(ctx, fd)
	if err != nil {
		return err
	}

	if policy != TLSNever && caps["STARTTLS"] && c.TLSConfig != nil {
		if err := c.command(ctx, fd, "STARTTLS", 220); err != nil {
			if policy == TLSAlways {
				return err
			}
		} else {
			cfg := c.TLSConfig.Clone()
			if cfg.ServerName == "" {
				cfg.ServerName = mxHost
			}
			if err := fd.EnableClientSSL(ctx, cfg, mxHost); err != nil {
				if policy == TLSAlways {
					return err
				}
			} else if _, err := c.ehlo(ctx, fd); err != nil {
				return err
			}
		}
	}

	c.mu.Lock()
	c.ehloSeen[name] = true
	c.mu.Unlock()
	return nil
}

func (c *Client) ehlo(ctx context.Context, fd *afd.FD) (map[string]bool, error) {
	hostname := "localhost"
	if c.Worker != nil {
		hostname = c.Worker.Self("").Host
	}
	if err := c.writeLine(ctx, fd, "EHLO "+hostname); err != nil {
		return nil, err
	}
	code, lines, err := c.readReply(ctx, fd)
	if err != nil {
		return nil, err
	}
	if code != 250 {
		return nil, fmt.Errorf("smtpclient: EHLO rejected: %d %s", code, strings.Join(lines, " "))
	}
	caps := make(map[string]bool)
	for _, line := range lines {
		caps[strings.ToUpper(strings.Fields(line)[0])] = true
	}
	return caps, nil
}

func (c *Client) command(ctx context.Context, fd *afd.FD, line string, wantCode int) error {
	if err := c.writeLine(ctx, fd, line); err != nil {
		return err
	}
	code, lines, err := c.readReply(ctx, fd)
	if err != nil {
		return err
	}
	if code != wantCode {
		return fmt.Errorf("smtpclient: %q rejected: %d %s", line, code, strings.Join(lines, " "))
	}
	return nil
}

func (c *Client) sendData(ctx context.Context, fd *afd.FD, data []byte) error {
	if err := c.writeLine(ctx, fd, "DATA"); err != nil {
		return err
	}
	if code, lines, err := c.readReply(ctx, fd); err != nil {
		return err
	} else if code != 354 {
		return fmt.Errorf("smtpclient: DATA rejected: %d %s", code, strings.Join(lines, " "))
	}

	ok, err := fd.Write(append(dotStuff(data), []byte("\r\n.\r\n")...)).Await(ctx)
	if err != nil || !ok {
		return fmt.Errorf("smtpclient: write DATA body: %w", err)
	}
	code, lines, err := c.readReply(ctx, fd)
	if err != nil {
		return err
	}
	if code != 250 {
		return fmt.Errorf("smtpclient: DATA rejected: %d %s", code, strings.Join(lines, " "))
	}
	return nil
}

func (c *Client) writeLine(ctx context.Context, fd *afd.FD, line string) error {
	ok, err := fd.Write([]byte(line + "\r\n")).Await(ctx)
	if err != nil || !ok {
		return fmt.Errorf("smtpclient: write %q: %w", line, err)
	}
	return nil
}

// readReply reads a (possibly multiline) SMTP reply, matching "NNN-"
// continuations and a final "NNN ".
func (c *Client) readReply(ctx context.Context, fd *afd.FD) (int, []string, error) {
	var lines []string
	for {
		res, err := fd.ReadUntil([]byte("\r\n")).Await(ctx)
		if err != nil {
			return 0, nil, err
		}
		if res.Err != nil {
			return 0, nil, res.Err
		}
		line := string(res.Data)
		lines = append(lines, line)
		if len(line) >= 4 && line[3] == ' ' {
			code, err := strconv.Atoi(line[:3])
			if err != nil {
				return 0, nil, fmt.Errorf("smtpclient: malformed reply code %q", line)
			}
			return code, lines, nil
		}
		if len(line) < 4 || line[3] != '-' {
			return 0, nil, fmt.Errorf("smtpclient: malformed reply line %q", line)
		}
	}
}

// dotStuff doubles any line in data that begins with '.', per SMTP's
// transparency rule for the DATA terminator.
func dotStuff(data []byte) []byte {
	lines := strings.Split(string(data), "\r\n")
	for i, line := range lines {
		if strings.HasPrefix(line, ".") {
			lines[i] = "." + line
		}
	}
	return []byte(strings.Join(lines, "\r\n"))
}
