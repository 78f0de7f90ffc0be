// SPDX-License-Identifier: GPL-3.0-or-later

// Command reactord is an example composition root: it wires one worker
// context to both an HTTP/1.1 listener and an SMTP listener, following
// the flag-driven, log-to-stderr shape of teemuteemu-caddy-language-server's
// cmd/caddy-ls/main.go.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/90s-run/reactor/afd"
	"github.com/90s-run/reactor/dnsresolver"
	"github.com/90s-run/reactor/httpserver"
	"github.com/90s-run/reactor/render"
	"github.com/90s-run/reactor/smtpclient"
	"github.com/90s-run/reactor/smtpserver"
	"github.com/90s-run/reactor/workerctx"
)

func main() {
	var (
		httpAddr   string
		smtpAddr   string
		host       string
		nameserver string
	)
	flag.StringVar(&httpAddr, "http-addr", ":8080", "HTTP listen address")
	flag.StringVar(&smtpAddr, "smtp-addr", ":2525", "SMTP listen address")
	flag.StringVar(&host, "host", "localhost", "externally reachable hostname")
	flag.StringVar(&nameserver, "nameserver", "8.8.8.8:53", "upstream DNS nameserver")
	flag.Parse()

	if err := run(httpAddr, smtpAddr, host, nameserver); err != nil {
		fmt.Fprintf(os.Stderr, "reactord: %v\n", err)
		os.Exit(1)
	}
}

func run(httpAddr, smtpAddr, host, nameserver string) error {
	workerCfg := workerctx.NewConfig()
	workerCfg.Host = host
	worker := workerctx.New(workerCfg)

	resolver := dnsresolver.New(dnsresolver.Options{
		Variant:    dnsresolver.VariantResolv,
		Nameserver: nameserver,
		Offload: func(fn func() (any, error)) (any, error) {
			result, err := worker.Offload(fn).Await(context.Background())
			if err != nil {
				return nil, err
			}
			return result.Value, result.Err
		},
		MinTTL: 30 * time.Second,
	}, nil)

	smtpClient := smtpclient.NewClient(worker, resolver)
	_ = smtpClient // exercised by the delivery queue once a Mailstore wires one up

	httpSrv := newHTTPServer()
	smtpSrv := newSMTPServer(host)

	errc := make(chan error, 2)
	go func() { errc <- serveHTTP(httpAddr, httpSrv) }()
	go func() { errc <- serveSMTP(smtpAddr, smtpSrv) }()
	return <-errc
}

func newHTTPServer() *httpserver.Server {
	registry := httpserver.NewRegistry()
	registry.Register("GET", "/", httpserver.PageFunc(indexPage), nil)

	srv := httpserver.NewServer()
	srv.Registry = registry
	srv.Global = workerctx.NewStore()
	return srv
}

func indexPage(ctx context.Context, env *httpserver.Environment) (*render.Context, error) {
	return render.New().Write("reactord is running"), nil
}

func newSMTPServer(host string) *smtpserver.Server {
	srv := smtpserver.NewServer()
	srv.Host = host
	srv.LocalDomains = map[string]bool{host: true}
	srv.Store = &memoryMailstore{}
	return srv
}

func serveHTTP(addr string, srv *httpserver.Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("reactord: http listen: %w", err)
	}
	defer ln.Close()
	return acceptLoop(ln, srv.ServeConn)
}

func serveSMTP(addr string, srv *smtpserver.Server) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("reactord: smtp listen: %w", err)
	}
	defer ln.Close()
	return acceptLoop(ln, srv.ServeConn)
}

// acceptLoop accepts connections from ln and hands each one, wrapped as a
// buffered [*afd.FD], to serve in its own goroutine.
func acceptLoop(ln net.Listener, serve func(ctx context.Context, fd *afd.FD)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("reactord: accept: %w", err)
		}
		fd := afd.New(afd.NewConfig(), conn, afd.KindSocket)
		go serve(context.Background(), fd)
	}
}

// memoryMailstore is a minimal in-process [smtpserver.Mailstore] that
// accepts any local mailbox and discards stored mail; a real deployment
// replaces it with one backed by sqlclient.
type memoryMailstore struct{}

func (m *memoryMailstore) LookupUser(ctx context.Context, mailbox string) bool { return true }

func (m *memoryMailstore) QuotaExceeded(ctx context.Context, mailbox string, size int64) bool {
	return false
}

func (m *memoryMailstore) StoreMail(ctx context.Context, env *smtpserver.Envelope, data []byte) (string, error) {
	return fmt.Sprintf("msg-%d", time.Now().UnixNano()), nil
}
