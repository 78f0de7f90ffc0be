// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/90s-run/reactor/afd"
	"github.com/90s-run/reactor/render"
	"github.com/90s-run/reactor/workerctx"
)

// Server drives the HTTP/1.1 keep-alive state machine for each accepted
// connection: parse request, dispatch to a registered page, render,
// serialize, loop (§4.6).
type Server struct {
	// Registry holds the (method, path) → page table.
	Registry *Registry

	// Global is the process-wide store every page's Environment.Global
	// points at.
	Global *workerctx.Store

	// NotFound renders the built-in not-found page (dispatched when no
	// page is registered for a request).
	NotFound Page

	// ErrorPage renders the built-in error page for a given HTTP status
	// (dispatched when a page fails).
	ErrorPage func(status int) Page

	// Logger is the SLogger to use.
	Logger afd.SLogger

	// TimeNow returns the current time (configurable for testing).
	TimeNow func() time.Time
}

// NewServer returns a [*Server] with sensible defaults; Registry and
// Global must still be set by the caller.
func NewServer() *Server {
	return &Server{
		NotFound:  PageFunc(defaultNotFoundPage),
		ErrorPage: defaultErrorPage,
		Logger:    afd.DefaultSLogger(),
		TimeNow:   time.Now,
	}
}

func defaultNotFoundPage(ctx context.Context, env *Environment) (*render.Context, error) {
	return nil, &StatusError{Status: 404}
}

func defaultErrorPage(status int) Page {
	return PageFunc(func(ctx context.Context, env *Environment) (*render.Context, error) {
		c := render.New()
		c.Write(fmt.Sprintf("%d %s", status, statusText(status)))
		return c, nil
	})
}

// ServeConn runs the keep-alive loop for one accepted connection until
// the peer disconnects, a request fails to parse, or a write fails.
func (s *Server) ServeConn(ctx context.Context, fd *afd.FD) {
	for {
		env, err := s.readRequest(ctx, fd)
		if err != nil {
			return
		}

		status, body := s.dispatch(ctx, env)

		if !s.writeResponse(ctx, fd, status, body) {
			return
		}
	}
}

func (s *Server) readRequest(ctx context.Context, fd *afd.FD) (*Environment, error) {
	head, err := fd.ReadUntil([]byte("\r\n\r\n")).Await(ctx)
	if err != nil {
		return nil, err
	}
	if head.Err != nil {
		return nil, head.Err
	}

	lines := strings.Split(string(head.Data), "\r\n")
	if len(lines) == 0 {
		return nil, fmt.Errorf("httpserver: empty request")
	}

	requestLine := strings.Fields(lines[0])
	if len(requestLine) != 3 {
		return nil, fmt.Errorf("httpserver: malformed request line %q", lines[0])
	}
	method := requestLine[0]
	rawPath := requestLine[1]

	path := rawPath
	query := make(map[string]string)
	if idx := strings.IndexByte(rawPath, '?'); idx >= 0 {
		path = rawPath[:idx]
		values, err := url.ParseQuery(rawPath[idx+1:])
		if err == nil {
			for k, v := range values {
				if len(v) > 0 {
					query[k] = v[0]
				}
			}
		}
	}
	decodedPath, err := url.PathUnescape(path)
	if err == nil {
		path = decodedPath
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
		header[strings.ToLower(strings.TrimSpace(line[:idx]))] = strings.TrimSpace(line[idx+1:])
	}

	env := &Environment{
		Method: method,
		Path:   path,
		Query:  query,
		Header: header,
		Global: s.Global,
	}

	if cl, ok := header["content-length"]; ok {
		n, err := strconv.Atoi(cl)
		if err == nil && n > 0 {
			body, err := fd.ReadN(n).Await(ctx)
			if err != nil {
				return nil, err
			}
			if body.Err != nil {
				return nil, body.Err
			}
			env.Body = body.Data
		}
	}

	return env, nil
}

// dispatch looks up and renders the page for env, falling back to the
// not-found page when absent and the error page on render failure
// (§4.6 steps 3-5).
func (s *Server) dispatch(ctx context.Context, env *Environment) (status int, body string) {
	page, local, ok := s.Registry.Lookup(env.Method, env.Path)
	if !ok {
		return s.render(ctx, s.NotFound, env, 404)
	}
	env.Local = local

	out, err := s.renderRecovered(ctx, page, env)
	if err == nil {
		return 200, out.String()
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return s.render(ctx, s.ErrorPage(statusErr.Status), &Environment{
			Method: env.Method, Path: env.Path, Global: s.Global,
		}, statusErr.Status)
	}
	return s.render(ctx, s.ErrorPage(500), &Environment{
		Method: env.Method, Path: env.Path, Global: s.Global,
	}, 500)
}

// renderRecovered invokes page.Render, converting a panic ("propagated
// exception" in the spec's terms) into an internal_server_error result.
func (s *Server) renderRecovered(ctx context.Context, page Page, env *Environment) (out *render.Context, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Info("httpPageRecoveredPanic", slog.Any("recovered", r))
			out, err = nil, &StatusError{Status: 500}
		}
	}()
	return page.Render(ctx, env)
}

func (s *Server) render(ctx context.Context, page Page, env *Environment, status int) (int, string) {
	out, err := s.renderRecovered(ctx, page, env)
	if err != nil {
		c := render.New()
		c.Write(fmt.Sprintf("%d %s", status, statusText(status)))
		return status, c.String()
	}
	return status, out.String()
}

func (s *Server) writeResponse(ctx context.Context, fd *afd.FD, status int, body string) bool {
	var b strings.Builder
	fmt.Fprintf(&b, "HTTP/1.1 %d %s\r\n", status, statusText(status))
	fmt.Fprintf(&b, "content-length: %d\r\n", len(body))
	b.WriteString("\r\n")
	b.WriteString(body)

	ok, err := fd.Write([]byte(b.String())).Await(ctx)
	return err == nil && ok
}

func statusText(status int) string {
	switch status {
	case 200:
		return "OK"
	case 404:
		return "Not Found"
	case 500:
		return "Internal Server Error"
	default:
		return "Status"
	}
}
