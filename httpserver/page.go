// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import (
	"context"

	"github.com/90s-run/reactor/render"
	"github.com/90s-run/reactor/workerctx"
)

// Environment is the per-request context handed to a page's Render call:
// the parsed request, the global (process-wide) context, and the page's
// own local (per-registration) context.
type Environment struct {
	Method string
	Path   string
	Query  map[string]string
	Header map[string]string
	Body   []byte

	// Global is the process-wide store shared by every page.
	Global *workerctx.Store

	// Local is the value passed to [*Registry.Register] for this page,
	// standing in for the per-library local context a dynamic-library
	// page would construct via initialize/release.
	Local any
}

// StatusError is a page's explicit "render as this HTTP status" result;
// returning one selects the error page for that status instead of the
// page's own output (§4.6 step 5).
type StatusError struct {
	Status int
}

func (e *StatusError) Error() string {
	return "httpserver: page returned status error"
}

// Page renders a response body into a render context, or fails with
// either a [*StatusError] (a deliberate error response) or any other
// error (treated as an internal server error).
type Page interface {
	Render(ctx context.Context, env *Environment) (*render.Context, error)
}

// PageFunc adapts a plain function to the [Page] interface.
type PageFunc func(ctx context.Context, env *Environment) (*render.Context, error)

func (f PageFunc) Render(ctx context.Context, env *Environment) (*render.Context, error) {
	return f(ctx, env)
}
