// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import "sync"

type registration struct {
	page  Page
	local any
}

// Registry is the process-wide page table, keyed by "METHOD path" exactly
// as the spec's dynamic-library loader would have kept it keyed by file
// path — Register/Reload here stand in for load_page/unload_page and the
// pre_refresh/refresh rescan (SPEC_FULL.md's "Dynamic-library page
// loading" decision).
type Registry struct {
	mu    sync.RWMutex
	pages map[string]*registration
}

// NewRegistry returns an empty [*Registry].
func NewRegistry() *Registry {
	return &Registry{pages: make(map[string]*registration)}
}

// Register binds page to the (method, path) key, with local as its
// per-registration local context (handed back via Environment.Local).
func (r *Registry) Register(method, path string, page Page, local any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[pageKey(method, path)] = &registration{page: page, local: local}
}

// Lookup returns the page registered for (method, path), if any.
func (r *Registry) Lookup(method, path string) (Page, any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.pages[pageKey(method, path)]
	if !ok {
		return nil, nil, false
	}
	return reg.page, reg.local, true
}

// Reload rebuilds the registry from scratch: loader populates a fresh,
// unshared [*Registry], which then atomically replaces the live table.
//
// Building the replacement table off to the side — rather than clearing
// and repopulating r in place — means a concurrent Lookup never observes
// a half-unloaded table, fixing the use-after-free ordering the spec
// flags for unload_page/name-lookup races.
func (r *Registry) Reload(loader func(fresh *Registry)) {
	fresh := NewRegistry()
	loader(fresh)

	r.mu.Lock()
	r.pages = fresh.pages
	r.mu.Unlock()
}

func pageKey(method, path string) string {
	return method + " " + path
}
