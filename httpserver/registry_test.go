// SPDX-License-Identifier: GPL-3.0-or-later

package httpserver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/90s-run/reactor/render"
)

func stubPage(text string) Page {
	return PageFunc(func(ctx context.Context, env *Environment) (*render.Context, error) {
		return render.New().Write(text), nil
	})
}

func TestRegistryRegisterAndLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/home", stubPage("home"), "local-ctx")

	page, local, ok := r.Lookup("GET", "/home")
	require.True(t, ok)
	assert.Equal(t, "local-ctx", local)

	out, err := page.Render(context.Background(), &Environment{})
	require.NoError(t, err)
	assert.Equal(t, "home", out.String())
}

func TestRegistryLookupMissReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, _, ok := r.Lookup("GET", "/nope")
	assert.False(t, ok)
}

func TestRegistryReloadAtomicallyReplacesTable(t *testing.T) {
	r := NewRegistry()
	r.Register("GET", "/old", stubPage("old"), nil)

	r.Reload(func(fresh *Registry) {
		fresh.Register("GET", "/new", stubPage("new"), nil)
	})

	_, _, oldOK := r.Lookup("GET", "/old")
	assert.False(t, oldOK)

	page, _, newOK := r.Lookup("GET", "/new")
	require.True(t, newOK)
	out, _ := page.Render(context.Background(), &Environment{})
	assert.Equal(t, "new", out.String())
}
