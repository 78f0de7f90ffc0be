// SPDX-License-Identifier: GPL-3.0-or-later

package promise

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveThenOrder(t *testing.T) {
	t.Run("then before resolve", func(t *testing.T) {
		p := New[int]()
		var got int
		p.Then(func(v int) { got = v })
		p.Resolve(42)
		assert.Equal(t, 42, got)
	})

	t.Run("resolve before then", func(t *testing.T) {
		p := New[int]()
		p.Resolve(7)
		var got int
		p.Then(func(v int) { got = v })
		assert.Equal(t, 7, got)
	})
}

func TestResolveIsIdempotent(t *testing.T) {
	p := New[int]()
	var calls int
	p.Then(func(v int) { calls++ })
	p.Resolve(1)
	p.Resolve(2)
	p.Resolve(3)
	assert.Equal(t, 1, calls)
}

func TestThenCalledTwicePanics(t *testing.T) {
	p := New[int]()
	p.Then(func(int) {})
	assert.Panics(t, func() { p.Then(func(int) {}) })
}

func TestAwait(t *testing.T) {
	t.Run("resolved before await deadline", func(t *testing.T) {
		p := New[string]()
		go p.Resolve("hello")

		v, err := p.Await(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "hello", v)
	})

	t.Run("context cancelled before resolve", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()

		p := New[string]()
		_, err := p.Await(ctx)
		require.Error(t, err)
	})
}

func TestWeakResolveAfterDrop(t *testing.T) {
	p := New[int]()
	w := p.Weak()

	// Dropping the only strong reference should eventually make the weak
	// handle observe a nil promise; force a GC cycle so the test is not
	// flaky on implementations that delay collection.
	p = nil
	runtime.GC()
	runtime.GC()

	// Resolving through the weak handle after the owner is gone must not
	// panic; it is simply a no-op.
	assert.NotPanics(t, func() { w.Resolve(99) })
}

func TestWeakResolveWhileAlive(t *testing.T) {
	p := New[int]()
	w := p.Weak()

	var got int
	p.Then(func(v int) { got = v })
	w.Resolve(5)

	assert.Equal(t, 5, got)
	runtime.KeepAlive(p)
}
