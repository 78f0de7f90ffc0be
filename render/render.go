// SPDX-License-Identifier: GPL-3.0-or-later

package render

import "strings"

// Context is a render-context tree: a sequence of nodes, each either a
// literal string or a nested [*Context]. Finalization concatenates every
// leaf in tree (depth-first, in-order) order.
type Context struct {
	nodes []node
}

type node struct {
	literal string
	child   *Context
}

// New returns an empty render [*Context].
func New() *Context {
	return &Context{}
}

// Write appends a literal string leaf.
func (c *Context) Write(s string) *Context {
	c.nodes = append(c.nodes, node{literal: s})
	return c
}

// WriteEscaped appends an HTML-escaped literal string leaf.
func (c *Context) WriteEscaped(s string) *Context {
	return c.Write(Escape(s))
}

// Nest appends a nested [*Context] and returns it, so a caller can build
// the subtree in place: c.Nest().Write("a").Write("b").
func (c *Context) Nest() *Context {
	child := New()
	c.nodes = append(c.nodes, node{child: child})
	return child
}

// Append appends an already-built [*Context] as a child subtree.
func (c *Context) Append(child *Context) *Context {
	c.nodes = append(c.nodes, node{child: child})
	return c
}

// String finalizes the tree, concatenating every leaf in tree order.
func (c *Context) String() string {
	var b strings.Builder
	c.writeTo(&b)
	return b.String()
}

func (c *Context) writeTo(b *strings.Builder) {
	for _, n := range c.nodes {
		if n.child != nil {
			n.child.writeTo(b)
			continue
		}
		b.WriteString(n.literal)
	}
}

var escapeReplacer = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape applies the render context's HTML-escape mapping: & < > "
// become the named entities &amp; &lt; &gt; &quot;, and ' becomes the
// numeric reference &#39;.
func Escape(s string) string {
	return escapeReplacer.Replace(s)
}
