// SPDX-License-Identifier: GPL-3.0-or-later

package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEscapeMapsReservedCharacters(t *testing.T) {
	assert.Equal(t, "&amp;&lt;&gt;&quot;&#39;", Escape(`&<>"'`))
}

func TestContextConcatenatesLeavesInOrder(t *testing.T) {
	c := New()
	c.Write("<html>").Write("body")
	assert.Equal(t, "<html>body", c.String())
}

func TestContextNestPreservesTreeOrder(t *testing.T) {
	c := New()
	c.Write("before-")
	nested := c.Nest()
	nested.Write("nested-a").Write("nested-b")
	c.Write("-after")

	assert.Equal(t, "before-nested-a-nested-b-after", c.String())
}

func TestContextAppendExistingSubtree(t *testing.T) {
	header := New()
	header.WriteEscaped("<Title>")

	page := New()
	page.Append(header)
	page.Write(" body")

	assert.Equal(t, "&lt;Title&gt; body", page.String())
}
