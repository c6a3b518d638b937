package rustsrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyComment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		kind commentKind
		text string
	}{
		{"/// Outer.\n", outerDoc, " Outer."},
		{"///", outerDoc, ""},
		{"//! Inner.", innerDoc, " Inner."},
		{"//// Separator", plainComment, ""},
		{"// plain", plainComment, ""},
		{"/** Block. */", outerDoc, " Block. "},
		{"/*! Inner block. */", innerDoc, " Inner block. "},
		{"/*** banner ***/", plainComment, ""},
		{"/**/", plainComment, ""},
		{"/* plain */", plainComment, ""},
		{"/**\n * First.\n * Second.\n */", outerDoc, " First.\n Second."},
	}
	for _, tt := range tests {
		kind, text := classifyComment(tt.in)
		assert.Equal(t, tt.kind, kind, tt.in)
		assert.Equal(t, tt.text, text, tt.in)
	}
}

func TestDocBuilder(t *testing.T) {
	t.Parallel()

	var d docBuilder
	assert.True(t, d.empty())
	assert.Equal(t, "", d.String())

	d.add(" Summary line.")
	d.add("")
	d.add("     indented code")
	d.add(" Trailing.   ")
	assert.False(t, d.empty())
	assert.Equal(t, "Summary line.\n\n    indented code\nTrailing.", d.String())

	d.reset()
	assert.True(t, d.empty())

	d.add("No leading space.\nSecond line.")
	assert.Equal(t, "No leading space.\nSecond line.", d.String())
}
