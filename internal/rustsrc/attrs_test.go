package rustsrc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAttr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want attr
	}{
		{`#[macro_export]`, attr{name: "macro_export"}},
		{`#[doc(hidden)]`, attr{name: "doc", args: "hidden"}},
		{`#[doc = "Hello."]`, attr{name: "doc", value: "Hello.", isSet: true}},
		{`#![doc = r#"Raw "quoted"."#]`, attr{name: "doc", value: `Raw "quoted".`, isSet: true}},
		{`#[path = "sys/unix.rs"]`, attr{name: "path", value: "sys/unix.rs", isSet: true}},
		{`#[cfg( test )]`, attr{name: "cfg", args: "test"}},
		{`#[proc_macro_derive(Builder, attributes(builder))]`, attr{name: "proc_macro_derive", args: "Builder,attributes(builder)"}},
		{`#[doc = include_str!("../README.md")]`, attr{name: "doc"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseAttr(tt.in))
		})
	}
}

func TestAttrPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, parseAttr(`#[doc(hidden)]`).hidesItem())
	assert.True(t, parseAttr(`#[doc(alias = "x", hidden)]`).hidesItem())
	assert.False(t, parseAttr(`#[doc(alias = "hidden")]`).hidesItem())
	assert.False(t, parseAttr(`#[serde(hidden)]`).hidesItem())

	assert.True(t, parseAttr(`#[cfg(test)]`).testOnly())
	assert.False(t, parseAttr(`#[cfg(not(test))]`).testOnly())
	assert.False(t, parseAttr(`#[cfg_attr(test, derive(Debug))]`).testOnly())

	assert.Equal(t, "Builder", parseAttr(`#[proc_macro_derive(Builder, attributes(builder))]`).deriveName())
	assert.Equal(t, "Simple", parseAttr(`#[proc_macro_derive(Simple)]`).deriveName())
}

func TestUnquoteRust(t *testing.T) {
	t.Parallel()

	tests := []struct {
		lit  string
		want string
		ok   bool
	}{
		{`"plain"`, "plain", true},
		{`"tab\there"`, "tab\there", true},
		{`"quote \" and \\ slash"`, `quote " and \ slash`, true},
		{`"\x41\u{1F600}"`, "A\U0001F600", true},
		{"\"one \\\n    two\"", "one two", true},
		{`r"no \n escapes"`, `no \n escapes`, true},
		{`r##"has "# inside"##`, `has "# inside`, true},
		{`"unterminated`, "", false},
		{`ident`, "", false},
		{`r#"mismatched"`, "", false},
	}
	for _, tt := range tests {
		got, ok := unquoteRust(tt.lit)
		assert.Equal(t, tt.ok, ok, tt.lit)
		assert.Equal(t, tt.want, got, tt.lit)
	}
}
