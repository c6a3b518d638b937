package markdown

import (
	"strings"
	"testing"
)

func TestAddFrontMatter(t *testing.T) {
	t.Parallel()

	t.Run("basic", func(t *testing.T) {
		got := AddFrontMatter("# Doc", map[string]string{"crate": "ra_flycheck"})
		if !strings.HasPrefix(got, "---\n") {
			t.Error("missing opening ---")
		}
		if !strings.Contains(got, "crate: ra_flycheck\n") {
			t.Errorf("missing crate entry: %q", got)
		}
		if !strings.HasSuffix(got, "---\n\n# Doc") {
			t.Error("original content missing")
		}
	})

	t.Run("sorted_keys", func(t *testing.T) {
		got := AddFrontMatter("body", map[string]string{
			"version": "0.1.0",
			"crate":   "serde",
		})
		if strings.Index(got, "crate") > strings.Index(got, "version") {
			t.Error("keys not sorted alphabetically")
		}
	})

	t.Run("quotes_special_values", func(t *testing.T) {
		got := AddFrontMatter("body", map[string]string{"module": "serde::de"})
		if !strings.Contains(got, `module: "serde::de"`) {
			t.Errorf("expected quoted value, got %q", got)
		}
	})

	t.Run("skips_empty_values", func(t *testing.T) {
		got := AddFrontMatter("body", map[string]string{"version": ""})
		if got != "body" {
			t.Errorf("expected unchanged, got %q", got)
		}
	})

	t.Run("empty_map", func(t *testing.T) {
		got := AddFrontMatter("body", nil)
		if got != "body" {
			t.Errorf("expected unchanged for empty map, got %q", got)
		}
	})
}
