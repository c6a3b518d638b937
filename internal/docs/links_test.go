package docs

import (
	"testing"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

func TestParseDocsRsURL(t *testing.T) {
	tests := []struct {
		url  string
		want Location
		ok   bool
	}{
		// Item URLs
		{
			"https://docs.rs/ra_flycheck/0.1.0/ra_flycheck/struct.Flycheck.html",
			Location{Crate: "ra_flycheck", Version: "0.1.0", Module: "ra_flycheck", Kind: sidebar.KindStruct, Name: "Flycheck"},
			true,
		},
		{
			"https://docs.rs/serde/latest/serde/de/trait.Deserialize.html",
			Location{Crate: "serde", Version: "latest", Module: "serde::de", Kind: sidebar.KindTrait, Name: "Deserialize"},
			true,
		},
		// Fragment ignored
		{
			"https://docs.rs/serde/latest/serde/ser/trait.Serialize.html#method.serialize",
			Location{Crate: "serde", Version: "latest", Module: "serde::ser", Kind: sidebar.KindTrait, Name: "Serialize"},
			true,
		},
		// Module via index.html
		{
			"https://docs.rs/serde/latest/serde/ser/index.html",
			Location{Crate: "serde", Version: "latest", Module: "serde::ser"},
			true,
		},
		// Module via trailing slash
		{
			"https://docs.rs/tokio/1.40.0/tokio/sync/",
			Location{Crate: "tokio", Version: "1.40.0", Module: "tokio::sync"},
			true,
		},
		// Crate root without trailing slash
		{
			"https://docs.rs/serde/latest/serde",
			Location{Crate: "serde", Version: "latest", Module: "serde"},
			true,
		},
		// Not convertible
		{"https://docs.rs/crate/serde/latest", Location{}, false},
		{"https://docs.rs/serde/latest", Location{}, false},
		{"https://docs.rs/serde", Location{}, false},
		{"https://docs.rs/serde/latest/serde/nodot.html", Location{}, false},
	}

	for _, tt := range tests {
		got, ok := ParseDocsRsURL(tt.url)
		if ok != tt.ok {
			t.Errorf("ParseDocsRsURL(%q) ok = %v, want %v", tt.url, ok, tt.ok)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDocsRsURL(%q) = %+v, want %+v", tt.url, got, tt.want)
		}
	}
}

func TestDocsRsURL(t *testing.T) {
	tests := []struct {
		name                   string
		crate, version, module string
		kind                   sidebar.Kind
		item                   string
		want                   string
	}{
		{"crate_root", "ra_flycheck", "0.1.0", "", "", "", "https://docs.rs/ra_flycheck/0.1.0/ra_flycheck/index.html"},
		{"hyphenated_crate", "tracing-core", "", "", "", "", "https://docs.rs/tracing-core/latest/tracing_core/index.html"},
		{"item", "ra_flycheck", "0.1.0", "ra_flycheck", sidebar.KindEnum, "CheckTask", "https://docs.rs/ra_flycheck/0.1.0/ra_flycheck/enum.CheckTask.html"},
		{"nested_module", "serde", "latest", "serde::de::value", sidebar.KindStruct, "Error", "https://docs.rs/serde/latest/serde/de/value/struct.Error.html"},
		{"submodule_entry", "serde", "latest", "serde", sidebar.KindModule, "de", "https://docs.rs/serde/latest/serde/de/index.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DocsRsURL("", tt.crate, tt.version, tt.module, tt.kind, tt.item)
			if got != tt.want {
				t.Errorf("DocsRsURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDocsRsURL_RoundTrip(t *testing.T) {
	loc := Location{Crate: "serde", Version: "1.0.210", Module: "serde::ser", Kind: sidebar.KindFn, Name: "impossible"}
	raw := DocsRsURL("https://docs.rs/", loc.Crate, loc.Version, loc.Module, loc.Kind, loc.Name)

	got, ok := ParseDocsRsURL(raw)
	if !ok {
		t.Fatalf("ParseDocsRsURL(%q) failed", raw)
	}
	if got != loc {
		t.Errorf("round trip = %+v, want %+v", got, loc)
	}
	if got.ItemPath() != "serde::ser::impossible" {
		t.Errorf("ItemPath() = %q", got.ItemPath())
	}
}
