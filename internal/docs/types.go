package docs

import "encoding/json"

// RustdocCrate is the top-level structure of rustdoc JSON output.
type RustdocCrate struct {
	Root           int                       `json:"root"`
	CrateVersion   *string                   `json:"crate_version"`
	Index          map[string]RustdocItem    `json:"index"`
	Paths          map[string]RustdocSummary `json:"paths"`
	ExternalCrates map[string]ExternalCrate  `json:"external_crates"`
	FormatVersion  int                       `json:"format_version"`
}

// ExternalCrate identifies a dependency crate by name.
type ExternalCrate struct {
	Name        string `json:"name"`
	HTMLRootURL string `json:"html_root_url"`
}

// RustdocItem is a single item in the rustdoc index.
//
// Visibility is either a bare string ("public", "default", "crate") or a
// {"restricted": ...} object, so it is kept raw. Attrs changed shape across
// format versions and is only scanned for markers.
type RustdocItem struct {
	ID         int               `json:"id"`
	CrateID    int               `json:"crate_id"`
	Name       *string           `json:"name"`
	Docs       *string           `json:"docs"`
	Visibility json.RawMessage   `json:"visibility"`
	Attrs      []json.RawMessage `json:"attrs"`
	Inner      json.RawMessage   `json:"inner"`
}

// RustdocSummary provides the path and kind for an item.
type RustdocSummary struct {
	CrateID int      `json:"crate_id"`
	Path    []string `json:"path"`
	Kind    string   `json:"kind"`
}

// Module is a documented module of the crate.
type Module struct {
	ID   int
	Path string // e.g. "ra_flycheck" or "serde::de::value"
}

// BuildOptions controls which declarations end up in a module index.
type BuildOptions struct {
	IncludeHidden bool
	SortEntries   bool
}
