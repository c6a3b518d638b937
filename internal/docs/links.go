package docs

import (
	"net/url"
	"strings"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// DefaultBaseURL is where crate documentation is published.
const DefaultBaseURL = "https://docs.rs"

// Location identifies a module, or an item inside a module, on docs.rs.
type Location struct {
	Crate   string
	Version string
	Module  string // "::"-joined, starts with the crate's lib name
	Kind    sidebar.Kind
	Name    string
}

// DocsRsURL builds the docs.rs page URL of a module, or of an item in it when
// name is set. An empty version means "latest".
func DocsRsURL(base, crate, version, module string, kind sidebar.Kind, name string) string {
	if base == "" {
		base = DefaultBaseURL
	}
	if version == "" {
		version = "latest"
	}
	if module == "" {
		module = strings.ReplaceAll(crate, "-", "_")
	}

	var b strings.Builder
	b.WriteString(strings.TrimSuffix(base, "/"))
	b.WriteString("/" + crate + "/" + version + "/")
	b.WriteString(strings.ReplaceAll(module, "::", "/") + "/")
	if name == "" {
		b.WriteString("index.html")
	} else {
		b.WriteString(sidebar.Href(kind, name))
	}
	return b.String()
}

// ParseDocsRsURL splits a docs.rs documentation URL into its location. Crate
// info pages (/crate/...) and URLs without a module path report false. The
// host is not checked, so mirrors with the same layout work too.
func ParseDocsRsURL(rawURL string) (Location, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Location{}, false
	}

	path := strings.Trim(u.Path, "/")
	if strings.HasPrefix(path, "crate/") {
		return Location{}, false
	}

	parts := strings.SplitN(path, "/", 3)
	if len(parts) < 3 {
		return Location{}, false
	}
	loc := Location{Crate: parts[0], Version: parts[1]}

	segments := strings.Split(parts[2], "/")
	for len(segments) > 0 && segments[len(segments)-1] == "" {
		segments = segments[:len(segments)-1]
	}
	if len(segments) == 0 {
		return Location{}, false
	}

	// index.html is the module itself; kind.Name.html is an item page.
	last := segments[len(segments)-1]
	if strings.HasSuffix(last, ".html") {
		segments = segments[:len(segments)-1]
		if last != "index.html" {
			base := strings.TrimSuffix(last, ".html")
			kind, name, ok := strings.Cut(base, ".")
			if !ok {
				return Location{}, false
			}
			loc.Kind = sidebar.Kind(kind)
			loc.Name = name
		}
	}
	if len(segments) == 0 {
		return Location{}, false
	}

	loc.Module = strings.Join(segments, "::")
	return loc, true
}

// ItemPath is the full Rust path of the location's item, or the module path
// when it names a module.
func (l Location) ItemPath() string {
	if l.Name == "" {
		return l.Module
	}
	return l.Module + "::" + l.Name
}
