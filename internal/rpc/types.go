package rpc

import "github.com/jcdickinson/rsidebar/internal/sidebar"

// AddCratesRequest is the request body for POST /add-crates.
type AddCratesRequest struct {
	Crates []CrateSpec `json:"crates"`
}

type CrateSpec struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type CrateResult struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Modules int    `json:"modules"`
	Changed int    `json:"changed"` // modules whose index differed from the stored one
	Error   string `json:"error,omitempty"`
}

// ProgressLine is a single line of NDJSON streamed from the add-crates endpoint.
type ProgressLine struct {
	Type    string       `json:"type"` // "progress" or "result"
	Message string       `json:"message,omitempty"`
	Result  *CrateResult `json:"result,omitempty"`
}

// Sidebar output formats.
const (
	FormatJS       = "js"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
)

// GetSidebarRequest is the request body for POST /get-sidebar. Module is a
// "::"-joined path and defaults to the crate root. When Item is set the
// sections of that item's page are returned instead of the module index.
type GetSidebarRequest struct {
	Crate   string `json:"crate"`
	Version string `json:"version,omitempty"`
	Module  string `json:"module,omitempty"`
	Item    string `json:"item,omitempty"`
	Format  string `json:"format,omitempty"`
}

// GetSidebarResponse is the response body for POST /get-sidebar. Content holds
// the rendered sidebar-items.js or markdown; Index is set for the json format.
type GetSidebarResponse struct {
	Crate    string            `json:"crate"`
	Version  string            `json:"version"`
	Module   string            `json:"module"`
	Content  string            `json:"content,omitempty"`
	Index    sidebar.Index     `json:"index,omitempty"`
	Sections []sidebar.Section `json:"sections,omitempty"`
}

// SearchItemsRequest is the request body for POST /search-items.
type SearchItemsRequest struct {
	Query  string         `json:"query"`
	Crates []string       `json:"crates,omitempty"`
	Kinds  []sidebar.Kind `json:"kinds,omitempty"`
	Limit  int            `json:"limit,omitempty"`
}

// SearchItemsResponse is the response body for POST /search-items.
type SearchItemsResponse struct {
	Results []ItemResult `json:"results"`
}

type ItemResult struct {
	URI     string       `json:"uri"`
	URL     string       `json:"url"`
	Crate   string       `json:"crate"`
	Version string       `json:"version"`
	Module  string       `json:"module"`
	Kind    sidebar.Kind `json:"kind"`
	Name    string       `json:"name"`
	Summary string       `json:"summary"`
}

// StatusResponse is the response body for GET /status.
type StatusResponse struct {
	Crates []CrateStatus `json:"crates"`
}

type CrateStatus struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	Processed bool   `json:"processed"`
	Modules   int    `json:"modules"`

	// Set only when GET /status is called with modules=1.
	ModulePaths []string `json:"module_paths,omitempty"`
}

// ClearCacheRequest is the request body for POST /clear-cache. The version
// cache is always cleared; All also drops stored crates and cached files.
type ClearCacheRequest struct {
	All bool `json:"all,omitempty"`
}

// SidebarURI is the MCP resource URI of a module sidebar.
func SidebarURI(crate, version, module string) string {
	return "sidebar://" + crate + "/" + version + "/" + module
}
