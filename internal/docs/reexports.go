package docs

import (
	"encoding/json"
	"strconv"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// useItem covers both the current "use" shape and the older "import" one.
type useItem struct {
	Name   string `json:"name"`
	ID     *int   `json:"id"`
	IsGlob bool   `json:"is_glob"`
	Glob   bool   `json:"glob"`
}

// resolveUse adds the declarations a `pub use` contributes to a module's
// sidebar. A single re-export of an item rustdoc inlined is listed under the
// target's kind with the re-exported name. A glob re-export of a module
// rustdoc does not document on its own (stripped or private) inlines that
// module's declarations. Anything else shows up only in the page's
// "Re-exports" section and is skipped.
func (c *RustdocCrate) resolveUse(item *RustdocItem, includeHidden bool, visited map[int]bool, decls *[]sidebar.Declaration) {
	data := unwrapInner(item.Inner, "use")
	if data == nil {
		data = unwrapInner(item.Inner, "import")
	}
	if data == nil {
		return
	}

	var use useItem
	if err := json.Unmarshal(data, &use); err != nil || use.ID == nil {
		return
	}

	target, ok := c.Index[strconv.Itoa(*use.ID)]
	if !ok {
		return
	}

	if use.IsGlob || use.Glob {
		if innerKind(target.Inner) != "module" || visited[*use.ID] {
			return
		}
		if isPublic(&target) && !isStripped(&target) {
			return
		}
		visited[*use.ID] = true
		c.collectDeclarations(*use.ID, includeHidden, visited, decls)
		return
	}

	if !includeHidden && (isHidden(item) || isHidden(&target)) {
		return
	}
	kind, ok := itemKind(&target)
	if !ok || use.Name == "" {
		return
	}

	// Doc comments on the `pub use` itself are prepended to the target's.
	docs := docsOf(&target)
	if own := docsOf(item); own != "" {
		if docs != "" {
			docs = own + "\n\n" + docs
		} else {
			docs = own
		}
	}
	*decls = append(*decls, sidebar.Declaration{Kind: kind, Name: use.Name, Docs: docs})
}
