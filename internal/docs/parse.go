package docs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// Parse decodes rustdoc JSON bytes.
func Parse(data []byte) (*RustdocCrate, error) {
	var crate RustdocCrate
	if err := json.Unmarshal(data, &crate); err != nil {
		return nil, fmt.Errorf("unmarshaling rustdoc JSON: %w", err)
	}
	if _, ok := crate.Index[strconv.Itoa(crate.Root)]; !ok {
		return nil, fmt.Errorf("rustdoc JSON has no root module %d", crate.Root)
	}
	return &crate, nil
}

// Name returns the crate's library name, taken from the root module.
func (c *RustdocCrate) Name() string {
	if root, ok := c.Index[strconv.Itoa(c.Root)]; ok && root.Name != nil {
		return *root.Name
	}
	return ""
}

// Version returns the crate version recorded by rustdoc, or "".
func (c *RustdocCrate) Version() string {
	if c.CrateVersion == nil {
		return ""
	}
	return *c.CrateVersion
}

// Modules walks the module tree depth-first from the crate root. Modules that
// are not public, are #[doc(hidden)], or were stripped by rustdoc are not
// documented and are skipped along with their children.
func (c *RustdocCrate) Modules(includeHidden bool) []Module {
	var modules []Module
	seen := make(map[int]bool)
	c.walkModules(c.Root, c.Name(), includeHidden, seen, &modules)
	return modules
}

func (c *RustdocCrate) walkModules(id int, path string, includeHidden bool, seen map[int]bool, modules *[]Module) {
	if seen[id] {
		return
	}
	seen[id] = true

	if summary, ok := c.Paths[strconv.Itoa(id)]; ok && summary.CrateID == 0 && len(summary.Path) > 0 {
		path = strings.Join(summary.Path, "::")
	}
	*modules = append(*modules, Module{ID: id, Path: path})

	for _, childID := range c.moduleItems(id) {
		child, ok := c.Index[strconv.Itoa(childID)]
		if !ok || innerKind(child.Inner) != "module" || child.Name == nil {
			continue
		}
		if !c.documented(&child, includeHidden) || isStripped(&child) {
			continue
		}
		c.walkModules(childID, path+"::"+*child.Name, includeHidden, seen, modules)
	}
}

// Declarations lists the sidebar declarations of a module in source order.
func (c *RustdocCrate) Declarations(moduleID int, includeHidden bool) []sidebar.Declaration {
	var decls []sidebar.Declaration
	visited := map[int]bool{moduleID: true}
	c.collectDeclarations(moduleID, includeHidden, visited, &decls)
	return decls
}

func (c *RustdocCrate) collectDeclarations(moduleID int, includeHidden bool, visited map[int]bool, decls *[]sidebar.Declaration) {
	for _, childID := range c.moduleItems(moduleID) {
		item, ok := c.Index[strconv.Itoa(childID)]
		if !ok {
			continue
		}
		switch innerKind(item.Inner) {
		case "use", "import":
			if !isPublic(&item) {
				continue
			}
			c.resolveUse(&item, includeHidden, visited, decls)
			continue
		}

		if item.Name == nil || !c.documented(&item, includeHidden) {
			continue
		}
		kind, ok := itemKind(&item)
		if !ok {
			continue
		}
		*decls = append(*decls, sidebar.Declaration{Kind: kind, Name: *item.Name, Docs: docsOf(&item)})
	}
}

// BuildIndices builds the sidebar index of every documented module, keyed by
// module path.
func (c *RustdocCrate) BuildIndices(opts BuildOptions) map[string]sidebar.Index {
	var sidebarOpts []sidebar.Option
	if opts.SortEntries {
		sidebarOpts = append(sidebarOpts, sidebar.SortEntries())
	}

	indices := make(map[string]sidebar.Index)
	for _, m := range c.Modules(opts.IncludeHidden) {
		indices[m.Path] = sidebar.Build(c.Declarations(m.ID, opts.IncludeHidden), sidebarOpts...)
	}
	return indices
}

// FindModule returns the module with the given path.
func (c *RustdocCrate) FindModule(path string, includeHidden bool) (Module, bool) {
	for _, m := range c.Modules(includeHidden) {
		if m.Path == path {
			return m, true
		}
	}
	return Module{}, false
}

// FindItem resolves a local item path (e.g. "ra_flycheck::Flycheck") to its
// index key.
func (c *RustdocCrate) FindItem(path string) (string, bool) {
	for id, summary := range c.Paths {
		if summary.CrateID != 0 || strings.Join(summary.Path, "::") != path {
			continue
		}
		if _, ok := c.Index[id]; ok {
			return id, true
		}
	}
	return "", false
}

func (c *RustdocCrate) moduleItems(moduleID int) []int {
	item, ok := c.Index[strconv.Itoa(moduleID)]
	if !ok {
		return nil
	}
	data := unwrapInner(item.Inner, "module")
	if data == nil {
		return nil
	}
	var mod struct {
		Items []int `json:"items"`
	}
	if err := json.Unmarshal(data, &mod); err != nil {
		return nil
	}
	return mod.Items
}

func (c *RustdocCrate) documented(item *RustdocItem, includeHidden bool) bool {
	if includeHidden {
		return true
	}
	return isPublic(item) && !isHidden(item)
}

// itemKind maps a rustdoc item to its sidebar kind. Items that never appear
// in a module sidebar (impls, fields, variants, associated items) report false.
func itemKind(item *RustdocItem) (sidebar.Kind, bool) {
	switch innerKind(item.Inner) {
	case "module":
		return sidebar.KindModule, true
	case "extern_crate":
		return sidebar.KindExternCrate, true
	case "struct":
		return sidebar.KindStruct, true
	case "enum":
		return sidebar.KindEnum, true
	case "union":
		return sidebar.KindUnion, true
	case "function":
		return sidebar.KindFn, true
	case "trait":
		return sidebar.KindTrait, true
	case "trait_alias":
		return sidebar.KindTraitAlias, true
	case "type_alias", "typedef":
		return sidebar.KindTypeAlias, true
	case "constant":
		return sidebar.KindConstant, true
	case "static":
		return sidebar.KindStatic, true
	case "macro":
		return sidebar.KindMacro, true
	case "primitive":
		return sidebar.KindPrimitive, true
	case "proc_macro":
		var pm struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(unwrapInner(item.Inner, "proc_macro"), &pm); err != nil {
			return "", false
		}
		switch pm.Kind {
		case "attr":
			return sidebar.KindAttr, true
		case "derive":
			return sidebar.KindDerive, true
		default:
			return sidebar.KindMacro, true
		}
	default:
		return "", false
	}
}

func docsOf(item *RustdocItem) string {
	if item.Docs == nil {
		return ""
	}
	return *item.Docs
}

func isPublic(item *RustdocItem) bool {
	return len(item.Visibility) == 0 || bytes.Equal(bytes.TrimSpace(item.Visibility), []byte(`"public"`))
}

func isHidden(item *RustdocItem) bool {
	for _, attr := range item.Attrs {
		if bytes.Contains(attr, []byte("doc(hidden)")) {
			return true
		}
	}
	return false
}

func isStripped(item *RustdocItem) bool {
	var mod struct {
		IsStripped bool `json:"is_stripped"`
	}
	if data := unwrapInner(item.Inner, "module"); data != nil {
		json.Unmarshal(data, &mod)
	}
	return mod.IsStripped
}

// innerKind extracts the kind from the inner JSON's single key.
func innerKind(inner json.RawMessage) string {
	if len(inner) == 0 {
		return "unknown"
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(inner, &outer); err != nil {
		return "unknown"
	}
	for k := range outer {
		return k
	}
	return "unknown"
}

// unwrapInner extracts the inner data for a given kind from a rustdoc Item's Inner field.
// Inner is shaped like {"struct": {...}} or {"enum": {...}}.
func unwrapInner(inner json.RawMessage, kind string) json.RawMessage {
	if len(inner) == 0 {
		return nil
	}
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(inner, &outer); err != nil {
		return nil
	}
	data, ok := outer[kind]
	if !ok {
		return nil
	}
	return data
}
