package rustsrc

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// fileSyntax is what one source file (or inline module body) declares. It
// depends only on the file contents, so it is what the cache stores.
type fileSyntax struct {
	InnerDocs string       `msgpack:"inner_docs"`
	Items     []syntaxItem `msgpack:"items"`
}

// syntaxItem is a public declaration, an exported macro_rules! macro or a
// private module that may hold one.
type syntaxItem struct {
	Kind        sidebar.Kind `msgpack:"kind"`
	Name        string       `msgpack:"name"`
	Docs        string       `msgpack:"docs"`
	Hidden      bool         `msgpack:"hidden"`
	MacroExport bool         `msgpack:"macro_export"`
	Private     bool         `msgpack:"private"` // non-pub mod, walked only for exported macros
	PathAttr    string       `msgpack:"path_attr,omitempty"`
	Body        *fileSyntax  `msgpack:"body,omitempty"` // inline `mod foo { ... }`
}

// parseSource parses Rust source into its declarations.
func parseSource(ctx context.Context, source []byte) (*fileSyntax, error) {
	parser := sitter.NewParser()
	parser.SetLanguage(rust.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	return collectItems(tree.RootNode(), source), nil
}

// collectItems walks the direct children of a source_file or declaration_list.
// Doc comments and attributes are siblings that precede the item they belong to.
func collectItems(container *sitter.Node, source []byte) *fileSyntax {
	syn := &fileSyntax{}
	var inner, outer docBuilder
	var attrs []attr

	for i := 0; i < int(container.NamedChildCount()); i++ {
		node := container.NamedChild(i)
		if node == nil {
			continue
		}

		switch node.Type() {
		case "line_comment", "block_comment":
			kind, text := classifyComment(node.Content(source))
			switch kind {
			case outerDoc:
				outer.add(text)
			case innerDoc:
				inner.add(text)
			}
			continue
		case "inner_attribute_item":
			if a := parseAttr(node.Content(source)); a.name == "doc" && a.isSet {
				inner.add(a.value)
			}
			continue
		case "attribute_item":
			a := parseAttr(node.Content(source))
			if a.name == "doc" && a.isSet {
				outer.add(a.value)
			} else {
				attrs = append(attrs, a)
			}
			continue
		}

		items := declare(node, source, outer.String(), attrs)
		syn.Items = append(syn.Items, items...)
		outer.reset()
		attrs = attrs[:0]
	}

	syn.InnerDocs = inner.String()
	return syn
}

// declare turns one item node into zero or more declarations.
func declare(node *sitter.Node, source []byte, docs string, attrs []attr) []syntaxItem {
	item := syntaxItem{Docs: docs}
	var macroExport, procMacro, procAttr bool
	var derive string
	for _, a := range attrs {
		switch {
		case a.testOnly():
			return nil
		case a.hidesItem():
			item.Hidden = true
		case a.name == "macro_export":
			macroExport = true
		case a.name == "path" && a.isSet:
			item.PathAttr = a.value
		case a.name == "proc_macro":
			procMacro = true
		case a.name == "proc_macro_attribute":
			procAttr = true
		case a.name == "proc_macro_derive":
			derive = a.deriveName()
		}
	}

	// macro_rules! has no visibility; #[macro_export] is what makes it public.
	if node.Type() == "macro_definition" {
		if !macroExport {
			return nil
		}
		item.Kind = sidebar.KindMacro
		item.Name = fieldText(node, "name", source)
		item.MacroExport = true
		return nonEmpty(item)
	}

	// extern "C" { pub fn ...; } lists its items in the enclosing module.
	if node.Type() == "foreign_mod_item" {
		body := node.ChildByFieldName("body")
		if body == nil {
			return nil
		}
		return collectItems(body, source).Items
	}

	if !isPublic(node, source) {
		if node.Type() != "mod_item" {
			return nil
		}
		item.Private = true
	}
	item.Name = fieldText(node, "name", source)

	switch node.Type() {
	case "function_item", "function_signature_item":
		switch {
		case derive != "":
			item.Kind, item.Name = sidebar.KindDerive, derive
		case procAttr:
			item.Kind = sidebar.KindAttr
		case procMacro:
			item.Kind = sidebar.KindMacro
		default:
			item.Kind = sidebar.KindFn
		}
	case "struct_item":
		item.Kind = sidebar.KindStruct
	case "enum_item":
		item.Kind = sidebar.KindEnum
	case "union_item":
		item.Kind = sidebar.KindUnion
	case "trait_item":
		item.Kind = sidebar.KindTrait
	case "type_item":
		item.Kind = sidebar.KindTypeAlias
	case "const_item":
		item.Kind = sidebar.KindConstant
	case "static_item":
		item.Kind = sidebar.KindStatic
	case "extern_crate_declaration":
		item.Kind = sidebar.KindExternCrate
		if alias := fieldText(node, "alias", source); alias != "" {
			item.Name = alias
		}
	case "mod_item":
		item.Kind = sidebar.KindModule
		if body := node.ChildByFieldName("body"); body != nil {
			item.Body = collectItems(body, source)
		}
	default:
		return nil
	}
	return nonEmpty(item)
}

func nonEmpty(item syntaxItem) []syntaxItem {
	if item.Name == "" {
		return nil
	}
	return []syntaxItem{item}
}

// isPublic reports a bare `pub`; pub(crate), pub(super) and pub(in ..) items
// are not part of the public API.
func isPublic(node *sitter.Node, source []byte) bool {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child != nil && child.Type() == "visibility_modifier" {
			return strings.Join(strings.Fields(child.Content(source)), "") == "pub"
		}
	}
	return false
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	child := node.ChildByFieldName(field)
	if child == nil {
		return ""
	}
	return strings.TrimPrefix(child.Content(source), "r#")
}
