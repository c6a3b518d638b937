package sidebar

// Kind is the category key of a sidebar bucket, using rustdoc's short names.
type Kind string

const (
	KindModule      Kind = "mod"
	KindExternCrate Kind = "externcrate"
	KindMacro       Kind = "macro"
	KindStruct      Kind = "struct"
	KindEnum        Kind = "enum"
	KindUnion       Kind = "union"
	KindConstant    Kind = "constant"
	KindStatic      Kind = "static"
	KindTrait       Kind = "trait"
	KindTraitAlias  Kind = "traitalias"
	KindFn          Kind = "fn"
	KindTypeAlias   Kind = "type"
	KindPrimitive   Kind = "primitive"
	KindKeyword     Kind = "keyword"
	KindAttr        Kind = "attr"
	KindDerive      Kind = "derive"
)

// displayOrder mirrors the section order of a rustdoc module page.
var displayOrder = []Kind{
	KindExternCrate,
	KindModule,
	KindMacro,
	KindStruct,
	KindEnum,
	KindUnion,
	KindConstant,
	KindStatic,
	KindTrait,
	KindTraitAlias,
	KindFn,
	KindTypeAlias,
	KindAttr,
	KindDerive,
	KindPrimitive,
	KindKeyword,
}

var kindTitles = map[Kind]string{
	KindModule:      "Modules",
	KindExternCrate: "Crates",
	KindMacro:       "Macros",
	KindStruct:      "Structs",
	KindEnum:        "Enums",
	KindUnion:       "Unions",
	KindConstant:    "Constants",
	KindStatic:      "Statics",
	KindTrait:       "Traits",
	KindTraitAlias:  "Trait Aliases",
	KindFn:          "Functions",
	KindTypeAlias:   "Type Definitions",
	KindPrimitive:   "Primitive Types",
	KindKeyword:     "Keywords",
	KindAttr:        "Attribute Macros",
	KindDerive:      "Derive Macros",
}

// Valid reports whether k is one of the known sidebar kinds.
func (k Kind) Valid() bool {
	_, ok := kindTitles[k]
	return ok
}

// Title returns the heading rustdoc uses for the kind's section.
func (k Kind) Title() string {
	if t, ok := kindTitles[k]; ok {
		return t
	}
	return string(k)
}

// rank orders kinds for display. Unknown kinds sort last.
func (k Kind) rank() int {
	for i, d := range displayOrder {
		if d == k {
			return i
		}
	}
	return len(displayOrder)
}

// Href returns the page a sidebar entry links to, relative to its module.
func Href(kind Kind, name string) string {
	if kind == KindModule {
		return name + "/index.html"
	}
	return string(kind) + "." + name + ".html"
}
