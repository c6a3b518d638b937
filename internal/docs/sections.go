package docs

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// Section anchors match the ids rustdoc gives the corresponding page headings.
const (
	AnchorFields          = "fields"
	AnchorVariants        = "variants"
	AnchorImplementations = "implementations"
	AnchorTraitImpls      = "trait-implementations"
	AnchorRequiredMethods = "required-methods"
	AnchorProvidedMethods = "provided-methods"
	AnchorImplementors    = "implementors"
)

// ItemSections builds the page sidebar of a struct, enum, union or trait: the
// names listed under Fields, Variants, Methods and so on. Other kinds have no
// page sidebar and return nil.
func (c *RustdocCrate) ItemSections(itemID string) []sidebar.Section {
	item, ok := c.Index[itemID]
	if !ok {
		return nil
	}

	kind := innerKind(item.Inner)
	inner := unwrapInner(item.Inner, kind)
	if inner == nil {
		return nil
	}

	var sections []sidebar.Section
	add := func(s *sidebar.Section) {
		if s != nil && len(s.Items) > 0 {
			sections = append(sections, *s)
		}
	}

	switch kind {
	case "struct":
		add(c.fieldsSection(inner))
		c.implSections(inner, add)
	case "union":
		add(c.unionFieldsSection(inner))
		c.implSections(inner, add)
	case "enum":
		add(c.variantsSection(inner))
		c.implSections(inner, add)
	case "trait":
		required, provided := c.traitMethodSections(inner)
		add(required)
		add(provided)
		add(c.implementorsSection(inner))
	default:
		return nil
	}
	return sections
}

// fieldsSection lists the named fields of a plain struct.
func (c *RustdocCrate) fieldsSection(structData json.RawMessage) *sidebar.Section {
	var s struct {
		Kind json.RawMessage `json:"kind"`
	}
	if err := json.Unmarshal(structData, &s); err != nil {
		return nil
	}

	// StructKind::Plain has fields; Tuple and Unit don't have named fields worth listing.
	var kind map[string]json.RawMessage
	if err := json.Unmarshal(s.Kind, &kind); err != nil {
		return nil
	}
	plainData, ok := kind["plain"]
	if !ok {
		return nil
	}

	var plain struct {
		Fields []int `json:"fields"`
	}
	if err := json.Unmarshal(plainData, &plain); err != nil {
		return nil
	}
	return &sidebar.Section{Title: "Fields", Anchor: AnchorFields, Items: c.names(plain.Fields)}
}

func (c *RustdocCrate) unionFieldsSection(unionData json.RawMessage) *sidebar.Section {
	var u struct {
		Fields []int `json:"fields"`
	}
	if err := json.Unmarshal(unionData, &u); err != nil {
		return nil
	}
	return &sidebar.Section{Title: "Fields", Anchor: AnchorFields, Items: c.names(u.Fields)}
}

func (c *RustdocCrate) variantsSection(enumData json.RawMessage) *sidebar.Section {
	var e struct {
		Variants []int `json:"variants"`
	}
	if err := json.Unmarshal(enumData, &e); err != nil {
		return nil
	}
	return &sidebar.Section{Title: "Variants", Anchor: AnchorVariants, Items: c.names(e.Variants)}
}

// implSections splits a type's impl blocks into inherent methods and the
// traits it implements.
func (c *RustdocCrate) implSections(typeData json.RawMessage, add func(*sidebar.Section)) {
	var t struct {
		Impls []int `json:"impls"`
	}
	if err := json.Unmarshal(typeData, &t); err != nil || len(t.Impls) == 0 {
		return
	}

	methods := &sidebar.Section{Title: "Methods", Anchor: AnchorImplementations}
	traits := &sidebar.Section{Title: "Trait Implementations", Anchor: AnchorTraitImpls}
	seenTraits := make(map[string]bool)

	for _, implID := range t.Impls {
		implItem, ok := c.Index[strconv.Itoa(implID)]
		if !ok {
			continue
		}
		implInner := unwrapInner(implItem.Inner, "impl")
		if implInner == nil {
			continue
		}

		var impl struct {
			Trait       *json.RawMessage `json:"trait"`
			Items       []int            `json:"items"`
			IsSynthetic bool             `json:"is_synthetic"`
			BlanketImpl json.RawMessage  `json:"blanket_impl"`
		}
		if err := json.Unmarshal(implInner, &impl); err != nil {
			continue
		}
		// Auto and blanket impls live in their own page sections.
		if impl.IsSynthetic || (len(impl.BlanketImpl) > 0 && string(impl.BlanketImpl) != "null") {
			continue
		}

		if impl.Trait == nil || string(*impl.Trait) == "null" {
			for _, id := range impl.Items {
				m, ok := c.Index[strconv.Itoa(id)]
				if !ok || m.Name == nil || innerKind(m.Inner) != "function" {
					continue
				}
				if !isPublic(&m) || isHidden(&m) {
					continue
				}
				methods.Items = append(methods.Items, *m.Name)
			}
			continue
		}

		name := pathName(*impl.Trait)
		if name != "" && !seenTraits[name] {
			seenTraits[name] = true
			traits.Items = append(traits.Items, name)
		}
	}

	add(methods)
	add(traits)
}

// traitMethodSections splits trait methods by whether they have a default body.
func (c *RustdocCrate) traitMethodSections(traitData json.RawMessage) (required, provided *sidebar.Section) {
	required = &sidebar.Section{Title: "Required Methods", Anchor: AnchorRequiredMethods}
	provided = &sidebar.Section{Title: "Provided Methods", Anchor: AnchorProvidedMethods}

	var t struct {
		Items []int `json:"items"`
	}
	if err := json.Unmarshal(traitData, &t); err != nil {
		return required, provided
	}

	for _, id := range t.Items {
		item, ok := c.Index[strconv.Itoa(id)]
		if !ok || item.Name == nil {
			continue
		}
		fnData := unwrapInner(item.Inner, "function")
		if fnData == nil {
			continue
		}
		var fn struct {
			HasBody bool `json:"has_body"`
		}
		if err := json.Unmarshal(fnData, &fn); err != nil {
			continue
		}
		if fn.HasBody {
			provided.Items = append(provided.Items, *item.Name)
		} else {
			required.Items = append(required.Items, *item.Name)
		}
	}
	return required, provided
}

func (c *RustdocCrate) implementorsSection(traitData json.RawMessage) *sidebar.Section {
	var t struct {
		Implementations []int `json:"implementations"`
	}
	if err := json.Unmarshal(traitData, &t); err != nil {
		return nil
	}

	s := &sidebar.Section{Title: "Implementors", Anchor: AnchorImplementors}
	for _, implID := range t.Implementations {
		implItem, ok := c.Index[strconv.Itoa(implID)]
		if !ok {
			continue
		}
		implInner := unwrapInner(implItem.Inner, "impl")
		if implInner == nil {
			continue
		}
		var impl struct {
			For json.RawMessage `json:"for"`
		}
		if err := json.Unmarshal(implInner, &impl); err != nil {
			continue
		}
		if name := typeName(impl.For); name != "" {
			s.Items = append(s.Items, name)
		}
	}
	return s
}

func (c *RustdocCrate) names(ids []int) []string {
	var names []string
	for _, id := range ids {
		item, ok := c.Index[strconv.Itoa(id)]
		if !ok || item.Name == nil {
			continue
		}
		names = append(names, *item.Name)
	}
	return names
}

// pathName returns the last segment of a rustdoc Path, which is spelled
// "name" in older formats and "path" in newer ones.
func pathName(raw json.RawMessage) string {
	var p struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return ""
	}
	full := p.Path
	if full == "" {
		full = p.Name
	}
	if i := strings.LastIndex(full, "::"); i >= 0 {
		full = full[i+2:]
	}
	return full
}

// typeName names the implementing type of an impl block.
func typeName(typeJSON json.RawMessage) string {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal(typeJSON, &outer); err != nil {
		return ""
	}
	if resolved, ok := outer["resolved_path"]; ok {
		return pathName(resolved)
	}
	for _, key := range []string{"primitive", "generic"} {
		if raw, ok := outer[key]; ok {
			var name string
			if err := json.Unmarshal(raw, &name); err == nil {
				return name
			}
		}
	}
	if br, ok := outer["borrowed_ref"]; ok {
		var ref struct {
			Type json.RawMessage `json:"type"`
		}
		if err := json.Unmarshal(br, &ref); err == nil {
			if inner := typeName(ref.Type); inner != "" {
				return "&" + inner
			}
		}
	}
	return ""
}
