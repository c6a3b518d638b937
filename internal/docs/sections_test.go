package docs

import (
	"reflect"
	"testing"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

func TestItemSections_Struct(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	got := crate.ItemSections("2")
	want := []sidebar.Section{
		{Title: "Fields", Anchor: AnchorFields, Items: []string{"task_recv"}},
		{Title: "Methods", Anchor: AnchorImplementations, Items: []string{"new", "update"}},
		{Title: "Trait Implementations", Anchor: AnchorTraitImpls, Items: []string{"Drop"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ItemSections(Flycheck) =\n%+v\nwant\n%+v", got, want)
	}
}

func TestItemSections_Enum(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	got := crate.ItemSections("3")
	want := []sidebar.Section{
		{Title: "Variants", Anchor: AnchorVariants, Items: []string{"CargoCommand", "CustomCommand"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ItemSections(FlycheckConfig) = %+v, want %+v", got, want)
	}
}

func TestItemSections_NoSidebar(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	for _, id := range []string{"6", "7", "404"} {
		if got := crate.ItemSections(id); got != nil {
			t.Errorf("ItemSections(%s) = %+v, want nil", id, got)
		}
	}
}

const traitJSON = `{
  "root": 0,
  "index": {
    "0": {"id": 0, "name": "shapes", "visibility": "public", "inner": {"module": {"items": [1, 5]}}},
    "1": {"id": 1, "name": "Shape", "visibility": "public", "inner": {"trait": {"items": [2, 3], "implementations": [4, 6]}}},
    "2": {"id": 2, "name": "area", "inner": {"function": {"has_body": false}}},
    "3": {"id": 3, "name": "describe", "inner": {"function": {"has_body": true}}},
    "4": {"id": 4, "inner": {"impl": {"trait": {"name": "Shape", "id": 1}, "for": {"resolved_path": {"name": "Circle", "id": 5}}, "items": []}}},
    "5": {"id": 5, "name": "Circle", "visibility": "public", "inner": {"struct": {"kind": {"tuple": [null]}, "impls": [4]}}},
    "6": {"id": 6, "inner": {"impl": {"trait": {"name": "Shape", "id": 1}, "for": {"borrowed_ref": {"lifetime": null, "is_mutable": false, "type": {"primitive": "str"}}}, "items": []}}}
  },
  "paths": {}
}`

func TestItemSections_Trait(t *testing.T) {
	t.Parallel()

	crate, err := Parse([]byte(traitJSON))
	if err != nil {
		t.Fatal(err)
	}

	got := crate.ItemSections("1")
	want := []sidebar.Section{
		{Title: "Required Methods", Anchor: AnchorRequiredMethods, Items: []string{"area"}},
		{Title: "Provided Methods", Anchor: AnchorProvidedMethods, Items: []string{"describe"}},
		{Title: "Implementors", Anchor: AnchorImplementors, Items: []string{"Circle", "&str"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ItemSections(Shape) =\n%+v\nwant\n%+v", got, want)
	}

	// Tuple structs have no named fields; the trait impl uses the older "name" spelling.
	got = crate.ItemSections("5")
	want = []sidebar.Section{
		{Title: "Trait Implementations", Anchor: AnchorTraitImpls, Items: []string{"Shape"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ItemSections(Circle) = %+v, want %+v", got, want)
	}
}
