package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

func loadFlycheck(t *testing.T) *RustdocCrate {
	t.Helper()
	crate, err := ReadRustdocFile(filepath.Join("testdata", "ra_flycheck.json"))
	if err != nil {
		t.Fatalf("ReadRustdocFile: %v", err)
	}
	return crate
}

func TestBuildIndices_Flycheck(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	if crate.Name() != "ra_flycheck" || crate.Version() != "0.1.0" {
		t.Fatalf("crate = %s %s", crate.Name(), crate.Version())
	}

	indices := crate.BuildIndices(BuildOptions{})
	if len(indices) != 1 {
		t.Fatalf("got %d modules, want 1 (private modules must be skipped)", len(indices))
	}
	idx, ok := indices["ra_flycheck"]
	if !ok {
		t.Fatal("missing root module index")
	}

	want, err := os.ReadFile(filepath.Join("testdata", "ra_flycheck.sidebar-items.js"))
	if err != nil {
		t.Fatal(err)
	}
	if got := string(idx.JS()); got != string(want) {
		t.Errorf("JS mismatch\ngot:  %s\nwant: %s", got, want)
	}
}

func TestDeclarations_SkipsPrivateAndHidden(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	names := func(decls []sidebar.Declaration) map[string]sidebar.Kind {
		m := make(map[string]sidebar.Kind)
		for _, d := range decls {
			m[d.Name] = d.Kind
		}
		return m
	}

	public := names(crate.Declarations(crate.Root, false))
	for _, hidden := range []string{"FlycheckThread", "__private_spawn", "conv"} {
		if _, ok := public[hidden]; ok {
			t.Errorf("%s should not be listed", hidden)
		}
	}
	if len(public) != 6 {
		t.Errorf("got %d declarations, want 6", len(public))
	}

	all := names(crate.Declarations(crate.Root, true))
	if all["__private_spawn"] != sidebar.KindFn {
		t.Errorf("includeHidden should list __private_spawn as fn, got %q", all["__private_spawn"])
	}
	if all["conv"] != sidebar.KindModule {
		t.Errorf("includeHidden should list conv as mod, got %q", all["conv"])
	}
}

func TestBuildIndices_Sorted(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	idx := crate.BuildIndices(BuildOptions{SortEntries: true})["ra_flycheck"]
	enums := idx[sidebar.KindEnum]
	want := []string{"CheckCommand", "CheckTask", "FlycheckConfig"}
	for i, e := range enums {
		if e.Name != want[i] {
			t.Errorf("enum[%d] = %s, want %s", i, e.Name, want[i])
		}
	}
}

func TestFindItem(t *testing.T) {
	t.Parallel()
	crate := loadFlycheck(t)

	id, ok := crate.FindItem("ra_flycheck::Flycheck")
	if !ok || id != "2" {
		t.Errorf("FindItem(Flycheck) = %q, %v", id, ok)
	}
	if _, ok := crate.FindItem("core::ops::drop::Drop"); ok {
		t.Error("external items should not resolve")
	}

	m, ok := crate.FindModule("ra_flycheck", false)
	if !ok || m.ID != crate.Root {
		t.Errorf("FindModule(ra_flycheck) = %+v, %v", m, ok)
	}
	if _, ok := crate.FindModule("ra_flycheck::conv", false); ok {
		t.Error("private module should not be found")
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
	}{
		{"not_json", "initSidebarItems({});"},
		{"no_root", `{"root": 7, "index": {}, "paths": {}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestItemKind_ProcMacro(t *testing.T) {
	t.Parallel()

	tests := []struct {
		inner string
		want  sidebar.Kind
	}{
		{`{"proc_macro": {"kind": "bang", "helpers": []}}`, sidebar.KindMacro},
		{`{"proc_macro": {"kind": "attr", "helpers": []}}`, sidebar.KindAttr},
		{`{"proc_macro": {"kind": "derive", "helpers": ["serde"]}}`, sidebar.KindDerive},
		{`{"type_alias": {}}`, sidebar.KindTypeAlias},
		{`{"typedef": {}}`, sidebar.KindTypeAlias},
		{`{"extern_crate": {"name": "core", "rename": null}}`, sidebar.KindExternCrate},
	}
	for _, tt := range tests {
		item := &RustdocItem{Inner: []byte(tt.inner)}
		got, ok := itemKind(item)
		if !ok || got != tt.want {
			t.Errorf("itemKind(%s) = %q, %v; want %q", tt.inner, got, ok, tt.want)
		}
	}

	if _, ok := itemKind(&RustdocItem{Inner: []byte(`{"impl": {}}`)}); ok {
		t.Error("impl blocks have no sidebar kind")
	}
}
