package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/jcdickinson/rsidebar/internal/docs"
	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

func flycheckIndices(t *testing.T) map[string]sidebar.Index {
	t.Helper()
	crate, err := docs.ReadRustdocFile(filepath.Join("..", "internal", "docs", "testdata", "ra_flycheck.json"))
	if err != nil {
		t.Fatal(err)
	}
	return crate.BuildIndices(docs.BuildOptions{})
}

func TestWriteIndices(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	indices := flycheckIndices(t)

	stats, err := writeIndices(out, indices)
	if err != nil {
		t.Fatal(err)
	}
	if stats.written != 1 {
		t.Errorf("written = %d, want 1", stats.written)
	}

	got, err := os.ReadFile(filepath.Join(out, "ra_flycheck", "sidebar-items.js"))
	if err != nil {
		t.Fatal(err)
	}
	want, err := os.ReadFile(filepath.Join("..", "internal", "docs", "testdata", "ra_flycheck.sidebar-items.js"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("sidebar-items.js =\n%s\nwant\n%s", got, want)
	}

	stats, err = writeIndices(out, indices)
	if err != nil {
		t.Fatal(err)
	}
	if stats.written != 0 {
		t.Errorf("unchanged rewrite wrote %d files", stats.written)
	}
}

func TestWriteIndices_RemovesStaleModules(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	stale := filepath.Join(out, "ra_flycheck", "gone", "sidebar-items.js")
	other := filepath.Join(out, "serde", "sidebar-items.js")
	page := filepath.Join(out, "ra_flycheck", "gone", "index.html")
	for _, f := range []string{stale, other, page} {
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := writeIndices(out, flycheckIndices(t))
	if err != nil {
		t.Fatal(err)
	}
	if stats.removed != 1 {
		t.Errorf("removed = %d, want 1", stats.removed)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale sidebar still present: %v", err)
	}
	for _, f := range []string{other, page, filepath.Join(out, "ra_flycheck", "sidebar-items.js")} {
		if _, err := os.Stat(f); err != nil {
			t.Errorf("%s: %v", f, err)
		}
	}
}

func TestModuleIndex(t *testing.T) {
	t.Parallel()

	crate, err := docs.ReadRustdocFile(filepath.Join("..", "internal", "docs", "testdata", "ra_flycheck.json"))
	if err != nil {
		t.Fatal(err)
	}
	opts := docs.BuildOptions{SortEntries: true}

	idx, err := moduleIndex(crate, opts, "ra_flycheck")
	if err != nil {
		t.Fatal(err)
	}
	if want := crate.BuildIndices(opts)["ra_flycheck"]; !bytes.Equal(idx.JS(), want.JS()) {
		t.Errorf("moduleIndex =\n%s\nwant\n%s", idx.JS(), want.JS())
	}

	if _, err := moduleIndex(crate, opts, "ra_flycheck::conv"); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("missing module error = %v", err)
	}
}

func TestPrintIndex(t *testing.T) {
	color.NoColor = true
	idx := flycheckIndices(t)["ra_flycheck"]

	var buf bytes.Buffer
	printIndex(&buf, idx, nil)
	out := buf.String()
	structs := strings.Index(out, "Structs (struct, 2)\n")
	enums := strings.Index(out, "Enums (enum, 3)\n")
	fns := strings.Index(out, "Functions (fn, 1)\n")
	if structs < 0 || enums < 0 || fns < 0 {
		t.Fatalf("missing headings:\n%s", out)
	}
	if !(structs < enums && enums < fns) {
		t.Errorf("sections not in rustdoc order:\n%s", out)
	}
	if !strings.Contains(out, "  Flycheck  Flycheck wraps the shared state") {
		t.Errorf("missing Flycheck entry:\n%s", out)
	}

	buf.Reset()
	printIndex(&buf, idx, []string{"fn"})
	if strings.Contains(buf.String(), "Structs") || !strings.Contains(buf.String(), "url_from_path_with_drive_lowercasing") {
		t.Errorf("kind filter output:\n%s", buf.String())
	}
}
