package sidebar

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jcdickinson/rsidebar/internal/markdown"
)

// FileName is the name rustdoc gives to a module's sidebar script.
const FileName = "sidebar-items.js"

// FilePath returns where the sidebar script of a module lives under outDir,
// following rustdoc's layout: out/<crate>/<mod>/.../sidebar-items.js.
func FilePath(outDir, modulePath string) string {
	parts := []string{outDir}
	parts = append(parts, strings.Split(modulePath, "::")...)
	parts = append(parts, FileName)
	return filepath.Join(parts...)
}

// WriteFile writes the index to path via a temporary file and rename.
// It reports false without touching the file when the contents are unchanged.
func WriteFile(path string, idx Index) (bool, error) {
	data := idx.JS()
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("creating sidebar directory: %w", err)
	}
	f, err := os.CreateTemp(dir, ".sidebar-*")
	if err != nil {
		return false, fmt.Errorf("creating temp file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if _, err := f.Write(data); err != nil {
		f.Close()
		return false, fmt.Errorf("writing sidebar: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return false, fmt.Errorf("replacing %s: %w", path, err)
	}
	return true, nil
}

// ReadFile loads a sidebar script from disk.
func ReadFile(path string) (Index, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	idx, err := ParseJS(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return idx, nil
}

// Markdown renders the index as a markdown page, one section per kind in
// rustdoc page order. Non-empty fields become YAML front matter.
func (idx Index) Markdown(title string, fields map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, k := range idx.DisplayKinds() {
		fmt.Fprintf(&b, "## %s\n\n", k.Title())
		for _, e := range idx[k] {
			fmt.Fprintf(&b, "- [**%s**](%s)", e.Name, Href(k, e.Name))
			if e.Summary != "" {
				b.WriteString(": " + e.Summary)
			}
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	return markdown.AddFrontMatter(b.String(), fields)
}

// SectionsMarkdown renders the sidebar sections of an item page.
func SectionsMarkdown(title string, sections []Section, fields map[string]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", title)
	for _, s := range sections {
		fmt.Fprintf(&b, "## %s\n\n", s.Title)
		for _, item := range s.Items {
			fmt.Fprintf(&b, "- %s\n", item)
		}
		b.WriteString("\n")
	}
	return markdown.AddFrontMatter(b.String(), fields)
}
