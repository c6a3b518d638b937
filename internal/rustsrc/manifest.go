package rustsrc

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNoLibrary is returned for packages with neither a library nor a binary target.
var ErrNoLibrary = errors.New("no library or binary target")

// Manifest is the subset of Cargo.toml that locates a crate's root file.
type Manifest struct {
	Package struct {
		Name    string `toml:"name"`
		Version string `toml:"version"`
	} `toml:"package"`
	Lib struct {
		Name string `toml:"name"`
		Path string `toml:"path"`
	} `toml:"lib"`

	dir string
}

// ReadManifest decodes dir/Cargo.toml.
func ReadManifest(dir string) (*Manifest, error) {
	var m Manifest
	path := filepath.Join(dir, "Cargo.toml")
	if _, err := toml.DecodeFile(path, &m); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if m.Package.Name == "" && m.Lib.Name == "" {
		return nil, fmt.Errorf("%s: missing package name", path)
	}
	m.dir = dir
	return &m, nil
}

// CrateName is the library name: [lib] name, or the package name with
// hyphens replaced by underscores.
func (m *Manifest) CrateName() string {
	if m.Lib.Name != "" {
		return m.Lib.Name
	}
	return strings.ReplaceAll(m.Package.Name, "-", "_")
}

// RootFile resolves the crate root: [lib] path, src/lib.rs, then src/main.rs.
func (m *Manifest) RootFile() (string, error) {
	if m.Lib.Path != "" {
		return filepath.Join(m.dir, filepath.FromSlash(m.Lib.Path)), nil
	}
	for _, candidate := range []string{"lib.rs", "main.rs"} {
		p := filepath.Join(m.dir, "src", candidate)
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s: %w", m.dir, ErrNoLibrary)
}
