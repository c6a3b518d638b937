package docs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// JSONCache keeps fetched rustdoc JSON on disk, zstd compressed.
type JSONCache struct {
	Dir string
}

func (c JSONCache) path(name, version string) string {
	return filepath.Join(c.Dir, name+"_"+version+".json.zst")
}

// SaveCrateCache compresses and saves rustdoc JSON bytes to disk.
func (c JSONCache) SaveCrateCache(data []byte, name, version string) error {
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("creating json cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(c.Dir, ".crate-*")
	if err != nil {
		return fmt.Errorf("creating cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		tmp.Close()
		return fmt.Errorf("writing compressed data: %w", err)
	}
	if err := w.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("closing zstd writer: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path(name, version)); err != nil {
		return fmt.Errorf("renaming cache file: %w", err)
	}
	return nil
}

// LoadCrateCache loads and parses cached rustdoc JSON from disk.
func (c JSONCache) LoadCrateCache(name, version string) (*RustdocCrate, error) {
	return ReadRustdocFile(c.path(name, version))
}

// HasCrateCache checks whether a cached rustdoc JSON file exists on disk.
func (c JSONCache) HasCrateCache(name, version string) bool {
	_, err := os.Stat(c.path(name, version))
	return err == nil
}

// Clear removes every cached crate.
func (c JSONCache) Clear() error {
	if err := os.RemoveAll(c.Dir); err != nil {
		return fmt.Errorf("removing json cache: %w", err)
	}
	return nil
}

// ReadRustdocFile parses a rustdoc JSON file, as written by
// `cargo rustdoc -- -Z unstable-options --output-format json`. Files ending in
// .zst are decompressed first.
func ReadRustdocFile(path string) (*RustdocCrate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening rustdoc JSON: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("creating zstd reader: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	crate, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return crate, nil
}
