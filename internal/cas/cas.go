// Package cas stores rendered sidebar-items.js files by content hash.
package cas

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/klauspost/compress/zstd"
)

// ErrInvalidHash is returned for hashes that are not hex SHA-256 digests.
var ErrInvalidHash = errors.New("invalid CAS hash")

// Store is a content-addressable store rooted at Dir.
type Store struct {
	Dir string
}

// Default returns the store under the user cache directory.
func Default() *Store {
	return &Store{Dir: config.CASDir()}
}

// Hash returns the hex SHA-256 of content, the key it is stored under.
func Hash(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// path returns the sharded file path for a hash: cas/<first2>/<rest>.js.zst
func (s *Store) path(hash string) (string, error) {
	if len(hash) != sha256.Size*2 {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	if _, err := hex.DecodeString(hash); err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidHash, hash)
	}
	return filepath.Join(s.Dir, hash[:2], hash[2:]+".js.zst"), nil
}

// Write stores content in the CAS, returning its SHA-256 hash.
// If the content already exists, this is a no-op.
func (s *Store) Write(content []byte) (string, error) {
	hash := Hash(content)

	p, err := s.path(hash)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(p); err == nil {
		return hash, nil
	}

	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return "", fmt.Errorf("creating CAS directory: %w", err)
	}

	var buf bytes.Buffer
	w, err := zstd.NewWriter(&buf)
	if err != nil {
		return "", fmt.Errorf("creating zstd writer: %w", err)
	}
	if _, err := w.Write(content); err != nil {
		w.Close()
		return "", fmt.Errorf("compressing CAS content: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("closing zstd writer: %w", err)
	}

	// Readers never observe a partial file.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".cas-*")
	if err != nil {
		return "", fmt.Errorf("creating CAS temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing CAS file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing CAS file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return "", fmt.Errorf("renaming CAS file: %w", err)
	}

	return hash, nil
}

// Read retrieves content from the CAS by hash.
func (s *Store) Read(hash string) ([]byte, error) {
	p, err := s.path(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("reading CAS file %s: %w", hash, err)
	}
	defer f.Close()

	r, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("creating zstd reader: %w", err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("decompressing CAS file %s: %w", hash, err)
	}
	return data, nil
}

// Has reports whether hash is stored.
func (s *Store) Has(hash string) bool {
	p, err := s.path(hash)
	if err != nil {
		return false
	}
	_, err = os.Stat(p)
	return err == nil
}

// Clear removes every stored object.
func (s *Store) Clear() error {
	if err := os.RemoveAll(s.Dir); err != nil {
		return fmt.Errorf("removing CAS: %w", err)
	}
	return nil
}
