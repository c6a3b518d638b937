package rustsrc

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"
)

// Bump when fileSyntax or the extraction rules change.
const cacheSchemaVersion uint16 = 1

// Cache keeps parsed files on disk keyed by the SHA-256 of their contents.
// Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema uint16      `msgpack:"schema"`
	Syntax *fileSyntax `msgpack:"syntax"`
}

// OpenCache creates the cache directory if needed.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating source cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

func contentKey(source []byte) string {
	sum := sha256.Sum256(source)
	return hex.EncodeToString(sum[:])
}

func (c *Cache) pathFor(key string) string {
	return filepath.Join(c.dir, key[:2], key[2:]+".mp")
}

// put writes a parsed file through a temp file and rename.
func (c *Cache) put(key string, syn *fileSyntax) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(&cachePayload{Schema: cacheSchemaVersion, Syntax: syn}); err != nil {
		f.Close()
		return fmt.Errorf("encoding cache entry: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// get returns a cached parse. Entries from another schema version are misses.
func (c *Cache) get(key string) (*fileSyntax, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("decoding cache entry %s: %w", key, err)
	}
	if payload.Schema != cacheSchemaVersion || payload.Syntax == nil {
		return nil, false, nil
	}
	return payload.Syntax, true, nil
}

// DropAll removes every cached entry.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.RemoveAll(c.dir); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
