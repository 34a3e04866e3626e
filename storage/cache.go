// Package storage provides the on-disk response cache for the External
// Source Adapter, replacing storage/s3.go's remote object store with a
// local content-addressed cache keyed by endpoint and query parameters.
// The atomic-write discipline (temp file + rename) is adapted from s3.go's
// put-then-confirm pattern, generalized to a filesystem that has no
// equivalent of S3's atomic PUT.
package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
)

// Cache is a content-addressed on-disk store keyed by (endpoint, params).
// Keys are never mutated once written: a write is idempotent and a second
// writer for the same key may safely race the first, since both would
// produce identical content.
type Cache struct {
	root string
}

// New returns a Cache rooted at dir, creating it if necessary.
func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &Cache{root: dir}, nil
}

// Key derives the cache key for an endpoint and its query parameters. The
// params map is marshaled with sorted keys (via json.Marshal on a
// pre-sorted structure) so the same logical request always hashes to the
// same key.
func Key(endpoint string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	ordered := make([][2]string, 0, len(params))
	for _, k := range keys {
		ordered = append(ordered, [2]string{k, params[k]})
	}

	encoded, _ := json.Marshal(struct {
		Endpoint string      `json:"endpoint"`
		Params   [][2]string `json:"params"`
	}{Endpoint: endpoint, Params: ordered})

	sum := sha256.Sum256(encoded)
	return hex.EncodeToString(sum[:])
}

// Get reads the cached bytes for key, reporting false if absent.
func (c *Cache) Get(key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("failed to read cache entry %s: %w", key, err)
	}
	return data, true, nil
}

// Put writes data for key via a temp file plus atomic rename, so a reader
// never observes a partially written entry and two concurrent writers for
// the same key never corrupt each other's output.
func (c *Cache) Put(key string, data []byte) error {
	tmp := filepath.Join(c.root, fmt.Sprintf(".tmp-%s", uuid.New().String()))
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temp cache file: %w", err)
	}
	if err := os.Rename(tmp, c.path(key)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit cache entry %s: %w", key, err)
	}
	return nil
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.root, key+".json")
}
