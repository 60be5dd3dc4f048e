// Package index keeps the ordered manifest of live revision keys. The manifest
// is stored as a single JSON array in the same backend as the revisions.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gogotex/gogotex/backend/autosave/internal/revision/kv"
)

// Index is the revision manifest persisted under one well-known key.
type Index struct {
	backend kv.Backend
	key     string
}

// New returns an Index stored under key in backend.
func New(backend kv.Backend, key string) *Index {
	return &Index{backend: backend, key: key}
}

// Key returns the well-known key holding the manifest.
func (x *Index) Key() string {
	return x.key
}

func (x *Index) load(ctx context.Context) ([]string, error) {
	raw, ok, err := x.backend.Get(ctx, x.key)
	if err != nil {
		return nil, fmt.Errorf("load index: %w", err)
	}
	if !ok || raw == "" {
		return []string{}, nil
	}
	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	return keys, nil
}

func (x *Index) store(ctx context.Context, keys []string) error {
	if keys == nil {
		keys = []string{}
	}
	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := x.backend.Set(ctx, x.key, string(b)); err != nil {
		return fmt.Errorf("store index: %w", err)
	}
	return nil
}

// List returns the indexed keys in insertion order, optionally restricted to
// those starting with prefix.
func (x *Index) List(ctx context.Context, prefix string) ([]string, error) {
	keys, err := x.load(ctx)
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		return keys, nil
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Add appends key. Adding a key twice stores it twice.
func (x *Index) Add(ctx context.Context, key string) error {
	keys, err := x.load(ctx)
	if err != nil {
		return err
	}
	return x.store(ctx, append(keys, key))
}

// Remove drops the first occurrence of key. The manifest is rewritten even
// when key is absent.
func (x *Index) Remove(ctx context.Context, key string) error {
	keys, err := x.load(ctx)
	if err != nil {
		return err
	}
	for i, k := range keys {
		if k == key {
			keys = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	return x.store(ctx, keys)
}

// Clear removes every indexed revision from the backend and empties the
// manifest.
func (x *Index) Clear(ctx context.Context) error {
	keys, err := x.load(ctx)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if err := x.backend.Remove(ctx, k); err != nil {
			return fmt.Errorf("clear %s: %w", k, err)
		}
	}
	return x.store(ctx, nil)
}
