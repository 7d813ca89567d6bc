package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// CollectionEntry is one (relative_path, file_hash) pair of a collection
// manifest.
type CollectionEntry struct {
	Name string  `json:"name"`
	Hash [32]byte `json:"-"`
}

// MarshalJSON renders Hash as lowercase hex alongside Name.
func (c CollectionEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name string `json:"name"`
		Hash string `json:"hash"`
	}{Name: c.Name, Hash: hex.EncodeToString(c.Hash[:])})
}

func (c *CollectionEntry) UnmarshalJSON(data []byte) error {
	var wire struct {
		Name string `json:"name"`
		Hash string `json:"hash"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	b, err := hex.DecodeString(wire.Hash)
	if err != nil || len(b) != 32 {
		return NewError(ErrIO, "collection entry %q: invalid hash %q", wire.Name, wire.Hash)
	}
	var h [32]byte
	copy(h[:], b)
	c.Name = wire.Name
	c.Hash = h
	return nil
}

// Collection is a stable-sorted list of name->hash entries, hashed as a
// unit to produce the collection's own content hash.
type Collection []CollectionEntry

// Hash returns the content hash of the collection's canonical JSON
// encoding. Entries must already be sorted by Name (Build guarantees this).
func (c Collection) Hash() [32]byte {
	b, _ := json.Marshal(c)
	return sha256.Sum256(b)
}

// Lookup returns the hash for name, if present.
func (c Collection) Lookup(name string) ([32]byte, bool) {
	for _, e := range c {
		if e.Name == name {
			return e.Hash, true
		}
	}
	return [32]byte{}, false
}

// BuildCollectionFromDir walks dir, content-addressing every regular file
// into store and returning a name-sorted Collection of (relative_path,
// hash) pairs. Names matching any of ignore (simple glob, evaluated against
// the base name) are skipped; a matching directory is skipped with
// everything under it.
func BuildCollectionFromDir(store *LocalBlobStore, dir string, ignore []string) (Collection, error) {
	var entries []CollectionEntry
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		base := filepath.Base(path)
		if path != dir {
			for _, pat := range ignore {
				if ok, _ := filepath.Match(pat, base); ok {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		hash, err := store.ImportFile(path)
		if err != nil {
			return err
		}
		entries = append(entries, CollectionEntry{Name: rel, Hash: hash})
		return nil
	})
	if err != nil {
		return nil, WrapError(ErrIO, err, "walk directory %s", dir)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return Collection(entries), nil
}

// PutCollection stores the collection's own JSON encoding as a blob keyed
// by its own hash, and returns that hash — the collection hash an export
// is addressed by.
func PutCollection(ctx context.Context, store BlobStore, c Collection) ([32]byte, error) {
	b, err := json.Marshal(c)
	if err != nil {
		return [32]byte{}, WrapError(ErrIO, err, "marshal collection")
	}
	return store.Put(ctx, b)
}

// FetchCollection retrieves and decodes a collection by its content hash.
func FetchCollection(ctx context.Context, store BlobStore, hash [32]byte) (Collection, error) {
	b, err := store.Get(ctx, hash)
	if err != nil {
		return nil, err
	}
	var c Collection
	if err := json.Unmarshal(b, &c); err != nil {
		return nil, WrapError(ErrIO, err, "unmarshal collection %x", hash[:4])
	}
	return c, nil
}
