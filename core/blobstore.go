package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// BlobStore is the abstract content-addressed byte store a space reads and
// writes blobs through. LocalBlobStore below is the minimal concrete
// instance this module needs for single-node operation and tests; a real
// deployment swaps in an iroh-style blob transport.
type BlobStore interface {
	// Put stores data and returns its content hash.
	Put(ctx context.Context, data []byte) ([32]byte, error)
	// Get fetches the full bytes for hash.
	Get(ctx context.Context, hash [32]byte) ([]byte, error)
	// GetRange fetches [offset, offset+length) of the blob for hash.
	GetRange(ctx context.Context, hash [32]byte, offset, length int64) ([]byte, error)
	// Has reports whether hash is present locally.
	Has(ctx context.Context, hash [32]byte) (bool, error)
	// Size returns the byte length of hash's content.
	Size(ctx context.Context, hash [32]byte) (int64, error)
}

// LocalBlobStore is a filesystem-backed, content-addressed BlobStore keyed
// by hex sha256: a flat sharded directory, filename = content address,
// without LRU eviction — a local space's blobs are not cache entries.
type LocalBlobStore struct {
	dir string
}

// NewLocalBlobStore opens (creating if absent) a content-addressed store
// rooted at dir.
func NewLocalBlobStore(dir string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, WrapError(ErrIO, err, "create blob dir %s", dir)
	}
	return &LocalBlobStore{dir: dir}, nil
}

func (b *LocalBlobStore) pathFor(hash [32]byte) string {
	hexHash := hex.EncodeToString(hash[:])
	return filepath.Join(b.dir, hexHash[:2], hexHash)
}

func (b *LocalBlobStore) Put(_ context.Context, data []byte) ([32]byte, error) {
	hash := sha256.Sum256(data)
	p := b.pathFor(hash)
	if _, err := os.Stat(p); err == nil {
		return hash, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return hash, WrapError(ErrIO, err, "mkdir for blob %x", hash[:4])
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return hash, WrapError(ErrIO, err, "write blob %x", hash[:4])
	}
	if err := os.Rename(tmp, p); err != nil {
		return hash, WrapError(ErrIO, err, "commit blob %x", hash[:4])
	}
	return hash, nil
}

func (b *LocalBlobStore) Get(_ context.Context, hash [32]byte) ([]byte, error) {
	data, err := os.ReadFile(b.pathFor(hash))
	if os.IsNotExist(err) {
		return nil, NewError(ErrNotFound, "blob %x not found locally", hash[:4])
	}
	if err != nil {
		return nil, WrapError(ErrIO, err, "read blob %x", hash[:4])
	}
	return data, nil
}

func (b *LocalBlobStore) GetRange(_ context.Context, hash [32]byte, offset, length int64) ([]byte, error) {
	f, err := os.Open(b.pathFor(hash))
	if os.IsNotExist(err) {
		return nil, NewError(ErrNotFound, "blob %x not found locally", hash[:4])
	}
	if err != nil {
		return nil, WrapError(ErrIO, err, "open blob %x", hash[:4])
	}
	defer f.Close()
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return nil, WrapError(ErrIO, err, "seek blob %x", hash[:4])
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, WrapError(ErrIO, err, "read range blob %x", hash[:4])
	}
	return buf[:n], nil
}

func (b *LocalBlobStore) Has(_ context.Context, hash [32]byte) (bool, error) {
	_, err := os.Stat(b.pathFor(hash))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, WrapError(ErrIO, err, "stat blob %x", hash[:4])
}

func (b *LocalBlobStore) Size(_ context.Context, hash [32]byte) (int64, error) {
	fi, err := os.Stat(b.pathFor(hash))
	if os.IsNotExist(err) {
		return 0, NewError(ErrNotFound, "blob %x not found locally", hash[:4])
	}
	if err != nil {
		return 0, WrapError(ErrIO, err, "stat blob %x", hash[:4])
	}
	return fi.Size(), nil
}

// ExportTo copies the blob for hash to a plain file at path, used by
// Sharing import to materialize a fetched space.db snapshot.
func (b *LocalBlobStore) ExportTo(hash [32]byte, path string) error {
	data, err := b.Get(context.Background(), hash)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return WrapError(ErrIO, err, "mkdir for export %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return WrapError(ErrIO, err, "write export %s", path)
	}
	return nil
}

// ImportFile content-addresses the bytes of a plain file into the store,
// used when building Program collections and Sharing exports.
func (b *LocalBlobStore) ImportFile(path string) ([32]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return [32]byte{}, WrapError(ErrIO, err, "read file %s", path)
	}
	return b.Put(context.Background(), data)
}

// cidFor renders hash as a CIDv1 raw-codec identifier. Ticket encoding does
// not use it; a ticket carries the raw 32-byte hash.
func cidFor(hash [32]byte) (cid.Cid, error) {
	mhash, err := mh.Encode(hash[:], mh.SHA2_256)
	if err != nil {
		return cid.Undef, WrapError(ErrIO, err, "encode multihash")
	}
	return cid.NewCidV1(cid.Raw, mhash), nil
}
