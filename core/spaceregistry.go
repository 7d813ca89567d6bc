package core

import (
	"sync"

	"github.com/google/uuid"
)

// SpaceRef is a locally known space: its id, display name, and the shared
// secret its gossip topic is derived from.
type SpaceRef struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Secret string    `json:"secret"` // hex-encoded 32 bytes
}

func (r SpaceRef) SecretBytes() ([32]byte, error) { return decodeHashHex(r.Secret) }

// SpaceRegistry is the local "known spaces" roster persisted at
// spaces.json, following the same read-modify-write discipline as Accounts.
type SpaceRegistry struct {
	mu   sync.RWMutex
	path string
	refs []SpaceRef
}

// OpenSpaceRegistry loads the registry from disk, creating an empty one if
// absent.
func OpenSpaceRegistry(path string) (*SpaceRegistry, error) {
	r := &SpaceRegistry{path: path}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *SpaceRegistry) reload() error {
	refs, err := readJSONFileOrDefault[[]SpaceRef](r.path, []SpaceRef{})
	if err != nil {
		return err
	}
	r.refs = refs
	return nil
}

// Register adds or replaces the ref for id.
func (r *SpaceRegistry) Register(ref SpaceRef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reload(); err != nil {
		return err
	}
	found := false
	for i := range r.refs {
		if r.refs[i].ID == ref.ID {
			r.refs[i] = ref
			found = true
			break
		}
	}
	if !found {
		r.refs = append(r.refs, ref)
	}
	return writeJSONFile(r.path, r.refs)
}

// Get returns the ref for id, or NotFound.
func (r *SpaceRegistry) Get(id uuid.UUID) (*SpaceRef, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ref := range r.refs {
		if ref.ID == id {
			out := ref
			return &out, nil
		}
	}
	return nil, NewError(ErrNotFound, "space %s not known locally", id)
}

// List returns a snapshot of all known space refs.
func (r *SpaceRegistry) List() []SpaceRef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SpaceRef, len(r.refs))
	copy(out, r.refs)
	return out
}

// Forget removes id from the registry.
func (r *SpaceRegistry) Forget(id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.reload(); err != nil {
		return err
	}
	out := r.refs[:0]
	for _, ref := range r.refs {
		if ref.ID != id {
			out = append(out, ref)
		}
	}
	r.refs = out
	return writeJSONFile(r.path, r.refs)
}
