package core

import (
	"crypto/ed25519"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ProgramManifest is the required program.json document naming a program's
// entry point and capability declarations.
type ProgramManifest struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	Homepage    string              `json:"homepage,omitempty"`
	Repository  string              `json:"repository,omitempty"`
	License     string              `json:"license,omitempty"`
	Main        string              `json:"main,omitempty"`
	Config      ProgramManifestConf `json:"config,omitempty"`
}

type ProgramManifestConf struct {
	Environment []ProgramEnvVar `json:"environment,omitempty"`
}

type ProgramEnvVar struct {
	Key         string `json:"key"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
}

const defaultProgramEntry = "index.wasm"

func (m ProgramManifest) mainEntry() string {
	if m.Main != "" {
		return m.Main
	}
	return defaultProgramEntry
}

// Program is the projection of a MutateProgram/DeleteProgram event: a WASM
// bundle content-addressed as a collection.
type Program struct {
	ID           uuid.UUID
	CollectionID [32]byte
	Manifest     ProgramManifest
	HTMLIndex    *[32]byte
	EntryHash    [32]byte
	CreatedAt    time.Time
	Deleted      bool
}

// ProgramFromEvent resolves a Program projection: the event's content is the
// collection hash; program.json, index.html (optional), and the manifest's
// main entry are located within it.
func ProgramFromEvent(e *Event, store BlobStore) (*Program, error) {
	id, ok := e.DataID()
	if !ok {
		return nil, NewError(ErrValidation, "program event %x missing id tag", e.ID[:4])
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, NewError(ErrValidation, "program event %x: invalid id tag", e.ID[:4])
	}
	p := &Program{ID: uid, CreatedAt: time.Unix(e.CreatedAt, 0), Deleted: e.Kind.IsDelete()}
	if e.Kind.IsDelete() {
		return p, nil
	}
	p.CollectionID = e.Content.Hash

	coll, err := FetchCollection(bgCtx, store, e.Content.Hash)
	if err != nil {
		return nil, err
	}
	manifestHash, ok := coll.Lookup("program.json")
	if !ok {
		return nil, NewError(ErrValidation, "program %s: collection missing program.json", uid)
	}
	manifestBytes, err := store.Get(bgCtx, manifestHash)
	if err != nil {
		return nil, err
	}
	var manifest ProgramManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, WrapError(ErrValidation, err, "program %s: invalid manifest json", uid)
	}
	p.Manifest = manifest

	if h, ok := coll.Lookup("index.html"); ok {
		p.HTMLIndex = &h
	}
	entryHash, ok := coll.Lookup(manifest.mainEntry())
	if !ok {
		return nil, NewError(ErrValidation, "program %s: collection missing entry %s", uid, manifest.mainEntry())
	}
	p.EntryHash = entryHash
	return p, nil
}

// Programs is the typed-entity facade for WASM program bundles.
type Programs struct{ space *Space }

func (s *Space) Programs() *Programs { return &Programs{space: s} }

// defaultIgnore names the files a program directory walk skips before
// content-addressing the rest.
var defaultIgnore = []string{".git", ".gitignore", "*.swp", ".DS_Store"}

// Mutate implements program ingestion: refuse a directory
// without program.json, walk it into a Collection, and sign+ingest a
// MutateProgram event whose content is the collection's own hash.
func (p *Programs) Mutate(author ed25519.PrivateKey, id uuid.UUID, directory string) (*Program, error) {
	manifestPath := filepath.Join(directory, "program.json")
	manifestBytes, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, NewError(ErrValidation, "program directory %s has no program.json", directory)
	}
	var manifest ProgramManifest
	if err := json.Unmarshal(manifestBytes, &manifest); err != nil {
		return nil, WrapError(ErrValidation, err, "invalid program.json in %s", directory)
	}
	if manifest.Name == "" || manifest.Version == "" {
		return nil, NewError(ErrValidation, "program.json must set name and version")
	}

	local, ok := p.space.Blobs.(*LocalBlobStore)
	if !ok {
		return nil, NewError(ErrIO, "program ingestion requires a local blob store")
	}
	coll, err := BuildCollectionFromDir(local, directory, defaultIgnore)
	if err != nil {
		return nil, err
	}
	if _, ok := coll.Lookup("program.json"); !ok {
		return nil, NewError(ErrValidation, "program directory %s has no program.json", directory)
	}
	if _, ok := coll.Lookup(manifest.mainEntry()); !ok {
		return nil, NewError(ErrValidation, "program directory %s missing entry file %s", directory, manifest.mainEntry())
	}

	collHash, err := PutCollection(bgCtx, p.space.Blobs, coll)
	if err != nil {
		return nil, err
	}

	e, err := p.space.codec.Sign(author, time.Now().Unix(), KindMutateProgram, []Tag{{Name: "id", Value: id.String()}}, HashLinkBare(collHash, nil))
	if err != nil {
		return nil, err
	}
	if err := p.space.Store.Ingest(e); err != nil {
		return nil, err
	}
	if p.space.broadcaster != nil {
		p.space.broadcaster.BroadcastEvent(e)
	}

	return ProgramFromEvent(e, p.space.Blobs)
}

// Delete ingests a DeleteProgram event for id.
func (p *Programs) Delete(author ed25519.PrivateKey, id uuid.UUID) error {
	_, err := p.space.signAndIngest(author, KindDeleteProgram, id, nil, nil)
	return err
}

// Get returns the latest Program projection for id.
func (p *Programs) Get(id uuid.UUID) (*Program, error) {
	mutated, mErr := p.space.Store.LatestOf(KindMutateProgram, id.String())
	deleted, dErr := p.space.Store.LatestOf(KindDeleteProgram, id.String())
	latest, err := pickLatest(mutated, mErr, deleted, dErr)
	if err != nil {
		return nil, err
	}
	return ProgramFromEvent(latest, p.space.Blobs)
}

// List returns the latest non-deleted Program projections, newest first.
func (p *Programs) List(offset, limit int) ([]*Program, error) {
	events, err := p.space.Store.List(KindMutateProgram, 0, offset+limit+64)
	if err != nil {
		return nil, err
	}
	var out []*Program
	for _, e := range events {
		id, _ := e.DataID()
		uid, err := uuid.Parse(id)
		if err != nil {
			continue
		}
		prog, err := p.Get(uid)
		if err != nil || prog.Deleted {
			continue
		}
		out = append(out, prog)
	}
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}
