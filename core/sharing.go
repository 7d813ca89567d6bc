package core

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// Sharing implements space export/import/merge over content-addressed
// collections.
type Sharing struct {
	nodeAddr string
	log      *logrus.Entry
}

func NewSharing(nodeAddr string, log *logrus.Logger) *Sharing {
	return &Sharing{nodeAddr: nodeAddr, log: log.WithField("component", "sharing")}
}

// Export snapshots space into a two-entry collection (space.json, space.db)
// and returns a Ticket describing where to fetch it.
func (sh *Sharing) Export(space *Space) (*Ticket, error) {
	ctx := context.Background()

	meta, err := space.SpaceMeta().Latest()
	if err != nil {
		return nil, err
	}
	spaceJSON, err := space.resolveContent(meta.Content)
	if err != nil {
		return nil, err
	}
	h1, err := space.Blobs.Put(ctx, spaceJSON)
	if err != nil {
		return nil, err
	}

	// The store runs in WAL mode; fold the WAL into the main file so the
	// snapshot read below holds every committed event.
	if _, err := space.Store.db.Exec(`PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return nil, WrapError(ErrIO, err, "checkpoint event store %s", space.Store.Path())
	}
	dbBytes, err := os.ReadFile(space.Store.Path())
	if err != nil {
		return nil, WrapError(ErrIO, err, "read event store file %s", space.Store.Path())
	}
	h2, err := space.Blobs.Put(ctx, dbBytes)
	if err != nil {
		return nil, err
	}

	coll := Collection{
		{Name: "space.json", Hash: h1},
		{Name: "space.db", Hash: h2},
	}
	root, err := PutCollection(ctx, space.Blobs, coll)
	if err != nil {
		return nil, err
	}

	sh.log.WithField("space", space.ID).WithField("root", hex.EncodeToString(root[:])).Info("exported space")
	return &Ticket{NodeAddr: sh.nodeAddr, RootHash: root, Format: HashSeq}, nil
}

// spaceDataPath returns the path an imported event store file is written to.
func spaceDataPath(dataRoot, name string) string {
	return filepath.Join(dataRoot, name+".db")
}

// Import fetches a shared collection and either registers a brand-new local
// space or merges it into an already-known one.
func (sh *Sharing) Import(ctx context.Context, ticket Ticket, blobs BlobStore, registry *SpaceRegistry, dataRoot string, codec *EventCodec, log *logrus.Logger) (*Space, error) {
	coll, err := FetchCollection(ctx, blobs, ticket.RootHash)
	if err != nil {
		return nil, err
	}
	spaceJSONHash, ok := coll.Lookup("space.json")
	if !ok {
		return nil, NewError(ErrValidation, "share collection missing space.json")
	}
	dbHash, ok := coll.Lookup("space.db")
	if !ok {
		return nil, NewError(ErrValidation, "share collection missing space.db")
	}

	spaceJSON, err := blobs.Get(ctx, spaceJSONHash)
	if err != nil {
		return nil, err
	}
	var details SpaceDetails
	if err := json.Unmarshal(spaceJSON, &details); err != nil {
		return nil, WrapError(ErrValidation, err, "decode space.json")
	}

	if ref, err := registry.Get(details.ID); err == nil {
		existing, openErr := OpenEventStore(spaceDataPath(dataRoot, ref.Name), codec, log)
		if openErr != nil {
			return nil, openErr
		}
		defer existing.Close()
		if err := sh.mergeDB(ctx, existing, blobs, dbHash); err != nil {
			return nil, err
		}
		sh.log.WithField("space", details.ID).Info("merged imported events into existing space")
		return nil, nil
	}

	dbBytes, err := blobs.Get(ctx, dbHash)
	if err != nil {
		return nil, err
	}
	path := spaceDataPath(dataRoot, details.Name)
	if err := os.WriteFile(path, dbBytes, 0o600); err != nil {
		return nil, WrapError(ErrIO, err, "write imported event store to %s", path)
	}

	store, err := OpenEventStore(path, codec, log)
	if err != nil {
		return nil, err
	}
	secret, err := decodeHashHex(details.Secret)
	if err != nil {
		return nil, WrapError(ErrValidation, err, "decode space secret")
	}
	if err := registry.Register(SpaceRef{ID: details.ID, Name: details.Name, Secret: details.Secret}); err != nil {
		return nil, err
	}
	sh.log.WithField("space", details.ID).Info("imported new space")
	return NewSpace(details.ID, details.Name, secret, store, blobs, nil, log), nil
}

// mergeDB attaches a remote snapshot database and re-ingests every event
// from it that isn't already present locally, including history already
// superseded by a later event, deduplicating by id. Blob content referenced
// by the newly ingested events is resolved lazily on first access, same as
// any other ingested event.
func (sh *Sharing) mergeDB(ctx context.Context, local *EventStore, blobs BlobStore, remoteDBHash [32]byte) error {
	remoteBytes, err := blobs.Get(ctx, remoteDBHash)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp("", "squiggle-merge-*.db")
	if err != nil {
		return WrapError(ErrIO, err, "create temp merge db")
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)
	if _, err := tmp.Write(remoteBytes); err != nil {
		tmp.Close()
		return WrapError(ErrIO, err, "write temp merge db")
	}
	tmp.Close()

	remote, err := OpenEventStore(tmpPath, local.codec, logrus.StandardLogger())
	if err != nil {
		return err
	}
	defer remote.Close()

	merged := 0
	for _, kind := range []Kind{
		KindMutateUser, KindDeleteUser,
		KindMutateSpace, KindDeleteSpace,
		KindMutateProgram, KindDeleteProgram,
		KindMutateTable, KindDeleteTable,
		KindMutateRow, KindDeleteRow,
		KindMutateSecret, KindDeleteSecret,
	} {
		offset := 0
		for {
			events, err := remote.ListAll(kind, offset, 256)
			if err != nil || len(events) == 0 {
				break
			}
			for _, e := range events {
				if has, _ := local.Has(e.IDHex()); has {
					continue
				}
				if err := local.Ingest(e); err == nil {
					merged++
				}
			}
			if len(events) < 256 {
				break
			}
			offset += 256
		}
	}
	sh.log.WithField("merged", merged).Debug("merge_db complete")
	return nil
}
