package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

func encodeKVCommand(cmd kvCommand) ([]byte, error) {
	b, err := json.Marshal(cmd)
	if err != nil {
		return nil, WrapError(ErrIO, err, "marshal kv command")
	}
	return b, nil
}

func decodeKVCommand(data []byte) (kvCommand, error) {
	var cmd kvCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("decode kv command: %w", err)
	}
	return cmd, nil
}

// KVChange is a single observed mutation of a ReplicatedKV key, delivered to
// subscribers in commit order — the Scheduler and Worker watch job and
// status keys this way.
type KVChange struct {
	Key    string
	Value  []byte // nil on delete
	Author string
}

// ReplicatedKV is the strongly consistent, Raft-replicated key-value space
// backing the Scheduler/Worker job-assignment protocol. Keys are
// '/'-delimited paths; Watch delivers committed changes under a prefix.
// RaftKV never blocks Apply on a slow subscriber: a change is dropped for a
// subscriber whose 64-entry buffer is full.
type ReplicatedKV interface {
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) (map[string][]byte, error)
	Watch(ctx context.Context, prefix string) (<-chan KVChange, Unsubscribe)
	Close() error
}

// RaftKV is a ReplicatedKV backed by hashicorp/raft with a raft-boltdb log
// store and a bbolt-backed state machine (log+stable store, single bbolt FSM).
type RaftKV struct {
	mu        sync.RWMutex
	raft      *raft.Raft
	fsm       *kvFSM
	transport *raft.NetworkTransport
	logStore  raft.LogStore
	stableStore raft.StableStore
	log       *logrus.Entry
}

// RaftKVConfig describes how to bring up a single-or-multi-node Raft group.
type RaftKVConfig struct {
	NodeID   string
	BindAddr string
	DataDir  string
	Bootstrap bool
	Log      *logrus.Logger
}

// NewRaftKV starts (or rejoins) a Raft-replicated KV store rooted at
// cfg.DataDir. When cfg.Bootstrap is true and no existing state is found, it
// bootstraps a single-node cluster; otherwise callers add this node via the
// leader's raft.AddVoter out of band.
func NewRaftKV(cfg RaftKVConfig) (*RaftKV, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, WrapError(ErrIO, err, "mkdir raft data dir %s", cfg.DataDir)
	}

	boltPath := filepath.Join(cfg.DataDir, "kv.db")
	db, err := bolt.Open(boltPath, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, WrapError(ErrIO, err, "open bbolt fsm store %s", boltPath)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte("kv"))
		return err
	}); err != nil {
		return nil, WrapError(ErrIO, err, "init bbolt bucket")
	}
	fsm := &kvFSM{db: db, subs: make(map[int]kvSub)}

	logStorePath := filepath.Join(cfg.DataDir, "raft-log.db")
	logStore, err := raftboltdb.NewBoltStore(logStorePath)
	if err != nil {
		return nil, WrapError(ErrIO, err, "open raft log store")
	}
	stableStorePath := filepath.Join(cfg.DataDir, "raft-stable.db")
	stableStore, err := raftboltdb.NewBoltStore(stableStorePath)
	if err != nil {
		return nil, WrapError(ErrIO, err, "open raft stable store")
	}
	snapshots, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, WrapError(ErrIO, err, "open raft snapshot store")
	}

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, WrapError(ErrIO, err, "resolve raft bind addr %s", cfg.BindAddr)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, WrapError(ErrIO, err, "open raft transport")
	}

	raftCfg := raft.DefaultConfig()
	raftCfg.LocalID = raft.ServerID(cfg.NodeID)

	r, err := raft.NewRaft(raftCfg, fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, WrapError(ErrIO, err, "start raft")
	}

	if cfg.Bootstrap {
		hasState, err := raft.HasExistingState(logStore, stableStore, snapshots)
		if err != nil {
			return nil, WrapError(ErrIO, err, "check raft existing state")
		}
		if !hasState {
			cfgFuture := r.BootstrapCluster(raft.Configuration{
				Servers: []raft.Server{{ID: raftCfg.LocalID, Address: transport.LocalAddr()}},
			})
			if err := cfgFuture.Error(); err != nil {
				return nil, WrapError(ErrIO, err, "bootstrap raft cluster")
			}
		}
	}

	return &RaftKV{
		raft:        r,
		fsm:         fsm,
		transport:   transport,
		logStore:    logStore,
		stableStore: stableStore,
		log:         cfg.Log.WithField("component", "replicatedkv").WithField("node", cfg.NodeID),
	}, nil
}

type kvCommand struct {
	Op     string `json:"op"` // "put" | "delete"
	Key    string `json:"key"`
	Value  []byte `json:"value,omitempty"`
	Author string `json:"author,omitempty"`
}

func (k *RaftKV) apply(ctx context.Context, cmd kvCommand) error {
	data, err := encodeKVCommand(cmd)
	if err != nil {
		return err
	}
	deadline := 10 * time.Second
	if d, ok := ctx.Deadline(); ok {
		deadline = time.Until(d)
	}
	future := k.raft.Apply(data, deadline)
	if err := future.Error(); err != nil {
		return WrapError(ErrIO, err, "apply raft command")
	}
	if applyErr, ok := future.Response().(error); ok && applyErr != nil {
		return WrapError(ErrIO, applyErr, "fsm apply")
	}
	return nil
}

func (k *RaftKV) Put(ctx context.Context, key string, value []byte) error {
	if k.raft.State() != raft.Leader {
		return NewError(ErrIO, "not raft leader, cannot write %s", key)
	}
	return k.apply(ctx, kvCommand{Op: "put", Key: key, Value: value})
}

func (k *RaftKV) Delete(ctx context.Context, key string) error {
	if k.raft.State() != raft.Leader {
		return NewError(ErrIO, "not raft leader, cannot delete %s", key)
	}
	return k.apply(ctx, kvCommand{Op: "delete", Key: key})
}

func (k *RaftKV) Get(ctx context.Context, key string) ([]byte, error) {
	return k.fsm.get(key)
}

func (k *RaftKV) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	return k.fsm.list(prefix)
}

func (k *RaftKV) Watch(ctx context.Context, prefix string) (<-chan KVChange, Unsubscribe) {
	return k.fsm.subscribe(ctx, prefix)
}

func (k *RaftKV) Close() error {
	if err := k.raft.Shutdown().Error(); err != nil {
		k.log.WithError(err).Warn("raft shutdown")
	}
	k.transport.Close()
	return k.fsm.db.Close()
}

// kvFSM is the Raft finite state machine: a bbolt bucket of keys plus a
// registry of prefix subscribers notified synchronously on Apply.
type kvFSM struct {
	mu     sync.Mutex
	db     *bolt.DB
	subs   map[int]kvSub
	nextID int
}

type kvSub struct {
	prefix string
	ch     chan KVChange
}

func (f *kvFSM) Apply(log *raft.Log) interface{} {
	cmd, err := decodeKVCommand(log.Data)
	if err != nil {
		return err
	}
	err = f.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte("kv"))
		switch cmd.Op {
		case "put":
			return b.Put([]byte(cmd.Key), cmd.Value)
		case "delete":
			return b.Delete([]byte(cmd.Key))
		default:
			return fmt.Errorf("unknown kv command %q", cmd.Op)
		}
	})
	if err != nil {
		return err
	}

	var value []byte
	if cmd.Op == "put" {
		value = cmd.Value
	}
	f.notify(KVChange{Key: cmd.Key, Value: value, Author: cmd.Author})
	return nil
}

func (f *kvFSM) notify(change KVChange) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sub := range f.subs {
		if len(change.Key) < len(sub.prefix) || change.Key[:len(sub.prefix)] != sub.prefix {
			continue
		}
		select {
		case sub.ch <- change:
		default:
		}
	}
}

func (f *kvFSM) subscribe(ctx context.Context, prefix string) (<-chan KVChange, Unsubscribe) {
	ch := make(chan KVChange, 64)
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = kvSub{prefix: prefix, ch: ch}
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		delete(f.subs, id)
		f.mu.Unlock()
		close(ch)
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

func (f *kvFSM) get(key string) ([]byte, error) {
	var out []byte
	err := f.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte("kv")).Get([]byte(key))
		if v == nil {
			return NewError(ErrNotFound, "key %s not found", key)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

func (f *kvFSM) list(prefix string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := f.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte("kv")).Cursor()
		p := []byte(prefix)
		for k, v := c.Seek(p); k != nil && hasPrefix(k, p); k, v = c.Next() {
			out[string(k)] = append([]byte(nil), v...)
		}
		return nil
	})
	return out, err
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (f *kvFSM) Snapshot() (raft.FSMSnapshot, error) {
	return &kvSnapshot{}, nil
}

func (f *kvFSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()
	return nil
}

// kvSnapshot is a no-op FSMSnapshot: bbolt's own file already persists the
// state, so Raft snapshotting only needs to satisfy the interface to allow
// log compaction. A restarted node recovers its state from the bbolt file and
// replays only the log entries kept after the last snapshot; a node that
// installs this snapshot from a peer receives no state.
type kvSnapshot struct{}

func (s *kvSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }
func (s *kvSnapshot) Release()                             {}
