package core_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/b5/squiggle/core"
)

func newTestLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return log
}

// fakeKV is an in-memory ReplicatedKV for exercising Scheduler/Worker
// without a real Raft cluster: a single map plus prefix-filtered fan-out
// channels, synchronous on Put/Delete.
type fakeKV struct {
	mu   sync.Mutex
	data map[string][]byte
	subs []fakeSub
}

type fakeSub struct {
	prefix string
	ch     chan core.KVChange
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string][]byte)}
}

func (k *fakeKV) Put(_ context.Context, key string, value []byte) error {
	k.mu.Lock()
	k.data[key] = value
	subs := append([]fakeSub(nil), k.subs...)
	k.mu.Unlock()
	k.notify(subs, core.KVChange{Key: key, Value: value})
	return nil
}

func (k *fakeKV) Get(_ context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.data[key], nil
}

func (k *fakeKV) Delete(_ context.Context, key string) error {
	k.mu.Lock()
	delete(k.data, key)
	subs := append([]fakeSub(nil), k.subs...)
	k.mu.Unlock()
	k.notify(subs, core.KVChange{Key: key, Value: nil})
	return nil
}

func (k *fakeKV) List(_ context.Context, prefix string) (map[string][]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make(map[string][]byte)
	for key, value := range k.data {
		if strings.HasPrefix(key, prefix) {
			out[key] = value
		}
	}
	return out, nil
}

func (k *fakeKV) Watch(ctx context.Context, prefix string) (<-chan core.KVChange, core.Unsubscribe) {
	ch := make(chan core.KVChange, 64)
	sub := fakeSub{prefix: prefix, ch: ch}
	k.mu.Lock()
	k.subs = append(k.subs, sub)
	k.mu.Unlock()

	cancel := func() {
		k.mu.Lock()
		defer k.mu.Unlock()
		for i, s := range k.subs {
			if s.ch == ch {
				k.subs = append(k.subs[:i], k.subs[i+1:]...)
				close(ch)
				return
			}
		}
	}
	go func() {
		<-ctx.Done()
		cancel()
	}()
	return ch, cancel
}

func (k *fakeKV) Close() error { return nil }

func (k *fakeKV) notify(subs []fakeSub, change core.KVChange) {
	for _, s := range subs {
		if strings.HasPrefix(change.Key, s.prefix) {
			select {
			case s.ch <- change:
			default:
			}
		}
	}
}

func TestSchedulerRunJobThenAssign(t *testing.T) {
	kv := newFakeKV()
	log := newTestLogger()
	blobs, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	scheduler := core.NewScheduler(kv, blobs, log)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	id := mustUUID(t)
	scope := mustUUID(t)
	desc := core.JobDescription{JobType: "wasm", ProgramID: mustUUID(t)}
	if err := scheduler.RunJob(ctx, scope, id, desc); err != nil {
		t.Fatalf("run_job: %v", err)
	}

	if err := scheduler.Assign(ctx, id, "worker-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	statuses, err := kv.List(ctx, "jobs/status/"+id.String()+"/")
	if err != nil {
		t.Fatalf("list statuses: %v", err)
	}
	found := false
	for key := range statuses {
		if strings.HasSuffix(key, "assigned-worker-1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an assigned-worker-1 status, got %+v", statuses)
	}
}

func TestSchedulerAssignRejectsAlreadyCompletedJob(t *testing.T) {
	kv := newFakeKV()
	log := newTestLogger()
	blobs, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	scheduler := core.NewScheduler(kv, blobs, log)
	ctx := context.Background()

	id := mustUUID(t)
	if err := scheduler.RunJob(ctx, mustUUID(t), id, core.JobDescription{JobType: "wasm"}); err != nil {
		t.Fatalf("run_job: %v", err)
	}
	if err := scheduler.Assign(ctx, id, "worker-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := kv.Put(ctx, "jobs/status/"+id.String()+"/completed-worker-1", []byte{}); err != nil {
		t.Fatalf("seed completed status: %v", err)
	}

	if err := scheduler.Assign(ctx, id, "worker-2"); !core.IsKind(err, core.ErrConflictClosed) {
		t.Fatalf("expected ErrConflictClosed once a job has completed, got %v", err)
	}
}

func TestSchedulerCancelMarksCanceledByAssignedWorker(t *testing.T) {
	kv := newFakeKV()
	log := newTestLogger()
	blobs, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	scheduler := core.NewScheduler(kv, blobs, log)
	ctx := context.Background()

	id := mustUUID(t)
	if err := scheduler.RunJob(ctx, mustUUID(t), id, core.JobDescription{JobType: "wasm"}); err != nil {
		t.Fatalf("run_job: %v", err)
	}
	if err := scheduler.Assign(ctx, id, "worker-1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if err := scheduler.Cancel(ctx, id); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	statuses, err := kv.List(ctx, "jobs/status/"+id.String()+"/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for key := range statuses {
		if strings.HasSuffix(key, "canceled-worker-1") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected canceled-worker-1 status, got %+v", statuses)
	}
}

func TestSchedulerRunAssignsOnWorkerRequested(t *testing.T) {
	kv := newFakeKV()
	log := newTestLogger()
	blobs, err := core.NewLocalBlobStore(t.TempDir())
	if err != nil {
		t.Fatalf("new local blob store: %v", err)
	}
	scheduler := core.NewScheduler(kv, blobs, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	time.Sleep(20 * time.Millisecond) // let Run's Watch subscription register before we publish

	id := mustUUID(t)
	if err := scheduler.RunJob(ctx, mustUUID(t), id, core.JobDescription{JobType: "wasm"}); err != nil {
		t.Fatalf("run_job: %v", err)
	}

	jobHash, err := kv.Get(ctx, "jobs/status/"+id.String()+"/scheduling")
	if err != nil {
		t.Fatalf("get scheduling hash: %v", err)
	}
	if err := kv.Put(ctx, "worker/status/"+id.String()+"/worker-1/Requested", jobHash); err != nil {
		t.Fatalf("publish requested: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		statuses, err := kv.List(ctx, "jobs/status/"+id.String()+"/")
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		assigned := false
		for key := range statuses {
			if strings.HasSuffix(key, "assigned-worker-1") {
				assigned = true
			}
		}
		if assigned {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("scheduler.Run never assigned the job to the requesting worker")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
