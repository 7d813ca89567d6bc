package core

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Worker status tokens. Unlike the scheduler's tokens,
// these name the worker's own view of one job's execution, and merge
// monotonically.
const (
	execUnknown   = "Unknown"
	execRequested = "Requested"
	execSkipped   = "Skipped"
	execRunning   = "Running"
	execCompleted = "Completed"
)

func workerStatusKey(jobID uuid.UUID, workerKey, exec string) string {
	return fmt.Sprintf("worker/status/%s/%s/%s", jobID, workerKey, exec)
}

// Worker observes a space's scheduling document, claims matching jobs, and
// runs them through the registered Executor for their job type.
type Worker struct {
	key       string // this worker's identity within jobs/assign/<id>/<workerKey>
	kv        ReplicatedKV
	blobs     BlobStore
	space     *Space
	executors *ExecutorRegistry
	workDir   string
	enabled   bool
	author    ed25519.PrivateKey
	log       *logrus.Entry

	mu      sync.Mutex
	guarded map[uuid.UUID]bool // drops duplicate assignment notifications
}

// NewWorker builds a Worker identified by key, rooted at workDir for
// per-job download/upload scratch space.
func NewWorker(key string, kv ReplicatedKV, blobs BlobStore, space *Space, executors *ExecutorRegistry, author ed25519.PrivateKey, workDir string, log *logrus.Logger) *Worker {
	return &Worker{
		key:       key,
		kv:        kv,
		blobs:     blobs,
		space:     space,
		executors: executors,
		workDir:   workDir,
		enabled:   true,
		author:    author,
		guarded:   make(map[uuid.UUID]bool),
		log:       log.WithField("component", "worker").WithField("worker", key),
	}
}

// Disable turns off this worker's participation in scheduling.
func (w *Worker) Disable() { w.enabled = false }

// Run watches jobs/status/*/scheduling and jobs/assign/*/<w.key> until ctx
// is canceled.
func (w *Worker) Run(ctx context.Context) error {
	scheduling, unsubS := w.kv.Watch(ctx, "jobs/status/")
	defer unsubS()
	assignments, unsubA := w.kv.Watch(ctx, "jobs/assign/")
	defer unsubA()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-scheduling:
			if !ok {
				return nil
			}
			w.onStatusChange(ctx, change)
		case change, ok := <-assignments:
			if !ok {
				return nil
			}
			w.onAssignment(ctx, change)
		}
	}
}

func parseJobID(key, prefix string) (uuid.UUID, string, bool) {
	rest := strings.TrimPrefix(key, prefix)
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 {
		return uuid.Nil, "", false
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, "", false
	}
	return id, parts[1], true
}

// onStatusChange handles a jobs/status/<id>/<token> change, publishing
// Requested when a fresh scheduling marker appears for a type this worker
// can execute.
func (w *Worker) onStatusChange(ctx context.Context, change KVChange) {
	id, token, ok := parseJobID(change.Key, "jobs/status/")
	if !ok || token != statusScheduling || !w.enabled {
		return
	}
	var hash [32]byte
	copy(hash[:], change.Value)
	data, err := w.blobs.Get(ctx, hash)
	if err != nil {
		w.log.WithError(err).WithField("job", id).Warn("fetch job blob failed")
		return
	}
	var job ScheduledJob
	if err := json.Unmarshal(data, &job); err != nil {
		w.log.WithError(err).WithField("job", id).Warn("decode job blob failed")
		return
	}
	if _, ok := w.executors.Lookup(job.Description.JobType); !ok {
		return
	}
	if err := w.kv.Put(ctx, workerStatusKey(id, w.key, execRequested), hash[:]); err != nil {
		w.log.WithError(err).WithField("job", id).Warn("publish Requested failed")
	}
}

// onAssignment handles a jobs/assign/<id>/<workerKey> change. When the
// assignment names this worker it claims the job; when it names another
// worker and this one had also published Requested for the same job, it
// transitions itself to Skipped so a later worker never races the winner.
func (w *Worker) onAssignment(ctx context.Context, change KVChange) {
	id, workerKey, ok := parseJobID(change.Key, "jobs/assign/")
	if !ok {
		return
	}
	if workerKey != w.key {
		w.skipIfRequested(ctx, id)
		return
	}

	w.mu.Lock()
	if w.guarded[id] {
		w.mu.Unlock()
		return
	}
	w.guarded[id] = true
	w.mu.Unlock()

	status, err := w.kv.Get(ctx, workerStatusKey(id, w.key, execRequested))
	if err != nil || status == nil {
		w.log.WithField("job", id).Warn("assigned without a prior Requested marker")
		return
	}

	var hash [32]byte
	copy(hash[:], change.Value)
	if err := w.kv.Put(ctx, workerStatusKey(id, w.key, execRunning), hash[:]); err != nil {
		w.log.WithError(err).WithField("job", id).Warn("publish Running failed")
		return
	}

	go w.execute(context.Background(), id, hash)
}

// skipIfRequested publishes Skipped for id if this worker had previously
// published Requested for it, once per job.
func (w *Worker) skipIfRequested(ctx context.Context, id uuid.UUID) {
	w.mu.Lock()
	if w.guarded[id] {
		w.mu.Unlock()
		return
	}
	status, err := w.kv.Get(ctx, workerStatusKey(id, w.key, execRequested))
	if err != nil || status == nil {
		w.mu.Unlock()
		return
	}
	w.guarded[id] = true
	w.mu.Unlock()

	if err := w.kv.Put(ctx, workerStatusKey(id, w.key, execSkipped), status); err != nil {
		w.log.WithError(err).WithField("job", id).Warn("publish Skipped failed")
	}
}

// execute runs a single assigned job end to end: download staging, timeout
// enforcement, executor dispatch, and result publication. It never panics
// the worker process; any failure becomes a JobResult.
func (w *Worker) execute(ctx context.Context, id uuid.UUID, hash [32]byte) {
	result := w.runJobSafely(ctx, id, hash)
	if active != nil {
		active.JobsCompleted.WithLabelValues(result.Status).Inc()
	}

	job, err := w.loadJob(ctx, hash)
	if err != nil {
		w.log.WithError(err).WithField("job", id).Error("reload job blob before completion")
		return
	}
	job.Result = result

	newHash, err := w.putJob(ctx, job)
	if err != nil {
		w.log.WithError(err).WithField("job", id).Error("persist completed job result")
		return
	}
	if err := w.kv.Put(ctx, workerStatusKey(id, w.key, execCompleted), newHash[:]); err != nil {
		w.log.WithError(err).WithField("job", id).Error("publish Completed")
		return
	}
	if err := w.kv.Put(ctx, jobStatusKey(id, statusCompleted(w.key)), newHash[:]); err != nil {
		w.log.WithError(err).WithField("job", id).Error("publish completed-<w> scheduler status")
	}
}

func (w *Worker) runJobSafely(ctx context.Context, id uuid.UUID, hash [32]byte) (result *JobResult) {
	defer func() {
		if r := recover(); r != nil {
			result = &JobResult{Status: "error", Message: fmt.Sprintf("executor panic: %v", r), Worker: w.key}
		}
	}()

	job, err := w.loadJob(ctx, hash)
	if err != nil {
		return &JobResult{Status: "error", Message: err.Error(), Worker: w.key}
	}

	exec, ok := w.executors.Lookup(job.Description.JobType)
	if !ok {
		return &JobResult{Status: "error", Message: "no executor for job type " + job.Description.JobType, Worker: w.key}
	}

	scopeDir := filepath.Join(w.workDir, job.Scope.String(), id.String())
	downloadDir := filepath.Join(scopeDir, "downloads")
	uploadDir := filepath.Join(scopeDir, "uploads")
	if err := os.MkdirAll(downloadDir, 0o755); err != nil {
		return &JobResult{Status: "error", Message: err.Error(), Worker: w.key}
	}
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return &JobResult{Status: "error", Message: err.Error(), Worker: w.key}
	}
	defer os.RemoveAll(scopeDir)

	blobsFacade := NewBlobs(w.space, w.key)
	for _, name := range job.Description.Downloads {
		data, err := blobsFacade.GetObject(ctx, name)
		if err != nil {
			return &JobResult{Status: "error", Message: fmt.Sprintf("download %s: %v", name, err), Worker: w.key}
		}
		if err := os.WriteFile(filepath.Join(downloadDir, filepath.Base(name)), data, 0o644); err != nil {
			return &JobResult{Status: "error", Message: err.Error(), Worker: w.key}
		}
	}

	timeout := job.Description.Timeout
	if timeout == 0 {
		timeout = defaultJobTimeout
	}
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wasmBytes []byte
	if job.Description.JobType == "wasm" {
		program, err := w.space.Programs().Get(job.Description.ProgramID)
		if err != nil {
			return &JobResult{Status: "error", Message: fmt.Sprintf("load program %s: %v", job.Description.ProgramID, err), Worker: w.key}
		}
		wasmBytes, err = w.blobs.Get(ctx, program.EntryHash)
		if err != nil {
			return &JobResult{Status: "error", Message: fmt.Sprintf("fetch wasm entry for program %s: %v", job.Description.ProgramID, err), Worker: w.key}
		}
	}

	report, err := exec.Execute(execCtx, ExecutionRequest{
		Job:         job,
		WasmBytes:   wasmBytes,
		DownloadDir: downloadDir,
		UploadDir:   uploadDir,
		Space:       w.space,
		Author:      w.author,
	})
	if err != nil {
		if IsKind(err, ErrTimeout) {
			return &JobResult{Status: "timeout", Message: err.Error(), Worker: w.key}
		}
		return &JobResult{Status: "error", Message: err.Error(), Worker: w.key}
	}
	return &JobResult{Status: "ok", Output: &JobOutput{Wasm: &WasmOutput{Output: report.Output}}, Worker: w.key}
}

func (w *Worker) loadJob(ctx context.Context, hash [32]byte) (ScheduledJob, error) {
	var job ScheduledJob
	data, err := w.blobs.Get(ctx, hash)
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(data, &job); err != nil {
		return job, WrapError(ErrIO, err, "decode job blob")
	}
	return job, nil
}

func (w *Worker) putJob(ctx context.Context, job ScheduledJob) ([32]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return [32]byte{}, WrapError(ErrIO, err, "marshal job %s", job.ID)
	}
	return w.blobs.Put(ctx, data)
}
