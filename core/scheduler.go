package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ScheduledJob is the job description blob a Scheduler writes to BlobStore
// and points to from jobs/<id>.json.
type ScheduledJob struct {
	ID          uuid.UUID        `json:"id"`
	Scope       uuid.UUID        `json:"scope"`
	CreatedAt   time.Time        `json:"created_at"`
	Description JobDescription   `json:"description"`
	Result      *JobResult       `json:"result,omitempty"`
}

// JobDescription is the immutable request a Worker executes.
type JobDescription struct {
	JobType   string            `json:"job_type"` // "wasm" | "docker"
	ProgramID uuid.UUID         `json:"program_id"`
	Author    string            `json:"author"` // hex pubkey, whose identity host calls run under
	Config    map[string]string `json:"config,omitempty"`
	Downloads []string          `json:"downloads,omitempty"` // symbolic blob names to prefetch
	Uploads   []string          `json:"uploads,omitempty"`
	Timeout   time.Duration     `json:"timeout"`
}

// JobOutput is the tagged success payload of a JobResult.
type JobOutput struct {
	Wasm *WasmOutput `json:"wasm,omitempty"`
}

type WasmOutput struct {
	Output string `json:"output"`
}

// JobResult is the outcome a Worker writes back into the job blob.
type JobResult struct {
	Status  string     `json:"status"` // "ok" | "timeout" | "error"
	Output  *JobOutput `json:"output,omitempty"`
	Message string     `json:"message,omitempty"`
	Worker  string     `json:"worker,omitempty"`
}

const defaultJobTimeout = time.Hour

// Scheduler publishes program-run intents to ReplicatedKV and awaits their
// resolution by a Worker.
type Scheduler struct {
	kv    ReplicatedKV
	blobs BlobStore
	log   *logrus.Entry
}

func NewScheduler(kv ReplicatedKV, blobs BlobStore, log *logrus.Logger) *Scheduler {
	return &Scheduler{kv: kv, blobs: blobs, log: log.WithField("component", "scheduler")}
}

func jobKey(id uuid.UUID) string           { return fmt.Sprintf("jobs/%s.json", id) }
func jobStatusPrefix(id uuid.UUID) string  { return fmt.Sprintf("jobs/status/%s/", id) }
func jobStatusKey(id uuid.UUID, t string) string { return jobStatusPrefix(id) + t }
func jobAssignKey(id uuid.UUID, workerKey string) string {
	return fmt.Sprintf("jobs/assign/%s/%s", id, workerKey)
}

// statusScheduling, statusCanceled etc. are the scheduler-side status
// tokens written to jobs/status/<id>/<token>.
const (
	statusScheduling = "scheduling"
	statusCanceled   = "canceled"
)

func statusAssigned(workerKey string) string  { return "assigned-" + workerKey }
func statusCompleted(workerKey string) string { return "completed-" + workerKey }
func statusCanceledBy(workerKey string) string { return "canceled-" + workerKey }

// putJobBlob serializes job and stores it, returning its content hash.
func (s *Scheduler) putJobBlob(ctx context.Context, job ScheduledJob) ([32]byte, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return [32]byte{}, WrapError(ErrIO, err, "marshal job %s", job.ID)
	}
	return s.blobs.Put(ctx, data)
}

func (s *Scheduler) getJobBlob(ctx context.Context, hash [32]byte) (ScheduledJob, error) {
	var job ScheduledJob
	data, err := s.blobs.Get(ctx, hash)
	if err != nil {
		return job, err
	}
	if err := json.Unmarshal(data, &job); err != nil {
		return job, WrapError(ErrIO, err, "decode job blob")
	}
	return job, nil
}

// RunJob writes the job description and marks it scheduling.
func (s *Scheduler) RunJob(ctx context.Context, scope uuid.UUID, id uuid.UUID, desc JobDescription) error {
	if desc.Timeout == 0 {
		desc.Timeout = defaultJobTimeout
	}
	job := ScheduledJob{ID: id, Scope: scope, CreatedAt: time.Now(), Description: desc}
	hash, err := s.putJobBlob(ctx, job)
	if err != nil {
		return err
	}
	if err := s.kv.Put(ctx, jobKey(id), hash[:]); err != nil {
		return err
	}
	s.log.WithField("job", id).Info("scheduled")
	if active != nil {
		active.JobsScheduled.Inc()
	}
	return s.kv.Put(ctx, jobStatusKey(id, statusScheduling), hash[:])
}

// RunJobAndWait schedules a job and blocks until a completed(w) status is
// observed, returning the worker's result. The watch subscription is
// established before the job is written, so no transition can be missed.
func (s *Scheduler) RunJobAndWait(ctx context.Context, scope, id uuid.UUID, desc JobDescription) (*JobResult, error) {
	changes, unsub := s.kv.Watch(ctx, jobStatusPrefix(id))
	defer unsub()

	if err := s.RunJob(ctx, scope, id, desc); err != nil {
		return nil, err
	}

	for {
		select {
		case <-ctx.Done():
			return nil, NewError(ErrTimeout, "run_job_and_wait canceled for %s", id)
		case change, ok := <-changes:
			if !ok {
				return nil, NewError(ErrIO, "status watch closed for %s", id)
			}
			token := strings.TrimPrefix(change.Key, jobStatusPrefix(id))
			if strings.HasPrefix(token, "completed-") {
				var hash [32]byte
				copy(hash[:], change.Value)
				job, err := s.getJobBlob(ctx, hash)
				if err != nil {
					return nil, err
				}
				return job.Result, nil
			}
			if token == statusCanceled || strings.HasPrefix(token, "canceled-") {
				return nil, NewError(ErrConflictClosed, "job %s canceled", id)
			}
		}
	}
}

// Cancel marks id canceled unless it has already completed.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID) error {
	statuses, err := s.kv.List(ctx, jobStatusPrefix(id))
	if err != nil {
		return err
	}
	for key := range statuses {
		token := strings.TrimPrefix(key, jobStatusPrefix(id))
		if strings.HasPrefix(token, "completed-") {
			return NewError(ErrConflictClosed, "job %s already completed", id)
		}
	}
	assigned := assignedWorker(statuses)
	if assigned != "" {
		return s.kv.Put(ctx, jobStatusKey(id, statusCanceledBy(assigned)), nil)
	}
	return s.kv.Put(ctx, jobStatusKey(id, statusCanceled), nil)
}

// assignedWorker returns the workerKey of the assigned-<w> token among
// statuses, or "" if none.
func assignedWorker(statuses map[string][]byte) string {
	for key := range statuses {
		idx := strings.LastIndex(key, "/")
		token := key[idx+1:]
		if strings.HasPrefix(token, "assigned-") {
			return strings.TrimPrefix(token, "assigned-")
		}
	}
	return ""
}

// Run watches worker/status/<id>/<workerKey>/Requested markers and assigns each job to
// whichever worker's Requested arrives first, implementing the scheduler
// side of the race Assign's doc comment describes. It runs until ctx is
// canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	changes, unsub := s.kv.Watch(ctx, "worker/status/")
	defer unsub()

	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			s.onWorkerStatus(ctx, change)
		}
	}
}

func (s *Scheduler) onWorkerStatus(ctx context.Context, change KVChange) {
	id, rest, ok := parseJobID(change.Key, "worker/status/")
	if !ok {
		return
	}
	idx := strings.Index(rest, "/")
	workerKey, token := rest, ""
	if idx >= 0 {
		workerKey, token = rest[:idx], rest[idx+1:]
	}
	if token != execRequested {
		return
	}
	if err := s.Assign(ctx, id, workerKey); err != nil && !IsKind(err, ErrConflictClosed) {
		s.log.WithError(err).WithField("job", id).WithField("worker", workerKey).Debug("assign failed")
	}
}

// Assign implements the scheduler's side of the race for a job: on
// observing the first worker's Requested marker for a job still in
// scheduling, assign it that job. Run drives it from a subscription over
// worker/status/<id>/<workerKey>/Requested.
func (s *Scheduler) Assign(ctx context.Context, id uuid.UUID, workerKey string) error {
	statuses, err := s.kv.List(ctx, jobStatusPrefix(id))
	if err != nil {
		return err
	}
	for key := range statuses {
		idx := strings.LastIndex(key, "/")
		token := key[idx+1:]
		if strings.HasPrefix(token, "assigned-") || strings.HasPrefix(token, "completed-") || strings.HasPrefix(token, "canceled") {
			return NewError(ErrConflictClosed, "job %s no longer schedulable", id)
		}
	}
	hash, ok := statuses[jobStatusKey(id, statusScheduling)]
	if !ok {
		return NewError(ErrNotFound, "job %s not in scheduling state", id)
	}
	if err := s.kv.Put(ctx, jobAssignKey(id, workerKey), hash); err != nil {
		return err
	}
	return s.kv.Put(ctx, jobStatusKey(id, statusAssigned(workerKey)), hash)
}
