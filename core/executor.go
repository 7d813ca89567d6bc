package core

import "context"

// ExecutionRequest bundles everything an Executor needs to run one job,
// independent of which backend handles it.
type ExecutionRequest struct {
	Job         ScheduledJob
	WasmBytes   []byte
	DownloadDir string
	UploadDir   string
	Space       *Space
	Author      []byte // ed25519 private key bytes, the job's author identity
}

// Report is an executor's successful outcome.
type Report struct {
	Output string
}

// Executor is the closed set of job backends. The set is compiled in, not
// plugin-discovered.
type Executor interface {
	JobType() string
	Execute(ctx context.Context, req ExecutionRequest) (*Report, error)
}

// DockerExecutor is declared but not implemented: this deployment carries
// no container runtime, so every Docker job reports CapabilityUnavailable.
type DockerExecutor struct{}

func (DockerExecutor) JobType() string { return "docker" }

func (DockerExecutor) Execute(ctx context.Context, req ExecutionRequest) (*Report, error) {
	return nil, NewError(ErrCapabilityUnavailable, "docker executor not available on this node")
}

// ExecutorRegistry resolves a JobDescription.JobType to its Executor.
type ExecutorRegistry struct {
	executors map[string]Executor
}

func NewExecutorRegistry(executors ...Executor) *ExecutorRegistry {
	r := &ExecutorRegistry{executors: make(map[string]Executor, len(executors))}
	for _, e := range executors {
		r.executors[e.JobType()] = e
	}
	return r
}

func (r *ExecutorRegistry) Lookup(jobType string) (Executor, bool) {
	e, ok := r.executors[jobType]
	return e, ok
}
