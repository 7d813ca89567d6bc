package core_test

import (
	"context"
	"testing"
	"time"

	"github.com/b5/squiggle/core"
)

type fakeExecutor struct{ output string }

func (fakeExecutor) JobType() string { return "test" }

func (e fakeExecutor) Execute(_ context.Context, _ core.ExecutionRequest) (*core.Report, error) {
	return &core.Report{Output: e.output}, nil
}

func TestWorkerRunsAssignedJobToCompletion(t *testing.T) {
	space, author := newTestSpace(t)
	kv := newFakeKV()
	log := newTestLogger()

	scheduler := core.NewScheduler(kv, space.Blobs, log)
	executors := core.NewExecutorRegistry(fakeExecutor{output: "done"})
	worker := core.NewWorker("worker-1", kv, space.Blobs, space, executors, author, t.TempDir(), log)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	go worker.Run(ctx)
	go scheduler.Run(ctx)
	time.Sleep(20 * time.Millisecond) // let both watch subscriptions register first

	id := mustUUID(t)
	desc := core.JobDescription{JobType: "test"}
	result, err := scheduler.RunJobAndWait(ctx, mustUUID(t), id, desc)
	if err != nil {
		t.Fatalf("run_job_and_wait: %v", err)
	}
	if result.Status != "ok" || result.Output == nil || result.Output.Wasm == nil || result.Output.Wasm.Output != "done" {
		t.Fatalf("unexpected job result: %+v", result)
	}
}

func TestWorkerDisabledNeverRequests(t *testing.T) {
	space, author := newTestSpace(t)
	kv := newFakeKV()
	log := newTestLogger()

	scheduler := core.NewScheduler(kv, space.Blobs, log)
	executors := core.NewExecutorRegistry(fakeExecutor{output: "done"})
	worker := core.NewWorker("worker-1", kv, space.Blobs, space, executors, author, t.TempDir(), log)
	worker.Disable()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go worker.Run(ctx)

	id := mustUUID(t)
	if err := scheduler.RunJob(ctx, mustUUID(t), id, core.JobDescription{JobType: "test"}); err != nil {
		t.Fatalf("run_job: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	statuses, err := kv.List(ctx, "worker/status/"+id.String()+"/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(statuses) != 0 {
		t.Fatalf("expected a disabled worker to publish no status, got %+v", statuses)
	}
}
