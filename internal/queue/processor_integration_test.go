package queue

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftforge/a2a-genengine/internal/processor"
	"github.com/driftforge/a2a-genengine/internal/store"
	"github.com/driftforge/a2a-genengine/internal/task"
	"github.com/driftforge/a2a-genengine/internal/worker"
)

// These tests wire the real processor.Processor into a real Queue, rather
// than a hand-written fakeProcessor/countingProcessor, so a regression in
// Process's retry signaling (queue.Processor's nil/non-nil contract) is
// caught here instead of only in isolated unit tests of either package.

// flakyWorker fails its first failuresBeforeSuccess invocations with a
// worker-reported backend failure, then succeeds.
type flakyWorker struct {
	failuresBeforeSuccess int32
	calls                 int32
}

func (w *flakyWorker) Handle(ctx context.Context, rc worker.RunContext) <-chan worker.Update {
	out := make(chan worker.Update, 1)
	n := atomic.AddInt32(&w.calls, 1)
	if n <= w.failuresBeforeSuccess {
		out <- worker.TextMessage(task.StateFailed, "backend unavailable")
	} else {
		out <- worker.TextMessage(task.StateCompleted, "done")
	}
	close(out)
	return out
}

// alwaysInputRequiredWorker reports input-required on every invocation.
type alwaysInputRequiredWorker struct {
	calls int32
}

func (w *alwaysInputRequiredWorker) Handle(ctx context.Context, rc worker.RunContext) <-chan worker.Update {
	atomic.AddInt32(&w.calls, 1)
	out := make(chan worker.Update, 1)
	out <- worker.TextMessage(task.StateInputRequired, "A non-empty prompt is required.")
	close(out)
	return out
}

func newQueuedTask(id, taskType, prompt string) *task.Task {
	return &task.Task{
		ID:       id,
		TaskType: taskType,
		Message:  task.Message{Parts: []task.Part{{Type: task.PartText, Text: prompt}}},
		Status:   task.Status{State: task.StateSubmitted},
	}
}

func TestRealProcessorRetriesOnWorkerReportedFailure(t *testing.T) {
	s := store.New()
	fw := &flakyWorker{failuresBeforeSuccess: 2}
	proc := processor.New(s, worker.Registry{"text2image": fw})
	q := New(proc, Config{MaxConcurrent: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	tk := newQueuedTask("t1", "text2image", "a valid prompt")
	require.NoError(t, s.Create(tk))
	require.NoError(t, q.Enqueue(tk))

	ok := waitFor(t, 2*time.Second, func() bool { return q.Status().Completed == 1 })
	require.True(t, ok, "expected task to complete after retries, got status %+v", q.Status())

	got, _ := s.Get("t1")
	assert.Equal(t, task.StateCompleted, got.Status.State)
	assert.EqualValues(t, 3, atomic.LoadInt32(&fw.calls), "expected failuresBeforeSuccess+1 attempts")
}

func TestRealProcessorExhaustsRetriesOnPersistentFailure(t *testing.T) {
	s := store.New()
	fw := &flakyWorker{failuresBeforeSuccess: 100}
	proc := processor.New(s, worker.Registry{"text2image": fw})
	q := New(proc, Config{MaxConcurrent: 1, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	tk := newQueuedTask("t1", "text2image", "a valid prompt")
	require.NoError(t, s.Create(tk))
	require.NoError(t, q.Enqueue(tk))

	ok := waitFor(t, 2*time.Second, func() bool { return q.Status().Failed == 1 })
	require.True(t, ok, "expected task to land in failed, got status %+v", q.Status())

	got, _ := s.Get("t1")
	assert.Equal(t, task.StateFailed, got.Status.State)
	assert.EqualValues(t, 3, atomic.LoadInt32(&fw.calls), "maxRetries=2 must yield exactly 3 attempts")
}

func TestRealProcessorDoesNotRetryInputRequired(t *testing.T) {
	s := store.New()
	w := &alwaysInputRequiredWorker{}
	proc := processor.New(s, worker.Registry{"text2image": w})
	q := New(proc, Config{MaxConcurrent: 1, MaxRetries: 3, RetryDelay: 5 * time.Millisecond})

	tk := newQueuedTask("t1", "text2image", "  ")
	require.NoError(t, s.Create(tk))
	require.NoError(t, q.Enqueue(tk))

	ok := waitFor(t, time.Second, func() bool { return q.Status().Completed == 1 })
	require.True(t, ok, "input-required counts as the queue's non-retryable completed outcome")

	got, _ := s.Get("t1")
	assert.Equal(t, task.StateInputRequired, got.Status.State)
	assert.EqualValues(t, 1, atomic.LoadInt32(&w.calls), "input-required must not be retried")
}
