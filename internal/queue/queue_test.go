package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftforge/a2a-genengine/internal/task"
)

// fakeProcessor drives a controllable outcome per task id and counts
// invocations, so tests can assert at-most-one-worker and retry bounds.
type fakeProcessor struct {
	mu          sync.Mutex
	attempts    map[string]int
	inFlight    map[string]int
	maxInFlight int

	// outcome returns the error Process should return for this attempt.
	outcome func(attempt int) error
	delay   time.Duration
}

func newFakeProcessor(outcome func(attempt int) error) *fakeProcessor {
	return &fakeProcessor{
		attempts: make(map[string]int),
		inFlight: make(map[string]int),
		outcome:  outcome,
	}
}

func (f *fakeProcessor) Process(ctx context.Context, t *task.Task, cancelled func() bool) error {
	f.mu.Lock()
	f.attempts[t.ID]++
	attempt := f.attempts[t.ID]
	f.inFlight[t.ID]++
	if f.inFlight[t.ID] > 1 {
		f.mu.Unlock()
		return errors.New("concurrent execution detected for same task id")
	}
	if n := f.totalInFlight(); n > f.maxInFlight {
		f.maxInFlight = n
	}
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.inFlight[t.ID]--
	f.mu.Unlock()

	return f.outcome(attempt)
}

func (f *fakeProcessor) totalInFlight() int {
	n := 0
	for _, v := range f.inFlight {
		n += v
	}
	return n
}

func (f *fakeProcessor) attemptsFor(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[id]
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func TestEnqueueRejectsEmptyID(t *testing.T) {
	q := New(newFakeProcessor(func(int) error { return nil }), Config{})
	err := q.Enqueue(&task.Task{})
	assert.Error(t, err)
}

func TestSuccessfulTaskCompletes(t *testing.T) {
	fp := newFakeProcessor(func(int) error { return nil })
	q := New(fp, Config{MaxConcurrent: 2, MaxRetries: 1, RetryDelay: 5 * time.Millisecond})

	require.NoError(t, q.Enqueue(&task.Task{ID: "t1"}))

	ok := waitFor(t, time.Second, func() bool { return q.Status().Completed == 1 })
	require.True(t, ok, "expected task to complete")
	assert.Equal(t, 1, fp.attemptsFor("t1"))
}

func TestRetryBoundExactlyNPlusOneAttempts(t *testing.T) {
	fp := newFakeProcessor(func(int) error { return errors.New("always fails") })
	q := New(fp, Config{MaxConcurrent: 2, MaxRetries: 2, RetryDelay: 5 * time.Millisecond})

	require.NoError(t, q.Enqueue(&task.Task{ID: "t1"}))

	ok := waitFor(t, 2*time.Second, func() bool { return q.Status().Failed == 1 })
	require.True(t, ok, "expected task to land in failed")
	assert.Equal(t, 3, fp.attemptsFor("t1"))
}

func TestRespectsMaxConcurrent(t *testing.T) {
	fp := newFakeProcessor(func(int) error { return nil })
	fp.delay = 30 * time.Millisecond
	q := New(fp, Config{MaxConcurrent: 3})

	for i := 0; i < 12; i++ {
		require.NoError(t, q.Enqueue(&task.Task{ID: taskID(i)}))
	}

	ok := waitFor(t, 3*time.Second, func() bool { return q.Status().Completed == 12 })
	require.True(t, ok, "expected all tasks to complete")
	assert.LessOrEqual(t, fp.maxInFlight, 3, "processing concurrency must never exceed MaxConcurrent")
}

func taskID(i int) string {
	return "t" + string(rune('a'+i))
}

func TestCancelQueuedPreventsDispatch(t *testing.T) {
	var invoked int32
	fp := newFakeProcessor(func(int) error {
		atomic.AddInt32(&invoked, 1)
		return nil
	})
	// Saturate the one concurrency slot with a slow task so the second
	// stays queued long enough to cancel.
	fp.delay = 200 * time.Millisecond
	q := New(fp, Config{MaxConcurrent: 1})

	require.NoError(t, q.Enqueue(&task.Task{ID: "blocker"}))
	require.NoError(t, q.Enqueue(&task.Task{ID: "victim"}))

	waitFor(t, time.Second, func() bool { return q.Status().Processing == 1 })

	cancelled := q.Cancel("victim")
	assert.True(t, cancelled, "victim should still be queued")

	waitFor(t, time.Second, func() bool { return q.Status().Completed == 1 })
	assert.Equal(t, 0, fp.attemptsFor("victim"), "cancelled-before-start task must never be processed")
}

func TestCancelProcessingReturnsFalse(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})

	blockingProcessor := &blockingProcessor{started: started, release: release}
	q := New(blockingProcessor, Config{MaxConcurrent: 1})

	require.NoError(t, q.Enqueue(&task.Task{ID: "t1"}))
	<-started

	cancelled := q.Cancel("t1")
	assert.False(t, cancelled, "in-flight cancellation is not provided by the queue")

	close(release)
}

type blockingProcessor struct {
	started chan struct{}
	release chan struct{}
}

func (b *blockingProcessor) Process(ctx context.Context, t *task.Task, cancelled func() bool) error {
	close(b.started)
	<-b.release
	return nil
}
