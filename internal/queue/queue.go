// Package queue implements the bounded-concurrency task scheduler: a FIFO of
// pending tasks, a cap on concurrently-processing tasks, and a retry policy
// for processor failures. It never reaches into a running worker — in-flight
// cancellation is the processor's job, observed through the same flag the
// queue sets.
package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/internal/metrics"
	"github.com/driftforge/a2a-genengine/internal/task"
)

// errInvalidRequest is returned by Enqueue when the task carries no id.
var errInvalidRequest = errors.New("queue: task id is required")

// Default configuration values, per the engine's scheduling defaults.
const (
	DefaultMaxConcurrent = 5
	DefaultMaxRetries    = 3
	DefaultRetryDelay    = 1000 * time.Millisecond
)

// Processor runs one task to a terminal outcome. It returns nil on an
// outcome the queue should not retry (completed, input-required, cancelled,
// or a structural failure that would reproduce identically on a retry) and
// a non-nil error for outcomes eligible for queue-level retry: a
// worker-reported provider/timeout failure, or an internal bug such as the
// worker ending without a terminal update.
//
// Process must itself write cancelled/failed/completed status to the task
// store; the queue only tracks scheduling bookkeeping, not task state.
type Processor interface {
	Process(ctx context.Context, t *task.Task, cancelled func() bool) error
}

// entry tracks one task's queue-scoped bookkeeping: an independent
// cancellation flag the processor polls, and the task snapshot enqueued.
type entry struct {
	task      *task.Task
	cancelled bool
}

// Config configures a Queue's concurrency and retry behavior.
type Config struct {
	MaxConcurrent int
	MaxRetries    int
	RetryDelay    time.Duration
}

// Status reports the current cardinalities of a Queue's internal sets.
type Status struct {
	Queued     int
	Processing int
	Completed  int
	Failed     int
}

// Queue is a thread-safe bounded-concurrency FIFO scheduler. All state
// mutation (enqueue, cancel, scheduler bookkeeping) is serialized by mu;
// dispatched processor invocations run in their own goroutine outside the
// critical section.
type Queue struct {
	cfg       Config
	processor Processor

	mu         sync.Mutex
	fifo       []*entry
	processing map[string]*entry
	completed  map[string]bool
	failed     map[string]bool
	retries    map[string]int
}

// New constructs a Queue with the given processor and config. A MaxConcurrent
// or RetryDelay of zero or less, and a negative MaxRetries, are replaced with
// the engine's defaults; a MaxRetries of zero is kept and means no retries.
func New(processor Processor, cfg Config) *Queue {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = DefaultMaxConcurrent
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	return &Queue{
		cfg:        cfg,
		processor:  processor,
		processing: make(map[string]*entry),
		completed:  make(map[string]bool),
		failed:     make(map[string]bool),
		retries:    make(map[string]int),
	}
}

// Enqueue appends t to the FIFO and invokes the scheduler. Returns an error
// if t.ID is empty.
func (q *Queue) Enqueue(t *task.Task) error {
	if t.ID == "" {
		return errInvalidRequest
	}
	q.mu.Lock()
	q.fifo = append(q.fifo, &entry{task: t})
	q.mu.Unlock()
	q.reportDepth()
	q.schedule()
	return nil
}

// Cancel attempts to remove taskID from the FIFO before it starts. Returns
// true if it was queued and removed; false if it is processing (or unknown)
// and in-flight cancellation must instead go through the processor's
// cancellation flag.
func (q *Queue) Cancel(taskID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.fifo {
		if e.task.ID == taskID {
			q.fifo = append(q.fifo[:i], q.fifo[i+1:]...)
			go q.reportDepth()
			return true
		}
	}
	if e, ok := q.processing[taskID]; ok {
		e.cancelled = true
	}
	return false
}

// Status returns the current cardinalities of the queue's tracked sets.
func (q *Queue) Status() Status {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Status{
		Queued:     len(q.fifo),
		Processing: len(q.processing),
		Completed:  len(q.completed),
		Failed:     len(q.failed),
	}
}

// schedule dispatches queued tasks until maxConcurrent is reached or the
// FIFO is empty. The function body that mutates queue state runs under the
// lock; the processor invocation itself is launched in its own goroutine.
func (q *Queue) schedule() {
	for {
		q.mu.Lock()
		if len(q.processing) >= q.cfg.MaxConcurrent || len(q.fifo) == 0 {
			q.mu.Unlock()
			return
		}
		e := q.fifo[0]
		q.fifo = q.fifo[1:]
		q.processing[e.task.ID] = e
		q.mu.Unlock()
		q.reportDepth()

		go q.dispatch(e)
	}
}

// dispatch runs the processor for one entry and handles the
// success/retry/failure bookkeeping once it returns.
func (q *Queue) dispatch(e *entry) {
	cancelled := func() bool {
		q.mu.Lock()
		defer q.mu.Unlock()
		return e.cancelled
	}

	err := q.processor.Process(context.Background(), e.task, cancelled)

	q.mu.Lock()
	delete(q.processing, e.task.ID)

	if err == nil {
		q.completed[e.task.ID] = true
		q.mu.Unlock()
		q.reportDepth()
		q.schedule()
		return
	}

	attempt := q.retries[e.task.ID]
	if attempt < q.cfg.MaxRetries {
		q.retries[e.task.ID] = attempt + 1
		q.mu.Unlock()

		metrics.RecordRetry(e.task.TaskType)
		delay := q.retryDelay(attempt)
		logging.QueueRetry(e.task.ID, attempt+1, q.cfg.MaxRetries, delay.String())

		time.AfterFunc(delay, func() {
			q.mu.Lock()
			q.fifo = append(q.fifo, e)
			q.mu.Unlock()
			q.reportDepth()
			q.schedule()
		})
		return
	}

	q.failed[e.task.ID] = true
	q.mu.Unlock()
	q.reportDepth()
	q.schedule()
}

// retryDelay computes the linear-with-jitter delay for the next retry
// attempt, using backoff.ExponentialBackOff configured with a multiplier of
// 1.0 so the base interval never grows (linear) while randomization still
// varies each attempt (jitter).
func (q *Queue) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = q.cfg.RetryDelay
	b.Multiplier = 1.0
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	return b.NextBackOff()
}

func (q *Queue) reportDepth() {
	s := q.Status()
	metrics.SetQueueDepth("queued", s.Queued)
	metrics.SetQueueDepth("processing", s.Processing)
}
