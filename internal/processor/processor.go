// Package processor implements the TaskProcessor (C4): it drives one task
// through its resolved skill worker, projecting yielded updates onto the
// store with deduplication, and stopping on the first terminal update.
package processor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/internal/metrics"
	"github.com/driftforge/a2a-genengine/internal/store"
	"github.com/driftforge/a2a-genengine/internal/task"
	"github.com/driftforge/a2a-genengine/internal/worker"
)

// errWorkerDidNotComplete describes a worker whose update channel closed
// without reaching a terminal state.
var errWorkerDidNotComplete = errors.New("worker closed its update stream before reaching a terminal state")

// errRetryableFailure is returned by Process to signal the queue that this
// attempt failed in a way worth retrying (a worker-reported provider/
// timeout failure, or the worker bug behind worker-did-not-complete) — as
// opposed to input-required, cancelled, or a structural failure that would
// reproduce identically on a retry.
var errRetryableFailure = errors.New("processor: task failed in a retryable way")

// Processor drives tasks to a terminal state through a worker.Registry,
// writing every non-duplicate update to a store.Store.
type Processor struct {
	store    store.Store
	registry worker.Registry
}

// New constructs a Processor over s, resolving workers from reg.
func New(s store.Store, reg worker.Registry) *Processor {
	return &Processor{store: s, registry: reg}
}

// Process implements queue.Processor. It always drives t to a terminal
// status (or to input-required) via store writes; the returned error tells the queue whether this
// attempt is worth retrying (see queue.Processor).
func (p *Processor) Process(ctx context.Context, t *task.Task, cancelled func() bool) error {
	start := time.Now()

	if !hasTextPart(t.Message) {
		p.terminalFail(t, "Task must contain a non-empty text prompt")
		metrics.RecordTaskTerminal(t.TaskType, "failed", time.Since(start).Seconds())
		return nil
	}

	p.writeWorking(t)

	w := p.registry.Lookup(t.TaskType)
	if w == nil {
		p.terminalFail(t, "invalid-taskType: "+t.TaskType)
		metrics.RecordTaskTerminal(t.TaskType, "failed", time.Since(start).Seconds())
		return nil
	}

	logging.WorkerCall(t.ID, t.TaskType)
	updates := w.Handle(ctx, worker.RunContext{Task: t, Cancelled: cancelled})

	var last task.Status
	haveLast := false
	sawTerminal := false

	for upd := range updates {
		candidate := task.Status{State: upd.State, Message: &upd.Message}

		if haveLast && !p.shouldApply(last, candidate) {
			continue
		}

		// Artifacts are appended to the task's running list before the
		// status write commits, so any subscriber that observes the
		// terminal status also observes the artifacts.
		if len(upd.Artifacts) > 0 {
			t.Artifacts = append(t.Artifacts, upd.Artifacts...)
		}
		candidate.Artifacts = t.Artifacts

		from := t.Status.State
		t.Transition(candidate)
		logging.TaskTransition(t.ID, string(from), string(candidate.State))

		if err := p.store.Update(t); err != nil {
			logging.Error("processor: store update failed", "task_id", t.ID, "error", err)
		}

		last = candidate
		haveLast = true

		// input-required is not a terminal state, but it ends this attempt
		// just like one: the worker produces nothing after it.
		if upd.State.Terminal() || upd.State == task.StateInputRequired {
			sawTerminal = true
			break
		}
	}

	metrics.RecordWorkerCall(t.TaskType, time.Since(start).Seconds())

	if !sawTerminal {
		logging.WorkerFailed(t.ID, t.TaskType, errWorkerDidNotComplete)
		p.terminalFail(t, "worker-did-not-complete")
		metrics.RecordTaskTerminal(t.TaskType, string(t.Status.State), time.Since(start).Seconds())
		return errRetryableFailure
	}

	metrics.RecordTaskTerminal(t.TaskType, string(t.Status.State), time.Since(start).Seconds())

	// A worker-reported failed terminal update is a provider error or a
	// timeout (workers never emit "failed" for semantic-input problems —
	// those are input-required); both are eligible for queue-level retry.
	// input-required, cancelled, and completed are not retried.
	if t.Status.State == task.StateFailed {
		logging.WorkerFailed(t.ID, t.TaskType, fmt.Errorf("worker reported failure: %s", t.Status.Message.FirstText()))
		return errRetryableFailure
	}
	return nil
}

// shouldApply implements the dedup policy: an update is applied only if its
// state differs from the last-applied state, or its first text part differs
// from the last-applied message's first text part.
func (p *Processor) shouldApply(last, candidate task.Status) bool {
	if last.State != candidate.State {
		return true
	}
	var lastText, nextText string
	if last.Message != nil {
		lastText = last.Message.FirstText()
	}
	if candidate.Message != nil {
		nextText = candidate.Message.FirstText()
	}
	return lastText != nextText
}

// writeWorking transitions t from submitted to working before a worker is
// resolved, appending the prior status to history.
func (p *Processor) writeWorking(t *task.Task) {
	t.Transition(task.Status{State: task.StateWorking})
	if err := p.store.Update(t); err != nil {
		logging.Error("processor: failed to write working status", "task_id", t.ID, "error", err)
	}
}

// terminalFail transitions t to failed with msg as the clarifying message
// and writes it to the store.
func (p *Processor) terminalFail(t *task.Task, msg string) {
	t.Transition(task.Status{
		State: task.StateFailed,
		Message: &task.Message{
			Role:  "agent",
			Parts: []task.Part{{Type: task.PartText, Text: msg}},
		},
	})
	if err := p.store.Update(t); err != nil {
		logging.Error("processor: failed to write terminal failure", "task_id", t.ID, "error", err)
	}
}

// hasTextPart is a purely structural check: does the message contain a text
// part at all. Content validation (empty, too short) is the worker's job —
// see ImageWorker.Handle/VideoWorker.Handle, which turn an empty or
// too-short prompt into input-required rather than a processor-level fail.
func hasTextPart(m task.Message) bool {
	for _, part := range m.Parts {
		if part.Type == task.PartText {
			return true
		}
	}
	return false
}
