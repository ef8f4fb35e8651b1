// Package worker implements the SkillWorker abstraction (C3): one worker per
// task type, each producing a finite, cooperatively-cancellable sequence of
// status/artifact updates for a single task. The source material expresses
// this as an async generator; per the redesign notes we model it instead as a
// producer goroutine pushing onto a buffered channel that it closes when the
// sequence ends, with cancellation observed as a plain predicate checked at
// each suspension point.
package worker

import (
	"context"

	"github.com/driftforge/a2a-genengine/internal/task"
)

// Update is one step of a worker's progress sequence.
type Update struct {
	State     task.State
	Message   task.Message
	Artifacts []task.Artifact
}

// TextMessage is a convenience constructor for a single-part text Update.
func TextMessage(state task.State, text string) Update {
	return Update{
		State: state,
		Message: task.Message{
			Role:  "agent",
			Parts: []task.Part{{Type: task.PartText, Text: text}},
		},
	}
}

// RunContext is handed to a worker for the duration of one task's execution.
type RunContext struct {
	Task *task.Task

	// Cancelled reports whether the driving TaskQueue/TaskProcessor has asked
	// this execution to stop. Workers must sample it at each suspension
	// point (before/after backend calls, between poll iterations) and, if
	// set, emit a terminal cancelled Update and return.
	Cancelled func() bool
}

// Worker produces a lazy, single-consumer sequence of Updates for one task.
// The returned channel is closed exactly once the sequence ends; a
// well-behaved worker always ends with exactly one final Update before
// closing, whose state is either terminal (State.Terminal() == true) or
// input-required.
type Worker interface {
	Handle(ctx context.Context, rc RunContext) <-chan Update
}

// Registry maps a taskType discriminator to the Worker that serves it.
type Registry map[string]Worker

// Lookup returns the worker registered for taskType, or nil if unknown.
func (r Registry) Lookup(taskType string) Worker {
	return r[taskType]
}
