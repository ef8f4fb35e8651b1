package notify

import (
	"time"

	"github.com/driftforge/a2a-genengine/internal/task"
)

// Emit translates a task's current status into one or more Events and
// delivers each to the task's subscribers. It is the bridge a TaskStore
// listener uses to drive the hub: every store Update calls this with the
// freshly-committed task snapshot.
//
// A status_update event is always emitted. A terminal state additionally
// emits completion (on success) or error (on failure/cancellation), per the
// invariant that artifacts are already persisted on the task by the time
// these fire.
func (h *Hub) Emit(t *task.Task) {
	ts := t.Status.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	stamp := ts.Format(time.RFC3339Nano)

	h.Notify(task.Event{
		Type:      task.EventStatusUpdate,
		TaskID:    t.ID,
		Timestamp: stamp,
		Data:      task.EventData{Status: t.Status, Artifacts: t.Artifacts},
	})

	if len(t.Artifacts) > 0 && t.Status.State == task.StateCompleted {
		h.Notify(task.Event{
			Type:      task.EventArtifactCreated,
			TaskID:    t.ID,
			Timestamp: stamp,
			Data:      task.EventData{Artifacts: t.Artifacts},
		})
	}

	switch t.Status.State {
	case task.StateCompleted:
		h.Notify(task.Event{
			Type:      task.EventCompletion,
			TaskID:    t.ID,
			Timestamp: stamp,
			Data:      task.EventData{Status: t.Status, Artifacts: t.Artifacts},
		})
	case task.StateFailed, task.StateCancelled:
		h.Notify(task.Event{
			Type:      task.EventError,
			TaskID:    t.ID,
			Timestamp: stamp,
			Data:      task.EventData{Status: t.Status},
		})
	}
}
