package task

import "time"

// Transition appends the task's current status to its history and replaces
// it with next, stamping next.Timestamp if unset. It does not enforce the
// state machine or terminal-stickiness; callers (the processor, the RPC
// cancel handler) are expected to have already decided the transition is legal.
func (t *Task) Transition(next Status) {
	if next.Timestamp.IsZero() {
		next.Timestamp = time.Now().UTC()
	}
	t.History = append(t.History, t.Status)
	t.Status = next
}
