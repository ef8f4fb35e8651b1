package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftforge/a2a-genengine/internal/task"
)

func newTask(id string) *task.Task {
	return &task.Task{
		ID:      id,
		Message: task.Message{Parts: []task.Part{{Type: task.PartText, Text: "a prompt"}}},
		Status:  task.Status{State: task.StateSubmitted},
	}
}

func TestCreate(t *testing.T) {
	s := New()
	tk := newTask("t1")

	require.NoError(t, s.Create(tk))
	assert.False(t, tk.Status.Timestamp.IsZero())

	got, ok := s.Get("t1")
	require.True(t, ok)
	assert.Equal(t, task.StateSubmitted, got.Status.State)
}

func TestCreateDuplicate(t *testing.T) {
	s := New()
	require.NoError(t, s.Create(newTask("t1")))
	err := s.Create(newTask("t1"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestGetNotFound(t *testing.T) {
	s := New()
	_, ok := s.Get("missing")
	assert.False(t, ok)
}

func TestUpdateNotFound(t *testing.T) {
	s := New()
	err := s.Update(newTask("missing"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateDroppedAfterTerminal(t *testing.T) {
	s := New()
	tk := newTask("t1")
	require.NoError(t, s.Create(tk))

	tk.Transition(task.Status{State: task.StateCompleted})
	require.NoError(t, s.Update(tk))

	again := newTask("t1")
	again.Transition(task.Status{State: task.StateWorking})
	require.NoError(t, s.Update(again))

	got, _ := s.Get("t1")
	assert.Equal(t, task.StateCompleted, got.Status.State, "terminal state must not be overwritten")
}

func TestHistoryMonotonic(t *testing.T) {
	s := New()
	tk := newTask("t1")
	require.NoError(t, s.Create(tk))

	tk.Transition(task.Status{State: task.StateWorking, Timestamp: time.Now().UTC()})
	require.NoError(t, s.Update(tk))

	tk.Transition(task.Status{State: task.StateCompleted, Timestamp: time.Now().UTC().Add(time.Millisecond)})
	require.NoError(t, s.Update(tk))

	got, _ := s.Get("t1")
	require.Len(t, got.History, 2)
	assert.True(t, got.History[0].Timestamp.Before(got.History[1].Timestamp) || got.History[0].Timestamp.Equal(got.History[1].Timestamp))
	assert.Equal(t, task.StateCompleted, got.Status.State)
}

func TestListFiltersBySession(t *testing.T) {
	s := New()
	a := newTask("a")
	a.SessionID = "s1"
	b := newTask("b")
	b.SessionID = "s2"
	require.NoError(t, s.Create(a))
	require.NoError(t, s.Create(b))

	filtered := s.List("s1")
	require.Len(t, filtered, 1)
	assert.Equal(t, "a", filtered[0].ID)

	all := s.List("")
	assert.Len(t, all, 2)
}

func TestListenerFanOutIsolatesPanics(t *testing.T) {
	s := New()

	var calls int32
	var mu sync.Mutex
	seen := make([]string, 0)

	s.AddListener(func(t *task.Task) {
		panic("boom")
	})
	s.AddListener(func(t *task.Task) {
		mu.Lock()
		seen = append(seen, t.ID)
		calls++
		mu.Unlock()
	})

	require.NoError(t, s.Create(newTask("t1")))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, int32(1), calls)
	assert.Equal(t, []string{"t1"}, seen)
}

func TestRemoveListener(t *testing.T) {
	s := New()
	var calls int
	remove := s.AddListener(func(t *task.Task) { calls++ })
	remove()

	require.NoError(t, s.Create(newTask("t1")))
	assert.Equal(t, 0, calls)
}

func TestDeleteReportsPresence(t *testing.T) {
	s := New()
	require.NoError(t, s.Create(newTask("t1")))

	assert.True(t, s.Delete("t1"))
	assert.False(t, s.Delete("t1"))

	_, ok := s.Get("t1")
	assert.False(t, ok)
}
