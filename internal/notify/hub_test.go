package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftforge/a2a-genengine/internal/task"
)

func TestSSEReceivesConnectedPreamble(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = h.SubscribeSSE(ctx, "t1", rec, nil)

	assert.Contains(t, rec.Body.String(), `"status":"connected"`)
}

func TestEventTypeFilteringDeliversOnlyMatching(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		_ = h.SubscribeSSE(ctx, "t1", rec, []string{"completion"})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	h.Notify(task.Event{Type: task.EventStatusUpdate, TaskID: "t1", Data: task.EventData{Status: "working"}})
	h.Notify(task.Event{Type: task.EventStatusUpdate, TaskID: "t1", Data: task.EventData{Status: "working"}})
	h.Notify(task.Event{Type: task.EventCompletion, TaskID: "t1", Data: task.EventData{Status: "completed"}})

	<-done

	body := rec.Body.String()
	// Only the connected preamble (status_update, unfiltered at subscribe
	// time since it's written directly, not matched against the filter)
	// and the completion event should appear; the two status_update
	// Notify calls must be filtered out.
	assert.Equal(t, 1, strings.Count(body, `"type":"completion"`))
	assert.Equal(t, 0, strings.Count(body, `"status":"working"`))
}

// TestRegisterSSEIsLiveBeforeWaitSSE covers the ordering guarantee
// RegisterSSE/WaitSSE exist for: a Notify call issued after RegisterSSE
// returns, but before WaitSSE is ever called, must still reach the
// subscriber. This is what lets a caller register a subscriber before
// starting work that might emit events for it immediately.
func TestRegisterSSEIsLiveBeforeWaitSSE(t *testing.T) {
	h := New()
	rec := httptest.NewRecorder()

	sub, err := h.RegisterSSE("t1", rec, nil)
	require.NoError(t, err)

	h.Notify(task.Event{Type: task.EventCompletion, TaskID: "t1", Data: task.EventData{Status: "completed"}})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	h.WaitSSE(ctx, "t1", sub)

	assert.Contains(t, rec.Body.String(), `"type":"completion"`)
}

func TestWebhookRegistrationReplacesPrior(t *testing.T) {
	var gotURLs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURLs = append(gotURLs, r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := New()
	h.SubscribeWebhook("t1", srv.URL+"/first", nil)
	h.SubscribeWebhook("t1", srv.URL+"/second", nil)

	h.Notify(task.Event{Type: task.EventCompletion, TaskID: "t1", Data: task.EventData{Status: "completed"}})

	require.Eventually(t, func() bool { return len(gotURLs) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "/second", gotURLs[0])
}

func TestNoEventsAfterTerminal(t *testing.T) {
	var count int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		count++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h := New()
	h.SubscribeWebhook("t1", srv.URL, nil)

	h.Notify(task.Event{Type: task.EventCompletion, TaskID: "t1", Data: task.EventData{Status: "completed"}})
	h.Notify(task.Event{Type: task.EventStatusUpdate, TaskID: "t1", Data: task.EventData{Status: "completed"}})

	require.Eventually(t, func() bool { return count >= 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, count, "no further events should be delivered after a terminal event")
}

func TestEmitBuildsCompletionAndArtifactEvents(t *testing.T) {
	h := New()
	received := make(chan task.Event, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var evt task.Event
		_ = json.NewDecoder(r.Body).Decode(&evt)
		received <- evt
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	h.SubscribeWebhook("t1", srv.URL, nil)

	tk := &task.Task{
		ID:        "t1",
		Status:    task.Status{State: task.StateCompleted, Timestamp: time.Now().UTC()},
		Artifacts: []task.Artifact{{Index: 0}},
	}
	h.Emit(tk)

	var types []task.EventType
	deadline := time.After(time.Second)
	for len(types) < 3 {
		select {
		case evt := <-received:
			types = append(types, evt.Type)
		case <-deadline:
			t.Fatal("timed out waiting for webhook deliveries")
		}
	}
	assert.Contains(t, types, task.EventStatusUpdate)
	assert.Contains(t, types, task.EventArtifactCreated)
	assert.Contains(t, types, task.EventCompletion)
}
