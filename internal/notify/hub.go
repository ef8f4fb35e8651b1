// Package notify implements the NotificationHub: per-task fan-out of task
// events to SSE subscribers and a single webhook registration, each with
// its own event-type filter. Webhook delivery runs on a bounded worker pool
// so a slow endpoint never blocks in-process notification.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/internal/metrics"
	"github.com/driftforge/a2a-genengine/internal/task"
	"github.com/driftforge/a2a-genengine/pkg/httputil"
)

// eventTypeSet implements the "absent set means all types" rule from the
// event-type filtering contract.
type eventTypeSet map[task.EventType]bool

func newEventTypeSet(types []string) eventTypeSet {
	if len(types) == 0 {
		return nil
	}
	s := make(eventTypeSet, len(types))
	for _, t := range types {
		s[task.EventType(t)] = true
	}
	return s
}

func (s eventTypeSet) accepts(t task.EventType) bool {
	if s == nil {
		return true
	}
	return s[t]
}

// sseSubscriber is one live SSE connection registered for a task.
type sseSubscriber struct {
	id     int
	w      http.ResponseWriter
	flush  http.Flusher
	types  eventTypeSet
	closed chan struct{}
}

// webhookSub is the single webhook registration for a task, if any.
type webhookSub struct {
	url   string
	types eventTypeSet
}

// taskSubs bundles one task's subscribers: its live SSE connections and its
// (at most one) webhook registration.
type taskSubs struct {
	sse        map[int]*sseSubscriber
	webhook    *webhookSub
	terminated bool
}

// Hub is the NotificationHub. Safe for concurrent use.
type Hub struct {
	client *http.Client
	deliv  chan delivery

	mu        sync.Mutex
	subs      map[string]*taskSubs
	nextSSEID int
}

// delivery is one queued webhook POST handled by the background pool.
type delivery struct {
	url  string
	body []byte
}

// deliveryWorkers is the size of the webhook delivery pool: it bounds how
// many webhook POSTs can be in flight at once across all tasks.
const deliveryWorkers = 8

// New constructs a Hub and starts its webhook delivery pool.
func New() *Hub {
	h := &Hub{
		client: httputil.NewHTTPClient(httputil.DefaultWebhookTimeout),
		deliv:  make(chan delivery, 256),
		subs:   make(map[string]*taskSubs),
	}
	for i := 0; i < deliveryWorkers; i++ {
		go h.deliveryLoop()
	}
	return h
}

func (h *Hub) getOrCreate(taskID string) *taskSubs {
	ts, ok := h.subs[taskID]
	if !ok {
		ts = &taskSubs{sse: make(map[int]*sseSubscriber)}
		h.subs[taskID] = ts
	}
	return ts
}

// SubscribeSSE writes the SSE preamble, registers w as a subscriber for
// taskID filtered by eventTypes, emits the initial "connected" event, and
// blocks until the request context is done or the hub closes this
// subscriber (on a terminal event for taskID). Callers invoke
// this directly from an HTTP handler goroutine; it does not return until
// the connection should close.
//
// Callers that must guarantee registration happens before some other
// side effect becomes visible (e.g. enqueueing the task whose events this
// subscriber is about to receive) should use RegisterSSE and WaitSSE
// directly instead, since SubscribeSSE's registration and its blocking
// wait cannot otherwise be interleaved with that side effect.
func (h *Hub) SubscribeSSE(ctx context.Context, taskID string, w http.ResponseWriter, eventTypes []string) error {
	sub, err := h.RegisterSSE(taskID, w, eventTypes)
	if err != nil {
		return err
	}
	h.WaitSSE(ctx, taskID, sub)
	return nil
}

// RegisterSSE writes the SSE preamble, registers w as a subscriber for
// taskID filtered by eventTypes, and emits the initial "connected" event.
// The returned subscriber is live immediately on return: any Notify call
// for taskID issued after RegisterSSE returns is guaranteed to reach it.
// Callers must follow up with WaitSSE to block until the connection
// closes and release the registration.
func (h *Hub) RegisterSSE(taskID string, w http.ResponseWriter, eventTypes []string) (*sseSubscriber, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("notify: response writer does not support flushing")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	sub := &sseSubscriber{
		w:      w,
		flush:  flusher,
		types:  newEventTypeSet(eventTypes),
		closed: make(chan struct{}),
	}

	h.mu.Lock()
	ts := h.getOrCreate(taskID)
	sub.id = h.nextSSEID
	h.nextSSEID++
	ts.sse[sub.id] = sub
	h.mu.Unlock()

	h.writeSSE(sub, task.Event{
		Type:   task.EventStatusUpdate,
		TaskID: taskID,
		Data:   task.EventData{Status: map[string]any{"status": "connected"}},
	})

	return sub, nil
}

// WaitSSE blocks until ctx is done or the hub closes sub (on a terminal
// event for taskID), then releases its registration.
func (h *Hub) WaitSSE(ctx context.Context, taskID string, sub *sseSubscriber) {
	defer h.removeSSE(taskID, sub.id)

	select {
	case <-ctx.Done():
	case <-sub.closed:
	}
}

// SubscribeWebhook registers (replacing any prior registration) a webhook
// URL for taskID, filtered by eventTypes.
func (h *Hub) SubscribeWebhook(taskID, url string, eventTypes []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts := h.getOrCreate(taskID)
	ts.webhook = &webhookSub{url: url, types: newEventTypeSet(eventTypes)}
}

// removeSSE removes taskID's SSE subscriber id and discards the task's
// registry entry once it has neither SSE subscribers nor a webhook. It runs
// only when WaitSSE returns; the hub exposes no call that force-closes a
// subscriber from outside.
func (h *Hub) removeSSE(taskID string, id int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ts, ok := h.subs[taskID]
	if !ok {
		return
	}
	delete(ts.sse, id)
	h.discardIfEmpty(taskID, ts)
}

func (h *Hub) discardIfEmpty(taskID string, ts *taskSubs) {
	if len(ts.sse) == 0 && ts.webhook == nil {
		delete(h.subs, taskID)
	}
}

// Notify delivers event to every subscriber of taskID whose event-type
// filter accepts event.Type. After a terminal event has been delivered for
// a task, Notify is a no-op for subsequent calls on that task id.
func (h *Hub) Notify(event task.Event) {
	h.mu.Lock()
	ts, ok := h.subs[event.TaskID]
	if !ok || ts.terminated {
		h.mu.Unlock()
		return
	}

	isTerminal := event.Type == task.EventCompletion || event.Type == task.EventError
	var toClose []*sseSubscriber
	if isTerminal {
		ts.terminated = true
		// Every SSE subscriber is released on a terminal event, including
		// those whose filter does not accept it.
		for _, sub := range ts.sse {
			toClose = append(toClose, sub)
		}
	}

	sseTargets := make([]*sseSubscriber, 0, len(ts.sse))
	for _, sub := range ts.sse {
		if sub.types.accepts(event.Type) {
			sseTargets = append(sseTargets, sub)
		}
	}
	var wh *webhookSub
	if ts.webhook != nil && ts.webhook.types.accepts(event.Type) {
		wh = ts.webhook
	}
	h.mu.Unlock()

	for _, sub := range sseTargets {
		h.writeSSE(sub, event)
	}
	if wh != nil {
		h.enqueueWebhook(wh.url, event)
	}

	if isTerminal {
		h.mu.Lock()
		for _, sub := range toClose {
			close(sub.closed)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writeSSE(sub *sseSubscriber, event task.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		logging.Error("notify: failed to marshal SSE event", "error", err)
		return
	}
	if _, err := fmt.Fprintf(sub.w, "data: %s\n\n", body); err != nil {
		logging.NotificationFailed(event.TaskID, string(event.Type), "sse", err)
		metrics.RecordNotification("sse", "failed")
		return
	}
	sub.flush.Flush()
	logging.NotificationDelivered(event.TaskID, string(event.Type), "sse")
	metrics.RecordNotification("sse", "delivered")
}

func (h *Hub) enqueueWebhook(url string, event task.Event) {
	body, err := json.Marshal(event)
	if err != nil {
		logging.Error("notify: failed to marshal webhook event", "error", err)
		return
	}
	select {
	case h.deliv <- delivery{url: url, body: body}:
	default:
		logging.NotificationFailed(event.TaskID, string(event.Type), "webhook", fmt.Errorf("delivery pool saturated"))
		metrics.RecordNotification("webhook", "failed")
	}
}

func (h *Hub) deliveryLoop() {
	for d := range h.deliv {
		h.deliverWebhook(d)
	}
}

func (h *Hub) deliverWebhook(d delivery) {
	req, err := http.NewRequest(http.MethodPost, d.url, bytes.NewReader(d.body))
	if err != nil {
		logging.Error("notify: failed to build webhook request", "url", d.url, "error", err)
		metrics.RecordNotification("webhook", "failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		logging.NotificationFailed("", "", "webhook", err)
		metrics.RecordNotification("webhook", "failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logging.NotificationFailed("", "", "webhook", fmt.Errorf("non-2xx response: %d", resp.StatusCode))
		metrics.RecordNotification("webhook", "failed")
		return
	}
	logging.NotificationDelivered("", "", "webhook")
	metrics.RecordNotification("webhook", "delivered")
}
