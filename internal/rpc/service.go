// Package rpc implements the A2AService (C6) and its HTTP surface (C7): the
// JSON-RPC 2.0 method dispatcher for tasks/send and tasks/sendSubscribe, the
// REST-style task inspection/cancellation/notification endpoints, and their
// binding to a Go http.ServeMux.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/internal/notify"
	"github.com/driftforge/a2a-genengine/internal/queue"
	"github.com/driftforge/a2a-genengine/internal/store"
	"github.com/driftforge/a2a-genengine/internal/task"
	pkgerrors "github.com/driftforge/a2a-genengine/pkg/errors"
)

// maxBodySize bounds a single JSON-RPC request body.
const maxBodySize int64 = 2 << 20

// AgentCard is served verbatim at /.well-known/agent.json. Its construction
// (name, skills, provider keys) is an outer concern; the service only holds
// and serves whatever document it is configured with.
type AgentCard = json.RawMessage

// Service is the A2AService: it creates tasks, enqueues them, and binds
// notification transport for subscriptions, delegating all task-state and
// delivery behavior to its collaborators.
type Service struct {
	store     store.Store
	queue     *queue.Queue
	hub       *notify.Hub
	validator *paramsValidator
	agentCard AgentCard
}

// New constructs a Service. agentCard may be nil, in which case an empty
// JSON object is served.
func New(s store.Store, q *queue.Queue, hub *notify.Hub, agentCard AgentCard) (*Service, error) {
	v, err := newParamsValidator()
	if err != nil {
		return nil, err
	}
	if agentCard == nil {
		agentCard = json.RawMessage(`{}`)
	}
	return &Service{store: s, queue: q, hub: hub, validator: v, agentCard: agentCard}, nil
}

// Handler returns the fully-wired http.Handler for the service, instrumented
// with OpenTelemetry per request the way the engine instruments its own
// inbound surface.
func (svc *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", svc.handleHealth)
	mux.HandleFunc("GET /.well-known/agent.json", svc.handleAgentCard)
	mux.HandleFunc("GET /tasks", svc.handleListTasks)
	mux.HandleFunc("POST /tasks/send", svc.handleSend)
	mux.HandleFunc("POST /tasks/sendSubscribe", svc.handleSendSubscribe)
	mux.HandleFunc("GET /tasks/{id}", svc.handleGetTask)
	mux.HandleFunc("GET /tasks/{id}/history", svc.handleGetHistory)
	mux.HandleFunc("POST /tasks/{id}/cancel", svc.handleCancel)
	mux.HandleFunc("POST /tasks/{id}/notifications", svc.handleRegisterWebhook)
	mux.HandleFunc("GET /tasks/{id}/notifications", svc.handleSubscribeSSE)
	return otelhttp.NewHandler(mux, "a2a-genengine")
}

func (svc *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (svc *Service) handleAgentCard(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(svc.agentCard)
}

// decodeRequest reads and validates the JSON-RPC envelope common to both
// POST methods. It writes an error response itself and returns ok=false if
// the envelope is malformed.
func decodeRequest(w http.ResponseWriter, r *http.Request) (req task.JSONRPCRequest, ok bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPCError(w, nil, task.CodeParseError, "Parse error")
		return req, false
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		writeRPCError(w, req.ID, task.CodeInvalidRequest, "Invalid request: jsonrpc and method are required")
		return req, false
	}
	return req, true
}

// internalError logs a contextual error describing which collaborator and
// operation failed, then writes it back as a JSON-RPC CodeInternal error.
func (svc *Service) internalError(w http.ResponseWriter, id any, component, operation string, cause error) {
	ctxErr := pkgerrors.New(component, operation, cause)
	logging.Error("rpc: internal error", "component", component, "operation", operation, "error", cause)
	writeRPCError(w, id, task.CodeInternal, ctxErr.Error())
}

// handleSend implements tasks/send: create the task, enqueue it, and
// respond immediately with the submitted task. Fire-and-forget; the
// response carries no artifacts.
func (svc *Service) handleSend(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Method != task.MethodSend {
		writeRPCError(w, req.ID, task.CodeMethodNotFound, "Method not found")
		return
	}

	params, err := svc.decodeSendParams(req.Params)
	if err != nil {
		writeRPCError(w, req.ID, task.CodeInvalidParams, err.Error())
		return
	}

	t := svc.newTask(params)
	if err := svc.store.Create(t); err != nil {
		svc.internalError(w, req.ID, "store", "Create", err)
		return
	}
	if err := svc.queue.Enqueue(t); err != nil {
		svc.internalError(w, req.ID, "queue", "Enqueue", err)
		return
	}

	writeRPCResult(w, req.ID, t)
}

// handleSendSubscribe implements tasks/sendSubscribe: requires
// metadata.taskType, creates the task, binds notification transport
// (webhook registration, or converting the response into a held-open SSE
// stream), and only then enqueues the task, so no event is emitted before
// the transport is bound.
func (svc *Service) handleSendSubscribe(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeRequest(w, r)
	if !ok {
		return
	}
	if req.Method != task.MethodSendSubscribe {
		writeRPCError(w, req.ID, task.CodeMethodNotFound, "Method not found")
		return
	}

	params, err := svc.decodeSendParams(req.Params)
	if err != nil {
		writeRPCError(w, req.ID, task.CodeInvalidParams, err.Error())
		return
	}
	if params.Metadata.TaskType() == "" {
		writeRPCError(w, req.ID, task.CodeInvalidParams, "metadata.taskType is required for tasks/sendSubscribe")
		return
	}

	t := svc.newTask(params)
	if err := svc.store.Create(t); err != nil {
		svc.internalError(w, req.ID, "store", "Create", err)
		return
	}

	mode := "sse"
	var eventTypes []string
	var webhookURL string
	if params.Notification != nil {
		if params.Notification.Mode != "" {
			mode = params.Notification.Mode
		}
		eventTypes = params.Notification.EventTypes
		webhookURL = params.Notification.URL
	}

	if mode == "webhook" && webhookURL != "" {
		svc.hub.SubscribeWebhook(t.ID, webhookURL, eventTypes)
		if err := svc.queue.Enqueue(t); err != nil {
			svc.internalError(w, req.ID, "queue", "Enqueue", err)
			return
		}
		writeRPCResult(w, req.ID, map[string]string{"taskId": t.ID})
		return
	}

	// The subscriber must be live before the task is enqueued: the queue's
	// scheduler can start processing (and emitting events) as soon as
	// Enqueue returns, and Notify silently drops events for a task id with
	// no registered subscriber.
	sub, err := svc.hub.RegisterSSE(t.ID, w, eventTypes)
	if err != nil {
		svc.internalError(w, req.ID, "notify", "RegisterSSE", err)
		return
	}
	if err := svc.queue.Enqueue(t); err != nil {
		// Release the registration immediately rather than leaving it
		// parked until the client gives up on a response that never comes.
		done, cancel := context.WithCancel(r.Context())
		cancel()
		svc.hub.WaitSSE(done, t.ID, sub)
		svc.internalError(w, req.ID, "queue", "Enqueue", err)
		return
	}
	logging.InfoContext(r.Context(), "rpc: sse subscription opened", "task_id", t.ID)
	svc.hub.WaitSSE(r.Context(), t.ID, sub)
}

func (svc *Service) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := svc.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (svc *Service) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	t, ok := svc.store.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, t.History)
}

func (svc *Service) handleCancel(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	t, ok := svc.store.Get(id)
	if !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	if svc.queue.Cancel(id) {
		t.Transition(task.Status{State: task.StateCancelled})
		if err := svc.store.Update(t); err != nil {
			logging.Error("rpc: failed to write cancellation", "task_id", id, "error", err)
		}
		t, _ = svc.store.Get(id)
	}
	writeJSON(w, http.StatusOK, t)
}

func (svc *Service) handleRegisterWebhook(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := svc.store.Get(id); !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	var body struct {
		WebhookURL string   `json:"webhookUrl"`
		EventTypes []string `json:"eventTypes"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.WebhookURL == "" {
		http.Error(w, "webhookUrl is required", http.StatusBadRequest)
		return
	}

	svc.hub.SubscribeWebhook(id, body.WebhookURL, body.EventTypes)
	w.WriteHeader(http.StatusOK)
}

func (svc *Service) handleSubscribeSSE(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := svc.store.Get(id); !ok {
		http.Error(w, "task not found", http.StatusNotFound)
		return
	}

	var eventTypes []string
	if raw := r.URL.Query().Get("eventTypes"); raw != "" {
		eventTypes = strings.Split(raw, ",")
	}

	if err := svc.hub.SubscribeSSE(r.Context(), id, w, eventTypes); err != nil {
		logging.Error("rpc: sse subscription failed", "task_id", id, "error", err)
	}
}

func (svc *Service) handleListTasks(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	writeJSON(w, http.StatusOK, svc.store.List(sessionID))
}

// decodeSendParams schema-validates raw and then unmarshals it into
// SendParams.
func (svc *Service) decodeSendParams(raw json.RawMessage) (task.SendParams, error) {
	if err := svc.validator.Validate(raw); err != nil {
		return task.SendParams{}, err
	}

	var params task.SendParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return task.SendParams{}, fmt.Errorf("invalid params: %w", err)
	}
	return params, nil
}

// newTask builds a Task in the submitted state from validated params,
// minting an id with google/uuid if the caller did not supply one.
func (svc *Service) newTask(params task.SendParams) *task.Task {
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	taskType := params.Metadata.TaskType()

	return &task.Task{
		ID:        id,
		SessionID: params.SessionID,
		TaskType:  taskType,
		Message:   params.Message,
		Metadata:  params.Metadata,
		Status:    task.Status{State: task.StateSubmitted, Timestamp: time.Now().UTC()},
	}
}
