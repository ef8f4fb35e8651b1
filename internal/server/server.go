// Package server assembles the engine's components into a runnable HTTP
// server: task store, notification hub, worker registry, processor, queue,
// and the A2AService's HTTP surface, plus graceful shutdown. Grounded on the
// teacher's a2aserver.Server lifecycle (Handler/ListenAndServe/Shutdown).
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/driftforge/a2a-genengine/internal/notify"
	"github.com/driftforge/a2a-genengine/internal/processor"
	"github.com/driftforge/a2a-genengine/internal/queue"
	"github.com/driftforge/a2a-genengine/internal/rpc"
	"github.com/driftforge/a2a-genengine/internal/store"
	"github.com/driftforge/a2a-genengine/internal/worker"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second
	defaultReadTimeout       = 30 * time.Second
	defaultWriteTimeout      = 0 // SSE connections are held open indefinitely
	defaultIdleTimeout       = 120 * time.Second
)

// Config configures a Server's network binding and scheduling limits.
type Config struct {
	Host string
	Port int

	Queue queue.Config

	// AgentCard is served verbatim at /.well-known/agent.json; nil serves
	// an empty JSON object.
	AgentCard []byte
}

// Server owns the wired component graph and the *http.Server bound to it.
type Server struct {
	cfg     Config
	store   store.Store
	hub     *notify.Hub
	queue   *queue.Queue
	service *rpc.Service

	httpSrv *http.Server
}

// New wires store, hub, the given worker registry, processor, queue, and
// the A2AService into a ready-to-serve Server.
func New(cfg Config, registry worker.Registry) (*Server, error) {
	s := store.New()
	hub := notify.New()
	s.AddListener(hub.Emit)

	proc := processor.New(s, registry)
	q := queue.New(proc, cfg.Queue)

	svc, err := rpc.New(s, q, hub, cfg.AgentCard)
	if err != nil {
		return nil, fmt.Errorf("server: failed to build service: %w", err)
	}

	return &Server{cfg: cfg, store: s, hub: hub, queue: q, service: svc}, nil
}

// ListenAndServe starts the HTTP server on cfg.Host:cfg.Port and blocks
// until it stops or errors.
func (srv *Server) ListenAndServe() error {
	srv.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", srv.cfg.Host, srv.cfg.Port),
		Handler:           srv.service.Handler(),
		ReadHeaderTimeout: defaultReadHeaderTimeout,
		ReadTimeout:       defaultReadTimeout,
		WriteTimeout:      defaultWriteTimeout,
		IdleTimeout:       defaultIdleTimeout,
	}
	return srv.httpSrv.ListenAndServe()
}

// Shutdown gracefully drains in-flight HTTP requests (including open SSE
// connections, which observe ctx cancellation through their request
// context). It does not forcibly cancel queued or in-flight tasks; process
// exit is the engine's only destruction path for those per the data model.
func (srv *Server) Shutdown(ctx context.Context) error {
	if srv.httpSrv == nil {
		return nil
	}
	return srv.httpSrv.Shutdown(ctx)
}

// QueueStatus exposes the queue's current cardinalities, e.g. for a
// diagnostics endpoint or tests.
func (srv *Server) QueueStatus() queue.Status {
	return srv.queue.Status()
}
