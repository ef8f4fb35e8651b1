// Command a2aserver runs the A2A generation engine's HTTP server: the
// JSON-RPC task surface, SSE/webhook notifications, and the bounded task
// queue driving the text2image and text2video workers.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/driftforge/a2a-genengine/internal/config"
	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/internal/metrics"
	"github.com/driftforge/a2a-genengine/internal/server"
	"github.com/driftforge/a2a-genengine/internal/worker"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "a2aserver",
	Short: "A2A generation engine: task orchestration and notification server",
	RunE:  run,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to an optional YAML config file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logging.SetLevel(logging.ParseLevel(cfg.LogLevel))

	registry := buildRegistry(cfg)

	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}
	go serveMetrics(reg)

	srv, err := server.New(server.Config{
		Host:      cfg.Host,
		Port:      cfg.Port,
		Queue:     cfg.Queue,
		AgentCard: agentCardJSON,
	}, registry)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("server starting", "host", cfg.Host, "port", cfg.Port, "demo_mode", cfg.DemoMode)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logging.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// buildRegistry selects real HTTP-backed providers, or local stub providers
// under DEMO_MODE, and wires each into its skill worker.
func buildRegistry(cfg config.Config) worker.Registry {
	var imageProvider worker.ImageProvider
	var videoProvider worker.VideoProvider

	if cfg.DemoMode {
		imageProvider = worker.NewStubImageProvider()
		videoProvider = worker.NewStubVideoProvider()
	} else {
		imageProvider = worker.NewHTTPImageProvider(cfg.ImageProviderURL)
		videoProvider = worker.NewHTTPVideoProvider(cfg.VideoProviderURL)
	}

	return worker.Registry{
		"text2image": worker.NewImageWorker(imageProvider),
		"text2video": worker.NewVideoWorker(videoProvider),
	}
}

// agentCardJSON is the static capability card served at
// /.well-known/agent.json. Its full construction (skills metadata, provider
// descriptions) is an outer concern; the engine serves whatever document it
// is configured with.
var agentCardJSON = []byte(`{
	"name": "a2a-genengine",
	"description": "Agent-to-Agent task orchestration engine for text2image and text2video generation",
	"capabilities": {"streaming": true, "pushNotifications": true},
	"skills": [
		{"id": "text2image", "name": "Text to Image"},
		{"id": "text2video", "name": "Text to Video"}
	]
}`)

func serveMetrics(reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	addr := os.Getenv("METRICS_ADDR")
	if addr == "" {
		addr = ":9090"
	}
	if err := http.ListenAndServe(addr, mux); err != nil && err != http.ErrServerClosed {
		logging.Error("metrics server stopped", "error", err)
	}
}
