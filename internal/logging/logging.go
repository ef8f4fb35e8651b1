// Package logging provides structured logging for the engine, wrapping
// log/slog with level control from the environment and helpers for the
// domain events worth a consistent shape: task transitions, worker calls,
// and notification delivery. Adapted from the teacher's runtime/logger
// package; the LLM-call-specific helpers there have no home here and are
// replaced with this engine's own event vocabulary.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// Default is the global structured logger. Safe for concurrent use.
var Default *slog.Logger

func init() {
	Default = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(os.Getenv("LOG_LEVEL")),
	}))
}

// ParseLevel maps a LOG_LEVEL string ("debug", "warn"/"warning", "error",
// anything else/empty defaulting to "info") to a slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// SetLevel replaces Default with one configured at the given level. Safe for
// concurrent use since it swaps the whole logger pointer.
func SetLevel(level slog.Level) {
	Default = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func Info(msg string, args ...any)  { Default.Info(msg, args...) }
func Debug(msg string, args ...any) { Default.Debug(msg, args...) }
func Warn(msg string, args ...any)  { Default.Warn(msg, args...) }
func Error(msg string, args ...any) { Default.Error(msg, args...) }

func InfoContext(ctx context.Context, msg string, args ...any) {
	Default.InfoContext(ctx, msg, args...)
}

// TaskTransition logs a task moving between lifecycle states.
func TaskTransition(taskID string, from, to string, attrs ...any) {
	all := append([]any{"task_id", taskID, "from", from, "to", to}, attrs...)
	Info("task transition", all...)
}

// WorkerCall logs the start of a worker execution for a task type.
func WorkerCall(taskID, taskType string) {
	Info("worker invoked", "task_id", taskID, "task_type", taskType)
}

// WorkerFailed logs a worker-originated failure.
func WorkerFailed(taskID, taskType string, err error) {
	Error("worker failed", "task_id", taskID, "task_type", taskType, "error", err)
}

// NotificationDelivered logs a successful notification delivery.
func NotificationDelivered(taskID string, eventType string, transport string) {
	Debug("notification delivered", "task_id", taskID, "event_type", eventType, "transport", transport)
}

// NotificationFailed logs a failed delivery attempt (e.g. non-2xx webhook).
func NotificationFailed(taskID string, eventType string, transport string, err error) {
	Warn("notification delivery failed", "task_id", taskID, "event_type", eventType, "transport", transport, "error", err)
}

// QueueRetry logs a retry being scheduled for a failed task.
func QueueRetry(taskID string, attempt, maxRetries int, delay string) {
	Warn("queue scheduling retry", "task_id", taskID, "attempt", attempt, "max_retries", maxRetries, "delay", delay)
}
