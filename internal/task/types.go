// Package task defines the A2A data model: tasks, messages, parts, artifacts,
// and the JSON-RPC envelopes the service exchanges with clients. It carries no
// behavior beyond small helpers for extracting the fields the engine needs
// (first text part, well-known metadata keys) and Task.Transition, which
// appends the prior status to the history; persistence lives in package store.
package task

import (
	"encoding/json"
	"time"
)

// State is one of the A2A task lifecycle states.
type State string

const (
	StateSubmitted     State = "submitted"
	StateWorking       State = "working"
	StateInputRequired State = "input-required"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
)

// Terminal reports whether state admits no further transitions.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// PartType discriminates the payload carried by a Part.
type PartType string

const (
	PartText  PartType = "text"
	PartImage PartType = "image"
	PartAudio PartType = "audio"
	PartVideo PartType = "video"
	PartFile  PartType = "file"
)

// Part is one typed fragment of a Message or Artifact.
type Part struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	AudioURL string   `json:"audioUrl,omitempty"`
	File     string   `json:"file,omitempty"`
}

// Message is a single user or agent utterance: a sequence of typed parts.
type Message struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// FirstText returns the text of the first text part, or "" if none exists.
func (m Message) FirstText() string {
	for _, p := range m.Parts {
		if p.Type == PartText {
			return p.Text
		}
	}
	return ""
}

// Metadata is the free-form key/value bag attached to a task. Recognized
// keys are documented per-worker; everything else passes through untouched.
type Metadata map[string]any

// ImageURLs reads the "imageUrls" key as an ordered list of strings.
// Non-string entries are skipped.
func (m Metadata) ImageURLs() []string {
	raw, ok := m["imageUrls"]
	if !ok {
		return nil
	}
	items, ok := raw.([]any)
	if !ok {
		if ss, ok := raw.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Duration reads the "duration" key, coercing anything but 5 to 10 per the
// text2video worker's contract.
func (m Metadata) Duration() int {
	raw, ok := m["duration"]
	if !ok {
		return 10
	}
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case int:
		n = float64(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return 10
		}
		n = f
	default:
		return 10
	}
	if n == 5 {
		return 5
	}
	return 10
}

// TaskType reads the "taskType" key.
func (m Metadata) TaskType() string {
	if v, ok := m["taskType"].(string); ok {
		return v
	}
	return ""
}

// Status is a point-in-time snapshot of a task's lifecycle state.
type Status struct {
	State     State      `json:"state"`
	Timestamp time.Time  `json:"timestamp"`
	Message   *Message   `json:"message,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// ArtifactPart is one typed fragment of an Artifact.
type ArtifactPart struct {
	Type     PartType `json:"type"`
	Text     string   `json:"text,omitempty"`
	URL      string   `json:"url,omitempty"`
	AudioURL string   `json:"audioUrl,omitempty"`
	File     string   `json:"file,omitempty"`
}

// Artifact is a terminal output attached to a completed task.
type Artifact struct {
	Parts    []ArtifactPart `json:"parts"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Index    int            `json:"index"`
}

// Task is the full record tracked by the store for the lifetime of one
// generation request.
type Task struct {
	ID        string   `json:"id"`
	SessionID string   `json:"sessionId,omitempty"`
	TaskType  string   `json:"taskType,omitempty"`
	Message   Message  `json:"message"`
	Metadata  Metadata `json:"metadata,omitempty"`
	Status    Status   `json:"status"`
	History   []Status `json:"history,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Prompt returns the prompt text derived from the first text part of the
// task's message.
func (t *Task) Prompt() string {
	return t.Message.FirstText()
}

// Clone returns a deep-enough copy of the task for safe handoff to listeners
// that must not observe later in-place mutation.
func (t *Task) Clone() *Task {
	cp := *t
	cp.History = append([]Status(nil), t.History...)
	cp.Artifacts = append([]Artifact(nil), t.Artifacts...)
	if t.Metadata != nil {
		cp.Metadata = make(Metadata, len(t.Metadata))
		for k, v := range t.Metadata {
			cp.Metadata[k] = v
		}
	}
	cp.Message.Parts = append([]Part(nil), t.Message.Parts...)
	return &cp
}
