package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driftforge/a2a-genengine/internal/task"
)

// videoMinPromptLen is the shortest prompt the text2video worker accepts.
const videoMinPromptLen = 5

// videoTimeout bounds a single text2video execution's wall clock.
const videoTimeout = 300 * time.Second

// VideoWorker drives VideoProvider.Generate for the text2video skill. Unlike
// ImageWorker it additionally requires metadata.imageUrls: the backend
// animates a supplied image sequence rather than generating from scratch.
type VideoWorker struct {
	Provider VideoProvider
}

// NewVideoWorker wires provider into a ready-to-use VideoWorker.
func NewVideoWorker(provider VideoProvider) *VideoWorker {
	return &VideoWorker{Provider: provider}
}

// Handle implements Worker.
func (w *VideoWorker) Handle(ctx context.Context, rc RunContext) <-chan Update {
	out := make(chan Update, 4)

	go func() {
		defer close(out)

		prompt := strings.TrimSpace(rc.Task.Prompt())
		if prompt == "" {
			out <- TextMessage(task.StateInputRequired, "A non-empty prompt is required to generate a video.")
			return
		}
		if len(prompt) < videoMinPromptLen {
			out <- TextMessage(task.StateInputRequired, "Prompt is too short; please describe the video in more detail.")
			return
		}

		imageURLs := rc.Task.Metadata.ImageURLs()
		if len(imageURLs) == 0 {
			// Missing imageUrls is a backend invalid-request: the caller
			// already had the chance to supply it at submission time, so
			// this fails the task rather than asking for clarification.
			out <- TextMessage(task.StateFailed, "text2video requires one or more source image URLs in metadata.imageUrls.")
			return
		}

		if rc.Cancelled() {
			out <- TextMessage(task.StateCancelled, "Cancelled before generation started.")
			return
		}

		duration := rc.Task.Metadata.Duration()
		out <- TextMessage(task.StateWorking, fmt.Sprintf("Submitting %d source image(s) for %ds video generation...", len(imageURLs), duration))

		genCtx, cancel := context.WithTimeout(ctx, videoTimeout)
		defer cancel()

		assetURL, err := w.Provider.Generate(genCtx, imageURLs, duration)

		if rc.Cancelled() {
			out <- TextMessage(task.StateCancelled, "Cancelled during generation.")
			return
		}

		if err != nil {
			if genCtx.Err() != nil {
				out <- TextMessage(task.StateFailed, "Video generation timed out.")
				return
			}
			out <- TextMessage(task.StateFailed, fmt.Sprintf("Video generation failed: %v", err))
			return
		}

		out <- Update{
			State: task.StateCompleted,
			Message: task.Message{
				Role:  "agent",
				Parts: []task.Part{{Type: task.PartText, Text: "Video generated successfully."}},
			},
			Artifacts: []task.Artifact{{
				Index: 0,
				Parts: []task.ArtifactPart{
					{Type: task.PartVideo, URL: assetURL},
					{Type: task.PartText, Text: metadataBlob(prompt)},
				},
			}},
		}
	}()

	return out
}
