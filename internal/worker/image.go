package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/driftforge/a2a-genengine/internal/task"
)

// imageMinPromptLen is the shortest prompt the text2image worker accepts
// before asking the caller to clarify.
const imageMinPromptLen = 5

// imageTimeout bounds a single text2image execution's wall clock.
const imageTimeout = 180 * time.Second

// ImageWorker drives ImageProvider.Generate as a cooperatively-cancellable
// update sequence for the text2image skill.
type ImageWorker struct {
	Provider ImageProvider
}

// NewImageWorker wires provider into a ready-to-use ImageWorker.
func NewImageWorker(provider ImageProvider) *ImageWorker {
	return &ImageWorker{Provider: provider}
}

// Handle implements Worker.
func (w *ImageWorker) Handle(ctx context.Context, rc RunContext) <-chan Update {
	out := make(chan Update, 4)

	go func() {
		defer close(out)

		prompt := strings.TrimSpace(rc.Task.Prompt())
		if prompt == "" {
			out <- TextMessage(task.StateInputRequired, "A non-empty prompt is required to generate an image.")
			return
		}
		if len(prompt) < imageMinPromptLen {
			out <- TextMessage(task.StateInputRequired, "Prompt is too short; please describe the image in more detail.")
			return
		}

		if rc.Cancelled() {
			out <- TextMessage(task.StateCancelled, "Cancelled before generation started.")
			return
		}

		out <- TextMessage(task.StateWorking, "Submitting prompt to the image generation backend...")

		genCtx, cancel := context.WithTimeout(ctx, imageTimeout)
		defer cancel()

		assetURL, err := w.Provider.Generate(genCtx, prompt)

		if rc.Cancelled() {
			out <- TextMessage(task.StateCancelled, "Cancelled during generation.")
			return
		}

		if err != nil {
			if genCtx.Err() != nil {
				out <- TextMessage(task.StateFailed, "Image generation timed out.")
				return
			}
			out <- TextMessage(task.StateFailed, fmt.Sprintf("Image generation failed: %v", err))
			return
		}

		out <- Update{
			State: task.StateCompleted,
			Message: task.Message{
				Role:  "agent",
				Parts: []task.Part{{Type: task.PartText, Text: "Image generated successfully."}},
			},
			Artifacts: []task.Artifact{{
				Index: 0,
				Parts: []task.ArtifactPart{
					{Type: task.PartImage, URL: assetURL},
					{Type: task.PartText, Text: metadataBlob(prompt)},
				},
			}},
		}
	}()

	return out
}

// metadataBlob produces the JSON-encoded sidecar text part that accompanies
// every generated asset's artifact alongside the primary media part.
func metadataBlob(prompt string) string {
	return fmt.Sprintf(`{"prompt":%q}`, prompt)
}
