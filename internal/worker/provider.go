package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/driftforge/a2a-genengine/internal/logging"
	"github.com/driftforge/a2a-genengine/pkg/httputil"
)

// ImageProvider is the external collaborator that actually talks to a
// third-party text-to-image generation API. The engine depends only on this
// interface; concrete providers (Stability, Replicate, a house model, ...)
// are thin adapters outside the scope of this package.
type ImageProvider interface {
	// Generate submits prompt and returns the URL of the generated asset.
	// Implementations should poll internally and only return once the job
	// reaches a terminal state or ctx is done.
	Generate(ctx context.Context, prompt string) (assetURL string, err error)
}

// VideoProvider is the image-to-video analogue of ImageProvider.
type VideoProvider interface {
	Generate(ctx context.Context, imageURLs []string, durationSeconds int) (assetURL string, err error)
}

// HTTPImageProvider is a minimal, generic REST adapter: POST the prompt to
// submit a job, then poll GET until the backend reports a terminal state.
// It is intentionally provider-agnostic — concrete generation APIs are
// external collaborators — and is the image provider cmd/a2aserver wires in
// when DEMO_MODE is off.
type HTTPImageProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPImageProvider constructs a provider bound to baseURL using the
// package's standard provider-call HTTP timeout.
func NewHTTPImageProvider(baseURL string) *HTTPImageProvider {
	return &HTTPImageProvider{
		BaseURL: baseURL,
		Client:  httputil.NewHTTPClient(httputil.DefaultProviderTimeout),
	}
}

type submitJobResponse struct {
	JobID string `json:"jobId"`
}

type pollJobResponse struct {
	State    string `json:"state"` // "pending", "completed", "failed"
	AssetURL string `json:"assetUrl"`
	Error    string `json:"error"`
}

// Generate implements ImageProvider by submitting then polling a generic
// job-style backend, propagating the caller's trace context on every call.
func (p *HTTPImageProvider) Generate(ctx context.Context, prompt string) (string, error) {
	jobID, err := p.submit(ctx, map[string]any{"prompt": prompt})
	if err != nil {
		return "", err
	}
	return p.poll(ctx, jobID)
}

func (p *HTTPImageProvider) submit(ctx context.Context, body map[string]any) (string, error) {
	data, _ := json.Marshal(body)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/jobs", newJSONReader(data))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider submit: non-2xx status %d", resp.StatusCode)
	}

	var out submitJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provider submit: decode response: %w", err)
	}
	if out.JobID == "" {
		return "", fmt.Errorf("provider submit: missing jobId in response")
	}
	return out.JobID, nil
}

// pollInterval governs the generic backend's poll cadence.
const pollInterval = 2 * time.Second

func (p *HTTPImageProvider) poll(ctx context.Context, jobID string) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+"/jobs/"+jobID, nil)
			if err != nil {
				return "", err
			}
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

			resp, err := p.Client.Do(req)
			if err != nil {
				logging.Warn("provider poll failed", "job_id", jobID, "error", err)
				continue
			}
			var out pollJobResponse
			decErr := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if decErr != nil {
				return "", fmt.Errorf("provider poll: decode response: %w", decErr)
			}

			switch out.State {
			case "completed":
				if out.AssetURL == "" {
					return "", fmt.Errorf("provider poll: completed job missing assetUrl")
				}
				return out.AssetURL, nil
			case "failed":
				if out.Error == "" {
					out.Error = "backend reported failure"
				}
				return "", fmt.Errorf("provider: %s", out.Error)
			default:
				continue // still pending
			}
		}
	}
}

// HTTPVideoProvider is the text2video analogue of HTTPImageProvider.
type HTTPVideoProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPVideoProvider constructs a provider bound to baseURL.
func NewHTTPVideoProvider(baseURL string) *HTTPVideoProvider {
	return &HTTPVideoProvider{
		BaseURL: baseURL,
		Client:  httputil.NewHTTPClient(httputil.DefaultProviderTimeout),
	}
}

// Generate implements VideoProvider.
func (p *HTTPVideoProvider) Generate(ctx context.Context, imageURLs []string, durationSeconds int) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"imageUrls": imageURLs,
		"duration":  durationSeconds,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/jobs", newJSONReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("provider submit: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("provider submit: non-2xx status %d", resp.StatusCode)
	}

	var out submitJobResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("provider submit: decode response: %w", err)
	}

	return pollGeneric(ctx, p.Client, p.BaseURL, out.JobID)
}

func pollGeneric(ctx context.Context, client *http.Client, baseURL, jobID string) (string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/jobs/"+jobID, nil)
			if err != nil {
				return "", err
			}
			otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
			resp, err := client.Do(req)
			if err != nil {
				continue
			}
			var out pollJobResponse
			decErr := json.NewDecoder(resp.Body).Decode(&out)
			resp.Body.Close()
			if decErr != nil {
				return "", fmt.Errorf("provider poll: decode response: %w", decErr)
			}
			switch out.State {
			case "completed":
				return out.AssetURL, nil
			case "failed":
				if out.Error == "" {
					out.Error = "backend reported failure"
				}
				return "", fmt.Errorf("provider: %s", out.Error)
			default:
				continue
			}
		}
	}
}
