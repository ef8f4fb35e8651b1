package worker

import (
	"context"
	"fmt"
	"time"
)

// StubImageProvider and StubVideoProvider are thin local stand-ins for the
// real generation backends, selected by DEMO_MODE so the service is usable
// without upstream provider credentials. They are adapters, not core engine
// behavior: the processor and workers above never know which provider
// implementation they were handed.
type StubImageProvider struct {
	// Delay simulates backend latency before returning the asset URL.
	Delay time.Duration
}

// NewStubImageProvider returns a StubImageProvider with a small fixed delay.
func NewStubImageProvider() *StubImageProvider {
	return &StubImageProvider{Delay: 500 * time.Millisecond}
}

// Generate implements ImageProvider by waiting Delay and returning a
// placeholder URL built from the current time; the prompt is not used.
func (p *StubImageProvider) Generate(ctx context.Context, prompt string) (string, error) {
	select {
	case <-time.After(p.Delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("https://demo.invalid/images/%d.png", time.Now().UnixNano()), nil
}

// StubVideoProvider is the text2video analogue of StubImageProvider.
type StubVideoProvider struct {
	Delay time.Duration
}

// NewStubVideoProvider returns a StubVideoProvider with a small fixed delay.
func NewStubVideoProvider() *StubVideoProvider {
	return &StubVideoProvider{Delay: 500 * time.Millisecond}
}

// Generate implements VideoProvider by waiting Delay and returning a
// placeholder URL built from the current time.
func (p *StubVideoProvider) Generate(ctx context.Context, imageURLs []string, durationSeconds int) (string, error) {
	select {
	case <-time.After(p.Delay):
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return fmt.Sprintf("https://demo.invalid/videos/%d.mp4", time.Now().UnixNano()), nil
}
