package testutil

import (
	"context"
	"image"
	"sync"

	"github.com/MeKo-Tech/docverify/internal/detection"
	"github.com/MeKo-Tech/docverify/internal/engine"
)

// FakeEngine returns scripted detections per pass name.
type FakeEngine struct {
	Detections map[string]detection.Set
	Errors     map[string]error
	// Panic makes the named pass panic.
	Panic string

	mu     sync.Mutex
	calls  []engine.PassConfig
	closed bool
}

var _ engine.Engine = (*FakeEngine)(nil)

// NewFakeEngine scripts the "default" pass with set and leaves every other
// pass empty.
func NewFakeEngine(set detection.Set) *FakeEngine {
	return &FakeEngine{Detections: map[string]detection.Set{"default": set}}
}

func (f *FakeEngine) Name() string { return "fake" }

func (f *FakeEngine) ReadText(ctx context.Context, _ image.Image, pass engine.PassConfig) ([]detection.Detection, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pass)
	f.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if pass.Name == f.Panic {
		panic("scripted panic in " + pass.Name)
	}
	if err := f.Errors[pass.Name]; err != nil {
		return nil, err
	}
	return f.Detections[pass.Name].Clone(), nil
}

func (f *FakeEngine) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// Calls returns the passes seen so far.
func (f *FakeEngine) Calls() []engine.PassConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.PassConfig(nil), f.calls...)
}

// Closed reports whether Close was called.
func (f *FakeEngine) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
