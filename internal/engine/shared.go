package engine

import (
	"context"
	"sync"
)

// Factory builds an engine.
type Factory func(ctx context.Context) (Engine, error)

var shared struct {
	mu   sync.Mutex
	once *sync.Once
	eng  Engine
	err  error
}

// Shared returns the process-wide engine, building it with factory on first
// use. Later calls return the same engine, or the same construction error,
// and ignore their factory.
func Shared(ctx context.Context, factory Factory) (Engine, error) {
	shared.mu.Lock()
	if shared.once == nil {
		shared.once = new(sync.Once)
	}
	once := shared.once
	shared.mu.Unlock()

	once.Do(func() {
		eng, err := factory(ctx)
		shared.mu.Lock()
		shared.eng, shared.err = eng, err
		shared.mu.Unlock()
	})

	shared.mu.Lock()
	defer shared.mu.Unlock()
	return shared.eng, shared.err
}

// ShutdownShared closes the shared engine. The next Shared call builds a new
// one.
func ShutdownShared() error {
	shared.mu.Lock()
	defer shared.mu.Unlock()
	var err error
	if shared.eng != nil {
		err = shared.eng.Close()
	}
	shared.eng, shared.err, shared.once = nil, nil, nil
	return err
}
