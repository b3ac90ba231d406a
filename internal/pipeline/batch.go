package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"time"

	"github.com/MeKo-Tech/docverify/internal/extract"
)

// BatchItem is one document of a batch.
type BatchItem struct {
	Name   string
	Source Source
}

// BatchResult pairs an item with its outcome. Err is set for failures;
// Outcome may still be non-nil for ErrNoTextDetected.
type BatchResult struct {
	Name    string
	Outcome *Outcome
	Err     error
}

// BatchConfig controls the worker pool.
type BatchConfig struct {
	Workers  int // 0 means runtime.NumCPU()
	Progress ProgressCallback
}

// BatchStats summarizes a finished batch.
type BatchStats struct {
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	NoText    int           `json:"no_text"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration_ns"`
}

type batchJob struct {
	index int
	item  BatchItem
}

// ProcessBatch extracts every item as document type t on a worker pool.
// Results keep the input order. Items left unprocessed after cancellation
// carry the context error.
func (p *Pipeline) ProcessBatch(ctx context.Context, t extract.DocumentType, items []BatchItem, cfg BatchConfig) []BatchResult {
	results := make([]BatchResult, len(items))
	if len(items) == 0 {
		return results
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(items))
	progress := cfg.Progress
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	progress.OnStart(len(items))
	defer progress.OnComplete()

	done := make([]bool, len(items))
	jobs := make(chan batchJob)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		finished int
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out, err := p.Process(ctx, t, job.item.Source)
				mu.Lock()
				results[job.index] = BatchResult{Name: job.item.Name, Outcome: out, Err: err}
				done[job.index] = true
				finished++
				if err != nil {
					progress.OnError(job.index, err)
				}
				progress.OnProgress(finished, len(items))
				mu.Unlock()
			}
		}()
	}

send:
	for i, it := range items {
		select {
		case jobs <- batchJob{index: i, item: it}:
		case <-ctx.Done():
			break send
		}
	}
	close(jobs)
	wg.Wait()

	for i := range results {
		if !done[i] {
			results[i] = BatchResult{Name: items[i].Name, Err: ctx.Err()}
		}
	}
	return results
}

// CalculateBatchStats counts the outcomes of a batch.
func CalculateBatchStats(results []BatchResult, elapsed time.Duration) BatchStats {
	s := BatchStats{Total: len(results), Duration: elapsed}
	for _, r := range results {
		switch {
		case r.Err == nil:
			s.Succeeded++
		case errors.Is(r.Err, ErrNoTextDetected):
			s.NoText++
		default:
			s.Failed++
		}
	}
	return s
}
