package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeKo-Tech/docverify/internal/extract"
	"github.com/MeKo-Tech/docverify/internal/testutil"
)

type recordingProgress struct {
	mu       sync.Mutex
	total    int
	progress []int
	errors   []int
	complete bool
}

func (r *recordingProgress) OnStart(total int) { r.total = total }

func (r *recordingProgress) OnProgress(current, _ int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, current)
}

func (r *recordingProgress) OnComplete() { r.complete = true }

func (r *recordingProgress) OnError(current int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, current)
}

func TestProcessBatch(t *testing.T) {
	p := newTestPipeline(t, testutil.NewFakeEngine(testutil.Lines(arabicIqama)))
	good := cardBytes(t)

	items := make([]BatchItem, 6)
	for i := range items {
		items[i] = BatchItem{Name: fmt.Sprintf("doc%d.png", i), Source: FromBytes(good)}
	}
	items[3].Source = FromBytes([]byte("not an image"))

	prog := &recordingProgress{}
	results := p.ProcessBatch(context.Background(), extract.IqamaType, items, BatchConfig{Workers: 3, Progress: prog})
	require.Len(t, results, len(items))
	for i, r := range results {
		assert.Equal(t, items[i].Name, r.Name, "results keep input order")
		if i == 3 {
			assert.ErrorIs(t, r.Err, ErrImageDecode)
			continue
		}
		require.NoError(t, r.Err)
		assert.Equal(t, arabicIqama, r.Outcome.Record.(*extract.Iqama).IqamaNumberArabic)
	}

	assert.Equal(t, len(items), prog.total)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, prog.progress)
	assert.Equal(t, []int{3}, prog.errors)
	assert.True(t, prog.complete)

	stats := CalculateBatchStats(results, time.Second)
	assert.Equal(t, BatchStats{Total: 6, Succeeded: 5, Failed: 1, Duration: time.Second}, stats)
}

func TestProcessBatch_Empty(t *testing.T) {
	p := newTestPipeline(t, testutil.NewFakeEngine(nil))
	assert.Empty(t, p.ProcessBatch(context.Background(), extract.IqamaType, nil, BatchConfig{}))
}

func TestProcessBatch_Cancelled(t *testing.T) {
	p := newTestPipeline(t, testutil.NewFakeEngine(testutil.Lines(arabicIqama)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	items := []BatchItem{{Name: "a", Source: FromBytes(cardBytes(t))}, {Name: "b", Source: FromBytes(cardBytes(t))}}
	results := p.ProcessBatch(ctx, extract.IqamaType, items, BatchConfig{Workers: 1})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.True(t, errors.Is(r.Err, context.Canceled), "got %v", r.Err)
	}
}

func TestCalculateBatchStats(t *testing.T) {
	results := []BatchResult{
		{Err: nil},
		{Err: ErrNoTextDetected},
		{Err: fmt.Errorf("wrapped: %w", ErrNoTextDetected)},
		{Err: errors.New("boom")},
	}
	s := CalculateBatchStats(results, 0)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Succeeded)
	assert.Equal(t, 2, s.NoText)
	assert.Equal(t, 1, s.Failed)
}
