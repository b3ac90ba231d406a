package engine

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MeKo-Tech/docverify/internal/detection"
)

// RunPasses applies every pass to img and returns one result per pass in
// pass order. A failing or panicking pass yields a result carrying a
// *PassError and no detections; the remaining passes still run.
func RunPasses(ctx context.Context, eng Engine, img image.Image, passes []PassConfig, concurrent bool) []detection.PassResult {
	results := make([]detection.PassResult, len(passes))
	if !concurrent || len(passes) < 2 {
		for i, p := range passes {
			results[i] = runPass(ctx, eng, img, p)
		}
		return results
	}

	var g errgroup.Group
	for i, p := range passes {
		g.Go(func() error {
			results[i] = runPass(ctx, eng, img, p)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func runPass(ctx context.Context, eng Engine, img image.Image, pass PassConfig) (res detection.PassResult) {
	res.Pass = pass.Name
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			res.Detections = nil
			res.Err = &PassError{Pass: pass.Name, Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Err != nil {
			slog.Warn("detection pass failed", "pass", pass.Name, "error", res.Err)
			return
		}
		slog.Debug("detection pass complete",
			"pass", pass.Name,
			"detections", len(res.Detections),
			"duration", time.Since(start))
	}()

	if err := ctx.Err(); err != nil {
		res.Err = &PassError{Pass: pass.Name, Err: err}
		return res
	}
	if err := pass.Validate(); err != nil {
		res.Err = &PassError{Pass: pass.Name, Err: err}
		return res
	}
	dets, err := eng.ReadText(ctx, img, pass)
	if err != nil {
		res.Err = &PassError{Pass: pass.Name, Err: err}
		return res
	}
	for i := range dets {
		if dets[i].Pass == "" {
			dets[i].Pass = pass.Name
		}
	}
	res.Detections = dets
	return res
}
