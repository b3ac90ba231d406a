// Package detector finds text regions with a DB (differentiable
// binarization) ONNX model.
package detector

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/onnx"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// runner executes the model on one tensor.
type runner interface {
	Run(t onnx.Tensor) ([]float32, []int64, error)
	Close() error
}

// Detector performs text detection using ONNX Runtime.
type Detector struct {
	config      Config
	session     runner
	constraints utils.ImageConstraints
	mu          sync.RWMutex
}

// Result is the raw probability map plus the regions found in it, scaled to
// the input image.
type Result struct {
	Regions  []Region
	MapW     int
	MapH     int
	Duration time.Duration
}

// NewDetector loads the model named by config.
func NewDetector(config Config) (*Detector, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateModelExists(config.ModelPath); err != nil {
		return nil, err
	}
	slog.Debug("initializing detector",
		"model_path", config.ModelPath,
		"gpu_enabled", config.GPU.UseGPU,
		"max_image_size", config.MaxImageSize)

	if err := onnx.Init(models.GetModelsDir(""), config.GPU); err != nil {
		return nil, err
	}
	sess, err := onnx.OpenSession(config.ModelPath, config.NumThreads, config.GPU)
	if err != nil {
		return nil, err
	}
	return newWithRunner(config, sess), nil
}

func newWithRunner(config Config, r runner) *Detector {
	return &Detector{
		config:  config,
		session: r,
		constraints: utils.ImageConstraints{
			MaxWidth:  config.MaxImageSize,
			MaxHeight: config.MaxImageSize,
			MinWidth:  32,
			MinHeight: 32,
		},
	}
}

// Config returns a copy of the detector configuration.
func (d *Detector) Config() Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// Close releases the session.
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.session == nil {
		return nil
	}
	err := d.session.Close()
	d.session = nil
	return err
}

// Detect runs the model on img and returns regions in img coordinates.
func (d *Detector) Detect(img image.Image) (*Result, error) {
	if img == nil {
		return nil, errors.New("input image is nil")
	}
	start := time.Now()

	resized, err := utils.ResizeImage(img, d.constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to resize image: %w", err)
	}
	data, w, h, err := utils.NormalizeImage(resized)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize image: %w", err)
	}
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return nil, fmt.Errorf("failed to create tensor: %w", err)
	}

	d.mu.RLock()
	sess, cfg := d.session, d.config
	d.mu.RUnlock()
	if sess == nil {
		return nil, errors.New("detector session is closed")
	}

	prob, shape, err := sess.Run(tensor)
	if err != nil {
		return nil, err
	}
	if len(shape) != 4 {
		return nil, fmt.Errorf("expected 4D output tensor, got %dD", len(shape))
	}
	mapW, mapH := int(shape[3]), int(shape[2])
	if len(prob) < mapW*mapH {
		return nil, fmt.Errorf("probability map has %d values, want %d", len(prob), mapW*mapH)
	}

	regions := PostProcessDB(prob[:mapW*mapH], mapW, mapH, PostProcessOptions{
		DBThresh:    cfg.DBThresh,
		BoxThresh:   cfg.BoxThresh,
		UnclipRatio: cfg.UnclipRatio,
		MinSize:     cfg.MinSize,
	})
	if cfg.UseNMS {
		regions = NonMaxSuppression(regions, cfg.NMSThreshold)
	}
	b := img.Bounds()
	regions = ScaleRegions(regions, mapW, mapH, b.Dx(), b.Dy())

	res := &Result{Regions: regions, MapW: mapW, MapH: mapH, Duration: time.Since(start)}
	slog.Debug("detection complete", "regions", len(regions), "duration", res.Duration)
	return res, nil
}
