// Package recognizer reads the text inside detected regions with a CTC
// recognition model.
package recognizer

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"

	"github.com/MeKo-Tech/docverify/internal/models"
	"github.com/MeKo-Tech/docverify/internal/onnx"
	"github.com/MeKo-Tech/docverify/internal/utils"
)

// Decoder names.
const (
	DecoderGreedy     = "greedy"
	DecoderBeamSearch = "beamsearch"
)

// Config holds configuration for one recognition model.
type Config struct {
	ModelPath        string         `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	DictPath         string         `mapstructure:"dict_path" yaml:"dict_path" json:"dict_path"`
	Language         string         `mapstructure:"language" yaml:"language" json:"language"`
	UseSpace         bool           `mapstructure:"use_space" yaml:"use_space" json:"use_space"`
	ImageHeight      int            `mapstructure:"image_height" yaml:"image_height" json:"image_height"`
	MaxWidth         int            `mapstructure:"max_width" yaml:"max_width" json:"max_width"`
	PadWidthMultiple int            `mapstructure:"pad_width_multiple" yaml:"pad_width_multiple" json:"pad_width_multiple"`
	NumThreads       int            `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
	GPU              onnx.GPUConfig `mapstructure:"gpu" yaml:"gpu" json:"gpu"`
}

// DefaultConfig returns the configuration for lang with model files under
// modelsDir.
func DefaultConfig(modelsDir, lang string) (Config, error) {
	model, err := models.RecognitionModelPath(modelsDir, lang)
	if err != nil {
		return Config{}, err
	}
	dict, err := models.DictionaryPath(modelsDir, lang)
	if err != nil {
		return Config{}, err
	}
	return Config{
		ModelPath:        model,
		DictPath:         dict,
		Language:         lang,
		UseSpace:         true,
		ImageHeight:      48,
		MaxWidth:         1280,
		PadWidthMultiple: 8,
		GPU:              onnx.DefaultGPUConfig(),
	}, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ModelPath == "" {
		return errors.New("model path cannot be empty")
	}
	if c.DictPath == "" {
		return errors.New("dictionary path cannot be empty")
	}
	if c.ImageHeight < 8 {
		return fmt.Errorf("image height must be >= 8, got %d", c.ImageHeight)
	}
	if c.MaxWidth < 0 || c.PadWidthMultiple < 0 {
		return errors.New("width limits cannot be negative")
	}
	return c.GPU.Validate()
}

// DecodeOptions selects the CTC decoder.
type DecodeOptions struct {
	Decoder   string `mapstructure:"decoder" yaml:"decoder" json:"decoder"`
	BeamWidth int    `mapstructure:"beam_width" yaml:"beam_width" json:"beam_width"`
}

// ValidateDecoder reports whether name is a known decoder.
func ValidateDecoder(name string) error {
	switch strings.ToLower(name) {
	case "", DecoderGreedy, DecoderBeamSearch:
		return nil
	}
	return fmt.Errorf("unknown decoder %q", name)
}

// Result is the text read from one region.
type Result struct {
	Text       string
	Confidence float64
	Language   string
}

type runner interface {
	Run(t onnx.Tensor) ([]float32, []int64, error)
	Close() error
}

// Recognizer performs text recognition using ONNX Runtime.
type Recognizer struct {
	config  Config
	charset *Charset
	session runner
	mu      sync.RWMutex
}

// NewRecognizer loads the model and dictionary named by config.
func NewRecognizer(config Config) (*Recognizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if err := models.ValidateModelExists(config.ModelPath); err != nil {
		return nil, err
	}
	charset, err := LoadCharset(config.DictPath, config.UseSpace)
	if err != nil {
		return nil, err
	}
	slog.Debug("initializing recognizer",
		"language", config.Language,
		"model_path", config.ModelPath,
		"charset_size", charset.Size())

	if err := onnx.Init(models.GetModelsDir(""), config.GPU); err != nil {
		return nil, err
	}
	sess, err := onnx.OpenSession(config.ModelPath, config.NumThreads, config.GPU)
	if err != nil {
		return nil, err
	}
	return newWithRunner(config, charset, sess), nil
}

func newWithRunner(config Config, charset *Charset, r runner) *Recognizer {
	return &Recognizer{config: config, charset: charset, session: r}
}

// Config returns a copy of the recognizer configuration.
func (r *Recognizer) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

// Language returns the configured language code.
func (r *Recognizer) Language() string { return r.Config().Language }

// Close releases the session.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return nil
	}
	err := r.session.Close()
	r.session = nil
	return err
}

// Recognize reads the text inside box of img.
func (r *Recognizer) Recognize(img image.Image, box utils.Box, opts DecodeOptions) (Result, error) {
	crop, err := CropRegion(img, box)
	if err != nil {
		return Result{}, err
	}
	return r.RecognizeCrop(crop, opts)
}

// RecognizeCrop reads a single pre-cropped text line.
func (r *Recognizer) RecognizeCrop(crop image.Image, opts DecodeOptions) (Result, error) {
	r.mu.RLock()
	sess, cfg, charset := r.session, r.config, r.charset
	r.mu.RUnlock()
	if sess == nil {
		return Result{}, errors.New("recognizer session is closed")
	}

	resized, _, err := ResizeForRecognition(crop, cfg.ImageHeight, cfg.MaxWidth, cfg.PadWidthMultiple)
	if err != nil {
		return Result{}, fmt.Errorf("failed to resize region: %w", err)
	}
	data, w, h := NormalizeForRecognition(resized)
	tensor, err := onnx.NewImageTensor(data, 3, h, w)
	if err != nil {
		return Result{}, fmt.Errorf("failed to create tensor: %w", err)
	}
	out, shape, err := sess.Run(tensor)
	if err != nil {
		return Result{}, err
	}
	frames, err := FramesFromOutput(out, shape, charset.Size())
	if err != nil {
		return Result{}, err
	}

	var dec Decoded
	if strings.EqualFold(opts.Decoder, DecoderBeamSearch) {
		width := opts.BeamWidth
		if width <= 0 {
			width = DefaultBeamWidth
		}
		dec = DecodeBeam(frames, Blank, width)
	} else {
		dec = DecodeGreedy(frames, Blank)
	}

	return Result{
		Text:       CleanText(charset.Text(dec.Indices)),
		Confidence: dec.Confidence(),
		Language:   cfg.Language,
	}, nil
}
