// Package onnx wraps ONNX Runtime setup shared by the text detector and the
// text recognizer.
package onnx

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// LibraryEnv overrides the shared library location.
const LibraryEnv = "ONNXRUNTIME_LIB"

// GPUConfig holds CUDA execution provider settings.
type GPUConfig struct {
	UseGPU      bool   `mapstructure:"use_gpu" yaml:"use_gpu" json:"use_gpu"`
	DeviceID    int    `mapstructure:"device_id" yaml:"device_id" json:"device_id"`
	GPUMemLimit uint64 `mapstructure:"mem_limit" yaml:"mem_limit" json:"mem_limit"`
}

// DefaultGPUConfig returns a CPU-only configuration.
func DefaultGPUConfig() GPUConfig {
	return GPUConfig{}
}

// Validate checks the GPU settings.
func (c GPUConfig) Validate() error {
	if c.UseGPU && c.DeviceID < 0 {
		return fmt.Errorf("device ID must be non-negative, got %d", c.DeviceID)
	}
	return nil
}

func libraryName() (string, error) {
	switch runtime.GOOS {
	case "linux":
		return "libonnxruntime.so", nil
	case "darwin":
		return "libonnxruntime.dylib", nil
	case "windows":
		return "onnxruntime.dll", nil
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}
}

// LibraryCandidates lists the paths probed for the runtime library, most
// specific first. modelsDir may be empty.
func LibraryCandidates(modelsDir string, useGPU bool) []string {
	var out []string
	if p := os.Getenv(LibraryEnv); p != "" {
		out = append(out, p)
	}
	name, err := libraryName()
	if err != nil {
		return out
	}
	if modelsDir != "" {
		root := filepath.Dir(filepath.Clean(modelsDir))
		if useGPU {
			out = append(out, filepath.Join(root, "onnxruntime", "gpu", "lib", name))
		}
		out = append(out, filepath.Join(root, "onnxruntime", "lib", name))
	}
	if useGPU {
		out = append(out, filepath.Join("/opt/onnxruntime/gpu/lib", name))
	}
	return append(out,
		filepath.Join("/usr/local/lib", name),
		filepath.Join("/usr/lib", name),
		filepath.Join("/opt/onnxruntime/cpu/lib", name),
	)
}

var initMu sync.Mutex

// Init points ONNX Runtime at the first existing library candidate and
// initializes the environment once per process.
func Init(modelsDir string, gpu GPUConfig) error {
	initMu.Lock()
	defer initMu.Unlock()
	if ort.IsInitialized() {
		return nil
	}

	found := ""
	for _, p := range LibraryCandidates(modelsDir, gpu.UseGPU) {
		if _, err := os.Stat(p); err == nil {
			found = p
			break
		}
	}
	if found == "" {
		return errors.New("ONNX Runtime library not found; set " + LibraryEnv)
	}
	ort.SetSharedLibraryPath(found)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize ONNX Runtime: %w", err)
	}
	slog.Debug("onnx runtime initialized", "library", found)
	return nil
}

// Shutdown releases the process-wide environment.
func Shutdown() error {
	initMu.Lock()
	defer initMu.Unlock()
	if !ort.IsInitialized() {
		return nil
	}
	return ort.DestroyEnvironment()
}

// NewSessionOptions builds session options with the thread count and, when
// requested, the CUDA provider. The caller destroys the options.
func NewSessionOptions(numThreads int, gpu GPUConfig) (*ort.SessionOptions, error) {
	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	if numThreads > 0 {
		if err := opts.SetIntraOpNumThreads(numThreads); err != nil {
			_ = opts.Destroy()
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}
	if gpu.UseGPU {
		if err := appendCUDA(opts, gpu); err != nil {
			// CPU execution still works without the provider.
			slog.Warn("CUDA provider unavailable, using CPU", "error", err)
		}
	}
	return opts, nil
}

func appendCUDA(opts *ort.SessionOptions, gpu GPUConfig) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("failed to create CUDA provider options: %w", err)
	}
	defer func() { _ = cuda.Destroy() }()

	settings := map[string]string{
		"device_id":                 strconv.Itoa(gpu.DeviceID),
		"arena_extend_strategy":     "kNextPowerOfTwo",
		"cudnn_conv_algo_search":    "DEFAULT",
		"do_copy_in_default_stream": "1",
	}
	if gpu.GPUMemLimit > 0 {
		settings["gpu_mem_limit"] = strconv.FormatUint(gpu.GPUMemLimit, 10)
	}
	if err := cuda.Update(settings); err != nil {
		return fmt.Errorf("failed to update CUDA provider options: %w", err)
	}
	if err := opts.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("failed to append CUDA execution provider: %w", err)
	}
	return nil
}

// Session is a single-input single-output model session.
type Session struct {
	mu     sync.Mutex
	sess   *ort.DynamicAdvancedSession
	Input  ort.InputOutputInfo
	Output ort.InputOutputInfo
}

// OpenSession loads the model at path. The first input and output are used.
func OpenSession(path string, numThreads int, gpu GPUConfig) (*Session, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("model file not found: %s: %w", path, err)
	}
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return nil, fmt.Errorf("model %s has no inputs or outputs", path)
	}
	opts, err := NewSessionOptions(numThreads, gpu)
	if err != nil {
		return nil, err
	}
	defer func() { _ = opts.Destroy() }()

	sess, err := ort.NewDynamicAdvancedSession(path,
		[]string{inputs[0].Name}, []string{outputs[0].Name}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return &Session{sess: sess, Input: inputs[0], Output: outputs[0]}, nil
}

// Run feeds t and returns a copy of the float32 output with its shape.
func (s *Session) Run(t Tensor) ([]float32, []int64, error) {
	if err := VerifyImageTensor(t); err != nil {
		return nil, nil, fmt.Errorf("invalid tensor: %w", err)
	}
	in, err := ort.NewTensor(ort.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer func() { _ = in.Destroy() }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil, errors.New("session is closed")
	}
	outputs := []ort.Value{nil}
	if err := s.sess.Run([]ort.Value{in}, outputs); err != nil {
		return nil, nil, fmt.Errorf("inference failed: %w", err)
	}
	out := outputs[0]
	defer func() { _ = out.Destroy() }()

	ft, ok := out.(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("expected float32 tensor, got %T", out)
	}
	data := make([]float32, len(ft.GetData()))
	copy(data, ft.GetData())
	shape := out.GetShape()
	return data, append([]int64(nil), shape...), nil
}

// Close destroys the session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil
	}
	err := s.sess.Destroy()
	s.sess = nil
	return err
}
