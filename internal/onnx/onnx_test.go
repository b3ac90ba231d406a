package onnx

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewImageTensor(t *testing.T) {
	tt, err := NewImageTensor(make([]float32, 3*4*5), 3, 4, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 3, 4, 5}, tt.Shape)
	require.NoError(t, VerifyImageTensor(tt))

	_, err = NewImageTensor(nil, 3, 4, 5)
	require.Error(t, err)
	_, err = NewImageTensor(make([]float32, 7), 3, 4, 5)
	require.Error(t, err)
}

func TestVerifyImageTensor(t *testing.T) {
	tests := []struct {
		name string
		t    Tensor
		ok   bool
	}{
		{"valid", Tensor{Data: make([]float32, 6), Shape: []int64{1, 1, 2, 3}}, true},
		{"rank 3", Tensor{Data: make([]float32, 6), Shape: []int64{1, 2, 3}}, false},
		{"zero dim", Tensor{Data: nil, Shape: []int64{1, 0, 2, 3}}, false},
		{"length mismatch", Tensor{Data: make([]float32, 5), Shape: []int64{1, 1, 2, 3}}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := VerifyImageTensor(tc.t)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestLibraryCandidates(t *testing.T) {
	t.Setenv(LibraryEnv, "/custom/libonnxruntime.so")
	got := LibraryCandidates(filepath.Join("/srv", "app", "models"), true)
	require.NotEmpty(t, got)
	assert.Equal(t, "/custom/libonnxruntime.so", got[0])
	assert.Contains(t, got[1], filepath.Join("/srv", "app", "onnxruntime", "gpu", "lib"))

	t.Setenv(LibraryEnv, "")
	cpu := LibraryCandidates("", false)
	for _, p := range cpu {
		assert.NotContains(t, p, "gpu")
	}
}

func TestGPUConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultGPUConfig().Validate())
	assert.Error(t, GPUConfig{UseGPU: true, DeviceID: -1}.Validate())
}

func TestOpenSession_MissingModel(t *testing.T) {
	_, err := OpenSession(filepath.Join(t.TempDir(), "none.onnx"), 1, DefaultGPUConfig())
	assert.Error(t, err)
}
