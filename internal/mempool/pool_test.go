package mempool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSizeClass(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{-1, 4096},
		{0, 4096},
		{1, 4096},
		{4096, 4096},
		{4097, 8192},
		{10000, 12288},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sizeClass(tt.in), "n=%d", tt.in)
	}
}

func TestGetReturnsZeroedLength(t *testing.T) {
	buf := GetFloat32(100)
	assert.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 100)
	for i := range buf {
		buf[i] = 1
	}
	PutFloat32(buf)

	again := GetFloat32(50)
	for _, v := range again {
		assert.Zero(t, v)
	}
	PutFloat32(again)
}

func TestPutIgnoresForeignBuffers(t *testing.T) {
	assert.NotPanics(t, func() {
		PutFloat32(nil)
		PutFloat32(make([]float32, 10))
		PutBool(make([]bool, 0, 3))
	})
}

func TestConcurrentUse(t *testing.T) {
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				b := GetBool(1000 + g*i)
				for j := range b {
					if b[j] {
						t.Error("bool buffer not cleared")
						return
					}
					b[j] = true
				}
				PutBool(b)

				n := GetInt(64)
				n[0] = g
				PutInt(n)
			}
		}(g)
	}
	wg.Wait()
}
