// Package mempool keeps size-classed scratch buffers for the image and
// tensor hot paths.
package mempool

import "sync"

const step = 4096

// Pool hands out slices of T bucketed by capacity.
type Pool[T any] struct {
	buckets sync.Map // size class -> *sync.Pool
}

// sizeClass rounds n up to a multiple of step, with step as the floor.
func sizeClass(n int) int {
	if n <= step {
		return step
	}
	return (n + step - 1) / step * step
}

func (p *Pool[T]) bucket(cls int) *sync.Pool {
	if b, ok := p.buckets.Load(cls); ok {
		return b.(*sync.Pool)
	}
	b, _ := p.buckets.LoadOrStore(cls, &sync.Pool{New: func() any {
		s := make([]T, cls)
		return &s
	}})
	return b.(*sync.Pool)
}

// Get returns a zeroed slice of length n.
func (p *Pool[T]) Get(n int) []T {
	if n < 0 {
		n = 0
	}
	cls := sizeClass(n)
	sp := p.bucket(cls).Get().(*[]T)
	buf := *sp
	if cap(buf) < cls {
		buf = make([]T, cls)
	}
	buf = buf[:n]
	clear(buf)
	return buf
}

// Put returns buf for reuse. Buffers that did not come from Get are accepted
// when their capacity is an exact size class.
func (p *Pool[T]) Put(buf []T) {
	if cap(buf) == 0 || cap(buf)%step != 0 {
		return
	}
	buf = buf[:cap(buf)]
	p.bucket(cap(buf)).Put(&buf)
}

var (
	float32s Pool[float32]
	bools    Pool[bool]
	ints     Pool[int]
)

// GetFloat32 returns a zeroed []float32 of length n from the shared pool.
func GetFloat32(n int) []float32 { return float32s.Get(n) }

// PutFloat32 releases a buffer obtained from GetFloat32.
func PutFloat32(buf []float32) { float32s.Put(buf) }

// GetBool returns a zeroed []bool of length n from the shared pool.
func GetBool(n int) []bool { return bools.Get(n) }

// PutBool releases a buffer obtained from GetBool.
func PutBool(buf []bool) { bools.Put(buf) }

// GetInt returns a zeroed []int of length n from the shared pool.
func GetInt(n int) []int { return ints.Get(n) }

// PutInt releases a buffer obtained from GetInt.
func PutInt(buf []int) { ints.Put(buf) }
