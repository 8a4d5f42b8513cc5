package pools

import (
	"sync"
)

// Float64SlicePool is a pool of float64 slices used as path buffers.
// Slices handed out by Get always have length n and may hold stale values.
type Float64SlicePool struct {
	pool sync.Pool
}

// NewFloat64SlicePool creates a new Float64SlicePool
func NewFloat64SlicePool() *Float64SlicePool {
	return &Float64SlicePool{
		pool: sync.Pool{
			New: func() interface{} {
				s := make([]float64, 0)
				return &s
			},
		},
	}
}

// Get retrieves a slice of length n from the pool, growing it if needed
func (p *Float64SlicePool) Get(n int) *[]float64 {
	s := p.pool.Get().(*[]float64)
	if cap(*s) < n {
		*s = make([]float64, n)
	}
	*s = (*s)[:n]
	return s
}

// Put returns a slice to the pool
func (p *Float64SlicePool) Put(s *[]float64) {
	if s == nil {
		return
	}
	*s = (*s)[:0]
	p.pool.Put(s)
}
