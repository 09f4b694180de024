package mesh

import "github.com/go-gl/mathgl/mgl32"

// ListPool recycles slices of one element type between rebuilds.
// It is not safe for concurrent use; rebuilds are serialized by the caller.
type ListPool[T any] struct {
	free [][]T
}

// Get returns an empty slice, reusing a released one when available.
func (p *ListPool[T]) Get() []T {
	if n := len(p.free); n > 0 {
		l := p.free[n-1]
		p.free = p.free[:n-1]
		return l
	}
	return make([]T, 0, 64)
}

// Put clears l and keeps its storage for the next Get.
func (p *ListPool[T]) Put(l []T) {
	if l == nil {
		return
	}
	p.free = append(p.free, l[:0])
}

// Idle returns the number of slices waiting in the pool.
func (p *ListPool[T]) Idle() int {
	return len(p.free)
}

// Pools groups one ListPool per buffer element type.
type Pools struct {
	Vertices ListPool[mgl32.Vec3]
	Colors   ListPool[mgl32.Vec4]
	Indices  ListPool[uint32]
}

// NewPools returns an empty set of pools.
func NewPools() *Pools {
	return &Pools{}
}
