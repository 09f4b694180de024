// Package mesh triangulates grid chunks into terrain, water and shore meshes.
// Rebuilds are deferred: edits only mark chunks dirty, and the builder
// regenerates each dirty chunk at most once per pass.
package mesh

import (
	"log/slog"

	"github.com/talgya/hexterrain/internal/world"
)

// Sink receives every mesh the builder publishes. The mesh is owned by the
// builder and is overwritten by the next rebuild of the same chunk.
type Sink interface {
	ApplyMesh(chunkID int, layer Layer, m *Mesh)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(chunkID int, layer Layer, m *Mesh)

// ApplyMesh calls f.
func (f SinkFunc) ApplyMesh(chunkID int, layer Layer, m *Mesh) {
	f(chunkID, layer, m)
}

// Stats summarizes one rebuild pass.
type Stats struct {
	Chunks    int `json:"chunks"`
	Vertices  int `json:"vertices"`
	Triangles int `json:"triangles"`
}

// Builder owns the published meshes of every chunk of a grid.
// It is not safe for concurrent use.
type Builder struct {
	grid   *world.Grid
	pools  *Pools
	sink   Sink
	tri    *triangulator
	meshes [][layerCount]Mesh
}

// NewBuilder creates a builder for g. pools may be shared with other
// builders on the same goroutine; a nil pools gets a private set.
// A nil sink discards published meshes.
func NewBuilder(g *world.Grid, pools *Pools, sink Sink) *Builder {
	if pools == nil {
		pools = NewPools()
	}
	return &Builder{
		grid:   g,
		pools:  pools,
		sink:   sink,
		tri:    newTriangulator(g),
		meshes: make([][layerCount]Mesh, g.ChunkCount()),
	}
}

// SetSink replaces the publish target.
func (b *Builder) SetSink(s Sink) {
	b.sink = s
}

// Mesh returns the last published mesh of a chunk layer.
func (b *Builder) Mesh(chunkID int, layer Layer) (*Mesh, bool) {
	if chunkID < 0 || chunkID >= len(b.meshes) || layer >= layerCount {
		return nil, false
	}
	return &b.meshes[chunkID][layer], true
}

// RebuildIfDirty rebuilds a chunk only if it is marked dirty.
func (b *Builder) RebuildIfDirty(chunkID int) bool {
	c, ok := b.grid.Chunk(chunkID)
	if !ok || !c.Dirty() {
		return false
	}
	return b.Rebuild(chunkID)
}

// RebuildDirty rebuilds every dirty chunk once and returns what it did.
func (b *Builder) RebuildDirty() Stats {
	var s Stats
	for _, id := range b.grid.DirtyChunks() {
		if !b.Rebuild(id) {
			continue
		}
		s.Chunks++
		for _, l := range Layers {
			m := &b.meshes[id][l]
			s.Vertices += len(m.Vertices)
			s.Triangles += m.TriangleCount()
		}
	}
	if s.Chunks > 0 {
		slog.Debug("chunks rebuilt", "chunks", s.Chunks, "vertices", s.Vertices, "triangles", s.Triangles)
	}
	return s
}

// Rebuild triangulates a chunk unconditionally, publishes its three layers
// and clears its dirty flag. Returns false for an unknown chunk.
func (b *Builder) Rebuild(chunkID int) bool {
	c, ok := b.grid.Chunk(chunkID)
	if !ok {
		return false
	}

	b.tri.acquire(b.pools)
	for _, i := range c.Cells {
		cell, _ := b.grid.Cell(i)
		b.tri.triangulateCell(cell)
	}
	for _, l := range Layers {
		b.meshes[chunkID][l].copyFrom(b.tri.layer(l))
	}
	b.tri.release(b.pools)
	b.grid.ClearDirty(chunkID)

	if b.sink != nil {
		for _, l := range Layers {
			b.sink.ApplyMesh(chunkID, l, &b.meshes[chunkID][l])
		}
	}
	return true
}
