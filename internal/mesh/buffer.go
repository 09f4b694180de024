package mesh

import "github.com/go-gl/mathgl/mgl32"

// Layer identifies one of the mesh streams a chunk publishes.
type Layer uint8

const (
	LayerTerrain Layer = iota
	LayerWater
	LayerShore
	layerCount
)

// Layers lists every layer in publish order.
var Layers = [layerCount]Layer{LayerTerrain, LayerWater, LayerShore}

func (l Layer) String() string {
	switch l {
	case LayerTerrain:
		return "terrain"
	case LayerWater:
		return "water"
	case LayerShore:
		return "shore"
	}
	return "unknown"
}

// ParseLayer resolves a layer name as returned by String.
func ParseLayer(s string) (Layer, bool) {
	for _, l := range Layers {
		if l.String() == s {
			return l, true
		}
	}
	return 0, false
}

// Mesh is a published triangle list. Water layers carry no colors.
type Mesh struct {
	Vertices []mgl32.Vec3 `json:"vertices"`
	Colors   []mgl32.Vec4 `json:"colors,omitempty"`
	Indices  []uint32     `json:"indices"`
}

// TriangleCount returns the number of indexed triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Indices) / 3
}

// Empty reports whether the mesh has no geometry.
func (m *Mesh) Empty() bool {
	return len(m.Indices) == 0
}

// Equal reports whether two meshes hold identical streams.
func (m *Mesh) Equal(o *Mesh) bool {
	if len(m.Vertices) != len(o.Vertices) || len(m.Colors) != len(o.Colors) || len(m.Indices) != len(o.Indices) {
		return false
	}
	for i := range m.Vertices {
		if m.Vertices[i] != o.Vertices[i] {
			return false
		}
	}
	for i := range m.Colors {
		if m.Colors[i] != o.Colors[i] {
			return false
		}
	}
	for i := range m.Indices {
		if m.Indices[i] != o.Indices[i] {
			return false
		}
	}
	return true
}

// copyFrom replaces the mesh streams with the buffer contents, reusing the
// mesh's own storage.
func (m *Mesh) copyFrom(b *buffer) {
	m.Vertices = append(m.Vertices[:0], b.vertices...)
	m.Colors = append(m.Colors[:0], b.colors...)
	m.Indices = append(m.Indices[:0], b.indices...)
}

// buffer accumulates one layer's geometry during a rebuild. Its slices are
// borrowed from Pools and handed back once the mesh is published.
type buffer struct {
	vertices []mgl32.Vec3
	colors   []mgl32.Vec4
	indices  []uint32
}

func (b *buffer) acquire(p *Pools) {
	b.vertices = p.Vertices.Get()
	b.colors = p.Colors.Get()
	b.indices = p.Indices.Get()
}

func (b *buffer) release(p *Pools) {
	p.Vertices.Put(b.vertices)
	p.Colors.Put(b.colors)
	p.Indices.Put(b.indices)
	b.vertices, b.colors, b.indices = nil, nil, nil
}

func (b *buffer) addTriangle(v1, v2, v3 mgl32.Vec3) {
	i := uint32(len(b.vertices))
	b.vertices = append(b.vertices, v1, v2, v3)
	b.indices = append(b.indices, i, i+1, i+2)
}

// addQuad adds v1 v2 along the near edge and v3 v4 along the far edge.
func (b *buffer) addQuad(v1, v2, v3, v4 mgl32.Vec3) {
	i := uint32(len(b.vertices))
	b.vertices = append(b.vertices, v1, v2, v3, v4)
	b.indices = append(b.indices, i, i+2, i+1, i+1, i+2, i+3)
}

func (b *buffer) addTriangleColor(c mgl32.Vec4) {
	b.colors = append(b.colors, c, c, c)
}

func (b *buffer) addTriangleColors(c1, c2, c3 mgl32.Vec4) {
	b.colors = append(b.colors, c1, c2, c3)
}

// addQuadColor2 colors the near edge c1 and the far edge c2.
func (b *buffer) addQuadColor2(c1, c2 mgl32.Vec4) {
	b.colors = append(b.colors, c1, c1, c2, c2)
}

func (b *buffer) addQuadColors(c1, c2, c3, c4 mgl32.Vec4) {
	b.colors = append(b.colors, c1, c2, c3, c4)
}
