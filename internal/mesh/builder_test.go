package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/world"
)

func testGrid(t *testing.T, sizeX, sizeZ, countX, countZ int) *world.Grid {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.ChunkSizeX, cfg.ChunkSizeZ = sizeX, sizeZ
	cfg.ChunkCountX, cfg.ChunkCountZ = countX, countZ
	g, err := world.NewGrid(cfg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	return g
}

// shape splits a buffer into its triangle and quad counts. Every triangle
// adds 3 vertices and 3 indices, every quad 4 vertices and 6 indices.
func shape(m *Mesh) (triangles, quads int) {
	quads = (len(m.Indices) - len(m.Vertices)) / 2
	triangles = (len(m.Vertices) - 4*quads) / 3
	return triangles, quads
}

func build(t *testing.T, g *world.Grid, layer Layer) *Mesh {
	t.Helper()
	b := NewBuilder(g, nil, nil)
	if !b.Rebuild(0) {
		t.Fatal("Rebuild(0) returned false")
	}
	m, _ := b.Mesh(0, layer)
	return m
}

func TestFlatPairHasOneBridge(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	m := build(t, g, LayerTerrain)

	tris, quads := shape(m)
	if tris != 12 || quads != 1 {
		t.Fatalf("expected 12 triangles and 1 quad, got %d and %d", tris, quads)
	}
	if len(m.Colors) != len(m.Vertices) {
		t.Fatalf("expected one color per vertex, got %d colors for %d vertices", len(m.Colors), len(m.Vertices))
	}
}

func TestFlatRhombusHasTwoCorners(t *testing.T) {
	g := testGrid(t, 2, 2, 1, 1)
	m := build(t, g, LayerTerrain)

	// 4 cells × 6 fans + 2 corners; 5 shared edges.
	tris, quads := shape(m)
	if tris != 26 || quads != 5 {
		t.Fatalf("expected 26 triangles and 5 quads, got %d and %d", tris, quads)
	}
}

func TestSlopeBecomesTerraces(t *testing.T) {
	steps := world.DefaultConfig().TerracesPerSlope*2 + 1

	for _, base := range []int{0, 5} {
		g := testGrid(t, 2, 1, 1, 1)
		g.SetElevation(0, base)
		g.SetElevation(1, base+1)
		m := build(t, g, LayerTerrain)

		tris, quads := shape(m)
		if tris != 12 || quads != steps {
			t.Fatalf("base %d: expected 12 triangles and %d quads, got %d and %d", base, steps, tris, quads)
		}
	}
}

func TestCliffIsSingleQuad(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	g.SetElevation(1, 3)
	m := build(t, g, LayerTerrain)

	if _, quads := shape(m); quads != 1 {
		t.Fatalf("expected 1 quad across a cliff, got %d", quads)
	}
}

func TestRaisedCellTerracesBridgesAndCorners(t *testing.T) {
	g := testGrid(t, 2, 2, 1, 1)
	g.SetElevation(1, 1)
	m := build(t, g, LayerTerrain)

	// Three sloped bridges of 5 quads, two flat bridges, and two
	// terraced corners of 1 triangle and 4 quads each.
	tris, quads := shape(m)
	if tris != 26 || quads != 25 {
		t.Fatalf("expected 26 triangles and 25 quads, got %d and %d", tris, quads)
	}
}

func TestBridgeMeetsNeighborSolidEdge(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	g.SetElevation(1, 1)
	m := build(t, g, LayerTerrain)

	metrics := g.Metrics()
	c1, _ := g.Cell(1)
	targets := []mgl32.Vec3{
		c1.Position.Add(metrics.SolidCornerA(world.DirW)),
		c1.Position.Add(metrics.SolidCornerB(world.DirW)),
	}
	// Each solid corner belongs to two fans of cell 1; the bridge adds a third.
	for _, want := range targets {
		n := 0
		for _, v := range m.Vertices {
			if v.ApproxEqualThreshold(want, 1e-4) {
				n++
			}
		}
		if n < 3 {
			t.Fatalf("expected the bridge to end at %v, found %d matching vertices", want, n)
		}
	}
}

func TestTerraceHeights(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	g.SetElevation(1, 1)
	metrics := g.Metrics()
	top := metrics.ElevationY(1)

	heights := map[float32]bool{}
	for _, v := range build(t, g, LayerTerrain).Vertices {
		heights[v[1]] = true
	}
	// Flat treads at 0, 1/3 and 2/3 of the step, then the top.
	for i := 0; i <= metrics.TerracesPerSlope+1; i++ {
		want := top * float32(i) / float32(metrics.TerracesPerSlope+1)
		found := false
		for h := range heights {
			if mgl32.Abs(h-want) < 1e-5 {
				found = true
			}
		}
		if !found {
			t.Fatalf("expected a vertex at height %v, got heights %v", want, heights)
		}
	}
}

func TestRebuildIsIdempotent(t *testing.T) {
	g := testGrid(t, 3, 3, 1, 1)
	g.SetElevation(4, 2)
	g.SetElevation(5, 1)
	g.SetWaterLevel(0, 1)

	b := NewBuilder(g, nil, nil)
	b.Rebuild(0)
	var first [layerCount]Mesh
	for _, l := range Layers {
		m, _ := b.Mesh(0, l)
		first[l] = Mesh{
			Vertices: append([]mgl32.Vec3(nil), m.Vertices...),
			Colors:   append([]mgl32.Vec4(nil), m.Colors...),
			Indices:  append([]uint32(nil), m.Indices...),
		}
	}

	b.Rebuild(0)
	for _, l := range Layers {
		m, _ := b.Mesh(0, l)
		if !m.Equal(&first[l]) {
			t.Fatalf("%s layer changed between identical rebuilds", l)
		}
	}
}

func TestRebuildDirtyClearsFlags(t *testing.T) {
	g := testGrid(t, 2, 2, 3, 3)

	published := map[int]int{}
	b := NewBuilder(g, nil, SinkFunc(func(id int, _ Layer, _ *Mesh) {
		published[id]++
	}))

	s := b.RebuildDirty()
	if s.Chunks != 9 {
		t.Fatalf("expected 9 chunks on first pass, got %d", s.Chunks)
	}
	if len(g.DirtyChunks()) != 0 {
		t.Fatalf("expected no dirty chunks, got %v", g.DirtyChunks())
	}
	for id := 0; id < 9; id++ {
		if published[id] != len(Layers) {
			t.Fatalf("chunk %d: expected %d publishes, got %d", id, len(Layers), published[id])
		}
	}

	if s := b.RebuildDirty(); s.Chunks != 0 {
		t.Fatalf("expected clean pass to rebuild nothing, got %d", s.Chunks)
	}

	// Cell at offset (2,2) sits in chunk 4 and borders chunks 0, 1 and 3.
	c, _ := g.CellAtOffset(2, 2)
	g.SetElevation(c.Index, 1)
	g.SetElevation(c.Index, 2)
	if s := b.RebuildDirty(); s.Chunks != 4 {
		t.Fatalf("expected 4 chunks after edit, got %d", s.Chunks)
	}
}

func TestRebuildIfDirty(t *testing.T) {
	g := testGrid(t, 2, 2, 2, 1)
	b := NewBuilder(g, nil, nil)

	if !b.RebuildIfDirty(1) {
		t.Fatal("expected fresh chunk to rebuild")
	}
	if b.RebuildIfDirty(1) {
		t.Fatal("expected clean chunk to be skipped")
	}
	if b.RebuildIfDirty(7) || b.Rebuild(-1) {
		t.Fatal("expected unknown chunk to be rejected")
	}
	if _, ok := b.Mesh(7, LayerTerrain); ok {
		t.Fatal("expected no mesh for unknown chunk")
	}
}

func TestBuffersReturnToPool(t *testing.T) {
	g := testGrid(t, 2, 2, 2, 1)
	pools := NewPools()
	b := NewBuilder(g, pools, nil)

	b.RebuildDirty()
	if got := pools.Vertices.Idle(); got != len(Layers) {
		t.Fatalf("expected %d idle vertex lists, got %d", len(Layers), got)
	}
	b.Rebuild(0)
	if got := pools.Indices.Idle(); got != len(Layers) {
		t.Fatalf("expected pool to stay at %d idle index lists, got %d", len(Layers), got)
	}
}

func TestSplatColors(t *testing.T) {
	cfg := world.DefaultConfig()
	cfg.ChunkSizeX, cfg.ChunkSizeZ = 1, 1
	cfg.ChunkCountX, cfg.ChunkCountZ = 1, 1
	cfg.SplatColors = true
	g, err := world.NewGrid(cfg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	g.SetColor(0, mgl32.Vec4{0.2, 0.3, 0.4, 1})

	for i, c := range build(t, g, LayerTerrain).Colors {
		if c != splatSelf {
			t.Fatalf("color %d: expected splat weight %v, got %v", i, splatSelf, c)
		}
	}
}
