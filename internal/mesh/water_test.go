package mesh

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestShoreAgainstDryNeighbor(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	g.SetWaterLevel(0, 1)
	g.SetElevation(1, 1)

	// Open water toward the five missing neighbors.
	water := build(t, g, LayerWater)
	if tris, quads := shape(water); tris != 5 || quads != 0 {
		t.Fatalf("expected 5 water triangles, got %d triangles and %d quads", tris, quads)
	}
	if len(water.Colors) != 0 {
		t.Fatalf("expected no water colors, got %d", len(water.Colors))
	}

	// The edge fan and the strip over the bridge both belong to the shore.
	shore := build(t, g, LayerShore)
	if tris, quads := shape(shore); tris != shoreSegments || quads != shoreSegments {
		t.Fatalf("expected %d shore triangles and quads, got %d triangles and %d quads", shoreSegments, tris, quads)
	}
}

func TestShoreClosesTowardNextNeighbor(t *testing.T) {
	// Cell 0 sees dry cell 2 to the NE and cell 1 to the E.
	g := testGrid(t, 2, 2, 1, 1)
	g.SetWaterLevel(0, 1)

	shore := build(t, g, LayerShore)
	// Two edge fans, and the NE edge closes toward E; E has no SE neighbor.
	if tris, quads := shape(shore); tris != 2*shoreSegments+1 || quads != 2*shoreSegments {
		t.Fatalf("expected %d triangles and %d quads, got %d and %d", 2*shoreSegments+1, 2*shoreSegments, tris, quads)
	}
}

func TestOpenWaterBetweenFloodedCells(t *testing.T) {
	g := testGrid(t, 2, 1, 1, 1)
	g.SetWaterLevel(0, 1)
	g.SetWaterLevel(1, 1)

	water := build(t, g, LayerWater)
	if tris, quads := shape(water); tris != 12 || quads != 1 {
		t.Fatalf("expected 12 triangles and 1 quad, got %d and %d", tris, quads)
	}

	want := g.Metrics().WaterSurfaceY(1)
	for _, v := range water.Vertices {
		if mgl32.Abs(v[1]-want) > 1e-6 {
			t.Fatalf("expected water surface at %v, got vertex %v", want, v)
		}
	}
	if shore := build(t, g, LayerShore); !shore.Empty() {
		t.Fatalf("expected no shore, got %d triangles", shore.TriangleCount())
	}
}

func TestOpenWaterFillsCorner(t *testing.T) {
	g := testGrid(t, 2, 2, 1, 1)
	for i := 0; i < 4; i++ {
		g.SetWaterLevel(i, 1)
	}

	// 24 fans, 5 bridges and the 2 corners every flooded cell owns.
	water := build(t, g, LayerWater)
	if tris, quads := shape(water); tris != 26 || quads != 5 {
		t.Fatalf("expected 26 triangles and 5 quads, got %d and %d", tris, quads)
	}
}

func TestDryGridHasNoWater(t *testing.T) {
	g := testGrid(t, 3, 3, 1, 1)
	if m := build(t, g, LayerWater); !m.Empty() {
		t.Fatalf("expected empty water layer, got %d triangles", m.TriangleCount())
	}
}
