package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/world"
)

// cornerPoint is one vertex of a three-cell corner with the cell it belongs to.
type cornerPoint struct {
	pos   mgl32.Vec3
	cell  *world.Cell
	color mgl32.Vec4
}

func edgeBetween(a, b cornerPoint) world.EdgeType {
	return world.ClassifyEdge(a.cell.Elevation, b.cell.Elevation)
}

// triangulateCorner fills the triangle where three cells meet. bottom must be
// the lowest of the three, with left and right following clockwise.
func (t *triangulator) triangulateCorner(bottom, left, right cornerPoint) {
	leftEdge := edgeBetween(bottom, left)
	rightEdge := edgeBetween(bottom, right)

	switch {
	case leftEdge == world.EdgeSlope && rightEdge == world.EdgeSlope:
		t.triangulateCornerTerraces(bottom, left, right)
	case leftEdge == world.EdgeSlope && rightEdge == world.EdgeFlat:
		t.triangulateCornerTerraces(left, right, bottom)
	case leftEdge == world.EdgeSlope:
		t.triangulateCornerTerracesCliff(bottom, left, right)
	case rightEdge == world.EdgeSlope && leftEdge == world.EdgeFlat:
		t.triangulateCornerTerraces(right, bottom, left)
	case rightEdge == world.EdgeSlope:
		t.triangulateCornerCliffTerraces(bottom, left, right)
	case edgeBetween(left, right) == world.EdgeSlope:
		if left.cell.Elevation < right.cell.Elevation {
			t.triangulateCornerCliffTerraces(right, bottom, left)
		} else {
			t.triangulateCornerTerracesCliff(left, right, bottom)
		}
	default:
		t.flatCorner(bottom, left, right)
	}
}

func (t *triangulator) flatCorner(a, b, c cornerPoint) {
	t.terrain.addTriangle(a.pos, b.pos, c.pos)
	t.terrain.addTriangleColors(a.color, b.color, c.color)
}

// triangulateCornerTerraces handles two sloped edges meeting at begin: a
// triangle at the bottom, then one quad per remaining terrace step.
func (t *triangulator) triangulateCornerTerraces(begin, left, right cornerPoint) {
	v3 := t.m.TerraceLerp(begin.pos, left.pos, 1)
	v4 := t.m.TerraceLerp(begin.pos, right.pos, 1)
	c3 := t.m.TerraceColorLerp(begin.color, left.color, 1)
	c4 := t.m.TerraceColorLerp(begin.color, right.color, 1)

	t.terrain.addTriangle(begin.pos, v3, v4)
	t.terrain.addTriangleColors(begin.color, c3, c4)

	for i := 2; i < t.m.TerraceSteps; i++ {
		v1, v2, c1, c2 := v3, v4, c3, c4
		v3 = t.m.TerraceLerp(begin.pos, left.pos, i)
		v4 = t.m.TerraceLerp(begin.pos, right.pos, i)
		c3 = t.m.TerraceColorLerp(begin.color, left.color, i)
		c4 = t.m.TerraceColorLerp(begin.color, right.color, i)
		t.terrain.addQuad(v1, v2, v3, v4)
		t.terrain.addQuadColors(c1, c2, c3, c4)
	}

	t.terrain.addQuad(v3, v4, left.pos, right.pos)
	t.terrain.addQuadColors(c3, c4, left.color, right.color)
}

// triangulateCornerTerracesCliff handles a sloped left edge and a cliff on the
// right. The terraces collapse onto a boundary point on the cliff edge.
func (t *triangulator) triangulateCornerTerracesCliff(begin, left, right cornerPoint) {
	delta := right.cell.Elevation - begin.cell.Elevation
	if delta == 0 {
		t.flatCorner(begin, left, right)
		return
	}
	b := boundaryRatio(delta)
	boundary := world.Lerp(begin.pos, right.pos, b)
	boundaryColor := world.LerpColor(begin.color, right.color, b)

	t.triangulateBoundaryTriangle(begin, left, boundary, boundaryColor)
	t.closeBoundary(left, right, boundary, boundaryColor)
}

// triangulateCornerCliffTerraces mirrors triangulateCornerTerracesCliff for a
// cliff on the left and a sloped right edge.
func (t *triangulator) triangulateCornerCliffTerraces(begin, left, right cornerPoint) {
	delta := left.cell.Elevation - begin.cell.Elevation
	if delta == 0 {
		t.flatCorner(begin, left, right)
		return
	}
	b := boundaryRatio(delta)
	boundary := world.Lerp(begin.pos, left.pos, b)
	boundaryColor := world.LerpColor(begin.color, left.color, b)

	t.triangulateBoundaryTriangle(right, begin, boundary, boundaryColor)
	t.closeBoundary(left, right, boundary, boundaryColor)
}

// closeBoundary fills the top half of a terrace/cliff corner, terraced when
// the upper two cells form a slope.
func (t *triangulator) closeBoundary(left, right cornerPoint, boundary mgl32.Vec3, boundaryColor mgl32.Vec4) {
	if edgeBetween(left, right) == world.EdgeSlope {
		t.triangulateBoundaryTriangle(left, right, boundary, boundaryColor)
		return
	}
	t.terrain.addTriangle(left.pos, right.pos, boundary)
	t.terrain.addTriangleColors(left.color, right.color, boundaryColor)
}

// triangulateBoundaryTriangle fans terrace steps from begin to left, all
// converging on the boundary point.
func (t *triangulator) triangulateBoundaryTriangle(begin, left cornerPoint, boundary mgl32.Vec3, boundaryColor mgl32.Vec4) {
	v2 := t.m.TerraceLerp(begin.pos, left.pos, 1)
	c2 := t.m.TerraceColorLerp(begin.color, left.color, 1)

	t.terrain.addTriangle(begin.pos, v2, boundary)
	t.terrain.addTriangleColors(begin.color, c2, boundaryColor)

	for i := 2; i < t.m.TerraceSteps; i++ {
		v1, c1 := v2, c2
		v2 = t.m.TerraceLerp(begin.pos, left.pos, i)
		c2 = t.m.TerraceColorLerp(begin.color, left.color, i)
		t.terrain.addTriangle(v1, v2, boundary)
		t.terrain.addTriangleColors(c1, c2, boundaryColor)
	}

	t.terrain.addTriangle(v2, left.pos, boundary)
	t.terrain.addTriangleColors(c2, left.color, boundaryColor)
}

// boundaryRatio is how far along a cliff edge the terraces of a one-level
// slope meet it.
func boundaryRatio(delta int) float32 {
	b := 1 / float32(delta)
	if b < 0 {
		b = -b
	}
	return b
}
