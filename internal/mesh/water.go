package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/world"
)

// shoreSegments is the number of fan triangles along a shore edge.
const shoreSegments = 4

func (t *triangulator) triangulateWater(c *world.Cell, d world.Direction) {
	center := c.Position
	center[1] = t.m.WaterSurfaceY(c.WaterLevel)

	n, ok := t.grid.Neighbor(c.Index, d)
	if ok && !n.IsUnderwater() {
		t.triangulateShore(c, d, center)
		return
	}
	t.triangulateOpenWater(c, n, d, center)
}

// triangulateOpenWater covers the water surface toward an absent or flooded
// neighbor. Bridges and corners follow the same ownership rules as terrain.
func (t *triangulator) triangulateOpenWater(c, n *world.Cell, d world.Direction, center mgl32.Vec3) {
	c1 := center.Add(t.m.SolidCornerA(d))
	c2 := center.Add(t.m.SolidCornerB(d))
	t.water.addTriangle(center, c1, c2)

	if d > world.DirSE || n == nil {
		return
	}
	bridge := t.m.Bridge(d)
	e1 := c1.Add(bridge)
	e2 := c2.Add(bridge)
	t.water.addQuad(c1, c2, e1, e2)

	if d > world.DirE {
		return
	}
	next, ok := t.grid.Neighbor(c.Index, d.Next())
	if !ok || !next.IsUnderwater() {
		return
	}
	t.water.addTriangle(c2, e2, c2.Add(t.m.Bridge(d.Next())))
}

// triangulateShore fans the solid edge facing a dry neighbor and extends it
// over the bridge as a strip, so the surface meets the land's slope.
func (t *triangulator) triangulateShore(c *world.Cell, d world.Direction, center mgl32.Vec3) {
	e1 := edgeVertices(center.Add(t.m.SolidCornerA(d)), center.Add(t.m.SolidCornerB(d)))
	for i := 0; i < shoreSegments; i++ {
		t.shore.addTriangle(center, e1[i], e1[i+1])
	}

	bridge := t.m.Bridge(d)
	e2 := edgeVertices(e1[0].Add(bridge), e1[shoreSegments].Add(bridge))
	for i := 0; i < shoreSegments; i++ {
		t.shore.addQuad(e1[i], e1[i+1], e2[i], e2[i+1])
	}

	if _, ok := t.grid.Neighbor(c.Index, d.Next()); ok {
		last := e1[shoreSegments]
		t.shore.addTriangle(last, e2[shoreSegments], last.Add(t.m.Bridge(d.Next())))
	}
}

// edgeVertices subdivides an edge into shoreSegments equal parts.
func edgeVertices(a, b mgl32.Vec3) [shoreSegments + 1]mgl32.Vec3 {
	var e [shoreSegments + 1]mgl32.Vec3
	for i := range e {
		e[i] = world.Lerp(a, b, float32(i)/shoreSegments)
	}
	return e
}
