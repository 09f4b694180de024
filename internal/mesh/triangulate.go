package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/world"
)

// Splat weights used instead of cell colors when the grid is configured for
// texture splatting. Each cell of a corner keeps its own channel.
var (
	splatSelf     = mgl32.Vec4{1, 0, 0, 1}
	splatNeighbor = mgl32.Vec4{0, 1, 0, 1}
	splatNext     = mgl32.Vec4{0, 0, 1, 1}
)

// triangulator turns cells into geometry for the three layers of one chunk.
// Each cell owns its fan, the bridges toward NE, E and SE, and the corners
// toward NE and E, so shared geometry is emitted exactly once.
type triangulator struct {
	grid  *world.Grid
	m     world.Metrics
	splat bool

	terrain buffer
	water   buffer
	shore   buffer
}

func newTriangulator(g *world.Grid) *triangulator {
	return &triangulator{
		grid:  g,
		m:     g.Metrics(),
		splat: g.Config().SplatColors,
	}
}

func (t *triangulator) acquire(p *Pools) {
	t.terrain.acquire(p)
	t.water.acquire(p)
	t.shore.acquire(p)
}

func (t *triangulator) release(p *Pools) {
	t.terrain.release(p)
	t.water.release(p)
	t.shore.release(p)
}

func (t *triangulator) layer(l Layer) *buffer {
	switch l {
	case LayerWater:
		return &t.water
	case LayerShore:
		return &t.shore
	}
	return &t.terrain
}

func (t *triangulator) colorOf(c *world.Cell, splat mgl32.Vec4) mgl32.Vec4 {
	if t.splat {
		return splat
	}
	return c.Color
}

func (t *triangulator) triangulateCell(c *world.Cell) {
	for _, d := range world.Directions {
		t.triangulateDirection(c, d)
		if c.IsUnderwater() {
			t.triangulateWater(c, d)
		}
	}
}

func (t *triangulator) triangulateDirection(c *world.Cell, d world.Direction) {
	center := c.Position
	v1 := center.Add(t.m.SolidCornerA(d))
	v2 := center.Add(t.m.SolidCornerB(d))

	t.terrain.addTriangle(center, v1, v2)
	t.terrain.addTriangleColor(t.colorOf(c, splatSelf))

	if d > world.DirSE {
		return
	}
	n, ok := t.grid.Neighbor(c.Index, d)
	if !ok {
		return
	}
	t.triangulateConnection(c, n, d, v1, v2)
}

// triangulateConnection fills the bridge between c and its neighbor n, and
// the corner toward the next neighbor when c owns it.
func (t *triangulator) triangulateConnection(c, n *world.Cell, d world.Direction, v1, v2 mgl32.Vec3) {
	bridge := t.m.Bridge(d)
	v3 := v1.Add(bridge)
	v4 := v2.Add(bridge)
	v3[1] = n.Position[1]
	v4[1] = n.Position[1]

	selfColor := t.colorOf(c, splatSelf)
	neighborColor := t.colorOf(n, splatNeighbor)

	if t.grid.EdgeType(c, n) == world.EdgeSlope {
		t.triangulateEdgeTerraces(v1, v2, selfColor, v3, v4, neighborColor)
	} else {
		t.terrain.addQuad(v1, v2, v3, v4)
		t.terrain.addQuadColor2(selfColor, neighborColor)
	}

	if d > world.DirE {
		return
	}
	next, ok := t.grid.Neighbor(c.Index, d.Next())
	if !ok {
		return
	}
	v5 := v2.Add(t.m.Bridge(d.Next()))
	v5[1] = next.Position[1]

	self := cornerPoint{pos: v2, cell: c, color: selfColor}
	left := cornerPoint{pos: v4, cell: n, color: neighborColor}
	right := cornerPoint{pos: v5, cell: next, color: t.colorOf(next, splatNext)}

	// Rotate so the lowest cell comes first, keeping clockwise order.
	switch {
	case c.Elevation <= n.Elevation && c.Elevation <= next.Elevation:
		t.triangulateCorner(self, left, right)
	case c.Elevation <= n.Elevation:
		t.triangulateCorner(right, self, left)
	case n.Elevation <= next.Elevation:
		t.triangulateCorner(left, right, self)
	default:
		t.triangulateCorner(right, self, left)
	}
}

// triangulateEdgeTerraces replaces a sloped bridge by alternating flat and
// inclined strips, one quad per terrace step.
func (t *triangulator) triangulateEdgeTerraces(beginLeft, beginRight mgl32.Vec3, beginColor mgl32.Vec4, endLeft, endRight mgl32.Vec3, endColor mgl32.Vec4) {
	v3 := t.m.TerraceLerp(beginLeft, endLeft, 1)
	v4 := t.m.TerraceLerp(beginRight, endRight, 1)
	c2 := t.m.TerraceColorLerp(beginColor, endColor, 1)

	t.terrain.addQuad(beginLeft, beginRight, v3, v4)
	t.terrain.addQuadColor2(beginColor, c2)

	for i := 2; i < t.m.TerraceSteps; i++ {
		v1, v2, c1 := v3, v4, c2
		v3 = t.m.TerraceLerp(beginLeft, endLeft, i)
		v4 = t.m.TerraceLerp(beginRight, endRight, i)
		c2 = t.m.TerraceColorLerp(beginColor, endColor, i)
		t.terrain.addQuad(v1, v2, v3, v4)
		t.terrain.addQuadColor2(c1, c2)
	}

	t.terrain.addQuad(v3, v4, endLeft, endRight)
	t.terrain.addQuadColor2(c2, endColor)
}
