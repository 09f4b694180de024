package meshio

import (
	"image"
	"image/color"
	"io"
	"math"

	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/mesh"
	"github.com/talgya/hexterrain/internal/world"
)

var (
	waterColor = color.NRGBA{R: 40, G: 90, B: 170, A: 170}
	pathColor  = color.NRGBA{R: 220, G: 30, B: 30, A: 255}
)

// Preview is a top-down orthographic render target for a grid.
type Preview struct {
	dc     *gg.Context
	grid   *world.Grid
	scale  float64
	minX   float64
	minZ   float64
	height float64
}

// NewPreview sizes a canvas so the whole grid fits in width pixels.
func NewPreview(g *world.Grid, width int) *Preview {
	m := g.Metrics()
	minX := -float64(m.InnerRadius)
	maxX := float64(m.InnerRadius) * float64(2*g.CellCountX()+1)
	minZ := -float64(m.OuterRadius)
	maxZ := float64(m.OuterRadius) * (1.5*float64(g.CellCountZ()-1) + 1)

	scale := float64(width) / (maxX - minX)
	height := math.Ceil((maxZ - minZ) * scale)

	dc := gg.NewContext(width, int(height))
	dc.SetRGB(0.08, 0.08, 0.1)
	dc.Clear()
	return &Preview{dc: dc, grid: g, scale: scale, minX: minX, minZ: minZ, height: height}
}

// project maps a world position to canvas pixels, north up.
func (p *Preview) project(v mgl32.Vec3) (float64, float64) {
	x := (float64(v[0]) - p.minX) * p.scale
	y := p.height - (float64(v[2])-p.minZ)*p.scale
	return x, y
}

// DrawTerrain fills every triangle with its mean vertex color, shaded by
// height so terraces stay visible from above.
func (p *Preview) DrawTerrain(m *mesh.Mesh) {
	top := float32(1)
	for _, v := range m.Vertices {
		top = max(top, v[1])
	}
	for i := 0; i+2 < len(m.Indices); i += 3 {
		var c mgl32.Vec4
		var y float32
		for j := 0; j < 3; j++ {
			k := m.Indices[i+j]
			if int(k) < len(m.Colors) {
				c = c.Add(m.Colors[k])
			} else {
				c = c.Add(mgl32.Vec4{1, 1, 1, 1})
			}
			y += m.Vertices[k][1]
		}
		c = c.Mul(1.0 / 3)
		shade := 0.6 + 0.4*float64(y/3/top)
		p.dc.SetRGBA(float64(c[0])*shade, float64(c[1])*shade, float64(c[2])*shade, 1)
		p.triangle(m, i)
	}
}

// DrawWater overlays a water or shore layer in translucent blue.
func (p *Preview) DrawWater(m *mesh.Mesh) {
	p.dc.SetColor(waterColor)
	for i := 0; i+2 < len(m.Indices); i += 3 {
		p.triangle(m, i)
	}
}

func (p *Preview) triangle(m *mesh.Mesh, i int) {
	for j := 0; j < 3; j++ {
		x, y := p.project(m.Vertices[m.Indices[i+j]])
		if j == 0 {
			p.dc.MoveTo(x, y)
		} else {
			p.dc.LineTo(x, y)
		}
	}
	p.dc.ClosePath()
	p.dc.Fill()
}

// DrawPath strokes a polyline through the centers of the given cells.
func (p *Preview) DrawPath(cells []int) {
	if len(cells) == 0 {
		return
	}
	p.dc.SetColor(pathColor)
	p.dc.SetLineWidth(math.Max(2, p.scale*float64(p.grid.Metrics().InnerRadius)*0.2))
	p.dc.SetLineCapRound()
	for i, idx := range cells {
		c, ok := p.grid.Cell(idx)
		if !ok {
			continue
		}
		x, y := p.project(c.Position)
		if i == 0 {
			p.dc.MoveTo(x, y)
		} else {
			p.dc.LineTo(x, y)
		}
	}
	p.dc.Stroke()

	for _, idx := range []int{cells[0], cells[len(cells)-1]} {
		if c, ok := p.grid.Cell(idx); ok {
			x, y := p.project(c.Position)
			p.dc.DrawCircle(x, y, math.Max(3, p.scale*float64(p.grid.Metrics().InnerRadius)*0.35))
			p.dc.Fill()
		}
	}
}

// Image returns the rendered canvas.
func (p *Preview) Image() image.Image {
	return p.dc.Image()
}

// WritePNG encodes the canvas as PNG.
func (p *Preview) WritePNG(w io.Writer) error {
	return p.dc.EncodePNG(w)
}

// SavePNG writes the canvas to a file.
func (p *Preview) SavePNG(path string) error {
	return p.dc.SavePNG(path)
}

// RenderPreview draws every chunk of b's grid plus an optional path.
func RenderPreview(g *world.Grid, b *mesh.Builder, path []int, width int) *Preview {
	p := NewPreview(g, width)
	for id := 0; id < g.ChunkCount(); id++ {
		if m, ok := b.Mesh(id, mesh.LayerTerrain); ok {
			p.DrawTerrain(m)
		}
	}
	for id := 0; id < g.ChunkCount(); id++ {
		for _, l := range []mesh.Layer{mesh.LayerWater, mesh.LayerShore} {
			if m, ok := b.Mesh(id, l); ok {
				p.DrawWater(m)
			}
		}
	}
	p.DrawPath(path)
	return p
}
