package world

import "github.com/go-gl/mathgl/mgl32"

// innerToOuter is sqrt(3)/2, the ratio of a hex's inner to outer radius.
const innerToOuter = 0.866025404

// Metrics is the derived hex geometry shared by cell placement and triangulation.
type Metrics struct {
	OuterRadius          float32
	InnerRadius          float32
	SolidFactor          float32
	BlendFactor          float32
	ElevationStep        float32
	WaterElevationOffset float32
	TerracesPerSlope     int
	TerraceSteps         int

	horizontalStep float32
	verticalStep   float32
	corners        [6]mgl32.Vec3
}

// NewMetrics derives the geometry from a grid configuration.
func NewMetrics(cfg Config) Metrics {
	outer := cfg.OuterRadius
	inner := outer * innerToOuter
	steps := cfg.TerracesPerSlope*2 + 1

	return Metrics{
		OuterRadius:          outer,
		InnerRadius:          inner,
		SolidFactor:          1 - cfg.BlendPercent,
		BlendFactor:          cfg.BlendPercent,
		ElevationStep:        cfg.ElevationStep,
		WaterElevationOffset: cfg.WaterElevationOffset,
		TerracesPerSlope:     cfg.TerracesPerSlope,
		TerraceSteps:         steps,
		horizontalStep:       1 / float32(steps),
		verticalStep:         1 / float32(cfg.TerracesPerSlope+1),
		corners: [6]mgl32.Vec3{
			{0, 0, outer},
			{inner, 0, 0.5 * outer},
			{inner, 0, -0.5 * outer},
			{0, 0, -outer},
			{-inner, 0, -0.5 * outer},
			{-inner, 0, 0.5 * outer},
		},
	}
}

// CornerA returns the first (counter-clockwise) corner of the edge facing d.
func (m Metrics) CornerA(d Direction) mgl32.Vec3 {
	return m.corners[d]
}

// CornerB returns the second (clockwise) corner of the edge facing d.
func (m Metrics) CornerB(d Direction) mgl32.Vec3 {
	return m.corners[d.Next()]
}

// SolidCornerA is CornerA pulled in to the solid region of the cell.
func (m Metrics) SolidCornerA(d Direction) mgl32.Vec3 {
	return m.corners[d].Mul(m.SolidFactor)
}

// SolidCornerB is CornerB pulled in to the solid region of the cell.
func (m Metrics) SolidCornerB(d Direction) mgl32.Vec3 {
	return m.corners[d.Next()].Mul(m.SolidFactor)
}

// Bridge returns the offset from a solid edge to the matching solid edge of
// the neighbor in direction d.
func (m Metrics) Bridge(d Direction) mgl32.Vec3 {
	return m.corners[d].Add(m.corners[d.Next()]).Mul(m.BlendFactor)
}

// CellCenter returns the ground-plane center of the cell at (col, row).
func (m Metrics) CellCenter(col, row int) mgl32.Vec3 {
	x := (float32(col) + float32(row)*0.5 - float32(row/2)) * (m.InnerRadius * 2)
	z := float32(row) * (m.OuterRadius * 1.5)
	return mgl32.Vec3{x, 0, z}
}

// ElevationY returns the world height of an elevation level.
func (m Metrics) ElevationY(elevation int) float32 {
	return float32(elevation) * m.ElevationStep
}

// WaterSurfaceY returns the world height of a water surface.
func (m Metrics) WaterSurfaceY(waterLevel int) float32 {
	return (float32(waterLevel) + m.WaterElevationOffset) * m.ElevationStep
}

// TerraceLerp interpolates between two edge points for terrace step.
// Horizontal components move every step; height only rises on odd steps,
// which leaves flat treads between sloped risers.
func (m Metrics) TerraceLerp(a, b mgl32.Vec3, step int) mgl32.Vec3 {
	h := float32(step) * m.horizontalStep
	v := float32((step+1)/2) * m.verticalStep
	return mgl32.Vec3{
		a[0] + (b[0]-a[0])*h,
		a[1] + (b[1]-a[1])*v,
		a[2] + (b[2]-a[2])*h,
	}
}

// TerraceColorLerp blends colors for terrace step using the horizontal factor only.
func (m Metrics) TerraceColorLerp(a, b mgl32.Vec4, step int) mgl32.Vec4 {
	return LerpColor(a, b, float32(step)*m.horizontalStep)
}

// Lerp interpolates linearly between two points.
func Lerp(a, b mgl32.Vec3, t float32) mgl32.Vec3 {
	return a.Add(b.Sub(a).Mul(t))
}

// LerpColor interpolates linearly between two colors.
func LerpColor(a, b mgl32.Vec4, t float32) mgl32.Vec4 {
	return a.Add(b.Sub(a).Mul(t))
}
