// Package world provides the hex grid, its cells and chunks, and the
// geometry shared by triangulation and pathfinding.
// Uses cube coordinates (x, y, z) with x + y + z = 0; only x and z are stored.
package world

import (
	"fmt"
	"math"
)

// HexCoord represents a position on the hex grid using cube coordinates.
// The third coordinate y is derived: y = -x - z.
type HexCoord struct {
	X int `json:"x"`
	Z int `json:"z"`
}

// Y returns the implicit third cube coordinate.
func (h HexCoord) Y() int {
	return -h.X - h.Z
}

// String formats the coordinate as (x, y, z).
func (h HexCoord) String() string {
	return fmt.Sprintf("(%d, %d, %d)", h.X, h.Y(), h.Z)
}

// FromOffset converts a rectangular (col, row) index into a cube coordinate.
// Every second row is shifted half a cell, so x loses one step per two rows.
func FromOffset(col, row int) HexCoord {
	return HexCoord{X: col - row/2, Z: row}
}

// ToOffset is the inverse of FromOffset.
func (h HexCoord) ToOffset() (col, row int) {
	return h.X + h.Z/2, h.Z
}

// hexDirectionOffsets holds the cube offset of each direction, indexed by Direction.
var hexDirectionOffsets = [6]HexCoord{
	{X: 0, Z: 1},  // NE
	{X: 1, Z: 0},  // E
	{X: 1, Z: -1}, // SE
	{X: 0, Z: -1}, // SW
	{X: -1, Z: 0}, // W
	{X: -1, Z: 1}, // NW
}

// Neighbor returns the adjacent coordinate in direction d.
func (h HexCoord) Neighbor(d Direction) HexCoord {
	o := hexDirectionOffsets[d]
	return HexCoord{X: h.X + o.X, Z: h.Z + o.Z}
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b HexCoord) int {
	return (abs(a.X-b.X) + abs(a.Y()-b.Y()) + abs(a.Z-b.Z)) / 2
}

// FromPosition maps a ground-plane position to the nearest cube coordinate.
// Each axis is rounded independently; if the rounded triple no longer sums to
// zero, the axis with the largest rounding error is rebuilt from the other two.
func FromPosition(x, z, innerRadius, outerRadius float32) HexCoord {
	fx := float64(x) / (float64(innerRadius) * 2)
	fy := -fx

	offset := float64(z) / (float64(outerRadius) * 3)
	fx -= offset
	fy -= offset
	fz := -fx - fy

	ix := int(math.Round(fx))
	iy := int(math.Round(fy))
	iz := int(math.Round(fz))

	if ix+iy+iz != 0 {
		dx := math.Abs(fx - float64(ix))
		dy := math.Abs(fy - float64(iy))
		dz := math.Abs(fz - float64(iz))

		switch {
		case dx > dy && dx > dz:
			ix = -iy - iz
		case dz > dy:
			iz = -ix - iy
		}
		// Otherwise y absorbs the error, and y is derived anyway.
	}

	return HexCoord{X: ix, Z: iz}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
