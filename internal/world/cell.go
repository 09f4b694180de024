package world

import (
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// Terrain selects a cell's texture layer and its traversal cost.
type Terrain uint8

const (
	TerrainGrass Terrain = iota // Default ground cover
	TerrainMud                  // Soft ground, slow in custom cost tables
	TerrainStone                // Bare rock
	TerrainSnow                 // High ground
)

// TerrainTypeCount is the number of terrain types a cost table must cover.
const TerrainTypeCount = 4

var terrainNames = [TerrainTypeCount]string{"grass", "mud", "stone", "snow"}

// TerrainName returns a human-readable name for a terrain type.
func TerrainName(t Terrain) string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

// ParseTerrain looks a terrain type up by name.
func ParseTerrain(name string) (Terrain, bool) {
	for i, n := range terrainNames {
		if strings.EqualFold(n, name) {
			return Terrain(i), true
		}
	}
	return 0, false
}

// NoNeighbor marks an empty neighbor slot at the grid boundary.
const NoNeighbor = -1

// Cell is a single node of the grid. Cells refer to their neighbors and chunk
// by index into the owning Grid.
type Cell struct {
	Index      int        `json:"index"`
	Coord      HexCoord   `json:"coord"`
	Position   mgl32.Vec3 `json:"position"` // Center; y follows elevation
	Elevation  int        `json:"elevation"`
	WaterLevel int        `json:"water_level"`
	Terrain    Terrain    `json:"terrain"`
	Color      mgl32.Vec4 `json:"color"`
	Chunk      int        `json:"chunk"`

	neighbors [6]int
}

// IsUnderwater reports whether the water surface is above the cell's ground.
func (c *Cell) IsUnderwater() bool {
	return c.WaterLevel > c.Elevation
}

// NeighborIndex returns the index of the neighbor in direction d, if any.
func (c *Cell) NeighborIndex(d Direction) (int, bool) {
	if !d.Valid() {
		return NoNeighbor, false
	}
	n := c.neighbors[d]
	return n, n != NoNeighbor
}

// NeighborIndices returns a copy of all six neighbor slots.
func (c *Cell) NeighborIndices() [6]int {
	return c.neighbors
}
