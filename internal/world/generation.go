// Terrain painting using layered simplex noise.
// Fills elevation, water, terrain type and color of an existing grid.
package world

import (
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl32"
	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds terrain painting parameters.
type GenConfig struct {
	Seed         int64   // Random seed (0 = random)
	MaxElevation int     // Highest elevation level produced
	SeaLevel     int     // Cells below this elevation are flooded up to it
	SnowLine     int     // Cells at or above this elevation get snow
	Frequency    float64 // Base noise frequency in cells
	Octaves      int     // Noise layers
}

// DefaultGenConfig returns a gentle landscape with a few lakes.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		Seed:         0,
		MaxElevation: 6,
		SeaLevel:     2,
		SnowLine:     5,
		Frequency:    0.08,
		Octaves:      4,
	}
}

// Palette colors per terrain type.
var terrainColors = [TerrainTypeCount]mgl32.Vec4{
	{0.36, 0.58, 0.25, 1}, // grass
	{0.45, 0.34, 0.22, 1}, // mud
	{0.55, 0.55, 0.52, 1}, // stone
	{0.93, 0.94, 0.97, 1}, // snow
}

// TerrainColor returns the palette color of a terrain type.
func TerrainColor(t Terrain) mgl32.Vec4 {
	if int(t) < len(terrainColors) {
		return terrainColors[t]
	}
	return mgl32.Vec4{1, 0, 1, 1}
}

// Generate paints every cell of g through the regular edit path, so the
// affected chunks are marked dirty. Returns the seed actually used.
func Generate(g *Grid, cfg GenConfig) int64 {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	octaves := cfg.Octaves
	if octaves < 1 {
		octaves = 1
	}

	// Two noise generators for independent layers.
	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)

	for col := 0; col < g.CellCountX(); col++ {
		for row := 0; row < g.CellCountZ(); row++ {
			c, _ := g.CellAtOffset(col, row)

			// Offset layout → continuous plane, one unit per cell.
			x := float64(col) + float64(row&1)*0.5
			y := float64(row) * math.Sqrt(3.0) / 2.0

			elev := octaveNoise(elevNoise, x, y, octaves, cfg.Frequency, 0.5)
			moist := octaveNoise(moistNoise, x, y, 3, cfg.Frequency*0.75, 0.5)

			elevation := int(math.Round(elev * float64(cfg.MaxElevation)))
			water := 0
			if elevation < cfg.SeaLevel {
				water = cfg.SeaLevel
			}
			terrain := deriveTerrain(elevation, moist, cfg)
			color := TerrainColor(terrain)

			g.ApplyEdit(c.Index, Edit{
				Elevation:  &elevation,
				WaterLevel: &water,
				Terrain:    &terrain,
				Color:      &color,
			})
		}
	}

	// Post-pass: shore cells (dry cells next to water) turn to mud.
	markShoreCells(g)

	return seed
}

// deriveTerrain determines terrain type from elevation and moisture.
func deriveTerrain(elevation int, moist float64, cfg GenConfig) Terrain {
	if elevation >= cfg.SnowLine {
		return TerrainSnow
	}
	if elevation >= cfg.SnowLine-1 && moist < 0.5 {
		return TerrainStone
	}
	if moist > 0.7 {
		return TerrainMud
	}
	return TerrainGrass
}

// markShoreCells converts dry grass cells adjacent to water into mud.
func markShoreCells(g *Grid) {
	var toMark []int

	for i := range g.cells {
		c := &g.cells[i]
		if c.IsUnderwater() || c.Terrain != TerrainGrass {
			continue
		}
		for _, d := range Directions {
			if n, ok := g.Neighbor(i, d); ok && n.IsUnderwater() {
				toMark = append(toMark, i)
				break
			}
		}
	}

	for _, i := range toMark {
		g.SetTerrain(i, TerrainMud)
		g.SetColor(i, TerrainColor(TerrainMud))
	}
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

// TerrainCounts returns a summary of terrain type distribution.
func TerrainCounts(g *Grid) map[Terrain]int {
	counts := make(map[Terrain]int)
	for i := range g.cells {
		counts[g.cells[i].Terrain]++
	}
	return counts
}

// WaterCellCount returns the number of underwater cells.
func WaterCellCount(g *Grid) int {
	n := 0
	for i := range g.cells {
		if g.cells[i].IsUnderwater() {
			n++
		}
	}
	return n
}
