package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Grid holds every cell and chunk of the world. Cells and chunks are stored
// in flat slices and refer to each other by index only.
type Grid struct {
	cfg     Config
	metrics Metrics

	cells  []Cell
	chunks []Chunk

	cellCountX int
	cellCountZ int
}

// NewGrid builds the cells row by row, wires their neighbors and assigns them
// to chunks. Every chunk starts dirty so the first rebuild covers the world.
func NewGrid(cfg Config) (*Grid, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	g := &Grid{
		cfg:        cfg,
		metrics:    NewMetrics(cfg),
		cellCountX: cfg.CellCountX(),
		cellCountZ: cfg.CellCountZ(),
	}

	g.chunks = make([]Chunk, cfg.ChunkCountX*cfg.ChunkCountZ)
	for z, i := 0, 0; z < cfg.ChunkCountZ; z++ {
		for x := 0; x < cfg.ChunkCountX; x++ {
			g.chunks[i] = Chunk{
				ID:    i,
				X:     x,
				Z:     z,
				Cells: make([]int, cfg.ChunkSizeX*cfg.ChunkSizeZ),
				dirty: true,
			}
			i++
		}
	}

	g.cells = make([]Cell, g.cellCountX*g.cellCountZ)
	for z, i := 0, 0; z < g.cellCountZ; z++ {
		for x := 0; x < g.cellCountX; x++ {
			g.createCell(x, z, i)
			i++
		}
	}

	return g, nil
}

func (g *Grid) createCell(x, z, i int) {
	g.cells[i] = Cell{
		Index:     i,
		Coord:     FromOffset(x, z),
		Position:  g.metrics.CellCenter(x, z),
		Color:     g.cfg.DefaultColor,
		neighbors: [6]int{NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor, NoNeighbor},
	}

	// Only neighbors that already exist are linked here; the link sets the
	// reverse slot, so later cells complete the rest.
	if x > 0 {
		g.link(i, DirW, i-1)
	}
	if z > 0 {
		if z&1 == 0 {
			g.link(i, DirSE, i-g.cellCountX)
			if x > 0 {
				g.link(i, DirSW, i-g.cellCountX-1)
			}
		} else {
			g.link(i, DirSW, i-g.cellCountX)
			if x < g.cellCountX-1 {
				g.link(i, DirSE, i-g.cellCountX+1)
			}
		}
	}

	g.addToChunk(x, z, i)
}

// link connects cell i to cell j in direction d and j back to i.
func (g *Grid) link(i int, d Direction, j int) {
	g.cells[i].neighbors[d] = j
	g.cells[j].neighbors[d.Opposite()] = i
}

func (g *Grid) addToChunk(x, z, i int) {
	chunkX := x / g.cfg.ChunkSizeX
	chunkZ := z / g.cfg.ChunkSizeZ
	id := chunkX + chunkZ*g.cfg.ChunkCountX

	localX := x - chunkX*g.cfg.ChunkSizeX
	localZ := z - chunkZ*g.cfg.ChunkSizeZ
	g.chunks[id].Cells[localX+localZ*g.cfg.ChunkSizeX] = i
	g.cells[i].Chunk = id
}

// Config returns the configuration the grid was built with.
func (g *Grid) Config() Config {
	return g.cfg
}

// Metrics returns the hex geometry of the grid.
func (g *Grid) Metrics() Metrics {
	return g.metrics
}

// CellCount returns the total number of cells.
func (g *Grid) CellCount() int {
	return len(g.cells)
}

// CellCountX returns the number of cells per row.
func (g *Grid) CellCountX() int {
	return g.cellCountX
}

// CellCountZ returns the number of rows.
func (g *Grid) CellCountZ() int {
	return g.cellCountZ
}

// ChunkCount returns the total number of chunks.
func (g *Grid) ChunkCount() int {
	return len(g.chunks)
}

// Cell returns the cell at index i, or false if i is out of range.
func (g *Grid) Cell(i int) (*Cell, bool) {
	if i < 0 || i >= len(g.cells) {
		return nil, false
	}
	return &g.cells[i], true
}

// Cells returns the backing cell slice. Callers must not reslice or append.
func (g *Grid) Cells() []Cell {
	return g.cells
}

// Neighbor returns the neighbor of cell i in direction d, or false at the
// grid boundary or for an invalid index or direction.
func (g *Grid) Neighbor(i int, d Direction) (*Cell, bool) {
	c, ok := g.Cell(i)
	if !ok || !d.Valid() {
		return nil, false
	}
	n, ok := c.NeighborIndex(d)
	if !ok {
		return nil, false
	}
	return &g.cells[n], true
}

// CellAtOffset returns the cell at (col, row) in storage order.
func (g *Grid) CellAtOffset(col, row int) (*Cell, bool) {
	if col < 0 || col >= g.cellCountX || row < 0 || row >= g.cellCountZ {
		return nil, false
	}
	return &g.cells[col+row*g.cellCountX], true
}

// CellAtCoord returns the cell with the given cube coordinate.
func (g *Grid) CellAtCoord(h HexCoord) (*Cell, bool) {
	col, row := h.ToOffset()
	return g.CellAtOffset(col, row)
}

// CellAtPosition returns the cell under a ground-plane position in grid space.
func (g *Grid) CellAtPosition(x, z float32) (*Cell, bool) {
	return g.CellAtCoord(FromPosition(x, z, g.metrics.InnerRadius, g.metrics.OuterRadius))
}

// EdgeType classifies the edge between two cells.
func (g *Grid) EdgeType(a, b *Cell) EdgeType {
	return ClassifyEdge(a.Elevation, b.Elevation)
}

// Chunk returns the chunk with the given id, or false if out of range.
func (g *Grid) Chunk(id int) (*Chunk, bool) {
	if id < 0 || id >= len(g.chunks) {
		return nil, false
	}
	return &g.chunks[id], true
}

// DirtyChunks returns the ids of all chunks awaiting a rebuild, ascending.
func (g *Grid) DirtyChunks() []int {
	var ids []int
	for i := range g.chunks {
		if g.chunks[i].dirty {
			ids = append(ids, i)
		}
	}
	return ids
}

// MarkDirty flags a chunk for rebuild.
func (g *Grid) MarkDirty(id int) {
	if c, ok := g.Chunk(id); ok {
		c.dirty = true
	}
}

// ClearDirty resets a chunk's rebuild flag.
func (g *Grid) ClearDirty(id int) {
	if c, ok := g.Chunk(id); ok {
		c.dirty = false
	}
}

// Edit is a partial update of a cell. Nil fields are left unchanged.
type Edit struct {
	Elevation  *int        `json:"elevation,omitempty"`
	WaterLevel *int        `json:"water_level,omitempty"`
	Terrain    *Terrain    `json:"terrain,omitempty"`
	Color      *mgl32.Vec4 `json:"color,omitempty"`
}

// ApplyEdit updates cell i and refreshes the affected chunks once.
// Returns false if i is out of range. Edits that change nothing mark nothing.
func (g *Grid) ApplyEdit(i int, e Edit) bool {
	c, ok := g.Cell(i)
	if !ok {
		return false
	}

	changed := false
	if e.Elevation != nil && c.Elevation != *e.Elevation {
		c.Elevation = *e.Elevation
		c.Position[1] = g.metrics.ElevationY(c.Elevation)
		changed = true
	}
	if e.WaterLevel != nil && c.WaterLevel != *e.WaterLevel {
		c.WaterLevel = *e.WaterLevel
		changed = true
	}
	if e.Terrain != nil && c.Terrain != *e.Terrain {
		c.Terrain = *e.Terrain
		changed = true
	}
	if e.Color != nil && c.Color != *e.Color {
		c.Color = *e.Color
		changed = true
	}

	if changed {
		g.refresh(c)
	}
	return true
}

// SetElevation changes a cell's elevation.
func (g *Grid) SetElevation(i, elevation int) bool {
	return g.ApplyEdit(i, Edit{Elevation: &elevation})
}

// SetWaterLevel changes a cell's water level.
func (g *Grid) SetWaterLevel(i, level int) bool {
	return g.ApplyEdit(i, Edit{WaterLevel: &level})
}

// SetTerrain changes a cell's terrain type.
func (g *Grid) SetTerrain(i int, t Terrain) bool {
	return g.ApplyEdit(i, Edit{Terrain: &t})
}

// SetColor changes a cell's color.
func (g *Grid) SetColor(i int, color mgl32.Vec4) bool {
	return g.ApplyEdit(i, Edit{Color: &color})
}

// refresh marks the cell's chunk dirty, plus each neighboring chunk that
// shares an edge with it, since their bridges and corners read this cell.
func (g *Grid) refresh(c *Cell) {
	g.chunks[c.Chunk].dirty = true
	for _, n := range c.neighbors {
		if n == NoNeighbor {
			continue
		}
		if other := g.cells[n].Chunk; other != c.Chunk {
			g.chunks[other].dirty = true
		}
	}
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d cells, %d chunks)", g.cellCountX, g.cellCountZ, len(g.chunks))
}
