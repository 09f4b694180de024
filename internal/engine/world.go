package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/talgya/hexterrain/internal/mesh"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/travel"
	"github.com/talgya/hexterrain/internal/world"
)

const maxEvents = 1000

// ErrUnknownTraveler is returned for traveler ids that were never spawned.
var ErrUnknownTraveler = errors.New("unknown traveler")

// Event is a notable occurrence in the world.
type Event struct {
	Tick        uint64         `json:"tick"`
	Description string         `json:"description"`
	Category    string         `json:"category"` // "edit", "path", "rebuild", "travel"
	Meta        map[string]any `json:"meta,omitempty"`
}

// Stats tracks aggregate world statistics.
type Stats struct {
	Edits       int `json:"edits"`
	Paths       int `json:"paths"`
	PathsFailed int `json:"paths_failed"`
	Rebuilds    int `json:"rebuilds"`
	Triangles   int `json:"triangles"` // Published by the last rebuild pass
	Arrivals    int `json:"arrivals"`
}

// Status is a point-in-time summary for the API.
type Status struct {
	Tick        uint64 `json:"tick"`
	Seed        int64  `json:"seed"`
	CellsX      int    `json:"cells_x"`
	CellsZ      int    `json:"cells_z"`
	Chunks      int    `json:"chunks"`
	DirtyChunks int    `json:"dirty_chunks"`
	Underwater  int    `json:"underwater"`
	Travelers   int    `json:"travelers"`
	Stats       Stats  `json:"stats"`
}

// TravelerInfo is the observable state of one traveler.
type TravelerInfo struct {
	ID          string     `json:"id"`
	Cell        int        `json:"cell"`
	Destination int        `json:"destination"`
	State       string     `json:"state"`
	Position    [3]float32 `json:"position"`
	Remaining   []int      `json:"remaining,omitempty"`
}

// World holds the grid and everything derived from it, and serializes
// access from the tick loop and request handlers. Searches share a read
// lock, so the pathfinder's busy flag is what refuses concurrent searches.
type World struct {
	mu         sync.RWMutex
	grid       *world.Grid
	builder    *mesh.Builder
	pathfinder *pathfind.Pathfinder
	options    pathfind.Options
	travelers  map[string]*travel.Traveler
	seed       int64
	lastTick   uint64
	stats      Stats

	eventsMu sync.Mutex
	events   []Event
	pending  []Event // Not yet handed to the journal
	subs     map[int]chan Event
	nextSub  int

	meshSink mesh.Sink
}

// NewWorld wires a grid to its mesh builder and pathfinder. opts are the
// defaults used for traveler searches.
func NewWorld(g *world.Grid, pf *pathfind.Pathfinder, opts pathfind.Options) *World {
	w := &World{
		grid:       g,
		pathfinder: pf,
		options:    opts,
		travelers:  make(map[string]*travel.Traveler),
		subs:       make(map[int]chan Event),
	}
	w.builder = mesh.NewBuilder(g, mesh.NewPools(), mesh.SinkFunc(w.publishMesh))
	return w
}

// SetSeed records the generation seed reported by Status.
func (w *World) SetSeed(seed int64) {
	w.mu.Lock()
	w.seed = seed
	w.mu.Unlock()
}

// SetMeshSink routes every rebuilt chunk mesh to s. The sink runs inside
// the tick and must not block.
func (w *World) SetMeshSink(s mesh.Sink) {
	w.mu.Lock()
	w.meshSink = s
	w.mu.Unlock()
}

func (w *World) publishMesh(chunkID int, layer mesh.Layer, m *mesh.Mesh) {
	if w.meshSink != nil {
		w.meshSink.ApplyMesh(chunkID, layer, m)
	}
}

// CurrentTick returns the most recently processed tick number.
func (w *World) CurrentTick() uint64 {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastTick
}

// Tick runs once per engine tick: flush rebuilds, then move travelers.
func (w *World) Tick(tick uint64, dt time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastTick = tick

	if s := w.builder.RebuildDirty(); s.Chunks > 0 {
		w.stats.Rebuilds += s.Chunks
		w.stats.Triangles = s.Triangles
		w.emit(Event{
			Tick:        tick,
			Description: fmt.Sprintf("%d chunks rebuilt", s.Chunks),
			Category:    "rebuild",
			Meta:        map[string]any{"chunks": s.Chunks, "vertices": s.Vertices, "triangles": s.Triangles},
		})
	}

	seconds := float32(dt.Seconds())
	for _, id := range w.travelerIDs() {
		tr := w.travelers[id]
		if tr.Advance(seconds) {
			w.stats.Arrivals++
			w.emit(Event{
				Tick:        tick,
				Description: fmt.Sprintf("traveler %s arrived at cell %d", id[:8], tr.Cell()),
				Category:    "travel",
				Meta:        map[string]any{"traveler": id, "cell": tr.Cell()},
			})
		}
	}
}

// Report logs a periodic summary.
func (w *World) Report(tick uint64) {
	w.mu.RLock()
	stats := w.stats
	travelers := len(w.travelers)
	w.mu.RUnlock()

	w.eventsMu.Lock()
	counts := make(map[string]int)
	for _, e := range w.events {
		counts[e.Category]++
	}
	w.eventsMu.Unlock()

	slog.Info("world report",
		"tick", tick,
		"uptime", Uptime(tick),
		"edits", stats.Edits,
		"paths", stats.Paths,
		"paths_failed", stats.PathsFailed,
		"rebuilds", stats.Rebuilds,
		"triangles", stats.Triangles,
		"travelers", travelers,
		"arrivals", stats.Arrivals,
		"events_edit", counts["edit"],
		"events_travel", counts["travel"],
	)
}

// Status summarizes the world.
func (w *World) Status() Status {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return Status{
		Tick:        w.lastTick,
		Seed:        w.seed,
		CellsX:      w.grid.CellCountX(),
		CellsZ:      w.grid.CellCountZ(),
		Chunks:      w.grid.ChunkCount(),
		DirtyChunks: len(w.grid.DirtyChunks()),
		Underwater:  world.WaterCellCount(w.grid),
		Travelers:   len(w.travelers),
		Stats:       w.stats,
	}
}

// Config returns the grid configuration.
func (w *World) Config() world.Config {
	return w.grid.Config()
}

// Cell returns a copy of cell i.
func (w *World) Cell(i int) (world.Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.grid.Cell(i)
	if !ok {
		return world.Cell{}, false
	}
	return *c, true
}

// CellAtOffset returns a copy of the cell at (col, row).
func (w *World) CellAtOffset(col, row int) (world.Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.grid.CellAtOffset(col, row)
	if !ok {
		return world.Cell{}, false
	}
	return *c, true
}

// CellAtPosition returns a copy of the cell under a ground-plane position.
func (w *World) CellAtPosition(x, z float32) (world.Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.grid.CellAtPosition(x, z)
	if !ok {
		return world.Cell{}, false
	}
	return *c, true
}

// Neighbor returns a copy of the neighbor of cell i in direction d.
func (w *World) Neighbor(i int, d world.Direction) (world.Cell, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	c, ok := w.grid.Neighbor(i, d)
	if !ok {
		return world.Cell{}, false
	}
	return *c, true
}

// Edit applies a cell edit. The rebuild happens on the next tick; travelers
// already walking search again under the new terrain.
func (w *World) Edit(i int, e world.Edit) (world.Cell, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.grid.ApplyEdit(i, e) {
		return world.Cell{}, fmt.Errorf("edit: %w: %d", pathfind.ErrCellOutOfRange, i)
	}
	c, _ := w.grid.Cell(i)
	w.stats.Edits++
	w.emit(Event{
		Tick:        w.lastTick,
		Description: fmt.Sprintf("cell %d edited", i),
		Category:    "edit",
		Meta: map[string]any{
			"cell":        i,
			"elevation":   c.Elevation,
			"water_level": c.WaterLevel,
			"terrain":     world.TerrainName(c.Terrain),
		},
	})

	for _, id := range w.travelerIDs() {
		tr := w.travelers[id]
		if err := tr.Retarget(w.pathfinder, w.options); err != nil {
			slog.Warn("traveler lost its route", "traveler", id, "error", err)
			tr.Cancel()
		}
	}
	return *c, nil
}

// FindPath searches a path under the world's read lock.
func (w *World) FindPath(start, goal int, opts pathfind.Options) (pathfind.Path, error) {
	w.mu.RLock()
	path, err := w.pathfinder.FindPath(w.grid, start, goal, opts)
	tick := w.lastTick
	w.mu.RUnlock()

	if errors.Is(err, pathfind.ErrBusy) {
		return path, err
	}

	w.mu.Lock()
	w.stats.Paths++
	if err != nil {
		w.stats.PathsFailed++
	}
	w.mu.Unlock()

	e := Event{
		Tick:     tick,
		Category: "path",
		Meta:     map[string]any{"start": start, "goal": goal, "avoid_water": opts.AvoidWater, "avoid_cliff": opts.AvoidCliff},
	}
	if err != nil {
		e.Description = fmt.Sprintf("no path from %d to %d", start, goal)
		e.Meta["error"] = err.Error()
	} else {
		e.Description = fmt.Sprintf("path from %d to %d: %d cells, cost %d", start, goal, path.Len(), path.Cost)
		e.Meta["cost"] = path.Cost
		e.Meta["cells"] = path.Len()
	}
	w.emit(e)
	return path, err
}

// ChunkMesh returns a copy of the last published mesh of a chunk layer.
func (w *World) ChunkMesh(chunkID int, layer mesh.Layer) (mesh.Mesh, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	m, ok := w.builder.Mesh(chunkID, layer)
	if !ok {
		return mesh.Mesh{}, false
	}
	return cloneMesh(m), true
}

func cloneMesh(m *mesh.Mesh) mesh.Mesh {
	return mesh.Mesh{
		Vertices: append(m.Vertices[:0:0], m.Vertices...),
		Colors:   append(m.Colors[:0:0], m.Colors...),
		Indices:  append(m.Indices[:0:0], m.Indices...),
	}
}

// SpawnTraveler places a new traveler on cell and returns its id.
func (w *World) SpawnTraveler(cell int) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tr, err := travel.New(w.grid, cell)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	w.travelers[id] = tr
	slog.Info("traveler spawned", "traveler", id, "cell", cell)
	return id, nil
}

// TravelTo sends a traveler toward goal, replacing any current route.
func (w *World) TravelTo(id string, goal int, opts pathfind.Options) (TravelerInfo, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	tr, ok := w.travelers[id]
	if !ok {
		return TravelerInfo{}, fmt.Errorf("%w: %s", ErrUnknownTraveler, id)
	}
	if err := tr.Travel(w.pathfinder, goal, opts); err != nil {
		return travelerInfo(id, tr), err
	}
	w.emit(Event{
		Tick:        w.lastTick,
		Description: fmt.Sprintf("traveler %s heading to cell %d", id[:8], goal),
		Category:    "travel",
		Meta:        map[string]any{"traveler": id, "goal": goal},
	})
	return travelerInfo(id, tr), nil
}

// Travelers lists every traveler ordered by id.
func (w *World) Travelers() []TravelerInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()
	out := make([]TravelerInfo, 0, len(w.travelers))
	for _, id := range w.travelerIDs() {
		out = append(out, travelerInfo(id, w.travelers[id]))
	}
	return out
}

func travelerInfo(id string, tr *travel.Traveler) TravelerInfo {
	return TravelerInfo{
		ID:          id,
		Cell:        tr.Cell(),
		Destination: tr.Destination(),
		State:       tr.State().String(),
		Position:    tr.Position(),
		Remaining:   append([]int(nil), tr.Remaining()...),
	}
}

// travelerIDs returns the traveler ids in a stable order.
func (w *World) travelerIDs() []string {
	ids := make([]string, 0, len(w.travelers))
	for id := range w.travelers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// View runs fn with the grid and its published meshes under the read lock.
// fn must not retain either or call back into w.
func (w *World) View(fn func(g *world.Grid, meshes *mesh.Builder)) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	fn(w.grid, w.builder)
}
