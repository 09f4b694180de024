// Package pathfind searches the cell neighbor graph of a grid for the
// cheapest route between two cells.
package pathfind

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/talgya/hexterrain/internal/world"
)

var (
	// ErrBusy is returned when a search is already running. Requests are
	// refused, not queued.
	ErrBusy = errors.New("pathfinder busy")
	// ErrNoPath is returned when the goal cannot be reached under the options.
	ErrNoPath = errors.New("no path")
	// ErrCellOutOfRange is returned for start or goal indices outside the grid.
	ErrCellOutOfRange = errors.New("cell index out of range")
	// ErrInvalidCost is returned for a cost table entry below 1 or a
	// negative slope cost.
	ErrInvalidCost = errors.New("invalid cost")
)

// Costs is the price of leaving a cell, indexed by its terrain.
type Costs [world.TerrainTypeCount]int

// DefaultCosts charges one per step on every terrain.
func DefaultCosts() Costs {
	return Costs{1, 1, 1, 1}
}

// Options filter and weight the search.
type Options struct {
	AvoidWater bool `json:"avoid_water"` // Skip underwater cells
	AvoidCliff bool `json:"avoid_cliff"` // Skip cliff edges
	SlopeCost  int  `json:"slope_cost"`  // Extra cost of crossing a slope edge
}

// Path is an ordered list of cell indices from start to goal inclusive.
type Path struct {
	Cells []int `json:"cells"`
	Cost  int   `json:"cost"`
}

// Len returns the number of cells on the path.
func (p Path) Len() int {
	return len(p.Cells)
}

// Pathfinder runs one search at a time. Concurrent callers get ErrBusy.
type Pathfinder struct {
	costs Costs
	busy  atomic.Bool

	// Scratch state reused between searches; guarded by busy.
	dist   []int
	prev   []int
	closed []bool
	open   openSet
}

// New creates a pathfinder with the given terrain cost table.
func New(costs Costs) (*Pathfinder, error) {
	for t, c := range costs {
		if c < 1 {
			return nil, fmt.Errorf("%w: %s costs %d", ErrInvalidCost, world.TerrainName(world.Terrain(t)), c)
		}
	}
	return &Pathfinder{costs: costs}, nil
}

// Costs returns the terrain cost table.
func (p *Pathfinder) Costs() Costs {
	return p.costs
}

// Busy reports whether a search is in flight.
func (p *Pathfinder) Busy() bool {
	return p.busy.Load()
}

// FindPath returns the cheapest path from start to goal.
// The search is A* with the cube distance as heuristic, which never
// overestimates since every step costs at least one.
func (p *Pathfinder) FindPath(g *world.Grid, start, goal int, opts Options) (Path, error) {
	if opts.SlopeCost < 0 {
		return Path{}, fmt.Errorf("%w: slope cost %d", ErrInvalidCost, opts.SlopeCost)
	}
	if !p.busy.CompareAndSwap(false, true) {
		slog.Debug("path request refused", "start", start, "goal", goal)
		return Path{}, ErrBusy
	}
	defer p.busy.Store(false)

	startCell, ok := g.Cell(start)
	if !ok {
		return Path{}, fmt.Errorf("%w: start %d", ErrCellOutOfRange, start)
	}
	goalCell, ok := g.Cell(goal)
	if !ok {
		return Path{}, fmt.Errorf("%w: goal %d", ErrCellOutOfRange, goal)
	}
	if start == goal {
		return Path{Cells: []int{start}}, nil
	}

	p.reset(g.CellCount())
	p.dist[start] = 0
	p.open.push(start, world.Distance(startCell.Coord, goalCell.Coord))

	for p.open.Len() > 0 {
		cur := heap.Pop(&p.open).(*openNode).cell
		if cur == goal {
			return p.trace(start, goal), nil
		}
		p.closed[cur] = true

		c, _ := g.Cell(cur)
		step := p.costs[c.Terrain]
		for _, d := range world.Directions {
			n, ok := g.Neighbor(cur, d)
			if !ok || p.closed[n.Index] {
				continue
			}
			if opts.AvoidWater && n.IsUnderwater() {
				continue
			}
			edge := g.EdgeType(c, n)
			if opts.AvoidCliff && edge == world.EdgeCliff {
				continue
			}

			cost := p.dist[cur] + step
			if edge == world.EdgeSlope {
				cost += opts.SlopeCost
			}
			if p.dist[n.Index] >= 0 && cost >= p.dist[n.Index] {
				continue
			}
			p.dist[n.Index] = cost
			p.prev[n.Index] = cur
			p.open.update(n.Index, cost+world.Distance(n.Coord, goalCell.Coord))
		}
	}

	slog.Debug("no path", "start", start, "goal", goal, "avoid_water", opts.AvoidWater, "avoid_cliff", opts.AvoidCliff)
	return Path{}, ErrNoPath
}

// reset sizes the scratch state for n cells and marks every distance
// unknown (-1).
func (p *Pathfinder) reset(n int) {
	if cap(p.dist) < n {
		p.dist = make([]int, n)
		p.prev = make([]int, n)
		p.closed = make([]bool, n)
	}
	p.dist = p.dist[:n]
	p.prev = p.prev[:n]
	p.closed = p.closed[:n]
	for i := range p.dist {
		p.dist[i] = -1
		p.prev[i] = -1
		p.closed[i] = false
	}
	p.open.reset(n)
}

func (p *Pathfinder) trace(start, goal int) Path {
	var cells []int
	for c := goal; c != -1; c = p.prev[c] {
		cells = append(cells, c)
		if c == start {
			break
		}
	}
	for i, j := 0, len(cells)-1; i < j; i, j = i+1, j-1 {
		cells[i], cells[j] = cells[j], cells[i]
	}
	return Path{Cells: cells, Cost: p.dist[goal]}
}
