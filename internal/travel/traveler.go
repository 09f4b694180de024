// Package travel moves a walker along pathfinder results over time.
package travel

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/world"
)

const (
	DefaultSpeed = 3.0 // Cells per second
	Lift         = 0.2 // Height above the cell surface
)

// ErrDestinationUnderwater is returned when asked to walk into water.
var ErrDestinationUnderwater = errors.New("destination is underwater")

// State is the traveler's movement state.
type State uint8

const (
	Idle State = iota
	Traveling
)

func (s State) String() string {
	if s == Traveling {
		return "traveling"
	}
	return "idle"
}

// Traveler follows one path at a time. A new request replaces the current
// one wholesale. It is not safe for concurrent use.
type Traveler struct {
	grid  *world.Grid
	speed float32

	cell        int
	destination int
	state       State
	position    mgl32.Vec3

	cells    []int
	points   []mgl32.Vec3
	segment  int     // Moving from points[segment-1] to points[segment]
	progress float32 // 0–1 along the current segment
}

// New places a traveler on cell.
func New(g *world.Grid, cell int) (*Traveler, error) {
	c, ok := g.Cell(cell)
	if !ok {
		return nil, fmt.Errorf("place traveler: %w: %d", pathfind.ErrCellOutOfRange, cell)
	}
	return &Traveler{
		grid:        g,
		speed:       DefaultSpeed,
		cell:        cell,
		destination: cell,
		position:    c.Position.Add(mgl32.Vec3{0, Lift, 0}),
	}, nil
}

// SetSpeed changes the walking speed in cells per second.
func (t *Traveler) SetSpeed(cellsPerSecond float32) {
	if cellsPerSecond > 0 {
		t.speed = cellsPerSecond
	}
}

// Cell returns the cell the traveler is on or heading into.
func (t *Traveler) Cell() int { return t.cell }

// Destination returns the last requested goal.
func (t *Traveler) Destination() int { return t.destination }

// State returns the movement state.
func (t *Traveler) State() State { return t.state }

// Position returns the current world position, lifted above the surface.
func (t *Traveler) Position() mgl32.Vec3 { return t.position }

// Remaining returns the cells still ahead, including the one being entered.
func (t *Traveler) Remaining() []int {
	if t.state != Traveling {
		return nil
	}
	return t.cells[t.segment:]
}

// Travel searches a path to goal and starts walking it. Asking an idle
// traveler for its own cell is a no-op; a walking one finishes entering it.
func (t *Traveler) Travel(pf *pathfind.Pathfinder, goal int, opts pathfind.Options) error {
	dest, ok := t.grid.Cell(goal)
	if !ok {
		return fmt.Errorf("travel: %w: %d", pathfind.ErrCellOutOfRange, goal)
	}
	if goal == t.cell {
		if t.state == Traveling {
			return t.Follow(pathfind.Path{Cells: []int{goal}})
		}
		t.Cancel()
		return nil
	}
	if dest.IsUnderwater() {
		return fmt.Errorf("travel to %d: %w", goal, ErrDestinationUnderwater)
	}

	path, err := pf.FindPath(t.grid, t.cell, goal, opts)
	if err != nil {
		return fmt.Errorf("travel to %d: %w", goal, err)
	}
	return t.Follow(path)
}

// Retarget searches again toward the current destination, for use after
// the grid under the traveler has changed.
func (t *Traveler) Retarget(pf *pathfind.Pathfinder, opts pathfind.Options) error {
	if t.state != Traveling {
		return nil
	}
	return t.Travel(pf, t.destination, opts)
}

// Follow starts walking a path that begins at the traveler's cell. A
// walker caught mid-segment keeps entering that cell before taking the
// new route.
func (t *Traveler) Follow(p pathfind.Path) error {
	if len(p.Cells) == 0 || p.Cells[0] != t.cell {
		return fmt.Errorf("follow: path does not start at cell %d", t.cell)
	}
	cells := p.Cells
	if t.state == Traveling {
		cells = append([]int{t.cell}, p.Cells...)
	}
	points := make([]mgl32.Vec3, len(cells))
	for i, idx := range cells {
		c, ok := t.grid.Cell(idx)
		if !ok {
			return fmt.Errorf("follow: %w: %d", pathfind.ErrCellOutOfRange, idx)
		}
		points[i] = c.Position
	}

	t.cells = append(t.cells[:0], cells...)
	t.points = points
	t.destination = cells[len(cells)-1]
	t.progress = 0
	t.segment = 1
	if len(points) < 2 {
		t.state = Idle
		return nil
	}
	t.state = Traveling
	t.cell = t.cells[1]
	// Restart from where the walker stands.
	t.points[0] = t.position.Sub(mgl32.Vec3{0, Lift, 0})
	return nil
}

// Cancel stops in place.
func (t *Traveler) Cancel() {
	t.state = Idle
	t.cells = t.cells[:0]
	t.points = nil
	t.segment = 0
	t.progress = 0
	t.destination = t.cell
}

// Advance moves the traveler dt seconds along its path. Returns true when
// the destination was reached during this call.
func (t *Traveler) Advance(dt float32) bool {
	if t.state != Traveling || dt <= 0 {
		return false
	}

	t.progress += dt * t.speed
	for t.progress >= 1 {
		t.progress--
		if t.segment == len(t.points)-1 {
			t.position = t.points[t.segment].Add(mgl32.Vec3{0, Lift, 0})
			t.state = Idle
			t.progress = 0
			return true
		}
		t.segment++
		t.cell = t.cells[t.segment]
	}

	a, b := t.points[t.segment-1], t.points[t.segment]
	t.position = world.Lerp(a, b, t.progress).Add(mgl32.Vec3{0, Lift, 0})
	return false
}
