package world

import "strings"

// Direction names one of the six sides of a pointy-topped hex, clockwise from
// the upper right.
type Direction uint8

const (
	DirNE Direction = iota
	DirE
	DirSE
	DirSW
	DirW
	DirNW
)

// Directions lists all six directions in triangulation order.
var Directions = [6]Direction{DirNE, DirE, DirSE, DirSW, DirW, DirNW}

var directionNames = [6]string{"NE", "E", "SE", "SW", "W", "NW"}

// Opposite returns the direction pointing back across the same edge.
func (d Direction) Opposite() Direction {
	if d < 3 {
		return d + 3
	}
	return d - 3
}

// Previous returns the direction counter-clockwise of d.
func (d Direction) Previous() Direction {
	if d == DirNE {
		return DirNW
	}
	return d - 1
}

// Next returns the direction clockwise of d.
func (d Direction) Next() Direction {
	if d == DirNW {
		return DirNE
	}
	return d + 1
}

// Valid reports whether d is one of the six directions.
func (d Direction) Valid() bool {
	return d <= DirNW
}

func (d Direction) String() string {
	if !d.Valid() {
		return "invalid"
	}
	return directionNames[d]
}

// ParseDirection resolves a direction name such as "NE" or "w".
func ParseDirection(s string) (Direction, bool) {
	for i, name := range directionNames {
		if strings.EqualFold(s, name) {
			return Direction(i), true
		}
	}
	return 0, false
}
