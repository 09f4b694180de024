package world

// EdgeType classifies the elevation relationship between two adjacent cells.
type EdgeType uint8

const (
	EdgeFlat  EdgeType = iota // Same elevation
	EdgeSlope                 // One step apart, terraced
	EdgeCliff                 // Two or more steps apart
)

func (e EdgeType) String() string {
	switch e {
	case EdgeFlat:
		return "flat"
	case EdgeSlope:
		return "slope"
	case EdgeCliff:
		return "cliff"
	}
	return "unknown"
}

// ClassifyEdge returns the edge type between two elevations.
func ClassifyEdge(a, b int) EdgeType {
	if a == b {
		return EdgeFlat
	}
	if delta := b - a; delta == 1 || delta == -1 {
		return EdgeSlope
	}
	return EdgeCliff
}
