package world

// Chunk is a fixed-size block of cells that is triangulated as one unit.
type Chunk struct {
	ID    int   `json:"id"`
	X     int   `json:"x"` // Chunk column
	Z     int   `json:"z"` // Chunk row
	Cells []int `json:"cells"`

	dirty bool
}

// Dirty reports whether the chunk's geometry is stale.
func (c *Chunk) Dirty() bool {
	return c.dirty
}
