package world

import (
	"errors"
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// Config holds the construction parameters of a grid. It is copied into the
// Grid by NewGrid and never changes afterwards.
type Config struct {
	OuterRadius          float32    // Center to corner distance
	BlendPercent         float32    // Share of the radius given to bridges between cells (0–1)
	ElevationStep        float32    // World height of one elevation step
	TerracesPerSlope     int        // Flat treads on a one-step slope
	ChunkSizeX           int        // Cells per chunk along a row
	ChunkSizeZ           int        // Rows per chunk
	ChunkCountX          int        // Chunks along x
	ChunkCountZ          int        // Chunks along z
	DefaultColor         mgl32.Vec4 // Color of freshly created cells
	WaterElevationOffset float32    // Water surface offset in elevation steps (negative = below the level)

	// SplatColors emits splat weights (red = cell, green = neighbor,
	// blue = next neighbor) instead of cell colors, for texture blending.
	SplatColors bool
}

// DefaultConfig returns a 20×15 cell grid in 5×5 chunks.
func DefaultConfig() Config {
	return Config{
		OuterRadius:          10,
		BlendPercent:         0.25,
		ElevationStep:        0.5,
		TerracesPerSlope:     2,
		ChunkSizeX:           5,
		ChunkSizeZ:           5,
		ChunkCountX:          4,
		ChunkCountZ:          3,
		DefaultColor:         mgl32.Vec4{1, 1, 1, 1},
		WaterElevationOffset: -0.5,
	}
}

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = errors.New("invalid grid config")

// Validate checks that the configuration describes a buildable grid.
func (c Config) Validate() error {
	switch {
	case c.OuterRadius <= 0:
		return fmt.Errorf("%w: outer radius must be positive, got %v", ErrInvalidConfig, c.OuterRadius)
	case c.BlendPercent <= 0 || c.BlendPercent >= 1:
		return fmt.Errorf("%w: blend percent must be in (0, 1), got %v", ErrInvalidConfig, c.BlendPercent)
	case c.ElevationStep <= 0:
		return fmt.Errorf("%w: elevation step must be positive, got %v", ErrInvalidConfig, c.ElevationStep)
	case c.TerracesPerSlope < 1:
		return fmt.Errorf("%w: terraces per slope must be at least 1, got %d", ErrInvalidConfig, c.TerracesPerSlope)
	case c.ChunkSizeX < 1 || c.ChunkSizeZ < 1:
		return fmt.Errorf("%w: chunk size must be at least 1×1, got %d×%d", ErrInvalidConfig, c.ChunkSizeX, c.ChunkSizeZ)
	case c.ChunkCountX < 1 || c.ChunkCountZ < 1:
		return fmt.Errorf("%w: chunk count must be at least 1×1, got %d×%d", ErrInvalidConfig, c.ChunkCountX, c.ChunkCountZ)
	}
	return nil
}

// CellCountX returns the number of cells per row.
func (c Config) CellCountX() int {
	return c.ChunkCountX * c.ChunkSizeX
}

// CellCountZ returns the number of rows.
func (c Config) CellCountZ() int {
	return c.ChunkCountZ * c.ChunkSizeZ
}
