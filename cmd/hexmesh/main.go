// Command hexmesh generates a world offline and exports it: an STL model of
// every chunk mesh, a top-down PNG preview, and optionally a path overlay.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexterrain/internal/config"
	"github.com/talgya/hexterrain/internal/mesh"
	"github.com/talgya/hexterrain/internal/meshio"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/world"
)

func main() {
	var (
		configPath = flag.String("config", "", "path to a YAML config file (optional)")
		seed       = flag.Int64("seed", 0, "terrain seed (0 = config seed, or random)")
		stlPath    = flag.String("stl", "", "write every chunk mesh to this STL file")
		pngPath    = flag.String("png", "", "write a top-down preview to this PNG file")
		width      = flag.Int("width", 1024, "preview width in pixels")
		from       = flag.Int("from", -1, "path start cell (with -to)")
		to         = flag.Int("to", -1, "path goal cell (with -from)")
		crossWater = flag.Bool("water", false, "let the path cross underwater cells")
	)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *seed != 0 {
		cfg.Terrain.Seed = *seed
	}

	grid, err := world.NewGrid(cfg.Grid)
	if err != nil {
		slog.Error("invalid grid config", "error", err)
		os.Exit(1)
	}
	used := world.Generate(grid, cfg.Terrain)

	start := time.Now()
	builder := mesh.NewBuilder(grid, nil, nil)
	stats := builder.RebuildDirty()
	slog.Info("meshes built",
		"seed", used,
		"chunks", stats.Chunks,
		"vertices", humanize.Comma(int64(stats.Vertices)),
		"triangles", humanize.Comma(int64(stats.Triangles)),
		"elapsed", time.Since(start).Round(time.Microsecond),
	)

	var route []int
	if *from >= 0 && *to >= 0 {
		pf, err := pathfind.New(cfg.Costs)
		if err != nil {
			slog.Error("invalid path costs", "error", err)
			os.Exit(1)
		}
		opts := cfg.PathOptions
		if *crossWater {
			opts.AvoidWater = false
		}
		path, err := pf.FindPath(grid, *from, *to, opts)
		if err != nil {
			slog.Error("path search failed", "from", *from, "to", *to, "error", err)
			os.Exit(1)
		}
		route = path.Cells
		fmt.Printf("path %d → %d: %d cells, cost %d\n", *from, *to, path.Len(), path.Cost)
		for _, i := range path.Cells {
			c, _ := grid.Cell(i)
			fmt.Printf("  %4d %-14s elevation %d %s\n", i, c.Coord, c.Elevation, world.TerrainName(c.Terrain))
		}
	}

	if *stlPath != "" {
		if err := writeSTL(*stlPath, grid, builder); err != nil {
			slog.Error("STL export failed", "error", err)
			os.Exit(1)
		}
	}

	if *pngPath != "" {
		if err := meshio.RenderPreview(grid, builder, route, *width).SavePNG(*pngPath); err != nil {
			slog.Error("preview export failed", "error", err)
			os.Exit(1)
		}
		reportFile(*pngPath)
	}
}

func writeSTL(path string, grid *world.Grid, builder *mesh.Builder) error {
	var meshes []*mesh.Mesh
	for id := 0; id < grid.ChunkCount(); id++ {
		for _, layer := range mesh.Layers {
			if m, ok := builder.Mesh(id, layer); ok && !m.Empty() {
				meshes = append(meshes, m)
			}
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(f)
	if err := meshio.WriteSTL(bw, meshes...); err != nil {
		f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	reportFile(path)
	return nil
}

func reportFile(path string) {
	if fi, err := os.Stat(path); err == nil {
		slog.Info("wrote", "path", path, "size", humanize.Bytes(uint64(fi.Size())))
	}
}
