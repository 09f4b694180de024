// Command hexworld runs the hex terrain world: it generates the grid,
// rebuilds chunk meshes on a tick loop, and serves the HTTP API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/hexterrain/internal/api"
	"github.com/talgya/hexterrain/internal/config"
	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/persistence"
	"github.com/talgya/hexterrain/internal/world"
)

func main() {
	configPath := flag.String("config", os.Getenv("HEXWORLD_CONFIG"), "path to a YAML config file (optional)")
	flag.Parse()

	var level slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: &level,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.LogLevel)

	// ── Database ──────────────────────────────────────────────────────
	dbPath := cfg.Server.DBPath
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		slog.Error("failed to create data directory", "error", err)
		os.Exit(1)
	}
	db, err := persistence.Open(dbPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if fi, err := os.Stat(dbPath); err == nil {
		slog.Info("database opened", "path", dbPath, "size", humanize.Bytes(uint64(fi.Size())))
	}

	// ── Grid (always regenerated, deterministic from seed) ────────────
	gen := cfg.Terrain
	if gen.Seed == 0 {
		if s, err := db.GetMeta(persistence.MetaSeed); err == nil {
			if seed, err := strconv.ParseInt(s, 10, 64); err == nil {
				gen.Seed = seed
				slog.Info("reusing journaled seed", "seed", seed)
			}
		}
	}
	startTick := db.GetMetaUint(persistence.MetaLastTick)

	grid, err := world.NewGrid(cfg.Grid)
	if err != nil {
		slog.Error("invalid grid config", "error", err)
		os.Exit(1)
	}
	seed := world.Generate(grid, gen)

	for t, n := range world.TerrainCounts(grid) {
		slog.Info("terrain", "type", world.TerrainName(t), "cells", humanize.Comma(int64(n)))
	}
	slog.Info("grid ready",
		"cells", humanize.Comma(int64(grid.CellCount())),
		"chunks", grid.ChunkCount(),
		"underwater", humanize.Comma(int64(world.WaterCellCount(grid))),
		"seed", seed,
	)

	// ── World ─────────────────────────────────────────────────────────
	pf, err := pathfind.New(cfg.Costs)
	if err != nil {
		slog.Error("invalid path costs", "error", err)
		os.Exit(1)
	}
	w := engine.NewWorld(grid, pf, cfg.PathOptions)
	w.SetSeed(seed)

	eng := engine.NewEngine()
	eng.Interval = cfg.Server.TickInterval
	eng.SetTick(startTick)
	if err := eng.SetSpeed(cfg.Server.Speed); err != nil {
		slog.Error("invalid speed", "error", err)
		os.Exit(1)
	}

	// Wire tick callbacks; the journal is flushed every few reports.
	reports := 0
	eng.OnTick = w.Tick
	eng.OnReport = func(tick uint64) {
		w.Report(tick)
		reports++
		if reports%max(cfg.Server.FlushEveryReports, 1) == 0 {
			if err := db.Flush(w); err != nil {
				slog.Error("journal flush failed", "error", err)
			}
		}
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.Server.AdminKey == "" {
		slog.Warn("HEXWORLD_ADMIN_KEY not set, admin POST endpoints will be disabled")
	}
	apiServer := &api.Server{
		World:       w,
		Eng:         eng,
		DB:          db,
		Port:        cfg.Server.Port,
		AdminKey:    cfg.Server.AdminKey,
		CORSOrigins: cfg.Server.CORSOrigins,
		PathOptions: cfg.PathOptions,
		PathLimit:   cfg.Server.PathRateLimit,
	}
	srv := apiServer.Start()

	// ── Start ─────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("\nhexworld is up: %s cells in %d chunks, seed %d.\n",
		humanize.Comma(int64(grid.CellCount())), grid.ChunkCount(), seed)
	fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.Server.Port)
	if startTick > 0 {
		fmt.Printf("Resuming from tick %d (%s)\n", startTick, engine.Uptime(startTick))
	}
	fmt.Println("Running... (Ctrl+C to stop)")

	eng.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP shutdown incomplete", "error", err)
	}

	// Final flush on shutdown.
	if err := db.Flush(w); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	fmt.Println("hexworld stopped. Journal flushed.")
}
