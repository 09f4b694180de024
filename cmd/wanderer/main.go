// Command wanderer keeps a few travelers walking around a running hexworld.
// It spawns them through the admin API, then on every cycle sends each idle
// traveler to a random dry cell.
package main

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/talgya/hexterrain/internal/client"
)

// maxGoalTries bounds the random draws per traveler per cycle.
const maxGoalTries = 8

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Configuration from environment.
	apiURL := envOrDefault("HEXWORLD_API_URL", "http://localhost:8080")
	adminKey := os.Getenv("HEXWORLD_ADMIN_KEY")
	intervalSec := envIntOrDefault("WANDERER_INTERVAL", 5)
	count := envIntOrDefault("WANDERER_TRAVELERS", 3)

	if adminKey == "" {
		slog.Error("HEXWORLD_ADMIN_KEY is required")
		os.Exit(1)
	}

	interval := time.Duration(intervalSec) * time.Second
	slog.Info("wanderer starting", "api_url", apiURL, "interval", interval, "travelers", count)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(apiURL, adminKey)

	// Wait for the API before the first cycle.
	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	err := c.WaitReady(waitCtx)
	cancel()
	if err != nil {
		slog.Error("hexworld API did not become ready", "error", err)
		os.Exit(1)
	}

	status, err := c.Status(ctx)
	if err != nil {
		slog.Error("status failed", "error", err)
		os.Exit(1)
	}
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	w := &wanderer{client: c, cells: status.CellCount(), rng: rng}

	if err := w.spawn(ctx, count); err != nil {
		slog.Error("spawn failed", "error", err)
		os.Exit(1)
	}

	// Timer loop.
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		w.cycle(ctx)
		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("wanderer stopped", "trips", w.trips, "refused", w.refused)
			return
		}
	}
}

type wanderer struct {
	client *client.Client
	cells  int
	rng    *rand.Rand
	ids    []string

	trips   int
	refused int
}

// spawn places n travelers on random dry cells.
func (w *wanderer) spawn(ctx context.Context, n int) error {
	for len(w.ids) < n {
		cell, err := w.dryCell(ctx)
		if err != nil {
			return err
		}
		id, err := w.client.SpawnTraveler(ctx, cell)
		if err != nil {
			return err
		}
		w.ids = append(w.ids, id)
		slog.Info("traveler spawned", "traveler", id, "cell", cell)
	}
	return nil
}

// cycle sends every idle traveler somewhere new.
func (w *wanderer) cycle(ctx context.Context) {
	for _, id := range w.ids {
		info, err := w.client.Traveler(ctx, id)
		if err != nil {
			slog.Error("traveler lookup failed", "traveler", id, "error", err)
			continue
		}
		if info.State != "idle" {
			continue
		}

		for try := 0; try < maxGoalTries; try++ {
			goal := w.rng.Intn(w.cells)
			if goal == info.Cell {
				continue
			}
			next, err := w.client.Travel(ctx, id, goal)
			switch {
			case err == nil:
				w.trips++
				slog.Info("traveler dispatched", "traveler", id, "from", info.Cell, "goal", goal, "cells", len(next.Remaining))
			case client.IsStatus(err, http.StatusUnprocessableEntity):
				// Underwater or unreachable; draw another goal.
				w.refused++
				continue
			case client.IsStatus(err, http.StatusConflict):
				slog.Debug("pathfinder busy, retrying next cycle", "traveler", id)
			default:
				slog.Error("travel failed", "traveler", id, "error", err)
			}
			break
		}
	}
}

// dryCell draws random cells until one is above water.
func (w *wanderer) dryCell(ctx context.Context) (int, error) {
	for try := 0; try < 100; try++ {
		i := w.rng.Intn(w.cells)
		c, err := w.client.Cell(ctx, i)
		if err != nil {
			return 0, err
		}
		if !c.Underwater {
			return i, nil
		}
	}
	return 0, errors.New("no dry cell found")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}
