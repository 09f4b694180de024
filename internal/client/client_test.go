package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/talgya/hexterrain/internal/api"
	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/world"
)

const testKey = "secret"

func testAPI(t *testing.T) (*engine.World, *Client) {
	t.Helper()
	cfg := world.DefaultConfig()
	cfg.ChunkSizeX, cfg.ChunkSizeZ = 3, 3
	cfg.ChunkCountX, cfg.ChunkCountZ = 2, 2
	g, err := world.NewGrid(cfg)
	if err != nil {
		t.Fatalf("NewGrid: %v", err)
	}
	pf, err := pathfind.New(pathfind.DefaultCosts())
	if err != nil {
		t.Fatalf("pathfind.New: %v", err)
	}
	w := engine.NewWorld(g, pf, pathfind.Options{AvoidWater: true})
	s := &api.Server{World: w, Eng: engine.NewEngine(), AdminKey: testKey}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return w, New(ts.URL, testKey)
}

func TestStatusAndCell(t *testing.T) {
	_, c := testAPI(t)
	ctx := context.Background()

	if err := c.WaitReady(ctx); err != nil {
		t.Fatalf("WaitReady: %v", err)
	}
	st, err := c.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if st.CellCount() != 36 || st.Chunks != 4 {
		t.Fatalf("unexpected status: %+v", st)
	}

	cell, err := c.Cell(ctx, 7)
	if err != nil {
		t.Fatalf("Cell: %v", err)
	}
	if cell.Index != 7 || cell.Col != 1 || cell.Row != 1 || len(cell.Neighbors) != 6 {
		t.Fatalf("unexpected cell: %+v", cell)
	}

	_, err = c.Cell(ctx, 99)
	if !IsStatus(err, http.StatusNotFound) {
		t.Fatalf("expected a 404 StatusError, got %v", err)
	}
}

func TestPath(t *testing.T) {
	_, c := testAPI(t)

	p, err := c.Path(context.Background(), 0, 3, pathfind.Options{})
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if len(p.Cells) != 4 || p.Cost != 3 {
		t.Fatalf("expected 4 cells at cost 3, got %+v", p)
	}
}

func TestTravelerLifecycle(t *testing.T) {
	w, c := testAPI(t)
	ctx := context.Background()

	id, err := c.SpawnTraveler(ctx, 0)
	if err != nil {
		t.Fatalf("SpawnTraveler: %v", err)
	}
	info, err := c.Travel(ctx, id, 2)
	if err != nil {
		t.Fatalf("Travel: %v", err)
	}
	if info.State != "traveling" {
		t.Fatalf("expected traveling, got %+v", info)
	}

	for tick := uint64(1); tick <= 50; tick++ {
		w.Tick(tick, engine.DefaultInterval)
	}
	info, err = c.Traveler(ctx, id)
	if err != nil {
		t.Fatalf("Traveler: %v", err)
	}
	if info.State != "idle" || info.Cell != 2 {
		t.Fatalf("expected the traveler idle at cell 2, got %+v", info)
	}

	if _, err := New(c.BaseURL, "").SpawnTraveler(ctx, 0); !IsStatus(err, http.StatusUnauthorized) {
		t.Fatalf("expected 401 without a key, got %v", err)
	}
}

func TestWaitReadyHonorsContext(t *testing.T) {
	c := New("http://127.0.0.1:1", "")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := c.WaitReady(ctx); err == nil {
		t.Fatal("expected WaitReady to give up")
	}
}
