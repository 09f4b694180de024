package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/meshio"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/persistence"
	"github.com/talgya/hexterrain/internal/world"
)

const testKey = "secret"

// testServer serves a flat 6×6 grid in four chunks with meshes published.
func testServer(t *testing.T, configure func(*Server)) (*Server, *httptest.Server) {
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

	s := &Server{
		World:       w,
		Eng:         engine.NewEngine(),
		AdminKey:    testKey,
		PathOptions: pathfind.Options{AvoidWater: true},
	}
	if configure != nil {
		configure(s)
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	w.Tick(1, engine.DefaultInterval)
	return s, ts
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func post(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, want int, target any) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("status %d, expected %d: %s", resp.StatusCode, want, body)
	}
	if target == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decode: %v", err)
	}
}

func TestStatus(t *testing.T) {
	_, ts := testServer(t, nil)

	var status struct {
		Tick    uint64 `json:"tick"`
		CellsX  int    `json:"cells_x"`
		CellsZ  int    `json:"cells_z"`
		Chunks  int    `json:"chunks"`
		Dirty   int    `json:"dirty_chunks"`
		Speed   float64
		Running bool
	}
	decode(t, get(t, ts.URL+"/api/v1/status"), http.StatusOK, &status)
	if status.CellsX != 6 || status.CellsZ != 6 || status.Chunks != 4 {
		t.Fatalf("unexpected dimensions: %+v", status)
	}
	if status.Tick != 1 || status.Dirty != 0 {
		t.Fatalf("expected a clean grid after tick 1, got %+v", status)
	}
}

func TestCellRoutes(t *testing.T) {
	_, ts := testServer(t, nil)

	var c cellView
	decode(t, get(t, ts.URL+"/api/v1/cell/0"), http.StatusOK, &c)
	if c.Index != 0 || c.Neighbors["NE"] != 6 || c.Neighbors["E"] != 1 || len(c.Neighbors) != 2 {
		t.Fatalf("unexpected corner cell: %+v", c)
	}
	if c.Cube != "(0, 0, 0)" || c.Terrain != "grass" || c.Color != "#ffffffff" {
		t.Fatalf("unexpected corner cell fields: %+v", c)
	}

	var n cellView
	decode(t, get(t, ts.URL+"/api/v1/cell/0/neighbor/e"), http.StatusOK, &n)
	if n.Index != 1 {
		t.Fatalf("expected E neighbor 1, got %d", n.Index)
	}

	decode(t, get(t, ts.URL+"/api/v1/cell/0/neighbor/W"), http.StatusNotFound, nil)
	decode(t, get(t, ts.URL+"/api/v1/cell/0/neighbor/up"), http.StatusBadRequest, nil)
	decode(t, get(t, ts.URL+"/api/v1/cell/36"), http.StatusNotFound, nil)
	decode(t, get(t, ts.URL+"/api/v1/cell/abc"), http.StatusBadRequest, nil)

	var byOffset cellView
	decode(t, get(t, ts.URL+"/api/v1/cell?col=2&row=1"), http.StatusOK, &byOffset)
	if byOffset.Index != 8 || byOffset.Col != 2 || byOffset.Row != 1 {
		t.Fatalf("expected cell 8 at (2, 1), got %+v", byOffset)
	}

	var byPos cellView
	url := fmt.Sprintf("%s/api/v1/cell?x=%g&z=%g", ts.URL, byOffset.Position[0], byOffset.Position[2])
	decode(t, get(t, url), http.StatusOK, &byPos)
	if byPos.Index != 8 {
		t.Fatalf("expected position lookup to find cell 8, got %d", byPos.Index)
	}

	decode(t, get(t, ts.URL+"/api/v1/cell?col=9&row=0"), http.StatusNotFound, nil)
	decode(t, get(t, ts.URL+"/api/v1/cell"), http.StatusBadRequest, nil)
}

func TestEditRequiresToken(t *testing.T) {
	_, ts := testServer(t, nil)
	body := map[string]any{"elevation": 2}

	decode(t, post(t, ts.URL+"/api/v1/cell/3", "", body), http.StatusUnauthorized, nil)
	decode(t, post(t, ts.URL+"/api/v1/cell/3", "wrong", body), http.StatusUnauthorized, nil)

	_, closed := testServer(t, func(s *Server) { s.AdminKey = "" })
	decode(t, post(t, closed.URL+"/api/v1/cell/3", testKey, body), http.StatusForbidden, nil)
}

func TestEditCell(t *testing.T) {
	s, ts := testServer(t, nil)

	var c cellView
	body := map[string]any{"elevation": 2, "terrain": "Stone", "color": "#ff0000"}
	decode(t, post(t, ts.URL+"/api/v1/cell/3", testKey, body), http.StatusOK, &c)
	if c.Elevation != 2 || c.Terrain != "stone" || c.Color != "#ff0000ff" {
		t.Fatalf("edit not applied: %+v", c)
	}
	if st := s.World.Status(); st.DirtyChunks != 2 || st.Stats.Edits != 1 {
		t.Fatalf("expected 2 dirty chunks and 1 edit, got %+v", st)
	}

	decode(t, post(t, ts.URL+"/api/v1/cell/3", testKey, map[string]any{"terrain": "lava"}), http.StatusBadRequest, nil)
	decode(t, post(t, ts.URL+"/api/v1/cell/3", testKey, map[string]any{"color": "red"}), http.StatusBadRequest, nil)
	decode(t, post(t, ts.URL+"/api/v1/cell/99", testKey, body), http.StatusNotFound, nil)
}

func TestPathEndpoint(t *testing.T) {
	s, ts := testServer(t, nil)

	var p pathView
	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=5"), http.StatusOK, &p)
	if len(p.Cells) != 6 || p.Cost != 5 || p.Cells[0] != 0 || p.Cells[5] != 5 {
		t.Fatalf("expected a straight 6-cell path along row 0, got %+v", p)
	}
	if len(p.Positions) != len(p.Cells) {
		t.Fatalf("expected one position per cell, got %d", len(p.Positions))
	}

	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=99"), http.StatusNotFound, nil)
	decode(t, get(t, ts.URL+"/api/v1/path?from=0"), http.StatusBadRequest, nil)
	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=5&avoid_cliff=maybe"), http.StatusBadRequest, nil)

	// A goal raised three steps is ringed by cliffs.
	elev := 3
	if _, err := s.World.Edit(5, world.Edit{Elevation: &elev}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=5&avoid_cliff=true"), http.StatusUnprocessableEntity, nil)
	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=5&avoid_cliff=false"), http.StatusOK, nil)
}

func TestPathRateLimit(t *testing.T) {
	_, ts := testServer(t, func(s *Server) { s.PathLimit = 2 })

	for i := 0; i < 2; i++ {
		decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=1"), http.StatusOK, nil)
	}
	resp := get(t, ts.URL+"/api/v1/path?from=0&to=1")
	decode(t, resp, http.StatusTooManyRequests, nil)
	if resp.Header.Get("Retry-After") == "" {
		t.Fatal("expected a Retry-After header")
	}
}

func TestRateLimiterWindow(t *testing.T) {
	now := time.Unix(1000, 0)
	rl := NewRateLimiter(1, time.Minute)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || rl.Allow("a") {
		t.Fatal("expected exactly one request per window")
	}
	if !rl.Allow("b") {
		t.Fatal("clients must not share buckets")
	}
	if got := rl.RetryAfter("a"); got != 61 {
		t.Fatalf("expected 61s until reset, got %d", got)
	}
	now = now.Add(time.Minute)
	if !rl.Allow("a") {
		t.Fatal("expected a fresh window after a minute")
	}
}

func TestChunkEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	var body struct {
		Chunk     int    `json:"chunk"`
		Layer     string `json:"layer"`
		Triangles int    `json:"triangles"`
	}
	decode(t, get(t, ts.URL+"/api/v1/chunk/0/terrain"), http.StatusOK, &body)
	if body.Chunk != 0 || body.Layer != "terrain" || body.Triangles == 0 {
		t.Fatalf("unexpected chunk response: %+v", body)
	}

	resp := get(t, ts.URL+"/api/v1/chunk/2/terrain?format=frame")
	if resp.Header.Get("Content-Type") != "application/zstd" {
		t.Fatalf("expected a zstd frame, got %q", resp.Header.Get("Content-Type"))
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	f, err := meshio.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if f.Header.Chunk != 2 || f.Mesh.Empty() {
		t.Fatalf("unexpected frame: %+v", f.Header)
	}

	decode(t, get(t, ts.URL+"/api/v1/chunk/0/lava"), http.StatusBadRequest, nil)
	decode(t, get(t, ts.URL+"/api/v1/chunk/9/terrain"), http.StatusNotFound, nil)
	decode(t, get(t, ts.URL+"/api/v1/chunk/0"), http.StatusBadRequest, nil)
}

func TestPreviewEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	resp := get(t, ts.URL+"/api/v1/preview.png?width=64&path=0,1,2")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("expected a PNG, got %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	raw, _ := io.ReadAll(resp.Body)
	if !bytes.HasPrefix(raw, []byte("\x89PNG\r\n\x1a\n")) {
		t.Fatal("missing PNG signature")
	}

	decode(t, get(t, ts.URL+"/api/v1/preview.png?width=5"), http.StatusBadRequest, nil)
	decode(t, get(t, ts.URL+"/api/v1/preview.png?path=a,b"), http.StatusBadRequest, nil)
}

func TestEventsEndpoint(t *testing.T) {
	db, err := persistence.Open(filepath.Join(t.TempDir(), "events.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	s, ts := testServer(t, func(s *Server) { s.DB = db })
	decode(t, get(t, ts.URL+"/api/v1/path?from=0&to=2"), http.StatusOK, nil)

	var events []engine.Event
	decode(t, get(t, ts.URL+"/api/v1/events?category=path"), http.StatusOK, &events)
	if len(events) != 1 || !strings.Contains(events[0].Description, "path from 0 to 2") {
		t.Fatalf("expected one path event, got %+v", events)
	}

	if err := db.Flush(s.World); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	var journal []engine.Event
	decode(t, get(t, ts.URL+"/api/v1/events?source=journal&category=path"), http.StatusOK, &journal)
	if len(journal) != 1 || journal[0].Category != "path" {
		t.Fatalf("expected the path event in the journal, got %+v", journal)
	}

	_, bare := testServer(t, nil)
	decode(t, get(t, bare.URL+"/api/v1/events?source=journal"), http.StatusNotFound, nil)
}

func TestSpeedEndpoint(t *testing.T) {
	_, ts := testServer(t, nil)

	var resp map[string]float64
	decode(t, post(t, ts.URL+"/api/v1/speed", testKey, map[string]any{"speed": 5}), http.StatusOK, &resp)
	if resp["speed"] != 5 {
		t.Fatalf("expected speed 5, got %v", resp)
	}
	decode(t, post(t, ts.URL+"/api/v1/speed", testKey, map[string]any{"speed": 2000}), http.StatusBadRequest, nil)

	decode(t, get(t, ts.URL+"/api/v1/speed"), http.StatusOK, &resp)
	if resp["speed"] != 5 {
		t.Fatalf("rejected speed must not stick, got %v", resp)
	}
}

func TestTravelerEndpoints(t *testing.T) {
	s, ts := testServer(t, nil)

	var spawned struct {
		ID   string `json:"id"`
		Cell int    `json:"cell"`
	}
	decode(t, post(t, ts.URL+"/api/v1/travelers", testKey, map[string]any{"cell": 0}), http.StatusCreated, &spawned)
	if spawned.ID == "" {
		t.Fatal("expected a traveler id")
	}
	decode(t, post(t, ts.URL+"/api/v1/travelers", testKey, map[string]any{"cell": 99}), http.StatusNotFound, nil)

	var info engine.TravelerInfo
	decode(t, post(t, ts.URL+"/api/v1/travelers/"+spawned.ID, testKey, map[string]any{"goal": 5}), http.StatusOK, &info)
	if info.State != "traveling" || info.Destination != 5 {
		t.Fatalf("expected the traveler underway to 5, got %+v", info)
	}

	water := 1
	if _, err := s.World.Edit(30, world.Edit{WaterLevel: &water}); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	decode(t, post(t, ts.URL+"/api/v1/travelers/"+spawned.ID, testKey, map[string]any{"goal": 30}), http.StatusUnprocessableEntity, nil)
	decode(t, post(t, ts.URL+"/api/v1/travelers/nobody", testKey, map[string]any{"goal": 5}), http.StatusNotFound, nil)
	decode(t, post(t, ts.URL+"/api/v1/travelers/"+spawned.ID, testKey, map[string]any{"goal": 4, "slope_cost": -1}), http.StatusBadRequest, nil)

	var list []engine.TravelerInfo
	decode(t, get(t, ts.URL+"/api/v1/travelers"), http.StatusOK, &list)
	if len(list) != 1 || list[0].ID != spawned.ID {
		t.Fatalf("expected one traveler, got %+v", list)
	}
	decode(t, get(t, ts.URL+"/api/v1/travelers/"+spawned.ID), http.StatusOK, &info)
	decode(t, get(t, ts.URL+"/api/v1/travelers/nobody"), http.StatusNotFound, nil)
}

func TestCORS(t *testing.T) {
	_, ts := testServer(t, func(s *Server) { s.CORSOrigins = []string{" https://hex.example.com "} })

	for origin, allowed := range map[string]bool{
		"http://localhost:5173":   true,
		"https://hex.example.com": true,
		"https://evil.example":    false,
	} {
		req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/v1/status", nil)
		req.Header.Set("Origin", origin)
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("OPTIONS: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusNoContent {
			t.Fatalf("expected 204 for preflight, got %d", resp.StatusCode)
		}
		if got := resp.Header.Get("Access-Control-Allow-Origin") == origin; got != allowed {
			t.Fatalf("origin %s: allowed=%v, expected %v", origin, got, allowed)
		}
	}
}
