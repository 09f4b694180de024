// Package api provides the HTTP API for the hex world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/talgya/hexterrain/internal/config"
	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/mesh"
	"github.com/talgya/hexterrain/internal/meshio"
	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/persistence"
	"github.com/talgya/hexterrain/internal/travel"
	"github.com/talgya/hexterrain/internal/world"
)

const (
	defaultPreviewWidth = 800
	maxPreviewWidth     = 4096
)

// Server serves the world over HTTP.
type Server struct {
	World       *engine.World
	Eng         *engine.Engine
	DB          *persistence.DB // Optional journal for /events?source=journal
	Port        int
	AdminKey    string   // Bearer token for POST endpoints. Empty = POST disabled.
	CORSOrigins []string // Extra allowed origins besides localhost dev servers
	PathOptions pathfind.Options
	PathLimit   int // Path requests per minute per client; 0 = unlimited

	Hub *Hub // Mesh stream; created by Handler when nil

	sseConns atomic.Int32
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.Hub == nil {
		s.Hub = NewHub(s.World)
	}
	s.World.SetMeshSink(s.Hub)

	path := s.handlePath
	if s.PathLimit > 0 {
		path = RateLimitMiddleware(NewRateLimiter(s.PathLimit, time.Minute), path)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/config", s.handleConfig)
	mux.HandleFunc("/api/v1/cell", s.handleCellLookup)
	mux.HandleFunc("/api/v1/path", path)
	mux.HandleFunc("/api/v1/chunk/", s.handleChunk)
	mux.HandleFunc("/api/v1/preview.png", s.handlePreview)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/events/stream", s.handleEventStream)
	mux.HandleFunc("/api/v1/stream", s.Hub.ServeHTTP)

	// Mixed endpoints: GET is public, POST needs the admin token.
	mux.HandleFunc("/api/v1/cell/", s.adminOnly(s.handleCellRoutes))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/travelers", s.adminOnly(s.handleTravelers))
	mux.HandleFunc("/api/v1/travelers/", s.adminOnly(s.handleTravel))

	return corsMiddleware(s.CORSOrigins, mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server can
// be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "", "path_limit", s.PathLimit)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Localhost dev servers are always allowed.
func corsMiddleware(origins []string, next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range origins {
		if origin = strings.TrimSpace(origin); origin != "" {
			allowedOrigins[origin] = true
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	return ok && token == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no HEXWORLD_ADMIN_KEY set)", http.StatusForbidden)
				return
			}
			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := s.World.Status()
	writeJSON(w, map[string]any{
		"name":         "hexworld",
		"tick":         status.Tick,
		"uptime":       engine.Uptime(status.Tick),
		"speed":        s.Eng.Speed(),
		"running":      s.Eng.Running(),
		"seed":         status.Seed,
		"cells_x":      status.CellsX,
		"cells_z":      status.CellsZ,
		"chunks":       status.Chunks,
		"dirty_chunks": status.DirtyChunks,
		"underwater":   status.Underwater,
		"travelers":    status.Travelers,
		"stats":        status.Stats,
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := s.World.Config()
	m := world.NewMetrics(cfg)
	writeJSON(w, map[string]any{
		"outer_radius":           m.OuterRadius,
		"inner_radius":           m.InnerRadius,
		"blend_factor":           m.BlendFactor,
		"elevation_step":         m.ElevationStep,
		"terraces_per_slope":     m.TerracesPerSlope,
		"terrace_steps":          m.TerraceSteps,
		"water_elevation_offset": m.WaterElevationOffset,
		"chunk_size_x":           cfg.ChunkSizeX,
		"chunk_size_z":           cfg.ChunkSizeZ,
		"chunk_count_x":          cfg.ChunkCountX,
		"chunk_count_z":          cfg.ChunkCountZ,
		"splat_colors":           cfg.SplatColors,
		"path_options":           s.PathOptions,
	})
}

// cellView is the JSON form of a cell.
type cellView struct {
	Index      int            `json:"index"`
	Coord      world.HexCoord `json:"coord"`
	Cube       string         `json:"cube"`
	Col        int            `json:"col"`
	Row        int            `json:"row"`
	Chunk      int            `json:"chunk"`
	Elevation  int            `json:"elevation"`
	WaterLevel int            `json:"water_level"`
	Underwater bool           `json:"underwater"`
	Terrain    string         `json:"terrain"`
	Color      string         `json:"color"`
	Position   [3]float32     `json:"position"`
	Neighbors  map[string]int `json:"neighbors"`
}

func newCellView(c world.Cell) cellView {
	col, row := c.Coord.ToOffset()
	v := cellView{
		Index:      c.Index,
		Coord:      c.Coord,
		Cube:       c.Coord.String(),
		Col:        col,
		Row:        row,
		Chunk:      c.Chunk,
		Elevation:  c.Elevation,
		WaterLevel: c.WaterLevel,
		Underwater: c.IsUnderwater(),
		Terrain:    world.TerrainName(c.Terrain),
		Color:      config.FormatColor(c.Color),
		Position:   c.Position,
		Neighbors:  make(map[string]int, 6),
	}
	for _, d := range world.Directions {
		if n, ok := c.NeighborIndex(d); ok {
			v.Neighbors[d.String()] = n
		}
	}
	return v
}

// handleCellLookup resolves a cell by offset (?col=&row=) or by ground-plane
// position (?x=&z=).
func (s *Server) handleCellLookup(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var (
		c  world.Cell
		ok bool
	)
	switch {
	case q.Has("col") || q.Has("row"):
		col, err1 := strconv.Atoi(q.Get("col"))
		row, err2 := strconv.Atoi(q.Get("row"))
		if err1 != nil || err2 != nil {
			http.Error(w, "col and row must be integers", http.StatusBadRequest)
			return
		}
		c, ok = s.World.CellAtOffset(col, row)
	case q.Has("x") || q.Has("z"):
		x, err1 := strconv.ParseFloat(q.Get("x"), 32)
		z, err2 := strconv.ParseFloat(q.Get("z"), 32)
		if err1 != nil || err2 != nil {
			http.Error(w, "x and z must be numbers", http.StatusBadRequest)
			return
		}
		c, ok = s.World.CellAtPosition(float32(x), float32(z))
	default:
		http.Error(w, "use ?col=&row= or ?x=&z=", http.StatusBadRequest)
		return
	}
	if !ok {
		http.Error(w, "cell not found", http.StatusNotFound)
		return
	}
	writeJSON(w, newCellView(c))
}

// handleCellRoutes dispatches GET /api/v1/cell/:i, GET /api/v1/cell/:i/neighbor/:dir
// and POST /api/v1/cell/:i (edit).
func (s *Server) handleCellRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cell/"), "/"), "/")
	index, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid cell index", http.StatusBadRequest)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodPost:
		s.handleEdit(w, r, index)
	case len(parts) == 1:
		c, ok := s.World.Cell(index)
		if !ok {
			http.Error(w, "cell not found", http.StatusNotFound)
			return
		}
		writeJSON(w, newCellView(c))
	case len(parts) == 3 && parts[1] == "neighbor":
		d, ok := world.ParseDirection(parts[2])
		if !ok {
			http.Error(w, "unknown direction (use NE, E, SE, SW, W, NW)", http.StatusBadRequest)
			return
		}
		n, ok := s.World.Neighbor(index, d)
		if !ok {
			http.Error(w, "no neighbor in that direction", http.StatusNotFound)
			return
		}
		writeJSON(w, newCellView(n))
	default:
		http.NotFound(w, r)
	}
}

// editRequest is the body of POST /api/v1/cell/:i. Absent fields are kept.
type editRequest struct {
	Elevation  *int    `json:"elevation"`
	WaterLevel *int    `json:"water_level"`
	Terrain    *string `json:"terrain"`
	Color      *string `json:"color"`
}

func (req editRequest) toEdit() (world.Edit, error) {
	e := world.Edit{Elevation: req.Elevation, WaterLevel: req.WaterLevel}
	if req.Terrain != nil {
		t, ok := world.ParseTerrain(*req.Terrain)
		if !ok {
			return e, fmt.Errorf("unknown terrain %q", *req.Terrain)
		}
		e.Terrain = &t
	}
	if req.Color != nil {
		c, err := config.ParseColor(*req.Color)
		if err != nil {
			return e, err
		}
		e.Color = &c
	}
	return e, nil
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request, index int) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	edit, err := req.toEdit()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	c, err := s.World.Edit(index, edit)
	if err != nil {
		writeError(w, err)
		return
	}
	slog.Info("cell edited", "cell", index, "elevation", c.Elevation, "water_level", c.WaterLevel)
	writeJSON(w, newCellView(c))
}

// pathView is the JSON form of a search result.
type pathView struct {
	Start     int          `json:"start"`
	Goal      int          `json:"goal"`
	Cells     []int        `json:"cells"`
	Cost      int          `json:"cost"`
	Positions [][3]float32 `json:"positions"`
}

// handlePath runs one search: GET /api/v1/path?from=&to=[&avoid_water=][&avoid_cliff=][&slope_cost=].
func (s *Server) handlePath(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from, err1 := strconv.Atoi(q.Get("from"))
	to, err2 := strconv.Atoi(q.Get("to"))
	if err1 != nil || err2 != nil {
		http.Error(w, "from and to must be cell indices", http.StatusBadRequest)
		return
	}
	opts, err := pathOptions(q.Get, s.PathOptions)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	path, err := s.World.FindPath(from, to, opts)
	if err != nil {
		writeError(w, err)
		return
	}

	view := pathView{Start: from, Goal: to, Cells: path.Cells, Cost: path.Cost}
	for _, i := range path.Cells {
		c, _ := s.World.Cell(i)
		view.Positions = append(view.Positions, c.Position)
	}
	writeJSON(w, view)
}

// pathOptions overlays query parameters on the server defaults.
func pathOptions(get func(string) string, base pathfind.Options) (pathfind.Options, error) {
	opts := base
	for key, dst := range map[string]*bool{"avoid_water": &opts.AvoidWater, "avoid_cliff": &opts.AvoidCliff} {
		if v := get(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, fmt.Errorf("%s must be a boolean", key)
			}
			*dst = b
		}
	}
	if v := get("slope_cost"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return opts, errors.New("slope_cost must be a non-negative integer")
		}
		opts.SlopeCost = n
	}
	return opts, nil
}

// handleChunk serves GET /api/v1/chunk/:id/:layer as JSON, or as a compressed
// mesh frame when the client asks for application/zstd.
func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/chunk/"), "/"), "/")
	if len(parts) != 2 {
		http.Error(w, "use /api/v1/chunk/:id/:layer", http.StatusBadRequest)
		return
	}
	id, err := strconv.Atoi(parts[0])
	if err != nil {
		http.Error(w, "invalid chunk id", http.StatusBadRequest)
		return
	}
	layer, ok := mesh.ParseLayer(parts[1])
	if !ok {
		http.Error(w, "unknown layer (use terrain, water, shore)", http.StatusBadRequest)
		return
	}

	m, ok := s.World.ChunkMesh(id, layer)
	if !ok {
		http.Error(w, "chunk not found", http.StatusNotFound)
		return
	}

	if r.URL.Query().Get("format") == "frame" || strings.Contains(r.Header.Get("Accept"), "application/zstd") {
		frame, err := meshio.EncodeFrame(id, layer, &m)
		if err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/zstd")
		w.Write(frame)
		return
	}

	writeJSON(w, map[string]any{
		"chunk":     id,
		"layer":     layer.String(),
		"triangles": m.TriangleCount(),
		"mesh":      m,
	})
}

// handlePreview renders a top-down PNG. ?path=1,2,3 overlays a route and
// ?width= sets the image width in pixels.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	width := defaultPreviewWidth
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 16 || n > maxPreviewWidth {
			http.Error(w, fmt.Sprintf("width must be 16-%d", maxPreviewWidth), http.StatusBadRequest)
			return
		}
		width = n
	}
	var route []int
	if v := r.URL.Query().Get("path"); v != "" {
		for _, f := range strings.Split(v, ",") {
			n, err := strconv.Atoi(strings.TrimSpace(f))
			if err != nil {
				http.Error(w, "path must be comma-separated cell indices", http.StatusBadRequest)
				return
			}
			route = append(route, n)
		}
	}

	var (
		buf bytes.Buffer
		err error
	)
	s.World.View(func(g *world.Grid, meshes *mesh.Builder) {
		err = meshio.RenderPreview(g, meshes, route, width).WritePNG(&buf)
	})
	if err != nil {
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(buf.Bytes())
}

// handleEvents lists recent events from memory, or from the journal with
// ?source=journal.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	category := r.URL.Query().Get("category")

	if r.URL.Query().Get("source") == "journal" {
		if s.DB == nil {
			http.Error(w, "no journal configured", http.StatusNotFound)
			return
		}
		events, err := s.DB.RecentEvents(category, limit)
		if err != nil {
			slog.Error("journal query failed", "error", err)
			http.Error(w, "journal query failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, events)
		return
	}

	events := s.World.Events(0)
	if category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	if events == nil {
		events = []engine.Event{}
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Eng.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

// handleTravelers lists travelers (GET) or spawns one (POST {"cell": n}).
func (s *Server) handleTravelers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, s.World.Travelers())
		return
	}

	var req struct {
		Cell int `json:"cell"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	id, err := s.World.SpawnTraveler(req.Cell)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"id": id, "cell": req.Cell})
}

// handleTravel serves GET /api/v1/travelers/:id and POST /api/v1/travelers/:id
// with {"goal": n, "avoid_water": b, "avoid_cliff": b, "slope_cost": n}.
func (s *Server) handleTravel(w http.ResponseWriter, r *http.Request) {
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/travelers/"), "/")

	if r.Method != http.MethodPost {
		for _, t := range s.World.Travelers() {
			if t.ID == id {
				writeJSON(w, t)
				return
			}
		}
		http.Error(w, "traveler not found", http.StatusNotFound)
		return
	}

	var req struct {
		Goal       int   `json:"goal"`
		AvoidWater *bool `json:"avoid_water"`
		AvoidCliff *bool `json:"avoid_cliff"`
		SlopeCost  *int  `json:"slope_cost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	opts := s.PathOptions
	if req.AvoidWater != nil {
		opts.AvoidWater = *req.AvoidWater
	}
	if req.AvoidCliff != nil {
		opts.AvoidCliff = *req.AvoidCliff
	}
	if req.SlopeCost != nil {
		opts.SlopeCost = *req.SlopeCost
	}

	info, err := s.World.TravelTo(id, req.Goal, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

// writeError maps domain errors to status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pathfind.ErrBusy):
		w.Header().Set("Retry-After", "1")
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, pathfind.ErrInvalidCost):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, pathfind.ErrNoPath), errors.Is(err, travel.ErrDestinationUnderwater):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, pathfind.ErrCellOutOfRange), errors.Is(err, engine.ErrUnknownTraveler):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		slog.Error("request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
