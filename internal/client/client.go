// Package client talks to the hexworld HTTP API.
// Reads are public; spawning and steering travelers need the admin key.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/talgya/hexterrain/internal/engine"
	"github.com/talgya/hexterrain/internal/pathfind"
)

// StatusError is a non-2xx API response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// IsStatus reports whether err is an API response with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Status mirrors GET /api/v1/status.
type Status struct {
	Name        string       `json:"name"`
	Tick        uint64       `json:"tick"`
	Uptime      string       `json:"uptime"`
	Speed       float64      `json:"speed"`
	Running     bool         `json:"running"`
	Seed        int64        `json:"seed"`
	CellsX      int          `json:"cells_x"`
	CellsZ      int          `json:"cells_z"`
	Chunks      int          `json:"chunks"`
	DirtyChunks int          `json:"dirty_chunks"`
	Underwater  int          `json:"underwater"`
	Travelers   int          `json:"travelers"`
	Stats       engine.Stats `json:"stats"`
}

// CellCount returns the number of cells in the world.
func (s Status) CellCount() int {
	return s.CellsX * s.CellsZ
}

// Cell mirrors GET /api/v1/cell/:i.
type Cell struct {
	Index      int            `json:"index"`
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

// Path mirrors GET /api/v1/path.
type Path struct {
	Start     int          `json:"start"`
	Goal      int          `json:"goal"`
	Cells     []int        `json:"cells"`
	Cost      int          `json:"cost"`
	Positions [][3]float32 `json:"positions"`
}

// Client is an API client.
type Client struct {
	BaseURL    string
	AdminKey   string
	HTTPClient *http.Client
}

// New creates a Client targeting the given API base URL. adminKey may be
// empty for read-only use.
func New(baseURL, adminKey string) *Client {
	return &Client{
		BaseURL:  baseURL,
		AdminKey: adminKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Status fetches the world summary.
func (c *Client) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, http.MethodGet, "/api/v1/status", nil, &s)
	return s, err
}

// Cell fetches one cell.
func (c *Client) Cell(ctx context.Context, index int) (Cell, error) {
	var cell Cell
	err := c.do(ctx, http.MethodGet, "/api/v1/cell/"+strconv.Itoa(index), nil, &cell)
	return cell, err
}

// Path asks the server for a route.
func (c *Client) Path(ctx context.Context, from, to int, opts pathfind.Options) (Path, error) {
	q := url.Values{}
	q.Set("from", strconv.Itoa(from))
	q.Set("to", strconv.Itoa(to))
	q.Set("avoid_water", strconv.FormatBool(opts.AvoidWater))
	q.Set("avoid_cliff", strconv.FormatBool(opts.AvoidCliff))
	q.Set("slope_cost", strconv.Itoa(opts.SlopeCost))

	var p Path
	err := c.do(ctx, http.MethodGet, "/api/v1/path?"+q.Encode(), nil, &p)
	return p, err
}

// SpawnTraveler places a traveler on cell and returns its id.
func (c *Client) SpawnTraveler(ctx context.Context, cell int) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/travelers", map[string]int{"cell": cell}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Travel sends a traveler toward goal with the server's default options.
func (c *Client) Travel(ctx context.Context, id string, goal int) (engine.TravelerInfo, error) {
	var info engine.TravelerInfo
	err := c.do(ctx, http.MethodPost, "/api/v1/travelers/"+url.PathEscape(id), map[string]int{"goal": goal}, &info)
	return info, err
}

// Traveler fetches one traveler.
func (c *Client) Traveler(ctx context.Context, id string) (engine.TravelerInfo, error) {
	var info engine.TravelerInfo
	err := c.do(ctx, http.MethodGet, "/api/v1/travelers/"+url.PathEscape(id), nil, &info)
	return info, err
}

// WaitReady polls the status endpoint with exponential backoff until it
// responds or ctx ends.
func (c *Client) WaitReady(ctx context.Context) error {
	backoff := 500 * time.Millisecond
	const maxBackoff = 30 * time.Second

	for {
		_, err := c.Status(ctx)
		if err == nil {
			slog.Info("hexworld API is ready", "url", c.BaseURL)
			return nil
		}
		slog.Info("hexworld not ready, retrying", "backoff", backoff, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

// do sends a request and decodes the JSON response into target.
func (c *Client) do(ctx context.Context, method, path string, body, target any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s: %w", path, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost && c.AdminKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.AdminKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}
	if target == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
