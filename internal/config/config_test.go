package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/talgya/hexterrain/internal/world"
)

const sample = `
grid:
  outer_radius: 4
  terraces_per_slope: 3
  chunk_size_x: 4
  chunk_size_z: 4
  chunk_count_x: 2
  chunk_count_z: 2
  default_color: "#ff000080"
  splat_colors: true
terrain:
  seed: 7
  sea_level: 1
pathfinding:
  costs:
    mud: 3
  avoid_cliff: true
  slope_cost: 2
server:
  port: 9000
  tick_interval: 50ms
  path_rate_limit: 10
`

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	def := Default()
	if cfg.Grid.OuterRadius != 4 || cfg.Grid.TerracesPerSlope != 3 || !cfg.Grid.SplatColors {
		t.Fatalf("grid overrides not applied: %+v", cfg.Grid)
	}
	if cfg.Grid.BlendPercent != def.Grid.BlendPercent {
		t.Fatalf("expected default blend %v, got %v", def.Grid.BlendPercent, cfg.Grid.BlendPercent)
	}
	if cfg.Grid.CellCountX() != 8 {
		t.Fatalf("expected 8 cells per row, got %d", cfg.Grid.CellCountX())
	}
	if want := (mgl32.Vec4{1, 0, 0, 128.0 / 255}); cfg.Grid.DefaultColor != want {
		t.Fatalf("expected color %v, got %v", want, cfg.Grid.DefaultColor)
	}
	if cfg.Terrain.Seed != 7 || cfg.Terrain.SeaLevel != 1 || cfg.Terrain.Octaves != def.Terrain.Octaves {
		t.Fatalf("terrain overrides not applied: %+v", cfg.Terrain)
	}
	if cfg.Costs[world.TerrainMud] != 3 || cfg.Costs[world.TerrainGrass] != 1 {
		t.Fatalf("unexpected costs %v", cfg.Costs)
	}
	if !cfg.PathOptions.AvoidCliff || !cfg.PathOptions.AvoidWater || cfg.PathOptions.SlopeCost != 2 {
		t.Fatalf("unexpected path options %+v", cfg.PathOptions)
	}
	if cfg.Server.Port != 9000 || cfg.Server.TickInterval != 50*time.Millisecond || cfg.Server.PathRateLimit != 10 {
		t.Fatalf("unexpected server settings %+v", cfg.Server)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown section", "render:\n  fov: 60\n"},
		{"unknown key", "grid:\n  radius: 3\n"},
		{"blend out of range", "grid:\n  blend_percent: 1.5\n"},
		{"zero terraces", "grid:\n  terraces_per_slope: 0\n"},
		{"bad color", "grid:\n  default_color: red\n"},
		{"free terrain", "pathfinding:\n  costs:\n    snow: 0\n"},
		{"unknown terrain", "pathfinding:\n  costs:\n    lava: 2\n"},
		{"bad interval", "server:\n  tick_interval: soon\n"},
		{"wrong type", "server:\n  port: eighty\n"},
		{"not yaml", "grid: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestParseEmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Grid != Default().Grid {
		t.Fatalf("expected defaults, got %+v", cfg.Grid)
	}
}

func TestLoadAppliesEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hexworld.yaml")
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("HEXWORLD_PORT", "9100")
	t.Setenv("HEXWORLD_ADMIN_KEY", "secret")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9100 || cfg.Server.AdminKey != "secret" {
		t.Fatalf("env not applied: %+v", cfg.Server)
	}
	if len(cfg.Server.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.Server.CORSOrigins)
	}
	if cfg.Server.LogLevel != slog.LevelDebug {
		t.Fatalf("expected debug level, got %v", cfg.Server.LogLevel)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnvRejectsBadPort(t *testing.T) {
	cfg := Default()
	env := map[string]string{"HEXWORLD_PORT": "http"}
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid, got %v", err)
	}
}

func TestColorRoundTrip(t *testing.T) {
	for _, s := range []string{"#000000ff", "#12ab34cd", "#ffffffff"} {
		c, err := ParseColor(s)
		if err != nil {
			t.Fatalf("ParseColor(%q): %v", s, err)
		}
		if got := FormatColor(c); got != s {
			t.Fatalf("expected %s, got %s", s, got)
		}
	}
	for _, bad := range []string{"ffffff", "#fff", "#gggggg"} {
		if _, err := ParseColor(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}
