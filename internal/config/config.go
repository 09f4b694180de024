// Package config loads the hexworld YAML configuration, validates it
// against an embedded JSON schema and converts it into the typed settings
// of each package.
package config

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/talgya/hexterrain/internal/pathfind"
	"github.com/talgya/hexterrain/internal/world"
)

//go:embed config.schema.json
var schemaJSON string

var schema = jsonschema.MustCompileString("config.schema.json", schemaJSON)

// ErrInvalid is wrapped by every configuration error.
var ErrInvalid = errors.New("invalid config")

// Server holds the settings of the hexworld binary.
type Server struct {
	Port              int
	DBPath            string
	AdminKey          string // Bearer token for POST endpoints. Empty = POST disabled.
	TickInterval      time.Duration
	Speed             float64
	PathRateLimit     int // Path requests per minute per client
	FlushEveryReports int // Journal flush cadence in engine reports
	CORSOrigins       []string
	LogLevel          slog.Level
}

// Config is the fully resolved configuration.
type Config struct {
	Grid        world.Config
	Terrain     world.GenConfig
	Costs       pathfind.Costs
	PathOptions pathfind.Options
	Server      Server
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Grid:    world.DefaultConfig(),
		Terrain: world.DefaultGenConfig(),
		Costs:   pathfind.DefaultCosts(),
		PathOptions: pathfind.Options{
			AvoidWater: true,
		},
		Server: Server{
			Port:              8080,
			DBPath:            "data/hexworld.db",
			TickInterval:      100 * time.Millisecond,
			Speed:             1,
			PathRateLimit:     120,
			FlushEveryReports: 1,
			LogLevel:          slog.LevelInfo,
		},
	}
}

// file mirrors the YAML layout. Pointers distinguish absent keys from zero.
type file struct {
	Grid struct {
		OuterRadius          *float32 `yaml:"outer_radius"`
		BlendPercent         *float32 `yaml:"blend_percent"`
		ElevationStep        *float32 `yaml:"elevation_step"`
		TerracesPerSlope     *int     `yaml:"terraces_per_slope"`
		ChunkSizeX           *int     `yaml:"chunk_size_x"`
		ChunkSizeZ           *int     `yaml:"chunk_size_z"`
		ChunkCountX          *int     `yaml:"chunk_count_x"`
		ChunkCountZ          *int     `yaml:"chunk_count_z"`
		DefaultColor         *string  `yaml:"default_color"`
		WaterElevationOffset *float32 `yaml:"water_elevation_offset"`
		SplatColors          *bool    `yaml:"splat_colors"`
	} `yaml:"grid"`

	Terrain struct {
		Seed         *int64   `yaml:"seed"`
		MaxElevation *int     `yaml:"max_elevation"`
		SeaLevel     *int     `yaml:"sea_level"`
		SnowLine     *int     `yaml:"snow_line"`
		Frequency    *float64 `yaml:"frequency"`
		Octaves      *int     `yaml:"octaves"`
	} `yaml:"terrain"`

	Pathfinding struct {
		Costs      map[string]int `yaml:"costs"`
		AvoidWater *bool          `yaml:"avoid_water"`
		AvoidCliff *bool          `yaml:"avoid_cliff"`
		SlopeCost  *int           `yaml:"slope_cost"`
	} `yaml:"pathfinding"`

	Server struct {
		Port              *int     `yaml:"port"`
		DB                *string  `yaml:"db"`
		TickInterval      *string  `yaml:"tick_interval"`
		Speed             *float64 `yaml:"speed"`
		PathRateLimit     *int     `yaml:"path_rate_limit"`
		FlushEveryReports *int     `yaml:"flush_every_reports"`
	} `yaml:"server"`
}

// Load reads a YAML file on top of Default. An empty path skips the file.
// Environment overrides are applied last.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if cfg, err = Parse(raw); err != nil {
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Parse decodes, validates and resolves a YAML document.
func Parse(raw []byte) (Config, error) {
	cfg := Default()

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if doc != nil {
		if err := validate(doc); err != nil {
			return cfg, err
		}
	}

	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := f.apply(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Grid.Validate(); err != nil {
		return cfg, fmt.Errorf("%w: grid: %w", ErrInvalid, err)
	}
	return cfg, nil
}

// validate checks a decoded YAML document against the schema. The document
// goes through JSON first so numbers have the types the validator expects.
func validate(doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

func (f *file) apply(cfg *Config) error {
	g := &cfg.Grid
	set(&g.OuterRadius, f.Grid.OuterRadius)
	set(&g.BlendPercent, f.Grid.BlendPercent)
	set(&g.ElevationStep, f.Grid.ElevationStep)
	set(&g.TerracesPerSlope, f.Grid.TerracesPerSlope)
	set(&g.ChunkSizeX, f.Grid.ChunkSizeX)
	set(&g.ChunkSizeZ, f.Grid.ChunkSizeZ)
	set(&g.ChunkCountX, f.Grid.ChunkCountX)
	set(&g.ChunkCountZ, f.Grid.ChunkCountZ)
	set(&g.WaterElevationOffset, f.Grid.WaterElevationOffset)
	set(&g.SplatColors, f.Grid.SplatColors)
	if f.Grid.DefaultColor != nil {
		c, err := ParseColor(*f.Grid.DefaultColor)
		if err != nil {
			return fmt.Errorf("%w: grid.default_color: %w", ErrInvalid, err)
		}
		g.DefaultColor = c
	}

	t := &cfg.Terrain
	set(&t.Seed, f.Terrain.Seed)
	set(&t.MaxElevation, f.Terrain.MaxElevation)
	set(&t.SeaLevel, f.Terrain.SeaLevel)
	set(&t.SnowLine, f.Terrain.SnowLine)
	set(&t.Frequency, f.Terrain.Frequency)
	set(&t.Octaves, f.Terrain.Octaves)

	for name, cost := range f.Pathfinding.Costs {
		terrain, ok := world.ParseTerrain(name)
		if !ok {
			return fmt.Errorf("%w: pathfinding.costs: unknown terrain %q", ErrInvalid, name)
		}
		cfg.Costs[terrain] = cost
	}
	set(&cfg.PathOptions.AvoidWater, f.Pathfinding.AvoidWater)
	set(&cfg.PathOptions.AvoidCliff, f.Pathfinding.AvoidCliff)
	set(&cfg.PathOptions.SlopeCost, f.Pathfinding.SlopeCost)

	s := &cfg.Server
	set(&s.Port, f.Server.Port)
	set(&s.DBPath, f.Server.DB)
	set(&s.Speed, f.Server.Speed)
	set(&s.PathRateLimit, f.Server.PathRateLimit)
	set(&s.FlushEveryReports, f.Server.FlushEveryReports)
	if f.Server.TickInterval != nil {
		d, err := time.ParseDuration(*f.Server.TickInterval)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: server.tick_interval: %q is not a positive duration", ErrInvalid, *f.Server.TickInterval)
		}
		s.TickInterval = d
	}
	return nil
}

func set[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

// ApplyEnv applies HEXWORLD_PORT, HEXWORLD_DB, HEXWORLD_ADMIN_KEY,
// CORS_ORIGINS and LOG_LEVEL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("HEXWORLD_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port < 1 || port > 65535 {
			return fmt.Errorf("%w: HEXWORLD_PORT=%q", ErrInvalid, v)
		}
		c.Server.Port = port
	}
	if v := getenv("HEXWORLD_DB"); v != "" {
		c.Server.DBPath = v
	}
	c.Server.AdminKey = getenv("HEXWORLD_ADMIN_KEY")
	if v := getenv("CORS_ORIGINS"); v != "" {
		c.Server.CORSOrigins = nil
		for _, origin := range strings.Split(v, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				c.Server.CORSOrigins = append(c.Server.CORSOrigins, origin)
			}
		}
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("%w: LOG_LEVEL: %w", ErrInvalid, err)
		}
		c.Server.LogLevel = level
	}
	return nil
}
