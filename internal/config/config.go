package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a YAML-friendly wrapper around time.Duration that accepts human
// readable strings such as "150ms".
type Duration time.Duration

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// MarshalYAML encodes the duration using the canonical string representation.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML decodes a duration from either a string (e.g. "250ms") or an
// integer number of nanoseconds. Empty strings decode to zero.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("duration: expected scalar, got kind %d", value.Kind)
	}
	if value.Value == "" || value.ShortTag() == "!!null" {
		*d = 0
		return nil
	}
	if value.ShortTag() == "!!int" {
		var n int64
		if err := value.Decode(&n); err != nil {
			return fmt.Errorf("duration: decode int: %w", err)
		}
		*d = Duration(time.Duration(n))
		return nil
	}
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("duration: parse %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config captures every tunable of a world session.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	World   WorldConfig   `yaml:"world"`
	Terrain TerrainConfig `yaml:"terrain"`
	Physics PhysicsConfig `yaml:"physics"`
}

const (
	BackendFiles   = "files"
	BackendLevelDB = "leveldb"
)

type StorageConfig struct {
	Root      string `yaml:"root"`       // directory holding every world
	Backend   string `yaml:"backend"`    // "files" or "leveldb"
	Workers   int    `yaml:"workers"`    // concurrent background loads/saves
	ZstdLevel int    `yaml:"zstd_level"` // 1 (fastest) .. 22, mapped onto encoder presets
}

type WorldConfig struct {
	ViewRadius int      `yaml:"view_radius"` // chunks retained around the viewer
	TickRate   Duration `yaml:"tick_rate"`
	WaterStep  Duration `yaml:"water_step"` // fixed timestep of the water simulation
	DayLength  Duration `yaml:"day_length"`
	StartHour  float64  `yaml:"start_hour"` // time of day of a new world, 0..24
}

type TerrainConfig struct {
	HeightFrequency   float64 `yaml:"height_frequency"`
	DetailFrequency   float64 `yaml:"detail_frequency"`
	ModifierFrequency float64 `yaml:"modifier_frequency"`
	Octaves           int     `yaml:"octaves"`
	Persistence       float64 `yaml:"persistence"`
	Lacunarity        float64 `yaml:"lacunarity"`
	MinHeight         int     `yaml:"min_height"`
	MaxHeight         int     `yaml:"max_height"`
	SurfaceDepth      int     `yaml:"surface_depth"`

	CaveZoneFrequency float64 `yaml:"cave_zone_frequency"`
	CaveZoneThreshold float64 `yaml:"cave_zone_threshold"`
	CaveFrequency     float64 `yaml:"cave_frequency"`
	CaveWindowLow     float64 `yaml:"cave_window_low"`
	CaveWindowHigh    float64 `yaml:"cave_window_high"`
	CaveFloor         int     `yaml:"cave_floor"`
	CaveRoof          int     `yaml:"cave_roof"` // minimum rock kept between a cave and the surface

	LakeFrequency float64 `yaml:"lake_frequency"`
	LakeMinHeight int     `yaml:"lake_min_height"`
	LakeMaxHeight int     `yaml:"lake_max_height"`
	LakeMaxDepth  int     `yaml:"lake_max_depth"`
	MinLakeDepth  int     `yaml:"min_lake_depth"`

	BiomeFrequency float64 `yaml:"biome_frequency"`
	DryThreshold   float64 `yaml:"dry_threshold"`
	WetThreshold   float64 `yaml:"wet_threshold"`
	ClayFrequency  float64 `yaml:"clay_frequency"`
	ClayThreshold  float64 `yaml:"clay_threshold"`

	VegetationChance float64 `yaml:"vegetation_chance"`
	Workers          int     `yaml:"workers"` // parallel column fill per chunk
}

type PhysicsConfig struct {
	Gravity         float64  `yaml:"gravity"`        // voxels per second squared
	TerminalSpeed   float64  `yaml:"terminal_speed"` // voxels per second
	ExplosionRadius float64  `yaml:"explosion_radius"`
	Fuse            Duration `yaml:"fuse"`
	ShortFuse       Duration `yaml:"short_fuse"`
	MaxCharges      int      `yaml:"max_charges"`
}

// Load reads configuration from a YAML file if provided. An empty path returns
// defaults. Fields missing from the file keep their default values.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Root:      "./worlds",
			Backend:   BackendFiles,
			Workers:   4,
			ZstdLevel: 3,
		},
		World: WorldConfig{
			ViewRadius: 2,
			TickRate:   Duration(50 * time.Millisecond),
			WaterStep:  Duration(250 * time.Millisecond),
			DayLength:  Duration(20 * time.Minute),
			StartHour:  6,
		},
		Terrain: TerrainConfig{
			HeightFrequency:   0.008,
			DetailFrequency:   0.02,
			ModifierFrequency: 0.002,
			Octaves:           4,
			Persistence:       0.5,
			Lacunarity:        2.0,
			MinHeight:         16,
			MaxHeight:         48,
			SurfaceDepth:      3,

			CaveZoneFrequency: 0.004,
			CaveZoneThreshold: 0.55,
			CaveFrequency:     0.07,
			CaveWindowLow:     0.45,
			CaveWindowHigh:    0.55,
			CaveFloor:         4,
			CaveRoof:          5,

			LakeFrequency: 0.01,
			LakeMinHeight: 16,
			LakeMaxHeight: 26,
			LakeMaxDepth:  6,
			MinLakeDepth:  2,

			BiomeFrequency: 0.003,
			DryThreshold:   0.40,
			WetThreshold:   0.80,
			ClayFrequency:  0.05,
			ClayThreshold:  0.72,

			VegetationChance: 0.015,
			Workers:          2,
		},
		Physics: PhysicsConfig{
			Gravity:         20,
			TerminalSpeed:   30,
			ExplosionRadius: 4,
			Fuse:            Duration(3 * time.Second),
			ShortFuse:       Duration(250 * time.Millisecond),
			MaxCharges:      64,
		},
	}
}

// worldHeight mirrors the fixed vertical size of a chunk.
const worldHeight = 64

func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return errors.New("storage.root must be set")
	}
	if c.Storage.Backend != BackendFiles && c.Storage.Backend != BackendLevelDB {
		return fmt.Errorf("storage.backend must be %q or %q", BackendFiles, BackendLevelDB)
	}
	if c.Storage.Workers <= 0 {
		return errors.New("storage.workers must be positive")
	}
	if c.Storage.ZstdLevel < 1 || c.Storage.ZstdLevel > 22 {
		return errors.New("storage.zstd_level must be within 1..22")
	}
	if c.World.ViewRadius < 0 {
		return errors.New("world.view_radius cannot be negative")
	}
	if c.World.TickRate <= 0 || c.World.WaterStep <= 0 {
		return errors.New("world tick_rate and water_step must be positive")
	}
	if c.World.DayLength <= 0 {
		return errors.New("world.day_length must be positive")
	}
	if c.World.StartHour < 0 || c.World.StartHour >= 24 {
		return errors.New("world.start_hour must be within [0, 24)")
	}
	if err := c.Terrain.validate(); err != nil {
		return err
	}
	if c.Physics.Gravity <= 0 || c.Physics.TerminalSpeed <= 0 {
		return errors.New("physics gravity and terminal_speed must be positive")
	}
	if c.Physics.ExplosionRadius <= 0 {
		return errors.New("physics.explosion_radius must be positive")
	}
	if c.Physics.Fuse <= 0 || c.Physics.ShortFuse <= 0 || c.Physics.ShortFuse > c.Physics.Fuse {
		return errors.New("physics fuses must be positive with short_fuse <= fuse")
	}
	if c.Physics.MaxCharges <= 0 {
		return errors.New("physics.max_charges must be positive")
	}
	return nil
}

func (t *TerrainConfig) validate() error {
	if t.Octaves <= 0 {
		return errors.New("terrain.octaves must be positive")
	}
	if t.HeightFrequency <= 0 || t.DetailFrequency <= 0 || t.ModifierFrequency <= 0 ||
		t.CaveZoneFrequency <= 0 || t.CaveFrequency <= 0 || t.LakeFrequency <= 0 ||
		t.BiomeFrequency <= 0 || t.ClayFrequency <= 0 {
		return errors.New("terrain frequencies must be positive")
	}
	if t.MinHeight < worldHeight/4 || t.MaxHeight > worldHeight-9 || t.MinHeight >= t.MaxHeight {
		return fmt.Errorf("terrain height range must lie within [%d, %d]", worldHeight/4, worldHeight-9)
	}
	if t.SurfaceDepth <= 0 {
		return errors.New("terrain.surface_depth must be positive")
	}
	if t.CaveWindowLow >= t.CaveWindowHigh {
		return errors.New("terrain cave window must be non-empty")
	}
	if t.CaveFloor < 1 || t.CaveRoof < 1 {
		return errors.New("terrain cave_floor and cave_roof must be at least 1")
	}
	if t.MinLakeDepth <= 0 || t.LakeMaxDepth < t.MinLakeDepth {
		return errors.New("terrain lake depths must satisfy 0 < min_lake_depth <= lake_max_depth")
	}
	if t.LakeMinHeight > t.LakeMaxHeight {
		return errors.New("terrain lake height band is inverted")
	}
	if t.DryThreshold <= 0 || t.DryThreshold >= t.WetThreshold || t.WetThreshold >= 1 {
		return errors.New("terrain biome thresholds must satisfy 0 < dry < wet < 1")
	}
	if t.VegetationChance < 0 || t.VegetationChance > 1 {
		return errors.New("terrain.vegetation_chance must be within [0, 1]")
	}
	if t.Workers < 0 {
		return errors.New("terrain.workers cannot be negative")
	}
	return nil
}

// WriteDefault writes the default configuration to the provided path.
func WriteDefault(path string) error {
	data, err := yaml.Marshal(Default())
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
