package spatial

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/oktant/oktant/internal/core/geometry"
)

// Duration is a time.Duration that unmarshals from yaml strings like
// "16ms" as well as plain nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("parsing duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("parsing duration: %w", err)
	}
	*d = Duration(n)
	return nil
}

// Config carries the tuning surface of the subsystem: world bounds, tree
// shape, and cache behavior. Zero values are invalid; start from
// DefaultConfig and override.
type Config struct {
	WorldMin geometry.Vec3 `yaml:"world_min"`
	WorldMax geometry.Vec3 `yaml:"world_max"`

	MaxEntitiesPerNode int `yaml:"max_entities_per_node"`
	MaxDepth           int `yaml:"max_depth"`

	CacheEnabled    bool    `yaml:"cache_enabled"`
	CacheEpsilon    float64 `yaml:"cache_epsilon"`
	CacheMaxEntries int     `yaml:"cache_max_entries"`

	// Frustum queries change with the camera every frame and get a short
	// TTL; box and radius queries tend to repeat and keep results longer.
	FrustumTTL Duration `yaml:"frustum_ttl"`
	RegionTTL  Duration `yaml:"region_ttl"`
	RadiusTTL  Duration `yaml:"radius_ttl"`

	// InvalidationRadius is the half-extent of the neighborhood considered
	// affected when an entity moves. Larger values invalidate more cache
	// entries per move; smaller values risk missing queries whose results
	// depend on entity extents rather than positions.
	InvalidationRadius float64 `yaml:"invalidation_radius"`
}

func DefaultConfig() Config {
	return Config{
		WorldMin:           geometry.Vec3{X: -100, Y: -100, Z: -100},
		WorldMax:           geometry.Vec3{X: 100, Y: 100, Z: 100},
		MaxEntitiesPerNode: 16,
		MaxDepth:           8,
		CacheEnabled:       true,
		CacheEpsilon:       0.01,
		CacheMaxEntries:    1000,
		FrustumTTL:         Duration(16 * time.Millisecond),
		RegionTTL:          Duration(100 * time.Millisecond),
		RadiusTTL:          Duration(100 * time.Millisecond),
		InvalidationRadius: 15,
	}
}

// WorldBounds returns the configured world extent as a box.
func (c Config) WorldBounds() geometry.AABB {
	return geometry.NewAABB(c.WorldMin, c.WorldMax)
}

func (c Config) Validate() error {
	if c.WorldMin.X >= c.WorldMax.X || c.WorldMin.Y >= c.WorldMax.Y || c.WorldMin.Z >= c.WorldMax.Z {
		return fmt.Errorf("world bounds: min %v must be less than max %v on every axis", c.WorldMin, c.WorldMax)
	}
	if c.MaxEntitiesPerNode < 1 {
		return fmt.Errorf("max_entities_per_node must be positive, got %d", c.MaxEntitiesPerNode)
	}
	if c.MaxDepth < 1 || c.MaxDepth > 20 {
		return fmt.Errorf("max_depth must be between 1 and 20, got %d", c.MaxDepth)
	}
	if c.CacheEpsilon <= 0 {
		return fmt.Errorf("cache_epsilon must be positive, got %g", c.CacheEpsilon)
	}
	if c.CacheMaxEntries < 1 {
		return fmt.Errorf("cache_max_entries must be positive, got %d", c.CacheMaxEntries)
	}
	if c.FrustumTTL <= 0 || c.RegionTTL <= 0 || c.RadiusTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if c.InvalidationRadius <= 0 {
		return fmt.Errorf("invalidation_radius must be positive, got %g", c.InvalidationRadius)
	}
	return nil
}

// LoadConfig reads a yaml config file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}
