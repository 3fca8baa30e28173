// Package config holds every tunable of the culling engine and loads them from YAML.
package config

import (
	"os"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
	"github.com/Carmen-Shannon/oxy-cull/engine/partition"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Octree configures the spatial index of every partition.
type Octree struct {
	Capacity    int     `yaml:"capacity"`
	MinNodeSize float32 `yaml:"min_node_size"`
	Slop        float32 `yaml:"slop"`
	MaxDepth    int     `yaml:"max_depth"`
	// RegionHalfExtent is the half size of a new partition's root node.
	RegionHalfExtent float32 `yaml:"region_half_extent"`
}

// Movement configures move damping.
type Movement struct {
	DampDistance float32 `yaml:"damp_distance"`
	DampAngle    float32 `yaml:"damp_angle"`
}

// LOD configures level of detail selection.
type LOD struct {
	Thresholds []float32 `yaml:"thresholds"`
	Hysteresis float32   `yaml:"hysteresis"`
	SlopRatio  float32   `yaml:"slop_ratio"`
}

// Occlusion configures occlusion queries.
type Occlusion struct {
	Enabled bool    `yaml:"enabled"`
	MinSize float32 `yaml:"min_size"`
	// Latency is the number of frames a query takes to resolve.
	Latency int `yaml:"latency"`
	// Retry is the number of frames between queries of a resolved group.
	Retry int `yaml:"retry"`
}

// Rebuild configures the geometry managers.
type Rebuild struct {
	Budget           time.Duration `yaml:"budget"`
	BatchSize        int           `yaml:"batch_size"`
	MaxBatchVertices int           `yaml:"max_batch_vertices"`
	Workers          int           `yaml:"workers"`
	// BufferBudget caps the bytes of GPU buffers held by groups. 0 means unlimited.
	BufferBudget uint64 `yaml:"buffer_budget"`
}

// Config is the complete engine configuration.
type Config struct {
	Octree    Octree    `yaml:"octree"`
	Movement  Movement  `yaml:"movement"`
	LOD       LOD       `yaml:"lod"`
	Occlusion Occlusion `yaml:"occlusion"`
	Rebuild   Rebuild   `yaml:"rebuild"`

	// Partitions lists the partition kinds every region holds. Empty means all of them.
	Partitions []common.PartitionKind `yaml:"partitions"`
}

// Default returns the tuned defaults.
func Default() Config {
	lod := group.DefaultLODPolicy()
	return Config{
		Octree: Octree{
			Capacity:         octree.DefaultCapacity,
			MinNodeSize:      octree.DefaultMinNodeSize,
			Slop:             octree.DefaultSlop,
			MaxDepth:         octree.DefaultMaxDepth,
			RegionHalfExtent: 128,
		},
		Movement: Movement{
			DampDistance: drawable.DefaultDampDistance,
			DampAngle:    drawable.DefaultDampAngle,
		},
		LOD: LOD{
			Thresholds: lod.Thresholds,
			Hysteresis: lod.Hysteresis,
			SlopRatio:  lod.SlopRatio,
		},
		Occlusion: Occlusion{
			Enabled: true,
			MinSize: partition.DefaultOcclusionMinSize,
			Latency: occlusion.DefaultLatency,
			Retry:   partition.DefaultOcclusionRetry,
		},
		Rebuild: Rebuild{
			Budget:           4 * time.Millisecond,
			BatchSize:        geometry.DefaultBatchSize,
			MaxBatchVertices: geometry.DefaultMaxBatchVertices,
			Workers:          4,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
//
// Parameters:
//   - path: the YAML file
//
// Returns:
//   - Config: the configuration
//   - error: a read, parse or invalid_config error
func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.New("reading config file failed").
			WithTag("path", path).
			Wrap(err)
	}
	return Parse(b)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(b []byte) (Config, error) {
	c := Default()
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, errors.New("parsing config failed").
			WithType(common.ErrTypeInvalidConfig).
			Wrap(err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the engine cannot run with.
//
// Returns:
//   - error: an invalid_config error naming the first bad field
func (c Config) Validate() error {
	invalid := func(field string, value any) error {
		return errors.New("invalid config value").
			WithType(common.ErrTypeInvalidConfig).
			WithTag("field", field).
			WithTag("value", value)
	}
	switch {
	case c.Octree.Capacity < 1:
		return invalid("octree.capacity", c.Octree.Capacity)
	case c.Octree.MinNodeSize <= 0:
		return invalid("octree.min_node_size", c.Octree.MinNodeSize)
	case c.Octree.Slop < 0 || c.Octree.Slop > 1:
		return invalid("octree.slop", c.Octree.Slop)
	case c.Octree.MaxDepth < 1:
		return invalid("octree.max_depth", c.Octree.MaxDepth)
	case c.Octree.RegionHalfExtent <= 0:
		return invalid("octree.region_half_extent", c.Octree.RegionHalfExtent)
	case c.Movement.DampDistance < 0:
		return invalid("movement.damp_distance", c.Movement.DampDistance)
	case c.Movement.DampAngle < 0:
		return invalid("movement.damp_angle", c.Movement.DampAngle)
	case c.LOD.Hysteresis < 0 || c.LOD.Hysteresis >= 1:
		return invalid("lod.hysteresis", c.LOD.Hysteresis)
	case c.LOD.SlopRatio < 0:
		return invalid("lod.slop_ratio", c.LOD.SlopRatio)
	case c.Occlusion.MinSize < 0:
		return invalid("occlusion.min_size", c.Occlusion.MinSize)
	case c.Occlusion.Latency < 0:
		return invalid("occlusion.latency", c.Occlusion.Latency)
	case c.Occlusion.Retry < 1:
		return invalid("occlusion.retry", c.Occlusion.Retry)
	case c.Rebuild.Budget < 0:
		return invalid("rebuild.budget", c.Rebuild.Budget)
	case c.Rebuild.BatchSize < 1:
		return invalid("rebuild.batch_size", c.Rebuild.BatchSize)
	case c.Rebuild.MaxBatchVertices < 3:
		return invalid("rebuild.max_batch_vertices", c.Rebuild.MaxBatchVertices)
	case c.Rebuild.Workers < 0:
		return invalid("rebuild.workers", c.Rebuild.Workers)
	}
	for i := 1; i < len(c.LOD.Thresholds); i++ {
		if c.LOD.Thresholds[i] >= c.LOD.Thresholds[i-1] {
			return invalid("lod.thresholds", c.LOD.Thresholds)
		}
	}
	for _, k := range c.Partitions {
		if !k.Valid() {
			return invalid("partitions", k)
		}
	}
	return nil
}

// LODPolicy returns the LOD settings as a group policy.
func (c Config) LODPolicy() group.LODPolicy {
	return group.LODPolicy{
		Thresholds: append([]float32(nil), c.LOD.Thresholds...),
		Hysteresis: c.LOD.Hysteresis,
		SlopRatio:  c.LOD.SlopRatio,
	}
}

// TreeOptions returns the octree settings as tree options.
func (c Config) TreeOptions() []octree.TreeBuilderOption[common.DrawableID] {
	return []octree.TreeBuilderOption[common.DrawableID]{
		octree.WithCapacity[common.DrawableID](c.Octree.Capacity),
		octree.WithMinNodeSize[common.DrawableID](c.Octree.MinNodeSize),
		octree.WithSlop[common.DrawableID](c.Octree.Slop),
		octree.WithMaxDepth[common.DrawableID](c.Octree.MaxDepth),
	}
}
