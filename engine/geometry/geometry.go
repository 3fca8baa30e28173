// Package geometry turns the faces of a spatial group's occupants into packed GPU buffers and
// draw descriptors. One Manager exists per partition; its variant is chosen by the partition's
// geometry kind.
package geometry

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
)

const (
	// DefaultMaxBatchVertices is the largest vertex range a single draw descriptor may span.
	DefaultMaxBatchVertices = 65535
	// DefaultBatchSize is the number of groups packed in parallel before the budget is rechecked.
	DefaultBatchSize = 8
)

// DrawableSource resolves drawable handles.
type DrawableSource interface {
	Get(id common.DrawableID) (*drawable.Drawable, bool)
}

// Stats summarizes one RebuildGroups call.
type Stats struct {
	Rebuilt  int           `json:"rebuilt"`
	Deferred int           `json:"deferred"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Rebuilt += o.Rebuilt
	s.Deferred += o.Deferred
	s.Failed += o.Failed
	s.Skipped += o.Skipped
	s.Elapsed += o.Elapsed
}

// Manager builds draw descriptors for dirty groups.
type Manager interface {
	// Kind returns the variant of this manager.
	//
	// Returns:
	//   - common.GeometryKind: the variant
	Kind() common.GeometryKind

	// GetGeometry packs a group's faces on the CPU without touching its buffers or draw map.
	//
	// Parameters:
	//   - g: the group to pack
	//
	// Returns:
	//   - *Packed: the packed vertices, indices and runs
	//   - error: an empty_group error if the group has no occupants
	GetGeometry(g *group.Group) (*Packed, error)

	// RebuildGeom repacks the group, (re)allocates its buffers when they are too small and publishes
	// fresh draw descriptors. On failure the group keeps its dirty bits.
	//
	// Parameters:
	//   - g: the group to rebuild
	//
	// Returns:
	//   - error: empty_group or alloc_failed errors
	RebuildGeom(g *group.Group) error

	// RebuildMesh refreshes vertex data in place when the group's batch layout is unchanged, falling
	// back to RebuildGeom otherwise.
	//
	// Parameters:
	//   - g: the group to refresh
	//
	// Returns:
	//   - error: as RebuildGeom
	RebuildMesh(g *group.Group) error

	// RebuildGroups rebuilds dirty groups, most urgent first, until the time budget is spent.
	// Groups left over stay dirty for the next frame.
	//
	// Parameters:
	//   - ctx: cancels the remaining work
	//   - groups: candidate groups; clean, dead and empty groups are skipped
	//   - budget: wall-clock budget; 0 or less means unlimited
	//
	// Returns:
	//   - Stats: what was rebuilt, deferred and failed
	RebuildGroups(ctx context.Context, groups []*group.Group, budget time.Duration) Stats
}

type manager struct {
	kind        common.GeometryKind
	drawables   DrawableSource
	alloc       gpubuf.Allocator
	maxVertices int
	batchSize   int
	workers     int
	pool        worker.DynamicWorkerPool
	now         func() time.Time
}

var _ Manager = &manager{}

// NewManager creates a geometry manager of the given variant.
//
// Parameters:
//   - kind: the variant
//   - drawables: resolves group occupants
//   - alloc: allocates group buffers
//   - options: functional options to configure the manager
//
// Returns:
//   - Manager: the manager
func NewManager(kind common.GeometryKind, drawables DrawableSource, alloc gpubuf.Allocator, options ...ManagerBuilderOption) Manager {
	if drawables == nil {
		panic("geometry: drawable source is required")
	}
	if alloc == nil {
		panic("geometry: allocator is required")
	}
	m := &manager{
		kind:        kind,
		drawables:   drawables,
		alloc:       alloc,
		maxVertices: DefaultMaxBatchVertices,
		batchSize:   DefaultBatchSize,
		now:         time.Now,
	}
	for _, option := range options {
		option(m)
	}
	// packing only reads the drawable graph; buffers are written serially
	if m.workers > 1 && m.pool == nil {
		m.pool = worker.NewDynamicWorkerPool(m.workers, 256, 1*time.Second)
	}
	return m
}

func (m *manager) Kind() common.GeometryKind {
	return m.kind
}
