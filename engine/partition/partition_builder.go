package partition

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/octree"
)

// PartitionBuilderOption is a function that configures a Partition.
type PartitionBuilderOption func(*partitionImpl)

// WithRegion sets the initial root region of the octree.
//
// Parameters:
//   - region: the root region; the tree grows past it when needed
//
// Returns:
//   - PartitionBuilderOption: a function that applies the option
func WithRegion(region common.Bounds) PartitionBuilderOption {
	return func(p *partitionImpl) {
		p.region = region
	}
}

// WithTreeOptions forwards options to the underlying octree.
func WithTreeOptions(options ...octree.TreeBuilderOption[common.DrawableID]) PartitionBuilderOption {
	return func(p *partitionImpl) {
		p.treeOptions = append(p.treeOptions, options...)
	}
}

// WithOcclusion sets the provider used for occlusion queries. Without one the partition never
// occludes anything.
func WithOcclusion(provider occlusion.Provider) PartitionBuilderOption {
	return func(p *partitionImpl) {
		p.occlusion = provider
	}
}

// WithOcclusionMinSize sets the smallest group edge length that gets an occlusion query.
func WithOcclusionMinSize(size float32) PartitionBuilderOption {
	return func(p *partitionImpl) {
		if size >= 0 {
			p.occlusionMinSize = size
		}
	}
}

// WithOcclusionRetry sets how many frames pass before a resolved group is queried again.
func WithOcclusionRetry(frames int) PartitionBuilderOption {
	return func(p *partitionImpl) {
		if frames > 0 {
			p.occlusionRetry = uint64(frames)
		}
	}
}

// WithBridge ties the partition to a bridge root. Groups it pushes land in the bridge's render map.
func WithBridge(root common.DrawableID) PartitionBuilderOption {
	return func(p *partitionImpl) {
		p.bridge = root
	}
}
