package region

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/occlusion"
	"github.com/Carmen-Shannon/oxy-cull/engine/partition"
	"github.com/google/uuid"
)

// RegionBuilderOption is a function that configures a Region.
type RegionBuilderOption func(*regionImpl)

// WithID sets the region identifier instead of a random one.
//
// Parameters:
//   - id: the region id
//
// Returns:
//   - RegionBuilderOption: a function that applies the option
func WithID(id uuid.UUID) RegionBuilderOption {
	return func(r *regionImpl) {
		r.id = id
	}
}

// WithKinds limits the region to the given partition kinds. They are culled in priority order
// whatever order they are passed in.
func WithKinds(kinds ...common.PartitionKind) RegionBuilderOption {
	return func(r *regionImpl) {
		var set [common.NumPartitionKinds]bool
		for _, k := range kinds {
			if k.Valid() {
				set[k] = true
			}
		}
		r.kinds = r.kinds[:0]
		for _, k := range common.PartitionKindsByPriority() {
			if set[k] {
				r.kinds = append(r.kinds, k)
			}
		}
	}
}

// WithPartitionOptions applies options to every world partition of the region.
func WithPartitionOptions(options ...partition.PartitionBuilderOption) RegionBuilderOption {
	return func(r *regionImpl) {
		r.partitionOptions = append(r.partitionOptions, options...)
	}
}

// WithBridgeOptions applies options to the content partitions of every bridge.
func WithBridgeOptions(options ...partition.PartitionBuilderOption) RegionBuilderOption {
	return func(r *regionImpl) {
		r.bridgeOptions = append(r.bridgeOptions, options...)
	}
}

// WithOccluders gives the region a CPU occluder set. It is shifted with the region and, unless a
// provider is set, answers the region's occlusion queries.
//
// Parameters:
//   - o: the occluder set
//
// Returns:
//   - RegionBuilderOption: a function that applies the option
func WithOccluders(o *occlusion.Occluders) RegionBuilderOption {
	return func(r *regionImpl) {
		r.occluders = o
	}
}

// WithOcclusionProvider sets the provider answering occlusion queries of the region's world
// partitions.
func WithOcclusionProvider(p occlusion.Provider) RegionBuilderOption {
	return func(r *regionImpl) {
		r.occlusionProvider = p
	}
}
