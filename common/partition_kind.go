package common

import (
	"fmt"
	"strings"
)

// PartitionKind identifies the category of scene content a spatial partition indexes.
type PartitionKind int

const (
	PartitionVolume PartitionKind = iota
	PartitionTerrain
	PartitionTree
	PartitionGrass
	PartitionWater
	PartitionVoidWater
	PartitionParticle
	PartitionHUDParticle
	PartitionBridge
	PartitionAttachment
	PartitionHUD

	// NumPartitionKinds is the number of partition kinds.
	NumPartitionKinds
)

// GeometryKind selects the geometry manager variant a partition builds its draw descriptors with.
type GeometryKind int

const (
	// GeometryNone partitions draw their drawables individually.
	GeometryNone GeometryKind = iota
	// GeometryVolume batches faces by texture and material.
	GeometryVolume
	// GeometryTerrain emits one run per terrain texture.
	GeometryTerrain
	// GeometryParticle sorts faces back to front.
	GeometryParticle
)

type partitionTraits struct {
	name          string
	priority      int
	renderByGroup bool
	shifts        bool
	infiniteFar   bool
	geometry      GeometryKind
}

// priority orders the merge of per-partition cull output: terrain and opaque content first, then
// blended content, then particles, then HUD.
var partitionTable = [NumPartitionKinds]partitionTraits{
	PartitionTerrain:     {name: "terrain", priority: 0, renderByGroup: true, shifts: true, infiniteFar: true, geometry: GeometryTerrain},
	PartitionVolume:      {name: "volume", priority: 1, renderByGroup: true, shifts: true, geometry: GeometryVolume},
	PartitionTree:        {name: "tree", priority: 2, shifts: true},
	PartitionGrass:       {name: "grass", priority: 3, renderByGroup: true, shifts: true, geometry: GeometryParticle},
	PartitionBridge:      {name: "bridge", priority: 4, shifts: true},
	PartitionAttachment:  {name: "attachment", priority: 5, renderByGroup: true, shifts: true, geometry: GeometryVolume},
	PartitionWater:       {name: "water", priority: 6, shifts: true, infiniteFar: true},
	PartitionVoidWater:   {name: "void_water", priority: 7, shifts: true, infiniteFar: true},
	PartitionParticle:    {name: "particle", priority: 8, renderByGroup: true, shifts: true, geometry: GeometryParticle},
	PartitionHUDParticle: {name: "hud_particle", priority: 9, renderByGroup: true, geometry: GeometryParticle},
	PartitionHUD:         {name: "hud", priority: 10, renderByGroup: true, geometry: GeometryVolume},
}

// String returns the kind name.
func (k PartitionKind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("PartitionKind(%d)", int(k))
	}
	return partitionTable[k].name
}

// Valid reports whether k is a known kind.
func (k PartitionKind) Valid() bool { return k >= 0 && k < NumPartitionKinds }

// Priority returns the merge order of the kind's cull output; lower goes first.
func (k PartitionKind) Priority() int { return partitionTable[k].priority }

// RenderByGroup reports whether visible content is batched per spatial group rather than listed
// per drawable.
func (k PartitionKind) RenderByGroup() bool { return partitionTable[k].renderByGroup }

// Shifts reports whether the kind follows region origin shifts. HUD content is screen-anchored.
func (k PartitionKind) Shifts() bool { return partitionTable[k].shifts }

// InfiniteFar reports whether culling ignores the far clip plane.
func (k PartitionKind) InfiniteFar() bool { return partitionTable[k].infiniteFar }

// Geometry returns the geometry manager variant.
func (k PartitionKind) Geometry() GeometryKind { return partitionTable[k].geometry }

// PartitionKindsByPriority returns every kind in cull merge order.
func PartitionKindsByPriority() []PartitionKind {
	out := make([]PartitionKind, NumPartitionKinds)
	for k := PartitionKind(0); k < NumPartitionKinds; k++ {
		out[partitionTable[k].priority] = k
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (k PartitionKind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("invalid partition kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *PartitionKind) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, t := range partitionTable {
		if t.name == name {
			*k = PartitionKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown partition kind %q", name)
}
