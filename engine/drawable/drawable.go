// Package drawable implements the renderable proxies of scene entities and their lifecycle:
// transform updates, rebuild bookkeeping, the moved list and deferred destruction.
package drawable

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// State is the lifecycle state of a Drawable.
type State int

const (
	StateNew State = iota
	StateBuilt
	StateActive
	StateStatic
	StateUnloaded
	StateDead
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateBuilt:
		return "built"
	case StateActive:
		return "active"
	case StateStatic:
		return "static"
	case StateUnloaded:
		return "unloaded"
	case StateDead:
		return "dead"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// RebuildFlags is the set of pending rebuild reasons.
type RebuildFlags uint32

const (
	RebuildVolume RebuildFlags = 1 << iota
	RebuildTCoord
	RebuildColor
	RebuildPosition
	RebuildShadow
	RebuildRigged

	RebuildGeometry = RebuildPosition | RebuildTCoord | RebuildColor
	RebuildAll      = RebuildGeometry | RebuildVolume
)

// Pose is a local transform.
type Pose struct {
	Position mgl32.Vec3
	Rotation mgl32.Quat
	Scale    mgl32.Vec3
}

// IdentityPose returns the pose with no translation, no rotation and unit scale.
func IdentityPose() Pose {
	return Pose{Rotation: mgl32.QuatIdent(), Scale: mgl32.Vec3{1, 1, 1}}
}

// Matrix returns translation * rotation * scale.
func (p Pose) Matrix() mgl32.Mat4 {
	scale := p.Scale
	if scale == (mgl32.Vec3{}) {
		scale = mgl32.Vec3{1, 1, 1}
	}
	rot := p.Rotation
	if rot.Len() == 0 {
		rot = mgl32.QuatIdent()
	}
	return mgl32.Translate3D(p.Position[0], p.Position[1], p.Position[2]).
		Mul4(rot.Normalize().Mat4()).
		Mul4(mgl32.Scale3D(scale[0], scale[1], scale[2]))
}

// Drawable is the renderable proxy for one scene entity. A Drawable has reference identity: it is
// only ever handled through a pointer owned by its Store, and copying the value is a programming
// error detected on mutation.
type Drawable struct {
	self *Drawable

	id     common.DrawableID
	entity uuid.UUID
	kind   common.PartitionKind
	state  State

	model model.Model
	lod   int

	pose      Pose
	committed Pose
	parent    common.DrawableID
	bridge    common.DrawableID
	isBridge  bool

	world   mgl32.Mat4 // region space
	spatial mgl32.Mat4 // partition space; differs from world inside a bridge
	bounds  common.Bounds

	group      common.GroupID
	rebuild    RebuildFlags
	onMove     bool
	undamped   bool
	autoActive bool
	resume     State // activity restored by Reload
	distance   float32
}

func (d *Drawable) copyCheck() {
	if d.self != d {
		panic("drawable: illegal copy of Drawable")
	}
}

// ID returns the drawable's handle.
func (d *Drawable) ID() common.DrawableID { return d.id }

// Entity returns the id of the source entity.
func (d *Drawable) Entity() uuid.UUID { return d.entity }

// Kind returns the partition kind the drawable is indexed in.
func (d *Drawable) Kind() common.PartitionKind { return d.kind }

// State returns the lifecycle state.
func (d *Drawable) State() State { return d.state }

// Model returns the mesh data, or nil once dead.
func (d *Drawable) Model() model.Model { return d.model }

// Pose returns the local pose.
func (d *Drawable) Pose() Pose { return d.pose }

// Parent returns the parent drawable, or NilDrawable.
func (d *Drawable) Parent() common.DrawableID { return d.parent }

// Bridge returns the root drawable of the bridge this drawable lives in, or NilDrawable.
func (d *Drawable) Bridge() common.DrawableID { return d.bridge }

// IsBridge reports whether this drawable is the root of a bridge.
func (d *Drawable) IsBridge() bool { return d.isBridge }

// World returns the region-space render transform.
func (d *Drawable) World() mgl32.Mat4 { return d.world }

// Spatial returns the transform into the space of the partition the drawable is indexed in.
func (d *Drawable) Spatial() mgl32.Mat4 { return d.spatial }

// Bounds returns the bounds in partition space as of the last committed move.
func (d *Drawable) Bounds() common.Bounds { return d.bounds }

// Group returns the spatial group the drawable is assigned to.
func (d *Drawable) Group() common.GroupID { return d.group }

// Rebuild returns the pending rebuild reasons without consuming them.
func (d *Drawable) Rebuild() RebuildFlags { return d.rebuild }

// OnMoveList reports whether the drawable is queued on the moved list.
func (d *Drawable) OnMoveList() bool { return d.onMove }

// Distance returns the camera distance recorded by the last cull.
func (d *Drawable) Distance() float32 { return d.distance }

// LOD returns the detail level the drawable's faces are taken from.
func (d *Drawable) LOD() int { return d.lod }

// Alive reports whether the drawable can still be rendered.
func (d *Drawable) Alive() bool { return d.state != StateDead }

// Faces returns the faces at the current level of detail.
//
// Returns:
//   - []model.Face: the faces, which must not be modified; nil once dead
func (d *Drawable) Faces() []model.Face {
	if d.model == nil {
		return nil
	}
	return d.model.Faces(d.lod)
}

// Face returns face i at the current level of detail. An out-of-range index is logged and yields nil.
//
// Parameters:
//   - i: the face index
//
// Returns:
//   - *model.Face: the face or nil
func (d *Drawable) Face(i int) *model.Face {
	faces := d.Faces()
	if i < 0 || i >= len(faces) {
		logs.Warn(errors.New("face index out of range").
			WithType(common.ErrTypeInvalidIndex).
			WithTag("drawable", uint64(d.id)).
			WithTag("face", i).
			WithTag("faces", len(faces)))
		return nil
	}
	return &faces[i]
}

// HasAlpha reports whether any current face is blended.
func (d *Drawable) HasAlpha() bool {
	for i, faces := 0, d.Faces(); i < len(faces); i++ {
		if faces[i].Blended() {
			return true
		}
	}
	return false
}

// SetGroup records the spatial group the drawable now belongs to.
func (d *Drawable) SetGroup(id common.GroupID) {
	d.copyCheck()
	d.group = id
}

// SetLOD selects the detail level faces are taken from. A change requests a geometry rebuild.
func (d *Drawable) SetLOD(lod int) {
	d.copyCheck()
	if lod == d.lod {
		return
	}
	d.lod = lod
	d.rebuild |= RebuildGeometry
}

// SetDistance records the camera distance computed by a cull.
func (d *Drawable) SetDistance(distance float32) {
	d.copyCheck()
	d.distance = distance
}

// SetModel swaps the mesh data and requests a full rebuild.
func (d *Drawable) SetModel(m model.Model) {
	d.copyCheck()
	if d.state == StateDead {
		return
	}
	d.model = m
	d.rebuild |= RebuildAll
}

// Restyle swaps the mesh data for a model with the same geometry but different textures, materials
// or colors. Only the given reasons are requested.
func (d *Drawable) Restyle(m model.Model, flags RebuildFlags) {
	d.copyCheck()
	if d.state == StateDead {
		return
	}
	d.model = m
	d.rebuild |= flags
}

// MarkRebuild ORs reasons into the pending set. Repeated calls within a frame accumulate rather
// than schedule separate rebuilds.
//
// Parameters:
//   - flags: the rebuild reasons to add
func (d *Drawable) MarkRebuild(flags RebuildFlags) {
	d.copyCheck()
	if d.state == StateDead {
		return
	}
	d.rebuild |= flags
}

// ConsumeRebuild returns the pending reasons and clears them.
func (d *Drawable) ConsumeRebuild() RebuildFlags {
	d.copyCheck()
	flags := d.rebuild
	d.rebuild = 0
	return flags
}

// SetPose replaces the local pose. The new transform takes effect on the next UpdateXform.
func (d *Drawable) SetPose(p Pose) {
	d.copyCheck()
	d.pose = p
}

// MakeActive marks the drawable as expected to move every frame.
func (d *Drawable) MakeActive() {
	d.copyCheck()
	d.autoActive = false
	switch d.state {
	case StateBuilt, StateStatic, StateActive:
		d.state = StateActive
	case StateUnloaded:
		d.resume = StateActive
	}
}

// MakeStatic marks the drawable as only revalidated on explicit change.
func (d *Drawable) MakeStatic() {
	d.copyCheck()
	d.autoActive = false
	switch d.state {
	case StateBuilt, StateActive, StateStatic:
		d.state = StateStatic
	case StateUnloaded:
		d.resume = StateStatic
	}
}

// Unload drops GPU-facing state while the drawable stays indexed.
func (d *Drawable) Unload() {
	d.copyCheck()
	if d.state == StateDead || d.state == StateUnloaded {
		return
	}
	d.resume = d.state
	d.state = StateUnloaded
}

// Reload brings an unloaded drawable back with a full rebuild pending. A drawable that was active
// when it was unloaded is active again; anything else comes back static.
//
// Returns:
//   - bool: false if the drawable was not unloaded
func (d *Drawable) Reload() bool {
	d.copyCheck()
	if d.state != StateUnloaded {
		return false
	}
	d.state = StateStatic
	if d.resume == StateActive {
		d.state = StateActive
	}
	d.rebuild |= RebuildAll
	return true
}

func (d *Drawable) localBounds() common.Bounds {
	if d.model == nil {
		return common.Bounds{}
	}
	return d.model.Bounds()
}

// movedBeyond reports whether the pose drifted from the committed pose by more than the damping
// thresholds.
func (d *Drawable) movedBeyond(distance, angle float32) bool {
	if d.undamped {
		return true
	}
	if d.pose.Position.Sub(d.committed.Position).Len() > distance {
		return true
	}
	if !common.NearlyEqualVec3(d.pose.Scale, d.committed.Scale, 1e-5) {
		return true
	}
	cos := d.pose.Rotation.Dot(d.committed.Rotation)
	if cos < 0 {
		cos = -cos
	}
	// angle between unit quaternions is 2*acos(|dot|); compare without the trig
	return cos < cosHalf(angle)
}

func cosHalf(angle float32) float32 {
	return math32.Cos(angle / 2)
}
