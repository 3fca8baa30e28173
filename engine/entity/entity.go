// Package entity holds the scene entities the engine draws and the property-change notifications
// they emit.
package entity

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

type entity struct {
	mu *sync.Mutex

	id      uuid.UUID
	enabled atomic.Bool
	kind    common.PartitionKind
	mdl     model.Model

	pose   drawable.Pose
	parent uuid.UUID
	bridge bool
	active bool

	sink Sink
}

// Entity defines the interface for a scene object that is rendered through a drawable. Every
// mutation is reported to the attached Sink as a Notification; the drawable catches up when the
// notification is applied at the start of a frame.
type Entity interface {
	// ID returns the entity's unique identifier.
	//
	// Returns:
	//   - uuid.UUID: the entity ID
	ID() uuid.UUID

	// Kind returns the partition kind the entity's drawable is indexed in.
	//
	// Returns:
	//   - common.PartitionKind: the kind
	Kind() common.PartitionKind

	// Enabled returns whether this entity is rendered.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// Model returns the mesh data of the entity, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// Pose returns the local pose.
	//
	// Returns:
	//   - drawable.Pose: position, rotation and scale relative to the parent
	Pose() drawable.Pose

	// Position returns the local position.
	Position() mgl32.Vec3

	// Rotation returns the local rotation.
	Rotation() mgl32.Quat

	// Scale returns the local scale.
	Scale() mgl32.Vec3

	// Parent returns the parent entity ID, or uuid.Nil for a root.
	Parent() uuid.UUID

	// IsBridge reports whether the entity carries attachments that move with it.
	IsBridge() bool

	// Active reports whether the entity is expected to move every frame.
	Active() bool

	// Attach connects the entity to a sink and announces it with a created notification.
	//
	// Parameters:
	//   - sink: the notification receiver, typically a scene
	Attach(sink Sink)

	// Detach announces the removal of the entity and disconnects it from its sink.
	Detach()

	// SetEnabled shows or hides the entity.
	//
	// Parameters:
	//   - enabled: true to render the entity
	SetEnabled(enabled bool)

	// SetActive sets whether the entity is expected to move every frame.
	SetActive(active bool)

	// SetPosition moves the entity.
	//
	// Parameters:
	//   - x, y, z: new position components
	SetPosition(x, y, z float32)

	// SetRotation rotates the entity.
	//
	// Parameters:
	//   - q: the new rotation
	SetRotation(q mgl32.Quat)

	// SetScale scales the entity.
	//
	// Parameters:
	//   - sx, sy, sz: new scale factors
	SetScale(sx, sy, sz float32)

	// Teleport replaces the pose without move damping.
	Teleport(pose drawable.Pose)

	// SetModel replaces the mesh data with new geometry.
	//
	// Parameters:
	//   - m: the new model
	SetModel(m model.Model)

	// Restyle replaces the mesh data with a model of the same geometry whose textures, materials
	// or colors changed.
	//
	// Parameters:
	//   - m: the restyled model
	//   - kind: NotifyTexture, NotifyMaterial or NotifyColor
	Restyle(m model.Model, kind NotificationKind)

	// Invalidate requests a rebuild without changing data, for shadow or rigging changes.
	//
	// Parameters:
	//   - kind: NotifyShadow or NotifyRigged
	Invalidate(kind NotificationKind)
}

var _ Entity = &entity{}

// NewEntity creates a new Entity configured with the given options.
//
// Parameters:
//   - kind: the partition kind of the entity's drawable
//   - options: functional options to configure the entity
//
// Returns:
//   - Entity: the newly created entity
func NewEntity(kind common.PartitionKind, options ...EntityBuilderOption) Entity {
	e := &entity{
		mu:   &sync.Mutex{},
		id:   uuid.New(),
		kind: kind,
		pose: drawable.IdentityPose(),
	}
	e.enabled.Store(true)
	for _, option := range options {
		option(e)
	}
	return e
}

func (e *entity) ID() uuid.UUID { return e.id }

func (e *entity) Kind() common.PartitionKind { return e.kind }

func (e *entity) Enabled() bool { return e.enabled.Load() }

func (e *entity) Model() model.Model {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mdl
}

func (e *entity) Pose() drawable.Pose {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pose
}

func (e *entity) Position() mgl32.Vec3 { return e.Pose().Position }

func (e *entity) Rotation() mgl32.Quat { return e.Pose().Rotation }

func (e *entity) Scale() mgl32.Vec3 { return e.Pose().Scale }

func (e *entity) Parent() uuid.UUID { return e.parent }

func (e *entity) IsBridge() bool { return e.bridge }

func (e *entity) Active() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *entity) Attach(sink Sink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
	if sink != nil {
		sink.Notify(Notification{Entity: e.id, Kind: NotifyCreated, Source: e})
	}
}

func (e *entity) Detach() {
	e.mu.Lock()
	sink := e.sink
	e.sink = nil
	e.mu.Unlock()
	if sink != nil {
		sink.Notify(Notification{Entity: e.id, Kind: NotifyRemoved})
	}
}

func (e *entity) SetEnabled(enabled bool) {
	if e.enabled.Swap(enabled) == enabled {
		return
	}
	kind := NotifyHidden
	if enabled {
		kind = NotifyShown
	}
	e.emit(Notification{Kind: kind})
}

func (e *entity) SetActive(active bool) {
	e.mu.Lock()
	e.active = active
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyActivity, Active: active})
}

func (e *entity) SetPosition(x, y, z float32) {
	e.mu.Lock()
	e.pose.Position = mgl32.Vec3{x, y, z}
	pose := e.pose
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyTransform, Pose: pose})
}

func (e *entity) SetRotation(q mgl32.Quat) {
	e.mu.Lock()
	e.pose.Rotation = q
	pose := e.pose
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyTransform, Pose: pose})
}

func (e *entity) SetScale(sx, sy, sz float32) {
	e.mu.Lock()
	e.pose.Scale = mgl32.Vec3{sx, sy, sz}
	pose := e.pose
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyTransform, Pose: pose})
}

func (e *entity) Teleport(pose drawable.Pose) {
	e.mu.Lock()
	e.pose = pose
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyTransform, Pose: pose, Undamped: true})
}

func (e *entity) SetModel(m model.Model) {
	e.mu.Lock()
	e.mdl = m
	e.mu.Unlock()
	e.emit(Notification{Kind: NotifyGeometry, Model: m})
}

func (e *entity) Restyle(m model.Model, kind NotificationKind) {
	switch kind {
	case NotifyTexture, NotifyMaterial, NotifyColor:
	default:
		kind = NotifyTexture
	}
	e.mu.Lock()
	e.mdl = m
	e.mu.Unlock()
	e.emit(Notification{Kind: kind, Model: m})
}

func (e *entity) Invalidate(kind NotificationKind) {
	if kind != NotifyShadow && kind != NotifyRigged {
		return
	}
	e.emit(Notification{Kind: kind})
}

// emit stamps n with the entity id and forwards it to the sink, if any.
func (e *entity) emit(n Notification) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return
	}
	n.Entity = e.id
	sink.Notify(n)
}
