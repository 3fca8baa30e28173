package entity

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// EntityBuilderOption is a functional option for configuring an Entity during construction.
type EntityBuilderOption func(*entity)

// WithID sets the ID of the Entity.
//
// Parameters:
//   - id: unique identifier for the Entity
//
// Returns:
//   - EntityBuilderOption: functional option to set the ID
func WithID(id uuid.UUID) EntityBuilderOption {
	return func(e *entity) {
		e.id = id
	}
}

// WithEnabled sets whether the Entity is rendered once attached.
//
// Parameters:
//   - enabled: true to render the entity, false to keep it hidden
//
// Returns:
//   - EntityBuilderOption: functional option to set the Enabled state
func WithEnabled(enabled bool) EntityBuilderOption {
	return func(e *entity) {
		e.enabled.Store(enabled)
	}
}

// WithModel sets the Model for this Entity.
//
// Parameters:
//   - m: the Model to associate
//
// Returns:
//   - EntityBuilderOption: functional option to set the Model
func WithModel(m model.Model) EntityBuilderOption {
	return func(e *entity) {
		e.mdl = m
	}
}

// WithPosition sets the initial position of the Entity.
//
// Parameters:
//   - x: the x position
//   - y: the y position
//   - z: the z position
//
// Returns:
//   - EntityBuilderOption: functional option to set the initial position
func WithPosition(x, y, z float32) EntityBuilderOption {
	return func(e *entity) {
		e.pose.Position = mgl32.Vec3{x, y, z}
	}
}

// WithScale sets the initial scale of the Entity.
//
// Parameters:
//   - sx: the x scale factor
//   - sy: the y scale factor
//   - sz: the z scale factor
//
// Returns:
//   - EntityBuilderOption: functional option to set the initial scale
func WithScale(sx, sy, sz float32) EntityBuilderOption {
	return func(e *entity) {
		e.pose.Scale = mgl32.Vec3{sx, sy, sz}
	}
}

// WithRotation sets the initial rotation of the Entity from Euler angles in radians, applied
// in X, Y, Z order.
//
// Parameters:
//   - rx: the x rotation angle
//   - ry: the y rotation angle
//   - rz: the z rotation angle
//
// Returns:
//   - EntityBuilderOption: functional option to set the initial rotation
func WithRotation(rx, ry, rz float32) EntityBuilderOption {
	return func(e *entity) {
		e.pose.Rotation = mgl32.AnglesToQuat(rx, ry, rz, mgl32.XYZ)
	}
}

// WithParent attaches the Entity to a parent whose transform it inherits.
func WithParent(parent uuid.UUID) EntityBuilderOption {
	return func(e *entity) {
		e.parent = parent
	}
}

// AsBridge marks the Entity as carrying attachments that move with it.
func AsBridge() EntityBuilderOption {
	return func(e *entity) {
		e.bridge = true
	}
}

// WithActive marks the Entity as expected to move every frame.
func WithActive(active bool) EntityBuilderOption {
	return func(e *entity) {
		e.active = active
	}
}
