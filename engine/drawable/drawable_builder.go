package drawable

import "github.com/Carmen-Shannon/oxy-cull/common"

// DrawableBuilderOption is a function that configures a Drawable created by Store.New.
type DrawableBuilderOption func(*Drawable)

// WithPose sets the initial local pose.
//
// Parameters:
//   - pose: the local pose
//
// Returns:
//   - DrawableBuilderOption: a function that applies the pose option
func WithPose(pose Pose) DrawableBuilderOption {
	return func(d *Drawable) {
		d.pose = pose
	}
}

// WithParent attaches the drawable to a parent whose transform it inherits.
func WithParent(parent common.DrawableID) DrawableBuilderOption {
	return func(d *Drawable) {
		d.parent = parent
	}
}

// WithBridge places the drawable inside the bridge rooted at root. Its bounds are kept in the
// bridge's local space.
func WithBridge(root common.DrawableID) DrawableBuilderOption {
	return func(d *Drawable) {
		d.bridge = root
	}
}

// AsBridge marks the drawable as the root of a bridge.
func AsBridge() DrawableBuilderOption {
	return func(d *Drawable) {
		d.isBridge = true
	}
}

// WithActive creates the drawable as active instead of static once built.
func WithActive() DrawableBuilderOption {
	return func(d *Drawable) {
		d.state = StateActive
	}
}

// StoreBuilderOption is a function that configures a Store.
type StoreBuilderOption func(*Store)

// WithDamping sets the thresholds below which damped moves are ignored.
//
// Parameters:
//   - distance: translation threshold
//   - angle: rotation threshold in radians
//
// Returns:
//   - StoreBuilderOption: a function that applies the damping option
func WithDamping(distance, angle float32) StoreBuilderOption {
	return func(s *Store) {
		if distance >= 0 {
			s.dampDistance = distance
		}
		if angle >= 0 {
			s.dampAngle = angle
		}
	}
}

// WithDeathHook registers fn to run when a drawable is marked dead, before its state is cleared.
// The scene uses it to detach the drawable from its partition and group.
func WithDeathHook(fn func(d *Drawable)) StoreBuilderOption {
	return func(s *Store) {
		s.onDeath = fn
	}
}
