package entity

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/google/uuid"
)

// NotificationKind is the kind of entity property change.
type NotificationKind int

const (
	NotifyCreated NotificationKind = iota
	NotifyRemoved
	NotifyTransform
	NotifyTexture
	NotifyMaterial
	NotifyColor
	NotifyGeometry
	NotifyShadow
	NotifyRigged
	NotifyHidden
	NotifyShown
	NotifyActivity
)

var notificationNames = [...]string{
	NotifyCreated:   "created",
	NotifyRemoved:   "removed",
	NotifyTransform: "transform",
	NotifyTexture:   "texture",
	NotifyMaterial:  "material",
	NotifyColor:     "color",
	NotifyGeometry:  "geometry",
	NotifyShadow:    "shadow",
	NotifyRigged:    "rigged",
	NotifyHidden:    "hidden",
	NotifyShown:     "shown",
	NotifyActivity:  "activity",
}

func (k NotificationKind) String() string {
	if k >= 0 && int(k) < len(notificationNames) {
		return notificationNames[k]
	}
	return fmt.Sprintf("NotificationKind(%d)", int(k))
}

// RebuildFlags returns the drawable rebuild reasons a change of this kind requests. Transforms go
// through the moved list instead and request nothing here.
func (k NotificationKind) RebuildFlags() drawable.RebuildFlags {
	switch k {
	case NotifyTexture, NotifyMaterial:
		// new batch keys regroup the faces
		return drawable.RebuildVolume | drawable.RebuildTCoord
	case NotifyColor:
		return drawable.RebuildColor
	case NotifyGeometry:
		return drawable.RebuildAll
	case NotifyShadow:
		return drawable.RebuildShadow
	case NotifyRigged:
		return drawable.RebuildRigged | drawable.RebuildVolume
	}
	return 0
}

// Notification is one property change of an entity, queued until the next frame applies it.
type Notification struct {
	Entity uuid.UUID
	Kind   NotificationKind

	// Pose is the new local pose of a transform change.
	Pose drawable.Pose
	// Undamped bypasses move damping, as for a teleport.
	Undamped bool
	// Model is the new mesh data of texture, material, color or geometry changes.
	Model model.Model
	// Active is the new activity of an activity change.
	Active bool

	// Source is set on created notifications.
	Source Entity
}

// Sink receives entity notifications.
type Sink interface {
	Notify(n Notification)
}
