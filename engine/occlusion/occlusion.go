// Package occlusion provides asynchronous visibility queries for spatial groups. Queries are issued
// during the cull pass and polled on later frames; nothing here blocks waiting for an answer.
package occlusion

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Provider issues and resolves occlusion queries. A provider is polled once per frame by the cull
// pass; a query that has not resolved leaves its group pending.
type Provider interface {
	// Issue starts a query for a group's bounds as seen from eye. Issuing again for a group with an
	// outstanding query replaces it.
	//
	// Parameters:
	//   - id: the group the query belongs to
	//   - bounds: the bounds to test, in the same space as eye
	//   - eye: the camera position
	//   - frame: the current frame number
	Issue(id common.GroupID, bounds common.Bounds, eye mgl32.Vec3, frame uint64)

	// Poll checks a query without waiting.
	//
	// Parameters:
	//   - id: the group to check
	//   - frame: the current frame number
	//
	// Returns:
	//   - visible: the answer, meaningful only when ready
	//   - ready: true once the query resolved; the query is consumed
	Poll(id common.GroupID, frame uint64) (visible, ready bool)

	// Forget drops any outstanding query for a group.
	Forget(id common.GroupID)

	// Pending returns the number of outstanding queries.
	Pending() int
}

// Tester answers whether a box is hidden from an eye position.
type Tester interface {
	Occluded(bounds common.Bounds, eye mgl32.Vec3) bool
}
