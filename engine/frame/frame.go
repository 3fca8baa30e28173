// Package frame defines the explicit per-frame context handed to the cull and rebuild passes in
// place of process-wide pipeline state.
package frame

import (
	"strings"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
)

// DebugFlags toggle diagnostic behavior for one frame.
type DebugFlags uint32

const (
	// DebugFreezeCulling reuses the previous frame's view for culling.
	DebugFreezeCulling DebugFlags = 1 << iota
	// DebugValidate checks partition invariants after the moved list is flushed.
	DebugValidate
	// DebugNoRebuild skips the geometry rebuild step.
	DebugNoRebuild
)

var debugNames = []string{"freeze_culling", "validate", "no_rebuild"}

func (f DebugFlags) String() string {
	var parts []string
	for i, name := range debugNames {
		if f&(1<<i) != 0 {
			parts = append(parts, name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Has reports whether every flag in o is set.
func (f DebugFlags) Has(o DebugFlags) bool { return f&o == o }

// Context is the state of one frame. Frame numbers start at 1 and increase by one per frame.
type Context struct {
	Number    uint64
	View      camera.View
	Occlusion bool
	Debug     DebugFlags

	// Budget caps the time spent rebuilding group geometry. 0 means unlimited.
	Budget time.Duration
	// Started is when the frame began.
	Started time.Time
}

// New creates the context of frame n.
//
// Parameters:
//   - n: the frame number
//   - view: the camera snapshot to cull against
//
// Returns:
//   - *Context: the frame context
func New(n uint64, view camera.View, options ...ContextBuilderOption) *Context {
	c := &Context{Number: n, View: view, Started: time.Now()}
	for _, option := range options {
		option(c)
	}
	return c
}
