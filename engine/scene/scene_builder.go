package scene

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
)

// SceneBuilderOption is a functional option for configuring a Scene.
// Use the With* functions to create options.
type SceneBuilderOption func(s *scene)

// WithActive sets whether the engine runs frames for the scene. Scenes start active.
//
// Parameters:
//   - active: whether the scene is active
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithActive(active bool) SceneBuilderOption {
	return func(s *scene) {
		s.active = active
	}
}

// WithConfig replaces the default configuration. The config is expected to be validated.
//
// Parameters:
//   - conf: the engine configuration
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithConfig(conf config.Config) SceneBuilderOption {
	return func(s *scene) {
		s.conf = conf
	}
}

// WithComputeWorkers sets the number of worker goroutines packing group geometry in parallel.
// Overrides the config's rebuild workers.
//
// Parameters:
//   - n: the number of compute workers (minimum 1)
//
// Returns:
//   - SceneBuilderOption: option function to apply
func WithComputeWorkers(n int) SceneBuilderOption {
	return func(s *scene) {
		if n < 1 {
			n = 1
		}
		s.conf.Rebuild.Workers = n
	}
}

// WithAllocator sets the allocator group buffers come from. Defaults to an in-memory allocator
// capped by the config's buffer budget.
func WithAllocator(alloc gpubuf.Allocator) SceneBuilderOption {
	return func(s *scene) {
		s.alloc = alloc
	}
}

// WithDispatcher sets who receives each frame's frozen cull result.
func WithDispatcher(d Dispatcher) SceneBuilderOption {
	return func(s *scene) {
		s.dispatcher = d
	}
}

// WithDebug sets the debug flags carried by every frame context.
func WithDebug(flags frame.DebugFlags) SceneBuilderOption {
	return func(s *scene) {
		s.debug = flags
	}
}
