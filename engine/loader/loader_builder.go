package loader

import (
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
)

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithModel is an option builder that pre-populates the model cache with a model.
//
// Parameters:
//   - key: the cache key for the model
//   - model: the model to cache
//
// Returns:
//   - LoaderBuilderOption: a function that applies the model option to a loader
func WithModel(key string, model model.Model) LoaderBuilderOption {
	return func(l *loader) {
		l.modelCache[key] = model
	}
}

// WithLODMarker sets the name marker that assigns nodes and meshes to a detail level. An empty
// marker puts everything in level 0.
//
// Parameters:
//   - marker: the separator between a name and its level, "_LOD" by default
//
// Returns:
//   - LoaderBuilderOption: a function that applies the marker option to a loader
func WithLODMarker(marker string) LoaderBuilderOption {
	return func(l *loader) {
		l.lodMarker = marker
	}
}
