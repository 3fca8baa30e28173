// Package model holds mesh data shared by drawables: GPU vertex layout, faces and per-LOD face sets.
package model

import (
	"github.com/Carmen-Shannon/oxy-cull/common"
)

// model is the implementation of the Model interface.
type model struct {
	name   string
	lods   [][]Face
	bounds common.Bounds
}

// Model defines the interface for renderable mesh data.
// A Model is immutable once built and may be shared by any number of drawables. It carries one
// face list per level of detail, index 0 being the most detailed.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// LODCount returns the number of detail levels.
	//
	// Returns:
	//   - int: at least 1 for a model with faces
	LODCount() int

	// Faces returns the faces for a level of detail. Levels past the coarsest reuse the coarsest.
	//
	// Parameters:
	//   - lod: the requested level, 0 being the most detailed
	//
	// Returns:
	//   - []Face: the faces, which must not be modified
	Faces(lod int) []Face

	// Bounds returns the local-space bounds of the most detailed level.
	//
	// Returns:
	//   - common.Bounds: the local bounds
	Bounds() common.Bounds

	// VertexCount returns the total number of vertices at a level of detail.
	VertexCount(lod int) int
}

var _ Model = &model{}

// NewModel creates a new Model instance with the specified options applied.
//
// Parameters:
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: a new instance of Model configured with the provided options
func NewModel(options ...ModelBuilderOption) Model {
	m := &model{}
	for _, opt := range options {
		opt(m)
	}
	m.bounds = computeBounds(m.Faces(0))
	return m
}

func (m *model) Name() string {
	return m.name
}

func (m *model) LODCount() int {
	return len(m.lods)
}

func (m *model) Faces(lod int) []Face {
	if len(m.lods) == 0 {
		return nil
	}
	if lod < 0 {
		lod = 0
	}
	if lod >= len(m.lods) {
		lod = len(m.lods) - 1
	}
	return m.lods[lod]
}

func (m *model) Bounds() common.Bounds {
	return m.bounds
}

func (m *model) VertexCount(lod int) int {
	count := 0
	for _, f := range m.Faces(lod) {
		count += len(f.Vertices)
	}
	return count
}

func computeBounds(faces []Face) common.Bounds {
	var (
		out  common.Bounds
		seen bool
	)
	for i := range faces {
		if len(faces[i].Vertices) == 0 {
			continue
		}
		e := faces[i].Extents()
		if !seen {
			out, seen = e, true
			continue
		}
		out = out.Union(e)
	}
	out, _ = out.Sanitize()
	return out
}
