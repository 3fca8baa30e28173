package model

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithFaces is an option builder that sets the faces of one level of detail. Levels are stored
// densely; setting level 2 on a model with one level copies level 0 into level 1.
//
// Parameters:
//   - lod: the detail level, 0 being the most detailed
//   - faces: the faces of that level
//
// Returns:
//   - ModelBuilderOption: a function that applies the faces option to a model
func WithFaces(lod int, faces ...Face) ModelBuilderOption {
	return func(m *model) {
		if lod < 0 {
			return
		}
		for len(m.lods) <= lod {
			if len(m.lods) == 0 {
				m.lods = append(m.lods, nil)
				continue
			}
			m.lods = append(m.lods, m.lods[len(m.lods)-1])
		}
		m.lods[lod] = faces
	}
}
