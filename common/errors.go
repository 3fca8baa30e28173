package common

// Error types attached with errors.New(...).WithType so that callers can branch with errors.IsType.
const (
	// ErrTypeInvalidIndex is a face, octant or slot index outside current bounds.
	ErrTypeInvalidIndex = "invalid_index"
	// ErrTypeStaleHandle is a handle whose slot has been freed or reused.
	ErrTypeStaleHandle = "stale_handle"
	// ErrTypeAllocFailed is a GPU buffer allocation or reallocation failure.
	ErrTypeAllocFailed = "alloc_failed"
	// ErrTypeEmptyGroup is a rebuild requested for a group with no occupants.
	ErrTypeEmptyGroup = "empty_group"
	// ErrTypeNotFound is a lookup miss.
	ErrTypeNotFound = "not_found"
	// ErrTypeInvalidConfig is a configuration value that cannot be used.
	ErrTypeInvalidConfig = "invalid_config"
	// ErrTypeInvalidAsset is a model file that cannot be decoded.
	ErrTypeInvalidAsset = "invalid_asset"
)
