package group

// StoreBuilderOption is a function that configures a Store.
type StoreBuilderOption func(*Store)

// WithLODPolicy sets the policy groups select their level of detail with.
//
// Parameters:
//   - policy: the LOD thresholds, hysteresis band and slop ratio
//
// Returns:
//   - StoreBuilderOption: a function that applies the policy option
func WithLODPolicy(policy LODPolicy) StoreBuilderOption {
	return func(s *Store) {
		s.policy = policy
	}
}
