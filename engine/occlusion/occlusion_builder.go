package occlusion

// ProviderBuilderOption is a function that configures a deferred Provider.
type ProviderBuilderOption func(*deferredProvider)

// WithLatency sets how many frames pass between issuing a query and its result becoming ready. 0
// resolves queries on the frame they are issued.
func WithLatency(frames int) ProviderBuilderOption {
	return func(p *deferredProvider) {
		if frames >= 0 {
			p.latency = uint64(frames)
		}
	}
}
