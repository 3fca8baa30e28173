package frame

import "time"

// ContextBuilderOption configures a frame Context.
type ContextBuilderOption func(*Context)

// WithOcclusion enables occlusion queries for the frame.
func WithOcclusion(enabled bool) ContextBuilderOption {
	return func(c *Context) {
		c.Occlusion = enabled
	}
}

// WithDebug sets the frame's debug flags.
func WithDebug(flags DebugFlags) ContextBuilderOption {
	return func(c *Context) {
		c.Debug = flags
	}
}

// WithBudget sets the geometry rebuild budget.
func WithBudget(budget time.Duration) ContextBuilderOption {
	return func(c *Context) {
		c.Budget = budget
	}
}

// WithStarted overrides the frame start time.
func WithStarted(t time.Time) ContextBuilderOption {
	return func(c *Context) {
		c.Started = t
	}
}
