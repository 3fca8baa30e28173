package geometry

import (
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
)

// ManagerBuilderOption is a function that configures a Manager.
type ManagerBuilderOption func(*manager)

// WithMaxBatchVertices sets the largest vertex range one draw descriptor may span. Runs longer than
// this are cut into several descriptors.
//
// Parameters:
//   - n: the vertex limit, values below 3 are ignored
//
// Returns:
//   - ManagerBuilderOption: a function that applies the option
func WithMaxBatchVertices(n int) ManagerBuilderOption {
	return func(m *manager) {
		if n >= 3 {
			m.maxVertices = n
		}
	}
}

// WithBatchSize sets how many groups are packed together between budget checks.
func WithBatchSize(n int) ManagerBuilderOption {
	return func(m *manager) {
		if n > 0 {
			m.batchSize = n
		}
	}
}

// WithWorkers packs groups on a worker pool of n workers. 1 or fewer packs serially.
func WithWorkers(n int) ManagerBuilderOption {
	return func(m *manager) {
		m.workers = n
	}
}

// WithWorkerPool shares an existing worker pool between managers.
func WithWorkerPool(pool worker.DynamicWorkerPool) ManagerBuilderOption {
	return func(m *manager) {
		m.pool = pool
	}
}

// WithClock replaces the clock used for budget accounting.
func WithClock(now func() time.Time) ManagerBuilderOption {
	return func(m *manager) {
		if now != nil {
			m.now = now
		}
	}
}
