package occlusion

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// DefaultLatency is the number of frames a deferred query takes to resolve.
const DefaultLatency = 1

type query struct {
	frame   uint64
	visible bool
}

// deferredProvider answers queries with a Tester but only reports them after a fixed number of
// frames, the way GPU query results arrive.
type deferredProvider struct {
	mu      *sync.Mutex
	tester  Tester
	latency uint64
	queries map[common.GroupID]query
}

var _ Provider = &deferredProvider{}

// NewDeferredProvider creates a Provider backed by a CPU tester.
//
// Parameters:
//   - tester: decides visibility at issue time
//   - options: functional options to configure the provider
//
// Returns:
//   - Provider: the provider
func NewDeferredProvider(tester Tester, options ...ProviderBuilderOption) Provider {
	if tester == nil {
		panic("occlusion: tester is required")
	}
	p := &deferredProvider{
		mu:      &sync.Mutex{},
		tester:  tester,
		latency: DefaultLatency,
		queries: make(map[common.GroupID]query),
	}
	for _, option := range options {
		option(p)
	}
	return p
}

func (p *deferredProvider) Issue(id common.GroupID, bounds common.Bounds, eye mgl32.Vec3, frame uint64) {
	visible := !p.tester.Occluded(bounds, eye)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queries[id] = query{frame: frame, visible: visible}
}

func (p *deferredProvider) Poll(id common.GroupID, frame uint64) (bool, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	q, ok := p.queries[id]
	if !ok || frame < q.frame+p.latency {
		return false, false
	}
	delete(p.queries, id)
	return q.visible, true
}

func (p *deferredProvider) Forget(id common.GroupID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.queries, id)
}

func (p *deferredProvider) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queries)
}
