package occlusion

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
)

// Occluders is a CPU Tester over a set of solid boxes. A target is hidden when every corner and the
// center of its bounds lies behind some occluder as seen from the eye.
type Occluders struct {
	mu    *sync.Mutex
	boxes map[uint64]common.Bounds
	next  uint64
}

var _ Tester = &Occluders{}

// NewOccluders creates an empty occluder set.
func NewOccluders() *Occluders {
	return &Occluders{mu: &sync.Mutex{}, boxes: make(map[uint64]common.Bounds)}
}

// Add registers a solid box and returns a key for removing it.
func (o *Occluders) Add(b common.Bounds) uint64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.next++
	o.boxes[o.next] = b
	return o.next
}

// Remove unregisters a box.
func (o *Occluders) Remove(key uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.boxes, key)
}

// Shift translates every occluder.
func (o *Occluders) Shift(offset mgl32.Vec3) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, b := range o.boxes {
		o.boxes[k] = b.Shifted(offset)
	}
}

// Len returns the number of occluders.
func (o *Occluders) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.boxes)
}

func (o *Occluders) Occluded(b common.Bounds, eye mgl32.Vec3) bool {
	if b.ContainsPoint(eye) {
		return false
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	var blockers []common.Bounds
	for _, occ := range o.boxes {
		// an occluder overlapping the target or swallowing the eye cannot hide it
		if occ.Intersects(b) || occ.ContainsPoint(eye) {
			continue
		}
		blockers = append(blockers, occ)
	}
	if len(blockers) == 0 {
		return false
	}

	lo, hi := b.Min(), b.Max()
	points := [9]mgl32.Vec3{b.Center}
	for i := 0; i < 8; i++ {
		p := lo
		if i&1 != 0 {
			p[0] = hi[0]
		}
		if i&2 != 0 {
			p[1] = hi[1]
		}
		if i&4 != 0 {
			p[2] = hi[2]
		}
		points[i+1] = p
	}
	for _, p := range points {
		hidden := false
		for _, occ := range blockers {
			if _, ok := occ.IntersectSegment(eye, p); ok {
				hidden = true
				break
			}
		}
		if !hidden {
			return false
		}
	}
	return true
}
