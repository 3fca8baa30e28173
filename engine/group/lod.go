package group

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
)

// LODPolicy selects a group's level of detail from its projected pixel area.
type LODPolicy struct {
	// Thresholds are descending pixel areas; a group whose area drops below Thresholds[i] uses at
	// least level i+1.
	Thresholds []float32
	// Hysteresis widens each threshold into a band: coarsening requires the area to fall below
	// threshold*(1-Hysteresis), refining requires it to rise above threshold*(1+Hysteresis).
	Hysteresis float32
	// SlopRatio suppresses re-evaluation until the distance changed by this fraction of the
	// distance at the last evaluation (or of the group radius, if larger).
	SlopRatio float32
}

// DefaultLODPolicy returns the stock thresholds.
func DefaultLODPolicy() LODPolicy {
	return LODPolicy{
		Thresholds: []float32{16384, 2048, 256},
		Hysteresis: 0.15,
		SlopRatio:  0.25,
	}
}

// Levels returns the number of selectable levels.
func (p LODPolicy) Levels() int { return len(p.Thresholds) + 1 }

// select steps from the current level towards the level area calls for, honouring the band.
func (p LODPolicy) selectLevel(current int, area float32) int {
	lod := current
	if lod < 0 {
		lod = 0
	}
	if lod > len(p.Thresholds) {
		lod = len(p.Thresholds)
	}
	for lod < len(p.Thresholds) && area < p.Thresholds[lod]*(1-p.Hysteresis) {
		lod++
	}
	for lod > 0 && area > p.Thresholds[lod-1]*(1+p.Hysteresis) {
		lod--
	}
	return lod
}

// UpdateDistance recomputes the camera distance and projected pixel area and re-evaluates the LOD.
// Re-evaluation is skipped while the distance stays within the slop ratio of the last evaluation,
// and LOD only ever moves across a hysteresis band, so along a sweep of strictly increasing
// distance the selected level never gains detail. A LOD change sets GeomDirty.
//
// Parameters:
//   - origin: camera position in partition space
//   - pixelsPerRadian: viewport height in pixels divided by the vertical field of view
//   - policy: the LOD thresholds
//
// Returns:
//   - bool: true if the LOD changed
func (g *Group) UpdateDistance(origin mgl32.Vec3, pixelsPerRadian float32, policy LODPolicy) bool {
	g.copyCheck()
	radius := g.bounds.Radius()
	g.eye = origin
	g.distance = g.bounds.DistanceTo(origin)
	g.pixelArea = projectedArea(radius, g.bounds.Center.Sub(origin).Len(), pixelsPerRadian)

	// blended faces were sorted from packedEye; repack once the eye wandered off
	if g.HasBlended() && origin.Sub(g.packedEye).Len() > policy.SlopRatio*math32.Max(g.distance, radius) {
		g.state |= AlphaDirty
	}

	if g.lodEvaluated && policy.SlopRatio > 0 {
		base := math32.Max(g.lastUpdateDistance, radius)
		if base > 0 && math32.Abs(g.distance-g.lastUpdateDistance)/base < policy.SlopRatio {
			return false
		}
	}
	g.lodEvaluated = true
	g.lastUpdateDistance = g.distance

	lod := policy.selectLevel(g.lod, g.pixelArea)
	if lod == g.lod {
		return false
	}
	g.lod = lod
	g.state |= GeomDirty
	return true
}

// projectedArea approximates the on-screen area in pixels of a sphere of the given radius seen at
// distance from the eye. A sphere containing the eye covers the screen.
func projectedArea(radius, distance, pixelsPerRadian float32) float32 {
	if distance <= radius {
		return math32.MaxFloat32
	}
	angular := math32.Asin(radius / distance)
	r := angular * pixelsPerRadian
	return math32.Pi * r * r
}
