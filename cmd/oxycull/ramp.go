package main

import (
	"math"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// ramp grows the cube count every interval until the frame rate drops below the threshold.
type ramp struct {
	interval  time.Duration
	factor    float64
	maxStep   int
	threshold float64 // frames per second
	now       func() time.Time

	start   time.Time
	frames  int
	stopped bool

	bestCount int
	bestFPS   float64
}

func newRamp(interval time.Duration, factor float64, maxStep int, threshold float64) *ramp {
	r := &ramp{
		interval:  interval,
		factor:    factor,
		maxStep:   maxStep,
		threshold: threshold,
		now:       time.Now,
	}
	r.start = r.now()
	return r
}

// step counts a frame and returns how many cubes to add, or 0 while the window is still open or
// once the ramp stopped.
func (r *ramp) step(count int, stats []profiler.FrameStats) int {
	r.frames++
	if r.stopped {
		return 0
	}

	elapsed := r.now().Sub(r.start)
	if elapsed < r.interval {
		return 0
	}

	fps := float64(r.frames) / elapsed.Seconds()
	entry := logs.WithTag("cubes", count).
		WithTag("fps", math.Round(fps*10)/10).
		WithTag("ms_per_frame", math.Round(1e4/fps)/10)
	if len(stats) > 0 {
		last := stats[len(stats)-1]
		entry = entry.
			WithTag("visible", last.Result.Drawables).
			WithTag("cull_ms", float64(last.CullTime.Microseconds())/1000)
	}
	entry.Info("ramp window")

	if fps > r.bestFPS {
		r.bestFPS = fps
		r.bestCount = count
	}
	r.start = r.now()
	r.frames = 0

	if fps < r.threshold {
		logs.WithTag("threshold", r.threshold).
			WithTag("cubes", count).
			WithTag("best_cubes", r.bestCount).
			WithTag("best_fps", math.Round(r.bestFPS*10)/10).
			Info("ramp stopped below threshold")
		r.stopped = true
		return 0
	}

	next := int(math.Ceil(float64(count) * r.factor))
	delta := next - count
	if delta < 1 {
		delta = 1
	}
	if r.maxStep > 0 && delta > r.maxStep {
		delta = r.maxStep
	}
	return delta
}

func (r *ramp) done() bool {
	return r.stopped
}
