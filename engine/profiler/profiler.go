// Package profiler records per-frame statistics of the culling engine, exports them as Prometheus
// metrics and periodically logs a summary with frame rate and memory usage.
package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/partition"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/segmentio/encoding/json"
)

// FrameStats is what one frame did.
type FrameStats struct {
	Frame         uint64              `json:"frame"`
	Notifications int                 `json:"notifications"`
	Moved         int                 `json:"moved"`
	Cull          partition.CullStats `json:"cull"`
	Result        cull.Stats          `json:"result"`
	Rebuild       geometry.Stats      `json:"rebuild"`
	Zombies       int                 `json:"zombies"`
	DeadGroups    int                 `json:"dead_groups"`
	CullTime      time.Duration       `json:"cull_time"`
	Elapsed       time.Duration       `json:"elapsed"`
}

// Profiler tracks frame rate, memory and culling statistics.
// Outputs a summary to the log at a configurable interval.
type Profiler struct {
	mu *sync.Mutex

	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	now  func() time.Time
	last FrameStats
	// summed over the current update interval
	window FrameStats
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		mu:             &sync.Mutex{},
		updateInterval: time.Second,
		now:            time.Now,
	}
	for _, option := range options {
		option(p)
	}
	p.lastTime = p.now()
	return p
}

// Record stores the statistics of a finished frame and updates the exported metrics.
//
// Parameters:
//   - stats: the frame's statistics
func (p *Profiler) Record(stats FrameStats) {
	instrumentFrame(stats)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.last = stats
	p.window.Frame = stats.Frame
	p.window.Notifications += stats.Notifications
	p.window.Moved += stats.Moved
	p.window.Rebuild.Add(stats.Rebuild)
	p.window.Zombies += stats.Zombies
	p.window.DeadGroups += stats.DeadGroups
	p.window.CullTime += stats.CullTime
	p.window.Elapsed += stats.Elapsed
}

// Last returns the statistics of the most recent frame.
func (p *Profiler) Last() FrameStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Snapshot encodes the statistics of the most recent frame as JSON.
//
// Returns:
//   - []byte: the JSON document
//   - error: an encoding error
func (p *Profiler) Snapshot() ([]byte, error) {
	return json.Marshal(p.Last())
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include FPS, heap usage, allocation rate, GC count and pause times, the last frame's
// visible set and the rebuild work done since the previous log.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	fps := float64(p.frameCount) / elapsed.Seconds()

	runtime.ReadMemStats(&p.memStats)
	allocMB := float64(p.memStats.Alloc) / 1024 / 1024
	sysMB := float64(p.memStats.Sys) / 1024 / 1024
	allocDelta := p.memStats.TotalAlloc - p.lastTotalAlloc
	allocRateMB := float64(allocDelta) / 1024 / 1024 / elapsed.Seconds()

	gcCount := p.memStats.NumGC
	var lastPauseUs, maxPauseUs uint64
	if gcCount > 0 {
		// PauseNs is a circular buffer of the last 256 pauses
		lastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			if pause := p.memStats.PauseNs[i%256] / 1000; pause > maxPauseUs {
				maxPauseUs = pause
			}
		}
	}

	var avgCull, avgFrame time.Duration
	if p.frameCount > 0 {
		avgCull = p.window.CullTime / time.Duration(p.frameCount)
		avgFrame = p.window.Elapsed / time.Duration(p.frameCount)
	}

	logs.WithTag("fps", fps).
		WithTag("frame", p.last.Frame).
		WithTag("visible_groups", p.last.Result.VisibleGroups).
		WithTag("visible_drawables", p.last.Result.Drawables).
		WithTag("draw_infos", p.last.Result.DrawInfos).
		WithTag("occluded", p.last.Cull.Occluded).
		WithTag("rebuilt", p.window.Rebuild.Rebuilt).
		WithTag("deferred", p.window.Rebuild.Deferred).
		WithTag("avg_cull", avgCull.String()).
		WithTag("avg_frame", avgFrame.String()).
		WithTag("heap_mb", allocMB).
		WithTag("alloc_rate_mb", allocRateMB).
		WithTag("gc", gcCount).
		WithTag("gc_last_us", lastPauseUs).
		WithTag("gc_max_us", maxPauseUs).
		WithTag("sys_mb", sysMB).
		Info("profiler")

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = gcCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.window = FrameStats{}
	return true
}
