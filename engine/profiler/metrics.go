package profiler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	kindLabel = "kind"
)

var (
	frameCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "oxycull_frame_count_total",
		Help: "The total number of frames run.",
	})

	frameDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oxycull_frame_duration_seconds",
		Help:    "The wall-clock time of a frame, from notifications to deferred destruction.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	cullDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "oxycull_cull_duration_seconds",
		Help:    "The time spent in the cull traversal.",
		Buckets: prometheus.ExponentialBuckets(0.0001, 2, 12),
	})

	visibleCount = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "oxycull_visible_count",
		Help: "The number of visible entries of the last frame.",
	}, []string{kindLabel})

	rebuildCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxycull_rebuild_count_total",
		Help: "The total number of group rebuilds by outcome.",
	}, []string{kindLabel})

	destroyedCountTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "oxycull_destroyed_count_total",
		Help: "The total number of drawables and groups destroyed at frame boundaries.",
	}, []string{kindLabel})
)

func instrumentFrame(s FrameStats) {
	frameCountTotal.Inc()
	frameDuration.Observe(s.Elapsed.Seconds())
	cullDuration.Observe(s.CullTime.Seconds())

	visibleCount.With(prometheus.Labels{kindLabel: "groups"}).Set(float64(s.Result.VisibleGroups))
	visibleCount.With(prometheus.Labels{kindLabel: "alpha_groups"}).Set(float64(s.Result.AlphaGroups))
	visibleCount.With(prometheus.Labels{kindLabel: "drawables"}).Set(float64(s.Result.Drawables))
	visibleCount.With(prometheus.Labels{kindLabel: "bridges"}).Set(float64(s.Result.Bridges))
	visibleCount.With(prometheus.Labels{kindLabel: "draw_infos"}).Set(float64(s.Result.DrawInfos))
	visibleCount.With(prometheus.Labels{kindLabel: "occluded"}).Set(float64(s.Cull.Occluded))

	rebuildCountTotal.With(prometheus.Labels{kindLabel: "rebuilt"}).Add(float64(s.Rebuild.Rebuilt))
	rebuildCountTotal.With(prometheus.Labels{kindLabel: "deferred"}).Add(float64(s.Rebuild.Deferred))
	rebuildCountTotal.With(prometheus.Labels{kindLabel: "failed"}).Add(float64(s.Rebuild.Failed))

	destroyedCountTotal.With(prometheus.Labels{kindLabel: "drawables"}).Add(float64(s.Zombies))
	destroyedCountTotal.With(prometheus.Labels{kindLabel: "groups"}).Add(float64(s.DeadGroups))
}
