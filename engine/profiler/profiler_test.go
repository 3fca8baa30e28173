package profiler

import (
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine/cull"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestTickLogsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := NewProfiler(WithUpdateInterval(time.Second), WithClock(clock.now))

	clock.t = clock.t.Add(400 * time.Millisecond)
	require.False(t, p.Tick())
	clock.t = clock.t.Add(700 * time.Millisecond)
	require.True(t, p.Tick())
	require.False(t, p.Tick())
}

func TestRecordUpdatesMetrics(t *testing.T) {
	frames := testutil.ToFloat64(frameCountTotal)
	rebuilt := testutil.ToFloat64(rebuildCountTotal.With(prometheus.Labels{kindLabel: "rebuilt"}))

	p := NewProfiler()
	p.Record(FrameStats{
		Frame:   7,
		Result:  cull.Stats{Frame: 7, VisibleGroups: 3, DrawInfos: 9},
		Rebuild: geometry.Stats{Rebuilt: 2, Deferred: 1},
	})

	require.Equal(t, frames+1, testutil.ToFloat64(frameCountTotal))
	require.Equal(t, rebuilt+2, testutil.ToFloat64(rebuildCountTotal.With(prometheus.Labels{kindLabel: "rebuilt"})))
	require.Equal(t, float64(3), testutil.ToFloat64(visibleCount.With(prometheus.Labels{kindLabel: "groups"})))
	require.Equal(t, uint64(7), p.Last().Frame)
}

func TestSnapshot(t *testing.T) {
	p := NewProfiler()
	p.Record(FrameStats{Frame: 3, Result: cull.Stats{Frame: 3, Bridges: 1}})

	b, err := p.Snapshot()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	require.Equal(t, float64(3), got["frame"])
	require.Equal(t, float64(1), got["result"].(map[string]any)["bridges"])
}
