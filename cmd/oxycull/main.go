package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/engine"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/config"
	"github.com/Carmen-Shannon/oxy-cull/engine/loader"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/encoding/json"
)

var (
	// Set at build.
	version = "v0.1.0"

	infoGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name:        "oxycull_info",
		Help:        "Oxycull information.",
		ConstLabels: prometheus.Labels{"version": version},
	})
)

type options struct {
	Config      string        `cli:""        env:"OXYCULL_CONFIG"        help:"YAML file with the culling configuration."`
	MetricsAddr string        `cli:""        env:"OXYCULL_METRICS_ADDR"  help:"Listening address for Prometheus metrics. Empty disables it."`
	LogLevel    string        `cli:""        env:"OXYCULL_LOG_LEVEL"     help:"Log level (debug|info|warning|error)."`
	LogIndent   bool          `cli:""        env:"OXYCULL_LOG_INDENT"    help:"Indent logs."`
	Frames      uint64        `cli:""        env:"OXYCULL_FRAMES"        help:"Frames to run before exiting. 0 runs until interrupted."`
	Cubes       int           `cli:""        env:"OXYCULL_CUBES"         help:"Initial number of cubes."`
	Model       string        `cli:""        env:"OXYCULL_MODEL"         help:"glTF or GLB file drawn instead of the cube."`
	Side        int           `cli:",hidden" env:"OXYCULL_SIDE"          help:"Cubes per grid row before a new layer starts."`
	Spacing     float64       `cli:",hidden" env:"OXYCULL_SPACING"       help:"Distance between cube centers."`
	SpinEvery   int           `cli:",hidden" env:"OXYCULL_SPIN_EVERY"    help:"Every n-th cube spins. 0 keeps all cubes static."`
	TickRate    float64       `cli:",hidden" env:"OXYCULL_TICK_RATE"     help:"Simulation ticks per second."`
	FrameLimit  float64       `cli:",hidden" env:"OXYCULL_FRAME_LIMIT"   help:"Frame rate cap. 0 is uncapped."`
	Ramp        bool          `cli:""        env:"OXYCULL_RAMP"          help:"Grow the cube count until the frame rate drops below the threshold."`
	RampEvery   time.Duration `cli:",hidden" env:"OXYCULL_RAMP_INTERVAL" help:"Duration of each ramp window."`
	RampFactor  float64       `cli:",hidden" env:"OXYCULL_RAMP_FACTOR"   help:"Cube count growth per ramp window."`
	RampMaxStep int           `cli:",hidden" env:"OXYCULL_RAMP_MAX_STEP" help:"Maximum cubes added per ramp window."`
	FPS         float64       `cli:",hidden" env:"OXYCULL_FPS"           help:"Frame rate under which the ramp stops."`
	Profile     bool          `cli:""        env:"OXYCULL_PROFILE"       help:"Log profiler summaries."`
	Seed        int64         `cli:",hidden" env:"OXYCULL_SEED"          help:"Random seed for spin axes."`
	Version     bool          `cli:""        env:"-"                     help:"Show version."`
	Help        bool          `cli:""        env:"-"                     help:"Show help."`
}

func main() {
	opts := options{
		LogLevel:    logs.InfoLevel.String(),
		Frames:      600,
		Cubes:       1000,
		Side:        200,
		Spacing:     3,
		SpinEvery:   10,
		TickRate:    60,
		RampEvery:   2 * time.Second,
		RampFactor:  1.5,
		RampMaxStep: 20000,
		FPS:         60,
		Seed:        1,
	}

	infoGauge.Set(1)

	ctx, cancel := cli.ContextWithSignals(context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer cancel()

	cli.Register().
		Help("Runs the headless culling engine over a synthetic cube grid.").
		Options(&opts)
	cli.Load()

	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	logs.SetLevel(logs.ParseLevel(opts.LogLevel))
	logs.Encoder = json.Marshal
	if opts.LogIndent {
		logs.Encoder = func(v any) ([]byte, error) {
			return json.MarshalIndent(v, "", "  ")
		}
	}
	errors.Encoder = json.Marshal

	if err := validateOptions(opts); err != nil {
		logs.Fatal(err)
	}

	conf := config.Default()
	if opts.Config != "" {
		c, err := config.Load(opts.Config)
		if err != nil {
			logs.Fatal(errors.New("loading config failed").Wrap(err))
		}
		conf = c
	}

	if opts.MetricsAddr != "" {
		go serveMetrics(opts.MetricsAddr)
	}

	if err := run(ctx, opts, conf); err != nil {
		logs.Fatal(err)
	}
}

func validateOptions(opts options) error {
	invalid := func(name string, v any) error {
		return errors.New("invalid option").
			WithTag("option", name).
			WithTag("value", v)
	}

	switch {
	case opts.Cubes < 1:
		return invalid("cubes", opts.Cubes)
	case opts.Side < 1:
		return invalid("side", opts.Side)
	case opts.Spacing <= 0:
		return invalid("spacing", opts.Spacing)
	case opts.SpinEvery < 0:
		return invalid("spin-every", opts.SpinEvery)
	case opts.Ramp && opts.RampFactor <= 1:
		return invalid("ramp-factor", opts.RampFactor)
	case opts.Ramp && opts.RampEvery <= 0:
		return invalid("ramp-interval", opts.RampEvery)
	default:
		return nil
	}
}

func serveMetrics(addr string) {
	var mux http.ServeMux
	mux.Handle("/metrics", promhttp.Handler())

	logs.WithTag("addr", addr).Info("serving metrics")
	if err := http.ListenAndServe(addr, &mux); err != nil {
		logs.Error(errors.New("metrics server stopped").Wrap(err))
	}
}

func run(ctx context.Context, opts options, conf config.Config) error {
	cam := camera.NewCamera(
		camera.WithFar(100000),
		camera.WithController(camera.NewController(
			camera.WithRadius(50),
			camera.WithTarget(mgl32.Vec3{0, 0, 0}),
			camera.WithElevation(0.6),
			camera.WithAzimuth(0.3),
			camera.WithRadiusBounds(1, 200000),
		)),
	)

	sc := scene.NewScene("cubes", cam, scene.WithConfig(conf))
	defer sc.Close()
	region := sc.AddRegion()

	w := newWorld(sc, region.ID(), float32(opts.Spacing), opts.Side, opts.SpinEvery, opts.Seed)
	if opts.Model != "" {
		m, err := loader.NewLoader().Load(opts.Model)
		if err != nil {
			return err
		}
		w.model = m
	}
	if err := w.spawn(opts.Cubes); err != nil {
		return errors.New("spawning cubes failed").Wrap(err)
	}

	maxFrames := opts.Frames
	if opts.Ramp {
		// the ramp decides when to stop
		maxFrames = 0
	}

	eng := engine.NewEngine(
		engine.WithScene(0, sc),
		engine.WithProfiling(opts.Profile),
		engine.WithTickRate(opts.TickRate),
		engine.WithFrameLimit(opts.FrameLimit),
		engine.WithMaxFrames(maxFrames),
	)

	eng.SetTickCallback(func(dt float32) {
		w.tick(dt, cam)
	})

	var rmp *ramp
	if opts.Ramp {
		rmp = newRamp(opts.RampEvery, opts.RampFactor, opts.RampMaxStep, opts.FPS)
	}
	var spawnErr error
	eng.SetFrameCallback(func(_ float32, stats []profiler.FrameStats) {
		if rmp == nil {
			return
		}
		delta := rmp.step(w.len(), stats)
		if rmp.done() {
			eng.Quit()
			return
		}
		if delta == 0 {
			return
		}
		start := time.Now()
		if err := w.spawn(delta); err != nil {
			spawnErr = err
			eng.Quit()
			return
		}
		logs.WithTag("cubes", w.len()).
			WithTag("added", delta).
			WithTag("spawn_ms", time.Since(start).Milliseconds()).
			Info("ramping")
	})

	logs.WithTag("cubes", w.len()).
		WithTag("frames", maxFrames).
		WithTag("ramp", opts.Ramp).
		Info("starting engine")
	eng.Run(ctx)

	if spawnErr != nil {
		return errors.New("spawning cubes failed").Wrap(spawnErr)
	}

	summary, err := eng.Profiler().Snapshot()
	if err != nil {
		return errors.New("encoding profiler snapshot failed").Wrap(err)
	}
	logs.WithTag("frames", eng.Frames()).
		WithTag("cubes", w.len()).
		WithTag("last", string(summary)).
		Info("engine stopped")
	return nil
}
