package main

import (
	"math"
	"math/rand"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/camera"
	"github.com/Carmen-Shannon/oxy-cull/engine/entity"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/Carmen-Shannon/oxy-cull/engine/scene"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
)

// spinner is a cube turning around its own axis every tick.
type spinner struct {
	e     entity.Entity
	axis  mgl32.Vec3
	speed float32
	angle float32
}

// world lays cubes out on a square grid, filling layer after layer upward.
type world struct {
	mu      sync.Mutex
	sc      scene.Scene
	region  uuid.UUID
	model   model.Model
	spacing float32
	side    int
	// every spinEvery-th cube is active and spins; 0 keeps all cubes static
	spinEvery int
	rng       *rand.Rand

	cubes    []entity.Entity
	spinners []*spinner
	orbit    float32 // radians per second
}

func newWorld(sc scene.Scene, region uuid.UUID, spacing float32, side, spinEvery int, seed int64) *world {
	tex := common.NewTextureID()
	return &world{
		sc:        sc,
		region:    region,
		model:     model.NewModel(model.WithName("cube"), model.WithFaces(0, model.Box(0.5, tex, common.RenderPassSimple))),
		spacing:   spacing,
		side:      side,
		spinEvery: spinEvery,
		rng:       rand.New(rand.NewSource(seed)),
		orbit:     0.2,
	}
}

// cell returns the position of the cube with the given index.
func (w *world) cell(idx int) (x, y, z float32) {
	col := idx % w.side
	row := (idx / w.side) % w.side
	layer := idx / (w.side * w.side)

	half := float32(w.side-1) / 2
	x = (float32(col) - half) * w.spacing
	z = (float32(row) - half) * w.spacing
	y = float32(layer) * w.spacing
	return x, y, z
}

// spawn adds count cubes after the existing ones.
func (w *world) spawn(count int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := 0; i < count; i++ {
		idx := len(w.cubes)
		x, y, z := w.cell(idx)
		spins := w.spinEvery > 0 && idx%w.spinEvery == 0

		e := entity.NewEntity(common.PartitionVolume,
			entity.WithModel(w.model),
			entity.WithPosition(x, y, z),
			entity.WithActive(spins),
		)
		if err := w.sc.Add(e, w.region); err != nil {
			return err
		}
		w.cubes = append(w.cubes, e)
		if spins {
			axis := mgl32.Vec3{w.rng.Float32()*2 - 1, w.rng.Float32()*2 - 1, w.rng.Float32()*2 - 1}
			if axis.Len() < 1e-3 {
				axis = mgl32.Vec3{0, 1, 0}
			}
			w.spinners = append(w.spinners, &spinner{
				e:     e,
				axis:  axis.Normalize(),
				speed: w.rng.Float32()*2 - 1,
			})
		}
	}
	return nil
}

// extent returns the radius the camera needs to keep the whole grid in view.
func (w *world) extent() float32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	n := len(w.cubes)
	side := w.side
	if n < w.side*w.side {
		side = int(math.Ceil(math.Sqrt(float64(n))))
	}
	layers := n/(w.side*w.side) + 1
	width := float32(side) * w.spacing
	height := float32(layers) * w.spacing
	return float32(math.Sqrt(float64(width*width+height*height))) * 0.7
}

// tick spins the active cubes and orbits the camera around the grid.
func (w *world) tick(dt float32, cam camera.Camera) {
	w.mu.Lock()
	for _, s := range w.spinners {
		s.angle += s.speed * dt
		s.e.SetRotation(mgl32.QuatRotate(s.angle, s.axis))
	}
	w.mu.Unlock()

	ctrl := cam.Controller()
	if ctrl == nil {
		return
	}
	if r := w.extent(); r > ctrl.Radius() {
		ctrl.SetRadius(r)
	}
	ctrl.Orbit(w.orbit*dt, 0)
	cam.Update()
}

func (w *world) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.cubes)
}
