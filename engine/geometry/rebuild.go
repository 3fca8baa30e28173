package geometry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/gpubuf"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

func (m *manager) RebuildGeom(g *group.Group) error {
	packed, err := m.GetGeometry(g)
	if err != nil {
		return err
	}
	return m.commit(g, packed)
}

func (m *manager) RebuildMesh(g *group.Group) error {
	packed, err := m.GetGeometry(g)
	if err != nil {
		return err
	}
	return m.commitMesh(g, packed)
}

// commit uploads packed geometry into the group's buffers, reallocating them when they are too
// small, and publishes the resulting draw descriptors.
func (m *manager) commit(g *group.Group, packed *Packed) error {
	if len(packed.Runs) == 0 {
		g.SetBuffers(nil, nil)
		g.SetDrawMap(map[common.RenderPass][]*group.DrawInfo{})
		g.Clear(group.Dirty)
		return nil
	}

	vb, ib := g.Buffers()
	var err error
	if vb == nil || vb.Size() < packed.VertexBytes() {
		label := fmt.Sprintf("group %d vertices", uint64(g.ID()))
		if vb, err = m.alloc.Allocate(label, gpubuf.UsageVertex, packed.VertexBytes()); err != nil {
			return m.allocFailed(g, err)
		}
	}
	if ib == nil || ib.Size() < packed.IndexBytes() {
		label := fmt.Sprintf("group %d indices", uint64(g.ID()))
		if ib, err = m.alloc.Allocate(label, gpubuf.UsageIndex, packed.IndexBytes()); err != nil {
			if cur, _ := g.Buffers(); cur != vb {
				vb.Release()
			}
			return m.allocFailed(g, err)
		}
	}
	if err := m.upload(vb, ib, packed); err != nil {
		curVB, curIB := g.Buffers()
		if vb != curVB {
			vb.Release()
		}
		if ib != curIB {
			ib.Release()
		}
		err = errors.New("group buffer upload failed").
			WithType(common.ErrTypeAllocFailed).
			WithTag("group", uint64(g.ID())).
			Wrap(err)
		logs.Warn(err)
		return err
	}
	g.SetBuffers(vb, ib)

	draws := make(map[common.RenderPass][]*group.DrawInfo)
	for _, r := range packed.Runs {
		distance := g.Distance()
		if r.Key.Pass.Blended() {
			distance = r.Distance
		}
		draws[r.Key.Pass] = append(draws[r.Key.Pass], &group.DrawInfo{
			Vertices: vb,
			Indices:  ib,
			Start:    r.Start,
			End:      r.End,
			Offset:   r.Offset,
			Count:    r.Count,
			Texture:  r.Key.Texture,
			Material: r.Key.Material,
			Pass:     r.Key.Pass,
			Group:    g.ID(),
			LOD:      g.LOD(),
			Center:   r.Center,
			Distance: distance,
			Faces:    r.Faces,
		})
	}
	g.SetDrawMap(draws)
	g.Clear(group.Dirty)
	return nil
}

func (m *manager) upload(vb, ib gpubuf.Buffer, packed *Packed) error {
	if err := vb.Write(0, model.MarshalVertices(packed.Vertices)); err != nil {
		return err
	}
	return ib.Write(0, model.MarshalIndices(packed.Indices))
}

func (m *manager) allocFailed(g *group.Group, err error) error {
	err = errors.New("group buffer allocation failed").
		WithType(common.ErrTypeAllocFailed).
		WithTag("group", uint64(g.ID())).
		Wrap(err)
	logs.Warn(err)
	return err
}

// sameLayout reports whether packed produces exactly the runs the group currently draws.
func sameLayout(g *group.Group, packed *Packed) bool {
	byPass := make(map[common.RenderPass][]Run)
	for _, r := range packed.Runs {
		byPass[r.Key.Pass] = append(byPass[r.Key.Pass], r)
	}
	if len(byPass) != len(g.Passes()) {
		return false
	}
	for pass, runs := range byPass {
		draws := g.DrawMap(pass)
		if len(draws) != len(runs) {
			return false
		}
		for i, r := range runs {
			d := draws[i]
			if d.Start != r.Start || d.End != r.End || d.Offset != r.Offset || d.Count != r.Count ||
				d.Texture != r.Key.Texture || d.Material != r.Key.Material {
				return false
			}
		}
	}
	return true
}

type packResult struct {
	packed *Packed
	err    error
}

func (m *manager) RebuildGroups(ctx context.Context, groups []*group.Group, budget time.Duration) Stats {
	start := m.now()
	var stats Stats

	queue := make([]*group.Group, 0, len(groups))
	for _, g := range groups {
		switch {
		case g == nil || g.Any(group.Dead) || !g.Any(group.Dirty):
			continue
		case g.Empty():
			// empty groups never rebuild; they simply stop drawing
			g.SetBuffers(nil, nil)
			g.ClearDrawMap()
			g.Clear(group.Dirty)
			stats.Skipped++
			continue
		}
		queue = append(queue, g)
	}
	sort.SliceStable(queue, func(i, j int) bool {
		if queue[i].Urgency() != queue[j].Urgency() {
			return queue[i].Urgency() > queue[j].Urgency()
		}
		return queue[i].ID() < queue[j].ID()
	})

	for i := 0; i < len(queue); i += m.batchSize {
		if i > 0 && (ctx.Err() != nil || (budget > 0 && m.now().Sub(start) >= budget)) {
			stats.Deferred = len(queue) - i
			break
		}
		batch := queue[i:min(i+m.batchSize, len(queue))]
		results := m.packBatch(batch)

		for j, g := range batch {
			res := results[j]
			if res.err == nil {
				if g.Any(group.GeomDirty | group.AlphaDirty) {
					res.err = m.commit(g, res.packed)
				} else {
					res.err = m.commitMesh(g, res.packed)
				}
			}
			if res.err != nil {
				stats.Failed++
				continue
			}
			stats.Rebuilt++
		}
	}
	stats.Elapsed = m.now().Sub(start)
	if stats.Deferred > 0 {
		logs.WithTag("rebuilt", stats.Rebuilt).
			WithTag("deferred", stats.Deferred).
			WithTag("elapsed", stats.Elapsed.String()).
			Debug("group rebuild budget exhausted")
	}
	return stats
}

func (m *manager) commitMesh(g *group.Group, packed *Packed) error {
	vb, ib := g.Buffers()
	if vb == nil || ib == nil || vb.Size() < packed.VertexBytes() || ib.Size() < packed.IndexBytes() || !sameLayout(g, packed) {
		return m.commit(g, packed)
	}
	if err := m.upload(vb, ib, packed); err != nil {
		return err
	}
	g.Clear(group.MeshDirty)
	return nil
}

// packBatch packs every group of the batch, in parallel when a worker pool is configured. The
// WaitGroup is the per-batch barrier.
func (m *manager) packBatch(batch []*group.Group) []packResult {
	results := make([]packResult, len(batch))
	if m.pool == nil || len(batch) == 1 {
		for i, g := range batch {
			results[i].packed, results[i].err = m.GetGeometry(g)
		}
		return results
	}

	var wg sync.WaitGroup
	for i, g := range batch {
		wg.Add(1)
		idx, gCap := i, g
		m.pool.SubmitTask(worker.Task{
			ID: int(gCap.ID()),
			Do: func() (any, error) {
				defer wg.Done()
				results[idx].packed, results[idx].err = m.GetGeometry(gCap)
				return nil, results[idx].err
			},
		})
	}
	wg.Wait()
	return results
}
