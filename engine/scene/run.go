package scene

import (
	"context"
	"time"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/entity"
	"github.com/Carmen-Shannon/oxy-cull/engine/frame"
	"github.com/Carmen-Shannon/oxy-cull/engine/geometry"
	"github.com/Carmen-Shannon/oxy-cull/engine/group"
	"github.com/Carmen-Shannon/oxy-cull/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cull/engine/region"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/google/uuid"
)

func (s *scene) Frame(ctx context.Context) profiler.FrameStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frameNumber++
	fc := frame.New(s.frameNumber, s.cam.View(),
		frame.WithOcclusion(s.conf.Occlusion.Enabled),
		frame.WithBudget(s.conf.Rebuild.Budget),
		frame.WithDebug(s.debug),
	)
	stats := profiler.FrameStats{Frame: fc.Number}

	// 1. property changes
	stats.Notifications = s.applyNotifications()

	// 2. moved drawables
	stats.Moved = s.drawables.FlushMoved(func(d *drawable.Drawable) {
		r, ok := s.indexed(d)
		if !ok {
			return
		}
		r.Move(d, false)
		r.ApplyRebuild(d)
	})
	for _, d := range s.touched {
		if r, ok := s.indexed(d); ok {
			r.ApplyRebuild(d)
		}
	}
	clear(s.touched)
	s.touched = s.touched[:0]

	// 3. cull, kind by kind so the merged result follows partition priority
	cullStart := time.Now()
	s.result.Reset(fc.Number)
	for _, kind := range common.PartitionKindsByPriority() {
		for _, id := range s.regionOrder {
			stats.Cull.Add(s.regions[id].CullKind(fc, kind, s.result))
		}
	}
	stats.CullTime = time.Since(cullStart)

	// 4. rebuild visible dirty groups within the budget
	stats.Rebuild = s.rebuild(ctx, fc)

	// 5. hand off
	s.result.Freeze()
	stats.Result = s.result.Stats()
	if s.dispatcher != nil {
		s.dispatcher.Dispatch(fc, s.result)
	}

	// 6. deferred destruction, after the dispatcher released the result
	stats.Zombies = s.drawables.DrainZombies()
	stats.DeadGroups = s.groups.DrainDead()

	stats.Elapsed = time.Since(fc.Started)
	return stats
}

// indexed returns the region holding a drawable that is currently in a partition.
func (s *scene) indexed(d *drawable.Drawable) (region.Region, bool) {
	if !d.Alive() || d.State() == drawable.StateUnloaded {
		return nil, false
	}
	r, ok := s.regionOf[d.ID()]
	return r, ok
}

func (s *scene) applyNotifications() int {
	s.notifyMu.Lock()
	pending := s.pending
	s.pending = nil
	s.notifyMu.Unlock()

	for _, n := range pending {
		if err := s.apply(n); err != nil {
			logs.Warn(errors.New("applying entity notification failed").
				WithTag("scene", s.name).
				WithTag("entity", n.Entity).
				WithTag("kind", n.Kind.String()).
				Wrap(err))
		}
	}
	return len(pending)
}

func (s *scene) apply(n entity.Notification) error {
	if n.Kind == entity.NotifyCreated {
		return s.create(n)
	}

	d, ok := s.drawables.ByEntity(n.Entity)
	if !ok {
		if n.Kind == entity.NotifyRemoved {
			delete(s.entityRegion, n.Entity)
			return nil
		}
		return errors.New("entity has no drawable").
			WithType(common.ErrTypeNotFound)
	}

	switch n.Kind {
	case entity.NotifyRemoved:
		s.drawables.MarkDead(d.ID())
		delete(s.entityRegion, n.Entity)

	case entity.NotifyTransform:
		s.drawables.MarkMoved(d.ID(), s.regionPose(s.regionOf[d.ID()], d.Kind(), d.Parent(), n.Pose), n.Undamped)

	case entity.NotifyGeometry:
		d.SetModel(n.Model)
		// new bounds go through the moved list
		s.drawables.MarkMoved(d.ID(), d.Pose(), true)
		s.touched = append(s.touched, d)

	case entity.NotifyTexture, entity.NotifyMaterial, entity.NotifyColor:
		d.Restyle(n.Model, n.Kind.RebuildFlags())
		s.touched = append(s.touched, d)

	case entity.NotifyShadow, entity.NotifyRigged:
		d.MarkRebuild(n.Kind.RebuildFlags())
		s.touched = append(s.touched, d)

	case entity.NotifyHidden:
		if r, ok := s.regionOf[d.ID()]; ok {
			r.Unload(d)
		} else {
			d.Unload()
		}

	case entity.NotifyShown:
		if !d.Reload() {
			return nil
		}
		r, ok := s.regionOf[d.ID()]
		if !ok {
			return errors.New("region not found").
				WithType(common.ErrTypeNotFound).
				WithTag("drawable", uint64(d.ID()))
		}
		return r.Put(d)

	case entity.NotifyActivity:
		if n.Active {
			d.MakeActive()
		} else {
			d.MakeStatic()
		}
	}
	return nil
}

// create builds, initializes and indexes the drawable of a newly attached entity.
func (s *scene) create(n entity.Notification) error {
	e := n.Source
	if e == nil {
		return errors.New("created notification without source").
			WithType(common.ErrTypeNotFound)
	}
	if _, ok := s.drawables.ByEntity(e.ID()); ok {
		return nil
	}

	rid, ok := s.entityRegion[e.ID()]
	if !ok {
		// detached again before the frame ran
		return nil
	}
	r, ok := s.regions[rid]
	if !ok {
		return errors.New("region not found").
			WithType(common.ErrTypeNotFound).
			WithTag("region", rid)
	}

	var options []drawable.DrawableBuilderOption
	parentID := common.NilDrawable
	if parent := e.Parent(); parent != uuid.Nil {
		p, ok := s.drawables.ByEntity(parent)
		if !ok {
			return errors.New("parent entity has no drawable").
				WithType(common.ErrTypeNotFound).
				WithTag("parent", parent)
		}
		parentID = p.ID()
		options = append(options, drawable.WithParent(p.ID()))
		switch {
		case p.IsBridge():
			options = append(options, drawable.WithBridge(p.ID()))
		case p.Bridge() != common.NilDrawable:
			options = append(options, drawable.WithBridge(p.Bridge()))
		}
	}
	if e.IsBridge() {
		options = append(options, drawable.AsBridge())
	}
	if e.Active() {
		options = append(options, drawable.WithActive())
	}
	options = append(options, drawable.WithPose(s.regionPose(r, e.Kind(), parentID, e.Pose())))

	d := s.drawables.New(e.ID(), e.Kind(), e.Model(), options...)
	if _, err := s.drawables.Init(d.ID()); err != nil {
		return err
	}
	s.regionOf[d.ID()] = r
	if !e.Enabled() {
		r.Unload(d)
		return nil
	}
	if err := r.Put(d); err != nil {
		s.drawables.MarkDead(d.ID())
		return err
	}
	return nil
}

// regionPose moves an entity pose into the region's current frame. Entities keep reporting poses
// relative to the region's initial origin; root drawables of kinds that follow shifts are offset by
// the accumulated shift, children stay relative to their parent.
func (s *scene) regionPose(r region.Region, kind common.PartitionKind, parent common.DrawableID, pose drawable.Pose) drawable.Pose {
	if r == nil || parent != common.NilDrawable || !kind.Shifts() {
		return pose
	}
	pose.Position = pose.Position.Add(r.Origin())
	return pose
}

// rebuild hands the visible dirty groups to the manager of their geometry variant. Managers run in
// order of first appearance in the result and share the frame's budget; each gets at least one
// batch so no variant starves.
func (s *scene) rebuild(ctx context.Context, fc *frame.Context) geometry.Stats {
	var order []common.GeometryKind
	byKind := make(map[common.GeometryKind][]*group.Group)
	for _, g := range s.result.VisibleGroups() {
		kind := g.Kind().Geometry()
		if kind == common.GeometryNone || !g.Any(group.Dirty) {
			continue
		}
		if _, ok := byKind[kind]; !ok {
			order = append(order, kind)
		}
		byKind[kind] = append(byKind[kind], g)
	}

	var stats geometry.Stats
	start := time.Now()
	for _, kind := range order {
		m, ok := s.managers[kind]
		if !ok {
			continue
		}
		budget := fc.Budget
		if budget > 0 {
			budget = max(budget-time.Since(start), time.Nanosecond)
		}
		stats.Add(m.RebuildGroups(ctx, byKind[kind], budget))
	}
	stats.Elapsed = time.Since(start)
	return stats
}
