package entity

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/drawable"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	got []Notification
}

func (r *recorder) Notify(n Notification) { r.got = append(r.got, n) }

func (r *recorder) kinds() []NotificationKind {
	out := make([]NotificationKind, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.Kind)
	}
	return out
}

func TestEntityEmitsOnlyWhenAttached(t *testing.T) {
	e := NewEntity(common.PartitionVolume, WithPosition(1, 2, 3))
	e.SetPosition(4, 5, 6)
	require.Equal(t, mgl32.Vec3{4, 5, 6}, e.Position())

	rec := &recorder{}
	e.Attach(rec)
	e.SetScale(2, 2, 2)
	e.Teleport(drawable.IdentityPose())
	e.Detach()
	e.SetPosition(0, 0, 1)

	require.Equal(t, []NotificationKind{NotifyCreated, NotifyTransform, NotifyTransform, NotifyRemoved}, rec.kinds())
	require.Equal(t, e, rec.got[0].Source)
	require.Equal(t, mgl32.Vec3{2, 2, 2}, rec.got[1].Pose.Scale)
	require.False(t, rec.got[1].Undamped)
	require.True(t, rec.got[2].Undamped)
	for _, n := range rec.got {
		require.Equal(t, e.ID(), n.Entity)
	}
}

func TestEntityEnabledToggles(t *testing.T) {
	rec := &recorder{}
	e := NewEntity(common.PartitionVolume)
	e.Attach(rec)
	e.SetEnabled(true)
	e.SetEnabled(false)
	e.SetEnabled(false)
	e.SetEnabled(true)
	require.Equal(t, []NotificationKind{NotifyCreated, NotifyHidden, NotifyShown}, rec.kinds())
}

func TestEntityRestyleAndInvalidate(t *testing.T) {
	rec := &recorder{}
	e := NewEntity(common.PartitionVolume)
	e.Attach(rec)
	m := model.NewModel(model.WithFaces(0, model.Quad(1, common.NewTextureID(), common.RenderPassSimple)))

	e.Restyle(m, NotifyColor)
	e.Restyle(m, NotifyRemoved)
	e.Invalidate(NotifyShadow)
	e.Invalidate(NotifyTransform)
	require.Equal(t, []NotificationKind{NotifyCreated, NotifyColor, NotifyTexture, NotifyShadow}, rec.kinds())
	require.Equal(t, m, e.Model())
}

func TestNotificationRebuildFlags(t *testing.T) {
	require.Equal(t, drawable.RebuildColor, NotifyColor.RebuildFlags())
	require.Equal(t, drawable.RebuildAll, NotifyGeometry.RebuildFlags())
	require.NotZero(t, NotifyTexture.RebuildFlags()&drawable.RebuildVolume)
	require.Zero(t, NotifyTransform.RebuildFlags())
	require.Equal(t, "texture", NotifyTexture.String())
	require.Equal(t, "NotificationKind(99)", NotificationKind(99).String())
}

func TestEntityBuilderOptions(t *testing.T) {
	parent := NewEntity(common.PartitionBridge, AsBridge())
	child := NewEntity(common.PartitionAttachment,
		WithParent(parent.ID()),
		WithRotation(0, mgl32.DegToRad(90), 0),
		WithScale(1, 2, 1),
		WithActive(true),
		WithEnabled(false),
	)
	require.True(t, parent.IsBridge())
	require.Equal(t, parent.ID(), child.Parent())
	require.True(t, child.Active())
	require.False(t, child.Enabled())
	require.Equal(t, mgl32.Vec3{1, 2, 1}, child.Scale())
	fwd := child.Rotation().Rotate(mgl32.Vec3{0, 0, 1})
	require.InDelta(t, 1, fwd[0], 1e-5)
}
