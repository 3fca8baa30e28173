package model

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/require"
)

func TestGPUVertexMarshal(t *testing.T) {
	v := GPUVertex{
		Position: [3]float32{1, 2, 3},
		Color:    [4]float32{0.5, 0.25, 0, 1},
		Tangent:  [4]float32{0, 0, 0, -1},
	}
	require.Equal(t, VertexStride, v.Size())

	buf := v.Marshal()
	require.Len(t, buf, VertexStride)
	read := func(i int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:])) }
	require.Equal(t, float32(2), read(1))
	require.Equal(t, float32(0.25), read(9))
	require.Equal(t, float32(-1), read(15))
}

func TestMarshalRuns(t *testing.T) {
	verts := []GPUVertex{{Position: [3]float32{1, 0, 0}}, {Position: [3]float32{0, 7, 0}}}
	buf := MarshalVertices(verts)
	require.Len(t, buf, 2*VertexStride)
	require.Equal(t, verts[1].Marshal(), buf[VertexStride:])

	idx := MarshalIndices([]uint32{3, 65536})
	require.Len(t, idx, 8)
	require.Equal(t, uint32(65536), binary.LittleEndian.Uint32(idx[4:]))
}

func TestFaceExtentsAndKey(t *testing.T) {
	tex := common.NewTextureID()
	f := Quad(2, tex, common.RenderPassSimple)

	e := f.Extents()
	require.Equal(t, mgl32.Vec3{}, e.Center)
	require.Equal(t, mgl32.Vec3{2, 2, 0}, e.HalfExtents)
	require.Equal(t, 6, f.IndexCount())
	require.False(t, f.Blended())
	require.Equal(t, BatchKey{Texture: tex, Pass: common.RenderPassSimple}, f.Key())

	f.Alpha = true
	require.True(t, f.Blended())
}

func TestBoxIsClosed(t *testing.T) {
	f := Box(1, common.NilTexture, common.RenderPassSimple)
	require.Len(t, f.Vertices, 24)
	require.Len(t, f.Indices, 36)

	e := f.Extents()
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{1, 1, 1}, e.HalfExtents, 1e-6))
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{}, e.Center, 1e-6))
}

func TestBatchKeyCompare(t *testing.T) {
	a := BatchKey{Pass: common.RenderPassSimple}
	b := BatchKey{Pass: common.RenderPassAlpha}
	require.Equal(t, -1, a.Compare(b))
	require.Equal(t, 1, b.Compare(a))
	require.Equal(t, 0, a.Compare(a))
}

func TestModelLODs(t *testing.T) {
	tex := common.NewTextureID()
	high := Box(1, tex, common.RenderPassSimple)
	low := Quad(1, tex, common.RenderPassSimple)

	m := NewModel(
		WithName("crate"),
		WithFaces(0, high),
		WithFaces(2, low),
	)
	require.Equal(t, "crate", m.Name())
	require.Equal(t, 3, m.LODCount())
	require.Equal(t, 24, m.VertexCount(0))
	require.Equal(t, 24, m.VertexCount(1))
	require.Equal(t, 4, m.VertexCount(2))
	require.Equal(t, 4, m.VertexCount(9))
	require.Equal(t, 24, m.VertexCount(-1))
	require.True(t, common.NearlyEqualVec3(mgl32.Vec3{1, 1, 1}, m.Bounds().HalfExtents, 1e-6))
}

func TestEmptyModel(t *testing.T) {
	m := NewModel()
	require.Nil(t, m.Faces(0))
	require.Equal(t, 0, m.LODCount())
	require.Equal(t, common.BoundsEpsilon, m.Bounds().HalfExtents.X())
}
