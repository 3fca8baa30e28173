package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
)

type doc = map[string]any

// triangleBuffer returns a buffer with one triangle in the XY plane followed by its uint16 indices.
func triangleBuffer() []byte {
	var b bytes.Buffer
	for _, f := range []float32{0, 0, 0, 1, 0, 0, 0, 1, 0} {
		binary.Write(&b, binary.LittleEndian, math.Float32bits(f))
	}
	for _, i := range []uint16{0, 1, 2, 0} { // padded to 4 bytes
		binary.Write(&b, binary.LittleEndian, i)
	}
	return b.Bytes()
}

// triangleDoc builds a document whose buffer 0 is triangleBuffer. nodes and meshes default to a
// single node drawing mesh 0.
func triangleDoc(uri string, extra doc) doc {
	d := doc{
		"asset": doc{"version": "2.0"},
		"buffers": []doc{{
			"byteLength": 44,
		}},
		"bufferViews": []doc{
			{"buffer": 0, "byteOffset": 0, "byteLength": 36},
			{"buffer": 0, "byteOffset": 36, "byteLength": 6},
		},
		"accessors": []doc{
			{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 3, "type": "VEC3"},
			{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 3, "type": "SCALAR"},
		},
		"meshes": []doc{{
			"name":       "tri",
			"primitives": []doc{{"attributes": doc{"POSITION": 0}, "indices": 1}},
		}},
		"nodes": []doc{{"mesh": 0}},
	}
	if uri != "" {
		d["buffers"].([]doc)[0]["uri"] = uri
	}
	for k, v := range extra {
		d[k] = v
	}
	return d
}

func dataURI(b []byte) string {
	return "data:application/octet-stream;base64," + base64.StdEncoding.EncodeToString(b)
}

func encode(t *testing.T, d doc) []byte {
	b, err := json.Marshal(d)
	require.NoError(t, err)
	return b
}

func glb(t *testing.T, d doc, bin []byte) []byte {
	js := encode(t, d)
	for len(js)%4 != 0 {
		js = append(js, ' ')
	}
	var b bytes.Buffer
	total := 12 + 8 + len(js) + 8 + len(bin)
	binary.Write(&b, binary.LittleEndian, gltfGLBHeader{Magic: gltfGLBMagic, Version: gltfGLBVersion, Length: uint32(total)})
	binary.Write(&b, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(js)), ChunkType: gltfGLBChunkJSON})
	b.Write(js)
	binary.Write(&b, binary.LittleEndian, gltfGLBChunkHeader{ChunkLength: uint32(len(bin)), ChunkType: gltfGLBChunkBIN})
	b.Write(bin)
	return b.Bytes()
}

func TestLoadReaderBakesNodeTransform(t *testing.T) {
	l := NewLoader()
	d := triangleDoc(dataURI(triangleBuffer()), doc{
		"nodes": []doc{{"mesh": 0, "translation": []float32{1, 2, 3}}},
	})

	m, err := l.LoadReader("tri.gltf", "", bytes.NewReader(encode(t, d)), false)
	require.NoError(t, err)
	require.Equal(t, "tri", m.Name())
	require.Equal(t, 1, m.LODCount())

	faces := m.Faces(0)
	require.Len(t, faces, 1)
	f := faces[0]
	require.Equal(t, []uint32{0, 1, 2}, f.Indices)
	require.Equal(t, [3]float32{1, 2, 3}, f.Vertices[0].Position)
	require.Equal(t, [3]float32{2, 2, 3}, f.Vertices[1].Position)
	require.Equal(t, common.RenderPassSimple, f.Pass)
	require.Equal(t, [4]float32{1, 1, 1, 1}, f.Vertices[0].Color)

	// no NORMAL attribute, the face normal is derived
	for _, v := range f.Vertices {
		require.InDeltaSlice(t, []float32{0, 0, 1}, v.Normal[:], 1e-6)
	}

	cached, ok := l.Get("tri.gltf")
	require.True(t, ok)
	require.Equal(t, m, cached)
	again, err := l.LoadReader("tri.gltf", "", strings.NewReader("not json"), false)
	require.NoError(t, err)
	require.Equal(t, m, again)
}

func TestLoadReaderGLBMaterial(t *testing.T) {
	l := NewLoader()
	d := triangleDoc("", doc{
		"materials": []doc{{
			"alphaMode":            "BLEND",
			"pbrMetallicRoughness": doc{"baseColorFactor": []float32{1, 0.5, 0.25, 0.5}},
		}},
		"meshes": []doc{{
			"primitives": []doc{{"attributes": doc{"POSITION": 0}, "indices": 1, "material": 0}},
		}},
	})

	m, err := l.LoadReader("blend.glb", "", bytes.NewReader(glb(t, d, triangleBuffer())), true)
	require.NoError(t, err)
	f := m.Faces(0)[0]
	require.Equal(t, common.RenderPassAlpha, f.Pass)
	require.True(t, f.Blended())
	require.Equal(t, [4]float32{1, 0.5, 0.25, 0.5}, f.Vertices[2].Color)
	require.NotEqual(t, common.MaterialID{}, f.Material)
}

func TestLoadReaderLODMarker(t *testing.T) {
	l := NewLoader()
	d := triangleDoc(dataURI(triangleBuffer()), doc{
		"nodes": []doc{
			{"name": "rock_LOD0", "mesh": 0},
			{"name": "rock_LOD1", "mesh": 0, "scale": []float32{2, 2, 2}},
		},
	})

	m, err := l.LoadReader("rock", "", bytes.NewReader(encode(t, d)), false)
	require.NoError(t, err)
	require.Equal(t, 2, m.LODCount())
	require.Equal(t, [3]float32{2, 0, 0}, m.Faces(1)[0].Vertices[1].Position)

	flat := NewLoader(WithLODMarker(""))
	m, err = flat.LoadReader("rock", "", bytes.NewReader(encode(t, d)), false)
	require.NoError(t, err)
	require.Equal(t, 1, m.LODCount())
	require.Len(t, m.Faces(0), 2)
}

func TestLoadReaderMirrorFlipsWinding(t *testing.T) {
	l := NewLoader()
	d := triangleDoc(dataURI(triangleBuffer()), doc{
		"nodes": []doc{{"mesh": 0, "scale": []float32{-1, 1, 1}}},
	})

	m, err := l.LoadReader("mirror", "", bytes.NewReader(encode(t, d)), false)
	require.NoError(t, err)
	f := m.Faces(0)[0]
	require.Equal(t, []uint32{0, 2, 1}, f.Indices)
	// the derived normal still faces +Z
	require.InDeltaSlice(t, []float32{0, 0, 1}, f.Vertices[0].Normal[:], 1e-6)
}

func TestLoadSharesTexturesAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tri.bin"), triangleBuffer(), 0o644))

	textured := doc{
		"images":    []doc{{"uri": "stone.png"}},
		"textures":  []doc{{"source": 0}},
		"materials": []doc{{"pbrMetallicRoughness": doc{"baseColorTexture": doc{"index": 0}}}},
		"meshes": []doc{{
			"primitives": []doc{{"attributes": doc{"POSITION": 0}, "indices": 1, "material": 0}},
		}},
	}
	for _, name := range []string{"a.gltf", "b.gltf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), encode(t, triangleDoc("tri.bin", textured)), 0o644))
	}

	l := NewLoader()
	a, err := l.Load(filepath.Join(dir, "a.gltf"))
	require.NoError(t, err)
	b, err := l.Load(filepath.Join(dir, "b.gltf"))
	require.NoError(t, err)

	ta, tb := a.Faces(0)[0].Texture, b.Faces(0)[0].Texture
	require.Equal(t, ta, tb)
	// materials are per document
	require.NotEqual(t, a.Faces(0)[0].Material, b.Faces(0)[0].Material)

	tex, ok := l.Texture(filepath.Join(dir, "stone.png"))
	require.True(t, ok)
	require.Equal(t, ta, tex)

	require.Len(t, l.Models(), 2)
	require.True(t, l.Evict(filepath.Join(dir, "a.gltf")))
	require.False(t, l.Evict(filepath.Join(dir, "a.gltf")))
	require.Len(t, l.Models(), 1)
}

func TestLoadRejectsInvalidAssets(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		glb  bool
	}{
		{
			name: "version",
			data: encode(t, triangleDoc(dataURI(triangleBuffer()), doc{"asset": doc{"version": "1.0"}})),
		},
		{
			name: "short buffer",
			data: encode(t, triangleDoc(dataURI(triangleBuffer()[:20]), nil)),
		},
		{
			name: "index past vertices",
			data: encode(t, triangleDoc(dataURI(triangleBuffer()), doc{
				"accessors": []doc{
					{"bufferView": 0, "componentType": gltfComponentTypeFloat, "count": 2, "type": "VEC3"},
					{"bufferView": 1, "componentType": gltfComponentTypeUnsignedShort, "count": 3, "type": "SCALAR"},
				},
			})),
		},
		{
			name: "required extension",
			data: encode(t, triangleDoc(dataURI(triangleBuffer()), doc{"extensionsRequired": []string{"KHR_draco_mesh_compression"}})),
		},
		{
			name: "bad magic",
			data: []byte("definitely not a glb file"),
			glb:  true,
		},
		{
			name: "no geometry",
			data: encode(t, triangleDoc(dataURI(triangleBuffer()), doc{"nodes": []doc{{"name": "empty"}}})),
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := NewLoader().LoadReader(test.name, "", bytes.NewReader(test.data), test.glb)
			require.Error(t, err)
			require.True(t, errors.IsType(err, common.ErrTypeInvalidAsset))
		})
	}
}
