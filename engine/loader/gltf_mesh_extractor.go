package loader

import (
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/go-gl/mathgl/mgl32"
)

// maxNodeDepth bounds the node walk so malformed documents with cycles terminate.
const maxNodeDepth = 64

// meshExtractor flattens the node hierarchy of a parsed document into model faces with node
// transforms baked into the vertices.
type meshExtractor struct {
	parser    *gltfParser
	key       string
	lodMarker string
	textures  *registry[common.TextureID]
	materials *registry[common.MaterialID]

	// faces per detail level
	lods map[int][]model.Face
}

func newMeshExtractor(p *gltfParser, key, lodMarker string, textures *registry[common.TextureID], materials *registry[common.MaterialID]) *meshExtractor {
	return &meshExtractor{
		parser:    p,
		key:       key,
		lodMarker: lodMarker,
		textures:  textures,
		materials: materials,
		lods:      make(map[int][]model.Face),
	}
}

// extract walks the default scene, or every root node when the document has no scene.
func (x *meshExtractor) extract() ([]model.ModelBuilderOption, error) {
	doc := x.parser.document
	for _, root := range x.roots() {
		if err := x.walk(root, mgl32.Ident4(), 0, 0); err != nil {
			return nil, err
		}
	}
	if len(x.lods) == 0 {
		return nil, errors.New("model has no triangle geometry").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("model", x.key).
			WithTag("meshes", len(doc.Meshes))
	}

	levels := make([]int, 0, len(x.lods))
	for lod := range x.lods {
		levels = append(levels, lod)
	}
	sort.Ints(levels)

	options := make([]model.ModelBuilderOption, 0, len(levels))
	for _, lod := range levels {
		options = append(options, model.WithFaces(lod, x.lods[lod]...))
	}
	return options, nil
}

func (x *meshExtractor) roots() []int {
	doc := x.parser.document
	if len(doc.Scenes) > 0 {
		scene := 0
		if doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes) {
			scene = *doc.Scene
		}
		return doc.Scenes[scene].Nodes
	}

	child := make([]bool, len(doc.Nodes))
	for _, n := range doc.Nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(child) {
				child[c] = true
			}
		}
	}
	var roots []int
	for i, isChild := range child {
		if !isChild {
			roots = append(roots, i)
		}
	}
	return roots
}

func (x *meshExtractor) walk(index int, parent mgl32.Mat4, lod, depth int) error {
	doc := x.parser.document
	if index < 0 || index >= len(doc.Nodes) {
		return errors.New("node index out of range").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("node", index)
	}
	if depth > maxNodeDepth {
		return errors.New("node hierarchy too deep").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("node", index)
	}

	n := &doc.Nodes[index]
	world := parent.Mul4(localMatrix(n))
	if l, ok := x.lodOf(n.Name); ok {
		lod = l
	}

	if n.Mesh != nil {
		if *n.Mesh < 0 || *n.Mesh >= len(doc.Meshes) {
			return errors.New("mesh index out of range").
				WithType(common.ErrTypeInvalidAsset).
				WithTag("node", index).
				WithTag("mesh", *n.Mesh)
		}
		mesh := &doc.Meshes[*n.Mesh]
		if l, ok := x.lodOf(mesh.Name); ok {
			lod = l
		}
		for i := range mesh.Primitives {
			face, ok, err := x.primitive(&mesh.Primitives[i], world)
			if err != nil {
				return errors.New("extracting primitive failed").
					WithTag("mesh", mesh.Name).
					WithTag("primitive", i).
					Wrap(err)
			}
			if ok {
				x.lods[lod] = append(x.lods[lod], face)
			}
		}
	}

	for _, c := range n.Children {
		if err := x.walk(c, world, lod, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// lodOf parses names like "rock_LOD2" into detail level 2.
func (x *meshExtractor) lodOf(name string) (int, bool) {
	if x.lodMarker == "" {
		return 0, false
	}
	i := strings.LastIndex(name, x.lodMarker)
	if i < 0 {
		return 0, false
	}
	lod, err := strconv.Atoi(name[i+len(x.lodMarker):])
	if err != nil || lod < 0 {
		return 0, false
	}
	return lod, true
}

func localMatrix(n *gltfNode) mgl32.Mat4 {
	if n.Matrix != nil {
		return mgl32.Mat4(*n.Matrix)
	}
	m := mgl32.Ident4()
	if t := n.Translation; t != nil {
		m = mgl32.Translate3D(t[0], t[1], t[2])
	}
	if r := n.Rotation; r != nil {
		q := mgl32.Quat{W: r[3], V: mgl32.Vec3{r[0], r[1], r[2]}}
		m = m.Mul4(q.Normalize().Mat4())
	}
	if s := n.Scale; s != nil {
		m = m.Mul4(mgl32.Scale3D(s[0], s[1], s[2]))
	}
	return m
}

// primitive converts one triangle primitive. Other topologies are skipped.
func (x *meshExtractor) primitive(prim *gltfPrimitive, world mgl32.Mat4) (model.Face, bool, error) {
	if prim.Mode != nil && *prim.Mode != gltfPrimitiveModeTriangles {
		logs.WithTag("model", x.key).
			WithTag("mode", *prim.Mode).
			Debug("skipping non-triangle primitive")
		return model.Face{}, false, nil
	}
	posIdx, ok := prim.Attributes["POSITION"]
	if !ok {
		return model.Face{}, false, nil
	}

	p := x.parser
	positions, err := p.vec3s(posIdx)
	if err != nil {
		return model.Face{}, false, err
	}
	var (
		normals  [][3]float32
		uvs      [][2]float32
		colors   [][4]float32
		tangents [][4]float32
	)
	if i, ok := prim.Attributes["NORMAL"]; ok {
		if normals, err = p.vec3s(i); err != nil {
			return model.Face{}, false, err
		}
	}
	if i, ok := prim.Attributes["TEXCOORD_0"]; ok {
		if uvs, err = p.vec2s(i); err != nil {
			return model.Face{}, false, err
		}
	}
	if i, ok := prim.Attributes["COLOR_0"]; ok {
		if colors, err = p.colors(i); err != nil {
			return model.Face{}, false, err
		}
	}
	if i, ok := prim.Attributes["TANGENT"]; ok {
		if tangents, err = p.vec4s(i); err != nil {
			return model.Face{}, false, err
		}
	}

	var indices []uint32
	if prim.Indices != nil {
		if indices, err = p.indices(*prim.Indices); err != nil {
			return model.Face{}, false, err
		}
		for _, ix := range indices {
			if int(ix) >= len(positions) {
				return model.Face{}, false, errors.New("index out of vertex range").
					WithType(common.ErrTypeInvalidAsset).
					WithTag("index", ix).
					WithTag("vertices", len(positions))
			}
		}
	}

	face := x.material(prim.Material)
	tint := baseColor(p.document, prim.Material)
	normalMat := world.Mat3().Inv().Transpose()
	// a mirroring transform flips the winding
	flip := world.Mat3().Det() < 0

	face.Vertices = make([]model.GPUVertex, len(positions))
	for i, pos := range positions {
		v := model.GPUVertex{Color: tint}
		v.Position = world.Mul4x1(mgl32.Vec3(pos).Vec4(1)).Vec3()
		if i < len(normals) {
			v.Normal = normalMat.Mul3x1(mgl32.Vec3(normals[i])).Normalize()
		}
		if i < len(uvs) {
			v.TexCoord = uvs[i]
		}
		if i < len(colors) {
			c := colors[i]
			v.Color = [4]float32{c[0] * tint[0], c[1] * tint[1], c[2] * tint[2], c[3] * tint[3]}
		}
		if i < len(tangents) {
			t := world.Mat3().Mul3x1(mgl32.Vec3{tangents[i][0], tangents[i][1], tangents[i][2]}).Normalize()
			v.Tangent = [4]float32{t[0], t[1], t[2], tangents[i][3]}
		}
		face.Vertices[i] = v
	}

	if flip {
		if indices == nil {
			indices = make([]uint32, len(positions))
			for i := range indices {
				indices[i] = uint32(i)
			}
		}
		for i := 0; i+2 < len(indices); i += 3 {
			indices[i+1], indices[i+2] = indices[i+2], indices[i+1]
		}
	}
	face.Indices = indices
	if normals == nil {
		flatNormals(&face)
	}
	return face, true, nil
}

// material maps a glTF material onto face batching state. Faces without a material share the
// document's default texture.
func (x *meshExtractor) material(index *int) model.Face {
	doc := x.parser.document
	if index == nil || *index < 0 || *index >= len(doc.Materials) {
		return model.Face{
			Texture: x.textures.get(x.key + "#default"),
			Pass:    common.RenderPassSimple,
		}
	}

	m := &doc.Materials[*index]
	face := model.Face{
		Material: x.materials.get(x.key + "#material" + strconv.Itoa(*index)),
		Pass:     common.RenderPassSimple,
	}
	face.Texture = x.textures.get(x.textureKey(m))

	switch {
	case m.AlphaMode == gltfAlphaModeBlend:
		face.Pass = common.RenderPassAlpha
	case m.Extensions[gltfExtensionUnlit] != nil:
		face.Pass = common.RenderPassFullbright
	case m.NormalTexture != nil:
		face.Pass = common.RenderPassBump
	}
	return face
}

// textureKey identifies the base color image so that models sharing an image file share a
// texture handle.
func (x *meshExtractor) textureKey(m *gltfMaterial) string {
	doc := x.parser.document
	if m.PbrMetallicRoughness == nil || m.PbrMetallicRoughness.BaseColorTexture == nil {
		return x.key + "#default"
	}
	ti := m.PbrMetallicRoughness.BaseColorTexture.Index
	if ti < 0 || ti >= len(doc.Textures) || doc.Textures[ti].Source == nil {
		return x.key + "#texture" + strconv.Itoa(ti)
	}
	src := *doc.Textures[ti].Source
	if src >= 0 && src < len(doc.Images) {
		if uri := doc.Images[src].URI; uri != "" && !strings.HasPrefix(uri, "data:") {
			return "file:" + x.parser.resolve(uri)
		}
	}
	return x.key + "#image" + strconv.Itoa(src)
}

func baseColor(doc *gltfDocument, index *int) [4]float32 {
	white := [4]float32{1, 1, 1, 1}
	if index == nil || *index < 0 || *index >= len(doc.Materials) {
		return white
	}
	pbr := doc.Materials[*index].PbrMetallicRoughness
	if pbr == nil || pbr.BaseColorFactor == nil {
		return white
	}
	return *pbr.BaseColorFactor
}

// flatNormals assigns every vertex the normal of the last triangle using it.
func flatNormals(f *model.Face) {
	tri := func(i int) uint32 {
		if f.Indices == nil {
			return uint32(i)
		}
		return f.Indices[i]
	}
	for i := 0; i+2 < f.IndexCount(); i += 3 {
		a, b, c := tri(i), tri(i+1), tri(i+2)
		pa := mgl32.Vec3(f.Vertices[a].Position)
		n := mgl32.Vec3(f.Vertices[b].Position).Sub(pa).Cross(mgl32.Vec3(f.Vertices[c].Position).Sub(pa))
		if n.Len() < 1e-12 {
			continue
		}
		n = n.Normalize()
		f.Vertices[a].Normal, f.Vertices[b].Normal, f.Vertices[c].Normal = n, n, n
	}
}
