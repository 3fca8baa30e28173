package loader

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

// gltfParser decodes glTF and GLB documents and reads typed accessor data out of their buffers.
type gltfParser struct {
	baseDir  string
	document *gltfDocument
	binChunk []byte
}

func newGLTFParser(baseDir string) *gltfParser {
	return &gltfParser{baseDir: baseDir}
}

// parseFile reads path and parses it as GLB when the extension or magic number says so, or as
// glTF JSON otherwise.
func (p *gltfParser) parseFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.New("reading model file failed").
			WithTag("path", path).
			Wrap(err)
	}
	isGLB := strings.EqualFold(filepath.Ext(path), ".glb") ||
		(len(data) >= 4 && binary.LittleEndian.Uint32(data[:4]) == gltfGLBMagic)
	return p.parse(data, isGLB)
}

func (p *gltfParser) parseReader(r io.Reader, isGLB bool) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return errors.New("reading model data failed").Wrap(err)
	}
	return p.parse(data, isGLB)
}

func (p *gltfParser) parse(data []byte, isGLB bool) error {
	if isGLB {
		var err error
		if data, err = p.splitGLB(data); err != nil {
			return err
		}
	}

	var doc gltfDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return errors.New("decoding glTF json failed").
			WithType(common.ErrTypeInvalidAsset).Wrap(err)
	}
	if !strings.HasPrefix(doc.Asset.Version, "2.") {
		return errors.New("unsupported glTF version").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("version", doc.Asset.Version)
	}
	for _, ext := range doc.ExtensionsRequired {
		if ext != gltfExtensionUnlit {
			return errors.New("required glTF extension not supported").
				WithType(common.ErrTypeInvalidAsset).
				WithTag("extension", ext)
		}
	}
	if err := p.loadBuffers(&doc); err != nil {
		return err
	}
	p.document = &doc
	return nil
}

// splitGLB returns the JSON chunk of a GLB container and keeps its BIN chunk for buffer 0.
// Reference: https://registry.khronos.org/glTF/specs/2.0/glTF-2.0.html#glb-file-format-specification
func (p *gltfParser) splitGLB(data []byte) ([]byte, error) {
	if len(data) < 12 {
		return nil, errors.New("GLB file too small").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("size", len(data))
	}

	r := bytes.NewReader(data)
	var header gltfGLBHeader
	if err := binary.Read(r, binary.LittleEndian, &header); err != nil {
		return nil, errors.New("reading GLB header failed").
			WithType(common.ErrTypeInvalidAsset).Wrap(err)
	}
	switch {
	case header.Magic != gltfGLBMagic:
		return nil, errors.New("invalid GLB magic number").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("magic", header.Magic)
	case header.Version != gltfGLBVersion:
		return nil, errors.New("unsupported GLB version").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("version", header.Version)
	}

	var jsonChunk []byte
	for {
		var ch gltfGLBChunkHeader
		if err := binary.Read(r, binary.LittleEndian, &ch); err != nil {
			if err == io.EOF {
				break
			}
			return nil, errors.New("reading GLB chunk header failed").
				WithType(common.ErrTypeInvalidAsset).Wrap(err)
		}
		chunk := make([]byte, ch.ChunkLength)
		if _, err := io.ReadFull(r, chunk); err != nil {
			return nil, errors.New("reading GLB chunk failed").
				WithType(common.ErrTypeInvalidAsset).Wrap(err)
		}
		switch ch.ChunkType {
		case gltfGLBChunkJSON:
			jsonChunk = chunk
		case gltfGLBChunkBIN:
			p.binChunk = chunk
		}
	}
	if jsonChunk == nil {
		return nil, errors.New("GLB file has no JSON chunk").
			WithType(common.ErrTypeInvalidAsset)
	}
	return jsonChunk, nil
}

func (p *gltfParser) loadBuffers(doc *gltfDocument) error {
	for i := range doc.Buffers {
		buf := &doc.Buffers[i]
		switch {
		case buf.URI == "" && i == 0 && p.binChunk != nil:
			buf.Data = p.binChunk
		case buf.URI == "":
			return errors.New("buffer has no uri").
				WithType(common.ErrTypeInvalidAsset).WithTag("buffer", i)
		default:
			data, err := p.loadURI(buf.URI)
			if err != nil {
				return errors.New("loading buffer failed").
					WithTag("buffer", i).
					Wrap(err)
			}
			buf.Data = data
		}
		if len(buf.Data) < buf.ByteLength {
			return errors.New("buffer shorter than declared").
				WithType(common.ErrTypeInvalidAsset).
				WithTag("buffer", i).
				WithTag("declared", buf.ByteLength).
				WithTag("actual", len(buf.Data))
		}
	}
	return nil
}

// resolve returns the path of a document-relative uri.
func (p *gltfParser) resolve(uri string) string {
	return filepath.Clean(filepath.Join(p.baseDir, uri))
}

// loadURI resolves a base64 data URI or a path relative to the document.
func (p *gltfParser) loadURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, "data:") {
		return os.ReadFile(p.resolve(uri))
	}

	comma := strings.IndexByte(uri, ',')
	if comma < 0 {
		return nil, errors.New("malformed data uri").
			WithType(common.ErrTypeInvalidAsset)
	}
	if !strings.Contains(uri[5:comma], "base64") {
		return nil, errors.New("data uri is not base64").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("header", uri[5:comma])
	}
	data, err := base64.StdEncoding.DecodeString(uri[comma+1:])
	if err != nil {
		return nil, errors.New("decoding data uri failed").
			WithType(common.ErrTypeInvalidAsset).Wrap(err)
	}
	return data, nil
}

// accessor returns the accessor at index and the tightly packed bytes it covers.
func (p *gltfParser) accessor(index int) (*gltfAccessor, []byte, error) {
	if index < 0 || index >= len(p.document.Accessors) {
		return nil, nil, errors.New("accessor index out of range").
			WithType(common.ErrTypeInvalidIndex).
			WithTag("accessor", index)
	}
	acc := &p.document.Accessors[index]
	switch {
	case acc.Sparse != nil:
		return nil, nil, errors.New("sparse accessors are not supported").
			WithType(common.ErrTypeInvalidAsset).WithTag("accessor", index)
	case acc.BufferView == nil:
		return nil, nil, errors.New("accessor has no buffer view").
			WithType(common.ErrTypeInvalidAsset).WithTag("accessor", index)
	case *acc.BufferView < 0 || *acc.BufferView >= len(p.document.BufferViews):
		return nil, nil, errors.New("buffer view index out of range").
			WithType(common.ErrTypeInvalidAsset).WithTag("accessor", index)
	}

	bv := &p.document.BufferViews[*acc.BufferView]
	if bv.Buffer < 0 || bv.Buffer >= len(p.document.Buffers) {
		return nil, nil, errors.New("buffer index out of range").
			WithType(common.ErrTypeInvalidAsset).WithTag("accessor", index)
	}
	buf := p.document.Buffers[bv.Buffer].Data

	elem := componentSize(acc.ComponentType) * componentCount(acc.Type)
	if elem == 0 {
		return nil, nil, errors.New("unknown accessor layout").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("accessor", index).
			WithTag("type", acc.Type).
			WithTag("component_type", acc.ComponentType)
	}
	stride := elem
	if bv.ByteStride != nil && *bv.ByteStride > 0 {
		stride = *bv.ByteStride
	}

	base := bv.ByteOffset + acc.ByteOffset
	if acc.Count > 0 && base+(acc.Count-1)*stride+elem > len(buf) {
		return nil, nil, errors.New("accessor runs past its buffer").
			WithType(common.ErrTypeInvalidAsset).WithTag("accessor", index)
	}

	out := make([]byte, acc.Count*elem)
	for i := 0; i < acc.Count; i++ {
		src := base + i*stride
		copy(out[i*elem:(i+1)*elem], buf[src:src+elem])
	}
	return acc, out, nil
}

// floats reads an accessor of the given type as float32 components, normalizing integer data.
func (p *gltfParser) floats(index int, typ string) ([]float32, error) {
	acc, data, err := p.accessor(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != typ {
		return nil, errors.New("unexpected accessor type").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("accessor", index).
			WithTag("want", typ).
			WithTag("got", acc.Type)
	}

	n := acc.Count * componentCount(typ)
	out := make([]float32, n)
	switch acc.ComponentType {
	case gltfComponentTypeFloat:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
		}
	case gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = float32(data[i]) / 255
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = float32(binary.LittleEndian.Uint16(data[i*2:])) / 65535
		}
	case gltfComponentTypeByte:
		for i := range out {
			out[i] = max(float32(int8(data[i]))/127, -1)
		}
	case gltfComponentTypeShort:
		for i := range out {
			out[i] = max(float32(int16(binary.LittleEndian.Uint16(data[i*2:])))/32767, -1)
		}
	default:
		return nil, errors.New("unsupported component type").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("accessor", index).
			WithTag("component_type", acc.ComponentType)
	}
	return out, nil
}

func (p *gltfParser) vec2s(index int) ([][2]float32, error) {
	f, err := p.floats(index, gltfAccessorTypeVec2)
	if err != nil {
		return nil, err
	}
	out := make([][2]float32, len(f)/2)
	for i := range out {
		out[i] = [2]float32{f[i*2], f[i*2+1]}
	}
	return out, nil
}

func (p *gltfParser) vec3s(index int) ([][3]float32, error) {
	f, err := p.floats(index, gltfAccessorTypeVec3)
	if err != nil {
		return nil, err
	}
	out := make([][3]float32, len(f)/3)
	for i := range out {
		out[i] = [3]float32{f[i*3], f[i*3+1], f[i*3+2]}
	}
	return out, nil
}

func (p *gltfParser) vec4s(index int) ([][4]float32, error) {
	f, err := p.floats(index, gltfAccessorTypeVec4)
	if err != nil {
		return nil, err
	}
	out := make([][4]float32, len(f)/4)
	for i := range out {
		out[i] = [4]float32{f[i*4], f[i*4+1], f[i*4+2], f[i*4+3]}
	}
	return out, nil
}

// colors reads COLOR_0, which may be RGB or RGBA.
func (p *gltfParser) colors(index int) ([][4]float32, error) {
	if index >= 0 && index < len(p.document.Accessors) && p.document.Accessors[index].Type == gltfAccessorTypeVec3 {
		rgb, err := p.vec3s(index)
		if err != nil {
			return nil, err
		}
		out := make([][4]float32, len(rgb))
		for i, c := range rgb {
			out[i] = [4]float32{c[0], c[1], c[2], 1}
		}
		return out, nil
	}
	return p.vec4s(index)
}

func (p *gltfParser) indices(index int) ([]uint32, error) {
	acc, data, err := p.accessor(index)
	if err != nil {
		return nil, err
	}
	if acc.Type != gltfAccessorTypeScalar {
		return nil, errors.New("index accessor is not scalar").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("accessor", index).
			WithTag("type", acc.Type)
	}

	out := make([]uint32, acc.Count)
	switch acc.ComponentType {
	case gltfComponentTypeUnsignedByte:
		for i := range out {
			out[i] = uint32(data[i])
		}
	case gltfComponentTypeUnsignedShort:
		for i := range out {
			out[i] = uint32(binary.LittleEndian.Uint16(data[i*2:]))
		}
	case gltfComponentTypeUnsignedInt:
		for i := range out {
			out[i] = binary.LittleEndian.Uint32(data[i*4:])
		}
	default:
		return nil, errors.New("unsupported index component type").
			WithType(common.ErrTypeInvalidAsset).
			WithTag("accessor", index).
			WithTag("component_type", acc.ComponentType)
	}
	return out, nil
}

func componentSize(componentType int) int {
	switch componentType {
	case gltfComponentTypeByte, gltfComponentTypeUnsignedByte:
		return 1
	case gltfComponentTypeShort, gltfComponentTypeUnsignedShort:
		return 2
	case gltfComponentTypeUnsignedInt, gltfComponentTypeFloat:
		return 4
	default:
		return 0
	}
}

func componentCount(accessorType string) int {
	switch accessorType {
	case gltfAccessorTypeScalar:
		return 1
	case gltfAccessorTypeVec2:
		return 2
	case gltfAccessorTypeVec3:
		return 3
	case gltfAccessorTypeVec4:
		return 4
	case gltfAccessorTypeMat4:
		return 16
	default:
		return 0
	}
}
