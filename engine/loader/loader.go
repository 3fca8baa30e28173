package loader

import (
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Carmen-Shannon/oxy-cull/common"
	"github.com/Carmen-Shannon/oxy-cull/engine/model"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
)

// DefaultLODMarker splits a node or mesh name from its detail level, as in "rock_LOD1".
const DefaultLODMarker = "_LOD"

// registry hands out one stable handle per key.
type registry[T comparable] struct {
	mu      sync.Mutex
	handles map[string]T
	create  func() T
}

func newRegistry[T comparable](create func() T) *registry[T] {
	return &registry[T]{handles: make(map[string]T), create: create}
}

func (r *registry[T]) get(key string) T {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	if !ok {
		h = r.create()
		r.handles[key] = h
	}
	return h
}

func (r *registry[T]) lookup(key string) (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handles[key]
	return h, ok
}

// loader is the implementation of the Loader interface.
type loader struct {
	mu sync.RWMutex

	modelCache map[string]model.Model
	lodMarker  string

	textures  *registry[common.TextureID]
	materials *registry[common.MaterialID]
}

// Loader imports glTF and GLB files into models and caches them by path.
// Texture and material handles are shared across every model the loader produced, so models that
// reference the same image file batch together.
type Loader interface {
	// Load imports a model file and caches the result.
	// If the model is already cached (by file path), the cached version is returned.
	// Both .gltf and .glb files are accepted; GLB is also detected by its magic number.
	//
	// Parameters:
	//   - path: the file path to the model file
	//
	// Returns:
	//   - model.Model: the loaded and cached model
	//   - error: error if loading fails
	Load(path string) (model.Model, error)

	// LoadReader imports a model from a reader and caches it by the given name.
	// External buffers are resolved relative to baseDir.
	//
	// Parameters:
	//   - name: the cache key for the loaded model
	//   - baseDir: the directory external buffer uris are relative to
	//   - r: the reader providing model data
	//   - isGLB: true if the reader provides GLB binary data
	//
	// Returns:
	//   - model.Model: the loaded model
	//   - error: error if loading fails
	LoadReader(name, baseDir string, r io.Reader, isGLB bool) (model.Model, error)

	// Get retrieves a cached model by name.
	//
	// Parameters:
	//   - name: the cache key to look up
	//
	// Returns:
	//   - model.Model: the cached model
	//   - bool: whether the model was cached
	Get(name string) (model.Model, bool)

	// Evict drops a model from the cache. Handles it used stay registered.
	Evict(name string) bool

	// Models returns a copy of the model cache.
	//
	// Returns:
	//   - map[string]model.Model: all cached models keyed by name
	Models() map[string]model.Model

	// Texture returns the handle assigned to an image file, if any model referenced it.
	//
	// Parameters:
	//   - path: the image path, relative paths being resolved from the working directory
	//
	// Returns:
	//   - common.TextureID: the texture handle
	//   - bool: whether the image was seen
	Texture(path string) (common.TextureID, bool)
}

var _ Loader = &loader{}

// NewLoader creates a new Loader with the given options applied.
//
// Parameters:
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: a new instance of Loader
func NewLoader(options ...LoaderBuilderOption) Loader {
	l := &loader{
		modelCache: make(map[string]model.Model),
		lodMarker:  DefaultLODMarker,
		textures:   newRegistry(common.NewTextureID),
		materials:  newRegistry(common.NewMaterialID),
	}
	for _, option := range options {
		option(l)
	}
	return l
}

func (l *loader) Load(path string) (model.Model, error) {
	if m, ok := l.Get(path); ok {
		return m, nil
	}

	p := newGLTFParser(filepath.Dir(path))
	if err := p.parseFile(path); err != nil {
		return nil, errors.New("loading model failed").
			WithTag("path", path).
			Wrap(err)
	}
	return l.build(path, p)
}

func (l *loader) LoadReader(name, baseDir string, r io.Reader, isGLB bool) (model.Model, error) {
	if m, ok := l.Get(name); ok {
		return m, nil
	}

	p := newGLTFParser(baseDir)
	if err := p.parseReader(r, isGLB); err != nil {
		return nil, errors.New("loading model failed").
			WithTag("name", name).
			Wrap(err)
	}
	return l.build(name, p)
}

// build extracts the parsed document into a model and caches it. A concurrent load of the same
// key keeps the first model stored.
func (l *loader) build(key string, p *gltfParser) (model.Model, error) {
	options, err := newMeshExtractor(p, key, l.lodMarker, l.textures, l.materials).extract()
	if err != nil {
		return nil, errors.New("loading model failed").
			WithTag("name", key).
			Wrap(err)
	}
	name := strings.TrimSuffix(filepath.Base(key), filepath.Ext(key))
	m := model.NewModel(append([]model.ModelBuilderOption{model.WithName(name)}, options...)...)

	l.mu.Lock()
	defer l.mu.Unlock()
	if cached, ok := l.modelCache[key]; ok {
		return cached, nil
	}
	l.modelCache[key] = m

	logs.WithTag("model", key).
		WithTag("lods", m.LODCount()).
		WithTag("vertices", m.VertexCount(0)).
		Debug("model loaded")
	return m, nil
}

func (l *loader) Get(name string) (model.Model, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.modelCache[name]
	return m, ok
}

func (l *loader) Evict(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.modelCache[name]
	delete(l.modelCache, name)
	return ok
}

func (l *loader) Models() map[string]model.Model {
	l.mu.RLock()
	defer l.mu.RUnlock()
	cp := make(map[string]model.Model, len(l.modelCache))
	for k, v := range l.modelCache {
		cp[k] = v
	}
	return cp
}

func (l *loader) Texture(path string) (common.TextureID, bool) {
	return l.textures.lookup("file:" + filepath.Clean(path))
}
