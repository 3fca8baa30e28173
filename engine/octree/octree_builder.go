package octree

// TreeBuilderOption is a function that configures a Tree.
type TreeBuilderOption[K comparable] func(*Tree[K])

// WithCapacity sets how many entries a leaf holds before it subdivides.
//
// Parameters:
//   - capacity: the split threshold, values below 1 are ignored
//
// Returns:
//   - TreeBuilderOption[K]: the option
func WithCapacity[K comparable](capacity int) TreeBuilderOption[K] {
	return func(t *Tree[K]) {
		if capacity > 0 {
			t.capacity = capacity
		}
	}
}

// WithMinNodeSize sets the smallest edge length a node may be split down to.
func WithMinNodeSize[K comparable](size float32) TreeBuilderOption[K] {
	return func(t *Tree[K]) {
		if size > 0 {
			t.minNodeSize = size
		}
	}
}

// WithSlop sets the fractional tolerance used before a moved entry is relocated.
func WithSlop[K comparable](slop float32) TreeBuilderOption[K] {
	return func(t *Tree[K]) {
		if slop >= 0 {
			t.slop = slop
		}
	}
}

// WithMaxDepth bounds the height of the tree.
func WithMaxDepth[K comparable](depth int) TreeBuilderOption[K] {
	return func(t *Tree[K]) {
		if depth > 0 {
			t.maxDepth = depth
		}
	}
}

// WithListener registers the structural listener.
func WithListener[K comparable](l Listener[K]) TreeBuilderOption[K] {
	return func(t *Tree[K]) {
		t.listener = l
	}
}
