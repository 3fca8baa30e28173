package common

import (
	"bytes"

	"github.com/google/uuid"
)

// DrawableID is a stable handle to a Drawable in a drawable store. The zero value is nil.
type DrawableID uint64

// GroupID is a stable handle to a spatial group in a group store. The zero value is nil.
type GroupID uint64

// NodeID is a stable handle to an octree node within one tree. The zero value is nil.
type NodeID uint64

// NilDrawable, NilGroup and NilNode are the invalid handles.
const (
	NilDrawable DrawableID = 0
	NilGroup    GroupID    = 0
	NilNode     NodeID     = 0
)

// TextureID is an opaque texture handle owned by the texture registry.
// It is only ever used here as a sort and batch key.
type TextureID uuid.UUID

// MaterialID is an opaque material handle owned by the material registry.
type MaterialID uuid.UUID

// NilTexture and NilMaterial mark faces without a texture or material.
var (
	NilTexture  = TextureID(uuid.Nil)
	NilMaterial = MaterialID(uuid.Nil)
)

// NewTextureID returns a random texture handle.
func NewTextureID() TextureID { return TextureID(uuid.New()) }

// NewMaterialID returns a random material handle.
func NewMaterialID() MaterialID { return MaterialID(uuid.New()) }

// Compare orders texture handles bytewise.
func (t TextureID) Compare(o TextureID) int { return bytes.Compare(t[:], o[:]) }

// String returns the canonical uuid form.
func (t TextureID) String() string { return uuid.UUID(t).String() }

// Compare orders material handles bytewise.
func (m MaterialID) Compare(o MaterialID) int { return bytes.Compare(m[:], o[:]) }

// String returns the canonical uuid form.
func (m MaterialID) String() string { return uuid.UUID(m).String() }
