package common

import (
	"fmt"
	"strings"
)

// RenderPass identifies the bucket a draw descriptor is dispatched in.
type RenderPass int

const (
	RenderPassSimple RenderPass = iota
	RenderPassFullbright
	RenderPassBump
	RenderPassTerrain
	RenderPassWater
	RenderPassAlpha
	RenderPassParticle
	RenderPassHUD

	// NumRenderPasses is the number of render passes.
	NumRenderPasses
)

var renderPassNames = [NumRenderPasses]string{
	RenderPassSimple:     "simple",
	RenderPassFullbright: "fullbright",
	RenderPassBump:       "bump",
	RenderPassTerrain:    "terrain",
	RenderPassWater:      "water",
	RenderPassAlpha:      "alpha",
	RenderPassParticle:   "particle",
	RenderPassHUD:        "hud",
}

// String returns the pass name.
func (p RenderPass) String() string {
	if p < 0 || p >= NumRenderPasses {
		return fmt.Sprintf("RenderPass(%d)", int(p))
	}
	return renderPassNames[p]
}

// Valid reports whether p is a known pass.
func (p RenderPass) Valid() bool { return p >= 0 && p < NumRenderPasses }

// Blended reports whether draws in this pass are alpha blended and therefore order dependent.
func (p RenderPass) Blended() bool {
	return p == RenderPassAlpha || p == RenderPassParticle || p == RenderPassWater
}

// MarshalText implements encoding.TextMarshaler.
func (p RenderPass) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid render pass %d", int(p))
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *RenderPass) UnmarshalText(text []byte) error {
	name := strings.ToLower(strings.TrimSpace(string(text)))
	for i, n := range renderPassNames {
		if n == name {
			*p = RenderPass(i)
			return nil
		}
	}
	return fmt.Errorf("unknown render pass %q", name)
}
