package engine

import (
	"math"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Zoom limits. Probe sessions may zoom further in than edit sessions.
const (
	ZoomStep      = 0.05
	MinScale      = 0.05
	MaxEditScale  = 10
	MaxProbeScale = 50
)

// Viewport maps view (pointer) coordinates to document coordinates:
// view = doc*scale + offset.
type Viewport struct {
	scale    float64
	offset   geom.Point
	maxScale float64
}

// NewViewport returns a 100% viewport with the clamp for mode.
func NewViewport(mode Mode) *Viewport {
	maxScale := float64(MaxEditScale)
	if mode == ModeProbe {
		maxScale = MaxProbeScale
	}
	return &Viewport{scale: 1, maxScale: maxScale}
}

func (v *Viewport) Scale() float64 { return v.scale }

func (v *Viewport) Offset() geom.Point { return v.offset }

// MaxScale returns the upper zoom clamp.
func (v *Viewport) MaxScale() float64 { return v.maxScale }

// SetScale clamps s into range and returns the value applied.
func (v *Viewport) SetScale(s float64) float64 {
	s = math.Round(s*100) / 100
	v.scale = max(MinScale, min(s, v.maxScale))
	return v.scale
}

// Zoom changes the scale by step.
func (v *Viewport) Zoom(step float64) float64 {
	return v.SetScale(v.scale + step)
}

func (v *Viewport) Reset() {
	v.scale = 1
}

// Pan shifts the document under the view by delta view units.
func (v *Viewport) Pan(delta geom.Point) {
	v.offset = v.offset.Add(delta)
}

// Percent is the zoom level as shown in the toolbar.
func (v *Viewport) Percent() int {
	return int(math.Round(v.scale * 100))
}

// ToDocument converts a view point to document space.
func (v *Viewport) ToDocument(p geom.Point) geom.Point {
	return p.Sub(v.offset).Div(v.scale)
}

// ToView converts a document point to view space.
func (v *Viewport) ToView(p geom.Point) geom.Point {
	return p.Mul(v.scale).Add(v.offset)
}

// Matrix is the document-to-view transform.
func (v *Viewport) Matrix() geom.Matrix2D {
	return geom.Translate(v.offset.X, v.offset.Y).Multiply(geom.Scale(v.scale, v.scale))
}
