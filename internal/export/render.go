// Package export rasterizes floor plans to PNG previews.
package export

import (
	"fmt"
	"image"
	"io"
	"math"

	"github.com/gogpu/gg"

	"github.com/plantrace/plantrace/backend-go/internal/engine"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// MaxSide bounds the longer side of a rendered preview in pixels.
const MaxSide = 4096

// Frame places document coordinates on the output canvas: the document
// rectangle Bounds is drawn at Padding from the top left, scaled by Scale.
type Frame struct {
	Bounds  geom.Rect
	Scale   float64
	Padding float64
}

// Size returns the canvas size in pixels.
func (f Frame) Size() (int, int) {
	w := int(math.Ceil(f.Bounds.Width*f.Scale + 2*f.Padding))
	h := int(math.Ceil(f.Bounds.Height*f.Scale + 2*f.Padding))
	return max(w, 1), max(h, 1)
}

// Fit reduces Scale so neither side exceeds MaxSide.
func (f Frame) Fit() Frame {
	if f.Scale <= 0 {
		f.Scale = 1
	}
	side := math.Max(f.Bounds.Width, f.Bounds.Height) * f.Scale
	if limit := MaxSide - 2*f.Padding; side > limit && side > 0 {
		f.Scale *= limit / side
	}
	return f
}

func (f Frame) matrix() gg.Matrix {
	return gg.Translate(f.Padding, f.Padding).
		Multiply(gg.Scale(f.Scale, f.Scale)).
		Multiply(gg.Translate(-f.Bounds.X, -f.Bounds.Y))
}

// Render paints draw commands onto a new canvas. Images are looked up by
// their source; sources missing from images are skipped. Text commands are
// not rendered.
func Render(cmds []engine.DrawCommand, frame Frame, images map[string]image.Image) (*gg.Context, error) {
	w, h := frame.Size()
	dc := gg.NewContext(w, h)
	dc.ClearWithColor(gg.Hex("#ffffff"))

	base := frame.matrix()
	for i, cmd := range cmds {
		dc.SetTransform(base.Multiply(toMatrix(cmd.Transform)))
		if err := paint(dc, cmd, images); err != nil {
			dc.Close()
			return nil, fmt.Errorf("command %d (%s %s): %w", i, cmd.Op, cmd.ObjectID, err)
		}
	}
	return dc, nil
}

// EncodePNG renders and writes a PNG to w.
func EncodePNG(w io.Writer, cmds []engine.DrawCommand, frame Frame, images map[string]image.Image) error {
	dc, err := Render(cmds, frame, images)
	if err != nil {
		return err
	}
	defer dc.Close()
	return dc.EncodePNG(w)
}

func paint(dc *gg.Context, cmd engine.DrawCommand, images map[string]image.Image) error {
	opacity := cmd.Opacity
	if opacity <= 0 {
		opacity = 1
	}

	switch cmd.Op {
	case "path":
		if !tracePath(dc, cmd.Path) {
			return nil
		}
		return fillAndStroke(dc, cmd, opacity)

	case "circle":
		dc.DrawCircle(cmd.X, cmd.Y, cmd.Radius)
		return fillAndStroke(dc, cmd, opacity)

	case "image":
		img := images[cmd.ImageSrc]
		if img == nil {
			return nil
		}
		dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
			DstWidth:  cmd.ImageWidth,
			DstHeight: cmd.ImageHeight,
			Opacity:   opacity,
		})
	}
	return nil
}

func fillAndStroke(dc *gg.Context, cmd engine.DrawCommand, opacity float64) error {
	hasStroke := cmd.Stroke != "" && cmd.StrokeWidth > 0
	if cmd.Fill != "" {
		setColor(dc, cmd.Fill, opacity)
		if err := dc.FillPreserve(); err != nil {
			return fmt.Errorf("fill: %w", err)
		}
	}
	if hasStroke {
		setColor(dc, cmd.Stroke, opacity)
		dc.SetLineWidth(cmd.StrokeWidth)
		if err := dc.StrokePreserve(); err != nil {
			return fmt.Errorf("stroke: %w", err)
		}
	}
	dc.ClearPath()
	return nil
}

func setColor(dc *gg.Context, hex string, opacity float64) {
	c := gg.Hex(hex)
	dc.SetRGBA(c.R, c.G, c.B, c.A*opacity)
}

// tracePath replays canvas-style commands ("M", "L", "Z"). It reports
// whether anything was traced.
func tracePath(dc *gg.Context, path []engine.PathCommand) bool {
	traced := false
	for _, pc := range path {
		if len(pc) == 0 {
			continue
		}
		op, _ := pc[0].(string)
		switch op {
		case "M", "L":
			x, okX := number(pc, 1)
			y, okY := number(pc, 2)
			if !okX || !okY {
				continue
			}
			if op == "M" {
				dc.MoveTo(x, y)
			} else {
				dc.LineTo(x, y)
			}
			traced = true
		case "Z":
			dc.ClosePath()
		}
	}
	return traced
}

func number(pc engine.PathCommand, i int) (float64, bool) {
	if i >= len(pc) {
		return 0, false
	}
	switch v := pc[i].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	}
	return 0, false
}

// toMatrix converts a canvas [a, b, c, d, e, f] transform.
func toMatrix(t []float64) gg.Matrix {
	if len(t) != 6 {
		return gg.Identity()
	}
	return gg.Matrix{
		A: t[0], B: t[2], C: t[4],
		D: t[1], E: t[3], F: t[5],
	}
}
