package engine

import (
	"math"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// HitKind classifies what a hit test found.
type HitKind int

const (
	HitNone HitKind = iota
	HitSegment
	HitStroke
	HitFill
	HitText
)

func (k HitKind) String() string {
	switch k {
	case HitSegment:
		return "segment"
	case HitStroke:
		return "stroke"
	case HitFill:
		return "fill"
	case HitText:
		return "text"
	}
	return "none"
}

// HitOptions select which parts of an outline can be hit.
type HitOptions struct {
	Segments  bool
	Stroke    bool
	Fill      bool
	Tolerance float64
}

// DefaultHitOptions test segments, strokes and fills within 5 units.
var DefaultHitOptions = HitOptions{Segments: true, Stroke: true, Fill: true, Tolerance: HitTolerance}

// Hit is the result of a hit test. For HitSegment Index is the segment;
// for HitStroke it is the start of the edge that was hit.
type Hit struct {
	Kind  HitKind
	Item  document.Item
	Group *document.ShapeGroup
	Layer document.LayerKind
	Index int
	Point geom.Point
}

// OK reports whether anything was hit.
func (h Hit) OK() bool { return h.Kind != HitNone }

// Path returns the hit outline, or nil for a label hit.
func (h Hit) Path() *document.Path {
	p, _ := h.Item.(*document.Path)
	return p
}

// HitTestLayer tests the groups of l from the top down.
func HitTestLayer(l *document.Layer, p geom.Point, opts HitOptions) Hit {
	for i := len(l.Children) - 1; i >= 0; i-- {
		if hit := hitGroup(l.Children[i], p, opts); hit.OK() {
			hit.Layer = l.Kind
			return hit
		}
	}
	return Hit{Point: p}
}

// HitTestDocument tests both layers, unit first since it paints on top.
func HitTestDocument(d *document.Document, p geom.Point, opts HitOptions) Hit {
	layers := d.Layers()
	for i := len(layers) - 1; i >= 0; i-- {
		if hit := HitTestLayer(layers[i], p, opts); hit.OK() {
			return hit
		}
	}
	return Hit{Point: p}
}

// hitGroup tests the label before the outline, matching paint order.
func hitGroup(g *document.ShapeGroup, p geom.Point, opts HitOptions) Hit {
	if g.Hidden {
		return Hit{}
	}

	if l := g.Label; l != nil && !l.Hidden && l.Content != "" {
		if l.Bounds().Contains(p) {
			return Hit{Kind: HitText, Item: l, Group: g, Index: -1, Point: p}
		}
	}

	if g.Outline == nil {
		return Hit{}
	}
	kind, idx := hitPath(g.Outline, p, opts)
	if kind == HitNone {
		return Hit{}
	}
	return Hit{Kind: kind, Item: g.Outline, Group: g, Index: idx, Point: p}
}

func hitPath(path *document.Path, p geom.Point, opts HitOptions) (HitKind, int) {
	if opts.Segments {
		best, bestDist := -1, math.Inf(1)
		for i, pt := range path.Segments {
			if d := pt.Distance(p); d <= opts.Tolerance && d < bestDist {
				best, bestDist = i, d
			}
		}
		if best >= 0 {
			return HitSegment, best
		}
	}

	if opts.Stroke {
		idx, dist := geom.NearestEdge(path.Segments, path.Closed, p)
		if idx >= 0 && dist <= opts.Tolerance+path.Style.StrokeWidth/2 {
			return HitStroke, idx
		}
	}

	if opts.Fill && path.Filled() && geom.PolygonContains(path.Segments, p) {
		return HitFill, -1
	}

	return HitNone, -1
}
