package engine

import (
	"fmt"
	"strings"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Display constants.
const (
	handleSize        = 6
	labelFill         = "#ffffffff"
	markerFill        = "#ff4d70ff"
	markerStroke      = "#cc3e5aff"
	markerStrokeWidth = 2
	probeAlpha        = 0.01
	scopeStrokeWidth  = 4
)

// SceneInput is everything BuildSceneGraph needs from a session.
type SceneInput struct {
	Document   *document.Document
	Mode       Mode
	Scope      string
	View       geom.Matrix2D
	Scale      float64
	Selection  Selection
	Drawing    *document.ShapeGroup
	Background Background

	Marker       geom.Point
	MarkerRadius float64
	ShowMarker   bool
}

func (s *Session) sceneInput() SceneInput {
	marker, radius, show := s.Marker()
	return SceneInput{
		Document:     s.doc,
		Mode:         s.mode,
		Scope:        s.probe.scope,
		View:         s.view.Matrix(),
		Scale:        s.view.Scale(),
		Selection:    s.selection,
		Drawing:      s.drawing,
		Background:   s.background,
		Marker:       marker,
		MarkerRadius: radius,
		ShowMarker:   show && s.mode == ModeProbe,
	}
}

// BuildSceneGraph builds a render-ready scene graph: background, house
// layer, unit layer, the shape being drawn, selection handles, and in
// probe sessions the marker.
func BuildSceneGraph(in SceneInput) *SceneGraph {
	sg := NewSceneGraph()
	if in.Document == nil {
		return sg
	}
	if in.Scale <= 0 {
		in.Scale = 1
	}

	root := sg.add(nil, &SceneNode{ID: "root", Type: NodeRoot, WorldTransform: in.View, Opacity: 1, Visible: true})

	if bg := in.Background; bg.Src != "" && !bg.Failed {
		sg.add(root, &SceneNode{
			ID:             "background",
			Type:           NodeImage,
			WorldTransform: in.View,
			Opacity:        1,
			Visible:        true,
			ImageSrc:       bg.Src,
			ImageWidth:     bg.Width,
			ImageHeight:    bg.Height,
			Bounds:         geom.Rect{Width: bg.Width, Height: bg.Height},
		})
	}

	for _, l := range in.Document.Layers() {
		layer := sg.add(root, &SceneNode{
			ID:             "layer:" + l.Kind.String(),
			Type:           NodeLayer,
			WorldTransform: in.View,
			Opacity:        1,
			Visible:        true,
		})
		for i, g := range l.Children {
			buildGroup(sg, layer, g, groupNodeID(l.Kind, i, g), in)
		}
	}

	if in.Drawing != nil {
		buildGroup(sg, root, in.Drawing, "drawing", in)
	}

	if sel := in.Selection; !sel.Empty() && in.Mode == ModeEdit {
		buildHandles(sg, root, sel, in)
	}

	if in.ShowMarker {
		sg.add(root, &SceneNode{
			ID:             "marker",
			Type:           NodeMarker,
			WorldTransform: in.View,
			Opacity:        1,
			Visible:        true,
			Anchor:         in.Marker,
			Radius:         in.MarkerRadius,
			Fill:           markerFill,
			Stroke:         markerStroke,
			StrokeWidth:    markerStrokeWidth / in.Scale,
			Bounds: geom.Rect{
				X: in.Marker.X - in.MarkerRadius, Y: in.Marker.Y - in.MarkerRadius,
				Width: 2 * in.MarkerRadius, Height: 2 * in.MarkerRadius,
			},
		})
	}

	return sg
}

func groupNodeID(kind document.LayerKind, index int, g *document.ShapeGroup) string {
	if g.ID != "" {
		return g.ID
	}
	return fmt.Sprintf("%s:%d", kind, index)
}

// buildGroup emits the outline and label of one group.
func buildGroup(sg *SceneGraph, parent *SceneNode, g *document.ShapeGroup, id string, in SceneInput) {
	if g.Hidden || g.Outline == nil {
		return
	}

	node := sg.add(parent, &SceneNode{
		ID:             id,
		Type:           NodeGroup,
		WorldTransform: in.View,
		Opacity:        1,
		Visible:        true,
		Selected:       in.Selection.Group == g,
		Bounds:         g.Bounds(),
	})

	path := g.Outline
	stroke, fill, width := path.Style.Stroke, path.Style.Fill, path.Style.StrokeWidth
	if in.Mode == ModeProbe {
		if in.Scope != "" {
			stroke = withAlpha(stroke, 1)
			width = scopeStrokeWidth
		} else {
			stroke = withAlpha(stroke, probeAlpha)
		}
		fill = withAlpha(fill, probeAlpha)
	}
	if !path.Closed {
		fill = ""
	}

	sg.add(node, &SceneNode{
		ID:             id + "/outline",
		Type:           NodePath,
		WorldTransform: in.View,
		Opacity:        1,
		Visible:        true,
		Selected:       in.Selection.Item == document.Item(path),
		Path:           PolylinePath(path.Segments, path.Closed),
		Fill:           fill,
		Stroke:         stroke,
		StrokeWidth:    width,
		Bounds:         path.Bounds(),
	})

	if l := g.Label; l != nil && !l.Hidden && l.Content != "" {
		sg.add(node, &SceneNode{
			ID:             id + "/label",
			Type:           NodeText,
			WorldTransform: in.View,
			Opacity:        1,
			Visible:        true,
			Selected:       in.Selection.Item == document.Item(l),
			Text:           l.Content,
			FontSize:       l.FontSize,
			Anchor:         l.Point,
			Fill:           labelFill,
			Bounds:         l.Bounds(),
		})
	}
}

// buildHandles marks the selected outline's segments, or the selected
// label's box.
func buildHandles(sg *SceneGraph, parent *SceneNode, sel Selection, in SceneInput) {
	size := handleSize / in.Scale
	stroke := ""
	if sel.Group.Outline != nil {
		stroke = withAlpha(sel.Group.Outline.Style.Stroke, 1)
	}

	switch it := sel.Item.(type) {
	case *document.TextLabel:
		b := it.Bounds()
		sg.add(parent, &SceneNode{
			ID:             "selection/label",
			Type:           NodeHandle,
			WorldTransform: in.View,
			Opacity:        1,
			Visible:        true,
			Path:           RectPath(b),
			Stroke:         stroke,
			StrokeWidth:    1 / in.Scale,
			Bounds:         b,
		})
	case *document.Path:
		for i, p := range it.Segments {
			b := geom.Rect{X: p.X - size/2, Y: p.Y - size/2, Width: size, Height: size}
			sg.add(parent, &SceneNode{
				ID:             fmt.Sprintf("selection/%d", i),
				Type:           NodeHandle,
				WorldTransform: in.View,
				Opacity:        1,
				Visible:        true,
				Path:           RectPath(b),
				Fill:           stroke,
				Bounds:         b,
			})
		}
	}
}

// withAlpha replaces the alpha of a #RRGGBB or #RRGGBBAA color.
func withAlpha(color string, alpha float64) string {
	if !strings.HasPrefix(color, "#") || (len(color) != 7 && len(color) != 9) {
		return color
	}
	a := int(alpha*255 + 0.5)
	a = max(0, min(a, 255))
	return fmt.Sprintf("%s%02x", color[:7], a)
}
