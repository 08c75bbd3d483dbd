package engine

import "github.com/plantrace/plantrace/backend-go/internal/geom"

// Scene node types.
const (
	NodeRoot   = "root"
	NodeImage  = "image"
	NodeLayer  = "layer"
	NodeGroup  = "group"
	NodePath   = "path"
	NodeText   = "text"
	NodeHandle = "handle"
	NodeMarker = "marker"
)

// SceneGraph is the render-ready view of a session: the document plus
// selection handles, the shape being drawn and the probe marker.
type SceneGraph struct {
	Root      *SceneNode
	NodesByID map[string]*SceneNode
}

// SceneNode is a resolved node ready for rendering. Geometry is in
// document space; WorldTransform maps it to the view.
type SceneNode struct {
	ID   string
	Type string

	WorldTransform geom.Matrix2D

	Opacity  float64
	Visible  bool
	Selected bool

	// Hierarchy
	Parent   *SceneNode
	Children []*SceneNode

	// Render data
	Path        []PathCommand
	Fill        string
	Stroke      string
	StrokeWidth float64

	// Text and marker data
	Text     string
	FontSize float64
	Anchor   geom.Point
	Radius   float64

	// Image data
	ImageSrc    string
	ImageWidth  float64
	ImageHeight float64

	// Hit testing
	Bounds geom.Rect
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["Z"].
type PathCommand []any

// NewSceneGraph creates an empty scene graph.
func NewSceneGraph() *SceneGraph {
	return &SceneGraph{NodesByID: make(map[string]*SceneNode)}
}

// add appends child under parent and indexes it by ID. A nil parent makes
// child the root.
func (sg *SceneGraph) add(parent, child *SceneNode) *SceneNode {
	child.Parent = parent
	if parent != nil {
		parent.Children = append(parent.Children, child)
	} else {
		sg.Root = child
	}
	if child.ID != "" {
		sg.NodesByID[child.ID] = child
	}
	return child
}

// PolylinePath converts points to path commands.
func PolylinePath(points []geom.Point, closed bool) []PathCommand {
	if len(points) == 0 {
		return nil
	}
	cmds := make([]PathCommand, 0, len(points)+1)
	cmds = append(cmds, PathCommand{"M", points[0].X, points[0].Y})
	for _, p := range points[1:] {
		cmds = append(cmds, PathCommand{"L", p.X, p.Y})
	}
	if closed {
		cmds = append(cmds, PathCommand{"Z"})
	}
	return cmds
}

// RectPath converts a rect to a closed path.
func RectPath(r geom.Rect) []PathCommand {
	return PolylinePath([]geom.Point{
		geom.Pt(r.X, r.Y),
		geom.Pt(r.X+r.Width, r.Y),
		geom.Pt(r.X+r.Width, r.Y+r.Height),
		geom.Pt(r.X, r.Y+r.Height),
	}, true)
}
