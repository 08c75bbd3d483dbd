package document

import (
	"slices"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// LayerKind identifies one of the two fixed layers. The numeric values
// double as the item type on the wire.
type LayerKind int

const (
	House LayerKind = 0
	Unit  LayerKind = 1
)

// KindOf maps a wire type to a layer; anything but 1 is a house.
func KindOf(t int) LayerKind {
	if t == int(Unit) {
		return Unit
	}
	return House
}

func (k LayerKind) String() string {
	if k == Unit {
		return "unit"
	}
	return "house"
}

// DefaultName is the label given to a freshly drawn or copied shape.
func (k LayerKind) DefaultName() string {
	if k == Unit {
		return "未命名单元"
	}
	return "未命名户型"
}

// Style returns the stroke and fill used for new outlines on the layer.
func (k LayerKind) Style() Style {
	if k == Unit {
		return UnitStyle
	}
	return HouseStyle
}

// Style holds outline paint. Colors are #RRGGBBAA.
type Style struct {
	Stroke      string  `json:"stroke,omitempty"`
	Fill        string  `json:"fill,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`
}

var (
	HouseStyle = Style{Stroke: "#007acccc", Fill: "#0098ff4d", StrokeWidth: 2}
	UnitStyle  = Style{Stroke: "#cc3e5ae6", Fill: "#ff4d7066", StrokeWidth: 2}
)

// Item is anything inside a ShapeGroup that can be hit, selected and
// dragged: the outline *Path or the *TextLabel.
type Item interface {
	Group() *ShapeGroup
	Bounds() geom.Rect
	Translate(delta geom.Point)
	isItem()
}

// Path is a polygon outline. It is open only while being drawn.
type Path struct {
	Segments []geom.Point `json:"segments"`
	Closed   bool         `json:"closed"`
	Style    Style        `json:"style"`

	group *ShapeGroup
}

func (*Path) isItem() {}

// Group returns the owning group, or nil for a detached path.
func (p *Path) Group() *ShapeGroup { return p.group }

func (p *Path) Bounds() geom.Rect { return geom.BoundsOf(p.Segments) }

// Center is the anchor used for rotation and label placement.
func (p *Path) Center() geom.Point { return p.Bounds().Center() }

func (p *Path) Len() int { return len(p.Segments) }

// Filled reports whether the interior participates in hit testing.
func (p *Path) Filled() bool { return p.Closed && p.Style.Fill != "" }

func (p *Path) Add(pt geom.Point) {
	p.Segments = append(p.Segments, pt)
}

// Insert places pt at index, clamped to the valid range, and returns the
// index used.
func (p *Path) Insert(index int, pt geom.Point) int {
	index = max(0, min(index, len(p.Segments)))
	p.Segments = slices.Insert(p.Segments, index, pt)
	return index
}

// RemoveSegment deletes the segment at index. Out-of-range is a no-op.
func (p *Path) RemoveSegment(index int) {
	if index < 0 || index >= len(p.Segments) {
		return
	}
	p.Segments = slices.Delete(p.Segments, index, index+1)
}

// RemoveLast drops the trailing segment.
func (p *Path) RemoveLast() {
	if n := len(p.Segments); n > 0 {
		p.Segments = p.Segments[:n-1]
	}
}

// Last returns the trailing segment point.
func (p *Path) Last() (geom.Point, bool) {
	if len(p.Segments) == 0 {
		return geom.Point{}, false
	}
	return p.Segments[len(p.Segments)-1], true
}

// Neighbors returns the previous and next points of segment i, wrapping
// around the path ends.
func (p *Path) Neighbors(i int) (prev, next geom.Point) {
	n := len(p.Segments)
	return p.Segments[(i-1+n)%n], p.Segments[(i+1)%n]
}

func (p *Path) Translate(delta geom.Point) {
	for i := range p.Segments {
		p.Segments[i] = p.Segments[i].Add(delta)
	}
}

func (p *Path) Transform(m geom.Matrix2D) {
	p.Segments = geom.Transform(p.Segments, m)
}

// Rotate turns the outline by degrees about its bounds center.
func (p *Path) Rotate(degrees float64) {
	p.Transform(geom.RotateAbout(degrees, p.Center()))
}

// RotateAbout turns the outline by degrees about center.
func (p *Path) RotateAbout(degrees float64, center geom.Point) {
	p.Transform(geom.RotateAbout(degrees, center))
}

// Flip mirrors the outline through its bounds center.
func (p *Path) Flip(horizontal bool) {
	sx, sy := 1.0, -1.0
	if horizontal {
		sx, sy = -1, 1
	}
	p.Transform(geom.ScaleAbout(sx, sy, p.Center()))
}

func (p *Path) clone() *Path {
	return &Path{
		Segments: slices.Clone(p.Segments),
		Closed:   p.Closed,
		Style:    p.Style,
	}
}

// NewPath returns an empty open path stroked in the layer style.
// The fill is applied when the path is closed.
func NewPath(kind LayerKind) *Path {
	style := kind.Style()
	return &Path{Style: Style{Stroke: style.Stroke, StrokeWidth: style.StrokeWidth}}
}

// Close closes the path and applies the layer fill.
func (p *Path) Close(kind LayerKind) {
	p.Closed = true
	p.Style.Fill = kind.Style().Fill
}

// TextLabel is the name shown inside a group. Point is the baseline
// anchor; text is centered horizontally on it.
type TextLabel struct {
	Content  string     `json:"content"`
	Point    geom.Point `json:"point"`
	FontSize float64    `json:"fontSize"`
	Hidden   bool       `json:"-"`

	group *ShapeGroup
}

func (*TextLabel) isItem() {}

// Group returns the owning group, or nil for a detached label.
func (l *TextLabel) Group() *ShapeGroup { return l.group }

func (l *TextLabel) Bounds() geom.Rect {
	return LabelBounds(l.Content, l.Point, l.FontSize)
}

func (l *TextLabel) Translate(delta geom.Point) {
	l.Point = l.Point.Add(delta)
}

// NewLabel returns a label centered on center.
func NewLabel(content string, center geom.Point) *TextLabel {
	return &TextLabel{Content: content, Point: center, FontSize: DefaultFontSize}
}

// ShapeGroup is the unit of selection: an outline followed by its label.
type ShapeGroup struct {
	ID      string     `json:"id,omitempty"`
	Outline *Path      `json:"outline"`
	Label   *TextLabel `json:"label"`
	Hidden  bool       `json:"-"`
}

// NewShapeGroup wraps an outline in a group without a label.
func NewShapeGroup(outline *Path) *ShapeGroup {
	g := &ShapeGroup{Outline: outline}
	g.link()
	return g
}

// link restores the child back-references after decoding or cloning.
func (g *ShapeGroup) link() {
	if g.Outline != nil {
		g.Outline.group = g
	}
	if g.Label != nil {
		g.Label.group = g
	}
}

// AttachLabel sets the label as the group's last child.
func (g *ShapeGroup) AttachLabel(l *TextLabel) {
	g.Label = l
	g.link()
}

// Committed reports whether the group has both children.
func (g *ShapeGroup) Committed() bool {
	return g.Outline != nil && g.Label != nil
}

// Name returns the label text.
func (g *ShapeGroup) Name() string {
	if g.Label == nil {
		return ""
	}
	return g.Label.Content
}

func (g *ShapeGroup) Bounds() geom.Rect {
	var r geom.Rect
	if g.Outline != nil {
		r = g.Outline.Bounds()
	}
	if g.Label != nil {
		r = r.Union(g.Label.Bounds())
	}
	return r
}

// Translate moves outline and label together.
func (g *ShapeGroup) Translate(delta geom.Point) {
	if g.Outline != nil {
		g.Outline.Translate(delta)
	}
	if g.Label != nil {
		g.Label.Translate(delta)
	}
}

// Items returns the children in paint order, outline first.
func (g *ShapeGroup) Items() []Item {
	items := make([]Item, 0, 2)
	if g.Outline != nil {
		items = append(items, g.Outline)
	}
	if g.Label != nil {
		items = append(items, g.Label)
	}
	return items
}

// Clone deep-copies the group. The copy has no ID.
func (g *ShapeGroup) Clone() *ShapeGroup {
	c := &ShapeGroup{Hidden: g.Hidden}
	if g.Outline != nil {
		c.Outline = g.Outline.clone()
	}
	if g.Label != nil {
		l := *g.Label
		c.Label = &l
	}
	c.link()
	return c
}

// Layer is an ordered stack of groups; later children paint on top.
type Layer struct {
	Kind     LayerKind
	Children []*ShapeGroup
}

func (l *Layer) Len() int { return len(l.Children) }

func (l *Layer) IndexOf(g *ShapeGroup) int {
	return slices.Index(l.Children, g)
}

func (l *Layer) Add(g *ShapeGroup) {
	l.Children = append(l.Children, g)
}

// Remove detaches g and returns the index it had, or -1.
func (l *Layer) Remove(g *ShapeGroup) int {
	i := l.IndexOf(g)
	if i >= 0 {
		l.Children = slices.Delete(l.Children, i, i+1)
	}
	return i
}

// BringToFront moves g above all its siblings.
func (l *Layer) BringToFront(g *ShapeGroup) {
	if l.Remove(g) >= 0 {
		l.Add(g)
	}
}

// Previous returns the sibling painted directly below g.
func (l *Layer) Previous(g *ShapeGroup) *ShapeGroup {
	if i := l.IndexOf(g); i > 0 {
		return l.Children[i-1]
	}
	return nil
}

// Next returns the sibling painted directly above g.
func (l *Layer) Next(g *ShapeGroup) *ShapeGroup {
	if i := l.IndexOf(g); i >= 0 && i+1 < len(l.Children) {
		return l.Children[i+1]
	}
	return nil
}

func (l *Layer) Clear() {
	l.Children = nil
}

// Document is the pair of layers plus the active layer pointer.
// House is always below Unit.
type Document struct {
	layers [2]*Layer
	active LayerKind
}

// New returns an empty document with house active.
func New() *Document {
	return &Document{
		layers: [2]*Layer{{Kind: House}, {Kind: Unit}},
		active: House,
	}
}

// Layers returns both layers in paint order.
func (d *Document) Layers() []*Layer {
	return d.layers[:]
}

func (d *Document) Layer(kind LayerKind) *Layer {
	if kind == Unit {
		return d.layers[Unit]
	}
	return d.layers[House]
}

func (d *Document) Active() LayerKind { return d.active }

func (d *Document) ActiveLayer() *Layer { return d.Layer(d.active) }

// SetActiveLayer switches the layer new shapes are drawn into. Any kind
// other than Unit selects House.
func (d *Document) SetActiveLayer(kind LayerKind) {
	if kind != Unit {
		kind = House
	}
	d.active = kind
}

// AddGroup appends g on top of the given layer.
func (d *Document) AddGroup(kind LayerKind, g *ShapeGroup) {
	d.Layer(kind).Add(g)
}

// LayerOf returns the layer holding g, or nil.
func (d *Document) LayerOf(g *ShapeGroup) *Layer {
	for _, l := range d.layers {
		if l.IndexOf(g) >= 0 {
			return l
		}
	}
	return nil
}

// RemoveGroup detaches g from its layer. It reports false when g is not
// in the document.
func (d *Document) RemoveGroup(g *ShapeGroup) bool {
	l := d.LayerOf(g)
	if l == nil {
		return false
	}
	l.Remove(g)
	return true
}

// Len returns the number of groups across both layers.
func (d *Document) Len() int {
	return d.layers[House].Len() + d.layers[Unit].Len()
}

// Clear empties both layers.
func (d *Document) Clear() {
	for _, l := range d.layers {
		l.Clear()
	}
}

// Locate returns the layer and index of g.
func (d *Document) Locate(g *ShapeGroup) (LayerKind, int, bool) {
	for _, l := range d.layers {
		if i := l.IndexOf(g); i >= 0 {
			return l.Kind, i, true
		}
	}
	return House, -1, false
}

// GroupAt is the inverse of Locate.
func (d *Document) GroupAt(kind LayerKind, index int) *ShapeGroup {
	l := d.Layer(kind)
	if index < 0 || index >= l.Len() {
		return nil
	}
	return l.Children[index]
}

// FindByID returns the first group carrying id.
func (d *Document) FindByID(id string) *ShapeGroup {
	if id == "" {
		return nil
	}
	for _, l := range d.layers {
		for _, g := range l.Children {
			if g.ID == id {
				return g
			}
		}
	}
	return nil
}
