package engine

import (
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Button is the mouse button of a pointer event.
type Button int

const (
	ButtonPrimary   Button = 0
	ButtonMiddle    Button = 1
	ButtonSecondary Button = 2
)

// PointerEvent carries a pointer position in view coordinates.
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button Button  `json:"button"`
	Shift  bool    `json:"shift,omitempty"`
	Ctrl   bool    `json:"ctrl,omitempty"`
}

func (e PointerEvent) Point() geom.Point { return geom.Pt(e.X, e.Y) }

// Toggle is a toolbar mode button.
type Toggle int

const (
	TogglePan Toggle = iota
	ToggleRotate
	ToggleCopy
)

// Toggles are the toolbar modes. At most one is on.
type Toggles struct {
	Pan    bool `json:"pan"`
	Rotate bool `json:"rotate"`
	Copy   bool `json:"copy"`
}

// Cursor is the pointer shape the host should show.
type Cursor string

const (
	CursorDefault Cursor = "default"
	CursorText    Cursor = "text"
	CursorRotate  Cursor = "rotate"
	CursorCopy    Cursor = "copy"
	CursorMove    Cursor = "move"
	CursorGrab    Cursor = "grab"
)

// dragTarget is what a pointer drag moves: a captured segment of the
// item's outline, or the item itself.
type dragTarget struct {
	item    document.Item
	segment int
}

func (d dragTarget) empty() bool { return d.item == nil }

// SetToggle switches a toolbar mode. Turning one on turns the others off.
func (s *Session) SetToggle(t Toggle, on bool) {
	if on {
		s.toggles = Toggles{}
	}
	switch t {
	case TogglePan:
		s.toggles.Pan = on
	case ToggleRotate:
		s.toggles.Rotate = on
	case ToggleCopy:
		s.toggles.Copy = on
	}
	if s.panning() {
		s.cursor = CursorGrab
	} else {
		s.cursor = CursorDefault
	}
	s.logger.Debug("toggle changed", "pan", s.toggles.Pan, "rotate", s.toggles.Rotate, "copy", s.toggles.Copy)
}

// panning reports whether pointer drags move the canvas instead of shapes.
func (s *Session) panning() bool {
	return s.toggles.Pan || s.space
}

// PointerDown starts a gesture.
func (s *Session) PointerDown(e PointerEvent) {
	if !s.ready || s.mode != ModeEdit {
		return
	}

	p := s.view.ToDocument(e.Point())
	s.pressed = true
	s.last = p
	s.lastView = e.Point()

	if s.panning() {
		if e.Button == ButtonPrimary {
			s.setState(StatePanning)
		}
		return
	}
	if s.readOnly {
		return
	}

	s.commitLabel()
	s.menuOpen = false

	if s.state == StateDrawing {
		return
	}

	s.drag = dragTarget{segment: -1}
	hit := HitTestLayer(s.doc.ActiveLayer(), p, DefaultHitOptions)

	if hit.OK() && s.toggles.Rotate {
		s.Select(hit.Item)
		s.drag.item = hit.Item
		if _, isLabel := hit.Item.(*document.TextLabel); isLabel {
			s.setState(StateDraggingShape)
		} else {
			s.setState(StateRotating)
		}
		return
	}

	switch e.Button {
	case ButtonSecondary:
		if hit.OK() {
			s.removeSegment(hit)
		}
	case ButtonPrimary:
		if hit.OK() {
			s.handleHit(e, p, hit)
		} else if s.drawing == nil {
			s.startDrawing()
		}
	}
}

// PointerMove drags the captured target while a button is held, and
// otherwise updates the live point of a draw or the hover cursor.
func (s *Session) PointerMove(e PointerEvent) {
	if !s.ready || s.mode != ModeEdit {
		return
	}

	p := s.view.ToDocument(e.Point())

	if s.state == StatePanning {
		if s.pressed {
			s.view.Pan(e.Point().Sub(s.lastView))
		}
		s.lastView = e.Point()
		s.last = s.view.ToDocument(e.Point())
		return
	}
	if s.readOnly {
		return
	}

	if s.pressed {
		s.dragTo(p)
		return
	}

	if s.state == StateDrawing && s.drawing != nil {
		path := s.drawing.Outline
		if path.Len() > 1 {
			path.RemoveLast()
		}
		if last, ok := path.Last(); ok && e.Shift {
			p = SnapAxis(last, p)
		}
		path.Add(p)
		return
	}

	s.cursor = s.cursorFor(HitTestLayer(s.doc.ActiveLayer(), p, DefaultHitOptions))
}

// PointerUp ends a gesture: a modified drag records one snapshot, and a
// draw gains a point or, on the secondary button, is finished.
func (s *Session) PointerUp(e PointerEvent) {
	if !s.ready || s.mode != ModeEdit {
		return
	}
	s.pressed = false

	if s.state == StatePanning {
		s.setState(StateIdle)
		return
	}
	if s.readOnly || s.panning() {
		return
	}

	if s.dirty {
		s.dirty = false
		s.stack()
	}

	if s.state == StateDrawing && s.drawing != nil {
		if e.Button == ButtonSecondary {
			s.finishDrawing()
			return
		}
		p := s.view.ToDocument(e.Point())
		path := s.drawing.Outline
		if last, ok := path.Last(); ok && e.Shift && path.Len() > 1 {
			p = SnapAxis(last, p)
		}
		path.Add(p)
		return
	}

	s.drag = dragTarget{segment: -1}
	s.setState(StateIdle)
}

// DoubleClick opens the label editor on the shape under the pointer.
func (s *Session) DoubleClick(e PointerEvent) {
	if !s.ready || !s.Editable() || s.state == StateDrawing || s.panning() {
		return
	}
	hit := HitTestLayer(s.doc.ActiveLayer(), s.view.ToDocument(e.Point()), DefaultHitOptions)
	if hit.OK() {
		s.EditLabel(hit.Item)
	}
}

// SnapAxis snaps cur to a horizontal or vertical line through prev. A
// mostly vertical move keeps prev's x, anything else keeps prev's y.
func SnapAxis(prev, cur geom.Point) geom.Point {
	angle := cur.Sub(prev).Angle()
	if (angle >= 45 && angle < 135) || (angle > -135 && angle < -45) {
		return geom.Pt(prev.X, cur.Y)
	}
	return geom.Pt(cur.X, prev.Y)
}

// SnapRightAngle moves a segment point onto a corner formed by its
// neighbors.
func SnapRightAngle(point, prev, next geom.Point, policy SnapPolicy) geom.Point {
	left := geom.Pt(prev.X, next.Y)
	right := geom.Pt(next.X, prev.Y)

	if policy == SnapNext {
		return right
	}

	switch {
	case point.Equals(left):
		return right
	case point.Equals(right):
		return left
	case point.Distance(left) < point.Distance(right):
		return left
	default:
		return right
	}
}

func (s *Session) setState(st State) {
	if s.state != st {
		s.logger.Debug("state changed", "from", s.state, "to", st)
		s.state = st
	}
}

func (s *Session) startDrawing() {
	kind := s.doc.Active()
	s.drawing = document.NewShapeGroup(document.NewPath(kind))
	s.drawKind = kind
	s.setState(StateDrawing)
}

// finishDrawing closes the path under construction. Shapes smaller than
// MinShapeSize in either dimension are discarded.
func (s *Session) finishDrawing() {
	g, kind := s.drawing, s.drawKind
	s.drawing = nil
	s.setState(StateIdle)

	path := g.Outline
	if path.Len() > 1 {
		path.RemoveLast()
	}
	path.Close(kind)

	b := path.Bounds()
	if b.Width < MinShapeSize || b.Height < MinShapeSize {
		s.ClearSelection()
		s.logger.Debug("shape discarded", "width", b.Width, "height", b.Height)
		return
	}

	label := document.NewLabel(kind.DefaultName(), path.Center())
	label.FontSize = s.labelFontSize()
	g.AttachLabel(label)
	s.doc.AddGroup(kind, g)
	s.stack()
	s.Select(path)
}

// AbandonDrawing drops the shape under construction without a snapshot.
func (s *Session) AbandonDrawing() {
	if s.drawing == nil {
		return
	}
	s.drawing = nil
	s.ClearSelection()
	s.setState(StateIdle)
}

func (s *Session) handleHit(e PointerEvent, p geom.Point, hit Hit) {
	s.Select(hit.Item)
	s.drag.item = hit.Item

	switch hit.Kind {
	case HitSegment:
		if e.Shift {
			path := hit.Path()
			prev, next := path.Neighbors(hit.Index)
			path.Segments[hit.Index] = SnapRightAngle(path.Segments[hit.Index], prev, next, s.snap)
			s.dirty = true
		}
		s.drag.segment = hit.Index
		s.setState(StateDraggingSegment)

	case HitStroke:
		s.drag.segment = hit.Path().Insert(hit.Index+1, p)
		s.dirty = true
		s.setState(StateDraggingSegment)

	case HitFill:
		if e.Ctrl || s.toggles.Copy {
			s.copyGroup(hit.Group)
		}
		s.setState(StateDraggingShape)

	default:
		s.setState(StateDraggingShape)
	}
}

// copyGroup clones g on top of its layer with a fresh default label and
// makes the clone's outline the drag target.
func (s *Session) copyGroup(g *document.ShapeGroup) {
	l := s.doc.LayerOf(g)
	if l == nil {
		return
	}
	c := g.Clone()
	if c.Label == nil {
		c.AttachLabel(document.NewLabel("", c.Outline.Center()))
	}
	c.Label.Content = l.Kind.DefaultName()
	l.Add(c)

	s.Select(c.Outline)
	s.drag.item = c.Outline
	s.dirty = true
}

// removeSegment handles a secondary press on a segment: the segment goes,
// and with fewer than three left the whole group goes.
func (s *Session) removeSegment(hit Hit) {
	s.Select(hit.Item)
	if hit.Kind != HitSegment {
		return
	}

	path := hit.Path()
	path.RemoveSegment(hit.Index)
	if path.Len() < 3 {
		s.removeGroup(hit.Group)
	}
	s.stack()
}

// dragTo moves the captured target to p.
func (s *Session) dragTo(p geom.Point) {
	dp := p.Sub(s.last)
	s.last = p

	if s.state == StateDrawing || s.drag.empty() {
		return
	}

	if s.drag.segment >= 0 {
		if path, ok := s.drag.item.(*document.Path); ok && s.drag.segment < path.Len() {
			path.Segments[s.drag.segment] = p
			s.dirty = true
		}
		return
	}

	switch item := s.drag.item.(type) {
	case *document.TextLabel:
		item.Translate(dp)
	case *document.Path:
		if s.toggles.Rotate {
			pos := item.Center()
			item.Rotate(dp.Add(p).Sub(pos).Angle() - p.Sub(pos).Angle())
		} else {
			item.Group().Translate(dp)
		}
	}
	s.dirty = true
}

// cursorFor picks the hover cursor for a hit.
func (s *Session) cursorFor(hit Hit) Cursor {
	if s.panning() {
		return CursorGrab
	}
	switch {
	case !hit.OK():
		return CursorDefault
	case hit.Kind == HitText:
		return CursorText
	case s.toggles.Rotate:
		return CursorRotate
	case hit.Kind == HitStroke:
		return CursorCopy
	case hit.Kind == HitFill:
		return CursorMove
	default:
		return CursorDefault
	}
}

// labelFontSize is the size new labels get at the current zoom.
func (s *Session) labelFontSize() float64 {
	if s.mode == ModeEdit {
		return document.ScaledFontSize(s.view.Scale())
	}
	return document.DefaultFontSize
}
