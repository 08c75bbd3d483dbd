package engine

import (
	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Toolbar and keyboard actions on the selection. Each completed action
// records one snapshot; with nothing selected they do nothing.

// NudgeSelection moves the selected group by delta.
func (s *Session) NudgeSelection(delta geom.Point) bool {
	if !s.Editable() || s.selection.Empty() {
		return false
	}
	s.selection.Group.Translate(delta)
	s.stack()
	return true
}

// RotateSelection turns the selected outline by degrees about its center.
func (s *Session) RotateSelection(degrees float64) bool {
	if !s.Editable() || s.selection.Empty() || s.selection.Group.Outline == nil {
		return false
	}
	s.selection.Group.Outline.Rotate(degrees)
	s.stack()
	return true
}

// FlipSelection mirrors the selected outline through its center.
func (s *Session) FlipSelection(horizontal bool) bool {
	if !s.Editable() || s.selection.Empty() || s.selection.Group.Outline == nil {
		return false
	}
	s.selection.Group.Outline.Flip(horizontal)
	s.stack()
	return true
}

// DeleteSelection removes the selected group and selects a sibling.
func (s *Session) DeleteSelection() bool {
	if !s.Editable() || s.selection.Empty() {
		return false
	}
	if !s.removeGroup(s.selection.Group) {
		return false
	}
	s.stack()
	return true
}

// EditSelection opens the label editor on the selected group.
func (s *Session) EditSelection() bool {
	if s.selection.Empty() {
		return false
	}
	return s.EditLabel(s.selection.Item)
}

// ClearLayer removes every group of one layer.
func (s *Session) ClearLayer(kind document.LayerKind) {
	if !s.Editable() {
		return
	}
	l := s.doc.Layer(kind)
	if s.doc.LayerOf(s.selection.Group) == l {
		s.ClearSelection()
	}
	l.Clear()
	s.stack()
}

// ClearAll removes every group of both layers.
func (s *Session) ClearAll() {
	if !s.Editable() {
		return
	}
	s.ClearSelection()
	s.doc.Clear()
	s.stack()
}

// OpenMenu records that a toolbar menu overlay is showing; Escape closes
// it before it abandons a draw.
func (s *Session) OpenMenu() { s.menuOpen = true }

func (s *Session) CloseMenus() { s.menuOpen = false }

// ZoomIn, ZoomOut and ZoomReset change the view scale. In edit sessions
// labels are resized to stay legible.
func (s *Session) ZoomIn() float64  { return s.zoom(ZoomStep) }
func (s *Session) ZoomOut() float64 { return s.zoom(-ZoomStep) }

func (s *Session) ZoomReset() float64 {
	s.view.Reset()
	s.adjustLabelFonts()
	return s.view.Scale()
}

// SetScale sets the view scale directly, clamped for the mode.
func (s *Session) SetScale(scale float64) float64 {
	s.view.SetScale(scale)
	s.adjustLabelFonts()
	return s.view.Scale()
}

func (s *Session) zoom(step float64) float64 {
	s.view.Zoom(step)
	s.adjustLabelFonts()
	return s.view.Scale()
}

func (s *Session) adjustLabelFonts() {
	if s.mode != ModeEdit {
		return
	}
	size := s.labelFontSize()
	for _, l := range s.doc.Layers() {
		for _, g := range l.Children {
			if g.Label != nil {
				g.Label.FontSize = size
			}
		}
	}
}
