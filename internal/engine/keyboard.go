package engine

import "github.com/plantrace/plantrace/backend-go/internal/geom"

// Key codes as reported by browsers. 25 and 26 are the codes an older
// browser sends for Ctrl+Y and Ctrl+Z.
const (
	KeyEnter     = 13
	KeyEscape    = 27
	KeySpace     = 32
	KeyPageUp    = 33
	KeyPageDown  = 34
	KeyLeft      = 37
	KeyUp        = 38
	KeyRight     = 39
	KeyDown      = 40
	KeyDelete    = 46
	KeyY         = 89
	KeyZ         = 90
	KeyLegacyCtY = 25
	KeyLegacyCtZ = 26
)

// KeyEvent is a key press or release.
type KeyEvent struct {
	Code  int  `json:"code"`
	Ctrl  bool `json:"ctrl,omitempty"`
	Shift bool `json:"shift,omitempty"`
}

// KeyDown handles nudging, rotation, undo/redo and holding Space to pan.
func (s *Session) KeyDown(e KeyEvent) {
	if !s.ready || s.mode != ModeEdit {
		return
	}

	// Keys belong to the label editor while it is open; it acts on release.
	if s.editor.active() {
		return
	}

	if e.Code == KeySpace {
		s.space = true
		s.cursor = CursorGrab
		return
	}
	if s.readOnly {
		return
	}

	switch e.Code {
	case KeyUp:
		s.NudgeSelection(geom.Pt(0, -1))
	case KeyDown:
		s.NudgeSelection(geom.Pt(0, 1))
	case KeyLeft:
		s.NudgeSelection(geom.Pt(-1, 0))
	case KeyRight:
		s.NudgeSelection(geom.Pt(1, 0))
	case KeyLegacyCtZ:
		s.Undo()
	case KeyZ:
		if e.Ctrl {
			s.Undo()
		}
	case KeyLegacyCtY:
		s.Redo()
	case KeyY:
		if e.Ctrl {
			s.Redo()
		}
	case KeyPageUp:
		s.RotateSelection(-1)
	case KeyPageDown:
		s.RotateSelection(1)
	}
}

// KeyUp handles Delete, Enter, Escape and releasing Space. With the label
// editor open, Enter commits and Escape cancels.
func (s *Session) KeyUp(e KeyEvent) {
	if !s.ready || s.mode != ModeEdit {
		return
	}

	if e.Code == KeySpace {
		s.space = false
		s.toggles = Toggles{}
		s.cursor = CursorDefault
		if s.state == StatePanning {
			s.setState(StateIdle)
		}
		return
	}
	if s.readOnly {
		return
	}
	if s.editor.active() {
		switch e.Code {
		case KeyEnter:
			s.commitLabel()
		case KeyEscape:
			s.CancelLabel()
		}
		return
	}

	switch e.Code {
	case KeyDelete:
		s.DeleteSelection()
	case KeyEnter:
		s.EditSelection()
	case KeyEscape:
		if s.menuOpen {
			s.menuOpen = false
		} else if s.state == StateDrawing {
			s.AbandonDrawing()
		}
	}
}
