package engine

import (
	"strings"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// labelEditor is the in-place text box over a label. Input is applied to
// the label as it is typed; the text from before editing is kept so a
// blank commit or a cancel can restore it.
type labelEditor struct {
	label *document.TextLabel
	old   string
}

func (e *labelEditor) active() bool { return e.label != nil }

// EditLabel opens the editor on item's label. An outline resolves to the
// label of its group.
func (s *Session) EditLabel(item document.Item) bool {
	if !s.Editable() || item == nil {
		return false
	}

	var label *document.TextLabel
	switch it := item.(type) {
	case *document.TextLabel:
		label = it
	case *document.Path:
		if g := it.Group(); g != nil {
			label = g.Label
		}
	}
	if label == nil {
		return false
	}

	s.commitLabel()
	s.Select(label)
	s.editor = labelEditor{label: label, old: label.Content}
	return true
}

// LabelInput replaces the text of the label being edited.
func (s *Session) LabelInput(text string) {
	if s.editor.active() {
		s.editor.label.Content = text
	}
}

// CommitLabel closes the editor, keeping the typed text unless it is
// blank, and records a snapshot.
func (s *Session) CommitLabel() bool {
	return s.commitLabel()
}

func (s *Session) commitLabel() bool {
	if !s.editor.active() {
		return false
	}
	label := s.editor.label
	if strings.TrimSpace(label.Content) == "" {
		label.Content = s.editor.old
	}
	s.editor = labelEditor{}
	s.stack()
	return true
}

// CancelLabel closes the editor and restores the old text without a
// snapshot.
func (s *Session) CancelLabel() {
	if !s.editor.active() {
		return
	}
	s.editor.label.Content = s.editor.old
	s.editor = labelEditor{}
}

// EditingLabel returns the label under edit and the box the host should
// place its text input over.
func (s *Session) EditingLabel() (*document.TextLabel, geom.Rect, bool) {
	if !s.editor.active() {
		return nil, geom.Rect{}, false
	}
	return s.editor.label, s.editor.label.Bounds(), true
}
