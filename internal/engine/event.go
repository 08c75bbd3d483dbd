package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Host event types. Both the page bridge and live sessions speak them.
const (
	EventPointerDown = "pointer.down"
	EventPointerMove = "pointer.move"
	EventPointerUp   = "pointer.up"
	EventDoubleClick = "pointer.dblclick"
	EventKeyDown     = "key.down"
	EventKeyUp       = "key.up"
	EventToolbar     = "toolbar"
	EventLabelInput  = "label.input"
	EventLabelCommit = "label.commit"
	EventLabelCancel = "label.cancel"
)

// Toolbar actions.
const (
	ActionUndo        = "undo"
	ActionRedo        = "redo"
	ActionDelete      = "delete"
	ActionEdit        = "edit"
	ActionRotateCW    = "rotate.cw"
	ActionRotateCCW   = "rotate.ccw"
	ActionFlipH       = "flip.h"
	ActionFlipV       = "flip.v"
	ActionClearHouse  = "clear.house"
	ActionClearUnit   = "clear.unit"
	ActionClearAll    = "clear.all"
	ActionZoomIn      = "zoom.in"
	ActionZoomOut     = "zoom.out"
	ActionZoomReset   = "zoom.reset"
	ActionZoomSet     = "zoom.set"
	ActionTogglePan   = "toggle.pan"
	ActionToggleRot   = "toggle.rotate"
	ActionToggleCopy  = "toggle.copy"
	ActionLayerHouse  = "layer.house"
	ActionLayerUnit   = "layer.unit"
	ActionMenuOpen    = "menu.open"
	ActionMenuClose   = "menu.close"
	ActionAbandonDraw = "draw.abandon"
)

var (
	ErrUnknownEvent  = errors.New("unknown event")
	ErrUnknownAction = errors.New("unknown toolbar action")
)

// Event is one host input in wire form.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ToolbarEvent is the payload of a toolbar event. On applies to toggles,
// Scale to zoom.set.
type ToolbarEvent struct {
	Action string  `json:"action"`
	On     bool    `json:"on,omitempty"`
	Scale  float64 `json:"scale,omitempty"`
}

type labelInput struct {
	Text string `json:"text"`
}

// Dispatch applies one host event. In probe sessions a pointer press is a
// probe click.
func (s *Session) Dispatch(ev Event) error {
	switch ev.Type {
	case EventPointerDown, EventPointerMove, EventPointerUp, EventDoubleClick:
		var e PointerEvent
		if err := decode(ev, &e); err != nil {
			return err
		}
		s.dispatchPointer(ev.Type, e)

	case EventKeyDown, EventKeyUp:
		var e KeyEvent
		if err := decode(ev, &e); err != nil {
			return err
		}
		if ev.Type == EventKeyDown {
			s.KeyDown(e)
		} else {
			s.KeyUp(e)
		}

	case EventToolbar:
		var e ToolbarEvent
		if err := decode(ev, &e); err != nil {
			return err
		}
		return s.Toolbar(e)

	case EventLabelInput:
		var e labelInput
		if err := decode(ev, &e); err != nil {
			return err
		}
		s.LabelInput(e.Text)
	case EventLabelCommit:
		s.CommitLabel()
	case EventLabelCancel:
		s.CancelLabel()

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
	return nil
}

func (s *Session) dispatchPointer(typ string, e PointerEvent) {
	if s.mode == ModeProbe {
		if typ == EventPointerDown {
			s.Click(e)
		}
		return
	}
	switch typ {
	case EventPointerDown:
		s.PointerDown(e)
	case EventPointerMove:
		s.PointerMove(e)
	case EventPointerUp:
		s.PointerUp(e)
	case EventDoubleClick:
		s.DoubleClick(e)
	}
}

// Toolbar applies a toolbar button.
func (s *Session) Toolbar(e ToolbarEvent) error {
	switch e.Action {
	case ActionUndo:
		s.Undo()
	case ActionRedo:
		s.Redo()
	case ActionDelete:
		s.DeleteSelection()
	case ActionEdit:
		s.EditSelection()
	case ActionRotateCW:
		s.RotateSelection(90)
	case ActionRotateCCW:
		s.RotateSelection(-90)
	case ActionFlipH:
		s.FlipSelection(true)
	case ActionFlipV:
		s.FlipSelection(false)
	case ActionClearHouse:
		s.ClearLayer(document.House)
	case ActionClearUnit:
		s.ClearLayer(document.Unit)
	case ActionClearAll:
		s.ClearAll()
	case ActionZoomIn:
		s.ZoomIn()
	case ActionZoomOut:
		s.ZoomOut()
	case ActionZoomReset:
		s.ZoomReset()
	case ActionZoomSet:
		s.SetScale(e.Scale)
	case ActionTogglePan:
		s.SetToggle(TogglePan, e.On)
	case ActionToggleRot:
		s.SetToggle(ToggleRotate, e.On)
	case ActionToggleCopy:
		s.SetToggle(ToggleCopy, e.On)
	case ActionLayerHouse:
		s.SetActiveLayer(document.House)
	case ActionLayerUnit:
		s.SetActiveLayer(document.Unit)
	case ActionMenuOpen:
		s.OpenMenu()
	case ActionMenuClose:
		s.CloseMenus()
	case ActionAbandonDraw:
		s.AbandonDrawing()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, e.Action)
	}
	return nil
}

func decode(ev Event, v any) error {
	if len(ev.Payload) == 0 {
		return fmt.Errorf("%s: missing payload", ev.Type)
	}
	if err := json.Unmarshal(ev.Payload, v); err != nil {
		return fmt.Errorf("%s: %w", ev.Type, err)
	}
	return nil
}

// Frame is what a host needs to repaint after an event.
type Frame struct {
	Commands  []DrawCommand `json:"commands"`
	Mode      string        `json:"mode"`
	State     string        `json:"state"`
	Layer     string        `json:"layer"`
	Cursor    Cursor        `json:"cursor"`
	Toggles   Toggles       `json:"toggles"`
	Scale     float64       `json:"scale"`
	Percent   int           `json:"percent"`
	Offset    geom.Point    `json:"offset"`
	CanUndo   bool          `json:"canUndo"`
	CanRedo   bool          `json:"canRedo"`
	MenuOpen  bool          `json:"menuOpen,omitempty"`
	Selection *geom.Rect    `json:"selection,omitempty"`
	Editor    *EditorBox    `json:"editor,omitempty"`
}

// EditorBox places the host's text input over the label being edited.
type EditorBox struct {
	Text   string    `json:"text"`
	Bounds geom.Rect `json:"bounds"`
}

// Frame captures the current view.
func (s *Session) Frame() Frame {
	f := Frame{
		Commands: s.DrawCommands(),
		Mode:     s.mode.String(),
		State:    s.state.String(),
		Layer:    s.doc.Active().String(),
		Cursor:   s.cursor,
		Toggles:  s.toggles,
		Scale:    s.view.Scale(),
		Percent:  s.view.Percent(),
		Offset:   s.view.Offset(),
		CanUndo:  s.CanUndo(),
		CanRedo:  s.CanRedo(),
		MenuOpen: s.menuOpen,
	}
	if f.Commands == nil {
		f.Commands = []DrawCommand{}
	}
	if !s.selection.Empty() {
		r := s.SelectionBounds()
		f.Selection = &r
	}
	if label, box, ok := s.EditingLabel(); ok {
		f.Editor = &EditorBox{Text: label.Content, Bounds: box}
	}
	return f
}
