package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
	"github.com/plantrace/plantrace/backend-go/internal/history"
)

// Session is one editor or probe instance. It owns the document, the
// selection, the undo history and the interaction flags, and turns
// pointer and keyboard events into document mutations.
//
// A Session is not safe for concurrent use; every call must come from the
// goroutine that drives it.
type Session struct {
	mode     Mode
	readOnly bool
	snap     SnapPolicy

	// Document state
	doc     *document.Document
	history *history.Stack[document.Snapshot]
	view    *Viewport
	ready   bool

	logger  *slog.Logger
	notify  Notifier
	onProbe func(ProbeReport)

	// Selection state (never serialized)
	selection Selection

	// Interaction state
	state    State
	toggles  Toggles
	space    bool
	menuOpen bool
	pressed  bool
	last     geom.Point // pointer in document space
	lastView geom.Point // pointer in view space
	drag     dragTarget
	dirty    bool
	drawing  *document.ShapeGroup
	drawKind document.LayerKind
	editor   labelEditor
	cursor   Cursor

	probe      probeState
	background Background
}

// Selection is the current group and the child that was picked.
type Selection struct {
	Group *document.ShapeGroup
	Item  document.Item
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return s.Group == nil }

// Background is the floor plan traced under the shapes.
type Background struct {
	Src    string  `json:"src,omitempty"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
	Failed bool    `json:"failed,omitempty"`
}

// NewSession creates an uninitialised session. Call Load or LoadDocument
// before sending events.
func NewSession(opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	size := opts.MarkerSize
	if size <= 0 {
		size = DefaultMarkerSize
	}

	s := &Session{
		mode:     opts.Mode,
		readOnly: opts.ReadOnly,
		snap:     opts.Snap,
		doc:      document.New(),
		history:  history.New[document.Snapshot](history.DefaultLimit),
		view:     NewViewport(opts.Mode),
		logger:   logger.With("mode", opts.Mode.String()),
		notify:   opts.Notify,
		onProbe:  opts.OnProbe,
		drag:     dragTarget{segment: -1},
		cursor:   CursorDefault,
		probe:    probeState{scope: opts.Scope, size: size},
	}
	if opts.Point != nil {
		s.probe.marker = *opts.Point
		s.probe.visible = true
	}
	s.history.OnAction(s.restore)
	return s
}

// --- Commands (host → session) ---

// Load initializes the session from a load-port response. On failure the
// session stays uninitialised and an error notice is raised.
func (s *Session) Load(resp *document.LoadResponse) error {
	doc, err := resp.Document()
	if err != nil {
		msg := resp.Message
		if msg == "" {
			msg = document.DefaultLoadFailure
		}
		s.logger.Error("load plan", "error", err)
		s.emit(NoticeError, msg)
		return err
	}
	s.LoadDocument(doc)
	return nil
}

// LoadFailed reports a transport error from the load port.
func (s *Session) LoadFailed(cause error) error {
	s.logger.Error("load plan", "error", cause)
	s.emit(NoticeError, document.DefaultLoadFailure)
	return fmt.Errorf("%w: %v", document.ErrLoadFailed, cause)
}

// LoadDocument installs doc and, for writable edit sessions, records the
// first history entry.
func (s *Session) LoadDocument(doc *document.Document) {
	s.doc = doc
	s.history.Reset()
	s.selection = Selection{}
	s.state = StateIdle
	s.drag = dragTarget{segment: -1}
	s.dirty = false
	s.drawing = nil
	s.editor = labelEditor{}
	s.applyDisplay()

	if s.Editable() {
		s.stack()
	}
	s.ready = true
	s.logger.Info("plan loaded",
		"houses", doc.Layer(document.House).Len(),
		"units", doc.Layer(document.Unit).Len())
}

// SetActiveLayer switches the layer new shapes go into and clears the
// selection.
func (s *Session) SetActiveLayer(kind document.LayerKind) {
	s.activateLayer(kind, false)
}

func (s *Session) activateLayer(kind document.LayerKind, keepSelection bool) {
	if !keepSelection {
		s.ClearSelection()
	}
	s.doc.SetActiveLayer(kind)
}

// Select makes item and its group current. A nil item clears the
// selection.
func (s *Session) Select(item document.Item) {
	if item == nil || item.Group() == nil {
		s.selection = Selection{}
		return
	}
	s.selection = Selection{Group: item.Group(), Item: item}
}

func (s *Session) ClearSelection() {
	s.selection = Selection{}
}

// Undo restores the previous snapshot. It reports false at the oldest
// entry.
func (s *Session) Undo() bool {
	if !s.Editable() {
		return false
	}
	return s.history.Undo()
}

// Redo restores the next snapshot. It reports false at the newest entry.
func (s *Session) Redo() bool {
	if !s.Editable() {
		return false
	}
	return s.history.Redo()
}

// SaveRequest serializes the document for the save port, carrying meta
// through untouched.
func (s *Session) SaveRequest(meta map[string]json.RawMessage) (*document.SaveRequest, error) {
	if !s.ready {
		return nil, errors.New("session not loaded")
	}
	s.commitLabel()
	return document.NewSaveRequest(meta, s.doc)
}

// SaveDone reports the outcome of a save to the user. On success ids
// assigned by the save port are adopted by the groups that had none.
func (s *Session) SaveDone(saved *document.SaveRequest, err error) {
	if err != nil {
		s.logger.Error("save plan", "error", err)
		s.emit(NoticeError, err.Error())
		return
	}
	if saved != nil {
		s.adoptIDs(saved)
	}
	s.logger.Info("plan saved", "groups", s.doc.Len())
	s.emit(NoticeInfo, MsgSaved)
}

// adoptIDs copies ids from a saved request onto groups in save order.
func (s *Session) adoptIDs(saved *document.SaveRequest) {
	i := 0
	for _, l := range s.doc.Layers() {
		for _, g := range l.Children {
			if i >= len(saved.Items) {
				return
			}
			if g.ID == "" {
				g.ID = saved.Items[i].ID
			}
			i++
		}
	}
}

// SetBackground records the loaded floor plan and its intrinsic size.
func (s *Session) SetBackground(src string, width, height float64) {
	s.background = Background{Src: src, Width: width, Height: height}
}

// BackgroundFailed marks the floor plan as missing. The session stays
// usable.
func (s *Session) BackgroundFailed(src string, cause error) {
	s.background = Background{Src: src, Failed: true}
	s.logger.Warn("load background", "src", src, "error", cause)
	s.emit(NoticeError, MsgImageMissing)
}

// --- Queries (host ← session) ---

func (s *Session) Mode() Mode                   { return s.mode }
func (s *Session) ReadOnly() bool               { return s.readOnly }
func (s *Session) Ready() bool                  { return s.ready }
func (s *Session) State() State                 { return s.state }
func (s *Session) Document() *document.Document { return s.doc }
func (s *Session) Selection() Selection         { return s.selection }
func (s *Session) Viewport() *Viewport          { return s.view }
func (s *Session) Toggles() Toggles             { return s.toggles }
func (s *Session) Cursor() Cursor               { return s.cursor }
func (s *Session) Background() Background       { return s.background }
func (s *Session) MenuOpen() bool               { return s.menuOpen }
func (s *Session) CanUndo() bool                { return s.history.CanUndo() }
func (s *Session) CanRedo() bool                { return s.history.CanRedo() }
func (s *Session) HistoryLen() int              { return s.history.Len() }

// Drawing returns the group under construction, if any.
func (s *Session) Drawing() *document.ShapeGroup { return s.drawing }

// Editable reports whether the session accepts mutations.
func (s *Session) Editable() bool {
	return s.mode == ModeEdit && !s.readOnly
}

// Export snapshots the document.
func (s *Session) Export() (document.Snapshot, error) {
	return s.doc.Export()
}

// Render compiles the current view to draw commands as JSON.
func (s *Session) Render() string {
	result, err := DrawCommandsToJSON(s.DrawCommands())
	if err != nil {
		s.logger.Error("encode draw commands", "error", err)
	}
	return result
}

// DrawCommands compiles the current view in painter's order.
func (s *Session) DrawCommands() []DrawCommand {
	if !s.ready {
		return nil
	}
	return CompileDrawCommands(BuildSceneGraph(s.sceneInput()))
}

// SelectionBounds returns the box of the selected group.
func (s *Session) SelectionBounds() geom.Rect {
	if s.selection.Empty() {
		return geom.Rect{}
	}
	return s.selection.Group.Bounds()
}

// --- Internals ---

func (s *Session) emit(level NoticeLevel, msg string) {
	if s.notify != nil {
		s.notify(Notice{Level: level, Message: msg})
	}
}

// stack pushes a snapshot of the document onto the history.
func (s *Session) stack() {
	snap, err := s.doc.Export()
	if err != nil {
		s.logger.Error("export snapshot", "error", err)
		return
	}
	s.history.Push(snap)
	s.logger.Debug("snapshot pushed", "entries", s.history.Len())
}

// restore re-imports a snapshot after undo or redo. Away from the oldest
// entry the selection is re-resolved by layer and index.
func (s *Session) restore(snap document.Snapshot) {
	kind, idx, found := s.doc.Locate(s.selection.Group)
	_, onLabel := s.selection.Item.(*document.TextLabel)

	if err := s.doc.Import(snap); err != nil {
		s.logger.Error("restore snapshot", "error", err)
		return
	}

	s.editor = labelEditor{}
	s.drag = dragTarget{segment: -1}
	s.dirty = false
	s.applyDisplay()

	keep := !s.history.IsAtHead()
	s.activateLayer(s.doc.Active(), keep)
	if !keep || !found {
		return
	}

	g := s.doc.GroupAt(kind, idx)
	switch {
	case g == nil:
		s.ClearSelection()
	case onLabel:
		s.Select(g.Label)
	default:
		s.Select(g.Outline)
	}
}

// removeGroup detaches g. If g was selected the selection moves to the
// previous sibling, else the next, else nothing.
func (s *Session) removeGroup(g *document.ShapeGroup) bool {
	l := s.doc.LayerOf(g)
	if l == nil {
		return false
	}

	if s.selection.Group == g {
		switch {
		case l.Previous(g) != nil:
			s.Select(l.Previous(g).Outline)
		case l.Next(g) != nil:
			s.Select(l.Next(g).Outline)
		default:
			s.ClearSelection()
		}
	}

	l.Remove(g)
	return true
}

// applyDisplay sets visibility for the session mode: probe sessions hide
// labels, and with a scope every other group.
func (s *Session) applyDisplay() {
	for _, l := range s.doc.Layers() {
		for _, g := range l.Children {
			g.Hidden = s.mode == ModeProbe && s.probe.scope != "" && g.ID != s.probe.scope
			if g.Label != nil {
				g.Label.Hidden = s.mode == ModeProbe
			}
		}
	}
}
