package engine

import (
	"log/slog"

	"github.com/plantrace/plantrace/backend-go/internal/config"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// Mode is fixed when a session is created.
type Mode int

const (
	ModeEdit  Mode = 0
	ModeProbe Mode = 1
)

// ParseMode maps a numeric option to a mode; out-of-range values mean edit.
func ParseMode(n int) Mode {
	if n == int(ModeProbe) {
		return ModeProbe
	}
	return ModeEdit
}

func (m Mode) String() string {
	if m == ModeProbe {
		return "probe"
	}
	return "edit"
}

// State is the interaction state of an edit session.
type State int

const (
	StateIdle State = iota
	StateDrawing
	StateDraggingSegment
	StateDraggingShape
	StateRotating
	StatePanning
)

var stateNames = [...]string{"idle", "drawing", "dragging-segment", "dragging-shape", "rotating", "panning"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "unknown"
}

// SnapPolicy picks the right-angle corner a shift pick-up moves a segment
// to.
type SnapPolicy int

const (
	// SnapNearest moves to the closer of the two corners formed by the
	// neighbors, or to the other one if already on a corner.
	SnapNearest SnapPolicy = iota
	// SnapNext always moves to (next.x, prev.y).
	SnapNext
)

// ParseSnapPolicy maps the snap option; anything but "next" is nearest.
func ParseSnapPolicy(s string) SnapPolicy {
	if s == config.SnapNext {
		return SnapNext
	}
	return SnapNearest
}

// Interaction constants.
const (
	MinShapeSize      = 14
	HitTolerance      = 5
	DefaultMarkerSize = config.DefaultMarkerSize
	CommonAreaName    = "公共区域"
)

// User-facing messages.
const (
	MsgSaved        = "保存成功!"
	MsgImageMissing = "[E1] 找不到图片。"
)

// NoticeLevel tells the host how to style a notice.
type NoticeLevel string

const (
	NoticeInfo  NoticeLevel = "info"
	NoticeError NoticeLevel = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Notifier receives notices. It must not block.
type Notifier func(Notice)

// Options configure a new session.
type Options struct {
	Mode       Mode
	ReadOnly   bool
	Scope      string
	MarkerSize float64
	Point      *geom.Point
	Snap       SnapPolicy

	Logger  *slog.Logger
	Notify  Notifier
	OnProbe func(ProbeReport)
}

// OptionsFromConfig converts options parsed from a page query string.
func OptionsFromConfig(o config.Options) Options {
	return Options{
		Mode:       ParseMode(o.Mode),
		ReadOnly:   o.ReadOnly,
		Scope:      o.Scope,
		MarkerSize: o.Size,
		Point:      o.Point,
		Snap:       ParseSnapPolicy(o.Snap),
	}
}
