package engine

import (
	"math"

	"github.com/plantrace/plantrace/backend-go/internal/document"
	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// ProbeType classifies what a probe landed on.
type ProbeType int

const (
	ProbeHouse  ProbeType = 0
	ProbeUnit   ProbeType = 1
	ProbeCommon ProbeType = 2
)

// ProbeResult answers which shape contains a point.
type ProbeResult struct {
	Position  geom.Point
	OwnerID   string
	OwnerName string
	Type      ProbeType
}

// Report converts the result to the callback payload with integer
// coordinates.
func (r ProbeResult) Report() ProbeReport {
	return ProbeReport{
		X:    int(math.Round(r.Position.X)),
		Y:    int(math.Round(r.Position.Y)),
		ID:   r.OwnerID,
		Name: r.OwnerName,
		Type: int(r.Type),
	}
}

// ProbeReport is what the host page receives for each probe.
type ProbeReport struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	ID   string `json:"id"`
	Name string `json:"name"`
	Type int    `json:"type"`
}

type probeState struct {
	scope   string
	size    float64
	marker  geom.Point
	visible bool
}

// Probe hit tests p (document space) against the whole document.
func (s *Session) Probe(p geom.Point) ProbeResult {
	hit := HitTestDocument(s.doc, p, DefaultHitOptions)
	if !hit.OK() {
		return ProbeResult{Position: p, OwnerName: CommonAreaName, Type: ProbeCommon}
	}

	typ := ProbeHouse
	if hit.Layer == document.Unit {
		typ = ProbeUnit
	}
	return ProbeResult{
		Position:  p,
		OwnerID:   hit.Group.ID,
		OwnerName: hit.Group.Name(),
		Type:      typ,
	}
}

// Click handles a click in a probe session. The marker moves to the click
// and the probe callback fires, except that with a scope only hits count.
// Read-only probe sessions ignore clicks.
func (s *Session) Click(e PointerEvent) (ProbeResult, bool) {
	if !s.ready || s.mode != ModeProbe || s.readOnly || s.panning() {
		return ProbeResult{}, false
	}

	res := s.Probe(s.view.ToDocument(e.Point()))
	if s.probe.scope != "" && res.Type == ProbeCommon {
		return res, false
	}

	s.probe.marker = res.Position
	s.probe.visible = true
	if s.onProbe != nil {
		s.onProbe(res.Report())
	}
	s.logger.Debug("probe", "x", res.Position.X, "y", res.Position.Y, "type", res.Type)
	return res, true
}

// Marker returns the probe marker position and its radius in document
// units, which shrinks as the view zooms in so it keeps its size on
// screen.
func (s *Session) Marker() (geom.Point, float64, bool) {
	return s.probe.marker, s.probe.size / s.view.Scale(), s.probe.visible
}

// Scope returns the id of the only group a scoped probe session shows.
func (s *Session) Scope() string { return s.probe.scope }
