package config

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/plantrace/plantrace/backend-go/internal/geom"
)

// DefaultMarkerSize is the probe marker radius when none is given.
const DefaultMarkerSize = 10

// SnapNext selects the fixed (next.x, prev.y) corner for shift pick-ups.
// Any other snap value means the nearest corner.
const SnapNext = "next"

// Options are the per-session settings carried in the page query string.
type Options struct {
	Mode     int         `json:"mode"`
	ReadOnly bool        `json:"readonly"`
	Src      string      `json:"src,omitempty"`
	Scope    string      `json:"scope,omitempty"`
	Size     float64     `json:"size"`
	Point    *geom.Point `json:"point,omitempty"`
	Snap     string      `json:"snap,omitempty"`
}

// ParseOptions reads session options from query values. Malformed values
// fall back to their defaults: edit mode, writable, marker size 10, no
// initial point, nearest-corner snapping.
func ParseOptions(q url.Values) Options {
	opts := Options{
		Src:   q.Get("src"),
		Scope: strings.TrimSpace(q.Get("scope")),
		Size:  DefaultMarkerSize,
	}

	if n, ok := number(q.Get("mode")); ok && (n == 0 || n == 1) {
		opts.Mode = int(n)
	}

	opts.ReadOnly = truthy(q.Get("readonly"))

	if n, ok := number(q.Get("size")); ok && n != 0 {
		opts.Size = n
	}

	switch {
	case q.Has("point"):
		opts.Point = parsePoint(q.Get("point"))
	case q.Has("pointX"):
		if x, ok := number(q.Get("pointX")); ok {
			y, _ := number(q.Get("pointY"))
			opts.Point = &geom.Point{X: x, Y: y}
		}
	}

	if strings.EqualFold(strings.TrimSpace(q.Get("snap")), SnapNext) {
		opts.Snap = SnapNext
	}

	return opts
}

// Query is the inverse of ParseOptions for the fields that differ from
// their defaults.
func (o Options) Query() url.Values {
	q := url.Values{}
	if o.Mode != 0 {
		q.Set("mode", strconv.Itoa(o.Mode))
	}
	if o.ReadOnly {
		q.Set("readonly", "1")
	}
	if o.Src != "" {
		q.Set("src", o.Src)
	}
	if o.Scope != "" {
		q.Set("scope", o.Scope)
	}
	if o.Size != 0 && o.Size != DefaultMarkerSize {
		q.Set("size", strconv.FormatFloat(o.Size, 'f', -1, 64))
	}
	if o.Point != nil {
		q.Set("point", strconv.FormatFloat(o.Point.X, 'f', -1, 64)+","+strconv.FormatFloat(o.Point.Y, 'f', -1, 64))
	}
	if o.Snap == SnapNext {
		q.Set("snap", SnapNext)
	}
	return q
}

func number(s string) (float64, bool) {
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return n, err == nil
}

// truthy accepts booleans and numbers; any other non-empty text counts as
// set.
func truthy(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	if n, ok := number(s); ok {
		return n != 0
	}
	return true
}

// parsePoint reads "x,y" or a single "n" meaning (n,n).
func parsePoint(s string) *geom.Point {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	x, okX := number(parts[0])
	y := x
	okY := okX
	if len(parts) > 1 {
		y, okY = number(parts[1])
	}
	if !okX || !okY {
		return nil
	}
	return &geom.Point{X: x, Y: y}
}
