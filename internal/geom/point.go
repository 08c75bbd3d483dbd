// Package geom holds the plane geometry the editor is built on: points,
// axis-aligned rectangles, affine matrices and polygon queries.
package geom

import (
	"encoding/json"
	"fmt"
	"math"
)

// Epsilon is the tolerance used for point equality.
const Epsilon = 1e-9

// Point is a position or vector in document space. Y grows downwards.
type Point struct {
	X float64
	Y float64
}

// Pt is shorthand for Point{x, y}.
func Pt(x, y float64) Point {
	return Point{X: x, Y: y}
}

func (p Point) Add(q Point) Point {
	return Point{p.X + q.X, p.Y + q.Y}
}

func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

func (p Point) Mul(s float64) Point {
	return Point{p.X * s, p.Y * s}
}

// Div divides both coordinates by s. Dividing by zero returns p unchanged.
func (p Point) Div(s float64) Point {
	if s == 0 {
		return p
	}
	return Point{p.X / s, p.Y / s}
}

// Length returns the vector length.
func (p Point) Length() float64 {
	return math.Hypot(p.X, p.Y)
}

// Distance returns the distance between p and q.
func (p Point) Distance(q Point) float64 {
	return p.Sub(q).Length()
}

// Angle returns the vector direction in degrees in (-180, 180], measured
// from the positive x axis towards the positive y axis.
func (p Point) Angle() float64 {
	return math.Atan2(p.Y, p.X) * 180 / math.Pi
}

// Equals reports whether p and q coincide within Epsilon.
func (p Point) Equals(q Point) bool {
	return math.Abs(p.X-q.X) < Epsilon && math.Abs(p.Y-q.Y) < Epsilon
}

// Round rounds both coordinates to the nearest integer.
func (p Point) Round() Point {
	return Point{math.Round(p.X), math.Round(p.Y)}
}

func (p Point) String() string {
	return fmt.Sprintf("(%g, %g)", p.X, p.Y)
}

// MarshalJSON encodes the point as a two-element array.
func (p Point) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{p.X, p.Y})
}

// UnmarshalJSON accepts a two-element array or an {"x","y"} object.
func (p *Point) UnmarshalJSON(data []byte) error {
	var arr [2]float64
	if err := json.Unmarshal(data, &arr); err == nil {
		p.X, p.Y = arr[0], arr[1]
		return nil
	}

	var obj struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("decode point: %w", err)
	}
	p.X, p.Y = obj.X, obj.Y
	return nil
}
