package geom

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func square() []Point {
	return []Point{Pt(0, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10)}
}

func TestPolygonContains(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want bool
	}{
		{"center", Pt(5, 5), true},
		{"outside right", Pt(11, 5), false},
		{"outside above", Pt(5, -1), false},
		{"on edge", Pt(10, 5), true},
		{"vertex", Pt(0, 0), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PolygonContains(square(), tt.p))
		})
	}
}

func TestPolygonContains_Concave(t *testing.T) {
	// U shape opening upwards.
	u := []Point{Pt(0, 0), Pt(3, 0), Pt(3, 7), Pt(7, 7), Pt(7, 0), Pt(10, 0), Pt(10, 10), Pt(0, 10)}

	assert.False(t, PolygonContains(u, Pt(5, 3)))
	assert.True(t, PolygonContains(u, Pt(1, 3)))
	assert.True(t, PolygonContains(u, Pt(5, 9)))
}

func TestPolygonContains_Degenerate(t *testing.T) {
	assert.False(t, PolygonContains([]Point{Pt(0, 0), Pt(1, 1)}, Pt(0, 0)))
}

func TestNearestEdge(t *testing.T) {
	idx, d := NearestEdge(square(), true, Pt(-2, 5))
	assert.Equal(t, 3, idx)
	assert.InDelta(t, 2, d, 1e-9)

	idx, _ = NearestEdge(square(), false, Pt(-2, 7))
	assert.Equal(t, 2, idx, "open polyline has no wrapping edge")

	idx, _ = NearestEdge([]Point{Pt(0, 0)}, true, Pt(1, 1))
	assert.Equal(t, -1, idx)
}

func TestPointAngle(t *testing.T) {
	assert.InDelta(t, 63.4349, Pt(5, 10).Angle(), 1e-4)
	assert.InDelta(t, 90, Pt(0, 1).Angle(), 1e-9)
	assert.InDelta(t, -90, Pt(0, -1).Angle(), 1e-9)
	assert.InDelta(t, 180, Pt(-1, 0).Angle(), 1e-9)
}

func TestRotateAbout(t *testing.T) {
	m := RotateAbout(90, Pt(5, 5))
	got := m.Apply(Pt(10, 5))
	assert.InDelta(t, 5, got.X, 1e-9)
	assert.InDelta(t, 10, got.Y, 1e-9)
}

func TestScaleAboutMirrors(t *testing.T) {
	m := ScaleAbout(-1, 1, Pt(5, 0))
	got := m.Apply(Pt(8, 3))
	assert.InDelta(t, 2, got.X, 1e-9)
	assert.InDelta(t, 3, got.Y, 1e-9)
}

func TestMatrixInvert(t *testing.T) {
	m := RotateAbout(33, Pt(2, 7)).Multiply(Translate(4, -1))
	p := Pt(3, 9)
	back := m.Invert().Apply(m.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
	assert.True(t, m.Multiply(m.Invert()).IsIdentity())
}

func TestBoundsOf(t *testing.T) {
	r := BoundsOf([]Point{Pt(3, 4), Pt(-1, 8), Pt(2, -2)})
	assert.Equal(t, Rect{X: -1, Y: -2, Width: 4, Height: 10}, r)
	assert.Equal(t, Pt(1, 3), r.Center())
	assert.Equal(t, Rect{}, BoundsOf(nil))
}

func TestPointJSON(t *testing.T) {
	data, err := json.Marshal(Pt(1.5, -2))
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5,-2]`, string(data))

	var p Point
	require.NoError(t, json.Unmarshal([]byte(`{"x":3,"y":4}`), &p))
	assert.Equal(t, Pt(3, 4), p)

	require.NoError(t, json.Unmarshal([]byte(`[7,8]`), &p))
	assert.Equal(t, Pt(7, 8), p)

	assert.Error(t, json.Unmarshal([]byte(`"nope"`), &p))
}

func TestDiv(t *testing.T) {
	assert.Equal(t, Pt(2, 4), Pt(4, 8).Div(2))
	assert.Equal(t, Pt(4, 8), Pt(4, 8).Div(0))
	assert.False(t, math.IsNaN(Pt(1, 1).Div(0).X))
}
