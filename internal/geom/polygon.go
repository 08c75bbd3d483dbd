package geom

// PolygonContains reports whether p lies inside the closed polygon using
// the nonzero winding rule. Points on an edge count as inside.
func PolygonContains(points []Point, p Point) bool {
	n := len(points)
	if n < 3 {
		return false
	}

	winding := 0
	for i := 0; i < n; i++ {
		a := points[i]
		b := points[(i+1)%n]

		if d, _ := DistanceToSegment(p, a, b); d < Epsilon {
			return true
		}

		if a.Y <= p.Y {
			if b.Y > p.Y && cross(a, b, p) > 0 {
				winding++
			}
		} else if b.Y <= p.Y && cross(a, b, p) < 0 {
			winding--
		}
	}

	return winding != 0
}

// cross returns the z component of (b-a) x (p-a).
func cross(a, b, p Point) float64 {
	return (b.X-a.X)*(p.Y-a.Y) - (p.X-a.X)*(b.Y-a.Y)
}

// DistanceToSegment returns the distance from p to segment ab and the
// parameter t in [0, 1] of the nearest point on the segment.
func DistanceToSegment(p, a, b Point) (float64, float64) {
	ab := b.Sub(a)
	lenSq := ab.X*ab.X + ab.Y*ab.Y
	if lenSq == 0 {
		return p.Distance(a), 0
	}

	t := ((p.X-a.X)*ab.X + (p.Y-a.Y)*ab.Y) / lenSq
	t = max(0, min(1, t))

	nearest := a.Add(ab.Mul(t))
	return p.Distance(nearest), t
}

// NearestEdge finds the edge of a polyline closest to p. Edge i runs from
// points[i] to points[i+1]; when closed, the last edge wraps to points[0].
// Returns -1 when the polyline has fewer than two points.
func NearestEdge(points []Point, closed bool, p Point) (index int, distance float64) {
	n := len(points)
	if n < 2 {
		return -1, 0
	}

	edges := n - 1
	if closed {
		edges = n
	}

	index = -1
	for i := 0; i < edges; i++ {
		d, _ := DistanceToSegment(p, points[i], points[(i+1)%n])
		if index < 0 || d < distance {
			index, distance = i, d
		}
	}

	return index, distance
}

// Transform applies m to every point and returns a new slice.
func Transform(points []Point, m Matrix2D) []Point {
	out := make([]Point, len(points))
	for i, p := range points {
		out[i] = m.Apply(p)
	}
	return out
}
