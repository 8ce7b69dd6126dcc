package geometry

import "math"

// Plane is an oriented half-space: points p with Normal·p + D >= 0 are on
// the inside.
type Plane struct {
	Normal Vec3
	D      float64
}

// DistanceTo returns the signed distance from p to the plane. Negative
// means outside.
func (pl Plane) DistanceTo(p Vec3) float64 {
	return pl.Normal.Dot(p) + pl.D
}

// Frustum is a convex volume bounded by six inward-facing planes, in the
// order left, right, bottom, top, near, far. It is immutable for the
// duration of a query.
type Frustum struct {
	Planes [6]Plane

	valid bool
}

// FrustumFromMatrix extracts the six clip planes from a view-projection
// matrix (Gribb-Hartmann). A degenerate matrix yields an invalid frustum;
// queries against it match nothing.
func FrustumFromMatrix(m Mat4) Frustum {
	rows := [6][4]float64{
		{m[0][3] + m[0][0], m[1][3] + m[1][0], m[2][3] + m[2][0], m[3][3] + m[3][0]}, // left
		{m[0][3] - m[0][0], m[1][3] - m[1][0], m[2][3] - m[2][0], m[3][3] - m[3][0]}, // right
		{m[0][3] + m[0][1], m[1][3] + m[1][1], m[2][3] + m[2][1], m[3][3] + m[3][1]}, // bottom
		{m[0][3] - m[0][1], m[1][3] - m[1][1], m[2][3] - m[2][1], m[3][3] - m[3][1]}, // top
		{m[0][3] + m[0][2], m[1][3] + m[1][2], m[2][3] + m[2][2], m[3][3] + m[3][2]}, // near
		{m[0][3] - m[0][2], m[1][3] - m[1][2], m[2][3] - m[2][2], m[3][3] - m[3][2]}, // far
	}

	var f Frustum
	for i, r := range rows {
		n := Vec3{r[0], r[1], r[2]}
		l := n.Length()
		if l < 1e-12 || math.IsNaN(l) || math.IsInf(l, 0) {
			return Frustum{}
		}
		f.Planes[i] = Plane{Normal: n.Scale(1 / l), D: r[3] / l}
	}
	f.valid = true
	return f
}

// Valid reports whether the frustum was extracted from a well-formed
// matrix.
func (f Frustum) Valid() bool {
	return f.valid
}

// IntersectsAABB tests the box against all six planes using the positive
// vertex. Conservative: a box straddling a corner may pass even though the
// exact volume misses it, but a box containing any visible point never
// fails.
func (f Frustum) IntersectsAABB(box AABB) bool {
	if !f.valid {
		return false
	}
	for _, pl := range f.Planes {
		pv := box.Min
		if pl.Normal.X >= 0 {
			pv.X = box.Max.X
		}
		if pl.Normal.Y >= 0 {
			pv.Y = box.Max.Y
		}
		if pl.Normal.Z >= 0 {
			pv.Z = box.Max.Z
		}
		if pl.DistanceTo(pv) < 0 {
			return false
		}
	}
	return true
}

// ContainsPoint reports whether p lies inside the frustum.
func (f Frustum) ContainsPoint(p Vec3) bool {
	if !f.valid {
		return false
	}
	for _, pl := range f.Planes {
		if pl.DistanceTo(p) < 0 {
			return false
		}
	}
	return true
}
