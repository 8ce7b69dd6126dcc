package geometry

import "math"

// Mat4 is a column-major 4x4 matrix: m[col][row]. Callers build a
// view-projection matrix with Perspective and LookAt (or supply their own)
// and hand it to FrustumFromMatrix once per query.
type Mat4 [4][4]float64

// Identity returns the identity matrix.
func Identity() Mat4 {
	var m Mat4
	m[0][0], m[1][1], m[2][2], m[3][3] = 1, 1, 1, 1
	return m
}

// Mul returns m * o.
func (m Mat4) Mul(o Mat4) Mat4 {
	var r Mat4
	for c := 0; c < 4; c++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += m[k][row] * o[c][k]
			}
			r[c][row] = sum
		}
	}
	return r
}

// Perspective builds a right-handed perspective projection with a vertical
// field of view in radians.
func Perspective(fovy, aspect, near, far float64) Mat4 {
	f := 1 / math.Tan(fovy/2)
	var m Mat4
	m[0][0] = f / aspect
	m[1][1] = f
	m[2][2] = (far + near) / (near - far)
	m[2][3] = -1
	m[3][2] = 2 * far * near / (near - far)
	return m
}

// LookAt builds a right-handed view matrix for a camera at eye looking at
// center with the given up direction.
func LookAt(eye, center, up Vec3) Mat4 {
	f := center.Sub(eye).Normalize()
	s := f.Cross(up).Normalize()
	u := s.Cross(f)

	m := Identity()
	m[0][0], m[1][0], m[2][0] = s.X, s.Y, s.Z
	m[0][1], m[1][1], m[2][1] = u.X, u.Y, u.Z
	m[0][2], m[1][2], m[2][2] = -f.X, -f.Y, -f.Z
	m[3][0] = -s.Dot(eye)
	m[3][1] = -u.Dot(eye)
	m[3][2] = f.Dot(eye)
	return m
}
