// Package pose converts between the rotation representations used for
// density map transformations: Euler angle triples, view-direction vectors
// and explicit 3x3 matrices.
//
// Euler angles follow the Relion/Xmipp convention: intrinsic ZYZ, with
// (phi, theta, psi) applied about Z, then the new Y, then the new Z. All
// angles are in radians; degree conversion happens at the parsing boundary.
package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// refAxis is the standard-pose reference view axis (+Z).
var refAxis = r3.Vec{Z: 1}

// Identity returns a new 3x3 identity matrix.
func Identity() *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})
}

// EulerToRot builds the rotation matrix for the Euler triple (phi, theta,
// psi) in radians.
func EulerToRot(phi, theta, psi float64) *mat.Dense {
	ca, sa := math.Cos(phi), math.Sin(phi)
	cb, sb := math.Cos(theta), math.Sin(theta)
	cg, sg := math.Cos(psi), math.Sin(psi)
	cc := cb * ca
	cs := cb * sa
	sc := sb * ca
	ss := sb * sa

	return mat.NewDense(3, 3, []float64{
		cg*cc - sg*sa, cg*cs + sg*ca, -cg * sb,
		-sg*cc - cg*sa, -sg*cs + cg*ca, sg * sb,
		sc, ss, cb,
	})
}

// RotToEuler decomposes a rotation matrix into the Euler triple (phi,
// theta, psi) in radians, inverting EulerToRot. At theta = 0 or pi the
// first and last rotation axes coincide and only the sum (or difference)
// of phi and psi is determined; the convention then reports phi = 0.
func RotToEuler(r mat.Matrix) (phi, theta, psi float64) {
	const eps = 1e-16

	absSb := math.Hypot(r.At(0, 2), r.At(1, 2))
	if absSb > 16*eps {
		psi = math.Atan2(r.At(1, 2), -r.At(0, 2))
		phi = math.Atan2(r.At(2, 1), r.At(2, 0))

		var signSb float64
		switch {
		case math.Abs(math.Sin(psi)) < eps:
			signSb = sign(-r.At(0, 2) / math.Cos(psi))
		case math.Sin(psi) > 0:
			signSb = sign(r.At(1, 2))
		default:
			signSb = -sign(r.At(1, 2))
		}
		theta = math.Atan2(signSb*absSb, r.At(2, 2))
		return phi, theta, psi
	}

	if r.At(2, 2) >= 0 {
		return 0, 0, math.Atan2(-r.At(1, 0), r.At(0, 0))
	}
	return 0, math.Pi, math.Atan2(r.At(1, 0), -r.At(0, 0))
}

// VecToRot returns the rotation that maps the reference view axis (+Z) onto
// the direction of v, via the Rodrigues formula about the axis +Z x v. The
// antiparallel direction has no unique such rotation; the convention is a
// half turn about X, diag(1, -1, -1). v must be non-zero.
func VecToRot(v r3.Vec) *mat.Dense {
	u := r3.Unit(v)
	c := r3.Dot(refAxis, u)
	k := r3.Cross(refAxis, u)
	s2 := r3.Dot(k, k)

	if s2 < 1e-24 {
		if c > 0 {
			return Identity()
		}
		return mat.NewDense(3, 3, []float64{
			1, 0, 0,
			0, -1, 0,
			0, 0, -1,
		})
	}

	kx := Skew(k)
	var kx2 mat.Dense
	kx2.Mul(kx, kx)

	// R = I + K + K^2 (1-c)/s^2
	scale := (1 - c) / s2
	r := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			val := kx.At(i, j) + scale*kx2.At(i, j)
			if i == j {
				val++
			}
			r.Set(i, j, val)
		}
	}
	return r
}

// Skew returns the cross-product matrix of v, so Skew(v) * w = v x w.
func Skew(v r3.Vec) *mat.Dense {
	return mat.NewDense(3, 3, []float64{
		0, -v.Z, v.Y,
		v.Z, 0, -v.X,
		-v.Y, v.X, 0,
	})
}

// MulVec applies the 3x3 matrix m to v.
func MulVec(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// IsRotation reports whether the upper-left 3x3 block of m is a proper
// rotation: orthonormal with determinant +1, within tol.
func IsRotation(m mat.Matrix, tol float64) bool {
	r, c := m.Dims()
	if r < 3 || c < 3 {
		return false
	}

	block := mat.NewDense(3, 3, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			block.Set(i, j, m.At(i, j))
		}
	}

	if math.Abs(mat.Det(block)-1) > tol {
		return false
	}

	var gram mat.Dense
	gram.Mul(block.T(), block)
	return mat.EqualApprox(&gram, Identity(), tol)
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
