package pose

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

func requireMatApprox(t *testing.T, want, got mat.Matrix, tol float64) {
	t.Helper()
	if !mat.EqualApprox(want, got, tol) {
		t.Fatalf("matrix mismatch:\nwant:\n%v\ngot:\n%v",
			mat.Formatted(want), mat.Formatted(got))
	}
}

func TestEulerToRotKnownMatrices(t *testing.T) {
	tests := []struct {
		name            string
		phi, theta, psi float64
		want            []float64
	}{
		{
			name: "identity",
			want: []float64{1, 0, 0, 0, 1, 0, 0, 0, 1},
		},
		{
			name:  "quarter turn about y",
			theta: math.Pi / 2,
			want:  []float64{0, 0, -1, 0, 1, 0, 1, 0, 0},
		},
		{
			name: "quarter turn about z via phi",
			phi:  math.Pi / 2,
			want: []float64{0, 1, 0, -1, 0, 0, 0, 0, 1},
		},
		{
			name: "quarter turn about z via psi",
			psi:  math.Pi / 2,
			want: []float64{0, 1, 0, -1, 0, 0, 0, 0, 1},
		},
		{
			name:  "half turn about y",
			theta: math.Pi,
			want:  []float64{-1, 0, 0, 0, 1, 0, 0, 0, -1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EulerToRot(tt.phi, tt.theta, tt.psi)
			requireMatApprox(t, mat.NewDense(3, 3, tt.want), got, 1e-12)
			assert.True(t, IsRotation(got, 1e-12))
		})
	}
}

func TestEulerRoundTrip(t *testing.T) {
	triples := []struct {
		phi, theta, psi float64
	}{
		{0.3, 0.7, -0.4},
		{-1.2, 2.1, 0.5},
		{2.8, 1.4, -2.9},
		{0.1, 0.02, 0.3},
		{-0.6, 3.0, 1.9},
	}

	for _, tr := range triples {
		r := EulerToRot(tr.phi, tr.theta, tr.psi)
		phi, theta, psi := RotToEuler(r)
		assert.InDelta(t, tr.phi, phi, 1e-9, "phi for %+v", tr)
		assert.InDelta(t, tr.theta, theta, 1e-9, "theta for %+v", tr)
		assert.InDelta(t, tr.psi, psi, 1e-9, "psi for %+v", tr)
	}
}

// Matrices at theta = 0 or pi decompose to a different but equivalent
// triple, so the round trip is checked at the matrix level.
func TestRotToEulerDegenerate(t *testing.T) {
	tests := []struct {
		name            string
		phi, theta, psi float64
	}{
		{name: "identity"},
		{name: "z only", phi: 0.8},
		{name: "z split", phi: 0.5, psi: -1.1},
		{name: "flipped", theta: math.Pi, psi: 0.4},
		{name: "negative theta", phi: 0.3, theta: -0.7, psi: -0.4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := EulerToRot(tt.phi, tt.theta, tt.psi)
			phi, theta, psi := RotToEuler(r)
			requireMatApprox(t, r, EulerToRot(phi, theta, psi), 1e-9)
		})
	}
}

func TestVecToRotAlignsReferenceAxis(t *testing.T) {
	vecs := []r3.Vec{
		{X: 1, Y: 1, Z: 1},
		{X: 0, Y: 0, Z: 5},
		{X: 1, Y: 0, Z: 0},
		{X: 0, Y: -2, Z: 0},
		{X: -0.3, Y: 0.8, Z: -0.5},
		{X: 1e-8, Y: 0, Z: 1},
	}

	for _, v := range vecs {
		r := VecToRot(v)
		require.True(t, IsRotation(r, 1e-9), "VecToRot(%+v) is not a rotation", v)

		got := MulVec(r, refAxis)
		want := r3.Unit(v)
		assert.InDelta(t, want.X, got.X, 1e-9, "x for %+v", v)
		assert.InDelta(t, want.Y, got.Y, 1e-9, "y for %+v", v)
		assert.InDelta(t, want.Z, got.Z, 1e-9, "z for %+v", v)
	}
}

func TestVecToRotDegenerate(t *testing.T) {
	requireMatApprox(t, Identity(), VecToRot(r3.Vec{Z: 2}), 1e-12)

	want := mat.NewDense(3, 3, []float64{1, 0, 0, 0, -1, 0, 0, 0, -1})
	requireMatApprox(t, want, VecToRot(r3.Vec{Z: -1}), 1e-12)
}

func TestVecToRotEulerConsistency(t *testing.T) {
	r := VecToRot(r3.Vec{X: 1, Y: 1, Z: 1})
	phi, theta, psi := RotToEuler(r)
	requireMatApprox(t, r, EulerToRot(phi, theta, psi), 1e-9)
}

func TestIsRotation(t *testing.T) {
	assert.True(t, IsRotation(Identity(), 1e-12))

	scaled := mat.NewDense(3, 3, []float64{2, 0, 0, 0, 2, 0, 0, 0, 2})
	assert.False(t, IsRotation(scaled, 1e-6))

	reflection := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, -1})
	assert.False(t, IsRotation(reflection, 1e-6))

	rect := mat.NewDense(2, 3, nil)
	assert.False(t, IsRotation(rect, 1e-6))
}

func TestSkewMatchesCross(t *testing.T) {
	v := r3.Vec{X: 0.4, Y: -1.2, Z: 2.5}
	w := r3.Vec{X: -0.7, Y: 0.3, Z: 1.1}

	want := r3.Cross(v, w)
	got := MulVec(Skew(v), w)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
	assert.InDelta(t, want.Z, got.Z, 1e-12)
}
