package transform

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mapmod/pkg/interpolation"
	"mapmod/pkg/volume"
)

// Resample produces a new volume of identical shape by pulling every
// output voxel from the source through the inverse of the requested
// transform: source = Rt * (out - o) + o + (t - o when t is set), with Rt
// the transpose of r and o the pivot origin (volume half-extent when nil).
//
// r may be 3x3, or 3x4 with the fourth column supplying t when t is nil.
// With neither rotation nor translation the source is copied exactly, no
// resampling involved.
func Resample(vol *volume.Volume, r *mat.Dense, t *r3.Vec, origin *r3.Vec, order int) (*volume.Volume, error) {
	if r == nil && t == nil {
		return vol.Copy(), nil
	}

	nx, ny, nz := vol.Dims()
	o := r3.Vec{X: float64(nx) / 2, Y: float64(ny) / 2, Z: float64(nz) / 2}
	if origin != nil {
		o = *origin
	}

	if r != nil {
		rows, cols := r.Dims()
		if rows != 3 || (cols != 3 && cols != 4) {
			return nil, fmt.Errorf("transform matrix is %dx%d, need 3x3 or 3x4", rows, cols)
		}
		if cols == 4 && t == nil {
			t = &r3.Vec{X: r.At(0, 3), Y: r.At(1, 3), Z: r.At(2, 3)}
		}
	}

	th := eye4()
	if t != nil {
		th.Set(0, 3, t.X-o.X)
		th.Set(1, 3, t.Y-o.Y)
		th.Set(2, 3, t.Z-o.Z)
	}

	rh := eye4()
	if r != nil {
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				rh.Set(i, j, r.At(j, i))
			}
		}
	}

	var m mat.Dense
	m.Mul(th, rh)

	m00, m01, m02, m03 := m.At(0, 0), m.At(0, 1), m.At(0, 2), m.At(0, 3)
	m10, m11, m12, m13 := m.At(1, 0), m.At(1, 1), m.At(1, 2), m.At(1, 3)
	m20, m21, m22, m23 := m.At(2, 0), m.At(2, 1), m.At(2, 2), m.At(2, 3)

	// Output grid centered on the origin, x fastest to match the data
	// layout, so sampled values land at their flat indices.
	n := nx * ny * nz
	cx := make([]float64, n)
	cy := make([]float64, n)
	cz := make([]float64, n)

	i := 0
	for z := 0; z < nz; z++ {
		gz := float64(z) - o.Z
		for y := 0; y < ny; y++ {
			gy := float64(y) - o.Y
			for x := 0; x < nx; x++ {
				gx := float64(x) - o.X
				cx[i] = m00*gx + m01*gy + m02*gz + m03 + o.X
				cy[i] = m10*gx + m11*gy + m12*gz + m13 + o.Y
				cz[i] = m20*gx + m21*gy + m22*gz + m23 + o.Z
				i++
			}
		}
	}

	data, err := interpolation.MapCoordinates(vol.Data, nx, ny, nz, cx, cy, cz, order)
	if err != nil {
		return nil, err
	}

	return &volume.Volume{Data: data, Nx: nx, Ny: ny, Nz: nz, PixelSize: vol.PixelSize}, nil
}

// Apply runs the request through the resampler at the given spline order.
func (req Request) Apply(vol *volume.Volume, order int) (*volume.Volume, error) {
	return Resample(vol, req.R, req.T, req.Origin, order)
}

func eye4() *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}
