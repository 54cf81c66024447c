package interpolation

import (
	"fmt"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// AffineTransform resamples a volume through the inverse mapping
// source = m * out + offset, where out runs over every output voxel
// coordinate (x, y, z) in voxel units. The output has the same shape as
// the input; no coordinate grid is materialized. Only the upper-left 3x3
// block of m is read.
func AffineTransform(data []float64, nx, ny, nz int, m mat.Matrix, offset r3.Vec, order int) ([]float64, error) {
	rows, cols := m.Dims()
	if rows < 3 || cols < 3 {
		return nil, fmt.Errorf("affine matrix is %dx%d, need at least 3x3", rows, cols)
	}

	ip, err := NewInterpolator(data, nx, ny, nz, order)
	if err != nil {
		return nil, err
	}

	m00, m01, m02 := m.At(0, 0), m.At(0, 1), m.At(0, 2)
	m10, m11, m12 := m.At(1, 0), m.At(1, 1), m.At(1, 2)
	m20, m21, m22 := m.At(2, 0), m.At(2, 1), m.At(2, 2)

	out := make([]float64, len(data))

	workers := runtime.NumCPU()
	if workers > nz {
		workers = nz
	}
	slabSize := (nz + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		z0 := w * slabSize
		if z0 >= nz {
			break
		}
		z1 := z0 + slabSize
		if z1 > nz {
			z1 = nz
		}

		wg.Add(1)
		go func(z0, z1 int) {
			defer wg.Done()
			for z := z0; z < z1; z++ {
				fz := float64(z)
				for y := 0; y < ny; y++ {
					fy := float64(y)
					row := (z*ny + y) * nx
					for x := 0; x < nx; x++ {
						fx := float64(x)
						sx := m00*fx + m01*fy + m02*fz + offset.X
						sy := m10*fx + m11*fy + m12*fz + offset.Y
						sz := m20*fx + m21*fy + m22*fz + offset.Z
						out[row+x] = ip.At(sx, sy, sz)
					}
				}
			}
		}(z0, z1)
	}
	wg.Wait()

	return out, nil
}
