// Package volume defines the in-memory representation of a density map: a
// dense 3D scalar field on a regular grid with a physical voxel size. The
// transform pipeline treats Volumes as immutable inputs and produces fresh
// ones, so a Volume is never modified after it has been handed off.
package volume

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Volume is a dense 3D scalar field sampled on a regular grid.
type Volume struct {
	// Data holds the voxel values in file order: x fastest, then y, then z,
	// so the value at (x, y, z) lives at index x + Nx*(y + Ny*z).
	Data []float64

	// Nx, Ny, Nz are the grid dimensions in voxels.
	Nx, Ny, Nz int

	// PixelSize is the physical edge length of one voxel in Angstroms.
	// It must be positive before the volume enters the transform pipeline.
	PixelSize float64
}

// New allocates a zero-filled volume with the given dimensions and pixel size.
func New(nx, ny, nz int, pixelSize float64) *Volume {
	return &Volume{
		Data:      make([]float64, nx*ny*nz),
		Nx:        nx,
		Ny:        ny,
		Nz:        nz,
		PixelSize: pixelSize,
	}
}

// Validate checks the structural invariants: positive dimensions and a data
// slice of matching length. Pixel size is checked separately by the pipeline
// because it may legitimately be unresolved right after reading a file.
func (v *Volume) Validate() error {
	if v.Nx <= 0 || v.Ny <= 0 || v.Nz <= 0 {
		return fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", v.Nx, v.Ny, v.Nz)
	}
	if len(v.Data) != v.Nx*v.Ny*v.Nz {
		return fmt.Errorf("volume data length %d does not match dimensions %dx%dx%d",
			len(v.Data), v.Nx, v.Ny, v.Nz)
	}
	return nil
}

// Index returns the flat index of voxel (x, y, z).
func (v *Volume) Index(x, y, z int) int {
	return x + v.Nx*(y+v.Ny*z)
}

// At returns the value of voxel (x, y, z). Bounds are not checked.
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[x+v.Nx*(y+v.Ny*z)]
}

// Set stores val at voxel (x, y, z). Bounds are not checked.
func (v *Volume) Set(x, y, z int, val float64) {
	v.Data[x+v.Nx*(y+v.Ny*z)] = val
}

// Dims returns the grid dimensions.
func (v *Volume) Dims() (nx, ny, nz int) {
	return v.Nx, v.Ny, v.Nz
}

// Copy returns a deep copy sharing no storage with v.
func (v *Volume) Copy() *Volume {
	out := &Volume{
		Data:      make([]float64, len(v.Data)),
		Nx:        v.Nx,
		Ny:        v.Ny,
		Nz:        v.Nz,
		PixelSize: v.PixelSize,
	}
	copy(out.Data, v.Data)
	return out
}

// Like allocates a zero-filled volume with the same dimensions and pixel
// size as v.
func (v *Volume) Like() *Volume {
	return New(v.Nx, v.Ny, v.Nz, v.PixelSize)
}

// Mean returns the mean voxel value.
func (v *Volume) Mean() float64 {
	return stat.Mean(v.Data, nil)
}

// StdDev returns the population standard deviation of the voxel values.
func (v *Volume) StdDev() float64 {
	return stat.PopStdDev(v.Data, nil)
}

// MinMax returns the smallest and largest voxel values.
func (v *Volume) MinMax() (min, max float64) {
	if len(v.Data) == 0 {
		return 0, 0
	}
	min, max = v.Data[0], v.Data[0]
	for _, d := range v.Data[1:] {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// ZScore returns a copy of v with densities converted to Z-scores:
// (value - mean) / sigma. The mean is always taken from v itself; sigma is
// taken from ref when ref is non-nil, so a set of maps can be scaled against
// a common reference. The mean and sigma used are returned for reporting.
func ZScore(v, ref *Volume) (out *Volume, mean, sigma float64) {
	mean = v.Mean()
	if ref != nil {
		sigma = ref.StdDev()
	} else {
		sigma = v.StdDev()
	}

	out = v.Like()
	for i, d := range v.Data {
		out.Data[i] = (d - mean) / sigma
	}
	return out, mean, sigma
}
