// Package filter provides radial Fourier-space filters for density
// volumes. Filters are specified by resolution in Angstroms and soften
// their cutoff with a raised-cosine edge so they do not ring.
package filter

import (
	"fmt"
	"math"
	"runtime"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"mapmod/pkg/volume"
)

// DefaultEdgeWidth is the cosine edge width in Fourier voxels used when
// the caller does not choose one.
const DefaultEdgeWidth = 3

// Lowpass attenuates spatial frequencies finer than the given resolution.
// The edge width is measured in Fourier voxels of the shortest axis.
func Lowpass(vol *volume.Volume, resolution, apix float64, edgeWidth int) (*volume.Volume, error) {
	return apply(vol, resolution, apix, edgeWidth, false)
}

// Highpass attenuates spatial frequencies coarser than the given
// resolution. Its gain is exactly one minus the lowpass gain, so the two
// outputs at the same resolution sum back to the input.
func Highpass(vol *volume.Volume, resolution, apix float64, edgeWidth int) (*volume.Volume, error) {
	return apply(vol, resolution, apix, edgeWidth, true)
}

func apply(vol *volume.Volume, resolution, apix float64, edgeWidth int, invert bool) (*volume.Volume, error) {
	if err := vol.Validate(); err != nil {
		return nil, err
	}
	if resolution <= 0 {
		return nil, fmt.Errorf("filter resolution must be positive, got %g", resolution)
	}
	if apix <= 0 {
		return nil, fmt.Errorf("pixel size must be positive, got %g", apix)
	}
	if edgeWidth < 0 {
		edgeWidth = 0
	}

	nx, ny, nz := vol.Dims()
	spec := make([]complex128, len(vol.Data))
	for i, d := range vol.Data {
		spec[i] = complex(d, 0)
	}

	for axis := 0; axis < 3; axis++ {
		transformAxis(spec, nx, ny, nz, axis, false)
	}

	cutoff := 1 / resolution
	width := float64(edgeWidth) / (float64(minDim(nx, ny, nz)) * apix)
	applyGain(spec, freqs(nx, apix), freqs(ny, apix), freqs(nz, apix), cutoff, width, invert)

	for axis := 0; axis < 3; axis++ {
		transformAxis(spec, nx, ny, nz, axis, true)
	}

	// The forward/inverse pair is unnormalized and gains a factor of the
	// length per axis.
	out := vol.Like()
	scale := 1 / float64(nx*ny*nz)
	for i := range out.Data {
		out.Data[i] = real(spec[i]) * scale
	}
	return out, nil
}

// transformAxis runs an unnormalized FFT, or its inverse, along one axis
// of the spectrum in place. Lines along the axis are independent and are
// split across the CPUs.
func transformAxis(spec []complex128, nx, ny, nz, axis int, inverse bool) {
	var length, stride, count int
	var start func(j int) int

	switch axis {
	case 0:
		length, stride, count = nx, 1, ny*nz
		start = func(j int) int { return j * nx }
	case 1:
		length, stride, count = ny, nx, nx*nz
		start = func(j int) int {
			z := j / nx
			x := j % nx
			return z*nx*ny + x
		}
	default:
		length, stride, count = nz, nx*ny, nx*ny
		start = func(j int) int { return j }
	}

	if length < 2 {
		return
	}

	workers := runtime.NumCPU()
	if workers > count {
		workers = count
	}
	chunk := (count + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > count {
			hi = count
		}
		if lo >= hi {
			break
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()

			fft := fourier.NewCmplxFFT(length)
			line := make([]complex128, length)
			coeff := make([]complex128, length)
			for j := lo; j < hi; j++ {
				s := start(j)
				for k := 0; k < length; k++ {
					line[k] = spec[s+k*stride]
				}
				if inverse {
					fft.Sequence(coeff, line)
				} else {
					fft.Coefficients(coeff, line)
				}
				for k := 0; k < length; k++ {
					spec[s+k*stride] = coeff[k]
				}
			}
		}(lo, hi)
	}
	wg.Wait()
}

func applyGain(spec []complex128, fx, fy, fz []float64, cutoff, width float64, invert bool) {
	i := 0
	for z := range fz {
		fz2 := fz[z] * fz[z]
		for y := range fy {
			fyz2 := fy[y]*fy[y] + fz2
			for x := range fx {
				s := math.Sqrt(fx[x]*fx[x] + fyz2)
				g := edgeGain(s, cutoff, width)
				if invert {
					g = 1 - g
				}
				spec[i] *= complex(g, 0)
				i++
			}
		}
	}
}

// edgeGain is the lowpass response at radial frequency s: unity below the
// cosine edge around the cutoff, zero above it.
func edgeGain(s, cutoff, width float64) float64 {
	if width <= 0 {
		if s <= cutoff {
			return 1
		}
		return 0
	}

	lo := cutoff - width/2
	hi := cutoff + width/2
	switch {
	case s <= lo:
		return 1
	case s >= hi:
		return 0
	default:
		return 0.5 * (1 + math.Cos(math.Pi*(s-lo)/width))
	}
}

// freqs returns the spatial frequency of every coefficient along an axis
// of n samples, in cycles per Angstrom, negative above the Nyquist index.
func freqs(n int, apix float64) []float64 {
	f := make([]float64, n)
	for i := range f {
		k := i
		if k >= (n+1)/2 {
			k -= n
		}
		f[i] = float64(k) / (float64(n) * apix)
	}
	return f
}

func minDim(nx, ny, nz int) int {
	min := nx
	if ny < min {
		min = ny
	}
	if nz < min {
		min = nz
	}
	return min
}
