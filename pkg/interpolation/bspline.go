package interpolation

import (
	"fmt"
	"math"
	"runtime"
	"sync"
)

// MaxOrder is the highest supported B-spline order.
const MaxOrder = 5

// Interpolator evaluates a 3D volume at fractional voxel coordinates using
// B-spline interpolation of order 0 through 5. Orders 2 and above run a
// recursive prefilter over the samples so that the interpolant reproduces
// the original values exactly at integer coordinates.
//
// Coordinates are in voxel units with x the fastest-varying axis of the
// flat data array. Points outside [0, n-1] on any axis evaluate to 0;
// support taps that straddle an edge reflect back into the volume.
type Interpolator struct {
	coeffs     []float64
	nx, ny, nz int
	order      int
}

// NewInterpolator prepares an interpolator for the given volume. The input
// slice is never modified; for orders above 1 the spline coefficients are
// computed into a private copy.
func NewInterpolator(data []float64, nx, ny, nz, order int) (*Interpolator, error) {
	if order < 0 || order > MaxOrder {
		return nil, fmt.Errorf("spline order %d out of range [0, %d]", order, MaxOrder)
	}
	if nx <= 0 || ny <= 0 || nz <= 0 {
		return nil, fmt.Errorf("invalid volume dimensions %dx%dx%d", nx, ny, nz)
	}
	if len(data) != nx*ny*nz {
		return nil, fmt.Errorf("data length %d does not match dimensions %dx%dx%d", len(data), nx, ny, nz)
	}

	ip := &Interpolator{coeffs: data, nx: nx, ny: ny, nz: nz, order: order}
	if order > 1 {
		ip.coeffs = make([]float64, len(data))
		copy(ip.coeffs, data)
		ip.prefilter()
	}
	return ip, nil
}

// Order returns the spline order the interpolator was built with.
func (ip *Interpolator) Order() int { return ip.order }

// At evaluates the interpolant at (x, y, z) in voxel coordinates.
func (ip *Interpolator) At(x, y, z float64) float64 {
	if x < 0 || x > float64(ip.nx-1) ||
		y < 0 || y > float64(ip.ny-1) ||
		z < 0 || z > float64(ip.nz-1) {
		return 0
	}

	if ip.order == 0 {
		ix := int(math.Floor(x + 0.5))
		iy := int(math.Floor(y + 0.5))
		iz := int(math.Floor(z + 0.5))
		return ip.coeffs[(iz*ip.ny+iy)*ip.nx+ix]
	}

	var wx, wy, wz [MaxOrder + 1]float64
	sx := splineSupport(x, ip.order, wx[:])
	sy := splineSupport(y, ip.order, wy[:])
	sz := splineSupport(z, ip.order, wz[:])

	var sum float64
	for k := 0; k <= ip.order; k++ {
		iz := reflectIndex(sz+k, ip.nz)
		base := iz * ip.ny
		for j := 0; j <= ip.order; j++ {
			iy := reflectIndex(sy+j, ip.ny)
			row := (base + iy) * ip.nx
			wzy := wz[k] * wy[j]
			for i := 0; i <= ip.order; i++ {
				ix := reflectIndex(sx+i, ip.nx)
				sum += wzy * wx[i] * ip.coeffs[row+ix]
			}
		}
	}
	return sum
}

// MapCoordinates samples the volume at each coordinate triple
// (xs[i], ys[i], zs[i]) and returns the interpolated values. Evaluation is
// spread across all available CPU cores.
func MapCoordinates(data []float64, nx, ny, nz int, xs, ys, zs []float64, order int) ([]float64, error) {
	if len(ys) != len(xs) || len(zs) != len(xs) {
		return nil, fmt.Errorf("coordinate arrays differ in length: %d, %d, %d",
			len(xs), len(ys), len(zs))
	}

	ip, err := NewInterpolator(data, nx, ny, nz, order)
	if err != nil {
		return nil, err
	}

	out := make([]float64, len(xs))
	n := len(xs)
	if n == 0 {
		return out, nil
	}

	workers := runtime.NumCPU()
	if workers > n {
		workers = n
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * chunk
		if lo >= n {
			break
		}
		hi := lo + chunk
		if hi > n {
			hi = n
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			for i := lo; i < hi; i++ {
				out[i] = ip.At(xs[i], ys[i], zs[i])
			}
		}(lo, hi)
	}
	wg.Wait()

	return out, nil
}

// splinePoles returns the poles of the recursive prefilter for the given
// order. Orders 0 and 1 need no prefilter and have no poles.
func splinePoles(order int) []float64 {
	switch order {
	case 2:
		return []float64{math.Sqrt(8) - 3}
	case 3:
		return []float64{math.Sqrt(3) - 2}
	case 4:
		return []float64{
			math.Sqrt(664-math.Sqrt(438976)) + math.Sqrt(304) - 19,
			math.Sqrt(664+math.Sqrt(438976)) - math.Sqrt(304) - 19,
		}
	case 5:
		return []float64{
			math.Sqrt(67.5-math.Sqrt(4436.25)) + math.Sqrt(26.25) - 6.5,
			math.Sqrt(67.5+math.Sqrt(4436.25)) - math.Sqrt(26.25) - 6.5,
		}
	}
	return nil
}

// prefilter converts the samples into spline coefficients by running the
// causal/anticausal recursive filter along each axis in turn.
func (ip *Interpolator) prefilter() {
	zs := splinePoles(ip.order)
	gain := 1.0
	for _, z := range zs {
		gain *= (1 - z) * (1 - 1/z)
	}

	for axis := 0; axis < 3; axis++ {
		ip.filterAxis(axis, zs, gain)
	}
}

// filterAxis filters every line of the volume running along the given axis
// (0 = x, 1 = y, 2 = z), spreading independent lines across CPU cores.
func (ip *Interpolator) filterAxis(axis int, zs []float64, gain float64) {
	var length, stride, count int
	var start func(j int) int

	switch axis {
	case 0:
		length, stride, count = ip.nx, 1, ip.ny*ip.nz
		start = func(j int) int { return j * ip.nx }
	case 1:
		length, stride, count = ip.ny, ip.nx, ip.nx*ip.nz
		start = func(j int) int {
			z := j / ip.nx
			x := j % ip.nx
			return z*ip.nx*ip.ny + x
		}
	default:
		length, stride, count = ip.nz, ip.nx*ip.ny, ip.nx*ip.ny
		start = func(j int) int { return j }
	}

	if length < 2 {
		return
	}

	workers := runtime.NumCPU()
	if workers > count {
		workers = count
	}
	linesPerWorker := (count + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * linesPerWorker
		if lo >= count {
			break
		}
		hi := lo + linesPerWorker
		if hi > count {
			hi = count
		}

		wg.Add(1)
		go func(lo, hi int) {
			defer wg.Done()
			line := make([]float64, length)
			for j := lo; j < hi; j++ {
				s := start(j)
				for i := 0; i < length; i++ {
					line[i] = ip.coeffs[s+i*stride]
				}
				filterLine(line, zs, gain)
				for i := 0; i < length; i++ {
					ip.coeffs[s+i*stride] = line[i]
				}
			}
		}(lo, hi)
	}
	wg.Wait()
}

// filterLine runs the causal and anticausal passes for each pole over one
// line, with the boundary values of a signal mirrored about both ends.
func filterLine(line []float64, zs []float64, gain float64) {
	n := len(line)
	for i := range line {
		line[i] *= gain
	}

	for _, z := range zs {
		line[0] = initialCausal(line, z)
		for i := 1; i < n; i++ {
			line[i] += z * line[i-1]
		}

		line[n-1] = initialAntiCausal(line, z)
		for i := n - 2; i >= 0; i-- {
			line[i] = z * (line[i+1] - line[i])
		}
	}
}

// initialCausal computes the exact steady-state causal value for a signal
// mirrored about both ends, which has period 2n-2.
func initialCausal(line []float64, z float64) float64 {
	n := len(line)
	zn := math.Pow(z, float64(n-1))
	sum := line[0] + zn*line[n-1]

	zk := z
	zrk := zn * zn / z
	for k := 1; k <= n-2; k++ {
		sum += (zk + zrk) * line[k]
		zk *= z
		zrk /= z
	}
	return sum / (1 - zn*zn)
}

func initialAntiCausal(line []float64, z float64) float64 {
	n := len(line)
	return (z / (z*z - 1)) * (z*line[n-2] + line[n-1])
}

// splineSupport fills w with the interpolation weights along one axis for
// the coordinate x and returns the index of the first tap. The support
// spans order+1 taps.
func splineSupport(x float64, order int, w []float64) int {
	var start int
	if order&1 == 1 {
		start = int(math.Floor(x)) - (order-1)/2
	} else {
		start = int(math.Floor(x+0.5)) - order/2
	}
	for i := 0; i <= order; i++ {
		w[i] = bspline(order, x-float64(start+i))
	}
	return start
}

// bspline evaluates the centered B-spline basis function of the given
// order at u.
func bspline(order int, u float64) float64 {
	u = math.Abs(u)
	switch order {
	case 1:
		if u < 1 {
			return 1 - u
		}
	case 2:
		switch {
		case u <= 0.5:
			return 0.75 - u*u
		case u < 1.5:
			u -= 1.5
			return 0.5 * u * u
		}
	case 3:
		switch {
		case u <= 1:
			return 2.0/3.0 + u*u*(0.5*u-1)
		case u < 2:
			u = 2 - u
			return u * u * u / 6
		}
	case 4:
		switch {
		case u <= 0.5:
			u *= u
			return 115.0/192.0 + u*(0.25*u-0.625)
		case u <= 1.5:
			return (55 + u*(20+u*(-120+u*(80-16*u)))) / 96
		case u < 2.5:
			u = 2.5 - u
			u *= u
			return u * u / 24
		}
	case 5:
		switch {
		case u <= 1:
			u2 := u * u
			return 11.0/20.0 + u2*(u2*(0.25-u/12)-0.5)
		case u <= 2:
			return 17.0/40.0 + u*(0.625+u*(-1.75+u*(1.25+u*(u/24-0.375))))
		case u < 3:
			u = 3 - u
			u2 := u * u
			return u2 * u2 * u / 120
		}
	}
	return 0
}

// reflectIndex maps an out-of-range tap index back into [0, n) by mirror
// reflection about the first and last samples.
func reflectIndex(idx, n int) int {
	if idx >= 0 && idx < n {
		return idx
	}
	if n == 1 {
		return 0
	}

	period := 2 * (n - 1)
	idx %= period
	if idx < 0 {
		idx += period
	}
	if idx >= n {
		idx = period - idx
	}
	return idx
}
