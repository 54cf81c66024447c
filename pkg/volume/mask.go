package volume

// maskDistinctLimit is the number of distinct sampled values below which a
// volume is treated as a segmented mask. Even a mask with a soft edge stays
// well under this limit, while an experimental density map sampled the same
// way shows on the order of tens of thousands of distinct values.
const maskDistinctLimit = 100

// LooksLikeMask reports whether the volume's value distribution resembles a
// binary or segmented mask rather than a continuous density map. It samples
// a one-dimensional stride through the flat array, every Nz-th voxel
// starting at the central plane, and counts distinct values. The check is
// advisory: resampling a mask with a smooth spline blurs its edges, so
// callers should recommend nearest-neighbor interpolation when this returns
// true.
func (v *Volume) LooksLikeMask() bool {
	if len(v.Data) == 0 || v.Nz <= 0 {
		return false
	}

	distinct := make(map[float64]struct{}, maskDistinctLimit)
	for i := v.Nz / 2; i < len(v.Data); i += v.Nz {
		distinct[v.Data[i]] = struct{}{}
		if len(distinct) >= maskDistinctLimit {
			return false
		}
	}
	return true
}
