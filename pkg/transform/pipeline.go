// Package transform normalizes heterogeneous pose specifications into a
// single consistent coordinate transform representation, composes them in
// a fixed documented order and resamples density volumes through the
// result. It is the core of the map modification pipeline; reading,
// writing, filtering and previewing are delegated to their own packages.
package transform

import (
	"mapmod/internal/logging"
	"mapmod/pkg/filter"
	"mapmod/pkg/interpolation"
	"mapmod/pkg/mrc"
	"mapmod/pkg/visualization"
	"mapmod/pkg/volume"
)

// Options carries one invocation's inputs, as received from the CLI or a
// defaults file. Pose specifications are kept as their raw strings; empty
// means not requested.
type Options struct {
	Input  string
	Output string

	// PixelSize in Angstroms per voxel; 0 derives it from the map header.
	PixelSize float64

	Normalize bool
	Reference string

	Origin    string
	Target    string
	Euler     string
	Translate string
	Matrix    string

	SplineOrder int

	// Lowpass and Highpass are filter resolutions in Angstroms; values of
	// 0 or below disable the filter. FilterEdgeWidth is the cosine soft
	// edge width in Fourier voxels, 0 for the default.
	Lowpass         float64
	Highpass        float64
	FilterEdgeWidth int

	// Preview names a directory for central-section images; empty
	// disables previews.
	Preview string

	Log *logging.Logger
}

// Pipeline executes one complete map modification run.
type Pipeline struct {
	opts Options
	log  *logging.Logger
}

// NewPipeline builds a pipeline for the given options. A nil Options.Log
// falls back to the default warning-level logger.
func NewPipeline(opts Options) *Pipeline {
	log := opts.Log
	if log == nil {
		log = logging.Default()
	}
	return &Pipeline{opts: opts, log: log}
}

// Run reads the input map, applies normalization, filtering and the
// requested pose transforms in the documented order, and writes the
// result. The working volume is replaced at each stage, never mutated.
func (p *Pipeline) Run() error {
	if err := p.validate(); err != nil {
		return err
	}

	vol, _, err := mrc.Read(p.opts.Input)
	if err != nil {
		return err
	}

	// Z-scoring runs first so every later stage, transforms included,
	// operates on the normalized densities.
	if p.opts.Normalize {
		if vol, err = p.normalize(vol); err != nil {
			return err
		}
	}

	apix, err := p.resolvePixelSize(vol)
	if err != nil {
		return err
	}

	p.warnOrderingConflicts()

	origin, defaulted, err := ResolveOrigin(p.opts.Origin, vol.Nx, vol.Ny, vol.Nz, apix)
	if err != nil {
		return err
	}
	if defaulted {
		p.log.Info("Origin set to box center, %g,%g,%g Angstroms",
			origin.X*apix, origin.Y*apix, origin.Z*apix)
	}

	if vol.LooksLikeMask() && p.opts.SplineOrder != 0 {
		p.log.Warning("Input looks like a mask, --spline-order 0 (nearest neighbor) is recommended")
	}

	if vol, err = p.applyFilters(vol, apix); err != nil {
		return err
	}

	reqs, err := BuildRequests(p.opts, origin, apix, p.log)
	if err != nil {
		return err
	}
	for _, req := range reqs {
		p.log.Debug("Applying %s transform", req.Kind)
		if vol, err = req.Apply(vol, p.opts.SplineOrder); err != nil {
			return err
		}
	}

	if err := mrc.Write(p.opts.Output, vol); err != nil {
		return err
	}

	if p.opts.Preview != "" {
		if err := visualization.SaveSections(vol, p.opts.Preview); err != nil {
			p.log.Warning("Could not save preview sections: %v", err)
		}
	}
	return nil
}

func (p *Pipeline) validate() error {
	if p.opts.Input == "" || p.opts.Output == "" {
		return NewValidationError("input and output paths are required")
	}
	if p.opts.SplineOrder < 0 || p.opts.SplineOrder > interpolation.MaxOrder {
		return NewValidationError("spline order must be between 0 and %d", interpolation.MaxOrder)
	}
	return nil
}

// normalize converts densities to Z-scores. The standard deviation comes
// from the reference volume when one is given, the mean always from the
// input itself.
func (p *Pipeline) normalize(vol *volume.Volume) (*volume.Volume, error) {
	var ref *volume.Volume
	if p.opts.Reference != "" {
		r, _, err := mrc.Read(p.opts.Reference)
		if err != nil {
			return nil, err
		}
		ref = r
	}

	out, mean, sigma := volume.ZScore(vol, ref)
	p.log.Info("Mean: %f, Standard deviation: %f", mean, sigma)
	return out, nil
}

func (p *Pipeline) resolvePixelSize(vol *volume.Volume) (float64, error) {
	apix := p.opts.PixelSize
	if apix <= 0 {
		apix = vol.PixelSize
		p.log.Info("Using computed pixel size of %f Angstroms", apix)
	}
	if apix <= 0 {
		return 0, NewValidationError("pixel size is %g; supply --apix or a header with cell lengths", apix)
	}

	vol.PixelSize = apix
	return apix, nil
}

// warnOrderingConflicts emits the advisory warnings for combined pose
// mechanisms. Combining them is allowed; the fixed application order is
// the documented contract.
func (p *Pipeline) warnOrderingConflicts() {
	hasMatrix := p.opts.Matrix != ""
	hasTarget := p.opts.Target != ""
	hasEuler := p.opts.Euler != ""
	hasTranslate := p.opts.Translate != ""

	if hasTarget && hasMatrix {
		p.log.Warning("Target pose transformation will be applied after explicit matrix")
	}
	if hasEuler && (hasTarget || hasMatrix) {
		p.log.Warning("Euler transformation will be applied after target pose transformation")
	}
	if hasTranslate && (hasEuler || hasTarget || hasMatrix) {
		p.log.Warning("Translation will be applied after other transformations")
	}
}

func (p *Pipeline) applyFilters(vol *volume.Volume, apix float64) (*volume.Volume, error) {
	edge := p.opts.FilterEdgeWidth
	if edge <= 0 {
		edge = filter.DefaultEdgeWidth
	}

	var err error
	if p.opts.Lowpass > 0 {
		p.log.Info("Applying lowpass filter at %g Angstroms", p.opts.Lowpass)
		if vol, err = filter.Lowpass(vol, p.opts.Lowpass, apix, edge); err != nil {
			return nil, err
		}
	}
	if p.opts.Highpass > 0 {
		p.log.Info("Applying highpass filter at %g Angstroms", p.opts.Highpass)
		if vol, err = filter.Highpass(vol, p.opts.Highpass, apix, edge); err != nil {
			return nil, err
		}
	}
	return vol, nil
}
