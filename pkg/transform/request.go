package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mapmod/internal/logging"
	"mapmod/pkg/pose"
)

// Kind labels which user-facing mechanism produced a transform request.
type Kind int

const (
	KindMatrix Kind = iota
	KindTarget
	KindEuler
	KindTranslate
)

func (k Kind) String() string {
	switch k {
	case KindMatrix:
		return "matrix"
	case KindTarget:
		return "target"
	case KindEuler:
		return "euler"
	case KindTranslate:
		return "translate"
	}
	return "unknown"
}

// Request is one normalized pose transform: an optional rotation, an
// optional translation target and the origin the resampler pivots about,
// all in voxel units. A nil Origin means the volume's half-extent.
type Request struct {
	Kind   Kind
	R      *mat.Dense
	T      *r3.Vec
	Origin *r3.Vec
}

// ResolveOrigin converts a comma-separated physical-unit origin into voxel
// units, or defaults to the box center when spec is empty (reported via
// defaulted). Each coordinate must be strictly less than the box dimension
// on its axis; there is no lower bound, so negative coordinates pass
// through unchecked.
func ResolveOrigin(spec string, nx, ny, nz int, apix float64) (origin r3.Vec, defaulted bool, err error) {
	if spec == "" {
		return r3.Vec{
			X: float64(nx) / 2,
			Y: float64(ny) / 2,
			Z: float64(nz) / 2,
		}, true, nil
	}

	v, perr := parseTriple(spec)
	if perr != nil {
		return r3.Vec{}, false, NewParseError("origin must be comma-separated list of x,y,z coordinates")
	}

	origin = r3.Scale(1/apix, v)
	if origin.X >= float64(nx) || origin.Y >= float64(ny) || origin.Z >= float64(nz) {
		return r3.Vec{}, false, NewValidationError("origin must lie within the box")
	}
	return origin, false, nil
}

// BuildRequests normalizes every requested pose mechanism into resampler
// requests, in the documented application order: explicit matrix, standard
// pose target, Euler angles, translation.
func BuildRequests(opts Options, origin r3.Vec, apix float64, log *logging.Logger) ([]Request, error) {
	var reqs []Request

	if opts.Matrix != "" {
		req, err := matrixRequest(opts.Matrix, apix)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	if opts.Target != "" {
		req, err := targetRequest(opts.Target, origin, apix, log)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	if opts.Euler != "" {
		req, err := eulerRequest(opts.Euler, origin)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	if opts.Translate != "" {
		req, err := translateRequest(opts.Translate, origin, apix)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, req)
	}

	return reqs, nil
}

// matrixRequest decodes a JSON 3x3 or 3x4 matrix. A fourth column is a
// physical-unit recenter target and is converted to voxel units here; the
// resampler picks it up as the translation. Matrix transforms always pivot
// about the half-extent, not a user-resolved origin.
func matrixRequest(spec string, apix float64) (Request, error) {
	m, err := parseMatrix(spec)
	if err != nil {
		return Request{}, NewParseError("matrix format is incorrect")
	}

	if _, cols := m.Dims(); cols == 4 {
		for i := 0; i < 3; i++ {
			m.Set(i, 3, m.At(i, 3)/apix)
		}
	}
	return Request{Kind: KindMatrix, R: m}, nil
}

// targetRequest derives the standard-pose rotation and shift from a
// physical-unit target coordinate: the direction from the origin to the
// target becomes the view axis, the distance becomes the translation.
func targetRequest(spec string, origin r3.Vec, apix float64, log *logging.Logger) (Request, error) {
	v, err := parseTriple(spec)
	if err != nil {
		return Request{}, NewParseError("standard pose target must be comma-separated list of x,y,z coordinates")
	}

	t := r3.Sub(r3.Scale(1/apix, v), origin)
	r := pose.VecToRot(t)

	phi, theta, psi := pose.RotToEuler(r)
	log.Info("Euler angles are %.2f,%.2f,%.2f deg and shift is %f px",
		phi*180/math.Pi, theta*180/math.Pi, psi*180/math.Pi, r3.Norm(t))

	o := origin
	return Request{Kind: KindTarget, R: r, T: &t, Origin: &o}, nil
}

func eulerRequest(spec string, origin r3.Vec) (Request, error) {
	v, err := parseTriple(spec)
	if err != nil {
		return Request{}, NewParseError("eulers must be comma-separated list of phi,theta,psi angles")
	}

	const degToRad = math.Pi / 180
	r := pose.EulerToRot(v.X*degToRad, v.Y*degToRad, v.Z*degToRad)

	o := origin
	return Request{Kind: KindEuler, R: r, Origin: &o}, nil
}

// translateRequest expresses a physical-unit translation relative to the
// origin. The request carries a zero pivot so the resampler moves the
// volume by exactly the origin-relative offset.
func translateRequest(spec string, origin r3.Vec, apix float64) (Request, error) {
	v, err := parseTriple(spec)
	if err != nil {
		return Request{}, NewParseError("translation vector must be comma-separated list of x,y,z coordinates")
	}

	t := r3.Sub(r3.Scale(1/apix, v), origin)
	zero := r3.Vec{}
	return Request{Kind: KindTranslate, T: &t, Origin: &zero}, nil
}
