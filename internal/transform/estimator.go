package transform

import (
	"fmt"
	"math"

	"planar-ar/internal/config"
	"planar-ar/internal/matching"
	"planar-ar/pkg/geometry"
)

// Solver is the external robust homography solver. Given parallel point
// arrays (reference points, frame points), it returns the projective matrix
// mapping the first onto the second, or ErrDegenerateGeometry when no model
// could be fit. Implementations must tolerate residual outliers.
type Solver interface {
	EstimateHomography(src, dst []geometry.Point2D) (Homography, error)
}

// Estimator wraps a Solver with the evidence gates and result validation
// the pipeline requires.
type Estimator struct {
	solver Solver
	cfg    config.EstimatorConfig

	// Point buffers reused across frames.
	src []geometry.Point2D
	dst []geometry.Point2D
}

// NewEstimator creates an Estimator.
func NewEstimator(solver Solver, cfg config.EstimatorConfig) *Estimator {
	return &Estimator{solver: solver, cfg: cfg}
}

// Estimate produces the raw transform for one frame.
//
// It proceeds only when the match set is large enough and the rolling
// average quality clears the acceptance threshold; otherwise it returns
// ErrInsufficientEvidence. Solver output is validated for scale, determinant
// and conditioning before it is handed to the smoother.
func (e *Estimator) Estimate(set matching.MatchSet, averageQuality float64) (Homography, error) {
	if set.Size() < e.cfg.MinMatches {
		return Homography{}, fmt.Errorf("%w: %d matches, need %d",
			ErrInsufficientEvidence, set.Size(), e.cfg.MinMatches)
	}
	if averageQuality < e.cfg.MinAcceptQuality {
		return Homography{}, fmt.Errorf("%w: average quality %.4f below %.4f",
			ErrInsufficientEvidence, averageQuality, e.cfg.MinAcceptQuality)
	}

	e.src = e.src[:0]
	e.dst = e.dst[:0]
	for _, m := range set.Matches {
		e.src = append(e.src, m.Ref)
		e.dst = append(e.dst, m.Frame)
	}

	raw, err := e.solver.EstimateHomography(e.src, e.dst)
	if err != nil {
		return Homography{}, err
	}

	h, ok := raw.Normalized()
	if !ok {
		return Homography{}, fmt.Errorf("%w: zero scale element", ErrDegenerateGeometry)
	}
	if det := math.Abs(h.Det()); det < e.cfg.MinDeterminant {
		return Homography{}, fmt.Errorf("%w: |det|=%.3g", ErrDegenerateGeometry, det)
	}
	if cond := h.ConditionNumber(); cond > e.cfg.MaxCondition {
		return Homography{}, fmt.Errorf("%w: condition number %.3g", ErrDegenerateGeometry, cond)
	}
	return h, nil
}
