package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"planar-ar/internal/config"
	"planar-ar/internal/transform"
	"planar-ar/pkg/geometry"
)

// RANSACSolver estimates a homography with OpenCV's RANSAC solver.
// Implements transform.Solver.
type RANSACSolver struct {
	reprojThreshold float64
	maxIterations   int
	confidence      float64
}

// NewRANSACSolver creates a solver from estimator configuration.
func NewRANSACSolver(cfg config.EstimatorConfig) *RANSACSolver {
	return &RANSACSolver{
		reprojThreshold: cfg.ReprojThreshold,
		maxIterations:   cfg.MaxIterations,
		confidence:      cfg.Confidence,
	}
}

// EstimateHomography fits the projective matrix mapping src onto dst.
// Returns transform.ErrDegenerateGeometry when OpenCV yields no model.
func (s *RANSACSolver) EstimateHomography(src, dst []geometry.Point2D) (transform.Homography, error) {
	if len(src) != len(dst) {
		return transform.Homography{}, fmt.Errorf("point count mismatch: %d vs %d", len(src), len(dst))
	}
	if len(src) < 4 {
		return transform.Homography{}, fmt.Errorf("%w: %d point pairs, need 4",
			transform.ErrDegenerateGeometry, len(src))
	}

	srcMat := pointMat(src)
	defer srcMat.Close()
	dstMat := pointMat(dst)
	defer dstMat.Close()
	mask := gocv.NewMat()
	defer mask.Close()

	h := gocv.FindHomography(srcMat, &dstMat, gocv.HomograpyMethodRANSAC,
		s.reprojThreshold, &mask, s.maxIterations, s.confidence)
	defer h.Close()

	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 {
		return transform.Homography{}, fmt.Errorf("%w: solver returned empty result",
			transform.ErrDegenerateGeometry)
	}

	var out transform.Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			out[r*3+c] = h.GetDoubleAt(r, c)
		}
	}
	return out, nil
}

// pointMat packs points into the Nx1 two-channel matrix FindHomography expects.
func pointMat(pts []geometry.Point2D) gocv.Mat {
	m := gocv.NewMatWithSize(len(pts), 1, gocv.MatTypeCV64FC2)
	for i, p := range pts {
		m.SetDoubleAt(i, 0, p.X)
		m.SetDoubleAt(i, 1, p.Y)
	}
	return m
}
