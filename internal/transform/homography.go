// Package transform estimates and temporally stabilizes the projective
// transform mapping reference-image coordinates to camera-frame coordinates.
package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"planar-ar/pkg/geometry"
)

// Homography is a 3x3 projective matrix in row-major order. It maps
// reference-image points to current-frame points and is defined up to scale.
type Homography [9]float64

// Identity returns the identity homography.
func Identity() Homography {
	return Homography{1, 0, 0, 0, 1, 0, 0, 0, 1}
}

// At returns the element at row r, column c.
func (h Homography) At(r, c int) float64 {
	return h[r*3+c]
}

// normEps is the smallest bottom-right element magnitude a homography can
// be normalized by without losing numeric meaning.
const normEps = 1e-12

// Normalized divides all elements by the bottom-right element so that
// matrices of different scale become comparable. Returns false when the
// bottom-right element is too close to zero to divide by.
func (h Homography) Normalized() (Homography, bool) {
	w := h[8]
	if math.Abs(w) < normEps {
		return h, false
	}
	var out Homography
	for i := range h {
		out[i] = h[i] / w
	}
	return out, true
}

// Apply maps a point through the homography. Returns false when the point
// projects to infinity (zero denominator).
func (h Homography) Apply(p geometry.Point2D) (geometry.Point2D, bool) {
	denom := h[6]*p.X + h[7]*p.Y + h[8]
	if math.Abs(denom) < normEps {
		return geometry.Point2D{}, false
	}
	return geometry.Point2D{
		X: (h[0]*p.X + h[1]*p.Y + h[2]) / denom,
		Y: (h[3]*p.X + h[4]*p.Y + h[5]) / denom,
	}, true
}

// AbsDiff returns the sum of elementwise absolute differences.
func (h Homography) AbsDiff(o Homography) float64 {
	sum := 0.0
	for i := range h {
		sum += math.Abs(h[i] - o[i])
	}
	return sum
}

// Dense converts the homography to a gonum 3x3 dense matrix.
func (h Homography) Dense() *mat.Dense {
	return mat.NewDense(3, 3, h[:])
}

// FromDense builds a Homography from a 3x3 gonum matrix.
func FromDense(d mat.Matrix) Homography {
	var h Homography
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			h[r*3+c] = d.At(r, c)
		}
	}
	return h
}

// Det returns the determinant of the homography matrix.
func (h Homography) Det() float64 {
	return mat.Det(h.Dense())
}

// ConditionNumber returns the ratio of the largest to the smallest singular
// value. Ill-conditioned solutions map the reference plane to a nearly
// degenerate quadrilateral. Returns +Inf when the SVD fails or the smallest
// singular value is zero.
func (h Homography) ConditionNumber() float64 {
	var svd mat.SVD
	if !svd.Factorize(h.Dense(), mat.SVDNone) {
		return math.Inf(1)
	}
	values := svd.Values(nil)
	smallest := values[len(values)-1]
	if smallest <= 0 {
		return math.Inf(1)
	}
	return values[0] / smallest
}
