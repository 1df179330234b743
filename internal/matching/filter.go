// Package matching filters raw nearest-neighbor candidates into reliable
// point correspondences between the camera frame and the reference image.
package matching

import (
	"planar-ar/internal/config"
	"planar-ar/pkg/geometry"
)

// Neighbor is one entry of a k-nearest-neighbor result: the index of the
// matched descriptor in the other set and the descriptor distance.
type Neighbor struct {
	Index    int
	Distance float64
}

// Candidates carries the raw matcher output for one frame: the keypoint
// positions on both sides plus the top-2 neighbor lists in each direction.
// Forward[i] are the nearest reference neighbors of frame keypoint i;
// Reverse[j] are the nearest frame neighbors of reference keypoint j.
type Candidates struct {
	FramePoints []geometry.Point2D
	RefPoints   []geometry.Point2D
	Forward     [][]Neighbor
	Reverse     [][]Neighbor
}

// Correspondence is one accepted frame-to-reference point pair.
// It is valid only for the frame that produced it.
type Correspondence struct {
	Frame    geometry.Point2D
	Ref      geometry.Point2D
	Distance float64
}

// MatchSet is the filtered correspondence set for one frame together with a
// quality score in [0,1]: the fraction of ratio-testable candidates that
// matched decisively.
type MatchSet struct {
	Matches []Correspondence
	Quality float64
}

// Size returns the number of accepted correspondences.
func (m MatchSet) Size() int {
	return len(m.Matches)
}

// Filter applies the ratio test and bidirectional consistency check.
type Filter struct {
	ratio  float64
	strong float64
}

// NewFilter creates a Filter from configuration.
func NewFilter(cfg config.MatchingConfig) *Filter {
	return &Filter{
		ratio:  cfg.RatioThreshold,
		strong: cfg.StrongThreshold,
	}
}

// Filter reduces raw candidates to mutually consistent correspondences.
//
// A frame keypoint i with forward neighbors (d1, d2) is a candidate when
// d1 <= d2 * ratio (Lowe's test). A candidate is accepted only when the
// reverse nearest neighbor of its matched reference keypoint points back
// to i. Independently, candidates passing the stricter strong threshold
// are counted toward the quality score, which measures how decisively
// features matched regardless of the cross-check.
func (f *Filter) Filter(c Candidates) MatchSet {
	var (
		matches    []Correspondence
		candidates int
		strong     int
	)

	for i, nbrs := range c.Forward {
		if len(nbrs) < 2 {
			// Cannot form a ratio.
			continue
		}
		candidates++
		d1, d2 := nbrs[0], nbrs[1]

		if d1.Distance <= d2.Distance*f.strong {
			strong++
		}
		if d1.Distance > d2.Distance*f.ratio {
			continue
		}

		refIdx := d1.Index
		if refIdx < 0 || refIdx >= len(c.Reverse) || refIdx >= len(c.RefPoints) {
			continue
		}
		rev := c.Reverse[refIdx]
		if len(rev) == 0 || rev[0].Index != i {
			// Not a mutual nearest neighbor.
			continue
		}
		if i >= len(c.FramePoints) {
			continue
		}

		matches = append(matches, Correspondence{
			Frame:    c.FramePoints[i],
			Ref:      c.RefPoints[refIdx],
			Distance: d1.Distance,
		})
	}

	quality := 0.0
	if candidates > 0 {
		quality = float64(strong) / float64(candidates)
	}
	return MatchSet{Matches: matches, Quality: quality}
}
