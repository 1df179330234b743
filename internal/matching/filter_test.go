package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planar-ar/internal/config"
	"planar-ar/pkg/geometry"
)

func defaultFilter() *Filter {
	return NewFilter(config.MatchingConfig{RatioThreshold: 0.75, StrongThreshold: 0.75})
}

// points returns n distinct points so accepted correspondences can be
// identified by position.
func points(n int) []geometry.Point2D {
	pts := make([]geometry.Point2D, n)
	for i := range pts {
		pts[i] = geometry.NewPoint2D(float64(i*10), float64(i*7))
	}
	return pts
}

func TestFilterAcceptsMutualMatch(t *testing.T) {
	c := Candidates{
		FramePoints: points(3),
		RefPoints:   points(3),
		Forward: [][]Neighbor{
			{{Index: 0, Distance: 10}, {Index: 1, Distance: 100}}, // decisive, mutual
			{{Index: 1, Distance: 90}, {Index: 2, Distance: 100}}, // fails ratio
			{{Index: 2, Distance: 10}, {Index: 0, Distance: 100}}, // decisive, not mutual
		},
		Reverse: [][]Neighbor{
			{{Index: 0, Distance: 10}, {Index: 2, Distance: 80}},
			{{Index: 1, Distance: 90}, {Index: 0, Distance: 95}},
			{{Index: 1, Distance: 15}, {Index: 2, Distance: 60}}, // points at frame kp 1, not 2
		},
	}

	set := defaultFilter().Filter(c)

	require.Equal(t, 1, set.Size())
	assert.Equal(t, geometry.NewPoint2D(0, 0), set.Matches[0].Frame)
	assert.Equal(t, geometry.NewPoint2D(0, 0), set.Matches[0].Ref)
	assert.Equal(t, 10.0, set.Matches[0].Distance)
}

func TestFilterRejectsRatioFailure(t *testing.T) {
	c := Candidates{
		FramePoints: points(1),
		RefPoints:   points(1),
		// d1 == d2: ambiguous match, must not be accepted at ratio 0.75.
		Forward: [][]Neighbor{{{Index: 0, Distance: 50}, {Index: 0, Distance: 50}}},
		Reverse: [][]Neighbor{{{Index: 0, Distance: 50}}},
	}

	set := defaultFilter().Filter(c)
	assert.Zero(t, set.Size())
}

func TestFilterRejectsWithoutReverseEntry(t *testing.T) {
	c := Candidates{
		FramePoints: points(1),
		RefPoints:   points(1),
		Forward:     [][]Neighbor{{{Index: 0, Distance: 10}, {Index: 0, Distance: 100}}},
		Reverse:     [][]Neighbor{{}}, // no reverse nearest neighbor recorded
	}

	set := defaultFilter().Filter(c)
	assert.Zero(t, set.Size())
	// The forward match was still decisive; quality reflects that.
	assert.Equal(t, 1.0, set.Quality)
}

func TestFilterIgnoresShortNeighborLists(t *testing.T) {
	c := Candidates{
		FramePoints: points(2),
		RefPoints:   points(2),
		Forward: [][]Neighbor{
			{{Index: 0, Distance: 10}}, // single neighbor: no ratio possible
			{{Index: 1, Distance: 10}, {Index: 0, Distance: 100}},
		},
		Reverse: [][]Neighbor{
			{{Index: 0, Distance: 10}},
			{{Index: 1, Distance: 10}},
		},
	}

	set := defaultFilter().Filter(c)
	require.Equal(t, 1, set.Size())
	// Only one candidate could form a ratio, and it was strong.
	assert.Equal(t, 1.0, set.Quality)
}

func TestFilterQualityZeroWithoutCandidates(t *testing.T) {
	set := defaultFilter().Filter(Candidates{})
	assert.Zero(t, set.Size())
	assert.Equal(t, 0.0, set.Quality, "empty input must yield 0, not NaN")
}

func TestFilterQualityBounds(t *testing.T) {
	// Half the candidates are strong, half are not; none are mutual so the
	// quality score must be independent of acceptance.
	c := Candidates{
		FramePoints: points(4),
		RefPoints:   points(4),
		Forward: [][]Neighbor{
			{{Index: 0, Distance: 10}, {Index: 1, Distance: 100}},
			{{Index: 1, Distance: 10}, {Index: 2, Distance: 100}},
			{{Index: 2, Distance: 99}, {Index: 3, Distance: 100}},
			{{Index: 3, Distance: 99}, {Index: 0, Distance: 100}},
		},
		Reverse: [][]Neighbor{
			{{Index: 3, Distance: 1}},
			{{Index: 2, Distance: 1}},
			{{Index: 1, Distance: 1}},
			{{Index: 0, Distance: 1}},
		},
	}

	set := defaultFilter().Filter(c)
	assert.Zero(t, set.Size())
	assert.Equal(t, 0.5, set.Quality)
	assert.GreaterOrEqual(t, set.Quality, 0.0)
	assert.LessOrEqual(t, set.Quality, 1.0)
}

func TestFilterSeparateStrongThreshold(t *testing.T) {
	f := NewFilter(config.MatchingConfig{RatioThreshold: 0.9, StrongThreshold: 0.5})
	c := Candidates{
		FramePoints: points(1),
		RefPoints:   points(1),
		// Passes the acceptance ratio (0.8 <= 0.9) but not the strong one.
		Forward: [][]Neighbor{{{Index: 0, Distance: 80}, {Index: 0, Distance: 100}}},
		Reverse: [][]Neighbor{{{Index: 0, Distance: 80}}},
	}

	set := f.Filter(c)
	assert.Equal(t, 1, set.Size())
	assert.Equal(t, 0.0, set.Quality)
}
