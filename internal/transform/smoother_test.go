package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planar-ar/internal/config"
)

func newSmoother() *Smoother {
	return NewSmoother(config.SmootherConfig{
		OutlierThreshold: 10.0,
		WindowSize:       5,
		Alpha:            0.1,
	})
}

// slightPerspective builds a realistic non-trivial homography.
func slightPerspective() Homography {
	return Homography{
		1.02, 0.01, 12.5,
		-0.02, 0.98, -7.25,
		1e-4, -2e-4, 1,
	}
}

func TestSmootherEmptyYieldsNothing(t *testing.T) {
	s := newSmoother()
	_, ok := s.Current()
	assert.False(t, ok)

	// An input that cannot be normalized buffers nothing.
	_, ok = s.Push(Homography{1, 0, 0, 0, 1, 0, 0, 0, 0})
	assert.False(t, ok)
}

func TestSmootherFirstTransformAlwaysAccepted(t *testing.T) {
	s := newSmoother()
	h := slightPerspective()
	// Scale way off from identity; there is no prior reference, so it must
	// be accepted and seed the EMA directly.
	out, ok := s.Push(h)
	require.True(t, ok)
	n, _ := h.Normalized()
	assert.InDelta(t, 0.0, out.AbsDiff(n), 1e-12)
}

func TestSmootherScaleInvariance(t *testing.T) {
	inputs := []Homography{}
	base := slightPerspective()
	for i := 0; i < 20; i++ {
		h := base
		h[2] += float64(i) * 0.05 // slow drift
		inputs = append(inputs, h)
	}

	plain := newSmoother()
	scaled := newSmoother()
	const c = 37.5
	for _, h := range inputs {
		p, okP := plain.Push(h)
		var hs Homography
		for i := range h {
			hs[i] = h[i] * c
		}
		q, okQ := scaled.Push(hs)
		require.Equal(t, okP, okQ)
		assert.InDelta(t, 0.0, p.AbsDiff(q), 1e-9,
			"filter output must not depend on input matrix scale")
	}
}

func TestSmootherConvergesToConstantInput(t *testing.T) {
	s := newSmoother()
	h := slightPerspective()
	n, _ := h.Normalized()

	var out Homography
	var ok bool
	// alpha=0.1, window=5: well under 200 frames to converge.
	for i := 0; i < 200; i++ {
		out, ok = s.Push(h)
		require.True(t, ok)
	}
	assert.InDelta(t, 0.0, out.AbsDiff(n), 1e-6,
		"constant input must converge to the normalized input")
}

func TestSmootherRejectsOutlier(t *testing.T) {
	s := newSmoother()
	base := slightPerspective()
	settled, ok := s.Push(base)
	require.True(t, ok)

	outlier := base
	outlier[2] += 500 // jump far beyond the threshold

	out, ok := s.Push(outlier)
	require.True(t, ok)
	assert.InDelta(t, 0.0, out.AbsDiff(settled), 1e-9,
		"rejected transform must not alter the sliding window")

	// The reference was retained: a transform near the original base is
	// still accepted afterwards.
	near := base
	near[2] += 1
	_, ok = s.Push(near)
	require.True(t, ok)
}

func TestSmootherWindowDegradesGracefully(t *testing.T) {
	s := NewSmoother(config.SmootherConfig{OutlierThreshold: 10, WindowSize: 5, Alpha: 1})
	h := slightPerspective()
	n, _ := h.Normalized()

	// With alpha=1 the output is exactly the window mean; a single entry
	// must pass through unchanged.
	out, ok := s.Push(h)
	require.True(t, ok)
	assert.InDelta(t, 0.0, out.AbsDiff(n), 1e-12)
}

func TestSmootherReset(t *testing.T) {
	s := newSmoother()
	_, ok := s.Push(slightPerspective())
	require.True(t, ok)

	s.Reset()
	_, ok = s.Current()
	assert.False(t, ok)
}
