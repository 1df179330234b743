package transform

import (
	"planar-ar/internal/config"
)

// outlierGate rejects raw transforms that jump too far from the last
// accepted one. The first transform ever seen is always accepted.
type outlierGate struct {
	threshold float64
	ref       Homography
	seeded    bool
}

func (g *outlierGate) admit(h Homography) bool {
	if g.seeded && h.AbsDiff(g.ref) > g.threshold {
		return false
	}
	g.ref = h
	g.seeded = true
	return true
}

// slidingWindow keeps the last W accepted transforms and publishes their
// elementwise mean. It degrades gracefully to whatever is present while
// filling.
type slidingWindow struct {
	buf      []Homography
	capacity int
}

func (w *slidingWindow) push(h Homography) {
	if len(w.buf) == w.capacity {
		copy(w.buf, w.buf[1:])
		w.buf = w.buf[:w.capacity-1]
	}
	w.buf = append(w.buf, h)
}

func (w *slidingWindow) mean() (Homography, bool) {
	if len(w.buf) == 0 {
		return Homography{}, false
	}
	var sum Homography
	for _, h := range w.buf {
		for i := range sum {
			sum[i] += h[i]
		}
	}
	n := float64(len(w.buf))
	for i := range sum {
		sum[i] /= n
	}
	return sum, true
}

// Smoother converts the per-frame sequence of raw transforms into a stable
// one through three stages: outlier rejection, a sliding-window average,
// and an exponential moving average. Every stage operates on normalized
// matrices so that averaging inputs of different scale stays meaningful.
type Smoother struct {
	gate   outlierGate
	window slidingWindow
	alpha  float64

	smoothed Homography
	seeded   bool
}

// NewSmoother creates a Smoother from configuration.
func NewSmoother(cfg config.SmootherConfig) *Smoother {
	return &Smoother{
		gate:   outlierGate{threshold: cfg.OutlierThreshold},
		window: slidingWindow{buf: make([]Homography, 0, cfg.WindowSize), capacity: cfg.WindowSize},
		alpha:  cfg.Alpha,
	}
}

// Push feeds one raw transform through the filter chain and returns the
// current smoothed transform. The second return is false when no transform
// is available yet (nothing accepted so far, or the input could not be
// normalized and nothing is buffered); the caller should then reuse the
// last transform it published rather than flicker the overlay off.
func (s *Smoother) Push(raw Homography) (Homography, bool) {
	if h, ok := raw.Normalized(); ok && s.gate.admit(h) {
		s.window.push(h)
	}

	avg, ok := s.window.mean()
	if !ok {
		return Homography{}, false
	}
	// The mean of normalized matrices can drift off unit scale; renormalize
	// before blending.
	if n, ok := avg.Normalized(); ok {
		avg = n
	}

	if !s.seeded {
		s.smoothed = avg
		s.seeded = true
		return s.smoothed, true
	}
	for i := range s.smoothed {
		s.smoothed[i] = s.alpha*avg[i] + (1-s.alpha)*s.smoothed[i]
	}
	return s.smoothed, true
}

// Current returns the last smoothed transform without feeding new input.
func (s *Smoother) Current() (Homography, bool) {
	return s.smoothed, s.seeded
}

// Reset clears all filter state.
func (s *Smoother) Reset() {
	s.gate = outlierGate{threshold: s.gate.threshold}
	s.window.buf = s.window.buf[:0]
	s.smoothed = Homography{}
	s.seeded = false
}
