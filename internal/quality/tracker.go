// Package quality tracks match quality across recent frames and derives the
// display opacities for the overlay and the low-confidence indicator.
package quality

import (
	"planar-ar/internal/config"
)

// Tracker maintains a bounded history of per-frame quality scores.
// It is updated every frame, including frames that produced no transform,
// since its output gates rendering decisions.
type Tracker struct {
	history  []float64
	capacity int
	low      float64
	fade     float64
}

// NewTracker creates a Tracker from configuration.
func NewTracker(cfg config.QualityConfig) *Tracker {
	return &Tracker{
		history:  make([]float64, 0, cfg.HistorySize),
		capacity: cfg.HistorySize,
		low:      cfg.LowThreshold,
		fade:     cfg.FadeRange,
	}
}

// Observe appends a quality score, evicting the oldest entry once the
// history is full.
func (t *Tracker) Observe(score float64) {
	if len(t.history) == t.capacity {
		copy(t.history, t.history[1:])
		t.history = t.history[:t.capacity-1]
	}
	t.history = append(t.history, score)
}

// Average returns the mean of the recorded history, or 0 when empty.
func (t *Tracker) Average() float64 {
	if len(t.history) == 0 {
		return 0
	}
	sum := 0.0
	for _, s := range t.history {
		sum += s
	}
	return sum / float64(len(t.history))
}

// IndicatorOpacity returns the opacity of the low-confidence indicator:
// 1 at or below the low threshold, 0 at or above low+fade, and a linear
// ramp in between.
func (t *Tracker) IndicatorOpacity() float64 {
	avg := t.Average()
	switch {
	case avg <= t.low:
		return 1
	case avg >= t.low+t.fade:
		return 0
	default:
		return 1 - (avg-t.low)/t.fade
	}
}

// OverlayOpacity returns the complement of the indicator opacity, so the
// overlay and the indicator are never both fully visible.
func (t *Tracker) OverlayOpacity() float64 {
	return 1 - t.IndicatorOpacity()
}

// Len returns the number of scores currently held.
func (t *Tracker) Len() int {
	return len(t.history)
}
