// Package adaptive adjusts the processing resolution to hold a target frame
// rate on unknown hardware.
package adaptive

import (
	"errors"
	"fmt"
	"math"
	"time"

	"planar-ar/internal/config"
	"planar-ar/pkg/geometry"
)

// ErrReprovision is returned when frame buffers could not be reallocated
// for a new resolution. Recoverable; the controller reverts to the previous
// resolution.
var ErrReprovision = errors.New("buffer reprovision failed")

// ResolutionState is the current processing resolution, derived from the
// capture aspect ratio and the step-adjusted width.
type ResolutionState struct {
	geometry.Size
}

// Provisioner reallocates all per-frame working buffers for a new
// resolution. Provision must complete fully before the next pipeline stage
// reads the buffers; the pipeline is single-threaded so this is sequential
// by construction.
type Provisioner interface {
	Provision(res ResolutionState) error
}

// Controller is a hill-climbing control loop, deliberately simpler than a
// PID: one width step per tick, down when the measured rate is below target,
// up when above.
type Controller struct {
	cfg     config.AdaptiveConfig
	capture geometry.Size
	prov    Provisioner

	width    int
	lastTick time.Time
	hasTick  bool

	now func() time.Time
}

// NewController creates a Controller for the given capture size and
// provisions the buffers for the initial resolution (the capture width,
// clamped to the configured bounds).
func NewController(cfg config.AdaptiveConfig, capture geometry.Size, prov Provisioner) (*Controller, error) {
	c := &Controller{
		cfg:     cfg,
		capture: capture,
		prov:    prov,
		width:   clampWidth(capture.Width, cfg, capture),
		now:     time.Now,
	}
	if err := prov.Provision(c.Resolution()); err != nil {
		return nil, fmt.Errorf("initial provision at %dx%d: %w",
			c.Resolution().Width, c.Resolution().Height, err)
	}
	return c, nil
}

// Resolution returns the current processing resolution.
func (c *Controller) Resolution() ResolutionState {
	return ResolutionState{Size: c.capture.ScaledToWidth(c.width)}
}

// Tick measures the wall-clock time since the previous tick and adjusts the
// processing width accordingly. The first tick only records the timestamp.
// When the width changes, the provisioner reallocates the working buffers;
// on failure the previous resolution is restored and an error wrapping
// ErrReprovision is returned.
func (c *Controller) Tick() (ResolutionState, error) {
	now := c.now()
	if !c.hasTick {
		c.lastTick = now
		c.hasTick = true
		return c.Resolution(), nil
	}
	elapsed := now.Sub(c.lastTick)
	c.lastTick = now
	return c.observe(elapsed)
}

// observe applies one control step for the given inter-frame interval.
func (c *Controller) observe(elapsed time.Duration) (ResolutionState, error) {
	if elapsed <= 0 {
		return c.Resolution(), nil
	}
	ms := float64(elapsed.Milliseconds())
	fps := math.Inf(1) // sub-millisecond frames are comfortably fast
	if ms >= 1 {
		fps = 1000.0 / ms
	}

	next := c.width
	switch {
	case fps < c.cfg.TargetFPS:
		next -= c.cfg.WidthStep
	case fps > c.cfg.TargetFPS:
		next += c.cfg.WidthStep
	}
	next = clampWidth(next, c.cfg, c.capture)
	if next == c.width {
		return c.Resolution(), nil
	}

	prev := c.width
	c.width = next
	if err := c.prov.Provision(c.Resolution()); err != nil {
		// Revert to the previous resolution so the pipeline keeps running.
		c.width = prev
		if rerr := c.prov.Provision(c.Resolution()); rerr != nil {
			return c.Resolution(), fmt.Errorf("%w: %v (revert also failed: %v)", ErrReprovision, err, rerr)
		}
		return c.Resolution(), fmt.Errorf("%w: %v", ErrReprovision, err)
	}
	return c.Resolution(), nil
}

func clampWidth(w int, cfg config.AdaptiveConfig, capture geometry.Size) int {
	max := cfg.MaxWidth
	if max == 0 {
		max = capture.Width
	}
	if w > max {
		w = max
	}
	if w < cfg.MinWidth {
		w = cfg.MinWidth
	}
	return w
}
