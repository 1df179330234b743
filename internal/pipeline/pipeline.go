// Package pipeline sequences the per-frame tracking stages: capture,
// downscale, detect/match, filter, estimate, smooth, and compositing.
// All per-frame failures are contained here; only setup errors reach the
// caller.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"time"

	"gocv.io/x/gocv"

	"planar-ar/internal/adaptive"
	"planar-ar/internal/config"
	"planar-ar/internal/matching"
	"planar-ar/internal/quality"
	"planar-ar/internal/transform"
)

// FrameSource produces raw frames on demand. A read error is recoverable
// and retried on the next tick.
type FrameSource interface {
	Read(dst *gocv.Mat) error
}

// FeatureEngine detects keypoints on a frame and returns the raw two-way
// nearest-neighbor candidates against the reference image.
type FeatureEngine interface {
	Match(frame gocv.Mat) (matching.Candidates, error)
}

// Compositor produces the displayed frame: warp and blend the overlay by
// the given transform (nil means no overlay this frame) and draw the
// low-confidence indicator at its opacity.
type Compositor interface {
	Render(frame gocv.Mat, h *transform.Homography, overlayOpacity, indicatorOpacity float64) (gocv.Mat, error)
}

// Presenter displays a composed frame. Optional.
type Presenter interface {
	Present(frame gocv.Mat) error
}

// Buffers owns the working Mats and reallocates them on resolution change.
type Buffers interface {
	adaptive.Provisioner
	Raw() *gocv.Mat
	Scaled() *gocv.Mat
}

// Deps are the collaborators the pipeline is wired with at startup.
// They are constructed once and passed in; the pipeline holds no globals.
type Deps struct {
	Source     FrameSource
	Engine     FeatureEngine
	Filter     *matching.Filter
	Quality    *quality.Tracker
	Estimator  *transform.Estimator
	Smoother   *transform.Smoother
	Controller *adaptive.Controller
	Buffers    Buffers
	Compositor Compositor
	Presenter  Presenter
}

// Pipeline runs the tracking loop. All state is owned by the single
// processing goroutine; no locking is needed.
type Pipeline struct {
	Deps
	cfg config.PipelineConfig

	processing bool

	frames     uint64
	dropped    uint64
	statFrames int
	statStart  time.Time
}

// New validates the wiring and creates a Pipeline.
func New(deps Deps, cfg config.PipelineConfig) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("pipeline: nil frame source")
	case deps.Engine == nil:
		return nil, fmt.Errorf("pipeline: nil feature engine")
	case deps.Filter == nil || deps.Quality == nil || deps.Estimator == nil || deps.Smoother == nil:
		return nil, fmt.Errorf("pipeline: tracking stages not wired")
	case deps.Controller == nil || deps.Buffers == nil:
		return nil, fmt.Errorf("pipeline: adaptive resolution not wired")
	case deps.Compositor == nil:
		return nil, fmt.Errorf("pipeline: nil compositor")
	}
	return &Pipeline{Deps: deps, cfg: cfg, statStart: time.Now()}, nil
}

// Run drives Step once per display tick until the context is cancelled.
// Cancellation is wholesale: an in-progress frame finishes, then the loop
// stops.
func (p *Pipeline) Run(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / p.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.Step()
		}
	}
}

// Step processes one frame. If the previous frame is still in flight the
// new one is dropped entirely, never queued. Mid-frame failures abandon the
// frame; the loop always proceeds to the next tick.
func (p *Pipeline) Step() {
	if p.processing {
		p.dropped++
		return
	}
	p.processing = true
	defer func() { p.processing = false }()
	p.frames++

	res, err := p.Controller.Tick()
	if err != nil {
		// Buffers were reverted to the previous resolution; keep going.
		log.Printf("adaptive: %v", err)
	}

	if err := p.Source.Read(p.Buffers.Raw()); err != nil {
		log.Printf("capture: %v", err)
		return
	}

	gocv.Resize(*p.Buffers.Raw(), p.Buffers.Scaled(),
		image.Pt(res.Width, res.Height), 0, 0, gocv.InterpolationArea)

	cands, err := p.Engine.Match(*p.Buffers.Scaled())
	if err != nil {
		log.Printf("detect: %v", err)
		return
	}

	h, overlayOpacity, indicatorOpacity := p.track(cands)

	out, err := p.Compositor.Render(*p.Buffers.Scaled(), h, overlayOpacity, indicatorOpacity)
	if err != nil {
		log.Printf("blend: %v", err)
		return
	}
	if p.Presenter != nil {
		if err := p.Presenter.Present(out); err != nil {
			log.Printf("present: %v", err)
		}
	}

	p.logStats(res)
}

// track runs the per-frame tracking stages on filtered candidates and
// returns the transform to render with (nil when none has ever been
// produced) plus the overlay and indicator opacities.
//
// The quality tracker is updated on every frame, including those that yield
// no transform, because its output gates rendering. When estimation fails
// recoverably the last smoothed transform is reused so the overlay does not
// flicker off.
func (p *Pipeline) track(cands matching.Candidates) (*transform.Homography, float64, float64) {
	set := p.Filter.Filter(cands)
	p.Quality.Observe(set.Quality)
	indicator := p.Quality.IndicatorOpacity()
	overlay := p.Quality.OverlayOpacity()

	raw, err := p.Estimator.Estimate(set, p.Quality.Average())
	if err != nil {
		if !errors.Is(err, transform.ErrInsufficientEvidence) &&
			!errors.Is(err, transform.ErrDegenerateGeometry) {
			log.Printf("estimate: %v", err)
		}
		return p.lastTransform(), overlay, indicator
	}

	if h, ok := p.Smoother.Push(raw); ok {
		return &h, overlay, indicator
	}
	return p.lastTransform(), overlay, indicator
}

func (p *Pipeline) lastTransform() *transform.Homography {
	if h, ok := p.Smoother.Current(); ok {
		return &h
	}
	return nil
}

// logStats reports throughput every StatsInterval processed frames.
func (p *Pipeline) logStats(res adaptive.ResolutionState) {
	if p.cfg.StatsInterval <= 0 {
		return
	}
	p.statFrames++
	if p.statFrames < p.cfg.StatsInterval {
		return
	}
	elapsed := time.Since(p.statStart)
	fps := float64(p.statFrames) / elapsed.Seconds()
	log.Printf("pipeline: %d frames (%d dropped) at %.1f fps, processing %dx%d",
		p.frames, p.dropped, fps, res.Width, res.Height)
	p.statFrames = 0
	p.statStart = time.Now()
}

// Frames returns the number of frames processed so far.
func (p *Pipeline) Frames() uint64 {
	return p.frames
}

// Dropped returns the number of ticks skipped because a frame was already
// in flight.
func (p *Pipeline) Dropped() uint64 {
	return p.dropped
}
