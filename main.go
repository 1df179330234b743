// Command planar-ar tracks a reference image in a live camera feed and
// renders a perspective-aligned overlay animation on top of it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"gocv.io/x/gocv"

	"planar-ar/internal/adaptive"
	"planar-ar/internal/assets"
	"planar-ar/internal/config"
	"planar-ar/internal/matching"
	"planar-ar/internal/pipeline"
	"planar-ar/internal/quality"
	"planar-ar/internal/transform"
	"planar-ar/internal/version"
	"planar-ar/internal/vision"
)

const appTitle = "Planar AR"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("Starting %s v%s (%s)", appTitle, version.Version, version.GitCommit)

	configPath := flag.String("config", "config.json", "JSON config file; defaults are used when missing")
	device := flag.String("device", "0", "camera index or capture URL")
	assetDir := flag.String("assets", "assets", "directory holding manifest.json, the reference image and overlay frames")
	flag.Parse()

	if err := run(*configPath, *device, *assetDir); err != nil {
		log.Fatalf("startup: %v", err)
	}
}

// run performs all one-time setup and then hands control to the pipeline.
// Every error returned here is fatal to startup; per-frame errors never
// propagate this far.
func run(configPath, device, assetDir string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	anim, err := assets.Load(assetDir)
	if err != nil {
		return fmt.Errorf("load assets: %w", err)
	}
	log.Printf("Loaded %d overlay frames at %.0f fps, reference %s",
		len(anim.Frames), anim.FPS, anim.ReferencePath)

	camera, err := vision.OpenCamera(parseDevice(device))
	if err != nil {
		return err
	}
	defer camera.Close()
	capSize := camera.Size()
	if capSize.Empty() {
		return fmt.Errorf("capture reports degenerate size %dx%d", capSize.Width, capSize.Height)
	}
	log.Printf("Capture open at %dx%d", capSize.Width, capSize.Height)

	reference := gocv.IMRead(anim.ReferencePath, gocv.IMReadColor)
	if reference.Empty() {
		return fmt.Errorf("could not read reference image %s", anim.ReferencePath)
	}
	defer reference.Close()

	engine, err := vision.NewEngine(reference)
	if err != nil {
		return fmt.Errorf("feature engine: %w", err)
	}
	defer engine.Close()

	blender, err := vision.NewBlender(anim)
	if err != nil {
		return fmt.Errorf("compositor: %w", err)
	}
	defer blender.Close()

	buffers := vision.NewFrameBuffers()
	defer buffers.Close()

	controller, err := adaptive.NewController(cfg.Adaptive, capSize, buffers)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window := gocv.NewWindow(appTitle)
	defer window.Close()

	pipe, err := pipeline.New(pipeline.Deps{
		Source:     camera,
		Engine:     engine,
		Filter:     matching.NewFilter(cfg.Matching),
		Quality:    quality.NewTracker(cfg.Quality),
		Estimator:  transform.NewEstimator(vision.NewRANSACSolver(cfg.Estimator), cfg.Estimator),
		Smoother:   transform.NewSmoother(cfg.Smoother),
		Controller: controller,
		Buffers:    buffers,
		Compositor: blender,
		Presenter:  &windowPresenter{window: window, cancel: stop},
	}, cfg.Pipeline)
	if err != nil {
		return err
	}

	log.Printf("Pipeline running; press ESC or Ctrl-C to stop")
	return pipe.Run(ctx)
}

// windowPresenter shows composed frames and turns ESC into a shutdown.
type windowPresenter struct {
	window *gocv.Window
	cancel context.CancelFunc
}

func (w *windowPresenter) Present(frame gocv.Mat) error {
	w.window.IMShow(frame)
	if w.window.WaitKey(1) == 27 {
		w.cancel()
	}
	return nil
}

// parseDevice maps numeric strings to camera indices and leaves URLs/paths
// alone, matching what OpenCV's capture expects.
func parseDevice(device string) interface{} {
	if idx, err := strconv.Atoi(device); err == nil {
		return idx
	}
	return device
}
