package vision

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"gocv.io/x/gocv"

	"planar-ar/internal/assets"
	"planar-ar/internal/transform"
)

const indicatorText = "MOVE CLOSER TO THE IMAGE"

// Blender composites the warped overlay animation and the low-confidence
// indicator onto the processed frame. It owns its scratch Mats so steady
// state rendering does not allocate.
type Blender struct {
	frames []gocv.Mat
	fps    float64

	warped gocv.Mat
	scrim  gocv.Mat
	out    gocv.Mat

	start time.Time
	now   func() time.Time
}

// NewBlender converts the decoded overlay animation into BGR Mats sized to
// the reference image.
func NewBlender(anim *assets.Animation) (*Blender, error) {
	b := &Blender{
		fps:    anim.FPS,
		warped: gocv.NewMat(),
		scrim:  gocv.NewMat(),
		out:    gocv.NewMat(),
		start:  time.Now(),
		now:    time.Now,
	}
	for i, frame := range anim.Frames {
		rgba, err := gocv.ImageToMatRGBA(frame)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("overlay frame %d: %w", i, err)
		}
		bgr := gocv.NewMat()
		gocv.CvtColor(rgba, &bgr, gocv.ColorRGBAToBGR)
		rgba.Close()
		b.frames = append(b.frames, bgr)
	}
	if len(b.frames) == 0 {
		b.Close()
		return nil, fmt.Errorf("no overlay frames")
	}
	return b, nil
}

// Render draws onto a copy of frame and returns it. The returned Mat is
// owned by the Blender and valid until the next call.
//
// With a transform and a visible overlay opacity, the current animation
// frame is perspective-warped into frame coordinates and alpha-blended.
// The low-confidence indicator is drawn at its own opacity; the two
// opacities are complementary so they never fully stack.
func (b *Blender) Render(frame gocv.Mat, h *transform.Homography, overlayOpacity, indicatorOpacity float64) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Mat{}, fmt.Errorf("empty frame")
	}
	frame.CopyTo(&b.out)
	size := image.Pt(frame.Cols(), frame.Rows())

	if h != nil && overlayOpacity > 0 {
		hm := homographyMat(*h)
		gocv.WarpPerspective(b.currentFrame(), &b.warped, hm, size)
		hm.Close()
		gocv.AddWeighted(b.out, 1.0, b.warped, overlayOpacity, 0, &b.out)
	}

	if indicatorOpacity > 0.01 {
		b.out.CopyTo(&b.scrim)
		banner := image.Rect(0, 0, size.X, 44)
		gocv.Rectangle(&b.scrim, banner, color.RGBA{A: 255}, -1)
		gocv.PutText(&b.scrim, indicatorText, image.Pt(12, 30),
			gocv.FontHersheySimplex, 0.7, color.RGBA{R: 255, G: 255, B: 255, A: 255}, 2)
		gocv.AddWeighted(b.out, 1-indicatorOpacity, b.scrim, indicatorOpacity, 0, &b.out)
	}

	return b.out, nil
}

// currentFrame picks the animation frame for the current wall-clock time.
func (b *Blender) currentFrame() gocv.Mat {
	elapsed := b.now().Sub(b.start)
	idx := int(elapsed.Seconds()*b.fps) % len(b.frames)
	if idx < 0 {
		idx = 0
	}
	return b.frames[idx]
}

// Close releases all Mats.
func (b *Blender) Close() error {
	for _, f := range b.frames {
		f.Close()
	}
	b.frames = nil
	b.warped.Close()
	b.scrim.Close()
	return b.out.Close()
}

func homographyMat(h transform.Homography) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	for r := 0; r < 3; r++ {
		for c := 0; c < 3; c++ {
			m.SetDoubleAt(r, c, h.At(r, c))
		}
	}
	return m
}
