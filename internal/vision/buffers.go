package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"planar-ar/internal/adaptive"
)

// FrameBuffers owns the per-frame working Mats. The raw capture buffer is
// allocated once; the resolution-dependent buffers are torn down and
// reallocated whenever the adaptive controller changes the processing
// resolution, so nothing leaks across resolution changes.
type FrameBuffers struct {
	raw    gocv.Mat
	scaled gocv.Mat

	provisioned bool
}

// NewFrameBuffers creates the buffer set. Resolution-dependent buffers are
// allocated on the first Provision call.
func NewFrameBuffers() *FrameBuffers {
	return &FrameBuffers{raw: gocv.NewMat()}
}

// Provision reallocates the resolution-dependent buffers for res.
// Implements adaptive.Provisioner.
func (b *FrameBuffers) Provision(res adaptive.ResolutionState) error {
	if res.Empty() {
		return fmt.Errorf("invalid resolution %dx%d", res.Width, res.Height)
	}
	if b.provisioned {
		if err := b.scaled.Close(); err != nil {
			return fmt.Errorf("release scaled buffer: %w", err)
		}
	}
	b.scaled = gocv.NewMatWithSize(res.Height, res.Width, gocv.MatTypeCV8UC3)
	b.provisioned = true
	return nil
}

// Raw returns the full-resolution capture buffer.
func (b *FrameBuffers) Raw() *gocv.Mat {
	return &b.raw
}

// Scaled returns the processing-resolution buffer.
func (b *FrameBuffers) Scaled() *gocv.Mat {
	return &b.scaled
}

// Close releases all buffers. Safe to call once at teardown.
func (b *FrameBuffers) Close() error {
	err := b.raw.Close()
	if b.provisioned {
		if cerr := b.scaled.Close(); err == nil {
			err = cerr
		}
		b.provisioned = false
	}
	return err
}
