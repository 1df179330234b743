// Package vision adapts OpenCV (via gocv) to the narrow contracts the
// pipeline consumes: frame capture, feature extraction and matching, robust
// homography solving, and overlay compositing.
package vision

import (
	"fmt"

	"gocv.io/x/gocv"

	"planar-ar/pkg/geometry"
)

// Camera produces timestamped raw frames from a capture device or stream.
type Camera struct {
	cap *gocv.VideoCapture
}

// OpenCamera opens a capture source. The device may be an integer camera
// index or a stream/file path, as understood by OpenCV.
func OpenCamera(device interface{}) (*Camera, error) {
	cap, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("open capture %v: %w", device, err)
	}
	return &Camera{cap: cap}, nil
}

// Size returns the nominal capture resolution.
func (c *Camera) Size() geometry.Size {
	return geometry.NewSize(
		int(c.cap.Get(gocv.VideoCaptureFrameWidth)),
		int(c.cap.Get(gocv.VideoCaptureFrameHeight)),
	)
}

// Read grabs the next frame into dst. A failed or empty read is a capture
// error; the caller logs it and retries on the next tick.
func (c *Camera) Read(dst *gocv.Mat) error {
	if ok := c.cap.Read(dst); !ok {
		return fmt.Errorf("capture read failed")
	}
	if dst.Empty() {
		return fmt.Errorf("capture produced empty frame")
	}
	return nil
}

// Close releases the capture device.
func (c *Camera) Close() error {
	return c.cap.Close()
}
