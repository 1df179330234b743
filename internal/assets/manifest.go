// Package assets loads the reference image and overlay animation frames
// from an explicit manifest. The frame count comes from the manifest, never
// from probing the filesystem for files that may not exist.
package assets

import (
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"time"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ManifestName is the file listing the assets of an overlay directory.
const ManifestName = "manifest.json"

// Manifest enumerates the assets of one tracked overlay.
type Manifest struct {
	Reference string   `json:"reference"` // reference image filename
	Frames    []string `json:"frames"`    // ordered overlay frame filenames
	FPS       float64  `json:"fps"`       // overlay playback rate
}

// Animation holds the decoded reference image and the overlay frames,
// all scaled to the reference image size.
type Animation struct {
	ReferencePath string
	Reference     image.Image
	Frames        []image.Image
	FPS           float64
}

// Load reads the manifest in dir and decodes all assets it names.
// Any missing or undecodable asset is a setup failure.
func Load(dir string) (*Animation, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Reference == "" {
		return nil, fmt.Errorf("manifest in %s names no reference image", dir)
	}
	if len(m.Frames) == 0 {
		return nil, fmt.Errorf("manifest in %s names no overlay frames", dir)
	}
	if m.FPS <= 0 {
		m.FPS = 12
	}

	refPath := filepath.Join(dir, m.Reference)
	ref, err := decode(refPath)
	if err != nil {
		return nil, fmt.Errorf("reference image: %w", err)
	}

	anim := &Animation{
		ReferencePath: refPath,
		Reference:     ref,
		Frames:        make([]image.Image, 0, len(m.Frames)),
		FPS:           m.FPS,
	}
	bounds := ref.Bounds()
	for _, name := range m.Frames {
		frame, err := decode(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("overlay frame %s: %w", name, err)
		}
		anim.Frames = append(anim.Frames, scaleTo(frame, bounds))
	}
	return anim, nil
}

// FrameAt returns the overlay frame for the given elapsed playback time,
// looping over the sequence.
func (a *Animation) FrameAt(elapsed time.Duration) image.Image {
	idx := int(elapsed.Seconds()*a.FPS) % len(a.Frames)
	if idx < 0 {
		idx = 0
	}
	return a.Frames[idx]
}

func decode(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

// scaleTo resizes img to the target bounds unless it already matches.
func scaleTo(img image.Image, bounds image.Rectangle) image.Image {
	if img.Bounds().Dx() == bounds.Dx() && img.Bounds().Dy() == bounds.Dy() {
		return img
	}
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Over, nil)
	return dst
}
