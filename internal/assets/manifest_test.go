package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, w, h int, c color.RGBA) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestName), []byte(contents), 0o644))
}

func TestLoadScalesFramesToReferenceSize(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ref.png"), 64, 48, color.RGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "f0.png"), 64, 48, color.RGBA{G: 255, A: 255})
	writePNG(t, filepath.Join(dir, "f1.png"), 32, 16, color.RGBA{B: 255, A: 255})
	writeManifest(t, dir, `{"reference":"ref.png","frames":["f0.png","f1.png"],"fps":10}`)

	anim, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, anim.Frames, 2)
	assert.Equal(t, 10.0, anim.FPS)
	for i, frame := range anim.Frames {
		assert.Equal(t, 64, frame.Bounds().Dx(), "frame %d width", i)
		assert.Equal(t, 48, frame.Bounds().Dy(), "frame %d height", i)
	}
}

func TestFrameAtLoops(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ref.png"), 8, 8, color.RGBA{A: 255})
	writePNG(t, filepath.Join(dir, "f0.png"), 8, 8, color.RGBA{R: 255, A: 255})
	writePNG(t, filepath.Join(dir, "f1.png"), 8, 8, color.RGBA{G: 255, A: 255})
	writeManifest(t, dir, `{"reference":"ref.png","frames":["f0.png","f1.png"],"fps":10}`)

	anim, err := Load(dir)
	require.NoError(t, err)

	first := anim.FrameAt(0)
	second := anim.FrameAt(150 * time.Millisecond)
	wrapped := anim.FrameAt(200 * time.Millisecond)
	assert.Same(t, anim.Frames[0], first)
	assert.Same(t, anim.Frames[1], second)
	assert.Same(t, anim.Frames[0], wrapped, "animation must loop")
}

func TestLoadRejectsMissingManifest(t *testing.T) {
	_, err := Load(t.TempDir())
	assert.Error(t, err)
}

func TestLoadRejectsEmptyFrameList(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ref.png"), 8, 8, color.RGBA{A: 255})
	writeManifest(t, dir, `{"reference":"ref.png","frames":[]}`)

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFrameFile(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "ref.png"), 8, 8, color.RGBA{A: 255})
	writeManifest(t, dir, `{"reference":"ref.png","frames":["nope.png"]}`)

	_, err := Load(dir)
	assert.Error(t, err, "missing assets are a setup failure, not a probe result")
}
