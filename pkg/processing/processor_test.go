package processing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/image-resizer/pkg/cropper"
	"github.com/menta2k/image-resizer/pkg/metadata"
)

// createTestImage creates a gradient test image
func createTestImage(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r := uint8((x * 255) / width)
			g := uint8((y * 255) / height)
			img.Set(x, y, color.RGBA{r, g, 128, 255})
		}
	}
	return img
}

func writeTestImage(t *testing.T, dir, name string, width, height int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, imaging.Save(createTestImage(width, height), path))
	return path
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessPNG(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "photo.png", 400, 300)
	before, err := os.ReadFile(src)
	require.NoError(t, err)

	p := NewProcessor()
	res, err := p.Process(context.Background(), src, cropper.Widescreen, false)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "photo_resized.png"), res.Output)
	assert.Equal(t, "png", res.Format)
	assert.Equal(t, image.Rect(0, 37, 400, 262), res.Crop)

	out, err := imaging.Open(res.Output)
	require.NoError(t, err)
	assert.Equal(t, 400, out.Bounds().Dx())
	assert.Equal(t, 225, out.Bounds().Dy())

	after, err := os.ReadFile(src)
	require.NoError(t, err)
	assert.Equal(t, before, after, "source must not be modified")
	assert.ElementsMatch(t, []string{"photo.png", "photo_resized.png"}, listDir(t, dir))
}

func TestProcessJPEGKeepsFormat(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "shot.JPG", 300, 400)

	res, err := NewProcessor().Process(context.Background(), src, cropper.Square, false)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "shot_resized.JPG"), res.Output)

	f, err := os.Open(res.Output)
	require.NoError(t, err)
	defer f.Close()
	cfg, format, err := image.DecodeConfig(f)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 300, cfg.Width)
	assert.Equal(t, 300, cfg.Height)
}

func TestProcessWebP(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "pic.webp")
	require.NoError(t, NewProcessor().SaveImage(createTestImage(160, 160), src))

	res, err := NewProcessor().Process(context.Background(), src, cropper.Standard, false)
	require.NoError(t, err)

	img, err := NewProcessor().LoadImage(res.Output)
	require.NoError(t, err)
	assert.Equal(t, 160, img.Bounds().Dx())
	assert.Equal(t, 120, img.Bounds().Dy())
}

func TestProcessIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "a.jpg", 320, 200)
	p := NewProcessor()

	res, err := p.Process(context.Background(), src, cropper.Square, false)
	require.NoError(t, err)
	first, err := os.ReadFile(res.Output)
	require.NoError(t, err)

	_, err = p.Process(context.Background(), src, cropper.Square, false)
	require.NoError(t, err)
	second, err := os.ReadFile(res.Output)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first, second))
}

func TestProcessDecodeFailures(t *testing.T) {
	dir := t.TempDir()
	corrupt := filepath.Join(dir, "broken.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not a jpeg"), 0o644))

	p := NewProcessor()
	for _, path := range []string{corrupt, filepath.Join(dir, "missing.png")} {
		_, err := p.Process(context.Background(), path, cropper.Square, false)
		assert.ErrorIs(t, err, ErrDecode, path)
	}
	assert.Equal(t, []string{"broken.jpg"}, listDir(t, dir))
}

func TestProcessEmptyCrop(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "tiny.png", 1, 1)

	_, err := NewProcessor().Process(context.Background(), src, cropper.Widescreen, false)
	assert.ErrorIs(t, err, cropper.ErrEmptyCrop)
	assert.Equal(t, []string{"tiny.png"}, listDir(t, dir))
}

func TestProcessHugeRatioSideIsEmptyCrop(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "big.png", 400, 300)
	r, err := cropper.ResolveCustom("1", "3000000000000000000")
	require.NoError(t, err)

	_, err = NewProcessor().Process(context.Background(), src, r, false)
	assert.ErrorIs(t, err, cropper.ErrEmptyCrop)
	assert.Equal(t, []string{"big.png"}, listDir(t, dir))
}

// explodingImage panics as soon as an encoder reads a pixel.
type explodingImage struct{}

func (explodingImage) ColorModel() color.Model { return color.RGBAModel }
func (explodingImage) Bounds() image.Rectangle { return image.Rect(0, 0, 8, 8) }
func (explodingImage) At(x, y int) color.Color { panic("codec blew up") }

func TestSaveImagePanicLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.png")

	assert.Panics(t, func() {
		_ = NewProcessor().SaveImage(explodingImage{}, out)
	})
	assert.Empty(t, listDir(t, dir))
}

func TestProcessUnsupportedOutputLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "image.data")
	require.NoError(t, imaging.Save(createTestImage(50, 50), filepath.Join(dir, "seed.png")))
	require.NoError(t, os.Rename(filepath.Join(dir, "seed.png"), src))

	_, err := NewProcessor().Process(context.Background(), src, cropper.Square, false)
	assert.ErrorIs(t, err, ErrEncode)
	assert.Equal(t, []string{"image.data"}, listDir(t, dir))
}

func TestProcessMetadata(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "m.png", 200, 100)

	var gotSrc, gotDst string
	ok := metadata.CopierFunc(func(ctx context.Context, s, d string) error {
		gotSrc, gotDst = s, d
		return nil
	})
	p := NewProcessorWithOptions(DefaultOptions(), ok)
	res, err := p.Process(context.Background(), src, cropper.Square, true)
	require.NoError(t, err)
	assert.Equal(t, src, gotSrc)
	assert.Equal(t, res.Output, gotDst)

	// not requested: copier untouched
	gotSrc = ""
	_, err = p.Process(context.Background(), src, cropper.Square, false)
	require.NoError(t, err)
	assert.Empty(t, gotSrc)
}

func TestProcessMetadataFailureKeepsOutput(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "m.png", 200, 100)
	toolErr := &metadata.ToolError{Tool: "exiftool", ExitCode: 1}

	failing := metadata.CopierFunc(func(ctx context.Context, s, d string) error {
		return toolErr
	})
	p := NewProcessorWithOptions(DefaultOptions(), failing)
	res, err := p.Process(context.Background(), src, cropper.Square, true)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMetadata)
	assert.ErrorIs(t, err, metadata.ErrToolFailed)
	assert.True(t, errors.As(err, &toolErr))
	assert.FileExists(t, res.Output, "derived file stays on disk")
}

func TestProcessMetadataCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "m.png", 20, 10)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupted := metadata.CopierFunc(func(ctx context.Context, s, d string) error {
		cancel()
		return fmt.Errorf("running exiftool: %w", ctx.Err())
	})
	_, err := NewProcessorWithOptions(DefaultOptions(), interrupted).Process(ctx, src, cropper.Square, true)
	assert.ErrorIs(t, err, ErrMetadata)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessMetadataWithoutCopier(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "m.png", 20, 10)

	_, err := NewProcessor().Process(context.Background(), src, cropper.Square, true)
	assert.ErrorIs(t, err, ErrMetadata)
}

func TestProcessCancelled(t *testing.T) {
	dir := t.TempDir()
	src := writeTestImage(t, dir, "c.png", 20, 10)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewProcessor().Process(ctx, src, cropper.Square, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"c.png"}, listDir(t, dir))
}

func TestOptionsDefaults(t *testing.T) {
	p := NewProcessorWithOptions(Options{JPEGQuality: 500}, nil)
	assert.Equal(t, "_resized", p.opts.Suffix)
	assert.Equal(t, 95, p.opts.JPEGQuality)
	assert.Equal(t, "/x/y_resized.gif", p.OutputPath("/x/y.gif"))

	p = NewProcessorWithOptions(Options{Suffix: "_crop"}, nil)
	assert.Equal(t, "/x/y_crop.gif", p.OutputPath("/x/y.gif"))
}
