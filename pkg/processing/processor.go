package processing

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-resizer/internal/log"
	"github.com/menta2k/image-resizer/internal/utils"
	"github.com/menta2k/image-resizer/pkg/cropper"
	"github.com/menta2k/image-resizer/pkg/metadata"
)

var (
	// ErrDecode wraps failures to open or decode the source image.
	ErrDecode = errors.New("failed to load image")
	// ErrEncode wraps failures to encode or write the derived image.
	ErrEncode = errors.New("failed to save image")
	// ErrMetadata wraps failures of the metadata copy step. The derived file
	// is left in place when it is returned.
	ErrMetadata = errors.New("failed to copy metadata")
)

// Options configures how derived images are written.
type Options struct {
	// Suffix inserted before the extension, utils.DefaultSuffix when empty.
	Suffix         string
	JPEGQuality    int
	PNGCompression png.CompressionLevel
	WebPLossless   bool
	WebPQuality    float32
}

// DefaultOptions returns the options used by NewProcessor.
func DefaultOptions() Options {
	return Options{
		Suffix:         utils.DefaultSuffix,
		JPEGQuality:    95,
		PNGCompression: png.DefaultCompression,
		WebPQuality:    90,
	}
}

// Result describes one successfully written image.
type Result struct {
	Source string
	Output string
	Format string
	Crop   image.Rectangle
}

// Processor crops single images to an aspect ratio and writes them next to
// the original.
type Processor struct {
	opts     Options
	metadata metadata.Copier
}

// NewProcessor creates a new image processor with default options
func NewProcessor() *Processor {
	return NewProcessorWithOptions(DefaultOptions(), nil)
}

// NewProcessorWithOptions creates a processor; copier may be nil when
// metadata preservation is never requested.
func NewProcessorWithOptions(opts Options, copier metadata.Copier) *Processor {
	if opts.Suffix == "" {
		opts.Suffix = utils.DefaultSuffix
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = DefaultOptions().JPEGQuality
	}
	if opts.WebPQuality <= 0 || opts.WebPQuality > 100 {
		opts.WebPQuality = DefaultOptions().WebPQuality
	}
	return &Processor{opts: opts, metadata: copier}
}

// OutputPath returns where the derived image for path is written.
func (p *Processor) OutputPath(path string) string {
	return utils.DerivedPath(path, p.opts.Suffix)
}

// Process crops the image at path to ratio and writes it to OutputPath(path).
// The original file is never modified. Any failure, including a panic in a
// codec, is returned as an error.
func (p *Processor) Process(ctx context.Context, path string, ratio cropper.Ratio, preserveMetadata bool) (res Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("processing %s panicked: %v", path, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	img, err := p.LoadImage(path)
	if err != nil {
		return Result{}, err
	}

	cropped, rect, err := cropper.Crop(img, ratio)
	if err != nil {
		return Result{}, fmt.Errorf("cropping %s: %w", path, err)
	}

	out := p.OutputPath(path)
	if err := p.SaveImage(cropped, out); err != nil {
		return Result{}, err
	}
	res = Result{
		Source: path,
		Output: out,
		Format: utils.GetFileExtension(path),
		Crop:   rect,
	}
	log.Debugf("cropped %s %dx%d -> %s %v", path, img.Bounds().Dx(), img.Bounds().Dy(), out, rect)

	if preserveMetadata {
		if p.metadata == nil {
			return res, fmt.Errorf("%w: no metadata tool configured", ErrMetadata)
		}
		if err := p.metadata.CopyMetadata(ctx, path, out); err != nil {
			return res, fmt.Errorf("%w for %s: %w", ErrMetadata, out, err)
		}
	}
	return res, nil
}

// LoadImage loads an image from a file path with WebP support
func (p *Processor) LoadImage(path string) (image.Image, error) {
	// Try imaging.Open (registered decoders)
	img, openErr := imaging.Open(path)
	if openErr == nil {
		return img, nil
	}

	// Fallback: explicit WebP decode
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer f.Close()

	if utils.GetFileExtension(path) == "webp" {
		if img, err := webp.Decode(bufio.NewReader(f)); err == nil {
			return img, nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, openErr)
}

// SaveImage encodes img in the format named by path's extension. The file is
// written to a temporary sibling and renamed into place, so a failed encode
// leaves nothing behind.
func (p *Processor) SaveImage(img image.Image, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".resize-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncode, err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := p.encode(bw, img, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	_ = os.Chmod(tmpPath, 0o644)
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	renamed = true
	return nil
}

func (p *Processor) encode(w io.Writer, img image.Image, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".webp") {
		return webp.Encode(w, img, &webp.Options{Lossless: p.opts.WebPLossless, Quality: p.opts.WebPQuality})
	}
	format, err := imaging.FormatFromFilename(path)
	if err != nil {
		return err
	}
	return imaging.Encode(w, img, format,
		imaging.JPEGQuality(p.opts.JPEGQuality),
		imaging.PNGCompressionLevel(p.opts.PNGCompression),
	)
}
