package cropper

import (
	"errors"
	"fmt"
	"image"
	"math/bits"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
)

var (
	// ErrInvalidRatio is returned when a ratio token or custom pair cannot be
	// resolved to two positive integers.
	ErrInvalidRatio = errors.New("invalid aspect ratio")
	// ErrInvalidDimensions is returned for a source image with a zero side.
	ErrInvalidDimensions = errors.New("invalid image dimensions")
	// ErrEmptyCrop is returned when the computed crop has zero area.
	ErrEmptyCrop = errors.New("empty crop rectangle")
)

// Ratio represents a target aspect ratio. It carries no pixel size.
type Ratio struct {
	Width  int
	Height int
	Name   string
}

// Preset aspect ratios offered by the resizer
var (
	Square     = Ratio{1, 1, "1:1"}
	Standard   = Ratio{4, 3, "4:3"}
	Widescreen = Ratio{16, 9, "16:9"}
)

// DefaultRatio is selected when nothing else is requested.
var DefaultRatio = Widescreen

// Presets returns the fixed preset set in display order
func Presets() []Ratio {
	return []Ratio{Square, Standard, Widescreen}
}

// Valid reports whether both sides are strictly positive.
func (r Ratio) Valid() bool {
	return r.Width > 0 && r.Height > 0
}

// String returns the ratio as "W:H".
func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.Width, r.Height)
}

// ParseRatio parses a "W:H" token.
func ParseRatio(token string) (Ratio, error) {
	w, h, ok := strings.Cut(strings.TrimSpace(token), ":")
	if !ok {
		return Ratio{}, fmt.Errorf("%w: %q is not in W:H form", ErrInvalidRatio, token)
	}
	return ResolveCustom(w, h)
}

// ResolvePreset returns the preset matching token. Tokens outside the preset
// set are parsed as a plain "W:H" ratio.
func ResolvePreset(token string) (Ratio, error) {
	token = strings.TrimSpace(token)
	for _, p := range Presets() {
		if p.Name == token {
			return p, nil
		}
	}
	return ParseRatio(token)
}

// ResolveCustom validates a user-entered width/height pair.
func ResolveCustom(width, height string) (Ratio, error) {
	w, err := strconv.Atoi(strings.TrimSpace(width))
	if err != nil {
		return Ratio{}, fmt.Errorf("%w: width %q is not an integer", ErrInvalidRatio, width)
	}
	h, err := strconv.Atoi(strings.TrimSpace(height))
	if err != nil {
		return Ratio{}, fmt.Errorf("%w: height %q is not an integer", ErrInvalidRatio, height)
	}
	r := Ratio{Width: w, Height: h}
	if !r.Valid() {
		return Ratio{}, fmt.Errorf("%w: %s must have positive sides", ErrInvalidRatio, r)
	}
	r.Name = r.String()
	return r, nil
}

// ComputeCrop returns the largest rectangle with the target ratio that fits
// inside a srcWidth x srcHeight image, centered on it. The rectangle never
// exceeds the source, so no upscaling is ever needed.
func ComputeCrop(srcWidth, srcHeight int, r Ratio) (image.Rectangle, error) {
	if srcWidth <= 0 || srcHeight <= 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, srcWidth, srcHeight)
	}
	if !r.Valid() {
		return image.Rectangle{}, fmt.Errorf("%w: %s", ErrInvalidRatio, r)
	}

	sw, sh := uint64(srcWidth), uint64(srcHeight)
	rw, rh := uint64(r.Width), uint64(r.Height)

	// Products are 128-bit so any positive int ratio is exact. Each quotient
	// is bounded by a source side, so Div64 cannot overflow.
	var newWidth, newHeight uint64
	if wider(sw, rh, sh, rw) {
		newHeight = sh
		newWidth = mulDiv(sh, rw, rh)
	} else {
		newWidth = sw
		newHeight = mulDiv(sw, rh, rw)
	}
	if newWidth == 0 || newHeight == 0 {
		return image.Rectangle{}, fmt.Errorf("%w: %dx%d to %s", ErrEmptyCrop, srcWidth, srcHeight, r)
	}

	left := int((sw - newWidth) / 2)
	top := int((sh - newHeight) / 2)
	return image.Rect(left, top, left+int(newWidth), top+int(newHeight)), nil
}

// wider reports a*b > c*d.
func wider(a, b, c, d uint64) bool {
	hi1, lo1 := bits.Mul64(a, b)
	hi2, lo2 := bits.Mul64(c, d)
	return hi1 > hi2 || (hi1 == hi2 && lo1 > lo2)
}

// mulDiv returns floor(a*b/c). The caller guarantees the result fits.
func mulDiv(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// Crop cuts the centered ratio crop out of img. The returned rectangle is
// relative to the image origin.
func Crop(img image.Image, r Ratio) (image.Image, image.Rectangle, error) {
	bounds := img.Bounds()
	rect, err := ComputeCrop(bounds.Dx(), bounds.Dy(), r)
	if err != nil {
		return nil, image.Rectangle{}, err
	}
	return imaging.Crop(img, rect.Add(bounds.Min)), rect, nil
}
