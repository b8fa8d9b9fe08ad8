// Package imageresizer crops batches of images to a target aspect ratio.
//
// Every image is cut to the largest rectangle of the requested ratio that
// fits inside it, centered on the original, and written next to the source
// as <name>_resized<ext> in the source's own format. Batches run on a
// background goroutine and report to a batch.Listener.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"fmt"
//		"log"
//
//		imageresizer "github.com/menta2k/image-resizer"
//		"github.com/menta2k/image-resizer/pkg/batch"
//		"github.com/menta2k/image-resizer/pkg/cropper"
//	)
//
//	func main() {
//		r := imageresizer.New()
//
//		run, err := r.Resize(context.Background(), []string{"a.jpg", "b.png"}, cropper.Widescreen, false,
//			batch.ListenerFuncs{OnProgress: func(p batch.Progress) {
//				fmt.Printf("%3d%% %s\n", p.Percent, p.Path)
//			}})
//		if err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(run.Wait())
//	}
//
// The package consists of four components:
//
// 1. Cropper (pkg/cropper): ratio parsing and the centered crop geometry
// 2. Processing (pkg/processing): load, crop, and atomically write one image
// 3. Metadata (pkg/metadata): optional metadata copy through exiftool
// 4. Batch (pkg/batch): the background runner and its listener contract
package imageresizer

import (
	"context"
	"image"

	"github.com/menta2k/image-resizer/pkg/batch"
	"github.com/menta2k/image-resizer/pkg/cropper"
	"github.com/menta2k/image-resizer/pkg/metadata"
	"github.com/menta2k/image-resizer/pkg/processing"
)

// Version of the image resizer library
const Version = "1.0.0"

// ImageResizer provides a high-level interface for batch cropping
type ImageResizer struct {
	processor *processing.Processor
	runner    *batch.Runner
}

// New creates a new ImageResizer with default configuration. Metadata is
// copied with exiftool from PATH when requested.
func New() *ImageResizer {
	return NewWithConfig(processing.DefaultOptions(), metadata.NewExifTool(""), batch.Options{})
}

// NewWithConfig creates a new ImageResizer with custom configuration
func NewWithConfig(procOpts processing.Options, copier metadata.Copier, batchOpts batch.Options) *ImageResizer {
	p := processing.NewProcessorWithOptions(procOpts, copier)
	return &ImageResizer{
		processor: p,
		runner:    batch.NewRunner(p, batchOpts),
	}
}

// Resize starts a batch over paths. Pre-flight problems (no files, invalid
// ratio, a batch already running) are returned immediately; everything else
// is reported to l.
func (r *ImageResizer) Resize(ctx context.Context, paths []string, ratio cropper.Ratio, preserveMetadata bool, l batch.Listener) (*batch.Run, error) {
	return r.runner.Start(ctx, batch.Job{
		Paths:            paths,
		Ratio:            ratio,
		PreserveMetadata: preserveMetadata,
	}, l)
}

// ResizeFile crops a single file synchronously.
func (r *ImageResizer) ResizeFile(ctx context.Context, path string, ratio cropper.Ratio, preserveMetadata bool) (processing.Result, error) {
	return r.processor.Process(ctx, path, ratio, preserveMetadata)
}

// Running reports whether a batch is in flight.
func (r *ImageResizer) Running() bool {
	return r.runner.Running()
}

// OutputPath returns where the derived image for path is written.
func (r *ImageResizer) OutputPath(path string) string {
	return r.processor.OutputPath(path)
}

// CropImage crops an in-memory image to ratio.
func (r *ImageResizer) CropImage(img image.Image, ratio cropper.Ratio) (image.Image, image.Rectangle, error) {
	return cropper.Crop(img, ratio)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
