package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/menta2k/image-resizer/internal/config"
	"github.com/menta2k/image-resizer/internal/log"
	"github.com/menta2k/image-resizer/internal/utils"
	"github.com/menta2k/image-resizer/pkg/batch"
	"github.com/menta2k/image-resizer/pkg/metadata"
	"github.com/menta2k/image-resizer/pkg/processing"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

// run parses args, resizes the given files and returns the exit status.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("image-resizer", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		configPath string
		ratio      string
		width      string
		height     string
		keepExif   bool
		exiftool   string
		suffix     string
		quality    int
		workers    int
		logFile    string
		verbose    bool
	)
	fs.StringVar(&configPath, "config", "", "JSON config file (default: "+config.GetConfigPath()+" if present)")
	fs.StringVar(&ratio, "ratio", "", "target ratio: 1:1|4:3|16:9|W:H|custom")
	fs.StringVar(&width, "width", "", "custom ratio width (with -ratio custom)")
	fs.StringVar(&height, "height", "", "custom ratio height (with -ratio custom)")
	fs.BoolVar(&keepExif, "keep-exif", false, "copy metadata onto resized files with exiftool")
	fs.StringVar(&exiftool, "exiftool", "", "exiftool executable")
	fs.StringVar(&suffix, "suffix", "", "suffix inserted before the extension")
	fs.IntVar(&quality, "quality", 0, "JPEG output quality (1-100)")
	fs.IntVar(&workers, "workers", 0, "files processed concurrently")
	fs.StringVar(&logFile, "log-file", "", "write logs to a rotating file")
	fs.BoolVar(&verbose, "v", false, "verbose logging")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: %s [flags] <image|dir>...\n", filepath.Base(os.Args[0]))
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	// Flags override the config file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "ratio":
			cfg.Ratio.Preset = ratio
		case "width":
			cfg.Ratio.Width = width
		case "height":
			cfg.Ratio.Height = height
		case "keep-exif":
			cfg.Metadata.Preserve = keepExif
		case "exiftool":
			cfg.Metadata.ExifToolPath = exiftool
		case "suffix":
			cfg.Output.Suffix = suffix
		case "quality":
			cfg.Output.JPEGQuality = quality
		case "workers":
			cfg.Batch.Workers = workers
		case "log-file":
			cfg.Log.File = logFile
		case "v":
			cfg.Log.Verbose = verbose
		}
	})

	if cfg.Log.File != "" {
		closer, err := log.SetFile(cfg.Log.File)
		if err != nil {
			fmt.Fprintln(stderr, "Error:", err)
			return 1
		}
		defer closer.Close()
	} else {
		log.SetOutput(stderr)
	}
	log.SetVerbose(cfg.Log.Verbose)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(stderr, "Error: invalid configuration:", err)
		return 1
	}
	r, _ := cfg.ResolveRatio()

	files, err := utils.ExpandInputs(fs.Args(), cfg.Output.Suffix)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	tool := metadata.NewExifTool(cfg.Metadata.ExifToolPath)
	if cfg.Metadata.Preserve {
		if _, err := tool.LookPath(); err != nil {
			log.Printf("warning: %s not found, metadata copy will fail: %v", tool.Path, err)
		}
	}

	proc := processing.NewProcessorWithOptions(cfg.ProcessingOptions(), tool)
	runner := batch.NewRunner(proc, cfg.BatchOptions())

	l := &consoleListener{out: stdout, verbose: cfg.Log.Verbose}
	handle, err := runner.Start(ctx, batch.Job{
		Paths:            files,
		Ratio:            r,
		PreserveMetadata: cfg.Metadata.Preserve,
	}, l)
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
		return 1
	}

	summary := handle.Wait()
	if summary.Failed > 0 || summary.Cancelled {
		return 1
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	if def := config.GetConfigPath(); utils.FileExists(def) {
		return config.LoadFromFile(def)
	}
	return config.Default(), nil
}

// consoleListener prints batch events as they arrive.
type consoleListener struct {
	out     io.Writer
	verbose bool
}

func (c *consoleListener) Progress(p batch.Progress) {
	if p.Err != nil {
		fmt.Fprintf(c.out, "[%3d%%] %s failed\n", p.Percent, p.Path)
		return
	}
	line := fmt.Sprintf("[%3d%%] %s -> %s", p.Percent, p.Path, p.Output)
	if c.verbose {
		if info, err := os.Stat(p.Output); err == nil {
			line += " (" + utils.FormatFileSize(info.Size()) + ")"
		}
	}
	fmt.Fprintln(c.out, line)
}

func (c *consoleListener) Status(msg string) {
	fmt.Fprintln(c.out, msg)
}

func (c *consoleListener) Complete(s batch.Summary) {
	fmt.Fprintln(c.out, "All images processed:", s)
}
