// Package metadata copies embedded image metadata (EXIF, IPTC, XMP) from a
// source image onto a derived file.
package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// ErrToolFailed is wrapped by every error caused by the external tool
// exiting unsuccessfully.
var ErrToolFailed = errors.New("metadata tool failed")

// DefaultExifTool is the executable looked up on PATH when none is configured.
const DefaultExifTool = "exiftool"

// Copier copies all metadata tags from src onto dst, overwriting dst in place.
type Copier interface {
	CopyMetadata(ctx context.Context, src, dst string) error
}

// CopierFunc adapts a plain function to the Copier interface.
type CopierFunc func(ctx context.Context, src, dst string) error

// CopyMetadata calls f(ctx, src, dst).
func (f CopierFunc) CopyMetadata(ctx context.Context, src, dst string) error {
	return f(ctx, src, dst)
}

// ToolError describes a non-zero exit of the metadata tool.
type ToolError struct {
	Tool     string
	ExitCode int
	Output   string
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("%s exited with status %d", e.Tool, e.ExitCode)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// Unwrap makes errors.Is(err, ErrToolFailed) hold for every ToolError.
func (e *ToolError) Unwrap() error {
	return ErrToolFailed
}

// ExifTool copies metadata by running exiftool.
type ExifTool struct {
	// Path to the executable; DefaultExifTool when empty.
	Path string
	// Args are extra arguments placed before the copy arguments.
	Args []string
}

// NewExifTool returns an ExifTool using the given executable path.
func NewExifTool(path string) *ExifTool {
	return &ExifTool{Path: path}
}

func (t *ExifTool) tool() string {
	if t.Path == "" {
		return DefaultExifTool
	}
	return t.Path
}

// LookPath resolves the configured executable.
func (t *ExifTool) LookPath() (string, error) {
	return exec.LookPath(t.tool())
}

// CopyMetadata runs: exiftool -TagsFromFile src -all:all -overwrite_original dst
func (t *ExifTool) CopyMetadata(ctx context.Context, src, dst string) error {
	args := make([]string, 0, len(t.Args)+5)
	args = append(args, t.Args...)
	args = append(args, "-TagsFromFile", src, "-all:all", "-overwrite_original", dst)

	cmd := exec.CommandContext(ctx, t.tool(), args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("running %s: %w", t.tool(), ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return &ToolError{
				Tool:     t.tool(),
				ExitCode: exitErr.ExitCode(),
				Output:   strings.TrimSpace(out.String()),
			}
		}
		return fmt.Errorf("running %s: %w", t.tool(), err)
	}
	return nil
}
