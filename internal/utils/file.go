package utils

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultSuffix is inserted before the extension of every derived file.
const DefaultSuffix = "_resized"

// imageExts lists the extensions the resizer can decode and re-encode.
var imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tif", "tiff", "webp"}

// Ext is filepath.Ext except that leading dots of the base name never start
// an extension, so ".jpg" has none.
func Ext(path string) string {
	if !strings.Contains(strings.TrimLeft(filepath.Base(path), "."), ".") {
		return ""
	}
	return filepath.Ext(path)
}

// GetFileExtension returns the file extension without the dot
func GetFileExtension(filename string) string {
	ext := Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	ext := GetFileExtension(filename)
	for _, imgExt := range imageExts {
		if ext == imgExt {
			return true
		}
	}
	return false
}

// DerivedPath inserts suffix between the file name and its extension:
// /a/b/photo.jpg -> /a/b/photo_resized.jpg. The extension keeps its case.
func DerivedPath(path, suffix string) string {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	ext := Ext(path)
	return strings.TrimSuffix(path, ext) + suffix + ext
}

// IsDerived reports whether path already carries suffix before its extension.
func IsDerived(path, suffix string) bool {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	ext := Ext(path)
	return strings.HasSuffix(strings.TrimSuffix(path, ext), suffix)
}

// ListImageFiles recursively lists all image files in a directory in lexical
// order, skipping files already derived with suffix.
func ListImageFiles(dir, suffix string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsImageFile(path) && !IsDerived(path, suffix) {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// ExpandInputs turns command line arguments into an ordered file list.
// Files are kept in the order given, directories are replaced by their image
// files. Missing paths are kept so the batch reports them as failures.
func ExpandInputs(args []string, suffix string) ([]string, error) {
	var files []string
	for _, arg := range args {
		if !DirExists(arg) {
			files = append(files, arg)
			continue
		}
		found, err := ListImageFiles(arg, suffix)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", arg, err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// DirExists checks if a directory exists
func DirExists(dirname string) bool {
	info, err := os.Stat(dirname)
	if err != nil {
		return false
	}
	return info.IsDir()
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
