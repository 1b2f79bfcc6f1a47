package imageprocessor

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// ErrDecode is matched by every error caused by undecodable image data
var ErrDecode = errors.New("cannot decode image")

// LoadError describes a failure to turn a file into pixels
type LoadError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Path)
}

// Is makes errors.Is(err, ErrDecode) hold for decode failures
func (e *LoadError) Is(target error) bool {
	return target == ErrDecode
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// BaseImageLoader provides common functionality for all image loaders
type BaseImageLoader struct {
	// Formats this loader can handle
	SupportedFormats []FormatType
}

// checkReadable returns a filesystem error for missing or unreadable files so
// callers can tell them apart from decode failures
func checkReadable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot open image: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot open image %s: %w", path, fs.ErrInvalid)
	}
	return nil
}

// newImageLoadError creates a standardized error for image loading failures
func newImageLoadError(message, path string, err error) error {
	return &LoadError{Path: path, Reason: message, Err: err}
}
