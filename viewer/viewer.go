// Package viewer presents rendered charts.
package viewer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"gocv.io/x/gocv"

	"simbench/logging"
)

// Viewer presents one rendered chart
type Viewer interface {
	Show(title string, png []byte) error
}

// Window shows charts in an OpenCV highgui window and blocks until the window
// is closed or a key is pressed
type Window struct{}

// Show displays png and waits for the user
func (Window) Show(title string, png []byte) error {
	img, err := gocv.IMDecode(png, gocv.IMReadColor)
	if err != nil {
		return fmt.Errorf("cannot decode chart %q: %w", title, err)
	}
	defer img.Close()
	if img.Empty() {
		return fmt.Errorf("cannot decode chart %q", title)
	}

	window := gocv.NewWindow(title)
	defer window.Close()

	window.IMShow(img)
	logging.LogInfo("showing %q, press any key or close the window to continue", title)
	for window.IsOpen() {
		if window.WaitKey(100) >= 0 {
			break
		}
	}
	return nil
}

// FileSink writes each chart to <Dir>/<slug>.png
type FileSink struct {
	Dir string
}

// Show writes png to disk
func (f FileSink) Show(title string, png []byte) error {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return fmt.Errorf("cannot create chart directory: %w", err)
	}
	path := filepath.Join(f.Dir, Slug(title)+".png")
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return fmt.Errorf("cannot write chart: %w", err)
	}
	logging.LogInfo("chart written to %s", path)
	return nil
}

// Multi shows a chart on every viewer in order
type Multi []Viewer

// Show tries every viewer and joins their errors
func (m Multi) Show(title string, png []byte) error {
	var errs []error
	for _, v := range m {
		if err := v.Show(title, png); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Slug turns a chart title into a file name
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimSuffix(b.String(), "-")
	if s == "" {
		return "chart"
	}
	return s
}
