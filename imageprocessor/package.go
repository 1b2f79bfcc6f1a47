// Package imageprocessor loads image files of various formats into RGB matrices.
package imageprocessor

import "gocv.io/x/gocv"

// ImageLoader is the interface that all image loaders must implement
type ImageLoader interface {
	// LoadImage loads the image as a 3-channel RGB matrix
	LoadImage(path string) (gocv.Mat, error)
}
