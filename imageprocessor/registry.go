package imageprocessor

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Registry routes each file to the loader registered for its format. Files
// with an unknown extension go to the fallback loader, which lets the decoder
// sniff the content.
type Registry struct {
	mu       sync.RWMutex
	byFormat map[FormatType]ImageLoader
	fallback ImageLoader
}

// NewRegistry returns a registry with the standard loader for every known format
func NewRegistry() *Registry {
	standard := NewStandardImageLoader()
	r := &Registry{
		byFormat: make(map[FormatType]ImageLoader, len(standard.SupportedFormats)),
		fallback: standard,
	}
	for _, format := range standard.SupportedFormats {
		r.Register(format, standard)
	}
	return r
}

// Register makes loader responsible for format
func (r *Registry) Register(format FormatType, loader ImageLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byFormat[format] = loader
}

func (r *Registry) loaderFor(path string) ImageLoader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if loader, ok := r.byFormat[GetFileFormat(path)]; ok {
		return loader
	}
	return r.fallback
}

// LoadImage decodes path into a non-empty RGB matrix
func (r *Registry) LoadImage(path string) (gocv.Mat, error) {
	loader := r.loaderFor(path)
	if loader == nil {
		return gocv.NewMat(), fmt.Errorf("no loader for %s", path)
	}

	img, err := loader.LoadImage(path)
	if err != nil {
		return img, err
	}
	if img.Empty() {
		img.Close()
		return gocv.NewMat(), newImageLoadError("decoded image is empty", path, nil)
	}
	return img, nil
}
