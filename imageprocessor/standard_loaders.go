package imageprocessor

import (
	"gocv.io/x/gocv"

	"simbench/logging"
)

// StandardImageLoader decodes common formats with OpenCV and falls back to the
// Go image decoders for files OpenCV was built without support for
type StandardImageLoader struct {
	BaseImageLoader
}

// NewStandardImageLoader creates a new loader for standard image formats
func NewStandardImageLoader() *StandardImageLoader {
	return &StandardImageLoader{
		BaseImageLoader: BaseImageLoader{
			SupportedFormats: []FormatType{
				FormatJPEG,
				FormatPNG,
				FormatGIF,
				FormatBMP,
				FormatWEBP,
				FormatTIFF,
			},
		},
	}
}

// LoadImage loads path as an RGB matrix. Alpha is dropped and grayscale is
// expanded to three channels.
func (l *StandardImageLoader) LoadImage(path string) (gocv.Mat, error) {
	if err := checkReadable(path); err != nil {
		return gocv.NewMat(), err
	}

	bgr := gocv.IMRead(path, gocv.IMReadColor)
	if !bgr.Empty() {
		defer bgr.Close()
		rgb := gocv.NewMat()
		gocv.CvtColor(bgr, &rgb, gocv.ColorBGRToRGB)
		return rgb, nil
	}
	bgr.Close()

	logging.DebugLog("OpenCV could not decode %s, trying Go image decoders", path)
	goImg, err := tryGoImagePackages(path)
	if err != nil {
		return gocv.NewMat(), newImageLoadError("failed to decode image", path, err)
	}

	rgb, err := gocv.ImageToMatRGB(goImg)
	if err != nil {
		return gocv.NewMat(), newImageLoadError("failed to convert image", path, err)
	}
	return rgb, nil
}
