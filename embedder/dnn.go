package embedder

import (
	"context"
	"fmt"
	"image"
	"path/filepath"

	"gocv.io/x/gocv"

	"simbench/logging"
	"simbench/types"
)

// ImageNet statistics used by torchvision-trained models
var (
	ImageNetMean = [3]float64{0.485, 0.456, 0.406}
	ImageNetStd  = [3]float64{0.229, 0.224, 0.225}
)

const (
	// DefaultLayer is the ReLU after fc7 in torchvision's AlexNet exported with
	// torch.onnx.export: the 4096-d penultimate activation
	DefaultLayer = "/classifier/classifier.5/Relu_output_0"
	// DefaultInputSize is the AlexNet input resolution
	DefaultInputSize = 224
)

// DNNConfig describes a network loadable by OpenCV's dnn module
type DNNConfig struct {
	// Model is the weights file (.onnx, .caffemodel, .pb, ...)
	Model string
	// Config is the optional network description file
	Config string
	// Layer is the output blob to read; empty uses the network output
	Layer     string
	InputSize int
	Mean      [3]float64
	Std       [3]float64
}

// DefaultDNNConfig returns the AlexNet feature extractor setup for model
func DefaultDNNConfig(model string) DNNConfig {
	return DNNConfig{
		Model:     model,
		Layer:     DefaultLayer,
		InputSize: DefaultInputSize,
		Mean:      ImageNetMean,
		Std:       ImageNetStd,
	}
}

// Preprocessor converts an RGB image into a normalised NCHW blob
type Preprocessor struct {
	Size image.Point
	Mean [3]float64
	Std  [3]float64
}

// Blob resizes img, scales it to [0,1] and normalises every channel. The
// caller owns the returned Mat.
func (p Preprocessor) Blob(img gocv.Mat) (gocv.Mat, error) {
	if img.Empty() {
		return gocv.NewMat(), fmt.Errorf("cannot preprocess empty image")
	}
	if img.Channels() != 3 {
		return gocv.NewMat(), fmt.Errorf("expected 3 channels, got %d", img.Channels())
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, p.Size, 0, 0, gocv.InterpolationLinear)

	scaled := gocv.NewMat()
	defer scaled.Close()
	resized.ConvertTo(&scaled, gocv.MatTypeCV32F)
	scaled.DivideFloat(255)

	channels := gocv.Split(scaled)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()
	for i := range channels {
		channels[i].SubtractFloat(float32(p.Mean[i]))
		channels[i].DivideFloat(float32(p.Std[i]))
	}

	normalised := gocv.NewMat()
	defer normalised.Close()
	gocv.Merge(channels, &normalised)

	// input is already RGB, so no channel swap
	return gocv.BlobFromImage(normalised, 1.0, p.Size, gocv.NewScalar(0, 0, 0, 0), false, false), nil
}

// DNNEmbedder runs a pretrained network through OpenCV and returns the
// flattened activations of one layer
type DNNEmbedder struct {
	net   gocv.Net
	layer string
	name  string
	prep  Preprocessor
}

// NewDNNEmbedder loads the network once; it is read-only afterwards
func NewDNNEmbedder(cfg DNNConfig) (*DNNEmbedder, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("no model file configured")
	}
	if err := checkModelFile(cfg.Model); err != nil {
		return nil, err
	}
	if cfg.InputSize <= 0 {
		return nil, fmt.Errorf("invalid input size %d", cfg.InputSize)
	}

	net := gocv.ReadNet(cfg.Model, cfg.Config)
	if net.Empty() {
		return nil, fmt.Errorf("cannot load network from %s", cfg.Model)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	name := filepath.Base(cfg.Model)
	if cfg.Layer != "" {
		name += "#" + cfg.Layer
	}
	logging.LogInfo("loaded embedding network %s (input %dx%d)", name, cfg.InputSize, cfg.InputSize)

	return &DNNEmbedder{
		net:   net,
		layer: cfg.Layer,
		name:  name,
		prep: Preprocessor{
			Size: image.Pt(cfg.InputSize, cfg.InputSize),
			Mean: cfg.Mean,
			Std:  cfg.Std,
		},
	}, nil
}

// Embed runs one forward pass
func (e *DNNEmbedder) Embed(ctx context.Context, img gocv.Mat) (types.Embedding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	blob, err := e.prep.Blob(img)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	e.net.SetInput(blob, "")
	out := e.net.Forward(e.layer)
	defer out.Close()

	if out.Empty() {
		return nil, fmt.Errorf("network %s produced no output", e.name)
	}

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("cannot read output of %s: %w", e.name, err)
	}
	return append(types.Embedding(nil), data...), nil
}

// Name identifies the model and layer
func (e *DNNEmbedder) Name() string {
	return e.name
}

// Close releases the network
func (e *DNNEmbedder) Close() error {
	return e.net.Close()
}
