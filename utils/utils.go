package utils

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"simbench/types"
)

// DefaultModelFile is the network looked up next to the executable
const DefaultModelFile = "alexnet.onnx"

// GetDefaultModelPath returns the default path for the embedding network
func GetDefaultModelPath() string {
	// Get the executable path
	exePath, err := os.Executable()
	if err != nil {
		// Fallback to current directory if executable path can't be determined
		return DefaultModelFile
	}

	return filepath.Join(filepath.Dir(exePath), DefaultModelFile)
}

// ParseAxisRange parses a "min:max:step" y axis override
func ParseAxisRange(s string) (types.Axis, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return types.Axis{}, fmt.Errorf("invalid axis %q: expected min:max:step", s)
	}

	var values [3]float64
	for i, part := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return types.Axis{}, fmt.Errorf("invalid axis %q: %q is not a number", s, part)
		}
		values[i] = v
	}

	axis := types.Axis{Min: values[0], Max: values[1], Step: values[2]}
	if axis.Min >= axis.Max || axis.Step <= 0 {
		return types.Axis{}, fmt.Errorf("invalid axis %q: need min < max and step > 0", s)
	}
	return axis, nil
}
