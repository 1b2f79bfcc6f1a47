package embedder

import (
	"fmt"
	"os"
)

func checkModelFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file: %w", err)
	}
	if info.IsDir() || info.Size() == 0 {
		return fmt.Errorf("model file %s is empty or a directory", path)
	}
	return nil
}
