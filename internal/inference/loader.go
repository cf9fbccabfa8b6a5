package inference

import (
	"fmt"
	"os"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/config"
)

// FileLoader reads model blobs from the filesystem.
type FileLoader struct {
	GridPath  string
	DigitPath string
}

// LoadGridModel returns the grid detection model.
func (l FileLoader) LoadGridModel() ([]byte, error) {
	return readModel("grid", l.GridPath)
}

// LoadDigitModel returns the digit recognition model.
func (l FileLoader) LoadDigitModel() ([]byte, error) {
	return readModel("digit", l.DigitPath)
}

func readModel(kind, path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: %s model path", common.ErrMissingConfig, kind)
	}
	data, err := os.ReadFile(config.ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s model: %w", kind, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s model %s is empty", kind, path)
	}
	return data, nil
}
