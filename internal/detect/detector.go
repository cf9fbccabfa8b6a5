// Package detect runs the coarse grid model that locates digit and expiry
// regions on a card image and turns confident cells into boxes.
package detect

import (
	"fmt"
	"image"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/inference"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/tensor"
)

// Grid model dimensions.
const (
	InputWidth  = 480
	InputHeight = 302
	NumClasses  = 3
)

// Channel indices of the probability grid.
const (
	ClassBackground = 0
	ClassDigit      = 1
	ClassExpiry     = 2
)

// Threshold is the confidence at which a cell counts as containing digits or
// an expiry date.
const Threshold = 0.5

// Spec returns the backend spec of the grid model.
func Spec(threads int) inference.Spec {
	layout := model.DefaultGridLayout()
	return inference.Spec{
		Name:        "grid",
		InputShape:  []int64{1, InputHeight, InputWidth, 3},
		OutputShape: []int64{1, int64(layout.Rows), int64(layout.Cols), NumClasses},
		Threads:     threads,
	}
}

// Detector runs the grid model. It is not safe for concurrent use.
type Detector struct {
	backend inference.Backend
	pixels  *tensor.ImageBuffer
	spec    inference.Spec
	layout  model.GridLayout
}

// New wraps a grid model backend.
func New(backend inference.Backend, threads int) *Detector {
	return &Detector{
		backend: backend,
		pixels:  tensor.NewImageBuffer(InputWidth, InputHeight),
		spec:    Spec(threads),
		layout:  model.DefaultGridLayout(),
	}
}

// Layout returns the grid layout the detector produces.
func (d *Detector) Layout() model.GridLayout { return d.layout }

// Detect runs the model over img and returns a freshly computed grid.
func (d *Detector) Detect(img image.Image) (*ProbabilityGrid, error) {
	if d.backend == nil {
		return nil, fmt.Errorf("%w: grid backend not initialized", common.ErrInferenceUnavailable)
	}
	if img == nil || img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: empty image", common.ErrInferenceUnavailable)
	}

	input := d.pixels.Load(img, img.Bounds())
	grid := tensor.NewGrid(d.layout.Rows, d.layout.Cols, NumClasses)

	if err := d.spec.Check(input, grid.Data()); err != nil {
		return nil, err
	}
	if err := d.backend.Infer(input, grid.Data()); err != nil {
		return nil, fmt.Errorf("%w: grid model: %w", common.ErrInferenceUnavailable, err)
	}

	return &ProbabilityGrid{grid: grid}, nil
}

// Close releases the backend.
func (d *Detector) Close() error {
	if d.backend == nil {
		return nil
	}
	return d.backend.Close()
}
