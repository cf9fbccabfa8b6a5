// Package recognize runs the per-box character classifier.
package recognize

import (
	"fmt"
	"image"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/inference"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/tensor"
)

// Digit model input dimensions.
const (
	InputWidth  = 80
	InputHeight = 36
)

// Spec returns the backend spec of the digit model.
func Spec(threads int) inference.Spec {
	return inference.Spec{
		Name:        "digits",
		InputShape:  []int64{1, InputHeight, InputWidth, 3},
		OutputShape: []int64{1, 1, model.MaxSlots, model.NumCharacterClasses},
		Threads:     threads,
	}
}

// Classifier runs the digit model over box crops. It is not safe for
// concurrent use.
type Classifier struct {
	backend inference.Backend
	pixels  *tensor.ImageBuffer
	output  []float32
	last    model.CharacterSlots
	spec    inference.Spec
	hasLast bool
}

// New wraps a digit model backend.
func New(backend inference.Backend, threads int) *Classifier {
	spec := Spec(threads)
	return &Classifier{
		backend: backend,
		pixels:  tensor.NewImageBuffer(InputWidth, InputHeight),
		output:  make([]float32, spec.OutputLen()),
		spec:    spec,
	}
}

// Classify crops rect out of img, runs the model on it and returns the
// predicted character slots.
func (c *Classifier) Classify(img image.Image, rect geometry.Rectangle) (model.CharacterSlots, error) {
	if c.backend == nil {
		return model.CharacterSlots{}, fmt.Errorf("%w: digit backend not initialized", common.ErrInferenceUnavailable)
	}

	crop := rect.Pixels(img.Bounds().Min).Intersect(img.Bounds())
	if crop.Empty() {
		return model.CharacterSlots{}, fmt.Errorf("%w: box %+v outside image %v", common.ErrInferenceUnavailable, rect, img.Bounds())
	}

	input := c.pixels.Load(img, crop)
	if err := c.spec.Check(input, c.output); err != nil {
		return model.CharacterSlots{}, err
	}
	if err := c.backend.Infer(input, c.output); err != nil {
		return model.CharacterSlots{}, fmt.Errorf("%w: digit model: %w", common.ErrInferenceUnavailable, err)
	}

	slots, err := model.NewCharacterSlots(c.output)
	if err != nil {
		return model.CharacterSlots{}, fmt.Errorf("%w: %w", common.ErrInferenceUnavailable, err)
	}
	c.last, c.hasLast = slots, true
	return slots, nil
}

// ArgAndValueMax returns the best class and its score for slot of the most
// recent classification. ok is false when nothing was classified yet.
func (c *Classifier) ArgAndValueMax(slot int) (class int, confidence float32, ok bool) {
	if !c.hasLast || slot < 0 || slot >= c.last.Len() {
		return 0, 0, false
	}
	class, confidence = c.last.ArgAndValueMax(slot)
	return class, confidence, true
}

// Close releases the backend.
func (c *Classifier) Close() error {
	if c.backend == nil {
		return nil
	}
	return c.backend.Close()
}
