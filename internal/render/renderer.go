// Package render reads card numbers out of candidate lines of boxes.
package render

import (
	"fmt"
	"image"
	"strings"

	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/service"
)

// Default rendering parameters.
const (
	// DefaultMinConfidence is the slot confidence below which a slot is
	// treated as background.
	DefaultMinConfidence float32 = 0.15
	// DefaultNumberLength is the number of digits a line must render to.
	DefaultNumberLength = 16
)

// Renderer implements service.NumberRenderer.
type Renderer struct {
	MinConfidence float32
	NumberLength  int
}

// NewRenderer creates a renderer for 16-digit card numbers.
func NewRenderer() *Renderer {
	return &Renderer{
		MinConfidence: DefaultMinConfidence,
		NumberLength:  DefaultNumberLength,
	}
}

// RenderNumber classifies the boxes of each line in order and returns the
// first line whose digits form a number of the expected length. Each box is
// classified at most once per call. A classifier error aborts rendering.
func (r *Renderer) RenderNumber(classifier service.DigitClassifier, img image.Image, lines model.Lines) (string, bool, error) {
	cache := make(map[[2]int]string)

	for _, line := range lines {
		var number strings.Builder
		for _, box := range line {
			key := [2]int{box.Row, box.Col}
			word, ok := cache[key]
			if !ok {
				slots, err := classifier.Classify(img, box.Rect)
				if err != nil {
					return "", false, fmt.Errorf("classify box (%d,%d): %w", box.Row, box.Col, err)
				}
				word = r.Digits(slots)
				cache[key] = word
			}
			number.WriteString(word)
		}
		if number.Len() == r.NumberLength {
			return number.String(), true, nil
		}
	}
	return "", false, nil
}

// Digits renders the digits of one classification. Slots below the minimum
// confidence become background, then of two neighbouring digit slots only the
// more confident survives.
func (r *Renderer) Digits(slots model.CharacterSlots) string {
	n := slots.Len()
	classes := make([]int, n)
	confidences := make([]float32, n)
	for i := 0; i < n; i++ {
		class, conf := slots.ArgAndValueMax(i)
		if conf < r.MinConfidence {
			class = model.BackgroundClass
		}
		classes[i], confidences[i] = class, conf
	}

	for i := 0; i+1 < n; i++ {
		if classes[i] == model.BackgroundClass || classes[i+1] == model.BackgroundClass {
			continue
		}
		if confidences[i] < confidences[i+1] {
			classes[i] = model.BackgroundClass
		} else {
			classes[i+1] = model.BackgroundClass
		}
	}

	var out strings.Builder
	for _, class := range classes {
		if class != model.BackgroundClass {
			out.WriteByte(byte('0' + class))
		}
	}
	return out.String()
}
