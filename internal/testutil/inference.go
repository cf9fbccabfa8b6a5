// Package testutil provides deterministic stand-ins for the neural engines and
// the storage layer used across package tests.
package testutil

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"sync"

	"github.com/Veraticus/cardscan/internal/inference"
	"github.com/Veraticus/cardscan/internal/model"
)

// ErrInjected is returned by stubs configured to fail.
var ErrInjected = errors.New("injected fault")

// InferFunc fills output for a given input.
type InferFunc func(input, output []float32) error

// StubBackend is an inference.Backend driven by a function.
type StubBackend struct {
	Fn     InferFunc
	Calls  int
	Closed bool
}

// Infer records the call and delegates to Fn.
func (s *StubBackend) Infer(input, output []float32) error {
	s.Calls++
	if s.Closed {
		return errors.New("stub backend used after close")
	}
	if s.Fn == nil {
		return nil
	}
	return s.Fn(input, output)
}

// Close marks the backend closed.
func (s *StubBackend) Close() error {
	s.Closed = true
	return nil
}

// Cell addresses one grid cell.
type Cell struct {
	Row int
	Col int
}

// GridOutput writes a probability grid where the listed cells carry the given
// digit confidence and every other cell is background.
func GridOutput(digits map[Cell]float32) InferFunc {
	layout := model.DefaultGridLayout()
	return func(_, output []float32) error {
		for i := 0; i < len(output); i += 3 {
			output[i], output[i+1], output[i+2] = 1, 0, 0
		}
		for cell, conf := range digits {
			i := (cell.Row*layout.Cols + cell.Col) * 3
			output[i], output[i+1], output[i+2] = 1-conf, conf, 0
		}
		return nil
	}
}

// DigitOutput writes classifier scores placing digit d at slot s for every
// entry of digits and the background class everywhere else.
func DigitOutput(digits map[int]int) InferFunc {
	return func(_, output []float32) error {
		for i := range output {
			output[i] = 0.01
		}
		slots := len(output) / model.NumCharacterClasses
		for slot := 0; slot < slots; slot++ {
			class := model.BackgroundClass
			if d, ok := digits[slot]; ok {
				class = d
			}
			output[slot*model.NumCharacterClasses+class] = 0.9
		}
		return nil
	}
}

// WordOutput renders a group of up to four digits spaced so they survive
// adjacent-slot suppression.
func WordOutput(word string) InferFunc {
	digits := make(map[int]int, len(word))
	for i, r := range word {
		digits[1+4*i] = int(r - '0')
	}
	return DigitOutput(digits)
}

// StubFactory builds StubBackends for the grid and digit specs. Failure
// counters are shared by every backend it builds, so a fault survives engine
// reconstruction exactly as long as configured.
type StubFactory struct {
	Grid        InferFunc
	Digits      InferFunc
	Backends    []*StubBackend
	FailBuilds  int
	FailInfers  int
	PanicInfers int
	Builds      int
	Infers      int
	mu          sync.Mutex
}

// Factory returns the inference.Factory view of f.
func (f *StubFactory) Factory() inference.Factory {
	return func(_ []byte, spec inference.Spec) (inference.Backend, error) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.Builds++
		if f.FailBuilds > 0 {
			f.FailBuilds--
			return nil, fmt.Errorf("build %s: %w", spec.Name, ErrInjected)
		}

		fn := f.Grid
		if spec.Name != "grid" {
			fn = f.Digits
		}
		b := &StubBackend{Fn: f.wrap(spec, fn)}
		f.Backends = append(f.Backends, b)
		return b, nil
	}
}

// SetFaults resets the fault counters.
func (f *StubFactory) SetFaults(failInfers, panicInfers int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FailInfers = failInfers
	f.PanicInfers = panicInfers
}

func (f *StubFactory) wrap(spec inference.Spec, fn InferFunc) InferFunc {
	return func(input, output []float32) error {
		if err := spec.Check(input, output); err != nil {
			return err
		}

		f.mu.Lock()
		f.Infers++
		fail := f.FailInfers > 0
		if fail {
			f.FailInfers--
		}
		panicking := !fail && f.PanicInfers > 0
		if panicking {
			f.PanicInfers--
		}
		f.mu.Unlock()

		if fail {
			return fmt.Errorf("infer %s: %w", spec.Name, ErrInjected)
		}
		if panicking {
			panic(fmt.Sprintf("stub %s: runtime fault", spec.Name))
		}
		if fn == nil {
			return nil
		}
		return fn(input, output)
	}
}

// StaticLoader serves fixed model blobs.
type StaticLoader struct {
	Err error
}

// LoadGridModel returns a placeholder grid model.
func (l StaticLoader) LoadGridModel() ([]byte, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return []byte("grid"), nil
}

// LoadDigitModel returns a placeholder digit model.
func (l StaticLoader) LoadDigitModel() ([]byte, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	return []byte("digits"), nil
}

// CardImage returns a mid-grey image of the given size.
func CardImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	return img
}
