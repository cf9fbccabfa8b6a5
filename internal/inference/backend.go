package inference

import (
	"fmt"

	"github.com/Veraticus/cardscan/internal/common"
)

// DefaultThreads is the worker-thread hint passed to backends.
const DefaultThreads = 4

// Backend runs one model. Infer reads len(input) values and overwrites all of
// output; both lengths must match the Spec the backend was built with.
// Backends are not safe for concurrent use.
type Backend interface {
	Infer(input, output []float32) error
	Close() error
}

// Spec describes a model's fixed input and output shapes.
type Spec struct {
	Name        string
	InputShape  []int64
	OutputShape []int64
	Threads     int
}

// InputLen returns the number of values in one input tensor.
func (s Spec) InputLen() int { return volume(s.InputShape) }

// OutputLen returns the number of values in one output tensor.
func (s Spec) OutputLen() int { return volume(s.OutputShape) }

// Check verifies that input and output buffers fit the spec.
func (s Spec) Check(input, output []float32) error {
	if len(input) != s.InputLen() {
		return fmt.Errorf("%w: %s input has %d values, want %d", common.ErrInferenceUnavailable, s.Name, len(input), s.InputLen())
	}
	if len(output) != s.OutputLen() {
		return fmt.Errorf("%w: %s output has %d values, want %d", common.ErrInferenceUnavailable, s.Name, len(output), s.OutputLen())
	}
	return nil
}

func volume(shape []int64) int {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return int(n)
}

// Factory builds a backend from a model blob.
type Factory func(model []byte, spec Spec) (Backend, error)
