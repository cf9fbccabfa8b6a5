// Package onnx implements inference backends on top of ONNX Runtime.
package onnx

import (
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/inference"
)

// Runtime configures the shared ONNX Runtime environment.
type Runtime struct {
	// LibraryPath points at the onnxruntime shared library. Empty uses the
	// binding's platform default.
	LibraryPath string
	InputName   string
	OutputName  string
}

var (
	initOnce sync.Once
	errInit  error
)

func (r Runtime) init() error {
	initOnce.Do(func() {
		if r.LibraryPath != "" {
			ort.SetSharedLibraryPath(r.LibraryPath)
		}
		if !ort.IsInitialized() {
			errInit = ort.InitializeEnvironment()
		}
	})
	return errInit
}

// Factory returns an inference.Factory creating ONNX Runtime sessions.
func (r Runtime) Factory() inference.Factory {
	return func(model []byte, spec inference.Spec) (inference.Backend, error) {
		return r.NewBackend(model, spec)
	}
}

// Backend is one ONNX Runtime session with preallocated input and output tensors.
type Backend struct {
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
	spec    inference.Spec
	mu      sync.Mutex
}

// NewBackend creates a session for model with tensors shaped by spec.
func (r Runtime) NewBackend(model []byte, spec inference.Spec) (*Backend, error) {
	if err := r.init(); err != nil {
		return nil, fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}

	inputName, outputName := r.InputName, r.OutputName
	if inputName == "" {
		inputName = "input"
	}
	if outputName == "" {
		outputName = "output"
	}

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.InputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate %s input tensor: %w", spec.Name, err)
	}
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(spec.OutputShape...))
	if err != nil {
		_ = input.Destroy()
		return nil, fmt.Errorf("failed to allocate %s output tensor: %w", spec.Name, err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if spec.Threads > 0 {
		if err := options.SetIntraOpNumThreads(spec.Threads); err != nil {
			slog.Warn("Failed to set thread count", "model", spec.Name, "threads", spec.Threads, "error", err)
		}
	}

	session, err := ort.NewAdvancedSessionWithONNXData(model,
		[]string{inputName}, []string{outputName},
		[]ort.Value{input}, []ort.Value{output}, options)
	if err != nil {
		_ = input.Destroy()
		_ = output.Destroy()
		return nil, fmt.Errorf("failed to create %s session: %w", spec.Name, err)
	}

	return &Backend{
		session: session,
		input:   input,
		output:  output,
		spec:    spec,
	}, nil
}

// Infer copies input into the session, runs it and copies the result into output.
func (b *Backend) Infer(input, output []float32) error {
	if err := b.spec.Check(input, output); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return fmt.Errorf("%w: %s session is closed", common.ErrInferenceUnavailable, b.spec.Name)
	}

	copy(b.input.GetData(), input)
	if err := b.session.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", common.ErrInferenceUnavailable, b.spec.Name, err)
	}
	copy(output, b.output.GetData())
	return nil
}

// Close releases the session and its tensors.
func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	err := b.session.Destroy()
	_ = b.input.Destroy()
	_ = b.output.Destroy()
	b.session = nil
	return err
}
