package onnx

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/inference"
)

func TestBackend_ClosedSession(t *testing.T) {
	b := &Backend{spec: inference.Spec{Name: "grid", InputShape: []int64{2}, OutputShape: []int64{3}}}

	err := b.Infer(make([]float32, 2), make([]float32, 3))
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)

	assert.NoError(t, b.Close())
}

func TestBackend_RejectsMalformedBuffers(t *testing.T) {
	b := &Backend{spec: inference.Spec{Name: "digits", InputShape: []int64{1, 36, 80, 3}, OutputShape: []int64{1, 1, 17, 11}}}

	err := b.Infer(make([]float32, 10), make([]float32, 17*11))
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
}

func TestRuntime_InvalidModel(t *testing.T) {
	lib := os.Getenv("CARDSCAN_ONNXRUNTIME_LIB")
	if lib == "" {
		t.Skip("CARDSCAN_ONNXRUNTIME_LIB not set")
	}

	rt := Runtime{LibraryPath: lib}
	_, err := rt.Factory()([]byte("not a model"), inference.Spec{
		Name:        "grid",
		InputShape:  []int64{1, 302, 480, 3},
		OutputShape: []int64{1, 34, 51, 3},
		Threads:     inference.DefaultThreads,
	})
	assert.Error(t, err)
}
