package recognize

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/common"
	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/testutil"
)

func TestClassifier_ArgAndValueMax(t *testing.T) {
	backend := &testutil.StubBackend{Fn: testutil.DigitOutput(map[int]int{0: 7, 3: 0, 16: 9})}
	c := New(backend, 1)

	_, _, ok := c.ArgAndValueMax(0)
	assert.False(t, ok, "no classification yet")

	slots, err := c.Classify(testutil.CardImage(480, 302), geometry.Rectangle{X: 10, Y: 10, Width: 80, Height: 36})
	require.NoError(t, err)
	require.Equal(t, model.MaxSlots, slots.Len())

	tests := []struct {
		slot int
		want int
	}{
		{slot: 0, want: 7},
		{slot: 1, want: model.BackgroundClass},
		{slot: 3, want: 0},
		{slot: 16, want: 9},
	}
	for _, tt := range tests {
		class, conf, ok := c.ArgAndValueMax(tt.slot)
		require.True(t, ok)
		assert.Equal(t, tt.want, class, "slot %d", tt.slot)
		assert.InDelta(t, 0.9, conf, 1e-6)

		fromSlots, _ := slots.ArgAndValueMax(tt.slot)
		assert.Equal(t, tt.want, fromSlots)
	}

	_, _, ok = c.ArgAndValueMax(model.MaxSlots)
	assert.False(t, ok)
}

func TestClassifier_CropsBox(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 20; y < 56; y++ {
		for x := 40; x < 120; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	var input []float32
	backend := &testutil.StubBackend{Fn: func(in, out []float32) error {
		input = append([]float32(nil), in...)
		return testutil.DigitOutput(nil)(in, out)
	}}

	c := New(backend, 1)
	_, err := c.Classify(img, geometry.Rectangle{X: 40, Y: 20, Width: 80, Height: 36})
	require.NoError(t, err)

	require.Len(t, input, InputWidth*InputHeight*3)
	for _, v := range input {
		require.InDelta(t, 1.0, v, 1e-6)
	}
}

func TestClassifier_ClipsToImage(t *testing.T) {
	backend := &testutil.StubBackend{Fn: testutil.DigitOutput(nil)}
	c := New(backend, 1)

	_, err := c.Classify(testutil.CardImage(100, 50), geometry.Rectangle{X: 60, Y: 30, Width: 80, Height: 36})
	require.NoError(t, err)

	_, err = c.Classify(testutil.CardImage(100, 50), geometry.Rectangle{X: 200, Y: 200, Width: 80, Height: 36})
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
}

func TestClassifier_BackendFailure(t *testing.T) {
	backend := &testutil.StubBackend{Fn: func(_, _ []float32) error { return testutil.ErrInjected }}
	c := New(backend, 1)

	_, err := c.Classify(testutil.CardImage(480, 302), geometry.Rectangle{Width: 80, Height: 36})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, _, ok := c.ArgAndValueMax(0)
	assert.False(t, ok, "a failed call leaves nothing to query")

	_, err = New(nil, 1).Classify(testutil.CardImage(480, 302), geometry.Rectangle{Width: 80, Height: 36})
	assert.ErrorIs(t, err, common.ErrInferenceUnavailable)
}

func TestClassifier_SlotsSurviveNextCall(t *testing.T) {
	calls := 0
	backend := &testutil.StubBackend{Fn: func(in, out []float32) error {
		calls++
		if calls == 1 {
			return testutil.WordOutput("1234")(in, out)
		}
		return testutil.WordOutput("9876")(in, out)
	}}
	c := New(backend, 1)
	box := geometry.Rectangle{Width: 80, Height: 36}

	first, err := c.Classify(testutil.CardImage(480, 302), box)
	require.NoError(t, err)
	_, err = c.Classify(testutil.CardImage(480, 302), box)
	require.NoError(t, err)

	class, _ := first.ArgAndValueMax(1)
	assert.Equal(t, 1, class)

	class, _, ok := c.ArgAndValueMax(1)
	require.True(t, ok)
	assert.Equal(t, 9, class)
}
