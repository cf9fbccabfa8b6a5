package render

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/model"
	"github.com/Veraticus/cardscan/internal/testutil"
)

type slot struct {
	class int
	conf  float32
}

// slotsOf builds classifier output with the given slots; missing slots are
// confident background.
func slotsOf(t *testing.T, set map[int]slot) model.CharacterSlots {
	t.Helper()
	scores := make([]float32, model.MaxSlots*model.NumCharacterClasses)
	for i := 0; i < model.MaxSlots; i++ {
		s, ok := set[i]
		if !ok {
			s = slot{class: model.BackgroundClass, conf: 0.9}
		}
		scores[i*model.NumCharacterClasses+s.class] = s.conf
	}
	slots, err := model.NewCharacterSlots(scores)
	require.NoError(t, err)
	return slots
}

func wordSlots(t *testing.T, word string) model.CharacterSlots {
	t.Helper()
	scores := make([]float32, model.MaxSlots*model.NumCharacterClasses)
	require.NoError(t, testutil.WordOutput(word)(nil, scores))
	slots, err := model.NewCharacterSlots(scores)
	require.NoError(t, err)
	return slots
}

func TestRenderer_Digits(t *testing.T) {
	tests := []struct {
		name string
		set  map[int]slot
		want string
	}{
		{
			name: "spaced digits",
			set:  map[int]slot{1: {4, 0.9}, 5: {2, 0.9}, 9: {4, 0.8}, 13: {2, 0.7}},
			want: "4242",
		},
		{
			name: "low confidence dropped",
			set:  map[int]slot{1: {4, 0.9}, 5: {2, 0.1}},
			want: "4",
		},
		{
			name: "threshold is inclusive",
			set:  map[int]slot{1: {7, DefaultMinConfidence}},
			want: "7",
		},
		{
			name: "weaker neighbour suppressed",
			set:  map[int]slot{3: {1, 0.4}, 4: {8, 0.9}},
			want: "8",
		},
		{
			name: "greedy chain",
			set:  map[int]slot{0: {1, 0.5}, 1: {2, 0.9}, 2: {3, 0.4}},
			want: "2",
		},
		{
			name: "tie keeps the first",
			set:  map[int]slot{6: {5, 0.6}, 7: {6, 0.6}},
			want: "5",
		},
		{
			name: "all background",
			want: "",
		},
	}

	r := NewRenderer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Digits(slotsOf(t, tt.set)))
		})
	}
}

// fakeClassifier answers per box, keyed by rectangle origin.
type fakeClassifier struct {
	words map[geometry.Rectangle]model.CharacterSlots
	err   error
	calls map[geometry.Rectangle]int
}

func (f *fakeClassifier) Classify(_ image.Image, rect geometry.Rectangle) (model.CharacterSlots, error) {
	if f.calls == nil {
		f.calls = make(map[geometry.Rectangle]int)
	}
	f.calls[rect]++
	if f.err != nil {
		return model.CharacterSlots{}, f.err
	}
	return f.words[rect], nil
}

func lineOf(row int, cols ...int) model.Line {
	layout := model.DefaultGridLayout()
	size := geometry.Size{Width: 480, Height: 302}
	line := make(model.Line, len(cols))
	for i, col := range cols {
		line[i] = model.NewDetectedBox(row, col, 0.9, layout, size)
	}
	return line
}

func TestRenderer_RenderNumber(t *testing.T) {
	short := lineOf(5, 0, 12, 24, 36)
	full := lineOf(20, 0, 12, 24, 36)

	classifier := &fakeClassifier{words: map[geometry.Rectangle]model.CharacterSlots{}}
	for _, b := range short {
		classifier.words[b.Rect] = wordSlots(t, "123")
	}
	for i, b := range full {
		classifier.words[b.Rect] = wordSlots(t, []string{"4000", "1234", "5678", "9010"}[i])
	}

	img := testutil.CardImage(480, 302)
	number, found, err := NewRenderer().RenderNumber(classifier, img, model.Lines{short, full, short})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "4000123456789010", number)

	for _, b := range short {
		assert.Equal(t, 1, classifier.calls[b.Rect], "box classified once per call")
	}
}

func TestRenderer_SharedBoxesClassifiedOnce(t *testing.T) {
	a := lineOf(5, 0, 12, 24, 36)
	b := lineOf(5, 0, 12, 24, 37)

	classifier := &fakeClassifier{words: map[geometry.Rectangle]model.CharacterSlots{}}
	for _, box := range append(append(model.Line{}, a...), b...) {
		classifier.words[box.Rect] = wordSlots(t, "12")
	}

	_, found, err := NewRenderer().RenderNumber(classifier, testutil.CardImage(480, 302), model.Lines{a, b})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, 1, classifier.calls[a[0].Rect])
	assert.Len(t, classifier.calls, 5)
}

func TestRenderer_NoLines(t *testing.T) {
	number, found, err := NewRenderer().RenderNumber(&fakeClassifier{}, testutil.CardImage(10, 10), nil)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, number)
}

func TestRenderer_ClassifierError(t *testing.T) {
	boom := errors.New("boom")
	_, found, err := NewRenderer().RenderNumber(&fakeClassifier{err: boom}, testutil.CardImage(480, 302), model.Lines{lineOf(5, 0, 12, 24, 36)})
	require.ErrorIs(t, err, boom)
	assert.False(t, found)
}
