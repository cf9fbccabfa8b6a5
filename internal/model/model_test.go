package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/cardscan/internal/geometry"
)

func TestCharacterSlots_ArgAndValueMax(t *testing.T) {
	scores := make([]float32, MaxSlots*NumCharacterClasses)
	for slot := 0; slot < MaxSlots; slot++ {
		k := slot % NumCharacterClasses
		for class := 0; class < NumCharacterClasses; class++ {
			scores[slot*NumCharacterClasses+class] = 0.01 * float32(class)
		}
		scores[slot*NumCharacterClasses+k] = 0.9
	}

	slots, err := NewCharacterSlots(scores)
	require.NoError(t, err)
	require.Equal(t, MaxSlots, slots.Len())

	for slot := 0; slot < MaxSlots; slot++ {
		class, conf := slots.ArgAndValueMax(slot)
		assert.Equal(t, slot%NumCharacterClasses, class, "slot %d", slot)
		assert.InDelta(t, 0.9, conf, 1e-6)
	}
}

func TestCharacterSlots_TiesPickLowestClass(t *testing.T) {
	scores := make([]float32, NumCharacterClasses)
	scores[3] = 0.5
	scores[7] = 0.5

	slots, err := NewCharacterSlots(scores)
	require.NoError(t, err)

	class, conf := slots.ArgAndValueMax(0)
	assert.Equal(t, 3, class)
	assert.InDelta(t, 0.5, conf, 1e-6)
}

func TestCharacterSlots_NegativeScores(t *testing.T) {
	scores := make([]float32, NumCharacterClasses)
	for i := range scores {
		scores[i] = -5
	}
	scores[9] = -2

	slots, err := NewCharacterSlots(scores)
	require.NoError(t, err)

	class, _ := slots.ArgAndValueMax(0)
	assert.Equal(t, 9, class)
}

func TestCharacterSlots_CopiesInput(t *testing.T) {
	scores := make([]float32, NumCharacterClasses)
	scores[2] = 1
	slots, err := NewCharacterSlots(scores)
	require.NoError(t, err)

	scores[2] = 0
	scores[4] = 1
	class, _ := slots.ArgAndValueMax(0)
	assert.Equal(t, 2, class)
}

func TestNewCharacterSlots_Invalid(t *testing.T) {
	_, err := NewCharacterSlots(nil)
	assert.Error(t, err)

	_, err = NewCharacterSlots(make([]float32, NumCharacterClasses+1))
	assert.Error(t, err)

	_, err = NewCharacterSlots(make([]float32, (MaxSlots+1)*NumCharacterClasses))
	assert.Error(t, err)
}

func TestNewDetectedBox(t *testing.T) {
	layout := DefaultGridLayout()
	box := NewDetectedBox(33, 50, 0.75, layout, layout.CardSize)

	assert.Equal(t, 33, box.Row)
	assert.Equal(t, 50, box.Col)
	assert.InDelta(t, 0.75, box.Confidence, 1e-6)
	assert.InDelta(t, 400, box.Rect.X, 1e-3)
	assert.InDelta(t, 266, box.Rect.Y, 1e-3)
	assert.Equal(t, geometry.Size{Width: 80, Height: 36}, geometry.Size{Width: box.Rect.Width, Height: box.Rect.Height})
}

func TestSortByConfidence(t *testing.T) {
	boxes := []DetectedBox{
		{Row: 1, Confidence: 0.9},
		{Row: 2, Confidence: 0.5},
		{Row: 3, Confidence: 0.7},
		{Row: 4, Confidence: 0.5},
	}
	SortByConfidence(boxes)

	rows := make([]int, len(boxes))
	for i, b := range boxes {
		rows[i] = b.Row
	}
	assert.Equal(t, []int{2, 4, 3, 1}, rows)
}

func TestLines_Boxes(t *testing.T) {
	lines := Lines{
		{{Row: 1}, {Row: 2}},
		{},
		{{Row: 3}},
	}
	got := lines.Boxes()
	require.Len(t, got, 3)
	assert.Equal(t, 1, got[0].Row)
	assert.Equal(t, 3, got[2].Row)
}

func TestCard(t *testing.T) {
	tests := []struct {
		name       string
		card       Card
		wantLast4  string
		wantMasked string
	}{
		{
			name:       "sixteen digits",
			card:       Card{Number: "4242424242424242"},
			wantLast4:  "4242",
			wantMasked: "••••••••••••4242",
		},
		{
			name:       "fifteen digits",
			card:       Card{Number: "378282246310005"},
			wantLast4:  "0005",
			wantMasked: "•••••••••••0005",
		},
		{
			name:       "too short to mask",
			card:       Card{Number: "123"},
			wantLast4:  "123",
			wantMasked: "123",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantLast4, tt.card.Last4())
			assert.Equal(t, tt.wantMasked, tt.card.Masked())
		})
	}
}

func TestNewScanRecord(t *testing.T) {
	rec := NewScanRecord("card.png", "4242424242424242", true, nil)
	assert.Equal(t, "4242", rec.Last4)
	assert.Equal(t, "••••••••••••4242", rec.MaskedNumber)
	assert.False(t, rec.ScannedAt.IsZero())

	miss := NewScanRecord("blank.png", "", false, nil)
	assert.Empty(t, miss.MaskedNumber)
	assert.Empty(t, miss.Last4)
}
