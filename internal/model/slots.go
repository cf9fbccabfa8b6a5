package model

import "fmt"

// Character classifier output dimensions.
const (
	// MaxSlots is the number of character positions predicted per crop.
	MaxSlots = 17
	// NumCharacterClasses covers the ten digits plus the background class.
	NumCharacterClasses = 11
	// BackgroundClass marks a slot without a digit.
	BackgroundClass = 10
)

// CharacterSlots holds one classifier output: for each slot, a score per
// character class. Values are copied on construction and never modified.
type CharacterSlots struct {
	scores []float32
	slots  int
}

// NewCharacterSlots copies scores, laid out slot-major with
// NumCharacterClasses entries per slot.
func NewCharacterSlots(scores []float32) (CharacterSlots, error) {
	if len(scores) == 0 || len(scores)%NumCharacterClasses != 0 {
		return CharacterSlots{}, fmt.Errorf("scores length %d is not a multiple of %d", len(scores), NumCharacterClasses)
	}
	slots := len(scores) / NumCharacterClasses
	if slots > MaxSlots {
		return CharacterSlots{}, fmt.Errorf("got %d slots, at most %d supported", slots, MaxSlots)
	}
	return CharacterSlots{
		scores: append([]float32(nil), scores...),
		slots:  slots,
	}, nil
}

// Len returns the number of slots.
func (s CharacterSlots) Len() int { return s.slots }

// Score returns the score of class for slot.
func (s CharacterSlots) Score(slot, class int) float32 {
	return s.scores[slot*NumCharacterClasses+class]
}

// ArgAndValueMax returns the class with the highest score for slot and that
// score. Ties go to the lowest class index.
func (s CharacterSlots) ArgAndValueMax(slot int) (int, float32) {
	maxIdx, maxValue := 0, s.Score(slot, 0)
	for idx := 1; idx < NumCharacterClasses; idx++ {
		if v := s.Score(slot, idx); v > maxValue {
			maxIdx, maxValue = idx, v
		}
	}
	return maxIdx, maxValue
}
