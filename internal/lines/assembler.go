// Package lines groups detected boxes into candidate card-number lines.
package lines

import (
	"sort"

	"github.com/Veraticus/cardscan/internal/model"
)

// Default tuning of the assembler.
const (
	DefaultMaxBoxes       = 20
	DefaultCombineDelta   = 2
	DefaultAlignmentDelta = 1
	DefaultWordsPerNumber = 4
	DefaultMaxStepSpread  = 2
)

// Options tunes line assembly.
type Options struct {
	// MaxBoxes is how many of the most confident boxes are considered.
	MaxBoxes int
	// CombineDelta is the row and column radius within which a more
	// confident box suppresses its neighbours.
	CombineDelta int
	// AlignmentDelta is how far consecutive boxes of a line may drift on the
	// cross axis.
	AlignmentDelta int
	// WordsPerNumber is the number of boxes forming one line.
	WordsPerNumber int
	// MaxStepSpread bounds the difference between the largest and smallest
	// step along a line.
	MaxStepSpread int
}

// DefaultOptions returns the tuning used for 16-digit card numbers.
func DefaultOptions() Options {
	return Options{
		MaxBoxes:       DefaultMaxBoxes,
		CombineDelta:   DefaultCombineDelta,
		AlignmentDelta: DefaultAlignmentDelta,
		WordsPerNumber: DefaultWordsPerNumber,
		MaxStepSpread:  DefaultMaxStepSpread,
	}
}

// Assembler implements service.LineAssembler.
type Assembler struct {
	layout model.GridLayout
	opts   Options
}

// NewAssembler creates an assembler for boxes produced on layout.
func NewAssembler(layout model.GridLayout, opts Options) *Assembler {
	return &Assembler{layout: layout, opts: opts}
}

// NewDefaultAssembler creates an assembler for the default grid layout.
func NewDefaultAssembler() *Assembler {
	return NewAssembler(model.DefaultGridLayout(), DefaultOptions())
}

type axis int

const (
	horizontal axis = iota
	vertical
)

// along returns the coordinate of b along the reading direction.
func (a axis) along(b model.DetectedBox) int {
	if a == horizontal {
		return b.Col
	}
	return b.Row
}

// across returns the coordinate of b on the cross axis.
func (a axis) across(b model.DetectedBox) int {
	if a == horizontal {
		return b.Row
	}
	return b.Col
}

// HorizontalLines returns left-to-right lines of boxes.
func (a *Assembler) HorizontalLines(boxes []model.DetectedBox) model.Lines {
	return a.lines(boxes, horizontal)
}

// VerticalLines returns top-to-bottom lines of boxes.
func (a *Assembler) VerticalLines(boxes []model.DetectedBox) model.Lines {
	return a.lines(boxes, vertical)
}

func (a *Assembler) lines(boxes []model.DetectedBox, dir axis) model.Lines {
	if a.opts.WordsPerNumber < 2 {
		return nil
	}

	words := a.combine(a.mostConfident(boxes))
	sort.SliceStable(words, func(i, j int) bool { return dir.along(words[i]) < dir.along(words[j]) })

	var found model.Lines
	for i := range words {
		a.search(model.Line{words[i]}, words[i+1:], dir, &found)
	}

	out := found[:0]
	for _, line := range found {
		if a.evenlySpaced(line, dir) {
			out = append(out, line)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// mostConfident returns up to MaxBoxes boxes in descending confidence order.
// Boxes outside the grid are ignored.
func (a *Assembler) mostConfident(boxes []model.DetectedBox) []model.DetectedBox {
	sorted := make([]model.DetectedBox, 0, len(boxes))
	for _, b := range boxes {
		if b.Row >= 0 && b.Row < a.layout.Rows && b.Col >= 0 && b.Col < a.layout.Cols {
			sorted = append(sorted, b)
		}
	}
	model.SortByConfidence(sorted)
	for i, j := 0, len(sorted)-1; i < j; i, j = i+1, j-1 {
		sorted[i], sorted[j] = sorted[j], sorted[i]
	}
	if a.opts.MaxBoxes > 0 && len(sorted) > a.opts.MaxBoxes {
		sorted = sorted[:a.opts.MaxBoxes]
	}
	return sorted
}

// combine drops boxes lying within CombineDelta of a more confident box.
// sorted must be in descending confidence order.
func (a *Assembler) combine(sorted []model.DetectedBox) []model.DetectedBox {
	occupied := make(map[[2]int]bool, len(sorted))
	for _, b := range sorted {
		occupied[[2]int{b.Row, b.Col}] = true
	}

	d := a.opts.CombineDelta
	for _, b := range sorted {
		if !occupied[[2]int{b.Row, b.Col}] {
			continue
		}
		for row := b.Row - d; row <= b.Row+d; row++ {
			for col := b.Col - d; col <= b.Col+d; col++ {
				delete(occupied, [2]int{row, col})
			}
		}
		occupied[[2]int{b.Row, b.Col}] = true
	}

	kept := make([]model.DetectedBox, 0, len(occupied))
	for _, b := range sorted {
		if occupied[[2]int{b.Row, b.Col}] {
			kept = append(kept, b)
		}
	}
	return kept
}

// follows reports whether next can extend a line ending at current. Each axis
// only accepts steps along itself: a horizontal line never takes a vertical
// step, since that would mix the two reading directions in one number.
func (a *Assembler) follows(current, next model.DetectedBox, dir axis) bool {
	if dir.along(next) <= dir.along(current) {
		return false
	}
	drift := dir.across(next) - dir.across(current)
	return drift >= -a.opts.AlignmentDelta && drift <= a.opts.AlignmentDelta
}

// search extends line with every admissible ordering of the remaining words.
// The candidate set is small, so exhaustive search is fine.
func (a *Assembler) search(line model.Line, words []model.DetectedBox, dir axis, found *model.Lines) {
	if len(line) == a.opts.WordsPerNumber {
		*found = append(*found, line)
		return
	}
	current := line[len(line)-1]
	for i, w := range words {
		if !a.follows(current, w, dir) {
			continue
		}
		next := make(model.Line, len(line), len(line)+1)
		copy(next, line)
		a.search(append(next, w), words[i+1:], dir, found)
	}
}

func (a *Assembler) evenlySpaced(line model.Line, dir axis) bool {
	minStep, maxStep := 0, 0
	for i := 0; i+1 < len(line); i++ {
		step := dir.along(line[i+1]) - dir.along(line[i])
		if i == 0 || step < minStep {
			minStep = step
		}
		if i == 0 || step > maxStep {
			maxStep = step
		}
	}
	return maxStep-minStep <= a.opts.MaxStepSpread
}
