package model

import (
	"sort"

	"github.com/Veraticus/cardscan/internal/geometry"
)

// GridLayout describes the coarse detection grid and the physical footprint of
// one grid cell on a canonical card image.
type GridLayout struct {
	BoxSize  geometry.Size
	CardSize geometry.Size
	Rows     int
	Cols     int
}

// DefaultGridLayout returns the layout the grid model was trained against.
func DefaultGridLayout() GridLayout {
	return GridLayout{
		Rows:     34,
		Cols:     51,
		BoxSize:  geometry.Size{Width: 80, Height: 36},
		CardSize: geometry.Size{Width: 480, Height: 302},
	}
}

// CellRect maps a grid cell to a rectangle in an image of the given size.
func (l GridLayout) CellRect(row, col int, imageSize geometry.Size) geometry.Rectangle {
	return geometry.CellRect(row, col, l.Rows, l.Cols, l.BoxSize, l.CardSize, imageSize)
}

// DetectedBox is a candidate character-group location found by the grid
// detector. Rect is derived from the cell position when the box is built and
// never changes afterwards.
type DetectedBox struct {
	Rect       geometry.Rectangle `json:"rect"`
	Row        int                `json:"row"`
	Col        int                `json:"col"`
	Confidence float32            `json:"confidence"`
}

// NewDetectedBox builds the box for grid cell (row, col) in an image of imageSize.
func NewDetectedBox(row, col int, confidence float32, layout GridLayout, imageSize geometry.Size) DetectedBox {
	return DetectedBox{
		Row:        row,
		Col:        col,
		Confidence: confidence,
		Rect:       layout.CellRect(row, col, imageSize),
	}
}

// Less orders boxes by confidence.
func (b DetectedBox) Less(other DetectedBox) bool {
	return b.Confidence < other.Confidence
}

// SortByConfidence sorts boxes by ascending confidence, keeping the relative
// order of equal boxes.
func SortByConfidence(boxes []DetectedBox) {
	sort.SliceStable(boxes, func(i, j int) bool { return boxes[i].Less(boxes[j]) })
}

// Line is one hypothesised reading order of boxes for a candidate number.
type Line []DetectedBox

// Lines is an ordered set of candidate lines.
type Lines []Line

// Boxes flattens the lines, preserving order.
func (ls Lines) Boxes() []DetectedBox {
	n := 0
	for _, l := range ls {
		n += len(l)
	}
	boxes := make([]DetectedBox, 0, n)
	for _, l := range ls {
		boxes = append(boxes, l...)
	}
	return boxes
}
