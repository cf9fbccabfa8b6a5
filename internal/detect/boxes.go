package detect

import (
	"github.com/Veraticus/cardscan/internal/geometry"
	"github.com/Veraticus/cardscan/internal/model"
)

// AssembleBoxes returns a box for every cell of grid with digits, scanning row
// by row. Boxes are placed in an image of imageSize using layout.
func AssembleBoxes(grid *ProbabilityGrid, layout model.GridLayout, imageSize geometry.Size) []model.DetectedBox {
	rows, cols := grid.Size()
	var boxes []model.DetectedBox
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if !grid.HasDigits(row, col) {
				continue
			}
			boxes = append(boxes, model.NewDetectedBox(row, col, grid.DigitConfidence(row, col), layout, imageSize))
		}
	}
	return boxes
}
