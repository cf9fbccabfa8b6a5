package detect

import (
	"github.com/Veraticus/cardscan/internal/tensor"
)

// ProbabilityGrid is the per-cell background/digit/expiry probability volume
// produced by one detection.
type ProbabilityGrid struct {
	grid *tensor.Grid
}

// NewProbabilityGrid wraps a rows×cols×3 tensor.
func NewProbabilityGrid(grid *tensor.Grid) *ProbabilityGrid {
	return &ProbabilityGrid{grid: grid}
}

// Size returns the grid dimensions.
func (g *ProbabilityGrid) Size() (rows, cols int) {
	rows, cols, _ = g.grid.Shape()
	return rows, cols
}

// DigitConfidence returns the digit probability of a cell.
func (g *ProbabilityGrid) DigitConfidence(row, col int) float32 {
	return g.grid.At(row, col, ClassDigit)
}

// ExpiryConfidence returns the expiry probability of a cell.
func (g *ProbabilityGrid) ExpiryConfidence(row, col int) float32 {
	return g.grid.At(row, col, ClassExpiry)
}

// HasDigits reports whether a cell's digit confidence reaches Threshold.
func (g *ProbabilityGrid) HasDigits(row, col int) bool {
	return g.DigitConfidence(row, col) >= Threshold
}

// HasExpiry reports whether a cell's expiry confidence reaches Threshold.
func (g *ProbabilityGrid) HasExpiry(row, col int) bool {
	return g.ExpiryConfidence(row, col) >= Threshold
}

// Cell is a grid position.
type Cell struct {
	Row int
	Col int
}

// ExpiryCells returns the cells holding an expiry date, row by row.
func (g *ProbabilityGrid) ExpiryCells() []Cell {
	rows, cols := g.Size()
	var cells []Cell
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			if g.HasExpiry(row, col) {
				cells = append(cells, Cell{Row: row, Col: col})
			}
		}
	}
	return cells
}
