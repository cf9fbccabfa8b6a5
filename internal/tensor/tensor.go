// Package tensor provides the fixed-shape float buffers exchanged with
// inference backends.
package tensor

// Grid is a dense rows×cols×channels float32 volume stored contiguously in
// [row][col][channel] order.
type Grid struct {
	data     []float32
	rows     int
	cols     int
	channels int
}

// NewGrid allocates a zeroed grid.
func NewGrid(rows, cols, channels int) *Grid {
	return &Grid{
		data:     make([]float32, rows*cols*channels),
		rows:     rows,
		cols:     cols,
		channels: channels,
	}
}

// Shape returns the grid dimensions.
func (g *Grid) Shape() (rows, cols, channels int) {
	return g.rows, g.cols, g.channels
}

// Len returns the number of values.
func (g *Grid) Len() int { return len(g.data) }

// Data exposes the backing slice. Writing to it writes to the grid.
func (g *Grid) Data() []float32 { return g.data }

func (g *Grid) offset(row, col, channel int) int {
	return (row*g.cols+col)*g.channels + channel
}

// At returns the value at [row][col][channel].
func (g *Grid) At(row, col, channel int) float32 {
	return g.data[g.offset(row, col, channel)]
}

// Set stores v at [row][col][channel].
func (g *Grid) Set(row, col, channel int, v float32) {
	g.data[g.offset(row, col, channel)] = v
}
