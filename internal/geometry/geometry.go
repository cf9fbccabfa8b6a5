// Package geometry maps detection grid cells to rectangles in image space.
package geometry

import (
	"fmt"
	"image"
	"math"
)

// Size is a width and height in pixels.
type Size struct {
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// SizeOf returns the size of an image's bounds.
func SizeOf(img image.Image) Size {
	b := img.Bounds()
	return Size{Width: float32(b.Dx()), Height: float32(b.Dy())}
}

// Rectangle is an axis-aligned rectangle in image pixel coordinates with the
// origin in the upper-left corner.
type Rectangle struct {
	X      float32 `json:"x"`
	Y      float32 `json:"y"`
	Width  float32 `json:"width"`
	Height float32 `json:"height"`
}

// MaxX returns the right edge.
func (r Rectangle) MaxX() float32 { return r.X + r.Width }

// MaxY returns the bottom edge.
func (r Rectangle) MaxY() float32 { return r.Y + r.Height }

// Pixels converts r to an integer rectangle offset by origin. The corner is
// rounded and the extent truncated, matching how crops are cut from the image.
func (r Rectangle) Pixels(origin image.Point) image.Rectangle {
	x := int(math.Round(float64(r.X)))
	y := int(math.Round(float64(r.Y)))
	return image.Rect(x, y, x+int(r.Width), y+int(r.Height)).Add(origin)
}

// CellRect maps grid cell (row, col) of a numRows×numCols grid to a rectangle
// in an image of imageSize. boxSize is the footprint of one cell on a card
// image of cardSize; it is scaled to the image, and box anchors are spaced
// evenly so the first and last row and column touch the image edges.
//
// numRows and numCols must be at least 2.
func CellRect(row, col, numRows, numCols int, boxSize, cardSize, imageSize Size) Rectangle {
	if numRows < 2 || numCols < 2 {
		panic(fmt.Sprintf("geometry: grid must be at least 2x2, got %dx%d", numRows, numCols))
	}

	w := boxSize.Width * imageSize.Width / cardSize.Width
	h := boxSize.Height * imageSize.Height / cardSize.Height
	x := (imageSize.Width - w) / float32(numCols-1) * float32(col)
	y := (imageSize.Height - h) / float32(numRows-1) * float32(row)

	return Rectangle{X: x, Y: y, Width: w, Height: h}
}
