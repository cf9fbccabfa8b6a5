package tensor

import (
	"image"

	"golang.org/x/image/draw"
)

// PixelScale converts 8-bit channel values to [0, 1].
const PixelScale = 1.0 / 255.0

// ImageBuffer is a reusable staging area that converts images into
// height×width×3 float32 input tensors.
type ImageBuffer struct {
	scratch *image.NRGBA
	data    []float32
	width   int
	height  int
}

// NewImageBuffer allocates a staging buffer for width×height inputs.
func NewImageBuffer(width, height int) *ImageBuffer {
	return &ImageBuffer{
		scratch: image.NewNRGBA(image.Rect(0, 0, width, height)),
		data:    make([]float32, width*height*3),
		width:   width,
		height:  height,
	}
}

// Len returns the number of values in the tensor.
func (b *ImageBuffer) Len() int { return len(b.data) }

// Load scales src (restricted to r) to the buffer size with nearest-neighbour
// sampling and writes every pixel's R, G and B channel divided by 255, row by
// row. The whole buffer is rewritten on each call. The returned slice is owned
// by the buffer and valid until the next Load.
func (b *ImageBuffer) Load(src image.Image, r image.Rectangle) []float32 {
	if n, ok := src.(*image.NRGBA); ok {
		b.sampleNRGBA(n, r)
	} else {
		// Other formats are staged through NRGBA, which unpremultiplies them.
		draw.NearestNeighbor.Scale(b.scratch, b.scratch.Bounds(), src, r, draw.Src, nil)
	}

	pix := b.scratch.Pix
	i := 0
	for y := 0; y < b.height; y++ {
		row := pix[y*b.scratch.Stride : y*b.scratch.Stride+b.width*4]
		for x := 0; x < b.width; x++ {
			p := row[x*4 : x*4+3]
			b.data[i] = float32(p[0]) * PixelScale
			b.data[i+1] = float32(p[1]) * PixelScale
			b.data[i+2] = float32(p[2]) * PixelScale
			i += 3
		}
	}
	return b.data
}

// sampleNRGBA copies the nearest source pixel for every staging pixel without
// touching its channels, so translucent pixels keep their straight RGB values.
// It samples pixel centres the same way draw.NearestNeighbor does. Samples
// outside src are zero.
func (b *ImageBuffer) sampleNRGBA(src *image.NRGBA, r image.Rectangle) {
	sw, sh := r.Dx(), r.Dy()
	for y := 0; y < b.height; y++ {
		sy := r.Min.Y + (2*y+1)*sh/(2*b.height)
		row := b.scratch.Pix[y*b.scratch.Stride:]
		for x := 0; x < b.width; x++ {
			sx := r.Min.X + (2*x+1)*sw/(2*b.width)
			dst := row[x*4 : x*4+4]
			if !image.Pt(sx, sy).In(src.Rect) {
				clear(dst)
				continue
			}
			copy(dst, src.Pix[src.PixOffset(sx, sy):])
		}
	}
}
