// Package frame turns raw camera frames into upright card crops.
package frame

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"github.com/Veraticus/cardscan/internal/common"
)

// CardAspect is the height to width ratio of a payment card.
const CardAspect = 302.0 / 480.0

// DefaultROICenter places the region of interest in the middle of the frame.
const DefaultROICenter = 0.5

// Orientation is the clockwise sensor rotation in degrees.
type Orientation int

// Supported orientations.
const (
	Rotate0   Orientation = 0
	Rotate90  Orientation = 90
	Rotate180 Orientation = 180
	Rotate270 Orientation = 270
)

// ParseOrientation normalises degrees into an Orientation. Only multiples of
// 90 are accepted.
func ParseOrientation(degrees int) (Orientation, error) {
	d := ((degrees % 360) + 360) % 360
	if d%90 != 0 {
		return 0, fmt.Errorf("%w: orientation %d is not a multiple of 90", common.ErrInvalidConfig, degrees)
	}
	return Orientation(d), nil
}

// swapsAxes reports whether rotating by o exchanges width and height.
func (o Orientation) swapsAxes() bool {
	return o == Rotate90 || o == Rotate270
}

// CropRect returns the card-shaped region of a frame with the given bounds.
// The card spans the full frame width (or height, when the sensor is rotated
// by 90 or 270 degrees) and is centred on roiCenter along the other axis. The
// region is clamped to the frame.
func CropRect(bounds image.Rectangle, o Orientation, roiCenter float64) image.Rectangle {
	fw, fh := float64(bounds.Dx()), float64(bounds.Dy())

	var w, h, x, y float64
	switch o {
	case Rotate90:
		h = fh
		w = h * CardAspect
		x = math.Round(fw*roiCenter - w/2)
	case Rotate180:
		w = fw
		h = w * CardAspect
		y = math.Round(fh*(1-roiCenter) - h/2)
	case Rotate270:
		h = fh
		w = h * CardAspect
		x = math.Round(fw*(1-roiCenter) - w/2)
	default:
		w = fw
		h = w * CardAspect
		y = math.Round(fh*roiCenter - h/2)
	}

	cw := min(int(w), bounds.Dx())
	ch := min(int(h), bounds.Dy())
	cx := max(0, min(int(x), bounds.Dx()-cw))
	cy := max(0, min(int(y), bounds.Dy()-ch))

	return image.Rect(cx, cy, cx+cw, cy+ch).Add(bounds.Min)
}

// Rotate returns img rotated clockwise by o, with its origin at (0, 0). An
// upright *image.RGBA already at the origin is returned as is.
func Rotate(img image.Image, o Orientation) *image.RGBA {
	src := toRGBA(img)
	if o == Rotate0 {
		return src
	}

	w, h := float64(src.Bounds().Dx()), float64(src.Bounds().Dy())
	dstW, dstH := src.Bounds().Dx(), src.Bounds().Dy()
	if o.swapsAxes() {
		dstW, dstH = dstH, dstW
	}

	var m f64.Aff3
	switch o {
	case Rotate90:
		m = f64.Aff3{0, -1, h, 1, 0, 0}
	case Rotate180:
		m = f64.Aff3{-1, 0, w, 0, -1, h}
	default:
		m = f64.Aff3{0, 1, 0, -1, 0, w}
	}

	dst := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	draw.NearestNeighbor.Transform(dst, m, src, src.Bounds(), draw.Src, nil)
	return dst
}

// Prepare crops the card region out of a raw frame and rotates it upright.
func Prepare(img image.Image, o Orientation, roiCenter float64) (*image.RGBA, error) {
	if img == nil || img.Bounds().Empty() {
		return nil, common.ErrEmptyImage
	}
	if roiCenter < 0 || roiCenter > 1 || math.IsNaN(roiCenter) {
		return nil, fmt.Errorf("%w: roi center %v outside [0, 1]", common.ErrInvalidConfig, roiCenter)
	}

	crop := CropRect(img.Bounds(), o, roiCenter)
	if crop.Empty() {
		return nil, fmt.Errorf("%w: frame %v too small to crop", common.ErrEmptyImage, img.Bounds())
	}

	sub := image.NewRGBA(image.Rect(0, 0, crop.Dx(), crop.Dy()))
	draw.Draw(sub, sub.Bounds(), img, crop.Min, draw.Src)
	return Rotate(sub, o), nil
}

// Blank returns a mid-grey frame of the given size.
func Blank(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: 128}}, image.Point{}, draw.Src)
	return img
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
