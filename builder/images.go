package builder

import (
	"image"

	"github.com/wudi/sheetkit/coords"
)

// Aspect returns width/height of img, or 0 when it has no area.
func Aspect(img image.Image) float64 {
	if img == nil {
		return 0
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return 0
	}
	return float64(b.Dx()) / float64(b.Dy())
}

// Fit returns the largest rectangle with img's aspect ratio that fits inside
// box, centered in it. The zero Rect is returned when either has no area.
func Fit(img image.Image, box coords.Rect) coords.Rect {
	aspect := Aspect(img)
	if aspect == 0 || !box.Valid() {
		return coords.Rect{}
	}
	w, h := box.W, box.W/aspect
	if h > box.H {
		w, h = box.H*aspect, box.H
	}
	return coords.Rect{X: box.X + (box.W-w)/2, Y: box.Y + (box.H-h)/2, W: w, H: h}
}

// DrawFitted draws img contained and centered in box.
func DrawFitted(pb PageBuilder, img image.Image, box coords.Rect) PageBuilder {
	dst := Fit(img, box)
	if !dst.Valid() {
		return pb
	}
	return pb.DrawImage(img, dst)
}
