// Package builder provides a fluent drawing surface for page bitmaps.
// Coordinates are logical units with the origin at the top-left corner; the
// surface scales them by its pixel ratio.
package builder

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"github.com/wudi/sheetkit/coords"
	"github.com/wudi/sheetkit/fonts"
)

// PageBuilder provides a fluent API for page drawing.
type PageBuilder interface {
	Width() float64
	Height() float64
	DrawText(text string, x, y float64, opts TextOptions) PageBuilder
	DrawRectangle(r coords.Rect, opts RectOptions) PageBuilder
	DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder
	DrawImage(img image.Image, dst coords.Rect) PageBuilder
	DrawImageRegion(img image.Image, src image.Rectangle, dst coords.Rect) PageBuilder
}

// TextOptions configures text drawing. y is the top of the line box; the
// glyphs are centered vertically inside a box LineHeight units tall.
type TextOptions struct {
	Family     *fonts.Family
	FontSize   float64
	Bold       bool
	Color      color.Color
	LineHeight float64
}

// RectOptions configures rectangle filling. Radii are top-left, top-right,
// bottom-right and bottom-left corner radii.
type RectOptions struct {
	FillColor color.Color
	Radii     [4]float64
}

// LineOptions configures line drawing.
type LineOptions struct {
	StrokeColor color.Color
	LineWidth   float64
}

// RasterOption configures a Raster.
type RasterOption func(*Raster)

// WithBackground fills the surface with c before any drawing.
// A nil color leaves the surface transparent.
func WithBackground(c color.Color) RasterOption {
	return func(r *Raster) { r.background = c }
}

// WithInterpolator sets the scaler used for bitmap drawing.
func WithInterpolator(s xdraw.Interpolator) RasterOption {
	return func(r *Raster) { r.scaler = s }
}

// Raster is a PageBuilder backed by an RGBA bitmap.
type Raster struct {
	width, height float64
	ratio         float64
	ctm           coords.Matrix
	img           *image.RGBA
	background    color.Color
	scaler        xdraw.Interpolator
	faces         map[faceKey]font.Face
}

type faceKey struct {
	family *fonts.Family
	bold   bool
	px     float64
}

// face returns a face owned by this raster; faces are not shared across
// surfaces because they are not safe for concurrent use.
func (r *Raster) face(fam *fonts.Family, bold bool, px float64) (font.Face, error) {
	key := faceKey{family: fam, bold: bold, px: px}
	if f, ok := r.faces[key]; ok {
		return f, nil
	}
	f, err := fam.Face(bold, px)
	if err != nil {
		return nil, err
	}
	if r.faces == nil {
		r.faces = make(map[faceKey]font.Face)
	}
	r.faces[key] = f
	return f, nil
}

// NewRaster creates a surface width x height logical units at pixelRatio
// device pixels per unit.
func NewRaster(width, height, pixelRatio float64, opts ...RasterOption) *Raster {
	if pixelRatio <= 0 || math.IsNaN(pixelRatio) || math.IsInf(pixelRatio, 0) {
		pixelRatio = 1
	}
	r := &Raster{
		width:      math.Max(width, 0),
		height:     math.Max(height, 0),
		ratio:      pixelRatio,
		ctm:        coords.Scale(pixelRatio, pixelRatio),
		background: color.White,
		scaler:     xdraw.ApproxBiLinear,
	}
	for _, opt := range opts {
		opt(r)
	}
	pw := int(math.Ceil(r.width * pixelRatio))
	ph := int(math.Ceil(r.height * pixelRatio))
	r.img = image.NewRGBA(image.Rect(0, 0, pw, ph))
	if r.background != nil {
		draw.Draw(r.img, r.img.Bounds(), image.NewUniform(r.background), image.Point{}, draw.Src)
	}
	return r
}

func (r *Raster) Width() float64      { return r.width }
func (r *Raster) Height() float64     { return r.height }
func (r *Raster) PixelRatio() float64 { return r.ratio }

// Image returns the backing bitmap.
func (r *Raster) Image() *image.RGBA { return r.img }

// device maps a logical rectangle to device pixels, rounding each edge so
// that rectangles sharing an edge share a pixel boundary.
func (r *Raster) device(rect coords.Rect) image.Rectangle {
	d := r.ctm.TransformRect(rect)
	return image.Rect(
		int(math.Round(d.X)), int(math.Round(d.Y)),
		int(math.Round(d.MaxX())), int(math.Round(d.MaxY())),
	)
}

func (r *Raster) DrawText(text string, x, y float64, opts TextOptions) PageBuilder {
	if text == "" || opts.Family == nil || opts.FontSize <= 0 {
		return r
	}
	px := opts.FontSize * r.ratio
	face, err := r.face(opts.Family, opts.Bold, px)
	if err != nil {
		return r
	}
	ascent, descent := opts.Family.Metrics(opts.Bold, px)
	box := opts.LineHeight * r.ratio
	if box <= 0 {
		box = ascent + descent
	}
	origin := r.ctm.Transform(coords.Point{X: x, Y: y})
	baseline := origin.Y + (box-(ascent+descent))/2 + ascent
	c := opts.Color
	if c == nil {
		c = color.Black
	}
	d := &font.Drawer{
		Dst:  r.img,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(math.Round(origin.X * 64)), Y: fixed.Int26_6(math.Round(baseline * 64))},
	}
	d.DrawString(text)
	return r
}

func (r *Raster) DrawRectangle(rect coords.Rect, opts RectOptions) PageBuilder {
	if !rect.Valid() || opts.FillColor == nil {
		return r
	}
	pr := r.device(rect)
	if pr.Empty() {
		return r
	}
	src := image.NewUniform(opts.FillColor)
	if opts.Radii == ([4]float64{}) {
		draw.Draw(r.img, pr, src, image.Point{}, draw.Over)
		return r
	}
	var radii [4]float32
	limit := math.Min(float64(pr.Dx()), float64(pr.Dy())) / 2
	for i, v := range opts.Radii {
		radii[i] = float32(math.Min(math.Max(v*r.ratio, 0), limit))
	}
	w, h := float32(pr.Dx()), float32(pr.Dy())
	r.fillPath(pr, src, func(z *vector.Rasterizer, ox, oy float32) {
		roundedPath(z, ox, oy, w, h, radii)
	})
	return r
}

// kappa places cubic control points to approximate a quarter circle.
const kappa = 0.5522847

// roundedPath traces a w x h rectangle at (x, y) with corner radii in
// top-left, top-right, bottom-right, bottom-left order.
func roundedPath(z *vector.Rasterizer, x, y, w, h float32, rad [4]float32) {
	c := func(r float32) float32 { return r * (1 - kappa) }
	z.MoveTo(x+rad[0], y)
	z.LineTo(x+w-rad[1], y)
	z.CubeTo(x+w-c(rad[1]), y, x+w, y+c(rad[1]), x+w, y+rad[1])
	z.LineTo(x+w, y+h-rad[2])
	z.CubeTo(x+w, y+h-c(rad[2]), x+w-c(rad[2]), y+h, x+w-rad[2], y+h)
	z.LineTo(x+rad[3], y+h)
	z.CubeTo(x+c(rad[3]), y+h, x, y+h-c(rad[3]), x, y+h-rad[3])
	z.LineTo(x, y+rad[0])
	z.CubeTo(x, y+c(rad[0]), x+c(rad[0]), y, x+rad[0], y)
	z.ClosePath()
}

// fillPath rasterizes the path traced by trace onto the part of the surface
// inside box. trace receives the offset that maps device pixels into the
// rasterizer.
func (r *Raster) fillPath(box image.Rectangle, src image.Image, trace func(z *vector.Rasterizer, ox, oy float32)) {
	origin := box.Min
	box = box.Intersect(r.img.Bounds())
	if box.Empty() {
		return
	}
	z := vector.NewRasterizer(box.Dx(), box.Dy())
	z.DrawOp = draw.Over
	trace(z, float32(origin.X-box.Min.X), float32(origin.Y-box.Min.Y))
	z.Draw(r.img, box, src, image.Point{})
}

func (r *Raster) DrawLine(x1, y1, x2, y2 float64, opts LineOptions) PageBuilder {
	if opts.StrokeColor == nil {
		return r
	}
	lw := opts.LineWidth
	if lw <= 0 {
		lw = 1
	}
	src := image.NewUniform(opts.StrokeColor)
	switch {
	case y1 == y2:
		lo, hi := math.Min(x1, x2), math.Max(x1, x2)
		r.fillAtLeastOnePixel(coords.Rect{X: lo, Y: y1 - lw/2, W: hi - lo, H: lw}, src)
	case x1 == x2:
		lo, hi := math.Min(y1, y2), math.Max(y1, y2)
		r.fillAtLeastOnePixel(coords.Rect{X: x1 - lw/2, Y: lo, W: lw, H: hi - lo}, src)
	default:
		p1 := r.ctm.Transform(coords.Point{X: x1, Y: y1})
		p2 := r.ctm.Transform(coords.Point{X: x2, Y: y2})
		dx, dy := p2.X-p1.X, p2.Y-p1.Y
		half := math.Max(0.5, lw*r.ratio/2)
		length := math.Hypot(dx, dy)
		nx, ny := -dy/length*half, dx/length*half
		box := image.Rect(
			int(math.Floor(math.Min(p1.X, p2.X)-half)), int(math.Floor(math.Min(p1.Y, p2.Y)-half)),
			int(math.Ceil(math.Max(p1.X, p2.X)+half)), int(math.Ceil(math.Max(p1.Y, p2.Y)+half)),
		)
		r.fillPath(box, src, func(z *vector.Rasterizer, ox, oy float32) {
			pt := func(x, y float64) (float32, float32) {
				return float32(x-float64(box.Min.X)) + ox, float32(y-float64(box.Min.Y)) + oy
			}
			z.MoveTo(pt(p1.X+nx, p1.Y+ny))
			z.LineTo(pt(p2.X+nx, p2.Y+ny))
			z.LineTo(pt(p2.X-nx, p2.Y-ny))
			z.LineTo(pt(p1.X-nx, p1.Y-ny))
			z.ClosePath()
		})
	}
	return r
}

func (r *Raster) fillAtLeastOnePixel(rect coords.Rect, src image.Image) {
	pr := r.device(rect)
	if pr.Dx() == 0 {
		pr.Max.X = pr.Min.X + 1
	}
	if pr.Dy() == 0 {
		pr.Max.Y = pr.Min.Y + 1
	}
	draw.Draw(r.img, pr, src, image.Point{}, draw.Over)
}

func (r *Raster) DrawImage(img image.Image, dst coords.Rect) PageBuilder {
	if img == nil {
		return r
	}
	return r.DrawImageRegion(img, img.Bounds(), dst)
}

// DrawImageRegion scales the src region of img into dst. The region is
// clipped to the bitmap bounds.
func (r *Raster) DrawImageRegion(img image.Image, src image.Rectangle, dst coords.Rect) PageBuilder {
	if img == nil || !dst.Valid() {
		return r
	}
	src = src.Intersect(img.Bounds())
	if src.Empty() {
		return r
	}
	pr := r.device(dst)
	if pr.Empty() {
		return r
	}
	r.scaler.Scale(r.img, pr, img, src, xdraw.Over, nil)
	return r
}
