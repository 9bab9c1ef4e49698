package page

import (
	"context"
	"fmt"
	"image"

	xdraw "golang.org/x/image/draw"

	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/coords"
	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/nineslice"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/style"
)

// RenderOptions controls rasterization.
type RenderOptions struct {
	// PixelRatio multiplies the logical page size; 0 means 1.
	PixelRatio float64
	// Height is the logical surface height. 0 renders at the measured height.
	Height float64
	// OnMeasured receives the measured height before drawing.
	OnMeasured func(height float64)
	// HighQuality scales bitmaps with Catmull-Rom instead of bilinear.
	HighQuality bool
}

// Result is a rendered page.
type Result struct {
	Image    *image.RGBA
	Height   float64 // logical height of Image
	Measured float64
}

// Render lays out p and rasterizes it on a white surface with the border
// stretched over the whole page.
func (r *Renderer) Render(ctx context.Context, p *document.Page, st style.Config, opts RenderOptions) (res *Result, err error) {
	ctx, span := r.tracer.StartSpan(ctx, observability.SpanPageRender)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	l, err := r.Layout(ctx, p, st)
	if err != nil {
		return nil, fmt.Errorf("layout page: %w", err)
	}
	if opts.OnMeasured != nil {
		opts.OnMeasured(l.Height)
	}
	height := opts.Height
	if height <= 0 {
		height = l.Height
	}
	ratio := opts.PixelRatio
	if ratio <= 0 {
		ratio = 1
	}
	span.SetTag("height", height)
	span.SetTag("pixel_ratio", ratio)

	var rasterOpts []builder.RasterOption
	if opts.HighQuality {
		rasterOpts = append(rasterOpts, builder.WithInterpolator(xdraw.CatmullRom))
	}
	canvas := builder.NewRaster(st.PageWidth, height, ratio, rasterOpts...)
	if ref := st.Border.Image; ref != "" {
		if border := r.images.Resolve(ctx, ref); border != nil {
			nineslice.Draw(canvas, coords.Rect{W: st.PageWidth, H: height}, border, st.Border.Slice)
		}
	}
	l.Draw(canvas)

	r.log.Debug("page rendered",
		observability.Float64("height", height),
		observability.Float64("measured", l.Height),
		observability.Float64("pixel_ratio", ratio))
	return &Result{Image: canvas.Image(), Height: height, Measured: l.Height}, nil
}
