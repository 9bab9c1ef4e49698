package preview

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/page"
	"github.com/wudi/sheetkit/style"
)

// DefaultGap separates stacked pages in the view.
const DefaultGap = 16.0

// ViewOption configures a View.
type ViewOption func(*View)

// WithGap sets the vertical gap between pages.
func WithGap(gap float64) ViewOption {
	return func(v *View) { v.gap = gap }
}

// WithReconciler replaces the view's reconciler.
func WithReconciler(r *Reconciler) ViewOption {
	return func(v *View) { v.rec = r }
}

// WithViewLogger sets the logger.
func WithViewLogger(l observability.Logger) ViewOption {
	return func(v *View) { v.log = l }
}

// Cell is the state of one page in the view.
type Cell struct {
	Index   int
	Region  string
	Extent  Extent
	Height  float64 // logical height of the placeholder or surface
	Mounted bool
	Image   *image.RGBA // nil unless mounted
}

type cellState struct {
	props   CellProps
	surface *page.Result
}

// View is a virtualized vertical list of pages. Only pages near the viewport
// are rendered; the rest are placeholders sized by the reconciler.
type View struct {
	renderer *page.Renderer
	rec      *Reconciler
	gate     *Gate
	gap      float64
	log      observability.Logger

	mu       sync.Mutex
	doc      *document.Document
	style    style.Config
	zoom     float64
	viewport Viewport
	cells    []cellState
}

// NewView creates an empty view at 100% zoom with the default style.
func NewView(r *page.Renderer, opts ...ViewOption) *View {
	v := &View{
		renderer: r,
		gate:     NewGate(LookAhead),
		gap:      DefaultGap,
		log:      observability.NopLogger{},
		style:    style.Default(),
		zoom:     1,
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.rec == nil {
		v.rec = NewReconciler(WithLogger(v.log))
	}
	return v
}

// Reconciler returns the view's height reconciler.
func (v *View) Reconciler() *Reconciler { return v.rec }

// Load replaces the document. Heights are reset and reseeded from estimates.
func (v *View) Load(doc *document.Document) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.doc = doc
	n := 0
	if doc != nil {
		n = len(doc.Pages)
	}
	v.rec.Reset(n)
	if doc != nil {
		v.rec.Seed(doc.Pages, v.style)
	}
	v.gate.Reset()
	v.cells = make([]cellState, n)
}

// SetStyle applies a new style; estimates grow but never shrink pages.
func (v *View) SetStyle(st style.Config) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.style = st
	if v.doc != nil {
		v.rec.Seed(v.doc.Pages, st)
	}
}

// SetZoom sets the display scale, e.g. 0.5 for 50%.
func (v *View) SetZoom(zoom float64) error {
	if zoom <= 0 {
		return fmt.Errorf("zoom must be positive, got %v", zoom)
	}
	v.mu.Lock()
	v.zoom = zoom
	v.mu.Unlock()
	return nil
}

// SetViewport sets the viewport size without rendering.
func (v *View) SetViewport(vp Viewport) {
	v.mu.Lock()
	v.viewport = vp
	v.mu.Unlock()
}

// Scroll moves the viewport to offset and syncs the mounted pages.
func (v *View) Scroll(ctx context.Context, offset float64) error {
	v.mu.Lock()
	v.viewport.Top = offset
	v.mu.Unlock()
	return v.Sync(ctx)
}

// Sync mounts pages that entered the boundary, unmounts those that left and
// re-renders mounted pages whose inputs changed.
func (v *View) Sync(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.doc == nil {
		return nil
	}
	extents := Extents(v.heightsLocked(), v.zoom, v.gap)
	entered, left := v.gate.Update(extents, v.viewport)
	for _, i := range left {
		if i < len(v.cells) {
			v.cells[i].surface = nil
		}
	}
	if len(entered) > 0 {
		v.log.Debug("pages mounted", observability.Int("count", len(entered)))
	}

	for i := range v.cells {
		if !v.gate.Visible(i) {
			continue
		}
		props := CellProps{Page: &v.doc.Pages[i], Zoom: v.zoom, Style: v.style, EstHeight: v.rec.Height(i)}
		c := &v.cells[i]
		if c.surface != nil && SameCell(c.props, props) {
			continue
		}
		res, err := v.renderer.Render(ctx, props.Page, v.style, page.RenderOptions{
			PixelRatio: v.zoom,
			Height:     props.EstHeight,
			OnMeasured: v.rec.Reporter(i),
		})
		if err != nil {
			return fmt.Errorf("render page %d: %w", i, err)
		}
		c.props, c.surface = props, res
	}
	return nil
}

func (v *View) heightsLocked() []float64 {
	heights := make([]float64, len(v.cells))
	for i := range heights {
		heights[i] = v.rec.Height(i)
	}
	return heights
}

// Cells returns the state of every page.
func (v *View) Cells() []Cell {
	v.mu.Lock()
	defer v.mu.Unlock()
	heights := v.heightsLocked()
	extents := Extents(heights, v.zoom, v.gap)
	out := make([]Cell, len(v.cells))
	for i, c := range v.cells {
		out[i] = Cell{Index: i, Extent: extents[i], Height: heights[i]}
		if v.doc != nil {
			out[i].Region = v.doc.Pages[i].Region
		}
		if c.surface != nil {
			out[i].Mounted = true
			out[i].Image = c.surface.Image
			out[i].Height = c.surface.Height
		}
	}
	return out
}
