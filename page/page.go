// Package page composes one document page: the nine-slice border, block and
// section titles, content paragraphs, reward tiles and tables.
package page

import (
	"context"
	"image"
	"math"

	"github.com/wudi/sheetkit/bitmap"
	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/coords"
	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/fonts"
	"github.com/wudi/sheetkit/layout"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/style"
	"github.com/wudi/sheetkit/table"
)

// Proportions of the page typography relative to the style font size.
const (
	BlockTitleScale = 1.25
	CaptionScale    = 0.75
	RewardIconScale = 3.0
	SectionGapScale = 0.5
	BlockGapScale   = 1.0
)

// Option configures a Renderer.
type Option func(*Renderer)

// WithImageCache sets the cache used for border, reward and table images.
func WithImageCache(c *bitmap.Cache) Option {
	return func(r *Renderer) { r.images = c }
}

// WithFonts sets the registry that resolves the style font family.
func WithFonts(reg *fonts.Registry) Option {
	return func(r *Renderer) { r.fonts = reg }
}

// WithTableOptions passes options to every table engine.
func WithTableOptions(opts ...table.Option) Option {
	return func(r *Renderer) { r.tableOpts = append(r.tableOpts, opts...) }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(r *Renderer) { r.log = l }
}

// WithTracer sets the tracer wrapping Render.
func WithTracer(t observability.Tracer) Option {
	return func(r *Renderer) { r.tracer = t }
}

// Renderer lays out and rasterizes pages. Every Render call draws on its own
// surface with its own font faces, so a Renderer may be shared between
// goroutines.
type Renderer struct {
	images    *bitmap.Cache
	fonts     *fonts.Registry
	tableOpts []table.Option
	log       observability.Logger
	tracer    observability.Tracer
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		fonts:  fonts.Default(),
		log:    observability.NopLogger{},
		tracer: observability.NopTracer(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.images == nil {
		r.images = bitmap.New(bitmap.WithLogger(r.log))
	}
	return r
}

// ImageCache returns the cache the renderer resolves images through.
func (r *Renderer) ImageCache() *bitmap.Cache { return r.images }

// Layout is a measured page ready to draw at any height.
type Layout struct {
	Width  float64
	Height float64 // measured content height including vertical padding
	Tables []*table.Layout

	items []func(builder.PageBuilder)
}

// Draw paints the page content, excluding the border.
func (l *Layout) Draw(pb builder.PageBuilder) {
	if l == nil {
		return
	}
	for _, draw := range l.items {
		draw(pb)
	}
}

// Layout measures p under st without drawing anything. Table measurement
// settles before Layout returns; the only error is ctx's.
func (r *Renderer) Layout(ctx context.Context, p *document.Page, st style.Config) (*Layout, error) {
	fam := r.fonts.Lookup(st.Font.Family)
	size := st.Font.Size
	x := st.Pad.L
	width := st.ContentWidth()

	body := layout.TextStyle{Family: fam, Size: size, LineHeight: st.Font.LineHeight, Color: st.Content()}
	titles := body
	titles.Color = st.Title()

	l := &Layout{Width: st.PageWidth}
	cursor := st.Pad.T
	place := func(para *layout.Paragraph) {
		if para == nil || len(para.Lines) == 0 {
			return
		}
		y := cursor
		l.items = append(l.items, func(pb builder.PageBuilder) { para.Draw(pb, x, y) })
		cursor += para.Height()
	}

	if p != nil {
		for bi, block := range p.Blocks {
			if bi > 0 {
				cursor += size * BlockGapScale
			}
			if block.Title != "" {
				bt := titles
				bt.Size = size * BlockTitleScale
				bt.Align = layout.AlignCenter
				place(layout.Wrap([]layout.Span{{Text: block.Title, Bold: true}}, width, bt))
				cursor += size * SectionGapScale
			}
			for si, sec := range block.Sections {
				if si > 0 {
					cursor += size * SectionGapScale
				}
				if sec.Title != "" {
					place(layout.Wrap([]layout.Span{{Text: sec.Title, Bold: true}}, width, titles))
				}
				for _, line := range sec.Content {
					if line == "" {
						cursor += body.Pitch()
						continue
					}
					place(layout.Wrap(layout.ParseInline(line), width, body))
				}
				if len(sec.Rewards) > 0 {
					cursor += r.layoutRewards(ctx, l, sec.Rewards, x, cursor, width, body, titles)
				}
				if sec.Table != nil {
					eng := table.New(sec.Table, r.images, table.Style{
						Family:       fam,
						FontSize:     size,
						TitleColor:   st.Title(),
						ContentColor: st.Content(),
					}, append([]table.Option{table.WithLogger(r.log)}, r.tableOpts...)...)
					eng.LoadImages(ctx)
					tl, err := eng.Layout(ctx, x, cursor, width)
					if err != nil {
						return nil, err
					}
					l.Tables = append(l.Tables, tl)
					l.items = append(l.items, tl.Draw)
					cursor += tl.Height
				}
			}
		}
	}
	l.Height = cursor + st.Pad.B
	return l, nil
}

// layoutRewards places reward tiles in a grid: a square icon with the name
// and description centered beneath it. It returns the grid height.
func (r *Renderer) layoutRewards(ctx context.Context, l *Layout, rewards []document.Reward, x, y, width float64, body, titles layout.TextStyle) float64 {
	size := body.Size
	icon := size * RewardIconScale
	gap := size * SectionGapScale
	tile := icon + size
	cols := int(math.Max(1, math.Floor((width+gap)/(tile+gap))))
	if cols > len(rewards) {
		cols = len(rewards)
	}
	// Center the grid horizontally.
	gridW := float64(cols)*tile + float64(cols-1)*gap
	x0 := x + math.Max(0, (width-gridW)/2)

	caption := body
	caption.Size = size * CaptionScale
	caption.Align = layout.AlignCenter
	name := titles
	name.Size = caption.Size
	name.Align = layout.AlignCenter

	var total float64
	for start := 0; start < len(rewards); start += cols {
		rowH := icon
		for i := start; i < start+cols && i < len(rewards); i++ {
			rw := rewards[i]
			tx := x0 + float64(i-start)*(tile+gap)
			ty := y + total

			var img image.Image
			if !rw.Image.IsZero() {
				img = r.images.Resolve(ctx, rw.Image.URL)
			}
			box := coords.Rect{X: tx + (tile-icon)/2, Y: ty, W: icon, H: icon}
			nameP := layout.Wrap([]layout.Span{{Text: rw.Name, Bold: true}}, tile, name)
			descP := layout.WrapText(rw.Desc, tile, caption)
			nameY := ty + icon
			descY := nameY + nameP.Height()
			l.items = append(l.items, func(pb builder.PageBuilder) {
				if img != nil {
					builder.DrawFitted(pb, img, box)
				}
				nameP.Draw(pb, tx, nameY)
				descP.Draw(pb, tx, descY)
			})
			rowH = math.Max(rowH, icon+nameP.Height()+descP.Height())
		}
		total += rowH + gap
	}
	return total
}
