// Package table lays out a document table: header and data cells holding
// wrapped text or fitted images, with a bounded measurement retry loop and a
// single unified height for every data row.
package table

import (
	"context"
	"image"
	"image/color"
	"math"
	"sync"
	"time"

	"github.com/wudi/sheetkit/bitmap"
	"github.com/wudi/sheetkit/builder"
	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/fonts"
	"github.com/wudi/sheetkit/layout"
	"github.com/wudi/sheetkit/observability"
)

// HeaderRow is the row index of header cells in CellKey.
const HeaderRow = -1

const (
	DefaultPadding    = 8.0
	DefaultMaxRetries = 5
	DefaultRetryDelay = 100 * time.Millisecond
	CornerRadius      = 8.0
)

// CellKey addresses one cell; header cells use Row == HeaderRow.
type CellKey struct {
	Row, Col int
}

// Direction is the text direction of data cells.
type Direction string

const (
	LTR Direction = "ltr"
	RTL Direction = "rtl"
	// Auto picks RTL when the table text is dominated by a right-to-left script.
	Auto Direction = "auto"
)

// Style carries the typography a table inherits from the page.
type Style struct {
	Family       *fonts.Family
	FontSize     float64
	LineHeight   float64 // multiplier; 0 means 1
	TitleColor   color.Color
	ContentColor color.Color
}

// Option configures an Engine.
type Option func(*Engine)

// WithPadding sets the per-side cell padding.
func WithPadding(p float64) Option {
	return func(e *Engine) {
		if p >= 0 {
			e.padding = p
		}
	}
}

// WithRetry sets the measurement retry budget and the delay between attempts.
func WithRetry(maxRetries int, delay time.Duration) Option {
	return func(e *Engine) {
		if maxRetries >= 0 {
			e.maxRetries = maxRetries
		}
		if delay >= 0 {
			e.retryDelay = delay
		}
	}
}

// WithSleep replaces the wait between measurement attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) { e.sleep = sleep }
}

// WithDirection sets the data cell text direction.
func WithDirection(d Direction) Option {
	return func(e *Engine) { e.direction = d }
}

// WithHeightObserver registers fn to receive the total height whenever it is
// positive and differs from the last reported value.
func WithHeightObserver(fn func(height float64)) Option {
	return func(e *Engine) { e.observer = fn }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine lays out one table. It keeps the per-cell height map and loaded
// images between layouts, so it can be re-invoked as data settles.
type Engine struct {
	table *document.Table
	cache *bitmap.Cache
	style Style

	padding    float64
	maxRetries int
	retryDelay time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	direction  Direction
	observer   func(float64)
	log        observability.Logger

	// measure reads back the realized height of a wrapped cell. A zero
	// result marks the cell as not yet settled.
	measure func(key CellKey, p *layout.Paragraph) float64

	mu       sync.Mutex
	images   map[CellKey]image.Image
	heights  map[CellKey]float64
	reported float64
}

// New creates an engine for t. cache may be nil, in which case image cells
// render empty.
func New(t *document.Table, cache *bitmap.Cache, style Style, opts ...Option) *Engine {
	if style.LineHeight <= 0 {
		style.LineHeight = 1
	}
	e := &Engine{
		table:      t,
		cache:      cache,
		style:      style,
		padding:    DefaultPadding,
		maxRetries: DefaultMaxRetries,
		retryDelay: DefaultRetryDelay,
		sleep:      sleepContext,
		direction:  LTR,
		log:        observability.NopLogger{},
		measure:    func(_ CellKey, p *layout.Paragraph) float64 { return p.Height() },
		images:     make(map[CellKey]image.Image),
		heights:    make(map[CellKey]float64),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.direction == Auto {
		e.direction = detectDirection(t)
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func detectDirection(t *document.Table) Direction {
	if t == nil {
		return LTR
	}
	var text []rune
	for _, row := range t.Rows {
		for _, c := range row {
			text = append(text, []rune(c.Value)...)
		}
	}
	if fonts.IsRTL(string(text)) {
		return RTL
	}
	return LTR
}

// LoadImages resolves every image cell through the bitmap cache. Cells whose
// image fails to load stay empty.
func (e *Engine) LoadImages(ctx context.Context) {
	if e.table == nil || e.cache == nil {
		return
	}
	loaded := make(map[CellKey]image.Image)
	for r, row := range e.table.Rows {
		for c, cell := range row {
			if !cell.HasImage() {
				continue
			}
			if img := e.cache.Resolve(ctx, cell.Image.URL); img != nil {
				loaded[CellKey{Row: r, Col: c}] = img
			}
		}
	}
	e.mu.Lock()
	e.images = loaded
	e.mu.Unlock()
}

// CellHeights returns a copy of the measured cell heights.
func (e *Engine) CellHeights() map[CellKey]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[CellKey]float64, len(e.heights))
	for k, v := range e.heights {
		out[k] = v
	}
	return out
}

// Layout is a measured table ready to draw.
type Layout struct {
	X, Y, Width  float64
	ColWidth     float64
	Padding      float64
	HeaderHeight float64
	RowHeight    float64
	RowY         []float64 // relative to Y
	Height       float64
	Settled      bool
	Attempts     int

	table     *document.Table
	style     Style
	direction Direction
	heights   map[CellKey]float64
	images    map[CellKey]image.Image
	text      map[CellKey]*layout.Paragraph
}

// Layout measures the table at (x, y) with the given width. Unsettled cells
// are re-measured up to the retry budget with a fixed delay between attempts;
// after that the last known heights are kept. The only error is ctx's.
func (e *Engine) Layout(ctx context.Context, x, y, width float64) (*Layout, error) {
	cols := e.table.Columns()
	l := &Layout{X: x, Y: y, Width: width, Padding: e.padding, table: e.table, style: e.style, direction: e.direction}
	if cols == 0 || width <= 0 {
		l.Settled = true
		return l, nil
	}
	l.ColWidth = width / float64(cols)
	inner := math.Max(0, l.ColWidth-2*e.padding)

	e.mu.Lock()
	images := e.images
	e.mu.Unlock()

	var (
		text       map[CellKey]*layout.Paragraph
		unmeasured bool
	)
	for attempt := 0; ; attempt++ {
		l.Attempts = attempt + 1
		text, unmeasured = e.measureAll(cols, inner, images)
		if !unmeasured || attempt >= e.maxRetries {
			break
		}
		e.log.Debug("table cells not settled, retrying",
			observability.Int("attempt", attempt+1),
			observability.Int("max", e.maxRetries))
		if err := e.sleep(ctx, e.retryDelay); err != nil {
			return nil, err
		}
	}
	if unmeasured {
		e.log.Debug("table measurement budget exhausted", observability.Int("attempts", l.Attempts))
	}
	l.Settled = !unmeasured

	e.mu.Lock()
	heights := make(map[CellKey]float64, len(e.heights))
	for k, v := range e.heights {
		heights[k] = v
	}
	e.mu.Unlock()

	minRow := e.style.FontSize * 2
	if len(e.table.Headers) > 0 {
		h := minRow
		for c := 0; c < cols; c++ {
			h = math.Max(h, heights[CellKey{Row: HeaderRow, Col: c}])
		}
		l.HeaderHeight = h + 2*e.padding
	}
	if len(e.table.Rows) > 0 {
		h := minRow
		for r := range e.table.Rows {
			for c := 0; c < cols; c++ {
				h = math.Max(h, heights[CellKey{Row: r, Col: c}])
			}
		}
		l.RowHeight = h + 2*e.padding
	}
	cursor := l.HeaderHeight
	l.RowY = make([]float64, len(e.table.Rows))
	for r := range e.table.Rows {
		l.RowY[r] = cursor
		cursor += l.RowHeight
	}
	l.Height = cursor
	l.heights, l.images, l.text = heights, images, text

	e.report(l.Height)
	return l, nil
}

// measureAll runs one measurement pass, storing every settled height.
func (e *Engine) measureAll(cols int, inner float64, images map[CellKey]image.Image) (map[CellKey]*layout.Paragraph, bool) {
	text := make(map[CellKey]*layout.Paragraph)
	next := make(map[CellKey]float64)
	unmeasured := false

	record := func(key CellKey, h float64) {
		if h > 0 && !math.IsInf(h, 0) && !math.IsNaN(h) {
			next[key] = h
		} else {
			unmeasured = true
		}
	}

	header := e.textStyle(true)
	for c := 0; c < cols && c < len(e.table.Headers); c++ {
		key := CellKey{Row: HeaderRow, Col: c}
		p := layout.Wrap([]layout.Span{{Text: e.table.Headers[c], Bold: true}}, inner, header)
		text[key] = p
		record(key, e.measure(key, p))
	}

	body := e.textStyle(false)
	for r, row := range e.table.Rows {
		for c := 0; c < cols && c < len(row); c++ {
			key := CellKey{Row: r, Col: c}
			cell := row[c]
			if cell.HasImage() {
				if img, ok := images[key]; ok {
					if aspect := builder.Aspect(img); aspect > 0 {
						record(key, inner/aspect)
					}
				}
				continue
			}
			p := layout.WrapText(cell.Value, inner, body)
			text[key] = p
			record(key, e.measure(key, p))
		}
	}

	e.mu.Lock()
	for k, v := range next {
		e.heights[k] = v
	}
	e.mu.Unlock()
	return text, unmeasured
}

func (e *Engine) textStyle(header bool) layout.TextStyle {
	st := layout.TextStyle{
		Family:     e.style.Family,
		Size:       e.style.FontSize,
		LineHeight: e.style.LineHeight,
		Color:      e.style.ContentColor,
	}
	switch {
	case header:
		st.Align = layout.AlignCenter
		st.Color = e.style.TitleColor
	case e.direction == RTL:
		st.Align = layout.AlignRight
	}
	return st
}

func (e *Engine) report(total float64) {
	e.mu.Lock()
	if total <= 0 || total == e.reported {
		e.mu.Unlock()
		return
	}
	e.reported = total
	fn := e.observer
	e.mu.Unlock()
	if fn != nil {
		fn(total)
	}
}
