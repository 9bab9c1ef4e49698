// Package export renders every page of every sheet at full height, packages
// the images into one zip archive with a folder per sheet, and writes the
// archive to a destination, reporting phase progress along the way.
package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/page"
	"github.com/wudi/sheetkit/style"
)

// Phase is a stage of the export.
type Phase string

const (
	PhaseRender Phase = "render"
	PhaseZip    Phase = "zip"
	PhaseWrite  Phase = "write"
	PhaseDone   Phase = "done"
)

// Progress is one progress event. During render Current counts finished
// pages out of Total; during zip and write Current is a percentage and Total
// is 100; done carries the page count in both.
type Progress struct {
	Phase   Phase
	Current int
	Total   int
	Detail  string
}

// ProgressFunc receives progress events in order.
type ProgressFunc func(Progress)

var (
	ErrNoPages           = errors.New("nothing to export")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrInvalidPixelRatio = errors.New("pixel ratio must be 1, 2 or 3")
	ErrNilDestination    = errors.New("no destination")
)

// Error is the single terminal error of a failed export.
type Error struct {
	Phase Phase
	Err   error
}

func (e *Error) Error() string { return fmt.Sprintf("export %s: %v", e.Phase, e.Err) }
func (e *Error) Unwrap() error { return e.Err }

// Options selects the output.
type Options struct {
	// PixelRatio is 1, 2 or 3; 0 means 1.
	PixelRatio int
	// Format is FormatPNG or FormatWebP; empty means PNG.
	Format Format
	// HighQuality scales bitmaps with Catmull-Rom.
	HighQuality bool
}

func (o Options) normalize() (Options, error) {
	if o.PixelRatio == 0 {
		o.PixelRatio = 1
	}
	if o.PixelRatio < 1 || o.PixelRatio > 3 {
		return o, fmt.Errorf("%w: got %d", ErrInvalidPixelRatio, o.PixelRatio)
	}
	if o.Format == "" {
		o.Format = FormatPNG
	}
	if _, err := ParseFormat(string(o.Format)); err != nil {
		return o, err
	}
	return o, nil
}

// DefaultChunkSize is the write granularity used for progress reporting.
const DefaultChunkSize = 64 << 10

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(p *Pipeline) { p.log = l }
}

// WithTracer sets the tracer; each phase runs in its own span.
func WithTracer(t observability.Tracer) Option {
	return func(p *Pipeline) { p.tracer = t }
}

// WithChunkSize sets the write chunk size.
func WithChunkSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.chunk = n
		}
	}
}

// WithClock sets the time source for archive entry timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// Pipeline runs exports. Phases run strictly in order: every page of every
// sheet is rendered before packaging starts.
type Pipeline struct {
	renderer *page.Renderer
	log      observability.Logger
	tracer   observability.Tracer
	chunk    int
	now      func() time.Time
}

// NewPipeline creates a pipeline rendering through r.
func NewPipeline(r *page.Renderer, opts ...Option) *Pipeline {
	p := &Pipeline{
		renderer: r,
		log:      observability.NopLogger{},
		tracer:   observability.NopTracer(),
		chunk:    DefaultChunkSize,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.renderer == nil {
		p.renderer = page.NewRenderer(page.WithLogger(p.log))
	}
	return p
}

type entry struct {
	name string
	data []byte
}

// Export renders, packages and writes sheets to dst. progress may be nil.
// Any failure aborts the export, leaves nothing at dst and is returned as
// an *Error.
func (p *Pipeline) Export(ctx context.Context, sheets []document.Sheet, st style.Config, dst Destination, opts Options, progress ProgressFunc) (err error) {
	if progress == nil {
		progress = func(Progress) {}
	}
	start := p.now()
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanExport)
	defer func() {
		if err != nil {
			span.SetError(err)
			p.log.Error("export failed", observability.Error("error", err))
		}
		span.Finish()
	}()

	opts, err = opts.normalize()
	if err != nil {
		return &Error{Phase: PhaseRender, Err: err}
	}
	if dst == nil {
		return &Error{Phase: PhaseWrite, Err: ErrNilDestination}
	}
	total := 0
	for _, s := range sheets {
		if s.Document != nil {
			total += len(s.Document.Pages)
		}
	}
	if total == 0 {
		return &Error{Phase: PhaseRender, Err: ErrNoPages}
	}
	span.SetTag("pages", total)
	span.SetTag("format", string(opts.Format))

	entries, err := p.render(ctx, sheets, st, opts, total, progress)
	if err != nil {
		return &Error{Phase: PhaseRender, Err: err}
	}
	archive, err := p.pack(ctx, entries, progress)
	if err != nil {
		return &Error{Phase: PhaseZip, Err: err}
	}
	if err := p.write(ctx, archive, dst, progress); err != nil {
		return &Error{Phase: PhaseWrite, Err: err}
	}
	progress(Progress{Phase: PhaseDone, Current: total, Total: total})
	p.log.Info("export finished",
		observability.Int("pages", total),
		observability.Int("bytes", len(archive)),
		observability.Duration("elapsed", p.now().Sub(start)))
	return nil
}

func (p *Pipeline) render(ctx context.Context, sheets []document.Sheet, st style.Config, opts Options, total int, progress ProgressFunc) (_ []entry, err error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanExportRender)
	defer finishSpan(span, &err)

	folders := sheetFolders(sheets)
	entries := make([]entry, 0, total)
	progress(Progress{Phase: PhaseRender, Current: 0, Total: total})
	for si, sheet := range sheets {
		if sheet.Document == nil {
			continue
		}
		for pi := range sheet.Document.Pages {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			pg := &sheet.Document.Pages[pi]
			name := folders[si] + "/" + PageFileName(pi, pg.Region, opts.Format)
			res, err := p.renderer.Render(ctx, pg, st, page.RenderOptions{
				PixelRatio:  float64(opts.PixelRatio),
				HighQuality: opts.HighQuality,
			})
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			var buf bytes.Buffer
			if err := Encode(&buf, res.Image, opts.Format); err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			entries = append(entries, entry{name: name, data: buf.Bytes()})
			p.log.Debug("page rendered",
				observability.String("name", name),
				observability.Float64("height", res.Height))
			progress(Progress{Phase: PhaseRender, Current: len(entries), Total: total, Detail: name})
		}
	}
	p.log.Info("pages rendered", observability.Int("pages", len(entries)))
	return entries, nil
}

func (p *Pipeline) pack(ctx context.Context, entries []entry, progress ProgressFunc) (_ []byte, err error) {
	_, span := p.tracer.StartSpan(ctx, observability.SpanExportZip)
	defer finishSpan(span, &err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := p.now()
	progress(Progress{Phase: PhaseZip, Current: 0, Total: 100})
	last := 0
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Store,
			Modified: modified,
		})
		if err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}
		if _, err := w.Write(e.data); err != nil {
			return nil, fmt.Errorf("add %s: %w", e.name, err)
		}
		if pct := Percent(int64(i+1), int64(len(entries))); pct != last {
			last = pct
			progress(Progress{Phase: PhaseZip, Current: pct, Total: 100, Detail: e.name})
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finish archive: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *Pipeline) write(ctx context.Context, archive []byte, dst Destination, progress ProgressFunc) (err error) {
	ctx, span := p.tracer.StartSpan(ctx, observability.SpanExportWrite)
	defer finishSpan(span, &err)

	sink, err := dst.Open(ctx)
	if err != nil {
		return fmt.Errorf("open destination: %w", err)
	}
	defer func() {
		if err != nil {
			if abortErr := sink.Abort(); abortErr != nil {
				p.log.Warn("abort destination", observability.Error("error", abortErr))
			}
		}
	}()

	size := int64(len(archive))
	progress(Progress{Phase: PhaseWrite, Current: 0, Total: 100})
	last := 0
	var written int64
	for written < size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := written + int64(p.chunk)
		if end > size {
			end = size
		}
		n, err := sink.Write(archive[written:end])
		written += int64(n)
		if err != nil {
			return fmt.Errorf("write archive: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("write archive: %w", io.ErrShortWrite)
		}
		if pct := Percent(written, size); pct != last {
			last = pct
			progress(Progress{Phase: PhaseWrite, Current: pct, Total: 100})
		}
	}
	if err := sink.Commit(); err != nil {
		return fmt.Errorf("commit archive: %w", err)
	}
	return nil
}

func finishSpan(span observability.Span, err *error) {
	if *err != nil {
		span.SetError(*err)
	}
	span.Finish()
}

// Percent returns round(current/max(total,1)*100) clamped to [0, 100].
func Percent(current, total int64) int {
	if total < 1 {
		total = 1
	}
	pct := math.Round(float64(current) / float64(total) * 100)
	return int(math.Max(0, math.Min(100, pct)))
}
