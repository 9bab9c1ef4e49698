package preview

import (
	"math"
	"sync"
	"time"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/observability"
	"github.com/wudi/sheetkit/style"
)

// NoiseThreshold is the smallest growth of a page height that is accepted.
const NoiseThreshold = 5.0

// DefaultFrameInterval approximates one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameScheduler runs fn at the next frame boundary, never synchronously.
// The returned function cancels the request if it has not run yet.
type FrameScheduler interface {
	RequestFrame(fn func()) (cancel func())
}

// TimerScheduler is a FrameScheduler backed by time.AfterFunc.
type TimerScheduler struct {
	Interval time.Duration
}

func (s TimerScheduler) RequestFrame(fn func()) func() {
	d := s.Interval
	if d <= 0 {
		d = DefaultFrameInterval
	}
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithFrameScheduler replaces the timer-based frame scheduler.
func WithFrameScheduler(s FrameScheduler) Option {
	return func(r *Reconciler) { r.sched = s }
}

// WithCommit registers fn to receive a copy of the heights at every commit.
// fn runs on the scheduler's goroutine.
func WithCommit(fn func(heights []float64)) Option {
	return func(r *Reconciler) { r.onCommit = fn }
}

// WithLogger sets the logger.
func WithLogger(l observability.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// Reconciler owns the per-page height map of one loaded document. Heights
// only grow: estimates never shrink a measured page, and measurements must
// exceed the current height by NoiseThreshold. Accepted measurements are
// written to a durable holder immediately and committed in batches, at most
// once per frame.
type Reconciler struct {
	sched    FrameScheduler
	onCommit func([]float64)
	log      observability.Logger

	mu        sync.Mutex
	gen       uint64
	durable   []float64
	committed []float64
	pending   map[int]float64
	cancel    func()
}

// NewReconciler creates an empty reconciler.
func NewReconciler(opts ...Option) *Reconciler {
	r := &Reconciler{
		sched:   TimerScheduler{},
		log:     observability.NopLogger{},
		pending: make(map[int]float64),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Reset starts a new document load with n pages and no heights. Reporters
// handed out before Reset become inert.
func (r *Reconciler) Reset(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gen++
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	r.durable = make([]float64, n)
	r.committed = make([]float64, n)
	r.pending = make(map[int]float64)
}

// Seed applies structural estimates for pages under st, keeping any height
// that is already larger. The result is committed immediately.
func (r *Reconciler) Seed(pages []document.Page, st style.Config) {
	est := EstimateAll(pages, st)
	r.mu.Lock()
	for i := range est {
		if i < len(r.durable) && r.durable[i] > est[i] {
			est[i] = r.durable[i]
		}
	}
	r.durable = est
	r.commitLocked()
	heights, fn := r.snapshotLocked(), r.onCommit
	r.mu.Unlock()
	if fn != nil {
		fn(heights)
	}
}

// Report offers a measured height for page idx and reports whether it was
// accepted.
func (r *Reconciler) Report(idx int, h float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reportLocked(r.gen, idx, h)
}

// Reporter returns a measurement callback bound to page idx of the current
// document load.
func (r *Reconciler) Reporter(idx int) func(float64) {
	r.mu.Lock()
	gen := r.gen
	r.mu.Unlock()
	return func(h float64) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reportLocked(gen, idx, h)
	}
}

func (r *Reconciler) reportLocked(gen uint64, idx int, h float64) bool {
	if gen != r.gen || idx < 0 || idx >= len(r.durable) {
		return false
	}
	if math.IsNaN(h) || math.IsInf(h, 0) || h <= 0 {
		return false
	}
	if prev := r.durable[idx]; prev > 0 && h < prev+NoiseThreshold {
		return false
	}
	r.durable[idx] = h
	r.pending[idx] = h
	if r.cancel == nil {
		r.cancel = r.sched.RequestFrame(func() { r.flush(gen) })
	}
	return true
}

func (r *Reconciler) flush(gen uint64) {
	r.mu.Lock()
	if gen != r.gen {
		r.mu.Unlock()
		return
	}
	n := len(r.pending)
	r.commitLocked()
	heights, fn := r.snapshotLocked(), r.onCommit
	r.mu.Unlock()
	r.log.Debug("heights committed", observability.Int("pages", n))
	if fn != nil {
		fn(heights)
	}
}

// Flush commits pending measurements now instead of at the next frame.
func (r *Reconciler) Flush() {
	r.mu.Lock()
	gen := r.gen
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
	empty := len(r.pending) == 0
	r.mu.Unlock()
	if !empty {
		r.flush(gen)
	}
}

func (r *Reconciler) commitLocked() {
	r.committed = append(r.committed[:0:0], r.durable...)
	r.pending = make(map[int]float64)
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Reconciler) snapshotLocked() []float64 {
	return append([]float64(nil), r.committed...)
}

// Heights returns a copy of the committed heights.
func (r *Reconciler) Heights() []float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotLocked()
}

// Height returns the committed height of page idx, or DefaultHeight when
// none is known.
func (r *Reconciler) Height(idx int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.committed) || r.committed[idx] <= 0 {
		return DefaultHeight
	}
	return r.committed[idx]
}

// Latest returns the most recent accepted height of page idx, committed or
// not, or DefaultHeight when none is known.
func (r *Reconciler) Latest(idx int) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if idx < 0 || idx >= len(r.durable) || r.durable[idx] <= 0 {
		return DefaultHeight
	}
	return r.durable[idx]
}

// Pending returns the number of pages awaiting commit.
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
