package export

import (
	"fmt"
	"sync"
	"time"
)

// DefaultLinger is how long a finished or failed status stays visible
// before the tracker returns to idle.
const DefaultLinger = 1500 * time.Millisecond

// Status is a snapshot of an export's progress for display.
type Status struct {
	Active bool
	Phase  Phase
	// Pages rendered so far and the page total.
	Rendered int
	Pages    int
	// Percent is the zip or write progress, 0..100.
	Percent int
	Err     error
}

// Label returns a short human readable line, or "" when idle.
func (s Status) Label() string {
	if s.Err != nil {
		return fmt.Sprintf("Export failed: %v", s.Err)
	}
	switch s.Phase {
	case PhaseRender:
		return fmt.Sprintf("Rendering page %d/%d", s.Rendered, s.Pages)
	case PhaseZip:
		return fmt.Sprintf("Packaging %d%%", s.Percent)
	case PhaseWrite:
		return fmt.Sprintf("Writing %d%%", s.Percent)
	case PhaseDone:
		return fmt.Sprintf("Exported %d pages", s.Pages)
	}
	return ""
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithLinger sets how long the final status is kept.
func WithLinger(d time.Duration) TrackerOption {
	return func(t *Tracker) { t.linger = d }
}

// WithOnChange registers a callback invoked with every new status. It is
// called without the tracker's lock held.
func WithOnChange(fn func(Status)) TrackerOption {
	return func(t *Tracker) { t.onChange = fn }
}

// Tracker folds progress events into a Status. After the export finishes,
// successfully or not, the status is reset to idle once the linger period
// has passed.
type Tracker struct {
	mu       sync.Mutex
	status   Status
	linger   time.Duration
	onChange func(Status)
	timer    *time.Timer
	gen      uint64
}

// NewTracker creates an idle tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{linger: DefaultLinger}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe records one progress event. It has the ProgressFunc signature.
func (t *Tracker) Observe(p Progress) {
	t.mu.Lock()
	t.stopTimerLocked()
	st := t.status
	if !st.Active || st.Err != nil {
		st = Status{}
	}
	st.Active = p.Phase != PhaseDone
	st.Phase = p.Phase
	switch p.Phase {
	case PhaseRender:
		st.Rendered, st.Pages = p.Current, p.Total
		st.Percent = 0
	case PhaseZip, PhaseWrite:
		st.Percent = p.Current
	case PhaseDone:
		st.Rendered, st.Pages = p.Current, p.Total
		st.Percent = 100
	}
	t.status = st
	if p.Phase == PhaseDone {
		t.scheduleResetLocked()
	}
	t.mu.Unlock()
	t.notify(st)
}

// Fail records the terminal error of an export.
func (t *Tracker) Fail(err error) {
	if err == nil {
		return
	}
	t.mu.Lock()
	t.stopTimerLocked()
	t.status.Active = false
	t.status.Err = err
	st := t.status
	t.scheduleResetLocked()
	t.mu.Unlock()
	t.notify(st)
}

// Status returns the current snapshot.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Busy reports whether an export is in flight.
func (t *Tracker) Busy() bool { return t.Status().Active }

func (t *Tracker) scheduleResetLocked() {
	t.gen++
	gen := t.gen
	t.timer = time.AfterFunc(t.linger, func() {
		t.mu.Lock()
		if gen != t.gen {
			t.mu.Unlock()
			return
		}
		t.status = Status{}
		t.timer = nil
		t.mu.Unlock()
		t.notify(Status{})
	})
}

func (t *Tracker) stopTimerLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *Tracker) notify(st Status) {
	if t.onChange != nil {
		t.onChange(st)
	}
}
