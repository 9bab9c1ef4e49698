package preview

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/wudi/sheetkit/document"
	"github.com/wudi/sheetkit/page"
	"github.com/wudi/sheetkit/style"
)

// manualFrames runs frame callbacks only when told to.
type manualFrames struct {
	mu  sync.Mutex
	fns []*frame
}

type frame struct {
	fn        func()
	cancelled bool
}

func (m *manualFrames) RequestFrame(fn func()) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	f := &frame{fn: fn}
	m.fns = append(m.fns, f)
	return func() {
		m.mu.Lock()
		f.cancelled = true
		m.mu.Unlock()
	}
}

func (m *manualFrames) requested() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fns)
}

func (m *manualFrames) run() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, f := range fns {
		m.mu.Lock()
		skip := f.cancelled
		m.mu.Unlock()
		if !skip {
			f.fn()
		}
	}
}

func TestEstimate(t *testing.T) {
	st := style.Default()
	p := &document.Page{Blocks: []document.Block{
		{Sections: []document.Section{{
			Content: document.Lines{"a", "b", "c"},
			Rewards: make([]document.Reward, 3),
		}}},
		{Sections: []document.Section{{}, {Content: document.Lines{"d"}}}},
	}}
	// 400 base, 2 blocks, (2+5+3) + 2 + (2+1) = 15 line units
	want := 400 + 360 + 15*st.LinePitch()
	if got := Estimate(p, st); math.Abs(got-want) > 1e-9 {
		t.Fatalf("Estimate = %v, want %v", got, want)
	}
	if got := Estimate(&document.Page{}, st); got != 400 {
		t.Fatalf("empty page estimate = %v", got)
	}
	if got := EstimateAll([]document.Page{*p, {}}, st); len(got) != 2 || got[1] != 400 {
		t.Fatalf("EstimateAll = %v", got)
	}
}

func TestReconcilerMonotonicAndCoalesced(t *testing.T) {
	frames := &manualFrames{}
	var commits [][]float64
	r := NewReconciler(WithFrameScheduler(frames), WithCommit(func(h []float64) { commits = append(commits, h) }))
	r.Reset(2)

	if !r.Report(0, 100) {
		t.Fatalf("first measurement should be accepted")
	}
	if r.Report(0, 103) {
		t.Fatalf("growth under the noise threshold should be ignored")
	}
	if r.Report(0, 90) {
		t.Fatalf("a smaller height must never replace an accepted one")
	}
	if !r.Report(0, 200) || !r.Report(1, 50) {
		t.Fatalf("expected growth to be accepted")
	}
	if got := r.Latest(0); got != 200 {
		t.Fatalf("durable holder = %v, want 200", got)
	}
	if got := r.Height(0); got != DefaultHeight {
		t.Fatalf("uncommitted height leaked: %v", got)
	}
	if frames.requested() != 1 {
		t.Fatalf("expected one frame for the batch, got %d", frames.requested())
	}
	if r.Pending() != 2 {
		t.Fatalf("Pending = %d", r.Pending())
	}

	frames.run()
	if len(commits) != 1 {
		t.Fatalf("expected a single commit, got %d", len(commits))
	}
	if h := r.Heights(); h[0] != 200 || h[1] != 50 {
		t.Fatalf("Heights = %v", h)
	}
	if r.Pending() != 0 {
		t.Fatalf("pending not cleared")
	}
}

func TestReconcilerRejectsInvalid(t *testing.T) {
	r := NewReconciler(WithFrameScheduler(&manualFrames{}))
	r.Reset(1)
	for _, h := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		if r.Report(0, h) {
			t.Errorf("Report(%v) accepted", h)
		}
	}
	if r.Report(1, 100) || r.Report(-1, 100) {
		t.Errorf("out of range index accepted")
	}
}

func TestReporterInertAfterReset(t *testing.T) {
	frames := &manualFrames{}
	r := NewReconciler(WithFrameScheduler(frames))
	r.Reset(1)
	stale := r.Reporter(0)
	stale(300)
	r.Reset(1)
	stale(400)
	frames.run()
	if got := r.Latest(0); got != DefaultHeight {
		t.Fatalf("stale reporter wrote %v", got)
	}
	if got := r.Heights(); got[0] != 0 {
		t.Fatalf("cancelled frame committed %v", got)
	}
}

func TestSeedNeverShrinksMeasured(t *testing.T) {
	st := style.Default()
	pages := []document.Page{{}, {}}
	r := NewReconciler(WithFrameScheduler(&manualFrames{}))
	r.Reset(2)
	r.Report(0, 5000)
	r.Flush()
	r.Seed(pages, st)
	h := r.Heights()
	if h[0] != 5000 {
		t.Fatalf("measured page shrank to %v", h[0])
	}
	if h[1] != Estimate(&pages[1], st) {
		t.Fatalf("estimate not applied: %v", h[1])
	}
	bigger := st
	bigger.Pad.T = 6000
	r.Seed(pages, bigger)
	if h := r.Heights(); h[0] != Estimate(&pages[0], bigger) {
		t.Fatalf("larger estimate should win: %v", h[0])
	}
}

func TestTimerSchedulerCommits(t *testing.T) {
	done := make(chan []float64, 1)
	r := NewReconciler(WithCommit(func(h []float64) { done <- h }))
	r.Reset(1)
	r.Report(0, 321)
	select {
	case h := <-done:
		if h[0] != 321 {
			t.Fatalf("committed %v", h)
		}
	case <-time.After(time.Second):
		t.Fatalf("frame never committed")
	}
}

func TestExtentsAndGate(t *testing.T) {
	ext := Extents([]float64{1000, 1001, 1000}, 0.5, 16)
	want := []Extent{{0, 500}, {516, 1017}, {1033, 1533}}
	for i := range want {
		if ext[i] != want[i] {
			t.Fatalf("Extents[%d] = %+v, want %+v", i, ext[i], want[i])
		}
	}

	g := NewGate(LookAhead)
	entered, left := g.Update(ext, Viewport{Top: 0, Height: 200})
	if len(entered) != 2 || entered[0] != 0 || entered[1] != 1 || len(left) != 0 {
		t.Fatalf("entered=%v left=%v", entered, left)
	}
	entered, left = g.Update(ext, Viewport{Top: 1200, Height: 100})
	if len(entered) != 1 || entered[0] != 2 || len(left) != 1 || left[0] != 0 {
		t.Fatalf("entered=%v left=%v", entered, left)
	}
	if !g.Visible(1) || g.Visible(0) {
		t.Fatalf("unexpected visibility")
	}
	_, left = g.Update(ext[:1], Viewport{Top: 1200, Height: 100})
	if len(left) != 2 {
		t.Fatalf("pages beyond the list should leave, got %v", left)
	}
}

func TestSameCell(t *testing.T) {
	p := &document.Page{}
	a := CellProps{Page: p, Zoom: 0.5, Style: style.Default(), EstHeight: 1000}
	b := a
	b.EstHeight = 1004
	if !SameCell(a, b) {
		t.Fatalf("small height change should reuse the cell")
	}
	b.EstHeight = 1005
	if SameCell(a, b) {
		t.Fatalf("height change at the threshold should re-render")
	}
	c := a
	c.Style.TitleColor = "#000"
	if SameCell(a, c) {
		t.Fatalf("style change should re-render")
	}
	d := a
	d.Page = &document.Page{}
	if SameCell(a, d) {
		t.Fatalf("page change should re-render")
	}
}

func TestViewMountsNearViewport(t *testing.T) {
	doc := &document.Document{}
	for i := 0; i < 10; i++ {
		doc.Pages = append(doc.Pages, document.Page{Blocks: []document.Block{{
			Sections: []document.Section{{Content: document.Lines{"line one", "line two"}}},
		}}})
	}
	v := NewView(page.NewRenderer(), WithReconciler(NewReconciler(WithFrameScheduler(&manualFrames{}))))
	v.Load(doc)
	if err := v.SetZoom(0.5); err != nil {
		t.Fatal(err)
	}
	v.SetViewport(Viewport{Height: 600})
	ctx := context.Background()
	if err := v.Scroll(ctx, 0); err != nil {
		t.Fatal(err)
	}
	mounted := func() []int {
		var out []int
		for _, c := range v.Cells() {
			if c.Mounted {
				out = append(out, c.Index)
			}
		}
		return out
	}
	first := mounted()
	if len(first) == 0 || first[0] != 0 || len(first) >= len(doc.Pages) {
		t.Fatalf("mounted after load = %v", first)
	}
	cells := v.Cells()
	if w := cells[0].Image.Bounds().Dx(); w != 375 {
		t.Fatalf("surface width at 50%% = %d", w)
	}
	before := v.Reconciler().Heights()

	if err := v.Scroll(ctx, 3000); err != nil {
		t.Fatal(err)
	}
	after := mounted()
	if len(after) == 0 || after[0] == 0 || after[len(after)-1] != 9 {
		t.Fatalf("mounted after scroll = %v", after)
	}
	if v.Cells()[0].Image != nil {
		t.Fatalf("page 0 should be unmounted")
	}
	v.Reconciler().Flush()
	for i, h := range v.Reconciler().Heights() {
		if h < before[i] {
			t.Fatalf("page %d shrank from %v to %v", i, before[i], h)
		}
	}
	if err := v.SetZoom(0); err == nil {
		t.Fatalf("zero zoom should be rejected")
	}
}
