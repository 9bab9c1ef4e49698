package export

import (
	"errors"
	"testing"
	"time"
)

func TestTrackerLabelsAndLinger(t *testing.T) {
	changes := make(chan Status, 16)
	tr := NewTracker(WithLinger(20*time.Millisecond), WithOnChange(func(s Status) { changes <- s }))

	steps := []struct {
		ev    Progress
		label string
	}{
		{Progress{Phase: PhaseRender, Current: 0, Total: 2}, "Rendering page 0/2"},
		{Progress{Phase: PhaseRender, Current: 2, Total: 2}, "Rendering page 2/2"},
		{Progress{Phase: PhaseZip, Current: 40, Total: 100}, "Packaging 40%"},
		{Progress{Phase: PhaseWrite, Current: 100, Total: 100}, "Writing 100%"},
		{Progress{Phase: PhaseDone, Current: 2, Total: 2}, "Exported 2 pages"},
	}
	for _, s := range steps {
		tr.Observe(s.ev)
		if got := (<-changes).Label(); got != s.label {
			t.Fatalf("label = %q, want %q", got, s.label)
		}
	}
	if tr.Busy() {
		t.Fatalf("finished export should not be busy")
	}
	select {
	case s := <-changes:
		if s.Label() != "" || s.Active {
			t.Fatalf("expected idle status after linger, got %+v", s)
		}
	case <-time.After(time.Second):
		t.Fatalf("status never reset")
	}
	if tr.Status() != (Status{}) {
		t.Fatalf("status = %+v", tr.Status())
	}
}

func TestTrackerFailure(t *testing.T) {
	tr := NewTracker(WithLinger(time.Hour))
	tr.Observe(Progress{Phase: PhaseRender, Current: 1, Total: 3})
	if !tr.Busy() {
		t.Fatalf("expected busy")
	}
	tr.Fail(errors.New("disk full"))
	if got := tr.Status().Label(); got != "Export failed: disk full" {
		t.Fatalf("label = %q", got)
	}
	tr.Observe(Progress{Phase: PhaseRender, Current: 0, Total: 1})
	if st := tr.Status(); st.Err != nil || !st.Active || st.Pages != 1 {
		t.Fatalf("new export should clear the failure: %+v", st)
	}
}
