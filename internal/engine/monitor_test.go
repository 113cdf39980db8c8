package engine

import (
	"testing"
	"time"

	"github.com/pulsewatch/pulsewatch/internal/model"
)

func gapAlert(id string, lastSample int64) *model.AlertConfig {
	a := newAlert()
	a.ID = id
	a.EnterThreshold = 3
	a.MissingAsBreach = true
	a.ExpectedInterval = 30
	a.State.LastSampleAt = lastSample
	return a
}

func newTestMonitor(fs *fakeStore, fd *fakeDispatcher, now int64) *Monitor {
	m := NewMonitor(New(fs, fd), DefaultSweepInterval)
	m.now = func() time.Time { return time.Unix(now, 0) }
	return m
}

func TestSweep_SingleSyntheticBreachPerTick(t *testing.T) {
	// 70s since the last sample with a 30s expected interval: 2.33
	// intervals elapsed, still exactly one synthetic breach per tick.
	fs := newFakeStore(gapAlert("a1", 1000-70))
	fd := &fakeDispatcher{}
	m := newTestMonitor(fs, fd, 1000)

	m.Sweep()

	st := fs.state("a1")
	if st.ConsecutiveBreaches != 1 {
		t.Errorf("ConsecutiveBreaches: got %d, want 1 (no backfill of missed ticks)", st.ConsecutiveBreaches)
	}
}

func TestSweep_NoGapBelowTwoIntervals(t *testing.T) {
	// 45s elapsed < 2x30s: jitter, not a gap.
	fs := newFakeStore(gapAlert("a1", 1000-45))
	fd := &fakeDispatcher{}
	m := newTestMonitor(fs, fd, 1000)

	m.Sweep()

	if st := fs.state("a1"); st.ConsecutiveBreaches != 0 {
		t.Errorf("ConsecutiveBreaches: got %d, want 0", st.ConsecutiveBreaches)
	}
}

func TestSweep_DoesNotAdvanceLastSample(t *testing.T) {
	fs := newFakeStore(gapAlert("a1", 1000-70))
	fd := &fakeDispatcher{}
	m := newTestMonitor(fs, fd, 1000)

	m.Sweep()

	if st := fs.state("a1"); st.LastSampleAt != 1000-70 {
		t.Errorf("LastSampleAt: got %d, want unchanged %d (sweep must not mask further gaps)",
			st.LastSampleAt, 1000-70)
	}
}

func TestSweep_ActivatesAndTagsMissingData(t *testing.T) {
	a := gapAlert("a1", 1000-70)
	a.EnterThreshold = 1
	fs := newFakeStore(a)
	fd := &fakeDispatcher{}
	m := newTestMonitor(fs, fd, 1000)

	m.Sweep()

	reqs := fd.all()
	if len(reqs) != 1 || reqs[0].Kind != model.KindEntered {
		t.Fatalf("expected one entered dispatch, got %d", len(reqs))
	}
	if reqs[0].Reason != model.ReasonMissingData {
		t.Errorf("Reason: got %q, want %q", reqs[0].Reason, model.ReasonMissingData)
	}
	if reqs[0].Value != model.MissingValue {
		t.Errorf("Value: got %q, want %q", reqs[0].Value, model.MissingValue)
	}
}

func TestSweep_RepeatedTicksAccumulate(t *testing.T) {
	fs := newFakeStore(gapAlert("a1", 1000-70))
	fd := &fakeDispatcher{}

	// Three sweep ticks, 10s apart, each one synthetic breach: the alert
	// enters on the third.
	for i, now := range []int64{1000, 1010, 1020} {
		m := newTestMonitor(fs, fd, now)
		m.Sweep()
		if st := fs.state("a1"); st.ConsecutiveBreaches != i+1 {
			t.Fatalf("after tick %d: ConsecutiveBreaches = %d, want %d", i+1, st.ConsecutiveBreaches, i+1)
		}
	}

	reqs := fd.all()
	if len(reqs) != 1 || reqs[0].Kind != model.KindEntered {
		t.Fatalf("expected entered after third synthetic breach, got %d requests", len(reqs))
	}
	if !fs.state("a1").Active {
		t.Error("Active: got false, want true")
	}
}

func TestGapDetected_NeverSampled(t *testing.T) {
	a := gapAlert("a1", 0)
	if gapDetected(a, 99999) {
		t.Error("an alert with no data ever received must never be considered missing")
	}
}
