package engine

import (
	"testing"

	"github.com/pulsewatch/pulsewatch/internal/model"
)

// newAlert returns a ">80" alert with the standard 3-in/3-out hysteresis
// used by most machine tests.
func newAlert() *model.AlertConfig {
	return &model.AlertConfig{
		ID:             "a1",
		TenantID:       "t1",
		Metric:         "cpu",
		Condition:      ">",
		Threshold:      "80",
		EnterThreshold: 3,
		ExitThreshold:  3,
		RepeatInterval: 300,
		Enabled:        true,
	}
}

// feed runs a sequence of observations one second apart starting at ts
// and returns all emitted notification requests.
func feed(cfg *model.AlertConfig, ts int64, values ...string) []*model.NotificationRequest {
	var out []*model.NotificationRequest
	for i, v := range values {
		out = append(out, observe(cfg, v, ts+int64(i), false)...)
	}
	return out
}

func kinds(reqs []*model.NotificationRequest) []model.TransitionKind {
	out := make([]model.TransitionKind, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, r.Kind)
	}
	return out
}

func TestObserve_EnterAfterThreeBreaches(t *testing.T) {
	cfg := newAlert()
	reqs := feed(cfg, 1000, "92", "95", "98")

	if len(reqs) != 1 || reqs[0].Kind != model.KindEntered {
		t.Fatalf("expected exactly one entered notification, got %v", kinds(reqs))
	}
	if !cfg.State.Active {
		t.Error("Active: got false, want true")
	}
	if cfg.State.ConsecutiveBreaches != 3 {
		t.Errorf("ConsecutiveBreaches: got %d, want 3", cfg.State.ConsecutiveBreaches)
	}
	if cfg.State.LastNotifiedAt != 1002 {
		t.Errorf("LastNotifiedAt: got %d, want 1002", cfg.State.LastNotifiedAt)
	}
	if reqs[0].ConsecutiveBreaches != 3 {
		t.Errorf("payload ConsecutiveBreaches: got %d, want 3", reqs[0].ConsecutiveBreaches)
	}
}

func TestObserve_NoNotificationBelowEnterThreshold(t *testing.T) {
	cfg := newAlert()
	reqs := feed(cfg, 1000, "92", "95")

	if len(reqs) != 0 {
		t.Fatalf("expected no notifications, got %v", kinds(reqs))
	}
	if cfg.State.Active {
		t.Error("Active: got true, want false")
	}
	if cfg.State.ConsecutiveBreaches != 2 {
		t.Errorf("ConsecutiveBreaches: got %d, want 2", cfg.State.ConsecutiveBreaches)
	}
}

func TestObserve_NonBreachResetsBreachCountWhileNormal(t *testing.T) {
	cfg := newAlert()
	feed(cfg, 1000, "92", "95", "50")

	if cfg.State.ConsecutiveBreaches != 0 {
		t.Errorf("ConsecutiveBreaches: got %d, want 0", cfg.State.ConsecutiveBreaches)
	}
	if cfg.State.Active {
		t.Error("Active: got true, want false")
	}
}

func TestObserve_RecoverAfterThreeNonBreaches(t *testing.T) {
	cfg := newAlert()
	reqs := feed(cfg, 1000, "92", "95", "98", "75", "70", "65")

	want := []model.TransitionKind{model.KindEntered, model.KindRecovered}
	got := kinds(reqs)
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("kinds: got %v, want %v", got, want)
	}
	if cfg.State.Active {
		t.Error("Active: got true, want false")
	}
	if cfg.State.ConsecutiveRecoveries != 3 {
		t.Errorf("ConsecutiveRecoveries: got %d, want 3", cfg.State.ConsecutiveRecoveries)
	}
}

func TestObserve_ContestedRecovery_KeepsProgress(t *testing.T) {
	cfg := newAlert()
	reqs := feed(cfg, 1000, "92", "95", "98", "75", "70", "92")

	if len(reqs) != 1 {
		// Only the entered notification; the stray breach is within the
		// repeat interval.
		t.Fatalf("expected only the entered notification, got %v", kinds(reqs))
	}
	if !cfg.State.Active {
		t.Error("Active: got false, want true")
	}
	if cfg.State.ConsecutiveRecoveries != 2 {
		t.Errorf("ConsecutiveRecoveries: got %d, want 2 (stray breach must not reset)", cfg.State.ConsecutiveRecoveries)
	}
	if cfg.State.ConsecutiveBreaches != 1 {
		t.Errorf("ConsecutiveBreaches: got %d, want 1", cfg.State.ConsecutiveBreaches)
	}
}

func TestObserve_FullRebreach_DiscardsRecovery(t *testing.T) {
	cfg := newAlert()
	reqs := feed(cfg, 1000, "92", "95", "98", "75", "70", "92", "93", "94")

	// entered only: re-reaching the enter threshold while active must not
	// re-emit entered.
	if len(reqs) != 1 || reqs[0].Kind != model.KindEntered {
		t.Fatalf("kinds: got %v, want [entered]", kinds(reqs))
	}
	if cfg.State.ConsecutiveRecoveries != 0 {
		t.Errorf("ConsecutiveRecoveries: got %d, want 0 after full re-breach", cfg.State.ConsecutiveRecoveries)
	}
	if !cfg.State.Active {
		t.Error("Active: got false, want true")
	}
}

func TestObserve_RepeatThrottledByInterval(t *testing.T) {
	cfg := newAlert()
	cfg.RepeatInterval = 60
	feed(cfg, 1000, "92", "95", "98") // enters at ts=1002

	// Breaches every 10s stay silent until 60s have elapsed.
	var reqs []*model.NotificationRequest
	for ts := int64(1012); ts < 1062; ts += 10 {
		reqs = append(reqs, observe(cfg, "99", ts, false)...)
	}
	if len(reqs) != 0 {
		t.Fatalf("expected no repeats before the interval, got %v", kinds(reqs))
	}

	reqs = observe(cfg, "99", 1062, false)
	if len(reqs) != 1 || reqs[0].Kind != model.KindActive {
		t.Fatalf("expected one active repeat at interval, got %v", kinds(reqs))
	}
	if cfg.State.LastNotifiedAt != 1062 {
		t.Errorf("LastNotifiedAt: got %d, want 1062", cfg.State.LastNotifiedAt)
	}

	// The next repeat is measured from the new LastNotifiedAt.
	reqs = observe(cfg, "99", 1100, false)
	if len(reqs) != 0 {
		t.Fatalf("expected throttled repeat, got %v", kinds(reqs))
	}
}

func TestObserve_FullRebreachEligibleForRepeat(t *testing.T) {
	cfg := newAlert()
	cfg.RepeatInterval = 60
	feed(cfg, 1000, "92", "95", "98", "75", "70")

	// Three consecutive re-breaches past the repeat interval: the
	// recovery attempt fails and the run emits a repeat, not an entered.
	var reqs []*model.NotificationRequest
	reqs = append(reqs, observe(cfg, "92", 1100, false)...)
	reqs = append(reqs, observe(cfg, "93", 1101, false)...)
	reqs = append(reqs, observe(cfg, "94", 1102, false)...)

	if cfg.State.ConsecutiveRecoveries != 0 {
		t.Errorf("ConsecutiveRecoveries: got %d, want 0", cfg.State.ConsecutiveRecoveries)
	}
	found := false
	for _, r := range reqs {
		if r.Kind == model.KindEntered {
			t.Error("entered must not re-fire while already active")
		}
		if r.Kind == model.KindActive {
			found = true
		}
	}
	if !found {
		t.Error("expected an active repeat once the interval elapsed")
	}
}

func TestObserve_MissingDataCountsAsBreach(t *testing.T) {
	cfg := newAlert()
	cfg.EnterThreshold = 1

	reqs := observe(cfg, model.MissingValue, 1000, true)
	if len(reqs) != 1 || reqs[0].Kind != model.KindEntered {
		t.Fatalf("expected entered from synthetic breach, got %v", kinds(reqs))
	}
	if reqs[0].Reason != model.ReasonMissingData {
		t.Errorf("Reason: got %q, want %q", reqs[0].Reason, model.ReasonMissingData)
	}
	if reqs[0].Value != model.MissingValue {
		t.Errorf("Value: got %q, want sentinel", reqs[0].Value)
	}
}

func TestObserve_NonNumericValueIsNonBreach(t *testing.T) {
	cfg := newAlert()
	cfg.State.Active = true
	cfg.State.ConsecutiveBreaches = 3

	observe(cfg, "garbage", 1000, false)
	if cfg.State.ConsecutiveRecoveries != 1 {
		t.Errorf("ConsecutiveRecoveries: got %d, want 1 (fail-open counts as non-breach)", cfg.State.ConsecutiveRecoveries)
	}
	if cfg.State.ConsecutiveBreaches != 0 {
		t.Errorf("ConsecutiveBreaches: got %d, want 0", cfg.State.ConsecutiveBreaches)
	}
}

func TestObserve_RecoveredKeepsLastNotifiedAt(t *testing.T) {
	cfg := newAlert()
	feed(cfg, 1000, "92", "95", "98")
	notified := cfg.State.LastNotifiedAt

	feed(cfg, 1010, "10", "10", "10")
	if cfg.State.Active {
		t.Fatal("Active: got true, want false")
	}
	if cfg.State.LastNotifiedAt != notified {
		t.Errorf("LastNotifiedAt: got %d, want unchanged %d", cfg.State.LastNotifiedAt, notified)
	}
}
