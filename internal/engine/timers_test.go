package engine

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"go.klb.dev/secureclip/internal/events"
)

func TestModeControllerExpiry(t *testing.T) {
	m := modeController{window: 10 * time.Second}
	if m.expired(epoch.Add(time.Hour)) {
		t.Fatal("Auto reported expired")
	}
	m.toggle(epoch)
	if m.expired(epoch.Add(9900 * time.Millisecond)) {
		t.Error("expired at t0+9.9s")
	}
	if !m.expired(epoch.Add(10 * time.Second)) {
		t.Error("not expired at t0+10s")
	}
}

func TestModeControllerToggleRearms(t *testing.T) {
	m := modeController{window: 10 * time.Second}
	m.toggle(epoch)
	m.toggle(epoch.Add(time.Second))
	if m.mode != ModeAuto || !m.deadline.IsZero() {
		t.Fatalf("after second toggle: %+v", m)
	}
	m.toggle(epoch.Add(5 * time.Second))
	if want := epoch.Add(15 * time.Second); !m.deadline.Equal(want) {
		t.Errorf("deadline = %v, want %v", m.deadline, want)
	}
}

func TestForceDecryptExpiresOnTick(t *testing.T) {
	h := newHarness(t, nil)
	h.e.toggle()
	h.sink.take()

	h.clock.Advance(9900 * time.Millisecond)
	h.tick()
	if s := h.e.snapshot(); s.Mode != ModeForceDecrypt {
		t.Fatalf("mode at t0+9.9s = %v", s.Mode)
	}
	if evs := h.sink.take(); len(evs) != 0 {
		t.Fatalf("events before expiry = %+v", evs)
	}

	h.clock.Advance(100 * time.Millisecond)
	h.tick()
	if s := h.e.snapshot(); s.Mode != ModeAuto {
		t.Fatalf("mode at t0+10s = %v", s.Mode)
	}
	evs := h.sink.take()
	if len(evs) != 1 || evs[0].Kind != events.KindModeChanged || evs[0].Payload != "auto" {
		t.Fatalf("events = %+v, want mode_changed auto", evs)
	}

	h.clock.Advance(time.Minute)
	h.tick()
	if evs := h.sink.take(); len(evs) != 0 {
		t.Errorf("events after expiry = %+v", evs)
	}
}

func TestUnrelatedActivityDoesNotExtendForceDecrypt(t *testing.T) {
	h := newHarness(t, nil)
	h.e.toggle()
	h.clock.Advance(5 * time.Second)
	h.port.Set("typing")
	h.tick()
	if s := h.e.snapshot(); !s.ForceDecryptUntil.Equal(epoch.Add(10 * time.Second)) {
		t.Errorf("ForceDecryptUntil = %v", s.ForceDecryptUntil)
	}
}

func TestClearAfterWriteBack(t *testing.T) {
	h := newHarness(t, nil)
	h.port.Set("hello")
	h.tick()
	h.sink.take()

	h.clock.Advance(29900 * time.Millisecond)
	h.tick()
	if h.port.Text() == "" {
		t.Fatal("cleared before deadline")
	}

	h.clock.Advance(100 * time.Millisecond)
	h.tick()
	if got := h.port.Text(); got != "" {
		t.Fatalf("clipboard at t0+30s = %q, want empty", got)
	}
	if diff := cmp.Diff([]events.Kind{events.KindCleared}, h.sink.kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}
	if s := h.e.snapshot(); !s.ClearAt.IsZero() {
		t.Errorf("ClearAt after firing = %v", s.ClearAt)
	}

	// The next external copy is a fresh change, even if it repeats.
	h.port.Set("hello")
	h.tick()
	if diff := cmp.Diff([]events.Kind{events.KindEncrypted}, h.sink.kinds()); diff != "" {
		t.Errorf("events after clear (-want +got):\n%s", diff)
	}
}

func TestClearDeadlineSuperseded(t *testing.T) {
	h := newHarness(t, nil)
	h.port.Set("first")
	h.tick()

	h.clock.Advance(5 * time.Second)
	h.port.Set("second")
	h.tick()
	if s := h.e.snapshot(); !s.ClearAt.Equal(epoch.Add(35 * time.Second)) {
		t.Fatalf("ClearAt = %v, want t0+35s", s.ClearAt)
	}

	h.clock.Set(epoch.Add(30 * time.Second))
	h.tick()
	if h.port.Text() == "" {
		t.Fatal("cleared by superseded deadline")
	}

	h.clock.Set(epoch.Add(35 * time.Second))
	h.tick()
	if got := h.port.Text(); got != "" {
		t.Fatalf("clipboard at t0+35s = %q, want empty", got)
	}
	var clears int
	for _, k := range h.sink.kinds() {
		if k == events.KindCleared {
			clears++
		}
	}
	if clears != 1 {
		t.Errorf("cleared %d times, want 1", clears)
	}
}

func TestExternalWriteDoesNotArmClear(t *testing.T) {
	h := newHarness(t, nil)
	env := h.encrypt(t, "secret")
	h.port.Set(env)
	h.tick() // Auto leaves it alone.
	if s := h.e.snapshot(); !s.ClearAt.IsZero() {
		t.Fatalf("ClearAt = %v, want unarmed", s.ClearAt)
	}
	h.clock.Advance(time.Minute)
	h.tick()
	if got := h.port.Text(); got != env {
		t.Errorf("clipboard = %q, want untouched", got)
	}
}

func TestReadBackpressure(t *testing.T) {
	h := newHarness(t, nil)
	backoff := []time.Duration{100 * time.Millisecond, 100 * time.Millisecond}

	// Each failed tick exhausts three read attempts.
	h.port.FailReads(6 * 3)
	for i := 1; i <= 5; i++ {
		h.clock.ResetSleeps()
		h.tick()
		if diff := cmp.Diff(backoff, h.clock.Sleeps()); diff != "" {
			t.Fatalf("tick %d sleeps (-want +got):\n%s", i, diff)
		}
		if got := h.e.consecutiveErrors; got != i {
			t.Fatalf("tick %d: consecutiveErrors = %d", i, got)
		}
	}
	if evs := h.sink.take(); len(evs) != 0 {
		t.Fatalf("events before cooldown = %+v", evs)
	}

	h.clock.ResetSleeps()
	h.tick()
	want := append(append([]time.Duration(nil), backoff...), 2*time.Second)
	if diff := cmp.Diff(want, h.clock.Sleeps()); diff != "" {
		t.Fatalf("tick 6 sleeps (-want +got):\n%s", diff)
	}
	if got := h.e.consecutiveErrors; got != 0 {
		t.Fatalf("consecutiveErrors after cooldown = %d", got)
	}
	if diff := cmp.Diff([]events.Kind{events.KindError}, h.sink.kinds()); diff != "" {
		t.Errorf("events (-want +got):\n%s", diff)
	}

	h.port.Set("hello")
	h.clock.ResetSleeps()
	h.tick()
	if got := h.e.consecutiveErrors; got != 0 {
		t.Errorf("consecutiveErrors after success = %d", got)
	}
	if len(h.clock.Sleeps()) != 0 {
		t.Errorf("sleeps on success = %v", h.clock.Sleeps())
	}
}

func TestFailedReadLeavesStateAlone(t *testing.T) {
	h := newHarness(t, nil)
	h.port.Set("hello")
	h.tick()
	before := h.e.snapshot()

	h.port.FailReads(3)
	h.tick()
	after := h.e.snapshot()
	after.ConsecutiveErrors = 0
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("state changed on failed tick (-before +after):\n%s", diff)
	}
}

func TestConfigNormalize(t *testing.T) {
	for _, tc := range []struct {
		in, want time.Duration
	}{
		{0, 2 * time.Second},
		{time.Second, 2 * time.Second},
		{3 * time.Second, 3 * time.Second},
		{time.Minute, 5 * time.Second},
	} {
		got := Config{Cooldown: tc.in}.normalize().Cooldown
		if got != tc.want {
			t.Errorf("Cooldown %v normalized to %v, want %v", tc.in, got, tc.want)
		}
	}
	if got := (Config{}).normalize(); got != DefaultConfig() {
		t.Errorf("zero config normalized to %+v", got)
	}
}

func TestParseDecryptAction(t *testing.T) {
	for in, want := range map[string]DecryptAction{
		"":         DecryptReplace,
		"replace":  DecryptReplace,
		" Display": DecryptDisplay,
	} {
		got, err := ParseDecryptAction(in)
		if err != nil || got != want {
			t.Errorf("ParseDecryptAction(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseDecryptAction("show"); err == nil {
		t.Error("ParseDecryptAction(show) succeeded")
	}
}
