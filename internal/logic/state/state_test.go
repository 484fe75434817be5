package state

import (
	"testing"
	"time"
)

func TestAxisString(t *testing.T) {
	cases := []struct {
		axis Axis
		want string
	}{
		{Tray, "TRAY"},
		{Zoom, "ZOOM"},
		{Focus, "FOCUS"},
		{Axis(9), "UNKNOWN"},
	}
	for _, c := range cases {
		if got := c.axis.String(); got != c.want {
			t.Errorf("Axis(%d).String() = %q, want %q", c.axis, got, c.want)
		}
	}
}

func TestNewInitialState(t *testing.T) {
	s := New(10000, 6)

	if !s.Running.Load() {
		t.Error("new state should be running")
	}
	if s.Steps(Tray) != 10000 {
		t.Errorf("tray steps = %d, want baseline 10000", s.Steps(Tray))
	}
	if s.Steps(Zoom) != 0 || s.Steps(Focus) != 0 {
		t.Error("zoom/focus counters should start at zero")
	}
	if s.CurrentSpecimen() != 6 {
		t.Errorf("current specimen = %d, want 6", s.CurrentSpecimen())
	}
	if s.CurrentTab() != 0 {
		t.Errorf("current tab = %d, want 0 (unknown)", s.CurrentTab())
	}
}

func TestAdvanceTrayMovesOffset(t *testing.T) {
	s := New(10000, 6)

	if got := s.Advance(Tray, 150); got != 10150 {
		t.Errorf("Advance returned %d, want 10150", got)
	}
	if got := s.RotationOffset(); got != 150 {
		t.Errorf("rotation offset = %d, want 150", got)
	}

	s.Advance(Tray, -50)
	if got := s.Steps(Tray); got != 10100 {
		t.Errorf("tray steps = %d, want 10100", got)
	}
	if got := s.RotationOffset(); got != 100 {
		t.Errorf("rotation offset = %d, want 100", got)
	}
}

func TestAdvanceZoomFocusIndependent(t *testing.T) {
	s := New(10000, 6)

	s.Advance(Zoom, 7)
	s.Advance(Focus, -3)

	if s.Steps(Zoom) != 7 {
		t.Errorf("zoom steps = %d, want 7", s.Steps(Zoom))
	}
	if s.Steps(Focus) != -3 {
		t.Errorf("focus steps = %d, want -3", s.Steps(Focus))
	}
	if s.RotationOffset() != 0 {
		t.Error("zoom/focus moves must not touch the tray offset")
	}
}

func TestZeroOnlyAffectsZoomFocus(t *testing.T) {
	s := New(10000, 6)
	s.Advance(Zoom, 42)
	s.Advance(Focus, 42)
	s.Advance(Tray, 42)

	s.Zero(Zoom)
	s.Zero(Focus)
	s.Zero(Tray) // no-op

	if s.Steps(Zoom) != 0 || s.Steps(Focus) != 0 {
		t.Error("Zero should reset zoom and focus counters")
	}
	if s.Steps(Tray) != 10042 {
		t.Errorf("tray steps = %d, Zero must not touch the tray", s.Steps(Tray))
	}
}

func TestResetTray(t *testing.T) {
	s := New(10000, 6)
	s.Advance(Tray, 321)

	s.ResetTray(10000)

	if s.Steps(Tray) != 10000 {
		t.Errorf("tray steps = %d, want 10000", s.Steps(Tray))
	}
	if s.RotationOffset() != 0 {
		t.Errorf("rotation offset = %d, want 0 after reset", s.RotationOffset())
	}
}

func TestFallMarkerLifecycle(t *testing.T) {
	s := New(5000, 6)

	if _, ok := s.PendingFall(); ok {
		t.Fatal("no fall should be pending initially")
	}

	if got := s.RecordFall(); got != 5000 {
		t.Errorf("RecordFall anchor = %d, want 5000", got)
	}
	s.Advance(Tray, 120)

	anchor, ok := s.PendingFall()
	if !ok {
		t.Fatal("fall should be pending")
	}
	if anchor != 5000 {
		t.Errorf("anchor = %d, want the snapshot 5000, not the live counter", anchor)
	}

	s.ClearFall()
	if _, ok := s.PendingFall(); ok {
		t.Error("fall should be cleared")
	}
}

func TestMarkUserActivity(t *testing.T) {
	s := New(10000, 6)
	s.Autonomous.Store(true)

	if s.SinceUserActivity() < 24*time.Hour {
		t.Error("before any interaction the idle time should be effectively infinite")
	}

	s.MarkUserActivity()

	if s.SinceUserActivity() > time.Second {
		t.Error("idle time should be near zero right after an interaction")
	}
	if s.Autonomous.Load() {
		t.Error("user activity must drop the autonomous flag")
	}
	if !s.AbortAuto.Load() {
		t.Error("user activity must raise the abort flag")
	}
}

func TestMarkAutoAdvance(t *testing.T) {
	s := New(10000, 6)

	if s.SinceAutoAdvance() < 24*time.Hour {
		t.Error("before any advance the hold time should be effectively infinite")
	}
	s.MarkAutoAdvance()
	if s.SinceAutoAdvance() > time.Second {
		t.Error("hold time should be near zero right after an advance")
	}
}
