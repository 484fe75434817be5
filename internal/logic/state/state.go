// Package state holds the shared motion state: per-axis step counters,
// session flags and axis ownership. Every control task (sensor monitor,
// button watchers, scheduler, init) receives the same *State handle at
// spawn time; there are no package-level globals.
package state

import (
	"sync"
	"sync/atomic"
	"time"
)

// Axis identifies one of the three motorized axes.
type Axis int

const (
	Tray Axis = iota
	Zoom
	Focus
)

var axisNames = [...]string{"TRAY", "ZOOM", "FOCUS"}

func (a Axis) String() string {
	if a < Tray || a > Focus {
		return "UNKNOWN"
	}
	return axisNames[a]
}

// Axes lists all axes in homing order.
var Axes = []Axis{Tray, Zoom, Focus}

// State is the single shared handle for counters and flags.
//
// The tray counter and rotation offset always change together under the
// tray mutex. Zoom and focus counters each have their own mutex. The
// session flags are atomics: they are single-writer or monotonic within
// a session, and readers only need best-effort visibility between pulses.
type State struct {
	// Session flags.
	Running      atomic.Bool
	ErrorState   atomic.Bool // terminal for the session once set
	Initializing atomic.Bool
	Initialized  atomic.Bool
	Autonomous   atomic.Bool
	AbortAuto    atomic.Bool

	// Opt2Blocked mirrors the optical-2 level as last seen by the
	// sensor monitor. Manual tray spin slows down while it is set.
	Opt2Blocked atomic.Bool

	trayMu         sync.Mutex
	traySteps      int
	rotationOffset int
	fallSeen       bool
	fallTraySteps  int

	zoomMu    sync.Mutex
	zoomSteps int

	focusMu    sync.Mutex
	focusSteps int

	// currentTab is 1-based; 0 means unknown.
	currentTab      atomic.Int32
	currentSpecimen atomic.Int32

	lastUserAction  atomic.Int64 // unix nanos; 0 = never
	lastAutoAdvance atomic.Int64

	owners [3]*OwnerMutex
}

// New creates a State with the tray counter at the given baseline and
// the exhibit showing the default specimen.
func New(trayBaseline, defaultSpecimen int) *State {
	s := &State{traySteps: trayBaseline}
	s.Running.Store(true)
	s.currentSpecimen.Store(int32(defaultSpecimen))
	for i := range s.owners {
		s.owners[i] = NewOwnerMutex()
	}
	return s
}

// Owner returns the ownership mutex serializing all pulse emission on
// the given axis.
func (s *State) Owner(a Axis) *OwnerMutex {
	return s.owners[a]
}

// Steps returns the current step counter for an axis.
func (s *State) Steps(a Axis) int {
	switch a {
	case Tray:
		s.trayMu.Lock()
		defer s.trayMu.Unlock()
		return s.traySteps
	case Zoom:
		s.zoomMu.Lock()
		defer s.zoomMu.Unlock()
		return s.zoomSteps
	default:
		s.focusMu.Lock()
		defer s.focusMu.Unlock()
		return s.focusSteps
	}
}

// Advance commits one or more emitted steps to an axis counter and
// returns the new value. For the tray the rotation offset moves with
// the absolute counter, under the same mutex.
func (s *State) Advance(a Axis, delta int) int {
	switch a {
	case Tray:
		s.trayMu.Lock()
		defer s.trayMu.Unlock()
		s.traySteps += delta
		s.rotationOffset += delta
		return s.traySteps
	case Zoom:
		s.zoomMu.Lock()
		defer s.zoomMu.Unlock()
		s.zoomSteps += delta
		return s.zoomSteps
	default:
		s.focusMu.Lock()
		defer s.focusMu.Unlock()
		s.focusSteps += delta
		return s.focusSteps
	}
}

// Zero resets a zoom/focus counter after homing. Tray is never zeroed;
// it is reset to its baseline at the wide tab instead.
func (s *State) Zero(a Axis) {
	switch a {
	case Zoom:
		s.zoomMu.Lock()
		s.zoomSteps = 0
		s.zoomMu.Unlock()
	case Focus:
		s.focusMu.Lock()
		s.focusSteps = 0
		s.focusMu.Unlock()
	}
}

// ResetTray sets the absolute tray counter to the wide-tab baseline and
// zeroes the rotation offset, as a single atomic transition.
func (s *State) ResetTray(baseline int) {
	s.trayMu.Lock()
	s.traySteps = baseline
	s.rotationOffset = 0
	s.trayMu.Unlock()
}

// RotationOffset returns steps accumulated since the last confirmed
// tab-transition edge.
func (s *State) RotationOffset() int {
	s.trayMu.Lock()
	defer s.trayMu.Unlock()
	return s.rotationOffset
}

// RecordFall snapshots the current tray counter as the optical-2
// falling-edge anchor. A later rising edge, or the scheduler, consumes it.
func (s *State) RecordFall() int {
	s.trayMu.Lock()
	defer s.trayMu.Unlock()
	s.fallSeen = true
	s.fallTraySteps = s.traySteps
	return s.fallTraySteps
}

// PendingFall reports whether a fall was recorded and its anchor.
func (s *State) PendingFall() (anchor int, ok bool) {
	s.trayMu.Lock()
	defer s.trayMu.Unlock()
	return s.fallTraySteps, s.fallSeen
}

// ClearFall discards the pending fall marker.
func (s *State) ClearFall() {
	s.trayMu.Lock()
	s.fallSeen = false
	s.trayMu.Unlock()
}

// CurrentTab returns the 1-based tab index, or 0 if unknown.
func (s *State) CurrentTab() int {
	return int(s.currentTab.Load())
}

func (s *State) SetCurrentTab(tab int) {
	s.currentTab.Store(int32(tab))
}

// CurrentSpecimen returns the 1-based specimen index, or 0 if unknown.
func (s *State) CurrentSpecimen() int {
	return int(s.currentSpecimen.Load())
}

func (s *State) SetCurrentSpecimen(idx int) {
	s.currentSpecimen.Store(int32(idx))
}

// MarkUserActivity records a confirmed user interaction: autonomy is
// suppressed and any automated motion in flight must yield.
func (s *State) MarkUserActivity() {
	s.lastUserAction.Store(time.Now().UnixNano())
	s.Autonomous.Store(false)
	s.AbortAuto.Store(true)
}

// SinceUserActivity returns the time since the last confirmed user
// interaction. Before any interaction it reports a very long duration.
func (s *State) SinceUserActivity() time.Duration {
	return since(s.lastUserAction.Load())
}

// MarkAutoAdvance records a completed autonomous advance.
func (s *State) MarkAutoAdvance() {
	s.lastAutoAdvance.Store(time.Now().UnixNano())
}

// SinceAutoAdvance returns the time since the last completed advance.
func (s *State) SinceAutoAdvance() time.Duration {
	return since(s.lastAutoAdvance.Load())
}

func since(nanos int64) time.Duration {
	if nanos == 0 {
		return time.Duration(1<<62 - 1)
	}
	return time.Since(time.Unix(0, nanos))
}
