// Package homing establishes the absolute position of each axis at
// startup: zoom and focus against their limit switches, the tray
// against the wide calibration tab seen by both optical sensors.
package homing

import (
	"errors"
	"fmt"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/display"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/logic/motion"
	"github.com/mindatnh/scopego/internal/logic/specimen"
	"github.com/mindatnh/scopego/internal/logic/state"
)

const lockTimeout = 5 * time.Second

// Sequencer runs the one-shot initialization: home all axes, advance
// to the first displayed tab and apply its specimen's stored targets.
type Sequencer struct {
	drv    gpio.Driver
	cfg    *config.Config
	st     *state.State
	ctrl   *motion.Controller
	store  *specimen.Store
	notify display.Notifier
}

func New(drv gpio.Driver, cfg *config.Config, st *state.State,
	ctrl *motion.Controller, store *specimen.Store, notify display.Notifier) *Sequencer {
	return &Sequencer{drv: drv, cfg: cfg, st: st, ctrl: ctrl, store: store, notify: notify}
}

// limitPin returns the homing switch pin for zoom/focus.
func (s *Sequencer) limitPin(a state.Axis) int {
	if a == state.Zoom {
		return s.cfg.Sensors.LimitZoomPin
	}
	return s.cfg.Sensors.LimitFocusPin
}

// HomeAxis drives a zoom/focus axis toward its limit switch, trying
// forward then reverse, backs off the switch and zeroes the counter.
// The search emits raw pulses: the counter has no meaning until zeroed.
func (s *Sequencer) HomeAxis(a state.Axis) error {
	if a == state.Tray {
		return fmt.Errorf("homing: tray homes against the wide tab, not a limit switch")
	}
	debug.Info("Homing %s axis...", a)

	owner := s.st.Owner(a)
	if !owner.LockTimeout(lockTimeout) {
		return motion.ErrLockBusy
	}
	defer owner.Unlock()

	pin := s.limitPin(a)
	delay := s.cfg.StepDelayFast()
	foundDir := false
	found := false

	for _, forward := range []bool{true, false} {
		if err := s.ctrl.SetDirection(a, forward); err != nil {
			return err
		}
		for i := 0; i < s.cfg.Motion.MaxInitSteps; i++ {
			if !s.st.Running.Load() {
				return motion.ErrMoveAborted
			}
			if err := s.ctrl.PulseRaw(a, delay); err != nil {
				return err
			}
			if gpio.SafeRead(s.drv, pin) == gpio.High {
				debug.Info("%s limit found (dir=%v)", a, forward)
				found = true
				foundDir = forward
				break
			}
			if i%1500 == 0 {
				debug.Verbose("%s homing: i=%d limit=%v", a, i, gpio.SafeRead(s.drv, pin))
			}
		}
		if found {
			break
		}
	}
	if !found {
		debug.Info("%s limit not found during homing", a)
		return motion.ErrHomingFailed
	}

	// Back off the switch, then that position is zero.
	if err := s.ctrl.SetDirection(a, !foundDir); err != nil {
		return err
	}
	for i := 0; i < s.cfg.Motion.BackoffSteps; i++ {
		if !s.st.Running.Load() {
			return motion.ErrMoveAborted
		}
		if err := s.ctrl.PulseRaw(a, delay); err != nil {
			return err
		}
	}
	s.st.Zero(a)
	debug.Info("%s homed and zeroed", a)
	return nil
}

// HomeTray rotates slowly until both optical sensors agree on the wide
// tab for InitDebounceCount consecutive samples, then resets the
// absolute origin. The sensor monitor observes the same condition while
// this runs but leaves the counters to this sequencer.
func (s *Sequencer) HomeTray() error {
	debug.Info("Homing TRAY (scanning for wide tab)...")

	owner := s.st.Owner(state.Tray)
	if !owner.LockTimeout(lockTimeout) {
		return motion.ErrLockBusy
	}
	defer owner.Unlock()

	if err := s.ctrl.SetDirection(state.Tray, true); err != nil {
		return err
	}

	opt1 := s.cfg.Sensors.Optical1Pin
	opt2 := s.cfg.Sensors.Optical2Pin
	delay := s.cfg.StepDelaySlow()
	consecutive := 0
	stepsTaken := 0

	for stepsTaken < s.cfg.Motion.MaxInitSteps && s.st.Running.Load() {
		s1 := gpio.SafeRead(s.drv, opt1) == gpio.High
		s2 := gpio.SafeRead(s.drv, opt2) == gpio.High
		if s1 && s2 {
			consecutive++
			if consecutive >= s.cfg.Motion.InitDebounceCount {
				s.st.ResetTray(s.cfg.Motion.TrayBaseline)
				s.st.SetCurrentTab(1)
				debug.Info("Wide tab confirmed after %d steps; tray counter reset to %d",
					stepsTaken, s.cfg.Motion.TrayBaseline)
				return nil
			}
		} else {
			consecutive = 0
		}

		if err := s.ctrl.StepCommitted(state.Tray, true, delay); err != nil {
			return err
		}
		stepsTaken++

		if stepsTaken%500 == 0 {
			debug.Verbose("TRAY homing: steps=%d s1=%v s2=%v", stepsTaken, s1, s2)
		}
	}
	if !s.st.Running.Load() {
		return motion.ErrMoveAborted
	}
	debug.Info("TRAY homing timed out before finding the wide tab")
	return motion.ErrHomingFailed
}

// Run executes the full initialization sequence: zoom, focus, tray,
// then advance to the next tab and apply that specimen's stored
// defaults. Zoom/focus homing failures are logged but only a tray
// failure leaves the system uninitialized.
func (s *Sequencer) Run() {
	s.st.Initializing.Store(true)
	defer func() {
		s.st.Initializing.Store(false)
		debug.Info("Initialization finished (initialized=%v)", s.st.Initialized.Load())
	}()

	debug.Summary("Initialization (zoom -> focus -> tray)")

	if err := s.HomeAxis(state.Zoom); err != nil {
		debug.Error(fmt.Errorf("zoom homing: %w", err))
		if isFatal(err) {
			return
		}
	}
	if err := s.HomeAxis(state.Focus); err != nil {
		debug.Error(fmt.Errorf("focus homing: %w", err))
		if isFatal(err) {
			return
		}
	}

	if err := s.homeTrayAndAdvance(); err != nil {
		debug.Error(fmt.Errorf("tray initialization: %w", err))
		return
	}

	s.st.Initialized.Store(true)
	s.st.MarkAutoAdvance() // hold the first specimen for a full dwell
	debug.Info("Initialization succeeded; holding first specimen")
}

// homeTrayAndAdvance finds the wide tab, moves on to tab 2, applies
// that specimen's rotation offset and zoom/focus targets.
func (s *Sequencer) homeTrayAndAdvance() error {
	if err := s.HomeTray(); err != nil {
		return err
	}

	const nextTab = 2
	shown := specimen.ForTab(nextTab)
	rec := s.store.Load(shown)

	debug.Info("Advancing to tab %d (specimen %d, dro=%d)", nextTab, shown, rec.DefaultRotationOffset)
	if err := s.ctrl.SeekNextTabAndOffset(rec.DefaultRotationOffset, s.cfg.StepDelayFast()); err != nil {
		return err
	}

	debug.Info("Applying stored targets zoom=%d focus=%d", rec.DefaultZoom, rec.DefaultFocus)
	if err := s.ctrl.MoveToAbsolute(state.Zoom, rec.DefaultZoom, s.cfg.StepDelayFast()); err != nil {
		debug.Error(fmt.Errorf("zoom target: %w", err))
	}
	if err := s.ctrl.MoveToAbsolute(state.Focus, rec.DefaultFocus, s.cfg.StepDelayFast()); err != nil {
		debug.Error(fmt.Errorf("focus target: %w", err))
	}

	s.st.SetCurrentTab(nextTab)
	s.st.SetCurrentSpecimen(shown)
	s.notify.SpecimenChanged(shown)
	return nil
}

// isFatal reports whether an error must halt the whole init sequence
// rather than be treated as a failed attempt on one axis.
func isFatal(err error) bool {
	return errors.Is(err, motion.ErrMoveAborted) || errors.Is(err, motion.ErrSafetyLimit)
}
