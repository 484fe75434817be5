// Package autonomy advances the exhibit through its specimens on a
// timer whenever no visitor is using the buttons.
package autonomy

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/display"
	"github.com/mindatnh/scopego/internal/logic/motion"
	"github.com/mindatnh/scopego/internal/logic/specimen"
	"github.com/mindatnh/scopego/internal/logic/state"
)

// Phase is the scheduler's current activity, exposed for the status page.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseSuspended
	PhaseReconciling
	PhaseHolding
	PhaseAdvancing
)

var phaseNames = [...]string{"idle", "suspended", "reconciling", "holding", "advancing"}

func (p Phase) String() string {
	if p < PhaseIdle || p > PhaseAdvancing {
		return "unknown"
	}
	return phaseNames[p]
}

// Scheduler runs the round-robin exhibit loop.
type Scheduler struct {
	cfg    *config.Config
	st     *state.State
	ctrl   *motion.Controller
	store  *specimen.Store
	notify display.Notifier

	phase atomic.Int32

	// Loop cadences, overridable for tests.
	FrozenPoll time.Duration // while error state or init in progress
	HoldPoll   time.Duration // dwell/pre-emption re-check interval
}

func New(cfg *config.Config, st *state.State, ctrl *motion.Controller,
	store *specimen.Store, notify display.Notifier) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		st:         st,
		ctrl:       ctrl,
		store:      store,
		notify:     notify,
		FrozenPoll: 500 * time.Millisecond,
		HoldPoll:   200 * time.Millisecond,
	}
}

// Phase returns the scheduler's current phase.
func (s *Scheduler) Phase() Phase {
	return Phase(s.phase.Load())
}

func (s *Scheduler) setPhase(p Phase) {
	if s.phase.Swap(int32(p)) != int32(p) {
		debug.Live("scheduler: %s", p)
	}
}

// Run drives the scheduler until shutdown.
func (s *Scheduler) Run(ctx context.Context) {
	debug.Info("autonomous scheduler started")
	s.st.Autonomous.Store(true)
	s.st.AbortAuto.Store(false)

	for s.st.Running.Load() {
		select {
		case <-ctx.Done():
			return
		default:
		}
		s.cycle()
	}
}

// cycle runs one pass of the state machine.
func (s *Scheduler) cycle() {
	// A set error state freezes the scheduler for the session.
	if s.st.ErrorState.Load() {
		s.setPhase(PhaseIdle)
		s.sleep(s.FrozenPoll)
		return
	}

	// Wait out initialization.
	if s.st.Initializing.Load() || !s.st.Initialized.Load() {
		s.setPhase(PhaseIdle)
		s.sleep(s.HoldPoll)
		return
	}

	// Recent user activity suspends autonomy; in-flight automated moves
	// see AbortAuto between pulses.
	if s.st.SinceUserActivity() < s.cfg.Dwell() {
		if s.st.Autonomous.Load() {
			debug.Live("scheduler: user activity detected, suspending")
		}
		s.st.Autonomous.Store(false)
		s.st.AbortAuto.Store(true)
		s.setPhase(PhaseSuspended)
		s.sleep(s.FrozenPoll)
		return
	}
	if !s.st.Autonomous.Load() {
		debug.Live("scheduler: idle timeout reached, resuming autonomy")
	}
	s.st.Autonomous.Store(true)
	s.st.AbortAuto.Store(false)

	// A fall with no matching rise means the visitor left the tray
	// between tabs; settle which specimen is showing before advancing.
	if _, sawFall := s.st.PendingFall(); sawFall {
		s.setPhase(PhaseReconciling)
		s.reconcilePendingFall()
	}

	// Hold the current specimen for the dwell window.
	if s.st.SinceAutoAdvance() < s.cfg.Dwell() {
		s.setPhase(PhaseHolding)
		s.sleep(s.HoldPoll)
		return
	}

	s.setPhase(PhaseAdvancing)
	s.advance()
}

// reconcilePendingFall resolves the displayed specimen using the same
// absolute-then-delta logic as the sensor monitor's rising-edge
// handler, then clears the marker.
func (s *Scheduler) reconcilePendingFall() {
	cur := s.st.Steps(state.Tray)

	if mapped, ok := specimen.FromSteps(cur, s.cfg.Motion.ReconcileTolerance); ok {
		s.st.SetCurrentSpecimen(mapped)
		if tab := specimen.TabFor(mapped); tab != 0 {
			s.st.SetCurrentTab(tab)
		}
		s.notify.SpecimenChanged(mapped)
		debug.Live("reconciled pending fall: absolute match specimen=%d (steps=%d)", mapped, cur)
		s.st.ClearFall()
		return
	}

	anchor, _ := s.st.PendingFall()
	delta := cur - anchor
	idx := s.st.CurrentSpecimen()
	if idx == 0 {
		idx = 1
	}
	n := specimen.Count()
	switch {
	case delta > s.cfg.Motion.Opt2StepThreshold:
		idx = (idx % n) + 1
		debug.Live("reconciled pending fall: delta=%d, assume moved forward to specimen %d", delta, idx)
	case delta < -s.cfg.Motion.Opt2StepThreshold:
		idx = ((idx-2)%n+n)%n + 1
		debug.Live("reconciled pending fall: delta=%d, assume moved backward to specimen %d", delta, idx)
	default:
		debug.Live("reconciled pending fall: delta=%d, assume still on specimen %d", delta, idx)
	}
	s.st.SetCurrentSpecimen(idx)
	s.notify.SpecimenChanged(idx)
	s.st.ClearFall()
}

// advance moves the tray to the next tab forward and applies the next
// specimen's stored zoom/focus/rotation defaults. Failures leave all
// committed progress in place; the next cycle retries from the top.
func (s *Scheduler) advance() {
	cur := s.st.CurrentSpecimen()
	if cur == 0 {
		if mapped, ok := specimen.FromSteps(s.st.Steps(state.Tray), s.cfg.Motion.ReconcileTolerance); ok {
			cur = mapped
			debug.Live("scheduler: determined current specimen from tray steps: %d", cur)
		} else {
			cur = 1
			debug.Live("scheduler: current specimen unknown, defaulting to 1")
		}
		s.st.SetCurrentSpecimen(cur)
	}

	next := (cur % specimen.Count()) + 1
	rec := s.store.Load(next)
	debug.Live("scheduler: advancing to specimen %d (dro=%d)", next, rec.DefaultRotationOffset)

	delay := s.cfg.StepDelayFast()
	if err := s.ctrl.SeekNextTabAndOffset(rec.DefaultRotationOffset, delay); err != nil {
		s.logAdvanceFailure("tab seek", err)
		return
	}
	s.st.SetCurrentSpecimen(next)

	if err := s.ctrl.MoveToAbsolute(state.Zoom, rec.DefaultZoom, delay); err != nil {
		if fatalOrAborted(err) {
			s.logAdvanceFailure("zoom", err)
			return
		}
		debug.Error(err)
	}
	if err := s.ctrl.MoveToAbsolute(state.Focus, rec.DefaultFocus, delay); err != nil {
		if fatalOrAborted(err) {
			s.logAdvanceFailure("focus", err)
			return
		}
		debug.Error(err)
	}

	s.notify.SpecimenChanged(next)
	s.st.MarkAutoAdvance()

	if mapped, ok := specimen.FromSteps(s.st.Steps(state.Tray), s.cfg.Motion.ReconcileTolerance); ok {
		debug.Live("scheduler: advance complete, tray maps to specimen %d", mapped)
	}
	debug.Live("scheduler: displaying specimen %d for %v", next, s.cfg.Dwell())
}

func (s *Scheduler) logAdvanceFailure(stage string, err error) {
	if errors.Is(err, motion.ErrMoveAborted) {
		debug.Live("scheduler: %s yielded to user", stage)
		return
	}
	debug.Error(err)
}

func fatalOrAborted(err error) bool {
	return errors.Is(err, motion.ErrMoveAborted) ||
		errors.Is(err, motion.ErrHalted) ||
		errors.Is(err, motion.ErrSafetyLimit)
}

// sleep waits while remaining responsive to shutdown.
func (s *Scheduler) sleep(d time.Duration) {
	deadline := time.Now().Add(d)
	for s.st.Running.Load() && time.Now().Before(deadline) {
		step := 50 * time.Millisecond
		if rem := time.Until(deadline); rem < step {
			step = rem
		}
		time.Sleep(step)
	}
}
