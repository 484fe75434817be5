// Package motion implements the stepper driver layer: every pulse any
// task emits on any axis goes through the one pulse-and-count loop
// here, under that axis's ownership mutex, with the same abort, safety
// and limit-backoff rules.
package motion

import (
	"fmt"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/hw/stepper"
	"github.com/mindatnh/scopego/internal/logic/state"
)

// lockTimeout is the bounded wait for automated acquisition of an axis.
const lockTimeout = 2 * time.Second

// trayLockTimeout is the longer wait used by tab seek, which may follow
// a full automated move on the same axis.
const trayLockTimeout = 5 * time.Second

// Controller owns the three axis motors and enforces the motion rules.
type Controller struct {
	drv    gpio.Driver
	cfg    *config.Config
	st     *state.State
	motors [3]*stepper.Motor
}

// New builds the controller and configures the step/dir output pins.
func New(drv gpio.Driver, cfg *config.Config, st *state.State) (*Controller, error) {
	c := &Controller{drv: drv, cfg: cfg, st: st}
	axisCfgs := [3]config.AxisConfig{cfg.Tray, cfg.Zoom, cfg.Focus}
	for _, a := range state.Axes {
		m, err := stepper.NewMotor(drv, stepper.Config{
			StepPin: axisCfgs[a].StepPin,
			DirPin:  axisCfgs[a].DirPin,
		})
		if err != nil {
			return nil, fmt.Errorf("setup %s motor: %w", a, err)
		}
		c.motors[a] = m
	}
	return c, nil
}

// limitPin returns the limit switch pin for an axis, 0 if none (tray).
func (c *Controller) limitPin(a state.Axis) int {
	switch a {
	case state.Zoom:
		return c.cfg.Sensors.LimitZoomPin
	case state.Focus:
		return c.cfg.Sensors.LimitFocusPin
	default:
		return 0
	}
}

// maxSteps returns the travel safety bound for an axis, 0 if unbounded.
func (c *Controller) maxSteps(a state.Axis) int {
	switch a {
	case state.Zoom:
		return c.cfg.Motion.MaxZoomSteps
	case state.Focus:
		return c.cfg.Motion.MaxFocusSteps
	default:
		return 0
	}
}

// fatal records a pin-write failure as the session-fatal error state.
func (c *Controller) fatal(a state.Axis, err error) error {
	if c.st.ErrorState.CompareAndSwap(false, true) {
		debug.Error(fmt.Errorf("%s: pin write failed, disabling motors: %w", a, err))
	}
	return fmt.Errorf("%s: gpio write: %w", a, err)
}

// SetDirection sets an axis direction pin. Forward (HIGH) increments
// the counter.
func (c *Controller) SetDirection(a state.Axis, forward bool) error {
	if err := c.motors[a].SetDirection(forward); err != nil {
		return c.fatal(a, err)
	}
	return nil
}

// PulseRaw emits one pulse without committing a counter step. Homing
// search loops use this before the axis has a meaningful zero; the
// caller must hold the axis owner.
func (c *Controller) PulseRaw(a state.Axis, delay time.Duration) error {
	if err := c.motors[a].Pulse(delay); err != nil {
		return c.fatal(a, err)
	}
	return nil
}

// StepCommitted emits one pulse and commits it: advances the axis
// counter (tray moves its rotation offset in the same transition),
// enforces the travel safety bound, and runs the blind limit backoff
// if the axis limit switch is asserted after the step. The caller must
// hold the axis owner and have set the direction to match forward.
func (c *Controller) StepCommitted(a state.Axis, forward bool, delay time.Duration) error {
	if err := c.PulseRaw(a, delay); err != nil {
		return err
	}

	dir := 1
	if !forward {
		dir = -1
	}
	newCount := c.st.Advance(a, dir)

	if max := c.maxSteps(a); max > 0 {
		if newCount > max || newCount < -max {
			if c.st.ErrorState.CompareAndSwap(false, true) {
				debug.Error(fmt.Errorf("%s: %w (count=%d max=%d)", a, ErrSafetyLimit, newCount, max))
			}
			return ErrSafetyLimit
		}
	}

	if pin := c.limitPin(a); pin != 0 && gpio.SafeRead(c.drv, pin) == gpio.High {
		return c.backoff(a, forward, delay)
	}
	return nil
}

// backoff reverses for a fixed step count after a limit trip, then
// restores the original direction. The retreat is blind: the limit
// event is trusted as transient and not re-verified.
func (c *Controller) backoff(a state.Axis, forward bool, delay time.Duration) error {
	debug.Live("%s: limit hit during move, backing off %d steps", a, c.cfg.Motion.BackoffSteps)

	if err := c.SetDirection(a, !forward); err != nil {
		return err
	}
	backDir := 1
	if forward {
		backDir = -1
	}
	for i := 0; i < c.cfg.Motion.BackoffSteps; i++ {
		if !c.st.Running.Load() {
			return ErrMoveAborted
		}
		if err := c.PulseRaw(a, delay); err != nil {
			return err
		}
		c.st.Advance(a, backDir)
	}
	return c.SetDirection(a, forward)
}

// checkAbort evaluates the per-pulse abort conditions in their fixed
// order: shutdown, session error, manual pre-emption (ignored during
// initialization), then deadline.
func (c *Controller) checkAbort(start time.Time, timeout time.Duration) error {
	if !c.st.Running.Load() {
		return ErrMoveAborted
	}
	if c.st.ErrorState.Load() {
		return ErrHalted
	}
	if c.st.AbortAuto.Load() && !c.st.Initializing.Load() {
		return ErrMoveAborted
	}
	if timeout > 0 && time.Since(start) > timeout {
		return ErrMoveTimeout
	}
	return nil
}

// MoveRelative moves an axis by a signed step count. The axis owner is
// acquired with a bounded wait; each pulse re-checks the abort
// conditions, so a user press interrupts mid-move with sub-pulse
// latency. Committed partial progress is retained on abort.
// timeout 0 means no deadline.
func (c *Controller) MoveRelative(a state.Axis, steps int, delay, timeout time.Duration) error {
	if c.st.ErrorState.Load() {
		debug.Live("%s: not moving (error state)", a)
		return ErrHalted
	}

	owner := c.st.Owner(a)
	if !owner.LockTimeout(lockTimeout) {
		debug.Live("%s: could not acquire axis lock", a)
		return ErrLockBusy
	}
	defer owner.Unlock()

	if steps == 0 {
		return nil
	}
	forward := steps > 0
	n := steps
	if n < 0 {
		n = -n
	}
	if err := c.SetDirection(a, forward); err != nil {
		return err
	}
	debug.Move(a.String(), steps, directionName(forward))

	start := time.Now()
	for i := 0; i < n; i++ {
		if err := c.checkAbort(start, timeout); err != nil {
			debug.Live("%s: stopping at step %d/%d: %v", a, i, n, err)
			return err
		}
		if err := c.StepCommitted(a, forward, delay); err != nil {
			return err
		}
	}
	return nil
}

// MoveToAbsolute moves an axis to an absolute counter target. The
// deadline is derived from the expected duration of the move.
func (c *Controller) MoveToAbsolute(a state.Axis, target int, delay time.Duration) error {
	cur := c.st.Steps(a)
	deltaSteps := target - cur

	estimated := time.Duration(abs(deltaSteps)) * 2 * delay
	timeout := 2*estimated + 5*time.Second
	if timeout < 15*time.Second {
		timeout = 15 * time.Second
	}

	debug.Live("%s: absolute move current=%d target=%d delta=%d timeout=%v",
		a, cur, target, deltaSteps, timeout)
	return c.MoveRelative(a, deltaSteps, delay, timeout)
}

// SeekNextTabAndOffset drives the tray forward until the next tab is
// confirmed on the rise-detecting optical sensor, then applies the
// specimen's stored rotation offset (dro) as a relative move. The rise
// needs two consecutive high samples after a low has been observed, to
// reject chatter. The tray owner is held across both phases.
func (c *Controller) SeekNextTabAndOffset(dro int, delay time.Duration) error {
	owner := c.st.Owner(state.Tray)
	if !owner.LockTimeout(trayLockTimeout) {
		debug.Live("TRAY: could not acquire axis lock for tab seek")
		return ErrLockBusy
	}
	defer owner.Unlock()

	if err := c.SetDirection(state.Tray, true); err != nil {
		return err
	}

	opt2 := c.cfg.Sensors.Optical2Pin
	sawLow := false
	consecRise := 0
	stepsTaken := 0
	maxSteps := c.cfg.Motion.MaxInitSteps
	confirmed := false

	for stepsTaken < maxSteps && c.st.Running.Load() {
		if c.st.AbortAuto.Load() && !c.st.Initializing.Load() {
			debug.Live("TRAY: tab seek aborted by user")
			return ErrMoveAborted
		}

		if err := c.StepCommitted(state.Tray, true, delay); err != nil {
			return err
		}
		stepsTaken++

		s2 := gpio.SafeRead(c.drv, opt2) == gpio.High
		if !sawLow {
			if !s2 {
				sawLow = true
			}
		} else if s2 {
			consecRise++
			if consecRise >= 2 {
				debug.Live("TRAY: tab rise confirmed after %d steps", stepsTaken)
				confirmed = true
				break
			}
		} else {
			consecRise = 0
		}

		if stepsTaken%500 == 0 {
			debug.Verbose("TRAY: scanning for tab, steps=%d s2=%v", stepsTaken, s2)
		}
	}

	if !confirmed {
		if !c.st.Running.Load() {
			return ErrMoveAborted
		}
		return ErrTabSeekTimeout
	}

	if dro == 0 {
		return nil
	}

	forward := dro > 0
	if err := c.SetDirection(state.Tray, forward); err != nil {
		return err
	}
	debug.Live("TRAY: applying rotation offset %d (%s)", dro, directionName(forward))
	for i := 0; i < abs(dro); i++ {
		if !c.st.Running.Load() {
			return ErrMoveAborted
		}
		if c.st.AbortAuto.Load() && !c.st.Initializing.Load() {
			debug.Live("TRAY: offset aborted by user")
			return ErrMoveAborted
		}
		if err := c.StepCommitted(state.Tray, forward, delay); err != nil {
			return err
		}
	}
	debug.Live("TRAY: offset applied, tray steps now %d", c.st.Steps(state.Tray))
	return nil
}

func directionName(forward bool) string {
	if forward {
		return "forward"
	}
	return "backward"
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
