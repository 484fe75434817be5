// Package manual gives the exhibit's physical buttons immediate,
// exclusive control of an axis while held. A press never queues: if the
// axis is busy the press is dropped silently.
package manual

import (
	"context"
	"sync"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/logic/motion"
	"github.com/mindatnh/scopego/internal/logic/state"
)

const (
	buttonPoll    = 10 * time.Millisecond
	pressDebounce = 20 * time.Millisecond
)

// button binds one physical button to an axis and a direction.
type button struct {
	axis    state.Axis
	pin     int
	forward bool
}

// Arbiter watches all six buttons (two per axis).
type Arbiter struct {
	drv     gpio.Driver
	cfg     *config.Config
	st      *state.State
	ctrl    *motion.Controller
	buttons []button

	// Poll is the button sampling interval; overridable for tests.
	Poll time.Duration
}

func New(drv gpio.Driver, cfg *config.Config, st *state.State, ctrl *motion.Controller) *Arbiter {
	a := &Arbiter{
		drv:  drv,
		cfg:  cfg,
		st:   st,
		ctrl: ctrl,
		Poll: buttonPoll,
	}
	axisCfgs := []struct {
		axis state.Axis
		cfg  config.AxisConfig
	}{
		{state.Tray, cfg.Tray},
		{state.Zoom, cfg.Zoom},
		{state.Focus, cfg.Focus},
	}
	for _, ac := range axisCfgs {
		_ = drv.SetupPin(ac.cfg.BtnCWPin, gpio.InputPullUp)
		_ = drv.SetupPin(ac.cfg.BtnCCWPin, gpio.InputPullUp)
		a.buttons = append(a.buttons,
			button{axis: ac.axis, pin: ac.cfg.BtnCWPin, forward: true},
			button{axis: ac.axis, pin: ac.cfg.BtnCCWPin, forward: false},
		)
	}
	return a
}

// Run spawns one watcher per button and blocks until all have exited.
func (a *Arbiter) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, b := range a.buttons {
		wg.Add(1)
		go func(b button) {
			defer wg.Done()
			a.watch(ctx, b)
		}(b)
	}
	wg.Wait()
}

// watch polls one button pin for press edges. Buttons idle HIGH
// (pull-up) and read LOW while pressed.
func (a *Arbiter) watch(ctx context.Context, b button) {
	debug.Info("button watcher started: axis=%s pin=%d", b.axis, b.pin)

	lastLevel := gpio.SafeRead(a.drv, b.pin)
	ticker := time.NewTicker(a.Poll)
	defer ticker.Stop()

	var spins sync.WaitGroup
	defer spins.Wait()

	for a.st.Running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		level := gpio.SafeRead(a.drv, b.pin)
		if level != lastLevel && level == gpio.Low {
			if a.st.Initializing.Load() {
				debug.Live("ignoring press on pin %d during initialization", b.pin)
			} else {
				debug.Live("press detected: axis=%s pin=%d", b.axis, b.pin)
				spins.Add(1)
				go func() {
					defer spins.Done()
					a.debounceAndSpin(b)
				}()
			}
		}
		lastLevel = level
	}
}

// debounceAndSpin re-samples after a short delay to reject contact
// bounce; a confirmed press marks user activity (pre-empting autonomy)
// and tries to seize the axis.
func (a *Arbiter) debounceAndSpin(b button) {
	time.Sleep(pressDebounce)
	if !a.st.Running.Load() || gpio.SafeRead(a.drv, b.pin) != gpio.Low {
		return
	}

	a.st.MarkUserActivity()
	debug.Live("user interaction: manual mode, automated motion yields")
	a.spin(b)
}

// spin pulses the axis while the button stays held. The axis is taken
// with a non-blocking acquire: if automated motion or the opposite
// button holds it, this press performs no pin writes at all.
func (a *Arbiter) spin(b button) {
	owner := a.st.Owner(b.axis)
	if !owner.TryLock() {
		debug.Live("%s busy, ignoring press on pin %d", b.axis, b.pin)
		return
	}
	defer owner.Unlock()

	if err := a.ctrl.SetDirection(b.axis, b.forward); err != nil {
		return
	}
	debug.Live("%s manual control taken (pin %d held)", b.axis, b.pin)
	defer debug.Live("%s manual control released", b.axis)

	for a.st.Running.Load() && !a.st.ErrorState.Load() &&
		gpio.SafeRead(a.drv, b.pin) == gpio.Low {

		// The tray slows over the tab sensor for fine alignment.
		delay := a.cfg.StepDelayFast()
		if b.axis == state.Tray && a.st.Opt2Blocked.Load() {
			delay = a.cfg.StepDelaySlow()
		}

		if err := a.ctrl.StepCommitted(b.axis, b.forward, delay); err != nil {
			debug.Live("%s manual spin stopped: %v", b.axis, err)
			return
		}
	}
}
