package manual

import (
	"sync"
	"testing"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/logic/motion"
	"github.com/mindatnh/scopego/internal/logic/state"
)

func testConfig() *config.Config {
	return &config.Config{
		Tray:    config.AxisConfig{StepPin: 1, DirPin: 2, BtnCWPin: 3, BtnCCWPin: 4},
		Zoom:    config.AxisConfig{StepPin: 5, DirPin: 6, BtnCWPin: 7, BtnCCWPin: 8},
		Focus:   config.AxisConfig{StepPin: 9, DirPin: 10, BtnCWPin: 11, BtnCCWPin: 12},
		Sensors: config.SensorConfig{LimitZoomPin: 13, LimitFocusPin: 14, Optical1Pin: 15, Optical2Pin: 16},
		Motion: config.MotionConfig{
			StepDelayFastUs:    1,
			StepDelaySlowUs:    1,
			BackoffSteps:       3,
			MaxInitSteps:       30,
			InitDebounceCount:  3,
			SensorDebounceMs:   1,
			Opt2StepThreshold:  50,
			SeekTolerance:      0.05,
			ReconcileTolerance: 0.10,
			MaxZoomSteps:       100000,
			MaxFocusSteps:      100000,
			TrayBaseline:       10000,
		},
		Autonomy:  config.AutonomyConfig{DwellSecs: 20},
		Specimens: config.SpecimenConfig{Dir: "does-not-exist", Count: 10},
	}
}

// countingDriver counts writes per pin on top of the mock.
type countingDriver struct {
	*gpio.MockDriver
	mu     sync.Mutex
	counts map[int]int
}

func newCountingDriver() *countingDriver {
	return &countingDriver{MockDriver: gpio.NewMockDriver(), counts: make(map[int]int)}
}

func (c *countingDriver) WritePin(pin int, level gpio.Level) error {
	c.mu.Lock()
	c.counts[pin]++
	c.mu.Unlock()
	return c.MockDriver.WritePin(pin, level)
}

func (c *countingDriver) writeCount(pin int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[pin]
}

func newTestArbiter(t *testing.T, cfg *config.Config) (*Arbiter, *countingDriver, *state.State) {
	t.Helper()
	drv := newCountingDriver()
	st := state.New(cfg.Motion.TrayBaseline, 6)
	ctrl, err := motion.New(drv, cfg, st)
	if err != nil {
		t.Fatal(err)
	}
	return New(drv, cfg, st, ctrl), drv, st
}

func TestSpinStepsWhileHeld(t *testing.T) {
	cfg := testConfig()
	arb, drv, st := newTestArbiter(t, cfg)

	drv.SetInput(cfg.Zoom.BtnCWPin, gpio.Low) // held

	done := make(chan struct{})
	go func() {
		arb.spin(button{axis: state.Zoom, pin: cfg.Zoom.BtnCWPin, forward: true})
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	drv.SetInput(cfg.Zoom.BtnCWPin, gpio.High) // released
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("spin did not stop after release")
	}

	if got := st.Steps(state.Zoom); got <= 0 {
		t.Errorf("zoom steps = %d, want > 0 after a held press", got)
	}
	if drv.writeCount(cfg.Zoom.StepPin) == 0 {
		t.Error("no pulses reached the step pin")
	}
}

func TestSpinDroppedWhenAxisBusy(t *testing.T) {
	cfg := testConfig()
	arb, drv, st := newTestArbiter(t, cfg)

	// Another task owns the axis; the press must perform no pin writes.
	if !st.Owner(state.Zoom).TryLock() {
		t.Fatal("could not take the axis for the test")
	}
	defer st.Owner(state.Zoom).Unlock()

	before := drv.writeCount(cfg.Zoom.StepPin) + drv.writeCount(cfg.Zoom.DirPin)
	drv.SetInput(cfg.Zoom.BtnCWPin, gpio.Low)
	arb.spin(button{axis: state.Zoom, pin: cfg.Zoom.BtnCWPin, forward: true})

	after := drv.writeCount(cfg.Zoom.StepPin) + drv.writeCount(cfg.Zoom.DirPin)
	if after != before {
		t.Error("a dropped press must not touch the motor pins")
	}
	if st.Steps(state.Zoom) != 0 {
		t.Error("a dropped press must not move the axis")
	}
}

func TestSpinStopsOnErrorState(t *testing.T) {
	cfg := testConfig()
	arb, drv, st := newTestArbiter(t, cfg)
	st.ErrorState.Store(true)

	drv.SetInput(cfg.Focus.BtnCCWPin, gpio.Low)
	arb.spin(button{axis: state.Focus, pin: cfg.Focus.BtnCCWPin, forward: false})

	if st.Steps(state.Focus) != 0 {
		t.Error("spin must not step while the session is halted")
	}
}

func TestDebounceRejectsBounce(t *testing.T) {
	cfg := testConfig()
	arb, drv, st := newTestArbiter(t, cfg)

	// Pressed at edge time but released again before the debounce
	// re-sample: no user activity, no motion.
	drv.SetInput(cfg.Tray.BtnCWPin, gpio.High)
	arb.debounceAndSpin(button{axis: state.Tray, pin: cfg.Tray.BtnCWPin, forward: true})

	if st.AbortAuto.Load() {
		t.Error("a bounced press must not count as user activity")
	}
	if st.Steps(state.Tray) != cfg.Motion.TrayBaseline {
		t.Error("a bounced press must not move the tray")
	}
}

func TestConfirmedPressMarksUserActivity(t *testing.T) {
	cfg := testConfig()
	arb, drv, st := newTestArbiter(t, cfg)
	st.Autonomous.Store(true)

	drv.SetInput(cfg.Zoom.BtnCWPin, gpio.Low)
	go func() {
		time.Sleep(40 * time.Millisecond)
		drv.SetInput(cfg.Zoom.BtnCWPin, gpio.High)
	}()
	arb.debounceAndSpin(button{axis: state.Zoom, pin: cfg.Zoom.BtnCWPin, forward: true})

	if st.Autonomous.Load() {
		t.Error("a confirmed press must suspend autonomy")
	}
	if !st.AbortAuto.Load() {
		t.Error("a confirmed press must raise the abort flag")
	}
}

func TestTraySlowsOverTab(t *testing.T) {
	cfg := testConfig()
	cfg.Motion.StepDelaySlowUs = 2000 // measurable against the 1us fast delay
	arb, drv, st := newTestArbiter(t, cfg)
	st.Opt2Blocked.Store(true)

	drv.SetInput(cfg.Tray.BtnCWPin, gpio.Low)
	done := make(chan struct{})
	go func() {
		arb.spin(button{axis: state.Tray, pin: cfg.Tray.BtnCWPin, forward: true})
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	drv.SetInput(cfg.Tray.BtnCWPin, gpio.High)
	<-done

	// At 2ms per half-pulse, 20ms of spinning allows only a handful of
	// steps; at the fast delay it would be thousands.
	moved := st.Steps(state.Tray) - cfg.Motion.TrayBaseline
	if moved <= 0 {
		t.Fatal("tray did not move")
	}
	if moved > 20 {
		t.Errorf("tray moved %d steps in 20ms, expected the slow cadence over the tab", moved)
	}
}

func TestArbiterBuildsSixButtons(t *testing.T) {
	arb, _, _ := newTestArbiter(t, testConfig())
	if len(arb.buttons) != 6 {
		t.Fatalf("buttons = %d, want 6 (two per axis)", len(arb.buttons))
	}
}
