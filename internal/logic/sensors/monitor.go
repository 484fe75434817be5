// Package sensors polls the limit switches and optical tray sensors,
// turning raw pin levels into debounced position events.
package sensors

import (
	"context"
	"time"

	"github.com/mindatnh/scopego/internal/config"
	"github.com/mindatnh/scopego/internal/debug"
	"github.com/mindatnh/scopego/internal/display"
	"github.com/mindatnh/scopego/internal/hw/gpio"
	"github.com/mindatnh/scopego/internal/logic/specimen"
	"github.com/mindatnh/scopego/internal/logic/state"
)

const defaultPoll = 20 * time.Millisecond

// Monitor is the continuous sensor poll loop.
type Monitor struct {
	drv    gpio.Driver
	cfg    *config.Config
	st     *state.State
	notify display.Notifier
	alert  display.Alerter

	// Poll is the sampling interval; overridable for tests.
	Poll time.Duration

	limitLatched   map[int]bool
	lastRise       time.Time
	lastCalibrated time.Time
	loggedOpt1     bool
}

func New(drv gpio.Driver, cfg *config.Config, st *state.State,
	notify display.Notifier, alert display.Alerter) *Monitor {
	m := &Monitor{
		drv:          drv,
		cfg:          cfg,
		st:           st,
		notify:       notify,
		alert:        alert,
		Poll:         defaultPoll,
		limitLatched: make(map[int]bool),
	}
	// Limit switches and buttons share pull-ups; optical sensors idle LOW.
	_ = drv.SetupPin(cfg.Sensors.LimitZoomPin, gpio.InputPullUp)
	_ = drv.SetupPin(cfg.Sensors.LimitFocusPin, gpio.InputPullUp)
	_ = drv.SetupPin(cfg.Sensors.Optical1Pin, gpio.InputPullDown)
	_ = drv.SetupPin(cfg.Sensors.Optical2Pin, gpio.InputPullDown)
	return m
}

// Run polls until shutdown. Meant to be spawned as its own task.
func (m *Monitor) Run(ctx context.Context) {
	debug.Info("sensor monitor started")

	prevS1 := gpio.SafeRead(m.drv, m.cfg.Sensors.Optical1Pin) == gpio.High
	prevS2 := gpio.SafeRead(m.drv, m.cfg.Sensors.Optical2Pin) == gpio.High
	m.st.Opt2Blocked.Store(prevS2)

	ticker := time.NewTicker(m.Poll)
	defer ticker.Stop()

	for m.st.Running.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		prevS1, prevS2 = m.poll(prevS1, prevS2)
	}
}

// poll runs one sampling cycle and returns the new previous levels.
func (m *Monitor) poll(prevS1, prevS2 bool) (bool, bool) {
	m.pollLimits()

	s1 := gpio.SafeRead(m.drv, m.cfg.Sensors.Optical1Pin) == gpio.High
	s2 := gpio.SafeRead(m.drv, m.cfg.Sensors.Optical2Pin) == gpio.High
	now := time.Now()

	// Optical-2 falling edge: remember where the tray left the beam.
	if prevS2 && !s2 {
		anchor := m.st.RecordFall()
		debug.Live("optical-2 fall, anchor tray steps=%d", anchor)
	}

	// Optical-2 rising edge: a tab arrived under the sensor.
	if !prevS2 && s2 && now.Sub(m.lastRise) > m.cfg.SensorDebounce() {
		m.lastRise = now
		m.handleRise()
	}

	if s1 && !prevS1 && !m.loggedOpt1 {
		debug.Verbose("optical-1 rising")
		m.loggedOpt1 = true
	}
	if !s1 {
		m.loggedOpt1 = false
	}

	// Both sensors asserted: the wide calibration tab. During homing the
	// sequencer owns this transition with its own debounce count.
	if s1 && s2 && now.Sub(m.lastCalibrated) > m.cfg.SensorDebounce() {
		m.lastCalibrated = now
		if m.st.Initializing.Load() {
			debug.Verbose("wide tab seen during init; monitor leaves counters alone")
		} else {
			m.calibrateWideTab()
		}
	}

	if s2 != prevS2 {
		if s2 {
			debug.Live("panel open (optical-2 high)")
		} else {
			debug.Live("panel closed (optical-2 low)")
		}
		m.notify.PanelShouldOpen(s2)
	}
	m.st.Opt2Blocked.Store(s2)

	return s1, s2
}

// pollLimits raises one alert per limit trip; the latch clears when the
// pin returns LOW so a held switch cannot storm the alert sink.
func (m *Monitor) pollLimits() {
	limits := []struct {
		pin  int
		name string
	}{
		{m.cfg.Sensors.LimitZoomPin, "ZOOM"},
		{m.cfg.Sensors.LimitFocusPin, "FOCUS"},
	}
	for _, l := range limits {
		high := gpio.SafeRead(m.drv, l.pin) == gpio.High
		if high && !m.limitLatched[l.pin] {
			debug.Info("%s limit reached (pin %d)", l.name, l.pin)
			m.limitLatched[l.pin] = true
			m.alert.LimitReached(l.name)
		} else if !high && m.limitLatched[l.pin] {
			m.limitLatched[l.pin] = false
		}
	}
}

// handleRise resolves which specimen just arrived. Priority: absolute
// range mapping, then direction inference from the recorded fall, then
// a best-effort absolute attempt.
func (m *Monitor) handleRise() {
	cur := m.st.Steps(state.Tray)

	if matched, ok := specimen.FromSteps(cur, m.cfg.Motion.SeekTolerance); ok {
		m.adopt(matched, cur, "absolute ranges")
		m.st.ClearFall()
		return
	}

	if anchor, sawFall := m.st.PendingFall(); sawFall {
		m.resolveFromFall(cur, anchor)
		m.st.ClearFall()
		return
	}

	if matched, ok := specimen.FromSteps(cur, m.cfg.Motion.SeekTolerance); ok {
		m.adopt(matched, cur, "best effort")
	} else {
		debug.Live("optical-2 rise could not be mapped to a specimen (tray steps=%d)", cur)
	}
	m.st.ClearFall()
}

// resolveFromFall infers the travel direction from how far the tray
// moved between leaving the beam and re-entering it, and shifts the tab
// index by at most one.
func (m *Monitor) resolveFromFall(cur, anchor int) {
	delta := cur - anchor
	dirFlag := 0
	if delta > m.cfg.Motion.Opt2StepThreshold {
		dirFlag = 1
	} else if delta < -m.cfg.Motion.Opt2StepThreshold {
		dirFlag = -1
	}

	tab := m.st.CurrentTab()
	if tab == 0 {
		if si, ok := specimen.FromSteps(cur, m.cfg.Motion.SeekTolerance); ok {
			tab = specimen.TabFor(si)
		}
		if tab == 0 {
			tab = 1
		}
	}

	n := specimen.Count()
	newTab := tab
	if dirFlag != 0 {
		newTab = ((tab-1+dirFlag)%n+n)%n + 1
	}

	idx := specimen.ForTab(newTab)
	m.st.SetCurrentTab(newTab)
	m.st.SetCurrentSpecimen(idx)
	m.notify.SpecimenChanged(idx)
	debug.Live("optical-2 rise fallback: delta=%d dir=%d tab=%d specimen=%d steps=%d",
		delta, dirFlag, newTab, idx, cur)
}

// adopt accepts an absolute mapping and keeps the tab index consistent.
func (m *Monitor) adopt(idx, cur int, how string) {
	m.st.SetCurrentSpecimen(idx)
	if tab := specimen.TabFor(idx); tab != 0 {
		m.st.SetCurrentTab(tab)
	}
	m.notify.SpecimenChanged(idx)
	debug.Live("optical-2 rise matched by %s: specimen=%d tab=%d steps=%d",
		how, idx, m.st.CurrentTab(), cur)
}

// calibrateWideTab resets the absolute origin on the wide tab outside
// of initialization.
func (m *Monitor) calibrateWideTab() {
	if !m.st.Initialized.Load() {
		debug.Info("calibrated on wide tab (tab 1)")
	}
	m.st.ResetTray(m.cfg.Motion.TrayBaseline)
	m.st.SetCurrentTab(1)
	idx := specimen.ForTab(1)
	m.st.SetCurrentSpecimen(idx)
	m.notify.SpecimenChanged(idx)
	debug.Live("tray counter reset to %d at wide tab; specimen=%d", m.cfg.Motion.TrayBaseline, idx)
}
