package stepper

import (
	"time"

	"github.com/mindatnh/scopego/internal/hw/gpio"
)

// Config holds the hardware configuration for a stepper motor.
type Config struct {
	StepPin int
	DirPin  int
}

// Motor drives one step/dir stepper output pair. It is deliberately
// dumb: direction, single pulses, nothing else. Counting, safety limits
// and abort policy live in the motion layer, which is the only caller
// while the axis ownership mutex is held.
type Motor struct {
	gpio gpio.Driver
	cfg  Config
}

// NewMotor creates a stepper motor and configures its pins as outputs.
func NewMotor(g gpio.Driver, cfg Config) (*Motor, error) {
	if err := g.SetupPin(cfg.StepPin, gpio.Output); err != nil {
		return nil, err
	}
	if err := g.SetupPin(cfg.DirPin, gpio.Output); err != nil {
		return nil, err
	}
	return &Motor{gpio: g, cfg: cfg}, nil
}

// SetDirection sets the direction pin. HIGH is forward (+1 per step).
func (m *Motor) SetDirection(forward bool) error {
	return m.gpio.WritePin(m.cfg.DirPin, gpio.Level(forward))
}

// Pulse emits one step: assert, hold, deassert, hold. delay is the
// half-pulse time, so one step takes 2*delay.
func (m *Motor) Pulse(delay time.Duration) error {
	if err := m.gpio.WritePin(m.cfg.StepPin, gpio.High); err != nil {
		return err
	}
	time.Sleep(delay)
	if err := m.gpio.WritePin(m.cfg.StepPin, gpio.Low); err != nil {
		return err
	}
	time.Sleep(delay)
	return nil
}

// StepPin returns the configured step pin (used by tests and logging).
func (m *Motor) StepPin() int { return m.cfg.StepPin }

// DirPin returns the configured direction pin.
func (m *Motor) DirPin() int { return m.cfg.DirPin }
