package gpio

import (
	"sync"

	"github.com/mindatnh/scopego/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates how a GPIO is configured. Buttons are wired with
// pull-ups (active LOW), the optical sensors with pull-downs (active HIGH).
type PinMode int

const (
	Input PinMode = iota
	InputPullUp
	InputPullDown
	Output
)

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	Close() error
}

// NewDriver creates a GPIO driver based on the chosen mode.
// If mock is true, returns a MockDriver (for dev/test).
// If mock is false, returns a real RPiDriver (for Raspberry Pi).
func NewDriver(mock bool) (Driver, error) {
	if mock {
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	}
	return NewRPiRealDriver()
}

// SafeRead reads a pin and treats any driver failure as LOW (inactive).
// Sensor and button reads must never propagate errors into control loops.
func SafeRead(d Driver, pin int) Level {
	level, err := d.ReadPin(pin)
	if err != nil {
		debug.Error(err)
		return Low
	}
	return level
}

// MockDriver is an in-memory implementation used for development on PC
// and for tests. Input levels can be scripted with SetInput to simulate
// switches and optical sensors.
type MockDriver struct {
	mu     sync.Mutex
	levels map[int]Level
}

// NewMockDriver creates a mock driver with all pins LOW.
func NewMockDriver() *MockDriver {
	return &MockDriver{levels: make(map[int]Level)}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	m.mu.Lock()
	defer m.mu.Unlock()
	if mode == InputPullUp {
		// Pull-up inputs idle HIGH (buttons are active LOW).
		m.levels[pin] = High
	}
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin], nil
}

// SetInput sets the level an input pin will report, simulating external
// hardware (limit switch, optical sensor, button).
func (m *MockDriver) SetInput(pin int, level Level) {
	debug.GPIO("SetInput", pin, level)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[pin] = level
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	return nil
}
