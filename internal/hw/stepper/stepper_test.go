package stepper

import (
	"testing"

	"github.com/mindatnh/scopego/internal/hw/gpio"
)

// recordingDriver captures every pin write in order.
type recordingDriver struct {
	writes []pinWrite
	setups []int
}

type pinWrite struct {
	pin   int
	level gpio.Level
}

func (r *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	r.setups = append(r.setups, pin)
	return nil
}

func (r *recordingDriver) WritePin(pin int, level gpio.Level) error {
	r.writes = append(r.writes, pinWrite{pin, level})
	return nil
}

func (r *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return gpio.Low, nil }
func (r *recordingDriver) Close() error                        { return nil }

func TestNewMotorSetsUpPins(t *testing.T) {
	drv := &recordingDriver{}
	_, err := NewMotor(drv, Config{StepPin: 22, DirPin: 27})
	if err != nil {
		t.Fatal(err)
	}
	if len(drv.setups) != 2 || drv.setups[0] != 22 || drv.setups[1] != 27 {
		t.Errorf("setups = %v, want [22 27]", drv.setups)
	}
}

func TestPulsePattern(t *testing.T) {
	drv := &recordingDriver{}
	m, err := NewMotor(drv, Config{StepPin: 22, DirPin: 27})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.Pulse(0); err != nil {
		t.Fatal(err)
	}

	want := []pinWrite{{22, gpio.High}, {22, gpio.Low}}
	if len(drv.writes) != len(want) {
		t.Fatalf("writes = %v, want %v", drv.writes, want)
	}
	for i := range want {
		if drv.writes[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, drv.writes[i], want[i])
		}
	}
}

func TestSetDirection(t *testing.T) {
	drv := &recordingDriver{}
	m, err := NewMotor(drv, Config{StepPin: 22, DirPin: 27})
	if err != nil {
		t.Fatal(err)
	}

	if err := m.SetDirection(true); err != nil {
		t.Fatal(err)
	}
	if err := m.SetDirection(false); err != nil {
		t.Fatal(err)
	}

	want := []pinWrite{{27, gpio.High}, {27, gpio.Low}}
	for i := range want {
		if drv.writes[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, drv.writes[i], want[i])
		}
	}
}
