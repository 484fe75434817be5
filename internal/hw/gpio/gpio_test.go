package gpio

import (
	"errors"
	"testing"
)

func TestMockDriverReadWrite(t *testing.T) {
	d := NewMockDriver()

	if err := d.SetupPin(7, Output); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(7); lvl != Low {
		t.Error("output pin should start LOW")
	}

	if err := d.WritePin(7, High); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(7); lvl != High {
		t.Error("pin should read back HIGH after write")
	}
}

func TestMockDriverPullUpIdlesHigh(t *testing.T) {
	d := NewMockDriver()

	// Buttons are active LOW behind pull-ups: an unpressed button reads HIGH.
	if err := d.SetupPin(12, InputPullUp); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(12); lvl != High {
		t.Error("pull-up input should idle HIGH")
	}

	d.SetInput(12, Low) // press
	if lvl, _ := d.ReadPin(12); lvl != Low {
		t.Error("pressed button should read LOW")
	}
}

func TestMockDriverPullDownIdlesLow(t *testing.T) {
	d := NewMockDriver()

	if err := d.SetupPin(26, InputPullDown); err != nil {
		t.Fatal(err)
	}
	if lvl, _ := d.ReadPin(26); lvl != Low {
		t.Error("pull-down input should idle LOW")
	}
}

type failingDriver struct{}

func (failingDriver) SetupPin(int, PinMode) error { return nil }
func (failingDriver) WritePin(int, Level) error   { return errors.New("write failed") }
func (failingDriver) ReadPin(int) (Level, error)  { return High, errors.New("read failed") }
func (failingDriver) Close() error                { return nil }

func TestSafeReadTreatsErrorsAsLow(t *testing.T) {
	if got := SafeRead(failingDriver{}, 5); got != Low {
		t.Error("a failed read must report LOW, never HIGH")
	}
}

func TestNewDriverMock(t *testing.T) {
	d, err := NewDriver(true)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(true) returned %T, want *MockDriver", d)
	}
}
