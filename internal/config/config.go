package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// AxisConfig holds the pin assignment for one motorized axis.
// Each axis has a step/dir pair for the driver board and two
// front-panel buttons (clockwise / counter-clockwise), wired active LOW.
type AxisConfig struct {
	StepPin   int `yaml:"step_pin"`
	DirPin    int `yaml:"dir_pin"`
	BtnCWPin  int `yaml:"btn_cw_pin"`
	BtnCCWPin int `yaml:"btn_ccw_pin"`
}

// SensorConfig holds the input pins for the limit switches and the two
// optical tray sensors. Limit switches and optical sensors are active HIGH.
type SensorConfig struct {
	LimitZoomPin  int `yaml:"limit_zoom_pin"`
	LimitFocusPin int `yaml:"limit_focus_pin"`
	Optical1Pin   int `yaml:"optical1_pin"`
	Optical2Pin   int `yaml:"optical2_pin"`
}

// MotionConfig contains step timing, travel safety and calibration parameters.
type MotionConfig struct {
	StepDelayFastUs    int     `yaml:"step_delay_fast_us"` // per half-pulse
	StepDelaySlowUs    int     `yaml:"step_delay_slow_us"` // per half-pulse, scanning/fine alignment
	BackoffSteps       int     `yaml:"backoff_steps"`      // blind reverse after a limit trip or homing
	MaxInitSteps       int     `yaml:"max_init_steps"`     // search budget for homing and tab seek
	InitDebounceCount  int     `yaml:"init_debounce_count"`
	SensorDebounceMs   int     `yaml:"sensor_debounce_ms"`
	Opt2StepThreshold  int     `yaml:"opt2_step_threshold"` // delta threshold for fall->rise direction inference
	SeekTolerance      float64 `yaml:"seek_tolerance"`      // range tolerance fraction at rising edges
	ReconcileTolerance float64 `yaml:"reconcile_tolerance"` // looser fraction for scheduler reconciliation
	MaxZoomSteps       int     `yaml:"max_zoom_steps"`
	MaxFocusSteps      int     `yaml:"max_focus_steps"`
	TrayBaseline       int     `yaml:"tray_baseline"` // absolute counter value at the wide tab
}

// AutonomyConfig contains timing for the unattended exhibit mode.
type AutonomyConfig struct {
	DwellSecs int `yaml:"dwell_secs"` // display hold per specimen, also the user-idle threshold
}

// SpecimenConfig locates the specimen record files.
type SpecimenConfig struct {
	Dir   string `yaml:"dir"`
	Count int    `yaml:"count"`
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	DebugLevel int  `yaml:"debug_level"` // debug level 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	MockGPIO   bool `yaml:"mock_gpio"`   // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Tray      AxisConfig     `yaml:"tray"`
	Zoom      AxisConfig     `yaml:"zoom"`
	Focus     AxisConfig     `yaml:"focus"`
	Sensors   SensorConfig   `yaml:"sensors"`
	Motion    MotionConfig   `yaml:"motion"`
	Autonomy  AutonomyConfig `yaml:"autonomy"`
	Specimens SpecimenConfig `yaml:"specimens"`
	Defaults  DefaultsConfig `yaml:"defaults"`
}

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	// Basic validation
	for name, axis := range map[string]AxisConfig{"tray": cfg.Tray, "zoom": cfg.Zoom, "focus": cfg.Focus} {
		if axis.StepPin <= 0 || axis.DirPin <= 0 {
			return nil, fmt.Errorf("%s: step_pin and dir_pin are required", name)
		}
		if axis.BtnCWPin <= 0 || axis.BtnCCWPin <= 0 {
			return nil, fmt.Errorf("%s: btn_cw_pin and btn_ccw_pin are required", name)
		}
	}
	if cfg.Sensors.LimitZoomPin <= 0 || cfg.Sensors.LimitFocusPin <= 0 {
		return nil, fmt.Errorf("sensors: limit_zoom_pin and limit_focus_pin are required")
	}
	if cfg.Sensors.Optical1Pin <= 0 || cfg.Sensors.Optical2Pin <= 0 {
		return nil, fmt.Errorf("sensors: optical1_pin and optical2_pin are required")
	}

	// Defaults for anything unset
	if cfg.Motion.StepDelayFastUs <= 0 {
		cfg.Motion.StepDelayFastUs = 3500
	}
	if cfg.Motion.StepDelaySlowUs <= 0 {
		cfg.Motion.StepDelaySlowUs = 10000
	}
	if cfg.Motion.BackoffSteps <= 0 {
		cfg.Motion.BackoffSteps = 100
	}
	if cfg.Motion.MaxInitSteps <= 0 {
		cfg.Motion.MaxInitSteps = 12000
	}
	if cfg.Motion.InitDebounceCount <= 0 {
		cfg.Motion.InitDebounceCount = 6
	}
	if cfg.Motion.SensorDebounceMs <= 0 {
		cfg.Motion.SensorDebounceMs = 80
	}
	if cfg.Motion.Opt2StepThreshold <= 0 {
		cfg.Motion.Opt2StepThreshold = 50
	}
	if cfg.Motion.SeekTolerance <= 0 {
		cfg.Motion.SeekTolerance = 0.05
	}
	if cfg.Motion.ReconcileTolerance <= 0 {
		cfg.Motion.ReconcileTolerance = 0.10
	}
	if cfg.Motion.SeekTolerance > 1 || cfg.Motion.ReconcileTolerance > 1 {
		return nil, fmt.Errorf("tolerance fractions must be <= 1, got seek=%g reconcile=%g",
			cfg.Motion.SeekTolerance, cfg.Motion.ReconcileTolerance)
	}
	if cfg.Motion.MaxZoomSteps <= 0 {
		cfg.Motion.MaxZoomSteps = 10000
	}
	if cfg.Motion.MaxFocusSteps <= 0 {
		cfg.Motion.MaxFocusSteps = 10000
	}
	if cfg.Motion.TrayBaseline <= 0 {
		cfg.Motion.TrayBaseline = 10000
	}
	if cfg.Autonomy.DwellSecs <= 0 {
		cfg.Autonomy.DwellSecs = 20
	}
	if cfg.Specimens.Dir == "" {
		cfg.Specimens.Dir = "specimens"
	}
	if cfg.Specimens.Count <= 0 {
		cfg.Specimens.Count = 10
	}

	return &cfg, nil
}

// StepDelayFast returns the fast half-pulse delay.
func (c *Config) StepDelayFast() time.Duration {
	return time.Duration(c.Motion.StepDelayFastUs) * time.Microsecond
}

// StepDelaySlow returns the slow half-pulse delay used while scanning
// for sensors and for fine manual alignment over a tab.
func (c *Config) StepDelaySlow() time.Duration {
	return time.Duration(c.Motion.StepDelaySlowUs) * time.Microsecond
}

// SensorDebounce returns the minimum spacing between accepted optical events.
func (c *Config) SensorDebounce() time.Duration {
	return time.Duration(c.Motion.SensorDebounceMs) * time.Millisecond
}

// Dwell returns the display hold duration per specimen. The same
// duration is used as the user-idle threshold before autonomy resumes.
func (c *Config) Dwell() time.Duration {
	return time.Duration(c.Autonomy.DwellSecs) * time.Second
}
