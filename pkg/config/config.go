package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial      SerialConfig      `yaml:"serial"`
	Camera      CameraConfig      `yaml:"camera"`
	Edge        EdgeConfig        `yaml:"edge"`
	PID         steer.Gains       `yaml:"pid"`
	Servo       steer.ServoRange  `yaml:"servo"`
	Motor       MotorConfig       `yaml:"motor"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
	Mock        MockConfig        `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// CameraConfig contains line sensor timing.
type CameraConfig struct {
	IntegrationPeriod time.Duration `yaml:"integration_period"`
	PixelTick         time.Duration `yaml:"pixel_tick"` // half a pixel clock period
}

// EdgeConfig selects the edge detector.
type EdgeConfig struct {
	Strategy      edge.Strategy `yaml:"strategy"`
	NominalCenter int           `yaml:"nominal_center"`
}

// MotorConfig contains drive motor ranges and speed control.
type MotorConfig struct {
	Min        float32          `yaml:"min"`
	Max        float32          `yaml:"max"`
	Allocation steer.Allocation `yaml:"allocation"`
	Governor   steer.Governor   `yaml:"governor"`
}

// DiagnosticsConfig controls logging and the tuning stream.
type DiagnosticsConfig struct {
	Level         string `yaml:"level"`          // zerolog level name
	Every         int    `yaml:"every"`          // report every Nth cycle (0 = off)
	FrameEvery    int    `yaml:"frame_every"`    // dump the raw frame every Nth report (0 = never)
	AverageFrames int    `yaml:"average_frames"` // frames averaged for display (0 = disabled)
}

// MockConfig contains simulated vehicle configuration.
type MockConfig struct {
	TrackWidth float64 `yaml:"track_width"` // dark track width in pixels
	Background uint16  `yaml:"background"`  // ADC counts on the bright floor
	Track      uint16  `yaml:"track"`       // ADC counts on the track
	NoiseLevel float64 `yaml:"noise_level"` // ADC counts
	Curvature  float64 `yaml:"curvature"`   // peak track drift in pixels per frame
	Period     float64 `yaml:"period"`      // seconds per curvature cycle
	SteerGain  float64 `yaml:"steer_gain"`  // pixels per frame per percent of servo deflection
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	sc := steer.DefaultConfig()
	return &Config{
		Serial: SerialConfig{
			Port:     "COM3", // Default for Windows, should be "/dev/ttyACM0" on Linux/Mac
			BaudRate: 115200,
		},
		Camera: CameraConfig{
			IntegrationPeriod: 7500 * time.Microsecond,
			PixelTick:         10 * time.Microsecond,
		},
		Edge: EdgeConfig{
			Strategy:      edge.Adaptive,
			NominalCenter: sc.Nominal,
		},
		PID:   sc.Gains,
		Servo: sc.Servo,
		Motor: MotorConfig{
			Min:        sc.Motor.Min,
			Max:        sc.Motor.Max,
			Allocation: sc.Allocation,
			Governor:   sc.Governor,
		},
		Diagnostics: DiagnosticsConfig{
			Level:      "info",
			Every:      0,
			FrameEvery: 0,
		},
		Mock: MockConfig{
			TrackWidth: 40,
			Background: 3000,
			Track:      400,
			NoiseLevel: 40,
			Curvature:  1.5,
			Period:     8,
			SteerGain:  1.2,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values. The result is validated.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Edit applies edit to a copy of c and returns the copy if it validates.
// c itself is never modified, so readers of c never see a partial or
// rejected edit.
func (c *Config) Edit(edit func(*Config)) (*Config, error) {
	next := *c
	edit(&next)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return &next, nil
}

// Steering returns the steering controller configuration.
func (c *Config) Steering() steer.Config {
	return steer.Config{
		FrameWidth: acquire.FrameLength,
		Nominal:    c.Edge.NominalCenter,
		Gains:      c.PID,
		Servo:      c.Servo,
		Motor:      steer.MotorRange{Min: c.Motor.Min, Max: c.Motor.Max},
		Governor:   c.Motor.Governor,
		Allocation: c.Motor.Allocation,
	}
}

// Validate reports configuration errors that must stop startup.
func (c *Config) Validate() error {
	var errs []error
	if err := acquire.ValidateTiming(c.Camera.IntegrationPeriod, c.Camera.PixelTick); err != nil {
		errs = append(errs, fmt.Errorf("camera: %w", err))
	}
	if err := c.Steering().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("steering: %w", err))
	}
	if _, err := edge.New(c.Edge.Strategy); err != nil {
		errs = append(errs, fmt.Errorf("edge: %w", err))
	}
	if c.Diagnostics.Every < 0 || c.Diagnostics.FrameEvery < 0 || c.Diagnostics.AverageFrames < 0 {
		errs = append(errs, errors.New("diagnostics: counts must not be negative"))
	}
	return errors.Join(errs...)
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}

	if c.Camera.IntegrationPeriod == 0 {
		c.Camera.IntegrationPeriod = def.Camera.IntegrationPeriod
	}
	if c.Camera.PixelTick == 0 {
		c.Camera.PixelTick = def.Camera.PixelTick
	}

	if c.Servo == (steer.ServoRange{}) {
		c.Servo = def.Servo
	}
	if c.Servo.Center == 0 {
		c.Servo.Center = (c.Servo.Min + c.Servo.Max) / 2
	}

	if c.Motor.Min == 0 && c.Motor.Max == 0 {
		c.Motor.Min = def.Motor.Min
		c.Motor.Max = def.Motor.Max
	}

	if c.Diagnostics.Level == "" {
		c.Diagnostics.Level = def.Diagnostics.Level
	}

	if c.Mock.TrackWidth == 0 {
		c.Mock.TrackWidth = def.Mock.TrackWidth
	}
	if c.Mock.Background == 0 {
		c.Mock.Background = def.Mock.Background
	}
	if c.Mock.Period == 0 {
		c.Mock.Period = def.Mock.Period
	}
	if c.Mock.SteerGain == 0 {
		c.Mock.SteerGain = def.Mock.SteerGain
	}
}
