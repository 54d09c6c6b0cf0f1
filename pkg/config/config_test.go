package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 7500*time.Microsecond, cfg.Camera.IntegrationPeriod)
	assert.Equal(t, 10*time.Microsecond, cfg.Camera.PixelTick)
	assert.Equal(t, edge.Adaptive, cfg.Edge.Strategy)
	assert.Equal(t, 64, cfg.Edge.NominalCenter)
	assert.Equal(t, steer.Gains{Kp: 5, Ki: 0, Kd: 2}, cfg.PID)
	assert.Equal(t, steer.ServoRange{Min: 4.5, Max: 9, Center: 6.75}, cfg.Servo)
	assert.Equal(t, float32(40), cfg.Motor.Min)
	assert.Equal(t, float32(60), cfg.Motor.Max)
	assert.True(t, cfg.Motor.Governor.Enabled)
	assert.Equal(t, "info", cfg.Diagnostics.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileNotExists(t *testing.T) {
	cfg, err := Load("nonexistent.yaml")
	require.NoError(t, err)
	assert.NotNil(t, cfg)
	assert.Equal(t, "COM3", cfg.Serial.Port)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_ValidYAML(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: "/dev/ttyACM0"

camera:
  integration_period: 10ms
  pixel_tick: 5us

edge:
  strategy: extrema
  nominal_center: 60

pid:
  kp: 3.5
  ki: 0.1
  kd: 1

servo:
  min: 5
  max: 10
  center: 7.5

motor:
  min: 30
  max: 70
  allocation: blend
  governor:
    enabled: false

diagnostics:
  level: debug
  every: 10
  frame_every: 4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 10*time.Millisecond, cfg.Camera.IntegrationPeriod)
	assert.Equal(t, 5*time.Microsecond, cfg.Camera.PixelTick)
	assert.Equal(t, edge.Extrema, cfg.Edge.Strategy)
	assert.Equal(t, 60, cfg.Edge.NominalCenter)
	assert.Equal(t, steer.Gains{Kp: 3.5, Ki: 0.1, Kd: 1}, cfg.PID)
	assert.Equal(t, steer.ServoRange{Min: 5, Max: 10, Center: 7.5}, cfg.Servo)
	assert.Equal(t, steer.AllocBlend, cfg.Motor.Allocation)
	assert.False(t, cfg.Motor.Governor.Enabled)
	assert.Equal(t, "debug", cfg.Diagnostics.Level)
	assert.Equal(t, 10, cfg.Diagnostics.Every)
	assert.Equal(t, 4, cfg.Diagnostics.FrameEvery)
}

func TestLoad_PartialYAMLKeepsDefaults(t *testing.T) {
	path := writeConfig(t, `
pid:
  kp: 7
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, float32(7), cfg.PID.Kp)
	assert.Equal(t, def.PID.Kd, cfg.PID.Kd)
	assert.Equal(t, def.Camera, cfg.Camera)
	assert.Equal(t, def.Servo, cfg.Servo)
	assert.Equal(t, def.Mock, cfg.Mock)
}

func TestLoad_ExplicitZerosRestored(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: ""
  baud_rate: 0
camera:
  integration_period: 0s
servo:
  min: 4
  max: 8
  center: 0
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "COM3", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.BaudRate)
	assert.Equal(t, 7500*time.Microsecond, cfg.Camera.IntegrationPeriod)
	assert.Equal(t, float32(6), cfg.Servo.Center)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "serial: [unclosed\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_UnknownStrategy(t *testing.T) {
	path := writeConfig(t, "edge:\n  strategy: hough\n")

	_, err := Load(path)
	assert.ErrorIs(t, err, edge.ErrUnknownStrategy)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr error
	}{
		{
			name:    "integration too short",
			modify:  func(c *Config) { c.Camera.IntegrationPeriod = time.Millisecond },
			wantErr: acquire.ErrIntegrationRange,
		},
		{
			name:    "integration too long",
			modify:  func(c *Config) { c.Camera.IntegrationPeriod = time.Second },
			wantErr: acquire.ErrIntegrationRange,
		},
		{
			name:    "readout does not fit",
			modify:  func(c *Config) { c.Camera.IntegrationPeriod = 2 * time.Millisecond },
			wantErr: acquire.ErrReadoutTooSlow,
		},
		{
			name:    "servo inverted",
			modify:  func(c *Config) { c.Servo.Min = 12 },
			wantErr: steer.ErrInvalidRange,
		},
		{
			name:    "motor inverted",
			modify:  func(c *Config) { c.Motor.Min, c.Motor.Max = 60, 40 },
			wantErr: steer.ErrInvalidRange,
		},
		{
			name:    "unknown allocation",
			modify:  func(c *Config) { c.Motor.Allocation = steer.Allocation(9) },
			wantErr: steer.ErrUnknownAllocation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.wantErr)
		})
	}

	cfg := Default()
	cfg.Diagnostics.Every = -1
	assert.Error(t, cfg.Validate())
}

func TestEdit(t *testing.T) {
	cfg := Default()

	next, err := cfg.Edit(func(c *Config) {
		c.PID.Kp = 7
		c.Camera.IntegrationPeriod = 10 * time.Millisecond
	})
	require.NoError(t, err)
	assert.Equal(t, float32(7), next.PID.Kp)
	assert.Equal(t, 10*time.Millisecond, next.Camera.IntegrationPeriod)
	assert.Equal(t, Default(), cfg)
}

func TestEdit_RejectedLeavesOriginal(t *testing.T) {
	cfg := Default()

	next, err := cfg.Edit(func(c *Config) {
		c.Camera.IntegrationPeriod = 0
		c.Servo.Min = 20
	})
	require.Error(t, err)
	assert.Nil(t, next)
	assert.Equal(t, Default(), cfg)
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Serial.Port = "/dev/ttyUSB0"
	cfg.PID.Kp = 4.25
	cfg.Edge.Strategy = edge.Extrema
	cfg.Motor.Allocation = steer.AllocUniform
	cfg.Camera.IntegrationPeriod = 12 * time.Millisecond

	require.NoError(t, cfg.Save(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "integration_period: 12ms")
	assert.Contains(t, string(data), "strategy: extrema")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestSteering(t *testing.T) {
	cfg := Default()
	cfg.Edge.NominalCenter = 70

	sc := cfg.Steering()

	assert.Equal(t, acquire.FrameLength, sc.FrameWidth)
	assert.Equal(t, 70, sc.Nominal)
	assert.Equal(t, cfg.PID, sc.Gains)
	assert.Equal(t, steer.MotorRange{Min: 40, Max: 60}, sc.Motor)
	assert.Equal(t, cfg.Motor.Governor, sc.Governor)
}
