package car

import (
	"math"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/config"
)

// Track simulates what the line sensor sees: a dark track on a bright floor
// that drifts sideways as the road curves and as the vehicle steers.
type Track struct {
	cfg    config.MockConfig
	offset float64 // track center relative to the sensor center, pixels
	time   float64 // seconds
}

// NewTrack creates a track centered under the sensor.
func NewTrack(cfg config.MockConfig) *Track {
	return &Track{cfg: cfg}
}

// Offset returns the track center position relative to the sensor center.
func (t *Track) Offset() float64 {
	return t.offset
}

// Center returns the track center in pixels.
func (t *Track) Center() float64 {
	return float64(acquire.FrameLength)/2 + t.offset
}

// Intensity returns the ADC reading for a pixel.
func (t *Track) Intensity(pixel int) uint16 {
	v := float64(t.cfg.Background)
	if math.Abs(float64(pixel)-t.Center()) <= t.cfg.TrackWidth/2 {
		v = float64(t.cfg.Track)
	}

	p := float64(pixel)
	v += (math.Sin(p*2.3+t.time*31) + math.Cos(p*1.1+t.time*17)) * t.cfg.NoiseLevel * 0.5

	return uint16(math.Max(0, math.Min(4095, v)))
}

// Advance moves the simulation one frame forward. deflection is the servo
// duty above its center in percent; positive steers right, which moves the
// track left in the image.
func (t *Track) Advance(dt float64, deflection float64) {
	t.time += dt

	drift := 0.0
	if t.cfg.Period > 0 {
		drift = t.cfg.Curvature * math.Sin(2*math.Pi*t.time/t.cfg.Period)
	}
	t.offset += drift - t.cfg.SteerGain*deflection

	half := float64(acquire.FrameLength) / 2
	t.offset = math.Max(-half, math.Min(half, t.offset))
}
