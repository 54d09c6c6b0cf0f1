package steer

import "fmt"

// MotorRange is the drive motors' duty cycle range in percent.
type MotorRange struct {
	Min float32 `yaml:"min"`
	Max float32 `yaml:"max"`
}

// Validate checks that Min < Max.
func (r MotorRange) Validate() error {
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: motor min %.2f must be below max %.2f", ErrInvalidRange, r.Min, r.Max)
	}
	return nil
}

// Governor adapts the drive speed to how far the track center is off nominal:
// it slows down in curves and speeds up on straights.
type Governor struct {
	Enabled bool    `yaml:"enabled"`
	Margin  int     `yaml:"margin"` // pixels off nominal still treated as straight
	Base    float32 `yaml:"base"`   // cruising duty both directions snap back to
	Decel   float32 `yaml:"decel"`  // duty step per cycle in curves
	Accel   float32 `yaml:"accel"`  // duty step per cycle on straights
}

// Step returns the drive speed for the next cycle given the current speed and
// the center offset in pixels. A disabled governor always returns m.Max.
//
// In a curve a speed above Base drops straight to Base, otherwise it steps
// down by Decel to m.Min. On a straight a speed below Base jumps to Base,
// otherwise it steps up by Accel to m.Max.
func (g Governor) Step(speed float32, offset int, m MotorRange) float32 {
	if !g.Enabled {
		return m.Max
	}
	base := Clamp(g.Base, m.Min, m.Max)
	if offset > g.Margin || -offset > g.Margin {
		if speed > base {
			return base
		}
		return Clamp(speed-g.Decel, m.Min, m.Max)
	}
	if speed < base {
		return base
	}
	return Clamp(speed+g.Accel, m.Min, m.Max)
}
