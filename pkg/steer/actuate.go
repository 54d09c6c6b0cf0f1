package steer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

var (
	// ErrInvalidRange is returned for empty or inverted duty ranges.
	ErrInvalidRange = errors.New("invalid duty range")
	// ErrUnknownAllocation is returned when parsing an unknown allocation name.
	ErrUnknownAllocation = errors.New("unknown motor allocation")
)

// ServoRange is the steering servo's duty cycle range in percent. Center is
// the duty that steers straight ahead.
type ServoRange struct {
	Min    float32 `yaml:"min"`
	Max    float32 `yaml:"max"`
	Center float32 `yaml:"center"`
}

// Validate checks that Min < Max and Center lies within them.
func (r ServoRange) Validate() error {
	if !(r.Min < r.Max) {
		return fmt.Errorf("%w: servo min %.2f must be below max %.2f", ErrInvalidRange, r.Min, r.Max)
	}
	if r.Center < r.Min || r.Center > r.Max {
		return fmt.Errorf("%w: servo center %.2f outside [%.2f, %.2f]", ErrInvalidRange, r.Center, r.Min, r.Max)
	}
	return nil
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float32) float32 {
	return math32.Max(lo, math32.Min(hi, v))
}

// ServoDuty maps a turn command onto the servo range: turn 0 is Min and turn
// frameWidth is Max. The result is clamped to [Min, Max].
func ServoDuty(turn float32, frameWidth int, r ServoRange) float32 {
	scale := float32(frameWidth) / (r.Max - r.Min)
	return Clamp(r.Min+turn/scale, r.Min, r.Max)
}

// Allocator splits the drive between the left and right motors for a given
// servo duty. motorMax is the speed for straight driving, motorMin the floor
// either wheel may be slowed to. Both outputs lie in [motorMin, motorMax].
type Allocator func(servoDuty float32, servo ServoRange, motorMax, motorMin float32) (left, right float32)

// deflection returns how far the servo is from center as a share of the half
// range on that side, in [-1, 1]. Positive is a right turn.
func deflection(servoDuty float32, r ServoRange) float32 {
	d := servoDuty - r.Center
	switch {
	case d > 0 && r.Max > r.Center:
		return math32.Min(1, d/(r.Max-r.Center))
	case d < 0 && r.Center > r.Min:
		return math32.Max(-1, d/(r.Center-r.Min))
	default:
		return 0
	}
}

// inside orders the inner and outer wheel duty into (left, right).
func inside(turn, in, out float32) (left, right float32) {
	if turn > 0 {
		return out, in
	}
	return in, out
}

// Uniform drives both motors at motorMax regardless of steering.
func Uniform(_ float32, _ ServoRange, motorMax, _ float32) (float32, float32) {
	return motorMax, motorMax
}

// Symmetric keeps the outer wheel at motorMax and slows the inner wheel in
// proportion to the servo deflection, down to motorMin at full lock.
func Symmetric(servoDuty float32, servo ServoRange, motorMax, motorMin float32) (float32, float32) {
	t := deflection(servoDuty, servo)
	in := Clamp(motorMax-math32.Abs(t)*(motorMax-motorMin), motorMin, motorMax)
	return inside(t, in, motorMax)
}

// Blend slows both wheels with deflection: the inner one toward motorMin and
// the outer one toward the midpoint of the motor range, reached at full lock.
func Blend(servoDuty float32, servo ServoRange, motorMax, motorMin float32) (float32, float32) {
	t := deflection(servoDuty, servo)
	a := math32.Abs(t)
	mid := (motorMax + motorMin) / 2
	in := Clamp(motorMax-a*(motorMax-motorMin), motorMin, motorMax)
	out := Clamp(motorMax-a*(motorMax-mid), motorMin, motorMax)
	return inside(t, in, out)
}

// Allocation names an Allocator.
type Allocation int

const (
	// AllocSymmetric selects Symmetric.
	AllocSymmetric Allocation = iota
	// AllocBlend selects Blend.
	AllocBlend
	// AllocUniform selects Uniform.
	AllocUniform
)

// ParseAllocation parses an allocation name.
func ParseAllocation(s string) (Allocation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "symmetric":
		return AllocSymmetric, nil
	case "blend", "midpoint":
		return AllocBlend, nil
	case "uniform":
		return AllocUniform, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownAllocation, s)
	}
}

func (a Allocation) String() string {
	switch a {
	case AllocSymmetric:
		return "symmetric"
	case AllocBlend:
		return "blend"
	case AllocUniform:
		return "uniform"
	default:
		return fmt.Sprintf("Allocation(%d)", int(a))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (a Allocation) MarshalText() ([]byte, error) {
	if _, err := a.Allocator(); err != nil {
		return nil, err
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Allocation) UnmarshalText(text []byte) error {
	v, err := ParseAllocation(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Allocator returns the function for a.
func (a Allocation) Allocator() (Allocator, error) {
	switch a {
	case AllocSymmetric:
		return Symmetric, nil
	case AllocBlend:
		return Blend, nil
	case AllocUniform:
		return Uniform, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAllocation, int(a))
	}
}
