// Package edge locates the left and right track edges in a derivative signal.
package edge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chewxy/math32"
)

// Midpoint is the fallback edge position and the default seed for scans.
const Midpoint = 64

// ErrUnknownStrategy is returned when parsing an unknown strategy name.
var ErrUnknownStrategy = errors.New("unknown edge strategy")

// Estimate is one edge detection result. Center lies between Left and Right,
// rounded toward Left.
type Estimate struct {
	Left   int
	Right  int
	Center int
}

func newEstimate(left, right int) Estimate {
	return Estimate{
		Left:   left,
		Right:  right,
		Center: left + (right-left)/2,
	}
}

// Detector finds the edges in a derivative signal. prior is the previous
// center estimate; strategies that do not track ignore it.
type Detector interface {
	Detect(deriv []int16, prior int) Estimate
}

// GlobalExtrema reports the first maximum as Left and the first minimum as Right.
type GlobalExtrema struct{}

// Detect implements Detector.
func (GlobalExtrema) Detect(deriv []int16, _ int) Estimate {
	if len(deriv) == 0 {
		return newEstimate(Midpoint, Midpoint)
	}
	left, right := 0, 0
	for i, v := range deriv {
		if v > deriv[left] {
			left = i
		}
		if v < deriv[right] {
			right = i
		}
	}
	return newEstimate(left, right)
}

// AdaptiveThreshold scans outward from the previous center for the first
// sample beyond one standard deviation from the mean.
//
// Right is the first sample at or after prior below mean-stdev, Left the
// first sample at or before prior above mean+stdev. A side with no crossing
// falls back to Midpoint.
type AdaptiveThreshold struct{}

// Detect implements Detector.
func (AdaptiveThreshold) Detect(deriv []int16, prior int) Estimate {
	n := len(deriv)
	if n < 2 {
		return newEstimate(Midpoint, Midpoint)
	}
	if prior < 0 || prior >= n {
		prior = min(Midpoint, n-1)
	}

	mean, stdev := Stats(deriv)
	lo, hi := mean-stdev, mean+stdev

	left, right := Midpoint, Midpoint
	for i := prior; i < n; i++ {
		if float32(deriv[i]) < lo {
			right = i
			break
		}
	}
	for i := prior; i >= 0; i-- {
		if float32(deriv[i]) > hi {
			left = i
			break
		}
	}
	return newEstimate(left, right)
}

// Stats returns the mean and sample standard deviation (N-1 denominator) of x.
func Stats(x []int16) (mean, stdev float32) {
	n := len(x)
	if n == 0 {
		return 0, 0
	}
	var sum float32
	for _, v := range x {
		sum += float32(v)
	}
	mean = sum / float32(n)
	if n < 2 {
		return mean, 0
	}

	var sq float32
	for _, v := range x {
		d := float32(v) - mean
		sq += d * d
	}
	return mean, math32.Sqrt(sq / float32(n-1))
}

// Strategy selects a Detector.
type Strategy int

const (
	// Adaptive selects AdaptiveThreshold.
	Adaptive Strategy = iota
	// Extrema selects GlobalExtrema.
	Extrema
)

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "adaptive", "threshold":
		return Adaptive, nil
	case "extrema", "global":
		return Extrema, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

func (s Strategy) String() string {
	switch s {
	case Adaptive:
		return "adaptive"
	case Extrema:
		return "extrema"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if s != Adaptive && s != Extrema {
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// New returns the Detector for a strategy.
func New(s Strategy) (Detector, error) {
	switch s {
	case Adaptive:
		return AdaptiveThreshold{}, nil
	case Extrema:
		return GlobalExtrema{}, nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
}
