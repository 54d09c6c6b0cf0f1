package filter

import "github.com/itohio/golinecar/pkg/acquire"

// Signals are the intermediate and final outputs of one conditioning pass.
// The slices belong to the Conditioner that produced them and are
// overwritten by its next call.
type Signals struct {
	Median     []uint16
	Smoothed   []uint16
	Derivative []int16
}

// Conditioner runs median, smoothing and derivative over a frame using
// buffers it keeps between calls.
type Conditioner struct {
	median   []uint16
	smoothed []uint16
	deriv    []int16
}

// NewConditioner creates a conditioner with buffers sized for one frame.
func NewConditioner() *Conditioner {
	return &Conditioner{
		median:   make([]uint16, acquire.FrameLength),
		smoothed: make([]uint16, acquire.FrameLength),
		deriv:    make([]int16, acquire.FrameLength),
	}
}

// Condition conditions frame into an edge signal.
func (c *Conditioner) Condition(frame *acquire.Frame) Signals {
	c.median = Median(c.median, frame[:])
	c.smoothed = Smooth(c.smoothed, c.median)
	c.deriv = Derivative(c.deriv, c.smoothed)
	return Signals{
		Median:     c.median,
		Smoothed:   c.smoothed,
		Derivative: c.deriv,
	}
}

// Clone returns a copy of s that does not alias the conditioner's buffers.
func (s Signals) Clone() Signals {
	return Signals{
		Median:     append([]uint16(nil), s.Median...),
		Smoothed:   append([]uint16(nil), s.Smoothed...),
		Derivative: append([]int16(nil), s.Derivative...),
	}
}
