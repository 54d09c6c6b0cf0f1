// Package acquire drives a 128-pixel linear optical sensor and latches its
// analog output into frames.
//
// The Controller is a tagged-state machine fed by two interrupt-like events:
// the integration timer firing and the pixel clock ticking. The sensor's clock
// and strobe outputs and the pixel clock itself are reached through small
// interfaces so the machine runs the same on hardware, in a simulator and in
// tests.
package acquire

import "errors"

// FrameLength is the number of pixels produced by one sensor readout.
const FrameLength = 128

// Frame holds one readout of the sensor, one 12-bit ADC value per pixel.
type Frame [FrameLength]uint16

var (
	// ErrNoFrame is returned when no frame has been published yet.
	ErrNoFrame = errors.New("no frame published yet")
	// ErrTornFrame is returned when a frame was overwritten while it was being copied.
	ErrTornFrame = errors.New("frame overwritten during read")
)

// State is the acquisition state.
type State uint8

const (
	// Idle waits for the integration timer.
	Idle State = iota
	// Strobing clocks the start pulse into the sensor.
	Strobing
	// Capturing latches one pixel per falling clock edge.
	Capturing
	// Done has published the frame and waits for one more tick to release the clock.
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Strobing:
		return "strobing"
	case Capturing:
		return "capturing"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Event is an input to the acquisition state machine.
type Event uint8

const (
	// IntegrationElapsed fires once per integration period.
	IntegrationElapsed Event = iota
	// PixelTick fires at twice the pixel rate while the pixel clock is armed.
	PixelTick
)

func (e Event) String() string {
	switch e {
	case IntegrationElapsed:
		return "integration-elapsed"
	case PixelTick:
		return "pixel-tick"
	default:
		return "unknown"
	}
}

// Lines drives the sensor's digital inputs.
type Lines interface {
	SetClock(high bool)
	SetStrobe(high bool)
}

// PixelTimer controls the pixel clock interrupt source.
type PixelTimer interface {
	// Arm resets the pixel clock period and enables its interrupt.
	Arm()
	// Disarm disables the pixel clock interrupt.
	Disarm()
}
