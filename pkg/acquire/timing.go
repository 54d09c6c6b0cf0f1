package acquire

import (
	"errors"
	"fmt"
	"time"
)

const (
	// MinIntegration is the shortest integration period the sensor supports.
	MinIntegration = 1250 * time.Microsecond
	// MaxIntegration is the longest integration period before the sensor saturates.
	MaxIntegration = 100 * time.Millisecond

	// TicksPerFrame is the number of pixel ticks one readout takes: four to
	// strobe, two per remaining pixel and one to release the clock.
	TicksPerFrame = 4 + 2*(FrameLength-1) + 1
)

var (
	// ErrIntegrationRange is returned for integration periods outside
	// [MinIntegration, MaxIntegration].
	ErrIntegrationRange = errors.New("integration period out of range")
	// ErrReadoutTooSlow is returned when a readout does not fit in one
	// integration period.
	ErrReadoutTooSlow = errors.New("pixel clock too slow for integration period")
)

// ValidateTiming checks an integration period and pixel tick period against
// the sensor limits.
func ValidateTiming(integration, tick time.Duration) error {
	if integration < MinIntegration || integration > MaxIntegration {
		return fmt.Errorf("%w: %v not in [%v, %v]", ErrIntegrationRange, integration, MinIntegration, MaxIntegration)
	}
	if tick <= 0 {
		return fmt.Errorf("%w: tick period %v", ErrReadoutTooSlow, tick)
	}
	if readout := ReadoutTime(tick); readout >= integration {
		return fmt.Errorf("%w: readout takes %v, integration is %v", ErrReadoutTooSlow, readout, integration)
	}
	return nil
}

// ReadoutTime returns how long one readout takes at the given tick period.
func ReadoutTime(tick time.Duration) time.Duration {
	return time.Duration(TicksPerFrame) * tick
}
