package car

import "github.com/itohio/golinecar/pkg/steer"

// Actuator applies steering commands.
type Actuator interface {
	Actuate(cmd steer.Command) error
}

// Device defines the interface for vehicles (real or simulated).
type Device interface {
	Actuator
	Connect() error
	Close() error
	Frames() <-chan RawFrame
	SetGains(g steer.Gains) error
	IsConnected() bool
}

// Ensure Serial implements Device.
var _ Device = (*Serial)(nil)

// Ensure Mock implements Device.
var _ Device = (*Mock)(nil)
