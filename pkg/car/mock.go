package car

import (
	"context"
	"sync"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/steer"
	"github.com/rs/zerolog/log"
)

// Mock simulates a vehicle for testing and development. It runs the real
// acquisition state machine against a simulated sensor, one readout per
// integration period.
type Mock struct {
	cfg config.Config

	frames    chan RawFrame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool

	acq   *acquire.Controller
	track *Track

	// Guarded by mu
	cmd    steer.Command
	gains  steer.Gains
	offset float64
}

// NewMock creates a new simulated vehicle from a copy of cfg. Invalid camera
// timing falls back to the default timing.
func NewMock(cfg *config.Config) *Mock {
	if cfg == nil {
		cfg = config.Default()
	}
	c := *cfg
	if err := acquire.ValidateTiming(c.Camera.IntegrationPeriod, c.Camera.PixelTick); err != nil {
		log.Warn().Err(err).Msg("Invalid simulated camera timing, using defaults")
		c.Camera = config.Default().Camera
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Mock{
		cfg:    c,
		frames: make(chan RawFrame, DefaultBufferSize),
		ctx:    ctx,
		cancel: cancel,
		acq:    acquire.New(simPins{}, simPins{}),
		track:  NewTrack(c.Mock),
		cmd:    steer.Command{Servo: c.Servo.Center},
		gains:  c.PID,
	}
}

// Connect starts the simulation.
func (m *Mock) Connect() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.connected {
		return ErrAlreadyConnected
	}

	m.connected = true

	go m.generateFrames()

	return nil
}

// Close stops the simulation. The frames channel is closed once the
// generator exits; a closed Mock cannot be reconnected.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return nil
	}

	m.cancel()
	m.connected = false

	return nil
}

// Frames returns the channel for reading frames.
func (m *Mock) Frames() <-chan RawFrame {
	return m.frames
}

// Acquisition returns the simulated acquisition controller for callers that
// poll frames directly instead of reading Frames.
func (m *Mock) Acquisition() *acquire.Controller {
	return m.acq
}

// Actuate applies a steering command to the simulated vehicle.
func (m *Mock) Actuate(cmd steer.Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.cmd = cmd
	return nil
}

// SetGains records PID gains (the simulated vehicle has no onboard controller).
func (m *Mock) SetGains(g steer.Gains) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return ErrNotConnected
	}
	m.gains = g
	return nil
}

// Gains returns the last gains set.
func (m *Mock) Gains() steer.Gains {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gains
}

// TrackOffset returns the true track offset from the sensor center in pixels.
func (m *Mock) TrackOffset() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.offset
}

// IsConnected returns whether the device is currently connected.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// generateFrames runs one readout per integration period. It owns the frames
// channel and closes it on exit.
func (m *Mock) generateFrames() {
	defer close(m.frames)

	ticker := time.NewTicker(m.cfg.Camera.IntegrationPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			frame, err := m.step()
			if err != nil {
				continue
			}
			select {
			case m.frames <- frame:
			case <-m.ctx.Done():
				return
			default:
				// Channel full, skip
			}
		}
	}
}

// step advances the vehicle by one frame and reads the sensor.
func (m *Mock) step() (RawFrame, error) {
	m.mu.RLock()
	deflection := float64(m.cmd.Servo - m.cfg.Servo.Center)
	m.mu.RUnlock()

	m.track.Advance(m.cfg.Camera.IntegrationPeriod.Seconds(), deflection)
	m.readout()

	m.mu.Lock()
	m.offset = m.track.Offset()
	m.mu.Unlock()

	frame := RawFrame{Timestamp: time.Now()}
	seq, err := m.acq.ReadCurrentFrame(&frame.Samples)
	frame.Seq = seq
	return frame, err
}

// readout plays the interrupt sequence of one sensor readout, converting the
// pixel under the sensor's output before each tick as the ADC would.
func (m *Mock) readout() {
	m.acq.OnIntegrationElapsed()
	for range acquire.TicksPerFrame {
		if p := m.acq.NextPixel(); p >= 0 {
			m.acq.OnConversion(m.track.Intensity(p))
		}
		m.acq.OnPixelTick()
	}
}

// simPins stands in for the sensor lines and the pixel clock timer.
type simPins struct{}

func (simPins) SetClock(bool)  {}
func (simPins) SetStrobe(bool) {}
func (simPins) Arm()           {}
func (simPins) Disarm()        {}
