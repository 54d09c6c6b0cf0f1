package car

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/itohio/golinecar/pkg/steer"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate is the link baud rate the firmware configures.
	DefaultBaudRate = 115200
	// DefaultBufferSize is the default size for the frames channel buffer.
	DefaultBufferSize = 16
)

var (
	// ErrNotConnected is returned by commands sent while disconnected.
	ErrNotConnected = errors.New("not connected")
	// ErrAlreadyConnected is returned by Connect on a connected device.
	ErrAlreadyConnected = errors.New("already connected")
)

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Serial is a link to the vehicle firmware. While connected the firmware runs
// in host mode and applies the commands sent by Actuate.
type Serial struct {
	port     string
	baudRate int
	bufSize  int

	conn      serial.Port
	frames    chan RawFrame
	mu        sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	connected bool
}

// New creates a new Serial instance with the specified port, baud rate, and buffer size.
func New(port string, baudRate int, bufSize int) *Serial {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if bufSize == 0 {
		bufSize = DefaultBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Serial{
		port:     port,
		baudRate: baudRate,
		bufSize:  bufSize,
		frames:   make(chan RawFrame, bufSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Connect opens the serial port, switches the firmware to host mode and
// starts reading frames.
func (d *Serial) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.connected {
		return ErrAlreadyConnected
	}

	port, err := serial.Open(d.port, &serial.Mode{
		BaudRate: d.baudRate,
	})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", d.port, err)
	}

	if _, err := io.WriteString(port, formatMode(ModeHost)); err != nil {
		port.Close()
		return fmt.Errorf("failed to select host mode: %w", err)
	}

	d.conn = port
	d.connected = true

	go d.readFrames(port)

	log.Info().Str("port", d.port).Int("baud", d.baudRate).Msg("Connected to vehicle")
	return nil
}

// Close hands control back to the firmware and closes the port. A closed
// Serial cannot be reconnected.
func (d *Serial) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.connected {
		return nil
	}

	d.cancel()

	if d.conn != nil {
		if _, err := io.WriteString(d.conn, formatMode(ModeOnboard)); err != nil {
			log.Warn().Err(err).Msg("Failed to restore onboard mode")
		}
		if err := d.conn.Close(); err != nil {
			log.Warn().Err(err).Msg("Error closing serial port")
		}
		d.conn = nil
	}

	d.connected = false

	return nil
}

// Frames returns the channel for reading frames.
func (d *Serial) Frames() <-chan RawFrame {
	return d.frames
}

// Actuate sends a steering command to the firmware.
func (d *Serial) Actuate(cmd steer.Command) error {
	return d.send(formatActuate(cmd))
}

// SetGains sends PID gains to the firmware's onboard controller.
func (d *Serial) SetGains(g steer.Gains) error {
	return d.send(formatGains(g))
}

func (d *Serial) send(line string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.connected {
		return ErrNotConnected
	}

	if _, err := io.WriteString(d.conn, line); err != nil {
		return fmt.Errorf("failed to send %q: %w", line[:1], err)
	}
	return nil
}

// IsConnected returns whether the device is currently connected.
func (d *Serial) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// readFrames reads lines from the serial port and publishes frame lines.
// Other lines are firmware diagnostics and are logged at debug level. The
// frames channel is closed when reading stops.
func (d *Serial) readFrames(r io.Reader) {
	defer close(d.frames)
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Panic in readFrames")
		}
	}()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 4096)
	for {
		select {
		case <-d.ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && d.ctx.Err() == nil {
				log.Warn().Err(err).Msg("Error reading from serial port")
			}
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		frame, err := parseLine(line)
		if errors.Is(err, ErrNotFrame) {
			log.Debug().Str("line", line).Msg("firmware")
			continue
		}
		if err != nil {
			log.Warn().Err(err).Msg("Failed to parse frame line")
			continue
		}
		frame.Timestamp = time.Now()

		select {
		case d.frames <- frame:
		case <-d.ctx.Done():
			return
		default:
			log.Debug().Uint64("seq", frame.Seq).Msg("Frames channel full, dropping frame")
		}
	}
}
