package car

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/steer"
)

// Mode selects who closes the control loop.
type Mode int

const (
	// ModeOnboard runs the controller on the microcontroller.
	ModeOnboard Mode = 0
	// ModeHost applies actuation commands received over the link.
	ModeHost Mode = 1
)

// ErrNotFrame is returned by parseLine for lines that are not frame telemetry.
var ErrNotFrame = errors.New("not a frame line")

// RawFrame is one sensor frame received from the vehicle.
type RawFrame struct {
	Timestamp time.Time
	Seq       uint64
	Samples   acquire.Frame
}

// parseLine parses a frame line from the MCU into a RawFrame.
// Format: F,seq,v0 v1 ... v127
// Example: F,42,1000 1002 998 ...
func parseLine(line string) (RawFrame, error) {
	if !strings.HasPrefix(line, "F,") {
		return RawFrame{}, ErrNotFrame
	}

	parts := strings.SplitN(line, ",", 3)
	if len(parts) != 3 {
		return RawFrame{}, fmt.Errorf("invalid frame line: expected 3 comma-separated fields, got %d", len(parts))
	}

	seq, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return RawFrame{}, fmt.Errorf("invalid sequence: %w", err)
	}

	values := strings.Fields(parts[2])
	if len(values) != acquire.FrameLength {
		return RawFrame{}, fmt.Errorf("invalid frame: expected %d samples, got %d", acquire.FrameLength, len(values))
	}

	frame := RawFrame{Seq: seq}
	for i, s := range values {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return RawFrame{}, fmt.Errorf("invalid sample %d: %w", i, err)
		}
		if v > 4095 {
			return RawFrame{}, fmt.Errorf("sample %d out of range: %d (max 4095)", i, v)
		}
		frame.Samples[i] = uint16(v)
	}

	return frame, nil
}

// Command lines sent to the MCU:
//
//	A,servo,left,right   actuate (duty cycles in percent)
//	P,kp,ki,kd           set PID gains
//	M,mode               select the control mode
func formatActuate(cmd steer.Command) string {
	return fmt.Sprintf("A,%.3f,%.3f,%.3f\n", cmd.Servo, cmd.Left, cmd.Right)
}

func formatGains(g steer.Gains) string {
	return fmt.Sprintf("P,%g,%g,%g\n", g.Kp, g.Ki, g.Kd)
}

func formatMode(m Mode) string {
	return fmt.Sprintf("M,%d\n", int(m))
}
