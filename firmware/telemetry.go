//go:build tinygo

package main

import (
	"strconv"
	"strings"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/steer"
)

var (
	// Serial buffer for reading lines
	serialBuffer [64]byte
	serialPos    int
)

// writeFrame prints one frame line: F,<seq>,<v0> <v1> ... <v127>
func writeFrame(seq uint64, frame *acquire.Frame) {
	print("F,")
	print(seq)
	print(",")
	for i, v := range frame {
		if i > 0 {
			print(" ")
		}
		print(v)
	}
	print("\n")
}

func processSerial(steering *steer.Controller, act *actuators) {
	// Read available bytes from serial
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		// Check for newline (end of line)
		if data == '\n' || data == '\r' {
			if serialPos > 0 {
				handleCommand(string(serialBuffer[:serialPos]), steering, act)
			}
			serialPos = 0
			continue
		}

		if serialPos < len(serialBuffer) {
			serialBuffer[serialPos] = data
			serialPos++
		} else {
			// Overlong line - drop it
			serialPos = 0
		}
	}
}

// handleCommand applies one command line:
//
//	A,servo,left,right   actuate (host mode only)
//	P,kp,ki,kd           set PID gains
//	M,mode               0 onboard, 1 host
func handleCommand(line string, steering *steer.Controller, act *actuators) {
	fields := strings.Split(line, ",")
	switch fields[0] {
	case "A":
		v, ok := parseFloats(fields[1:], 3)
		if !ok || mode != modeHost {
			return
		}
		act.Actuate(steer.Command{Servo: v[0], Left: v[1], Right: v[2]})
	case "P":
		v, ok := parseFloats(fields[1:], 3)
		if !ok {
			return
		}
		steering.SetGains(steer.Gains{Kp: v[0], Ki: v[1], Kd: v[2]})
		println("gains", line[2:])
	case "M":
		if len(fields) != 2 {
			return
		}
		switch fields[1] {
		case "0":
			mode = modeOnboard
		case "1":
			mode = modeHost
			act.hold(steer.DefaultConfig().Servo.Center)
		default:
			return
		}
		println("mode", fields[1])
	}
}

func parseFloats(fields []string, n int) ([]float32, bool) {
	if len(fields) != n {
		return nil, false
	}
	out := make([]float32, n)
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 32)
		if err != nil {
			return nil, false
		}
		out[i] = float32(v)
	}
	return out, true
}
