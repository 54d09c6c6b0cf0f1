//go:build tinygo

package main

import (
	"machine"
	"time"
)

const (
	// Line sensor timing
	INTEGRATION_PERIOD = 7500 * time.Microsecond // exposure per frame
	PIXEL_TICK         = 10 * time.Microsecond   // half a pixel clock period

	// ADC configuration
	ADC_REFERENCE_MV = 3300 // Reference voltage in millivolts (3.3V)
	ADC_RESOLUTION   = 12   // ADC resolution in bits (12-bit = 0-4095)
	ADC_SHIFT        = 4    // machine.ADC.Get scales to 16 bits

	// Line sensor pins
	PIN_CLK = machine.D1
	PIN_SI  = machine.D2
	PIN_AO  = machine.A0

	// Steering servo, 50 Hz on TCC1
	PIN_SERVO = machine.D6

	// Drive motors, 10 kHz on TCC0
	PIN_MOTOR_LEFT  = machine.D9
	PIN_MOTOR_RIGHT = machine.D10
	MOTOR_PWM_HZ    = 10000

	// Serial configuration
	// A frame line is at most "F,<seq>," plus 128 * 5 bytes, ~660 bytes.
	// At 115200 baud (11,520 bytes/sec) that is ~57 ms, so onboard mode only
	// streams every TELEMETRY_EVERY frames. Host mode streams every frame and
	// the loop runs at the link rate.
	UART_BAUD_RATE  = 115200
	TELEMETRY_EVERY = 16
)

var (
	servoPWM = machine.TCC1
	motorPWM = machine.TCC0
)
