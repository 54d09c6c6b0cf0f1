//go:build tinygo

package main

import (
	"machine"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/steer"
	"tinygo.org/x/drivers/servo"
)

// sensorLines drives the line sensor's clock and strobe pins.
type sensorLines struct{}

func (sensorLines) SetClock(high bool)  { PIN_CLK.Set(high) }
func (sensorLines) SetStrobe(high bool) { PIN_SI.Set(high) }

// pixelTimer is a software pixel clock polled from the main loop.
type pixelTimer struct {
	armed bool
	last  time.Time
}

func (t *pixelTimer) Arm() {
	t.armed = true
	t.last = time.Now()
}

func (t *pixelTimer) Disarm() {
	t.armed = false
}

// due reports whether a tick has elapsed and restarts the period if so.
func (t *pixelTimer) due(now time.Time) bool {
	if !t.armed || now.Sub(t.last) < PIXEL_TICK {
		return false
	}
	t.last = now
	return true
}

var (
	_ acquire.Lines      = sensorLines{}
	_ acquire.PixelTimer = (*pixelTimer)(nil)
)

// actuators drives the steering servo and both drive motors.
type actuators struct {
	servo      servo.Servo
	leftMotor  uint8
	rightMotor uint8
}

func configureActuators() (*actuators, error) {
	s, err := servo.New(servoPWM, PIN_SERVO)
	if err != nil {
		return nil, err
	}

	if err := motorPWM.Configure(machine.PWMConfig{Period: uint64(time.Second / MOTOR_PWM_HZ)}); err != nil {
		return nil, err
	}
	left, err := motorPWM.Channel(PIN_MOTOR_LEFT)
	if err != nil {
		return nil, err
	}
	right, err := motorPWM.Channel(PIN_MOTOR_RIGHT)
	if err != nil {
		return nil, err
	}

	return &actuators{servo: s, leftMotor: left, rightMotor: right}, nil
}

// Actuate implements car.Actuator. Duty cycles are in percent; the servo
// period is 20 ms, so 1% is 200 µs.
func (a *actuators) Actuate(cmd steer.Command) error {
	a.servo.SetMicroseconds(int16(cmd.Servo * 200))
	motorPWM.Set(a.leftMotor, dutyValue(cmd.Left))
	motorPWM.Set(a.rightMotor, dutyValue(cmd.Right))
	return nil
}

// hold centers the servo and stops both motors.
func (a *actuators) hold(center float32) {
	a.Actuate(steer.Hold(center))
}

func dutyValue(percent float32) uint32 {
	if percent <= 0 {
		return 0
	}
	if percent >= 100 {
		return motorPWM.Top()
	}
	return uint32(uint64(motorPWM.Top()) * uint64(percent*100) / 10000)
}

// readPixel converts one sample to 12 bits.
func readPixel(adc machine.ADC) uint16 {
	return adc.Get() >> ADC_SHIFT
}
