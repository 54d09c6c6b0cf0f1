//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
)

const (
	modeOnboard = 0 // the loop below steers the vehicle
	modeHost    = 1 // steering comes from A lines over the link
)

var (
	uart = machine.UART0
	adc  machine.ADC

	mode = modeOnboard

	// Timing
	lastIntegration time.Time
)

func main() {
	PIN_CLK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_SI.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_CLK.Low()
	PIN_SI.Low()

	machine.InitADC()
	PIN_AO.Configure(machine.PinConfig{Mode: machine.PinInput})
	adc = machine.ADC{Pin: PIN_AO}
	adc.Configure(machine.ADCConfig{
		Reference:  ADC_REFERENCE_MV,
		Resolution: ADC_RESOLUTION,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	if err := acquire.ValidateTiming(INTEGRATION_PERIOD, PIXEL_TICK); err != nil {
		for {
			println("timing:", err.Error())
			time.Sleep(time.Second)
		}
	}

	act, err := configureActuators()
	if err != nil {
		for {
			println("actuators:", err.Error())
			time.Sleep(time.Second)
		}
	}

	cfg := steer.DefaultConfig()
	cycle, err := control.NewFromConfig(edge.Adaptive, cfg)
	if err != nil {
		for {
			println("controller:", err.Error())
			time.Sleep(time.Second)
		}
	}
	act.hold(cfg.Servo.Center)

	timer := &pixelTimer{}
	acq := acquire.New(sensorLines{}, timer)

	var (
		frame    acquire.Frame
		lastSeq  uint64
		reported int
	)

	lastIntegration = time.Now()
	for {
		now := time.Now()

		// Check for serial input (non-blocking)
		processSerial(cycle.Steering(), act)

		if now.Sub(lastIntegration) >= INTEGRATION_PERIOD {
			lastIntegration = now
			acq.OnIntegrationElapsed()
		}

		if timer.due(now) {
			if p := acq.NextPixel(); p >= 0 {
				acq.OnConversion(readPixel(adc))
			}
			acq.OnPixelTick()
		}

		if acq.Seq() == lastSeq {
			continue
		}
		seq, err := acq.ReadCurrentFrame(&frame)
		if err != nil {
			continue
		}
		lastSeq = seq

		res := cycle.Run(&frame)
		if mode == modeOnboard {
			act.Actuate(res.Command)
		}

		reported++
		if mode == modeHost || reported >= TELEMETRY_EVERY {
			reported = 0
			writeFrame(seq, &frame)
		}
	}
}
