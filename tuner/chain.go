package main

import (
	"sync/atomic"

	"github.com/itohio/golinecar/pkg/car"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/itohio/golinecar/pkg/diag"
	"github.com/itohio/golinecar/pkg/loop"
	"github.com/itohio/golinecar/pkg/steer"
	"github.com/itohio/golinecar/pkg/stream"
)

// controlChain tracks the components of the control chain for graceful shutdown.
type controlChain struct {
	device      car.Device
	cycle       *control.Cycle
	loop        *loop.Loop
	actuator    *gatedActuator
	loopDone    chan struct{} // Closed when the loop goroutine exits
	monitorDone chan struct{} // Closed when the monitor goroutine exits
}

// startChain wires a connected device into a new control loop. Frames flow
// device -> tee -> loop; the tee's monitor branch is averaged and passed to
// onAverage when frame averaging is enabled.
func startChain(cfg *config.Config, device car.Device, sink diag.Sink, onUpdate func(loop.Snapshot), onAverage func(car.RawFrame)) (*controlChain, error) {
	cycle, err := control.NewFromConfig(cfg.Edge.Strategy, cfg.Steering())
	if err != nil {
		return nil, err
	}

	act := newGatedActuator(device, cfg.Servo.Center)
	l := loop.New(cycle, act, sink)
	if onUpdate != nil {
		l.OnUpdate(onUpdate)
	}

	frames, monitor := stream.Tee(device.Frames(), 500)

	chain := &controlChain{
		device:      device,
		cycle:       cycle,
		loop:        l,
		actuator:    act,
		loopDone:    make(chan struct{}),
		monitorDone: make(chan struct{}),
	}

	go func() {
		defer close(chain.loopDone)
		l.ProcessFrames(frames)
	}()

	// Averaging converter when enabled, otherwise the monitor branch is drained.
	var averaged <-chan car.RawFrame = monitor
	if cfg.Diagnostics.AverageFrames > 0 && onAverage != nil {
		averaged = stream.NewAveraging(cfg.Diagnostics.AverageFrames, 500)(monitor)
	}
	go func() {
		defer close(chain.monitorDone)
		for f := range averaged {
			if cfg.Diagnostics.AverageFrames > 0 && onAverage != nil {
				onAverage(f)
			}
		}
	}()

	return chain, nil
}

// closeControlChain gracefully closes the control chain.
// Waits for all goroutines to finish and channels to drain.
func closeControlChain(chain *controlChain) {
	if chain == nil {
		return
	}

	// Close device - this will close the frames channel
	if chain.device != nil {
		chain.device.Close()
	}

	<-chain.loopDone
	<-chain.monitorDone
}

// gatedActuator forwards commands while driving and holds the vehicle
// (servo centered, motors off) otherwise.
type gatedActuator struct {
	next    car.Actuator
	center  float32
	driving atomic.Bool
}

func newGatedActuator(next car.Actuator, center float32) *gatedActuator {
	return &gatedActuator{next: next, center: center}
}

// Actuate implements car.Actuator.
func (g *gatedActuator) Actuate(cmd steer.Command) error {
	if !g.driving.Load() {
		cmd = steer.Hold(g.center)
	}
	return g.next.Actuate(cmd)
}

func (g *gatedActuator) setDriving(on bool) {
	g.driving.Store(on)
}

func (g *gatedActuator) isDriving() bool {
	return g.driving.Load()
}
