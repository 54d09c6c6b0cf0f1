// Package control runs one frame through conditioning, edge detection and
// steering. It performs no I/O so it runs unchanged on the microcontroller
// and on the host.
package control

import (
	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/filter"
	"github.com/itohio/golinecar/pkg/steer"
)

// Result is everything one control cycle computed. Signals alias the cycle's
// buffers until the next Run.
type Result struct {
	Signals  filter.Signals
	Estimate edge.Estimate
	Command  steer.Command
	State    steer.State
}

// Cycle owns the buffers and controller state for a sequence of frames.
type Cycle struct {
	conditioner *filter.Conditioner
	detector    edge.Detector
	steering    *steer.Controller
}

// New creates a cycle.
func New(detector edge.Detector, steering *steer.Controller) *Cycle {
	return &Cycle{
		conditioner: filter.NewConditioner(),
		detector:    detector,
		steering:    steering,
	}
}

// NewFromConfig builds the detector and controller from their configuration.
func NewFromConfig(strategy edge.Strategy, cfg steer.Config) (*Cycle, error) {
	detector, err := edge.New(strategy)
	if err != nil {
		return nil, err
	}
	steering, err := steer.New(cfg)
	if err != nil {
		return nil, err
	}
	return New(detector, steering), nil
}

// Run computes the actuator command for one frame.
func (c *Cycle) Run(frame *acquire.Frame) Result {
	signals := c.conditioner.Condition(frame)
	est := c.detector.Detect(signals.Derivative, c.steering.State().LastCenter)
	cmd := c.steering.Update(est.Center)
	return Result{
		Signals:  signals,
		Estimate: est,
		Command:  cmd,
		State:    c.steering.State(),
	}
}

// Steering returns the cycle's steering controller.
func (c *Cycle) Steering() *steer.Controller {
	return c.steering
}
