package acquire

import "sync/atomic"

// Stats counts acquisition anomalies. All counters are monotonic.
type Stats struct {
	Frames        uint64 // frames published
	Overruns      uint64 // integration timer fired while a readout was still in progress
	SpuriousTicks uint64 // pixel ticks received while idle
	StaleSamples  uint64 // pixels latched from a conversion that was already consumed
}

// Controller sequences one sensor readout per integration period.
//
// OnIntegrationElapsed, OnPixelTick and OnConversion are handler entry points
// and must not run concurrently with each other, as with interrupt handlers
// sharing one priority level. ReadCurrentFrame and Stats may be called from
// any goroutine.
type Controller struct {
	lines Lines
	timer PixelTimer
	latch Latch
	buf   Buffer

	state   State
	step    int // strobe phase while Strobing, next pixel while Capturing
	clock   bool
	lastGen uint32

	frames   atomic.Uint64
	overruns atomic.Uint64
	spurious atomic.Uint64
	stale    atomic.Uint64
}

// New creates an idle controller driving the given lines and pixel clock.
func New(lines Lines, timer PixelTimer) *Controller {
	return &Controller{
		lines: lines,
		timer: timer,
	}
}

// Handle dispatches ev to its handler.
func (c *Controller) Handle(ev Event) {
	switch ev {
	case IntegrationElapsed:
		c.OnIntegrationElapsed()
	case PixelTick:
		c.OnPixelTick()
	}
}

// OnConversion latches a finished ADC conversion.
func (c *Controller) OnConversion(v uint16) {
	c.latch.Store(v)
}

// OnIntegrationElapsed starts a new readout. A readout still in progress is
// not restarted: the pixel clock is re-armed and the overrun is counted.
func (c *Controller) OnIntegrationElapsed() {
	switch c.state {
	case Idle:
		c.start()
	case Done:
		c.setClock(false)
		c.start()
	default:
		c.overruns.Add(1)
		c.timer.Arm()
	}
}

// OnPixelTick advances the readout by one clock half-period.
func (c *Controller) OnPixelTick() {
	switch c.state {
	case Idle:
		c.spurious.Add(1)
	case Strobing:
		c.strobe()
	case Capturing:
		c.capture()
	case Done:
		c.setClock(false)
		c.timer.Disarm()
		c.step = 0
		c.state = Idle
	}
}

// State returns the current state. Handler context only.
func (c *Controller) State() State {
	return c.state
}

// NextPixel returns the pixel the next falling clock edge will latch, or -1
// when the next tick latches nothing. Handler context only.
func (c *Controller) NextPixel() int {
	switch {
	case c.state == Strobing && c.step == 3:
		return 0
	case c.state == Capturing && c.clock:
		return c.step
	default:
		return -1
	}
}

// ReadCurrentFrame copies the most recently published frame into dst without
// blocking. It returns ErrTornFrame if the copy raced with a publish.
func (c *Controller) ReadCurrentFrame(dst *Frame) (uint64, error) {
	return c.buf.Read(dst)
}

// Seq returns the sequence number of the most recently published frame.
func (c *Controller) Seq() uint64 {
	return c.buf.Seq()
}

// Stats returns a snapshot of the anomaly counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Frames:        c.frames.Load(),
		Overruns:      c.overruns.Load(),
		SpuriousTicks: c.spurious.Load(),
		StaleSamples:  c.stale.Load(),
	}
}

func (c *Controller) start() {
	c.step = 0
	c.state = Strobing
	c.timer.Arm()
}

// strobe clocks SI high across one rising clock edge, then latches pixel 0 on
// the falling edge that ends the pulse.
func (c *Controller) strobe() {
	switch c.step {
	case 0, 2:
		c.setClock(true)
	case 1:
		c.setClock(false)
		c.lines.SetStrobe(true)
	case 3:
		c.setClock(false)
		c.lines.SetStrobe(false)
		c.sample(0)
		c.step = 1
		c.state = Capturing
		return
	}
	c.step++
}

func (c *Controller) capture() {
	if !c.clock {
		c.setClock(true)
		return
	}
	c.setClock(false)
	c.sample(c.step)
	c.step++
	if c.step == FrameLength {
		c.buf.Publish()
		c.frames.Add(1)
		c.state = Done
	}
}

func (c *Controller) sample(i int) {
	v, gen := c.latch.Load()
	if gen == c.lastGen {
		c.stale.Add(1)
	}
	c.lastGen = gen
	c.buf.Set(i, v)
}

func (c *Controller) setClock(high bool) {
	c.clock = high
	c.lines.SetClock(high)
}
