package steer

import (
	"fmt"
	"sync"
)

// Config configures a Controller.
type Config struct {
	FrameWidth int        `yaml:"frame_width"`
	Nominal    int        `yaml:"nominal"` // center position that means "on track"
	Gains      Gains      `yaml:"gains"`
	Servo      ServoRange `yaml:"servo"`
	Motor      MotorRange `yaml:"motor"`
	Governor   Governor   `yaml:"governor"`
	Allocation Allocation `yaml:"allocation"`
}

// Validate checks the ranges and the allocation.
func (c Config) Validate() error {
	if c.FrameWidth <= 0 {
		return fmt.Errorf("%w: frame width %d", ErrInvalidRange, c.FrameWidth)
	}
	if c.Nominal < 0 || c.Nominal >= c.FrameWidth {
		return fmt.Errorf("%w: nominal center %d outside frame", ErrInvalidRange, c.Nominal)
	}
	if err := c.Servo.Validate(); err != nil {
		return err
	}
	if err := c.Motor.Validate(); err != nil {
		return err
	}
	if _, err := c.Allocation.Allocator(); err != nil {
		return err
	}
	return nil
}

// State is the controller memory carried from one cycle to the next.
type State struct {
	TurnPrev   float32
	ErrPrev    float32
	ErrPrev2   float32
	LastCenter int
	Speed      float32
}

// Command is one actuation: servo and motor duty cycles in percent, each
// within its configured range. The one exception is Hold, which stops the
// motors at 0% regardless of the motor range.
type Command struct {
	Servo float32
	Left  float32
	Right float32
}

// Hold returns the stop command: servo centered, both motors off.
func Hold(center float32) Command {
	return Command{Servo: center}
}

// Controller runs the incremental PID and owns its State. Update is called
// once per frame; SetGains may be called from another goroutine.
type Controller struct {
	mu    sync.Mutex
	cfg   Config
	alloc Allocator
	state State
}

// New validates cfg and creates a controller seeded to steer straight ahead.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid steering config: %w", err)
	}
	alloc, _ := cfg.Allocation.Allocator()

	return &Controller{
		cfg:   cfg,
		alloc: alloc,
		state: State{
			TurnPrev:   float32(cfg.Nominal),
			LastCenter: cfg.FrameWidth / 2,
			Speed:      cruise(cfg),
		},
	}, nil
}

// Update runs one control cycle for a track center estimate.
func (c *Controller) Update(center int) Command {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.state
	err := float32(c.cfg.Nominal - center)
	turn := PID(s.TurnPrev, err, s.ErrPrev, s.ErrPrev2, c.cfg.Gains)
	servo := ServoDuty(turn, c.cfg.FrameWidth, c.cfg.Servo)

	s.Speed = c.cfg.Governor.Step(s.Speed, c.cfg.Nominal-center, c.cfg.Motor)
	left, right := c.alloc(servo, c.cfg.Servo, s.Speed, c.cfg.Motor.Min)

	s.TurnPrev = turn
	s.ErrPrev2 = s.ErrPrev
	s.ErrPrev = err
	s.LastCenter = center

	return Command{
		Servo: servo,
		Left:  Clamp(left, c.cfg.Motor.Min, c.cfg.Motor.Max),
		Right: Clamp(right, c.cfg.Motor.Min, c.cfg.Motor.Max),
	}
}

// State returns a copy of the controller memory.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Gains returns the current PID gains.
func (c *Controller) Gains() Gains {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg.Gains
}

// SetGains replaces the PID gains from the next cycle on.
func (c *Controller) SetGains(g Gains) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cfg.Gains = g
}

func cruise(cfg Config) float32 {
	if !cfg.Governor.Enabled {
		return cfg.Motor.Max
	}
	return Clamp(cfg.Governor.Base, cfg.Motor.Min, cfg.Motor.Max)
}

// DefaultConfig returns the tuning for a 128-pixel sensor, a 50 Hz steering
// servo and 10 kHz drive PWM.
func DefaultConfig() Config {
	return Config{
		FrameWidth: 128,
		Nominal:    64,
		Gains:      Gains{Kp: 5, Ki: 0, Kd: 2},
		Servo:      ServoRange{Min: 4.5, Max: 9, Center: 6.75},
		Motor:      MotorRange{Min: 40, Max: 60},
		Governor: Governor{
			Enabled: true,
			Margin:  4,
			Base:    50,
			Decel:   5,
			Accel:   2,
		},
		Allocation: AllocSymmetric,
	}
}
