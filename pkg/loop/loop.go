// Package loop drives the control cycle on the host from a stream of frames.
package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/car"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/itohio/golinecar/pkg/diag"
	"github.com/rs/zerolog/log"
)

// StatsWindow is the number of cycles the rolling statistics cover.
const StatsWindow = 64

// FrameReader is a non-blocking source of the latest published frame.
// *acquire.Controller implements it.
type FrameReader interface {
	ReadCurrentFrame(dst *acquire.Frame) (uint64, error)
}

// Stats are loop counters and rolling statistics.
type Stats struct {
	Cycles        uint64        // control cycles run
	Torn          uint64        // frame reads that raced with a publish
	Skipped       uint64        // polls that found no new frame
	ActuateErrors uint64        // commands the actuator rejected
	MeanAbsError  float64       // rolling mean of |nominal - center| in pixels
	MeanCycle     time.Duration // rolling mean time spent in the control cycle
}

// Snapshot is a copy of the latest cycle, safe to keep after the callback
// returns.
type Snapshot struct {
	Timestamp time.Time
	Seq       uint64
	Frame     acquire.Frame
	Result    control.Result
	Stats     Stats
}

// Loop runs control cycles and hands the commands to an actuator.
type Loop struct {
	cycle    *control.Cycle
	actuator car.Actuator
	sink     diag.Sink

	mu       sync.RWMutex
	stats    Stats
	absError *movingaverage.MovingAverage
	cycleDur *movingaverage.MovingAverage
	latest   Snapshot
	lastSeq  uint64
	shutdown bool // set when the input ends; suppresses callbacks

	callbacks []func(Snapshot)
	cbMu      sync.RWMutex
}

// New creates a loop. A nil actuator only computes commands; a nil sink
// reports nothing.
func New(cycle *control.Cycle, actuator car.Actuator, sink diag.Sink) *Loop {
	if sink == nil {
		sink = diag.Nop{}
	}
	return &Loop{
		cycle:    cycle,
		actuator: actuator,
		sink:     sink,
		absError: movingaverage.New(StatsWindow),
		cycleDur: movingaverage.New(StatsWindow),
	}
}

// ProcessFrames runs one cycle per frame until the input channel closes.
// After that no further callbacks are sent until ResetShutdown.
func (l *Loop) ProcessFrames(input <-chan car.RawFrame) {
	for f := range input {
		l.process(f.Timestamp, f.Seq, &f.Samples)
	}
	l.mu.Lock()
	l.shutdown = true
	l.mu.Unlock()
}

// Poll reads the latest frame from r every interval and runs a cycle when
// a new one has been published. Torn reads and repeated frames are skipped.
// It returns when ctx is done.
func (l *Loop) Poll(ctx context.Context, r FrameReader, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	defer func() {
		l.mu.Lock()
		l.shutdown = true
		l.mu.Unlock()
	}()

	var frame acquire.Frame
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.PollOnce(r, &frame)
		}
	}
}

// PollOnce performs a single poll of r into frame. It reports whether a
// cycle ran.
func (l *Loop) PollOnce(r FrameReader, frame *acquire.Frame) bool {
	seq, err := r.ReadCurrentFrame(frame)
	switch {
	case errors.Is(err, acquire.ErrTornFrame):
		l.mu.Lock()
		l.stats.Torn++
		l.mu.Unlock()
		return false
	case err != nil:
		l.mu.Lock()
		l.stats.Skipped++
		l.mu.Unlock()
		return false
	}

	l.mu.RLock()
	stale := seq == l.lastSeq
	l.mu.RUnlock()
	if stale {
		l.mu.Lock()
		l.stats.Skipped++
		l.mu.Unlock()
		return false
	}

	l.process(time.Now(), seq, frame)
	return true
}

func (l *Loop) process(ts time.Time, seq uint64, frame *acquire.Frame) {
	start := time.Now()
	res := l.cycle.Run(frame)
	elapsed := time.Since(start)

	if l.actuator != nil {
		if err := l.actuator.Actuate(res.Command); err != nil {
			log.Warn().Err(err).Uint64("seq", seq).Msg("Failed to actuate")
			l.mu.Lock()
			l.stats.ActuateErrors++
			l.mu.Unlock()
		}
	}

	l.sink.Report(diag.Record{Seq: seq, Frame: frame, Result: res})

	l.mu.Lock()
	l.lastSeq = seq
	l.stats.Cycles++
	l.absError.Add(abs(float64(res.State.ErrPrev)))
	l.cycleDur.Add(float64(elapsed))
	l.stats.MeanAbsError = l.absError.Avg()
	l.stats.MeanCycle = time.Duration(l.cycleDur.Avg())

	res.Signals = res.Signals.Clone()
	l.latest = Snapshot{
		Timestamp: ts,
		Seq:       seq,
		Frame:     *frame,
		Result:    res,
		Stats:     l.stats,
	}
	snap := l.latest
	shouldNotify := !l.shutdown
	l.mu.Unlock()

	if shouldNotify {
		l.notifyCallbacks(snap)
	}
}

// Latest returns the most recent cycle. ok is false before the first cycle.
func (l *Loop) Latest() (snap Snapshot, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.latest, l.stats.Cycles > 0
}

// Stats returns the loop counters.
func (l *Loop) Stats() Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stats
}

// OnUpdate registers a callback invoked after every cycle. The callback runs
// on the loop goroutine and should return quickly.
func (l *Loop) OnUpdate(callback func(Snapshot)) {
	l.cbMu.Lock()
	defer l.cbMu.Unlock()
	l.callbacks = append(l.callbacks, callback)
}

// ResetShutdown re-enables callbacks before starting a new chain.
func (l *Loop) ResetShutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shutdown = false
}

func (l *Loop) notifyCallbacks(snap Snapshot) {
	l.cbMu.RLock()
	callbacks := make([]func(Snapshot), len(l.callbacks))
	copy(callbacks, l.callbacks)
	l.cbMu.RUnlock()

	for _, cb := range callbacks {
		if cb != nil {
			cb(snap)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
