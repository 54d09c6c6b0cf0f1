package loop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/car"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/itohio/golinecar/pkg/diag"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackFrame is a dark track 40 pixels wide centered at center on a bright floor.
func trackFrame(center int) acquire.Frame {
	var f acquire.Frame
	for i := range f {
		f[i] = 3000
		if i >= center-20 && i <= center+20 {
			f[i] = 400
		}
	}
	return f
}

func newCycle(t *testing.T) *control.Cycle {
	t.Helper()
	c, err := control.NewFromConfig(edge.Adaptive, steer.DefaultConfig())
	require.NoError(t, err)
	return c
}

type recordingActuator struct {
	mu   sync.Mutex
	cmds []steer.Command
	err  error
}

func (a *recordingActuator) Actuate(cmd steer.Command) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cmds = append(a.cmds, cmd)
	return a.err
}

func (a *recordingActuator) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.cmds)
}

type countingSink struct {
	mu   sync.Mutex
	seqs []uint64
}

func (s *countingSink) Report(r diag.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs = append(s.seqs, r.Seq)
}

// scriptedReader returns its results in order, then repeats the last one.
type scriptedReader struct {
	mu      sync.Mutex
	results []readResult
}

type readResult struct {
	seq uint64
	err error
}

func (r *scriptedReader) ReadCurrentFrame(dst *acquire.Frame) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := r.results[0]
	if len(r.results) > 1 {
		r.results = r.results[1:]
	}
	*dst = trackFrame(64)
	return res.seq, res.err
}

// countingReader publishes a new frame on every read.
type countingReader struct {
	mu  sync.Mutex
	seq uint64
}

func (r *countingReader) ReadCurrentFrame(dst *acquire.Frame) (uint64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	*dst = trackFrame(64)
	return r.seq, nil
}

func TestLoop_ProcessFrames(t *testing.T) {
	act := &recordingActuator{}
	sink := &countingSink{}
	l := New(newCycle(t), act, sink)

	var snaps []Snapshot
	l.OnUpdate(func(s Snapshot) { snaps = append(snaps, s) })

	in := make(chan car.RawFrame, 4)
	now := time.Now()
	for i := range 3 {
		in <- car.RawFrame{Timestamp: now, Seq: uint64(i + 1), Samples: trackFrame(64)}
	}
	close(in)
	l.ProcessFrames(in)

	require.Len(t, snaps, 3)
	assert.Equal(t, 3, act.count())
	assert.Equal(t, []uint64{1, 2, 3}, sink.seqs)

	last := snaps[2]
	assert.Equal(t, uint64(3), last.Seq)
	assert.Equal(t, uint64(3), last.Stats.Cycles)
	assert.Equal(t, uint16(400), last.Frame[64])
	assert.Len(t, last.Result.Signals.Derivative, acquire.FrameLength)
	assert.InDelta(t, 64, last.Result.Estimate.Center, 1)

	snap, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(3), snap.Seq)
}

func TestLoop_SnapshotsDoNotAlias(t *testing.T) {
	l := New(newCycle(t), nil, nil)

	var snaps []Snapshot
	l.OnUpdate(func(s Snapshot) { snaps = append(snaps, s) })

	in := make(chan car.RawFrame, 2)
	in <- car.RawFrame{Seq: 1, Samples: trackFrame(40)}
	in <- car.RawFrame{Seq: 2, Samples: trackFrame(90)}
	close(in)
	l.ProcessFrames(in)

	require.Len(t, snaps, 2)
	assert.NotEqual(t, snaps[0].Result.Signals.Smoothed, snaps[1].Result.Signals.Smoothed)
	assert.Equal(t, uint16(400), snaps[0].Result.Signals.Smoothed[40])
	assert.Equal(t, uint16(3000), snaps[1].Result.Signals.Smoothed[40])
}

func TestLoop_NoCallbacksAfterShutdown(t *testing.T) {
	l := New(newCycle(t), nil, nil)

	calls := 0
	l.OnUpdate(func(Snapshot) { calls++ })

	in := make(chan car.RawFrame, 1)
	in <- car.RawFrame{Seq: 1, Samples: trackFrame(64)}
	close(in)
	l.ProcessFrames(in)
	require.Equal(t, 1, calls)

	// Input closed: a stray frame from an old chain does not notify.
	var frame acquire.Frame
	assert.True(t, l.PollOnce(&countingReader{seq: 10}, &frame))
	assert.Equal(t, 1, calls)

	l.ResetShutdown()
	assert.True(t, l.PollOnce(&countingReader{seq: 20}, &frame))
	assert.Equal(t, 2, calls)
}

func TestLoop_PollOnce(t *testing.T) {
	r := &scriptedReader{results: []readResult{
		{0, acquire.ErrNoFrame},
		{5, acquire.ErrTornFrame},
		{5, nil},
		{5, nil},
		{6, acquire.ErrTornFrame},
		{6, nil},
	}}
	act := &recordingActuator{}
	l := New(newCycle(t), act, nil)

	var frame acquire.Frame
	ran := make([]bool, 0, 6)
	for range 6 {
		ran = append(ran, l.PollOnce(r, &frame))
	}

	assert.Equal(t, []bool{false, false, true, false, false, true}, ran)
	st := l.Stats()
	assert.Equal(t, uint64(2), st.Cycles)
	assert.Equal(t, uint64(2), st.Torn)
	assert.Equal(t, uint64(2), st.Skipped)
	assert.Equal(t, 2, act.count())
}

func TestLoop_ActuateErrorsCounted(t *testing.T) {
	act := &recordingActuator{err: errors.New("link down")}
	l := New(newCycle(t), act, nil)

	var frame acquire.Frame
	r := &countingReader{}
	l.PollOnce(r, &frame)
	l.PollOnce(r, &frame)

	st := l.Stats()
	assert.Equal(t, uint64(2), st.Cycles)
	assert.Equal(t, uint64(2), st.ActuateErrors)
}

func TestLoop_RollingStats(t *testing.T) {
	l := New(newCycle(t), nil, nil)

	in := make(chan car.RawFrame, 2)
	in <- car.RawFrame{Seq: 1, Samples: trackFrame(64)}
	in <- car.RawFrame{Seq: 2, Samples: trackFrame(54)}
	close(in)
	l.ProcessFrames(in)

	st := l.Stats()
	assert.Greater(t, st.MeanAbsError, 0.0)
	assert.GreaterOrEqual(t, st.MeanCycle, time.Duration(0))
}

func TestLoop_Poll(t *testing.T) {
	l := New(newCycle(t), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- l.Poll(ctx, &countingReader{}, time.Millisecond)
	}()

	assert.Eventually(t, func() bool { return l.Stats().Cycles >= 3 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Poll did not return after cancel")
	}
}

func TestLoop_PollAcquisitionController(t *testing.T) {
	acq := acquire.New(nopPins{}, nopPins{})
	l := New(newCycle(t), nil, nil)
	var frame acquire.Frame

	assert.False(t, l.PollOnce(acq, &frame))

	acq.OnIntegrationElapsed()
	for range acquire.TicksPerFrame {
		if p := acq.NextPixel(); p >= 0 {
			acq.OnConversion(trackFrame(64)[p])
		}
		acq.OnPixelTick()
	}

	assert.True(t, l.PollOnce(acq, &frame))
	snap, ok := l.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.Seq)
	assert.Equal(t, trackFrame(64), snap.Frame)
}

type nopPins struct{}

func (nopPins) SetClock(bool)  {}
func (nopPins) SetStrobe(bool) {}
func (nopPins) Arm()           {}
func (nopPins) Disarm()        {}
