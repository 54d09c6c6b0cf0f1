package car

import (
	"math"
	"testing"
	"time"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/config"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/itohio/golinecar/pkg/edge"
	"github.com/itohio/golinecar/pkg/steer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietMock() config.MockConfig {
	cfg := config.Default().Mock
	cfg.NoiseLevel = 0
	cfg.Curvature = 0
	return cfg
}

func TestTrack_Intensity(t *testing.T) {
	tr := NewTrack(quietMock())

	assert.Equal(t, uint16(3000), tr.Intensity(0))
	assert.Equal(t, uint16(3000), tr.Intensity(127))
	assert.Equal(t, uint16(400), tr.Intensity(64))
	assert.Equal(t, uint16(400), tr.Intensity(44))
	assert.Equal(t, uint16(400), tr.Intensity(84))
	assert.Equal(t, uint16(3000), tr.Intensity(43))
	assert.Equal(t, uint16(3000), tr.Intensity(85))
}

func TestTrack_SteeringMovesTrack(t *testing.T) {
	tr := NewTrack(quietMock())

	tr.Advance(0.01, 1)
	assert.InDelta(t, -1.2, tr.Offset(), 1e-9)
	assert.InDelta(t, 62.8, tr.Center(), 1e-9)

	tr.Advance(0.01, -2)
	assert.InDelta(t, 1.2, tr.Offset(), 1e-9)

	for range 200 {
		tr.Advance(0.01, -5)
	}
	assert.Equal(t, 64.0, tr.Offset())
}

func TestTrack_NoiseStaysInADCRange(t *testing.T) {
	cfg := quietMock()
	cfg.NoiseLevel = 10000
	tr := NewTrack(cfg)

	for i := range acquire.FrameLength {
		assert.LessOrEqual(t, tr.Intensity(i), uint16(4095))
	}
}

func TestMock_ReadoutGoesThroughStateMachine(t *testing.T) {
	cfg := config.Default()
	cfg.Mock = quietMock()
	m := NewMock(cfg)

	f1, err := m.step()
	require.NoError(t, err)
	f2, err := m.step()
	require.NoError(t, err)

	assert.Equal(t, uint64(1), f1.Seq)
	assert.Equal(t, uint64(2), f2.Seq)
	assert.Equal(t, uint16(400), f1.Samples[64])
	assert.Equal(t, uint16(3000), f1.Samples[0])

	stats := m.Acquisition().Stats()
	assert.Equal(t, uint64(2), stats.Frames)
	assert.Zero(t, stats.StaleSamples)
	assert.Equal(t, acquire.Idle, m.Acquisition().State())
}

func TestMock_ClosedLoopFollowsTrack(t *testing.T) {
	for _, strategy := range []edge.Strategy{edge.Adaptive, edge.Extrema} {
		t.Run(strategy.String(), func(t *testing.T) {
			cfg := config.Default()
			m := NewMock(cfg)
			cycle, err := control.NewFromConfig(strategy, cfg.Steering())
			require.NoError(t, err)

			worst := 0.0
			for i := range 1000 {
				frame, err := m.step()
				require.NoError(t, err)
				res := cycle.Run(&frame.Samples)
				m.cmd = res.Command
				if i > 10 {
					worst = math.Max(worst, math.Abs(m.TrackOffset()))
				}
			}

			assert.Less(t, worst, 12.0)
		})
	}
}

func TestMock_ConnectStreamsFrames(t *testing.T) {
	cfg := config.Default()
	m := NewMock(cfg)

	require.NoError(t, m.Connect())
	assert.True(t, m.IsConnected())
	assert.ErrorIs(t, m.Connect(), ErrAlreadyConnected)

	select {
	case f := <-m.Frames():
		assert.Positive(t, f.Seq)
	case <-time.After(time.Second):
		t.Fatal("no frame from mock")
	}

	require.NoError(t, m.Actuate(steer.Command{Servo: 7, Left: 50, Right: 50}))
	require.NoError(t, m.SetGains(steer.Gains{Kp: 1}))
	assert.Equal(t, steer.Gains{Kp: 1}, m.Gains())

	require.NoError(t, m.Close())
	assert.False(t, m.IsConnected())
	assert.NoError(t, m.Close())

	// Drain: the channel is closed after Close.
	for range m.Frames() {
	}
}

func TestMock_InvalidTimingFallsBack(t *testing.T) {
	cfg := config.Default()
	cfg.Camera.IntegrationPeriod = 0
	require.Error(t, cfg.Validate())

	m := NewMock(cfg)
	assert.Equal(t, config.Default().Camera, m.cfg.Camera)

	require.NoError(t, m.Connect())
	select {
	case f := <-m.Frames():
		assert.Positive(t, f.Seq)
	case <-time.After(time.Second):
		t.Fatal("no frame from mock")
	}
	require.NoError(t, m.Close())
	for range m.Frames() {
	}
}

func TestMock_CopiesConfig(t *testing.T) {
	cfg := config.Default()
	m := NewMock(cfg)

	cfg.Servo.Center = 99
	cfg.Camera.IntegrationPeriod = 0

	assert.Equal(t, config.Default().Servo.Center, m.cfg.Servo.Center)
	assert.Equal(t, config.Default().Camera.IntegrationPeriod, m.cfg.Camera.IntegrationPeriod)
}

func TestMock_CommandsRequireConnection(t *testing.T) {
	m := NewMock(nil)

	assert.ErrorIs(t, m.Actuate(steer.Command{}), ErrNotConnected)
	assert.ErrorIs(t, m.SetGains(steer.Gains{}), ErrNotConnected)
}
