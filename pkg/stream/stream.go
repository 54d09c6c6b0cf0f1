// Package stream provides channel stages for frame streams.
package stream

import (
	movingaverage "github.com/RobinUS2/golang-moving-average"
	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/car"
	"github.com/rs/zerolog/log"
)

// DefaultBufferSize is used when a stage is given a non-positive buffer size.
const DefaultBufferSize = 100

// Stage transforms a frame stream. The output closes after the input closes
// and the stage has drained.
type Stage func(in <-chan car.RawFrame) <-chan car.RawFrame

// Chain composes stages left to right.
func Chain(stages ...Stage) Stage {
	return func(in <-chan car.RawFrame) <-chan car.RawFrame {
		out := in
		for _, s := range stages {
			if s != nil {
				out = s(out)
			}
		}
		return out
	}
}

// Tee copies every frame from in to two outputs. The primary output receives
// every frame; the monitor output drops frames while it is full so a slow
// display never stalls the control path.
func Tee(in <-chan car.RawFrame, bufSize int) (primary, monitor <-chan car.RawFrame) {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	p := make(chan car.RawFrame, bufSize)
	m := make(chan car.RawFrame, bufSize)

	go func() {
		defer close(p)
		defer close(m)

		for f := range in {
			p <- f
			select {
			case m <- f:
			default:
				log.Debug().Uint64("seq", f.Seq).Msg("Monitor channel full, dropping frame")
			}
		}
	}()

	return p, m
}

// NewAveraging creates a stage that averages each pixel over the last window
// frames. One averaged frame is emitted per input frame, carrying the input's
// timestamp and sequence number.
func NewAveraging(window int, bufSize int) Stage {
	if window <= 0 {
		window = 1 // No averaging if invalid
	}
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}

	return func(in <-chan car.RawFrame) <-chan car.RawFrame {
		out := make(chan car.RawFrame, bufSize)

		go func() {
			defer close(out)

			var pixels [acquire.FrameLength]*movingaverage.MovingAverage
			for i := range pixels {
				pixels[i] = movingaverage.New(window)
			}

			for raw := range in {
				avg := car.RawFrame{Timestamp: raw.Timestamp, Seq: raw.Seq}
				for i, v := range raw.Samples {
					pixels[i].Add(float64(v))
					avg.Samples[i] = uint16(pixels[i].Avg() + 0.5) // Round to nearest
				}

				select {
				case out <- avg:
				default:
					log.Debug().Uint64("seq", avg.Seq).Msg("Averaging output channel full")
				}
			}
		}()

		return out
	}
}
