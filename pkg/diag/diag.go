// Package diag reports control cycles for tuning and debugging.
package diag

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"sync"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/itohio/golinecar/pkg/control"
	"github.com/rs/zerolog"
)

var (
	_ Sink = Nop{}
	_ Sink = (*Text)(nil)
	_ Sink = (*Log)(nil)
)

// Record is one completed control cycle.
type Record struct {
	Seq    uint64
	Frame  *acquire.Frame
	Result control.Result
}

// Sink receives control cycle records. Report is called from the control
// loop and must not block for long.
type Sink interface {
	Report(r Record)
}

// Nop discards all records.
type Nop struct{}

// Report implements Sink.
func (Nop) Report(Record) {}

// Text writes one line per reported cycle:
//
//	seq=42 L=31 R=89 C=60 servo=5.766 left=46.750 right=52.000
//
// Every frameEvery reports the raw frame is dumped between "-1" and "-2"
// marker lines, the format of the firmware's camera debug stream.
type Text struct {
	mu         sync.Mutex
	w          *bufio.Writer
	every      int
	frameEvery int
	cycles     int
	reports    int
}

// NewText creates a text sink reporting every Nth cycle. every <= 0 reports
// nothing; frameEvery <= 0 never dumps frames.
func NewText(w io.Writer, every, frameEvery int) *Text {
	return &Text{
		w:          bufio.NewWriter(w),
		every:      every,
		frameEvery: frameEvery,
	}
}

// Report implements Sink.
func (t *Text) Report(r Record) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.every <= 0 {
		return
	}
	t.cycles++
	if t.cycles%t.every != 0 {
		return
	}
	t.reports++

	est, cmd := r.Result.Estimate, r.Result.Command
	fmt.Fprintf(t.w, "seq=%d L=%d R=%d C=%d servo=%.3f left=%.3f right=%.3f\n",
		r.Seq, est.Left, est.Right, est.Center, cmd.Servo, cmd.Left, cmd.Right)

	if t.frameEvery > 0 && r.Frame != nil && t.reports%t.frameEvery == 0 {
		writeFrame(t.w, r.Frame)
	}
	t.w.Flush()
}

func writeFrame(w *bufio.Writer, f *acquire.Frame) {
	w.WriteString("-1\n")
	var buf [8]byte
	for i, v := range f {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.Write(strconv.AppendUint(buf[:0], uint64(v), 10))
	}
	w.WriteString("\n-2\n")
}

// Log reports every Nth cycle as a zerolog debug event.
type Log struct {
	logger zerolog.Logger
	every  int

	mu     sync.Mutex
	cycles int
}

// NewLog creates a zerolog sink. every <= 0 reports every cycle.
func NewLog(logger zerolog.Logger, every int) *Log {
	if every <= 0 {
		every = 1
	}
	return &Log{logger: logger, every: every}
}

// Report implements Sink.
func (l *Log) Report(r Record) {
	l.mu.Lock()
	l.cycles++
	skip := l.cycles%l.every != 0
	l.mu.Unlock()
	if skip {
		return
	}

	est, cmd, st := r.Result.Estimate, r.Result.Command, r.Result.State
	l.logger.Debug().
		Uint64("seq", r.Seq).
		Int("left", est.Left).
		Int("right", est.Right).
		Int("center", est.Center).
		Float32("servo", cmd.Servo).
		Float32("motor_left", cmd.Left).
		Float32("motor_right", cmd.Right).
		Float32("error", st.ErrPrev).
		Float32("speed", st.Speed).
		Msg("cycle")
}

// Multi fans a record out to several sinks.
type Multi []Sink

// Report implements Sink.
func (m Multi) Report(r Record) {
	for _, s := range m {
		s.Report(r)
	}
}
