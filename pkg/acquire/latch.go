package acquire

import "sync/atomic"

// Latch is the single-slot conversion register written by the ADC completion
// handler and read by the pixel clock handler.
//
// There is no flow control: a new conversion overwrites the previous value
// whether or not it was consumed. Every store bumps a generation counter so
// the reader can tell when it picked up the same conversion twice.
type Latch struct {
	v atomic.Uint64
}

// Store latches a conversion result. Only one goroutine may store.
func (l *Latch) Store(v uint16) {
	gen := l.v.Load()>>32 + 1
	l.v.Store(gen<<32 | uint64(v))
}

// Load returns the latched value and its generation. Generation 0 means
// nothing has been latched yet.
func (l *Latch) Load() (uint16, uint32) {
	v := l.v.Load()
	return uint16(v), uint32(v >> 32)
}
