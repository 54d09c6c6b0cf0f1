package acquire

import "sync/atomic"

// Buffer hands frames from a single writer to a single reader without locks.
//
// It keeps two frames. The published one is bufs[seq&1]; the writer only ever
// touches the other one. Publish flips them by bumping seq. A reader copies the
// published frame and accepts the copy only if seq did not move meanwhile.
type Buffer struct {
	seq  atomic.Uint64
	bufs [2][FrameLength]atomic.Uint32
}

// Set stores pixel i of the frame being filled.
func (b *Buffer) Set(i int, v uint16) {
	b.bufs[(b.seq.Load()+1)&1][i].Store(uint32(v))
}

// Publish makes the frame being filled current and returns its sequence number.
func (b *Buffer) Publish() uint64 {
	return b.seq.Add(1)
}

// Seq returns the sequence number of the current frame, 0 before the first publish.
func (b *Buffer) Seq() uint64 {
	return b.seq.Load()
}

// Read copies the current frame into dst and returns its sequence number.
func (b *Buffer) Read(dst *Frame) (uint64, error) {
	seq := b.seq.Load()
	if seq == 0 {
		return 0, ErrNoFrame
	}
	src := &b.bufs[seq&1]
	for i := range src {
		dst[i] = uint16(src[i].Load())
	}
	return seq, b.check(seq)
}

func (b *Buffer) check(seq uint64) error {
	if b.seq.Load() != seq {
		return ErrTornFrame
	}
	return nil
}
