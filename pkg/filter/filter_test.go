package filter

import (
	"testing"

	"github.com/itohio/golinecar/pkg/acquire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trackFrame is flat at 1000 with a dip to 200 at 30..34 and a rise to 4000 at 90..94.
func trackFrame() *acquire.Frame {
	var f acquire.Frame
	for i := range f {
		f[i] = 1000
	}
	for i := 30; i <= 34; i++ {
		f[i] = 200
	}
	for i := 90; i <= 94; i++ {
		f[i] = 4000
	}
	return &f
}

func TestMedian_Length(t *testing.T) {
	for n := range 8 {
		x := make([]uint16, n)
		for i := range x {
			x[i] = uint16(i * 7 % 5)
		}
		assert.Len(t, Median(nil, x), n)
	}
}

func TestMedian_MonotonicIsNoop(t *testing.T) {
	x := []uint16{1, 2, 2, 5, 9, 9, 12, 4000}
	assert.Equal(t, x, Median(nil, x))
}

func TestMedian_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		x    []uint16
		want []uint16
	}{
		{name: "first is min", x: []uint16{9, 3, 5}, want: []uint16{3, 5, 5}},
		{name: "last is max", x: []uint16{5, 8, 2}, want: []uint16{5, 5, 8}},
		{name: "two samples", x: []uint16{7, 4}, want: []uint16{4, 7}},
		{name: "single sample", x: []uint16{42}, want: []uint16{42}},
		{name: "empty", x: []uint16{}, want: []uint16{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Median(nil, tt.x))
		})
	}
}

func TestMedian_RemovesSpike(t *testing.T) {
	x := []uint16{100, 100, 4095, 100, 100, 0, 100}
	assert.Equal(t, []uint16{100, 100, 100, 100, 100, 100, 100}, Median(nil, x))
}

func TestMedian_ReusesDestination(t *testing.T) {
	dst := make([]uint16, 0, 16)
	out := Median(dst, []uint16{1, 2, 3})
	assert.Equal(t, &dst[:1][0], &out[0])
}

func TestConvolve_TrailingWindow(t *testing.T) {
	x := []uint16{1, 2, 3, 5, 8, 13}
	y := Convolve[uint16, int32](nil, x, []int32{1, 10, 100}, 1)
	// y[i] = x[i-2] + 10*x[i-1] + 100*x[i]
	assert.Equal(t, []int32{0, 0, 321, 532, 853, 1385}, y)
}

func TestConvolve_TruncatesCorrection(t *testing.T) {
	x := []uint16{1, 1, 1, 2, 2}
	y := Convolve[uint16, uint16](nil, x, SmoothKernel, SmoothCorrection)
	// (1 + 2 + 4 + 4 + 2) / 10 = 13 / 10
	assert.Equal(t, []uint16{0, 0, 0, 0, 1}, y)
}

func TestConvolve_ShortInput(t *testing.T) {
	assert.Equal(t, []int16{0, 0}, Convolve[uint16, int16](nil, []uint16{5, 9}, DerivativeKernel, 1))
	assert.Equal(t, []int16{0, 0}, Convolve[uint16, int16](nil, []uint16{5, 9}, nil, 1))
}

func TestMedian_EmptyIsNotNil(t *testing.T) {
	out := Median(nil, []uint16{})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestConvolve_Saturates(t *testing.T) {
	wide := Convolve[uint16, uint16](nil, []uint16{60000, 60000}, []int32{1, 1}, 1)
	assert.Equal(t, []uint16{0, 65535}, wide)

	negative := Convolve[uint16, uint16](nil, []uint16{5, 9}, []int32{0, -1}, 1)
	assert.Equal(t, []uint16{0, 0}, negative)
}

func TestDerivative_SaturatesWideSteps(t *testing.T) {
	y := Derivative(nil, []uint16{0, 0, 40000, 40000, 0})
	assert.Equal(t, []int16{0, 0, -32768, -32768, 32767}, y)
}

func TestDerivative_ConstantIsZero(t *testing.T) {
	for _, n := range []int{3, 4, 17, 128} {
		x := make([]uint16, n)
		for i := range x {
			x[i] = 2222
		}
		y := Derivative(nil, x)
		require.Len(t, y, n)
		for i, v := range y {
			assert.Zero(t, v, "n=%d i=%d", n, i)
		}
	}
}

func TestDerivative_Sign(t *testing.T) {
	// Dot product with the trailing window: y[i] = x[i-2] - x[i].
	y := Derivative(nil, []uint16{0, 0, 10, 10, 10, 0, 0})
	assert.Equal(t, []int16{0, 0, -10, -10, 0, 10, 10}, y)
}

func TestSmooth_Backfill(t *testing.T) {
	x := make([]uint16, 16)
	for i := range x {
		x[i] = uint16(10 * i)
	}
	y := Smooth(nil, x)
	// A linear ramp survives the kernel with its two-sample lag removed.
	want := []uint16{20, 20, 20, 30, 40, 50, 60, 70, 80, 90, 100, 110, 120, 130, 130, 130}
	assert.Equal(t, want, y)
}

func TestSmooth_ShortInputNotBackfilled(t *testing.T) {
	y := Smooth(nil, []uint16{10, 10, 10, 10, 10})
	assert.Equal(t, []uint16{0, 0, 0, 0, 10}, y)
}

func TestConditioner_TrackFrame(t *testing.T) {
	c := NewConditioner()

	s := c.Condition(trackFrame())

	assert.Equal(t, []uint16{1000, 1000, 1000, 920, 760, 440, 280, 200, 280, 440, 760, 920, 1000}, s.Smoothed[25:38])
	assert.Equal(t, []uint16{1000, 1000, 1000, 1300, 1900, 3100, 3700, 4000, 3700, 3100, 1900, 1300, 1000}, s.Smoothed[85:98])
	assert.Equal(t, uint16(1000), s.Smoothed[0])
	assert.Equal(t, uint16(1000), s.Smoothed[127])

	want := map[int]int16{
		28: 80, 29: 240, 30: 480, 31: 480, 32: 240,
		34: -240, 35: -480, 36: -480, 37: -240, 38: -80,
		88: -300, 89: -900, 90: -1800, 91: -1800, 92: -900,
		94: 900, 95: 1800, 96: 1800, 97: 900, 98: 300,
	}
	for i, v := range s.Derivative {
		assert.Equal(t, want[i], v, "derivative[%d]", i)
	}
}

func TestConditioner_CloneDoesNotAlias(t *testing.T) {
	c := NewConditioner()
	first := c.Condition(trackFrame()).Clone()

	var flat acquire.Frame
	c.Condition(&flat)

	assert.Equal(t, int16(1800), first.Derivative[95])
}
