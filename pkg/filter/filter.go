// Package filter conditions a raw sensor frame into an edge signal.
//
// All functions take a destination slice and reuse it when it has enough
// capacity, so a caller that keeps its buffers between frames runs the whole
// pipeline without allocating.
package filter

import "math"

// Sample is an integer sample type the convolution can read or write.
type Sample interface {
	~uint16 | ~int16 | ~int32
}

var (
	// SmoothKernel is the low-pass kernel applied after the median.
	SmoothKernel = []int32{1, 2, 4, 2, 1}
	// SmoothCorrection normalizes SmoothKernel.
	SmoothCorrection int32 = 10

	// DerivativeKernel is the first-difference kernel.
	DerivativeKernel = []int32{1, 0, -1}
	// DerivativeCorrection normalizes DerivativeKernel.
	DerivativeCorrection int32 = 1
)

func resize[T any](dst []T, n int) []T {
	if dst == nil || cap(dst) < n {
		return make([]T, n)
	}
	return dst[:n]
}

// Median applies a 3-point median filter.
//
// Interior samples become the median of themselves and their neighbours. The
// first sample becomes min(x[0], x[1]) and the last max(x[n-2], x[n-1]).
// Inputs shorter than two samples are copied unchanged.
func Median(dst, x []uint16) []uint16 {
	n := len(x)
	dst = resize(dst, n)
	if n < 2 {
		copy(dst, x)
		return dst
	}

	dst[0] = min(x[0], x[1])
	for i := 1; i < n-1; i++ {
		dst[i] = median3(x[i-1], x[i], x[i+1])
	}
	dst[n-1] = max(x[n-2], x[n-1])
	return dst
}

func median3(a, b, c uint16) uint16 {
	return max(min(a, b), min(max(a, b), c))
}

// Convolve computes the dot product of kernel with each trailing window of x,
// divided by correction with truncation:
//
//	y[i] = sum(kernel[j] * x[i-(K-1)+j]) / correction   for i in [K-1, N)
//
// Outputs below K-1 are zero. Results saturate at the bounds of D.
func Convolve[S, D Sample](dst []D, x []S, kernel []int32, correction int32) []D {
	n := len(x)
	k := len(kernel)
	dst = resize(dst, n)
	clear(dst)
	if k == 0 || correction == 0 {
		return dst
	}

	for i := k - 1; i < n; i++ {
		var sum int32
		base := i - (k - 1)
		for j, w := range kernel {
			sum += w * int32(x[base+j])
		}
		dst[i] = saturate[D](sum / correction)
	}
	return dst
}

func saturate[D Sample](v int32) D {
	var zero D
	switch any(zero).(type) {
	case uint16:
		v = min(max(v, 0), math.MaxUint16)
	case int16:
		v = min(max(v, math.MinInt16), math.MaxInt16)
	}
	return D(v)
}

// Smooth applies SmoothKernel and then backfills the edges.
//
// The convolution output lags its input by two samples and leaves the first
// four outputs unset, so the result is shifted left by two and both ends are
// padded by repeating the nearest computed value.
func Smooth(dst, x []uint16) []uint16 {
	dst = Convolve(dst, x, SmoothKernel, SmoothCorrection)
	backfill(dst)
	return dst
}

func backfill(y []uint16) {
	n := len(y)
	if n < 6 {
		return
	}
	copy(y[2:n-2], y[4:])
	y[0], y[1] = y[2], y[2]
	y[n-2], y[n-1] = y[n-3], y[n-3]
}

// Derivative applies DerivativeKernel. It is not backfilled: the first two
// outputs are zero. Steps wider than the int16 range saturate.
func Derivative(dst []int16, x []uint16) []int16 {
	return Convolve(dst, x, DerivativeKernel, DerivativeCorrection)
}
