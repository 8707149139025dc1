package audio

import "math"

// Accumulator sums several mono streams into one with int32 headroom and
// saturates only when the mix is read back.
type Accumulator struct {
	buf []int32
}

// Reset clears the accumulator and sizes it for n samples.
func (a *Accumulator) Reset(n int) {
	if cap(a.buf) < n {
		a.buf = make([]int32, n)
	}
	a.buf = a.buf[:n]
	clear(a.buf)
}

// Len returns the number of samples in the current mix.
func (a *Accumulator) Len() int {
	return len(a.buf)
}

// Add mixes pcm into the accumulator starting at sample 0. Samples beyond
// the accumulator length are ignored.
func (a *Accumulator) Add(pcm []int16) {
	n := min(len(pcm), len(a.buf))
	for i := 0; i < n; i++ {
		a.buf[i] += int32(pcm[i])
	}
}

// Output writes the saturated mix into dst and returns the number of samples
// written.
func (a *Accumulator) Output(dst []int16) int {
	n := min(len(dst), len(a.buf))
	for i := 0; i < n; i++ {
		dst[i] = saturateInt16(a.buf[i])
	}

	return n
}

// saturateInt16 clamps v to the valid int16 range.
func saturateInt16(v int32) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// scaleSample multiplies s by gain, clamping before the integer conversion
// so large gains saturate instead of wrapping.
func scaleSample(s int16, gain float64) int16 {
	v := float64(s) * gain
	switch {
	case math.IsNaN(v):
		return 0
	case v >= math.MaxInt16:
		return math.MaxInt16
	case v <= math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// ApplyGain multiplies samples by gain in place with saturation.
func ApplyGain(samples []int16, gain float64) {
	if gain == 1 {
		return
	}
	for i, s := range samples {
		samples[i] = scaleSample(s, gain)
	}
}
