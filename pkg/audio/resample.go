package audio

import "math"

// SampleWriter receives resampled output. *RingBuffer implements it.
type SampleWriter interface {
	WriteSample(s int16) bool
}

// InitialFraction is the phase a fresh stream starts at, just short of the
// first interpolation step so the first chunk produces output immediately.
const InitialFraction = 0.999

// UpsampleStep returns the source advance per output sample when converting
// from inRate to outRate. Rates are expected to satisfy inRate <= outRate.
func UpsampleStep(inRate, outRate int) float64 {
	if inRate <= 0 || outRate <= 0 {
		return 1
	}

	return float64(inRate) / float64(outRate)
}

// Upsample linearly interpolates src into dst starting at the fractional
// source position startFraction, advancing step source samples per output
// sample. It stops before the last source sample, which has no right-hand
// neighbour, and returns the fractional phase to start the next call with.
//
// Interpolated values are truncated toward zero, not rounded.
func Upsample(src []int16, dst SampleWriter, startFraction, step float64) float64 {
	pos := startFraction
	maxPos := float64(len(src) - 1)

	for pos < maxPos {
		i := int(pos)
		frac := pos - math.Floor(pos)

		v1 := float64(src[i])
		v2 := float64(src[i+1])
		dst.WriteSample(int16(v1 + (v2-v1)*frac))

		pos += step
	}

	return pos - math.Floor(pos)
}

// Upsampler carries resample phase between chunks of one stream. The last
// sample of every chunk is held back and becomes the left-hand side of the
// first interpolation of the next chunk, so splitting a stream at arbitrary
// points yields the same output as processing it whole.
type Upsampler struct {
	Fraction   float64
	LastSample int16

	primed  bool
	scratch []int16
}

// NewUpsampler returns an Upsampler positioned at InitialFraction.
func NewUpsampler() *Upsampler {
	u := &Upsampler{}
	u.Reset()

	return u
}

// Reset discards any held sample and rewinds the phase.
func (u *Upsampler) Reset() {
	u.Fraction = InitialFraction
	u.LastSample = 0
	u.primed = false
}

// Process resamples one chunk into dst.
func (u *Upsampler) Process(src []int16, dst SampleWriter, step float64) {
	if len(src) == 0 {
		return
	}

	in := src
	if u.primed {
		u.scratch = append(u.scratch[:0], u.LastSample)
		u.scratch = append(u.scratch, src...)
		in = u.scratch
	}

	u.Fraction = Upsample(in, dst, u.Fraction, step)
	u.LastSample = src[len(src)-1]
	u.primed = true
}

// ResampleBlock converts one self-contained block from inRate to outRate with
// linear interpolation and returns the number of samples written to dst. The
// last source sample is held as its own right-hand neighbour, so the output
// spans the whole block: len(src)*outRate/inRate samples.
func ResampleBlock(src, dst []int16, inRate, outRate int) int {
	if len(src) == 0 || inRate <= 0 || outRate <= 0 {
		return 0
	}
	if inRate == outRate {
		return copy(dst, src)
	}

	n := min(len(src)*outRate/inRate, len(dst))
	step := float64(inRate) / float64(outRate)
	last := len(src) - 1

	for i := 0; i < n; i++ {
		pos := float64(i) * step
		j := int(pos)
		frac := pos - float64(j)

		v1 := float64(src[j])
		v2 := v1
		if j < last {
			v2 = float64(src[j+1])
		}
		dst[i] = int16(v1 + (v2-v1)*frac)
	}

	return n
}
