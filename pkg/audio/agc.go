package audio

import "math"

// AGC defaults used for voice channels.
const (
	DefaultAGCBlockSize = 128
	DefaultAGCMaxGain   = 10.0
	DefaultAGCAvgToMax  = 0.5
)

// AutoGain normalizes signal level block by block. Peak and average
// amplitude are measured over each block; the gain for the following block
// is chosen so that a blend of the two reaches full scale, capped at maxGain.
// Within a block the gain ramps linearly from the current to the next value
// to avoid zipper noise.
type AutoGain struct {
	blockSize int
	maxGain   float64
	avgToMax  float64
	scale     float64

	offset int   // position inside the current block
	total  int64 // sum of |s| over the current block
	peak   int   // max |s| over the current block

	current float64 // gain applied at offset 0, scale included
	next    float64 // unscaled gain computed from the last block
	step    float64 // per-sample gain increment
}

// NewAutoGain returns an AutoGain reset with the given parameters.
func NewAutoGain(blockSize int, maxGain, avgToMax, scale float64) *AutoGain {
	a := &AutoGain{}
	a.Reset(blockSize, maxGain, avgToMax, scale)

	return a
}

// Reset reinitializes the gain tracker. scale multiplies the computed gain
// and is the user-controlled playback volume.
func (a *AutoGain) Reset(blockSize int, maxGain, avgToMax, scale float64) {
	if blockSize <= 0 {
		blockSize = DefaultAGCBlockSize
	}

	a.blockSize = blockSize
	a.maxGain = maxGain
	a.avgToMax = avgToMax
	a.scale = scale

	a.offset = 0
	a.total = 0
	a.peak = 0

	a.current = scale
	a.next = 1
	a.step = 0
}

// Gain returns the gain that will be applied to the next sample.
func (a *AutoGain) Gain() float64 {
	return a.current + float64(a.offset)*a.step
}

// Scale returns the user volume multiplier.
func (a *AutoGain) Scale() float64 {
	return a.scale
}

// Process applies gain to samples in place, saturating to the int16 range.
func (a *AutoGain) Process(samples []int16) {
	for len(samples) > 0 {
		n := min(len(samples), a.blockSize-a.offset)

		for i, s := range samples[:n] {
			v := int(s)
			if v < 0 {
				v = -v
			}
			a.peak = max(a.peak, v)
			a.total += int64(v)

			gain := a.current + float64(a.offset)*a.step
			a.offset++

			samples[i] = scaleSample(s, gain)
		}
		samples = samples[n:]

		if a.offset == a.blockSize {
			a.endBlock()
		}
	}
}

func (a *AutoGain) endBlock() {
	a.current = a.next * a.scale

	avg := float64(a.total / int64(a.blockSize))
	modifiedMax := avg + (float64(a.peak)-avg)*a.avgToMax

	next := a.maxGain
	if modifiedMax > 0 {
		next = math.Min(float64(math.MaxInt16)/modifiedMax, a.maxGain)
	}
	a.next = next
	a.step = (a.next*a.scale - a.current) / float64(a.blockSize)

	a.offset = 0
	a.total = 0
	a.peak = 0
}
