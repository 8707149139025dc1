package audio

// ApplyFade scales samples by a linear ramp toward silence. Sample i is
// multiplied by 1 - (i+offset)*mul, so a ramp split over several calls stays
// continuous when offset carries the position already faded.
func ApplyFade(samples []int16, offset int, mul float64) {
	for i := range samples {
		pct := float64(i+offset) * mul
		samples[i] = int16(float64(samples[i]) * (1 - pct))
	}
}

// FadeParams returns the fade length in samples for a fade of seconds at
// rate, never shorter than two samples, and the per-sample multiplier
// 1/(n-1).
func FadeParams(seconds float64, rate int) (int, float64) {
	n := max(int(seconds*float64(rate)), 2)

	return n, 1 / float64(n-1)
}

// PeakAmplitude returns the largest absolute sample value.
func PeakAmplitude(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}

	return peak
}
