package audio_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

type sampleSink struct {
	samples []int16
}

func (s *sampleSink) WriteSample(v int16) bool {
	s.samples = append(s.samples, v)
	return true
}

func sine(n int, amp float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(float64(i)*0.07))
	}
	return out
}

func TestUpsample_Interpolates(t *testing.T) {
	sink := &sampleSink{}
	frac := audio.Upsample([]int16{0, 1000, 2000}, sink, 0, 0.5)

	assert.Equal(t, []int16{0, 500, 1000, 1500}, sink.samples)
	assert.InDelta(t, 0.0, frac, 1e-9)
}

func TestUpsample_Truncates(t *testing.T) {
	tests := map[string]struct {
		src  []int16
		want int16
	}{
		"positive rounds down": {src: []int16{0, 3}, want: 1},
		"negative toward zero": {src: []int16{0, -3}, want: -1},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			sink := &sampleSink{}
			audio.Upsample(tt.src, sink, 0.5, 1)
			require.Len(t, sink.samples, 1)
			assert.Equal(t, tt.want, sink.samples[0])
		})
	}
}

func TestUpsample_StopsBeforeLastSample(t *testing.T) {
	sink := &sampleSink{}
	audio.Upsample([]int16{5}, sink, 0, 0.5)
	assert.Empty(t, sink.samples)

	frac := audio.Upsample(nil, sink, 0.25, 0.5)
	assert.Empty(t, sink.samples)
	assert.InDelta(t, 0.25, frac, 1e-9)
}

func TestUpsampleStep(t *testing.T) {
	assert.InDelta(t, 0.459375, audio.UpsampleStep(22050, 48000), 1e-12)
	assert.Equal(t, 1.0, audio.UpsampleStep(0, 48000))
}

func TestUpsampler_ContinuityAcrossChunks(t *testing.T) {
	src := sine(1000, 12000)

	steps := map[string]float64{
		"half":        0.5,
		"22k to 48k":  audio.UpsampleStep(22050, 48000),
		"identity":    1,
		"24k to 44k1": audio.UpsampleStep(24000, 44100),
	}

	for name, step := range steps {
		t.Run(name, func(t *testing.T) {
			whole := &sampleSink{}
			audio.NewUpsampler().Process(src, whole, step)

			for _, split := range []int{1, 2, 17, 500, 999} {
				parts := &sampleSink{}
				u := audio.NewUpsampler()
				u.Process(src[:split], parts, step)
				u.Process(src[split:], parts, step)

				require.Len(t, parts.samples, len(whole.samples), "split at %d", split)
				for i := range whole.samples {
					require.InDelta(t, whole.samples[i], parts.samples[i], 1, "split at %d, sample %d", split, i)
				}
				assert.Equal(t, src[len(src)-1], u.LastSample)
			}
		})
	}
}

func TestUpsampler_FirstChunkProducesOutput(t *testing.T) {
	sink := &sampleSink{}
	u := audio.NewUpsampler()
	u.Process([]int16{100, 200}, sink, 1)

	require.Len(t, sink.samples, 1)
	assert.Equal(t, int16(199), sink.samples[0])

	u.Reset()
	assert.Equal(t, audio.InitialFraction, u.Fraction)
	assert.Equal(t, int16(0), u.LastSample)
}

func TestResampleBlock(t *testing.T) {
	tests := map[string]struct {
		src     []int16
		in, out int
		want    []int16
	}{
		"double": {src: []int16{0, 100, 200}, in: 8000, out: 16000, want: []int16{0, 50, 100, 150, 200, 200}},
		"halve":  {src: []int16{0, 10, 20, 30}, in: 48000, out: 24000, want: []int16{0, 20}},
		"same":   {src: []int16{5, 6}, in: 24000, out: 24000, want: []int16{5, 6}},
		"empty":  {src: nil, in: 8000, out: 16000, want: []int16{}},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			dst := make([]int16, 16)
			n := audio.ResampleBlock(tt.src, dst, tt.in, tt.out)
			assert.Equal(t, tt.want, dst[:n])
		})
	}
}
