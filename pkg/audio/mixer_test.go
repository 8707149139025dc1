package audio_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

func TestAccumulator_MixesWithSaturation(t *testing.T) {
	var acc audio.Accumulator
	acc.Reset(3)
	acc.Add([]int16{30000, -30000, 10})
	acc.Add([]int16{30000, -30000, 20, 99})

	out := make([]int16, 3)
	assert.Equal(t, 3, acc.Output(out))
	assert.Equal(t, []int16{32767, -32768, 30}, out)

	acc.Reset(2)
	assert.Equal(t, 2, acc.Len())
	acc.Output(out)
	assert.Equal(t, []int16{0, 0}, out[:2])
}

func TestDownmixStereo(t *testing.T) {
	tests := map[string]struct {
		in   []int16
		want []int16
	}{
		"pairs":        {in: []int16{100, 200, -4, 4, -3, 0}, want: []int16{150, 0, -2}},
		"full scale":   {in: []int16{32767, 32767, -32768, -32768}, want: []int16{32767, -32768}},
		"odd trailing": {in: []int16{10, 20, 99}, want: []int16{15}},
		"empty":        {in: nil, want: nil},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			got := audio.DownmixStereo(append([]int16(nil), tt.in...))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyGain(t *testing.T) {
	tests := map[string]struct {
		gain float64
		in   []int16
		want []int16
	}{
		"double":       {gain: 2, in: []int16{100, -100, 20000, -20000}, want: []int16{200, -200, 32767, -32768}},
		"unity":        {gain: 1, in: []int16{5, -5}, want: []int16{5, -5}},
		"huge gain":    {gain: 1e6, in: []int16{30000, -30000, 0}, want: []int16{32767, -32768, 0}},
		"beyond int32": {gain: 1e12, in: []int16{1, -1}, want: []int16{32767, -32768}},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			s := append([]int16(nil), tt.in...)
			audio.ApplyGain(s, tt.gain)
			assert.Equal(t, tt.want, s)
		})
	}
}
