package voice_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Raikerian/go-voicecomm/internal/voice"
)

func TestThresholdGate(t *testing.T) {
	tests := map[string]struct {
		samples []int16
		silent  bool
	}{
		"empty":       {samples: nil, silent: true},
		"flat quiet":  {samples: constant(64, 100), silent: true},
		"small swing": {samples: []int16{-900, 900, -900}, silent: true},
		"large swing": {samples: []int16{-1500, 1500}, silent: false},
		"loud dc":     {samples: constant(64, 3000), silent: false},
		"loud speech": {samples: sine(256, 6000, 32), silent: false},
		"negative dc": {samples: constant(64, -3000), silent: true},
	}

	g := voice.ThresholdGate{Threshold: 2000}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.silent, g.Silent(tt.samples))
		})
	}
}

func TestEnergyGate(t *testing.T) {
	t.Run("fixed threshold", func(t *testing.T) {
		g := voice.NewEnergyGate(0.05, false, nil)

		assert.True(t, g.Silent(nil))
		assert.True(t, g.Silent(constant(160, 300)))
		assert.False(t, g.Silent(constant(160, 3000)))
		assert.Equal(t, 0.05, g.Threshold())
	})

	t.Run("clamped", func(t *testing.T) {
		assert.Equal(t, 0.1, voice.NewEnergyGate(0.5, false, nil).Threshold())
		assert.Equal(t, voice.DefaultEnergyThreshold, voice.NewEnergyGate(0, false, nil).Threshold())
	})

	t.Run("adapts toward the noise floor after silence", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		g := voice.NewEnergyGate(0.1, true, clock.now)
		noise := constant(160, 33) // ~0.001 RMS

		for range 60 {
			g.Silent(noise)
		}
		assert.Equal(t, 0.1, g.Threshold(), "no adaptation during the speech hold")

		clock.advance(6 * time.Second)
		for range 20 {
			g.Silent(noise)
		}
		assert.Less(t, g.Threshold(), 0.1)
		assert.GreaterOrEqual(t, g.Threshold(), 0.005)
		assert.InDelta(t, 33.0/32768, g.NoiseFloor(), 1e-6)
	})

	t.Run("speech resets the hold", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		g := voice.NewEnergyGate(0.01, true, clock.now)

		for range 60 {
			g.Silent(constant(160, 33))
		}
		clock.advance(6 * time.Second)
		assert.False(t, g.Silent(constant(160, 8000)))

		before := g.Threshold()
		g.Silent(constant(160, 33))
		assert.Equal(t, before, g.Threshold())
	})
}
