package voice

import (
	"math"
	"slices"
	"time"

	"github.com/Raikerian/go-voicecomm/internal/config"
)

// ActivityGate decides whether a block of captured samples is worth
// transmitting.
type ActivityGate interface {
	Silent(samples []int16) bool
}

// ThresholdGate treats a block as silent when both its peak and its
// peak-to-peak swing stay under Threshold.
type ThresholdGate struct {
	Threshold float64
}

func (g ThresholdGate) Silent(samples []int16) bool {
	if len(samples) == 0 {
		return true
	}

	lo, hi := 16384, -16384
	for _, v := range samples {
		lo = min(lo, int(v))
		hi = max(hi, int(v))
	}

	return float64(hi-lo) < g.Threshold && float64(hi) < g.Threshold
}

// Energy gate tuning.
const (
	DefaultEnergyThreshold = 0.01
	DefaultEnergyMargin    = 5.0

	minEnergyThreshold = 0.005
	maxEnergyThreshold = 0.1

	energyHistory     = 1000
	energyMinHistory  = 50
	energySpeechHold  = 5 * time.Second
	energySmoothAlpha = 0.05
)

// EnergyGate compares block RMS, normalized to [0, 1], against a threshold
// that adapts to the noise floor once the speaker has been quiet for a
// while.
type EnergyGate struct {
	threshold  float64
	margin     float64
	adaptive   bool
	noiseFloor float64

	history    []float64
	lastSpeech time.Time
	now        func() time.Time
}

// NewEnergyGate returns a gate starting at threshold, clamped to the range
// the adaptation uses.
func NewEnergyGate(threshold float64, adaptive bool, now func() time.Time) *EnergyGate {
	if threshold <= 0 {
		threshold = DefaultEnergyThreshold
	}
	threshold = min(max(threshold, minEnergyThreshold), maxEnergyThreshold)
	if now == nil {
		now = time.Now
	}

	return &EnergyGate{
		threshold:  threshold,
		margin:     DefaultEnergyMargin,
		adaptive:   adaptive,
		noiseFloor: threshold,
		history:    make([]float64, 0, energyHistory),
		lastSpeech: now(),
		now:        now,
	}
}

func (g *EnergyGate) Silent(samples []int16) bool {
	if len(samples) == 0 {
		return true
	}

	e := rmsEnergy(samples)

	if len(g.history) == energyHistory {
		copy(g.history, g.history[1:])
		g.history = g.history[:energyHistory-1]
	}
	g.history = append(g.history, e)

	now := g.now()
	if g.adaptive && len(g.history) > energyMinHistory && now.Sub(g.lastSpeech) > energySpeechHold {
		g.adapt()
	}

	silent := e < g.threshold
	if !silent {
		g.lastSpeech = now
	}

	return silent
}

// Threshold returns the current RMS threshold.
func (g *EnergyGate) Threshold() float64 { return g.threshold }

// NoiseFloor returns the last noise floor estimate.
func (g *EnergyGate) NoiseFloor() float64 { return g.noiseFloor }

// adapt moves the threshold toward margin times the mean of the quietest
// tenth of recent blocks.
func (g *EnergyGate) adapt() {
	sorted := slices.Clone(g.history)
	slices.Sort(sorted)

	n := max(1, len(sorted)/10)
	var sum float64
	for _, v := range sorted[:n] {
		sum += v
	}
	floor := sum / float64(n)

	target := min(max(floor*g.margin, minEnergyThreshold), maxEnergyThreshold)
	g.threshold = max(energySmoothAlpha*target+(1-energySmoothAlpha)*g.threshold, minEnergyThreshold)
	g.noiseFloor = floor
}

func rmsEnergy(samples []int16) float64 {
	var sum float64
	for _, v := range samples {
		f := float64(v) / 32768
		sum += f * f
	}

	return math.Sqrt(sum / float64(len(samples)))
}

// gateFromConfig returns nil when VoiceActivityThreshold disables gating.
func gateFromConfig(cfg config.VoiceConfig, now func() time.Time) ActivityGate {
	if cfg.VoiceActivityThreshold <= 0 {
		return nil
	}
	if cfg.ActivityGate == config.GateEnergy {
		// The threshold is in sample units for both gates.
		return NewEnergyGate(cfg.VoiceActivityThreshold/32768, true, now)
	}

	return ThresholdGate{Threshold: cfg.VoiceActivityThreshold}
}
