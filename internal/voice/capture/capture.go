// Package capture provides microphone sources for the voice subsystem.
package capture

import (
	"errors"
	"sync"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// Source delivers 16-bit mono microphone samples at the rate it was created
// with.
type Source interface {
	// Start begins capturing. It reports false when the device could not be
	// opened.
	Start() bool
	Stop()
	// Poll gives polling backends a chance to move data; push backends may
	// do nothing.
	Poll()
	// RecordedData drains up to len(dst) captured samples.
	RecordedData(dst []int16) int
	Release()
}

// MixerControls exposes the input mixer of the capture device.
type MixerControls interface {
	SelectMicrophone() error
	MicVolume() (float64, bool)
	SetMicVolume(v float64)
	MicBoost() (float64, bool)
	SetMicBoost(v float64)
}

// Factory opens a capture source running at rate.
type Factory func(rate int) (Source, error)

// ErrNoDevice is returned when no capture device matches the request.
var ErrNoDevice = errors.New("no capture device")

// micBoostGain is the software equivalent of a +20 dB hardware boost.
const micBoostGain = 10.0

// Buffer is a thread-safe sample queue with software volume and boost. The
// device callback pushes into it and the voice loop drains it.
type Buffer struct {
	mu     sync.Mutex
	ring   *audio.RingBuffer
	volume float64
	boost  bool
}

// NewBuffer returns a buffer holding up to capacity samples.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		ring:   audio.NewRingBuffer(capacity * audio.BytesPerSample),
		volume: 1,
	}
}

// Push appends little-endian PCM. Samples that do not fit are dropped.
func (b *Buffer) Push(pcm []byte) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ring.Write(pcm[:len(pcm)&^1])
}

// PushSamples appends samples.
func (b *Buffer) PushSamples(s []int16) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ring.WriteSamples(s)
}

// Drain reads up to len(dst) samples with volume and boost applied.
func (b *Buffer) Drain(dst []int16) int {
	b.mu.Lock()
	n := b.ring.ReadSamples(dst)
	gain := b.volume
	if b.boost {
		gain *= micBoostGain
	}
	b.mu.Unlock()

	audio.ApplyGain(dst[:n], gain)

	return n
}

// Buffered returns the number of queued samples.
func (b *Buffer) Buffered() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.ring.ReadAvailable() / audio.BytesPerSample
}

// Reset discards queued samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.ring.Flush()
	b.mu.Unlock()
}

func (b *Buffer) MicVolume() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.volume, true
}

// SetMicVolume sets the software input volume, clamped to [0, 1].
func (b *Buffer) SetMicVolume(v float64) {
	b.mu.Lock()
	b.volume = max(0, min(v, 1))
	b.mu.Unlock()
}

func (b *Buffer) MicBoost() (float64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.boost {
		return 1, true
	}

	return 0, true
}

// SetMicBoost enables the boost for any positive value.
func (b *Buffer) SetMicBoost(v float64) {
	b.mu.Lock()
	b.boost = v > 0
	b.mu.Unlock()
}

// Null is a source that never produces samples. It lets the record path run
// from a microphone file or on machines without an input device.
type Null struct{}

func (Null) Start() bool              { return true }
func (Null) Stop()                    {}
func (Null) Poll()                    {}
func (Null) RecordedData([]int16) int { return 0 }
func (Null) Release()                 {}

// NullFactory returns a Factory producing Null sources.
func NullFactory() Factory {
	return func(int) (Source, error) { return Null{}, nil }
}
