package mixer

import (
	"sync"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// Output is the mixed stream handed from the engine loop to a playback
// sink. Writes that overflow are dropped; reads past the end are padded
// with silence.
type Output struct {
	mu      sync.Mutex
	ring    *audio.RingBuffer
	dropped int
}

// NewOutput returns an output holding up to capacity samples.
func NewOutput(capacity int) *Output {
	return &Output{ring: audio.NewRingBuffer(capacity * audio.BytesPerSample)}
}

// Write queues mixed samples and returns how many fit.
func (o *Output) Write(samples []int16) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := o.ring.WriteSamples(samples)
	o.dropped += len(samples) - n

	return n
}

// Read fills p with little-endian PCM, padding with silence, and always
// reports len(p). It satisfies io.Reader for pull-based players.
func (o *Output) Read(p []byte) (int, error) {
	o.mu.Lock()
	n := o.ring.Read(p[:len(p)&^1])
	o.mu.Unlock()

	clear(p[n:])

	return len(p), nil
}

// ReadSamples drains up to len(dst) samples without padding.
func (o *Output) ReadSamples(dst []int16) int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.ring.ReadSamples(dst)
}

// Buffered returns the number of queued samples.
func (o *Output) Buffered() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.ring.ReadAvailable() / audio.BytesPerSample
}

// Dropped returns the number of samples lost to a full output.
func (o *Output) Dropped() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return o.dropped
}
