package audio

// Format constants shared by the codec, voice and mixer layers.
const (
	BytesPerSample = 2 // 16-bit mono PCM

	// Voice rates.
	VoiceSampleRateLow  = 11_025
	VoiceSampleRateHigh = 22_050
	MaxOutputSampleRate = 48_000 // Hz, sizes the per-channel receive buffer

	// Opus frames.
	OpusFrameDuration = 20 // ms
	MaxOpusPacket     = 1275

	// Mixer defaults.
	DefaultOutputSampleRate = 48_000
)

// FrameSamples returns the number of mono samples in ms milliseconds at rate.
func FrameSamples(rate, ms int) int {
	return rate * ms / 1000
}
