package voice

import (
	"context"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// dropCounter forwards resampled output to a channel buffer and counts the
// samples that did not fit.
type dropCounter struct {
	buf     *audio.RingBuffer
	dropped int
}

func (d *dropCounter) WriteSample(v int16) bool {
	if d.buf.WriteSample(v) {
		return true
	}
	d.dropped++

	return false
}

// AddIncomingData decodes one packet for ch and queues it for playback.
// While tweaking only TweakModeChannelIndex is accepted and is routed to
// channel 0. It returns the channel used, or 0 when the packet was
// rejected. seq is informational only.
func (s *Subsystem) AddIncomingData(ch int, data []byte, seq int) int {
	if s.tweaking {
		if ch != TweakModeChannelIndex {
			return 0
		}
		ch = 0
	}

	c := s.channel(ch)
	if c == nil || c.codec == nil {
		return 0
	}

	c.starved = false

	start := s.startTimer()
	n := c.codec.Decompress(data, s.scratch)
	s.endTimer(start, observe.StageDecompress)
	pcm := s.scratch[:n]

	if s.tweaking {
		s.tweakVolume = audio.PeakAmplitude(pcm) & 0xFE00
	}

	start = s.startTimer()
	c.agc.Process(pcm)
	s.endTimer(start, observe.StageGain)

	start = s.startTimer()
	s.sink = dropCounter{buf: c.buffer}
	c.upsampler.Process(pcm, &s.sink, audio.UpsampleStep(c.codec.SampleRate(), s.outputRate))
	s.endTimer(start, observe.StageUpsample)

	if s.decompressed != nil {
		s.decompressed.writePCM(pcm)
	}
	s.writer.add(ch, pcm)

	if s.cfg.Debug.ShowIncoming {
		s.logger.Debug("Voice packet received",
			zap.Int("channel", ch),
			zap.Int("seq", seq),
			zap.Int("bytes", len(data)),
			zap.Int("samples", n),
			zap.Int("dropped", s.sink.dropped))
	}
	s.metrics.RecordIncoming(context.Background(), ch, n, s.sink.dropped*audio.BytesPerSample)
	s.sink.buf = nil

	return ch
}
