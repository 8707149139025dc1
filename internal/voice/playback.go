package voice

import (
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// GetOutputData is the mixer pull for channel ch. It fills dest with up to
// sampleCount samples at the output rate, fades the tail of the buffer out
// and pads a short read so the mixer always gets what it asked for. A
// channel that runs dry is marked starved and ended on the next Idle.
func (s *Subsystem) GetOutputData(ch int, dest []int16, sampleCount int) int {
	c := s.channel(ch)
	if c == nil {
		return 0
	}

	wanted := min(sampleCount, len(dest))
	if wanted <= 0 {
		return 0
	}

	got := c.buffer.ReadSamples(dest[:wanted])

	// Fade over the last fadeSamples the buffer holds, which may already have
	// started in an earlier pull.
	remaining := c.buffer.ReadAvailable() / audio.BytesPerSample
	if remaining < s.fadeSamples {
		bufOff := max(remaining+got-s.fadeSamples, 0)
		fadeOff := max(s.fadeSamples-(remaining+got), 0)
		if bufOff < got {
			audio.ApplyFade(dest[bufOff:got], fadeOff, s.fadeMul)
		}
	}

	if got < wanted {
		if got > 0 {
			dup := min(got, wanted-got)
			copy(dest[got:got+dup], dest[got-dup:got])
			clear(dest[got+dup : wanted])
		} else {
			clear(dest[:wanted])
		}
		got = wanted
	}

	if c.buffer.ReadAvailable() == 0 {
		c.starved = true
	}

	if s.cfg.Debug.ShowChannels >= 2 {
		s.logger.Debug("Voice output pulled",
			zap.Int("channel", ch),
			zap.Int("samples", got),
			zap.Int("remaining", remaining),
			zap.Bool("starved", c.starved))
	}

	s.engine.MoveMouth(c.entity, dest[:got])

	return got
}

// OnAudioSourceShutdown ends ch once the mixer has stopped playing it.
func (s *Subsystem) OnAudioSourceShutdown(ch int) {
	s.EndChannel(ch)
}
