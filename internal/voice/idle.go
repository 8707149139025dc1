package voice

import (
	"context"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/observe"
)

// Idle advances the subsystem by frameTime seconds: it expires the local
// talking ack, pumps capture, feeds tweak mode, frees starved channels and
// starts channels whose jitter pad has elapsed.
func (s *Subsystem) Idle(frameTime float64) {
	if !s.enabled {
		s.Deinit()
		return
	}

	if s.talkingAck {
		s.talkingTimeout += frameTime
		if s.talkingTimeout > talkingAckTimeout {
			s.talkingAck = false
			s.services.OnChangeVoiceStatus(StatusLocalAck, false)
		}
	}

	s.updateFade()

	if s.source != nil {
		s.source.Poll()
	}

	s.updateTweakMode()

	active := 0
	for i := range s.channels {
		c := &s.channels[i]
		if !c.bound {
			continue
		}

		if c.starved {
			s.EndChannel(i)
			c.soundHandle = -1
			s.metrics.StarvedChannels.Add(context.Background(), 1)
			continue
		}

		prev := c.timePad
		c.timePad -= frameTime
		if prev > 0 && c.timePad <= 0 {
			c.viewEntity = s.services.ViewEntity()
			c.soundHandle = s.engine.StartChannel(i, c.entity, c.proximity, c.viewEntity)
			s.services.OnChangeVoiceStatus(c.entity, true)
			s.engine.InitMouth(c.entity)
		}
		active++
	}

	if active == 0 {
		s.engine.EndOverdrive()
	}

	s.engine.Idle(frameTime)

	if s.cfg.Debug.ShowChannels >= 1 {
		s.logChannels()
	}
	if s.cfg.Debug.Profile {
		s.logProfile()
	}
}

// LocalPlayerTalkingAck records that the server relayed our voice. The
// indicator clears itself if acks stop for talkingAckTimeout.
func (s *Subsystem) LocalPlayerTalkingAck() {
	if !s.talkingAck {
		s.services.OnChangeVoiceStatus(StatusLocalAck, true)
	}
	s.talkingAck = true
	s.talkingTimeout = 0
}

// updateTweakMode loops local capture back into channel 0 until the
// playback of that channel stops.
func (s *Subsystem) updateTweakMode() {
	if !s.tweaking || (s.source == nil && !s.cloud) {
		return
	}

	c := &s.channels[0]
	if c.soundHandle != -1 && !s.engine.IsSoundPlaying(c.soundHandle) {
		_ = s.EndTweakMode()
		return
	}

	n := s.GetCompressedData(s.tweakBuf, false)
	s.AddIncomingData(TweakModeChannelIndex, s.tweakBuf[:n], 0)
}

func (s *Subsystem) logChannels() {
	for i := range s.channels {
		c := &s.channels[i]
		if !c.bound {
			continue
		}
		s.logger.Debug("Voice channel",
			zap.Int("channel", i),
			zap.Int("entity", c.entity),
			zap.Int("buffered_bytes", c.buffer.ReadAvailable()),
			zap.Float64("time_pad", c.timePad),
			zap.Float64("gain", c.agc.Gain()),
			zap.Int("sound_handle", c.soundHandle))
	}
}

func (s *Subsystem) logProfile() {
	s.logger.Debug("Voice frame timings",
		zap.Duration("compress", s.profile[observe.StageCompress]),
		zap.Duration("decompress", s.profile[observe.StageDecompress]),
		zap.Duration("gain", s.profile[observe.StageGain]),
		zap.Duration("upsample", s.profile[observe.StageUpsample]))
	clear(s.profile[:])
}
