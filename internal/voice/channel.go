package voice

import (
	"context"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// channelBufferBytes holds one second of output-rate audio.
const channelBufferBytes = audio.MaxOutputSampleRate * audio.BytesPerSample

type voiceChannel struct {
	entity int
	bound  bool

	buffer    *audio.RingBuffer
	upsampler *audio.Upsampler
	agc       *audio.AutoGain
	codec     codec.Codec

	starved bool
	// timePad counts down to the start of playback, in seconds.
	timePad float64

	proximity   bool
	viewEntity  int
	soundHandle int
}

func newVoiceChannel() voiceChannel {
	return voiceChannel{
		entity:      -1,
		buffer:      audio.NewRingBuffer(channelBufferBytes),
		upsampler:   audio.NewUpsampler(),
		agc:         audio.NewAutoGain(agcBlockSize, audio.DefaultAGCMaxGain, audio.DefaultAGCAvgToMax, 1),
		viewEntity:  -1,
		soundHandle: -1,
	}
}

// ChannelInfo is a snapshot of one receive channel.
type ChannelInfo struct {
	Entity      int
	Buffered    int // samples waiting for the mixer
	Starved     bool
	TimePad     float64
	Fraction    float64
	LastSample  int16
	Gain        float64
	Proximity   bool
	ViewEntity  int
	SoundHandle int
}

// Channel returns the state of channel i. ok is false for an index outside
// the pool.
func (s *Subsystem) Channel(i int) (info ChannelInfo, ok bool) {
	if i < 0 || i >= NumChannels {
		return ChannelInfo{}, false
	}

	c := &s.channels[i]

	return ChannelInfo{
		Entity:      c.entity,
		Buffered:    c.buffer.ReadAvailable() / audio.BytesPerSample,
		Starved:     c.starved,
		TimePad:     c.timePad,
		Fraction:    c.upsampler.Fraction,
		LastSample:  c.upsampler.LastSample,
		Gain:        c.agc.Gain(),
		Proximity:   c.proximity,
		ViewEntity:  c.viewEntity,
		SoundHandle: c.soundHandle,
	}, true
}

func (s *Subsystem) channel(i int) *voiceChannel {
	if i < 0 || i >= NumChannels {
		s.logger.Debug("Voice channel index out of range", zap.Int("channel", i))
		return nil
	}

	return &s.channels[i]
}

// resetChannel binds c to entity with empty buffers and fresh gain and
// resample state.
func (s *Subsystem) resetChannel(c *voiceChannel, entity int) {
	c.entity = entity
	c.bound = true
	c.starved = false
	c.buffer.Flush()

	jitter := min(max(s.cfg.JitterBufferMs, minJitterMs), maxJitterMs)
	c.timePad = jitter / 1000

	c.upsampler.Reset()
	c.agc.Reset(agcBlockSize, s.cfg.MaxGain, s.cfg.AvgGainTarget, s.cfg.MicVolumeScale)
}

// EntityID returns the entity bound to ch, or -1.
func (s *Subsystem) EntityID(ch int) int {
	c := s.channel(ch)
	if c == nil || !c.bound {
		return -1
	}

	return c.entity
}

// GetChannel returns the channel bound to entity, or ChannelError.
func (s *Subsystem) GetChannel(entity int) int {
	for i := range s.channels {
		if s.channels[i].bound && s.channels[i].entity == entity {
			return i
		}
	}

	return ChannelError
}

// AssignChannel returns the channel already bound to entity or binds a
// free one. It returns ChannelInTweakMode while tweaking and ChannelError
// when the pool is exhausted.
func (s *Subsystem) AssignChannel(entity int, proximity bool) int {
	if s.tweaking {
		return ChannelInTweakMode
	}

	if ch := s.GetChannel(entity); ch != ChannelError {
		return ch
	}

	for i := range s.channels {
		c := &s.channels[i]
		if c.bound || (c.codec == nil && !s.cloud) {
			continue
		}

		if c.codec != nil {
			c.codec.ResetState()
		}
		s.resetChannel(c, entity)
		c.proximity = proximity

		s.engine.StartOverdrive()
		s.metrics.ActiveChannels.Add(context.Background(), 1)

		return i
	}

	return ChannelError
}

// EndChannel releases ch, stops its sound and clears the speaker's talking
// state. Ending channel 0 leaves tweak mode. Buffered audio is dropped; the
// resampler keeps its last sample until the channel is next assigned.
func (s *Subsystem) EndChannel(ch int) {
	c := s.channel(ch)
	if c == nil || !c.bound {
		return
	}

	entity := c.entity
	c.entity = -1
	c.bound = false
	c.buffer.Flush()

	if c.proximity {
		s.engine.EndChannel(ch, entity)
	} else {
		s.engine.EndChannel(ch, c.viewEntity)
	}

	s.services.OnChangeVoiceStatus(entity, false)
	s.engine.CloseMouth(entity)

	c.viewEntity = -1
	c.soundHandle = -1
	s.metrics.ActiveChannels.Add(context.Background(), -1)

	if ch == 0 && s.tweaking {
		_ = s.EndTweakMode()
	}
}

// EndAllChannels ends every channel in the pool.
func (s *Subsystem) EndAllChannels() {
	for i := range s.channels {
		s.EndChannel(i)
	}
}
