// Package service implements an in-process voice service: it owns the
// microphone, encodes at a fixed optimal rate and resamples on decode to
// whatever rate the caller mixes at.
package service

import (
	"encoding/binary"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"layeh.com/gopus"

	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// OptimalSampleRate is the rate the service captures and encodes at.
const OptimalSampleRate = 24_000

const (
	bitrate         = 32_000
	maxDecodedFrame = OptimalSampleRate * 120 / 1000
)

// ErrCaptureFailed is returned when the microphone cannot be started.
var ErrCaptureFailed = errors.New("voice service: capture failed to start")

// Embedded is a codec.Service backed by a local capture source and Opus.
// It is not safe for concurrent use.
type Embedded struct {
	logger    *zap.Logger
	newSource capture.Factory

	src capture.Source
	enc *gopus.Encoder

	frameSize int
	recording bool
	stopping  bool

	pending []int16 // captured, not yet encoded
	encoded []byte  // length-prefixed frames awaiting GetVoice
	raw     []int16 // source samples of the encoded frames

	scratch []int16
}

var (
	_ codec.Service = (*Embedded)(nil)
	_ codec.Decoder = (*Decoder)(nil)
)

// New creates the service. The capture source is opened lazily on the first
// StartRecording.
func New(logger *zap.Logger, newSource capture.Factory) (*Embedded, error) {
	enc, err := gopus.NewEncoder(OptimalSampleRate, 1, gopus.Voip)
	if err != nil {
		return nil, fmt.Errorf("failed to create service encoder: %w", err)
	}
	enc.SetBitrate(bitrate)

	return &Embedded{
		logger:    logger,
		newSource: newSource,
		enc:       enc,
		frameSize: audio.FrameSamples(OptimalSampleRate, audio.OpusFrameDuration),
		scratch:   make([]int16, OptimalSampleRate/10),
	}, nil
}

func (s *Embedded) Available() bool {
	return s.enc != nil && s.newSource != nil
}

func (s *Embedded) OptimalSampleRate() int {
	return OptimalSampleRate
}

// StartRecording opens the microphone if needed and discards any voice left
// over from a previous recording.
func (s *Embedded) StartRecording() error {
	if !s.Available() {
		return codec.ErrNotInitialized
	}

	if s.src == nil {
		src, err := s.newSource(OptimalSampleRate)
		if err != nil {
			return fmt.Errorf("voice service: open capture: %w", err)
		}
		s.src = src
	}

	if !s.src.Start() {
		return ErrCaptureFailed
	}

	s.pending = s.pending[:0]
	s.encoded = s.encoded[:0]
	s.raw = s.raw[:0]
	s.recording = true
	s.stopping = false

	return nil
}

// StopRecording drains the microphone, flushes the partial frame and stops
// capture. Encoded voice remains available until it has been read.
func (s *Embedded) StopRecording() {
	if !s.recording || s.stopping {
		return
	}

	s.pump(true)
	s.src.Stop()
	s.stopping = true
}

func (s *Embedded) AvailableVoice(rate int) (int, int, codec.Result) {
	if res := s.ready(); res != codec.ResultOK {
		return 0, 0, res
	}

	uncompressed := len(s.raw) * rate / OptimalSampleRate * audio.BytesPerSample

	return len(s.encoded), uncompressed, codec.ResultOK
}

// GetVoice moves as many whole frames as fit into out. When raw is non-nil
// it also receives the source PCM of those frames resampled to rate.
func (s *Embedded) GetVoice(out, raw []byte, rate int) (int, int, codec.Result) {
	if res := s.ready(); res != codec.ResultOK {
		return 0, 0, res
	}

	n, frames := fitFrames(s.encoded, len(out))
	if frames == 0 {
		return 0, 0, codec.ResultBufferTooSmall
	}
	copy(out, s.encoded[:n])
	s.encoded = s.encoded[:copy(s.encoded, s.encoded[n:])]

	samples := frames * s.frameSize
	rawBytes := 0
	if raw != nil && rate > 0 {
		dst := make([]int16, len(raw)/audio.BytesPerSample)
		got := audio.ResampleBlock(s.raw[:samples], dst, OptimalSampleRate, rate)
		rawBytes = audio.PutPCM(raw, dst[:got])
	}
	s.raw = s.raw[:copy(s.raw, s.raw[samples:])]

	return n, rawBytes, codec.ResultOK
}

// NewDecoder returns an independent decoder for one incoming stream.
func (s *Embedded) NewDecoder() (codec.Decoder, error) {
	if s.enc == nil {
		return nil, codec.ErrNotInitialized
	}

	dec, err := gopus.NewDecoder(OptimalSampleRate, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to create service decoder: %w", err)
	}

	return &Decoder{logger: s.logger, dec: dec}, nil
}

// Release closes the capture source and drops codec state.
func (s *Embedded) Release() {
	if s.src != nil {
		s.src.Release()
		s.src = nil
	}
	s.enc = nil
	s.recording = false
	s.stopping = false
}

// ready pulls fresh audio and reports whether voice can be read. A stopped
// recording ends once its last frame has been read.
func (s *Embedded) ready() codec.Result {
	if !s.recording {
		return codec.ResultNotRecording
	}

	s.pump(false)
	if len(s.encoded) > 0 {
		return codec.ResultOK
	}

	if s.stopping {
		s.recording = false
		s.stopping = false

		return codec.ResultNotRecording
	}

	return codec.ResultNoData
}

func (s *Embedded) pump(final bool) {
	if s.stopping {
		return
	}

	for {
		n := s.src.RecordedData(s.scratch)
		if n == 0 {
			break
		}
		s.pending = append(s.pending, s.scratch[:n]...)
	}

	if final && len(s.pending)%s.frameSize != 0 {
		pad := s.frameSize - len(s.pending)%s.frameSize
		s.pending = append(s.pending, make([]int16, pad)...)
	}

	consumed := 0
	for len(s.pending)-consumed >= s.frameSize {
		frame := s.pending[consumed : consumed+s.frameSize]
		consumed += s.frameSize

		data, err := s.enc.Encode(frame, s.frameSize, audio.MaxOpusPacket)
		if err != nil {
			s.logger.Debug("Voice service encode failed", zap.Error(err))
			continue
		}
		s.encoded = codec.AppendFrame(s.encoded, data)
		s.raw = append(s.raw, frame...)
	}
	s.pending = s.pending[:copy(s.pending, s.pending[consumed:])]
}

// fitFrames returns the byte length and count of the leading whole frames of
// payload that fit in limit bytes.
func fitFrames(payload []byte, limit int) (int, int) {
	n, frames := 0, 0
	for n+2 <= len(payload) {
		size := 2 + int(binary.LittleEndian.Uint16(payload[n:]))
		if n+size > limit || n+size > len(payload) {
			break
		}
		n += size
		frames++
	}

	return n, frames
}

// Decoder decodes one speaker's service payloads. Its Opus history is its
// own.
type Decoder struct {
	logger  *zap.Logger
	dec     *gopus.Decoder
	decoded []int16
}

// DecompressVoice decodes a payload produced by GetVoice and resamples it to
// outRate.
func (d *Decoder) DecompressVoice(in []byte, pcm []int16, outRate int) (int, codec.Result) {
	if d.dec == nil {
		return 0, codec.ResultNotInitialized
	}

	frames := codec.SplitFrames(in)
	if len(frames) == 0 || outRate <= 0 {
		return 0, codec.ResultDataCorrupted
	}

	d.decoded = d.decoded[:0]
	for _, f := range frames {
		samples, err := d.dec.Decode(f, maxDecodedFrame, false)
		if err != nil {
			d.logger.Debug("Voice service decode failed", zap.Error(err))
			return 0, codec.ResultDataCorrupted
		}
		d.decoded = append(d.decoded, samples...)
	}

	if len(d.decoded)*outRate/OptimalSampleRate > len(pcm) {
		return 0, codec.ResultBufferTooSmall
	}

	return audio.ResampleBlock(d.decoded, pcm, OptimalSampleRate, outRate), codec.ResultOK
}

// Reset drops the decoder's prediction history.
func (d *Decoder) Reset() {
	if d.dec != nil {
		d.dec.ResetState()
	}
}

func (d *Decoder) Release() {
	d.dec = nil
	d.decoded = nil
}
