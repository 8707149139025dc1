// Package voice implements the voice communication subsystem: a fixed pool
// of receive channels that decode, gain-normalize, resample and buffer remote
// speech for the mixer, and a record pipeline that captures and compresses
// the local microphone.
//
// A Subsystem is not safe for concurrent use. All methods, including the
// mixer's GetOutputData pulls, must run on one goroutine.
package voice

import (
	"errors"

	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
)

// NumChannels is the size of the receive channel pool.
const NumChannels = 5

// Channel assignment sentinels.
const (
	ChannelError       = -1
	ChannelInTweakMode = -2
)

// Tweak mode binds channel 0 to TweakModeEntity and feeds it through
// TweakModeChannelIndex.
const (
	TweakModeEntity       = -500
	TweakModeChannelIndex = -100
)

// Pseudo-entities reported through SoundServices.OnChangeVoiceStatus.
const (
	StatusLocalRecording = -1
	StatusLocalAck       = -2
	StatusVoiceActivity  = -3
)

const (
	// talkingAckTimeout is how long without a server ack before the local
	// talking indicator is cleared, in seconds.
	talkingAckTimeout = 0.2

	agcBlockSize = 128

	decompressScratchSamples = 11_264
	maxRecordSamples         = 8_192
	tweakBufferBytes         = 4_096
	debugSinkBytes           = 1 << 20

	minJitterMs = 1
	maxJitterMs = 5_000
)

var (
	ErrDisabled           = errors.New("voice is disabled")
	ErrUnknownCodec       = codec.ErrUnknownCodec
	ErrServiceUnavailable = errors.New("voice service unavailable")
	ErrRateAboveOutput    = errors.New("voice sample rate above output sample rate")
	ErrNoCodec            = errors.New("no voice codec initialized")
	ErrCaptureUnavailable = errors.New("voice capture unavailable")
	ErrAlreadyTweaking    = errors.New("already in tweak mode")
	ErrNotTweaking        = errors.New("not in tweak mode")
	ErrNotInitialized     = errors.New("voice not initialized")
)
