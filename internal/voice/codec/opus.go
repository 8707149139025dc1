package codec

import (
	"fmt"

	"layeh.com/gopus"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// bitrates indexed by quality level.
var opusBitrates = []int{8_000, 12_000, 16_000, 24_000, 32_000, 48_000}

// maxOpusFrameMs is the longest frame an Opus packet may carry.
const maxOpusFrameMs = 120

// Opus is a mono Opus codec. Input is gathered into 20 ms frames; each
// encoded frame is length-prefixed in the output.
type Opus struct {
	rate    int
	app     gopus.Application
	quality int

	enc *gopus.Encoder
	dec *gopus.Decoder

	frameSize int
	pending   []int16
}

// NewOpusVoice creates an Opus codec tuned for speech (SILK/hybrid modes).
func NewOpusVoice(sampleRate int) (Codec, error) {
	return newOpus(sampleRate, gopus.Voip)
}

// NewOpusCELT creates an Opus codec restricted to the low-delay CELT mode.
func NewOpusCELT(sampleRate int) (Codec, error) {
	return newOpus(sampleRate, gopus.RestrictedLowDelay)
}

func newOpus(sampleRate int, app gopus.Application) (*Opus, error) {
	switch sampleRate {
	case 8_000, 12_000, 16_000, 24_000, 48_000:
	default:
		return nil, fmt.Errorf("%w: opus cannot run at %d Hz", ErrUnsupportedRate, sampleRate)
	}

	return &Opus{
		rate:      sampleRate,
		app:       app,
		frameSize: audio.FrameSamples(sampleRate, audio.OpusFrameDuration),
	}, nil
}

// Init creates the encoder and decoder.
func (o *Opus) Init(quality int) error {
	o.quality = max(0, min(quality, len(opusBitrates)-1))

	return o.open()
}

func (o *Opus) open() error {
	enc, err := gopus.NewEncoder(o.rate, 1, o.app)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}
	enc.SetBitrate(opusBitrates[o.quality])

	dec, err := gopus.NewDecoder(o.rate, 1)
	if err != nil {
		return fmt.Errorf("failed to create opus decoder: %w", err)
	}

	o.enc = enc
	o.dec = dec
	o.pending = o.pending[:0]

	return nil
}

// Compress encodes every complete frame held so far. Frames that do not fit
// in out stay pending.
func (o *Opus) Compress(pcm []int16, out []byte, final bool) int {
	if o.enc == nil {
		return 0
	}

	o.pending = append(o.pending, pcm...)
	if final && len(o.pending)%o.frameSize != 0 {
		pad := o.frameSize - len(o.pending)%o.frameSize
		o.pending = append(o.pending, make([]int16, pad)...)
	}

	written := 0
	consumed := 0
	for len(o.pending)-consumed >= o.frameSize {
		room := len(out) - written - frameHeader
		if room <= 0 {
			break
		}

		frame := o.pending[consumed : consumed+o.frameSize]
		data, err := o.enc.Encode(frame, o.frameSize, min(room, audio.MaxOpusPacket))
		if err != nil {
			break
		}

		written = len(AppendFrame(out[:written], data))
		consumed += o.frameSize
	}
	o.pending = o.pending[:copy(o.pending, o.pending[consumed:])]

	return written
}

// Decompress decodes every frame in the payload.
func (o *Opus) Decompress(in []byte, pcm []int16) int {
	if o.dec == nil {
		return 0
	}

	frames := SplitFrames(in)
	if frames == nil {
		return 0
	}

	maxFrame := audio.FrameSamples(o.rate, maxOpusFrameMs)
	total := 0
	for _, f := range frames {
		samples, err := o.dec.Decode(f, maxFrame, false)
		if err != nil {
			return 0
		}
		total += copy(pcm[total:], samples)
		if total == len(pcm) {
			break
		}
	}

	return total
}

// ResetState recreates the encoder and decoder, dropping all history.
func (o *Opus) ResetState() {
	if o.enc == nil {
		return
	}
	_ = o.open()
}

// Release drops the native codec handles.
func (o *Opus) Release() {
	o.enc = nil
	o.dec = nil
	o.pending = nil
}

// SampleRate returns the codec rate.
func (o *Opus) SampleRate() int {
	return o.rate
}
