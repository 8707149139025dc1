package codec

import "github.com/Raikerian/go-voicecomm/pkg/audio"

// PCM sends uncompressed 16-bit little-endian samples. It is useful on a LAN
// and for checking the rest of the pipeline independently of lossy codecs.
type PCM struct {
	rate   int
	inited bool
}

// NewPCM creates a passthrough codec.
func NewPCM(sampleRate int) (Codec, error) {
	if sampleRate <= 0 {
		return nil, ErrUnsupportedRate
	}

	return &PCM{rate: sampleRate}, nil
}

func (p *PCM) Init(int) error {
	p.inited = true
	return nil
}

func (p *PCM) Compress(pcm []int16, out []byte, _ bool) int {
	if !p.inited {
		return 0
	}
	return audio.PutPCM(out, pcm)
}

func (p *PCM) Decompress(in []byte, pcm []int16) int {
	if !p.inited || len(in)%audio.BytesPerSample != 0 {
		return 0
	}
	return audio.GetPCM(pcm, in)
}

func (p *PCM) ResetState() {}

func (p *PCM) Release() {
	p.inited = false
}

func (p *PCM) SampleRate() int {
	return p.rate
}
