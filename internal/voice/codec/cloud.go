package codec

import "fmt"

// Result is the status of a voice service call.
type Result int

const (
	ResultOK Result = iota
	ResultNotInitialized
	ResultNotRecording
	ResultNoData
	ResultBufferTooSmall
	ResultDataCorrupted
)

func (r Result) String() string {
	switch r {
	case ResultOK:
		return "ok"
	case ResultNotInitialized:
		return "not initialized"
	case ResultNotRecording:
		return "not recording"
	case ResultNoData:
		return "no data"
	case ResultBufferTooSmall:
		return "buffer too small"
	case ResultDataCorrupted:
		return "data corrupted"
	default:
		return "unknown"
	}
}

// Service is a platform voice service that owns capture and compression.
// The encoded stream is produced at a rate the service negotiates; decoding
// happens at whatever output rate the caller asks for.
type Service interface {
	// Available reports whether the service can be used at all.
	Available() bool
	StartRecording() error
	// StopRecording asks the service to stop. Buffered voice stays
	// retrievable until GetVoice reports ResultNotRecording.
	StopRecording()
	OptimalSampleRate() int
	// AvailableVoice reports how many compressed and raw bytes are ready.
	AvailableVoice(rate int) (compressed, uncompressed int, result Result)
	// GetVoice drains compressed voice into out and, when raw is non-nil,
	// the matching raw PCM into raw.
	GetVoice(out, raw []byte, rate int) (compressed, uncompressed int, result Result)
	// NewDecoder returns decode state for one incoming stream.
	NewDecoder() (Decoder, error)
}

// Decoder is the service-side decode state of a single speaker.
type Decoder interface {
	// DecompressVoice decodes in and resamples to outRate.
	DecompressVoice(in []byte, pcm []int16, outRate int) (samples int, result Result)
	// Reset clears predictive history.
	Reset()
	Release()
}

// Cloud adapts a Service to the Codec interface. Each instance owns one
// service decoder, so every receive channel needs its own Cloud.
type Cloud struct {
	svc     Service
	dec     Decoder
	outRate int

	// EncodeRate is the rate requested from the service when compressing.
	EncodeRate int
}

// NewCloud returns a codec proxying to svc that decodes at outRate.
func NewCloud(svc Service, outRate int) *Cloud {
	return &Cloud{svc: svc, outRate: outRate, EncodeRate: svc.OptimalSampleRate()}
}

// Init opens the decoder. Calling it again keeps the existing one.
func (c *Cloud) Init(int) error {
	if !c.svc.Available() {
		return ErrNotInitialized
	}
	if c.dec != nil {
		return nil
	}

	dec, err := c.svc.NewDecoder()
	if err != nil {
		return fmt.Errorf("cloud decoder: %w", err)
	}
	c.dec = dec

	return nil
}

// Compress ignores pcm: the service captures on its own. It drains whatever
// compressed voice is ready.
func (c *Cloud) Compress(_ []int16, out []byte, _ bool) int {
	n, _, res := c.svc.GetVoice(out, nil, c.EncodeRate)
	if res != ResultOK {
		return 0
	}
	return n
}

func (c *Cloud) Decompress(in []byte, pcm []int16) int {
	if c.dec == nil {
		return 0
	}
	n, res := c.dec.DecompressVoice(in, pcm, c.outRate)
	if res != ResultOK {
		return 0
	}
	return n
}

func (c *Cloud) ResetState() {
	if c.dec != nil {
		c.dec.Reset()
	}
}

func (c *Cloud) Release() {
	if c.dec != nil {
		c.dec.Release()
		c.dec = nil
	}
}

// SampleRate is the output rate; the service resamples on its side.
func (c *Cloud) SampleRate() int {
	return c.outRate
}
