package codec_test

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
)

func TestDefaultRegistry(t *testing.T) {
	r := codec.DefaultRegistry()

	assert.Equal(t, []string{codec.NameCELT, codec.NameOpus, codec.NamePCM}, r.Names())
	assert.True(t, r.Valid("VAUDIO_CELT"), "names are case-insensitive")
	assert.True(t, r.Valid("steam"))
	assert.True(t, r.Valid(codec.NameCloud))
	assert.False(t, r.Valid("vaudio_miles"))

	tests := map[string]struct {
		name string
		want int
	}{
		"opus":    {name: codec.NameOpus, want: 24000},
		"celt":    {name: codec.NameCELT, want: 24000},
		"pcm":     {name: codec.NamePCM, want: 22050},
		"cloud":   {name: codec.NameCloud, want: 0},
		"unknown": {name: "vaudio_speex", want: -1},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.DefaultSampleRate(tt.name))
		})
	}
}

func TestRegistry_New(t *testing.T) {
	r := codec.NewRegistry()
	_, err := r.New("nope", 8000)
	require.ErrorIs(t, err, codec.ErrUnknownCodec)

	r.Register("Custom", 16000, codec.NewPCM)
	c, err := r.New("custom", 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, c.SampleRate())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, codec.KindCloud, codec.KindOf("Steam"))
	assert.Equal(t, codec.KindLocal, codec.KindOf(codec.NameOpus))
	assert.Equal(t, "cloud", codec.KindCloud.String())
}

func TestFraming(t *testing.T) {
	payload := codec.AppendFrame(nil, []byte{1, 2, 3})
	payload = codec.AppendFrame(payload, []byte{4})

	frames := codec.SplitFrames(payload)
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{1, 2, 3}, frames[0])
	assert.Equal(t, []byte{4}, frames[1])

	malformed := map[string][]byte{
		"short header":   {1},
		"overlong frame": {9, 0, 1, 2},
		"empty frame":    {0, 0},
	}
	for name, in := range malformed {
		t.Run(name, func(t *testing.T) {
			assert.Nil(t, codec.SplitFrames(in))
		})
	}
}

func TestPCM(t *testing.T) {
	c, err := codec.NewPCM(22050)
	require.NoError(t, err)

	out := make([]byte, 16)
	assert.Zero(t, c.Compress([]int16{1}, out, false), "unusable before Init")

	require.NoError(t, c.Init(4))
	n := c.Compress([]int16{100, -200, 300}, out, false)
	require.Equal(t, 6, n)

	pcm := make([]int16, 8)
	assert.Equal(t, 3, c.Decompress(out[:n], pcm))
	assert.Equal(t, []int16{100, -200, 300}, pcm[:3])
	assert.Zero(t, c.Decompress([]byte{1, 2, 3}, pcm), "odd length is malformed")

	_, err = codec.NewPCM(0)
	assert.ErrorIs(t, err, codec.ErrUnsupportedRate)
}

func tone(n, rate int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(rate)))
	}
	return out
}

func TestOpus_RoundTrip(t *testing.T) {
	const rate = 24000
	c, err := codec.NewOpusVoice(rate)
	require.NoError(t, err)
	require.NoError(t, c.Init(4))
	defer c.Release()

	out := make([]byte, 4096)

	// Less than one 20 ms frame stays pending.
	assert.Zero(t, c.Compress(tone(300, rate), out, false))

	n := c.Compress(tone(300, rate), out, false)
	require.Positive(t, n, "600 samples complete one 480-sample frame")

	pcm := make([]int16, 11264)
	got := c.Decompress(out[:n], pcm)
	assert.Equal(t, 480, got)

	n = c.Compress(nil, out, true)
	require.Positive(t, n, "final flushes the partial frame")
	assert.Equal(t, 480, c.Decompress(out[:n], pcm))

	assert.Zero(t, c.Decompress([]byte{0xff, 0xff, 1}, pcm))
}

func TestOpus_RejectsRate(t *testing.T) {
	_, err := codec.NewOpusCELT(22050)
	assert.ErrorIs(t, err, codec.ErrUnsupportedRate)
}

type fakeService struct {
	available bool
	voice     []byte
	decoded   []int16
	lastRate  int
	decoders  []*fakeDecoder
	decErr    error
}

type fakeDecoder struct {
	svc      *fakeService
	resets   int
	released bool
}

func (d *fakeDecoder) DecompressVoice(_ []byte, pcm []int16, outRate int) (int, codec.Result) {
	d.svc.lastRate = outRate
	if d.svc.decoded == nil {
		return 0, codec.ResultDataCorrupted
	}
	return copy(pcm, d.svc.decoded), codec.ResultOK
}

func (d *fakeDecoder) Reset()   { d.resets++ }
func (d *fakeDecoder) Release() { d.released = true }

func (f *fakeService) Available() bool        { return f.available }
func (f *fakeService) StartRecording() error  { return nil }
func (f *fakeService) StopRecording()         {}
func (f *fakeService) OptimalSampleRate() int { return 16000 }

func (f *fakeService) AvailableVoice(int) (int, int, codec.Result) {
	return len(f.voice), 0, codec.ResultOK
}

func (f *fakeService) GetVoice(out, _ []byte, rate int) (int, int, codec.Result) {
	f.lastRate = rate
	if len(f.voice) == 0 {
		return 0, 0, codec.ResultNoData
	}
	return copy(out, f.voice), 0, codec.ResultOK
}

func (f *fakeService) NewDecoder() (codec.Decoder, error) {
	if f.decErr != nil {
		return nil, f.decErr
	}
	d := &fakeDecoder{svc: f}
	f.decoders = append(f.decoders, d)
	return d, nil
}

func TestCloud(t *testing.T) {
	svc := &fakeService{}
	c := codec.NewCloud(svc, 44100)
	assert.ErrorIs(t, c.Init(4), codec.ErrNotInitialized)

	svc.available = true
	require.NoError(t, c.Init(4))
	assert.Equal(t, 44100, c.SampleRate())

	pcm := make([]int16, 4)
	assert.Zero(t, c.Decompress([]byte{1}, pcm), "service failure is soft")

	svc.decoded = []int16{1, 2}
	assert.Equal(t, 2, c.Decompress([]byte{1}, pcm))
	assert.Equal(t, 44100, svc.lastRate, "decode is requested at the output rate")

	out := make([]byte, 8)
	assert.Zero(t, c.Compress(nil, out, false))
	svc.voice = []byte{9, 9}
	assert.Equal(t, 2, c.Compress(nil, out, false))
	assert.Equal(t, 16000, svc.lastRate)
}

func TestCloud_OwnsDecoder(t *testing.T) {
	svc := &fakeService{available: true}
	a := codec.NewCloud(svc, 48000)
	b := codec.NewCloud(svc, 48000)
	require.NoError(t, a.Init(0))
	require.NoError(t, a.Init(0))
	require.NoError(t, b.Init(0))
	require.Len(t, svc.decoders, 2, "one decoder per codec, kept across Init")

	a.ResetState()
	assert.Equal(t, 1, svc.decoders[0].resets)
	assert.Zero(t, svc.decoders[1].resets, "resetting one speaker leaves the other alone")

	a.Release()
	assert.True(t, svc.decoders[0].released)
	assert.False(t, svc.decoders[1].released)
	assert.Zero(t, a.Decompress([]byte{1}, make([]int16, 4)), "released codec decodes nothing")
	a.ResetState()
}

func TestCloud_DecoderFailure(t *testing.T) {
	svc := &fakeService{available: true, decErr: errors.New("no decoder")}
	c := codec.NewCloud(svc, 48000)

	assert.ErrorIs(t, c.Init(0), svc.decErr)
}
