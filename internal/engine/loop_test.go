package engine_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/engine"
	"github.com/Raikerian/go-voicecomm/internal/mixer"
	"github.com/Raikerian/go-voicecomm/internal/transport"
	"github.com/Raikerian/go-voicecomm/internal/voice"
	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// pushSource is a capture source the test feeds directly.
type pushSource struct {
	*capture.Buffer
	stops int
}

var _ capture.Source = (*pushSource)(nil)

func (s *pushSource) Start() bool                  { return true }
func (s *pushSource) Stop()                        { s.stops++ }
func (s *pushSource) Poll()                        {}
func (s *pushSource) RecordedData(dst []int16) int { return s.Drain(dst) }
func (s *pushSource) Release()                     {}

// fakeTransport records sends and delivers queued packets.
type fakeTransport struct {
	packets chan transport.Packet

	mu      sync.Mutex
	opened  int
	closed  int
	sent    [][]byte
	openErr error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{packets: make(chan transport.Packet, 16)}
}

func (f *fakeTransport) Open(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.opened++
	return f.openErr
}

func (f *fakeTransport) Receive(ctx context.Context) error {
	<-ctx.Done()
	return nil
}

func (f *fakeTransport) Packets() <-chan transport.Packet { return f.packets }

func (f *fakeTransport) Send(_ context.Context, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, append([]byte(nil), payload...))
	return nil
}

func (f *fakeTransport) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.closed++
	return nil
}

func (f *fakeTransport) sends() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.sent)
}

type rig struct {
	cfg    *config.Config
	sub    *voice.Subsystem
	mix    *mixer.Engine
	source *pushSource
	loop   *engine.Loop
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Voice.Codec = codec.NamePCM
	cfg.Voice.VoiceActivityThreshold = 0
	cfg.Voice.ForceMicSelect = false
	cfg.Audio.Playback = config.PlaybackNone

	return cfg
}

func newRig(t *testing.T, cfg *config.Config, tr transport.Transport) *rig {
	t.Helper()

	logger := zaptest.NewLogger(t)
	src := &pushSource{Buffer: capture.NewBuffer(48_000)}
	mix := mixer.New(logger, cfg.Voice.OutputSampleRate, nil, nil)
	sub := voice.New(cfg.Voice, logger, mix,
		voice.WithCaptureFactory(func(int) (capture.Source, error) { return src, nil }),
	)

	return &rig{
		cfg:    cfg,
		sub:    sub,
		mix:    mix,
		source: src,
		loop:   engine.New(logger, cfg, sub, mix, tr),
	}
}

func pcmPayload(n int, level int16) []byte {
	s := make([]int16, n)
	for i := range s {
		s[i] = level
	}

	return audio.PCMInt16ToLE(s)
}

func TestLoopbackRoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Voice.Loopback = true

	filter, err := transport.NewSequenceFilter(4)
	require.NoError(t, err)
	tr := transport.NewLoopback(zaptest.NewLogger(t), filter, true, 8)

	r := newRig(t, cfg, tr)
	require.NoError(t, r.loop.Open(ctx))
	require.True(t, r.sub.IsRecording())

	tone := make([]int16, 2205)
	for i := range tone {
		tone[i] = 4000
	}
	r.source.PushSamples(tone)

	var heard bool
	for range 20 {
		r.loop.Tick(ctx, 0.02)

		out := make([]int16, r.mix.Output().Buffered())
		r.mix.Output().ReadSamples(out)
		for _, s := range out {
			if s != 0 {
				heard = true
			}
		}
	}
	assert.True(t, heard, "echoed voice reaches the mixer output")
	assert.Equal(t, voice.ChannelError, r.sub.GetChannel(int(transport.LoopbackSSRC)), "speaker released once drained")
	assert.Empty(t, r.mix.Playing())

	r.loop.Close()
	assert.False(t, r.sub.Initialized())
	assert.ErrorIs(t, tr.Send(ctx, []byte{1}), transport.ErrNotConnected)
}

func TestTickFillsChannelPool(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	r := newRig(t, testConfig(), tr)
	require.NoError(t, r.loop.Open(ctx))
	assert.False(t, r.sub.IsRecording(), "nothing to send to")

	for ssrc := uint32(100); ssrc < 100+voice.NumChannels+1; ssrc++ {
		tr.packets <- transport.Packet{SSRC: ssrc, Sequence: 1, Payload: pcmPayload(220, 500)}
	}
	r.loop.Tick(ctx, 0.02)

	for i := range voice.NumChannels {
		assert.Equal(t, i, r.sub.GetChannel(100+i))
		info, ok := r.sub.Channel(i)
		require.True(t, ok)
		assert.Positive(t, info.Buffered)
	}
	assert.Equal(t, voice.ChannelError, r.sub.GetChannel(100+voice.NumChannels))
	assert.Zero(t, tr.sends())

	r.loop.Close()
	assert.Equal(t, 1, tr.closed)
}

func TestTickDropsPacketsWhileTweaking(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()
	r := newRig(t, testConfig(), tr)
	require.NoError(t, r.loop.Open(ctx))
	require.NoError(t, r.sub.StartTweakMode())

	tr.packets <- transport.Packet{SSRC: 7, Sequence: 1, Payload: pcmPayload(220, 500)}
	r.loop.Tick(ctx, 0.02)

	assert.Equal(t, voice.ChannelError, r.sub.GetChannel(7))
	assert.Empty(t, tr.packets)
	r.loop.Close()
}

func TestTickMixesOneFramePerTick(t *testing.T) {
	ctx := context.Background()
	r := newRig(t, testConfig(), newFakeTransport())
	require.NoError(t, r.loop.Open(ctx))

	r.loop.Tick(ctx, 0.02)
	assert.Equal(t, 960, r.mix.Output().Buffered())

	// Fractional frames carry over.
	r.loop.Tick(ctx, 0.00001)
	r.loop.Tick(ctx, 0.00001)
	r.loop.Tick(ctx, 0.00001)
	assert.Equal(t, 961, r.mix.Output().Buffered())

	r.loop.Close()
}

func TestOpenRecordsWhenTransportEnabled(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Transport.Enabled = true
	tr := newFakeTransport()
	r := newRig(t, cfg, tr)

	require.NoError(t, r.loop.Open(ctx))
	require.True(t, r.sub.IsRecording())

	r.source.PushSamples(make([]int16, 441))
	r.loop.Tick(ctx, 0.02)
	assert.Equal(t, 1, tr.sends())
	assert.Len(t, tr.sent[0], 882)

	r.loop.Close()
	assert.False(t, r.sub.IsRecording())
	assert.Equal(t, 1, tr.sends(), "nothing left to flush")
	assert.Positive(t, r.source.stops)
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("transport", func(t *testing.T) {
		boom := errors.New("no route")
		tr := newFakeTransport()
		tr.openErr = boom
		r := newRig(t, testConfig(), tr)

		assert.ErrorIs(t, r.loop.Open(ctx), boom)
		assert.False(t, r.sub.Initialized())
	})

	t.Run("unknown codec", func(t *testing.T) {
		cfg := testConfig()
		cfg.Voice.Codec = "vaudio_speex"
		tr := newFakeTransport()
		r := newRig(t, cfg, tr)

		assert.ErrorIs(t, r.loop.Open(ctx), voice.ErrUnknownCodec)
		assert.Zero(t, tr.opened)
	})

	t.Run("disabled voice still opens", func(t *testing.T) {
		cfg := testConfig()
		cfg.Voice.Enable = false
		tr := newFakeTransport()
		r := newRig(t, cfg, tr)

		require.NoError(t, r.loop.Open(ctx))
		assert.Equal(t, 1, tr.opened)
		assert.False(t, r.sub.Initialized())
		r.loop.Close()
	})
}

func TestStartStop(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.Audio.FrameMs = 5
	tr := newFakeTransport()
	r := newRig(t, cfg, tr)

	require.NoError(t, r.loop.Start(ctx))
	require.NoError(t, r.loop.Stop(ctx))
	require.NoError(t, r.loop.Stop(ctx))

	assert.Equal(t, 1, tr.closed)
	assert.False(t, r.sub.Initialized())
}
