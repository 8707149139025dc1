package voice_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/voice"
	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

const (
	testCodec = "codecA"
	testRate  = 22050
)

type endCall struct{ ch, entity int }

type fakeEngine struct {
	initErr error

	inits, terms int
	nextHandle   int
	started      map[int]int // channel -> handle
	playing      map[int]bool
	ended        []endCall
	overdrive    bool
	mouths       map[int]int // entity -> samples seen
	idles        int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		nextHandle: 1,
		started:    make(map[int]int),
		playing:    make(map[int]bool),
		mouths:     make(map[int]int),
	}
}

func (e *fakeEngine) Init() error {
	e.inits++
	return e.initErr
}

func (e *fakeEngine) Term()           { e.terms++ }
func (e *fakeEngine) Idle(float64)    { e.idles++ }
func (e *fakeEngine) StartOverdrive() { e.overdrive = true }
func (e *fakeEngine) EndOverdrive()   { e.overdrive = false }
func (e *fakeEngine) InitMouth(int)   {}
func (e *fakeEngine) CloseMouth(int)  {}

func (e *fakeEngine) StartChannel(ch, _ int, _ bool, _ int) int {
	h := e.nextHandle
	e.nextHandle++
	e.started[ch] = h
	e.playing[h] = true

	return h
}

func (e *fakeEngine) EndChannel(ch, entity int) {
	e.ended = append(e.ended, endCall{ch, entity})
}

func (e *fakeEngine) IsSoundPlaying(h int) bool { return e.playing[h] }

func (e *fakeEngine) MoveMouth(entity int, samples []int16) {
	e.mouths[entity] += len(samples)
}

type statusEvent struct {
	entity  int
	talking bool
}

type fakeServices struct {
	events    []statusEvent
	view      int
	connected bool
	dir       string
	time      float64
}

func (s *fakeServices) OnChangeVoiceStatus(entity int, talking bool) {
	s.events = append(s.events, statusEvent{entity, talking})
}

func (s *fakeServices) ViewEntity() int     { return s.view }
func (s *fakeServices) IsConnected() bool   { return s.connected }
func (s *fakeServices) GameDir() string     { return s.dir }
func (s *fakeServices) ClientTime() float64 { return s.time }

func (s *fakeServices) saw(entity int, talking bool) bool {
	for _, e := range s.events {
		if e.entity == entity && e.talking == talking {
			return true
		}
	}

	return false
}

type fakeSource struct {
	startOK bool
	started bool
	stops   int
	queued  []int16
}

func (s *fakeSource) Start() bool {
	s.started = s.startOK
	return s.startOK
}

func (s *fakeSource) Stop() {
	s.started = false
	s.stops++
}

func (s *fakeSource) Poll()    {}
func (s *fakeSource) Release() {}

func (s *fakeSource) RecordedData(dst []int16) int {
	n := copy(dst, s.queued)
	s.queued = s.queued[n:]

	return n
}

func (s *fakeSource) feed(samples []int16) { s.queued = append(s.queued, samples...) }

func sourceFactory(src *fakeSource) capture.Factory {
	return func(int) (capture.Source, error) { return src, nil }
}

func failingFactory() capture.Factory {
	return func(int) (capture.Source, error) { return nil, errors.New("no microphone") }
}

type fakeControls struct {
	selected int
	volume   float64
	boost    float64
}

func (c *fakeControls) SelectMicrophone() error {
	c.selected++
	return nil
}

func (c *fakeControls) MicVolume() (float64, bool) { return c.volume, true }
func (c *fakeControls) SetMicVolume(v float64)     { c.volume = v }
func (c *fakeControls) MicBoost() (float64, bool)  { return c.boost, true }
func (c *fakeControls) SetMicBoost(v float64)      { c.boost = v }

// fakeClock advances only when told to.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type harness struct {
	sub      *voice.Subsystem
	engine   *fakeEngine
	services *fakeServices
	source   *fakeSource
}

func testRegistry() *codec.Registry {
	r := codec.NewRegistry()
	r.Register(testCodec, testRate, codec.NewPCM)

	return r
}

// testConfig disables the activity gate so every captured block is sent.
func testConfig() config.VoiceConfig {
	cfg := config.Default().Voice
	cfg.VoiceActivityThreshold = 0
	cfg.Codec = testCodec

	return cfg
}

func newHarness(t *testing.T, cfg config.VoiceConfig, opts ...voice.Option) *harness {
	t.Helper()

	h := &harness{
		engine:   newFakeEngine(),
		services: &fakeServices{connected: true, dir: t.TempDir()},
		source:   &fakeSource{startOK: true},
	}

	base := []voice.Option{
		voice.WithRegistry(testRegistry()),
		voice.WithSoundServices(h.services),
		voice.WithCaptureFactory(sourceFactory(h.source)),
	}
	h.sub = voice.New(cfg, zaptest.NewLogger(t), h.engine, append(base, opts...)...)

	return h
}

// newInited returns a harness initialized with the PCM test codec.
func newInited(t *testing.T, opts ...voice.Option) *harness {
	t.Helper()

	h := newHarness(t, testConfig(), opts...)
	if err := h.sub.Init(testCodec, testRate); err != nil {
		t.Fatalf("init: %v", err)
	}

	return h
}

func sine(n int, amp float64, period int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amp * math.Sin(2*math.Pi*float64(i)/float64(period)))
	}

	return out
}

func constant(n int, v int16) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}

	return out
}

func encode(samples []int16) []byte { return audio.PCMInt16ToLE(samples) }
