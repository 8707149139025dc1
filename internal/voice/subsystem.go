package voice

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// Subsystem is one voice session: the receive channel pool plus the local
// record pipeline.
type Subsystem struct {
	cfg    config.VoiceConfig
	logger *zap.Logger

	registry   *codec.Registry
	newCapture capture.Factory
	service    codec.Service
	engine     SoundEngine
	services   SoundServices
	metrics    *observe.Metrics
	now        func() time.Time
	gate       ActivityGate
	gateSet    bool

	// explicitControls overrides the mixer controls discovered on the
	// capture source.
	explicitControls capture.MixerControls

	enabled         bool
	partiallyInited bool
	inited          bool
	codecName       string
	requestedRate   int
	rate            int
	outputRate      int
	cloud           bool

	channels [NumChannels]voiceChannel
	encoder  codec.Codec
	source   capture.Source
	controls capture.MixerControls

	recording bool
	stopping  bool

	talkingAck     bool
	talkingTimeout float64

	fadeSamples int
	fadeMul     float64

	tweaking    bool
	tweakVolume int

	uncompressed *debugSink
	decompressed *debugSink
	micInput     []int16
	micPos       int
	micStart     time.Time

	writer *voiceWriter
	sink   dropCounter

	scratch   []int16
	recordBuf []int16
	tweakBuf  []byte

	profile [4]time.Duration
}

// Option configures a Subsystem.
type Option func(*Subsystem)

// WithRegistry replaces the built-in codec registry.
func WithRegistry(r *codec.Registry) Option {
	return func(s *Subsystem) { s.registry = r }
}

// WithCaptureFactory sets how microphone sources are opened. Without one
// the subsystem can receive but never record.
func WithCaptureFactory(f capture.Factory) Option {
	return func(s *Subsystem) { s.newCapture = f }
}

// WithService provides the voice service used by the cloud codec.
func WithService(svc codec.Service) Option {
	return func(s *Subsystem) { s.service = svc }
}

func WithSoundServices(svc SoundServices) Option {
	return func(s *Subsystem) { s.services = svc }
}

func WithMixerControls(c capture.MixerControls) Option {
	return func(s *Subsystem) { s.explicitControls = c }
}

func WithMetrics(m *observe.Metrics) Option {
	return func(s *Subsystem) { s.metrics = m }
}

// WithClock sets the time source used to pace microphone file input and
// to time pipeline stages.
func WithClock(now func() time.Time) Option {
	return func(s *Subsystem) { s.now = now }
}

// WithActivityGate replaces the gate chosen from configuration. A nil gate
// transmits everything.
func WithActivityGate(g ActivityGate) Option {
	return func(s *Subsystem) {
		s.gate = g
		s.gateSet = true
	}
}

// New creates an uninitialized subsystem. Call Init or ForceInit before
// use.
func New(cfg config.VoiceConfig, logger *zap.Logger, engine SoundEngine, opts ...Option) *Subsystem {
	s := &Subsystem{
		cfg:           cfg,
		logger:        logger,
		registry:      codec.DefaultRegistry(),
		engine:        engine,
		services:      NopSoundServices{},
		metrics:       observe.NewNopMetrics(),
		now:           time.Now,
		enabled:       cfg.Enable,
		requestedRate: -1,
		rate:          audio.VoiceSampleRateLow,
		outputRate:    cfg.OutputSampleRate,
		scratch:       make([]int16, decompressScratchSamples),
		recordBuf:     make([]int16, maxRecordSamples),
		tweakBuf:      make([]byte, tweakBufferBytes),
	}
	if s.outputRate <= 0 {
		s.outputRate = audio.DefaultOutputSampleRate
	}

	for _, opt := range opts {
		opt(s)
	}

	if !s.gateSet {
		s.gate = gateFromConfig(cfg, s.now)
	}
	for i := range s.channels {
		s.channels[i] = newVoiceChannel()
	}
	s.writer = newVoiceWriter(logger, cfg, s.services)
	s.updateFade()

	return s
}

// Init selects a codec and opens the capture source. rate is the codec
// sample rate; for the cloud codec 0 selects the service's optimal rate.
// Init tears down any previous session first.
func (s *Subsystem) Init(codecName string, rate int) error {
	if !s.enabled {
		return ErrDisabled
	}
	if codecName == "" {
		return fmt.Errorf("%w: empty codec name", ErrUnknownCodec)
	}
	if !s.registry.Valid(codecName) {
		s.logger.Warn("Voice init failed: invalid voice codec", zap.String("codec", codecName))
		return fmt.Errorf("%w: %q", ErrUnknownCodec, codecName)
	}

	// Incoming voice is only ever upsampled into the mix.
	if rate > s.outputRate {
		s.logger.Warn("Voice init failed: sample rate above output rate",
			zap.Int("sample_rate", rate),
			zap.Int("output_sample_rate", s.outputRate))
		return fmt.Errorf("%w: %d > %d", ErrRateAboveOutput, rate, s.outputRate)
	}

	s.Deinit()

	s.partiallyInited = true
	s.codecName = codecName
	s.requestedRate = rate
	s.cloud = codec.IsCloud(codecName)

	if s.cloud && (s.service == nil || !s.service.Available()) {
		s.logger.Warn("Cloud voice requested but the voice service is unavailable. Voice will not function")
		return ErrServiceUnavailable
	}

	if s.cloud && rate == 0 {
		// The service decodes straight to the mix rate.
		s.logger.Info("Using voice service optimal sample rate",
			zap.Int("optimal_rate", s.service.OptimalSampleRate()))
		s.rate = s.outputRate
	} else {
		s.rate = rate
	}

	if err := s.engine.Init(); err != nil {
		return fmt.Errorf("sound engine init: %w", err)
	}

	if s.newCapture != nil {
		src, err := s.newCapture(s.rate)
		if err != nil {
			s.logger.Warn("Unable to initialize sound capture. You won't be able to speak", zap.Error(err))
		} else {
			s.source = src
		}
	} else {
		s.logger.Warn("Unable to initialize sound capture. You won't be able to speak")
	}

	if s.cloud {
		for i := range s.channels {
			c := codec.NewCloud(s.service, s.outputRate)
			if err := c.Init(0); err != nil {
				s.Deinit()
				return fmt.Errorf("%w: %w", ErrServiceUnavailable, err)
			}
			s.channels[i].codec = c
		}
	} else {
		quality := 4
		if strings.EqualFold(codecName, codec.NameCELT) {
			quality = 3
		}

		enc, err := s.newCodec(codecName, quality)
		if err != nil {
			s.logger.Error("Unable to load voice codec. Voice disabled",
				zap.String("codec", codecName), zap.Error(err))
			s.Deinit()
			return err
		}
		s.encoder = enc

		for i := range s.channels {
			dec, err := s.newCodec(codecName, quality)
			if err != nil {
				s.Deinit()
				return err
			}
			s.channels[i].codec = dec
		}
	}

	s.controls = s.explicitControls
	if s.controls == nil {
		if mc, ok := s.source.(capture.MixerControls); ok {
			s.controls = mc
		}
	}
	s.inited = true

	// The cloud service captures on its own.
	if s.cfg.ForceMicSelect && !s.cloud && s.controls != nil {
		if err := s.controls.SelectMicrophone(); err != nil {
			s.logger.Warn("Failed to select microphone", zap.Error(err))
		}
	}

	s.logger.Info("Voice initialized",
		zap.String("codec", codecName),
		zap.Int("sample_rate", s.rate),
		zap.Int("output_sample_rate", s.outputRate),
		zap.Bool("capture", s.source != nil))

	return nil
}

func (s *Subsystem) newCodec(name string, quality int) (codec.Codec, error) {
	c, err := s.registry.New(name, s.rate)
	if err != nil {
		return nil, err
	}
	if err := c.Init(quality); err != nil {
		c.Release()
		return nil, fmt.Errorf("init codec %q: %w", name, err)
	}

	return c, nil
}

// InitWithDefault initializes name at its default sample rate.
func (s *Subsystem) InitWithDefault(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty codec name", ErrUnknownCodec)
	}

	rate := s.registry.DefaultSampleRate(name)
	if rate < 0 {
		s.logger.Warn("Unable to determine defaults for codec", zap.String("codec", name))
		return fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}

	return s.Init(name, rate)
}

// ForceInit brings voice up with the configured codec, falling back to the
// most portable one. It does nothing when already initialized or disabled.
func (s *Subsystem) ForceInit() {
	if s.inited || !s.enabled {
		return
	}

	err := s.InitWithDefault(s.cfg.Codec)
	if err == nil {
		return
	}

	s.logger.Warn("Configured voice codec failed, trying fallback",
		zap.String("codec", s.cfg.Codec),
		zap.String("fallback", codec.FallbackName),
		zap.Error(err))
	if err := s.InitWithDefault(codec.FallbackName); err != nil {
		s.logger.Error("Fallback voice codec failed", zap.Error(err))
	}
}

// Deinit ends all channels, stops recording and releases every codec and
// the capture source.
func (s *Subsystem) Deinit() {
	if !s.partiallyInited {
		return
	}

	s.EndAllChannels()
	_ = s.RecordStop()

	for i := range s.channels {
		if c := s.channels[i].codec; c != nil {
			c.Release()
			s.channels[i].codec = nil
		}
	}
	if s.encoder != nil {
		s.encoder.Release()
		s.encoder = nil
	}
	if s.source != nil {
		s.source.Release()
		s.source = nil
	}
	s.controls = nil

	s.engine.Term()

	s.partiallyInited = false
	s.inited = false
	s.codecName = ""
	s.requestedRate = -1
	s.cloud = false
}

// ConfiguredCodec returns the codec passed to Init, or "" when voice is
// not initialized.
func (s *Subsystem) ConfiguredCodec() string { return s.codecName }

// ConfiguredSampleRate returns the rate passed to Init, or -1.
func (s *Subsystem) ConfiguredSampleRate() int { return s.requestedRate }

// SamplesPerSec is the rate the codecs and capture run at.
func (s *Subsystem) SamplesPerSec() int { return s.rate }

func (s *Subsystem) AvgBytesPerSec() int { return s.rate * 16 >> 3 }

// OutputSampleRate is the mixer rate receive channels are resampled to.
func (s *Subsystem) OutputSampleRate() int { return s.outputRate }

func (s *Subsystem) Enabled() bool { return s.enabled }

// SetEnabled toggles voice. A disabled subsystem tears itself down on the
// next Idle.
func (s *Subsystem) SetEnabled(v bool) { s.enabled = v }

func (s *Subsystem) Loopback() bool { return s.cfg.Loopback }

// Initialized reports whether Init completed.
func (s *Subsystem) Initialized() bool { return s.inited }

// IsCloud reports whether the service-backed codec is active.
func (s *Subsystem) IsCloud() bool { return s.cloud }

func (s *Subsystem) updateFade() {
	s.fadeSamples, s.fadeMul = audio.FadeParams(s.cfg.FadeOutMs/1000, s.outputRate)
}

func (s *Subsystem) startTimer() time.Time {
	if !s.cfg.Debug.Profile {
		return time.Time{}
	}

	return s.now()
}

func (s *Subsystem) endTimer(start time.Time, stage observe.Stage) {
	if start.IsZero() {
		return
	}

	d := s.now().Sub(start)
	s.profile[stage] += d
	s.metrics.ObserveStage(context.Background(), stage, d)
}
