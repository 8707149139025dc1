package voice

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/internal/voice/codec"
	"github.com/Raikerian/go-voicecomm/internal/voice/service"
)

// Module provides the voice subsystem and its codec and capture plumbing.
// A SoundEngine must be supplied by another module.
var Module = fx.Module("voice",
	fx.Provide(
		codec.DefaultRegistry,
		NewCaptureFactory,
		NewVoiceService,
		NewFromParams,
	),
)

// NewCaptureFactory opens the configured microphone through miniaudio.
func NewCaptureFactory(cfg *config.Config, logger *zap.Logger) capture.Factory {
	return capture.NewDeviceFactory(logger.Named("capture"), cfg.Audio.CaptureDevice)
}

// NewVoiceService builds the embedded service behind the cloud codec. It
// is only started when that codec is selected.
func NewVoiceService(lc fx.Lifecycle, logger *zap.Logger, newCapture capture.Factory) (codec.Service, error) {
	svc, err := service.New(logger.Named("voice_service"), newCapture)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			svc.Release()
			return nil
		},
	})

	return svc, nil
}

// Params are the subsystem dependencies taken from the graph.
type Params struct {
	fx.In

	Config   *config.Config
	Logger   *zap.Logger
	Engine   SoundEngine
	Registry *codec.Registry
	Capture  capture.Factory
	Service  codec.Service         `optional:"true"`
	Services SoundServices         `optional:"true"`
	Metrics  *observe.Metrics      `optional:"true"`
	Controls capture.MixerControls `optional:"true"`
}

func NewFromParams(p Params) *Subsystem {
	opts := []Option{
		WithRegistry(p.Registry),
		WithCaptureFactory(p.Capture),
	}
	if p.Service != nil {
		opts = append(opts, WithService(p.Service))
	}
	if p.Services != nil {
		opts = append(opts, WithSoundServices(p.Services))
	}
	if p.Metrics != nil {
		opts = append(opts, WithMetrics(p.Metrics))
	}
	if p.Controls != nil {
		opts = append(opts, WithMixerControls(p.Controls))
	}

	return New(p.Config.Voice, p.Logger.Named("voice"), p.Engine, opts...)
}
