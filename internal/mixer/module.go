package mixer

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/observe"
	"github.com/Raikerian/go-voicecomm/internal/voice"
)

// Module provides the mixing engine, also as the voice.SoundEngine.
var Module = fx.Module("mixer",
	fx.Provide(
		NewFromConfig,
		func(e *Engine) voice.SoundEngine { return e },
	),
)

// Params holds dependencies for NewFromConfig.
type Params struct {
	fx.In
	Cfg     *config.Config
	Logger  *zap.Logger
	Metrics *observe.Metrics `optional:"true"`
}

// NewFromConfig builds the engine and its sink. The sink is opened by
// Init, which the voice subsystem calls.
func NewFromConfig(p Params) (*Engine, error) {
	logger := p.Logger.Named("mixer")
	rate := p.Cfg.Voice.OutputSampleRate

	sink, err := NewSink(p.Cfg.Audio, rate, logger)
	if err != nil {
		return nil, err
	}

	return New(logger, rate, sink, p.Metrics), nil
}
