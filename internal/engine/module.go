package engine

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/mixer"
	"github.com/Raikerian/go-voicecomm/internal/transport"
	"github.com/Raikerian/go-voicecomm/internal/voice"
)

// Module runs the frame loop for the lifetime of the application.
var Module = fx.Module("engine",
	fx.Provide(NewFromParams),
	fx.Invoke(Register),
)

// Params holds the loop dependencies.
type Params struct {
	fx.In
	Cfg       *config.Config
	Logger    *zap.Logger
	Voice     *voice.Subsystem
	Mixer     *mixer.Engine
	Transport transport.Transport
}

func NewFromParams(p Params) *Loop {
	return New(p.Logger.Named("engine"), p.Cfg, p.Voice, p.Mixer, p.Transport)
}

// Register ties the loop to the application lifecycle.
func Register(lc fx.Lifecycle, l *Loop) {
	lc.Append(fx.Hook{
		OnStart: l.Start,
		OnStop:  l.Stop,
	})
}
