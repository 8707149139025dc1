package transport

import (
	"context"
	"errors"

	"github.com/diamondburned/arikawa/v3/gateway"
	"github.com/diamondburned/arikawa/v3/session"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
)

// Module provides the voice transport selected by the config: Discord when
// transport.enabled is set, otherwise an in-process loopback that echoes
// only when voice.loopback is on.
var Module = fx.Module("transport",
	fx.Provide(
		NewFilter,
		NewTransport,
	),
)

// NewFilter sizes the duplicate filter from the config.
func NewFilter(cfg *config.Config) (*SequenceFilter, error) {
	return NewSequenceFilter(cfg.Transport.DedupeCacheSize)
}

// Params holds dependencies for NewTransport.
type Params struct {
	fx.In
	Cfg    *config.Config
	LC     fx.Lifecycle
	Logger *zap.Logger
	Filter *SequenceFilter
}

// NewTransport builds the configured transport. The Discord session is
// opened and closed with the application; joining the voice channel is
// left to the caller.
func NewTransport(p Params) (Transport, error) {
	logger := p.Logger.Named("transport")

	if !p.Cfg.Transport.Enabled {
		return NewLoopback(logger, p.Filter, p.Cfg.Voice.Loopback, DefaultQueueSize), nil
	}

	s, err := NewSession(p.Cfg.Transport, p.LC, logger)
	if err != nil {
		return nil, err
	}

	return NewDiscord(logger, s, p.Cfg.Transport.ChannelID, p.Filter, DefaultQueueSize), nil
}

// NewSession creates a gateway session with the intents voice needs.
func NewSession(cfg config.TransportConfig, lc fx.Lifecycle, logger *zap.Logger) (*session.Session, error) {
	if cfg.BotToken == "" {
		return nil, errors.New("discord bot token is not set in config")
	}

	s := session.New("Bot " + cfg.BotToken)
	s.AddIntents(gateway.IntentGuilds | gateway.IntentGuildVoiceStates)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Opening Discord session...")

			return s.Open(ctx)
		},
		OnStop: func(context.Context) error {
			logger.Info("Closing Discord session...")

			return s.Close()
		},
	})

	return s, nil
}
