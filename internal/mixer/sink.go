package mixer

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
)

// Sink plays the mixed output.
type Sink interface {
	// Start begins pulling from src. It is called from Engine.Init.
	Start(src io.Reader) error
	Close() error
}

// NullSink plays nothing. The output is left for the caller to drain.
type NullSink struct{}

func (NullSink) Start(io.Reader) error { return nil }
func (NullSink) Close() error          { return nil }

// NewSink builds the sink named by cfg.Playback.
func NewSink(cfg config.AudioConfig, rate int, logger *zap.Logger) (Sink, error) {
	switch cfg.Playback {
	case config.PlaybackDevice:
		return NewDevice(logger, rate, cfg.PlaybackDevice), nil
	case config.PlaybackOto:
		return NewOtoSink(logger, rate), nil
	case config.PlaybackNone, "":
		return NullSink{}, nil
	default:
		return nil, fmt.Errorf("unknown playback sink %q", cfg.Playback)
	}
}
