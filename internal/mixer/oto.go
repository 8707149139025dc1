package mixer

import (
	"fmt"
	"io"
	"time"

	"github.com/ebitengine/oto/v3"
	"go.uber.org/zap"
)

// otoBuffer bounds how far ahead oto reads from the output.
const otoBuffer = 60 * time.Millisecond

// OtoSink plays through oto. oto allows one context per process, so the
// context is suspended on Close and resumed by the next Start.
type OtoSink struct {
	logger *zap.Logger
	rate   int

	ctx    *oto.Context
	player *oto.Player
}

var _ Sink = (*OtoSink)(nil)

func NewOtoSink(logger *zap.Logger, rate int) *OtoSink {
	return &OtoSink{logger: logger, rate: rate}
}

func (s *OtoSink) Start(src io.Reader) error {
	if s.player != nil {
		return nil
	}

	if s.ctx != nil {
		if err := s.ctx.Resume(); err != nil {
			return fmt.Errorf("failed to resume oto context: %w", err)
		}
		s.play(src)

		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   s.rate,
		ChannelCount: 1,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   otoBuffer,
	})
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	s.ctx = ctx
	s.play(src)

	return nil
}

func (s *OtoSink) play(src io.Reader) {
	s.player = s.ctx.NewPlayer(src)
	s.player.Play()
	s.logger.Info("Playback started", zap.Int("sample_rate", s.rate), zap.String("sink", "oto"))
}

func (s *OtoSink) Close() error {
	if s.player == nil {
		return nil
	}

	err := s.player.Close()
	s.player = nil
	if serr := s.ctx.Suspend(); serr != nil && err == nil {
		err = serr
	}

	return err
}
