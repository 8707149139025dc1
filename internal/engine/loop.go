// Package engine runs the frame loop that owns the voice subsystem. Every
// Subsystem call happens on the loop goroutine.
package engine

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/mixer"
	"github.com/Raikerian/go-voicecomm/internal/transport"
	"github.com/Raikerian/go-voicecomm/internal/voice"
)

// sendBufferBytes holds one tick of compressed voice.
const sendBufferBytes = 8_192

// Loop moves packets from the transport into the voice channels, sends
// captured voice out, and mixes playback once per frame.
type Loop struct {
	logger    *zap.Logger
	cfg       *config.Config
	voice     *voice.Subsystem
	mixer     *mixer.Engine
	transport transport.Transport

	frame   time.Duration
	sendBuf []byte
	carry   float64

	cancel context.CancelFunc
	done   chan error
}

// New returns an idle loop.
func New(logger *zap.Logger, cfg *config.Config, sub *voice.Subsystem, mix *mixer.Engine, tr transport.Transport) *Loop {
	return &Loop{
		logger:    logger,
		cfg:       cfg,
		voice:     sub,
		mixer:     mix,
		transport: tr,
		frame:     time.Duration(cfg.Audio.FrameMs) * time.Millisecond,
		sendBuf:   make([]byte, sendBufferBytes),
	}
}

// Tick advances the pipeline by dt seconds.
func (l *Loop) Tick(ctx context.Context, dt float64) {
	l.receive()

	if l.voice.IsRecording() {
		l.send(ctx, false)
	}

	l.voice.Idle(dt)

	l.carry += dt * float64(l.voice.OutputSampleRate())
	frames := int(l.carry)
	l.carry -= float64(frames)
	l.mixer.Mix(l.voice, frames)
}

// receive drains queued packets without blocking.
func (l *Loop) receive() {
	for {
		select {
		case p := <-l.transport.Packets():
			l.deliver(p)
		default:
			return
		}
	}
}

func (l *Loop) deliver(p transport.Packet) {
	entity := int(p.SSRC)

	ch := l.voice.AssignChannel(entity, false)
	switch ch {
	case voice.ChannelInTweakMode:
		return
	case voice.ChannelError:
		l.logger.Debug("No free voice channel", zap.Uint32("ssrc", p.SSRC))
		return
	}

	l.voice.AddIncomingData(ch, p.Payload, int(p.Sequence))
}

func (l *Loop) send(ctx context.Context, final bool) {
	n := l.voice.GetCompressedData(l.sendBuf, final)
	if n == 0 {
		return
	}

	if err := l.transport.Send(ctx, l.sendBuf[:n]); err != nil {
		l.logger.Debug("Failed to send voice", zap.Error(err))
		return
	}
	l.voice.LocalPlayerTalkingAck()
}

// Open initializes voice, opens the transport and starts recording when
// there is somewhere to send to. A disabled voice subsystem is not an
// error; the loop still mixes.
func (l *Loop) Open(ctx context.Context) error {
	v := l.cfg.Voice

	var err error
	if v.SampleRate > 0 {
		err = l.voice.Init(v.Codec, v.SampleRate)
	} else {
		err = l.voice.InitWithDefault(v.Codec)
	}
	if err != nil {
		if !errors.Is(err, voice.ErrDisabled) {
			return err
		}
		l.logger.Info("Voice is disabled")
	}

	if err := l.transport.Open(ctx); err != nil {
		l.voice.Deinit()
		return err
	}

	if l.voice.Initialized() && (l.cfg.Transport.Enabled || v.Loopback) {
		if err := l.voice.RecordStart("", "", ""); err != nil {
			l.logger.Warn("Failed to start recording", zap.Error(err))
		}
	}

	return nil
}

// Start opens the loop and runs it in the background until Stop.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.Open(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan error, 1)
	go func() {
		l.done <- l.Run(runCtx)
	}()

	return nil
}

// Stop ends the loop and waits for it to shut voice down.
func (l *Loop) Stop(ctx context.Context) error {
	if l.cancel == nil {
		return nil
	}
	l.cancel()

	select {
	case err := <-l.done:
		l.cancel = nil
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks every frame and pumps the transport until ctx ends or the
// transport fails. On return recording has been flushed, voice shut down
// and the transport closed.
func (l *Loop) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return l.transport.Receive(ctx)
	})
	g.Go(func() error {
		ticker := time.NewTicker(l.frame)
		defer ticker.Stop()

		last := time.Now()
		for {
			select {
			case <-ctx.Done():
				l.Close()
				return nil
			case now := <-ticker.C:
				l.Tick(ctx, now.Sub(last).Seconds())
				last = now
			}
		}
	})

	return g.Wait()
}

// Close flushes the last captured frame, shuts voice down and closes the
// transport.
func (l *Loop) Close() {
	if l.voice.IsRecording() {
		l.voice.UserDesiresStop()
		l.send(context.Background(), true)
	}
	l.voice.Deinit()

	if err := l.transport.Close(context.Background()); err != nil {
		l.logger.Warn("Failed to close transport", zap.Error(err))
	}
}
