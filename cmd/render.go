package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
	"github.com/Raikerian/go-voicecomm/internal/engine"
	"github.com/Raikerian/go-voicecomm/internal/infrastructure"
	"github.com/Raikerian/go-voicecomm/internal/mixer"
	"github.com/Raikerian/go-voicecomm/internal/transport"
	"github.com/Raikerian/go-voicecomm/internal/voice"
	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// renderTail keeps mixing after the input ends so buffered voice drains.
const renderTail = time.Second

type renderOptions struct {
	in    string
	out   string
	codec string
}

func newRenderCmd() *cobra.Command {
	var opts renderOptions

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Encode a WAV file, loop it back and write the mixed playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile)
			if err != nil {
				return err
			}

			logger, err := infrastructure.LoggerConfig(cfg.LogLevel).Build()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			n, err := render(cmd.Context(), logger, cfg, opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d samples to %s\n", n, opts.out)

			return nil
		},
	}

	cmd.Flags().StringVar(&opts.in, "in", "", "mono or stereo 16-bit WAV used as the microphone")
	cmd.Flags().StringVar(&opts.out, "out", "render.wav", "WAV file for the mixed output")
	cmd.Flags().StringVar(&opts.codec, "codec", "", "codec override, e.g. vaudio_opus")
	_ = cmd.MarkFlagRequired("in")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}

	return config.LoadConfig(path)
}

// render runs the engine loop on a virtual clock, one frame per tick, with
// the microphone replaced by opts.in and the transport echoing every send.
// It returns the number of output samples written.
func render(ctx context.Context, logger *zap.Logger, cfg *config.Config, opts renderOptions) (int, error) {
	pcm, format, err := audio.ReadWAVFile(opts.in)
	if err != nil {
		return 0, err
	}
	if format.Channels < 1 || format.Channels > 2 || format.BitsPerSample != 16 {
		return 0, fmt.Errorf("%s: need mono or stereo 16-bit PCM, got %d channels at %d bits", opts.in, format.Channels, format.BitsPerSample)
	}

	if opts.codec != "" {
		cfg.Voice.Codec = opts.codec
	}
	cfg.Voice.Loopback = true
	cfg.Voice.ForceMicSelect = false
	cfg.Transport.Enabled = false
	cfg.Audio.Playback = config.PlaybackNone

	now := time.Unix(0, 0)
	mix := mixer.New(logger.Named("mixer"), cfg.Voice.OutputSampleRate, mixer.NullSink{}, nil)
	sub := voice.New(cfg.Voice, logger.Named("voice"), mix,
		voice.WithCaptureFactory(capture.NullFactory()),
		voice.WithClock(func() time.Time { return now }),
	)

	filter, err := transport.NewSequenceFilter(cfg.Transport.DedupeCacheSize)
	if err != nil {
		return 0, err
	}
	tr := transport.NewLoopback(logger.Named("transport"), filter, true, transport.DefaultQueueSize)

	loop := engine.New(logger.Named("engine"), cfg, sub, mix, tr)
	if err := loop.Open(ctx); err != nil {
		return 0, err
	}
	defer loop.Close()

	if !sub.Initialized() {
		return 0, errors.New("voice is disabled in the config")
	}
	if format.SampleRate != sub.SamplesPerSec() {
		return 0, fmt.Errorf("%s: codec %s runs at %d Hz, input is %d Hz", opts.in, cfg.Voice.Codec, sub.SamplesPerSec(), format.SampleRate)
	}
	if err := sub.RecordStart("", "", opts.in); err != nil {
		return 0, err
	}

	frame := time.Duration(cfg.Audio.FrameMs) * time.Millisecond
	frames := len(pcm) / audio.BytesPerSample / format.Channels
	length := time.Duration(frames) * time.Second / time.Duration(format.SampleRate)
	ticks := int((length + renderTail) / frame)

	var out []int16
	buf := make([]int16, audio.FrameSamples(cfg.Voice.OutputSampleRate, cfg.Audio.FrameMs)*2)
	for range ticks {
		now = now.Add(frame)
		loop.Tick(ctx, frame.Seconds())

		for mix.Output().Buffered() > 0 {
			n := mix.Output().ReadSamples(buf)
			out = append(out, buf[:n]...)
		}
	}

	if err := audio.WriteWAVFile(opts.out, audio.PCMInt16ToLE(out), audio.MonoFormat(cfg.Voice.OutputSampleRate)); err != nil {
		return 0, err
	}

	return len(out), nil
}
