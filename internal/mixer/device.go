package mixer

import (
	"fmt"
	"io"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/voice/capture"
	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// Device plays through a miniaudio output device, mono s16 at the mixer
// rate.
type Device struct {
	logger *zap.Logger
	rate   int
	name   string

	ctx *malgo.AllocatedContext
	dev *malgo.Device
}

var _ Sink = (*Device)(nil)

// NewDevice returns an unopened playback device. name selects the output
// by substring match; empty means the system default.
func NewDevice(logger *zap.Logger, rate int, name string) *Device {
	return &Device{logger: logger, rate: rate, name: name}
}

func (d *Device) Start(src io.Reader) error {
	if d.dev != nil {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize audio context: %w", err)
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = 1
	cfg.SampleRate = uint32(d.rate)
	cfg.PeriodSizeInMilliseconds = audio.OpusFrameDuration

	if d.name != "" {
		id, err := d.lookup(ctx)
		if err != nil {
			d.release(ctx)
			return err
		}
		cfg.Playback.DeviceID = id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, _ uint32) {
			_, _ = src.Read(out)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, cfg, callbacks)
	if err != nil {
		d.release(ctx)
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		d.release(ctx)
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	d.ctx = ctx
	d.dev = dev
	d.logger.Info("Playback started", zap.Int("sample_rate", d.rate))

	return nil
}

func (d *Device) lookup(ctx *malgo.AllocatedContext) (malgo.DeviceID, error) {
	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return malgo.DeviceID{}, fmt.Errorf("failed to list playback devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}

	i := capture.MatchDevice(names, d.name)
	if i < 0 {
		return malgo.DeviceID{}, fmt.Errorf("no playback device matching %q", d.name)
	}
	d.logger.Info("Selected playback device", zap.String("device", names[i]))

	return infos[i].ID, nil
}

func (d *Device) release(ctx *malgo.AllocatedContext) {
	if err := ctx.Uninit(); err != nil {
		d.logger.Warn("Failed to release audio context", zap.Error(err))
	}
	ctx.Free()
}

func (d *Device) Close() error {
	if d.dev == nil {
		return nil
	}

	if err := d.dev.Stop(); err != nil {
		d.logger.Warn("Failed to stop playback device", zap.Error(err))
	}
	d.dev.Uninit()
	d.dev = nil

	d.release(d.ctx)
	d.ctx = nil

	return nil
}
