package capture

import (
	"fmt"
	"strings"

	"github.com/gen2brain/malgo"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/pkg/audio"
)

// bufferSeconds sizes the capture queue between the device callback and the
// voice loop.
const bufferSeconds = 2

// Device captures from a miniaudio input device.
type Device struct {
	*Buffer

	logger *zap.Logger
	rate   int
	name   string

	ctx *malgo.AllocatedContext
	dev *malgo.Device
	id  *malgo.DeviceID
}

var (
	_ Source        = (*Device)(nil)
	_ MixerControls = (*Device)(nil)
)

// NewDevice opens the audio context. name selects the input by substring
// match; empty means the system default.
func NewDevice(logger *zap.Logger, rate int, name string) (*Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize audio context: %w", err)
	}

	return &Device{
		Buffer: NewBuffer(rate * bufferSeconds),
		logger: logger,
		rate:   rate,
		name:   name,
		ctx:    ctx,
	}, nil
}

// NewDeviceFactory returns a Factory opening malgo devices.
func NewDeviceFactory(logger *zap.Logger, name string) Factory {
	return func(rate int) (Source, error) {
		return NewDevice(logger, rate, name)
	}
}

// SelectMicrophone resolves the configured device name. Without a name the
// system default is used.
func (d *Device) SelectMicrophone() error {
	if d.name == "" {
		d.id = nil
		return nil
	}

	infos, err := d.ctx.Devices(malgo.Capture)
	if err != nil {
		return fmt.Errorf("failed to list capture devices: %w", err)
	}

	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}

	i := MatchDevice(names, d.name)
	if i < 0 {
		return fmt.Errorf("%w: %q", ErrNoDevice, d.name)
	}

	id := infos[i].ID
	d.id = &id
	d.logger.Info("Selected capture device", zap.String("device", names[i]))

	return nil
}

// MatchDevice returns the index of the first name containing want,
// ignoring case, or -1.
func MatchDevice(names []string, want string) int {
	want = strings.ToLower(want)
	for i, n := range names {
		if strings.Contains(strings.ToLower(n), want) {
			return i
		}
	}

	return -1
}

func (d *Device) Start() bool {
	if d.dev != nil {
		return true
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = 1
	cfg.SampleRate = uint32(d.rate)
	cfg.PeriodSizeInMilliseconds = audio.OpusFrameDuration
	if d.id != nil {
		cfg.Capture.DeviceID = d.id.Pointer()
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, _ uint32) {
			d.Push(in)
		},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, callbacks)
	if err != nil {
		d.logger.Error("Failed to initialize capture device", zap.Error(err))
		return false
	}

	d.Reset()
	if err := dev.Start(); err != nil {
		dev.Uninit()
		d.logger.Error("Failed to start capture device", zap.Error(err))
		return false
	}

	d.dev = dev
	d.logger.Debug("Capture started", zap.Int("sample_rate", d.rate))

	return true
}

func (d *Device) Stop() {
	if d.dev == nil {
		return
	}
	if err := d.dev.Stop(); err != nil {
		d.logger.Warn("Failed to stop capture device", zap.Error(err))
	}
	d.dev.Uninit()
	d.dev = nil
}

// Poll is a no-op: miniaudio pushes samples from its own thread.
func (d *Device) Poll() {}

func (d *Device) RecordedData(dst []int16) int {
	return d.Drain(dst)
}

func (d *Device) Release() {
	d.Stop()
	if d.ctx == nil {
		return
	}
	if err := d.ctx.Uninit(); err != nil {
		d.logger.Warn("Failed to release audio context", zap.Error(err))
	}
	d.ctx.Free()
	d.ctx = nil
}
