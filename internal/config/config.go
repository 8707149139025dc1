package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/diamondburned/arikawa/v3/discord"
	"gopkg.in/yaml.v3"
)

// DebugConfig toggles voice diagnostics.
type DebugConfig struct {
	// ShowChannels logs live channels every tick at 1 and every mixer pull
	// at 2.
	ShowChannels int  `yaml:"show_channels"`
	ShowIncoming bool `yaml:"show_incoming"`
	Profile      bool `yaml:"profile"`
}

// VoiceConfig stores the voice subsystem settings.
type VoiceConfig struct {
	Enable           bool   `yaml:"enable"`
	Codec            string `yaml:"codec"`
	SampleRate       int    `yaml:"sample_rate"`
	OutputSampleRate int    `yaml:"output_sample_rate"`

	JitterBufferMs float64 `yaml:"jitter_buffer_ms"`
	FadeOutMs      float64 `yaml:"fade_out_ms"`

	MicVolumeScale float64 `yaml:"mic_volume_scale"`
	MaxGain        float64 `yaml:"max_gain"`
	AvgGainTarget  float64 `yaml:"avg_gain_target"`

	// VoiceActivityThreshold gates transmission of near-silent input; 0
	// disables the gate.
	VoiceActivityThreshold float64 `yaml:"voice_activity_threshold"`
	// ActivityGate selects the gate: "threshold" compares peak and
	// peak-to-peak amplitude, "energy" tracks an adaptive RMS noise floor.
	ActivityGate string `yaml:"activity_gate"`

	ForceMicSelect bool   `yaml:"force_mic_select"`
	Loopback       bool   `yaml:"loopback"`
	WriteVoices    bool   `yaml:"write_voices"`
	VoiceDir       string `yaml:"voice_dir"`

	Debug DebugConfig `yaml:"debug"`
}

// AudioConfig stores device settings.
type AudioConfig struct {
	CaptureDevice string `yaml:"capture_device"`
	// Playback selects the output sink: "device" (miniaudio), "oto" or
	// "none".
	Playback       string `yaml:"playback"`
	PlaybackDevice string `yaml:"playback_device"`
	FrameMs        int    `yaml:"frame_ms"`
}

// TransportConfig stores Discord voice transport settings.
type TransportConfig struct {
	Enabled         bool              `yaml:"enabled"`
	BotToken        string            `yaml:"bot_token"`
	ChannelID       discord.ChannelID `yaml:"channel_id"`
	DedupeCacheSize int               `yaml:"dedupe_cache_size"`
}

// MetricsConfig stores the Prometheus endpoint settings.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Config stores the application configuration.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Voice     VoiceConfig     `yaml:"voice"`
	Audio     AudioConfig     `yaml:"audio"`
	Transport TransportConfig `yaml:"transport"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// Default returns the configuration used for keys missing from the file.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Voice: VoiceConfig{
			Enable:                 true,
			Codec:                  "vaudio_opus",
			OutputSampleRate:       48_000,
			JitterBufferMs:         100,
			FadeOutMs:              100,
			MicVolumeScale:         1,
			MaxGain:                10,
			AvgGainTarget:          0.5,
			VoiceActivityThreshold: 2000,
			ActivityGate:           GateThreshold,
			ForceMicSelect:         true,
			VoiceDir:               "voice",
		},
		Audio: AudioConfig{
			Playback: PlaybackDevice,
			FrameMs:  20,
		},
		Transport: TransportConfig{
			DedupeCacheSize: 256,
		},
	}
}

// Activity gate kinds.
const (
	GateThreshold = "threshold"
	GateEnergy    = "energy"
)

// Playback sinks.
const (
	PlaybackDevice = "device"
	PlaybackOto    = "oto"
	PlaybackNone   = "none"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Validate checks values the voice pipeline cannot run with.
func (c *Config) Validate() error {
	var errs []error

	v := c.Voice
	if v.SampleRate < 0 {
		errs = append(errs, fmt.Errorf("voice.sample_rate must not be negative, got %d", v.SampleRate))
	}
	if v.OutputSampleRate <= 0 || v.OutputSampleRate > 48_000 {
		errs = append(errs, fmt.Errorf("voice.output_sample_rate must be in (0, 48000], got %d", v.OutputSampleRate))
	}
	if v.SampleRate > v.OutputSampleRate {
		errs = append(errs, fmt.Errorf("voice.sample_rate %d exceeds voice.output_sample_rate %d", v.SampleRate, v.OutputSampleRate))
	}
	if v.FadeOutMs < 0 {
		errs = append(errs, fmt.Errorf("voice.fade_out_ms must not be negative, got %g", v.FadeOutMs))
	}
	if v.MaxGain <= 0 {
		errs = append(errs, fmt.Errorf("voice.max_gain must be positive, got %g", v.MaxGain))
	}
	if v.AvgGainTarget < 0 || v.AvgGainTarget > 1 {
		errs = append(errs, fmt.Errorf("voice.avg_gain_target must be in [0, 1], got %g", v.AvgGainTarget))
	}
	if v.ActivityGate != GateThreshold && v.ActivityGate != GateEnergy {
		errs = append(errs, fmt.Errorf("voice.activity_gate must be %q or %q, got %q", GateThreshold, GateEnergy, v.ActivityGate))
	}
	switch c.Audio.Playback {
	case PlaybackDevice, PlaybackOto, PlaybackNone:
	default:
		errs = append(errs, fmt.Errorf("audio.playback must be %q, %q or %q, got %q", PlaybackDevice, PlaybackOto, PlaybackNone, c.Audio.Playback))
	}
	if c.Audio.FrameMs <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_ms must be positive, got %d", c.Audio.FrameMs))
	}
	if c.Transport.Enabled {
		if c.Transport.BotToken == "" {
			errs = append(errs, errors.New("transport.bot_token is required when the transport is enabled"))
		}
		if !c.Transport.ChannelID.IsValid() {
			errs = append(errs, errors.New("transport.channel_id is required when the transport is enabled"))
		}
	}
	if c.Transport.DedupeCacheSize <= 0 {
		errs = append(errs, fmt.Errorf("transport.dedupe_cache_size must be positive, got %d", c.Transport.DedupeCacheSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}

	return nil
}

// Parse decodes YAML over the defaults, applies environment overrides and
// validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.applyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the given file path.
func LoadConfig(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	return Parse(data)
}
