// Package observe provides OpenTelemetry instruments for the voice pipeline
// and a Prometheus bridge so they can be scraped from /metrics.
package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/Raikerian/go-voicecomm"

// Stage identifies a timed step of the voice pipeline.
type Stage int

const (
	StageCompress Stage = iota
	StageDecompress
	StageGain
	StageUpsample
)

func (s Stage) String() string {
	switch s {
	case StageCompress:
		return "compress"
	case StageDecompress:
		return "decompress"
	case StageGain:
		return "gain"
	case StageUpsample:
		return "upsample"
	default:
		return "unknown"
	}
}

// Metrics holds the voice instruments. The OTel types handle their own
// synchronisation.
type Metrics struct {
	CompressDuration   metric.Float64Histogram
	DecompressDuration metric.Float64Histogram
	GainDuration       metric.Float64Histogram
	UpsampleDuration   metric.Float64Histogram

	// IncomingPackets counts packets handed to a receive channel.
	IncomingPackets metric.Int64Counter
	// DecodeFailures counts packets that decoded to zero samples.
	DecodeFailures metric.Int64Counter
	// DroppedBytes counts decoded bytes lost to a full channel buffer.
	DroppedBytes metric.Int64Counter
	// StarvedChannels counts channels ended because they ran dry.
	StarvedChannels metric.Int64Counter

	// ActiveChannels tracks receive channels currently assigned.
	ActiveChannels metric.Int64UpDownCounter
	// Overdrive tracks whether the mixer is ducking other sounds (0 or 1).
	Overdrive metric.Int64UpDownCounter
}

// stageBuckets are histogram bounds in seconds; per-packet work is in the
// microsecond range.
var stageBuckets = []float64{
	0.000005, 0.00001, 0.000025, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
}

// NewMetrics creates all instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&met.CompressDuration, "voice.compress.duration", "Time spent encoding captured voice."},
		{&met.DecompressDuration, "voice.decompress.duration", "Time spent decoding received voice."},
		{&met.GainDuration, "voice.gain.duration", "Time spent in automatic gain control."},
		{&met.UpsampleDuration, "voice.upsample.duration", "Time spent resampling to the mixer rate."},
	}
	for _, h := range histograms {
		if *h.dst, err = m.Float64Histogram(h.name,
			metric.WithDescription(h.desc),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(stageBuckets...),
		); err != nil {
			return nil, err
		}
	}

	if met.IncomingPackets, err = m.Int64Counter("voice.packets.incoming",
		metric.WithDescription("Voice packets added to receive channels."),
	); err != nil {
		return nil, err
	}
	if met.DecodeFailures, err = m.Int64Counter("voice.decode.failures",
		metric.WithDescription("Voice packets that could not be decoded."),
	); err != nil {
		return nil, err
	}
	if met.DroppedBytes, err = m.Int64Counter("voice.buffer.dropped_bytes",
		metric.WithDescription("Decoded bytes dropped because a channel buffer was full."),
		metric.WithUnit("By"),
	); err != nil {
		return nil, err
	}
	if met.StarvedChannels, err = m.Int64Counter("voice.channels.starved",
		metric.WithDescription("Receive channels ended after running out of data."),
	); err != nil {
		return nil, err
	}

	if met.ActiveChannels, err = m.Int64UpDownCounter("voice.channels.active",
		metric.WithDescription("Receive channels currently assigned to a speaker."),
	); err != nil {
		return nil, err
	}
	if met.Overdrive, err = m.Int64UpDownCounter("voice.mixer.overdrive",
		metric.WithDescription("Whether voice overdrive is engaged."),
	); err != nil {
		return nil, err
	}

	return met, nil
}

// NewNopMetrics returns instruments that record nothing.
func NewNopMetrics() *Metrics {
	m, err := NewMetrics(noop.NewMeterProvider())
	if err != nil {
		panic("observe: noop metrics: " + err.Error())
	}

	return m
}

// ObserveStage records the duration of one pipeline stage.
func (m *Metrics) ObserveStage(ctx context.Context, s Stage, d time.Duration) {
	var h metric.Float64Histogram
	switch s {
	case StageCompress:
		h = m.CompressDuration
	case StageDecompress:
		h = m.DecompressDuration
	case StageGain:
		h = m.GainDuration
	case StageUpsample:
		h = m.UpsampleDuration
	default:
		return
	}
	h.Record(ctx, d.Seconds())
}

// RecordIncoming counts a received packet for channel ch.
func (m *Metrics) RecordIncoming(ctx context.Context, ch int, decoded, dropped int) {
	attrs := metric.WithAttributes(attribute.Int("channel", ch))
	m.IncomingPackets.Add(ctx, 1, attrs)
	if decoded == 0 {
		m.DecodeFailures.Add(ctx, 1, attrs)
	}
	if dropped > 0 {
		m.DroppedBytes.Add(ctx, int64(dropped), attrs)
	}
}
