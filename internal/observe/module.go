package observe

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
)

var Module = fx.Module("observe",
	fx.Provide(
		NewMeterProvider,
		NewMetrics,
	),
	fx.Invoke(RegisterServer),
)

// NewMeterProvider builds the global Prometheus-backed provider and shuts it
// down with the application.
func NewMeterProvider(lc fx.Lifecycle) (metric.MeterProvider, error) {
	mp, err := InitProvider()
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: mp.Shutdown,
	})

	return mp, nil
}

// RegisterServer starts the /metrics server when an address is configured.
func RegisterServer(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) {
	if cfg.Metrics.Listen == "" {
		return
	}

	srv := NewServer(logger, cfg.Metrics.Listen)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			return srv.Start()
		},
		OnStop: srv.Stop,
	})
}
