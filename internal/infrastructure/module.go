// Package infrastructure provides the application logger.
package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"syscall"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Raikerian/go-voicecomm/internal/config"
	pkginfra "github.com/Raikerian/go-voicecomm/pkg/infrastructure"
)

// LoggerModule provides the zap logger built from the config.
var LoggerModule = fx.Module("logger",
	fx.Provide(NewZapLogger),
)

// NewZapLoggerParams holds dependencies for NewZapLogger.
type NewZapLoggerParams struct {
	fx.In
	Cfg *config.Config
	LC  fx.Lifecycle
}

// LoggerConfig returns the zap config for a log level name. "debug" selects
// the development encoder; any other level uses the production JSON
// encoder, and unknown names fall back to info.
func LoggerConfig(level string) zap.Config {
	if level == "debug" {
		return zap.NewDevelopmentConfig()
	}

	cfg := zap.NewProductionConfig()
	lvl, err := zapcore.ParseLevel(level)
	if err != nil || lvl < zapcore.InfoLevel {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	return cfg
}

// NewZapLogger builds the logger and syncs it on shutdown.
func NewZapLogger(params NewZapLoggerParams) (*zap.Logger, error) {
	logger, err := LoggerConfig(params.Cfg.LogLevel).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to create zap logger: %w", err)
	}

	params.LC.Append(fx.Hook{
		OnStop: func(context.Context) error {
			// Syncing a terminal stderr fails with ENOTTY or EINVAL.
			if err := logger.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) {
				return err
			}

			return nil
		},
	})

	return logger, nil
}

// NewFxLoggerAdapter routes fx events into the application logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return pkginfra.NewFxLoggerAdapter(logger)
}
