// Package app provides the main application structure and lifecycle management.
package app

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Raikerian/go-voicecomm/internal/config"
)

// Application represents the main application with its lifecycle.
type Application struct {
	app *fx.App
}

// New creates a new Application with the provided modules and options.
func New(modules ...fx.Option) *Application {
	options := append(modules, fx.Invoke(registerLifecycleHooks))

	return &Application{
		app: fx.New(options...),
	}
}

// Err reports a wiring error from construction.
func (a *Application) Err() error {
	return a.app.Err()
}

// Start runs every OnStart hook.
func (a *Application) Start(ctx context.Context) error {
	return a.app.Start(ctx)
}

// Run starts the application and blocks until it's stopped.
func (a *Application) Run() {
	a.app.Run()
}

// Stop gracefully stops the application.
func (a *Application) Stop(ctx context.Context) error {
	return a.app.Stop(ctx)
}

// registerLifecycleHooks logs the application start and stop.
func registerLifecycleHooks(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("Starting voice engine",
				zap.String("codec", cfg.Voice.Codec),
				zap.Int("sample_rate", cfg.Voice.SampleRate),
				zap.Bool("transport", cfg.Transport.Enabled),
				zap.Bool("loopback", cfg.Voice.Loopback))

			return nil
		},
		OnStop: func(context.Context) error {
			logger.Info("Voice engine stopped")

			return nil
		},
	})
}
