package infrastructure_test

import (
	"errors"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Raikerian/go-voicecomm/pkg/infrastructure"
)

func TestFxLoggerLevels(t *testing.T) {
	boom := errors.New("boom")

	tests := map[string]struct {
		event fxevent.Event
		level zapcore.Level
		msg   string
	}{
		"hook executing": {
			event: &fxevent.OnStartExecuting{FunctionName: "voice.Start", CallerName: "main"},
			level: zapcore.DebugLevel,
			msg:   "OnStart hook executing",
		},
		"hook failed": {
			event: &fxevent.OnStopExecuted{FunctionName: "voice.Stop", Err: boom},
			level: zapcore.ErrorLevel,
			msg:   "OnStop hook failed",
		},
		"provided": {
			event: &fxevent.Provided{ConstructorName: "mixer.New", OutputTypeNames: []string{"*mixer.Engine"}},
			level: zapcore.DebugLevel,
			msg:   "Provided",
		},
		"provide failed": {
			event: &fxevent.Provided{ConstructorName: "mixer.New", Err: boom},
			level: zapcore.ErrorLevel,
			msg:   "Provided failed",
		},
		"invoked": {
			event: &fxevent.Invoked{FunctionName: "engine.Register"},
			level: zapcore.DebugLevel,
			msg:   "Invoked",
		},
		"stopping": {
			event: &fxevent.Stopping{Signal: syscall.SIGTERM},
			level: zapcore.InfoLevel,
			msg:   "Received signal",
		},
		"started": {
			event: &fxevent.Started{},
			level: zapcore.InfoLevel,
			msg:   "Started",
		},
		"start failed": {
			event: &fxevent.Started{Err: boom},
			level: zapcore.ErrorLevel,
			msg:   "Started with error",
		},
		"rolling back": {
			event: &fxevent.RollingBack{StartErr: boom},
			level: zapcore.ErrorLevel,
			msg:   "Start failed, rolling back",
		},
		"logger initialized": {
			event: &fxevent.LoggerInitialized{ConstructorName: "NewFxLoggerAdapter"},
			level: zapcore.DebugLevel,
			msg:   "Logger initialized",
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			core, logs := observer.New(zapcore.DebugLevel)
			infrastructure.NewFxLoggerAdapter(zap.New(core)).LogEvent(tt.event)

			entries := logs.All()
			require.Len(t, entries, 1)
			assert.Equal(t, tt.level, entries[0].Level)
			assert.Equal(t, tt.msg, entries[0].Message)
			assert.Equal(t, "fx", entries[0].LoggerName)
		})
	}
}

func TestFxLoggerModuleField(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := infrastructure.NewFxLoggerAdapter(zap.New(core))

	l.LogEvent(&fxevent.Invoking{FunctionName: "f", ModuleName: "voice"})
	l.LogEvent(&fxevent.Invoking{FunctionName: "g"})

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "voice", entries[0].ContextMap()["module"])
	assert.NotContains(t, entries[1].ContextMap(), "module")
}

func TestFxPrinter(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	infrastructure.NewFxPrinter(zap.New(core)).Printf("listening on %s", ":9090")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "listening on :9090", logs.All()[0].Message)
}

func TestFxIntegration(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	app := fx.New(
		fx.WithLogger(infrastructure.NewFxLoggerAdapter),
		fx.Supply(logger),
		fx.Invoke(func(*zap.Logger) {}),
	)
	require.NoError(t, app.Err())
	assert.NotZero(t, logs.FilterMessage("Invoked").Len())
}
