// Package infrastructure routes fx's own events into zap.
package infrastructure

import (
	"fmt"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLogger logs fx lifecycle events with structured fields. Wiring events
// go to debug; failures go to error.
type FxLogger struct {
	logger *zap.Logger
}

var (
	_ fxevent.Logger = (*FxLogger)(nil)
	_ fx.Printer     = (*FxLogger)(nil)
)

// NewFxLoggerAdapter returns an fxevent.Logger for fx.WithLogger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLogger{logger: logger.Named("fx").WithOptions(zap.AddCallerSkip(1))}
}

// NewFxPrinter returns an fx.Printer backed by logger.
func NewFxPrinter(logger *zap.Logger) fx.Printer {
	return &FxLogger{logger: logger.Named("fx")}
}

func (l *FxLogger) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		l.logger.Debug("OnStart hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStartExecuted:
		l.hookDone("OnStart", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		l.logger.Debug("OnStop hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStopExecuted:
		l.hookDone("OnStop", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		l.wired("Supplied", e.Err, zap.String("type", e.TypeName), moduleField(e.ModuleName))
	case *fxevent.Provided:
		l.wired("Provided", e.Err,
			zap.String("constructor", e.ConstructorName),
			zap.String("types", strings.Join(e.OutputTypeNames, ", ")),
			moduleField(e.ModuleName))
	case *fxevent.Decorated:
		l.wired("Decorated", e.Err,
			zap.String("decorator", e.DecoratorName),
			moduleField(e.ModuleName))
	case *fxevent.Invoking:
		l.logger.Debug("Invoking", zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Invoked:
		l.wired("Invoked", e.Err, zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Stopping:
		l.logger.Info("Received signal", zap.String("signal", strings.ToUpper(e.Signal.String())))
	case *fxevent.Stopped:
		l.result("Stopped", e.Err)
	case *fxevent.RollingBack:
		l.logger.Error("Start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		l.result("Rolled back", e.Err)
	case *fxevent.Started:
		l.result("Started", e.Err)
	case *fxevent.LoggerInitialized:
		l.wired("Logger initialized", e.Err, zap.String("constructor", e.ConstructorName))
	default:
		l.logger.Debug("Unhandled fx event", zap.String("event", fmt.Sprintf("%T", event)))
	}
}

// Printf logs fx's printed messages at info.
func (l *FxLogger) Printf(format string, args ...any) {
	l.logger.Sugar().Infof(format, args...)
}

func (l *FxLogger) hookDone(hook, callee, caller, runtime string, err error) {
	fields := []zap.Field{zap.String("callee", callee), zap.String("caller", caller)}
	if err != nil {
		l.logger.Error(hook+" hook failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(hook+" hook executed", append(fields, zap.String("runtime", runtime))...)
}

func (l *FxLogger) wired(msg string, err error, fields ...zap.Field) {
	if err != nil {
		l.logger.Error(msg+" failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug(msg, fields...)
}

func (l *FxLogger) result(msg string, err error) {
	if err != nil {
		l.logger.Error(msg+" with error", zap.Error(err))
		return
	}
	l.logger.Info(msg)
}

func moduleField(name string) zap.Field {
	if name == "" {
		return zap.Skip()
	}

	return zap.String("module", name)
}
