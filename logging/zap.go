package logging

import "go.uber.org/zap"

// ZapAdapter wraps *zap.SugaredLogger to implement the Logger interface.
// The slog-style variadic key/value args map directly onto zap's *w methods.
type ZapAdapter struct {
	sugar *zap.SugaredLogger
}

// NewZapAdapter creates a Logger from an existing *zap.Logger.
func NewZapAdapter(logger *zap.Logger) Logger {
	return &ZapAdapter{sugar: logger.Sugar()}
}

// NewProductionZapLogger builds a production zap logger (JSON output,
// info level) wrapped as a Logger. The returned sync func should be
// deferred by the caller to flush buffered entries on shutdown.
func NewProductionZapLogger() (Logger, func(), error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, nil, err
	}
	return NewZapAdapter(logger), func() { _ = logger.Sync() }, nil
}

// NewDevelopmentZapLogger builds a development zap logger (console output,
// debug level) wrapped as a Logger.
func NewDevelopmentZapLogger() (Logger, func(), error) {
	logger, err := zap.NewDevelopment()
	if err != nil {
		return nil, nil, err
	}
	return NewZapAdapter(logger), func() { _ = logger.Sync() }, nil
}

// Debug logs a debug message.
func (z *ZapAdapter) Debug(msg string, args ...any) { z.sugar.Debugw(msg, args...) }

// Info logs an informational message.
func (z *ZapAdapter) Info(msg string, args ...any) { z.sugar.Infow(msg, args...) }

// Warn logs a warning message.
func (z *ZapAdapter) Warn(msg string, args ...any) { z.sugar.Warnw(msg, args...) }

// Error logs an error message.
func (z *ZapAdapter) Error(msg string, args ...any) { z.sugar.Errorw(msg, args...) }
