// Package logging provides the structured logger used throughout the
// firmware. It wraps go.uber.org/zap behind the small, key-value oriented
// surface that go.viam.com/rdk/logging exposes (Debugw/Infow/Warnw/Errorw),
// so the rest of the module never imports zap directly.
package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the structured, leveled logger passed to every component that
// needs to report diagnostics. The real-time control tick only ever logs
// at Debug level so a production build (Info level or above) pays no
// formatting cost on the hot path.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	Named(name string) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewLogger returns a production logger named after the given component.
func NewLogger(name string) Logger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	z, err := cfg.Build()
	if err != nil {
		// Fall back to a no-op core rather than panicking; logging must
		// never take down the control task.
		z = zap.NewNop()
	}
	return &zapLogger{sugar: z.Sugar().Named(name)}
}

// NewTestLogger returns a logger that writes through testing.T, so log
// output shows up inline with `go test -v` instead of requiring a
// separate log file.
func NewTestLogger(t *testing.T) Logger {
	t.Helper()
	core := zaptest{t: t}
	z := zap.New(core)
	return &zapLogger{sugar: z.Sugar()}
}

func (l *zapLogger) Debugw(msg string, kv ...interface{}) { l.sugar.Debugw(msg, kv...) }
func (l *zapLogger) Infow(msg string, kv ...interface{})  { l.sugar.Infow(msg, kv...) }
func (l *zapLogger) Warnw(msg string, kv ...interface{})  { l.sugar.Warnw(msg, kv...) }
func (l *zapLogger) Errorw(msg string, kv ...interface{}) { l.sugar.Errorw(msg, kv...) }

func (l *zapLogger) Named(name string) Logger {
	return &zapLogger{sugar: l.sugar.Named(name)}
}
