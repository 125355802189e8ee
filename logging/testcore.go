package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

// zaptest is a minimal zapcore.Core that routes entries to testing.T.Log,
// so test failures print logger output inline with `go test -v` instead of
// requiring a separate log file.
type zaptest struct {
	t *testing.T
}

func (z zaptest) Enabled(zapcore.Level) bool { return true }

func (z zaptest) With(fields []zapcore.Field) zapcore.Core {
	return z
}

func (z zaptest) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return ce.AddCore(entry, z)
}

func (z zaptest) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "",
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	buf, err := enc.EncodeEntry(entry, fields)
	if err != nil {
		return err
	}
	z.t.Log(buf.String())
	return nil
}

func (z zaptest) Sync() error { return nil }
