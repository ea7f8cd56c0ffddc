package logging

import (
	"io"

	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// NewObserved returns a logger whose entries are captured in memory, for
// tests. Console output is discarded; every record is observed regardless of
// the zap level it maps to.
func NewObserved(level Level) (*StructuredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	cfg := DefaultConfig()
	cfg.Level = level
	cfg.NoColor = true
	l, err := New(cfg, WithConsole(io.Discard), WithCore(core))
	if err != nil {
		panic(err)
	}
	return l, logs
}
