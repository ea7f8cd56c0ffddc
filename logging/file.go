package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const fileTimeLayout = "2006-01-02T15:04:05.000Z07:00"

func fileEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout(fileTimeLayout),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeName:     zapcore.FullNameEncoder,
	}
}

func newFileEncoder(format string) zapcore.Encoder {
	if format == "json" {
		return zapcore.NewJSONEncoder(fileEncoderConfig())
	}
	return zapcore.NewConsoleEncoder(fileEncoderConfig())
}

// newFileCore opens the rotating log file. The returned closer releases
// the file handle.
func newFileCore(cfg Config) (zapcore.Core, io.Closer, error) {
	if dir := filepath.Dir(cfg.LogFile); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("logging: create log directory: %w", err)
		}
	}
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
	}
	core := zapcore.NewCore(newFileEncoder(cfg.Format), zapcore.AddSync(rotator), zapcore.DebugLevel)
	return core, rotator, nil
}

func zapFields(r Record) []zap.Field {
	fields := make([]zap.Field, 0, len(r.Fields)+1)
	fields = append(fields, zap.String("severity", r.Level.String()))
	for _, k := range sortedKeys(r.Fields) {
		fields = append(fields, zap.Any(k, redact(k, r.Fields[k])))
	}
	return fields
}
