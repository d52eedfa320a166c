package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global logger instance. A no-op logger until InitLogger runs, so packages
// can log from tests without setup.
var Log = zap.NewNop()

// Sets up the global Zap logger with the given log level.
func InitLogger(logLevel string) error {
	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(ParseLevel(logLevel)),
		Development:      false,
		Encoding:         "json",
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:    "message",
			LevelKey:      "level",
			TimeKey:       "time",
			NameKey:       "logger",
			CallerKey:     "caller",
			StacktraceKey: "stacktrace",
			LineEnding:    zapcore.DefaultLineEnding,
			EncodeLevel:   zapcore.LowercaseLevelEncoder,
			EncodeTime:    zapcore.ISO8601TimeEncoder,
			EncodeCaller:  zapcore.ShortCallerEncoder,
		},
	}

	log, err := config.Build()
	if err != nil {
		return err
	}

	Log = log.Named("dupebot")
	return nil
}

// Converts a level name to a zapcore.Level, falling back to info.
func ParseLevel(logLevel string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(logLevel)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// Flushes buffered entries. Errors from syncing stdout are not interesting.
func Sync() {
	_ = Log.Sync()
}
