// Package logger
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"trafficstats/internal/config"
)

type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	Sync() error
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func New(cfg *config.Config) Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if strings.EqualFold(cfg.LogFormat, "json") {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(ParseLevel(cfg.LogLevel)))

	return &zapLogger{sugar: zap.New(core).Sugar()}
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &zapLogger{sugar: zap.NewNop().Sugar()}
}

// FromZap wraps an existing zap logger, e.g. one built with zaptest/observer.
func FromZap(l *zap.Logger) Logger {
	return &zapLogger{sugar: l.Sugar()}
}

func ParseLevel(raw string) zapcore.Level {
	switch strings.ToLower(raw) {
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

func (l *zapLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }
func (l *zapLogger) Info(msg string, args ...any)  { l.sugar.Infow(msg, args...) }
func (l *zapLogger) Warn(msg string, args ...any)  { l.sugar.Warnw(msg, args...) }
func (l *zapLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

func (l *zapLogger) With(args ...any) Logger {
	return &zapLogger{sugar: l.sugar.With(args...)}
}

func (l *zapLogger) Sync() error {
	return l.sugar.Sync()
}
