package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	Log   = newConsole(level)
)

func newConsole(level zap.AtomicLevel) *zap.Logger {
	encCfg := zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stack",
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeTime:    zapcore.ISO8601TimeEncoder,
		EncodeLevel:   zapcore.CapitalColorLevelEncoder,
		EncodeCaller:  zapcore.ShortCallerEncoder,
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encCfg),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
}

// SetLevel changes the level of the global logger ("debug", "info", "warn", "error").
// Unknown levels fall back to info. Safe to call while other goroutines log.
func SetLevel(name string) {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		l = zapcore.InfoLevel
	}
	level.SetLevel(l)
}

// Level returns the current level.
func Level() zapcore.Level { return level.Level() }

func Sync() { _ = Log.Sync() }

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

func Infof(format string, args ...interface{}) {
	Log.Info(fmt.Sprintf(format, args...))
}

func Warnf(format string, args ...interface{}) {
	Log.Warn(fmt.Sprintf(format, args...))
}

func Errorf(format string, args ...interface{}) {
	Log.Error(fmt.Sprintf(format, args...))
}

func Debugf(format string, args ...interface{}) {
	Log.Debug(fmt.Sprintf(format, args...))
}

// Fatalf logs and exits. Only cmd/ should call it.
func Fatalf(format string, args ...interface{}) {
	Log.Fatal(fmt.Sprintf(format, args...))
}
