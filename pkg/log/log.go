// Package log wires a package-level structured logger for the daemon,
// tee-ing a console encoder to stderr with an optional rotated file
// sink, in the same shape the rest of the engine logs through.
package log

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// gpudLogger wraps *zap.SugaredLogger so call sites never import zap
// directly; it keeps the field name identical to the call style used
// throughout the engine (Infow/Debugw/Errorw/Warnw).
type gpudLogger struct {
	*zap.SugaredLogger
}

// Errorw downgrades context.Canceled to a warning: a cancelled context
// almost always means a caller gave up or the daemon is shutting down,
// not that the operation itself is broken.
func (l *gpudLogger) Errorw(msg string, keysAndValues ...interface{}) {
	for _, v := range keysAndValues {
		if err, ok := v.(error); ok && errors.Is(err, context.Canceled) {
			l.SugaredLogger.Warnw(msg, keysAndValues...)
			return
		}
	}
	l.SugaredLogger.Errorw(msg, keysAndValues...)
}

// Logger is the process-wide logger. Reassigned once at startup by
// CreateLogger/CreateLoggerWithLumberjack; safe to use before that,
// when it is a no-op logger that discards everything.
var Logger = &gpudLogger{zap.NewNop().Sugar()}

func ParseLogLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(strings.TrimSpace(s)))); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return lvl, nil
}

// CreateLogger builds the process logger. If logFile is empty, logs go
// to stderr only; otherwise a JSON file sink is added alongside it.
func CreateLogger(level zapcore.Level, logFile string) *gpudLogger {
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	cores := []zapcore.Core{
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
	}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err == nil {
			jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
			cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(f), level))
		}
	}

	l := &gpudLogger{zap.New(zapcore.NewTee(cores...)).Sugar()}
	Logger = l
	return l
}

// CreateLoggerWithLumberjack is like CreateLogger but rotates logFile
// through lumberjack once it exceeds maxSizeMB, for long-running daemon
// deployments where nothing else truncates the log.
func CreateLoggerWithLumberjack(logFile string, maxSizeMB int, level zapcore.Level) *gpudLogger {
	lj := &lumberjack.Logger{
		Filename: logFile,
		MaxSize:  maxSizeMB,
		MaxAge:   28,
		Compress: true,
	}
	consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stderr), level),
		zapcore.NewCore(jsonEncoder, zapcore.AddSync(lj), level),
	)
	l := &gpudLogger{zap.New(core).Sugar()}
	Logger = l
	return l
}
