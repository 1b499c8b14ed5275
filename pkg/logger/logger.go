package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the shared structured logger. Packages log through the
// package-level helpers below; Log is exported for callers that want
// typed zap fields directly.
var Log *zap.Logger

var sugar *zap.SugaredLogger

// Init initializes the global logger at Info level. Sink and level can be
// overridden via CHATSTREAM_LOG_SINK (e.g. "file:/path/to/log") and
// CHATSTREAM_LOG_LEVEL.
func Init() {
	InitWithLevel("")
}

// InitWithLevel initializes the global logger honoring the provided level
// string ("debug", "info", "warn", "error"). An empty level falls back to
// CHATSTREAM_LOG_LEVEL and then to info.
func InitWithLevel(level string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		lvl = strings.ToLower(strings.TrimSpace(os.Getenv("CHATSTREAM_LOG_LEVEL")))
	}
	var zl zapcore.Level
	switch lvl {
	case "debug":
		zl = zapcore.DebugLevel
	case "warn", "warning":
		zl = zapcore.WarnLevel
	case "error":
		zl = zapcore.ErrorLevel
	default:
		zl = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	sink := zapcore.Lock(os.Stdout)
	if s := os.Getenv("CHATSTREAM_LOG_SINK"); strings.HasPrefix(s, "file:") {
		path := strings.TrimPrefix(s, "file:")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
		if err == nil {
			sink = zapcore.Lock(f)
		} else {
			fmt.Fprintf(os.Stderr, "failed to open log file %s: %v\n", path, err)
		}
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), sink, zl)
	Log = zap.New(core)
	sugar = Log.Sugar()
}

// Sync flushes buffered log entries; safe to call on shutdown.
func Sync() {
	if Log != nil {
		_ = Log.Sync()
	}
}

func ensure() *zap.SugaredLogger {
	if sugar == nil {
		Init()
	}
	return sugar
}

// Debug logs at debug level with alternating key/value args.
func Debug(msg string, args ...any) { ensure().Debugw(msg, args...) }

// Info logs at info level with alternating key/value args.
func Info(msg string, args ...any) { ensure().Infow(msg, args...) }

// Warn logs at warn level with alternating key/value args.
func Warn(msg string, args ...any) { ensure().Warnw(msg, args...) }

// Error logs at error level with alternating key/value args.
func Error(msg string, args ...any) { ensure().Errorw(msg, args...) }
