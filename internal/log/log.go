package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

var (
	mu       sync.RWMutex
	logger   *slog.Logger
	levelVar = new(slog.LevelVar)
	once     sync.Once
)

// initLogger installs the default stderr text handler on first use.
func initLogger() {
	once.Do(func() {
		levelVar.Set(slog.LevelInfo)
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar}))
	})
}

// SetOutput redirects log output, mainly for tests and the serve command.
func SetOutput(w io.Writer) {
	initLogger()
	mu.Lock()
	defer mu.Unlock()
	logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: levelVar}))
}

func SetLevel(l Level) {
	initLogger()
	levelVar.Set(toSlog(l))
}

// ParseLevel maps a config string ("debug", "info", ...) to a Level.
// Unknown values fall back to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(slog.LevelDebug, msg, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(slog.LevelInfo, msg, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(slog.LevelWarn, msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	logWithLevel(slog.LevelError, msg, extended...)
}

func logWithLevel(level slog.Level, msg string, kv ...any) {
	initLogger()
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.Log(context.Background(), level, msg, pairs(kv)...)
}

// pairs drops a trailing key without a value and any non-string key so that
// a sloppy call site never produces a !BADKEY attribute.
func pairs(kv []any) []any {
	out := make([]any, 0, len(kv))
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		out = append(out, key, kv[i+1])
	}
	return out
}

func toSlog(l Level) slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
