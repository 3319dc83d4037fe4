package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dpotapov/slogpfx"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

type Logger = slog.Logger

var defaultLevel = func() slog.Level {
	switch strings.ToLower(os.Getenv("AIOSTREAMS_LOG_LEVEL")) {
	case "trace", "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}()

var baseHandler = sync.OnceValue(func() slog.Handler {
	w := os.Stderr
	var handler slog.Handler
	if strings.ToLower(os.Getenv("AIOSTREAMS_LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: defaultLevel})
	} else {
		handler = tint.NewHandler(w, &tint.Options{
			Level:      defaultLevel,
			NoColor:    !isatty.IsTerminal(w.Fd()),
			TimeFormat: time.DateTime,
		})
	}
	return slogpfx.NewHandler(handler, &slogpfx.HandlerOptions{
		PrefixKeys: []string{"scope"},
	})
})

func Default() *Logger {
	return Scoped("aiostreams")
}

// Scoped returns a logger whose lines are prefixed with the given scope.
func Scoped(scope string) *Logger {
	return slog.New(baseHandler()).With("scope", scope)
}
