package fleetmip

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

const (
	LvlError = 1
	LvlInfo  = 2
	LvlDebug = 3
	LvlSpam  = 4
)

const levelSpam = slog.LevelDebug - 4

var (
	logger atomic.Pointer[slog.Logger]
	maxLvl atomic.Int32
)

func init() {
	InitLoggers("info", "text")
}

// InitLoggers installs the package logger. level is one of error, warn, info,
// debug or spam; format is text or json.
func InitLoggers(level, format string) {
	InitLoggersTo(os.Stdout, level, format)
}

func InitLoggersTo(w io.Writer, level, format string) {
	lvl, sl := parseLevel(level)
	opts := &slog.HandlerOptions{Level: sl}
	var h slog.Handler
	if strings.ToLower(format) == "json" {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	logger.Store(slog.New(h))
	maxLvl.Store(int32(lvl))
}

func parseLevel(level string) (int, slog.Level) {
	switch strings.ToLower(level) {
	case "error", "warn", "warning":
		return LvlError, slog.LevelWarn
	case "debug":
		return LvlDebug, slog.LevelDebug
	case "spam":
		return LvlSpam, levelSpam
	default:
		return LvlInfo, slog.LevelInfo
	}
}

// Log prints a formatted message if msgLvl is enabled.
func Log(msgLvl int, printF string, args ...interface{}) {
	if int32(msgLvl) > maxLvl.Load() {
		return
	}
	var sl slog.Level
	switch msgLvl {
	case LvlError:
		sl = slog.LevelError
	case LvlInfo:
		sl = slog.LevelInfo
	case LvlDebug:
		sl = slog.LevelDebug
	default:
		sl = levelSpam
	}
	logger.Load().Log(context.Background(), sl, fmt.Sprintf(printF, args...))
}

// Warn reports a degraded but non-fatal condition.
func Warn(printF string, args ...interface{}) {
	logger.Load().Warn(fmt.Sprintf(printF, args...))
}
